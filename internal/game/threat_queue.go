package game

// MonsterRange pairs a monster with its distance to the mage.
// The queue is rebuilt every tick, so the handle is only trusted within that tick.
type MonsterRange struct {
	Monster Handle
	Range   float64
}

// ThreatQueue is an array-backed binary min-heap keyed on Range.
// The closest monster is always at the root.
//
// Ties are resolved deterministically: sift-up stops on equal keys and
// sift-down prefers the left child when both children are equal.
type ThreatQueue struct {
	ranges []MonsterRange
}

// NewThreatQueue creates a queue with room for capacity entries.
func NewThreatQueue(capacity int) *ThreatQueue {
	return &ThreatQueue{ranges: make([]MonsterRange, 0, capacity)}
}

// Clear drops all entries but keeps the backing array.
func (q *ThreatQueue) Clear() {
	q.ranges = q.ranges[:0]
}

// Len returns the number of queued entries.
func (q *ThreatQueue) Len() int {
	return len(q.ranges)
}

// IsEmpty reports whether the queue has no entries.
func (q *ThreatQueue) IsEmpty() bool {
	return len(q.ranges) == 0
}

// Push inserts an entry and sifts it up while its parent is farther away.
func (q *ThreatQueue) Push(r MonsterRange) {
	q.ranges = append(q.ranges, r)

	i := len(q.ranges) - 1
	for i > 0 {
		parent := (i - 1) / 2
		if q.ranges[parent].Range <= q.ranges[i].Range {
			break
		}
		q.swap(i, parent)
		i = parent
	}
}

// Pop removes and returns the closest entry.
// Calling Pop on an empty queue is a programming error and panics; check IsEmpty first.
func (q *ThreatQueue) Pop() MonsterRange {
	n := len(q.ranges)
	if n == 0 {
		panic("game: Pop on empty ThreatQueue")
	}

	top := q.ranges[0]
	last := n - 1
	q.ranges[0] = q.ranges[last]
	q.ranges = q.ranges[:last]

	i := 0
	for {
		left := 2*i + 1
		if left >= len(q.ranges) {
			break
		}
		lowest := left
		if right := left + 1; right < len(q.ranges) && q.ranges[right].Range < q.ranges[left].Range {
			lowest = right
		}
		if q.ranges[i].Range <= q.ranges[lowest].Range {
			break
		}
		q.swap(i, lowest)
		i = lowest
	}

	return top
}

func (q *ThreatQueue) swap(a, b int) {
	q.ranges[a], q.ranges[b] = q.ranges[b], q.ranges[a]
}
