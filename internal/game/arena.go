package game

// Handle is a generation-checked reference to a monster slot.
// A handle taken before a removal never resolves to the monster that later reuses the slot.
type Handle struct {
	Index uint32 `json:"index"`
	Gen   uint32 `json:"gen"`
}

// Monster is a homing enemy. Its size comes from its archetype; the bounding
// box is derived from Pos on every query.
type Monster struct {
	Handle    Handle  `json:"handle"`
	Archetype string  `json:"archetype"`
	Pos       Point   `json:"pos"`
	Width     float64 `json:"width"`
	Height    float64 `json:"height"`
}

// Bounds returns the monster's current bounding box.
func (m *Monster) Bounds() AABB {
	return BoxAround(m.Pos, m.Width, m.Height)
}

type monsterSlot struct {
	gen     uint32
	alive   bool
	monster Monster
}

// MonsterArena stores live monsters in reusable slots.
// Iteration order is ascending slot index, which keeps ticks deterministic.
type MonsterArena struct {
	slots []monsterSlot
	free  []uint32
	live  int
}

// NewMonsterArena creates an arena with room for capacity monsters.
func NewMonsterArena(capacity int) *MonsterArena {
	return &MonsterArena{
		slots: make([]monsterSlot, 0, capacity),
		free:  make([]uint32, 0, capacity),
	}
}

// Insert stores m and returns its handle. The handle is also written into the stored monster.
func (a *MonsterArena) Insert(m Monster) Handle {
	var idx uint32
	if n := len(a.free); n > 0 {
		idx = a.free[n-1]
		a.free = a.free[:n-1]
	} else {
		idx = uint32(len(a.slots))
		a.slots = append(a.slots, monsterSlot{})
	}

	slot := &a.slots[idx]
	slot.gen++ // generations start at 1 so the zero Handle never resolves
	slot.alive = true
	m.Handle = Handle{Index: idx, Gen: slot.gen}
	slot.monster = m
	a.live++
	return m.Handle
}

// Get resolves h to its monster, or returns false if the monster is gone.
func (a *MonsterArena) Get(h Handle) (*Monster, bool) {
	if int(h.Index) >= len(a.slots) {
		return nil, false
	}
	slot := &a.slots[h.Index]
	if !slot.alive || slot.gen != h.Gen {
		return nil, false
	}
	return &slot.monster, true
}

// Remove deletes the monster behind h. Stale handles are ignored.
func (a *MonsterArena) Remove(h Handle) bool {
	if _, ok := a.Get(h); !ok {
		return false
	}
	slot := &a.slots[h.Index]
	slot.alive = false
	slot.monster = Monster{}
	a.free = append(a.free, h.Index)
	a.live--
	return true
}

// Len returns the number of live monsters.
func (a *MonsterArena) Len() int {
	return a.live
}

// Handles appends the handles of all live monsters to dst in slot order.
func (a *MonsterArena) Handles(dst []Handle) []Handle {
	for i := range a.slots {
		if a.slots[i].alive {
			dst = append(dst, a.slots[i].monster.Handle)
		}
	}
	return dst
}

// Clear removes every monster. Generations survive so old handles stay stale.
func (a *MonsterArena) Clear() {
	a.free = a.free[:0]
	for i := len(a.slots) - 1; i >= 0; i-- {
		a.slots[i].alive = false
		a.slots[i].monster = Monster{}
		a.free = append(a.free, uint32(i))
	}
	a.live = 0
}
