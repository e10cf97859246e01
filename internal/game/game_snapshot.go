package game

import (
	"sync"
	"sync/atomic"
	"time"

	"mage-defense/internal/config"
)

// MonsterSnapshot is an immutable copy of a monster for readers outside the tick.
type MonsterSnapshot struct {
	Handle    Handle  `json:"handle"`
	Archetype string  `json:"archetype"`
	X         float64 `json:"x"`
	Y         float64 `json:"y"`
	Width     float64 `json:"width"`
	Height    float64 `json:"height"`
}

// BulletSnapshot is an immutable copy of a bullet.
type BulletSnapshot struct {
	ID      uint64  `json:"id"`
	X       float64 `json:"x"`
	Y       float64 `json:"y"`
	TargetX float64 `json:"targetX"`
	TargetY float64 `json:"targetY"`
	Range   float64 `json:"range"`
}

// GameSnapshot is a complete immutable game state.
// Slices are pre-allocated to the resource limits and never grow beyond them.
type GameSnapshot struct {
	Sequence   uint64    `json:"sequence"`
	Timestamp  time.Time `json:"timestamp"`
	TickNumber uint64    `json:"tick"`
	RNGSeed    int64     `json:"rngSeed"`

	Status     Status     `json:"status"`
	Round      int        `json:"round"`
	RoundTicks uint64     `json:"roundTicks"`
	Viewport   [2]float64 `json:"viewport"`

	Mage     Mage              `json:"mage"`
	Monsters []MonsterSnapshot `json:"monsters"`
	Bullets  []BulletSnapshot  `json:"bullets"`

	// Aggregate stats
	MonsterCount int `json:"monsterCount"`
	BulletCount  int `json:"bulletCount"`
	Kills        int `json:"kills"`
	TotalKills   int `json:"totalKills"`
}

// SnapshotPool pre-allocates snapshots to avoid GC pressure.
// The producer fills a slot other than the published one without locking;
// readers copy the published slot under mu, so a slot is never rewritten
// while someone is still reading it.
type SnapshotPool struct {
	mu        sync.RWMutex // guards readIdx and reads of the published slot
	snapshots [3]GameSnapshot
	limits    config.ResourceLimits
	writeIdx  uint32 // atomic - producer index
	readIdx   uint32
	sequence  uint64 // atomic - monotonic sequence
}

// NewSnapshotPool creates a pool with pre-allocated slices
func NewSnapshotPool(limits config.ResourceLimits) *SnapshotPool {
	pool := &SnapshotPool{limits: limits}

	for i := 0; i < 3; i++ {
		pool.snapshots[i] = GameSnapshot{
			Monsters: make([]MonsterSnapshot, 0, limits.MaxMonsters),
			Bullets:  make([]BulletSnapshot, 0, limits.MaxBullets),
		}
	}

	return pool
}

// AcquireWrite gets the next write slot (producer only, called from game tick)
// Returns a snapshot with reset slices but preserved capacity
func (p *SnapshotPool) AcquireWrite() *GameSnapshot {
	idx := atomic.AddUint32(&p.writeIdx, 1) % 3
	snap := &p.snapshots[idx]

	snap.Monsters = snap.Monsters[:0]
	snap.Bullets = snap.Bullets[:0]

	snap.Sequence = atomic.AddUint64(&p.sequence, 1)
	snap.Timestamp = time.Now()

	return snap
}

// PublishWrite makes the slot from the last AcquireWrite the latest snapshot.
func (p *SnapshotPool) PublishWrite() {
	p.mu.Lock()
	p.readIdx = atomic.LoadUint32(&p.writeIdx)
	p.mu.Unlock()
}

// Latest returns a deep copy of the most recently published snapshot.
func (p *SnapshotPool) Latest() *GameSnapshot {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.snapshots[p.readIdx%3].Clone()
}

// Clone returns a copy that shares no memory with snap.
func (snap *GameSnapshot) Clone() *GameSnapshot {
	c := *snap
	c.Monsters = append(make([]MonsterSnapshot, 0, len(snap.Monsters)), snap.Monsters...)
	c.Bullets = append(make([]BulletSnapshot, 0, len(snap.Bullets)), snap.Bullets...)
	return &c
}

// Fill copies the simulation state into snap.
func (snap *GameSnapshot) Fill(s *State) {
	snap.TickNumber = s.Tick
	snap.RNGSeed = s.rngSeed
	snap.Status = s.Status
	snap.Round = s.Round
	snap.RoundTicks = s.RoundTicks
	snap.Viewport = [2]float64{s.cfg.ViewportWidth, s.cfg.ViewportHeight}
	snap.Mage = s.Mage
	snap.Kills = s.Kills
	snap.TotalKills = s.TotalKills

	s.handles = s.Monsters.Handles(s.handles[:0])
	for _, h := range s.handles {
		if len(snap.Monsters) == cap(snap.Monsters) && cap(snap.Monsters) > 0 {
			break
		}
		m, _ := s.Monsters.Get(h)
		snap.Monsters = append(snap.Monsters, MonsterSnapshot{
			Handle:    h,
			Archetype: m.Archetype,
			X:         m.Pos.X,
			Y:         m.Pos.Y,
			Width:     m.Width,
			Height:    m.Height,
		})
	}

	for _, b := range s.Bullets {
		if len(snap.Bullets) == cap(snap.Bullets) && cap(snap.Bullets) > 0 {
			break
		}
		snap.Bullets = append(snap.Bullets, BulletSnapshot{
			ID:      b.ID,
			X:       b.Pos.X,
			Y:       b.Pos.Y,
			TargetX: b.Target.X,
			TargetY: b.Target.Y,
			Range:   b.Range,
		})
	}

	snap.MonsterCount = s.Monsters.Len()
	snap.BulletCount = len(s.Bullets)
}
