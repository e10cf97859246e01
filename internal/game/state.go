package game

import (
	"fmt"
	"math/rand"
	"time"

	"mage-defense/internal/config"
)

// Status is the round state machine.
type Status uint8

const (
	StatusRunning Status = iota
	StatusEnded          // Terminal until Reset
)

// String returns the status name.
func (s Status) String() string {
	if s == StatusEnded {
		return "ended"
	}
	return "running"
}

// MarshalText encodes the status by name.
func (s Status) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// Mage is the defended point.
type Mage struct {
	Pos    Point   `json:"pos"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// Bounds returns the mage's current bounding box.
func (m *Mage) Bounds() AABB {
	return BoxAround(m.Pos, m.Width, m.Height)
}

// Input is everything fed to a tick from outside the simulation.
type Input struct {
	// Displacement is added to every monster before it steers.
	// Callers accumulate it between ticks and hand it over once.
	Displacement Point
}

// State is the complete mutable simulation state passed to Advance.
type State struct {
	cfg    config.SimulationConfig
	limits config.ResourceLimits

	Status Status
	Tick   uint64 // Ticks since process start
	Round  int
	// RoundTicks counts ticks since the last reset.
	RoundTicks uint64
	Kills      int // Kills this round
	TotalKills int

	Mage     Mage
	Monsters *MonsterArena
	Bullets  []*Bullet
	Zone     *SpawnZone

	SpawnCountdown int
	FireCountdown  int

	rng          *rand.Rand
	rngSeed      int64
	queue        *ThreatQueue
	handles      []Handle // scratch, reused every tick
	nextBulletID uint64
}

// NewState builds a running round for cfg.
// A viewport whose keep-out square leaves no spawn point is rejected here,
// so the per-tick spawner never has to handle an empty zone.
func NewState(cfg config.SimulationConfig, limits config.ResourceLimits) (*State, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	seed := cfg.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}

	s := &State{
		cfg:      cfg,
		limits:   limits,
		Monsters: NewMonsterArena(limits.MaxMonsters),
		Bullets:  make([]*Bullet, 0, limits.MaxBullets),
		rng:      rand.New(rand.NewSource(seed)),
		rngSeed:  seed,
		queue:    NewThreatQueue(limits.MaxMonsters),
		handles:  make([]Handle, 0, limits.MaxMonsters),
	}

	if err := s.Resize(cfg.ViewportWidth, cfg.ViewportHeight); err != nil {
		return nil, err
	}
	s.Reset()
	return s, nil
}

// Config returns the simulation settings the state was built with.
func (s *State) Config() config.SimulationConfig {
	return s.cfg
}

// Seed returns the RNG seed the state was built with.
func (s *State) Seed() int64 {
	return s.rngSeed
}

// Resize recomputes the spawn zone for a new viewport. The mage always sits
// at the viewport centre, so it moves to the new centre and every monster and
// bullet shifts with it; the keep-out square keeps surrounding the mage.
// On error nothing changes.
func (s *State) Resize(width, height float64) error {
	if s.limits.MaxViewport > 0 && (width > s.limits.MaxViewport || height > s.limits.MaxViewport) {
		return fmt.Errorf("resize to %gx%g: %w: larger than %g",
			width, height, ErrInvalidViewport, s.limits.MaxViewport)
	}

	center := Point{X: width / 2, Y: height / 2}
	zone, err := NewSpawnZone(width, height, center, s.cfg.SpawnRange, s.cfg.GridStep)
	if err != nil {
		return fmt.Errorf("resize to %gx%g: %w", width, height, err)
	}

	s.shift(center.Sub(s.Mage.Pos))
	s.cfg.ViewportWidth = width
	s.cfg.ViewportHeight = height
	s.Zone = zone
	return nil
}

// shift translates the whole scene by d.
func (s *State) shift(d Point) {
	if d == (Point{}) {
		return
	}
	s.Mage.Pos = s.Mage.Pos.Add(d)
	s.handles = s.Monsters.Handles(s.handles[:0])
	for _, h := range s.handles {
		m, _ := s.Monsters.Get(h)
		m.Pos = m.Pos.Add(d)
	}
	for _, b := range s.Bullets {
		b.Pos = b.Pos.Add(d)
		b.Target = b.Target.Add(d)
	}
}

// Reset starts a new round: monsters and bullets are cleared, the mage is
// recreated at the viewport centre and both countdowns restart.
func (s *State) Reset() Event {
	s.Monsters.Clear()
	for i := range s.Bullets {
		s.Bullets[i] = nil
	}
	s.Bullets = s.Bullets[:0]

	s.Mage = Mage{
		Pos:    Point{X: s.cfg.ViewportWidth / 2, Y: s.cfg.ViewportHeight / 2},
		Width:  s.cfg.MageSize.Width,
		Height: s.cfg.MageSize.Height,
	}
	s.SpawnCountdown = s.cfg.SpawnInterval
	s.FireCountdown = s.cfg.FireInterval
	s.Status = StatusRunning
	s.Round++
	s.RoundTicks = 0
	s.Kills = 0

	return NewEvent(EventTypeReset, s.Tick, ResetPayload{Round: s.Round, Mage: s.Mage.Pos})
}

// SpawnMonster places a monster of the given archetype at p.
// Returns false when the monster cap is reached.
func (s *State) SpawnMonster(p Point, archetype int) (Handle, bool) {
	if s.limits.MaxMonsters > 0 && s.Monsters.Len() >= s.limits.MaxMonsters {
		return Handle{}, false
	}
	a := s.cfg.Archetypes[archetype]
	h := s.Monsters.Insert(Monster{
		Archetype: a.Name,
		Pos:       p,
		Width:     a.Size.Width,
		Height:    a.Size.Height,
	})
	return h, true
}

// FireBullet launches a bullet from the mage toward target.
// Returns nil when the bullet cap is reached.
func (s *State) FireBullet(target Point) *Bullet {
	if s.limits.MaxBullets > 0 && len(s.Bullets) >= s.limits.MaxBullets {
		return nil
	}
	s.nextBulletID++
	b := &Bullet{
		ID:     s.nextBulletID,
		Pos:    s.Mage.Pos,
		Target: target,
		Range:  s.cfg.BulletRange,
		Speed:  s.cfg.BulletSpeed,
		Width:  s.cfg.BulletSize.Width,
		Height: s.cfg.BulletSize.Height,
	}
	s.Bullets = append(s.Bullets, b)
	return b
}

// Queue exposes the threat queue built during the last tick.
func (s *State) Queue() *ThreatQueue {
	return s.queue
}
