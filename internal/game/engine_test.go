package game

import (
	"encoding/json"
	"math"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mage-defense/internal/config"
)

func newTestEngine(t *testing.T, mutate func(*config.SimulationConfig)) *Engine {
	t.Helper()

	cfg := config.DefaultSimulation()
	cfg.Seed = 1
	cfg.ViewportWidth = 200
	cfg.ViewportHeight = 200
	cfg.SpawnRange = 50
	cfg.SpawnInterval = never
	cfg.FireInterval = never
	if mutate != nil {
		mutate(&cfg)
	}

	engine, err := NewEngine(EngineConfig{Simulation: cfg, Limits: config.DefaultLimits()})
	require.NoError(t, err)
	return engine
}

// TestNewEngine verifies engine creation with correct defaults
func TestNewEngine(t *testing.T) {
	tests := []struct {
		name     string
		tickRate int
	}{
		{"standard 60 TPS", 60},
		{"high 120 TPS", 120},
		{"low 15 TPS", 15},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			engine := newTestEngine(t, func(c *config.SimulationConfig) { c.TickRate = tt.tickRate })

			snap := engine.GetSnapshot()
			require.NotNil(t, snap)
			assert.Equal(t, StatusRunning, snap.Status)
			assert.Equal(t, 1, snap.Round)
			assert.Equal(t, Point{X: 100, Y: 100}, snap.Mage.Pos)
			assert.Equal(t, int64(1), snap.RNGSeed)
		})
	}
}

func TestNewEngineRejectsInvalidConfig(t *testing.T) {
	cfg := config.DefaultSimulation()
	cfg.TickRate = 0

	engine, err := NewEngine(EngineConfig{Simulation: cfg, Limits: config.DefaultLimits()})
	assert.Nil(t, engine)
	assert.ErrorIs(t, err, config.ErrInvalidConfig)
}

// TestEngineStartStop verifies engine can start and stop without panics
func TestEngineStartStop(t *testing.T) {
	engine := newTestEngine(t, nil)

	engine.Start()
	engine.Start() // second start is a no-op

	assert.Eventually(t, func() bool {
		return engine.GetSnapshot().TickNumber > 0
	}, time.Second, 5*time.Millisecond)

	engine.Stop()

	// Should not panic on double stop
	engine.Stop()
}

func TestEngineStepPublishesSequencedEvents(t *testing.T) {
	engine := newTestEngine(t, func(c *config.SimulationConfig) { c.SpawnInterval = 2 })

	var events []Event
	engine.Subscribe(func(ev Event) { events = append(events, ev) })

	engine.Step()
	engine.Step()

	require.Len(t, events, 3) // tick, spawn, tick
	assert.Equal(t, EventTypeTick, events[0].Type)
	assert.Equal(t, EventTypeMonsterSpawned, events[1].Type)
	assert.Equal(t, EventTypeTick, events[2].Type)

	for i, ev := range events {
		assert.Equal(t, uint64(i+1), ev.Sequence)
		assert.NotZero(t, ev.Timestamp)
	}

	snap := engine.GetSnapshot()
	assert.Equal(t, uint64(2), snap.TickNumber)
	assert.Equal(t, 1, snap.MonsterCount)
	require.Len(t, snap.Monsters, 1)
}

func TestEngineNudgeAndDisplace(t *testing.T) {
	engine := newTestEngine(t, func(c *config.SimulationConfig) { c.MonsterStep = 0 })
	h, ok := engine.state.SpawnMonster(Point{X: 150, Y: 150}, 0)
	require.True(t, ok)

	tests := []struct {
		name  string
		apply func()
		want  Point
	}{
		{"up moves monsters down", func() { engine.Nudge(DirUp) }, Point{X: 150, Y: 160}},
		{"down moves monsters up", func() { engine.Nudge(DirDown) }, Point{X: 150, Y: 150}},
		{"left moves monsters right", func() { engine.Nudge(DirLeft) }, Point{X: 160, Y: 150}},
		{"right moves monsters left", func() { engine.Nudge(DirRight) }, Point{X: 150, Y: 150}},
		{"inputs accumulate", func() {
			engine.Displace(3, 4)
			engine.Displace(1, 1)
			engine.Nudge(DirUp)
		}, Point{X: 154, Y: 165}},
		{"nothing pending", func() {}, Point{X: 154, Y: 165}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.apply()
			engine.Step()
			m, ok := engine.state.Monsters.Get(h)
			require.True(t, ok)
			assert.Equal(t, tt.want, m.Pos)
		})
	}
}

func TestEngineDisplaceRejectsHostileInput(t *testing.T) {
	engine := newTestEngine(t, func(c *config.SimulationConfig) { c.MonsterStep = 0 })
	h, _ := engine.state.SpawnMonster(Point{X: 150, Y: 150}, 0)

	tests := []struct {
		name   string
		dx, dy float64
	}{
		{"NaN", math.NaN(), 0},
		{"infinite", 0, math.Inf(1)},
		{"negative infinite", math.Inf(-1), 1},
		{"beyond the viewport limit", 1e9, 0},
		{"just past the limit", 0, -4097},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.ErrorIs(t, engine.Displace(tt.dx, tt.dy), ErrInvalidDisplacement)
		})
	}

	require.NoError(t, engine.Displace(4096, -4096))
	require.NoError(t, engine.Displace(-4096, 4096))
	engine.Step()

	m, ok := engine.state.Monsters.Get(h)
	require.True(t, ok)
	assert.Equal(t, Point{X: 150, Y: 150}, m.Pos)

	_, err := json.Marshal(engine.GetSnapshot())
	assert.NoError(t, err)
}

func TestEngineSnapshotIsPrivateCopy(t *testing.T) {
	engine := newTestEngine(t, func(c *config.SimulationConfig) { c.SpawnInterval = 1 })

	engine.Step()
	snap := engine.GetSnapshot()
	require.Len(t, snap.Monsters, 1)
	first := snap.Monsters[0]

	for i := 0; i < 5; i++ {
		engine.Step()
	}

	assert.Equal(t, uint64(1), snap.TickNumber)
	require.Len(t, snap.Monsters, 1)
	assert.Equal(t, first, snap.Monsters[0])

	latest := engine.GetSnapshot()
	assert.Equal(t, uint64(6), latest.TickNumber)
	latest.Monsters[0].X = -1
	assert.NotEqual(t, -1.0, engine.GetSnapshot().Monsters[0].X)
}

func TestEngineGameOverAndReset(t *testing.T) {
	engine := newTestEngine(t, nil)
	engine.state.SpawnMonster(Point{X: 120, Y: 100}, 0)

	var types []EventType
	engine.Subscribe(func(ev Event) { types = append(types, ev.Type) })

	var stats []TickStats
	engine.SetTickObserver(func(s TickStats) { stats = append(stats, s) })

	engine.Step()
	assert.Equal(t, StatusEnded, engine.Status())
	assert.Equal(t, StatusEnded, engine.GetSnapshot().Status)
	require.Len(t, stats, 1)
	assert.True(t, stats[0].GameOver)

	// Ended rounds stay frozen
	engine.Step()
	assert.Equal(t, uint64(1), engine.GetSnapshot().TickNumber)

	engine.Nudge(DirUp)
	engine.Reset()
	assert.Equal(t, StatusRunning, engine.Status())
	snap := engine.GetSnapshot()
	assert.Equal(t, 2, snap.Round)
	assert.Zero(t, snap.MonsterCount)
	assert.Zero(t, engine.pending, "reset drops pending input")

	assert.Equal(t, []EventType{EventTypeGameOver, EventTypeTick, EventTypeReset}, types)
}

func TestEngineResize(t *testing.T) {
	engine := newTestEngine(t, nil)

	points, safe := engine.SpawnZone()
	require.NotEmpty(t, points)

	err := engine.Resize(40, 40)
	assert.ErrorIs(t, err, ErrEmptySpawnZone)

	kept, keptSafe := engine.SpawnZone()
	assert.Equal(t, len(points), len(kept))
	assert.Equal(t, safe, keptSafe)

	require.NoError(t, engine.Resize(640, 480))
	_, safe = engine.SpawnZone()
	assert.Equal(t, AABB{X: 270, Y: 190, Width: 100, Height: 100}, safe)
	assert.Equal(t, [2]float64{640, 480}, engine.GetSnapshot().Viewport)
}

func TestEngineEventLogStats(t *testing.T) {
	engine := newTestEngine(t, nil)
	require.NoError(t, engine.StartEventLog(""))

	engine.Step()
	engine.Step()
	engine.StopEventLog()

	stats := engine.GetEventLogStats()
	assert.Equal(t, uint64(2), stats.Total)
	assert.False(t, stats.Running)
}

// TestConcurrentAccess runs readers and input writers against a live engine
func TestConcurrentAccess(t *testing.T) {
	engine := newTestEngine(t, func(c *config.SimulationConfig) {
		c.TickRate = 240
		c.SpawnInterval = 2
		c.FireInterval = 3
	})
	engine.Subscribe(func(Event) {})
	engine.Start()
	defer engine.Stop()

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			for j := 0; j < 200; j++ {
				switch j % 4 {
				case 0:
					engine.Nudge(Direction(i % 4))
				case 1:
					engine.Displace(1, -1)
				case 2:
					_ = engine.GetSnapshot().MonsterCount
				case 3:
					if engine.Status() == StatusEnded {
						engine.Reset()
					}
				}
			}
		}(i)
	}
	wg.Wait()
}

// TestEventsPublishInSequence checks listeners see sequence numbers in order
// while ticks and resets race each other.
func TestEventsPublishInSequence(t *testing.T) {
	engine := newTestEngine(t, func(c *config.SimulationConfig) { c.SpawnInterval = 1 })

	var (
		mu   sync.Mutex
		last uint64
		bad  []uint64
	)
	engine.Subscribe(func(ev Event) {
		mu.Lock()
		defer mu.Unlock()
		if ev.Sequence != last+1 {
			bad = append(bad, ev.Sequence)
		}
		last = ev.Sequence
	})

	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				engine.Step()
			}
		}()
		go func() {
			defer wg.Done()
			for j := 0; j < 10; j++ {
				engine.Reset()
			}
		}()
	}

	// Swapping the tick observer races the ticks as well
	wg.Add(1)
	go func() {
		defer wg.Done()
		for j := 0; j < 50; j++ {
			engine.SetTickObserver(func(TickStats) {})
			engine.SetTickObserver(nil)
		}
	}()
	wg.Wait()

	mu.Lock()
	defer mu.Unlock()
	assert.Empty(t, bad, "events delivered out of sequence")
	assert.NotZero(t, last)
}
