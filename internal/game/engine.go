package game

import (
	"errors"
	"fmt"
	"log"
	"math"
	"sync"
	"time"

	"mage-defense/internal/config"
)

// Direction is a directional nudge from the player's controls.
type Direction uint8

const (
	DirUp Direction = iota
	DirDown
	DirLeft
	DirRight
)

// Displacement returns how far a nudge shifts every monster.
// The world scrolls against the key: pressing up moves monsters down the screen.
func (d Direction) Displacement(step float64) Point {
	switch d {
	case DirUp:
		return Point{Y: step}
	case DirDown:
		return Point{Y: -step}
	case DirLeft:
		return Point{X: step}
	case DirRight:
		return Point{X: -step}
	}
	return Point{}
}

// ErrInvalidDisplacement is returned for non-finite or oversized displacements.
var ErrInvalidDisplacement = errors.New("invalid displacement")

// TickStats summarizes one tick for metrics.
type TickStats struct {
	Duration time.Duration
	Monsters int
	Bullets  int
	Kills    int // Kills during this tick
	GameOver bool
}

// EngineConfig contains everything needed to build an Engine.
type EngineConfig struct {
	Simulation config.SimulationConfig
	Limits     config.ResourceLimits
}

// Engine drives the simulation from a ticker and serializes all outside access to it.
type Engine struct {
	mu    sync.Mutex
	state *State

	// Displacement accumulated since the last tick
	pending Point
	// Largest accepted displacement component, 0 for no bound
	maxDisplacement float64

	tickRate int
	running  bool
	ticker   *time.Ticker
	stopChan chan struct{}

	// Snapshot system for lock-free reads
	snapshotPool *SnapshotPool

	// Event sourcing for replay and debugging
	eventLog *EventLog
	sequence uint64

	// publishMu is taken before mu and held until the events of one tick or
	// reset are delivered, so subscribers see them in sequence order.
	publishMu   sync.Mutex
	listenersMu sync.RWMutex
	listeners   []func(Event)
	onTick      func(TickStats)
}

// NewEngine creates an engine with a fresh running round.
func NewEngine(cfg EngineConfig) (*Engine, error) {
	state, err := NewState(cfg.Simulation, cfg.Limits)
	if err != nil {
		return nil, err
	}

	e := &Engine{
		state:           state,
		maxDisplacement: cfg.Limits.MaxViewport,
		tickRate:        cfg.Simulation.TickRate,
		stopChan:        make(chan struct{}),
		snapshotPool:    NewSnapshotPool(cfg.Limits),
		eventLog:        NewEventLog(),
	}
	e.produceSnapshot()
	return e, nil
}

// Start begins the game loop
func (e *Engine) Start() {
	e.mu.Lock()
	if e.running {
		e.mu.Unlock()
		return
	}
	e.running = true
	e.ticker = time.NewTicker(time.Second / time.Duration(e.tickRate))
	e.mu.Unlock()

	go func() {
		for {
			select {
			case <-e.ticker.C:
				e.tick()
			case <-e.stopChan:
				return
			}
		}
	}()

	log.Printf("🎮 Game engine started at %d TPS (seed %d)", e.tickRate, e.state.Seed())
}

// Stop stops the game loop. The current round is kept as is.
func (e *Engine) Stop() {
	e.mu.Lock()
	defer e.mu.Unlock()

	if !e.running {
		return
	}

	e.running = false
	if e.ticker != nil {
		e.ticker.Stop()
	}
	close(e.stopChan)
	log.Println("🛑 Game engine stopped")
}

// tick runs one simulation step with the input accumulated since the previous one.
func (e *Engine) tick() {
	start := time.Now()

	e.publishMu.Lock()
	defer e.publishMu.Unlock()

	e.mu.Lock()
	in := Input{Displacement: e.pending}
	e.pending = Point{}

	kills := e.state.Kills
	events := Advance(e.state, in)
	if len(events) > 0 || e.state.Status == StatusRunning {
		events = append(events, NewEvent(EventTypeTick, e.state.Tick, TickPayload{
			RNGSeed:  e.state.Seed(),
			Monsters: e.state.Monsters.Len(),
			Bullets:  len(e.state.Bullets),
		}))
	}

	stats := TickStats{
		Monsters: e.state.Monsters.Len(),
		Bullets:  len(e.state.Bullets),
		Kills:    e.state.Kills - kills,
	}
	for _, ev := range events {
		if ev.Type == EventTypeGameOver {
			stats.GameOver = true
			p := ev.Payload.(GameOverPayload)
			log.Printf("💀 Game over in round %d: %d kills after %d ticks", p.Round, p.Kills, p.Ticks)
		}
	}

	e.produceSnapshot()
	events = e.stampEvents(events)
	e.mu.Unlock()

	e.publish(events)

	stats.Duration = time.Since(start)
	e.listenersMu.RLock()
	onTick := e.onTick
	e.listenersMu.RUnlock()
	if onTick != nil {
		onTick(stats)
	}
}

// Step runs a single tick synchronously. Intended for tests and tools that
// drive the engine without the ticker.
func (e *Engine) Step() {
	e.tick()
}

// Displace accumulates a displacement applied to every monster on the next tick.
// Non-finite components, and components beyond the viewport limit, are rejected.
func (e *Engine) Displace(dx, dy float64) error {
	d := Point{X: dx, Y: dy}
	if !d.IsFinite() {
		return fmt.Errorf("%w: (%g, %g)", ErrInvalidDisplacement, dx, dy)
	}
	if m := e.maxDisplacement; m > 0 && (math.Abs(dx) > m || math.Abs(dy) > m) {
		return fmt.Errorf("%w: (%g, %g) exceeds %g", ErrInvalidDisplacement, dx, dy, m)
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	e.pending = e.pending.Add(d)
	return nil
}

// Nudge accumulates one directional step of InputStep.
func (e *Engine) Nudge(d Direction) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.pending = e.pending.Add(d.Displacement(e.state.cfg.InputStep))
}

// Reset starts a new round from scratch and drops any pending input.
func (e *Engine) Reset() {
	e.publishMu.Lock()
	defer e.publishMu.Unlock()

	e.mu.Lock()
	e.pending = Point{}
	ev := e.state.Reset()
	round := e.state.Round
	e.produceSnapshot()
	events := e.stampEvents([]Event{ev})
	e.mu.Unlock()

	log.Printf("🔄 Round %d started", round)
	e.publish(events)
}

// Resize recomputes the spawn zone for a new viewport.
// A degenerate viewport is rejected and the previous zone stays in use.
func (e *Engine) Resize(width, height float64) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if err := e.state.Resize(width, height); err != nil {
		log.Printf("⚠️ Viewport resize rejected: %v", err)
		return err
	}
	e.produceSnapshot()
	log.Printf("📐 Viewport resized to %.0fx%.0f (%d spawn points)", width, height, e.state.Zone.Len())
	return nil
}

// SpawnZone returns the admissible spawn points and the keep-out square.
func (e *Engine) SpawnZone() ([]Point, AABB) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state.Zone.Points(), e.state.Zone.SafeArea()
}

// Status returns the current round status.
func (e *Engine) Status() Status {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state.Status
}

// Subscribe registers fn to receive every published event.
// fn runs on the tick goroutine, must not block and must not call Reset.
func (e *Engine) Subscribe(fn func(Event)) {
	e.listenersMu.Lock()
	defer e.listenersMu.Unlock()
	e.listeners = append(e.listeners, fn)
}

// SetTickObserver sets the callback invoked after every tick.
func (e *Engine) SetTickObserver(fn func(TickStats)) {
	e.listenersMu.Lock()
	defer e.listenersMu.Unlock()
	e.onTick = fn
}

// GetSnapshot returns a private copy of the latest snapshot.
// The caller owns it; later ticks never write into it.
func (e *Engine) GetSnapshot() *GameSnapshot {
	return e.snapshotPool.Latest()
}

// produceSnapshot must be called with e.mu held.
func (e *Engine) produceSnapshot() {
	snap := e.snapshotPool.AcquireWrite()
	snap.Fill(e.state)
	e.snapshotPool.PublishWrite()
}

// stampEvents must be called with e.mu held.
func (e *Engine) stampEvents(events []Event) []Event {
	for i := range events {
		e.sequence++
		events[i].Stamp(e.sequence)
	}
	return events
}

func (e *Engine) publish(events []Event) {
	if len(events) == 0 {
		return
	}

	e.listenersMu.RLock()
	listeners := e.listeners
	e.listenersMu.RUnlock()

	for _, ev := range events {
		e.eventLog.Emit(ev)
		for _, fn := range listeners {
			fn(ev)
		}
	}
}

// StartEventLog initializes the event logging system
func (e *Engine) StartEventLog(filePath string) error {
	return e.eventLog.Start(filePath)
}

// StopEventLog gracefully stops the event logging system
func (e *Engine) StopEventLog() {
	e.eventLog.Stop()
}

// GetEventLogStats returns event log statistics for monitoring
func (e *Engine) GetEventLogStats() EventLogStats {
	return e.eventLog.Stats()
}
