package api_test

import (
	"sync"

	"mage-defense/internal/control"
	"mage-defense/internal/game"
)

// MockEngine implements api.ServerEngine for testing
type MockEngine struct {
	mu        sync.Mutex
	snapshot  game.GameSnapshot
	nudges    []game.Direction
	dx, dy    float64
	resets    int
	resizeErr error
	moveErr   error
	viewport  [2]float64
	listeners []func(game.Event)
}

func NewMockEngine() *MockEngine {
	return &MockEngine{
		snapshot: game.GameSnapshot{
			TickNumber:   42,
			Status:       game.StatusRunning,
			Round:        1,
			Mage:         game.Mage{Pos: game.Point{X: 640, Y: 360}, Width: 32, Height: 32},
			Monsters:     []game.MonsterSnapshot{{Archetype: "ghost", X: 10, Y: 20, Width: 32, Height: 32}},
			MonsterCount: 1,
			Kills:        3,
			TotalKills:   5,
		},
		viewport: [2]float64{1280, 720},
	}
}

func (m *MockEngine) GetSnapshot() *game.GameSnapshot {
	m.mu.Lock()
	defer m.mu.Unlock()
	snap := m.snapshot
	return &snap
}

func (m *MockEngine) Nudge(d game.Direction) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nudges = append(m.nudges, d)
}

func (m *MockEngine) Displace(dx, dy float64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.moveErr != nil {
		return m.moveErr
	}
	m.dx += dx
	m.dy += dy
	return nil
}

func (m *MockEngine) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.resets++
	m.snapshot.Round++
}

func (m *MockEngine) Resize(width, height float64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.resizeErr != nil {
		return m.resizeErr
	}
	m.viewport = [2]float64{width, height}
	return nil
}

func (m *MockEngine) SpawnZone() ([]game.Point, game.AABB) {
	m.mu.Lock()
	defer m.mu.Unlock()
	w, h := m.viewport[0], m.viewport[1]
	return []game.Point{{X: 0, Y: 0}, {X: w - 10, Y: h - 10}},
		game.AABB{X: w/2 - 100, Y: h/2 - 100, Width: 200, Height: 200}
}

func (m *MockEngine) GetEventLogStats() game.EventLogStats {
	return game.EventLogStats{Total: 7, Written: 7}
}

func (m *MockEngine) Subscribe(fn func(game.Event)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.listeners = append(m.listeners, fn)
}

// Publish delivers ev to every subscriber, like the engine's tick goroutine does
func (m *MockEngine) Publish(ev game.Event) {
	m.mu.Lock()
	listeners := m.listeners
	m.mu.Unlock()
	for _, fn := range listeners {
		fn(ev)
	}
}

func (m *MockEngine) Subscribers() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.listeners)
}

// MockQueue implements api.CommandQueue for testing
type MockQueue struct {
	mu       sync.Mutex
	commands []control.Command
	full     bool
}

func (q *MockQueue) Enqueue(cmd control.Command) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.full {
		return false
	}
	q.commands = append(q.commands, cmd)
	return true
}

func (q *MockQueue) Stats() control.QueueStats {
	q.mu.Lock()
	defer q.mu.Unlock()
	return control.QueueStats{Enqueued: uint64(len(q.commands)), BufferSize: 256}
}

func (q *MockQueue) Commands() []control.Command {
	q.mu.Lock()
	defer q.mu.Unlock()
	return append([]control.Command(nil), q.commands...)
}
