package control

import (
	"log"
	"sync"
	"sync/atomic"
	"time"
)

// CommandQueue buffers player commands between the transports and the engine.
// Enqueue never blocks. A worker drains the buffer and merges each run of
// consecutive displacement commands from one client into a single engine
// call, so a held key costs one lock round trip per drain instead of one per
// key repeat.
type CommandQueue struct {
	commands chan Command
	handler  *Handler
	workers  int
	maxMerge int
	wg       sync.WaitGroup
	running  atomic.Bool
	stopChan chan struct{}

	// Metrics
	enqueued    atomic.Uint64
	processed   atomic.Uint64
	merged      atomic.Uint64
	dropped     atomic.Uint64
	avgWaitTime atomic.Int64 // nanoseconds, exponential moving average
}

// QueueConfig holds configuration for the command queue
type QueueConfig struct {
	BufferSize int // Commands held before Enqueue starts dropping
	Workers    int // More than one worker gives up arrival order
	MaxMerge   int // Longest run of displacements folded into one call
}

// DefaultQueueConfig keeps commands in arrival order with a single worker.
func DefaultQueueConfig() QueueConfig {
	return QueueConfig{
		BufferSize: 256,
		Workers:    1,
		MaxMerge:   32,
	}
}

// NewCommandQueue creates a queue; workers start with Start.
func NewCommandQueue(handler *Handler, config QueueConfig) *CommandQueue {
	def := DefaultQueueConfig()
	if config.BufferSize <= 0 {
		config.BufferSize = def.BufferSize
	}
	if config.Workers <= 0 {
		config.Workers = def.Workers
	}
	if config.MaxMerge <= 0 {
		config.MaxMerge = 1
	}

	return &CommandQueue{
		commands: make(chan Command, config.BufferSize),
		handler:  handler,
		workers:  config.Workers,
		maxMerge: config.MaxMerge,
		stopChan: make(chan struct{}),
	}
}

// Start launches the workers
func (q *CommandQueue) Start() {
	if q.running.Swap(true) {
		return
	}

	log.Printf("🚀 CommandQueue starting: %d worker(s), buffer %d, merging up to %d moves",
		q.workers, cap(q.commands), q.maxMerge)

	for i := 0; i < q.workers; i++ {
		q.wg.Add(1)
		go q.worker()
	}
}

// Stop waits for the workers to exit. Commands still buffered are discarded.
func (q *CommandQueue) Stop() {
	if !q.running.Swap(false) {
		return
	}

	close(q.stopChan)
	q.wg.Wait()
	q.handler.Close()

	log.Printf("📊 CommandQueue stopped - enqueued: %d, processed: %d, merged: %d, dropped: %d",
		q.enqueued.Load(), q.processed.Load(), q.merged.Load(), q.dropped.Load())
}

// Enqueue stamps cmd with its arrival time and buffers it.
// Returns false when the buffer is full and the command was dropped.
func (q *CommandQueue) Enqueue(cmd Command) bool {
	cmd.ReceivedAt = time.Now()

	select {
	case q.commands <- cmd:
		q.enqueued.Add(1)
		return true
	default:
		if n := q.dropped.Add(1); n%100 == 1 {
			log.Printf("⚠️ CommandQueue full, dropped %s from %s (total dropped: %d)",
				cmd.Kind, cmd.ClientID, n)
		}
		return false
	}
}

func (q *CommandQueue) worker() {
	defer q.wg.Done()

	var carry *Command
	for {
		var cmd Command
		if carry != nil {
			cmd, carry = *carry, nil
		} else {
			select {
			case <-q.stopChan:
				return
			case cmd = <-q.commands:
				q.observeWait(cmd)
			}
		}

		if !cmd.Kind.Displaces() {
			q.handler.ProcessCommand(cmd)
			q.processed.Add(1)
			continue
		}

		var run []Command
		run, carry = q.collectRun(cmd)
		q.handler.ProcessDisplacements(run)
		q.processed.Add(uint64(len(run)))
		q.merged.Add(uint64(len(run) - 1))
	}
}

// collectRun takes the displacements from first's client that are already
// buffered behind it. The first command that ends the run is handed back so
// it is processed next, keeping arrival order.
func (q *CommandQueue) collectRun(first Command) ([]Command, *Command) {
	run := []Command{first}
	for len(run) < q.maxMerge {
		select {
		case next := <-q.commands:
			q.observeWait(next)
			if next.Kind.Displaces() && next.ClientID == first.ClientID {
				run = append(run, next)
				continue
			}
			return run, &next
		default:
			return run, nil
		}
	}
	return run, nil
}

func (q *CommandQueue) observeWait(cmd Command) {
	wait := time.Since(cmd.ReceivedAt)
	if wait > 100*time.Millisecond {
		log.Printf("⚠️ Command from %s waited %.1fms in queue",
			cmd.ClientID, float64(wait.Microseconds())/1000)
	}

	// EMA with alpha = 0.1
	current := q.avgWaitTime.Load()
	q.avgWaitTime.Store((current*9 + wait.Nanoseconds()) / 10)
}

// Stats returns current queue statistics
func (q *CommandQueue) Stats() QueueStats {
	pending := len(q.commands)
	return QueueStats{
		Enqueued:       q.enqueued.Load(),
		Processed:      q.processed.Load(),
		Merged:         q.merged.Load(),
		Dropped:        q.dropped.Load(),
		Pending:        uint64(pending),
		BufferSize:     uint64(cap(q.commands)),
		AvgWaitTimeMs:  float64(q.avgWaitTime.Load()) / 1e6,
		BufferUsagePct: float64(pending) / float64(cap(q.commands)) * 100,
	}
}

// QueueStats holds queue metrics
type QueueStats struct {
	Enqueued       uint64  `json:"enqueued"`
	Processed      uint64  `json:"processed"`
	Merged         uint64  `json:"merged"` // Displacements folded into an earlier engine call
	Dropped        uint64  `json:"dropped"`
	Pending        uint64  `json:"pending"`
	BufferSize     uint64  `json:"buffer_size"`
	AvgWaitTimeMs  float64 `json:"avg_wait_time_ms"`
	BufferUsagePct float64 `json:"buffer_usage_pct"`
}
