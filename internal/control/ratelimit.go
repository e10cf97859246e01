package control

import (
	"sync"
	"time"
)

// RateLimiter implements per-client command rate limiting
type RateLimiter struct {
	mu           sync.Mutex
	clientCounts map[string]*clientLimit
	config       RateLimitConfig
	now          func() time.Time

	stopOnce sync.Once
	stopChan chan struct{}
}

type clientLimit struct {
	count     int
	windowEnd time.Time
	lastCmd   time.Time
}

// RateLimitConfig configures rate limiting behavior
type RateLimitConfig struct {
	// MaxPerWindow is max commands per window
	MaxPerWindow int
	// WindowDuration is the sliding window size
	WindowDuration time.Duration
	// CooldownDuration is minimum time between commands
	CooldownDuration time.Duration
}

// DefaultRateLimitConfig allows key-repeat speed movement from one client
var DefaultRateLimitConfig = RateLimitConfig{
	MaxPerWindow:     60,                    // 60 commands
	WindowDuration:   time.Second,           // per second
	CooldownDuration: 10 * time.Millisecond, // 10ms between commands
}

// NewRateLimiter creates a new rate limiter
func NewRateLimiter(cfg RateLimitConfig) *RateLimiter {
	rl := &RateLimiter{
		clientCounts: make(map[string]*clientLimit),
		config:       cfg,
		now:          time.Now,
		stopChan:     make(chan struct{}),
	}

	// Start cleanup goroutine
	go rl.cleanup()

	return rl
}

// Allow checks if a client can execute a command now
func (rl *RateLimiter) Allow(clientID string) bool {
	return rl.AllowAt(clientID, rl.now())
}

// AllowAt checks a command that arrived at now. Queued commands are judged
// by their arrival time, so a backlog drained at once is not mistaken for a burst.
func (rl *RateLimiter) AllowAt(clientID string, now time.Time) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	limit, exists := rl.clientCounts[clientID]
	if !exists {
		rl.clientCounts[clientID] = &clientLimit{
			count:     1,
			windowEnd: now.Add(rl.config.WindowDuration),
			lastCmd:   now,
		}
		return true
	}

	// Check cooldown
	if now.Sub(limit.lastCmd) < rl.config.CooldownDuration {
		return false
	}

	// Check/reset window
	if now.After(limit.windowEnd) {
		limit.count = 1
		limit.windowEnd = now.Add(rl.config.WindowDuration)
		limit.lastCmd = now
		return true
	}

	// Check count
	if limit.count >= rl.config.MaxPerWindow {
		return false
	}

	limit.count++
	limit.lastCmd = now
	return true
}

// Stop ends the cleanup goroutine.
func (rl *RateLimiter) Stop() {
	rl.stopOnce.Do(func() { close(rl.stopChan) })
}

// cleanup removes old entries every minute
func (rl *RateLimiter) cleanup() {
	ticker := time.NewTicker(1 * time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-rl.stopChan:
			return
		case <-ticker.C:
			rl.prune(rl.now().Add(-5 * time.Minute))
		}
	}
}

// prune drops clients idle since before cutoff
func (rl *RateLimiter) prune(cutoff time.Time) {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	for key, limit := range rl.clientCounts {
		if limit.lastCmd.Before(cutoff) {
			delete(rl.clientCounts, key)
		}
	}
}
