package api

import (
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"mage-defense/internal/config"

	"golang.org/x/time/rate"
)

// RateLimitConfig configures the per-IP HTTP limiter
type RateLimitConfig struct {
	RequestsPerSecond float64       // Token refill rate per IP
	Burst             int           // Bucket size per IP
	CleanupInterval   time.Duration // Idle buckets are dropped after twice this
}

// RateLimitFromConfig derives the HTTP limiter settings from the server config.
func RateLimitFromConfig(cfg config.ServerConfig) RateLimitConfig {
	def := config.DefaultServer()
	rl := RateLimitConfig{
		RequestsPerSecond: cfg.RequestsPerSecond,
		Burst:             cfg.RequestBurst,
		CleanupInterval:   5 * time.Minute,
	}
	if rl.RequestsPerSecond <= 0 {
		rl.RequestsPerSecond = def.RequestsPerSecond
	}
	if rl.Burst <= 0 {
		rl.Burst = def.RequestBurst
	}
	return rl
}

// LimiterStats counts limiter decisions.
type LimiterStats struct {
	Allowed  uint64 `json:"allowed"`
	Rejected uint64 `json:"rejected"`
	Tracked  int    `json:"tracked"` // Clients currently holding state
}

type ipBucket struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// IPRateLimiter gives every client IP its own token bucket
type IPRateLimiter struct {
	cfg RateLimitConfig

	mu      sync.Mutex
	buckets map[string]*ipBucket
	stats   LimiterStats

	stopOnce sync.Once
	stopChan chan struct{}
}

// NewIPRateLimiter creates the limiter and its idle-bucket sweeper
func NewIPRateLimiter(cfg RateLimitConfig) *IPRateLimiter {
	if cfg.CleanupInterval <= 0 {
		cfg.CleanupInterval = 5 * time.Minute
	}
	rl := &IPRateLimiter{
		cfg:      cfg,
		buckets:  make(map[string]*ipBucket),
		stopChan: make(chan struct{}),
	}
	go rl.sweep()
	return rl
}

// Allow spends one token from ip's bucket
func (rl *IPRateLimiter) Allow(ip string) bool {
	now := time.Now()

	rl.mu.Lock()
	defer rl.mu.Unlock()

	b, ok := rl.buckets[ip]
	if !ok {
		b = &ipBucket{limiter: rate.NewLimiter(rate.Limit(rl.cfg.RequestsPerSecond), rl.cfg.Burst)}
		rl.buckets[ip] = b
	}
	b.lastSeen = now

	if b.limiter.AllowN(now, 1) {
		rl.stats.Allowed++
		return true
	}
	rl.stats.Rejected++
	return false
}

// Middleware answers 429 once a client's bucket is empty
func (rl *IPRateLimiter) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !rl.Allow(GetClientIP(r)) {
			RecordConnectionRejected("rate_limit")
			w.Header().Set("Retry-After", "1")
			http.Error(w, "Too Many Requests", http.StatusTooManyRequests)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// Stats returns the limiter counters
func (rl *IPRateLimiter) Stats() LimiterStats {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	s := rl.stats
	s.Tracked = len(rl.buckets)
	return s
}

// Stop ends the sweeper
func (rl *IPRateLimiter) Stop() {
	rl.stopOnce.Do(func() { close(rl.stopChan) })
}

func (rl *IPRateLimiter) sweep() {
	ticker := time.NewTicker(rl.cfg.CleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-rl.stopChan:
			return
		case now := <-ticker.C:
			rl.prune(now.Add(-2 * rl.cfg.CleanupInterval))
		}
	}
}

// prune drops buckets idle since before cutoff
func (rl *IPRateLimiter) prune(cutoff time.Time) {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	for ip, b := range rl.buckets {
		if b.lastSeen.Before(cutoff) {
			delete(rl.buckets, ip)
		}
	}
}

// Connection rejection reasons, also used as metric labels
const (
	RejectTotalLimit = "ws_total_limit"
	RejectIPLimit    = "ws_ip_limit"
)

// ConnectionLimiter caps live websocket connections overall and per IP.
// Both caps are checked and reserved in one step.
type ConnectionLimiter struct {
	maxTotal int
	maxPerIP int

	mu       sync.Mutex
	total    int
	perIP    map[string]int
	rejected uint64
}

// NewConnectionLimiter reads the caps from limits; zero means unlimited.
func NewConnectionLimiter(limits config.ResourceLimits) *ConnectionLimiter {
	return &ConnectionLimiter{
		maxTotal: limits.MaxWSClients,
		maxPerIP: limits.MaxWSPerIP,
		perIP:    make(map[string]int),
	}
}

// Acquire reserves a slot for ip. On refusal it returns the reason.
func (cl *ConnectionLimiter) Acquire(ip string) (string, bool) {
	cl.mu.Lock()
	defer cl.mu.Unlock()

	switch {
	case cl.maxTotal > 0 && cl.total >= cl.maxTotal:
		cl.rejected++
		return RejectTotalLimit, false
	case cl.maxPerIP > 0 && cl.perIP[ip] >= cl.maxPerIP:
		cl.rejected++
		return RejectIPLimit, false
	}

	cl.total++
	cl.perIP[ip]++
	return "", true
}

// Release frees a slot reserved by Acquire
func (cl *ConnectionLimiter) Release(ip string) {
	cl.mu.Lock()
	defer cl.mu.Unlock()

	n, ok := cl.perIP[ip]
	if !ok {
		return
	}
	cl.total--
	if n <= 1 {
		delete(cl.perIP, ip)
	} else {
		cl.perIP[ip] = n - 1
	}
}

// Stats reports live connections and refusals
func (cl *ConnectionLimiter) Stats() LimiterStats {
	cl.mu.Lock()
	defer cl.mu.Unlock()
	return LimiterStats{
		Allowed:  uint64(cl.total),
		Rejected: cl.rejected,
		Tracked:  len(cl.perIP),
	}
}

// GetClientIP extracts the client IP from an HTTP request.
// Forwarding headers are trusted as is, so run behind a proxy that sets them.
func GetClientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		return strings.TrimSpace(first)
	}
	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		return strings.TrimSpace(xri)
	}

	ip, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return ip
}

// DefaultAllowedOrigins are accepted for CORS and websocket upgrades when none are configured
var DefaultAllowedOrigins = []string{
	"http://localhost:*",
	"http://127.0.0.1:*",
}

// IsAllowedOrigin checks an origin against allowed, where an entry ending in
// ":*" matches any port and "*" matches everything.
func IsAllowedOrigin(origin string, allowed []string) bool {
	if origin == "" {
		return false
	}

	for _, a := range allowed {
		switch {
		case a == "*" || a == origin:
			return true
		case strings.HasSuffix(a, ":*"):
			base := strings.TrimSuffix(a, ":*")
			if origin == base || strings.HasPrefix(origin, base+":") {
				return true
			}
		}
	}

	return false
}
