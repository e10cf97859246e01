package control

import (
	"log"

	"mage-defense/internal/game"
)

// Engine is the part of the game engine commands act on.
type Engine interface {
	Displace(dx, dy float64) error
	Reset()
}

// HandlerConfig configures how commands turn into engine calls.
type HandlerConfig struct {
	RateLimit RateLimitConfig
	// InputStep is the displacement of one directional nudge
	InputStep float64
}

// DefaultHandlerConfig matches the default simulation input step.
func DefaultHandlerConfig() HandlerConfig {
	return HandlerConfig{
		RateLimit: DefaultRateLimitConfig,
		InputStep: 10,
	}
}

// Handler applies parsed commands to the engine
type Handler struct {
	engine      Engine
	inputStep   float64
	rateLimiter *RateLimiter
}

// NewHandler creates a new command handler
func NewHandler(engine Engine, cfg HandlerConfig) *Handler {
	return &Handler{
		engine:      engine,
		inputStep:   cfg.InputStep,
		rateLimiter: NewRateLimiter(cfg.RateLimit),
	}
}

// ProcessCommand handles a single command.
// Returns false if the command was rate limited, not understood or refused by the engine.
func (h *Handler) ProcessCommand(cmd Command) bool {
	if cmd.Kind.Displaces() {
		return h.ProcessDisplacements([]Command{cmd}) == 1
	}

	if !h.allow(cmd) {
		return false
	}

	switch cmd.Kind {
	case KindReset:
		log.Printf("🔄 Reset requested by %s", cmd.ClientID)
		h.engine.Reset()
		return true
	default:
		// Unknown command - silently ignore
		return false
	}
}

// ProcessDisplacements sums a run of nudge and move commands into a single
// engine call. Each command is still rate limited on its own; the return
// value is how many were applied.
func (h *Handler) ProcessDisplacements(cmds []Command) int {
	var total game.Point
	var allowed []game.Point
	for _, cmd := range cmds {
		if !h.allow(cmd) {
			continue
		}
		var d game.Point
		switch cmd.Kind {
		case KindNudge:
			d = cmd.Direction.Displacement(h.inputStep)
		case KindMove:
			d = game.Point{X: cmd.DX, Y: cmd.DY}
		default:
			continue
		}
		total = total.Add(d)
		allowed = append(allowed, d)
	}

	switch {
	case len(allowed) == 0:
		return 0
	case h.engine.Displace(total.X, total.Y) == nil:
		return len(allowed)
	}

	// The sum was refused; apply the commands one by one so only the bad ones are lost
	applied := 0
	for _, d := range allowed {
		if err := h.engine.Displace(d.X, d.Y); err != nil {
			log.Printf("⚠️ Displacement from %s refused: %v", cmds[0].ClientID, err)
			continue
		}
		applied++
	}
	return applied
}

func (h *Handler) allow(cmd Command) bool {
	at := cmd.ReceivedAt
	if at.IsZero() {
		at = h.rateLimiter.now()
	}
	if h.rateLimiter.AllowAt(cmd.ClientID, at) {
		return true
	}
	log.Printf("🚫 Rate limited: %s", cmd.ClientID)
	return false
}

// Close releases the rate limiter.
func (h *Handler) Close() {
	h.rateLimiter.Stop()
}
