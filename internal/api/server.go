package api

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"time"

	"mage-defense/internal/config"

	"github.com/go-chi/chi/v5"
)

// ServerEngine is everything the server needs from the game engine.
type ServerEngine interface {
	EngineInterface
	WSEngine
}

// CommandQueue is the command pipeline fed by websocket clients.
type CommandQueue interface {
	CommandSink
	QueueStatser
}

// Server is the HTTP API server with WebSocket support.
// It combines the HTTP router with WebSocket hub for real-time updates.
type Server struct {
	engine      ServerEngine
	router      *chi.Mux
	wsHub       *WebSocketHub
	rateLimiter *IPRateLimiter
}

// NewServer creates a new API server.
//
// IMPORTANT: Background workers do NOT start until Start() is called.
// This enables testing by allowing the server to be constructed without
// starting the hub or opening network listeners.
//
// For testing HTTP endpoints without WebSocket support, use NewRouter() directly.
func NewServer(engine ServerEngine, commands CommandQueue, cfg config.AppConfig) *Server {
	s := &Server{
		engine:      engine,
		rateLimiter: NewIPRateLimiter(RateLimitFromConfig(cfg.Server)),
	}

	var stats QueueStatser
	var sink CommandSink
	if commands != nil {
		stats, sink = commands, commands
	}

	s.wsHub = NewWebSocketHub(cfg.Limits, cfg.Server.CORSOrigins, sink)

	// Build router using the factory
	s.router = NewRouter(RouterConfig{
		Engine:      engine,
		Commands:    stats,
		RateLimiter: s.rateLimiter,
		CORSOrigins: cfg.Server.CORSOrigins,
	})

	// Add WebSocket routes (these need the wsHub instance)
	s.router.Get("/ws", s.wsHub.HandleWebSocket)

	return s
}

// Start starts the hub and the broadcast loop, then serves HTTP on addr
// until ctx is cancelled.
func (s *Server) Start(ctx context.Context, addr string) error {
	go s.wsHub.Run(ctx)
	s.wsHub.StartBroadcastLoop(ctx, s.engine)
	defer s.rateLimiter.Stop()

	srv := &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	log.Printf("🌐 API server starting on %s", addr)
	if err := serveUntilDone(ctx, srv); err != nil {
		return fmt.Errorf("api server: %w", err)
	}
	log.Println("🌐 API server stopped")
	return nil
}

// Router returns the HTTP handler for use with httptest.
// Use this in integration tests instead of calling Start().
func (s *Server) Router() http.Handler {
	return s.router
}

// Hub exposes the websocket hub so tests can run it without a listener.
func (s *Server) Hub() *WebSocketHub {
	return s.wsHub
}
