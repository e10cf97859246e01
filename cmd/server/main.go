package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os/signal"
	"syscall"
	"time"

	"mage-defense/internal/api"
	"mage-defense/internal/config"
	"mage-defense/internal/control"
	"mage-defense/internal/game"

	"github.com/joho/godotenv"
	"golang.org/x/sync/errgroup"
)

func main() {
	// Load .env file from parent directory
	if err := godotenv.Load("../.env"); err != nil {
		// Try current directory as fallback
		if err := godotenv.Load(".env"); err != nil {
			log.Println("💡 No .env file found, using environment variables only")
		}
	} else {
		log.Println("✅ Loaded environment from ../.env")
	}

	log.Println("🎮 ================================")
	log.Println("🎮  MAGE DEFENSE - GO ENGINE")
	log.Println("🎮 ================================")

	if err := run(); err != nil {
		log.Fatalf("❌ %v", err)
	}
	log.Println("👋 Goodbye!")
}

func run() error {
	// Defaults < config.yaml < environment
	appConfig, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	simCfg := appConfig.Simulation
	limits := appConfig.Limits

	log.Printf("🎮 Config: %d TPS, %.0fx%.0f viewport, spawn every %d ticks, fire every %d ticks",
		simCfg.TickRate, simCfg.ViewportWidth, simCfg.ViewportHeight, simCfg.SpawnInterval, simCfg.FireInterval)
	log.Printf("🛡️ Resource limits: %d monsters, %d bullets, %d websocket clients (%d per IP)",
		limits.MaxMonsters, limits.MaxBullets, limits.MaxWSClients, limits.MaxWSPerIP)

	engine, err := game.NewEngine(game.EngineConfig{
		Simulation: simCfg,
		Limits:     limits,
	})
	if err != nil {
		return fmt.Errorf("creating engine: %w", err)
	}
	engine.SetTickObserver(api.ObserveTick)

	// Start event log
	if appConfig.EventLog.Enabled {
		if err := engine.StartEventLog(appConfig.EventLog.Path); err != nil {
			log.Printf("⚠️ Event log disabled: %v", err)
		} else {
			log.Printf("📝 Event log: %s", appConfig.EventLog.Path)
		}
	}

	// Player commands from websocket clients
	commands := control.NewCommandQueue(
		control.NewHandler(engine, control.HandlerConfig{
			RateLimit: control.DefaultRateLimitConfig,
			InputStep: simCfg.InputStep,
		}),
		control.DefaultQueueConfig(),
	)

	server := api.NewServer(engine, commands, appConfig)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, ctx := errgroup.WithContext(ctx)

	commands.Start()
	engine.Start()
	log.Println("✅ Game Engine started")

	g.Go(func() error {
		// The game keeps running without the debug server
		if err := api.StartDebugServer(ctx, appConfig.Observability); err != nil {
			log.Printf("⚠️ Debug server error: %v", err)
		}
		return nil
	})

	g.Go(func() error {
		addr := fmt.Sprintf(":%d", appConfig.Server.Port)
		log.Printf("🌐 API server on http://localhost%s (websocket: /ws)", addr)
		return server.Start(ctx, addr)
	})

	g.Go(func() error {
		ticker := time.NewTicker(5 * time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return nil
			case <-ticker.C:
				api.UpdateEventLogStats(engine.GetEventLogStats())
			}
		}
	})

	log.Println("✅ Server ready! Press Ctrl+C to stop.")
	<-ctx.Done()

	log.Println("🛑 Shutting down...")
	engine.Stop()
	commands.Stop()
	err = g.Wait()
	engine.StopEventLog()
	api.UpdateEventLogStats(engine.GetEventLogStats())

	if err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}
