// Package config provides centralized configuration management.
// This is the SINGLE SOURCE OF TRUTH for simulation and server settings.
//
// Values are layered: built-in defaults, then an optional YAML file, then
// environment variables. All other parts of the codebase read from AppConfig.
package config

import (
	"errors"
	"fmt"
	"math"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// =============================================================================
// SIMULATION CONFIGURATION
// =============================================================================

// Size is a width/height pair in world units.
type Size struct {
	Width  float64 `yaml:"width"`
	Height float64 `yaml:"height"`
}

// Archetype describes one kind of monster the spawner can pick.
type Archetype struct {
	Name string `yaml:"name"`
	Size Size   `yaml:"size"`
}

// SimulationConfig holds every tunable of the tick simulation.
// Intervals are counted in ticks, distances in world units.
type SimulationConfig struct {
	TickRate       int     `yaml:"tick_rate"` // Ticks per second driven by the engine
	ViewportWidth  float64 `yaml:"viewport_width"`
	ViewportHeight float64 `yaml:"viewport_height"`

	SpawnRange    float64 `yaml:"spawn_range"`    // Half-width of the keep-out square around the mage
	GridStep      float64 `yaml:"grid_step"`      // Spacing of the spawn grid
	SpawnInterval int     `yaml:"spawn_interval"` // Ticks between spawns

	FireInterval     int     `yaml:"fire_interval"` // Ticks between volleys
	BulletsPerVolley int     `yaml:"bullets_per_volley"`
	BulletRange      float64 `yaml:"bullet_range"` // Travel budget of a fresh bullet
	BulletSpeed      float64 `yaml:"bullet_speed"` // Max displacement per tick

	MonsterStep float64 `yaml:"monster_step"` // Monster displacement per tick
	InputStep   float64 `yaml:"input_step"`   // Displacement per directional command

	MageSize   Size        `yaml:"mage_size"`
	BulletSize Size        `yaml:"bullet_size"`
	Archetypes []Archetype `yaml:"archetypes"`

	Seed int64 `yaml:"seed"` // 0 means seed from the clock
}

// DefaultSimulation returns the reference tuning of the game.
func DefaultSimulation() SimulationConfig {
	return SimulationConfig{
		TickRate:         60,
		ViewportWidth:    1280,
		ViewportHeight:   720,
		SpawnRange:       300,
		GridStep:         10,
		SpawnInterval:    60,
		FireInterval:     90,
		BulletsPerVolley: 1,
		BulletRange:      500,
		BulletSpeed:      8,
		MonsterStep:      1,
		InputStep:        10,
		MageSize:         Size{Width: 32, Height: 32},
		BulletSize:       Size{Width: 8, Height: 8},
		Archetypes: []Archetype{
			{Name: "ghost", Size: Size{Width: 32, Height: 32}},
			{Name: "umaro", Size: Size{Width: 32, Height: 32}},
			{Name: "redstar", Size: Size{Width: 32, Height: 32}},
		},
	}
}

// Validate reports the first setting that would make the simulation degenerate.
func (c SimulationConfig) Validate() error {
	switch {
	case c.TickRate <= 0:
		return fmt.Errorf("%w: tick_rate must be positive", ErrInvalidConfig)
	case !(c.ViewportWidth > 0 && c.ViewportHeight > 0) ||
		math.IsInf(c.ViewportWidth, 0) || math.IsInf(c.ViewportHeight, 0):
		return fmt.Errorf("%w: viewport must be positive and finite", ErrInvalidConfig)
	case c.GridStep <= 0:
		return fmt.Errorf("%w: grid_step must be positive", ErrInvalidConfig)
	case c.SpawnRange < 0:
		return fmt.Errorf("%w: spawn_range must not be negative", ErrInvalidConfig)
	case c.SpawnInterval <= 0 || c.FireInterval <= 0:
		return fmt.Errorf("%w: spawn_interval and fire_interval must be positive", ErrInvalidConfig)
	case c.BulletsPerVolley < 0:
		return fmt.Errorf("%w: bullets_per_volley must not be negative", ErrInvalidConfig)
	case c.BulletSpeed <= 0 || c.BulletRange <= 0:
		return fmt.Errorf("%w: bullet_speed and bullet_range must be positive", ErrInvalidConfig)
	case c.MonsterStep < 0:
		return fmt.Errorf("%w: monster_step must not be negative", ErrInvalidConfig)
	case len(c.Archetypes) == 0:
		return fmt.Errorf("%w: at least one archetype is required", ErrInvalidConfig)
	}
	for _, a := range c.Archetypes {
		if a.Size.Width < 0 || a.Size.Height < 0 {
			return fmt.Errorf("%w: archetype %q has a negative size", ErrInvalidConfig, a.Name)
		}
	}
	if c.MageSize.Width < 0 || c.MageSize.Height < 0 || c.BulletSize.Width < 0 || c.BulletSize.Height < 0 {
		return fmt.Errorf("%w: entity sizes must not be negative", ErrInvalidConfig)
	}
	return nil
}

// ErrInvalidConfig is wrapped by every validation failure.
var ErrInvalidConfig = errors.New("invalid config")

// =============================================================================
// GAME RESOURCE LIMITS
// =============================================================================

// ResourceLimits caps entity and connection counts.
type ResourceLimits struct {
	MaxMonsters  int `yaml:"max_monsters"`  // Spawns beyond this are dropped
	MaxBullets   int `yaml:"max_bullets"`   // Volleys beyond this are dropped
	MaxWSClients int `yaml:"max_ws_clients"`
	MaxWSPerIP   int `yaml:"max_ws_per_ip"`

	// MaxViewport bounds each viewport side and each component of a single
	// displacement, so one request cannot make the spawn grid or the world
	// coordinates blow up.
	MaxViewport float64 `yaml:"max_viewport"`
}

// DefaultLimits returns the default resource limits.
func DefaultLimits() ResourceLimits {
	return ResourceLimits{
		MaxMonsters:  500,
		MaxBullets:   200,
		MaxWSClients: 500,
		MaxWSPerIP:   10,
		MaxViewport:  4096,
	}
}

// =============================================================================
// SERVER CONFIGURATION
// =============================================================================

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port        int      `yaml:"port"`
	CORSOrigins []string `yaml:"cors_origins"`

	// Per-IP HTTP budget. Input posts arrive at key-repeat speed.
	RequestsPerSecond float64 `yaml:"requests_per_second"`
	RequestBurst      int     `yaml:"request_burst"`
}

// DefaultServer returns the default server configuration.
func DefaultServer() ServerConfig {
	return ServerConfig{
		Port:              3000,
		RequestsPerSecond: 30,
		RequestBurst:      60,
	}
}

// ServerFromEnv applies environment variable overrides.
func ServerFromEnv(cfg ServerConfig) ServerConfig {
	if p := getEnvInt("PORT", 0); p > 0 {
		cfg.Port = p
	}
	if origins := os.Getenv("CORS_ORIGINS"); origins != "" {
		cfg.CORSOrigins = splitList(origins)
	}
	if v := getEnvFloat("RATE_LIMIT_RPS", 0); v > 0 {
		cfg.RequestsPerSecond = v
	}
	if v := getEnvInt("RATE_LIMIT_BURST", 0); v > 0 {
		cfg.RequestBurst = v
	}
	return cfg
}

// =============================================================================
// OBSERVABILITY & EVENT LOG
// =============================================================================

// ObservabilityConfig configures the debug server.
type ObservabilityConfig struct {
	Enabled       bool   `yaml:"enabled"`
	ListenAddr    string `yaml:"listen_addr"` // MUST stay on localhost in production
	BasicAuthUser string `yaml:"basic_auth_user"`
	BasicAuthPass string `yaml:"basic_auth_pass"`
}

// DefaultObservability returns safe defaults.
func DefaultObservability() ObservabilityConfig {
	return ObservabilityConfig{
		Enabled:    true,
		ListenAddr: "127.0.0.1:6060",
	}
}

// EventLogConfig configures the JSONL event log.
type EventLogConfig struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path"`
}

// DefaultEventLog returns the default event log configuration.
func DefaultEventLog() EventLogConfig {
	return EventLogConfig{
		Enabled: true,
		Path:    "events.jsonl",
	}
}

// =============================================================================
// COMPLETE APP CONFIGURATION
// =============================================================================

// AppConfig holds the complete application configuration.
type AppConfig struct {
	Simulation    SimulationConfig    `yaml:"simulation"`
	Server        ServerConfig        `yaml:"server"`
	Limits        ResourceLimits      `yaml:"limits"`
	Observability ObservabilityConfig `yaml:"observability"`
	EventLog      EventLogConfig      `yaml:"event_log"`
}

// Default returns the complete configuration with built-in values only.
func Default() AppConfig {
	return AppConfig{
		Simulation:    DefaultSimulation(),
		Server:        DefaultServer(),
		Limits:        DefaultLimits(),
		Observability: DefaultObservability(),
		EventLog:      DefaultEventLog(),
	}
}

// LoadFile reads a YAML config on top of the defaults.
// A missing file is not an error: the defaults are returned.
func LoadFile(path string) (AppConfig, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return cfg, fmt.Errorf("reading config %s: %w", path, err)
	}

	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parsing config %s: %w", path, err)
	}

	return cfg, nil
}

// Load returns the complete configuration: defaults, then the YAML file at
// CONFIG_PATH (default "config.yaml"), then environment overrides.
func Load() (AppConfig, error) {
	cfg, err := LoadFile(getEnvWithDefault("CONFIG_PATH", "config.yaml"))
	if err != nil {
		return cfg, err
	}

	cfg.Simulation = SimulationFromEnv(cfg.Simulation)
	cfg.Server = ServerFromEnv(cfg.Server)
	if v := getEnvFloat("MAX_VIEWPORT", 0); v > 0 {
		cfg.Limits.MaxViewport = v
	}
	if os.Getenv("DISABLE_DEBUG_SERVER") == "true" {
		cfg.Observability.Enabled = false
	}
	if p := os.Getenv("EVENT_LOG_PATH"); p != "" {
		cfg.EventLog.Path = p
	}
	if os.Getenv("EVENT_LOG_ENABLED") == "false" {
		cfg.EventLog.Enabled = false
	}

	if err := cfg.Simulation.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// SimulationFromEnv applies environment variable overrides.
func SimulationFromEnv(cfg SimulationConfig) SimulationConfig {
	if v := getEnvInt("TICK_RATE", 0); v > 0 {
		cfg.TickRate = v
	}
	if v := getEnvFloat("VIEWPORT_WIDTH", 0); v > 0 {
		cfg.ViewportWidth = v
	}
	if v := getEnvFloat("VIEWPORT_HEIGHT", 0); v > 0 {
		cfg.ViewportHeight = v
	}
	if v := getEnvFloat("SPAWN_RANGE", -1); v >= 0 {
		cfg.SpawnRange = v
	}
	if v := getEnvInt("SPAWN_INTERVAL", 0); v > 0 {
		cfg.SpawnInterval = v
	}
	if v := getEnvInt("FIRE_INTERVAL", 0); v > 0 {
		cfg.FireInterval = v
	}
	if v := getEnvInt("BULLETS_PER_VOLLEY", -1); v >= 0 {
		cfg.BulletsPerVolley = v
	}
	if v := getEnvFloat("BULLET_SPEED", 0); v > 0 {
		cfg.BulletSpeed = v
	}
	if v := getEnvFloat("BULLET_RANGE", 0); v > 0 {
		cfg.BulletRange = v
	}
	if v := getEnvFloat("MONSTER_STEP", -1); v >= 0 {
		cfg.MonsterStep = v
	}
	if v := getEnvInt("SEED", 0); v != 0 {
		cfg.Seed = int64(v)
	}
	return cfg
}

// =============================================================================
// HELPER FUNCTIONS
// =============================================================================

func getEnvWithDefault(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return defaultVal
}

func getEnvFloat(key string, defaultVal float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return defaultVal
}

func splitList(s string) []string {
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
