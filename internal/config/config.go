// Package config loads process configuration from SKYFRAME_* environment
// variables.
package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"

	"github.com/signalsfoundry/skyframe/internal/logging"
	"github.com/signalsfoundry/skyframe/model"
)

// Config is the driver's configuration. Command-line flags override it.
type Config struct {
	// ScenePath is a YAML/JSON scene file; empty loads the built-in solar
	// system.
	ScenePath string `env:"SKYFRAME_SCENE"`
	// Place names the scene place to start at.
	Place string `env:"SKYFRAME_PLACE"`
	Mode  string `env:"SKYFRAME_MODE" envDefault:"sky"`

	Tick      time.Duration `env:"SKYFRAME_TICK" envDefault:"16ms"`
	ClockRate float64       `env:"SKYFRAME_CLOCK_RATE" envDefault:"1"`
	// StartTime is RFC 3339; zero means now.
	StartTime time.Time `env:"SKYFRAME_START_TIME"`
	// RunFor stops the tick loop after this much wall time; zero runs
	// until interrupted.
	RunFor time.Duration `env:"SKYFRAME_RUN_FOR"`

	Width       int     `env:"SKYFRAME_VIEWPORT_WIDTH" envDefault:"1920"`
	Height      int     `env:"SKYFRAME_VIEWPORT_HEIGHT" envDefault:"1080"`
	SkyMode     string  `env:"SKYFRAME_SKY_MODE" envDefault:"equatorial"`
	ObserverLat float64 `env:"SKYFRAME_OBSERVER_LAT"`
	ObserverLng float64 `env:"SKYFRAME_OBSERVER_LNG"`

	MetricsAddr string `env:"SKYFRAME_METRICS_ADDR" envDefault:":9090"`
	GRPCAddr    string `env:"SKYFRAME_GRPC_ADDR" envDefault:":50051"`

	TLEURLs          []string      `env:"SKYFRAME_TLE_URLS" envSeparator:","`
	TLEParent        string        `env:"SKYFRAME_TLE_PARENT" envDefault:"Earth"`
	TLEFetchInterval time.Duration `env:"SKYFRAME_TLE_FETCH_INTERVAL" envDefault:"6h"`

	LogLevel  string `env:"LOG_LEVEL" envDefault:"info"`
	LogFormat string `env:"LOG_FORMAT" envDefault:"text"`
}

// ErrInvalidConfig wraps validation failures.
var ErrInvalidConfig = errors.New("invalid config")

// Load parses the environment and validates the result.
func Load() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks ranges and enumerations.
func (c Config) Validate() error {
	switch {
	case c.Tick <= 0:
		return fmt.Errorf("%w: tick must be positive, got %s", ErrInvalidConfig, c.Tick)
	case c.Width <= 0 || c.Height <= 0:
		return fmt.Errorf("%w: viewport %dx%d", ErrInvalidConfig, c.Width, c.Height)
	case c.ObserverLat < -90 || c.ObserverLat > 90:
		return fmt.Errorf("%w: observer latitude %g", ErrInvalidConfig, c.ObserverLat)
	case len(c.TLEURLs) > 0 && c.TLEParent == "":
		return fmt.Errorf("%w: TLE import needs a parent frame", ErrInvalidConfig)
	}
	if _, err := c.ViewMode(); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	if _, err := c.Sky(); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	return nil
}

// ViewMode parses Mode.
func (c Config) ViewMode() (model.ViewMode, error) {
	return model.ParseViewMode(c.Mode)
}

// Sky parses SkyMode.
func (c Config) Sky() (model.SkyMode, error) {
	return model.ParseSkyMode(c.SkyMode)
}

// Start returns StartTime, or now when unset.
func (c Config) Start(now time.Time) time.Time {
	if c.StartTime.IsZero() {
		return now
	}
	return c.StartTime
}

// Logging returns the logger configuration.
func (c Config) Logging() logging.Config {
	return logging.Config{Level: c.LogLevel, Format: c.LogFormat, AddSource: true}
}
