package config

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/signalsfoundry/skyframe/model"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Tick != 16*time.Millisecond || cfg.ClockRate != 1 {
		t.Fatalf("tick=%s rate=%g", cfg.Tick, cfg.ClockRate)
	}
	if cfg.Width != 1920 || cfg.Height != 1080 {
		t.Fatalf("viewport = %dx%d", cfg.Width, cfg.Height)
	}
	if cfg.TLEParent != "Earth" || cfg.TLEFetchInterval != 6*time.Hour || len(cfg.TLEURLs) != 0 {
		t.Fatalf("tle config = %+v", cfg)
	}
	if m, _ := cfg.ViewMode(); m != model.ModeSky {
		t.Fatalf("mode = %v", m)
	}
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	if !cfg.Start(now).Equal(now) {
		t.Fatalf("Start should default to now")
	}
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("SKYFRAME_TICK", "50ms")
	t.Setenv("SKYFRAME_CLOCK_RATE", "3600")
	t.Setenv("SKYFRAME_START_TIME", "2024-04-08T18:00:00Z")
	t.Setenv("SKYFRAME_SKY_MODE", "horizon")
	t.Setenv("SKYFRAME_MODE", "solar-system")
	t.Setenv("SKYFRAME_OBSERVER_LAT", "47.6")
	t.Setenv("SKYFRAME_TLE_URLS", "http://a.example/tle,http://b.example/tle")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Tick != 50*time.Millisecond || cfg.ClockRate != 3600 || cfg.ObserverLat != 47.6 {
		t.Fatalf("cfg = %+v", cfg)
	}
	if want := time.Date(2024, 4, 8, 18, 0, 0, 0, time.UTC); !cfg.Start(time.Now()).Equal(want) {
		t.Fatalf("start = %s", cfg.StartTime)
	}
	if len(cfg.TLEURLs) != 2 || cfg.TLEURLs[1] != "http://b.example/tle" {
		t.Fatalf("urls = %v", cfg.TLEURLs)
	}
	if s, _ := cfg.Sky(); s != model.SkyHorizon {
		t.Fatalf("sky = %v", s)
	}
	if m, _ := cfg.ViewMode(); m != model.ModeSolarSystem {
		t.Fatalf("mode = %v", m)
	}
}

func TestLoadParseError(t *testing.T) {
	t.Setenv("SKYFRAME_VIEWPORT_WIDTH", "wide")
	_, err := Load()
	if err == nil || !strings.Contains(err.Error(), "parse env:") {
		t.Fatalf("err = %v, want parse env error", err)
	}
}

func TestValidate(t *testing.T) {
	base, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	cases := map[string]func(*Config){
		"zero tick":     func(c *Config) { c.Tick = 0 },
		"no viewport":   func(c *Config) { c.Height = 0 },
		"latitude":      func(c *Config) { c.ObserverLat = 91 },
		"tle no parent": func(c *Config) { c.TLEURLs = []string{"http://x"}; c.TLEParent = "" },
		"mode":          func(c *Config) { c.Mode = "orbit" },
		"sky":           func(c *Config) { c.SkyMode = "ecliptic" },
	}
	for name, mutate := range cases {
		c := base
		mutate(&c)
		if err := c.Validate(); !errors.Is(err, ErrInvalidConfig) {
			t.Fatalf("%s: err = %v, want ErrInvalidConfig", name, err)
		}
	}
}
