package main

import (
	"context"
	"flag"
	"net"
	"testing"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"github.com/signalsfoundry/skyframe/internal/config"
	"github.com/signalsfoundry/skyframe/internal/logging"
	"github.com/signalsfoundry/skyframe/model"
)

func testConfig(t *testing.T) config.Config {
	t.Helper()
	cfg, err := config.Load()
	if err != nil {
		t.Fatalf("config.Load: %v", err)
	}
	cfg.MetricsAddr = ""
	cfg.Tick = 10 * time.Millisecond
	cfg.LogLevel = "warn"
	return cfg
}

func TestServerStartupSmoke(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	lis, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("net.Listen: %v", err)
	}
	cfg := testConfig(t)
	cfg.Place = "Jupiter System"

	errCh := make(chan error, 1)
	go func() {
		errCh <- run(ctx, cfg, logging.Noop(), lis)
	}()

	conn, err := grpc.NewClient(lis.Addr().String(), grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		t.Fatalf("grpc.NewClient: %v", err)
	}
	defer conn.Close()

	resp, err := healthpb.NewHealthClient(conn).Check(ctx, &healthpb.HealthCheckRequest{Service: healthService}, grpc.WaitForReady(true))
	if err != nil {
		t.Fatalf("health Check: %v", err)
	}
	if resp.GetStatus() != healthpb.HealthCheckResponse_SERVING {
		t.Fatalf("status = %v", resp.GetStatus())
	}

	cancel()
	if err := <-errCh; err != nil {
		t.Fatalf("run returned error: %v", err)
	}
}

func TestRunStopsAfterDuration(t *testing.T) {
	lis, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("net.Listen: %v", err)
	}
	cfg := testConfig(t)
	cfg.RunFor = 50 * time.Millisecond

	errCh := make(chan error, 1)
	go func() {
		errCh <- run(context.Background(), cfg, logging.Noop(), lis)
	}()
	select {
	case err := <-errCh:
		if err != nil {
			t.Fatalf("run: %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatalf("run did not stop after its duration")
	}
}

func TestRunRejectsUnknownPlace(t *testing.T) {
	lis, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("net.Listen: %v", err)
	}
	defer lis.Close()
	cfg := testConfig(t)
	cfg.Place = "Atlantis"
	if err := run(context.Background(), cfg, logging.Noop(), lis); err == nil {
		t.Fatalf("expected error for unknown place")
	}
}

func TestStartViewDefaults(t *testing.T) {
	cfg := testConfig(t)
	sc, err := loadScene("")
	if err != nil {
		t.Fatalf("loadScene: %v", err)
	}

	cfg.Mode = "surface"
	mode, cam, err := startView(cfg, sc)
	if err != nil {
		t.Fatalf("startView: %v", err)
	}
	if mode != model.ModeSurface || cam.TargetFrame != "Earth" || cam.Zoom != model.SurfaceZoomMax {
		t.Fatalf("mode=%v cam=%+v", mode, cam)
	}

	cfg.Place = "europa"
	mode, cam, err = startView(cfg, sc)
	if err != nil {
		t.Fatalf("startView place: %v", err)
	}
	if mode != model.ModeSolarSystem || cam.TargetFrame != "Europa" {
		t.Fatalf("mode=%v cam=%+v", mode, cam)
	}
}

func TestBindFlagsOverrideConfig(t *testing.T) {
	cfg := testConfig(t)
	fs := flag.NewFlagSet("skyframe", flag.ContinueOnError)
	bindFlags(fs, &cfg)
	args := []string{"-rate", "60", "-sky-mode", "galactic", "-tle-url", "http://a", "-tle-url", "http://b", "-width", "800"}
	if err := fs.Parse(args); err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if cfg.ClockRate != 60 || cfg.SkyMode != "galactic" || cfg.Width != 800 || len(cfg.TLEURLs) != 2 {
		t.Fatalf("cfg = %+v", cfg)
	}
	if cfg.Height != 1080 {
		t.Fatalf("unset flag changed height to %d", cfg.Height)
	}
}
