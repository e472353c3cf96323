package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/contrib/instrumentation/google.golang.org/grpc/otelgrpc"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"github.com/signalsfoundry/skyframe/internal/config"
	"github.com/signalsfoundry/skyframe/internal/logging"
	"github.com/signalsfoundry/skyframe/internal/nav"
	"github.com/signalsfoundry/skyframe/internal/observability"
	"github.com/signalsfoundry/skyframe/internal/render"
	"github.com/signalsfoundry/skyframe/internal/scene"
	"github.com/signalsfoundry/skyframe/internal/tlefetch"
	"github.com/signalsfoundry/skyframe/kb"
	"github.com/signalsfoundry/skyframe/model"
	"github.com/signalsfoundry/skyframe/timectrl"
)

// healthService is the name reported by the gRPC health server.
const healthService = "skyframe"

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "skyframe: %v\n", err)
		os.Exit(1)
	}
	bindFlags(flag.CommandLine, &cfg)
	flag.Parse()
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "skyframe: %v\n", err)
		os.Exit(2)
	}

	log := logging.New(cfg.Logging())
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	lis, err := net.Listen("tcp", cfg.GRPCAddr)
	if err != nil {
		log.Error(ctx, "failed to listen for gRPC", logging.String("addr", cfg.GRPCAddr), logging.Err(err))
		os.Exit(1)
	}
	if err := run(ctx, cfg, log, lis); err != nil {
		log.Error(ctx, "skyframe exited", logging.Err(err))
		os.Exit(1)
	}
}

// bindFlags registers flags defaulting to the environment-derived cfg.
func bindFlags(fs *flag.FlagSet, cfg *config.Config) {
	fs.StringVar(&cfg.ScenePath, "scene", cfg.ScenePath, "scene file (YAML or JSON); empty loads the built-in solar system")
	fs.StringVar(&cfg.Place, "place", cfg.Place, "named scene place to start at")
	fs.StringVar(&cfg.Mode, "mode", cfg.Mode, "view mode: sky, surface or solar-system")
	fs.StringVar(&cfg.SkyMode, "sky-mode", cfg.SkyMode, "sky parameterization: equatorial, galactic or horizon")
	fs.DurationVar(&cfg.Tick, "tick", cfg.Tick, "tick interval")
	fs.Float64Var(&cfg.ClockRate, "rate", cfg.ClockRate, "simulated seconds per wall second")
	fs.DurationVar(&cfg.RunFor, "duration", cfg.RunFor, "stop after this much wall time (0 runs until interrupted)")
	fs.IntVar(&cfg.Width, "width", cfg.Width, "viewport width in pixels")
	fs.IntVar(&cfg.Height, "height", cfg.Height, "viewport height in pixels")
	fs.Float64Var(&cfg.ObserverLat, "observer-lat", cfg.ObserverLat, "observer latitude for the horizon sky mode")
	fs.Float64Var(&cfg.ObserverLng, "observer-lng", cfg.ObserverLng, "observer longitude for the horizon sky mode")
	fs.StringVar(&cfg.MetricsAddr, "metrics-addr", cfg.MetricsAddr, "HTTP address for Prometheus /metrics (empty disables)")
	fs.StringVar(&cfg.GRPCAddr, "grpc-addr", cfg.GRPCAddr, "TCP address for the gRPC health service")
	fs.StringVar(&cfg.TLEParent, "tle-parent", cfg.TLEParent, "frame imported satellites orbit")
	fs.DurationVar(&cfg.TLEFetchInterval, "tle-interval", cfg.TLEFetchInterval, "TLE refresh interval")
	fs.Func("tle-url", "TLE catalogue URL (repeatable)", func(s string) error {
		cfg.TLEURLs = append(cfg.TLEURLs, s)
		return nil
	})
}

// run wires the frame graph, navigator and servers, and ticks until ctx is
// done or cfg.RunFor elapses.
func run(ctx context.Context, cfg config.Config, log logging.Logger, lis net.Listener) error {
	tracingCfg, err := observability.TracingConfigFromEnv()
	if err != nil {
		return err
	}
	shutdownTracing, err := observability.InitTracing(ctx, tracingCfg, log)
	if err != nil {
		return fmt.Errorf("init tracing: %w", err)
	}
	defer observability.ShutdownWithTimeout(context.Background(), shutdownTracing, log)

	reg := prometheus.NewRegistry()
	collector, err := observability.NewCollector(reg)
	if err != nil {
		return fmt.Errorf("metrics collector: %w", err)
	}
	queueMetrics, err := observability.NewQueueCollector(reg)
	if err != nil {
		return fmt.Errorf("queue metrics: %w", err)
	}
	metricsSrv := serveMetrics(cfg.MetricsAddr, collector, log)

	sc, err := loadScene(cfg.ScenePath)
	if err != nil {
		return err
	}
	persistent := kb.NewFrameGraph(kb.WithName("persistent"), kb.WithLogger(log))
	added, err := sc.Apply(persistent)
	if err != nil {
		return fmt.Errorf("apply scene: %w", err)
	}
	log.Info(ctx, "scene loaded", logging.String("path", cfg.ScenePath), logging.Int("frames", len(added)))

	mode, cam, err := startView(cfg, sc)
	if err != nil {
		return err
	}
	sky, _ := cfg.Sky()

	clock := timectrl.NewTimeController(cfg.Start(time.Now().UTC()), cfg.Tick, timectrl.RealTime)
	clock.SetRate(cfg.ClockRate)

	pipeline := render.New(
		render.WithViewport(cfg.Width, cfg.Height),
		render.WithSkyMode(sky),
		render.WithObserver(cfg.ObserverLat, cfg.ObserverLng),
		render.WithLogger(log),
	)
	navigator := nav.New(persistent, clock,
		nav.WithLogger(log),
		nav.WithMetricsRecorder(collector),
		nav.WithQueueRecorder(queueMetrics),
		nav.WithPipeline(pipeline),
		nav.WithMode(mode),
		nav.WithCamera(cam),
	)
	clock.AddListener(func(wall time.Time) {
		navigator.Tick(ctx, wall)
	})

	server := grpc.NewServer(
		grpc.StatsHandler(otelgrpc.NewServerHandler()),
		grpc.ChainUnaryInterceptor(collector.UnaryServerInterceptor()),
	)
	hs := health.NewServer()
	healthpb.RegisterHealthServer(server, hs)
	hs.SetServingStatus(healthService, healthpb.HealthCheckResponse_SERVING)

	serveErr := make(chan error, 1)
	go func() {
		serveErr <- server.Serve(lis)
	}()
	log.Info(ctx, "serving gRPC health", logging.String("addr", lis.Addr().String()))

	if len(cfg.TLEURLs) > 0 {
		importer := tlefetch.NewImporter(navigator, cfg.TLEParent,
			tlefetch.WithLogger(log),
			tlefetch.WithRecorder(collector),
		)
		fetchers := make([]*tlefetch.Fetcher, 0, len(cfg.TLEURLs))
		for _, u := range cfg.TLEURLs {
			fetchers = append(fetchers, tlefetch.NewFetcher(u))
		}
		go importer.Run(ctx, fetchers, cfg.TLEFetchInterval)
	}

	log.Info(ctx, "starting tick loop",
		logging.String("mode", mode.String()),
		logging.Duration("tick", cfg.Tick),
		logging.Float64("rate", cfg.ClockRate),
	)
	loopCtx, cancelLoop := context.WithCancel(ctx)
	defer cancelLoop()
	done := clock.Start(loopCtx, cfg.RunFor)

	var runErr error
	select {
	case <-ctx.Done():
	case <-done:
	case err := <-serveErr:
		if err != nil && !errors.Is(err, grpc.ErrServerStopped) {
			runErr = fmt.Errorf("grpc server: %w", err)
		}
	}
	cancelLoop()
	<-done

	log.Info(context.Background(), "shutting down")
	hs.Shutdown()
	server.GracefulStop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if metricsSrv != nil {
		_ = metricsSrv.Shutdown(shutdownCtx)
	}
	return runErr
}

func loadScene(path string) (*scene.Scene, error) {
	if path == "" {
		sc, err := scene.SolarSystem()
		if err != nil {
			return nil, fmt.Errorf("built-in scene: %w", err)
		}
		return sc, nil
	}
	sc, err := scene.LoadFile(path)
	if err != nil {
		return nil, fmt.Errorf("load scene: %w", err)
	}
	return sc, nil
}

// startView picks the initial mode and camera: the named place when set,
// otherwise a fully zoomed-out camera in the configured mode.
func startView(cfg config.Config, sc *scene.Scene) (model.ViewMode, model.CameraState, error) {
	if cfg.Place != "" {
		p, ok := sc.Place(cfg.Place)
		if !ok {
			return model.ModeSky, model.CameraState{}, fmt.Errorf("unknown place %q", cfg.Place)
		}
		mode, err := p.ViewMode()
		if err != nil {
			return model.ModeSky, model.CameraState{}, err
		}
		cam, err := p.CameraState()
		return mode, cam, err
	}
	mode, err := cfg.ViewMode()
	if err != nil {
		return model.ModeSky, model.CameraState{}, err
	}
	cam := model.CameraState{Zoom: model.ZoomMax(mode), Opacity: 1}
	switch mode {
	case model.ModeSurface:
		cam.TargetFrame = render.DefaultSurfaceFrame
	case model.ModeSolarSystem:
		cam.TargetFrame = render.DefaultSolarFrame
	}
	return mode, cam, nil
}

func serveMetrics(addr string, collector *observability.Collector, log logging.Logger) *http.Server {
	if addr == "" || collector == nil {
		return nil
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", collector.Handler())

	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Warn(context.Background(), "metrics server exited", logging.Err(err))
		}
	}()

	log.Info(context.Background(), "serving Prometheus metrics", logging.String("addr", addr))
	return srv
}
