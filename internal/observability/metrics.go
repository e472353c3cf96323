package observability

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"google.golang.org/grpc"
	"google.golang.org/grpc/status"
)

// Collector bundles the Prometheus metrics of the tick loop, the frame
// graphs, camera moves and TLE imports, plus the driver's gRPC surface.
type Collector struct {
	gatherer prometheus.Gatherer

	Ticks        prometheus.Counter
	TickDuration prometheus.Histogram

	GraphFrames      *prometheus.GaugeVec
	UnresolvedFrames *prometheus.CounterVec
	MoverInstalls    *prometheus.CounterVec
	TLEImports       *prometheus.CounterVec

	RPCRequests *prometheus.CounterVec
}

// NewCollector registers the metrics against reg, defaulting to the global
// Prometheus registry when nil.
func NewCollector(reg prometheus.Registerer) (*Collector, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	gatherer := prometheus.DefaultGatherer
	if g, ok := reg.(prometheus.Gatherer); ok {
		gatherer = g
	}

	ticks, err := registerCounter(reg, prometheus.NewCounter(prometheus.CounterOpts{
		Name: "skyframe_ticks_total",
		Help: "Total number of computed frame bundles.",
	}), "skyframe_ticks_total")
	if err != nil {
		return nil, err
	}

	tickDuration, err := registerHistogram(reg, prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "skyframe_tick_duration_seconds",
		Help:    "Time spent draining mutations, advancing the camera and computing matrices for one tick.",
		Buckets: []float64{0.0001, 0.0005, 0.001, 0.0025, 0.005, 0.01, 0.025, 0.05, 0.1},
	}), "skyframe_tick_duration_seconds")
	if err != nil {
		return nil, err
	}

	frames, err := registerGaugeVec(reg, prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "skyframe_graph_frames",
		Help: "Current number of frames per frame graph.",
	}, []string{"graph"}), "skyframe_graph_frames")
	if err != nil {
		return nil, err
	}

	unresolved, err := registerCounterVec(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "skyframe_unresolved_frames_total",
		Help: "Frame lookups that degraded to the identity transform, labeled by view mode.",
	}, []string{"mode"}), "skyframe_unresolved_frames_total")
	if err != nil {
		return nil, err
	}

	movers, err := registerCounterVec(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "skyframe_mover_installs_total",
		Help: "Camera moves installed, labeled by kind.",
	}, []string{"kind"}), "skyframe_mover_installs_total")
	if err != nil {
		return nil, err
	}

	imports, err := registerCounterVec(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "skyframe_tle_imports_total",
		Help: "TLE entries processed by the fetcher, labeled by result.",
	}, []string{"result"}), "skyframe_tle_imports_total")
	if err != nil {
		return nil, err
	}

	requests, err := registerCounterVec(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "skyframe_grpc_requests_total",
		Help: "Total number of handled gRPC calls, labeled by service, method, and gRPC status code.",
	}, []string{"service", "method", "code"}), "skyframe_grpc_requests_total")
	if err != nil {
		return nil, err
	}

	return &Collector{
		gatherer:         gatherer,
		Ticks:            ticks,
		TickDuration:     tickDuration,
		GraphFrames:      frames,
		UnresolvedFrames: unresolved,
		MoverInstalls:    movers,
		TLEImports:       imports,
		RPCRequests:      requests,
	}, nil
}

// Gatherer returns the Prometheus gatherer associated with the collector.
func (c *Collector) Gatherer() prometheus.Gatherer {
	if c == nil {
		return nil
	}
	return c.gatherer
}

// ObserveTick records one completed tick.
func (c *Collector) ObserveTick(d time.Duration) {
	if c == nil {
		return
	}
	if c.Ticks != nil {
		c.Ticks.Inc()
	}
	if c.TickDuration != nil {
		c.TickDuration.Observe(d.Seconds())
	}
}

// SetGraphFrames updates the frame count of one graph.
func (c *Collector) SetGraphFrames(graph string, n int) {
	if c == nil || c.GraphFrames == nil {
		return
	}
	c.GraphFrames.WithLabelValues(graph).Set(float64(n))
}

// AddUnresolved counts n failed frame lookups in a view mode.
func (c *Collector) AddUnresolved(mode string, n int) {
	if c == nil || c.UnresolvedFrames == nil || n <= 0 {
		return
	}
	c.UnresolvedFrames.WithLabelValues(mode).Add(float64(n))
}

// IncMoverInstall counts an installed camera move.
func (c *Collector) IncMoverInstall(kind string) {
	if c == nil || c.MoverInstalls == nil {
		return
	}
	c.MoverInstalls.WithLabelValues(kind).Inc()
}

// AddTLEImports counts n TLE entries with the given result.
func (c *Collector) AddTLEImports(result string, n int) {
	if c == nil || c.TLEImports == nil || n <= 0 {
		return
	}
	c.TLEImports.WithLabelValues(result).Add(float64(n))
}

// UnaryServerInterceptor records request counts for unary RPCs.
func (c *Collector) UnaryServerInterceptor() grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req interface{}, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (interface{}, error) {
		resp, err := handler(ctx, req)
		if c == nil || c.RPCRequests == nil {
			return resp, err
		}
		fullMethod := ""
		if info != nil {
			fullMethod = info.FullMethod
		}
		service, method := SplitMethod(fullMethod)
		c.RPCRequests.WithLabelValues(service, method, status.Code(err).String()).Inc()
		return resp, err
	}
}

// Handler exposes a ready-to-use /metrics handler.
func (c *Collector) Handler() http.Handler {
	gatherer := c.Gatherer()
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}

// SplitMethod parses a fully-qualified gRPC method name into service and method
// components. It tolerates empty strings and partial paths, returning
// "unknown"/"unknown" when parsing fails.
func SplitMethod(fullMethod string) (string, string) {
	if fullMethod == "" {
		return "unknown", "unknown"
	}
	fullMethod = strings.TrimPrefix(fullMethod, "/")
	parts := strings.Split(fullMethod, "/")
	if len(parts) < 2 {
		return "unknown", "unknown"
	}
	service := parts[len(parts)-2]
	method := parts[len(parts)-1]
	if dot := strings.LastIndex(service, "."); dot >= 0 && dot+1 < len(service) {
		service = service[dot+1:]
	}
	if service == "" {
		service = "unknown"
	}
	if method == "" {
		method = "unknown"
	}
	return service, method
}

func registerCounterVec(reg prometheus.Registerer, vec *prometheus.CounterVec, name string) (*prometheus.CounterVec, error) {
	if err := reg.Register(vec); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(*prometheus.CounterVec); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return vec, nil
}

func registerGaugeVec(reg prometheus.Registerer, vec *prometheus.GaugeVec, name string) (*prometheus.GaugeVec, error) {
	if err := reg.Register(vec); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(*prometheus.GaugeVec); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return vec, nil
}

func registerGauge(reg prometheus.Registerer, gauge prometheus.Gauge, name string) (prometheus.Gauge, error) {
	if err := reg.Register(gauge); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(prometheus.Gauge); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return gauge, nil
}

func registerHistogram(reg prometheus.Registerer, hist prometheus.Histogram, name string) (prometheus.Histogram, error) {
	if err := reg.Register(hist); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(prometheus.Histogram); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return hist, nil
}

func registerCounter(reg prometheus.Registerer, counter prometheus.Counter, name string) (prometheus.Counter, error) {
	if err := reg.Register(counter); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(prometheus.Counter); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return counter, nil
}
