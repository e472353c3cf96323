// Package nav glues the frame graphs, the camera mover slot, the matrix
// pipeline and the simulation clock into the per-tick navigation loop.
package nav

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/signalsfoundry/skyframe/core"
	"github.com/signalsfoundry/skyframe/internal/logging"
	"github.com/signalsfoundry/skyframe/internal/observability"
	"github.com/signalsfoundry/skyframe/internal/render"
	"github.com/signalsfoundry/skyframe/internal/view"
	"github.com/signalsfoundry/skyframe/kb"
	"github.com/signalsfoundry/skyframe/model"
	"github.com/signalsfoundry/skyframe/timectrl"
)

var (
	// ErrSessionActive indicates BeginSession was called twice.
	ErrSessionActive = errors.New("session already active")
	// ErrNoSession indicates EndSession was called without a session.
	ErrNoSession = errors.New("no active session")
	// ErrFrameNotFound is re-exported so callers can depend on nav alone.
	ErrFrameNotFound = kb.ErrFrameNotFound
)

// Graphs is the pair of frame graphs handed to queued mutations. Session is
// nil outside a session.
type Graphs struct {
	Persistent *kb.FrameGraph
	Session    *kb.FrameGraph
}

// Resolver resolves names in the session graph first, then the persistent
// one.
func (g *Graphs) Resolver() kb.Chain {
	return kb.NewChain(g.Session, g.Persistent)
}

// Exists reports whether name is in either graph.
func (g *Graphs) Exists(name string) bool {
	return g.Resolver().Exists(name)
}

// MetricsRecorder receives per-tick measurements.
type MetricsRecorder interface {
	ObserveTick(d time.Duration)
	SetGraphFrames(graph string, n int)
	AddUnresolved(mode string, n int)
	IncMoverInstall(kind string)
}

// QueueRecorder receives pending-mutation queue measurements.
type QueueRecorder interface {
	SetQueued(n int)
	ObserveDrain(n int, d time.Duration)
}

// Navigator owns the camera and the single mover slot. Tick, the
// navigation entry points and session changes are serialised by an
// internal lock; Enqueue may be called from any goroutine and its
// mutations are applied at the start of the next Tick.
type Navigator struct {
	mu sync.RWMutex

	graphs   Graphs
	camera   model.CameraState
	mode     model.ViewMode
	slot     view.Slot
	pipeline *render.Pipeline
	clock    timectrl.SettableClock
	wallNow  func() time.Time

	tick    uint64
	pending []func() // midpoint callbacks fired during the current tick

	queueMu sync.Mutex
	queue   []func(*Graphs)

	log          logging.Logger
	metrics      MetricsRecorder
	queueMetrics QueueRecorder
}

// Option customises Navigator construction.
type Option func(*Navigator)

// WithLogger sets the base logger; ticks derive a tick-scoped child.
func WithLogger(l logging.Logger) Option {
	return func(n *Navigator) {
		if l != nil {
			n.log = l
		}
	}
}

// WithMetricsRecorder attaches an optional tick metrics recorder.
func WithMetricsRecorder(m MetricsRecorder) Option {
	return func(n *Navigator) { n.metrics = m }
}

// WithQueueRecorder attaches an optional queue metrics recorder.
func WithQueueRecorder(q QueueRecorder) Option {
	return func(n *Navigator) { n.queueMetrics = q }
}

// WithPipeline replaces the default matrix pipeline.
func WithPipeline(p *render.Pipeline) Option {
	return func(n *Navigator) {
		if p != nil {
			n.pipeline = p
		}
	}
}

// WithCamera sets the initial camera.
func WithCamera(c model.CameraState) Option {
	return func(n *Navigator) { n.camera = c }
}

// WithMode sets the initial view mode.
func WithMode(m model.ViewMode) Option {
	return func(n *Navigator) { n.mode = m }
}

// WithWallClock overrides the wall clock used to stamp new movers.
func WithWallClock(now func() time.Time) Option {
	return func(n *Navigator) {
		if now != nil {
			n.wallNow = now
		}
	}
}

// New builds a Navigator over the persistent graph and the simulation
// clock.
func New(persistent *kb.FrameGraph, clock timectrl.SettableClock, opts ...Option) *Navigator {
	n := &Navigator{
		graphs:  Graphs{Persistent: persistent},
		camera:  model.CameraState{Zoom: model.SkyZoomMax, Opacity: 1},
		clock:   clock,
		wallNow: time.Now,
		log:     logging.Noop(),
	}
	for _, opt := range opts {
		opt(n)
	}
	if n.pipeline == nil {
		n.pipeline = render.New(render.WithLogger(n.log))
	}
	n.camera = n.camera.Clamp(n.mode)
	return n
}

// Camera returns a snapshot of the current camera.
func (n *Navigator) Camera() model.CameraState {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return n.camera
}

// Mode returns the current view mode.
func (n *Navigator) Mode() model.ViewMode {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return n.mode
}

// SetMode switches view mode, dropping any move in flight and clamping the
// camera to the new mode's zoom range.
func (n *Navigator) SetMode(m model.ViewMode) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.mode = m
	n.slot.Clear()
	n.camera = n.camera.Clamp(m)
}

// SetSkyMode switches the sky parameterization.
func (n *Navigator) SetSkyMode(m model.SkyMode) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.pipeline.SetSkyMode(m)
}

// Moving reports whether a camera move is in flight.
func (n *Navigator) Moving() bool {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return n.slot.Active()
}

// Persistent returns the process-lifetime graph.
func (n *Navigator) Persistent() *kb.FrameGraph {
	return n.graphs.Persistent
}

// Session returns the active session graph, or nil.
func (n *Navigator) Session() *kb.FrameGraph {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return n.graphs.Session
}

// Exists reports whether a frame is known to either graph.
func (n *Navigator) Exists(name string) bool {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return n.graphs.Exists(name)
}

// ResolveTransform returns a frame's frame→root matrix at the current
// simulation time.
func (n *Navigator) ResolveTransform(name string) (core.Mat4, error) {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return n.graphs.Resolver().ResolveTransform(name, n.clock.JulianDate())
}

// ResolveFrame returns a frame's resolved transforms at the current
// simulation time.
func (n *Navigator) ResolveFrame(name string) (kb.FrameTransform, error) {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return n.graphs.Resolver().ResolveFrame(name, n.clock.JulianDate())
}

// BeginSession creates an empty session graph whose frames may hang off
// persistent ones.
func (n *Navigator) BeginSession() (*kb.FrameGraph, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.graphs.Session != nil {
		return nil, ErrSessionActive
	}
	n.graphs.Session = kb.NewFrameGraph(
		kb.WithName("session"),
		kb.WithOuter(n.graphs.Persistent),
		kb.WithLogger(n.log),
	)
	n.log.Info(context.Background(), "session started")
	return n.graphs.Session, nil
}

// EndSession closes the session. With merge set its frames move into the
// persistent graph under policy and the colliding names are returned;
// otherwise the session is purged and its layers detached.
func (n *Navigator) EndSession(merge bool, policy kb.MergePolicy) ([]string, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	s := n.graphs.Session
	if s == nil {
		return nil, ErrNoSession
	}
	var conflicts []string
	if merge {
		var err error
		conflicts, err = s.MergeInto(n.graphs.Persistent, policy)
		if err != nil {
			return conflicts, fmt.Errorf("merge session: %w", err)
		}
	} else {
		s.Reset()
	}
	n.graphs.Session = nil
	n.log.Info(context.Background(), "session ended",
		logging.Bool("merged", merge),
		logging.String("policy", policy.String()),
		logging.Int("conflicts", len(conflicts)),
	)
	return conflicts, nil
}

// Enqueue schedules a graph mutation for the start of the next tick. It is
// the only mutation path for asynchronous completions; fn should check
// Exists before touching a frame that may have been purged meanwhile.
func (n *Navigator) Enqueue(fn func(*Graphs)) {
	if fn == nil {
		return
	}
	n.queueMu.Lock()
	n.queue = append(n.queue, fn)
	depth := len(n.queue)
	n.queueMu.Unlock()
	if n.queueMetrics != nil {
		n.queueMetrics.SetQueued(depth)
	}
}

// Pending returns the number of queued mutations.
func (n *Navigator) Pending() int {
	n.queueMu.Lock()
	defer n.queueMu.Unlock()
	return len(n.queue)
}

// drain must be called with n.mu held.
func (n *Navigator) drain() int {
	n.queueMu.Lock()
	batch := n.queue
	n.queue = nil
	n.queueMu.Unlock()

	start := time.Now()
	for _, fn := range batch {
		fn(&n.graphs)
	}
	if n.queueMetrics != nil {
		n.queueMetrics.SetQueued(n.Pending())
		n.queueMetrics.ObserveDrain(len(batch), time.Since(start))
	}
	return len(batch)
}

// Tick applies queued mutations, advances the active mover, and computes
// the frame bundle for the current simulation time. Midpoint callbacks
// fired during the tick run after it completes.
func (n *Navigator) Tick(ctx context.Context, wall time.Time) render.FrameBundle {
	start := time.Now()

	n.mu.Lock()
	n.tick++
	ctx, log := logging.WithTickLogger(ctx, n.log, n.tick)
	ctx, span := observability.Tracer().Start(ctx, "skyframe.tick",
		trace.WithAttributes(
			attribute.Int64("skyframe.tick", int64(n.tick)),
			attribute.String("skyframe.mode", n.mode.String()),
		))

	if applied := n.drain(); applied > 0 {
		log.Debug(ctx, "applied queued mutations", logging.Int("count", applied))
	}

	if m, elapsed, ok := n.slot.Current(wall); ok {
		n.camera = m.CurrentPosition(elapsed).Clamp(n.mode)
		if d, ok := m.(view.ClockDriver); ok && d.DrivesClock() {
			n.clock.SetTime(m.CurrentDateTime(elapsed))
		}
		if m.Complete() {
			n.slot.Clear()
			log.Debug(ctx, "camera move complete", logging.Duration("move_time", m.MoveTime()))
		}
	}

	jd := n.clock.JulianDate()
	bundle := n.pipeline.Compute(ctx, n.camera, n.graphs.Resolver(), n.mode, jd)
	n.record(bundle)

	fired := n.pending
	n.pending = nil
	span.SetAttributes(
		attribute.Float64("skyframe.julian_date", jd),
		attribute.Int("skyframe.unresolved", len(bundle.Unresolved)),
	)
	span.End()
	n.mu.Unlock()

	for _, fn := range fired {
		fn()
	}
	if n.metrics != nil {
		n.metrics.ObserveTick(time.Since(start))
	}
	return bundle
}

// record must be called with n.mu held.
func (n *Navigator) record(b render.FrameBundle) {
	if n.metrics == nil {
		return
	}
	n.metrics.SetGraphFrames(n.graphs.Persistent.Name(), n.graphs.Persistent.Len())
	if s := n.graphs.Session; s != nil {
		n.metrics.SetGraphFrames(s.Name(), s.Len())
	} else {
		n.metrics.SetGraphFrames("session", 0)
	}
	n.metrics.AddUnresolved(b.Mode.String(), len(b.Unresolved))
}
