package nav

import (
	"time"

	"github.com/signalsfoundry/skyframe/internal/view"
	"github.com/signalsfoundry/skyframe/model"
)

// MoveOption customises a camera move.
type MoveOption func(*moveConfig)

type moveConfig struct {
	midpoint func()
	upDelay  time.Duration
}

// OnMidpoint registers a callback fired once, after the tick in which the
// move reaches its midpoint.
func OnMidpoint(fn func()) MoveOption {
	return func(c *moveConfig) { c.midpoint = fn }
}

// WithUpDelay sets a minimum descent time for slews.
func WithUpDelay(d time.Duration) MoveOption {
	return func(c *moveConfig) { c.upDelay = d }
}

func applyMoveOptions(opts []MoveOption) moveConfig {
	var c moveConfig
	for _, opt := range opts {
		opt(&c)
	}
	return c
}

// deferred wraps a midpoint callback so it runs after the tick releases
// the navigator lock. Must be invoked with n.mu held.
func (n *Navigator) deferred(fn func()) func() {
	if fn == nil {
		return nil
	}
	return func() { n.pending = append(n.pending, fn) }
}

// SlewTo replaces any move in flight with a slew from the current camera
// to target and returns its duration.
func (n *Navigator) SlewTo(target model.CameraState, opts ...MoveOption) time.Duration {
	cfg := applyMoveOptions(opts)

	n.mu.Lock()
	defer n.mu.Unlock()
	target = target.Clamp(n.mode)
	galactic := n.mode == model.ModeSky && n.pipeline.SkyMode() == model.SkyGalactic
	s := view.NewSlew(n.camera, target,
		view.WithGalactic(galactic),
		view.WithUpDelay(cfg.upDelay),
		view.WithClock(n.clock),
		view.WithMidpoint(n.deferred(cfg.midpoint)),
	)
	n.install(s, "slew")
	return s.MoveTime()
}

// KenBurnsTo replaces any move in flight with a timed move to target that
// also carries the simulation clock from its current value to toTime.
func (n *Navigator) KenBurnsTo(target model.CameraState, duration time.Duration, toTime time.Time, easing view.Easing, opts ...MoveOption) {
	cfg := applyMoveOptions(opts)

	n.mu.Lock()
	defer n.mu.Unlock()
	target = target.Clamp(n.mode)
	k := view.NewKenBurns(n.camera, target, duration, n.clock.Now(), toTime, easing,
		view.WithKenBurnsMidpoint(n.deferred(cfg.midpoint)),
	)
	n.install(k, "kenburns")
}

// install must be called with n.mu held.
func (n *Navigator) install(m view.Mover, kind string) {
	n.slot.Install(m, n.wallNow())
	if n.metrics != nil {
		n.metrics.IncMoverInstall(kind)
	}
}
