package timectrl

import (
	"context"
	"sync"
	"time"

	"github.com/soniakeys/meeus/v3/julian"
)

// SimClock gives the simulated "now" in UTC and as a Julian date.
type SimClock interface {
	// Now returns the current simulation time.
	Now() time.Time
	// JulianDate returns Now as a Julian date.
	JulianDate() float64
}

// SettableClock is a SimClock that a time-driving camera move can set.
type SettableClock interface {
	SimClock
	SetTime(t time.Time)
}

// Mode describes how the TimeController paces its ticks.
type Mode int

const (
	// RealTime ticks on the wall clock.
	RealTime Mode = iota
	// Accelerated ticks as quickly as the loop can run while still stepping
	// a synthetic wall clock by Tick.
	Accelerated
)

// TimeController drives simulation time from wall-clock ticks and notifies
// registered listeners. Simulation time advances by Rate times the wall
// time elapsed since the previous Advance.
type TimeController struct {
	mu        sync.RWMutex
	StartTime time.Time
	Tick      time.Duration
	Mode      Mode

	rate        float64
	currentTime time.Time
	lastWall    time.Time

	listeners []func(wall time.Time)
}

// NewTimeController constructs a controller starting at start with a rate
// of one simulated second per wall second.
func NewTimeController(start time.Time, tick time.Duration, mode Mode) *TimeController {
	return &TimeController{
		StartTime:   start,
		Tick:        tick,
		Mode:        mode,
		rate:        1,
		currentTime: start.UTC(),
	}
}

// Now returns the current simulation time. Implements SimClock.
func (tc *TimeController) Now() time.Time {
	tc.mu.RLock()
	defer tc.mu.RUnlock()
	return tc.currentTime
}

// JulianDate returns the current simulation time as a Julian date.
func (tc *TimeController) JulianDate() float64 {
	return julian.TimeToJD(tc.Now())
}

// SetTime jumps simulation time. The next Advance continues from t.
func (tc *TimeController) SetTime(t time.Time) {
	tc.mu.Lock()
	defer tc.mu.Unlock()
	tc.currentTime = t.UTC()
}

// SetJulianDate jumps simulation time to a Julian date.
func (tc *TimeController) SetJulianDate(jd float64) {
	tc.SetTime(julian.JDToTime(jd))
}

// Rate returns simulated seconds per wall second.
func (tc *TimeController) Rate() float64 {
	tc.mu.RLock()
	defer tc.mu.RUnlock()
	return tc.rate
}

// SetRate changes simulated seconds per wall second. Zero pauses, negative
// runs backwards.
func (tc *TimeController) SetRate(r float64) {
	tc.mu.Lock()
	defer tc.mu.Unlock()
	tc.rate = r
}

// Advance moves simulation time forward by Rate times the wall time elapsed
// since the previous call. The first call only records wall.
func (tc *TimeController) Advance(wall time.Time) time.Time {
	tc.mu.Lock()
	defer tc.mu.Unlock()
	if !tc.lastWall.IsZero() {
		delta := wall.Sub(tc.lastWall)
		if delta > 0 && tc.rate != 0 {
			tc.currentTime = tc.currentTime.Add(time.Duration(float64(delta) * tc.rate))
		}
	}
	tc.lastWall = wall
	return tc.currentTime
}

// AddListener registers a callback invoked on every tick with the wall time
// of the tick, after simulation time has advanced.
func (tc *TimeController) AddListener(fn func(wall time.Time)) {
	tc.mu.Lock()
	defer tc.mu.Unlock()
	tc.listeners = append(tc.listeners, fn)
}

// Start runs the controller in a separate goroutine until ctx is done or,
// when duration > 0, until duration of wall time has been ticked. It
// returns a channel that is closed when the controller finishes.
func (tc *TimeController) Start(ctx context.Context, duration time.Duration) <-chan struct{} {
	done := make(chan struct{})
	go func() {
		defer close(done)

		wall := time.Now()
		tc.Advance(wall)
		elapsed := time.Duration(0)

		ticker := time.NewTicker(tc.Tick)
		defer ticker.Stop()

		for {
			if duration > 0 && elapsed >= duration {
				return
			}
			if tc.Mode == RealTime {
				select {
				case <-ctx.Done():
					return
				case now := <-ticker.C:
					wall = now
				}
			} else {
				if ctx.Err() != nil {
					return
				}
				wall = wall.Add(tc.Tick)
			}
			elapsed += tc.Tick
			tc.Advance(wall)

			tc.mu.RLock()
			listeners := append([]func(time.Time){}, tc.listeners...)
			tc.mu.RUnlock()
			for _, fn := range listeners {
				fn(wall)
			}
		}
	}()
	return done
}
