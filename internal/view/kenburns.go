package view

import (
	"time"

	"github.com/signalsfoundry/skyframe/model"
)

// KenBurns moves the camera and the simulation clock together over a fixed
// duration with a selectable easing.
type KenBurns struct {
	from, to model.CameraState
	target   model.CameraState

	duration         time.Duration
	fromTime, toTime time.Time
	easing           Easing
	fastDirection    bool

	midpoint    func()
	midpointHit bool
	complete    bool
}

// KenBurnsOption configures a KenBurns move.
type KenBurnsOption func(*KenBurns)

// WithKenBurnsMidpoint registers a callback fired once at half progress.
func WithKenBurnsMidpoint(fn func()) KenBurnsOption {
	return func(k *KenBurns) { k.midpoint = fn }
}

// NewKenBurns plans a move lasting duration. The clock runs linearly from
// fromTime to toTime; when they differ the camera direction settles in half
// the time.
func NewKenBurns(from, to model.CameraState, duration time.Duration, fromTime, toTime time.Time, easing Easing, opts ...KenBurnsOption) *KenBurns {
	k := &KenBurns{
		target:   to,
		duration: duration,
		fromTime: fromTime,
		toTime:   toTime,
		easing:   easing,
	}
	k.from, k.to = model.NormalizeLongitudes(from, to)
	k.fastDirection = !fromTime.Equal(toTime)
	for _, opt := range opts {
		opt(k)
	}
	return k
}

func (k *KenBurns) alpha(elapsed time.Duration) float64 {
	if k.duration <= 0 {
		return 1
	}
	a := float64(elapsed) / float64(k.duration)
	switch {
	case a < 0:
		return 0
	case a > 1:
		return 1
	}
	return a
}

// MoveTime implements Mover.
func (k *KenBurns) MoveTime() time.Duration { return k.duration }

// Complete implements Mover.
func (k *KenBurns) Complete() bool { return k.complete }

// CurrentPosition implements Mover.
func (k *KenBurns) CurrentPosition(elapsed time.Duration) model.CameraState {
	a := k.alpha(elapsed)
	if a >= 0.5 && !k.midpointHit {
		k.midpointHit = true
		if k.midpoint != nil {
			k.midpoint()
		}
	}
	if a >= 1 {
		k.complete = true
		return k.target
	}
	return Interpolate(k.from, k.to, a, k.easing, k.fastDirection)
}

// CurrentDateTime implements Mover. Time is not eased.
func (k *KenBurns) CurrentDateTime(elapsed time.Duration) time.Time {
	a := k.alpha(elapsed)
	if a >= 1 {
		return k.toTime
	}
	span := k.toTime.Sub(k.fromTime)
	return k.fromTime.Add(time.Duration(float64(span) * a))
}

// DrivesClock implements ClockDriver.
func (k *KenBurns) DrivesClock() bool { return true }
