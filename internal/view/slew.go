package view

import (
	"math"
	"time"

	"github.com/signalsfoundry/skyframe/model"
	"github.com/signalsfoundry/skyframe/timectrl"
)

// Slew timing constants.
const (
	upTimeFactor     = 0.6
	downTimeFactor   = 0.6
	travelTimeFactor = 7.0
	// MaxApexZoom caps the zoom reached at the top of a slew.
	MaxApexZoom = 360.0
)

// Slew is the three-phase "zoom out, travel, zoom in" move. Slews never
// drive the simulation clock.
type Slew struct {
	from, to model.CameraState // to has longitudes normalised against from
	target   model.CameraState // the caller's destination, returned on completion

	fromTop, toTop model.CameraState
	apex           float64

	upTime, travelTime, downTime float64 // seconds

	galactic bool
	upDelay  time.Duration
	clock    timectrl.SimClock

	midpoint    func()
	midpointHit bool
	complete    bool
}

// SlewOption configures a Slew.
type SlewOption func(*Slew)

// WithGalactic makes lat/lng follow great circles, for galactic sky mode.
func WithGalactic(on bool) SlewOption {
	return func(s *Slew) { s.galactic = on }
}

// WithMidpoint registers a callback fired once when the descent begins.
func WithMidpoint(fn func()) SlewOption {
	return func(s *Slew) { s.midpoint = fn }
}

// WithUpDelay sets a minimum duration for the descent phase.
func WithUpDelay(d time.Duration) SlewOption {
	return func(s *Slew) { s.upDelay = d }
}

// WithClock lets CurrentDateTime report the simulation time.
func WithClock(c timectrl.SimClock) SlewOption {
	return func(s *Slew) { s.clock = c }
}

// NewSlew plans a slew from from to to. Zoom values must be positive.
func NewSlew(from, to model.CameraState, opts ...SlewOption) *Slew {
	s := &Slew{target: to}
	for _, opt := range opts {
		opt(s)
	}
	s.from, s.to = model.NormalizeLongitudes(from, to)

	latDist := math.Abs(s.from.Lat - s.to.Lat)
	lngDist := math.Abs(s.from.Lng - s.to.Lng)
	distance := math.Sqrt(latDist*latDist + lngDist*lngDist)

	s.apex = math.Min(distance/3*20, MaxApexZoom)
	if s.apex <= 0 {
		// Same place: hold the larger zoom so log2 stays finite.
		s.apex = math.Max(s.from.Zoom, s.to.Zoom)
	}

	rotateTime := math.Max(math.Abs(s.from.Angle-s.to.Angle), math.Abs(s.from.Rotation-s.to.Rotation))
	logUp := math.Max(math.Abs(math.Log2(s.apex)-math.Log2(s.from.Zoom)), rotateTime)
	logDown := math.Max(math.Abs(math.Log2(s.apex)-math.Log2(s.to.Zoom)), rotateTime)

	s.upTime = upTimeFactor * logUp
	s.travelTime = (distance / 180) * (MaxApexZoom / s.apex) * travelTimeFactor
	s.downTime = math.Max(downTimeFactor*logDown, s.upDelay.Seconds())

	s.fromTop = s.from
	s.fromTop.Zoom = s.apex
	s.fromTop.Angle = (s.from.Angle + s.to.Angle) / 2
	s.fromTop.Rotation = (s.from.Rotation + s.to.Rotation) / 2

	s.toTop = s.to
	s.toTop.Zoom = s.apex
	s.toTop.Angle = s.fromTop.Angle
	s.toTop.Rotation = s.fromTop.Rotation
	return s
}

// Apex returns the zoom at the top of the slew.
func (s *Slew) Apex() float64 { return s.apex }

// Phases returns the ascend, travel and descend durations.
func (s *Slew) Phases() (up, travel, down time.Duration) {
	return durationFromSeconds(s.upTime), durationFromSeconds(s.travelTime), durationFromSeconds(s.downTime)
}

func (s *Slew) total() float64 { return s.upTime + s.travelTime + s.downTime }

// MoveTime implements Mover.
func (s *Slew) MoveTime() time.Duration { return durationFromSeconds(s.total()) }

// Complete implements Mover.
func (s *Slew) Complete() bool { return s.complete }

// CurrentPosition implements Mover.
func (s *Slew) CurrentPosition(elapsed time.Duration) model.CameraState {
	e := elapsed.Seconds()
	if e < 0 {
		e = 0
	}
	interp := Interpolate
	if s.galactic {
		interp = InterpolateGreatCircle
	}

	descend := s.upTime + s.travelTime
	switch {
	case e >= s.total()-completionSlack:
		s.fireMidpoint()
		s.complete = true
		return s.target
	case e < s.upTime:
		return interp(s.from, s.fromTop, phaseAlpha(e, s.upTime), EaseInOut, false)
	case e < descend:
		return interp(s.fromTop, s.toTop, phaseAlpha(e-s.upTime, s.travelTime), EaseInOut, false)
	default:
		s.fireMidpoint()
		return interp(s.toTop, s.to, phaseAlpha(e-descend, s.downTime), EaseInOut, false)
	}
}

func (s *Slew) fireMidpoint() {
	if s.midpointHit {
		return
	}
	s.midpointHit = true
	if s.midpoint != nil {
		s.midpoint()
	}
}

// CurrentDateTime reports the simulation clock unchanged.
func (s *Slew) CurrentDateTime(time.Duration) time.Time {
	if s.clock == nil {
		return time.Time{}
	}
	return s.clock.Now()
}

// DrivesClock implements ClockDriver.
func (s *Slew) DrivesClock() bool { return false }
