// Package view animates the camera between states. A Mover produces the
// camera (and optionally the simulation time) for a given elapsed wall time;
// a Slot owns the single active Mover.
package view

import (
	"math"
	"time"

	"github.com/signalsfoundry/skyframe/model"
)

// Mover is an in-flight camera transition. Movers are Active until the
// first observation at or past MoveTime, after which Complete is true and
// CurrentPosition returns the destination exactly.
type Mover interface {
	CurrentPosition(elapsed time.Duration) model.CameraState
	CurrentDateTime(elapsed time.Duration) time.Time
	Complete() bool
	MoveTime() time.Duration
}

// ClockDriver is implemented by movers whose CurrentDateTime should be
// pushed into the simulation clock every tick.
type ClockDriver interface {
	DrivesClock() bool
}

// completionSlack absorbs rounding between a float total in seconds and
// the Duration returned by MoveTime.
const completionSlack = 1e-9

// durationFromSeconds rounds up so that elapsed == MoveTime() always counts
// as complete.
func durationFromSeconds(s float64) time.Duration {
	if s <= 0 || math.IsNaN(s) {
		return 0
	}
	return time.Duration(math.Ceil(s * float64(time.Second)))
}

// phaseAlpha returns progress through a phase, treating an empty phase as
// already finished.
func phaseAlpha(elapsed, length float64) float64 {
	if length <= 0 {
		return 1
	}
	return elapsed / length
}
