package model

import (
	"fmt"
	"image/color"

	"gonum.org/v1/gonum/spatial/r3"
)

// FrameKind selects the transform rule a ReferenceFrame contributes to the
// frame graph.
type FrameKind int

const (
	// FrameIdentity contributes no transform; the frame coincides with its parent.
	FrameIdentity FrameKind = iota
	// FrameFixedRotation is placed on the parent's rotating basis and spins
	// about its local axis with RotationalPeriod.
	FrameFixedRotation
	// FrameOrbital follows Keplerian elements (or SGP4 when TLE lines are set).
	FrameOrbital
	// FrameTrajectory interpolates a table of time-tagged positions.
	FrameTrajectory
	// FrameSynodic co-rotates with a secondary body's orbit around the parent.
	FrameSynodic
	// FrameSandbox is a user frame with a static placement only.
	FrameSandbox
)

var frameKindNames = [...]string{
	FrameIdentity:      "identity",
	FrameFixedRotation: "fixed-rotation",
	FrameOrbital:       "orbital",
	FrameTrajectory:    "trajectory",
	FrameSynodic:       "synodic",
	FrameSandbox:       "sandbox",
}

func (k FrameKind) String() string {
	if k < 0 || int(k) >= len(frameKindNames) {
		return fmt.Sprintf("FrameKind(%d)", int(k))
	}
	return frameKindNames[k]
}

// ParseFrameKind maps the textual kind used in scene files to a FrameKind.
func ParseFrameKind(s string) (FrameKind, error) {
	for i, name := range frameKindNames {
		if name == s {
			return FrameKind(i), nil
		}
	}
	return FrameIdentity, fmt.Errorf("unknown frame kind %q", s)
}

// InertialParent reports whether the kind is defined against its parent's
// non-rotating basis. Orbits, trajectories and synodic frames must not
// inherit the parent body's spin.
func (k FrameKind) InertialParent() bool {
	switch k {
	case FrameOrbital, FrameTrajectory, FrameSynodic:
		return true
	default:
		return false
	}
}

// EarthGM is the WGS-72 gravitational parameter of the Earth in m^3/s^2,
// the constant SGP4 and the TLE mean motion are defined against.
const EarthGM = 3.986008e14

// OrbitalElements is the reduced Keplerian element set used by orbital and
// synodic frames. Angles are degrees, SemiMajorAxis is metres, Epoch is a
// Julian date.
type OrbitalElements struct {
	SemiMajorAxis            float64
	Eccentricity             float64
	Inclination              float64
	LongitudeOfAscendingNode float64
	ArgumentOfPeriapsis      float64
	MeanAnomalyAtEpoch       float64
	// MeanDailyMotion in degrees per day. Zero means derive it from
	// SemiMajorAxis and GM.
	MeanDailyMotion float64
	Epoch           float64
	// GM of the parent body in m^3/s^2. Zero means EarthGM.
	GM float64
}

// Closed reports whether the elements describe a closed orbit.
func (e OrbitalElements) Closed() bool {
	return e.SemiMajorAxis > 0 && e.Eccentricity >= 0 && e.Eccentricity < 1
}

// Placement positions a fixed or sandbox frame relative to its parent.
// Lat/Lng are degrees on the parent's surface, Altitude is metres above
// the parent's mean radius; Heading/Pitch/Roll are degrees.
type Placement struct {
	Lat, Lng    float64
	Altitude    float64
	Heading     float64
	Pitch       float64
	Roll        float64
	Scale       float64
	Translation r3.Vec
}

// TrajectorySample is one time-tagged position of a trajectory frame, in
// metres relative to the parent.
type TrajectorySample struct {
	JulianDate float64
	Position   r3.Vec
}

// ReferenceFrame describes one node of the frame graph.
type ReferenceFrame struct {
	Name string
	Kind FrameKind

	Elements OrbitalElements
	// TLE lines select the SGP4 model for Earth satellites.
	TLELine1 string
	TLELine2 string

	Placement  Placement
	Trajectory []TrajectorySample

	MeanRadius float64 // metres
	// RotationalPeriod in days; zero disables spin.
	RotationalPeriod float64
	// RotationEpoch is the Julian date at which the spin angle is zero.
	RotationEpoch float64
	Oblateness    float64

	Color         color.RGBA
	ShowOrbitPath bool
}

// HasTLE reports whether the frame carries two-line element text.
func (f *ReferenceFrame) HasTLE() bool {
	return f.TLELine1 != "" && f.TLELine2 != ""
}

// Copy returns a deep copy of the frame.
func (f *ReferenceFrame) Copy() *ReferenceFrame {
	if f == nil {
		return nil
	}
	c := *f
	if f.Trajectory != nil {
		c.Trajectory = append([]TrajectorySample(nil), f.Trajectory...)
	}
	return &c
}
