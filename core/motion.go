package core

import (
	"fmt"
	"math"
	"time"

	satellite "github.com/joshuaferrara/go-satellite"
	"github.com/soniakeys/meeus/v3/julian"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/signalsfoundry/skyframe/model"
)

// MotionModel positions an orbiting frame relative to its parent at a
// Julian date.
type MotionModel interface {
	State(jd float64) (OrbitState, error)
}

// KeplerMotionModel propagates classical elements with a two-body solver.
type KeplerMotionModel struct {
	Elements model.OrbitalElements
}

// State implements MotionModel.
func (m KeplerMotionModel) State(jd float64) (OrbitState, error) {
	return Propagate(m.Elements, jd)
}

// SGP4MotionModel uses a TLE and SGP4 to position an Earth satellite.
type SGP4MotionModel struct {
	sat satellite.Satellite
	tle TLE
}

// NewSGP4MotionModel constructs an SGP4 model from TLE lines. The lines are
// validated first since the propagator library aborts the process on
// malformed numbers.
func NewSGP4MotionModel(line1, line2 string) (*SGP4MotionModel, error) {
	tle, err := ParseTLE(line1, line2)
	if err != nil {
		return nil, err
	}
	sat := satellite.TLEToSat(line1, line2, satellite.GravityWGS72)
	if sat.Error != 0 {
		return nil, &DegenerateOrbitError{
			SemiMajorAxis: SemiMajorAxisFromMeanMotion(tle.MeanMotion*360, model.EarthGM),
			Eccentricity:  tle.Eccentricity,
			Reason:        fmt.Sprintf("sgp4 init: %s", sat.ErrorStr),
		}
	}
	return &SGP4MotionModel{sat: sat, tle: tle}, nil
}

// TLE returns the parsed element set.
func (m *SGP4MotionModel) TLE() TLE { return m.tle }

// State propagates the satellite to jd. go-satellite works in kilometres in
// the TEME frame with whole-second timestamps; positions are interpolated
// between neighbouring seconds and returned in metres, Y-up.
func (m *SGP4MotionModel) State(jd float64) (OrbitState, error) {
	t := julian.JDToTime(jd).UTC()
	base := t.Truncate(time.Second)
	frac := t.Sub(base).Seconds()

	p0, v0 := m.propagate(base)
	p1, v1 := m.propagate(base.Add(time.Second))

	const kmToM = 1000.0
	pos := r3.Scale(kmToM, Lerp(p0, p1, frac))
	vel := r3.Scale(kmToM, Lerp(v0, v1, frac))
	if !IsFinite(pos) || r3.Norm(pos) == 0 {
		return OrbitState{}, &DegenerateOrbitError{
			SemiMajorAxis: SemiMajorAxisFromMeanMotion(m.tle.MeanMotion*360, model.EarthGM),
			Eccentricity:  m.tle.Eccentricity,
			Reason:        "sgp4 produced no position",
		}
	}
	st := OrbitState{
		Position: fromEcliptic(pos),
		Velocity: fromEcliptic(vel),
	}
	st.Basis = SynodicBasis(st)
	return st, nil
}

func (m *SGP4MotionModel) propagate(t time.Time) (Vec3, Vec3) {
	year, month, day := t.Date()
	hour, min, sec := t.Clock()
	p, v := satellite.Propagate(m.sat, year, int(month), day, hour, min, sec)
	return Vec3{X: p.X, Y: p.Y, Z: p.Z}, Vec3{X: v.X, Y: v.Y, Z: v.Z}
}

// NewMotionModel chooses a MotionModel for an orbital frame: SGP4 when both
// TLE lines are present, two-body propagation otherwise.
func NewMotionModel(f *model.ReferenceFrame) (MotionModel, error) {
	if f.HasTLE() {
		return NewSGP4MotionModel(f.TLELine1, f.TLELine2)
	}
	return KeplerMotionModel{Elements: f.Elements}, nil
}

// GreenwichSiderealAngle returns Greenwich mean sidereal time at jd in
// radians, in [0, 2π).
func GreenwichSiderealAngle(jd float64) float64 {
	g := math.Mod(satellite.ThetaG_JD(jd), 2*math.Pi)
	if g < 0 {
		g += 2 * math.Pi
	}
	return g
}
