package core

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/signalsfoundry/skyframe/model"
)

const (
	secondsPerDay = 86400.0

	keplerTolerance     = 1e-9
	keplerMaxIterations = 50
)

// DegenerateOrbitError reports elements that cannot be propagated.
type DegenerateOrbitError struct {
	SemiMajorAxis float64
	Eccentricity  float64
	Reason        string
}

func (e *DegenerateOrbitError) Error() string {
	return fmt.Sprintf("degenerate orbit (a=%g, e=%g): %s", e.SemiMajorAxis, e.Eccentricity, e.Reason)
}

// OrbitState is a propagated orbit sample in the frame graph's Y-up
// convention: the parent's reference plane is XZ and +Y is its north pole.
type OrbitState struct {
	// Position in metres relative to the parent.
	Position Vec3
	// Velocity direction (not normalised) along the orbit.
	Velocity Vec3
	// Basis maps perifocal axes (x toward periapsis, z along the orbit
	// normal, both in the Y-up convention) into the parent frame.
	Basis Mat3
}

// MeanDailyMotion returns the element set's mean motion in degrees per day,
// deriving it from the semi-major axis by Kepler's third law when unset.
func MeanDailyMotion(el model.OrbitalElements) float64 {
	if el.MeanDailyMotion != 0 {
		return el.MeanDailyMotion
	}
	if el.SemiMajorAxis <= 0 {
		return 0
	}
	gm := el.GM
	if gm <= 0 {
		gm = model.EarthGM
	}
	n := math.Sqrt(gm / (el.SemiMajorAxis * el.SemiMajorAxis * el.SemiMajorAxis))
	return n * secondsPerDay * RadToDeg
}

// SemiMajorAxisFromMeanMotion inverts Kepler's third law: n is degrees per
// day, gm is m^3/s^2 (zero means Earth), the result is metres.
func SemiMajorAxisFromMeanMotion(n, gm float64) float64 {
	if n <= 0 {
		return 0
	}
	if gm <= 0 {
		gm = model.EarthGM
	}
	rad := n * DegToRad / secondsPerDay
	return math.Cbrt(gm / (rad * rad))
}

// SolveKepler solves M = E - e·sin(E) for the eccentric anomaly by Newton
// iteration. Angles are radians.
func SolveKepler(meanAnomaly, e float64) float64 {
	m := math.Remainder(meanAnomaly, 2*math.Pi)
	E := m + e*math.Sin(m)
	if e > 0.8 {
		E = math.Pi
		if m < 0 {
			E = -math.Pi
		}
	}
	for i := 0; i < keplerMaxIterations; i++ {
		d := (E - e*math.Sin(E) - m) / (1 - e*math.Cos(E))
		E -= d
		if math.Abs(d) < keplerTolerance {
			break
		}
	}
	return E
}

// validate rejects element sets that would divide by zero or produce NaN.
func validate(el model.OrbitalElements) error {
	switch {
	case math.IsNaN(el.SemiMajorAxis) || el.SemiMajorAxis <= 0:
		return &DegenerateOrbitError{el.SemiMajorAxis, el.Eccentricity, "non-positive semi-major axis"}
	case math.IsNaN(el.Eccentricity) || el.Eccentricity < 0 || el.Eccentricity >= 1:
		return &DegenerateOrbitError{el.SemiMajorAxis, el.Eccentricity, "eccentricity outside [0,1)"}
	}
	return nil
}

// Propagate computes the position and orientation of an orbit at the given
// Julian date.
func Propagate(el model.OrbitalElements, jd float64) (OrbitState, error) {
	if err := validate(el); err != nil {
		return OrbitState{}, err
	}

	a, e := el.SemiMajorAxis, el.Eccentricity
	n := MeanDailyMotion(el)
	meanAnomaly := (el.MeanAnomalyAtEpoch + n*(jd-el.Epoch)) * DegToRad
	E := SolveKepler(meanAnomaly, e)

	sE, cE := math.Sincos(E)
	b := a * math.Sqrt(1-e*e)
	// Perifocal coordinates: x toward periapsis, y along motion at periapsis.
	px, py := a*(cE-e), b*sE
	vx, vy := -a*sE, b*cE

	basis := perifocalBasis(el)
	state := OrbitState{
		Position: fromEcliptic(Vec3{
			X: px*basis[0][0] + py*basis[1][0],
			Y: px*basis[0][1] + py*basis[1][1],
			Z: px*basis[0][2] + py*basis[1][2],
		}),
		Velocity: fromEcliptic(Vec3{
			X: vx*basis[0][0] + vy*basis[1][0],
			Y: vx*basis[0][1] + vy*basis[1][1],
			Z: vx*basis[0][2] + vy*basis[1][2],
		}),
		Basis: yUpBasis(basis),
	}
	if !IsFinite(state.Position) {
		return OrbitState{}, &DegenerateOrbitError{a, e, "non-finite position"}
	}
	return state, nil
}

// perifocalBasis returns the 3-1-3 rotation (ω, i, Ω) from perifocal to the
// parent's right-handed Z-up reference frame. Rows are the images of the
// perifocal P, Q and W axes.
func perifocalBasis(el model.OrbitalElements) Mat3 {
	sO, cO := math.Sincos(el.LongitudeOfAscendingNode * DegToRad)
	si, ci := math.Sincos(el.Inclination * DegToRad)
	sw, cw := math.Sincos(el.ArgumentOfPeriapsis * DegToRad)
	return Mat3{
		{cO*cw - sO*sw*ci, sO*cw + cO*sw*ci, sw * si},
		{-cO*sw - sO*cw*ci, -sO*sw + cO*cw*ci, cw * si},
		{sO * si, -cO * si, ci},
	}
}

// fromEcliptic swaps Y and Z, taking a right-handed Z-up vector into the
// left-handed Y-up convention the renderer uses.
func fromEcliptic(v Vec3) Vec3 {
	return Vec3{X: v.X, Y: v.Z, Z: v.Y}
}

func yUpBasis(m Mat3) Mat3 {
	p := fromEcliptic(Vec3{X: m[0][0], Y: m[0][1], Z: m[0][2]})
	q := fromEcliptic(Vec3{X: m[1][0], Y: m[1][1], Z: m[1][2]})
	w := fromEcliptic(Vec3{X: m[2][0], Y: m[2][1], Z: m[2][2]})
	// Perifocal z (orbit normal) is the pole, so it becomes local +Y.
	return BasisFromRows(p, w, q)
}

// Propagator propagates one orbit and remembers the last valid state so a
// degenerate update freezes the body in place instead of producing NaN.
type Propagator struct {
	last  OrbitState
	valid bool
}

// Propagate returns the state at jd. On degenerate input it returns the
// last valid state together with the error.
func (p *Propagator) Propagate(el model.OrbitalElements, jd float64) (OrbitState, error) {
	st, err := Propagate(el, jd)
	if err != nil {
		if !p.valid {
			return OrbitState{Basis: Identity3()}, err
		}
		return p.last, err
	}
	p.last, p.valid = st, true
	return st, nil
}

// Remember seeds the cache, e.g. with a position computed by another model.
func (p *Propagator) Remember(st OrbitState) {
	if IsFinite(st.Position) {
		p.last, p.valid = st, true
	}
}

// Last returns the cached state, if any.
func (p *Propagator) Last() (OrbitState, bool) {
	return p.last, p.valid
}

// SynodicBasis builds the co-rotating basis of an orbit: x toward the
// secondary, y along the orbit normal (the Y-up pole), z completing the
// frame.
func SynodicBasis(st OrbitState) Mat3 {
	x := r3.Unit(st.Position)
	// Normal = r × v in the right-handed frame; the Y/Z swap flips handedness.
	normal := r3.Unit(r3.Cross(st.Velocity, st.Position))
	z := r3.Cross(x, normal)
	return BasisFromRows(x, normal, z)
}
