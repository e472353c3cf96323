package core

import (
	"errors"
	"math"
	"testing"

	"gonum.org/v1/gonum/floats/scalar"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/signalsfoundry/skyframe/model"
)

const j2000 = 2451545.0

func circularLEO() model.OrbitalElements {
	return model.OrbitalElements{SemiMajorAxis: 7e6, Epoch: j2000}
}

func TestSolveKepler_SatisfiesEquation(t *testing.T) {
	for _, e := range []float64{0, 0.1, 0.5, 0.85, 0.99} {
		for _, m := range []float64{-3, -0.5, 0, 0.2, 1.5, 3.1} {
			E := SolveKepler(m, e)
			if got := E - e*math.Sin(E); !scalar.EqualWithinAbs(math.Remainder(got-m, 2*math.Pi), 0, 1e-8) {
				t.Fatalf("e=%v M=%v: E-e·sinE = %v", e, m, got)
			}
		}
	}
}

func TestPropagate_CircularOrbit(t *testing.T) {
	el := circularLEO()
	st, err := Propagate(el, j2000)
	if err != nil {
		t.Fatalf("Propagate: %v", err)
	}
	if !vecNear(st.Position, Vec3{X: 7e6}, 1e-3) {
		t.Fatalf("position at epoch = %+v, want (7e6,0,0)", st.Position)
	}

	period := 360 / MeanDailyMotion(el)
	st, err = Propagate(el, j2000+period/4)
	if err != nil {
		t.Fatalf("Propagate: %v", err)
	}
	// A prograde equatorial orbit moves from +X toward +Z in the Y-up frame.
	if !vecNear(st.Position, Vec3{Z: 7e6}, 1) {
		t.Fatalf("position after a quarter period = %+v, want (0,0,7e6)", st.Position)
	}

	st, _ = Propagate(el, j2000+period)
	if !vecNear(st.Position, Vec3{X: 7e6}, 1) {
		t.Fatalf("position after one period = %+v, want back at (7e6,0,0)", st.Position)
	}
}

func TestPropagate_EccentricApsides(t *testing.T) {
	el := model.OrbitalElements{SemiMajorAxis: 1e7, Eccentricity: 0.5, Epoch: j2000}
	st, err := Propagate(el, j2000)
	if err != nil {
		t.Fatalf("Propagate: %v", err)
	}
	if d := r3.Norm(st.Position); !scalar.EqualWithinAbs(d, 5e6, 1e-3) {
		t.Fatalf("periapsis distance = %v, want 5e6", d)
	}
	half := 180 / MeanDailyMotion(el)
	st, _ = Propagate(el, j2000+half)
	if d := r3.Norm(st.Position); !scalar.EqualWithinAbs(d, 1.5e7, 1e-2) {
		t.Fatalf("apoapsis distance = %v, want 1.5e7", d)
	}
}

func TestPropagate_BasisPoleIsOrbitNormal(t *testing.T) {
	el := circularLEO()
	el.Inclination = 30
	st, err := Propagate(el, j2000+0.01)
	if err != nil {
		t.Fatalf("Propagate: %v", err)
	}
	pole := st.Basis.Apply(Vec3{Y: 1})
	if d := r3.Dot(pole, r3.Unit(st.Position)); math.Abs(d) > 1e-9 {
		t.Fatalf("pole not perpendicular to position: dot=%v", d)
	}
	if got := AngleBetween(pole, Vec3{Y: 1}); !scalar.EqualWithinAbs(got, 30, 1e-9) {
		t.Fatalf("pole tilt = %v°, want 30°", got)
	}
}

func TestPropagate_Degenerate(t *testing.T) {
	cases := []model.OrbitalElements{
		{SemiMajorAxis: 0, Epoch: j2000},
		{SemiMajorAxis: 1e7, Eccentricity: 1, Epoch: j2000},
		{SemiMajorAxis: math.NaN(), Epoch: j2000},
		{SemiMajorAxis: 1e7, Eccentricity: -0.1, Epoch: j2000},
	}
	for _, el := range cases {
		_, err := Propagate(el, j2000)
		var de *DegenerateOrbitError
		if !errors.As(err, &de) {
			t.Fatalf("elements %+v: expected DegenerateOrbitError, got %v", el, err)
		}
	}
}

func TestPropagator_KeepsLastValidState(t *testing.T) {
	var p Propagator
	if _, ok := p.Last(); ok {
		t.Fatalf("fresh propagator should have no cached state")
	}
	st, err := p.Propagate(model.OrbitalElements{}, j2000)
	if err == nil {
		t.Fatalf("expected error for zero elements")
	}
	if st.Basis != Identity3() || st.Position != (Vec3{}) {
		t.Fatalf("first failure should return origin with identity basis, got %+v", st)
	}

	good, err := p.Propagate(circularLEO(), j2000)
	if err != nil {
		t.Fatalf("Propagate: %v", err)
	}
	bad := circularLEO()
	bad.Eccentricity = 2
	st, err = p.Propagate(bad, j2000+1)
	if err == nil {
		t.Fatalf("expected error for hyperbolic elements")
	}
	if st != good {
		t.Fatalf("degenerate update should return last valid state %+v, got %+v", good, st)
	}
}

func TestMeanMotionRoundTrip(t *testing.T) {
	el := model.OrbitalElements{SemiMajorAxis: 42164e3}
	n := MeanDailyMotion(el)
	// Geostationary: about one revolution per sidereal day.
	if !scalar.EqualWithinAbs(n, 360.9856, 0.01) {
		t.Fatalf("geostationary mean motion = %v°/day", n)
	}
	if a := SemiMajorAxisFromMeanMotion(n, 0); !scalar.EqualWithinAbs(a, 42164e3, 1e-3) {
		t.Fatalf("SemiMajorAxisFromMeanMotion = %v", a)
	}
}

func TestSynodicBasis_Orthonormal(t *testing.T) {
	st, err := Propagate(model.OrbitalElements{
		SemiMajorAxis: 1e8, Eccentricity: 0.2, Inclination: 12, LongitudeOfAscendingNode: 40,
		ArgumentOfPeriapsis: 70, MeanAnomalyAtEpoch: 10, Epoch: j2000,
	}, j2000+3)
	if err != nil {
		t.Fatalf("Propagate: %v", err)
	}
	b := SynodicBasis(st)
	x, y, z := b.Apply(Vec3{X: 1}), b.Apply(Vec3{Y: 1}), b.Apply(Vec3{Z: 1})
	if !vecNear(x, r3.Unit(st.Position), 1e-12) {
		t.Fatalf("synodic x = %+v, want direction to secondary", x)
	}
	for _, pair := range [][2]Vec3{{x, y}, {y, z}, {x, z}} {
		if d := r3.Dot(pair[0], pair[1]); math.Abs(d) > 1e-12 {
			t.Fatalf("synodic axes not orthogonal: %v", d)
		}
	}
	// The synodic pole agrees with the orbital basis pole.
	if d := r3.Dot(y, st.Basis.Apply(Vec3{Y: 1})); !scalar.EqualWithinAbs(d, 1, 1e-9) {
		t.Fatalf("synodic pole disagrees with orbit normal: dot=%v", d)
	}
}
