package model

import (
	"math"
	"testing"
)

func TestClampZoomPerMode(t *testing.T) {
	cases := []struct {
		mode ViewMode
		zoom float64
		want float64
	}{
		{ModeSky, 1000, SkyZoomMax},
		{ModeSky, 0, SkyZoomMax},
		{ModeSky, 1e-9, SkyZoomMin},
		{ModeSurface, 1e-12, SurfaceZoomMin},
		{ModeSolarSystem, 1e20, SolarSystemZoomMax},
		{ModeSolarSystem, 700, 700},
		{ModeSky, math.NaN(), SkyZoomMax},
	}
	for _, tc := range cases {
		got := CameraState{Zoom: tc.zoom}.Clamp(tc.mode)
		if got.Zoom != tc.want {
			t.Fatalf("Clamp(%v, %v).Zoom = %v, want %v", tc.mode, tc.zoom, got.Zoom, tc.want)
		}
	}
}

func TestNormalizeLongitudesKeepsFrom(t *testing.T) {
	from := CameraState{Lng: 170}
	to := CameraState{Lng: -170}

	nf, nt := NormalizeLongitudes(from, to)
	if nf.Lng != 170 {
		t.Fatalf("from longitude changed to %v", nf.Lng)
	}
	if d := math.Abs(nf.Lng - nt.Lng); d > 180 {
		t.Fatalf("normalized longitude gap = %v, want <= 180", d)
	}
	if nt.Lng != 190 {
		t.Fatalf("to longitude = %v, want 190", nt.Lng)
	}
}

func TestNormalizeLongitudesNoShiftWhenClose(t *testing.T) {
	nf, nt := NormalizeLongitudes(CameraState{Lng: 10}, CameraState{Lng: 120})
	if nf.Lng != 10 || nt.Lng != 120 {
		t.Fatalf("unexpected shift: %v -> %v", nf.Lng, nt.Lng)
	}
}

func TestNormalizeLongitudesFarOutOfRange(t *testing.T) {
	cases := []struct {
		from, to, want float64
	}{
		{10, 760, 40},
		{-20, -1100, -20},
		{0, 1e20, math.Remainder(1e20, 360)},
		{5, -3e17, 5 + math.Remainder(-3e17-5, 360)},
	}
	for _, tc := range cases {
		nf, nt := NormalizeLongitudes(CameraState{Lng: tc.from}, CameraState{Lng: tc.to})
		if nf.Lng != tc.from {
			t.Fatalf("from %v changed to %v", tc.from, nf.Lng)
		}
		if math.Abs(nt.Lng-tc.want) > 1e-9 {
			t.Fatalf("NormalizeLongitudes(%v, %v) to = %v, want %v", tc.from, tc.to, nt.Lng, tc.want)
		}
		if d := math.Abs(nf.Lng - nt.Lng); d > 180 {
			t.Fatalf("gap %v after normalizing %v -> %v", d, tc.from, tc.to)
		}
	}
}

func TestNormalizeLongitudesNonFinite(t *testing.T) {
	for _, lng := range []float64{math.NaN(), math.Inf(1), math.Inf(-1)} {
		_, nt := NormalizeLongitudes(CameraState{Lng: 0}, CameraState{Lng: lng})
		if !math.IsNaN(lng) && nt.Lng != lng {
			t.Fatalf("to = %v, want unchanged %v", nt.Lng, lng)
		}
		if math.IsNaN(lng) && !math.IsNaN(nt.Lng) {
			t.Fatalf("NaN longitude rewritten to %v", nt.Lng)
		}
	}
}

func TestWrapLongitude(t *testing.T) {
	for in, want := range map[float64]float64{190: -170, -190: 170, 540: 180, -180: 180, 45: 45} {
		if got := WrapLongitude(in); math.Abs(got-want) > 1e-12 {
			t.Fatalf("WrapLongitude(%v) = %v, want %v", in, got, want)
		}
	}
}

func TestParseFrameKindRoundTrip(t *testing.T) {
	for k := FrameIdentity; k <= FrameSandbox; k++ {
		got, err := ParseFrameKind(k.String())
		if err != nil {
			t.Fatalf("ParseFrameKind(%q): %v", k.String(), err)
		}
		if got != k {
			t.Fatalf("ParseFrameKind(%q) = %v", k.String(), got)
		}
	}
	if _, err := ParseFrameKind("wormhole"); err == nil {
		t.Fatalf("expected error for unknown kind")
	}
}

func TestInertialParentKinds(t *testing.T) {
	if !FrameOrbital.InertialParent() || !FrameSynodic.InertialParent() || !FrameTrajectory.InertialParent() {
		t.Fatalf("orbit-like kinds must use the parent's non-rotating basis")
	}
	if FrameFixedRotation.InertialParent() || FrameIdentity.InertialParent() || FrameSandbox.InertialParent() {
		t.Fatalf("attached kinds must follow the parent's rotating basis")
	}
}

func TestParseModes(t *testing.T) {
	for in, want := range map[string]ViewMode{"": ModeSky, "Surface": ModeSurface, "solar-system": ModeSolarSystem} {
		if got, err := ParseViewMode(in); err != nil || got != want {
			t.Fatalf("ParseViewMode(%q) = %v, %v", in, got, err)
		}
	}
	if _, err := ParseViewMode("orbit"); err == nil {
		t.Fatalf("expected error for unknown view mode")
	}
	for _, m := range []SkyMode{SkyEquatorial, SkyGalactic, SkyHorizon} {
		if got, err := ParseSkyMode(m.String()); err != nil || got != m {
			t.Fatalf("ParseSkyMode(%q) = %v, %v", m.String(), got, err)
		}
	}
	if _, err := ParseSkyMode("ecliptic"); err == nil {
		t.Fatalf("expected error for unknown sky mode")
	}
}
