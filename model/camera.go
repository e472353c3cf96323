package model

import (
	"fmt"
	"math"
	"strings"

	"gonum.org/v1/gonum/spatial/r3"
)

// ViewMode selects how the pipeline derives a camera from a CameraState.
type ViewMode int

const (
	// ModeSky places the camera at the origin looking out at the celestial sphere.
	ModeSky ViewMode = iota
	// ModeSurface orbits a point on a body's surface.
	ModeSurface
	// ModeSolarSystem orbits a tracked body or named frame.
	ModeSolarSystem
)

func (m ViewMode) String() string {
	switch m {
	case ModeSky:
		return "sky"
	case ModeSurface:
		return "surface"
	case ModeSolarSystem:
		return "solar-system"
	default:
		return "unknown"
	}
}

// ParseViewMode accepts the String form plus a few aliases; empty is sky.
func ParseViewMode(s string) (ViewMode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "sky":
		return ModeSky, nil
	case "surface", "planet", "earth":
		return ModeSurface, nil
	case "solar-system", "solarsystem", "solar":
		return ModeSolarSystem, nil
	}
	return ModeSky, fmt.Errorf("unknown view mode %q", s)
}

// SkyMode selects the sky parameterization; it only changes the axis
// rotations used to build the world matrix.
type SkyMode int

const (
	SkyEquatorial SkyMode = iota
	SkyGalactic
	SkyHorizon
)

func (m SkyMode) String() string {
	switch m {
	case SkyEquatorial:
		return "equatorial"
	case SkyGalactic:
		return "galactic"
	case SkyHorizon:
		return "horizon"
	default:
		return "unknown"
	}
}

// ParseSkyMode parses a SkyMode name; empty is equatorial.
func ParseSkyMode(s string) (SkyMode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "equatorial":
		return SkyEquatorial, nil
	case "galactic":
		return SkyGalactic, nil
	case "horizon", "alt-az":
		return SkyHorizon, nil
	}
	return SkyEquatorial, fmt.Errorf("unknown sky mode %q", s)
}

// Zoom limits per mode.
const (
	SkyZoomMin         = 1.0 / 3600
	SkyZoomMax         = 360.0
	SurfaceZoomMin     = 1e-8
	SurfaceZoomMax     = 360.0
	SolarSystemZoomMin = 1e-9
	SolarSystemZoomMax = 1e17
)

// ZoomMin returns the smallest zoom allowed in mode.
func ZoomMin(mode ViewMode) float64 {
	switch mode {
	case ModeSurface:
		return SurfaceZoomMin
	case ModeSolarSystem:
		return SolarSystemZoomMin
	default:
		return SkyZoomMin
	}
}

// ZoomMax returns the largest zoom allowed in mode.
func ZoomMax(mode ViewMode) float64 {
	switch mode {
	case ModeSurface:
		return SurfaceZoomMax
	case ModeSolarSystem:
		return SolarSystemZoomMax
	default:
		return SkyZoomMax
	}
}

// CameraState describes a viewpoint. Lat/Lng are degrees (sky or
// planetographic depending on mode); Rotation and Angle (tilt) are radians.
type CameraState struct {
	Lat      float64
	Lng      float64
	Zoom     float64
	Rotation float64
	Angle    float64

	// TargetFrame is the frame-graph key the camera tracks; empty means none.
	TargetFrame string
	// ViewTarget is the look-at point, relative to TargetFrame.
	ViewTarget r3.Vec
	Opacity    float64
}

// Clamp returns a copy with Zoom inside the limits of mode. Non-positive
// or NaN zoom becomes the mode maximum.
func (c CameraState) Clamp(mode ViewMode) CameraState {
	lo, hi := ZoomMin(mode), ZoomMax(mode)
	switch {
	case math.IsNaN(c.Zoom) || c.Zoom <= 0:
		c.Zoom = hi
	case c.Zoom < lo:
		c.Zoom = lo
	case c.Zoom > hi:
		c.Zoom = hi
	}
	return c
}

// NormalizeLongitudes shifts one endpoint by whole turns (a single 360 for
// longitudes already in range) so the longitude difference used for
// interpolation never exceeds 180 degrees. Non-finite input is returned
// unchanged. The shift is
// applied to to, so a move still starts exactly at from.
func NormalizeLongitudes(from, to CameraState) (CameraState, CameraState) {
	d := to.Lng - from.Lng
	if math.IsNaN(d) || math.IsInf(d, 0) || math.Abs(d) <= 180 {
		return from, to
	}
	to.Lng = from.Lng + math.Remainder(d, 360)
	return from, to
}

// WrapLongitude maps lng into (-180, 180].
func WrapLongitude(lng float64) float64 {
	lng = math.Mod(lng, 360)
	if lng > 180 {
		lng -= 360
	} else if lng <= -180 {
		lng += 360
	}
	return lng
}
