package view

import (
	"math"

	"github.com/signalsfoundry/skyframe/core"
	"github.com/signalsfoundry/skyframe/model"
)

// Interpolate blends two camera states. Direction (lat, lng, angle,
// rotation) follows the eased alpha, or twice as fast when fastDirection is
// set. Zoom is interpolated in log2 space. Longitudes must already be
// normalised.
func Interpolate(from, to model.CameraState, alpha float64, ease Easing, fastDirection bool) model.CameraState {
	a, b := blend(alpha, ease, fastDirection)
	r := to
	r.Lat = lerp(from.Lat, to.Lat, b)
	r.Lng = lerp(from.Lng, to.Lng, b)
	r.Angle = lerp(from.Angle, to.Angle, b)
	r.Rotation = lerp(from.Rotation, to.Rotation, b)
	r.Zoom = logZoom(from.Zoom, to.Zoom, a)
	r.Opacity = lerp(from.Opacity, to.Opacity, a)
	r.ViewTarget = core.Lerp(from.ViewTarget, to.ViewTarget, a)
	return r
}

// InterpolateGreatCircle is Interpolate with lat/lng moving along the great
// circle between the endpoints instead of straight through lat/lng space.
func InterpolateGreatCircle(from, to model.CameraState, alpha float64, ease Easing, fastDirection bool) model.CameraState {
	r := Interpolate(from, to, alpha, ease, fastDirection)
	_, b := blend(alpha, ease, fastDirection)
	if b <= 0 || b >= 1 {
		return r
	}
	p := core.Slerp(core.GeoTo3d(from.Lat, from.Lng), core.GeoTo3d(to.Lat, to.Lng), b)
	lat, lng := core.GeoFrom3d(p)
	r.Lat = lat
	// Keep longitude continuous with the linear path.
	r.Lng += model.WrapLongitude(lng - r.Lng)
	return r
}

func blend(alpha float64, ease Easing, fastDirection bool) (a, b float64) {
	a = ease.Apply(alpha)
	b = a
	if fastDirection {
		b = ease.Apply(math.Min(1, 2*alpha))
	}
	return a, b
}

func lerp(a, b, t float64) float64 {
	return a + (b-a)*t
}

// logZoom interpolates zoom linearly in log2 space.
func logZoom(from, to, t float64) float64 {
	if t <= 0 {
		return from
	}
	if t >= 1 {
		return to
	}
	return math.Exp2(lerp(math.Log2(from), math.Log2(to), t))
}
