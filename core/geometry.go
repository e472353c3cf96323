package core

import (
	"math"

	"gonum.org/v1/gonum/spatial/r3"
)

// Vec3 is a double precision 3-vector. It aliases gonum's r3.Vec so the r3
// helpers (Add, Sub, Scale, Cross, Unit, ...) apply directly.
type Vec3 = r3.Vec

// Unit conversions shared by the frame graph and the pipeline.
const (
	MetersPerAU = 149597870700.0
	DegToRad    = math.Pi / 180
	RadToDeg    = 180 / math.Pi
)

// GeoTo3d converts a latitude/longitude pair in degrees into a unit vector
// on a Y-up sphere: x toward lng 0, z toward lng 90, y toward the pole.
func GeoTo3d(lat, lng float64) Vec3 {
	sLat, cLat := math.Sincos(lat * DegToRad)
	sLng, cLng := math.Sincos(lng * DegToRad)
	return Vec3{X: cLng * cLat, Y: sLat, Z: sLng * cLat}
}

// GeoFrom3d is the inverse of GeoTo3d. The vector need not be normalised.
func GeoFrom3d(v Vec3) (lat, lng float64) {
	n := r3.Norm(v)
	if n == 0 {
		return 0, 0
	}
	y := v.Y / n
	if y > 1 {
		y = 1
	} else if y < -1 {
		y = -1
	}
	return math.Asin(y) * RadToDeg, math.Atan2(v.Z, v.X) * RadToDeg
}

// AngleBetween returns the angle between two vectors in degrees. Zero-length
// inputs yield zero.
func AngleBetween(a, b Vec3) float64 {
	na, nb := r3.Norm(a), r3.Norm(b)
	if na == 0 || nb == 0 {
		return 0
	}
	cos := r3.Dot(a, b) / (na * nb)
	if cos > 1 {
		cos = 1
	} else if cos < -1 {
		cos = -1
	}
	return math.Acos(cos) * RadToDeg
}

// Slerp interpolates between unit vectors a and b along the great circle.
func Slerp(a, b Vec3, t float64) Vec3 {
	omega := AngleBetween(a, b) * DegToRad
	if omega < 1e-12 {
		return Lerp(a, b, t)
	}
	so := math.Sin(omega)
	if so < 1e-12 {
		return Lerp(a, b, t)
	}
	return r3.Add(
		r3.Scale(math.Sin((1-t)*omega)/so, a),
		r3.Scale(math.Sin(t*omega)/so, b),
	)
}

// Lerp linearly interpolates between a and b.
func Lerp(a, b Vec3, t float64) Vec3 {
	return r3.Add(r3.Scale(1-t, a), r3.Scale(t, b))
}

// IsFinite reports whether all components are finite.
func IsFinite(v Vec3) bool {
	return !math.IsNaN(v.X) && !math.IsNaN(v.Y) && !math.IsNaN(v.Z) &&
		!math.IsInf(v.X, 0) && !math.IsInf(v.Y, 0) && !math.IsInf(v.Z, 0)
}
