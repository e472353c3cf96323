package core

import "math"

// Plane is the plane Ax + By + Cz + D = 0. After Normalize, (A,B,C) is a
// unit normal pointing into the visible half-space and Dot is a signed
// distance.
type Plane struct {
	A, B, C, D float64
}

// Normalize scales the plane so its normal has unit length.
func (p Plane) Normalize() Plane {
	n := math.Sqrt(p.A*p.A + p.B*p.B + p.C*p.C)
	if n == 0 {
		return p
	}
	return Plane{A: p.A / n, B: p.B / n, C: p.C / n, D: p.D / n}
}

// Dot returns the signed distance of v from a normalised plane.
func (p Plane) Dot(v Vec3) float64 {
	return p.A*v.X + p.B*v.Y + p.C*v.Z + p.D
}

// Frustum planes in extraction order.
const (
	FrustumLeft = iota
	FrustumRight
	FrustumBottom
	FrustumTop
	FrustumNear
	FrustumFar
)

// Frustum is the six clip planes of a view volume.
type Frustum [6]Plane

// ExtractFrustum derives the clip planes from a combined
// world·view·projection matrix by row combination (left/right from the
// first column, bottom/top from the second, near from the third and far
// from the fourth minus the third), normalising each plane.
func ExtractFrustum(vp Mat4) Frustum {
	col := func(j int) [4]float64 {
		return [4]float64{vp[0][j], vp[1][j], vp[2][j], vp[3][j]}
	}
	c1, c2, c3, c4 := col(0), col(1), col(2), col(3)
	mk := func(a, b [4]float64, sign float64) Plane {
		return Plane{
			A: a[0] + sign*b[0],
			B: a[1] + sign*b[1],
			C: a[2] + sign*b[2],
			D: a[3] + sign*b[3],
		}.Normalize()
	}
	var f Frustum
	f[FrustumLeft] = mk(c4, c1, 1)
	f[FrustumRight] = mk(c4, c1, -1)
	f[FrustumBottom] = mk(c4, c2, 1)
	f[FrustumTop] = mk(c4, c2, -1)
	f[FrustumNear] = Plane{A: c3[0], B: c3[1], C: c3[2], D: c3[3]}.Normalize()
	f[FrustumFar] = mk(c4, c3, -1)
	return f
}

// ContainsPoint reports whether p lies inside all six planes.
func (f Frustum) ContainsPoint(p Vec3) bool {
	for _, pl := range f {
		if pl.Dot(p) < 0 {
			return false
		}
	}
	return true
}

// IntersectsSphere reports whether a sphere touches the volume.
func (f Frustum) IntersectsSphere(center Vec3, radius float64) bool {
	for _, pl := range f {
		if pl.Dot(center) < -radius {
			return false
		}
	}
	return true
}
