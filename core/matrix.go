package core

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/spatial/r3"
)

// Mat4 is a 4x4 matrix in the row-vector convention: a point p is
// transformed as p·M, so A.Mul(B) applies A first and B second.
// m[0][0] is M11, m[3][2] is M43.
type Mat4 [4][4]float64

// Identity returns the identity matrix.
func Identity() Mat4 {
	return Mat4{
		{1, 0, 0, 0},
		{0, 1, 0, 0},
		{0, 0, 1, 0},
		{0, 0, 0, 1},
	}
}

// Translation returns a matrix translating by v.
func Translation(v Vec3) Mat4 {
	m := Identity()
	m[3][0], m[3][1], m[3][2] = v.X, v.Y, v.Z
	return m
}

// Scaling returns a uniform scale matrix.
func Scaling(s float64) Mat4 {
	m := Identity()
	m[0][0], m[1][1], m[2][2] = s, s, s
	return m
}

// RotationX rotates by angle radians about the X axis.
func RotationX(angle float64) Mat4 {
	s, c := math.Sincos(angle)
	return Mat4{
		{1, 0, 0, 0},
		{0, c, s, 0},
		{0, -s, c, 0},
		{0, 0, 0, 1},
	}
}

// RotationY rotates by angle radians about the Y axis.
func RotationY(angle float64) Mat4 {
	s, c := math.Sincos(angle)
	return Mat4{
		{c, 0, -s, 0},
		{0, 1, 0, 0},
		{s, 0, c, 0},
		{0, 0, 0, 1},
	}
}

// RotationZ rotates by angle radians about the Z axis.
func RotationZ(angle float64) Mat4 {
	s, c := math.Sincos(angle)
	return Mat4{
		{c, s, 0, 0},
		{-s, c, 0, 0},
		{0, 0, 1, 0},
		{0, 0, 0, 1},
	}
}

// RotationYawPitchRoll applies roll about Z, then pitch about X, then yaw
// about Y. Angles are radians.
func RotationYawPitchRoll(yaw, pitch, roll float64) Mat4 {
	return RotationZ(roll).Mul(RotationX(pitch)).Mul(RotationY(yaw))
}

// Mul returns m·n.
func (m Mat4) Mul(n Mat4) Mat4 {
	var r Mat4
	for i := 0; i < 4; i++ {
		for j := 0; j < 4; j++ {
			r[i][j] = m[i][0]*n[0][j] + m[i][1]*n[1][j] + m[i][2]*n[2][j] + m[i][3]*n[3][j]
		}
	}
	return r
}

// TransformPoint transforms p as a point (w=1) with perspective divide.
func (m Mat4) TransformPoint(p Vec3) Vec3 {
	x := p.X*m[0][0] + p.Y*m[1][0] + p.Z*m[2][0] + m[3][0]
	y := p.X*m[0][1] + p.Y*m[1][1] + p.Z*m[2][1] + m[3][1]
	z := p.X*m[0][2] + p.Y*m[1][2] + p.Z*m[2][2] + m[3][2]
	w := p.X*m[0][3] + p.Y*m[1][3] + p.Z*m[2][3] + m[3][3]
	if w != 0 && w != 1 {
		return Vec3{X: x / w, Y: y / w, Z: z / w}
	}
	return Vec3{X: x, Y: y, Z: z}
}

// TransformVector transforms v as a direction, ignoring translation.
func (m Mat4) TransformVector(v Vec3) Vec3 {
	return Vec3{
		X: v.X*m[0][0] + v.Y*m[1][0] + v.Z*m[2][0],
		Y: v.X*m[0][1] + v.Y*m[1][1] + v.Z*m[2][1],
		Z: v.X*m[0][2] + v.Y*m[1][2] + v.Z*m[2][2],
	}
}

// Transform4 applies m to the homogeneous vector (x, y, z, w).
func (m Mat4) Transform4(v [4]float64) [4]float64 {
	var r [4]float64
	for j := 0; j < 4; j++ {
		r[j] = v[0]*m[0][j] + v[1]*m[1][j] + v[2]*m[2][j] + v[3]*m[3][j]
	}
	return r
}

// Origin returns the translation row, i.e. where the local origin lands.
func (m Mat4) Origin() Vec3 {
	return Vec3{X: m[3][0], Y: m[3][1], Z: m[3][2]}
}

// Basis returns m with its translation removed.
func (m Mat4) Basis() Mat4 {
	m[3][0], m[3][1], m[3][2] = 0, 0, 0
	return m
}

// Transpose returns the transposed matrix.
func (m Mat4) Transpose() Mat4 {
	var r Mat4
	for i := 0; i < 4; i++ {
		for j := 0; j < 4; j++ {
			r[i][j] = m[j][i]
		}
	}
	return r
}

// Inverse returns the inverse of m. Singular matrices return an error.
func (m Mat4) Inverse() (Mat4, error) {
	a := mat.NewDense(4, 4, m.flat())
	var inv mat.Dense
	if err := inv.Inverse(a); err != nil {
		return Identity(), fmt.Errorf("invert matrix: %w", err)
	}
	var r Mat4
	for i := 0; i < 4; i++ {
		for j := 0; j < 4; j++ {
			r[i][j] = inv.At(i, j)
		}
	}
	return r, nil
}

// ApproxEqual compares element-wise with absolute tolerance tol.
func (m Mat4) ApproxEqual(n Mat4, tol float64) bool {
	for i := 0; i < 4; i++ {
		for j := 0; j < 4; j++ {
			if math.Abs(m[i][j]-n[i][j]) > tol {
				return false
			}
		}
	}
	return true
}

func (m Mat4) flat() []float64 {
	out := make([]float64, 0, 16)
	for i := 0; i < 4; i++ {
		out = append(out, m[i][:]...)
	}
	return out
}

// LookAtLH builds a left-handed view matrix.
func LookAtLH(eye, at, up Vec3) Mat4 {
	zaxis := r3.Unit(r3.Sub(at, eye))
	xaxis := r3.Unit(r3.Cross(up, zaxis))
	yaxis := r3.Cross(zaxis, xaxis)
	return Mat4{
		{xaxis.X, yaxis.X, zaxis.X, 0},
		{xaxis.Y, yaxis.Y, zaxis.Y, 0},
		{xaxis.Z, yaxis.Z, zaxis.Z, 0},
		{-r3.Dot(xaxis, eye), -r3.Dot(yaxis, eye), -r3.Dot(zaxis, eye), 1},
	}
}

// PerspectiveFovLH builds a left-handed perspective projection with depth
// mapped to [0,1]. fovY is radians.
func PerspectiveFovLH(fovY, aspect, near, far float64) Mat4 {
	yScale := 1 / math.Tan(fovY/2)
	xScale := yScale / aspect
	q := far / (far - near)
	return Mat4{
		{xScale, 0, 0, 0},
		{0, yScale, 0, 0},
		{0, 0, q, 1},
		{0, 0, -near * q, 0},
	}
}

// Mat3 is a 3x3 rotation basis in the same row-vector convention as Mat4.
type Mat3 [3][3]float64

// Identity3 returns the identity basis.
func Identity3() Mat3 {
	return Mat3{{1, 0, 0}, {0, 1, 0}, {0, 0, 1}}
}

// Mul returns m·n.
func (m Mat3) Mul(n Mat3) Mat3 {
	var r Mat3
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			r[i][j] = m[i][0]*n[0][j] + m[i][1]*n[1][j] + m[i][2]*n[2][j]
		}
	}
	return r
}

// Apply transforms v by m.
func (m Mat3) Apply(v Vec3) Vec3 {
	return Vec3{
		X: v.X*m[0][0] + v.Y*m[1][0] + v.Z*m[2][0],
		Y: v.X*m[0][1] + v.Y*m[1][1] + v.Z*m[2][1],
		Z: v.X*m[0][2] + v.Y*m[1][2] + v.Z*m[2][2],
	}
}

// Mat4 embeds the basis into a 4x4 matrix with translation t.
func (m Mat3) Mat4(t Vec3) Mat4 {
	return Mat4{
		{m[0][0], m[0][1], m[0][2], 0},
		{m[1][0], m[1][1], m[1][2], 0},
		{m[2][0], m[2][1], m[2][2], 0},
		{t.X, t.Y, t.Z, 1},
	}
}

// BasisFromRows builds a basis whose rows are the images of the x, y and z
// unit vectors.
func BasisFromRows(x, y, z Vec3) Mat3 {
	return Mat3{{x.X, x.Y, x.Z}, {y.X, y.Y, y.Z}, {z.X, z.Y, z.Z}}
}
