package pano

import (
	"fmt"
	"math"
)

// Vec3 is a 3D vector in model or view space.
type Vec3 struct {
	X, Y, Z float64
}

func (v Vec3) sub(o Vec3) Vec3 { return Vec3{v.X - o.X, v.Y - o.Y, v.Z - o.Z} }
func (v Vec3) dot(o Vec3) float64 {
	return v.X*o.X + v.Y*o.Y + v.Z*o.Z
}
func (v Vec3) cross(o Vec3) Vec3 {
	return Vec3{
		v.Y*o.Z - v.Z*o.Y,
		v.Z*o.X - v.X*o.Z,
		v.X*o.Y - v.Y*o.X,
	}
}
func (v Vec3) length() float64 { return math.Sqrt(v.dot(v)) }

// Vec4 is a homogeneous coordinate, typically in clip space.
type Vec4 struct {
	X, Y, Z, W float64
}

// Mat4 is a 4x4 matrix stored in column-major order, the layout GPU uniform
// uploads expect: element (row r, column c) lives at index c*4+r.
type Mat4 [16]float64

// Identity returns the identity matrix.
func Identity() Mat4 {
	return Mat4{
		1, 0, 0, 0,
		0, 1, 0, 0,
		0, 0, 1, 0,
		0, 0, 0, 1,
	}
}

// Mul returns m * n.
func (m Mat4) Mul(n Mat4) Mat4 {
	var out Mat4
	for c := 0; c < 4; c++ {
		for r := 0; r < 4; r++ {
			out[c*4+r] = m[r]*n[c*4] + m[4+r]*n[c*4+1] + m[8+r]*n[c*4+2] + m[12+r]*n[c*4+3]
		}
	}
	return out
}

// Transform returns m * v.
func (m Mat4) Transform(v Vec4) Vec4 {
	return Vec4{
		X: m[0]*v.X + m[4]*v.Y + m[8]*v.Z + m[12]*v.W,
		Y: m[1]*v.X + m[5]*v.Y + m[9]*v.Z + m[13]*v.W,
		Z: m[2]*v.X + m[6]*v.Y + m[10]*v.Z + m[14]*v.W,
		W: m[3]*v.X + m[7]*v.Y + m[11]*v.Z + m[15]*v.W,
	}
}

// TransformPoint is Transform for a model-space position with w = 1.
func (m Mat4) TransformPoint(p Vec3) Vec4 {
	return m.Transform(Vec4{p.X, p.Y, p.Z, 1})
}

// Rotate returns m * R, where R rotates by deg degrees about axis using the
// right-hand rule. A zero axis leaves m unchanged.
func (m Mat4) Rotate(deg float64, axis Vec3) Mat4 {
	l := axis.length()
	if l == 0 {
		return m
	}
	x, y, z := axis.X/l, axis.Y/l, axis.Z/l
	rad := DegToRad(deg)
	s, c := math.Sin(rad), math.Cos(rad)
	nc := 1 - c

	r := Mat4{
		x*x*nc + c, x*y*nc + z*s, z*x*nc - y*s, 0,
		x*y*nc - z*s, y*y*nc + c, y*z*nc + x*s, 0,
		z*x*nc + y*s, y*z*nc - x*s, z*z*nc + c, 0,
		0, 0, 0, 1,
	}
	return m.Mul(r)
}

// Perspective builds a perspective projection with a vertical field of view
// of fovy degrees.
func Perspective(fovy, aspect, near, far float64) (Mat4, error) {
	if math.IsNaN(fovy) || fovy <= 0 || fovy >= 180 {
		return Mat4{}, fmt.Errorf("perspective fovy %v: %w", fovy, ErrFieldOfViewRange)
	}
	if near <= 0 || far <= 0 || near == far {
		return Mat4{}, fmt.Errorf("perspective near %v far %v: %w", near, far, ErrDegenerateProjection)
	}
	if aspect == 0 || math.IsNaN(aspect) || math.IsInf(aspect, 0) {
		return Mat4{}, fmt.Errorf("perspective aspect %v: %w", aspect, ErrDegenerateProjection)
	}
	half := DegToRad(fovy) / 2
	sine := math.Sin(half)
	if sine == 0 {
		return Mat4{}, fmt.Errorf("perspective fovy %v: %w", fovy, ErrDegenerateProjection)
	}
	cot := math.Cos(half) / sine
	rd := 1 / (far - near)

	return Mat4{
		cot / aspect, 0, 0, 0,
		0, cot, 0, 0,
		0, 0, -(far + near) * rd, -1,
		0, 0, -2 * near * far * rd, 0,
	}, nil
}

// LookAt builds a view matrix for an eye at eye looking toward center.
func LookAt(eye, center, up Vec3) (Mat4, error) {
	f := center.sub(eye)
	fl := f.length()
	if fl == 0 {
		return Mat4{}, fmt.Errorf("look-at eye equals center: %w", ErrDegenerateProjection)
	}
	f = Vec3{f.X / fl, f.Y / fl, f.Z / fl}

	s := f.cross(up)
	sl := s.length()
	if sl == 0 {
		return Mat4{}, fmt.Errorf("look-at up parallel to view direction: %w", ErrDegenerateProjection)
	}
	s = Vec3{s.X / sl, s.Y / sl, s.Z / sl}
	u := s.cross(f)

	return Mat4{
		s.X, u.X, -f.X, 0,
		s.Y, u.Y, -f.Y, 0,
		s.Z, u.Z, -f.Z, 0,
		-s.dot(eye), -u.dot(eye), f.dot(eye), 1,
	}, nil
}

// Default eye placement: at the origin looking down -Z with +Y up.
var (
	eyePosition = Vec3{0, 0, 0}
	eyeTarget   = Vec3{0, 0, -1}
	eyeUp       = Vec3{0, 1, 0}
)

// Projection is the camera state a frame's view-projection is derived from.
type Projection struct {
	Pitch, Yaw  float64 // degrees
	FieldOfView float64 // vertical, degrees
	Aspect      float64 // viewport width / height
	Near, Far   float64
}

// ViewProjection builds perspective * lookAt * Rx(-pitch) * Ry(yaw). Each
// rotation is a right-multiply, so yaw is applied in the pitched frame.
func ViewProjection(p Projection) (Mat4, error) {
	near, far := p.Near, p.Far
	if near == 0 && far == 0 {
		near, far = DefaultNear, DefaultFar
	}
	m, err := Perspective(p.FieldOfView, p.Aspect, near, far)
	if err != nil {
		return Mat4{}, err
	}
	view, err := LookAt(eyePosition, eyeTarget, eyeUp)
	if err != nil {
		return Mat4{}, err
	}
	m = m.Mul(view)
	m = m.Rotate(-p.Pitch, Vec3{1, 0, 0})
	m = m.Rotate(p.Yaw, Vec3{0, 1, 0})
	return m, nil
}
