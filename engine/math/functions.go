package math

import (
	"encoding/binary"
	m "math"

	"github.com/chewxy/math32"
)

const (
	K_PI float32 = math32.Pi
	/** @brief A multiplier used to convert degrees to radians. */
	K_DEG2RAD_MULTIPLIER float32 = K_PI / 180.0
	/** @brief A multiplier used to convert radians to degrees. */
	K_RAD2DEG_MULTIPLIER float32 = 180.0 / K_PI
	/** @brief Smallest positive number where 1.0 + FLOAT_EPSILON != 0 */
	K_FLOAT_EPSILON float32 = 1.192092896e-07
)

func DegToRad(degrees float32) float32 {
	return degrees * K_DEG2RAD_MULTIPLIER
}

func RadToDeg(radians float32) float32 {
	return radians * K_RAD2DEG_MULTIPLIER
}

// ------------------------------------------
// Vector 2
// ------------------------------------------

func NewVec2(x, y float32) Vec2 {
	return Vec2{X: x, Y: y}
}

// ------------------------------------------
// Vector 3
// ------------------------------------------

func NewVec3(x, y, z float32) Vec3 {
	return Vec3{X: x, Y: y, Z: z}
}

func NewVec3Zero() Vec3 {
	return Vec3{}
}

func NewVec3One() Vec3 {
	return Vec3{1, 1, 1}
}

func (v Vec3) ToVec4(w float32) Vec4 {
	return Vec4{X: v.X, Y: v.Y, Z: v.Z, W: w}
}

func (v Vec3) Add(other Vec3) Vec3 {
	return Vec3{v.X + other.X, v.Y + other.Y, v.Z + other.Z}
}

func (v Vec3) Sub(other Vec3) Vec3 {
	return Vec3{v.X - other.X, v.Y - other.Y, v.Z - other.Z}
}

func (v Vec3) MulScalar(scalar float32) Vec3 {
	return Vec3{v.X * scalar, v.Y * scalar, v.Z * scalar}
}

func (v Vec3) Dot(other Vec3) float32 {
	return v.X*other.X + v.Y*other.Y + v.Z*other.Z
}

func (v Vec3) Cross(other Vec3) Vec3 {
	return Vec3{
		X: v.Y*other.Z - v.Z*other.Y,
		Y: v.Z*other.X - v.X*other.Z,
		Z: v.X*other.Y - v.Y*other.X,
	}
}

func (v Vec3) LengthSquared() float32 {
	return v.Dot(v)
}

func (v Vec3) Length() float32 {
	return math32.Sqrt(v.LengthSquared())
}

// Normalized returns a unit copy of v. The zero vector is returned unchanged.
func (v Vec3) Normalized() Vec3 {
	l := v.Length()
	if l < K_FLOAT_EPSILON {
		return v
	}
	return v.MulScalar(1 / l)
}

// Compare reports whether every component differs by at most tolerance.
func (v Vec3) Compare(other Vec3, tolerance float32) bool {
	return math32.Abs(v.X-other.X) <= tolerance &&
		math32.Abs(v.Y-other.Y) <= tolerance &&
		math32.Abs(v.Z-other.Z) <= tolerance
}

// ------------------------------------------
// Vector 4
// ------------------------------------------

func NewVec4(x, y, z, w float32) Vec4 {
	return Vec4{X: x, Y: y, Z: z, W: w}
}

func (v Vec4) ToVec3() Vec3 {
	return Vec3{X: v.X, Y: v.Y, Z: v.Z}
}

// ------------------------------------------
// Matrix 4
// ------------------------------------------

func NewMat4Identity() Mat4 {
	out := Mat4{}
	out.Data[0] = 1.0
	out.Data[5] = 1.0
	out.Data[10] = 1.0
	out.Data[15] = 1.0
	return out
}

// At returns the element at row r, column c.
func (mt Mat4) At(r, c int) float32 {
	return mt.Data[c*4+r]
}

// Mul returns mt * other, so other is applied first to a column vector.
func (mt Mat4) Mul(other Mat4) Mat4 {
	out := Mat4{}
	for c := 0; c < 4; c++ {
		for r := 0; r < 4; r++ {
			var sum float32
			for k := 0; k < 4; k++ {
				sum += mt.Data[k*4+r] * other.Data[c*4+k]
			}
			out.Data[c*4+r] = sum
		}
	}
	return out
}

func (mt Mat4) MulVec4(v Vec4) Vec4 {
	d := mt.Data
	return Vec4{
		X: d[0]*v.X + d[4]*v.Y + d[8]*v.Z + d[12]*v.W,
		Y: d[1]*v.X + d[5]*v.Y + d[9]*v.Z + d[13]*v.W,
		Z: d[2]*v.X + d[6]*v.Y + d[10]*v.Z + d[14]*v.W,
		W: d[3]*v.X + d[7]*v.Y + d[11]*v.Z + d[15]*v.W,
	}
}

// FlipY negates the Y scale of a projection so clip space matches
// Vulkan's downward Y axis.
func (mt Mat4) FlipY() Mat4 {
	mt.Data[5] *= -1
	return mt
}

// NewMat4Orthographic builds a right-handed orthographic projection with
// a [0, 1] depth range.
func NewMat4Orthographic(left, right, bottom, top, nearClip, farClip float32) Mat4 {
	out := NewMat4Identity()
	out.Data[0] = 2.0 / (right - left)
	out.Data[5] = 2.0 / (top - bottom)
	out.Data[10] = -1.0 / (farClip - nearClip)
	out.Data[12] = -(right + left) / (right - left)
	out.Data[13] = -(top + bottom) / (top - bottom)
	out.Data[14] = -nearClip / (farClip - nearClip)
	return out
}

// NewMat4Perspective builds a right-handed perspective projection with a
// [0, 1] depth range.
func NewMat4Perspective(fovRadians, aspectRatio, nearClip, farClip float32) Mat4 {
	halfTanFov := math32.Tan(fovRadians * 0.5)
	out := Mat4{}
	out.Data[0] = 1.0 / (aspectRatio * halfTanFov)
	out.Data[5] = 1.0 / halfTanFov
	out.Data[10] = farClip / (nearClip - farClip)
	out.Data[11] = -1.0
	out.Data[14] = -(farClip * nearClip) / (farClip - nearClip)
	return out
}

// NewMat4LookAt returns a right-handed view matrix looking from position
// at target.
func NewMat4LookAt(position, target, up Vec3) Mat4 {
	f := target.Sub(position).Normalized()
	s := f.Cross(up).Normalized()
	u := s.Cross(f)

	out := NewMat4Identity()
	out.Data[0] = s.X
	out.Data[4] = s.Y
	out.Data[8] = s.Z
	out.Data[1] = u.X
	out.Data[5] = u.Y
	out.Data[9] = u.Z
	out.Data[2] = -f.X
	out.Data[6] = -f.Y
	out.Data[10] = -f.Z
	out.Data[12] = -s.Dot(position)
	out.Data[13] = -u.Dot(position)
	out.Data[14] = f.Dot(position)
	return out
}

func NewMat4Translation(position Vec3) Mat4 {
	out := NewMat4Identity()
	out.Data[12] = position.X
	out.Data[13] = position.Y
	out.Data[14] = position.Z
	return out
}

func NewMat4Scale(scale Vec3) Mat4 {
	out := NewMat4Identity()
	out.Data[0] = scale.X
	out.Data[5] = scale.Y
	out.Data[10] = scale.Z
	return out
}

// NewMat4Rotation rotates angleRadians counter-clockwise about axis.
func NewMat4Rotation(angleRadians float32, axis Vec3) Mat4 {
	a := axis.Normalized()
	c := math32.Cos(angleRadians)
	s := math32.Sin(angleRadians)
	t := 1 - c

	out := NewMat4Identity()
	out.Data[0] = t*a.X*a.X + c
	out.Data[1] = t*a.X*a.Y + s*a.Z
	out.Data[2] = t*a.X*a.Z - s*a.Y

	out.Data[4] = t*a.X*a.Y - s*a.Z
	out.Data[5] = t*a.Y*a.Y + c
	out.Data[6] = t*a.Y*a.Z + s*a.X

	out.Data[8] = t*a.X*a.Z + s*a.Y
	out.Data[9] = t*a.Y*a.Z - s*a.X
	out.Data[10] = t*a.Z*a.Z + c
	return out
}

// Translate, Scale and Rotate post-multiply, so the new transform is applied
// before mt.
func (mt Mat4) Translate(v Vec3) Mat4 {
	return mt.Mul(NewMat4Translation(v))
}

func (mt Mat4) Scale(v Vec3) Mat4 {
	return mt.Mul(NewMat4Scale(v))
}

func (mt Mat4) Rotate(angleRadians float32, axis Vec3) Mat4 {
	return mt.Mul(NewMat4Rotation(angleRadians, axis))
}

func (mt Mat4) TransformPoint(p Vec3) Vec3 {
	v := mt.MulVec4(p.ToVec4(1))
	if v.W != 0 && v.W != 1 {
		return Vec3{v.X / v.W, v.Y / v.W, v.Z / v.W}
	}
	return v.ToVec3()
}

// AppendBytes appends the matrix in column-major little-endian order.
func (mt Mat4) AppendBytes(b []byte) []byte {
	for _, f := range mt.Data {
		b = binary.LittleEndian.AppendUint32(b, m.Float32bits(f))
	}
	return b
}

func (v Vec3) AppendBytes(b []byte) []byte {
	for _, f := range [3]float32{v.X, v.Y, v.Z} {
		b = binary.LittleEndian.AppendUint32(b, m.Float32bits(f))
	}
	return b
}

func (v Vec4) AppendBytes(b []byte) []byte {
	for _, f := range [4]float32{v.X, v.Y, v.Z, v.W} {
		b = binary.LittleEndian.AppendUint32(b, m.Float32bits(f))
	}
	return b
}
