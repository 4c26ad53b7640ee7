package math

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

const eps = 1e-5

func TestMat4MulIdentity(t *testing.T) {
	m := NewMat4Translation(NewVec3(1, 2, 3)).Mul(NewMat4Scale(NewVec3(2, 2, 2)))
	assert.Equal(t, m, NewMat4Identity().Mul(m))
	assert.Equal(t, m, m.Mul(NewMat4Identity()))
}

func TestMat4MulOrder(t *testing.T) {
	// translate after scale: (1,0,0) -> (2,0,0) -> (3,0,0)
	m := NewMat4Translation(NewVec3(1, 0, 0)).Mul(NewMat4Scale(NewVec3(2, 2, 2)))
	p := m.TransformPoint(NewVec3(1, 0, 0))
	assert.True(t, p.Compare(NewVec3(3, 0, 0), eps), "got %v", p)
}

func TestRotationAboutX(t *testing.T) {
	r := NewMat4Rotation(DegToRad(90), NewVec3(1, 0, 0))
	p := r.TransformPoint(NewVec3(0, 1, 0))
	assert.True(t, p.Compare(NewVec3(0, 0, 1), eps), "got %v", p)
}

func TestLookAtMovesEyeToOrigin(t *testing.T) {
	eye := NewVec3(10, 0, 10)
	view := NewMat4LookAt(eye, NewVec3Zero(), NewVec3(0, 0, 1))
	p := view.TransformPoint(eye)
	assert.True(t, p.Compare(NewVec3Zero(), 1e-4), "got %v", p)

	// the target lies straight down -Z in view space
	target := view.TransformPoint(NewVec3Zero())
	assert.InDelta(t, 0, target.X, 1e-4)
	assert.InDelta(t, 0, target.Y, 1e-4)
	assert.Less(t, target.Z, float32(0))
}

func TestPerspectiveDepthRange(t *testing.T) {
	near, far := float32(0.1), float32(10)
	proj := NewMat4Perspective(DegToRad(45), 1, near, far)

	n := proj.MulVec4(NewVec4(0, 0, -near, 1))
	f := proj.MulVec4(NewVec4(0, 0, -far, 1))
	assert.InDelta(t, 0, n.Z/n.W, 1e-4)
	assert.InDelta(t, 1, f.Z/f.W, 1e-4)
}

func TestOrthographicDepthRange(t *testing.T) {
	proj := NewMat4Orthographic(-6, 6, -6, 6, 0.1, 15)
	assert.InDelta(t, 0, proj.MulVec4(NewVec4(0, 0, -0.1, 1)).Z, 1e-5)
	assert.InDelta(t, 1, proj.MulVec4(NewVec4(0, 0, -15, 1)).Z, 1e-5)
	assert.InDelta(t, 1, proj.MulVec4(NewVec4(6, 0, -1, 1)).X, 1e-5)
}

func TestFlipY(t *testing.T) {
	proj := NewMat4Perspective(DegToRad(45), 1, 0.1, 10)
	flipped := proj.FlipY()
	assert.Equal(t, -proj.At(1, 1), flipped.At(1, 1))
	assert.Equal(t, proj.At(0, 0), flipped.At(0, 0))
}

func TestAppendBytes(t *testing.T) {
	b := NewMat4Identity().AppendBytes(nil)
	assert.Len(t, b, 64)
	// 1.0f little endian
	assert.Equal(t, []byte{0, 0, 0x80, 0x3f}, b[0:4])
	assert.Equal(t, []byte{0, 0, 0, 0}, b[4:8])
}

func TestGenerateNormals(t *testing.T) {
	pos := []Vec3{{0, 0, 0}, {1, 0, 0}, {0, 1, 0}}
	normals := GenerateNormals(pos, []uint32{0, 1, 2})
	for _, n := range normals {
		assert.True(t, n.Compare(NewVec3(0, 0, 1), eps))
	}
}

func TestClampAndAlign(t *testing.T) {
	assert.Equal(t, 5, Clamp(9, 0, 5))
	assert.Equal(t, float32(0), Clamp(float32(-1), 0, 1))
	assert.Equal(t, uint64(256), AlignUp(uint64(200), 256))
	assert.Equal(t, uint32(7), AlignUp(uint32(7), 0))
}
