package scene

import (
	"testing"

	"github.com/chewxy/math32"
	"github.com/spaghettifunk/penumbra/engine/math"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func assertIndicesInRange(t *testing.T, m *Model) {
	t.Helper()
	require.Zero(t, len(m.Indices)%3)
	for _, i := range m.Indices {
		require.Less(t, int(i), len(m.Vertices))
	}
}

func TestGeneratePlane(t *testing.T) {
	m := GeneratePlane(4, 2, 2, 1, 2, 1)
	assert.Len(t, m.Vertices, 8)
	assert.Len(t, m.Indices, 12)
	assertIndicesInRange(t, m)
	for _, v := range m.Vertices {
		assert.Equal(t, math.NewVec3(0, 0, 1), v.Normal)
		assert.InDelta(t, 0, v.Position.Z, 1e-6)
		assert.LessOrEqual(t, math32.Abs(v.Position.X), float32(2))
		assert.LessOrEqual(t, math32.Abs(v.Position.Y), float32(1))
	}
	assert.Equal(t, float32(2), m.Vertices[5].U)
}

func TestGeneratePlaneDefaults(t *testing.T) {
	m := GeneratePlane(0, 0, 0, 0, 0, 0)
	assert.Len(t, m.Vertices, 4)
	assert.Equal(t, float32(0.5), m.Vertices[1].Position.X)
}

func TestGenerateCube(t *testing.T) {
	m := GenerateCube(2, 2, 2, 1, 1)
	assert.Len(t, m.Vertices, 24)
	assert.Len(t, m.Indices, 36)
	assertIndicesInRange(t, m)
	for _, v := range m.Vertices {
		// every corner sits on the face its normal points at
		assert.InDelta(t, 1, v.Position.Dot(v.Normal), 1e-6)
	}
}

func TestGenerateSphere(t *testing.T) {
	m := GenerateSphere(2, 8, 4)
	assert.Len(t, m.Vertices, 9*5)
	assert.Len(t, m.Indices, 8*4*6)
	assertIndicesInRange(t, m)
	for _, v := range m.Vertices {
		assert.InDelta(t, 2, v.Position.Length(), 1e-4)
		assert.InDelta(t, 1, v.Normal.Length(), 1e-4)
	}
	assert.InDelta(t, 2, m.Vertices[0].Position.Z, 1e-5)
}

func TestNewShape(t *testing.T) {
	for _, name := range []string{ShapePlane, ShapeCube, ShapeSphere} {
		m, err := NewShape(name)
		require.NoError(t, err, name)
		assert.Equal(t, name, m.Name)
		assert.Equal(t, math.NewMat4Identity(), m.Transform)
	}
	_, err := NewShape("torus")
	assert.Error(t, err)
}

func TestVertexBytesLayout(t *testing.T) {
	v := Vertex{
		Position:      math.NewVec3(1, 2, 3),
		U:             4,
		Color:         math.NewVec3(5, 6, 7),
		V:             8,
		Normal:        math.NewVec3(9, 10, 11),
		MaterialIndex: 12,
	}
	b := VertexBytes([]Vertex{v, v})
	require.Len(t, b, 96)
	want := math.NewVec3(1, 2, 3).AppendBytes(nil)
	assert.Equal(t, want, b[:12])
	assert.Equal(t, b[:48], b[48:])

	assert.Equal(t, []byte{1, 0, 0, 0, 2, 0, 0, 0}, IndexBytes([]uint32{1, 2}))
}
