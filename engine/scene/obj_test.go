package scene

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spaghettifunk/penumbra/engine/math"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const quadOBJ = `
v -1 -1 0
v 1 -1 0
v 1 1 0
v -1 1 0
vt 0 0
vt 1 0
vt 1 1
vt 0 1
vn 0 0 1
f 1/1/1 2/2/1 3/3/1 4/4/1
`

func TestDecodeOBJQuad(t *testing.T) {
	m, err := DecodeOBJ(strings.NewReader(quadOBJ), strings.NewReader(""))
	require.NoError(t, err)

	// the quad fans into two triangles sharing the diagonal
	assert.Len(t, m.Vertices, 4)
	assert.Equal(t, []uint32{0, 1, 2, 0, 2, 3}, m.Indices)

	assert.Equal(t, math.NewVec3(-1, -1, 0), m.Vertices[0].Position)
	assert.Equal(t, float32(1), m.Vertices[0].V, "V is flipped")
	assert.Equal(t, float32(0), m.Vertices[2].V)
	assert.Equal(t, math.NewVec3(0, 0, 1), m.Vertices[1].Normal)
	assert.Equal(t, objRotation, m.Transform)
}

func TestDecodeOBJGeneratesMissingNormals(t *testing.T) {
	const src = `
v -1 -1 0
v 1 -1 0
v 1 1 0
v -1 1 0
f 1 2 3 4
`
	m, err := DecodeOBJ(strings.NewReader(src), strings.NewReader(""))
	require.NoError(t, err)
	require.Len(t, m.Vertices, 4)

	// counter-clockwise in the XY plane faces +Z
	for i, v := range m.Vertices {
		assert.InDelta(t, 0, v.Normal.X, 1e-6, "vertex %d", i)
		assert.InDelta(t, 0, v.Normal.Y, 1e-6, "vertex %d", i)
		assert.InDelta(t, 1, v.Normal.Z, 1e-6, "vertex %d", i)
	}
}

func TestDecodeOBJMaterials(t *testing.T) {
	src := `
mtllib quad.mtl
v 0 0 0
v 1 0 0
v 1 1 0
v 0 1 0
usemtl stone
f 1 2 3
usemtl wood
f 1 3 4
`
	mtl := `
newmtl stone
Kd 1 1 1
newmtl wood
Kd 1 1 1
`
	m, err := DecodeOBJ(strings.NewReader(src), strings.NewReader(mtl))
	require.NoError(t, err)
	require.Len(t, m.Indices, 6)

	// shared positions split when the material differs
	assert.Len(t, m.Vertices, 6)
	assert.Equal(t, float32(0), m.Vertices[m.Indices[0]].MaterialIndex)
	assert.Equal(t, float32(1), m.Vertices[m.Indices[3]].MaterialIndex)
}

func TestDecodeOBJEmpty(t *testing.T) {
	_, err := DecodeOBJ(strings.NewReader("v 0 0 0\n"), strings.NewReader(""))
	assert.ErrorIs(t, err, ErrEmptyModel)
}

func TestLoadOBJ(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "quad.obj")
	require.NoError(t, os.WriteFile(path, []byte(quadOBJ), 0o644))

	m, err := LoadOBJ(path)
	require.NoError(t, err)
	assert.Equal(t, "quad.obj", m.Name)
	assert.Len(t, m.Indices, 6)

	_, err = LoadOBJ(filepath.Join(dir, "missing.obj"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}
