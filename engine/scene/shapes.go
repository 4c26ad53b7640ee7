package scene

import (
	"fmt"

	"github.com/chewxy/math32"
	"github.com/spaghettifunk/penumbra/engine/core"
	"github.com/spaghettifunk/penumbra/engine/math"
)

// Shape names accepted by NewShape and the scene file.
const (
	ShapePlane  = "plane"
	ShapeCube   = "cube"
	ShapeSphere = "sphere"
)

// NewShape builds a unit-sized procedural mesh by name.
func NewShape(name string) (*Model, error) {
	switch name {
	case ShapePlane:
		return GeneratePlane(2, 2, 1, 1, 1, 1), nil
	case ShapeCube:
		return GenerateCube(1, 1, 1, 1, 1), nil
	case ShapeSphere:
		return GenerateSphere(0.5, 32, 16), nil
	}
	return nil, fmt.Errorf("unknown shape %q", name)
}

// GeneratePlane lays a width×height plane in XY facing +Z, split into
// xSegments×ySegments quads. The texture repeats tileX×tileY times.
func GeneratePlane(width, height float32, xSegments, ySegments uint32, tileX, tileY float32) *Model {
	if width == 0 {
		core.LogWarn("Width must be nonzero. Defaulting to one.")
		width = 1.0
	}
	if height == 0 {
		core.LogWarn("Height must be nonzero. Defaulting to one.")
		height = 1.0
	}
	xSegments = max(xSegments, 1)
	ySegments = max(ySegments, 1)
	if tileX == 0 {
		tileX = 1.0
	}
	if tileY == 0 {
		tileY = 1.0
	}

	m := &Model{
		Name:      ShapePlane,
		Vertices:  make([]Vertex, 0, xSegments*ySegments*4),
		Indices:   make([]uint32, 0, xSegments*ySegments*6),
		Transform: math.NewMat4Identity(),
	}
	segWidth := width / float32(xSegments)
	segHeight := height / float32(ySegments)
	halfWidth := width * 0.5
	halfHeight := height * 0.5
	up := math.NewVec3(0, 0, 1)
	for y := uint32(0); y < ySegments; y++ {
		for x := uint32(0); x < xSegments; x++ {
			minX := float32(x)*segWidth - halfWidth
			minY := float32(y)*segHeight - halfHeight
			maxX := minX + segWidth
			maxY := minY + segHeight
			minU := float32(x) / float32(xSegments) * tileX
			minV := float32(y) / float32(ySegments) * tileY
			maxU := float32(x+1) / float32(xSegments) * tileX
			maxV := float32(y+1) / float32(ySegments) * tileY

			base := uint32(len(m.Vertices))
			m.Vertices = append(m.Vertices,
				Vertex{Position: math.NewVec3(minX, minY, 0), U: minU, V: minV, Normal: up},
				Vertex{Position: math.NewVec3(maxX, maxY, 0), U: maxU, V: maxV, Normal: up},
				Vertex{Position: math.NewVec3(minX, maxY, 0), U: minU, V: maxV, Normal: up},
				Vertex{Position: math.NewVec3(maxX, minY, 0), U: maxU, V: minV, Normal: up},
			)
			m.Indices = append(m.Indices, base, base+1, base+2, base, base+3, base+1)
		}
	}
	return m
}

// GenerateCube builds an axis-aligned box centered on the origin with four
// vertices per face so each face gets its own normal.
func GenerateCube(width, height, depth, tileX, tileY float32) *Model {
	if width == 0 {
		width = 1.0
	}
	if height == 0 {
		height = 1.0
	}
	if depth == 0 {
		depth = 1.0
	}
	if tileX == 0 {
		tileX = 1.0
	}
	if tileY == 0 {
		tileY = 1.0
	}
	x, y, z := width*0.5, height*0.5, depth*0.5

	faces := []struct {
		normal  math.Vec3
		corners [4]math.Vec3
	}{
		{math.NewVec3(0, 0, 1), [4]math.Vec3{{-x, -y, z}, {x, y, z}, {-x, y, z}, {x, -y, z}}},
		{math.NewVec3(0, 0, -1), [4]math.Vec3{{x, -y, -z}, {-x, y, -z}, {x, y, -z}, {-x, -y, -z}}},
		{math.NewVec3(-1, 0, 0), [4]math.Vec3{{-x, -y, -z}, {-x, y, z}, {-x, y, -z}, {-x, -y, z}}},
		{math.NewVec3(1, 0, 0), [4]math.Vec3{{x, -y, z}, {x, y, -z}, {x, y, z}, {x, -y, -z}}},
		{math.NewVec3(0, -1, 0), [4]math.Vec3{{x, -y, z}, {-x, -y, -z}, {x, -y, -z}, {-x, -y, z}}},
		{math.NewVec3(0, 1, 0), [4]math.Vec3{{-x, y, z}, {x, y, -z}, {-x, y, -z}, {x, y, z}}},
	}
	uvs := [4][2]float32{{0, 0}, {tileX, tileY}, {0, tileY}, {tileX, 0}}

	m := &Model{
		Name:      ShapeCube,
		Vertices:  make([]Vertex, 0, 24),
		Indices:   make([]uint32, 0, 36),
		Transform: math.NewMat4Identity(),
	}
	for _, f := range faces {
		base := uint32(len(m.Vertices))
		for i, c := range f.corners {
			m.Vertices = append(m.Vertices, Vertex{Position: c, U: uvs[i][0], V: uvs[i][1], Normal: f.normal})
		}
		m.Indices = append(m.Indices, base, base+1, base+2, base, base+3, base+1)
	}
	return m
}

// GenerateSphere builds a UV sphere with the poles on the Z axis.
func GenerateSphere(radius float32, segments, rings uint32) *Model {
	if radius == 0 {
		radius = 0.5
	}
	segments = max(segments, 3)
	rings = max(rings, 2)

	m := &Model{
		Name:      ShapeSphere,
		Vertices:  make([]Vertex, 0, (segments+1)*(rings+1)),
		Indices:   make([]uint32, 0, segments*rings*6),
		Transform: math.NewMat4Identity(),
	}
	for r := uint32(0); r <= rings; r++ {
		v := float32(r) / float32(rings)
		theta := v * math32.Pi
		for s := uint32(0); s <= segments; s++ {
			u := float32(s) / float32(segments)
			phi := u * 2 * math32.Pi
			n := math.NewVec3(
				math32.Sin(theta)*math32.Cos(phi),
				math32.Sin(theta)*math32.Sin(phi),
				math32.Cos(theta),
			)
			m.Vertices = append(m.Vertices, Vertex{Position: n.MulScalar(radius), U: u, V: v, Normal: n})
		}
	}
	stride := segments + 1
	for r := uint32(0); r < rings; r++ {
		for s := uint32(0); s < segments; s++ {
			a := r*stride + s
			b := a + stride
			m.Indices = append(m.Indices, a, b, a+1, a+1, b, b+1)
		}
	}
	return m
}
