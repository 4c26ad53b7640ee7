package scene

import (
	"errors"
	"fmt"

	"github.com/spaghettifunk/penumbra/engine/core"
	"github.com/spaghettifunk/penumbra/engine/math"
	"github.com/spaghettifunk/penumbra/engine/renderer/gpu"
	"github.com/spaghettifunk/penumbra/engine/renderer/resources"
)

var ErrEmptyModel = errors.New("model has no geometry")

// Model is an indexed triangle mesh. After CreateBuffers its vertex and
// index data live in the resource pool and it can be drawn or cast shadows.
type Model struct {
	Name     string
	Vertices []Vertex
	Indices  []uint32

	Transform   math.Mat4
	BaseTexture float32

	vertexHandle resources.BufferHandle
	indexHandle  resources.BufferHandle
	vertex       gpu.Buffer
	index        gpu.Buffer
}

// ModelInfo locates a model inside a Scene.
type ModelInfo struct {
	Index     int
	Transform int
	Opaque    bool
}

func (m *Model) Buffers() (gpu.Buffer, gpu.Buffer) { return m.vertex, m.index }
func (m *Model) IndexCount() uint32                { return uint32(len(m.Indices)) }
func (m *Model) ModelMatrix() math.Mat4            { return m.Transform }

// CreateBuffers uploads the mesh into host-visible vertex and index buffers.
func (m *Model) CreateBuffers(pool *resources.Pool) error {
	const op = "scene.CreateBuffers"
	if len(m.Vertices) == 0 || len(m.Indices) == 0 {
		return core.Usage(op, fmt.Errorf("%w: %s", ErrEmptyModel, m.Name))
	}
	var err error
	if m.vertexHandle, err = pool.CreateVertexBuffer(VertexBytes(m.Vertices)); err != nil {
		return err
	}
	if m.indexHandle, err = pool.CreateIndexBuffer(IndexBytes(m.Indices)); err != nil {
		return err
	}
	if m.vertex, err = pool.Buffer(m.vertexHandle); err != nil {
		return err
	}
	if m.index, err = pool.Buffer(m.indexHandle); err != nil {
		return err
	}
	core.LogDebug("model %s: %d vertices, %d indices", m.Name, len(m.Vertices), len(m.Indices))
	return nil
}

// RefreshBuffers rewrites the vertex and index buffers in place. The mesh
// must not have grown since CreateBuffers.
func (m *Model) RefreshBuffers(pool *resources.Pool) error {
	if err := pool.UpdateBuffer(m.vertexHandle, VertexBytes(m.Vertices)); err != nil {
		return err
	}
	return pool.UpdateBuffer(m.indexHandle, IndexBytes(m.Indices))
}

// tag stamps every vertex with the model's transform index and offsets its
// material index by the model's first texture layer.
func (m *Model) tag(transform int, baseTexture float32) {
	m.BaseTexture = baseTexture
	for i := range m.Vertices {
		m.Vertices[i].Color = math.NewVec3(1, 1, float32(transform))
		m.Vertices[i].MaterialIndex += baseTexture
	}
}
