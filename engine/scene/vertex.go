package scene

import (
	"encoding/binary"
	m "math"

	"github.com/spaghettifunk/penumbra/engine/math"
	"github.com/spaghettifunk/penumbra/engine/renderer/pipeline"
)

// Vertex matches the interleaved layout in pipeline.VertexAttributes. Color.Z
// carries the model's transform index and MaterialIndex its texture layer.
type Vertex struct {
	Position      math.Vec3
	U             float32
	Color         math.Vec3
	V             float32
	Normal        math.Vec3
	MaterialIndex float32
}

func appendFloat(b []byte, f float32) []byte {
	return binary.LittleEndian.AppendUint32(b, m.Float32bits(f))
}

func (v Vertex) AppendBytes(b []byte) []byte {
	b = v.Position.AppendBytes(b)
	b = appendFloat(b, v.U)
	b = v.Color.AppendBytes(b)
	b = appendFloat(b, v.V)
	b = v.Normal.AppendBytes(b)
	return appendFloat(b, v.MaterialIndex)
}

func VertexBytes(vertices []Vertex) []byte {
	b := make([]byte, 0, len(vertices)*pipeline.VertexStride)
	for _, v := range vertices {
		b = v.AppendBytes(b)
	}
	return b
}

func IndexBytes(indices []uint32) []byte {
	b := make([]byte, 0, len(indices)*4)
	for _, i := range indices {
		b = binary.LittleEndian.AppendUint32(b, i)
	}
	return b
}
