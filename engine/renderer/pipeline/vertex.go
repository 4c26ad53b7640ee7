package pipeline

import "github.com/spaghettifunk/penumbra/engine/renderer/gpu"

// VertexStride is the size of one interleaved vertex:
// position, u, color, v, normal, material index.
const VertexStride = 48

func VertexBindings() []gpu.VertexBinding {
	return []gpu.VertexBinding{{Binding: 0, Stride: VertexStride}}
}

func VertexAttributes() []gpu.VertexAttribute {
	return []gpu.VertexAttribute{
		{Location: 0, Binding: 0, Format: gpu.FormatR32G32B32Sfloat, Offset: 0},
		{Location: 1, Binding: 0, Format: gpu.FormatR32Sfloat, Offset: 12},
		{Location: 2, Binding: 0, Format: gpu.FormatR32G32B32Sfloat, Offset: 16},
		{Location: 3, Binding: 0, Format: gpu.FormatR32Sfloat, Offset: 28},
		{Location: 4, Binding: 0, Format: gpu.FormatR32G32B32Sfloat, Offset: 32},
		{Location: 5, Binding: 0, Format: gpu.FormatR32Sfloat, Offset: 44},
	}
}
