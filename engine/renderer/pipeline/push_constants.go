package pipeline

import (
	"github.com/spaghettifunk/penumbra/engine/math"
)

// Push constant block sizes in bytes.
const (
	PushConstantsSize       = 3*64 + 2*16
	ShadowPushConstantsSize = 2 * 64
)

// PushConstants is the main pass block, laid out field by field in the
// order the shaders declare it.
type PushConstants struct {
	Proj                math.Mat4
	View                math.Mat4
	LightViewProjection math.Mat4
	LightPosition       math.Vec4
	LightColor          math.Vec4
}

func (pc PushConstants) Bytes() []byte {
	b := make([]byte, 0, PushConstantsSize)
	b = pc.Proj.AppendBytes(b)
	b = pc.View.AppendBytes(b)
	b = pc.LightViewProjection.AppendBytes(b)
	b = pc.LightPosition.AppendBytes(b)
	return pc.LightColor.AppendBytes(b)
}

type ShadowPushConstants struct {
	LightViewProjection math.Mat4
	Model               math.Mat4
}

func (pc ShadowPushConstants) Bytes() []byte {
	b := make([]byte, 0, ShadowPushConstantsSize)
	b = pc.LightViewProjection.AppendBytes(b)
	return pc.Model.AppendBytes(b)
}
