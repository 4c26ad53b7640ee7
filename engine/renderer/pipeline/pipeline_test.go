package pipeline

import (
	"encoding/binary"
	"math"
	"testing"

	"github.com/spaghettifunk/penumbra/engine/core"
	pmath "github.com/spaghettifunk/penumbra/engine/math"
	"github.com/spaghettifunk/penumbra/engine/renderer/gpu"
	"github.com/spaghettifunk/penumbra/engine/renderer/gpu/gputest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var spirv = []byte{0x03, 0x02, 0x23, 0x07, 0, 0, 1, 0}

func mainParams(kind Kind) Params {
	return Params{
		Kind:             kind,
		VertexShader:     spirv,
		FragmentShader:   spirv,
		DescriptorLayout: 0,
		ColorFormat:      gpu.FormatB8G8R8A8Unorm,
		DepthFormat:      gpu.FormatD32Sfloat,
		ShadowExtent:     gpu.Extent2D{Width: 2048, Height: 2048},
	}
}

func TestOpaqueCreatesMainRenderPass(t *testing.T) {
	dev := gputest.New()
	p, err := New(dev, mainParams(Opaque))
	require.NoError(t, err)
	assert.True(t, p.OwnsRenderPass)
	assert.Equal(t, Opaque, p.Kind)

	rp, ok := dev.RenderPassDesc(p.RenderPass)
	require.True(t, ok)
	require.Len(t, rp.Attachments, 3)
	assert.Equal(t, gpu.Samples4, rp.Attachments[0].Samples)
	assert.Equal(t, gpu.LayoutPresentSrc, rp.Attachments[2].FinalLayout)
	assert.Equal(t, gpu.Samples1, rp.Attachments[2].Samples)
	require.Len(t, rp.Dependencies, 1)
	assert.Equal(t, gpu.SubpassExternal, rp.Dependencies[0].SrcSubpass)

	desc, ok := dev.PipelineDesc(p.Handle)
	require.True(t, ok)
	assert.False(t, desc.BlendEnable)
	assert.True(t, desc.DepthTest)
	assert.True(t, desc.DepthWrite)
	assert.Equal(t, gpu.CompareLess, desc.DepthCompare)
	assert.Equal(t, gpu.CullBack, desc.CullMode)
	assert.Equal(t, gpu.Samples4, desc.Samples)
	assert.True(t, desc.DynamicViewport)
	assert.Len(t, desc.VertexAttributes, 6)

	layout, ok := dev.PipelineLayoutDesc(p.Layout)
	require.True(t, ok)
	assert.Equal(t, []gpu.PushConstantRange{{Stages: gpu.StageVertex | gpu.StageFragment, Size: 224}}, layout.PushConstants)

	p.Destroy(dev)
	assert.Zero(t, dev.LiveObjects())
	assert.Empty(t, dev.Misuse)
}

func TestSingleSampleMainPassHasNoResolve(t *testing.T) {
	desc := MainRenderPassDesc(gpu.FormatB8G8R8A8Unorm, gpu.FormatD32Sfloat, gpu.Samples1)
	require.Len(t, desc.Attachments, 2)
	assert.Empty(t, desc.Resolve)
	assert.Equal(t, gpu.Samples1, desc.Attachments[0].Samples)
	assert.Equal(t, gpu.LayoutPresentSrc, desc.Attachments[0].FinalLayout)
	assert.Equal(t, gpu.Samples1, desc.Attachments[1].Samples)
	require.NotNil(t, desc.Depth)
	assert.Equal(t, uint32(1), desc.Depth.Attachment)

	msaa := MainRenderPassDesc(gpu.FormatB8G8R8A8Unorm, gpu.FormatD32Sfloat, gpu.Samples4)
	require.Len(t, msaa.Attachments, 3)
	require.Len(t, msaa.Resolve, 1)
	assert.Equal(t, uint32(2), msaa.Resolve[0].Attachment)
	assert.Equal(t, gpu.LayoutColorAttachment, msaa.Attachments[0].FinalLayout)

	// a zero sample count is treated as one
	assert.Len(t, MainRenderPassDesc(gpu.FormatB8G8R8A8Unorm, gpu.FormatD32Sfloat, 0).Attachments, 2)
}

func TestOpaqueAdoptsExistingRenderPass(t *testing.T) {
	dev := gputest.New()
	existing, err := dev.CreateRenderPass(gpu.RenderPassDesc{})
	require.NoError(t, err)

	params := mainParams(Opaque)
	params.RenderPass = existing
	p, err := New(dev, params)
	require.NoError(t, err)
	assert.False(t, p.OwnsRenderPass)
	assert.Equal(t, existing, p.RenderPass)

	p.Destroy(dev)
	_, alive := dev.RenderPassDesc(existing)
	assert.True(t, alive, "adopted render pass must survive Destroy")
}

func TestTransparentBlendsOnTheMainPass(t *testing.T) {
	dev := gputest.New()
	opaque, err := New(dev, mainParams(Opaque))
	require.NoError(t, err)

	params := mainParams(Transparent)
	params.RenderPass = opaque.RenderPass
	transparent, err := New(dev, params)
	require.NoError(t, err)
	assert.False(t, transparent.OwnsRenderPass)

	desc, _ := dev.PipelineDesc(transparent.Handle)
	assert.True(t, desc.BlendEnable)
	assert.True(t, desc.DepthTest)
	assert.False(t, desc.DepthWrite, "transparent meshes must not occlude each other")

	_, err = New(dev, mainParams(Transparent))
	assert.ErrorIs(t, err, ErrNoRenderPass)
	assert.True(t, core.IsUsage(err))
}

func TestShadowPipeline(t *testing.T) {
	dev := gputest.New()
	p, err := New(dev, mainParams(Shadow))
	require.NoError(t, err)
	assert.True(t, p.OwnsRenderPass)

	desc, _ := dev.PipelineDesc(p.Handle)
	assert.Equal(t, gpu.Samples1, desc.Samples)
	assert.False(t, desc.ColorAttachment)
	assert.False(t, desc.DynamicViewport)
	assert.Equal(t, gpu.Extent2D{Width: 2048, Height: 2048}, desc.Extent)

	layout, _ := dev.PipelineLayoutDesc(p.Layout)
	assert.Empty(t, layout.SetLayouts)
	assert.Equal(t, []gpu.PushConstantRange{{Stages: gpu.StageVertex, Size: 128}}, layout.PushConstants)

	rp, _ := dev.RenderPassDesc(p.RenderPass)
	require.Len(t, rp.Attachments, 1)
	assert.Empty(t, rp.Color)
	assert.Equal(t, gpu.LayoutShaderReadOnly, rp.Attachments[0].FinalLayout)
	require.Len(t, rp.Dependencies, 2)
	assert.Equal(t, gpu.SubpassExternal, rp.Dependencies[1].DstSubpass)

	p.Destroy(dev)
	assert.Zero(t, dev.LiveObjects())
}

func TestNewRejectsUnknownKind(t *testing.T) {
	_, err := New(gputest.New(), Params{Kind: Kind(9), VertexShader: spirv, FragmentShader: spirv})
	assert.ErrorIs(t, err, ErrUnknownKind)
}

func TestBuilderKeepsFirstError(t *testing.T) {
	dev := gputest.New()
	_, err := NewBuilder(dev).
		Shaders([]byte{1, 2, 3}, spirv).
		DynamicViewport(false, gpu.Extent2D{}).
		Build()
	assert.ErrorIs(t, err, ErrInvalidShader)
	assert.Zero(t, dev.LiveObjects())

	_, err = NewBuilder(dev).Build()
	assert.ErrorIs(t, err, ErrNoShaders)
}

func TestBuildCleansUpOnFailure(t *testing.T) {
	dev := gputest.New()
	dev.FailOn["CreateGraphicsPipeline"] = nil
	_, err := New(dev, mainParams(Opaque))
	require.Error(t, err)
	assert.True(t, core.IsResource(err))
	assert.Zero(t, dev.LiveObjects())
	assert.Empty(t, dev.Misuse)
}

func TestPushConstantsLayout(t *testing.T) {
	pc := PushConstants{
		Proj:                pmath.NewMat4Identity(),
		View:                pmath.NewMat4Identity(),
		LightViewProjection: pmath.NewMat4Identity(),
		LightPosition:       pmath.NewVec4(1, 2, 3, 0),
		LightColor:          pmath.NewVec4(0.5, 0.5, 0.5, 1),
	}
	b := pc.Bytes()
	require.Len(t, b, PushConstantsSize)
	assert.Equal(t, 224, PushConstantsSize)

	f := func(off int) float32 { return math.Float32frombits(binary.LittleEndian.Uint32(b[off:])) }
	assert.Equal(t, float32(1), f(0))
	assert.Equal(t, float32(1), f(192))
	assert.Equal(t, float32(3), f(200))
	assert.Equal(t, float32(1), f(220))

	shadow := ShadowPushConstants{
		LightViewProjection: pmath.NewMat4Identity(),
		Model:               pmath.NewMat4Translation(pmath.NewVec3(4, 5, 6)),
	}
	sb := shadow.Bytes()
	require.Len(t, sb, ShadowPushConstantsSize)
	// column 3 of the model matrix holds the translation
	assert.Equal(t, float32(4), math.Float32frombits(binary.LittleEndian.Uint32(sb[64+48:])))
}
