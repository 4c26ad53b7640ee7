package shadow

import (
	"testing"

	"github.com/google/uuid"
	"github.com/spaghettifunk/penumbra/engine/core"
	"github.com/spaghettifunk/penumbra/engine/math"
	"github.com/spaghettifunk/penumbra/engine/renderer/gpu"
	"github.com/spaghettifunk/penumbra/engine/renderer/gpu/gputest"
	"github.com/spaghettifunk/penumbra/engine/renderer/pipeline"
	"github.com/spaghettifunk/penumbra/engine/renderer/resources"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var spirv = []byte{0x03, 0x02, 0x23, 0x07, 0, 0, 1, 0}

type mesh struct {
	vertex, index gpu.Buffer
	count         uint32
	model         math.Mat4
}

func (m mesh) Buffers() (gpu.Buffer, gpu.Buffer) { return m.vertex, m.index }
func (m mesh) IndexCount() uint32                { return m.count }
func (m mesh) ModelMatrix() math.Mat4            { return m.model }

func newMesh(t *testing.T, pool *resources.Pool, count uint32, offset float32) mesh {
	t.Helper()
	vh, err := pool.CreateVertexBuffer(make([]byte, 3*pipeline.VertexStride))
	require.NoError(t, err)
	ih, err := pool.CreateIndexBuffer(make([]byte, 4*count))
	require.NoError(t, err)
	v, _ := pool.Buffer(vh)
	i, _ := pool.Buffer(ih)
	return mesh{vertex: v, index: i, count: count, model: math.NewMat4Translation(math.NewVec3(offset, 0, 0))}
}

func shadowPipeline(t *testing.T, dev gpu.Device, size uint32) *pipeline.Pipeline {
	t.Helper()
	p, err := pipeline.New(dev, pipeline.Params{
		Kind:           pipeline.Shadow,
		VertexShader:   spirv,
		FragmentShader: spirv,
		DepthFormat:    dev.Limits().DepthFormat,
		ShadowExtent:   gpu.Extent2D{Width: size, Height: size},
	})
	require.NoError(t, err)
	return p
}

func TestAddLightAfterInitFails(t *testing.T) {
	dev := gputest.New()
	pool := resources.New(dev, 2)
	r := New(512)

	id, err := r.AddLight(math.NewMat4Identity(), math.NewVec3(0, 5, 3), math.NewVec3One())
	require.NoError(t, err)
	assert.NotEqual(t, uuid.Nil, id)

	p := shadowPipeline(t, dev, 512)
	require.NoError(t, r.Init(pool, p.RenderPass))

	_, err = r.AddLight(math.NewMat4Identity(), math.NewVec3Zero(), math.NewVec3One())
	assert.ErrorIs(t, err, ErrInitialized)
	assert.True(t, core.IsUsage(err))
	assert.ErrorIs(t, r.Init(pool, p.RenderPass), ErrInitialized)
	assert.Len(t, r.Lights(), 1)
}

func TestInitWithoutLightsCreatesPlaceholder(t *testing.T) {
	dev := gputest.New()
	pool := resources.New(dev, 2)
	r := New(0)
	p := shadowPipeline(t, dev, DefaultMapSize)

	require.NoError(t, r.Init(pool, p.RenderPass))
	assert.NotZero(t, r.View())
	assert.NotZero(t, r.Sampler())
	assert.Empty(t, r.Framebuffers())

	view, ok := dev.ImageViewDesc(r.View())
	require.True(t, ok)
	assert.Equal(t, uint32(1), view.LayerCount)
	assert.True(t, view.Array)
	img, ok := dev.ImageDesc(view.Image)
	require.True(t, ok)
	assert.Equal(t, uint32(1), img.Layers)
	assert.Equal(t, DefaultMapSize, img.Width)

	dev.ResetLog()
	cbs, err := dev.AllocateCommandBuffers(1)
	require.NoError(t, err)
	require.NoError(t, dev.BeginCommandBuffer(cbs[0], false))
	require.NoError(t, r.Render(cbs[0], p, []Caster{newMesh(t, pool, 3, 0)}))
	assert.Empty(t, dev.Ops(cbs[0]))
}

func TestInitLayersOnePerLight(t *testing.T) {
	dev := gputest.New()
	pool := resources.New(dev, 2)
	r := New(1024)
	for i := 0; i < 3; i++ {
		_, err := r.AddLight(math.NewMat4Identity(), math.NewVec3(float32(i), 5, 3), math.NewVec3One())
		require.NoError(t, err)
	}
	p := shadowPipeline(t, dev, 1024)
	require.NoError(t, r.Init(pool, p.RenderPass))

	view, _ := dev.ImageViewDesc(r.View())
	img, _ := dev.ImageDesc(view.Image)
	assert.Equal(t, uint32(3), img.Layers)
	assert.Equal(t, gpu.ImageUsageDepthStencilAttachment|gpu.ImageUsageSampled, img.Usage)
	assert.Equal(t, gpu.Samples1, img.Samples)

	sampler, ok := dev.SamplerDesc(r.Sampler())
	require.True(t, ok)
	assert.Equal(t, gpu.AddressClampToBorder, sampler.AddressMode)
	assert.Equal(t, gpu.BorderFloatOpaqueWhite, sampler.BorderColor)
	assert.True(t, sampler.CompareEnable)
	assert.Equal(t, gpu.CompareLessOrEqual, sampler.CompareOp)
	assert.Zero(t, sampler.MaxAnisotropy)

	barriers := dev.Filter(gputest.OpPipelineBarrier)
	require.Len(t, barriers, 1)
	assert.Equal(t, gpu.LayoutShaderReadOnly, barriers[0].Barriers[0].NewLayout)
	assert.Equal(t, uint32(3), barriers[0].Barriers[0].LayerCount)

	fbs := r.Framebuffers()
	require.Len(t, fbs, 3)
	for i, fb := range fbs {
		desc, ok := dev.FramebufferDesc(fb)
		require.True(t, ok)
		assert.Equal(t, uint32(1024), desc.Width)
		require.Len(t, desc.Attachments, 1)
		layer, _ := dev.ImageViewDesc(desc.Attachments[0])
		assert.Equal(t, uint32(i), layer.BaseLayer)
		assert.Equal(t, uint32(1), layer.LayerCount)
	}
}

func TestRenderRecordsOnePassPerLight(t *testing.T) {
	dev := gputest.New()
	pool := resources.New(dev, 2)
	r := New(512)
	lightPV := math.NewMat4Scale(math.NewVec3(2, 2, 2))
	for i := 0; i < 2; i++ {
		_, err := r.AddLight(lightPV, math.NewVec3Zero(), math.NewVec3One())
		require.NoError(t, err)
	}
	p := shadowPipeline(t, dev, 512)
	require.NoError(t, r.Init(pool, p.RenderPass))

	casters := []Caster{newMesh(t, pool, 3, 1), newMesh(t, pool, 6, 2), newMesh(t, pool, 9, 3)}
	cbs, err := dev.AllocateCommandBuffers(1)
	require.NoError(t, err)
	cb := cbs[0]
	require.NoError(t, dev.BeginCommandBuffer(cb, false))
	require.NoError(t, r.Render(cb, p, casters))

	perCaster := []string{gputest.OpBindVertexBuffer, gputest.OpBindIndexBuffer, gputest.OpPushConstants, gputest.OpDrawIndexed}
	var want []string
	for range 2 {
		want = append(want, gputest.OpBeginRenderPass, gputest.OpBindPipeline)
		for range casters {
			want = append(want, perCaster...)
		}
		want = append(want, gputest.OpEndRenderPass)
	}
	assert.Equal(t, want, dev.Ops(cb))

	begins := dev.Filter(gputest.OpBeginRenderPass)
	require.Len(t, begins, 2)
	fbs := r.Framebuffers()
	for i, b := range begins {
		assert.Equal(t, fbs[i], b.Begin.Framebuffer)
		require.Len(t, b.Begin.Clear, 1)
		assert.Equal(t, float32(1), b.Begin.Clear[0].Depth)
	}

	draws := dev.Filter(gputest.OpDrawIndexed)
	assert.Equal(t, []uint32{3, 6, 9, 3, 6, 9}, []uint32{
		draws[0].IndexCount, draws[1].IndexCount, draws[2].IndexCount,
		draws[3].IndexCount, draws[4].IndexCount, draws[5].IndexCount,
	})

	pushes := dev.Filter(gputest.OpPushConstants)
	require.Len(t, pushes, 6)
	want0 := pipeline.ShadowPushConstants{LightViewProjection: lightPV, Model: casters[0].ModelMatrix()}.Bytes()
	assert.Equal(t, want0, pushes[0].Data)
	assert.Equal(t, gpu.StageVertex, pushes[0].Stages)
	assert.Empty(t, dev.Misuse)
}

func TestRenderBeforeInit(t *testing.T) {
	r := New(256)
	_, err := r.AddLight(math.NewMat4Identity(), math.NewVec3Zero(), math.NewVec3One())
	require.NoError(t, err)
	err = r.Render(1, &pipeline.Pipeline{}, nil)
	assert.ErrorIs(t, err, ErrNotInitialized)
}

func TestDestroyReleasesShadowMap(t *testing.T) {
	dev := gputest.New()
	pool := resources.New(dev, 2)
	r := New(256)
	_, err := r.AddLight(math.NewMat4Identity(), math.NewVec3Zero(), math.NewVec3One())
	require.NoError(t, err)
	p := shadowPipeline(t, dev, 256)
	require.NoError(t, r.Init(pool, p.RenderPass))

	r.Destroy()
	r.Destroy()
	p.Destroy(dev)
	pool.Teardown()
	assert.Zero(t, dev.LiveObjects())
	assert.Empty(t, dev.Misuse)
}
