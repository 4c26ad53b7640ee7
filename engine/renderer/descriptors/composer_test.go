package descriptors

import (
	"testing"

	"github.com/spaghettifunk/penumbra/engine/core"
	"github.com/spaghettifunk/penumbra/engine/renderer/gpu"
	"github.com/spaghettifunk/penumbra/engine/renderer/gpu/gputest"
	"github.com/spaghettifunk/penumbra/engine/renderer/resources"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingSource struct {
	resources.Pixels
	decoded *int
}

func (s countingSource) Decode() (uint32, uint32, []byte, error) {
	*s.decoded++
	return s.Pixels.Decode()
}

func pixels(w, h uint32) resources.Pixels {
	return resources.Pixels{Label: "tex", Width: w, Height: h, RGBA: make([]byte, w*h*4)}
}

func newComposer() (*gputest.Device, *resources.Pool, *Composer) {
	dev := gputest.New()
	pool := resources.New(dev, 2)
	return dev, pool, New(pool)
}

func TestReservedBindingRejectedBeforeAnyGPUObject(t *testing.T) {
	dev, _, c := newComposer()

	_, err := c.AddUniformGroup(0, 64, gpu.StageVertex)
	assert.ErrorIs(t, err, ErrReservedBinding)
	assert.True(t, core.IsUsage(err))

	err = c.AddTexture(pixels(1, 1), 0)
	assert.ErrorIs(t, err, ErrReservedBinding)
	err = c.AddTextureArray([]resources.TextureSource{pixels(1, 1)}, 1, 1, 1, 0)
	assert.ErrorIs(t, err, ErrReservedBinding)

	assert.Zero(t, dev.Created["Buffer"])
	assert.Zero(t, dev.Created["Image"])
	assert.Empty(t, c.Bindings())
}

func TestDuplicateBinding(t *testing.T) {
	dev, _, c := newComposer()

	_, err := c.AddUniformGroup(1, 64, gpu.StageVertex)
	require.NoError(t, err)
	created := dev.Created["Buffer"]

	_, err = c.AddUniformGroup(1, 64, gpu.StageVertex)
	assert.ErrorIs(t, err, ErrDuplicateBinding)
	assert.Equal(t, created, dev.Created["Buffer"])

	assert.ErrorIs(t, c.AddTexture(pixels(1, 1), 1), ErrDuplicateBinding)
	assert.ErrorIs(t, c.AddBinding(1, gpu.DescriptorUniformBuffer, gpu.StageVertex), ErrDuplicateBinding)
}

func TestFinalizeLocksRegistration(t *testing.T) {
	_, _, c := newComposer()
	_, err := c.AddUniformGroup(1, 64, gpu.StageVertex)
	require.NoError(t, err)
	require.NoError(t, c.Finalize())

	_, err = c.AddUniformGroup(2, 64, gpu.StageVertex)
	assert.ErrorIs(t, err, ErrFinalized)
	assert.ErrorIs(t, c.AddTexture(pixels(1, 1), 2), ErrFinalized)
	assert.ErrorIs(t, c.SetShadowMap(1, 1), ErrFinalized)
	assert.ErrorIs(t, c.Finalize(), ErrFinalized)
}

func TestBindingOrder(t *testing.T) {
	tests := []struct {
		name     string
		register func(c *Composer) error
	}{
		{"uniform gap", func(c *Composer) error {
			_, err := c.AddUniformGroup(2, 64, gpu.StageVertex)
			return err
		}},
		{"texture before uniforms end", func(c *Composer) error {
			if err := c.AddTexture(pixels(1, 1), 1); err != nil {
				return err
			}
			_, err := c.AddUniformGroup(2, 64, gpu.StageVertex)
			return err
		}},
		{"texture gap", func(c *Composer) error {
			if _, err := c.AddUniformGroup(1, 64, gpu.StageVertex); err != nil {
				return err
			}
			return c.AddTexture(pixels(1, 1), 3)
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dev, _, c := newComposer()
			require.NoError(t, tt.register(c))
			err := c.Finalize()
			assert.ErrorIs(t, err, ErrBindingOrder)
			assert.True(t, core.IsUsage(err))
			assert.Zero(t, dev.Created["DescriptorSetLayout"])
		})
	}
}

func TestFinalizeLayoutAndPoolSizes(t *testing.T) {
	dev, _, c := newComposer()

	decoded := 0
	group, err := c.AddUniformGroup(1, 128, gpu.StageVertex)
	require.NoError(t, err)
	src := countingSource{Pixels: pixels(4, 4), decoded: &decoded}
	require.NoError(t, c.AddTextureArray([]resources.TextureSource{src}, 4, 4, 4, 2))
	require.NoError(t, c.SetShadowMap(11, 12))

	// textures are decoded when finalized, not when registered
	assert.Zero(t, decoded)
	require.NoError(t, c.Finalize())
	assert.Equal(t, 1, decoded)

	bindings := dev.SetLayoutBindings(c.Layout())
	require.Len(t, bindings, 3)
	assert.Equal(t, gpu.DescriptorBinding{Binding: 0, Kind: gpu.DescriptorCombinedImageSampler, Count: 1, Stages: gpu.StageFragment}, bindings[0])
	assert.Equal(t, gpu.DescriptorBinding{Binding: 1, Kind: gpu.DescriptorUniformBuffer, Count: 1, Stages: gpu.StageVertex}, bindings[1])
	assert.Equal(t, uint32(2), bindings[2].Binding)

	pools := dev.Created["DescriptorPool"]
	require.Equal(t, 1, pools)
	require.NoError(t, c.BuildFrameDescriptorSets())

	set0, set1 := c.Set(0), c.Set(1)
	assert.NotEqual(t, set0, set1)
	assert.Zero(t, c.Set(2))

	writes := dev.DescriptorWrites
	require.Len(t, writes, 6)
	for slot, set := range []gpu.DescriptorSet{set0, set1} {
		w := writes[slot*3 : slot*3+3]
		assert.Equal(t, set, w[0].Set)
		assert.Equal(t, gpu.ImageView(11), w[0].View)
		assert.Equal(t, gpu.Sampler(12), w[0].Sampler)

		assert.Equal(t, uint32(1), w[1].Binding)
		assert.Equal(t, uint64(128), w[1].Range)
		assert.Equal(t, mustBuffer(t, c, group, slot), w[1].Buffer)

		assert.Equal(t, uint32(2), w[2].Binding)
		assert.Equal(t, c.Textures()[0].View, w[2].View)
	}
}

func TestDescriptorPoolSizes(t *testing.T) {
	dev, _, c := newComposer()
	_, err := c.AddUniformGroup(1, 64, gpu.StageVertex)
	require.NoError(t, err)
	require.NoError(t, c.AddTexture(pixels(2, 2), 2))
	require.NoError(t, c.SetShadowMap(1, 1))
	require.NoError(t, c.Finalize())

	info, ok := dev.DescriptorPoolInfo(c.descriptor)
	require.True(t, ok)
	// one uniform group, two images, ring of two
	assert.Equal(t, uint32(6), info.MaxSets)
	assert.Equal(t, []gpu.DescriptorPoolSize{
		{Kind: gpu.DescriptorUniformBuffer, Count: 2},
		{Kind: gpu.DescriptorCombinedImageSampler, Count: 4},
	}, info.Sizes)
}

func TestBuildBeforeFinalize(t *testing.T) {
	_, _, c := newComposer()
	assert.ErrorIs(t, c.BuildFrameDescriptorSets(), ErrNotFinalized)
}

func TestUpdateUniformAll(t *testing.T) {
	dev, pool, c := newComposer()
	group, err := c.AddUniformGroup(1, 4, gpu.StageVertex)
	require.NoError(t, err)

	require.NoError(t, c.UpdateUniformAll(group, []byte{9, 8, 7, 6}))
	for slot := 0; slot < pool.RingSize(); slot++ {
		buf := mustBuffer(t, c, group, slot)
		assert.Equal(t, []byte{9, 8, 7, 6}, dev.BufferBytes(buf)[:4])
	}
}

func TestDestroyReleasesLayoutAndPool(t *testing.T) {
	dev, pool, c := newComposer()
	_, err := c.AddUniformGroup(1, 64, gpu.StageVertex)
	require.NoError(t, err)
	require.NoError(t, c.Finalize())
	require.NoError(t, c.BuildFrameDescriptorSets())

	c.Destroy()
	c.Destroy()
	pool.Teardown()
	assert.Empty(t, dev.Misuse)
	assert.Zero(t, dev.LiveObjects())
}

func mustBuffer(t *testing.T, c *Composer, g *UniformGroup, slot int) gpu.Buffer {
	t.Helper()
	buf, err := c.pool.Buffer(g.Buffer.At(slot))
	require.NoError(t, err)
	return buf
}
