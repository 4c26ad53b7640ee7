package resources

import (
	"testing"

	"github.com/spaghettifunk/penumbra/engine/core"
	"github.com/spaghettifunk/penumbra/engine/renderer/gpu"
	"github.com/spaghettifunk/penumbra/engine/renderer/gpu/gputest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPerFrameBuffersCreateRingCopies(t *testing.T) {
	dev := gputest.New()
	pool := New(dev, 2)

	const n = 3
	handles := make([]BufferHandle, 0, n)
	for i := 0; i < n; i++ {
		h, err := pool.CreateUniformBuffer(64)
		require.NoError(t, err)
		handles = append(handles, h)
	}
	assert.Equal(t, n*2, pool.Len())
	assert.Equal(t, n*2, dev.LiveBuffers())

	// base handles are spaced by the ring size
	for i, h := range handles {
		assert.Equal(t, uint32(i*2), h.Index)
	}

	_, err := pool.CreateVertexBuffer(make([]byte, 48))
	require.NoError(t, err)
	assert.Equal(t, n*2+1, pool.Len())
}

func TestFindMemoryTypeRequiresExactMatch(t *testing.T) {
	pool := New(gputest.New(), 2)

	tests := []struct {
		name  string
		bits  uint32
		props gpu.MemoryProperty
		want  uint32
		err   bool
	}{
		{"device local", 0b111, gpu.MemoryDeviceLocal, 0, false},
		{"host coherent", 0b111, HostVisible, 1, false},
		{"host cached", 0b111, HostVisible | gpu.MemoryHostCached, 2, false},
		{"filtered out", 0b101, HostVisible, 0, true},
		{"superset only", 0b111, gpu.MemoryHostVisible, 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := pool.FindMemoryType(tt.bits, tt.props)
			if tt.err {
				require.ErrorIs(t, err, ErrNoMemoryType)
				assert.True(t, core.IsResource(err))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestUpdateBufferWritesOnlyThatSlot(t *testing.T) {
	dev := gputest.New()
	pool := New(dev, 2)

	h, err := pool.CreateUniformBuffer(16)
	require.NoError(t, err)

	data := []byte{1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11, 12, 13, 14, 15, 16}
	require.NoError(t, pool.UpdateBuffer(h.At(1), data))

	b1, err := pool.Buffer(h.At(1))
	require.NoError(t, err)
	assert.Equal(t, data, dev.BufferBytes(b1)[:16])

	b0, err := pool.Buffer(h.At(0))
	require.NoError(t, err)
	assert.Equal(t, make([]byte, 16), dev.BufferBytes(b0)[:16])
}

func TestUpdateBufferRejectsBadInput(t *testing.T) {
	pool := New(gputest.New(), 2)
	h, err := pool.CreateVertexBuffer(make([]byte, 8))
	require.NoError(t, err)

	err = pool.UpdateBuffer(h, make([]byte, 9))
	assert.ErrorIs(t, err, ErrBufferOverflow)
	assert.True(t, core.IsUsage(err))

	err = pool.UpdateBuffer(BufferHandle{Index: 42}, []byte{1})
	assert.ErrorIs(t, err, ErrOutOfRange)
	assert.True(t, core.IsUsage(err))
}

func TestRingSlotsStayInsideTheirRing(t *testing.T) {
	dev := gputest.New()
	pool := New(dev, 2)

	a, err := pool.CreateUniformBuffer(16)
	require.NoError(t, err)
	b, err := pool.CreateUniformBuffer(16)
	require.NoError(t, err)
	v, err := pool.CreateVertexBuffer(make([]byte, 16))
	require.NoError(t, err)

	// a.At(2) has the index of b's first copy
	require.Equal(t, b.Index, a.At(2).Index)
	for _, h := range []BufferHandle{a.At(2), a.At(-1), b.At(1).At(2), v.At(1)} {
		_, err = pool.Buffer(h)
		assert.ErrorIs(t, err, ErrOutOfRange, h.String())
		assert.True(t, core.IsUsage(err))
		assert.ErrorIs(t, pool.UpdateBuffer(h, []byte{1}), ErrOutOfRange, h.String())
		assert.ErrorIs(t, pool.Destroy(h), ErrOutOfRange, h.String())
	}

	// re-deriving from a slot handle stays relative to the ring base
	assert.Equal(t, b.At(0), b.At(1).At(0))
	for _, h := range []BufferHandle{a, a.At(1), b, b.At(1), v, v.At(0)} {
		_, err = pool.Buffer(h)
		assert.NoError(t, err, h.String())
	}
	assert.Equal(t, 5, pool.Alive())
}

func TestFailedRingCopyReleasesEarlierCopies(t *testing.T) {
	dev := gputest.New()
	pool := New(dev, 3)

	dev.FailOn["CreateBuffer"] = nil
	dev.FailAfter["CreateBuffer"] = 1
	_, err := pool.CreateUniformBuffer(64)
	require.Error(t, err)

	assert.Equal(t, 0, pool.Len())
	assert.Equal(t, 0, pool.Alive())
	assert.Equal(t, 0, dev.LiveBuffers())
	assert.Equal(t, 0, dev.LiveMemory())

	h, err := pool.CreateUniformBuffer(64)
	require.NoError(t, err)
	assert.Equal(t, uint32(0), h.Index)
	assert.Equal(t, 3, dev.LiveBuffers())
	assert.Empty(t, dev.Misuse)
}

func TestDestroyTwiceIsRejected(t *testing.T) {
	dev := gputest.New()
	pool := New(dev, 2)

	a, err := pool.CreateVertexBuffer(make([]byte, 16))
	require.NoError(t, err)
	b, err := pool.CreateIndexBuffer(make([]byte, 16))
	require.NoError(t, err)

	require.NoError(t, pool.Destroy(a))
	err = pool.Destroy(a)
	assert.ErrorIs(t, err, ErrStaleHandle)
	assert.True(t, core.IsUsage(err))

	_, err = pool.Buffer(a)
	assert.ErrorIs(t, err, ErrStaleHandle)
	assert.ErrorIs(t, pool.Destroy(BufferHandle{Index: 99}), ErrOutOfRange)

	// the hole does not shift other handles
	_, err = pool.Buffer(b)
	assert.NoError(t, err)
	assert.Equal(t, 2, pool.Len())
	assert.Equal(t, 1, pool.Alive())
	assert.Empty(t, dev.Misuse)
}

func TestFrameGuardRejectsInFlightSlot(t *testing.T) {
	pool := New(gputest.New(), 2, WithFrameGuard())
	ubo, err := pool.CreateUniformBuffer(4)
	require.NoError(t, err)
	vbo, err := pool.CreateVertexBuffer(make([]byte, 4))
	require.NoError(t, err)

	pool.MarkInFlight(1)
	err = pool.UpdateBuffer(ubo.At(1), []byte{1, 2, 3, 4})
	assert.ErrorIs(t, err, ErrSlotInFlight)
	assert.True(t, core.IsUsage(err))
	assert.NoError(t, pool.UpdateBuffer(ubo.At(0), []byte{1, 2, 3, 4}))
	assert.NoError(t, pool.UpdateBuffer(vbo, []byte{1, 2, 3, 4}))

	pool.MarkIdle(1)
	assert.NoError(t, pool.UpdateBuffer(ubo.At(1), []byte{1, 2, 3, 4}))
}

func TestFrameGuardDisabledByDefault(t *testing.T) {
	pool := New(gputest.New(), 2)
	ubo, err := pool.CreateUniformBuffer(4)
	require.NoError(t, err)

	pool.MarkInFlight(0)
	assert.NoError(t, pool.UpdateBuffer(ubo.At(0), []byte{1}))
}

func TestTeardownIsIdempotent(t *testing.T) {
	dev := gputest.New()
	pool := New(dev, 2)

	_, err := pool.CreateUniformBuffer(64)
	require.NoError(t, err)
	_, _, err = pool.CreateAttachment(64, 64, gpu.FormatD32Sfloat, gpu.ImageUsageDepthStencilAttachment, gpu.Samples4)
	require.NoError(t, err)

	pool.Teardown()
	assert.Equal(t, 0, dev.LiveBuffers())
	assert.Equal(t, 0, dev.LiveImages())
	assert.Equal(t, 0, dev.LiveMemory())
	assert.Equal(t, 0, dev.LiveImageViews())

	pool.Teardown()
	assert.Empty(t, dev.Misuse)
	assert.Equal(t, 0, pool.Alive())
}

func TestDestroyImageReleasesViewsAndSamplers(t *testing.T) {
	dev := gputest.New()
	pool := New(dev, 2)

	h, view, err := pool.CreateAttachment(8, 8, gpu.FormatB8G8R8A8Unorm, gpu.ImageUsageColorAttachment, gpu.Samples1)
	require.NoError(t, err)
	assert.NotZero(t, view)
	_, err = pool.CreateSampler(h, gpu.SamplerDesc{Filter: gpu.FilterLinear})
	require.NoError(t, err)

	require.NoError(t, pool.DestroyImage(h))
	assert.Equal(t, 0, dev.LiveImageViews())
	assert.Equal(t, 0, dev.LiveObjects())
	assert.ErrorIs(t, pool.DestroyImage(h), ErrStaleHandle)
}

func TestTransitionLayout(t *testing.T) {
	tests := []struct {
		name     string
		format   gpu.Format
		from, to gpu.ImageLayout
		src, dst gpu.PipelineStage
		aspect   gpu.ImageAspect
	}{
		{"upload", TextureFormat, gpu.LayoutUndefined, gpu.LayoutTransferDst, gpu.StageTopOfPipe, gpu.StageTransfer, gpu.AspectColor},
		{"sample", TextureFormat, gpu.LayoutTransferDst, gpu.LayoutShaderReadOnly, gpu.StageTransfer, gpu.StageFragmentShader, gpu.AspectColor},
		{"depth", gpu.FormatD32Sfloat, gpu.LayoutUndefined, gpu.LayoutDepthStencilAttachment, gpu.StageTopOfPipe, gpu.StageEarlyFragmentTests, gpu.AspectDepth},
		{"depth stencil", gpu.FormatD24UnormS8Uint, gpu.LayoutUndefined, gpu.LayoutDepthStencilAttachment, gpu.StageTopOfPipe, gpu.StageEarlyFragmentTests, gpu.AspectDepth | gpu.AspectStencil},
		{"shadow map", gpu.FormatD32Sfloat, gpu.LayoutUndefined, gpu.LayoutShaderReadOnly, gpu.StageTopOfPipe, gpu.StageFragmentShader, gpu.AspectDepth},
		{"shadow write", gpu.FormatD32Sfloat, gpu.LayoutDepthStencilAttachment, gpu.LayoutShaderReadOnly, gpu.StageLateFragmentTests, gpu.StageFragmentShader, gpu.AspectDepth},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dev := gputest.New()
			pool := New(dev, 2)
			require.NoError(t, pool.TransitionLayout(7, tt.format, tt.from, tt.to, 3))

			barriers := dev.Filter(gputest.OpPipelineBarrier)
			require.Len(t, barriers, 1)
			cmd := barriers[0]
			assert.Equal(t, tt.src, cmd.SrcStage)
			assert.Equal(t, tt.dst, cmd.DstStage)
			require.Len(t, cmd.Barriers, 1)
			assert.Equal(t, tt.aspect, cmd.Barriers[0].Aspect)
			assert.Equal(t, uint32(3), cmd.Barriers[0].LayerCount)
			assert.Len(t, dev.Submits, 1)
			assert.Equal(t, 1, dev.QueueIdleWaits)
			assert.Empty(t, dev.Misuse)
		})
	}
}

func TestTransitionLayoutRejectsUnknownPair(t *testing.T) {
	dev := gputest.New()
	pool := New(dev, 2)

	err := pool.TransitionLayout(7, TextureFormat, gpu.LayoutShaderReadOnly, gpu.LayoutTransferDst, 1)
	assert.ErrorIs(t, err, ErrUnsupportedTransition)
	assert.True(t, core.IsUsage(err))
	assert.Empty(t, dev.Commands)
	assert.Empty(t, dev.Submits)
}
