package frame

import (
	"testing"

	"github.com/spaghettifunk/penumbra/engine/core"
	"github.com/spaghettifunk/penumbra/engine/renderer/gpu"
	"github.com/spaghettifunk/penumbra/engine/renderer/gpu/gputest"
	"github.com/spaghettifunk/penumbra/engine/renderer/pipeline"
	"github.com/spaghettifunk/penumbra/engine/renderer/resources"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type harness struct {
	dev     *gputest.Device
	surface *gputest.Surface
	pool    *resources.Pool
	sched   *Scheduler
	pass    gpu.RenderPass
}

func newHarness(t *testing.T, opts ...resources.Option) *harness {
	t.Helper()
	h := &harness{
		dev:     gputest.New(),
		surface: gputest.NewSurface(800, 600),
	}
	h.pool = resources.New(h.dev, DefaultFramesInFlight, opts...)

	var err error
	h.sched, err = New(h.dev, h.surface, h.pool, Config{ClearColor: [4]float32{0, 0, 0.2, 1}})
	require.NoError(t, err)
	h.pass, _, err = pipeline.MainRenderPass(h.dev, gpu.NullRenderPass, h.sched.ColorFormat(), h.sched.DepthFormat(), h.sched.Samples())
	require.NoError(t, err)
	require.NoError(t, h.sched.Initialize(h.pass))
	return h
}

// frame records an empty main pass and submits it.
func (h *harness) frame(t *testing.T) {
	t.Helper()
	f, ok, err := h.sched.Begin()
	require.NoError(t, err)
	require.True(t, ok)
	require.NoError(t, h.sched.BeginMainPass(f))
	h.sched.SetDefaultViewportAndScissor(f.CommandBuffer)
	require.NoError(t, h.sched.EndMainPass(f))
	require.NoError(t, h.sched.End(f))
}

func assertFramebuffersSized(t *testing.T, h *harness, w, hgt uint32) {
	t.Helper()
	fbs := h.sched.Framebuffers()
	require.Len(t, fbs, 3)
	for _, fb := range fbs {
		desc, ok := h.dev.FramebufferDesc(fb)
		require.True(t, ok)
		assert.Equal(t, w, desc.Width)
		assert.Equal(t, hgt, desc.Height)
		require.Len(t, desc.Attachments, 3)
	}
	assert.Equal(t, 3, h.dev.LiveFramebuffers())
}

func TestInitializeBuildsFramebuffers(t *testing.T) {
	h := newHarness(t)
	assertFramebuffersSized(t, h, 800, 600)

	desc, _ := h.dev.FramebufferDesc(h.sched.Framebuffers()[0])
	color, _ := h.dev.ImageViewDesc(desc.Attachments[0])
	depth, _ := h.dev.ImageViewDesc(desc.Attachments[1])
	assert.Equal(t, gpu.AspectColor, color.Aspect)
	assert.Equal(t, gpu.AspectDepth, depth.Aspect)

	// depth attachment was moved into attachment layout
	barriers := h.dev.Filter(gputest.OpPipelineBarrier)
	require.Len(t, barriers, 1)
	assert.Equal(t, gpu.LayoutDepthStencilAttachment, barriers[0].Barriers[0].NewLayout)
}

func TestFrameRingAdvances(t *testing.T) {
	h := newHarness(t)
	h.dev.ResetLog() // drop the depth transition submit

	for i := 0; i < 5; i++ {
		assert.Equal(t, i%2, h.sched.Current())
		h.frame(t)
		assert.Equal(t, Submitted, h.sched.State(i%2))
	}
	require.Len(t, h.dev.Submits, 5)
	for _, s := range h.dev.Submits {
		assert.NotZero(t, s.Fence)
		assert.NotZero(t, s.Wait)
		assert.NotZero(t, s.Signal)
		assert.Equal(t, gpu.StageColorAttachmentOutput, s.WaitStage)
	}
	assert.Len(t, h.dev.Presents, 5)
	assert.Empty(t, h.dev.Misuse)

	begins := h.dev.Filter(gputest.OpBeginRenderPass)
	require.Len(t, begins, 5)
	clear := begins[0].Begin.Clear
	require.Len(t, clear, 2)
	assert.Equal(t, [4]float32{0, 0, 0.2, 1}, clear[0].Color)
	assert.Equal(t, float32(1), clear[1].Depth)
}

func TestEndWithoutBegin(t *testing.T) {
	h := newHarness(t)
	err := h.sched.End(Frame{Slot: 0})
	assert.ErrorIs(t, err, ErrNotRecording)
	assert.True(t, core.IsUsage(err))

	f, ok, err := h.sched.Begin()
	require.NoError(t, err)
	require.True(t, ok)
	require.NoError(t, h.sched.End(f))
	// the same frame cannot be submitted twice
	assert.ErrorIs(t, h.sched.End(f), ErrNotRecording)
}

func TestAcquireOutOfDateRecreates(t *testing.T) {
	h := newHarness(t)
	h.dev.AcquireResults = []error{gpu.ErrSurfaceOutOfDate}
	h.surface.Width, h.surface.Height = 1280, 720

	_, ok, err := h.sched.Begin()
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Equal(t, 2, h.dev.Created["Swapchain"])
	assert.Equal(t, 0, h.sched.Current())
	assertFramebuffersSized(t, h, 1280, 720)

	h.frame(t)
	assert.Empty(t, h.dev.Misuse)
}

func TestAcquireSuboptimalIsAccepted(t *testing.T) {
	h := newHarness(t)
	h.dev.AcquireResults = []error{gpu.ErrSurfaceSuboptimal}
	h.frame(t)
	assert.Equal(t, 1, h.dev.Created["Swapchain"])
}

func TestPresentSuboptimalRecreatesAndAdvances(t *testing.T) {
	h := newHarness(t)
	h.dev.PresentResults = []error{gpu.ErrSurfaceSuboptimal}
	h.frame(t)
	assert.Equal(t, 2, h.dev.Created["Swapchain"])
	assert.Equal(t, 1, h.sched.Current())
}

func TestResizeFlagRecreates(t *testing.T) {
	h := newHarness(t)
	h.surface.Resize(1024, 768)
	h.frame(t)
	assert.Equal(t, 2, h.dev.Created["Swapchain"])
	assert.False(t, h.surface.ConsumeResize())
	assertFramebuffersSized(t, h, 1024, 768)
}

func TestZeroAreaRecreationWaitsForSize(t *testing.T) {
	h := newHarness(t)
	h.surface.Resize(0, 0)
	h.surface.Pending = [][2]int{{0, 0}, {0, 300}, {640, 480}}

	h.frame(t)
	assert.Equal(t, 3, h.surface.Waits)
	assert.Equal(t, gpu.Extent2D{Width: 640, Height: 480}, h.sched.Extent())
	assertFramebuffersSized(t, h, 640, 480)
	assert.Equal(t, 1, h.dev.DeviceIdleWaits)
}

func TestFrameGuardTracksSlots(t *testing.T) {
	h := newHarness(t, resources.WithFrameGuard())
	ubo, err := h.pool.CreateUniformBuffer(4)
	require.NoError(t, err)

	h.frame(t) // slot 0 submitted
	assert.ErrorIs(t, h.pool.UpdateBuffer(ubo.At(0), []byte{1}), resources.ErrSlotInFlight)
	assert.NoError(t, h.pool.UpdateBuffer(ubo.At(1), []byte{1}))

	h.frame(t) // slot 1 submitted
	f, ok, err := h.sched.Begin() // waits on slot 0
	require.NoError(t, err)
	require.True(t, ok)
	assert.NoError(t, h.pool.UpdateBuffer(ubo.At(0), []byte{1}))
	assert.ErrorIs(t, h.pool.UpdateBuffer(ubo.At(1), []byte{1}), resources.ErrSlotInFlight)
	require.NoError(t, h.sched.End(f))
}

func TestAbortPresentsAClearedFrame(t *testing.T) {
	h := newHarness(t)
	h.dev.ResetLog()

	f, ok, err := h.sched.Begin()
	require.NoError(t, err)
	require.True(t, ok)
	require.NoError(t, h.sched.BeginMainPass(f))
	h.sched.SetDefaultViewportAndScissor(f.CommandBuffer)

	require.NoError(t, h.sched.Abort(f))
	assert.Equal(t, Submitted, h.sched.State(0))
	assert.Equal(t, 1, h.sched.Current())
	require.Len(t, h.dev.Submits, 1)
	assert.True(t, h.dev.FenceSignaled(h.dev.Submits[0].Fence))
	assert.Len(t, h.dev.Presents, 1)
	assert.Equal(t, 2, h.dev.Count(gputest.OpBeginRenderPass))

	assert.ErrorIs(t, h.sched.Abort(f), ErrNotRecording)

	// both slots keep cycling
	for i := 0; i < 3; i++ {
		h.frame(t)
	}
	assert.Empty(t, h.dev.Misuse)
}

func TestFailedSubmitLeavesSlotUsable(t *testing.T) {
	h := newHarness(t)
	h.dev.FailOn["Submit"] = nil

	f, ok, err := h.sched.Begin()
	require.NoError(t, err)
	require.True(t, ok)
	require.NoError(t, h.sched.BeginMainPass(f))
	require.NoError(t, h.sched.EndMainPass(f))
	err = h.sched.End(f)
	require.Error(t, err)
	assert.True(t, core.IsResource(err))
	assert.Equal(t, 0, h.sched.Current())

	h.frame(t)
	h.frame(t)
	assert.Empty(t, h.dev.Misuse)
}

func TestSingleSampleTargets(t *testing.T) {
	dev := gputest.New()
	pool := resources.New(dev, DefaultFramesInFlight)
	sched, err := New(dev, gputest.NewSurface(320, 240), pool, Config{Samples: gpu.Samples1})
	require.NoError(t, err)
	pass, _, err := pipeline.MainRenderPass(dev, gpu.NullRenderPass, sched.ColorFormat(), sched.DepthFormat(), sched.Samples())
	require.NoError(t, err)
	require.NoError(t, sched.Initialize(pass))

	// no MSAA color image: only the depth attachment is allocated
	assert.Equal(t, 1, dev.LiveImages())
	for _, fb := range sched.Framebuffers() {
		desc, ok := dev.FramebufferDesc(fb)
		require.True(t, ok)
		require.Len(t, desc.Attachments, 2)
		depth, _ := dev.ImageViewDesc(desc.Attachments[1])
		assert.Equal(t, gpu.AspectDepth, depth.Aspect)
	}

	sched.Destroy()
	dev.DestroyRenderPass(pass)
	pool.Teardown()
	assert.Zero(t, dev.LiveObjects())
}

func TestSingleUse(t *testing.T) {
	h := newHarness(t)
	waits := h.dev.QueueIdleWaits
	called := false
	require.NoError(t, h.sched.SingleUse(func(cb gpu.CommandBuffer) error {
		called = true
		assert.True(t, h.dev.IsRecording(cb))
		return nil
	}))
	assert.True(t, called)
	assert.Equal(t, waits+1, h.dev.QueueIdleWaits)
}

func TestDestroyReleasesEverything(t *testing.T) {
	h := newHarness(t)
	h.frame(t)
	h.sched.Destroy()
	h.dev.DestroyRenderPass(h.pass)
	h.pool.Teardown()
	assert.Zero(t, h.dev.LiveObjects())
	assert.Empty(t, h.dev.Misuse)
}
