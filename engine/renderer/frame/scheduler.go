// Package frame runs the frames-in-flight ring: acquire, record, submit and
// present, and rebuilds the swapchain when the surface changes.
package frame

import (
	"errors"
	"fmt"
	"math"

	"github.com/spaghettifunk/penumbra/engine/core"
	"github.com/spaghettifunk/penumbra/engine/renderer/gpu"
	"github.com/spaghettifunk/penumbra/engine/renderer/resources"
)

const DefaultFramesInFlight = 2

var ErrNotRecording = errors.New("frame slot is not recording")

type State uint8

const (
	Idle State = iota
	Recording
	Submitted
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Recording:
		return "recording"
	case Submitted:
		return "submitted"
	}
	return "unknown"
}

type Config struct {
	FramesInFlight int

	// Zero selects the device's highest usable sample count.
	Samples    gpu.SampleCount
	ClearColor [4]float32
	VSync      bool
}

// Frame is handed out by Begin and must be passed back to End.
type Frame struct {
	Slot          int
	ImageIndex    uint32
	CommandBuffer gpu.CommandBuffer
	Extent        gpu.Extent2D
}

type slot struct {
	commandBuffer  gpu.CommandBuffer
	imageAvailable gpu.Semaphore
	renderFinished gpu.Semaphore
	inFlight       gpu.Fence
	state          State
	open           bool
}

type Scheduler struct {
	dev     gpu.Device
	surface gpu.Surface
	pool    *resources.Pool
	cfg     Config

	swapchain  gpu.SwapchainInfo
	renderPass gpu.RenderPass

	color        resources.ImageHandle
	depth        resources.ImageHandle
	colorView    gpu.ImageView
	depthView    gpu.ImageView
	framebuffers []gpu.Framebuffer
	hasColor     bool
	hasDepth     bool

	slots   []slot
	current int
}

// New creates the swapchain for surface. Call Initialize once the main
// render pass exists.
func New(dev gpu.Device, surface gpu.Surface, pool *resources.Pool, cfg Config) (*Scheduler, error) {
	if cfg.FramesInFlight <= 0 {
		cfg.FramesInFlight = DefaultFramesInFlight
	}
	if cfg.Samples == 0 {
		cfg.Samples = max(dev.Limits().MaxSamples, gpu.Samples1)
	}
	s := &Scheduler{dev: dev, surface: surface, pool: pool, cfg: cfg}
	if err := s.createSwapchain(s.waitForExtent()); err != nil {
		return nil, core.Initialization("frame.New", err)
	}
	return s, nil
}

func (s *Scheduler) Extent() gpu.Extent2D       { return s.swapchain.Extent }
func (s *Scheduler) ColorFormat() gpu.Format    { return s.swapchain.Format }
func (s *Scheduler) DepthFormat() gpu.Format    { return s.dev.Limits().DepthFormat }
func (s *Scheduler) Samples() gpu.SampleCount   { return s.cfg.Samples }
func (s *Scheduler) Current() int               { return s.current }
func (s *Scheduler) FramesInFlight() int        { return s.cfg.FramesInFlight }
func (s *Scheduler) RenderPass() gpu.RenderPass { return s.renderPass }
func (s *Scheduler) Framebuffers() []gpu.Framebuffer {
	return append([]gpu.Framebuffer(nil), s.framebuffers...)
}

// State reports the state of ring slot i.
func (s *Scheduler) State(i int) State {
	if i < 0 || i >= len(s.slots) {
		return Idle
	}
	return s.slots[i].state
}

// waitForExtent blocks on window events while the surface has no area.
func (s *Scheduler) waitForExtent() gpu.Extent2D {
	w, h := s.surface.FramebufferSize()
	for w == 0 || h == 0 {
		s.surface.WaitEvents()
		w, h = s.surface.FramebufferSize()
	}
	return gpu.Extent2D{Width: uint32(w), Height: uint32(h)}
}

func (s *Scheduler) createSwapchain(extent gpu.Extent2D) error {
	sc, err := s.dev.CreateSwapchain(gpu.SwapchainDesc{
		Width:  extent.Width,
		Height: extent.Height,
		VSync:  s.cfg.VSync,
	})
	if err != nil {
		return fmt.Errorf("create swapchain: %w", err)
	}
	s.swapchain = sc
	return nil
}

// createTargets builds the depth attachment, the MSAA color attachment when
// multisampling, and one framebuffer per swapchain image. Attachment order
// follows pipeline.MainRenderPassDesc.
func (s *Scheduler) createTargets() error {
	extent := s.swapchain.Extent
	var err error
	if s.multisampled() {
		s.color, s.colorView, err = s.pool.CreateAttachment(extent.Width, extent.Height, s.swapchain.Format,
			gpu.ImageUsageTransientAttachment|gpu.ImageUsageColorAttachment, s.cfg.Samples)
		if err != nil {
			return err
		}
		s.hasColor = true
	}
	depthFormat := s.DepthFormat()
	s.depth, s.depthView, err = s.pool.CreateAttachment(extent.Width, extent.Height, depthFormat,
		gpu.ImageUsageDepthStencilAttachment, s.cfg.Samples)
	if err != nil {
		return err
	}
	s.hasDepth = true
	depthImage, _ := s.pool.Image(s.depth)
	if err := s.pool.TransitionLayout(depthImage, depthFormat, gpu.LayoutUndefined, gpu.LayoutDepthStencilAttachment, 1); err != nil {
		return err
	}

	s.framebuffers = make([]gpu.Framebuffer, 0, len(s.swapchain.Views))
	for _, view := range s.swapchain.Views {
		attachments := []gpu.ImageView{view, s.depthView}
		if s.multisampled() {
			attachments = []gpu.ImageView{s.colorView, s.depthView, view}
		}
		fb, err := s.dev.CreateFramebuffer(gpu.FramebufferDesc{
			RenderPass:  s.renderPass,
			Attachments: attachments,
			Width:       extent.Width,
			Height:      extent.Height,
			Layers:      1,
		})
		if err != nil {
			return core.Resource("frame.createTargets", err)
		}
		s.framebuffers = append(s.framebuffers, fb)
	}
	return nil
}

func (s *Scheduler) multisampled() bool { return s.cfg.Samples > gpu.Samples1 }

func (s *Scheduler) destroyTargets() {
	for _, fb := range s.framebuffers {
		s.dev.DestroyFramebuffer(fb)
	}
	s.framebuffers = nil
	if s.hasDepth {
		_ = s.pool.DestroyImage(s.depth)
		s.hasDepth = false
	}
	if s.hasColor {
		_ = s.pool.DestroyImage(s.color)
		s.hasColor = false
	}
}

// Initialize creates the render targets for renderPass and the per-slot
// command buffers and synchronization objects.
func (s *Scheduler) Initialize(renderPass gpu.RenderPass) error {
	const op = "frame.Initialize"
	s.renderPass = renderPass
	if err := s.createTargets(); err != nil {
		return err
	}

	n := s.cfg.FramesInFlight
	cbs, err := s.dev.AllocateCommandBuffers(uint32(n))
	if err != nil {
		return core.Initialization(op, err)
	}
	s.slots = make([]slot, n)
	for i := range s.slots {
		sl := &s.slots[i]
		sl.commandBuffer = cbs[i]
		if sl.imageAvailable, err = s.dev.CreateSemaphore(); err != nil {
			return core.Initialization(op, err)
		}
		if sl.renderFinished, err = s.dev.CreateSemaphore(); err != nil {
			return core.Initialization(op, err)
		}
		// signaled so the first Begin of each slot does not block
		if sl.inFlight, err = s.dev.CreateFence(true); err != nil {
			return core.Initialization(op, err)
		}
	}
	core.LogDebug("frame scheduler initialized: %d slots, %d swapchain images, %dx%d",
		n, len(s.swapchain.Views), s.swapchain.Extent.Width, s.swapchain.Extent.Height)
	return nil
}

// Begin waits for the current slot, acquires a swapchain image and starts
// recording. ok is false when the surface was out of date and had to be
// recreated; the caller skips the frame. Once ok is true the frame must be
// finished with End, or with Abort when recording fails.
func (s *Scheduler) Begin() (Frame, bool, error) {
	const op = "frame.Begin"
	sl := &s.slots[s.current]

	if err := s.dev.WaitFence(sl.inFlight, math.MaxUint64); err != nil {
		return Frame{}, false, core.Resource(op, err)
	}
	s.pool.MarkIdle(s.current)
	sl.state = Idle

	imageIndex, err := s.dev.AcquireNextImage(s.swapchain.Handle, sl.imageAvailable)
	switch {
	case errors.Is(err, gpu.ErrSurfaceOutOfDate):
		core.LogDebug("swapchain out of date on acquire, recreating")
		if err := s.Recreate(); err != nil {
			return Frame{}, false, err
		}
		return Frame{}, false, nil
	case err != nil && !errors.Is(err, gpu.ErrSurfaceSuboptimal):
		return Frame{}, false, core.Resource(op, fmt.Errorf("acquire swapchain image: %w", err))
	}

	if err := s.dev.ResetCommandBuffer(sl.commandBuffer); err != nil {
		return Frame{}, false, core.Resource(op, err)
	}
	if err := s.dev.BeginCommandBuffer(sl.commandBuffer, false); err != nil {
		return Frame{}, false, core.Resource(op, err)
	}
	sl.state = Recording
	sl.open = true

	return Frame{
		Slot:          s.current,
		ImageIndex:    imageIndex,
		CommandBuffer: sl.commandBuffer,
		Extent:        s.swapchain.Extent,
	}, true, nil
}

func (s *Scheduler) recording(op string, f Frame) (*slot, error) {
	if f.Slot != s.current || f.Slot < 0 || f.Slot >= len(s.slots) || s.slots[f.Slot].state != Recording {
		return nil, core.Usage(op, fmt.Errorf("%w: slot %d", ErrNotRecording, f.Slot))
	}
	return &s.slots[f.Slot], nil
}

// BeginMainPass begins the main render pass on the frame's framebuffer,
// clearing color and depth.
func (s *Scheduler) BeginMainPass(f Frame) error {
	if _, err := s.recording("frame.BeginMainPass", f); err != nil {
		return err
	}
	s.beginMainPass(f)
	return nil
}

func (s *Scheduler) beginMainPass(f Frame) {
	s.dev.CmdBeginRenderPass(f.CommandBuffer, gpu.RenderPassBegin{
		RenderPass:  s.renderPass,
		Framebuffer: s.framebuffers[f.ImageIndex],
		Area:        gpu.Rect2D{Width: s.swapchain.Extent.Width, Height: s.swapchain.Extent.Height},
		Clear: []gpu.ClearValue{
			gpu.ClearColor(s.cfg.ClearColor[0], s.cfg.ClearColor[1], s.cfg.ClearColor[2], s.cfg.ClearColor[3]),
			gpu.ClearDepth(1, 0),
		},
	})
}

// SetDefaultViewportAndScissor covers the whole swapchain extent.
func (s *Scheduler) SetDefaultViewportAndScissor(cb gpu.CommandBuffer) {
	extent := s.swapchain.Extent
	s.dev.CmdSetViewport(cb, gpu.Viewport{
		Width:    float32(extent.Width),
		Height:   float32(extent.Height),
		MinDepth: 0,
		MaxDepth: 1,
	})
	s.dev.CmdSetScissor(cb, gpu.Rect2D{Width: extent.Width, Height: extent.Height})
}

// EndMainPass ends the main render pass and the command buffer.
func (s *Scheduler) EndMainPass(f Frame) error {
	const op = "frame.EndMainPass"
	sl, err := s.recording(op, f)
	if err != nil {
		return err
	}
	s.dev.CmdEndRenderPass(f.CommandBuffer)
	sl.open = false
	if err := s.dev.EndCommandBuffer(f.CommandBuffer); err != nil {
		return core.Resource(op, err)
	}
	return nil
}

// End submits and presents the frame and advances the ring. A stale or
// resized surface is recreated here.
func (s *Scheduler) End(f Frame) error {
	const op = "frame.End"
	sl, err := s.recording(op, f)
	if err != nil {
		return err
	}
	if sl.open {
		sl.open = false
		if err := s.dev.EndCommandBuffer(sl.commandBuffer); err != nil {
			return core.Resource(op, err)
		}
	}

	// the fence is only unsignaled while a submit is pending on it
	if err := s.dev.ResetFence(sl.inFlight); err != nil {
		return core.Resource(op, err)
	}
	err = s.dev.Submit(gpu.SubmitInfo{
		CommandBuffer: sl.commandBuffer,
		Wait:          sl.imageAvailable,
		WaitStage:     gpu.StageColorAttachmentOutput,
		Signal:        sl.renderFinished,
		Fence:         sl.inFlight,
	})
	if err != nil {
		sl.state = Idle
		return errors.Join(core.Resource(op, fmt.Errorf("submit: %w", err)), s.replaceFence(sl))
	}
	sl.state = Submitted
	s.pool.MarkInFlight(f.Slot)

	presentErr := s.dev.Present(s.swapchain.Handle, f.ImageIndex, sl.renderFinished)
	resized := s.surface.ConsumeResize()
	s.current = (s.current + 1) % len(s.slots)

	switch {
	case errors.Is(presentErr, gpu.ErrSurfaceOutOfDate), errors.Is(presentErr, gpu.ErrSurfaceSuboptimal), resized:
		return s.Recreate()
	case presentErr != nil:
		return core.Resource(op, fmt.Errorf("present: %w", presentErr))
	}
	return nil
}

// Abort discards what was recorded for f and submits a frame that only
// clears the main pass, so the acquired image is presented and the slot's
// fence signals again. Callers use it when recording a frame fails.
func (s *Scheduler) Abort(f Frame) error {
	const op = "frame.Abort"
	sl, err := s.recording(op, f)
	if err != nil {
		return err
	}
	core.LogWarn("aborting frame on slot %d", f.Slot)
	if err := s.dev.ResetCommandBuffer(sl.commandBuffer); err != nil {
		return core.Resource(op, err)
	}
	if err := s.dev.BeginCommandBuffer(sl.commandBuffer, false); err != nil {
		return core.Resource(op, err)
	}
	sl.open = true
	s.beginMainPass(f)
	s.dev.CmdEndRenderPass(f.CommandBuffer)
	return s.End(f)
}

// replaceFence swaps a fence left unsignaled by a failed submit for a
// signaled one.
func (s *Scheduler) replaceFence(sl *slot) error {
	fence, err := s.dev.CreateFence(true)
	if err != nil {
		return core.Resource("frame.replaceFence", err)
	}
	s.dev.DestroyFence(sl.inFlight)
	sl.inFlight = fence
	return nil
}

// Recreate rebuilds the swapchain and everything sized by it. It blocks
// while the surface has zero area.
func (s *Scheduler) Recreate() error {
	const op = "frame.Recreate"
	extent := s.waitForExtent()
	if err := s.dev.WaitIdle(); err != nil {
		return core.Resource(op, err)
	}

	s.destroyTargets()
	s.dev.DestroySwapchain(s.swapchain)
	s.swapchain = gpu.SwapchainInfo{}

	if err := s.createSwapchain(extent); err != nil {
		return core.Initialization(op, err)
	}
	if s.renderPass != gpu.NullRenderPass {
		if err := s.createTargets(); err != nil {
			return err
		}
	}
	core.LogInfo("swapchain recreated at %dx%d", extent.Width, extent.Height)
	return nil
}

// SingleUse records and runs a blocking one-off command buffer.
func (s *Scheduler) SingleUse(record func(cb gpu.CommandBuffer) error) error {
	return gpu.RunSingleUse(s.dev, record)
}

// Destroy waits for the device and releases everything the scheduler
// created.
func (s *Scheduler) Destroy() {
	_ = s.dev.WaitIdle()
	for _, sl := range s.slots {
		s.dev.DestroySemaphore(sl.imageAvailable)
		s.dev.DestroySemaphore(sl.renderFinished)
		s.dev.DestroyFence(sl.inFlight)
		s.dev.FreeCommandBuffers(sl.commandBuffer)
	}
	s.slots = nil
	s.destroyTargets()
	if s.swapchain.Handle != 0 {
		s.dev.DestroySwapchain(s.swapchain)
		s.swapchain = gpu.SwapchainInfo{}
	}
}
