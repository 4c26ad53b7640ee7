// Package renderer drives one frame of shadow and main-pass rendering on top
// of the resource pool, descriptor composer, pipelines and frame scheduler.
package renderer

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/spaghettifunk/penumbra/engine/core"
	"github.com/spaghettifunk/penumbra/engine/math"
	"github.com/spaghettifunk/penumbra/engine/renderer/descriptors"
	"github.com/spaghettifunk/penumbra/engine/renderer/frame"
	"github.com/spaghettifunk/penumbra/engine/renderer/gpu"
	"github.com/spaghettifunk/penumbra/engine/renderer/pipeline"
	"github.com/spaghettifunk/penumbra/engine/renderer/resources"
	"github.com/spaghettifunk/penumbra/engine/renderer/shadow"
)

var (
	ErrNotInitialized     = errors.New("renderer not initialized")
	ErrAlreadyInitialized = errors.New("renderer already initialized")
	ErrMissingShader      = errors.New("missing shader bytecode")
)

type RendererType uint8

const (
	Vulkan RendererType = iota
)

// Shaders holds SPIR-V bytecode for the main and shadow pipelines.
type Shaders struct {
	MainVertex     []byte
	MainFragment   []byte
	ShadowVertex   []byte
	ShadowFragment []byte
}

func (s Shaders) validate() error {
	stages := []struct {
		name string
		code []byte
	}{
		{"main vertex", s.MainVertex},
		{"main fragment", s.MainFragment},
		{"shadow vertex", s.ShadowVertex},
		{"shadow fragment", s.ShadowFragment},
	}
	for _, stage := range stages {
		if len(stage.code) == 0 {
			return fmt.Errorf("%w: %s", ErrMissingShader, stage.name)
		}
	}
	return nil
}

type Config struct {
	FramesInFlight int
	MSAA           bool
	VSync          bool
	ShadowMapSize  uint32
	FrameGuard     bool
	ClearColor     [4]float32
	Shaders        Shaders
}

// Scene is what the renderer draws. CreateBuffers runs once during
// Initialize, after the device exists and before the descriptor layout is
// finalized. Prepare runs each frame before recording, once the slot's
// previous submission has completed.
type Scene interface {
	CreateBuffers(r *Renderer) error
	Prepare(r *Renderer, slot int) error
	ShadowCasters() []shadow.Caster
	PushConstants() pipeline.PushConstants
	RenderOpaque(r *Renderer, cb gpu.CommandBuffer)
	RenderTransparent(r *Renderer, cb gpu.CommandBuffer)
	HasTransparent() bool
}

type Renderer struct {
	Type RendererType

	dev     gpu.Device
	surface gpu.Surface
	cfg     Config

	pool      *resources.Pool
	composer  *descriptors.Composer
	shadows   *shadow.Renderer
	scheduler *frame.Scheduler

	shadowPipeline *pipeline.Pipeline
	// index 0 is opaque, 1 transparent
	pipelines []*pipeline.Pipeline

	initialized bool
}

// New wraps an opened device and its surface. No GPU objects are created
// until Initialize.
func New(dev gpu.Device, surface gpu.Surface, cfg Config) *Renderer {
	if cfg.FramesInFlight <= 0 {
		cfg.FramesInFlight = frame.DefaultFramesInFlight
	}
	if cfg.ShadowMapSize == 0 {
		cfg.ShadowMapSize = shadow.DefaultMapSize
	}
	return &Renderer{
		Type:    Vulkan,
		dev:     dev,
		surface: surface,
		cfg:     cfg,
	}
}

func (r *Renderer) Device() gpu.Device                 { return r.dev }
func (r *Renderer) Pool() *resources.Pool              { return r.pool }
func (r *Renderer) Composer() *descriptors.Composer    { return r.composer }
func (r *Renderer) Shadows() *shadow.Renderer          { return r.shadows }
func (r *Renderer) Scheduler() *frame.Scheduler        { return r.scheduler }
func (r *Renderer) ShadowPipeline() *pipeline.Pipeline { return r.shadowPipeline }

// Pipeline returns the main pass pipeline at index i, 0 for opaque and 1 for
// transparent geometry.
func (r *Renderer) Pipeline(i int) *pipeline.Pipeline {
	if i < 0 || i >= len(r.pipelines) {
		return nil
	}
	return r.pipelines[i]
}

// Extent is the current swapchain extent, zero before Initialize.
func (r *Renderer) Extent() gpu.Extent2D {
	if r.scheduler == nil {
		return gpu.Extent2D{}
	}
	return r.scheduler.Extent()
}

// AspectRatio of the swapchain, 1 before Initialize.
func (r *Renderer) AspectRatio() float32 {
	e := r.Extent()
	if e.Height == 0 {
		return 1
	}
	return float32(e.Width) / float32(e.Height)
}

// AddLight registers a shadow-casting light. Only valid from
// Scene.CreateBuffers.
func (r *Renderer) AddLight(viewProj math.Mat4, pos, color math.Vec3) (uuid.UUID, error) {
	if r.shadows == nil {
		return uuid.Nil, core.Usage("renderer.AddLight", ErrNotInitialized)
	}
	return r.shadows.AddLight(viewProj, pos, color)
}

// Initialize creates every GPU object the renderer needs, in dependency
// order: swapchain, scene resources, shadow maps, descriptor layout,
// pipelines, frame ring and finally the per-frame descriptor sets.
func (r *Renderer) Initialize(scene Scene) error {
	const op = "renderer.Initialize"
	if r.initialized {
		return core.Usage(op, ErrAlreadyInitialized)
	}
	if err := r.cfg.Shaders.validate(); err != nil {
		return core.Initialization(op, err)
	}

	var opts []resources.Option
	if r.cfg.FrameGuard {
		opts = append(opts, resources.WithFrameGuard())
	}
	r.pool = resources.New(r.dev, r.cfg.FramesInFlight, opts...)

	samples := gpu.Samples1
	if r.cfg.MSAA {
		samples = 0
	}
	scheduler, err := frame.New(r.dev, r.surface, r.pool, frame.Config{
		FramesInFlight: r.cfg.FramesInFlight,
		Samples:        samples,
		ClearColor:     r.cfg.ClearColor,
		VSync:          r.cfg.VSync,
	})
	if err != nil {
		return err
	}
	r.scheduler = scheduler

	r.composer = descriptors.New(r.pool)
	r.shadows = shadow.New(r.cfg.ShadowMapSize)
	if err := scene.CreateBuffers(r); err != nil {
		return err
	}

	// the shadow pipeline owns the depth-only pass the shadow framebuffers
	// are created against
	if r.shadowPipeline, err = pipeline.New(r.dev, pipeline.Params{
		Kind:           pipeline.Shadow,
		VertexShader:   r.cfg.Shaders.ShadowVertex,
		FragmentShader: r.cfg.Shaders.ShadowFragment,
		DepthFormat:    scheduler.DepthFormat(),
		ShadowExtent:   r.shadows.Extent(),
	}); err != nil {
		return err
	}
	if err := r.shadows.Init(r.pool, r.shadowPipeline.RenderPass); err != nil {
		return err
	}
	if err := r.composer.SetShadowMap(r.shadows.View(), r.shadows.Sampler()); err != nil {
		return err
	}
	if err := r.composer.Finalize(); err != nil {
		return err
	}

	opaque, err := pipeline.New(r.dev, pipeline.Params{
		Kind:             pipeline.Opaque,
		VertexShader:     r.cfg.Shaders.MainVertex,
		FragmentShader:   r.cfg.Shaders.MainFragment,
		DescriptorLayout: r.composer.Layout(),
		Samples:          scheduler.Samples(),
		ColorFormat:      scheduler.ColorFormat(),
		DepthFormat:      scheduler.DepthFormat(),
	})
	if err != nil {
		return err
	}
	r.pipelines = append(r.pipelines, opaque)

	transparent, err := pipeline.New(r.dev, pipeline.Params{
		Kind:             pipeline.Transparent,
		VertexShader:     r.cfg.Shaders.MainVertex,
		FragmentShader:   r.cfg.Shaders.MainFragment,
		DescriptorLayout: r.composer.Layout(),
		RenderPass:       opaque.RenderPass,
		Samples:          scheduler.Samples(),
		ColorFormat:      scheduler.ColorFormat(),
		DepthFormat:      scheduler.DepthFormat(),
	})
	if err != nil {
		return err
	}
	r.pipelines = append(r.pipelines, transparent)

	if err := scheduler.Initialize(opaque.RenderPass); err != nil {
		return err
	}
	if err := r.composer.BuildFrameDescriptorSets(); err != nil {
		return err
	}

	r.initialized = true
	core.LogInfo("renderer initialized: %d frames in flight, %d samples, %d lights",
		r.cfg.FramesInFlight, scheduler.Samples(), len(r.shadows.Lights()))
	return nil
}

// DrawFrame records and presents one frame of scene. A frame skipped for
// swapchain recreation is not an error.
func (r *Renderer) DrawFrame(scene Scene) error {
	const op = "renderer.DrawFrame"
	if !r.initialized {
		return core.Usage(op, ErrNotInitialized)
	}
	f, ok, err := r.scheduler.Begin()
	if err != nil || !ok {
		return err
	}
	if err := r.record(scene, f); err != nil {
		if abortErr := r.scheduler.Abort(f); abortErr != nil {
			core.LogError("failed to abort frame: %s", abortErr)
			return errors.Join(err, abortErr)
		}
		return err
	}
	return r.scheduler.End(f)
}

// record fills f's command buffer: shadow maps, then the main pass with the
// opaque and transparent meshes.
func (r *Renderer) record(scene Scene, f frame.Frame) error {
	cb := f.CommandBuffer
	if err := scene.Prepare(r, f.Slot); err != nil {
		return err
	}
	if err := r.shadows.Render(cb, r.shadowPipeline, scene.ShadowCasters()); err != nil {
		return err
	}

	if err := r.scheduler.BeginMainPass(f); err != nil {
		return err
	}
	push := scene.PushConstants().Bytes()

	r.bindMain(cb, 0, f.Slot, push)
	scene.RenderOpaque(r, cb)

	if scene.HasTransparent() {
		r.bindMain(cb, 1, f.Slot, push)
		scene.RenderTransparent(r, cb)
	}
	return r.scheduler.EndMainPass(f)
}

func (r *Renderer) bindMain(cb gpu.CommandBuffer, index, slot int, push []byte) {
	p := r.pipelines[index]
	p.Bind(r.dev, cb, r.composer.Set(slot))
	r.scheduler.SetDefaultViewportAndScissor(cb)
	p.Push(r.dev, cb, push)
}

// Draw binds a mesh's buffers and issues one indexed draw.
func (r *Renderer) Draw(cb gpu.CommandBuffer, mesh shadow.Caster) {
	vertex, index := mesh.Buffers()
	r.dev.CmdBindVertexBuffer(cb, vertex, 0)
	r.dev.CmdBindIndexBuffer(cb, index, 0)
	r.dev.CmdDrawIndexed(cb, mesh.IndexCount(), 1, 0, 0, 0)
}

// Shutdown waits for the device and releases everything in reverse creation
// order. The device itself belongs to the caller.
func (r *Renderer) Shutdown() error {
	if r.pool == nil {
		return nil
	}
	if err := r.dev.WaitIdle(); err != nil {
		core.LogError("renderer shutdown: device wait idle: %s", err)
	}
	if r.scheduler != nil {
		r.scheduler.Destroy()
	}
	for i := len(r.pipelines) - 1; i >= 0; i-- {
		r.pipelines[i].Destroy(r.dev)
	}
	r.pipelines = nil
	if r.composer != nil {
		r.composer.Destroy()
	}
	if r.shadows != nil {
		r.shadows.Destroy()
	}
	if r.shadowPipeline != nil {
		r.shadowPipeline.Destroy(r.dev)
		r.shadowPipeline = nil
	}
	r.pool.Teardown()
	r.pool = nil
	r.initialized = false
	return nil
}
