// Package shadow records one depth pass per light into a layered shadow map
// which the main pass samples at descriptor binding 0.
package shadow

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/spaghettifunk/penumbra/engine/core"
	"github.com/spaghettifunk/penumbra/engine/math"
	"github.com/spaghettifunk/penumbra/engine/renderer/gpu"
	"github.com/spaghettifunk/penumbra/engine/renderer/pipeline"
	"github.com/spaghettifunk/penumbra/engine/renderer/resources"
)

const DefaultMapSize uint32 = 2048

var (
	ErrInitialized    = errors.New("shadow renderer already initialized")
	ErrNotInitialized = errors.New("shadow renderer not initialized")
)

type Light struct {
	ID             uuid.UUID
	ViewProjection math.Mat4
	Position       math.Vec3
	Color          math.Vec3
}

// Caster is a mesh drawn into every light's depth layer.
type Caster interface {
	Buffers() (vertex, index gpu.Buffer)
	IndexCount() uint32
	ModelMatrix() math.Mat4
}

type Renderer struct {
	extent gpu.Extent2D
	lights []Light

	dev        gpu.Device
	pool       *resources.Pool
	renderPass gpu.RenderPass

	image        resources.ImageHandle
	view         gpu.ImageView
	sampler      gpu.Sampler
	layerViews   []gpu.ImageView
	framebuffers []gpu.Framebuffer
	initialized  bool
}

// New returns a renderer whose shadow maps are size×size texels.
func New(size uint32) *Renderer {
	if size == 0 {
		size = DefaultMapSize
	}
	return &Renderer{extent: gpu.Extent2D{Width: size, Height: size}}
}

// AddLight registers a shadow-casting light. Lights are fixed once Init has
// run.
func (r *Renderer) AddLight(viewProj math.Mat4, pos, color math.Vec3) (uuid.UUID, error) {
	if r.initialized {
		return uuid.Nil, core.Usage("shadow.AddLight", ErrInitialized)
	}
	l := Light{
		ID:             uuid.New(),
		ViewProjection: viewProj,
		Position:       pos,
		Color:          color,
	}
	r.lights = append(r.lights, l)
	return l.ID, nil
}

func (r *Renderer) Lights() []Light {
	return append([]Light(nil), r.lights...)
}

func (r *Renderer) Extent() gpu.Extent2D { return r.extent }

func (r *Renderer) View() gpu.ImageView { return r.view }

func (r *Renderer) Sampler() gpu.Sampler { return r.sampler }

func (r *Renderer) Framebuffers() []gpu.Framebuffer {
	return append([]gpu.Framebuffer(nil), r.framebuffers...)
}

// Init creates the layered depth map, one framebuffer per light on
// renderPass, and the compare sampler. With no lights a single-layer
// placeholder is created so the shadow binding stays valid.
func (r *Renderer) Init(pool *resources.Pool, renderPass gpu.RenderPass) error {
	const op = "shadow.Init"
	if r.initialized {
		return core.Usage(op, ErrInitialized)
	}
	r.initialized = true
	r.pool = pool
	r.dev = pool.Device()
	r.renderPass = renderPass

	format := r.dev.Limits().DepthFormat
	layers := uint32(max(len(r.lights), 1))
	img, err := pool.CreateImage(gpu.ImageDesc{
		Width:   r.extent.Width,
		Height:  r.extent.Height,
		Layers:  layers,
		Format:  format,
		Usage:   gpu.ImageUsageDepthStencilAttachment | gpu.ImageUsageSampled,
		Samples: gpu.Samples1,
	}, gpu.MemoryDeviceLocal)
	if err != nil {
		return err
	}
	r.image = img

	raw, err := pool.Image(img)
	if err != nil {
		return err
	}
	if err := pool.TransitionLayout(raw, format, gpu.LayoutUndefined, gpu.LayoutShaderReadOnly, layers); err != nil {
		return err
	}

	if r.view, err = pool.CreateView(img, gpu.ImageViewDesc{
		Format:     format,
		Aspect:     gpu.AspectDepth,
		LayerCount: layers,
		Array:      true,
	}); err != nil {
		return err
	}
	if r.sampler, err = pool.CreateSampler(img, gpu.SamplerDesc{
		Filter:        gpu.FilterLinear,
		AddressMode:   gpu.AddressClampToBorder,
		BorderColor:   gpu.BorderFloatOpaqueWhite,
		CompareEnable: true,
		CompareOp:     gpu.CompareLessOrEqual,
	}); err != nil {
		return err
	}

	for i := range r.lights {
		view, err := pool.CreateView(img, gpu.ImageViewDesc{
			Format:     format,
			Aspect:     gpu.AspectDepth,
			BaseLayer:  uint32(i),
			LayerCount: 1,
		})
		if err != nil {
			return err
		}
		r.layerViews = append(r.layerViews, view)

		fb, err := r.dev.CreateFramebuffer(gpu.FramebufferDesc{
			RenderPass:  renderPass,
			Attachments: []gpu.ImageView{view},
			Width:       r.extent.Width,
			Height:      r.extent.Height,
			Layers:      1,
		})
		if err != nil {
			return core.Resource(op, fmt.Errorf("light %s framebuffer: %w", r.lights[i].ID, err))
		}
		r.framebuffers = append(r.framebuffers, fb)
	}
	core.LogDebug("shadow maps initialized: %d lights at %dx%d", len(r.lights), r.extent.Width, r.extent.Height)
	return nil
}

// Render records one depth pass per light drawing every caster. It must be
// recorded before the main render pass begins in the same command buffer.
func (r *Renderer) Render(cb gpu.CommandBuffer, p *pipeline.Pipeline, casters []Caster) error {
	if len(r.lights) == 0 {
		return nil
	}
	if !r.initialized || len(r.framebuffers) != len(r.lights) {
		return core.Usage("shadow.Render", ErrNotInitialized)
	}
	for i, light := range r.lights {
		r.dev.CmdBeginRenderPass(cb, gpu.RenderPassBegin{
			RenderPass:  r.renderPass,
			Framebuffer: r.framebuffers[i],
			Area:        gpu.Rect2D{Width: r.extent.Width, Height: r.extent.Height},
			Clear:       []gpu.ClearValue{gpu.ClearDepth(1, 0)},
		})
		p.Bind(r.dev, cb, 0)
		for _, c := range casters {
			vertex, index := c.Buffers()
			r.dev.CmdBindVertexBuffer(cb, vertex, 0)
			r.dev.CmdBindIndexBuffer(cb, index, 0)
			pc := pipeline.ShadowPushConstants{
				LightViewProjection: light.ViewProjection,
				Model:               c.ModelMatrix(),
			}
			p.Push(r.dev, cb, pc.Bytes())
			r.dev.CmdDrawIndexed(cb, c.IndexCount(), 1, 0, 0, 0)
		}
		r.dev.CmdEndRenderPass(cb)
	}
	return nil
}

// Destroy releases the framebuffers and the shadow map with its views and
// sampler. Lights stay registered.
func (r *Renderer) Destroy() {
	if !r.initialized {
		return
	}
	for _, fb := range r.framebuffers {
		r.dev.DestroyFramebuffer(fb)
	}
	r.framebuffers = nil
	r.layerViews = nil
	_ = r.pool.DestroyImage(r.image)
	r.view, r.sampler = 0, 0
	r.initialized = false
}
