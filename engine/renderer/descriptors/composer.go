// Package descriptors composes the renderer's single descriptor set layout
// from producers registered at setup time.
package descriptors

import (
	"errors"
	"fmt"

	"github.com/spaghettifunk/penumbra/engine/core"
	"github.com/spaghettifunk/penumbra/engine/renderer/gpu"
	"github.com/spaghettifunk/penumbra/engine/renderer/resources"
)

// ShadowBinding is reserved for the shadow map sampler.
const ShadowBinding uint32 = 0

var (
	ErrFinalized        = errors.New("descriptor composer already finalized")
	ErrNotFinalized     = errors.New("descriptor composer not finalized")
	ErrDuplicateBinding = errors.New("binding already registered")
	ErrReservedBinding  = errors.New("binding 0 is reserved for the shadow map")
	ErrBindingOrder     = errors.New("bindings out of order")
)

// UniformGroup is a per-frame uniform buffer bound at Binding.
type UniformGroup struct {
	Binding uint32
	Size    uint64
	Stages  gpu.ShaderStage
	Buffer  resources.BufferHandle
}

type textureEntry struct {
	binding uint32
	sources []resources.TextureSource

	// zero layers means a single texture
	width, height, layers uint32

	texture *resources.Texture
}

// Composer collects bindings in registration order. Once Finalize has run
// the sequence is locked and every registration fails with ErrFinalized.
type Composer struct {
	dev  gpu.Device
	pool *resources.Pool

	bindings []gpu.DescriptorBinding
	uniforms []*UniformGroup
	textures []*textureEntry

	shadowView    gpu.ImageView
	shadowSampler gpu.Sampler
	hasShadow     bool

	finalized  bool
	layout     gpu.DescriptorSetLayout
	descriptor gpu.DescriptorPool
	sets       []gpu.DescriptorSet
}

func New(pool *resources.Pool) *Composer {
	return &Composer{
		dev:  pool.Device(),
		pool: pool,
	}
}

func (c *Composer) registered(binding uint32) bool {
	for _, b := range c.bindings {
		if b.Binding == binding {
			return true
		}
	}
	return false
}

func (c *Composer) checkOpen(op string, binding uint32, reserve bool) error {
	if c.finalized {
		return core.Usage(op, ErrFinalized)
	}
	if reserve && binding == ShadowBinding {
		return core.Usage(op, ErrReservedBinding)
	}
	if c.registered(binding) {
		return core.Usage(op, fmt.Errorf("%w: %d", ErrDuplicateBinding, binding))
	}
	return nil
}

// AddBinding appends a raw binding to the layout sequence.
func (c *Composer) AddBinding(binding uint32, kind gpu.DescriptorKind, stages gpu.ShaderStage) error {
	if err := c.checkOpen("descriptors.AddBinding", binding, false); err != nil {
		return err
	}
	c.bindings = append(c.bindings, gpu.DescriptorBinding{
		Binding: binding,
		Kind:    kind,
		Count:   1,
		Stages:  stages,
	})
	return nil
}

// AddUniformGroup creates a per-frame uniform buffer of size bytes and
// registers it at binding.
func (c *Composer) AddUniformGroup(binding uint32, size uint64, stages gpu.ShaderStage) (*UniformGroup, error) {
	const op = "descriptors.AddUniformGroup"
	if err := c.checkOpen(op, binding, true); err != nil {
		return nil, err
	}
	buf, err := c.pool.CreateUniformBuffer(size)
	if err != nil {
		return nil, err
	}
	group := &UniformGroup{Binding: binding, Size: size, Stages: stages, Buffer: buf}
	c.uniforms = append(c.uniforms, group)
	if err := c.AddBinding(binding, gpu.DescriptorUniformBuffer, stages); err != nil {
		return nil, err
	}
	return group, nil
}

// AddTexture registers a fragment-stage sampled texture. The source is
// decoded and uploaded by Finalize.
func (c *Composer) AddTexture(src resources.TextureSource, binding uint32) error {
	if err := c.checkOpen("descriptors.AddTexture", binding, true); err != nil {
		return err
	}
	c.textures = append(c.textures, &textureEntry{binding: binding, sources: []resources.TextureSource{src}})
	return c.AddBinding(binding, gpu.DescriptorCombinedImageSampler, gpu.StageFragment)
}

// AddTextureArray registers srcs as the layers of one sampled array.
func (c *Composer) AddTextureArray(srcs []resources.TextureSource, width, height, layerCount, binding uint32) error {
	if err := c.checkOpen("descriptors.AddTextureArray", binding, true); err != nil {
		return err
	}
	c.textures = append(c.textures, &textureEntry{
		binding: binding,
		sources: srcs,
		width:   width,
		height:  height,
		layers:  layerCount,
	})
	return c.AddBinding(binding, gpu.DescriptorCombinedImageSampler, gpu.StageFragment)
}

// SetShadowMap registers the shadow sampler at binding 0, ahead of every
// other binding.
func (c *Composer) SetShadowMap(view gpu.ImageView, sampler gpu.Sampler) error {
	if err := c.checkOpen("descriptors.SetShadowMap", ShadowBinding, false); err != nil {
		return err
	}
	c.shadowView, c.shadowSampler, c.hasShadow = view, sampler, true
	c.bindings = append([]gpu.DescriptorBinding{{
		Binding: ShadowBinding,
		Kind:    gpu.DescriptorCombinedImageSampler,
		Count:   1,
		Stages:  gpu.StageFragment,
	}}, c.bindings...)
	return nil
}

// checkOrder enforces uniforms at [1..U] and textures at [U+1..) in
// registration order.
func (c *Composer) checkOrder() error {
	next := ShadowBinding + 1
	for _, u := range c.uniforms {
		if u.Binding != next {
			return fmt.Errorf("%w: uniform group at %d, expected %d", ErrBindingOrder, u.Binding, next)
		}
		next++
	}
	for _, t := range c.textures {
		if t.binding != next {
			return fmt.Errorf("%w: texture at %d, expected %d", ErrBindingOrder, t.binding, next)
		}
		next++
	}
	return nil
}

func (c *Composer) imageCount() uint32 {
	n := uint32(len(c.textures))
	if c.hasShadow {
		n++
	}
	return n
}

// Finalize locks the registration sequence, uploads the registered
// textures and creates the set layout and descriptor pool. It may only be
// called once.
func (c *Composer) Finalize() error {
	const op = "descriptors.Finalize"
	if c.finalized {
		return core.Usage(op, ErrFinalized)
	}
	c.finalized = true

	if err := c.checkOrder(); err != nil {
		return core.Usage(op, err)
	}

	for _, t := range c.textures {
		var (
			tex *resources.Texture
			err error
		)
		if t.layers == 0 {
			tex, err = c.pool.CreateTexture(t.sources[0])
		} else {
			tex, err = c.pool.CreateTextureArray(t.sources, t.width, t.height, t.layers)
		}
		if err != nil {
			return err
		}
		t.texture = tex
	}

	layout, err := c.dev.CreateDescriptorSetLayout(c.bindings)
	if err != nil {
		return core.Resource(op, err)
	}
	c.layout = layout

	ring := uint32(c.pool.RingSize())
	uniforms := uint32(len(c.uniforms))
	images := c.imageCount()
	var sizes []gpu.DescriptorPoolSize
	if uniforms > 0 {
		sizes = append(sizes, gpu.DescriptorPoolSize{Kind: gpu.DescriptorUniformBuffer, Count: uniforms * ring})
	}
	if images > 0 {
		sizes = append(sizes, gpu.DescriptorPoolSize{Kind: gpu.DescriptorCombinedImageSampler, Count: images * ring})
	}
	maxSets := max((uniforms+images)*ring, ring)
	pool, err := c.dev.CreateDescriptorPool(maxSets, sizes)
	if err != nil {
		return core.Resource(op, err)
	}
	c.descriptor = pool
	core.LogDebug("descriptor layout finalized: %d uniform groups, %d images, %d sets", uniforms, images, maxSets)
	return nil
}

// BuildFrameDescriptorSets allocates one set per ring slot and points it at
// that slot's uniform buffers, the textures and the shadow map.
func (c *Composer) BuildFrameDescriptorSets() error {
	const op = "descriptors.BuildFrameDescriptorSets"
	if !c.finalized || c.descriptor == 0 {
		return core.Usage(op, ErrNotFinalized)
	}
	ring := c.pool.RingSize()
	sets, err := c.dev.AllocateDescriptorSets(c.descriptor, c.layout, uint32(ring))
	if err != nil {
		return core.Resource(op, err)
	}

	var writes []gpu.DescriptorWrite
	for slot, set := range sets {
		if c.hasShadow {
			writes = append(writes, gpu.DescriptorWrite{
				Set:     set,
				Binding: ShadowBinding,
				Kind:    gpu.DescriptorCombinedImageSampler,
				View:    c.shadowView,
				Sampler: c.shadowSampler,
				Layout:  gpu.LayoutShaderReadOnly,
			})
		}
		for _, u := range c.uniforms {
			buf, err := c.pool.Buffer(u.Buffer.At(slot))
			if err != nil {
				return err
			}
			writes = append(writes, gpu.DescriptorWrite{
				Set:     set,
				Binding: u.Binding,
				Kind:    gpu.DescriptorUniformBuffer,
				Buffer:  buf,
				Offset:  0,
				Range:   u.Size,
			})
		}
		for _, t := range c.textures {
			writes = append(writes, gpu.DescriptorWrite{
				Set:     set,
				Binding: t.binding,
				Kind:    gpu.DescriptorCombinedImageSampler,
				View:    t.texture.View,
				Sampler: t.texture.Sampler,
				Layout:  gpu.LayoutShaderReadOnly,
			})
		}
	}
	c.dev.UpdateDescriptorSets(writes)
	c.sets = sets
	return nil
}

// Set returns the descriptor set of ring slot slot.
func (c *Composer) Set(slot int) gpu.DescriptorSet {
	if slot < 0 || slot >= len(c.sets) {
		return 0
	}
	return c.sets[slot]
}

func (c *Composer) Layout() gpu.DescriptorSetLayout { return c.layout }

// Bindings returns a copy of the registered sequence.
func (c *Composer) Bindings() []gpu.DescriptorBinding {
	return append([]gpu.DescriptorBinding(nil), c.bindings...)
}

// Textures returns the uploaded textures in registration order.
func (c *Composer) Textures() []*resources.Texture {
	out := make([]*resources.Texture, 0, len(c.textures))
	for _, t := range c.textures {
		if t.texture != nil {
			out = append(out, t.texture)
		}
	}
	return out
}

func (c *Composer) UpdateUniform(group *UniformGroup, slot int, data []byte) error {
	return c.pool.UpdateBuffer(group.Buffer.At(slot), data)
}

// UpdateUniformAll writes data to every ring copy of group.
func (c *Composer) UpdateUniformAll(group *UniformGroup, data []byte) error {
	for slot := 0; slot < c.pool.RingSize(); slot++ {
		if err := c.UpdateUniform(group, slot, data); err != nil {
			return err
		}
	}
	return nil
}

// Destroy releases the descriptor pool and layout. Uniform buffers and
// textures belong to the resource pool.
func (c *Composer) Destroy() {
	if c.descriptor != 0 {
		c.dev.DestroyDescriptorPool(c.descriptor)
		c.descriptor = 0
	}
	if c.layout != 0 {
		c.dev.DestroyDescriptorSetLayout(c.layout)
		c.layout = 0
	}
	c.sets = nil
}
