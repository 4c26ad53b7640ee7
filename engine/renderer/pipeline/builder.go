package pipeline

import (
	"errors"
	"fmt"

	"github.com/spaghettifunk/penumbra/engine/core"
	"github.com/spaghettifunk/penumbra/engine/renderer/gpu"
)

var (
	ErrInvalidShader = errors.New("invalid SPIR-V shader code")
	ErrNoShaders     = errors.New("pipeline has no shaders")
	ErrNoRenderPass  = errors.New("pipeline has no render pass")
	ErrNoExtent      = errors.New("static viewport needs an extent")
	ErrUnknownKind   = errors.New("unknown pipeline kind")
)

// Builder assembles a graphics pipeline. Setters chain; the first error a
// setter hits is kept and returned by Build.
type Builder struct {
	dev  gpu.Device
	desc gpu.GraphicsPipelineDesc

	vertCode, fragCode []byte
	layout             gpu.PipelineLayoutDesc
	multisample        bool
	samples            gpu.SampleCount

	err error
}

func NewBuilder(dev gpu.Device) *Builder {
	return &Builder{
		dev: dev,
		desc: gpu.GraphicsPipelineDesc{
			Topology:        gpu.TopologyTriangleList,
			PolygonMode:     gpu.PolygonFill,
			CullMode:        gpu.CullNone,
			FrontFace:       gpu.FrontFaceCounterClockwise,
			ColorAttachment: true,
			DynamicViewport: true,
			DepthCompare:    gpu.CompareLess,
		},
		multisample: true,
	}
}

func (b *Builder) fail(err error) *Builder {
	if b.err == nil {
		b.err = err
	}
	return b
}

func (b *Builder) Topology(t gpu.Topology) *Builder {
	b.desc.Topology = t
	return b
}

func (b *Builder) PolygonMode(m gpu.PolygonMode) *Builder {
	b.desc.PolygonMode = m
	return b
}

func (b *Builder) CullMode(c gpu.CullMode) *Builder {
	b.desc.CullMode = c
	return b
}

// Blending enables src-alpha over blending on the color attachment.
func (b *Builder) Blending(on bool) *Builder {
	b.desc.BlendEnable = on
	return b
}

func (b *Builder) DepthTest(test, write bool) *Builder {
	b.desc.DepthTest = test
	b.desc.DepthWrite = write
	return b
}

// Multisample uses the device's highest usable sample count when on.
func (b *Builder) Multisample(on bool) *Builder {
	b.multisample = on
	return b
}

// Samples pins the sample count instead of the device maximum.
func (b *Builder) Samples(s gpu.SampleCount) *Builder {
	b.multisample = s > gpu.Samples1
	b.samples = s
	return b
}

// DynamicViewport makes viewport and scissor dynamic. When off the
// pipeline is baked for extent.
func (b *Builder) DynamicViewport(on bool, extent gpu.Extent2D) *Builder {
	if !on && extent.IsZero() {
		return b.fail(ErrNoExtent)
	}
	b.desc.DynamicViewport = on
	b.desc.Extent = extent
	return b
}

func (b *Builder) ColorAttachment(on bool) *Builder {
	b.desc.ColorAttachment = on
	return b
}

func (b *Builder) Shaders(vert, frag []byte) *Builder {
	for _, code := range [][]byte{vert, frag} {
		if len(code) == 0 || len(code)%4 != 0 {
			return b.fail(fmt.Errorf("%w: %d bytes", ErrInvalidShader, len(code)))
		}
	}
	b.vertCode, b.fragCode = vert, frag
	return b
}

func (b *Builder) VertexInput(bindings []gpu.VertexBinding, attributes []gpu.VertexAttribute) *Builder {
	b.desc.VertexBindings = bindings
	b.desc.VertexAttributes = attributes
	return b
}

func (b *Builder) PushConstants(ranges ...gpu.PushConstantRange) *Builder {
	b.layout.PushConstants = append(b.layout.PushConstants, ranges...)
	return b
}

func (b *Builder) DescriptorLayouts(layouts ...gpu.DescriptorSetLayout) *Builder {
	for _, l := range layouts {
		if l != 0 {
			b.layout.SetLayouts = append(b.layout.SetLayouts, l)
		}
	}
	return b
}

func (b *Builder) RenderPass(rp gpu.RenderPass) *Builder {
	if rp == gpu.NullRenderPass {
		return b.fail(ErrNoRenderPass)
	}
	b.desc.RenderPass = rp
	return b
}

// Build creates the shader modules, the layout and the pipeline. On error
// every object it created is destroyed again.
func (b *Builder) Build() (*Pipeline, error) {
	const op = "pipeline.Build"
	if b.err != nil {
		return nil, core.Usage(op, b.err)
	}
	if b.vertCode == nil || b.fragCode == nil {
		return nil, core.Usage(op, ErrNoShaders)
	}
	if b.desc.RenderPass == gpu.NullRenderPass {
		return nil, core.Usage(op, ErrNoRenderPass)
	}

	p := &Pipeline{RenderPass: b.desc.RenderPass}
	var err error
	if p.Vertex, err = b.dev.CreateShaderModule(b.vertCode); err != nil {
		return nil, core.Resource(op, fmt.Errorf("vertex shader: %w", err))
	}
	if p.Fragment, err = b.dev.CreateShaderModule(b.fragCode); err != nil {
		p.Destroy(b.dev)
		return nil, core.Resource(op, fmt.Errorf("fragment shader: %w", err))
	}
	if p.Layout, err = b.dev.CreatePipelineLayout(b.layout); err != nil {
		p.Destroy(b.dev)
		return nil, core.Resource(op, err)
	}

	desc := b.desc
	desc.Vertex, desc.Fragment = p.Vertex, p.Fragment
	desc.Layout = p.Layout
	desc.Samples = gpu.Samples1
	if b.multisample {
		desc.Samples = b.samples
		if desc.Samples == 0 {
			desc.Samples = max(b.dev.Limits().MaxSamples, gpu.Samples1)
		}
	}
	if p.Handle, err = b.dev.CreateGraphicsPipeline(desc); err != nil {
		p.Destroy(b.dev)
		return nil, core.Resource(op, err)
	}
	p.Samples = desc.Samples
	return p, nil
}
