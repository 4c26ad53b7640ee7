// Package pipeline builds the renderer's graphics pipelines and render
// passes.
package pipeline

import (
	"fmt"

	"github.com/spaghettifunk/penumbra/engine/core"
	"github.com/spaghettifunk/penumbra/engine/renderer/gpu"
)

// Kind selects one of the renderer's fixed pipeline configurations.
type Kind uint8

const (
	Opaque Kind = iota
	Transparent
	Shadow
)

func (k Kind) String() string {
	switch k {
	case Opaque:
		return "opaque"
	case Transparent:
		return "transparent"
	case Shadow:
		return "shadow"
	}
	return fmt.Sprintf("kind(%d)", uint8(k))
}

// Params configures New. RenderPass is adopted when set: Opaque creates the
// main pass if it is null, Transparent requires it, Shadow ignores it and
// creates its own depth-only pass. ShadowExtent sizes the Shadow kind's
// static viewport.
type Params struct {
	Kind             Kind
	VertexShader     []byte
	FragmentShader   []byte
	DescriptorLayout gpu.DescriptorSetLayout
	RenderPass       gpu.RenderPass

	// Zero means the device maximum.
	Samples      gpu.SampleCount
	ColorFormat  gpu.Format
	DepthFormat  gpu.Format
	ShadowExtent gpu.Extent2D
}

type Pipeline struct {
	Kind     Kind
	Handle   gpu.Pipeline
	Layout   gpu.PipelineLayout
	Vertex   gpu.ShaderModule
	Fragment gpu.ShaderModule
	Samples  gpu.SampleCount

	RenderPass     gpu.RenderPass
	OwnsRenderPass bool
}

// New builds the pipeline described by params.
func New(dev gpu.Device, params Params) (*Pipeline, error) {
	const op = "pipeline.New"

	b := NewBuilder(dev).
		Shaders(params.VertexShader, params.FragmentShader).
		VertexInput(VertexBindings(), VertexAttributes()).
		CullMode(gpu.CullBack).
		DepthTest(true, true)

	var (
		rp    gpu.RenderPass
		owned bool
		err   error
	)
	switch params.Kind {
	case Opaque, Transparent:
		if params.Kind == Opaque {
			samples := params.Samples
			if samples == 0 {
				samples = max(dev.Limits().MaxSamples, gpu.Samples1)
			}
			rp, owned, err = MainRenderPass(dev, params.RenderPass, params.ColorFormat, params.DepthFormat, samples)
			if err != nil {
				return nil, err
			}
		} else {
			rp = params.RenderPass
		}
		// blended geometry tests against opaque depth but does not write it
		b.Blending(params.Kind == Transparent).
			DepthTest(true, params.Kind == Opaque).
			PushConstants(gpu.PushConstantRange{
				Stages: gpu.StageVertex | gpu.StageFragment,
				Size:   PushConstantsSize,
			}).
			DescriptorLayouts(params.DescriptorLayout).
			RenderPass(rp)
		if params.Samples != 0 {
			b.Samples(params.Samples)
		}
	case Shadow:
		if rp, err = ShadowRenderPass(dev, params.DepthFormat); err != nil {
			return nil, err
		}
		owned = true
		b.Multisample(false).
			ColorAttachment(false).
			DynamicViewport(false, params.ShadowExtent).
			PushConstants(gpu.PushConstantRange{
				Stages: gpu.StageVertex,
				Size:   ShadowPushConstantsSize,
			}).
			RenderPass(rp)
	default:
		return nil, core.Usage(op, fmt.Errorf("%w: %s", ErrUnknownKind, params.Kind))
	}

	p, err := b.Build()
	if err != nil {
		if owned {
			dev.DestroyRenderPass(rp)
		}
		return nil, err
	}
	p.Kind = params.Kind
	p.OwnsRenderPass = owned
	core.LogDebug("created %s pipeline (%d samples)", p.Kind, p.Samples)
	return p, nil
}

// Bind binds the pipeline and, when set is not null, its descriptor set.
func (p *Pipeline) Bind(dev gpu.Device, cb gpu.CommandBuffer, set gpu.DescriptorSet) {
	dev.CmdBindPipeline(cb, p.Handle)
	if set != 0 {
		dev.CmdBindDescriptorSets(cb, p.Layout, 0, []gpu.DescriptorSet{set})
	}
}

// Push uploads a push constant block through the pipeline's layout.
func (p *Pipeline) Push(dev gpu.Device, cb gpu.CommandBuffer, data []byte) {
	stages := gpu.StageVertex | gpu.StageFragment
	if p.Kind == Shadow {
		stages = gpu.StageVertex
	}
	dev.CmdPushConstants(cb, p.Layout, stages, 0, data)
}

// Destroy releases the pipeline, its layout and shader modules, and the
// render pass when the pipeline created it.
func (p *Pipeline) Destroy(dev gpu.Device) {
	if p.Handle != 0 {
		dev.DestroyPipeline(p.Handle)
		p.Handle = 0
	}
	if p.Layout != 0 {
		dev.DestroyPipelineLayout(p.Layout)
		p.Layout = 0
	}
	if p.Vertex != 0 {
		dev.DestroyShaderModule(p.Vertex)
		p.Vertex = 0
	}
	if p.Fragment != 0 {
		dev.DestroyShaderModule(p.Fragment)
		p.Fragment = 0
	}
	if p.OwnsRenderPass && p.RenderPass != 0 {
		dev.DestroyRenderPass(p.RenderPass)
	}
	p.RenderPass = 0
}
