package pipeline

import (
	"github.com/spaghettifunk/penumbra/engine/core"
	"github.com/spaghettifunk/penumbra/engine/renderer/gpu"
)

// MainRenderPassDesc is the forward pass. Multisampled, it renders into an
// MSAA color target and depth and resolves into a single-sample attachment
// that is presented. With one sample the color attachment is presented
// directly and there is no resolve.
func MainRenderPassDesc(colorFormat, depthFormat gpu.Format, samples gpu.SampleCount) gpu.RenderPassDesc {
	samples = max(samples, gpu.Samples1)
	color := gpu.AttachmentDesc{
		Format:        colorFormat,
		Samples:       samples,
		LoadOp:        gpu.LoadOpClear,
		StoreOp:       gpu.StoreOpStore,
		InitialLayout: gpu.LayoutUndefined,
		FinalLayout:   gpu.LayoutColorAttachment,
	}
	depth := gpu.AttachmentDesc{
		Format:        depthFormat,
		Samples:       samples,
		LoadOp:        gpu.LoadOpClear,
		StoreOp:       gpu.StoreOpDontCare,
		InitialLayout: gpu.LayoutUndefined,
		FinalLayout:   gpu.LayoutDepthStencilAttachment,
	}
	desc := gpu.RenderPassDesc{
		Color: []gpu.AttachmentRef{{Attachment: 0, Layout: gpu.LayoutColorAttachment}},
		Depth: &gpu.AttachmentRef{Attachment: 1, Layout: gpu.LayoutDepthStencilAttachment},
		Dependencies: []gpu.SubpassDependency{{
			SrcSubpass: gpu.SubpassExternal,
			DstSubpass: 0,
			SrcStage:   gpu.StageColorAttachmentOutput | gpu.StageEarlyFragmentTests,
			DstStage:   gpu.StageColorAttachmentOutput | gpu.StageEarlyFragmentTests,
			SrcAccess:  gpu.AccessNone,
			DstAccess:  gpu.AccessColorAttachmentWrite | gpu.AccessDepthStencilAttachmentWrite,
		}},
	}
	if samples == gpu.Samples1 {
		color.FinalLayout = gpu.LayoutPresentSrc
		desc.Attachments = []gpu.AttachmentDesc{color, depth}
		return desc
	}
	resolve := gpu.AttachmentDesc{
		Format:        colorFormat,
		Samples:       gpu.Samples1,
		LoadOp:        gpu.LoadOpDontCare,
		StoreOp:       gpu.StoreOpStore,
		InitialLayout: gpu.LayoutUndefined,
		FinalLayout:   gpu.LayoutPresentSrc,
	}
	desc.Attachments = []gpu.AttachmentDesc{color, depth, resolve}
	desc.Resolve = []gpu.AttachmentRef{{Attachment: 2, Layout: gpu.LayoutColorAttachment}}
	return desc
}

// ShadowRenderPassDesc renders depth only and leaves it ready for sampling.
func ShadowRenderPassDesc(depthFormat gpu.Format) gpu.RenderPassDesc {
	return gpu.RenderPassDesc{
		Attachments: []gpu.AttachmentDesc{{
			Format:        depthFormat,
			Samples:       gpu.Samples1,
			LoadOp:        gpu.LoadOpClear,
			StoreOp:       gpu.StoreOpStore,
			InitialLayout: gpu.LayoutUndefined,
			FinalLayout:   gpu.LayoutShaderReadOnly,
		}},
		Depth: &gpu.AttachmentRef{Attachment: 0, Layout: gpu.LayoutDepthStencilAttachment},
		Dependencies: []gpu.SubpassDependency{
			{
				SrcSubpass: gpu.SubpassExternal,
				DstSubpass: 0,
				SrcStage:   gpu.StageFragmentShader,
				DstStage:   gpu.StageEarlyFragmentTests,
				SrcAccess:  gpu.AccessShaderRead,
				DstAccess:  gpu.AccessDepthStencilAttachmentWrite,
			},
			{
				SrcSubpass: 0,
				DstSubpass: gpu.SubpassExternal,
				SrcStage:   gpu.StageLateFragmentTests,
				DstStage:   gpu.StageFragmentShader,
				SrcAccess:  gpu.AccessDepthStencilAttachmentWrite,
				DstAccess:  gpu.AccessShaderRead,
			},
		},
	}
}

// MainRenderPass adopts existing when it is not null, otherwise it creates
// the main pass. owned reports whether the caller must destroy it.
func MainRenderPass(dev gpu.Device, existing gpu.RenderPass, colorFormat, depthFormat gpu.Format, samples gpu.SampleCount) (rp gpu.RenderPass, owned bool, err error) {
	if existing != gpu.NullRenderPass {
		return existing, false, nil
	}
	rp, err = dev.CreateRenderPass(MainRenderPassDesc(colorFormat, depthFormat, samples))
	if err != nil {
		return 0, false, core.Resource("pipeline.MainRenderPass", err)
	}
	return rp, true, nil
}

func ShadowRenderPass(dev gpu.Device, depthFormat gpu.Format) (gpu.RenderPass, error) {
	rp, err := dev.CreateRenderPass(ShadowRenderPassDesc(depthFormat))
	if err != nil {
		return 0, core.Resource("pipeline.ShadowRenderPass", err)
	}
	return rp, nil
}
