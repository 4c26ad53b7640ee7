package vulkan

import (
	vk "github.com/goki/vulkan"
	"github.com/spaghettifunk/penumbra/engine/renderer/gpu"
)

func attachmentReferences(refs []gpu.AttachmentRef) []vk.AttachmentReference {
	if len(refs) == 0 {
		return nil
	}
	out := make([]vk.AttachmentReference, len(refs))
	for i, r := range refs {
		out[i] = vk.AttachmentReference{
			Attachment: r.Attachment,
			Layout:     vk.ImageLayout(r.Layout),
		}
	}
	return out
}

// CreateRenderPass builds a single graphics subpass. Stencil is never
// loaded or stored.
func (b *Backend) CreateRenderPass(desc gpu.RenderPassDesc) (gpu.RenderPass, error) {
	attachments := make([]vk.AttachmentDescription, len(desc.Attachments))
	for i, a := range desc.Attachments {
		samples := a.Samples
		if samples == 0 {
			samples = gpu.Samples1
		}
		attachments[i] = vk.AttachmentDescription{
			Format:         vk.Format(a.Format),
			Samples:        vk.SampleCountFlagBits(samples),
			LoadOp:         vk.AttachmentLoadOp(a.LoadOp),
			StoreOp:        vk.AttachmentStoreOp(a.StoreOp),
			StencilLoadOp:  vk.AttachmentLoadOpDontCare,
			StencilStoreOp: vk.AttachmentStoreOpDontCare,
			InitialLayout:  vk.ImageLayout(a.InitialLayout),
			FinalLayout:    vk.ImageLayout(a.FinalLayout),
		}
	}

	subpass := vk.SubpassDescription{
		PipelineBindPoint:    vk.PipelineBindPointGraphics,
		ColorAttachmentCount: uint32(len(desc.Color)),
		PColorAttachments:    attachmentReferences(desc.Color),
		PResolveAttachments:  attachmentReferences(desc.Resolve),
	}
	if desc.Depth != nil {
		subpass.PDepthStencilAttachment = &vk.AttachmentReference{
			Attachment: desc.Depth.Attachment,
			Layout:     vk.ImageLayout(desc.Depth.Layout),
		}
	}

	dependencies := make([]vk.SubpassDependency, len(desc.Dependencies))
	for i, d := range desc.Dependencies {
		dependencies[i] = vk.SubpassDependency{
			SrcSubpass:    d.SrcSubpass,
			DstSubpass:    d.DstSubpass,
			SrcStageMask:  vk.PipelineStageFlags(d.SrcStage),
			DstStageMask:  vk.PipelineStageFlags(d.DstStage),
			SrcAccessMask: vk.AccessFlags(d.SrcAccess),
			DstAccessMask: vk.AccessFlags(d.DstAccess),
		}
	}

	info := vk.RenderPassCreateInfo{
		SType:           vk.StructureTypeRenderPassCreateInfo,
		AttachmentCount: uint32(len(attachments)),
		PAttachments:    attachments,
		SubpassCount:    1,
		PSubpasses:      []vk.SubpassDescription{subpass},
		DependencyCount: uint32(len(dependencies)),
		PDependencies:   dependencies,
	}
	var pass vk.RenderPass
	if err := b.locks.SafeCall(RenderpassManagement, func() error {
		return check(vk.CreateRenderPass(b.device(), &info, b.context.Allocator, &pass), "vkCreateRenderPass")
	}); err != nil {
		return 0, err
	}
	return gpu.RenderPass(b.renderPasses.add(pass)), nil
}

func (b *Backend) DestroyRenderPass(pass gpu.RenderPass) {
	if vp, ok := b.renderPasses.take(uint64(pass)); ok {
		vk.DestroyRenderPass(b.device(), vp, b.context.Allocator)
	}
}

func (b *Backend) CmdBeginRenderPass(cb gpu.CommandBuffer, begin gpu.RenderPassBegin) {
	handle, ok := b.recording(cb)
	if !ok {
		return
	}
	pass, _ := b.renderPasses.get(uint64(begin.RenderPass))
	framebuffer, _ := b.framebuffers.get(uint64(begin.Framebuffer))

	clearValues := make([]vk.ClearValue, len(begin.Clear))
	for i, c := range begin.Clear {
		if c.IsDepth {
			clearValues[i].SetDepthStencil(c.Depth, c.Stencil)
		} else {
			clearValues[i].SetColor(c.Color[:])
		}
	}
	beginInfo := vk.RenderPassBeginInfo{
		SType:       vk.StructureTypeRenderPassBeginInfo,
		RenderPass:  pass,
		Framebuffer: framebuffer,
		RenderArea: vk.Rect2D{
			Offset: vk.Offset2D{X: begin.Area.X, Y: begin.Area.Y},
			Extent: vk.Extent2D{Width: begin.Area.Width, Height: begin.Area.Height},
		},
		ClearValueCount: uint32(len(clearValues)),
		PClearValues:    clearValues,
	}
	vk.CmdBeginRenderPass(handle, &beginInfo, vk.SubpassContentsInline)
}

func (b *Backend) CmdEndRenderPass(cb gpu.CommandBuffer) {
	if handle, ok := b.recording(cb); ok {
		vk.CmdEndRenderPass(handle)
	}
}
