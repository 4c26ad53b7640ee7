package vulkan

import (
	vk "github.com/goki/vulkan"
	"github.com/spaghettifunk/penumbra/engine/renderer/gpu"
)

func (b *Backend) CreateFramebuffer(desc gpu.FramebufferDesc) (gpu.Framebuffer, error) {
	pass, ok := b.renderPasses.get(uint64(desc.RenderPass))
	if !ok {
		return 0, unknown("render pass", uint64(desc.RenderPass))
	}
	attachments := make([]vk.ImageView, len(desc.Attachments))
	for i, a := range desc.Attachments {
		view, ok := b.views.get(uint64(a))
		if !ok {
			return 0, unknown("image view", uint64(a))
		}
		attachments[i] = view
	}
	info := vk.FramebufferCreateInfo{
		SType:           vk.StructureTypeFramebufferCreateInfo,
		RenderPass:      pass,
		AttachmentCount: uint32(len(attachments)),
		PAttachments:    attachments,
		Width:           desc.Width,
		Height:          desc.Height,
		Layers:          max(desc.Layers, 1),
	}
	var framebuffer vk.Framebuffer
	if err := b.locks.SafeCall(RenderpassManagement, func() error {
		return check(vk.CreateFramebuffer(b.device(), &info, b.context.Allocator, &framebuffer), "vkCreateFramebuffer")
	}); err != nil {
		return 0, err
	}
	return gpu.Framebuffer(b.framebuffers.add(framebuffer)), nil
}

func (b *Backend) DestroyFramebuffer(framebuffer gpu.Framebuffer) {
	if vf, ok := b.framebuffers.take(uint64(framebuffer)); ok {
		vk.DestroyFramebuffer(b.device(), vf, b.context.Allocator)
	}
}
