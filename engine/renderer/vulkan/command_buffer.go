package vulkan

import (
	"fmt"
	"unsafe"

	vk "github.com/goki/vulkan"
	"github.com/spaghettifunk/penumbra/engine/core"
	"github.com/spaghettifunk/penumbra/engine/renderer/gpu"
)

type VulkanCommandBufferState int

const (
	COMMAND_BUFFER_STATE_READY VulkanCommandBufferState = iota
	COMMAND_BUFFER_STATE_RECORDING
	COMMAND_BUFFER_STATE_RECORDING_ENDED
)

type VulkanCommandBuffer struct {
	Handle vk.CommandBuffer
	State  VulkanCommandBufferState
}

func (b *Backend) AllocateCommandBuffers(count uint32) ([]gpu.CommandBuffer, error) {
	info := vk.CommandBufferAllocateInfo{
		SType:              vk.StructureTypeCommandBufferAllocateInfo,
		CommandPool:        b.context.Device.GraphicsCommandPool,
		Level:              vk.CommandBufferLevelPrimary,
		CommandBufferCount: count,
	}
	handles := make([]vk.CommandBuffer, count)
	if err := b.locks.SafeCall(CommandBufferManagement, func() error {
		return check(vk.AllocateCommandBuffers(b.device(), &info, handles), "vkAllocateCommandBuffers")
	}); err != nil {
		return nil, err
	}
	out := make([]gpu.CommandBuffer, count)
	for i, h := range handles {
		out[i] = gpu.CommandBuffer(b.commandBuffers.add(&VulkanCommandBuffer{Handle: h}))
	}
	return out, nil
}

func (b *Backend) FreeCommandBuffers(buffers ...gpu.CommandBuffer) {
	handles := make([]vk.CommandBuffer, 0, len(buffers))
	for _, cb := range buffers {
		if v, ok := b.commandBuffers.take(uint64(cb)); ok {
			handles = append(handles, v.Handle)
		}
	}
	if len(handles) == 0 {
		return
	}
	_ = b.locks.SafeCall(CommandBufferManagement, func() error {
		vk.FreeCommandBuffers(b.device(), b.context.Device.GraphicsCommandPool, uint32(len(handles)), handles)
		return nil
	})
}

func (b *Backend) BeginCommandBuffer(cb gpu.CommandBuffer, oneTimeSubmit bool) error {
	v, ok := b.commandBuffers.get(uint64(cb))
	if !ok {
		return unknown("command buffer", uint64(cb))
	}
	if v.State == COMMAND_BUFFER_STATE_RECORDING {
		return fmt.Errorf("command buffer %d is already recording", cb)
	}
	beginInfo := vk.CommandBufferBeginInfo{
		SType: vk.StructureTypeCommandBufferBeginInfo,
	}
	if oneTimeSubmit {
		beginInfo.Flags |= vk.CommandBufferUsageFlags(vk.CommandBufferUsageOneTimeSubmitBit)
	}
	if err := check(vk.BeginCommandBuffer(v.Handle, &beginInfo), "vkBeginCommandBuffer"); err != nil {
		return err
	}
	v.State = COMMAND_BUFFER_STATE_RECORDING
	return nil
}

func (b *Backend) EndCommandBuffer(cb gpu.CommandBuffer) error {
	v, ok := b.commandBuffers.get(uint64(cb))
	if !ok {
		return unknown("command buffer", uint64(cb))
	}
	if err := check(vk.EndCommandBuffer(v.Handle), "vkEndCommandBuffer"); err != nil {
		return err
	}
	v.State = COMMAND_BUFFER_STATE_RECORDING_ENDED
	return nil
}

func (b *Backend) ResetCommandBuffer(cb gpu.CommandBuffer) error {
	v, ok := b.commandBuffers.get(uint64(cb))
	if !ok {
		return unknown("command buffer", uint64(cb))
	}
	if err := check(vk.ResetCommandBuffer(v.Handle, 0), "vkResetCommandBuffer"); err != nil {
		return err
	}
	v.State = COMMAND_BUFFER_STATE_READY
	return nil
}

// recording resolves cb for a Cmd* call. Calls on buffers that are not
// recording are dropped with a warning.
func (b *Backend) recording(cb gpu.CommandBuffer) (vk.CommandBuffer, bool) {
	v, ok := b.commandBuffers.get(uint64(cb))
	if !ok || v.State != COMMAND_BUFFER_STATE_RECORDING {
		core.LogWarn("vulkan: command recorded into command buffer %d outside Begin/End", cb)
		return nil, false
	}
	return v.Handle, true
}

func (b *Backend) CmdBindPipeline(cb gpu.CommandBuffer, pipeline gpu.Pipeline) {
	handle, ok := b.recording(cb)
	if !ok {
		return
	}
	vp, _ := b.pipelines.get(uint64(pipeline))
	vk.CmdBindPipeline(handle, vk.PipelineBindPointGraphics, vp)
}

func (b *Backend) CmdBindDescriptorSets(cb gpu.CommandBuffer, layout gpu.PipelineLayout, firstSet uint32, sets []gpu.DescriptorSet) {
	handle, ok := b.recording(cb)
	if !ok || len(sets) == 0 {
		return
	}
	vl, _ := b.pipelineLayouts.get(uint64(layout))
	vkSets := make([]vk.DescriptorSet, len(sets))
	for i, s := range sets {
		ds, _ := b.descriptorSets.get(uint64(s))
		vkSets[i] = ds.set
	}
	vk.CmdBindDescriptorSets(handle, vk.PipelineBindPointGraphics, vl, firstSet, uint32(len(vkSets)), vkSets, 0, nil)
}

func (b *Backend) CmdSetViewport(cb gpu.CommandBuffer, viewport gpu.Viewport) {
	if handle, ok := b.recording(cb); ok {
		vk.CmdSetViewport(handle, 0, 1, []vk.Viewport{{
			X:        viewport.X,
			Y:        viewport.Y,
			Width:    viewport.Width,
			Height:   viewport.Height,
			MinDepth: viewport.MinDepth,
			MaxDepth: viewport.MaxDepth,
		}})
	}
}

func (b *Backend) CmdSetScissor(cb gpu.CommandBuffer, scissor gpu.Rect2D) {
	if handle, ok := b.recording(cb); ok {
		vk.CmdSetScissor(handle, 0, 1, []vk.Rect2D{{
			Offset: vk.Offset2D{X: scissor.X, Y: scissor.Y},
			Extent: vk.Extent2D{Width: scissor.Width, Height: scissor.Height},
		}})
	}
}

func (b *Backend) CmdBindVertexBuffer(cb gpu.CommandBuffer, buffer gpu.Buffer, offset uint64) {
	handle, ok := b.recording(cb)
	if !ok {
		return
	}
	vb, _ := b.buffers.get(uint64(buffer))
	vk.CmdBindVertexBuffers(handle, 0, 1, []vk.Buffer{vb}, []vk.DeviceSize{vk.DeviceSize(offset)})
}

func (b *Backend) CmdBindIndexBuffer(cb gpu.CommandBuffer, buffer gpu.Buffer, offset uint64) {
	handle, ok := b.recording(cb)
	if !ok {
		return
	}
	vb, _ := b.buffers.get(uint64(buffer))
	vk.CmdBindIndexBuffer(handle, vb, vk.DeviceSize(offset), vk.IndexTypeUint32)
}

func (b *Backend) CmdPushConstants(cb gpu.CommandBuffer, layout gpu.PipelineLayout, stages gpu.ShaderStage, offset uint32, data []byte) {
	handle, ok := b.recording(cb)
	if !ok || len(data) == 0 {
		return
	}
	vl, _ := b.pipelineLayouts.get(uint64(layout))
	vk.CmdPushConstants(handle, vl, vk.ShaderStageFlags(stages), offset, uint32(len(data)), unsafe.Pointer(&data[0]))
}

func (b *Backend) CmdDrawIndexed(cb gpu.CommandBuffer, indexCount, instanceCount, firstIndex uint32, vertexOffset int32, firstInstance uint32) {
	if handle, ok := b.recording(cb); ok {
		vk.CmdDrawIndexed(handle, indexCount, instanceCount, firstIndex, vertexOffset, firstInstance)
	}
}

func (b *Backend) CmdPipelineBarrier(cb gpu.CommandBuffer, src, dst gpu.PipelineStage, barriers []gpu.ImageBarrier) {
	handle, ok := b.recording(cb)
	if !ok || len(barriers) == 0 {
		return
	}
	vkBarriers := make([]vk.ImageMemoryBarrier, len(barriers))
	for i, barrier := range barriers {
		image, _ := b.images.get(uint64(barrier.Image))
		vkBarriers[i] = vk.ImageMemoryBarrier{
			SType:               vk.StructureTypeImageMemoryBarrier,
			SrcAccessMask:       vk.AccessFlags(barrier.SrcAccess),
			DstAccessMask:       vk.AccessFlags(barrier.DstAccess),
			OldLayout:           vk.ImageLayout(barrier.OldLayout),
			NewLayout:           vk.ImageLayout(barrier.NewLayout),
			SrcQueueFamilyIndex: vk.QueueFamilyIgnored,
			DstQueueFamilyIndex: vk.QueueFamilyIgnored,
			Image:               image,
			SubresourceRange: vk.ImageSubresourceRange{
				AspectMask:     vk.ImageAspectFlags(barrier.Aspect),
				BaseMipLevel:   0,
				LevelCount:     1,
				BaseArrayLayer: barrier.BaseLayer,
				LayerCount:     max(barrier.LayerCount, 1),
			},
		}
	}
	vk.CmdPipelineBarrier(handle, vk.PipelineStageFlags(src), vk.PipelineStageFlags(dst), 0,
		0, nil, 0, nil, uint32(len(vkBarriers)), vkBarriers)
}

// CmdCopyBufferToImage expects dst in TRANSFER_DST layout.
func (b *Backend) CmdCopyBufferToImage(cb gpu.CommandBuffer, src gpu.Buffer, dst gpu.Image, region gpu.BufferImageCopy) {
	handle, ok := b.recording(cb)
	if !ok {
		return
	}
	buffer, _ := b.buffers.get(uint64(src))
	image, _ := b.images.get(uint64(dst))
	vk.CmdCopyBufferToImage(handle, buffer, image, vk.ImageLayoutTransferDstOptimal, 1, []vk.BufferImageCopy{{
		BufferOffset: vk.DeviceSize(region.BufferOffset),
		ImageSubresource: vk.ImageSubresourceLayers{
			AspectMask:     vk.ImageAspectFlags(region.Aspect),
			MipLevel:       0,
			BaseArrayLayer: region.Layer,
			LayerCount:     1,
		},
		ImageExtent: vk.Extent3D{Width: region.Width, Height: region.Height, Depth: 1},
	}})
}
