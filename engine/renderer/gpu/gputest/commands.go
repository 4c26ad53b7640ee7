package gputest

import (
	"github.com/spaghettifunk/penumbra/engine/renderer/gpu"
)

func (d *Device) record(c Command) {
	d.mu.Lock()
	defer d.mu.Unlock()
	state, ok := d.commandBuffers[c.CB]
	if !ok || !state.recording {
		d.misuse("%s: command buffer %d is not recording", c.Op, c.CB)
	}
	d.Commands = append(d.Commands, c)
}

func (d *Device) CmdBeginRenderPass(cb gpu.CommandBuffer, begin gpu.RenderPassBegin) {
	d.record(Command{Op: OpBeginRenderPass, CB: cb, Begin: begin})
}

func (d *Device) CmdEndRenderPass(cb gpu.CommandBuffer) {
	d.record(Command{Op: OpEndRenderPass, CB: cb})
}

func (d *Device) CmdBindPipeline(cb gpu.CommandBuffer, pipeline gpu.Pipeline) {
	d.record(Command{Op: OpBindPipeline, CB: cb, Pipeline: pipeline})
}

func (d *Device) CmdBindDescriptorSets(cb gpu.CommandBuffer, layout gpu.PipelineLayout, firstSet uint32, sets []gpu.DescriptorSet) {
	d.record(Command{Op: OpBindDescriptorSets, CB: cb, Layout: layout, Sets: append([]gpu.DescriptorSet(nil), sets...)})
}

func (d *Device) CmdSetViewport(cb gpu.CommandBuffer, viewport gpu.Viewport) {
	d.record(Command{Op: OpSetViewport, CB: cb, Viewport: viewport})
}

func (d *Device) CmdSetScissor(cb gpu.CommandBuffer, scissor gpu.Rect2D) {
	d.record(Command{Op: OpSetScissor, CB: cb, Scissor: scissor})
}

func (d *Device) CmdBindVertexBuffer(cb gpu.CommandBuffer, buffer gpu.Buffer, offset uint64) {
	d.record(Command{Op: OpBindVertexBuffer, CB: cb, Buffer: buffer})
}

func (d *Device) CmdBindIndexBuffer(cb gpu.CommandBuffer, buffer gpu.Buffer, offset uint64) {
	d.record(Command{Op: OpBindIndexBuffer, CB: cb, Buffer: buffer})
}

func (d *Device) CmdPushConstants(cb gpu.CommandBuffer, layout gpu.PipelineLayout, stages gpu.ShaderStage, offset uint32, data []byte) {
	d.record(Command{Op: OpPushConstants, CB: cb, Layout: layout, Stages: stages, Data: append([]byte(nil), data...)})
}

func (d *Device) CmdDrawIndexed(cb gpu.CommandBuffer, indexCount, instanceCount, firstIndex uint32, vertexOffset int32, firstInstance uint32) {
	d.record(Command{Op: OpDrawIndexed, CB: cb, IndexCount: indexCount})
}

func (d *Device) CmdPipelineBarrier(cb gpu.CommandBuffer, src, dst gpu.PipelineStage, barriers []gpu.ImageBarrier) {
	d.record(Command{Op: OpPipelineBarrier, CB: cb, SrcStage: src, DstStage: dst, Barriers: append([]gpu.ImageBarrier(nil), barriers...)})
}

func (d *Device) CmdCopyBufferToImage(cb gpu.CommandBuffer, src gpu.Buffer, dst gpu.Image, region gpu.BufferImageCopy) {
	d.record(Command{Op: OpCopyBufferToImage, CB: cb, Buffer: src, Image: dst, Copy: region})
}

// Ops returns the op names of every recorded command, optionally limited to
// the given command buffer.
func (d *Device) Ops(cb ...gpu.CommandBuffer) []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	var out []string
	for _, c := range d.Commands {
		if len(cb) > 0 && c.CB != cb[0] {
			continue
		}
		out = append(out, c.Op)
	}
	return out
}

// Filter returns the recorded commands with the given op.
func (d *Device) Filter(op string) []Command {
	d.mu.Lock()
	defer d.mu.Unlock()
	var out []Command
	for _, c := range d.Commands {
		if c.Op == op {
			out = append(out, c)
		}
	}
	return out
}

func (d *Device) Count(op string) int {
	return len(d.Filter(op))
}

// ResetLog drops recorded commands, submits and presents.
func (d *Device) ResetLog() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.Commands = nil
	d.Submits = nil
	d.Presents = nil
	d.DescriptorWrites = nil
}

// ---------------------------------------------------------------------
// inspection
// ---------------------------------------------------------------------

func (d *Device) LiveBuffers() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.buffers)
}

func (d *Device) LiveImages() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.images)
}

func (d *Device) LiveMemory() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.memories)
}

func (d *Device) LiveImageViews() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.views)
}

func (d *Device) LiveFramebuffers() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.framebuffers)
}

func (d *Device) LivePipelines() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.pipelines)
}

// LiveObjects counts every object not yet destroyed, swapchain views
// included.
func (d *Device) LiveObjects() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.buffers) + len(d.memories) + len(d.images) + len(d.views) +
		len(d.samplers) + len(d.setLayouts) + len(d.pools) + len(d.modules) +
		len(d.layouts) + len(d.renderPasses) + len(d.pipelines) +
		len(d.framebuffers) + len(d.commandBuffers) + len(d.fences) +
		len(d.semaphores) + len(d.swapchains)
}

// BufferBytes returns a copy of the memory bound to b.
func (d *Device) BufferBytes(b gpu.Buffer) []byte {
	d.mu.Lock()
	defer d.mu.Unlock()
	buf, ok := d.buffers[b]
	if !ok {
		return nil
	}
	return append([]byte(nil), d.memories[buf.memory]...)
}

func (d *Device) MemoryBytes(m gpu.Memory) []byte {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]byte(nil), d.memories[m]...)
}

func (d *Device) BufferDesc(b gpu.Buffer) (gpu.BufferDesc, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	buf, ok := d.buffers[b]
	if !ok {
		return gpu.BufferDesc{}, false
	}
	return buf.desc, true
}

func (d *Device) ImageDesc(i gpu.Image) (gpu.ImageDesc, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	img, ok := d.images[i]
	if !ok {
		return gpu.ImageDesc{}, false
	}
	return img.desc, true
}

func (d *Device) ImageViewDesc(v gpu.ImageView) (gpu.ImageViewDesc, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	desc, ok := d.views[v]
	return desc, ok
}

func (d *Device) SamplerDesc(s gpu.Sampler) (gpu.SamplerDesc, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	desc, ok := d.samplers[s]
	return desc, ok
}

func (d *Device) SetLayoutBindings(l gpu.DescriptorSetLayout) []gpu.DescriptorBinding {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.setLayouts[l]
}

func (d *Device) DescriptorPoolInfo(p gpu.DescriptorPool) (PoolInfo, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	info, ok := d.pools[p]
	return info, ok
}

func (d *Device) PipelineLayoutDesc(l gpu.PipelineLayout) (gpu.PipelineLayoutDesc, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	desc, ok := d.layouts[l]
	return desc, ok
}

func (d *Device) RenderPassDesc(rp gpu.RenderPass) (gpu.RenderPassDesc, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	desc, ok := d.renderPasses[rp]
	return desc, ok
}

func (d *Device) PipelineDesc(p gpu.Pipeline) (gpu.GraphicsPipelineDesc, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	desc, ok := d.pipelines[p]
	return desc, ok
}

func (d *Device) FramebufferDesc(f gpu.Framebuffer) (gpu.FramebufferDesc, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	desc, ok := d.framebuffers[f]
	return desc, ok
}

func (d *Device) Framebuffers() []gpu.FramebufferDesc {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]gpu.FramebufferDesc, 0, len(d.framebuffers))
	for _, f := range d.framebuffers {
		out = append(out, f)
	}
	return out
}

var _ gpu.Device = (*Device)(nil)
