// Package vulkan implements gpu.Device on top of goki/vulkan.
package vulkan

import (
	"errors"
	"fmt"

	vk "github.com/goki/vulkan"
	"github.com/spaghettifunk/penumbra/engine/core"
	"github.com/spaghettifunk/penumbra/engine/renderer/gpu"
)

var ErrUnknownHandle = errors.New("unknown handle")

type descriptorSet struct {
	set  vk.DescriptorSet
	pool uint64
}

type swapchain struct {
	handle vk.Swapchain
	images []vk.Image
	views  []gpu.ImageView
}

// Backend is the Vulkan gpu.Device. It owns the instance, the surface and
// the logical device; every object it creates is reached through a
// registry keyed by the handle returned to the caller.
type Backend struct {
	context *VulkanContext
	locks   *VulkanLockPool

	buffers         *registry[vk.Buffer]
	memory          *registry[vk.DeviceMemory]
	images          *registry[vk.Image]
	views           *registry[vk.ImageView]
	samplers        *registry[vk.Sampler]
	setLayouts      *registry[vk.DescriptorSetLayout]
	descriptorPools *registry[vk.DescriptorPool]
	descriptorSets  *registry[descriptorSet]
	shaders         *registry[vk.ShaderModule]
	pipelineLayouts *registry[vk.PipelineLayout]
	renderPasses    *registry[vk.RenderPass]
	pipelines       *registry[vk.Pipeline]
	framebuffers    *registry[vk.Framebuffer]
	commandBuffers  *registry[*VulkanCommandBuffer]
	fences          *registry[vk.Fence]
	semaphores      *registry[vk.Semaphore]
	swapchains      *registry[*swapchain]
}

var _ gpu.Device = (*Backend)(nil)

// New loads Vulkan, creates the instance and a surface for window, then
// selects a physical device and creates the logical device. glfw must be
// initialized first.
func New(window Window, cfg Config) (*Backend, error) {
	const op = "vulkan.New"
	if err := loadLoader(); err != nil {
		return nil, core.Initialization(op, err)
	}

	ctx := &VulkanContext{}
	if err := createInstance(ctx, window, cfg); err != nil {
		return nil, core.Initialization(op, err)
	}
	if err := createSurface(ctx, window); err != nil {
		destroyInstance(ctx)
		return nil, core.Initialization(op, err)
	}
	if err := DeviceCreate(ctx, cfg); err != nil {
		destroyInstance(ctx)
		return nil, core.Initialization(op, err)
	}
	if !DeviceDetectDepthFormat(ctx.Device) {
		DeviceDestroy(ctx)
		destroyInstance(ctx)
		return nil, core.Initialization(op, errors.New("no supported depth format"))
	}
	DeviceDetectMaxSamples(ctx.Device)
	core.LogInfo("Vulkan device ready: %s", describeDevice(ctx.Device))

	locks := NewVulkanLockPool()
	locks.SetQueueFamily(uint32(ctx.Device.GraphicsQueueIndex))
	locks.SetQueueFamily(uint32(ctx.Device.PresentQueueIndex))

	return &Backend{
		context:         ctx,
		locks:           locks,
		buffers:         newRegistry[vk.Buffer](locks, BufferManagement),
		memory:          newRegistry[vk.DeviceMemory](locks, MemoryManagement),
		images:          newRegistry[vk.Image](locks, ImageManagement),
		views:           newRegistry[vk.ImageView](locks, ImageManagement),
		samplers:        newRegistry[vk.Sampler](locks, SamplerManagement),
		setLayouts:      newRegistry[vk.DescriptorSetLayout](locks, DescriptorManagement),
		descriptorPools: newRegistry[vk.DescriptorPool](locks, DescriptorManagement),
		descriptorSets:  newRegistry[descriptorSet](locks, ResourceManagement),
		shaders:         newRegistry[vk.ShaderModule](locks, ShaderManagement),
		pipelineLayouts: newRegistry[vk.PipelineLayout](locks, PipelineManagement),
		renderPasses:    newRegistry[vk.RenderPass](locks, RenderpassManagement),
		pipelines:       newRegistry[vk.Pipeline](locks, PipelineManagement),
		framebuffers:    newRegistry[vk.Framebuffer](locks, RenderpassManagement),
		commandBuffers:  newRegistry[*VulkanCommandBuffer](locks, CommandBufferManagement),
		fences:          newRegistry[vk.Fence](locks, SynchronizationManagement),
		semaphores:      newRegistry[vk.Semaphore](locks, SynchronizationManagement),
		swapchains:      newRegistry[*swapchain](locks, SwapchainManagement),
	}, nil
}

func (b *Backend) device() vk.Device { return b.context.Device.LogicalDevice }

func unknown(kind string, h uint64) error {
	return fmt.Errorf("%w: %s %d", ErrUnknownHandle, kind, h)
}

func (b *Backend) Limits() gpu.Limits {
	limits := b.context.Device.Properties.Limits
	limits.Deref()
	return gpu.Limits{
		MaxSamplerAnisotropy: limits.MaxSamplerAnisotropy,
		MaxSamples:           gpu.SampleCount(b.context.Device.MaxSamples),
		DepthFormat:          gpu.Format(b.context.Device.DepthFormat),
	}
}

func (b *Backend) MemoryTypes() []gpu.MemoryType {
	mem := b.context.Device.Memory
	out := make([]gpu.MemoryType, 0, mem.MemoryTypeCount)
	for i := uint32(0); i < mem.MemoryTypeCount; i++ {
		t := mem.MemoryTypes[i]
		t.Deref()
		out = append(out, gpu.MemoryType{
			HeapIndex:  t.HeapIndex,
			Properties: gpu.MemoryProperty(t.PropertyFlags),
		})
	}
	return out
}

func (b *Backend) Submit(info gpu.SubmitInfo) error {
	cb, ok := b.commandBuffers.get(uint64(info.CommandBuffer))
	if !ok {
		return unknown("command buffer", uint64(info.CommandBuffer))
	}
	submit := vk.SubmitInfo{
		SType:              vk.StructureTypeSubmitInfo,
		CommandBufferCount: 1,
		PCommandBuffers:    []vk.CommandBuffer{cb},
	}
	if info.Wait != gpu.NullSemaphore {
		sem, ok := b.semaphores.get(uint64(info.Wait))
		if !ok {
			return unknown("semaphore", uint64(info.Wait))
		}
		submit.WaitSemaphoreCount = 1
		submit.PWaitSemaphores = []vk.Semaphore{sem}
		submit.PWaitDstStageMask = []vk.PipelineStageFlags{vk.PipelineStageFlags(info.WaitStage)}
	}
	if info.Signal != gpu.NullSemaphore {
		sem, ok := b.semaphores.get(uint64(info.Signal))
		if !ok {
			return unknown("semaphore", uint64(info.Signal))
		}
		submit.SignalSemaphoreCount = 1
		submit.PSignalSemaphores = []vk.Semaphore{sem}
	}
	fence := vk.NullFence
	if info.Fence != gpu.NullFence {
		f, ok := b.fences.get(uint64(info.Fence))
		if !ok {
			return unknown("fence", uint64(info.Fence))
		}
		fence = f
	}

	d := b.context.Device
	return b.locks.SafeQueueCall(uint32(d.GraphicsQueueIndex), func() error {
		return check(vk.QueueSubmit(d.GraphicsQueue, 1, []vk.SubmitInfo{submit}, fence), "vkQueueSubmit")
	})
}

func (b *Backend) QueueWaitIdle() error {
	d := b.context.Device
	return b.locks.SafeQueueCall(uint32(d.GraphicsQueueIndex), func() error {
		return check(vk.QueueWaitIdle(d.GraphicsQueue), "vkQueueWaitIdle")
	})
}

func (b *Backend) WaitIdle() error {
	return check(vk.DeviceWaitIdle(b.device()), "vkDeviceWaitIdle")
}

// Destroy tears down the device and instance. Objects the caller failed
// to release are reported, not destroyed.
func (b *Backend) Destroy() {
	if b.context.Device == nil || b.device() == nil {
		return
	}
	_ = b.WaitIdle()

	leaks := map[string]int{
		"buffers":          b.buffers.len(),
		"memory":           b.memory.len(),
		"images":           b.images.len(),
		"image views":      b.views.len(),
		"samplers":         b.samplers.len(),
		"set layouts":      b.setLayouts.len(),
		"descriptor pools": b.descriptorPools.len(),
		"shader modules":   b.shaders.len(),
		"pipeline layouts": b.pipelineLayouts.len(),
		"render passes":    b.renderPasses.len(),
		"pipelines":        b.pipelines.len(),
		"framebuffers":     b.framebuffers.len(),
		"fences":           b.fences.len(),
		"semaphores":       b.semaphores.len(),
		"swapchains":       b.swapchains.len(),
	}
	for kind, n := range leaks {
		if n > 0 {
			core.LogWarn("vulkan: %d %s still alive at shutdown", n, kind)
		}
	}

	DeviceDestroy(b.context)
	destroyInstance(b.context)
	core.LogInfo("Vulkan backend destroyed.")
}
