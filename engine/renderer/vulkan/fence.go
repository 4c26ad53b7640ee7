package vulkan

import (
	"errors"

	vk "github.com/goki/vulkan"
	"github.com/spaghettifunk/penumbra/engine/core"
	"github.com/spaghettifunk/penumbra/engine/renderer/gpu"
)

var ErrFenceTimeout = errors.New("fence wait timed out")

func (b *Backend) CreateFence(signaled bool) (gpu.Fence, error) {
	info := vk.FenceCreateInfo{
		SType: vk.StructureTypeFenceCreateInfo,
	}
	if signaled {
		info.Flags = vk.FenceCreateFlags(vk.FenceCreateSignaledBit)
	}
	var fence vk.Fence
	if err := b.locks.SafeCall(SynchronizationManagement, func() error {
		return check(vk.CreateFence(b.device(), &info, b.context.Allocator, &fence), "vkCreateFence")
	}); err != nil {
		return 0, err
	}
	return gpu.Fence(b.fences.add(fence)), nil
}

func (b *Backend) DestroyFence(fence gpu.Fence) {
	if vf, ok := b.fences.take(uint64(fence)); ok {
		vk.DestroyFence(b.device(), vf, b.context.Allocator)
	}
}

func (b *Backend) WaitFence(fence gpu.Fence, timeoutNs uint64) error {
	vf, ok := b.fences.get(uint64(fence))
	if !ok {
		return unknown("fence", uint64(fence))
	}
	switch result := vk.WaitForFences(b.device(), 1, []vk.Fence{vf}, vk.True, timeoutNs); result {
	case vk.Success:
		return nil
	case vk.Timeout:
		core.LogWarn("vulkan: fence %d wait timed out", fence)
		return ErrFenceTimeout
	default:
		return check(result, "vkWaitForFences")
	}
}

func (b *Backend) ResetFence(fence gpu.Fence) error {
	vf, ok := b.fences.get(uint64(fence))
	if !ok {
		return unknown("fence", uint64(fence))
	}
	return check(vk.ResetFences(b.device(), 1, []vk.Fence{vf}), "vkResetFences")
}

func (b *Backend) CreateSemaphore() (gpu.Semaphore, error) {
	info := vk.SemaphoreCreateInfo{
		SType: vk.StructureTypeSemaphoreCreateInfo,
	}
	var sem vk.Semaphore
	if err := b.locks.SafeCall(SynchronizationManagement, func() error {
		return check(vk.CreateSemaphore(b.device(), &info, b.context.Allocator, &sem), "vkCreateSemaphore")
	}); err != nil {
		return 0, err
	}
	return gpu.Semaphore(b.semaphores.add(sem)), nil
}

func (b *Backend) DestroySemaphore(semaphore gpu.Semaphore) {
	if vs, ok := b.semaphores.take(uint64(semaphore)); ok {
		vk.DestroySemaphore(b.device(), vs, b.context.Allocator)
	}
}
