package vulkan

import (
	"unsafe"

	vk "github.com/goki/vulkan"
	"github.com/spaghettifunk/penumbra/engine/renderer/gpu"
)

func memoryRequirements(reqs vk.MemoryRequirements) gpu.MemoryRequirements {
	reqs.Deref()
	return gpu.MemoryRequirements{
		Size:      uint64(reqs.Size),
		Alignment: uint64(reqs.Alignment),
		TypeBits:  reqs.MemoryTypeBits,
	}
}

func (b *Backend) CreateBuffer(desc gpu.BufferDesc) (gpu.Buffer, gpu.MemoryRequirements, error) {
	info := vk.BufferCreateInfo{
		SType:       vk.StructureTypeBufferCreateInfo,
		Size:        vk.DeviceSize(desc.Size),
		Usage:       vk.BufferUsageFlags(desc.Usage),
		SharingMode: vk.SharingModeExclusive,
	}
	var buffer vk.Buffer
	if err := b.locks.SafeCall(BufferManagement, func() error {
		return check(vk.CreateBuffer(b.device(), &info, b.context.Allocator, &buffer), "vkCreateBuffer")
	}); err != nil {
		return 0, gpu.MemoryRequirements{}, err
	}
	var reqs vk.MemoryRequirements
	vk.GetBufferMemoryRequirements(b.device(), buffer, &reqs)
	return gpu.Buffer(b.buffers.add(buffer)), memoryRequirements(reqs), nil
}

func (b *Backend) DestroyBuffer(buffer gpu.Buffer) {
	if vb, ok := b.buffers.take(uint64(buffer)); ok {
		vk.DestroyBuffer(b.device(), vb, b.context.Allocator)
	}
}

func (b *Backend) AllocateMemory(size uint64, typeIndex uint32) (gpu.Memory, error) {
	info := vk.MemoryAllocateInfo{
		SType:           vk.StructureTypeMemoryAllocateInfo,
		AllocationSize:  vk.DeviceSize(size),
		MemoryTypeIndex: typeIndex,
	}
	var mem vk.DeviceMemory
	if err := b.locks.SafeCall(MemoryManagement, func() error {
		return check(vk.AllocateMemory(b.device(), &info, b.context.Allocator, &mem), "vkAllocateMemory")
	}); err != nil {
		return 0, err
	}
	return gpu.Memory(b.memory.add(mem)), nil
}

func (b *Backend) FreeMemory(memory gpu.Memory) {
	if mem, ok := b.memory.take(uint64(memory)); ok {
		vk.FreeMemory(b.device(), mem, b.context.Allocator)
	}
}

func (b *Backend) BindBufferMemory(buffer gpu.Buffer, memory gpu.Memory) error {
	vb, ok := b.buffers.get(uint64(buffer))
	if !ok {
		return unknown("buffer", uint64(buffer))
	}
	mem, ok := b.memory.get(uint64(memory))
	if !ok {
		return unknown("memory", uint64(memory))
	}
	return check(vk.BindBufferMemory(b.device(), vb, mem, 0), "vkBindBufferMemory")
}

// WriteMemory expects host-coherent memory; no flush is issued.
func (b *Backend) WriteMemory(memory gpu.Memory, offset uint64, data []byte) error {
	if len(data) == 0 {
		return nil
	}
	mem, ok := b.memory.get(uint64(memory))
	if !ok {
		return unknown("memory", uint64(memory))
	}
	return b.locks.SafeCall(MemoryManagement, func() error {
		var ptr unsafe.Pointer
		if err := check(vk.MapMemory(b.device(), mem, vk.DeviceSize(offset), vk.DeviceSize(len(data)), 0, &ptr), "vkMapMemory"); err != nil {
			return err
		}
		vk.Memcopy(ptr, data)
		vk.UnmapMemory(b.device(), mem)
		return nil
	})
}
