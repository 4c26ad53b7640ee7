package vulkan

import (
	"unsafe"

	vk "github.com/goki/vulkan"
)

// Window is the slice of *glfw.Window the driver needs to create a surface.
type Window interface {
	GetRequiredInstanceExtensions() []string
	CreateWindowSurface(instance interface{}, allocCallbacks unsafe.Pointer) (uintptr, error)
}

type Config struct {
	AppName string
	// Validation enables VK_LAYER_KHRONOS_validation and routes its
	// reports through the "vulkan" logger.
	Validation bool
	// DiscreteGPU refuses integrated adapters. Ignored on darwin.
	DiscreteGPU bool
}

type VulkanContext struct {
	Instance  vk.Instance
	Allocator *vk.AllocationCallbacks
	Surface   vk.Surface

	debugReport vk.DebugReportCallback

	Device *VulkanDevice
}

// FindMemoryIndex returns the first memory type allowed by typeFilter that
// has every property bit, or -1.
func (vc *VulkanContext) FindMemoryIndex(typeFilter, propertyFlags uint32) int32 {
	mem := vc.Device.Memory
	for i := uint32(0); i < mem.MemoryTypeCount; i++ {
		t := mem.MemoryTypes[i]
		t.Deref()
		if typeFilter&(1<<i) != 0 && uint32(t.PropertyFlags)&propertyFlags == propertyFlags {
			return int32(i)
		}
	}
	return -1
}
