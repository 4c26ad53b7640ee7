package vulkan

import "math"

const (
	validationLayerName     = "VK_LAYER_KHRONOS_validation"
	portabilitySubsetName   = "VK_KHR_portability_subset"
	portabilityEnumeration  = "VK_KHR_portability_enumeration"
	physicalDeviceProps2Ext = "VK_KHR_get_physical_device_properties2"

	// VK_INSTANCE_CREATE_ENUMERATE_PORTABILITY_BIT_KHR
	enumeratePortabilityBit = 0x00000001

	engineName = "Penumbra"
)

const noTimeout = math.MaxUint64
