package vulkan

import (
	"errors"
	"fmt"
	"runtime"

	vk "github.com/goki/vulkan"
	"github.com/spaghettifunk/penumbra/engine/core"
)

type VulkanSwapchainSupportInfo struct {
	Capabilities vk.SurfaceCapabilities
	Formats      []vk.SurfaceFormat
	PresentModes []vk.PresentMode
}

type VulkanDevice struct {
	PhysicalDevice     vk.PhysicalDevice
	LogicalDevice      vk.Device
	SwapchainSupport   VulkanSwapchainSupportInfo
	GraphicsQueueIndex int32
	PresentQueueIndex  int32

	GraphicsQueue vk.Queue
	PresentQueue  vk.Queue

	GraphicsCommandPool vk.CommandPool

	Properties vk.PhysicalDeviceProperties
	Features   vk.PhysicalDeviceFeatures
	Memory     vk.PhysicalDeviceMemoryProperties

	DepthFormat vk.Format
	MaxSamples  vk.SampleCountFlagBits
}

type VulkanPhysicalDeviceRequirements struct {
	Graphics             bool
	Present              bool
	DeviceExtensionNames []string
	SamplerAnisotropy    bool
	DiscreteGPU          bool
}

type VulkanPhysicalDeviceQueueFamilyInfo struct {
	GraphicsFamilyIndex int32
	PresentFamilyIndex  int32
}

var ErrNoSuitableDevice = errors.New("no physical device meets the requirements")

func DeviceCreate(ctx *VulkanContext, cfg Config) error {
	ctx.Device = &VulkanDevice{GraphicsQueueIndex: -1, PresentQueueIndex: -1}
	if err := SelectPhysicalDevice(ctx, cfg); err != nil {
		return err
	}
	d := ctx.Device

	core.LogInfo("Creating logical device...")
	indices := []uint32{uint32(d.GraphicsQueueIndex)}
	if d.PresentQueueIndex != d.GraphicsQueueIndex {
		indices = append(indices, uint32(d.PresentQueueIndex))
	}
	queueCreateInfos := make([]vk.DeviceQueueCreateInfo, len(indices))
	for i, index := range indices {
		queueCreateInfos[i] = vk.DeviceQueueCreateInfo{
			SType:            vk.StructureTypeDeviceQueueCreateInfo,
			QueueFamilyIndex: index,
			QueueCount:       1,
			PQueuePriorities: []float32{1.0},
		}
	}

	features := vk.PhysicalDeviceFeatures{
		SamplerAnisotropy: d.Features.SamplerAnisotropy,
	}

	extensions := []string{vk.KhrSwapchainExtensionName}
	portable, err := hasDeviceExtension(d.PhysicalDevice, portabilitySubsetName)
	if err != nil {
		return err
	}
	if portable {
		core.LogInfo("Adding required extension '%s'.", portabilitySubsetName)
		extensions = append(extensions, portabilitySubsetName)
	}

	deviceCreateInfo := vk.DeviceCreateInfo{
		SType:                   vk.StructureTypeDeviceCreateInfo,
		QueueCreateInfoCount:    uint32(len(queueCreateInfos)),
		PQueueCreateInfos:       queueCreateInfos,
		PEnabledFeatures:        []vk.PhysicalDeviceFeatures{features},
		EnabledExtensionCount:   uint32(len(extensions)),
		PpEnabledExtensionNames: VulkanSafeStrings(extensions),
	}
	if err := check(vk.CreateDevice(d.PhysicalDevice, &deviceCreateInfo, ctx.Allocator, &d.LogicalDevice), "vkCreateDevice"); err != nil {
		return err
	}
	core.LogInfo("Logical device created.")

	vk.GetDeviceQueue(d.LogicalDevice, uint32(d.GraphicsQueueIndex), 0, &d.GraphicsQueue)
	vk.GetDeviceQueue(d.LogicalDevice, uint32(d.PresentQueueIndex), 0, &d.PresentQueue)

	poolCreateInfo := vk.CommandPoolCreateInfo{
		SType:            vk.StructureTypeCommandPoolCreateInfo,
		QueueFamilyIndex: uint32(d.GraphicsQueueIndex),
		Flags:            vk.CommandPoolCreateFlags(vk.CommandPoolCreateResetCommandBufferBit),
	}
	if err := check(vk.CreateCommandPool(d.LogicalDevice, &poolCreateInfo, ctx.Allocator, &d.GraphicsCommandPool), "vkCreateCommandPool"); err != nil {
		return err
	}
	core.LogInfo("Graphics command pool created.")
	return nil
}

func DeviceDestroy(ctx *VulkanContext) {
	d := ctx.Device
	if d == nil || d.LogicalDevice == nil {
		return
	}
	d.GraphicsQueue = nil
	d.PresentQueue = nil

	vk.DestroyCommandPool(d.LogicalDevice, d.GraphicsCommandPool, ctx.Allocator)
	vk.DestroyDevice(d.LogicalDevice, ctx.Allocator)
	d.LogicalDevice = nil
	d.PhysicalDevice = nil
	d.SwapchainSupport = VulkanSwapchainSupportInfo{}
	d.GraphicsQueueIndex = -1
	d.PresentQueueIndex = -1
	core.LogInfo("Logical device destroyed.")
}

func hasDeviceExtension(physicalDevice vk.PhysicalDevice, name string) (bool, error) {
	var count uint32
	if err := check(vk.EnumerateDeviceExtensionProperties(physicalDevice, "", &count, nil), "vkEnumerateDeviceExtensionProperties"); err != nil {
		return false, err
	}
	available := make([]vk.ExtensionProperties, count)
	if err := check(vk.EnumerateDeviceExtensionProperties(physicalDevice, "", &count, available), "vkEnumerateDeviceExtensionProperties"); err != nil {
		return false, err
	}
	for i := range available {
		available[i].Deref()
		if vk.ToString(available[i].ExtensionName[:]) == name {
			return true, nil
		}
	}
	return false, nil
}

func DeviceQuerySwapchainSupport(physicalDevice vk.PhysicalDevice, surface vk.Surface, supportInfo *VulkanSwapchainSupportInfo) error {
	if err := check(vk.GetPhysicalDeviceSurfaceCapabilities(physicalDevice, surface, &supportInfo.Capabilities), "vkGetPhysicalDeviceSurfaceCapabilitiesKHR"); err != nil {
		return err
	}
	supportInfo.Capabilities.Deref()
	supportInfo.Capabilities.CurrentExtent.Deref()
	supportInfo.Capabilities.MinImageExtent.Deref()
	supportInfo.Capabilities.MaxImageExtent.Deref()

	var formatCount uint32
	if err := check(vk.GetPhysicalDeviceSurfaceFormats(physicalDevice, surface, &formatCount, nil), "vkGetPhysicalDeviceSurfaceFormatsKHR"); err != nil {
		return err
	}
	supportInfo.Formats = make([]vk.SurfaceFormat, formatCount)
	if formatCount > 0 {
		if err := check(vk.GetPhysicalDeviceSurfaceFormats(physicalDevice, surface, &formatCount, supportInfo.Formats), "vkGetPhysicalDeviceSurfaceFormatsKHR"); err != nil {
			return err
		}
		for i := range supportInfo.Formats {
			supportInfo.Formats[i].Deref()
		}
	}

	var modeCount uint32
	if err := check(vk.GetPhysicalDeviceSurfacePresentModes(physicalDevice, surface, &modeCount, nil), "vkGetPhysicalDeviceSurfacePresentModesKHR"); err != nil {
		return err
	}
	supportInfo.PresentModes = make([]vk.PresentMode, modeCount)
	if modeCount > 0 {
		if err := check(vk.GetPhysicalDeviceSurfacePresentModes(physicalDevice, surface, &modeCount, supportInfo.PresentModes), "vkGetPhysicalDeviceSurfacePresentModesKHR"); err != nil {
			return err
		}
	}
	return nil
}

// DeviceDetectDepthFormat picks the first candidate usable as an optimally
// tiled depth attachment.
func DeviceDetectDepthFormat(device *VulkanDevice) bool {
	candidates := []vk.Format{
		vk.FormatD32Sfloat,
		vk.FormatD32SfloatS8Uint,
		vk.FormatD24UnormS8Uint,
	}
	flags := vk.FormatFeatureFlags(vk.FormatFeatureDepthStencilAttachmentBit)
	for _, candidate := range candidates {
		var properties vk.FormatProperties
		vk.GetPhysicalDeviceFormatProperties(device.PhysicalDevice, candidate, &properties)
		properties.Deref()
		if properties.OptimalTilingFeatures&flags == flags {
			device.DepthFormat = candidate
			return true
		}
	}
	return false
}

// DeviceDetectMaxSamples picks the highest sample count supported by both
// color and depth framebuffers.
func DeviceDetectMaxSamples(device *VulkanDevice) {
	limits := device.Properties.Limits
	limits.Deref()
	counts := limits.FramebufferColorSampleCounts & limits.FramebufferDepthSampleCounts
	for _, bit := range []vk.SampleCountFlagBits{
		vk.SampleCount64Bit, vk.SampleCount32Bit, vk.SampleCount16Bit,
		vk.SampleCount8Bit, vk.SampleCount4Bit, vk.SampleCount2Bit,
	} {
		if counts&vk.SampleCountFlags(bit) != 0 {
			device.MaxSamples = bit
			return
		}
	}
	device.MaxSamples = vk.SampleCount1Bit
}

func SelectPhysicalDevice(ctx *VulkanContext, cfg Config) error {
	var count uint32
	if err := check(vk.EnumeratePhysicalDevices(ctx.Instance, &count, nil), "vkEnumeratePhysicalDevices"); err != nil {
		return err
	}
	if count == 0 {
		return errors.New("no devices which support Vulkan were found")
	}
	physicalDevices := make([]vk.PhysicalDevice, count)
	if err := check(vk.EnumeratePhysicalDevices(ctx.Instance, &count, physicalDevices), "vkEnumeratePhysicalDevices"); err != nil {
		return err
	}

	requirements := VulkanPhysicalDeviceRequirements{
		Graphics:             true,
		Present:              true,
		SamplerAnisotropy:    true,
		DiscreteGPU:          cfg.DiscreteGPU && runtime.GOOS != "darwin",
		DeviceExtensionNames: []string{vk.KhrSwapchainExtensionName},
	}

	for _, physicalDevice := range physicalDevices {
		var properties vk.PhysicalDeviceProperties
		vk.GetPhysicalDeviceProperties(physicalDevice, &properties)
		properties.Deref()
		var features vk.PhysicalDeviceFeatures
		vk.GetPhysicalDeviceFeatures(physicalDevice, &features)
		features.Deref()
		var memory vk.PhysicalDeviceMemoryProperties
		vk.GetPhysicalDeviceMemoryProperties(physicalDevice, &memory)
		memory.Deref()

		queueInfo := VulkanPhysicalDeviceQueueFamilyInfo{}
		support := VulkanSwapchainSupportInfo{}
		if !PhysicalDeviceMeetsRequirements(physicalDevice, ctx.Surface, &properties, &features, &requirements, &queueInfo, &support) {
			continue
		}

		name := vk.ToString(properties.DeviceName[:])
		core.LogInfo("Selected device: '%s'.", name)
		switch properties.DeviceType {
		case vk.PhysicalDeviceTypeIntegratedGpu:
			core.LogInfo("GPU type is Integrated.")
		case vk.PhysicalDeviceTypeDiscreteGpu:
			core.LogInfo("GPU type is Discrete.")
		case vk.PhysicalDeviceTypeVirtualGpu:
			core.LogInfo("GPU type is Virtual.")
		case vk.PhysicalDeviceTypeCpu:
			core.LogInfo("GPU type is CPU.")
		default:
			core.LogInfo("GPU type is Unknown.")
		}
		core.LogInfo("Vulkan API version: %d.%d.%d",
			vk.Version(properties.ApiVersion).Major(),
			vk.Version(properties.ApiVersion).Minor(),
			vk.Version(properties.ApiVersion).Patch(),
		)
		for j := uint32(0); j < memory.MemoryHeapCount; j++ {
			heap := memory.MemoryHeaps[j]
			heap.Deref()
			gib := float64(heap.Size) / 1024 / 1024 / 1024
			if vk.MemoryHeapFlagBits(heap.Flags)&vk.MemoryHeapDeviceLocalBit != 0 {
				core.LogInfo("Local GPU memory: %.2f GiB", gib)
			} else {
				core.LogInfo("Shared System memory: %.2f GiB", gib)
			}
		}

		d := ctx.Device
		d.PhysicalDevice = physicalDevice
		d.GraphicsQueueIndex = queueInfo.GraphicsFamilyIndex
		d.PresentQueueIndex = queueInfo.PresentFamilyIndex
		d.Properties = properties
		d.Features = features
		d.Memory = memory
		d.SwapchainSupport = support
		return nil
	}
	core.LogError(ErrNoSuitableDevice.Error())
	return ErrNoSuitableDevice
}

func PhysicalDeviceMeetsRequirements(device vk.PhysicalDevice, surface vk.Surface, properties *vk.PhysicalDeviceProperties, features *vk.PhysicalDeviceFeatures, requirements *VulkanPhysicalDeviceRequirements, outQueueInfo *VulkanPhysicalDeviceQueueFamilyInfo, outSwapchainSupport *VulkanSwapchainSupportInfo) bool {
	outQueueInfo.GraphicsFamilyIndex = -1
	outQueueInfo.PresentFamilyIndex = -1

	if requirements.DiscreteGPU && properties.DeviceType != vk.PhysicalDeviceTypeDiscreteGpu {
		core.LogInfo("Device is not a discrete GPU, and one is required. Skipping.")
		return false
	}

	var familyCount uint32
	vk.GetPhysicalDeviceQueueFamilyProperties(device, &familyCount, nil)
	families := make([]vk.QueueFamilyProperties, familyCount)
	vk.GetPhysicalDeviceQueueFamilyProperties(device, &familyCount, families)

	for i := range families {
		families[i].Deref()
		if outQueueInfo.GraphicsFamilyIndex < 0 && vk.QueueFlagBits(families[i].QueueFlags)&vk.QueueGraphicsBit != 0 {
			outQueueInfo.GraphicsFamilyIndex = int32(i)
		}
		var supportsPresent vk.Bool32
		if res := vk.GetPhysicalDeviceSurfaceSupport(device, uint32(i), surface, &supportsPresent); res != vk.Success {
			return false
		}
		// prefer a family that does both
		if supportsPresent == vk.True && (outQueueInfo.PresentFamilyIndex < 0 || int32(i) == outQueueInfo.GraphicsFamilyIndex) {
			outQueueInfo.PresentFamilyIndex = int32(i)
		}
	}

	if requirements.Graphics && outQueueInfo.GraphicsFamilyIndex < 0 {
		return false
	}
	if requirements.Present && outQueueInfo.PresentFamilyIndex < 0 {
		return false
	}
	core.LogDebug("Graphics Family Index: %d", outQueueInfo.GraphicsFamilyIndex)
	core.LogDebug("Present Family Index:  %d", outQueueInfo.PresentFamilyIndex)

	if err := DeviceQuerySwapchainSupport(device, surface, outSwapchainSupport); err != nil {
		return false
	}
	if len(outSwapchainSupport.Formats) < 1 || len(outSwapchainSupport.PresentModes) < 1 {
		core.LogInfo("Required swapchain support not present, skipping device.")
		return false
	}

	for _, name := range requirements.DeviceExtensionNames {
		ok, err := hasDeviceExtension(device, name)
		if err != nil || !ok {
			core.LogInfo("Required extension not found: '%s', skipping device.", name)
			return false
		}
	}

	if requirements.SamplerAnisotropy && features.SamplerAnisotropy == vk.False {
		core.LogInfo("Device does not support samplerAnisotropy, skipping.")
		return false
	}
	return true
}

func describeDevice(d *VulkanDevice) string {
	return fmt.Sprintf("graphics=%d present=%d depth=%d samples=%d",
		d.GraphicsQueueIndex, d.PresentQueueIndex, d.DepthFormat, d.MaxSamples)
}
