package vulkan

import (
	"math"

	vk "github.com/goki/vulkan"
	"github.com/spaghettifunk/penumbra/engine/core"
	"github.com/spaghettifunk/penumbra/engine/renderer/gpu"
)

func clamp(v, lo, hi uint32) uint32 {
	return max(lo, min(v, hi))
}

func chooseSurfaceFormat(formats []vk.SurfaceFormat) vk.SurfaceFormat {
	for _, format := range formats {
		if format.Format == vk.FormatB8g8r8a8Unorm && format.ColorSpace == vk.ColorSpaceSrgbNonlinear {
			return format
		}
	}
	return formats[0]
}

// choosePresentMode prefers mailbox unless vsync is requested. FIFO is
// always available.
func choosePresentMode(modes []vk.PresentMode, vsync bool) vk.PresentMode {
	if vsync {
		return vk.PresentModeFifo
	}
	for _, mode := range modes {
		if mode == vk.PresentModeMailbox {
			return mode
		}
	}
	return vk.PresentModeFifo
}

// CreateSwapchain re-queries surface support, so it is also the
// recreation path after a resize.
func (b *Backend) CreateSwapchain(desc gpu.SwapchainDesc) (gpu.SwapchainInfo, error) {
	d := b.context.Device
	if err := DeviceQuerySwapchainSupport(d.PhysicalDevice, b.context.Surface, &d.SwapchainSupport); err != nil {
		return gpu.SwapchainInfo{}, err
	}
	support := d.SwapchainSupport
	caps := support.Capabilities

	format := chooseSurfaceFormat(support.Formats)
	presentMode := choosePresentMode(support.PresentModes, desc.VSync)

	extent := vk.Extent2D{Width: desc.Width, Height: desc.Height}
	if caps.CurrentExtent.Width != math.MaxUint32 {
		extent = caps.CurrentExtent
	}
	extent.Width = clamp(extent.Width, caps.MinImageExtent.Width, caps.MaxImageExtent.Width)
	extent.Height = clamp(extent.Height, caps.MinImageExtent.Height, caps.MaxImageExtent.Height)

	imageCount := caps.MinImageCount + 1
	if caps.MaxImageCount > 0 && imageCount > caps.MaxImageCount {
		imageCount = caps.MaxImageCount
	}

	createInfo := vk.SwapchainCreateInfo{
		SType:            vk.StructureTypeSwapchainCreateInfo,
		Surface:          b.context.Surface,
		MinImageCount:    imageCount,
		ImageFormat:      format.Format,
		ImageColorSpace:  format.ColorSpace,
		ImageExtent:      extent,
		ImageArrayLayers: 1,
		ImageUsage:       vk.ImageUsageFlags(vk.ImageUsageColorAttachmentBit),
		ImageSharingMode: vk.SharingModeExclusive,
		PreTransform:     caps.CurrentTransform,
		CompositeAlpha:   vk.CompositeAlphaOpaqueBit,
		PresentMode:      presentMode,
		Clipped:          vk.True,
		OldSwapchain:     vk.NullSwapchain,
	}
	if d.GraphicsQueueIndex != d.PresentQueueIndex {
		createInfo.ImageSharingMode = vk.SharingModeConcurrent
		createInfo.QueueFamilyIndexCount = 2
		createInfo.PQueueFamilyIndices = []uint32{uint32(d.GraphicsQueueIndex), uint32(d.PresentQueueIndex)}
	}
	if old, ok := b.swapchains.get(uint64(desc.Old)); ok {
		createInfo.OldSwapchain = old.handle
	}

	sc := &swapchain{}
	if err := b.locks.SafeCall(SwapchainManagement, func() error {
		return check(vk.CreateSwapchain(b.device(), &createInfo, b.context.Allocator, &sc.handle), "vkCreateSwapchainKHR")
	}); err != nil {
		return gpu.SwapchainInfo{}, err
	}

	var count uint32
	if err := check(vk.GetSwapchainImages(b.device(), sc.handle, &count, nil), "vkGetSwapchainImagesKHR"); err != nil {
		vk.DestroySwapchain(b.device(), sc.handle, b.context.Allocator)
		return gpu.SwapchainInfo{}, err
	}
	sc.images = make([]vk.Image, count)
	if err := check(vk.GetSwapchainImages(b.device(), sc.handle, &count, sc.images), "vkGetSwapchainImagesKHR"); err != nil {
		vk.DestroySwapchain(b.device(), sc.handle, b.context.Allocator)
		return gpu.SwapchainInfo{}, err
	}

	info := gpu.SwapchainInfo{
		Format: gpu.Format(format.Format),
		Extent: gpu.Extent2D{Width: extent.Width, Height: extent.Height},
	}
	for _, image := range sc.images {
		view, err := b.createView(image, gpu.ImageViewDesc{
			Format:     info.Format,
			Aspect:     gpu.AspectColor,
			LayerCount: 1,
		})
		if err != nil {
			info.Handle = gpu.Swapchain(b.swapchains.add(sc))
			info.Views = sc.views
			b.DestroySwapchain(info)
			return gpu.SwapchainInfo{}, err
		}
		sc.views = append(sc.views, view)
	}
	info.Handle = gpu.Swapchain(b.swapchains.add(sc))
	info.Views = append([]gpu.ImageView(nil), sc.views...)
	core.LogDebug("swapchain created: %dx%d, %d images, present mode %d", extent.Width, extent.Height, count, presentMode)
	return info, nil
}

func (b *Backend) DestroySwapchain(info gpu.SwapchainInfo) {
	sc, ok := b.swapchains.take(uint64(info.Handle))
	if !ok {
		return
	}
	for _, view := range sc.views {
		b.DestroyImageView(view)
	}
	vk.DestroySwapchain(b.device(), sc.handle, b.context.Allocator)
}

func (b *Backend) AcquireNextImage(handle gpu.Swapchain, signal gpu.Semaphore) (uint32, error) {
	sc, ok := b.swapchains.get(uint64(handle))
	if !ok {
		return 0, unknown("swapchain", uint64(handle))
	}
	sem, ok := b.semaphores.get(uint64(signal))
	if !ok {
		return 0, unknown("semaphore", uint64(signal))
	}
	var index uint32
	switch result := vk.AcquireNextImage(b.device(), sc.handle, noTimeout, sem, vk.NullFence, &index); result {
	case vk.Success:
		return index, nil
	case vk.Suboptimal:
		return index, gpu.ErrSurfaceSuboptimal
	case vk.ErrorOutOfDate:
		return 0, gpu.ErrSurfaceOutOfDate
	default:
		return 0, check(result, "vkAcquireNextImageKHR")
	}
}

func (b *Backend) Present(handle gpu.Swapchain, imageIndex uint32, wait gpu.Semaphore) error {
	sc, ok := b.swapchains.get(uint64(handle))
	if !ok {
		return unknown("swapchain", uint64(handle))
	}
	presentInfo := vk.PresentInfo{
		SType:          vk.StructureTypePresentInfo,
		SwapchainCount: 1,
		PSwapchains:    []vk.Swapchain{sc.handle},
		PImageIndices:  []uint32{imageIndex},
	}
	if wait != gpu.NullSemaphore {
		sem, ok := b.semaphores.get(uint64(wait))
		if !ok {
			return unknown("semaphore", uint64(wait))
		}
		presentInfo.WaitSemaphoreCount = 1
		presentInfo.PWaitSemaphores = []vk.Semaphore{sem}
	}

	d := b.context.Device
	var result vk.Result
	_ = b.locks.SafeQueueCall(uint32(d.PresentQueueIndex), func() error {
		result = vk.QueuePresent(d.PresentQueue, &presentInfo)
		return nil
	})
	switch result {
	case vk.Success:
		return nil
	case vk.Suboptimal:
		return gpu.ErrSurfaceSuboptimal
	case vk.ErrorOutOfDate:
		return gpu.ErrSurfaceOutOfDate
	default:
		return check(result, "vkQueuePresentKHR")
	}
}
