package vulkan

import (
	vk "github.com/goki/vulkan"
	"github.com/spaghettifunk/penumbra/engine/renderer/gpu"
)

func (b *Backend) CreateImage(desc gpu.ImageDesc) (gpu.Image, gpu.MemoryRequirements, error) {
	layers := max(desc.Layers, 1)
	samples := desc.Samples
	if samples == 0 {
		samples = gpu.Samples1
	}
	info := vk.ImageCreateInfo{
		SType:     vk.StructureTypeImageCreateInfo,
		ImageType: vk.ImageType2d,
		Format:    vk.Format(desc.Format),
		Extent: vk.Extent3D{
			Width:  desc.Width,
			Height: desc.Height,
			Depth:  1,
		},
		MipLevels:     1,
		ArrayLayers:   layers,
		Samples:       vk.SampleCountFlagBits(samples),
		Tiling:        vk.ImageTilingOptimal,
		Usage:         vk.ImageUsageFlags(desc.Usage),
		SharingMode:   vk.SharingModeExclusive,
		InitialLayout: vk.ImageLayoutUndefined,
	}
	var image vk.Image
	if err := b.locks.SafeCall(ImageManagement, func() error {
		return check(vk.CreateImage(b.device(), &info, b.context.Allocator, &image), "vkCreateImage")
	}); err != nil {
		return 0, gpu.MemoryRequirements{}, err
	}
	var reqs vk.MemoryRequirements
	vk.GetImageMemoryRequirements(b.device(), image, &reqs)
	return gpu.Image(b.images.add(image)), memoryRequirements(reqs), nil
}

func (b *Backend) DestroyImage(image gpu.Image) {
	if vi, ok := b.images.take(uint64(image)); ok {
		vk.DestroyImage(b.device(), vi, b.context.Allocator)
	}
}

func (b *Backend) BindImageMemory(image gpu.Image, memory gpu.Memory) error {
	vi, ok := b.images.get(uint64(image))
	if !ok {
		return unknown("image", uint64(image))
	}
	mem, ok := b.memory.get(uint64(memory))
	if !ok {
		return unknown("memory", uint64(memory))
	}
	return check(vk.BindImageMemory(b.device(), vi, mem, 0), "vkBindImageMemory")
}

func (b *Backend) CreateImageView(desc gpu.ImageViewDesc) (gpu.ImageView, error) {
	vi, ok := b.images.get(uint64(desc.Image))
	if !ok {
		return 0, unknown("image", uint64(desc.Image))
	}
	return b.createView(vi, desc)
}

// createView also serves swapchain images, which are not in the image
// registry.
func (b *Backend) createView(image vk.Image, desc gpu.ImageViewDesc) (gpu.ImageView, error) {
	layers := max(desc.LayerCount, 1)
	viewType := vk.ImageViewType2d
	if desc.Array || layers > 1 {
		viewType = vk.ImageViewType2dArray
	}
	info := vk.ImageViewCreateInfo{
		SType:    vk.StructureTypeImageViewCreateInfo,
		Image:    image,
		ViewType: viewType,
		Format:   vk.Format(desc.Format),
		Components: vk.ComponentMapping{
			R: vk.ComponentSwizzleIdentity,
			G: vk.ComponentSwizzleIdentity,
			B: vk.ComponentSwizzleIdentity,
			A: vk.ComponentSwizzleIdentity,
		},
		SubresourceRange: vk.ImageSubresourceRange{
			AspectMask:     vk.ImageAspectFlags(desc.Aspect),
			BaseMipLevel:   0,
			LevelCount:     1,
			BaseArrayLayer: desc.BaseLayer,
			LayerCount:     layers,
		},
	}
	var view vk.ImageView
	if err := b.locks.SafeCall(ImageManagement, func() error {
		return check(vk.CreateImageView(b.device(), &info, b.context.Allocator, &view), "vkCreateImageView")
	}); err != nil {
		return 0, err
	}
	return gpu.ImageView(b.views.add(view)), nil
}

func (b *Backend) DestroyImageView(view gpu.ImageView) {
	if vv, ok := b.views.take(uint64(view)); ok {
		vk.DestroyImageView(b.device(), vv, b.context.Allocator)
	}
}

func (b *Backend) CreateSampler(desc gpu.SamplerDesc) (gpu.Sampler, error) {
	info := vk.SamplerCreateInfo{
		SType:                   vk.StructureTypeSamplerCreateInfo,
		MagFilter:               vk.Filter(desc.Filter),
		MinFilter:               vk.Filter(desc.Filter),
		MipmapMode:              vk.SamplerMipmapModeNearest,
		AddressModeU:            vk.SamplerAddressMode(desc.AddressMode),
		AddressModeV:            vk.SamplerAddressMode(desc.AddressMode),
		AddressModeW:            vk.SamplerAddressMode(desc.AddressMode),
		AnisotropyEnable:        vkBool(desc.MaxAnisotropy > 0),
		MaxAnisotropy:           max(desc.MaxAnisotropy, 1),
		BorderColor:             vk.BorderColor(desc.BorderColor),
		CompareEnable:           vkBool(desc.CompareEnable),
		CompareOp:               vk.CompareOp(desc.CompareOp),
		UnnormalizedCoordinates: vk.False,
	}
	var sampler vk.Sampler
	if err := b.locks.SafeCall(SamplerManagement, func() error {
		return check(vk.CreateSampler(b.device(), &info, b.context.Allocator, &sampler), "vkCreateSampler")
	}); err != nil {
		return 0, err
	}
	return gpu.Sampler(b.samplers.add(sampler)), nil
}

func (b *Backend) DestroySampler(sampler gpu.Sampler) {
	if vs, ok := b.samplers.take(uint64(sampler)); ok {
		vk.DestroySampler(b.device(), vs, b.context.Allocator)
	}
}
