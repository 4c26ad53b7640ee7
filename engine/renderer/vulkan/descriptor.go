package vulkan

import (
	vk "github.com/goki/vulkan"
	"github.com/spaghettifunk/penumbra/engine/core"
	"github.com/spaghettifunk/penumbra/engine/renderer/gpu"
)

func (b *Backend) CreateDescriptorSetLayout(bindings []gpu.DescriptorBinding) (gpu.DescriptorSetLayout, error) {
	vkBindings := make([]vk.DescriptorSetLayoutBinding, len(bindings))
	for i, binding := range bindings {
		vkBindings[i] = vk.DescriptorSetLayoutBinding{
			Binding:         binding.Binding,
			DescriptorType:  vk.DescriptorType(binding.Kind),
			DescriptorCount: max(binding.Count, 1),
			StageFlags:      vk.ShaderStageFlags(binding.Stages),
		}
	}
	info := vk.DescriptorSetLayoutCreateInfo{
		SType:        vk.StructureTypeDescriptorSetLayoutCreateInfo,
		BindingCount: uint32(len(vkBindings)),
		PBindings:    vkBindings,
	}
	var layout vk.DescriptorSetLayout
	if err := b.locks.SafeCall(DescriptorManagement, func() error {
		return check(vk.CreateDescriptorSetLayout(b.device(), &info, b.context.Allocator, &layout), "vkCreateDescriptorSetLayout")
	}); err != nil {
		return 0, err
	}
	return gpu.DescriptorSetLayout(b.setLayouts.add(layout)), nil
}

func (b *Backend) DestroyDescriptorSetLayout(layout gpu.DescriptorSetLayout) {
	if vl, ok := b.setLayouts.take(uint64(layout)); ok {
		vk.DestroyDescriptorSetLayout(b.device(), vl, b.context.Allocator)
	}
}

func (b *Backend) CreateDescriptorPool(maxSets uint32, sizes []gpu.DescriptorPoolSize) (gpu.DescriptorPool, error) {
	poolSizes := make([]vk.DescriptorPoolSize, len(sizes))
	for i, size := range sizes {
		poolSizes[i] = vk.DescriptorPoolSize{
			Type:            vk.DescriptorType(size.Kind),
			DescriptorCount: size.Count,
		}
	}
	info := vk.DescriptorPoolCreateInfo{
		SType:         vk.StructureTypeDescriptorPoolCreateInfo,
		MaxSets:       maxSets,
		PoolSizeCount: uint32(len(poolSizes)),
		PPoolSizes:    poolSizes,
	}
	var pool vk.DescriptorPool
	if err := b.locks.SafeCall(DescriptorManagement, func() error {
		return check(vk.CreateDescriptorPool(b.device(), &info, b.context.Allocator, &pool), "vkCreateDescriptorPool")
	}); err != nil {
		return 0, err
	}
	return gpu.DescriptorPool(b.descriptorPools.add(pool)), nil
}

// DestroyDescriptorPool also forgets every set allocated from the pool.
func (b *Backend) DestroyDescriptorPool(pool gpu.DescriptorPool) {
	vp, ok := b.descriptorPools.take(uint64(pool))
	if !ok {
		return
	}
	b.descriptorSets.dropWhere(func(s descriptorSet) bool { return s.pool == uint64(pool) })
	vk.DestroyDescriptorPool(b.device(), vp, b.context.Allocator)
}

func (b *Backend) AllocateDescriptorSets(pool gpu.DescriptorPool, layout gpu.DescriptorSetLayout, count uint32) ([]gpu.DescriptorSet, error) {
	vp, ok := b.descriptorPools.get(uint64(pool))
	if !ok {
		return nil, unknown("descriptor pool", uint64(pool))
	}
	vl, ok := b.setLayouts.get(uint64(layout))
	if !ok {
		return nil, unknown("descriptor set layout", uint64(layout))
	}
	layouts := make([]vk.DescriptorSetLayout, count)
	for i := range layouts {
		layouts[i] = vl
	}
	info := vk.DescriptorSetAllocateInfo{
		SType:              vk.StructureTypeDescriptorSetAllocateInfo,
		DescriptorPool:     vp,
		DescriptorSetCount: count,
		PSetLayouts:        layouts,
	}
	sets := make([]vk.DescriptorSet, count)
	if err := b.locks.SafeCall(DescriptorManagement, func() error {
		return check(vk.AllocateDescriptorSets(b.device(), &info, &sets[0]), "vkAllocateDescriptorSets")
	}); err != nil {
		return nil, err
	}
	out := make([]gpu.DescriptorSet, count)
	for i, set := range sets {
		out[i] = gpu.DescriptorSet(b.descriptorSets.add(descriptorSet{set: set, pool: uint64(pool)}))
	}
	return out, nil
}

// UpdateDescriptorSets skips writes naming unknown objects.
func (b *Backend) UpdateDescriptorSets(writes []gpu.DescriptorWrite) {
	vkWrites := make([]vk.WriteDescriptorSet, 0, len(writes))
	for _, w := range writes {
		set, ok := b.descriptorSets.get(uint64(w.Set))
		if !ok {
			core.LogWarn("vulkan: descriptor write to unknown set %d", w.Set)
			continue
		}
		write := vk.WriteDescriptorSet{
			SType:           vk.StructureTypeWriteDescriptorSet,
			DstSet:          set.set,
			DstBinding:      w.Binding,
			DescriptorType:  vk.DescriptorType(w.Kind),
			DescriptorCount: 1,
		}
		switch w.Kind {
		case gpu.DescriptorUniformBuffer:
			buffer, ok := b.buffers.get(uint64(w.Buffer))
			if !ok {
				core.LogWarn("vulkan: descriptor write names unknown buffer %d", w.Buffer)
				continue
			}
			write.PBufferInfo = []vk.DescriptorBufferInfo{{
				Buffer: buffer,
				Offset: vk.DeviceSize(w.Offset),
				Range:  vk.DeviceSize(w.Range),
			}}
		default:
			view, okView := b.views.get(uint64(w.View))
			sampler, okSampler := b.samplers.get(uint64(w.Sampler))
			if !okView || !okSampler {
				core.LogWarn("vulkan: descriptor write names unknown view %d or sampler %d", w.View, w.Sampler)
				continue
			}
			write.PImageInfo = []vk.DescriptorImageInfo{{
				Sampler:     sampler,
				ImageView:   view,
				ImageLayout: vk.ImageLayout(w.Layout),
			}}
		}
		vkWrites = append(vkWrites, write)
	}
	if len(vkWrites) == 0 {
		return
	}
	_ = b.locks.SafeCall(DescriptorManagement, func() error {
		vk.UpdateDescriptorSets(b.device(), uint32(len(vkWrites)), vkWrites, 0, nil)
		return nil
	})
}
