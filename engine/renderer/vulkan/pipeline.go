package vulkan

import (
	"encoding/binary"
	"fmt"

	vk "github.com/goki/vulkan"
	"github.com/spaghettifunk/penumbra/engine/core"
	"github.com/spaghettifunk/penumbra/engine/renderer/gpu"
)

var entryPoint = VulkanSafeString("main")

// CreateShaderModule wraps SPIR-V bytecode. len(code) must be a multiple of
// four.
func (b *Backend) CreateShaderModule(code []byte) (gpu.ShaderModule, error) {
	if len(code) == 0 || len(code)%4 != 0 {
		return 0, fmt.Errorf("shader code size %d is not a multiple of 4", len(code))
	}
	words := make([]uint32, len(code)/4)
	for i := range words {
		words[i] = binary.LittleEndian.Uint32(code[i*4:])
	}
	info := vk.ShaderModuleCreateInfo{
		SType:    vk.StructureTypeShaderModuleCreateInfo,
		CodeSize: uint(len(code)),
		PCode:    words,
	}
	var module vk.ShaderModule
	if err := b.locks.SafeCall(ShaderManagement, func() error {
		return check(vk.CreateShaderModule(b.device(), &info, b.context.Allocator, &module), "vkCreateShaderModule")
	}); err != nil {
		return 0, err
	}
	return gpu.ShaderModule(b.shaders.add(module)), nil
}

func (b *Backend) DestroyShaderModule(module gpu.ShaderModule) {
	if vm, ok := b.shaders.take(uint64(module)); ok {
		vk.DestroyShaderModule(b.device(), vm, b.context.Allocator)
	}
}

func (b *Backend) CreatePipelineLayout(desc gpu.PipelineLayoutDesc) (gpu.PipelineLayout, error) {
	setLayouts := make([]vk.DescriptorSetLayout, len(desc.SetLayouts))
	for i, l := range desc.SetLayouts {
		vl, ok := b.setLayouts.get(uint64(l))
		if !ok {
			return 0, unknown("descriptor set layout", uint64(l))
		}
		setLayouts[i] = vl
	}
	ranges := make([]vk.PushConstantRange, len(desc.PushConstants))
	for i, r := range desc.PushConstants {
		ranges[i] = vk.PushConstantRange{
			StageFlags: vk.ShaderStageFlags(r.Stages),
			Offset:     r.Offset,
			Size:       r.Size,
		}
	}
	info := vk.PipelineLayoutCreateInfo{
		SType:                  vk.StructureTypePipelineLayoutCreateInfo,
		SetLayoutCount:         uint32(len(setLayouts)),
		PSetLayouts:            setLayouts,
		PushConstantRangeCount: uint32(len(ranges)),
		PPushConstantRanges:    ranges,
	}
	var layout vk.PipelineLayout
	if err := b.locks.SafeCall(PipelineManagement, func() error {
		return check(vk.CreatePipelineLayout(b.device(), &info, b.context.Allocator, &layout), "vkCreatePipelineLayout")
	}); err != nil {
		return 0, err
	}
	return gpu.PipelineLayout(b.pipelineLayouts.add(layout)), nil
}

func (b *Backend) DestroyPipelineLayout(layout gpu.PipelineLayout) {
	if vl, ok := b.pipelineLayouts.take(uint64(layout)); ok {
		vk.DestroyPipelineLayout(b.device(), vl, b.context.Allocator)
	}
}

func (b *Backend) CreateGraphicsPipeline(desc gpu.GraphicsPipelineDesc) (gpu.Pipeline, error) {
	vertex, ok := b.shaders.get(uint64(desc.Vertex))
	if !ok {
		return 0, unknown("vertex shader", uint64(desc.Vertex))
	}
	fragment, ok := b.shaders.get(uint64(desc.Fragment))
	if !ok {
		return 0, unknown("fragment shader", uint64(desc.Fragment))
	}
	layout, ok := b.pipelineLayouts.get(uint64(desc.Layout))
	if !ok {
		return 0, unknown("pipeline layout", uint64(desc.Layout))
	}
	renderPass, ok := b.renderPasses.get(uint64(desc.RenderPass))
	if !ok {
		return 0, unknown("render pass", uint64(desc.RenderPass))
	}

	stages := []vk.PipelineShaderStageCreateInfo{
		{
			SType:  vk.StructureTypePipelineShaderStageCreateInfo,
			Stage:  vk.ShaderStageVertexBit,
			Module: vertex,
			PName:  entryPoint,
		},
		{
			SType:  vk.StructureTypePipelineShaderStageCreateInfo,
			Stage:  vk.ShaderStageFragmentBit,
			Module: fragment,
			PName:  entryPoint,
		},
	}

	bindings := make([]vk.VertexInputBindingDescription, len(desc.VertexBindings))
	for i, vb := range desc.VertexBindings {
		bindings[i] = vk.VertexInputBindingDescription{
			Binding:   vb.Binding,
			Stride:    vb.Stride,
			InputRate: vk.VertexInputRateVertex,
		}
	}
	attributes := make([]vk.VertexInputAttributeDescription, len(desc.VertexAttributes))
	for i, a := range desc.VertexAttributes {
		attributes[i] = vk.VertexInputAttributeDescription{
			Location: a.Location,
			Binding:  a.Binding,
			Format:   vk.Format(a.Format),
			Offset:   a.Offset,
		}
	}
	vertexInputInfo := vk.PipelineVertexInputStateCreateInfo{
		SType:                           vk.StructureTypePipelineVertexInputStateCreateInfo,
		VertexBindingDescriptionCount:   uint32(len(bindings)),
		PVertexBindingDescriptions:      bindings,
		VertexAttributeDescriptionCount: uint32(len(attributes)),
		PVertexAttributeDescriptions:    attributes,
	}

	inputAssembly := vk.PipelineInputAssemblyStateCreateInfo{
		SType:                  vk.StructureTypePipelineInputAssemblyStateCreateInfo,
		Topology:               vk.PrimitiveTopology(desc.Topology),
		PrimitiveRestartEnable: vk.False,
	}

	viewportState := vk.PipelineViewportStateCreateInfo{
		SType:         vk.StructureTypePipelineViewportStateCreateInfo,
		ViewportCount: 1,
		ScissorCount:  1,
	}
	var dynamicState *vk.PipelineDynamicStateCreateInfo
	if desc.DynamicViewport {
		dynamicStates := []vk.DynamicState{vk.DynamicStateViewport, vk.DynamicStateScissor}
		dynamicState = &vk.PipelineDynamicStateCreateInfo{
			SType:             vk.StructureTypePipelineDynamicStateCreateInfo,
			DynamicStateCount: uint32(len(dynamicStates)),
			PDynamicStates:    dynamicStates,
		}
	} else {
		viewportState.PViewports = []vk.Viewport{{
			Width:    float32(desc.Extent.Width),
			Height:   float32(desc.Extent.Height),
			MinDepth: 0,
			MaxDepth: 1,
		}}
		viewportState.PScissors = []vk.Rect2D{{
			Extent: vk.Extent2D{Width: desc.Extent.Width, Height: desc.Extent.Height},
		}}
	}

	rasterizer := vk.PipelineRasterizationStateCreateInfo{
		SType:                   vk.StructureTypePipelineRasterizationStateCreateInfo,
		DepthClampEnable:        vk.False,
		RasterizerDiscardEnable: vk.False,
		PolygonMode:             vk.PolygonMode(desc.PolygonMode),
		LineWidth:               1.0,
		CullMode:                vk.CullModeFlags(desc.CullMode),
		FrontFace:               vk.FrontFace(desc.FrontFace),
		DepthBiasEnable:         vk.False,
	}

	samples := desc.Samples
	if samples == 0 {
		samples = gpu.Samples1
	}
	multisampling := vk.PipelineMultisampleStateCreateInfo{
		SType:                vk.StructureTypePipelineMultisampleStateCreateInfo,
		SampleShadingEnable:  vk.False,
		RasterizationSamples: vk.SampleCountFlagBits(samples),
		MinSampleShading:     1.0,
	}

	depthStencil := vk.PipelineDepthStencilStateCreateInfo{
		SType:                 vk.StructureTypePipelineDepthStencilStateCreateInfo,
		DepthTestEnable:       vkBool(desc.DepthTest),
		DepthWriteEnable:      vkBool(desc.DepthWrite),
		DepthCompareOp:        vk.CompareOp(desc.DepthCompare),
		DepthBoundsTestEnable: vk.False,
		StencilTestEnable:     vk.False,
		MaxDepthBounds:        1.0,
	}

	colorBlend := vk.PipelineColorBlendStateCreateInfo{
		SType:         vk.StructureTypePipelineColorBlendStateCreateInfo,
		LogicOpEnable: vk.False,
		LogicOp:       vk.LogicOpCopy,
	}
	if desc.ColorAttachment {
		attachment := vk.PipelineColorBlendAttachmentState{
			BlendEnable: vkBool(desc.BlendEnable),
			ColorWriteMask: vk.ColorComponentFlags(vk.ColorComponentRBit) | vk.ColorComponentFlags(vk.ColorComponentGBit) |
				vk.ColorComponentFlags(vk.ColorComponentBBit) | vk.ColorComponentFlags(vk.ColorComponentABit),
		}
		if desc.BlendEnable {
			attachment.SrcColorBlendFactor = vk.BlendFactorSrcAlpha
			attachment.DstColorBlendFactor = vk.BlendFactorOneMinusSrcAlpha
			attachment.ColorBlendOp = vk.BlendOpAdd
			attachment.SrcAlphaBlendFactor = vk.BlendFactorSrcAlpha
			attachment.DstAlphaBlendFactor = vk.BlendFactorOneMinusSrcAlpha
			attachment.AlphaBlendOp = vk.BlendOpAdd
		}
		colorBlend.AttachmentCount = 1
		colorBlend.PAttachments = []vk.PipelineColorBlendAttachmentState{attachment}
	}

	pipelineCreateInfo := vk.GraphicsPipelineCreateInfo{
		SType:               vk.StructureTypeGraphicsPipelineCreateInfo,
		StageCount:          uint32(len(stages)),
		PStages:             stages,
		PVertexInputState:   &vertexInputInfo,
		PInputAssemblyState: &inputAssembly,
		PViewportState:      &viewportState,
		PRasterizationState: &rasterizer,
		PMultisampleState:   &multisampling,
		PDepthStencilState:  &depthStencil,
		PColorBlendState:    &colorBlend,
		PDynamicState:       dynamicState,
		Layout:              layout,
		RenderPass:          renderPass,
		Subpass:             desc.Subpass,
		BasePipelineHandle:  vk.NullPipeline,
		BasePipelineIndex:   -1,
	}

	pipelines := make([]vk.Pipeline, 1)
	if err := b.locks.SafeCall(PipelineManagement, func() error {
		return check(vk.CreateGraphicsPipelines(b.device(), vk.NullPipelineCache, 1,
			[]vk.GraphicsPipelineCreateInfo{pipelineCreateInfo}, b.context.Allocator, pipelines), "vkCreateGraphicsPipelines")
	}); err != nil {
		return 0, err
	}
	core.LogDebug("Graphics pipeline created.")
	return gpu.Pipeline(b.pipelines.add(pipelines[0])), nil
}

func (b *Backend) DestroyPipeline(pipeline gpu.Pipeline) {
	if vp, ok := b.pipelines.take(uint64(pipeline)); ok {
		vk.DestroyPipeline(b.device(), vp, b.context.Allocator)
	}
}
