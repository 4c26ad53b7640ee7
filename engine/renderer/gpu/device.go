package gpu

import "errors"

// Presentation results. Drivers return these from AcquireNextImage and
// Present; the frame scheduler recovers from both by recreating the
// swapchain.
var (
	ErrSurfaceOutOfDate  = errors.New("surface out of date")
	ErrSurfaceSuboptimal = errors.New("surface suboptimal")
)

type MemoryType struct {
	HeapIndex  uint32
	Properties MemoryProperty
}

type MemoryRequirements struct {
	Size      uint64
	Alignment uint64
	TypeBits  uint32
}

type Limits struct {
	MaxSamplerAnisotropy float32
	// Highest sample count supported by both color and depth framebuffers.
	MaxSamples  SampleCount
	DepthFormat Format
}

type BufferDesc struct {
	Size  uint64
	Usage BufferUsage
}

type ImageDesc struct {
	Width, Height uint32
	Layers        uint32
	Format        Format
	Usage         ImageUsage
	Samples       SampleCount
}

type ImageViewDesc struct {
	Image      Image
	Format     Format
	Aspect     ImageAspect
	BaseLayer  uint32
	LayerCount uint32
	// Array selects a 2D_ARRAY view even when LayerCount is 1.
	Array bool
}

type SamplerDesc struct {
	Filter      Filter
	AddressMode AddressMode
	// Zero disables anisotropic filtering.
	MaxAnisotropy float32
	BorderColor   BorderColor
	CompareEnable bool
	CompareOp     CompareOp
}

type DescriptorBinding struct {
	Binding uint32
	Kind    DescriptorKind
	Count   uint32
	Stages  ShaderStage
}

type DescriptorPoolSize struct {
	Kind  DescriptorKind
	Count uint32
}

// DescriptorWrite updates one binding of a set. Buffer fields are used for
// uniform buffers, View/Sampler/Layout for combined image samplers.
type DescriptorWrite struct {
	Set     DescriptorSet
	Binding uint32
	Kind    DescriptorKind

	Buffer Buffer
	Offset uint64
	Range  uint64

	View    ImageView
	Sampler Sampler
	Layout  ImageLayout
}

type AttachmentDesc struct {
	Format        Format
	Samples       SampleCount
	LoadOp        LoadOp
	StoreOp       StoreOp
	InitialLayout ImageLayout
	FinalLayout   ImageLayout
}

type AttachmentRef struct {
	Attachment uint32
	Layout     ImageLayout
}

type SubpassDependency struct {
	SrcSubpass, DstSubpass uint32
	SrcStage, DstStage     PipelineStage
	SrcAccess, DstAccess   Access
}

// RenderPassDesc describes a single-subpass render pass.
type RenderPassDesc struct {
	Attachments  []AttachmentDesc
	Color        []AttachmentRef
	Depth        *AttachmentRef
	Resolve      []AttachmentRef
	Dependencies []SubpassDependency
}

type PushConstantRange struct {
	Stages ShaderStage
	Offset uint32
	Size   uint32
}

type PipelineLayoutDesc struct {
	SetLayouts    []DescriptorSetLayout
	PushConstants []PushConstantRange
}

type VertexBinding struct {
	Binding uint32
	Stride  uint32
}

type VertexAttribute struct {
	Location uint32
	Binding  uint32
	Format   Format
	Offset   uint32
}

type GraphicsPipelineDesc struct {
	Vertex   ShaderModule
	Fragment ShaderModule

	VertexBindings   []VertexBinding
	VertexAttributes []VertexAttribute

	Topology    Topology
	PolygonMode PolygonMode
	CullMode    CullMode
	FrontFace   FrontFace
	Samples     SampleCount

	BlendEnable     bool
	ColorAttachment bool

	DepthTest    bool
	DepthWrite   bool
	DepthCompare CompareOp

	// DynamicViewport makes viewport and scissor dynamic state. When false
	// the pipeline bakes in Extent.
	DynamicViewport bool
	Extent          Extent2D

	Layout     PipelineLayout
	RenderPass RenderPass
	Subpass    uint32
}

type FramebufferDesc struct {
	RenderPass  RenderPass
	Attachments []ImageView
	Width       uint32
	Height      uint32
	Layers      uint32
}

type ClearValue struct {
	Color   [4]float32
	Depth   float32
	Stencil uint32
	// IsDepth selects Depth/Stencil instead of Color.
	IsDepth bool
}

func ClearColor(r, g, b, a float32) ClearValue {
	return ClearValue{Color: [4]float32{r, g, b, a}}
}

func ClearDepth(depth float32, stencil uint32) ClearValue {
	return ClearValue{Depth: depth, Stencil: stencil, IsDepth: true}
}

type RenderPassBegin struct {
	RenderPass  RenderPass
	Framebuffer Framebuffer
	Area        Rect2D
	Clear       []ClearValue
}

type ImageBarrier struct {
	Image      Image
	OldLayout  ImageLayout
	NewLayout  ImageLayout
	SrcAccess  Access
	DstAccess  Access
	Aspect     ImageAspect
	BaseLayer  uint32
	LayerCount uint32
}

type BufferImageCopy struct {
	BufferOffset uint64
	Aspect       ImageAspect
	Layer        uint32
	Width        uint32
	Height       uint32
}

type SubmitInfo struct {
	CommandBuffer CommandBuffer
	Wait          Semaphore
	WaitStage     PipelineStage
	Signal        Semaphore
	Fence         Fence
}

type SwapchainDesc struct {
	Width, Height uint32
	VSync         bool
	Old           Swapchain
}

type SwapchainInfo struct {
	Handle Swapchain
	Format Format
	Extent Extent2D
	Views  []ImageView
}

// Commands records into a command buffer. Every method is only valid
// between BeginCommandBuffer and EndCommandBuffer.
type Commands interface {
	CmdBeginRenderPass(cb CommandBuffer, begin RenderPassBegin)
	CmdEndRenderPass(cb CommandBuffer)
	CmdBindPipeline(cb CommandBuffer, pipeline Pipeline)
	CmdBindDescriptorSets(cb CommandBuffer, layout PipelineLayout, firstSet uint32, sets []DescriptorSet)
	CmdSetViewport(cb CommandBuffer, viewport Viewport)
	CmdSetScissor(cb CommandBuffer, scissor Rect2D)
	CmdBindVertexBuffer(cb CommandBuffer, buffer Buffer, offset uint64)
	// Indices are always 32-bit.
	CmdBindIndexBuffer(cb CommandBuffer, buffer Buffer, offset uint64)
	CmdPushConstants(cb CommandBuffer, layout PipelineLayout, stages ShaderStage, offset uint32, data []byte)
	CmdDrawIndexed(cb CommandBuffer, indexCount, instanceCount, firstIndex uint32, vertexOffset int32, firstInstance uint32)
	CmdPipelineBarrier(cb CommandBuffer, src, dst PipelineStage, barriers []ImageBarrier)
	CmdCopyBufferToImage(cb CommandBuffer, src Buffer, dst Image, region BufferImageCopy)
}

// Device owns every GPU object it hands out. Methods are called from the
// render goroutine; drivers serialize queue access internally.
type Device interface {
	Commands

	Limits() Limits
	MemoryTypes() []MemoryType

	CreateBuffer(desc BufferDesc) (Buffer, MemoryRequirements, error)
	DestroyBuffer(buffer Buffer)
	AllocateMemory(size uint64, typeIndex uint32) (Memory, error)
	FreeMemory(memory Memory)
	BindBufferMemory(buffer Buffer, memory Memory) error
	// WriteMemory maps, copies and unmaps host-visible memory.
	WriteMemory(memory Memory, offset uint64, data []byte) error

	CreateImage(desc ImageDesc) (Image, MemoryRequirements, error)
	DestroyImage(image Image)
	BindImageMemory(image Image, memory Memory) error
	CreateImageView(desc ImageViewDesc) (ImageView, error)
	DestroyImageView(view ImageView)
	CreateSampler(desc SamplerDesc) (Sampler, error)
	DestroySampler(sampler Sampler)

	CreateDescriptorSetLayout(bindings []DescriptorBinding) (DescriptorSetLayout, error)
	DestroyDescriptorSetLayout(layout DescriptorSetLayout)
	CreateDescriptorPool(maxSets uint32, sizes []DescriptorPoolSize) (DescriptorPool, error)
	DestroyDescriptorPool(pool DescriptorPool)
	AllocateDescriptorSets(pool DescriptorPool, layout DescriptorSetLayout, count uint32) ([]DescriptorSet, error)
	UpdateDescriptorSets(writes []DescriptorWrite)

	CreateShaderModule(code []byte) (ShaderModule, error)
	DestroyShaderModule(module ShaderModule)
	CreatePipelineLayout(desc PipelineLayoutDesc) (PipelineLayout, error)
	DestroyPipelineLayout(layout PipelineLayout)
	CreateRenderPass(desc RenderPassDesc) (RenderPass, error)
	DestroyRenderPass(pass RenderPass)
	CreateGraphicsPipeline(desc GraphicsPipelineDesc) (Pipeline, error)
	DestroyPipeline(pipeline Pipeline)
	CreateFramebuffer(desc FramebufferDesc) (Framebuffer, error)
	DestroyFramebuffer(framebuffer Framebuffer)

	AllocateCommandBuffers(count uint32) ([]CommandBuffer, error)
	FreeCommandBuffers(buffers ...CommandBuffer)
	BeginCommandBuffer(cb CommandBuffer, oneTimeSubmit bool) error
	EndCommandBuffer(cb CommandBuffer) error
	ResetCommandBuffer(cb CommandBuffer) error

	CreateFence(signaled bool) (Fence, error)
	DestroyFence(fence Fence)
	// WaitFence blocks until the fence signals or timeoutNs elapses.
	WaitFence(fence Fence, timeoutNs uint64) error
	ResetFence(fence Fence) error
	CreateSemaphore() (Semaphore, error)
	DestroySemaphore(semaphore Semaphore)

	Submit(info SubmitInfo) error
	QueueWaitIdle() error
	WaitIdle() error

	CreateSwapchain(desc SwapchainDesc) (SwapchainInfo, error)
	// DestroySwapchain also destroys the swapchain's image views.
	DestroySwapchain(info SwapchainInfo)
	AcquireNextImage(swapchain Swapchain, signal Semaphore) (uint32, error)
	Present(swapchain Swapchain, imageIndex uint32, wait Semaphore) error

	Destroy()
}

// Surface is the presentable window as the frame scheduler sees it.
type Surface interface {
	FramebufferSize() (width, height int)
	// WaitEvents blocks until the window system delivers an event.
	WaitEvents()
	// ConsumeResize reports and clears the resize flag.
	ConsumeResize() bool
}
