// Package gpu is the driver-neutral contract the renderer core is written
// against. Handles are opaque integers owned by a Device; enum values match
// Vulkan's so the vulkan driver converts them with a plain cast.
package gpu

type (
	Buffer              uint64
	Memory              uint64
	Image               uint64
	ImageView           uint64
	Sampler             uint64
	RenderPass          uint64
	Framebuffer         uint64
	PipelineLayout      uint64
	Pipeline            uint64
	ShaderModule        uint64
	DescriptorSetLayout uint64
	DescriptorPool      uint64
	DescriptorSet       uint64
	CommandBuffer       uint64
	Fence               uint64
	Semaphore           uint64
	Swapchain           uint64
)

// Null handles.
const (
	NullRenderPass RenderPass = 0
	NullFence      Fence      = 0
	NullSemaphore  Semaphore  = 0
)

// SubpassExternal refers to commands outside the render pass in a
// subpass dependency.
const SubpassExternal = ^uint32(0)

// WholeSize maps a buffer or memory range to its end.
const WholeSize = ^uint64(0)

type MemoryProperty uint32

const (
	MemoryDeviceLocal     MemoryProperty = 0x01
	MemoryHostVisible     MemoryProperty = 0x02
	MemoryHostCoherent    MemoryProperty = 0x04
	MemoryHostCached      MemoryProperty = 0x08
	MemoryLazilyAllocated MemoryProperty = 0x10
)

type BufferUsage uint32

const (
	BufferUsageTransferSrc BufferUsage = 0x01
	BufferUsageTransferDst BufferUsage = 0x02
	BufferUsageUniform     BufferUsage = 0x10
	BufferUsageStorage     BufferUsage = 0x20
	BufferUsageIndex       BufferUsage = 0x40
	BufferUsageVertex      BufferUsage = 0x80
)

type ImageUsage uint32

const (
	ImageUsageTransferSrc            ImageUsage = 0x01
	ImageUsageTransferDst            ImageUsage = 0x02
	ImageUsageSampled                ImageUsage = 0x04
	ImageUsageStorage                ImageUsage = 0x08
	ImageUsageColorAttachment        ImageUsage = 0x10
	ImageUsageDepthStencilAttachment ImageUsage = 0x20
	ImageUsageTransientAttachment    ImageUsage = 0x40
)

type ImageAspect uint32

const (
	AspectColor   ImageAspect = 0x1
	AspectDepth   ImageAspect = 0x2
	AspectStencil ImageAspect = 0x4
)

type ImageLayout uint32

const (
	LayoutUndefined              ImageLayout = 0
	LayoutGeneral                ImageLayout = 1
	LayoutColorAttachment        ImageLayout = 2
	LayoutDepthStencilAttachment ImageLayout = 3
	LayoutDepthStencilReadOnly   ImageLayout = 4
	LayoutShaderReadOnly         ImageLayout = 5
	LayoutTransferSrc            ImageLayout = 6
	LayoutTransferDst            ImageLayout = 7
	LayoutPresentSrc             ImageLayout = 1000001002
)

type Format uint32

const (
	FormatUndefined       Format = 0
	FormatR8G8B8A8Unorm   Format = 37
	FormatR8G8B8A8Srgb    Format = 43
	FormatB8G8R8A8Unorm   Format = 44
	FormatB8G8R8A8Srgb    Format = 50
	FormatR32Sfloat       Format = 100
	FormatR32G32Sfloat    Format = 103
	FormatR32G32B32Sfloat Format = 106
	FormatD16Unorm        Format = 124
	FormatD32Sfloat       Format = 126
	FormatD16UnormS8Uint  Format = 128
	FormatD24UnormS8Uint  Format = 129
	FormatD32SfloatS8Uint Format = 130
)

// IsDepth reports whether f is a depth (or depth/stencil) format.
func (f Format) IsDepth() bool {
	switch f {
	case FormatD16Unorm, FormatD32Sfloat, FormatD16UnormS8Uint, FormatD24UnormS8Uint, FormatD32SfloatS8Uint:
		return true
	}
	return false
}

func (f Format) HasStencil() bool {
	switch f {
	case FormatD16UnormS8Uint, FormatD24UnormS8Uint, FormatD32SfloatS8Uint:
		return true
	}
	return false
}

// Aspect returns the image aspect a view or barrier on f must use.
func (f Format) Aspect() ImageAspect {
	if !f.IsDepth() {
		return AspectColor
	}
	if f.HasStencil() {
		return AspectDepth | AspectStencil
	}
	return AspectDepth
}

// BytesPerPixel for the color formats used by uploads.
func (f Format) BytesPerPixel() uint32 {
	switch f {
	case FormatR8G8B8A8Unorm, FormatR8G8B8A8Srgb, FormatB8G8R8A8Unorm, FormatB8G8R8A8Srgb, FormatR32Sfloat, FormatD32Sfloat, FormatD24UnormS8Uint:
		return 4
	case FormatD16Unorm:
		return 2
	case FormatR32G32Sfloat, FormatD32SfloatS8Uint:
		return 8
	case FormatR32G32B32Sfloat:
		return 12
	}
	return 0
}

type SampleCount uint32

const (
	Samples1  SampleCount = 0x01
	Samples2  SampleCount = 0x02
	Samples4  SampleCount = 0x04
	Samples8  SampleCount = 0x08
	Samples16 SampleCount = 0x10
	Samples32 SampleCount = 0x20
	Samples64 SampleCount = 0x40
)

type ShaderStage uint32

const (
	StageVertex   ShaderStage = 0x01
	StageFragment ShaderStage = 0x10
)

type DescriptorKind uint32

const (
	DescriptorCombinedImageSampler DescriptorKind = 1
	DescriptorUniformBuffer        DescriptorKind = 6
)

func (k DescriptorKind) String() string {
	switch k {
	case DescriptorCombinedImageSampler:
		return "combined-image-sampler"
	case DescriptorUniformBuffer:
		return "uniform-buffer"
	}
	return "unknown"
}

type PipelineStage uint32

const (
	StageTopOfPipe             PipelineStage = 0x00000001
	StageVertexShader          PipelineStage = 0x00000008
	StageFragmentShader        PipelineStage = 0x00000080
	StageEarlyFragmentTests    PipelineStage = 0x00000100
	StageLateFragmentTests     PipelineStage = 0x00000200
	StageColorAttachmentOutput PipelineStage = 0x00000400
	StageTransfer              PipelineStage = 0x00001000
	StageBottomOfPipe          PipelineStage = 0x00002000
)

type Access uint32

const (
	AccessNone                        Access = 0
	AccessShaderRead                  Access = 0x00000020
	AccessShaderWrite                 Access = 0x00000040
	AccessColorAttachmentRead         Access = 0x00000080
	AccessColorAttachmentWrite        Access = 0x00000100
	AccessDepthStencilAttachmentRead  Access = 0x00000200
	AccessDepthStencilAttachmentWrite Access = 0x00000400
	AccessTransferRead                Access = 0x00000800
	AccessTransferWrite               Access = 0x00001000
)

type Topology uint32

const (
	TopologyPointList     Topology = 0
	TopologyLineList      Topology = 1
	TopologyLineStrip     Topology = 2
	TopologyTriangleList  Topology = 3
	TopologyTriangleStrip Topology = 4
)

type PolygonMode uint32

const (
	PolygonFill  PolygonMode = 0
	PolygonLine  PolygonMode = 1
	PolygonPoint PolygonMode = 2
)

type CullMode uint32

const (
	CullNone  CullMode = 0
	CullFront CullMode = 1
	CullBack  CullMode = 2
)

type FrontFace uint32

const (
	FrontFaceCounterClockwise FrontFace = 0
	FrontFaceClockwise        FrontFace = 1
)

type CompareOp uint32

const (
	CompareNever       CompareOp = 0
	CompareLess        CompareOp = 1
	CompareEqual       CompareOp = 2
	CompareLessOrEqual CompareOp = 3
	CompareGreater     CompareOp = 4
	CompareAlways      CompareOp = 7
)

type LoadOp uint32

const (
	LoadOpLoad     LoadOp = 0
	LoadOpClear    LoadOp = 1
	LoadOpDontCare LoadOp = 2
)

type StoreOp uint32

const (
	StoreOpStore    StoreOp = 0
	StoreOpDontCare StoreOp = 1
)

type Filter uint32

const (
	FilterNearest Filter = 0
	FilterLinear  Filter = 1
)

type AddressMode uint32

const (
	AddressRepeat         AddressMode = 0
	AddressMirroredRepeat AddressMode = 1
	AddressClampToEdge    AddressMode = 2
	AddressClampToBorder  AddressMode = 3
)

type BorderColor uint32

const (
	BorderFloatTransparentBlack BorderColor = 0
	BorderFloatOpaqueBlack      BorderColor = 2
	BorderFloatOpaqueWhite      BorderColor = 4
)

type Extent2D struct {
	Width, Height uint32
}

// IsZero reports a minimized or not yet sized surface.
func (e Extent2D) IsZero() bool {
	return e.Width == 0 || e.Height == 0
}

type Rect2D struct {
	X, Y          int32
	Width, Height uint32
}

type Viewport struct {
	X, Y, Width, Height float32
	MinDepth, MaxDepth  float32
}
