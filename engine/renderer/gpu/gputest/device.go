// Package gputest provides an in-memory gpu.Device that records every call,
// for exercising the renderer core without a GPU.
package gputest

import (
	"errors"
	"fmt"
	"sync"

	"github.com/spaghettifunk/penumbra/engine/math"
	"github.com/spaghettifunk/penumbra/engine/renderer/gpu"
)

// Command ops as recorded in Device.Commands.
const (
	OpBeginRenderPass    = "BeginRenderPass"
	OpEndRenderPass      = "EndRenderPass"
	OpBindPipeline       = "BindPipeline"
	OpBindDescriptorSets = "BindDescriptorSets"
	OpSetViewport        = "SetViewport"
	OpSetScissor         = "SetScissor"
	OpBindVertexBuffer   = "BindVertexBuffer"
	OpBindIndexBuffer    = "BindIndexBuffer"
	OpPushConstants      = "PushConstants"
	OpDrawIndexed        = "DrawIndexed"
	OpPipelineBarrier    = "PipelineBarrier"
	OpCopyBufferToImage  = "CopyBufferToImage"
)

type Command struct {
	Op string
	CB gpu.CommandBuffer

	Begin      gpu.RenderPassBegin
	Pipeline   gpu.Pipeline
	Layout     gpu.PipelineLayout
	Sets       []gpu.DescriptorSet
	Viewport   gpu.Viewport
	Scissor    gpu.Rect2D
	Buffer     gpu.Buffer
	Image      gpu.Image
	Stages     gpu.ShaderStage
	Data       []byte
	IndexCount uint32
	SrcStage   gpu.PipelineStage
	DstStage   gpu.PipelineStage
	Barriers   []gpu.ImageBarrier
	Copy       gpu.BufferImageCopy
}

type buffer struct {
	desc   gpu.BufferDesc
	memory gpu.Memory
}

type image struct {
	desc   gpu.ImageDesc
	memory gpu.Memory
}

type commandBuffer struct {
	recording bool
	oneTime   bool
}

// Device is a fake gpu.Device. The zero value is not usable; call New.
// Fields other than the scripted results are read by tests after the fact.
type Device struct {
	mu   sync.Mutex
	next uint64

	Types    []gpu.MemoryType
	DevLimit gpu.Limits
	// Images per swapchain.
	SwapchainImages int
	SurfaceFormat   gpu.Format

	// Scripted results, consumed one per call. nil entries mean success.
	AcquireResults []error
	PresentResults []error
	// FailOn makes the named Device method fail once with the given error.
	FailOn map[string]error
	// FailAfter lets that many calls of a FailOn method succeed first.
	FailAfter map[string]int

	buffers        map[gpu.Buffer]*buffer
	memories       map[gpu.Memory][]byte
	images         map[gpu.Image]*image
	views          map[gpu.ImageView]gpu.ImageViewDesc
	samplers       map[gpu.Sampler]gpu.SamplerDesc
	setLayouts     map[gpu.DescriptorSetLayout][]gpu.DescriptorBinding
	pools          map[gpu.DescriptorPool]PoolInfo
	sets           map[gpu.DescriptorSet]gpu.DescriptorSetLayout
	modules        map[gpu.ShaderModule]int
	layouts        map[gpu.PipelineLayout]gpu.PipelineLayoutDesc
	renderPasses   map[gpu.RenderPass]gpu.RenderPassDesc
	pipelines      map[gpu.Pipeline]gpu.GraphicsPipelineDesc
	framebuffers   map[gpu.Framebuffer]gpu.FramebufferDesc
	commandBuffers map[gpu.CommandBuffer]*commandBuffer
	fences         map[gpu.Fence]bool
	semaphores     map[gpu.Semaphore]struct{}
	swapchains     map[gpu.Swapchain]gpu.SwapchainInfo

	acquired int

	// Recorded activity.
	Commands         []Command
	Submits          []gpu.SubmitInfo
	Presents         []uint32
	DescriptorWrites []gpu.DescriptorWrite
	Created          map[string]int
	QueueIdleWaits   int
	DeviceIdleWaits  int
	// Misuse collects double destroys, unknown handles and recording
	// outside Begin/End. Tests expect it to stay empty.
	Misuse []string
}

type PoolInfo struct {
	MaxSets uint32
	Sizes   []gpu.DescriptorPoolSize
}

// DefaultMemoryTypes is a typical discrete GPU layout.
func DefaultMemoryTypes() []gpu.MemoryType {
	return []gpu.MemoryType{
		{HeapIndex: 0, Properties: gpu.MemoryDeviceLocal},
		{HeapIndex: 1, Properties: gpu.MemoryHostVisible | gpu.MemoryHostCoherent},
		{HeapIndex: 1, Properties: gpu.MemoryHostVisible | gpu.MemoryHostCoherent | gpu.MemoryHostCached},
	}
}

func New() *Device {
	return &Device{
		Types: DefaultMemoryTypes(),
		DevLimit: gpu.Limits{
			MaxSamplerAnisotropy: 16,
			MaxSamples:           gpu.Samples4,
			DepthFormat:          gpu.FormatD32Sfloat,
		},
		SwapchainImages: 3,
		SurfaceFormat:   gpu.FormatB8G8R8A8Unorm,
		FailOn:          map[string]error{},
		FailAfter:       map[string]int{},
		buffers:         map[gpu.Buffer]*buffer{},
		memories:        map[gpu.Memory][]byte{},
		images:          map[gpu.Image]*image{},
		views:           map[gpu.ImageView]gpu.ImageViewDesc{},
		samplers:        map[gpu.Sampler]gpu.SamplerDesc{},
		setLayouts:      map[gpu.DescriptorSetLayout][]gpu.DescriptorBinding{},
		pools:           map[gpu.DescriptorPool]PoolInfo{},
		sets:            map[gpu.DescriptorSet]gpu.DescriptorSetLayout{},
		modules:         map[gpu.ShaderModule]int{},
		layouts:         map[gpu.PipelineLayout]gpu.PipelineLayoutDesc{},
		renderPasses:    map[gpu.RenderPass]gpu.RenderPassDesc{},
		pipelines:       map[gpu.Pipeline]gpu.GraphicsPipelineDesc{},
		framebuffers:    map[gpu.Framebuffer]gpu.FramebufferDesc{},
		commandBuffers:  map[gpu.CommandBuffer]*commandBuffer{},
		fences:          map[gpu.Fence]bool{},
		semaphores:      map[gpu.Semaphore]struct{}{},
		swapchains:      map[gpu.Swapchain]gpu.SwapchainInfo{},
		Created:         map[string]int{},
	}
}

func (d *Device) handle(kind string) uint64 {
	d.next++
	d.Created[kind]++
	return d.next
}

func (d *Device) fail(op string) error {
	if err, ok := d.FailOn[op]; ok {
		if d.FailAfter[op] > 0 {
			d.FailAfter[op]--
			return nil
		}
		delete(d.FailOn, op)
		if err == nil {
			err = fmt.Errorf("gputest: %s failed", op)
		}
		return err
	}
	return nil
}

func (d *Device) misuse(format string, args ...interface{}) {
	d.Misuse = append(d.Misuse, fmt.Sprintf(format, args...))
}

func (d *Device) Limits() gpu.Limits { return d.DevLimit }

func (d *Device) MemoryTypes() []gpu.MemoryType {
	return append([]gpu.MemoryType(nil), d.Types...)
}

func (d *Device) allTypeBits() uint32 {
	return uint32(1)<<uint(len(d.Types)) - 1
}

// ---------------------------------------------------------------------
// buffers and memory
// ---------------------------------------------------------------------

func (d *Device) CreateBuffer(desc gpu.BufferDesc) (gpu.Buffer, gpu.MemoryRequirements, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.fail("CreateBuffer"); err != nil {
		return 0, gpu.MemoryRequirements{}, err
	}
	if desc.Size == 0 {
		return 0, gpu.MemoryRequirements{}, errors.New("gputest: zero sized buffer")
	}
	h := gpu.Buffer(d.handle("Buffer"))
	d.buffers[h] = &buffer{desc: desc}
	return h, gpu.MemoryRequirements{
		Size:      math.AlignUp(desc.Size, 16),
		Alignment: 16,
		TypeBits:  d.allTypeBits(),
	}, nil
}

func (d *Device) DestroyBuffer(b gpu.Buffer) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if _, ok := d.buffers[b]; !ok {
		d.misuse("DestroyBuffer: unknown buffer %d", b)
		return
	}
	delete(d.buffers, b)
}

func (d *Device) AllocateMemory(size uint64, typeIndex uint32) (gpu.Memory, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.fail("AllocateMemory"); err != nil {
		return 0, err
	}
	if int(typeIndex) >= len(d.Types) {
		return 0, fmt.Errorf("gputest: memory type %d out of range", typeIndex)
	}
	h := gpu.Memory(d.handle("Memory"))
	d.memories[h] = make([]byte, size)
	return h, nil
}

func (d *Device) FreeMemory(m gpu.Memory) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if _, ok := d.memories[m]; !ok {
		d.misuse("FreeMemory: unknown memory %d", m)
		return
	}
	delete(d.memories, m)
}

func (d *Device) BindBufferMemory(b gpu.Buffer, m gpu.Memory) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	buf, ok := d.buffers[b]
	if !ok {
		return fmt.Errorf("gputest: bind unknown buffer %d", b)
	}
	if _, ok := d.memories[m]; !ok {
		return fmt.Errorf("gputest: bind unknown memory %d", m)
	}
	buf.memory = m
	return nil
}

func (d *Device) WriteMemory(m gpu.Memory, offset uint64, data []byte) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	mem, ok := d.memories[m]
	if !ok {
		return fmt.Errorf("gputest: write to unknown memory %d", m)
	}
	if offset+uint64(len(data)) > uint64(len(mem)) {
		return fmt.Errorf("gputest: write of %d bytes at %d overflows %d", len(data), offset, len(mem))
	}
	copy(mem[offset:], data)
	return nil
}

// ---------------------------------------------------------------------
// images
// ---------------------------------------------------------------------

func (d *Device) CreateImage(desc gpu.ImageDesc) (gpu.Image, gpu.MemoryRequirements, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.fail("CreateImage"); err != nil {
		return 0, gpu.MemoryRequirements{}, err
	}
	if desc.Width == 0 || desc.Height == 0 {
		return 0, gpu.MemoryRequirements{}, errors.New("gputest: zero sized image")
	}
	layers := max(desc.Layers, 1)
	bpp := max(desc.Format.BytesPerPixel(), 4)
	samples := max(uint32(desc.Samples), 1)
	h := gpu.Image(d.handle("Image"))
	d.images[h] = &image{desc: desc}
	return h, gpu.MemoryRequirements{
		Size:      uint64(desc.Width) * uint64(desc.Height) * uint64(layers) * uint64(bpp) * uint64(samples),
		Alignment: 256,
		TypeBits:  d.allTypeBits(),
	}, nil
}

func (d *Device) DestroyImage(i gpu.Image) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if _, ok := d.images[i]; !ok {
		d.misuse("DestroyImage: unknown image %d", i)
		return
	}
	delete(d.images, i)
}

func (d *Device) BindImageMemory(i gpu.Image, m gpu.Memory) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	img, ok := d.images[i]
	if !ok {
		return fmt.Errorf("gputest: bind unknown image %d", i)
	}
	if _, ok := d.memories[m]; !ok {
		return fmt.Errorf("gputest: bind unknown memory %d", m)
	}
	img.memory = m
	return nil
}

func (d *Device) CreateImageView(desc gpu.ImageViewDesc) (gpu.ImageView, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.fail("CreateImageView"); err != nil {
		return 0, err
	}
	if desc.Image != 0 {
		if _, ok := d.images[desc.Image]; !ok {
			return 0, fmt.Errorf("gputest: view of unknown image %d", desc.Image)
		}
	}
	h := gpu.ImageView(d.handle("ImageView"))
	d.views[h] = desc
	return h, nil
}

func (d *Device) DestroyImageView(v gpu.ImageView) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if _, ok := d.views[v]; !ok {
		d.misuse("DestroyImageView: unknown view %d", v)
		return
	}
	delete(d.views, v)
}

func (d *Device) CreateSampler(desc gpu.SamplerDesc) (gpu.Sampler, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.fail("CreateSampler"); err != nil {
		return 0, err
	}
	h := gpu.Sampler(d.handle("Sampler"))
	d.samplers[h] = desc
	return h, nil
}

func (d *Device) DestroySampler(s gpu.Sampler) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if _, ok := d.samplers[s]; !ok {
		d.misuse("DestroySampler: unknown sampler %d", s)
		return
	}
	delete(d.samplers, s)
}

// ---------------------------------------------------------------------
// descriptors
// ---------------------------------------------------------------------

func (d *Device) CreateDescriptorSetLayout(bindings []gpu.DescriptorBinding) (gpu.DescriptorSetLayout, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.fail("CreateDescriptorSetLayout"); err != nil {
		return 0, err
	}
	h := gpu.DescriptorSetLayout(d.handle("DescriptorSetLayout"))
	d.setLayouts[h] = append([]gpu.DescriptorBinding(nil), bindings...)
	return h, nil
}

func (d *Device) DestroyDescriptorSetLayout(l gpu.DescriptorSetLayout) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if _, ok := d.setLayouts[l]; !ok {
		d.misuse("DestroyDescriptorSetLayout: unknown layout %d", l)
		return
	}
	delete(d.setLayouts, l)
}

func (d *Device) CreateDescriptorPool(maxSets uint32, sizes []gpu.DescriptorPoolSize) (gpu.DescriptorPool, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.fail("CreateDescriptorPool"); err != nil {
		return 0, err
	}
	h := gpu.DescriptorPool(d.handle("DescriptorPool"))
	d.pools[h] = PoolInfo{MaxSets: maxSets, Sizes: append([]gpu.DescriptorPoolSize(nil), sizes...)}
	return h, nil
}

func (d *Device) DestroyDescriptorPool(p gpu.DescriptorPool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if _, ok := d.pools[p]; !ok {
		d.misuse("DestroyDescriptorPool: unknown pool %d", p)
		return
	}
	delete(d.pools, p)
}

func (d *Device) AllocateDescriptorSets(p gpu.DescriptorPool, l gpu.DescriptorSetLayout, count uint32) ([]gpu.DescriptorSet, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.fail("AllocateDescriptorSets"); err != nil {
		return nil, err
	}
	if _, ok := d.pools[p]; !ok {
		return nil, fmt.Errorf("gputest: unknown descriptor pool %d", p)
	}
	if _, ok := d.setLayouts[l]; !ok {
		return nil, fmt.Errorf("gputest: unknown descriptor set layout %d", l)
	}
	sets := make([]gpu.DescriptorSet, count)
	for i := range sets {
		sets[i] = gpu.DescriptorSet(d.handle("DescriptorSet"))
		d.sets[sets[i]] = l
	}
	return sets, nil
}

func (d *Device) UpdateDescriptorSets(writes []gpu.DescriptorWrite) {
	d.mu.Lock()
	defer d.mu.Unlock()
	for _, w := range writes {
		if _, ok := d.sets[w.Set]; !ok {
			d.misuse("UpdateDescriptorSets: unknown set %d", w.Set)
		}
	}
	d.DescriptorWrites = append(d.DescriptorWrites, writes...)
}

// ---------------------------------------------------------------------
// pipelines
// ---------------------------------------------------------------------

func (d *Device) CreateShaderModule(code []byte) (gpu.ShaderModule, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.fail("CreateShaderModule"); err != nil {
		return 0, err
	}
	if len(code) == 0 || len(code)%4 != 0 {
		return 0, fmt.Errorf("gputest: shader code size %d is not a multiple of 4", len(code))
	}
	h := gpu.ShaderModule(d.handle("ShaderModule"))
	d.modules[h] = len(code)
	return h, nil
}

func (d *Device) DestroyShaderModule(m gpu.ShaderModule) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if _, ok := d.modules[m]; !ok {
		d.misuse("DestroyShaderModule: unknown module %d", m)
		return
	}
	delete(d.modules, m)
}

func (d *Device) CreatePipelineLayout(desc gpu.PipelineLayoutDesc) (gpu.PipelineLayout, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.fail("CreatePipelineLayout"); err != nil {
		return 0, err
	}
	h := gpu.PipelineLayout(d.handle("PipelineLayout"))
	d.layouts[h] = desc
	return h, nil
}

func (d *Device) DestroyPipelineLayout(l gpu.PipelineLayout) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if _, ok := d.layouts[l]; !ok {
		d.misuse("DestroyPipelineLayout: unknown layout %d", l)
		return
	}
	delete(d.layouts, l)
}

func (d *Device) CreateRenderPass(desc gpu.RenderPassDesc) (gpu.RenderPass, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.fail("CreateRenderPass"); err != nil {
		return 0, err
	}
	h := gpu.RenderPass(d.handle("RenderPass"))
	d.renderPasses[h] = desc
	return h, nil
}

func (d *Device) DestroyRenderPass(rp gpu.RenderPass) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if _, ok := d.renderPasses[rp]; !ok {
		d.misuse("DestroyRenderPass: unknown render pass %d", rp)
		return
	}
	delete(d.renderPasses, rp)
}

func (d *Device) CreateGraphicsPipeline(desc gpu.GraphicsPipelineDesc) (gpu.Pipeline, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.fail("CreateGraphicsPipeline"); err != nil {
		return 0, err
	}
	if _, ok := d.renderPasses[desc.RenderPass]; !ok {
		return 0, fmt.Errorf("gputest: pipeline uses unknown render pass %d", desc.RenderPass)
	}
	if _, ok := d.layouts[desc.Layout]; !ok {
		return 0, fmt.Errorf("gputest: pipeline uses unknown layout %d", desc.Layout)
	}
	h := gpu.Pipeline(d.handle("Pipeline"))
	d.pipelines[h] = desc
	return h, nil
}

func (d *Device) DestroyPipeline(p gpu.Pipeline) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if _, ok := d.pipelines[p]; !ok {
		d.misuse("DestroyPipeline: unknown pipeline %d", p)
		return
	}
	delete(d.pipelines, p)
}

func (d *Device) CreateFramebuffer(desc gpu.FramebufferDesc) (gpu.Framebuffer, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.fail("CreateFramebuffer"); err != nil {
		return 0, err
	}
	if _, ok := d.renderPasses[desc.RenderPass]; !ok {
		return 0, fmt.Errorf("gputest: framebuffer uses unknown render pass %d", desc.RenderPass)
	}
	for _, v := range desc.Attachments {
		if _, ok := d.views[v]; !ok {
			return 0, fmt.Errorf("gputest: framebuffer uses unknown view %d", v)
		}
	}
	h := gpu.Framebuffer(d.handle("Framebuffer"))
	d.framebuffers[h] = desc
	return h, nil
}

func (d *Device) DestroyFramebuffer(f gpu.Framebuffer) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if _, ok := d.framebuffers[f]; !ok {
		d.misuse("DestroyFramebuffer: unknown framebuffer %d", f)
		return
	}
	delete(d.framebuffers, f)
}

// ---------------------------------------------------------------------
// command buffers
// ---------------------------------------------------------------------

func (d *Device) AllocateCommandBuffers(count uint32) ([]gpu.CommandBuffer, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.fail("AllocateCommandBuffers"); err != nil {
		return nil, err
	}
	out := make([]gpu.CommandBuffer, count)
	for i := range out {
		out[i] = gpu.CommandBuffer(d.handle("CommandBuffer"))
		d.commandBuffers[out[i]] = &commandBuffer{}
	}
	return out, nil
}

func (d *Device) FreeCommandBuffers(cbs ...gpu.CommandBuffer) {
	d.mu.Lock()
	defer d.mu.Unlock()
	for _, cb := range cbs {
		if _, ok := d.commandBuffers[cb]; !ok {
			d.misuse("FreeCommandBuffers: unknown command buffer %d", cb)
			continue
		}
		delete(d.commandBuffers, cb)
	}
}

func (d *Device) BeginCommandBuffer(cb gpu.CommandBuffer, oneTimeSubmit bool) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	c, ok := d.commandBuffers[cb]
	if !ok {
		return fmt.Errorf("gputest: begin unknown command buffer %d", cb)
	}
	if c.recording {
		return fmt.Errorf("gputest: command buffer %d already recording", cb)
	}
	c.recording = true
	c.oneTime = oneTimeSubmit
	return nil
}

func (d *Device) EndCommandBuffer(cb gpu.CommandBuffer) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	c, ok := d.commandBuffers[cb]
	if !ok {
		return fmt.Errorf("gputest: end unknown command buffer %d", cb)
	}
	if !c.recording {
		return fmt.Errorf("gputest: command buffer %d is not recording", cb)
	}
	c.recording = false
	return nil
}

func (d *Device) ResetCommandBuffer(cb gpu.CommandBuffer) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	c, ok := d.commandBuffers[cb]
	if !ok {
		return fmt.Errorf("gputest: reset unknown command buffer %d", cb)
	}
	c.recording = false
	return nil
}

// IsRecording reports whether cb is between Begin and End.
func (d *Device) IsRecording(cb gpu.CommandBuffer) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	c, ok := d.commandBuffers[cb]
	return ok && c.recording
}

// ---------------------------------------------------------------------
// synchronization and queues
// ---------------------------------------------------------------------

func (d *Device) CreateFence(signaled bool) (gpu.Fence, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.fail("CreateFence"); err != nil {
		return 0, err
	}
	h := gpu.Fence(d.handle("Fence"))
	d.fences[h] = signaled
	return h, nil
}

func (d *Device) DestroyFence(f gpu.Fence) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if _, ok := d.fences[f]; !ok {
		d.misuse("DestroyFence: unknown fence %d", f)
		return
	}
	delete(d.fences, f)
}

// WaitFence fails instead of blocking forever on an unsignaled fence, since
// nothing can signal it later in a single-threaded test.
func (d *Device) WaitFence(f gpu.Fence, timeoutNs uint64) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	signaled, ok := d.fences[f]
	if !ok {
		return fmt.Errorf("gputest: wait on unknown fence %d", f)
	}
	if !signaled {
		return fmt.Errorf("gputest: fence %d would never signal", f)
	}
	return nil
}

func (d *Device) ResetFence(f gpu.Fence) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if _, ok := d.fences[f]; !ok {
		return fmt.Errorf("gputest: reset unknown fence %d", f)
	}
	d.fences[f] = false
	return nil
}

func (d *Device) FenceSignaled(f gpu.Fence) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.fences[f]
}

func (d *Device) CreateSemaphore() (gpu.Semaphore, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.fail("CreateSemaphore"); err != nil {
		return 0, err
	}
	h := gpu.Semaphore(d.handle("Semaphore"))
	d.semaphores[h] = struct{}{}
	return h, nil
}

func (d *Device) DestroySemaphore(s gpu.Semaphore) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if _, ok := d.semaphores[s]; !ok {
		d.misuse("DestroySemaphore: unknown semaphore %d", s)
		return
	}
	delete(d.semaphores, s)
}

// Submit completes the work immediately and signals the fence.
func (d *Device) Submit(info gpu.SubmitInfo) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.fail("Submit"); err != nil {
		return err
	}
	c, ok := d.commandBuffers[info.CommandBuffer]
	if !ok {
		return fmt.Errorf("gputest: submit unknown command buffer %d", info.CommandBuffer)
	}
	if c.recording {
		return fmt.Errorf("gputest: submit of command buffer %d still recording", info.CommandBuffer)
	}
	if info.Fence != 0 {
		if _, ok := d.fences[info.Fence]; !ok {
			return fmt.Errorf("gputest: submit with unknown fence %d", info.Fence)
		}
		d.fences[info.Fence] = true
	}
	d.Submits = append(d.Submits, info)
	return nil
}

func (d *Device) QueueWaitIdle() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.QueueIdleWaits++
	return nil
}

func (d *Device) WaitIdle() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.DeviceIdleWaits++
	return nil
}

// ---------------------------------------------------------------------
// swapchain
// ---------------------------------------------------------------------

func (d *Device) CreateSwapchain(desc gpu.SwapchainDesc) (gpu.SwapchainInfo, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.fail("CreateSwapchain"); err != nil {
		return gpu.SwapchainInfo{}, err
	}
	if desc.Width == 0 || desc.Height == 0 {
		return gpu.SwapchainInfo{}, errors.New("gputest: zero sized swapchain")
	}
	info := gpu.SwapchainInfo{
		Handle: gpu.Swapchain(d.handle("Swapchain")),
		Format: d.SurfaceFormat,
		Extent: gpu.Extent2D{Width: desc.Width, Height: desc.Height},
	}
	for i := 0; i < d.SwapchainImages; i++ {
		v := gpu.ImageView(d.handle("ImageView"))
		d.views[v] = gpu.ImageViewDesc{Format: d.SurfaceFormat, Aspect: gpu.AspectColor, LayerCount: 1}
		info.Views = append(info.Views, v)
	}
	d.swapchains[info.Handle] = info
	return info, nil
}

func (d *Device) DestroySwapchain(info gpu.SwapchainInfo) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if _, ok := d.swapchains[info.Handle]; !ok {
		d.misuse("DestroySwapchain: unknown swapchain %d", info.Handle)
		return
	}
	for _, v := range info.Views {
		delete(d.views, v)
	}
	delete(d.swapchains, info.Handle)
}

func (d *Device) AcquireNextImage(sc gpu.Swapchain, signal gpu.Semaphore) (uint32, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	info, ok := d.swapchains[sc]
	if !ok {
		return 0, fmt.Errorf("gputest: acquire on unknown swapchain %d", sc)
	}
	var err error
	if len(d.AcquireResults) > 0 {
		err = d.AcquireResults[0]
		d.AcquireResults = d.AcquireResults[1:]
	}
	if errors.Is(err, gpu.ErrSurfaceOutOfDate) {
		return 0, err
	}
	idx := uint32(d.acquired % len(info.Views))
	d.acquired++
	return idx, err
}

func (d *Device) Present(sc gpu.Swapchain, imageIndex uint32, wait gpu.Semaphore) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if _, ok := d.swapchains[sc]; !ok {
		return fmt.Errorf("gputest: present on unknown swapchain %d", sc)
	}
	d.Presents = append(d.Presents, imageIndex)
	if len(d.PresentResults) > 0 {
		err := d.PresentResults[0]
		d.PresentResults = d.PresentResults[1:]
		return err
	}
	return nil
}

func (d *Device) Destroy() {}
