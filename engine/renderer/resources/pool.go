// Package resources owns the GPU buffers and images of a renderer session.
//
// Buffers and images live in append-only arenas: a handle's index never
// changes and destroying a slot leaves a hole. Each slot carries a
// generation which is bumped on destroy, so stale handles are rejected.
// A Pool is driven from the render goroutine and is not safe for concurrent
// use.
package resources

import (
	"fmt"

	"github.com/charmbracelet/log"
	"github.com/spaghettifunk/penumbra/engine/core"
	"github.com/spaghettifunk/penumbra/engine/renderer/gpu"
)

// HostVisible is the property set used for every CPU-written buffer.
const HostVisible = gpu.MemoryHostVisible | gpu.MemoryHostCoherent

type bufferEntry struct {
	buffer     gpu.Buffer
	memory     gpu.Memory
	size       uint64
	usage      gpu.BufferUsage
	generation uint32
	alive      bool

	// ring slot for per-frame buffers, -1 otherwise
	frameSlot int
}

type Pool struct {
	dev      gpu.Device
	ringSize int
	buffers  []bufferEntry
	images   []imageEntry
	guard    *FrameGuard
	logger   *log.Logger
}

type Option func(*Pool)

// WithFrameGuard rejects writes to per-frame buffers whose ring slot has
// been submitted but not yet observed idle.
func WithFrameGuard() Option {
	return func(p *Pool) {
		p.guard = newFrameGuard(p.ringSize)
	}
}

func New(dev gpu.Device, ringSize int, opts ...Option) *Pool {
	if ringSize < 1 {
		ringSize = 1
	}
	p := &Pool{
		dev:      dev,
		ringSize: ringSize,
		logger:   core.Logger("resources"),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

func (p *Pool) Device() gpu.Device { return p.dev }
func (p *Pool) RingSize() int      { return p.ringSize }

// FindMemoryType returns the first memory type allowed by typeBits whose
// property flags equal props exactly.
func (p *Pool) FindMemoryType(typeBits uint32, props gpu.MemoryProperty) (uint32, error) {
	for i, t := range p.dev.MemoryTypes() {
		if typeBits&(1<<uint(i)) != 0 && t.Properties == props {
			return uint32(i), nil
		}
	}
	return 0, core.Resource("resources.FindMemoryType", fmt.Errorf("%w: bits %#b props %#x", ErrNoMemoryType, typeBits, props))
}

// allocate backs reqs with memory of the given properties.
func (p *Pool) allocate(reqs gpu.MemoryRequirements, props gpu.MemoryProperty) (gpu.Memory, error) {
	typeIndex, err := p.FindMemoryType(reqs.TypeBits, props)
	if err != nil {
		return 0, err
	}
	mem, err := p.dev.AllocateMemory(reqs.Size, typeIndex)
	if err != nil {
		return 0, core.Resource("resources.allocate", err)
	}
	return mem, nil
}

func (p *Pool) createRaw(size uint64, usage gpu.BufferUsage, props gpu.MemoryProperty) (gpu.Buffer, gpu.Memory, error) {
	buf, reqs, err := p.dev.CreateBuffer(gpu.BufferDesc{Size: size, Usage: usage})
	if err != nil {
		return 0, 0, core.Resource("resources.CreateBuffer", err)
	}
	mem, err := p.allocate(reqs, props)
	if err != nil {
		p.dev.DestroyBuffer(buf)
		return 0, 0, err
	}
	if err := p.dev.BindBufferMemory(buf, mem); err != nil {
		p.dev.FreeMemory(mem)
		p.dev.DestroyBuffer(buf)
		return 0, 0, core.Resource("resources.CreateBuffer", err)
	}
	return buf, mem, nil
}

// CreateBuffer appends one buffer, or one per ring slot when perFrame is
// set, and returns the handle of the first.
func (p *Pool) CreateBuffer(size uint64, usage gpu.BufferUsage, props gpu.MemoryProperty, perFrame bool) (BufferHandle, error) {
	count := 1
	if perFrame {
		count = p.ringSize
	}
	first := BufferHandle{Index: uint32(len(p.buffers))}
	for i := 0; i < count; i++ {
		buf, mem, err := p.createRaw(size, usage, props)
		if err != nil {
			// release the ring copies made so far; their handle is never returned
			for j := int(first.Index); j < len(p.buffers); j++ {
				p.destroyBufferEntry(&p.buffers[j])
			}
			p.buffers = p.buffers[:first.Index]
			return BufferHandle{}, err
		}
		slot := -1
		if perFrame {
			slot = i
		}
		p.buffers = append(p.buffers, bufferEntry{
			buffer:    buf,
			memory:    mem,
			size:      size,
			usage:     usage,
			alive:     true,
			frameSlot: slot,
		})
	}
	p.logger.Debug("created buffer", "handle", first, "size", size, "copies", count)
	return first, nil
}

func (p *Pool) CreateVertexBuffer(data []byte) (BufferHandle, error) {
	return p.createWith(data, gpu.BufferUsageVertex)
}

func (p *Pool) CreateIndexBuffer(data []byte) (BufferHandle, error) {
	return p.createWith(data, gpu.BufferUsageIndex)
}

// CreateUniformBuffer creates a per-frame uniform buffer.
func (p *Pool) CreateUniformBuffer(size uint64) (BufferHandle, error) {
	return p.CreateBuffer(size, gpu.BufferUsageUniform, HostVisible, true)
}

func (p *Pool) createWith(data []byte, usage gpu.BufferUsage) (BufferHandle, error) {
	h, err := p.CreateBuffer(uint64(len(data)), usage, HostVisible, false)
	if err != nil {
		return BufferHandle{}, err
	}
	if err := p.UpdateBuffer(h, data); err != nil {
		return BufferHandle{}, err
	}
	return h, nil
}

func (p *Pool) lookupBuffer(op string, h BufferHandle) (*bufferEntry, error) {
	if h.Slot < 0 || h.Slot >= p.ringSize {
		return nil, core.Usage(op, fmt.Errorf("%w: %s, ring has %d slots", ErrOutOfRange, h, p.ringSize))
	}
	if int(h.Index) >= len(p.buffers) {
		return nil, core.Usage(op, fmt.Errorf("%w: %s of %d", ErrOutOfRange, h, len(p.buffers)))
	}
	e := &p.buffers[h.Index]
	// a slot derived past the end of its ring lands on another buffer
	if (e.frameSlot < 0 && h.Slot != 0) || (e.frameSlot >= 0 && e.frameSlot != h.Slot) {
		return nil, core.Usage(op, fmt.Errorf("%w: %s is not a slot of its ring", ErrOutOfRange, h))
	}
	if !e.alive || e.generation != h.Generation {
		return nil, core.Usage(op, fmt.Errorf("%w: %s", ErrStaleHandle, h))
	}
	return e, nil
}

// UpdateBuffer copies data to the start of the memory backing h.
func (p *Pool) UpdateBuffer(h BufferHandle, data []byte) error {
	const op = "resources.UpdateBuffer"
	e, err := p.lookupBuffer(op, h)
	if err != nil {
		return err
	}
	if uint64(len(data)) > e.size {
		return core.Usage(op, fmt.Errorf("%w: %d > %d", ErrBufferOverflow, len(data), e.size))
	}
	if p.guard != nil && e.frameSlot >= 0 && p.guard.inFlight(e.frameSlot) {
		return core.Usage(op, fmt.Errorf("%w: slot %d", ErrSlotInFlight, e.frameSlot))
	}
	if err := p.dev.WriteMemory(e.memory, 0, data); err != nil {
		return core.Resource(op, err)
	}
	return nil
}

// Buffer resolves h to the driver buffer.
func (p *Pool) Buffer(h BufferHandle) (gpu.Buffer, error) {
	e, err := p.lookupBuffer("resources.Buffer", h)
	if err != nil {
		return 0, err
	}
	return e.buffer, nil
}

func (p *Pool) BufferSize(h BufferHandle) (uint64, error) {
	e, err := p.lookupBuffer("resources.BufferSize", h)
	if err != nil {
		return 0, err
	}
	return e.size, nil
}

// Destroy frees one physical buffer. Ring copies of a per-frame buffer are
// destroyed individually through h.At(slot).
func (p *Pool) Destroy(h BufferHandle) error {
	e, err := p.lookupBuffer("resources.Destroy", h)
	if err != nil {
		return err
	}
	p.destroyBufferEntry(e)
	return nil
}

func (p *Pool) destroyBufferEntry(e *bufferEntry) {
	if !e.alive {
		return
	}
	p.dev.FreeMemory(e.memory)
	p.dev.DestroyBuffer(e.buffer)
	e.alive = false
	e.generation++
}

// Len returns the number of physical buffer slots ever created.
func (p *Pool) Len() int { return len(p.buffers) }

// Alive returns the number of buffers not yet destroyed.
func (p *Pool) Alive() int {
	n := 0
	for i := range p.buffers {
		if p.buffers[i].alive {
			n++
		}
	}
	return n
}

// Teardown destroys every live image and buffer. Calling it again is a
// no-op.
func (p *Pool) Teardown() {
	for i := range p.images {
		p.destroyImageEntry(&p.images[i])
	}
	for i := range p.buffers {
		p.destroyBufferEntry(&p.buffers[i])
	}
}

// MarkInFlight records that slot was submitted. No-op without a frame guard.
func (p *Pool) MarkInFlight(slot int) {
	if p.guard != nil {
		p.guard.mark(slot, true)
	}
}

// MarkIdle records that slot's fence was observed signaled.
func (p *Pool) MarkIdle(slot int) {
	if p.guard != nil {
		p.guard.mark(slot, false)
	}
}
