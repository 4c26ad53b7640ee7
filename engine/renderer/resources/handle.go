package resources

import "fmt"

// BufferHandle names a physical buffer slot in a Pool. For per-frame
// buffers the handle returned by the pool is the slot of frame 0 and the
// remaining ring copies follow it contiguously. Slot is the ring slot the
// handle was derived for; the pool rejects a Slot that is not the entry's
// own.
type BufferHandle struct {
	Index      uint32
	Generation uint32
	Slot       int
}

// At returns the physical handle of ring slot slot of h's ring.
func (h BufferHandle) At(slot int) BufferHandle {
	base := h.Index - uint32(h.Slot)
	return BufferHandle{Index: base + uint32(slot), Generation: h.Generation, Slot: slot}
}

func (h BufferHandle) String() string {
	if h.Slot != 0 {
		return fmt.Sprintf("buffer#%d.%d@%d", h.Index, h.Generation, h.Slot)
	}
	return fmt.Sprintf("buffer#%d.%d", h.Index, h.Generation)
}

type ImageHandle struct {
	Index      uint32
	Generation uint32
}

func (h ImageHandle) String() string {
	return fmt.Sprintf("image#%d.%d", h.Index, h.Generation)
}
