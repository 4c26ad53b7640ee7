package resources

import "errors"

var (
	ErrOutOfRange            = errors.New("resource index out of range")
	ErrStaleHandle           = errors.New("resource handle is stale or destroyed")
	ErrNoMemoryType          = errors.New("failed to find suitable memory type")
	ErrBufferOverflow        = errors.New("data larger than buffer")
	ErrSlotInFlight          = errors.New("frame slot still in flight")
	ErrUnsupportedTransition = errors.New("unsupported layout transition")
	ErrDimensionMismatch     = errors.New("texture dimensions do not match")
	ErrNoSources             = errors.New("texture array has no sources")
	ErrTooManyLayers         = errors.New("more textures than array layers")
)
