package resources

import (
	"fmt"

	"github.com/spaghettifunk/penumbra/engine/core"
	"github.com/spaghettifunk/penumbra/engine/renderer/gpu"
)

type imageEntry struct {
	image  gpu.Image
	memory gpu.Memory
	desc   gpu.ImageDesc

	// views and samplers created for this image, destroyed with it
	views      []gpu.ImageView
	samplers   []gpu.Sampler
	generation uint32
	alive      bool
}

// CreateImage creates an image and binds it to fresh memory with exactly
// the given properties.
func (p *Pool) CreateImage(desc gpu.ImageDesc, props gpu.MemoryProperty) (ImageHandle, error) {
	const op = "resources.CreateImage"
	if desc.Layers == 0 {
		desc.Layers = 1
	}
	if desc.Samples == 0 {
		desc.Samples = gpu.Samples1
	}
	img, reqs, err := p.dev.CreateImage(desc)
	if err != nil {
		return ImageHandle{}, core.Resource(op, err)
	}
	mem, err := p.allocate(reqs, props)
	if err != nil {
		p.dev.DestroyImage(img)
		return ImageHandle{}, err
	}
	if err := p.dev.BindImageMemory(img, mem); err != nil {
		p.dev.FreeMemory(mem)
		p.dev.DestroyImage(img)
		return ImageHandle{}, core.Resource(op, err)
	}
	h := ImageHandle{Index: uint32(len(p.images))}
	p.images = append(p.images, imageEntry{
		image:  img,
		memory: mem,
		desc:   desc,
		alive:  true,
	})
	p.logger.Debug("created image", "handle", h, "width", desc.Width, "height", desc.Height, "layers", desc.Layers)
	return h, nil
}

func (p *Pool) lookupImage(op string, h ImageHandle) (*imageEntry, error) {
	if int(h.Index) >= len(p.images) {
		return nil, core.Usage(op, fmt.Errorf("%w: %s of %d", ErrOutOfRange, h, len(p.images)))
	}
	e := &p.images[h.Index]
	if !e.alive || e.generation != h.Generation {
		return nil, core.Usage(op, fmt.Errorf("%w: %s", ErrStaleHandle, h))
	}
	return e, nil
}

// Image resolves h to the driver image.
func (p *Pool) Image(h ImageHandle) (gpu.Image, error) {
	e, err := p.lookupImage("resources.Image", h)
	if err != nil {
		return 0, err
	}
	return e.image, nil
}

func (p *Pool) ImageDesc(h ImageHandle) (gpu.ImageDesc, error) {
	e, err := p.lookupImage("resources.ImageDesc", h)
	if err != nil {
		return gpu.ImageDesc{}, err
	}
	return e.desc, nil
}

// CreateView creates a view of h. The image is filled in from the handle;
// a zero Format or LayerCount defaults to the image's.
func (p *Pool) CreateView(h ImageHandle, desc gpu.ImageViewDesc) (gpu.ImageView, error) {
	const op = "resources.CreateView"
	e, err := p.lookupImage(op, h)
	if err != nil {
		return 0, err
	}
	desc.Image = e.image
	if desc.Format == gpu.FormatUndefined {
		desc.Format = e.desc.Format
	}
	if desc.Aspect == 0 {
		desc.Aspect = desc.Format.Aspect()
	}
	if desc.LayerCount == 0 {
		desc.LayerCount = e.desc.Layers - desc.BaseLayer
	}
	view, err := p.dev.CreateImageView(desc)
	if err != nil {
		return 0, core.Resource(op, err)
	}
	e.views = append(e.views, view)
	return view, nil
}

// CreateSampler creates a sampler owned by h.
func (p *Pool) CreateSampler(h ImageHandle, desc gpu.SamplerDesc) (gpu.Sampler, error) {
	const op = "resources.CreateSampler"
	e, err := p.lookupImage(op, h)
	if err != nil {
		return 0, err
	}
	sampler, err := p.dev.CreateSampler(desc)
	if err != nil {
		return 0, core.Resource(op, err)
	}
	e.samplers = append(e.samplers, sampler)
	return sampler, nil
}

// CreateAttachment creates a device-local render target and its view.
func (p *Pool) CreateAttachment(width, height uint32, format gpu.Format, usage gpu.ImageUsage, samples gpu.SampleCount) (ImageHandle, gpu.ImageView, error) {
	h, err := p.CreateImage(gpu.ImageDesc{
		Width:   width,
		Height:  height,
		Layers:  1,
		Format:  format,
		Usage:   usage,
		Samples: samples,
	}, gpu.MemoryDeviceLocal)
	if err != nil {
		return ImageHandle{}, 0, err
	}
	view, err := p.CreateView(h, gpu.ImageViewDesc{Format: format, Aspect: format.Aspect(), LayerCount: 1})
	if err != nil {
		_ = p.DestroyImage(h)
		return ImageHandle{}, 0, err
	}
	return h, view, nil
}

// DestroyImage destroys the image together with its views and samplers.
func (p *Pool) DestroyImage(h ImageHandle) error {
	e, err := p.lookupImage("resources.DestroyImage", h)
	if err != nil {
		return err
	}
	p.destroyImageEntry(e)
	return nil
}

func (p *Pool) destroyImageEntry(e *imageEntry) {
	if !e.alive {
		return
	}
	for _, s := range e.samplers {
		p.dev.DestroySampler(s)
	}
	for _, v := range e.views {
		p.dev.DestroyImageView(v)
	}
	p.dev.DestroyImage(e.image)
	p.dev.FreeMemory(e.memory)
	e.views = nil
	e.samplers = nil
	e.alive = false
	e.generation++
}

// ImagesAlive returns the number of images not yet destroyed.
func (p *Pool) ImagesAlive() int {
	n := 0
	for i := range p.images {
		if p.images[i].alive {
			n++
		}
	}
	return n
}
