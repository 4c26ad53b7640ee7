package resources

import (
	"fmt"
	"runtime"

	"github.com/spaghettifunk/penumbra/engine/core"
	"github.com/spaghettifunk/penumbra/engine/renderer/gpu"
	"github.com/spaghettifunk/penumbra/engine/systems"
)

// TextureFormat is the format of every uploaded texture.
const TextureFormat = gpu.FormatR8G8B8A8Srgb

// TextureSource yields tightly packed RGBA8 pixels. Decoding is deferred
// until the texture is uploaded.
type TextureSource interface {
	Name() string
	Decode() (width, height uint32, rgba []byte, err error)
}

// Pixels is an already decoded TextureSource.
type Pixels struct {
	Label         string
	Width, Height uint32
	RGBA          []byte
}

func (px Pixels) Name() string { return px.Label }

func (px Pixels) Decode() (uint32, uint32, []byte, error) {
	return px.Width, px.Height, px.RGBA, nil
}

// Texture is an uploaded image with its default view and sampler. Its
// lifetime is the image's: destroy it with Pool.DestroyImage(t.Image).
type Texture struct {
	Image   ImageHandle
	View    gpu.ImageView
	Sampler gpu.Sampler
	Width   uint32
	Height  uint32
	Layers  uint32
}

func decode(op string, src TextureSource) (uint32, uint32, []byte, error) {
	w, h, pix, err := src.Decode()
	if err != nil {
		return 0, 0, nil, core.Resource(op, fmt.Errorf("decode %s: %w", src.Name(), err))
	}
	if uint64(len(pix)) != uint64(w)*uint64(h)*4 {
		return 0, 0, nil, core.Usage(op, fmt.Errorf("%w: %s has %d bytes for %dx%d", ErrDimensionMismatch, src.Name(), len(pix), w, h))
	}
	return w, h, pix, nil
}

type decoded struct {
	width, height uint32
	pixels        []byte
}

// decodeAll decodes srcs concurrently. Results keep the order of srcs.
func decodeAll(op string, srcs []TextureSource) ([]decoded, error) {
	out := make([]decoded, len(srcs))
	if len(srcs) == 1 {
		w, h, pix, err := decode(op, srcs[0])
		out[0] = decoded{w, h, pix}
		return out, err
	}
	js, err := systems.NewJobSystem(min(len(srcs), runtime.NumCPU()), len(srcs))
	if err != nil {
		return nil, err
	}
	defer js.Shutdown()

	fns := make([]func() error, len(srcs))
	for i, src := range srcs {
		fns[i] = func() error {
			w, h, pix, err := decode(op, src)
			out[i] = decoded{w, h, pix}
			return err
		}
	}
	if err := js.RunAll(op, fns); err != nil {
		return nil, err
	}
	return out, nil
}

// upload copies pixels into one layer of image, which must be in
// TransferDst layout.
func (p *Pool) upload(image gpu.Image, layer, width, height uint32, pixels []byte) error {
	staging, mem, err := p.createRaw(uint64(len(pixels)), gpu.BufferUsageTransferSrc, HostVisible)
	if err != nil {
		return err
	}
	defer func() {
		p.dev.FreeMemory(mem)
		p.dev.DestroyBuffer(staging)
	}()
	if err := p.dev.WriteMemory(mem, 0, pixels); err != nil {
		return core.Resource("resources.upload", err)
	}
	err = gpu.RunSingleUse(p.dev, func(cb gpu.CommandBuffer) error {
		p.dev.CmdCopyBufferToImage(cb, staging, image, gpu.BufferImageCopy{
			Aspect: gpu.AspectColor,
			Layer:  layer,
			Width:  width,
			Height: height,
		})
		return nil
	})
	if err != nil {
		return core.Resource("resources.upload", err)
	}
	return nil
}

func (p *Pool) textureSampler(h ImageHandle) (gpu.Sampler, error) {
	return p.CreateSampler(h, gpu.SamplerDesc{
		Filter:        gpu.FilterLinear,
		AddressMode:   gpu.AddressRepeat,
		MaxAnisotropy: p.dev.Limits().MaxSamplerAnisotropy,
		BorderColor:   gpu.BorderFloatOpaqueBlack,
		CompareOp:     gpu.CompareAlways,
	})
}

// CreateTexture uploads a single-layer sampled texture.
func (p *Pool) CreateTexture(src TextureSource) (*Texture, error) {
	const op = "resources.CreateTexture"
	w, h, pixels, err := decode(op, src)
	if err != nil {
		return nil, err
	}
	handle, err := p.CreateImage(gpu.ImageDesc{
		Width:   w,
		Height:  h,
		Layers:  1,
		Format:  TextureFormat,
		Usage:   gpu.ImageUsageTransferDst | gpu.ImageUsageSampled,
		Samples: gpu.Samples1,
	}, gpu.MemoryDeviceLocal)
	if err != nil {
		return nil, err
	}
	image, _ := p.Image(handle)

	if err := p.TransitionLayout(image, TextureFormat, gpu.LayoutUndefined, gpu.LayoutTransferDst, 1); err != nil {
		return nil, err
	}
	if err := p.upload(image, 0, w, h, pixels); err != nil {
		return nil, err
	}
	if err := p.TransitionLayout(image, TextureFormat, gpu.LayoutTransferDst, gpu.LayoutShaderReadOnly, 1); err != nil {
		return nil, err
	}
	view, err := p.CreateView(handle, gpu.ImageViewDesc{Format: TextureFormat, Aspect: gpu.AspectColor, LayerCount: 1})
	if err != nil {
		return nil, err
	}
	sampler, err := p.textureSampler(handle)
	if err != nil {
		return nil, err
	}
	return &Texture{Image: handle, View: view, Sampler: sampler, Width: w, Height: h, Layers: 1}, nil
}

// CreateTextureArray uploads srcs into consecutive layers of a width x
// height array with layerCount layers. Layers past len(srcs) are left
// undefined. Sources are decoded concurrently before the image is created.
// Every source must match width and height; on a mismatch the image stays
// allocated in the pool and is released by Teardown.
func (p *Pool) CreateTextureArray(srcs []TextureSource, width, height, layerCount uint32) (*Texture, error) {
	const op = "resources.CreateTextureArray"
	if len(srcs) == 0 || layerCount == 0 {
		return nil, core.Usage(op, ErrNoSources)
	}
	if uint32(len(srcs)) > layerCount {
		return nil, core.Usage(op, fmt.Errorf("%w: %d textures for %d layers", ErrTooManyLayers, len(srcs), layerCount))
	}
	layers, err := decodeAll(op, srcs)
	if err != nil {
		return nil, err
	}

	handle, err := p.CreateImage(gpu.ImageDesc{
		Width:   width,
		Height:  height,
		Layers:  layerCount,
		Format:  TextureFormat,
		Usage:   gpu.ImageUsageTransferDst | gpu.ImageUsageSampled,
		Samples: gpu.Samples1,
	}, gpu.MemoryDeviceLocal)
	if err != nil {
		return nil, err
	}
	image, _ := p.Image(handle)

	if err := p.TransitionLayout(image, TextureFormat, gpu.LayoutUndefined, gpu.LayoutTransferDst, layerCount); err != nil {
		return nil, err
	}
	for layer, l := range layers {
		if l.width != width || l.height != height {
			return nil, core.Usage(op, fmt.Errorf("%w: %s is %dx%d, array is %dx%d", ErrDimensionMismatch, srcs[layer].Name(), l.width, l.height, width, height))
		}
		if err := p.upload(image, uint32(layer), l.width, l.height, l.pixels); err != nil {
			return nil, err
		}
	}
	if err := p.TransitionLayout(image, TextureFormat, gpu.LayoutTransferDst, gpu.LayoutShaderReadOnly, layerCount); err != nil {
		return nil, err
	}
	view, err := p.CreateView(handle, gpu.ImageViewDesc{
		Format:     TextureFormat,
		Aspect:     gpu.AspectColor,
		LayerCount: layerCount,
		Array:      true,
	})
	if err != nil {
		return nil, err
	}
	sampler, err := p.textureSampler(handle)
	if err != nil {
		return nil, err
	}
	return &Texture{Image: handle, View: view, Sampler: sampler, Width: width, Height: height, Layers: layerCount}, nil
}
