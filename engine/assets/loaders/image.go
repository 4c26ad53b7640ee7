package loaders

import (
	"fmt"
	"image"
	"image/draw"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"io"
	"os"
	"path/filepath"

	"github.com/anthonynsimon/bild/transform"
	"github.com/spaghettifunk/penumbra/engine/renderer/resources"
	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

// ImageSource decodes an image file into RGBA8 when the texture is uploaded.
type ImageSource struct {
	Path string
	// FlipY mirrors rows so the first row is the bottom of the image.
	FlipY bool
	// FitWidth and FitHeight, when both set, resample the image to that size.
	FitWidth, FitHeight uint32
}

func NewImageSource(path string) *ImageSource {
	return &ImageSource{Path: path}
}

// Fit resamples the decoded image to width x height.
func (s *ImageSource) Fit(width, height uint32) *ImageSource {
	s.FitWidth, s.FitHeight = width, height
	return s
}

func (s *ImageSource) Name() string { return filepath.Base(s.Path) }

func (s *ImageSource) Decode() (uint32, uint32, []byte, error) {
	f, err := os.Open(s.Path)
	if err != nil {
		return 0, 0, nil, err
	}
	defer f.Close()
	return s.decode(f)
}

func (s *ImageSource) decode(r io.Reader) (uint32, uint32, []byte, error) {
	img, _, err := image.Decode(r)
	if err != nil {
		return 0, 0, nil, fmt.Errorf("%s: %w", s.Path, err)
	}
	if s.FitWidth > 0 && s.FitHeight > 0 {
		b := img.Bounds()
		if uint32(b.Dx()) != s.FitWidth || uint32(b.Dy()) != s.FitHeight {
			img = transform.Resize(img, int(s.FitWidth), int(s.FitHeight), transform.Linear)
		}
	}
	rgba := ToRGBA(img)
	if s.FlipY {
		flipRows(rgba)
	}
	b := rgba.Bounds()
	return uint32(b.Dx()), uint32(b.Dy()), rgba.Pix, nil
}

// ToRGBA returns img as a tightly packed RGBA image with origin (0, 0).
func ToRGBA(img image.Image) *image.RGBA {
	b := img.Bounds()
	if rgba, ok := img.(*image.RGBA); ok && rgba.Stride == b.Dx()*4 && b.Min == (image.Point{}) {
		return rgba
	}
	rgba := image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(rgba, rgba.Bounds(), img, b.Min, draw.Src)
	return rgba
}

func flipRows(img *image.RGBA) {
	h := img.Bounds().Dy()
	row := make([]byte, img.Stride)
	for y := 0; y < h/2; y++ {
		top := img.Pix[y*img.Stride : (y+1)*img.Stride]
		bottom := img.Pix[(h-1-y)*img.Stride : (h-y)*img.Stride]
		copy(row, top)
		copy(top, bottom)
		copy(bottom, row)
	}
}

var _ resources.TextureSource = (*ImageSource)(nil)
