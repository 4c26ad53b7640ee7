package loaders

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writePNG(t *testing.T, w, h int, fill func(x, y int) color.NRGBA) string {
	t.Helper()
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetNRGBA(x, y, fill(x, y))
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	path := filepath.Join(t.TempDir(), "tex.png")
	require.NoError(t, os.WriteFile(path, buf.Bytes(), 0o644))
	return path
}

func TestImageSourceDecodesRGBA(t *testing.T) {
	path := writePNG(t, 2, 2, func(x, y int) color.NRGBA {
		return color.NRGBA{R: uint8(x * 255), G: uint8(y * 255), B: 7, A: 255}
	})
	src := NewImageSource(path)
	assert.Equal(t, "tex.png", src.Name())

	w, h, px, err := src.Decode()
	require.NoError(t, err)
	assert.Equal(t, uint32(2), w)
	assert.Equal(t, uint32(2), h)
	require.Len(t, px, 16)
	assert.Equal(t, []byte{0, 0, 7, 255}, px[0:4])
	assert.Equal(t, []byte{255, 0, 7, 255}, px[4:8])
	assert.Equal(t, []byte{0, 255, 7, 255}, px[8:12])
}

func TestImageSourceFlipY(t *testing.T) {
	path := writePNG(t, 1, 2, func(x, y int) color.NRGBA {
		return color.NRGBA{R: uint8(y * 255), A: 255}
	})
	src := NewImageSource(path)
	src.FlipY = true

	_, _, px, err := src.Decode()
	require.NoError(t, err)
	assert.Equal(t, uint8(255), px[0])
	assert.Equal(t, uint8(0), px[4])
}

func TestImageSourceFit(t *testing.T) {
	path := writePNG(t, 4, 2, func(x, y int) color.NRGBA {
		return color.NRGBA{R: 10, G: 20, B: 30, A: 255}
	})
	w, h, px, err := NewImageSource(path).Fit(8, 8).Decode()
	require.NoError(t, err)
	assert.Equal(t, uint32(8), w)
	assert.Equal(t, uint32(8), h)
	assert.Len(t, px, 8*8*4)
}

func TestImageSourceErrors(t *testing.T) {
	_, _, _, err := NewImageSource(filepath.Join(t.TempDir(), "missing.png")).Decode()
	assert.ErrorIs(t, err, os.ErrNotExist)

	path := filepath.Join(t.TempDir(), "junk.png")
	require.NoError(t, os.WriteFile(path, []byte("not an image"), 0o644))
	_, _, _, err = NewImageSource(path).Decode()
	assert.Error(t, err)
}

func TestToRGBAKeepsPackedImages(t *testing.T) {
	img := image.NewRGBA(image.Rect(0, 0, 3, 3))
	assert.Same(t, img, ToRGBA(img))

	sub := img.SubImage(image.Rect(1, 1, 3, 3))
	out := ToRGBA(sub)
	assert.Equal(t, image.Rect(0, 0, 2, 2), out.Bounds())
	assert.Len(t, out.Pix, 16)
}
