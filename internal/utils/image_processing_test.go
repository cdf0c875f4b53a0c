package utils

import (
	"errors"
	"image"
	"image/color"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestToRGB_DropsAlpha(t *testing.T) {
	src := image.NewNRGBA(image.Rect(0, 0, 2, 2))
	src.SetNRGBA(0, 0, color.NRGBA{R: 64, G: 128, B: 192, A: 0})
	src.SetNRGBA(1, 1, color.NRGBA{R: 1, G: 2, B: 3, A: 200})

	out := ToRGB(src)
	assert.Equal(t, color.NRGBA{R: 64, G: 128, B: 192, A: 255}, out.NRGBAAt(0, 0))
	assert.Equal(t, color.NRGBA{R: 1, G: 2, B: 3, A: 255}, out.NRGBAAt(1, 1))
	// Source untouched
	assert.Equal(t, uint8(0), src.NRGBAAt(0, 0).A)
}

func TestToRGB_Gray(t *testing.T) {
	gray := image.NewGray(image.Rect(0, 0, 4, 4))
	gray.SetGray(1, 1, color.Gray{Y: 128})
	out := ToRGB(gray)
	px := out.NRGBAAt(1, 1)
	assert.Equal(t, px.R, px.G)
	assert.Equal(t, uint8(255), px.A)
}

func TestResizeToCanvas(t *testing.T) {
	img := image.NewRGBA(image.Rect(0, 0, 1000, 600))

	got, err := ResizeToCanvas(img, 500, 300)
	require.NoError(t, err)
	assert.Equal(t, image.Rect(0, 0, 500, 300), got.Bounds())

	// Non-uniform stretch
	got, err = ResizeToCanvas(img, 800, 600)
	require.NoError(t, err)
	assert.Equal(t, 800, got.Bounds().Dx())

	same, err := ResizeToCanvas(img, 1000, 600)
	require.NoError(t, err)
	assert.Equal(t, img.Bounds(), same.Bounds())
}

func TestResizeToCanvas_Invalid(t *testing.T) {
	_, err := ResizeToCanvas(nil, 10, 10)
	var procErr *ImageProcessingError
	require.True(t, errors.As(err, &procErr))
	assert.Equal(t, "resize", procErr.Operation)

	_, err = ResizeToCanvas(image.NewRGBA(image.Rect(0, 0, 2, 2)), 0, 10)
	require.Error(t, err)
}
