// Package testutil provides synthetic images, canvas fixtures and a fake OCR
// service for tests.
package testutil

import (
	"bytes"
	"image"
	"image/color"
	"image/draw"
	"image/jpeg"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
)

// Quadrant colours used by QuadrantImage.
var (
	TopLeftColor     = color.NRGBA{R: 255, A: 255}
	TopRightColor    = color.NRGBA{G: 255, A: 255}
	BottomLeftColor  = color.NRGBA{B: 255, A: 255}
	BottomRightColor = color.NRGBA{R: 255, G: 255, A: 255}
)

// SolidImage returns a w x h image filled with c.
func SolidImage(w, h int, c color.Color) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	draw.Draw(img, img.Bounds(), &image.Uniform{C: c}, image.Point{}, draw.Src)
	return img
}

// QuadrantImage returns a w x h image split into four coloured quadrants, so
// crops can be checked by their corner colours.
func QuadrantImage(w, h int) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	mx, my := w/2, h/2
	draw.Draw(img, image.Rect(0, 0, mx, my), &image.Uniform{C: TopLeftColor}, image.Point{}, draw.Src)
	draw.Draw(img, image.Rect(mx, 0, w, my), &image.Uniform{C: TopRightColor}, image.Point{}, draw.Src)
	draw.Draw(img, image.Rect(0, my, mx, h), &image.Uniform{C: BottomLeftColor}, image.Point{}, draw.Src)
	draw.Draw(img, image.Rect(mx, my, w, h), &image.Uniform{C: BottomRightColor}, image.Point{}, draw.Src)
	return img
}

// TextAt is a label drawn at a position by LabelImage.
type TextAt struct {
	Text string
	X, Y int
}

// LabelImage returns a white w x h image with black labels drawn at the
// given baselines, resembling a shipping label.
func LabelImage(w, h int, labels ...TextAt) *image.NRGBA {
	img := SolidImage(w, h, color.White)
	d := &font.Drawer{
		Dst:  img,
		Src:  image.NewUniform(color.Black),
		Face: basicfont.Face7x13,
	}
	for _, l := range labels {
		d.Dot = fixed.P(l.X, l.Y)
		d.DrawString(l.Text)
	}
	return img
}

// EncodePNG encodes img as PNG.
func EncodePNG(t *testing.T, img image.Image) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

// EncodeJPEG encodes img as JPEG at quality 95.
func EncodeJPEG(t *testing.T, img image.Image) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, jpeg.Encode(&buf, img, &jpeg.Options{Quality: 95}))
	return buf.Bytes()
}

// WriteImage writes img as PNG (or JPEG for .jpg/.jpeg paths) and returns path.
func WriteImage(t *testing.T, img image.Image, path string) string {
	t.Helper()
	require.NoError(t, EnsureDir(filepath.Dir(path)))
	var data []byte
	switch filepath.Ext(path) {
	case ".jpg", ".jpeg":
		data = EncodeJPEG(t, img)
	default:
		data = EncodePNG(t, img)
	}
	require.NoError(t, os.WriteFile(path, data, 0o600))
	return path
}
