package utils

import (
	"bytes"
	"errors"
	"image"
	"image/color"
	"image/gif"
	"image/jpeg"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIsSupportedImage(t *testing.T) {
	cases := []struct {
		path string
		ok   bool
	}{
		{"a.jpg", true},
		{"b.JPEG", true},
		{"c.png", true},
		{"d.bmp", false},
		{"e.tiff", false},
		{"f.gif", false},
	}
	for _, c := range cases {
		if IsSupportedImage(c.path) != c.ok {
			t.Fatalf("IsSupportedImage(%s) expected %v", c.path, c.ok)
		}
	}
}

func solid(w, h int, col color.Color) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := range h {
		for x := range w {
			img.Set(x, y, col)
		}
	}
	return img
}

func encodePNG(t *testing.T, img image.Image) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func TestDecodeImage_PNGNormalizedToRGB(t *testing.T) {
	data := encodePNG(t, solid(10, 20, color.NRGBA{R: 10, G: 20, B: 30, A: 100}))

	img, meta, err := DecodeImage(data, 0)
	require.NoError(t, err)
	assert.Equal(t, "png", meta.Format)
	assert.Equal(t, 10, meta.Width)
	assert.Equal(t, 20, meta.Height)
	assert.Equal(t, int64(len(data)), meta.SizeBytes)

	px := img.NRGBAAt(3, 3)
	assert.Equal(t, uint8(255), px.A)
	assert.Equal(t, uint8(10), px.R)
	assert.Equal(t, uint8(30), px.B)
}

func TestDecodeImage_JPEG(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, jpeg.Encode(&buf, solid(16, 8, color.White), nil))

	img, meta, err := DecodeImage(buf.Bytes(), 0)
	require.NoError(t, err)
	assert.Equal(t, "jpeg", meta.Format)
	assert.Equal(t, image.Rect(0, 0, 16, 8), img.Bounds())
}

func TestDecodeImage_Errors(t *testing.T) {
	var gifBuf bytes.Buffer
	require.NoError(t, gif.Encode(&gifBuf, solid(4, 4, color.Black), nil))

	tests := []struct {
		name string
		data []byte
		max  int
	}{
		{"empty", nil, 0},
		{"garbage", []byte("not an image"), 0},
		{"gif rejected", gifBuf.Bytes(), 0},
		{"too many pixels", encodePNG(t, solid(10, 10, color.White)), 50},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := DecodeImage(tt.data, tt.max)
			var decErr *ImageDecodeError
			require.True(t, errors.As(err, &decErr), "got %v", err)
		})
	}
}

func TestLoadImage(t *testing.T) {
	dir := t.TempDir()
	p := filepath.Join(dir, "test.png")
	require.NoError(t, os.WriteFile(p, encodePNG(t, solid(7, 9, color.White)), 0o600))

	img, meta, err := LoadImage(p)
	require.NoError(t, err)
	assert.Equal(t, p, meta.Path)
	assert.Equal(t, 7, img.Bounds().Dx())

	_, _, err = LoadImage(filepath.Join(dir, "missing.png"))
	require.Error(t, err)
	_, _, err = LoadImage(filepath.Join(dir, "doc.tiff"))
	require.Error(t, err)
	_, _, err = LoadImage("")
	require.Error(t, err)
}

func TestReadImage(t *testing.T) {
	img, _, err := ReadImage(bytes.NewReader(encodePNG(t, solid(3, 3, color.White))), 0)
	require.NoError(t, err)
	assert.Equal(t, 3, img.Bounds().Dy())
}

func TestCrop(t *testing.T) {
	img := solid(100, 60, color.White)

	out, degenerate := Crop(img, image.Rect(10, 10, 40, 30))
	assert.False(t, degenerate)
	assert.Equal(t, 30, out.Bounds().Dx())
	assert.Equal(t, 20, out.Bounds().Dy())

	out, degenerate = Crop(img, image.Rect(90, 50, 150, 90))
	assert.False(t, degenerate)
	assert.Equal(t, image.Rect(0, 0, 10, 10), out.Bounds(), "clamped to image bounds")
}

func TestCrop_Degenerate(t *testing.T) {
	img := solid(100, 60, color.White)

	cases := map[string]image.Rectangle{
		"zero width":     {Min: image.Pt(20, 10), Max: image.Pt(20, 50)},
		"zero height":    {Min: image.Pt(10, 20), Max: image.Pt(50, 20)},
		"inverted":       {Min: image.Pt(50, 50), Max: image.Pt(10, 10)},
		"outside bounds": image.Rect(200, 200, 300, 300),
	}
	for name, rect := range cases {
		t.Run(name, func(t *testing.T) {
			out, degenerate := Crop(img, rect)
			assert.True(t, degenerate)
			assert.True(t, out.Bounds().Empty())
		})
	}

	_, degenerate := Crop(nil, image.Rect(0, 0, 1, 1))
	assert.True(t, degenerate)
}

func TestDrawRectAndLabel(t *testing.T) {
	dst := image.NewRGBA(image.Rect(0, 0, 50, 50))
	red := color.RGBA{R: 255, A: 255}
	DrawRect(dst, image.Rect(10, 10, 40, 40), red, 2)

	assert.Equal(t, red, dst.RGBAAt(10, 10))
	assert.Equal(t, red, dst.RGBAAt(39, 39))
	assert.Equal(t, red, dst.RGBAAt(11, 20))
	assert.Equal(t, color.RGBA{}, dst.RGBAAt(25, 25))

	DrawLabel(dst, image.Pt(10, 2), "A", color.White, red)
	assert.Equal(t, red, dst.RGBAAt(10, 2), "label background drawn inside top edge")

	DrawLabel(dst, image.Pt(0, 0), "", color.White, red)
}

func TestEncodeJPEG(t *testing.T) {
	data, err := EncodeJPEG(solid(8, 8, color.White), 90)
	require.NoError(t, err)
	_, format, err := image.DecodeConfig(bytes.NewReader(data))
	require.NoError(t, err)
	assert.Equal(t, "jpeg", format)

	_, err = EncodeJPEG(nil, 90)
	require.Error(t, err)
}
