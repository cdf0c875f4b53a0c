package utils

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/jpeg"
	_ "image/png"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// SupportedImageExtensions lists supported file extensions for loading.
var SupportedImageExtensions = []string{".jpg", ".jpeg", ".png"}

// supportedFormats are the decoder names accepted for uploads.
var supportedFormats = map[string]bool{"jpeg": true, "png": true}

// DefaultMaxPixels bounds decoded image size (roughly a 100 megapixel scan).
const DefaultMaxPixels = 100_000_000

// IsSupportedImage reports whether the path has a supported image extension.
func IsSupportedImage(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	for _, s := range SupportedImageExtensions {
		if ext == s {
			return true
		}
	}
	return false
}

// ImageDecodeError reports an upload that could not be turned into an RGB
// image. The pipeline aborts for that upload only.
type ImageDecodeError struct {
	Format string
	Err    error
}

func (e *ImageDecodeError) Error() string {
	if e.Format != "" {
		return fmt.Sprintf("cannot decode %s image: %v", e.Format, e.Err)
	}
	return fmt.Sprintf("cannot decode image: %v", e.Err)
}

func (e *ImageDecodeError) Unwrap() error { return e.Err }

// ImageMetadata captures lightweight file and pixel information.
type ImageMetadata struct {
	Path      string
	Format    string
	SizeBytes int64
	Width     int
	Height    int
}

// DecodeImage decodes JPEG or PNG bytes and normalizes the result to opaque
// RGB. Images larger than maxPixels are rejected before full decoding; a
// non-positive maxPixels uses DefaultMaxPixels.
func DecodeImage(data []byte, maxPixels int) (*image.NRGBA, ImageMetadata, error) {
	if len(data) == 0 {
		return nil, ImageMetadata{}, &ImageDecodeError{Err: errors.New("empty image data")}
	}
	if maxPixels <= 0 {
		maxPixels = DefaultMaxPixels
	}

	cfg, format, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return nil, ImageMetadata{}, &ImageDecodeError{Err: err}
	}
	if !supportedFormats[format] {
		return nil, ImageMetadata{}, &ImageDecodeError{Format: format, Err: errors.New("unsupported format (want jpeg or png)")}
	}
	if cfg.Width <= 0 || cfg.Height <= 0 {
		return nil, ImageMetadata{}, &ImageDecodeError{Format: format, Err: fmt.Errorf("invalid dimensions %dx%d", cfg.Width, cfg.Height)}
	}
	if cfg.Width*cfg.Height > maxPixels {
		return nil, ImageMetadata{}, &ImageDecodeError{
			Format: format,
			Err:    fmt.Errorf("image too large: %dx%d exceeds %d pixels", cfg.Width, cfg.Height, maxPixels),
		}
	}

	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, ImageMetadata{}, &ImageDecodeError{Format: format, Err: err}
	}

	rgb := ToRGB(img)
	meta := ImageMetadata{
		Format:    format,
		SizeBytes: int64(len(data)),
		Width:     rgb.Bounds().Dx(),
		Height:    rgb.Bounds().Dy(),
	}
	return rgb, meta, nil
}

// ReadImage reads all of r and decodes it with DecodeImage.
func ReadImage(r io.Reader, maxPixels int) (*image.NRGBA, ImageMetadata, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, ImageMetadata{}, &ImageDecodeError{Err: err}
	}
	return DecodeImage(data, maxPixels)
}

// LoadImage opens and decodes an image file.
func LoadImage(path string) (*image.NRGBA, ImageMetadata, error) {
	if path == "" {
		return nil, ImageMetadata{}, &ImageDecodeError{Err: errors.New("empty path")}
	}
	if !IsSupportedImage(path) {
		return nil, ImageMetadata{}, &ImageDecodeError{Err: fmt.Errorf("unsupported format: %s", filepath.Ext(path))}
	}

	data, err := os.ReadFile(path) //nolint:gosec // G304: Reading user-provided image file path is expected
	if err != nil {
		return nil, ImageMetadata{}, &ImageDecodeError{Err: err}
	}

	img, meta, err := DecodeImage(data, 0)
	if err != nil {
		return nil, ImageMetadata{}, err
	}
	meta.Path = path
	return img, meta, nil
}

// EncodeJPEG serializes img as JPEG at the given quality (1-100).
func EncodeJPEG(img image.Image, quality int) ([]byte, error) {
	if img == nil {
		return nil, &ImageProcessingError{Operation: "encode", Err: errors.New("input image is nil")}
	}
	if quality <= 0 || quality > 100 {
		quality = jpeg.DefaultQuality
	}
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: quality}); err != nil {
		return nil, &ImageProcessingError{Operation: "encode", Err: err}
	}
	return buf.Bytes(), nil
}
