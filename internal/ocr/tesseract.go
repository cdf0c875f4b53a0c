//go:build tesseract

package ocr

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/png"
	"strings"

	"github.com/otiai10/gosseract/v2"
)

// tesseractExtractor runs a local Tesseract engine through gosseract.
type tesseractExtractor struct {
	language string
}

func newTesseract(language string) (Extractor, error) {
	if language == "" {
		language = DefaultConfig().Language
	}
	return &tesseractExtractor{language: language}, nil
}

func (t *tesseractExtractor) Extract(ctx context.Context, img image.Image) (Text, error) {
	if err := ctx.Err(); err != nil {
		return Text{}, err
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return Text{}, fmt.Errorf("failed to encode crop: %w", err)
	}

	client := gosseract.NewClient()
	defer func() { _ = client.Close() }()

	if err := client.SetLanguage(strings.Split(t.language, "+")...); err != nil {
		return Text{}, fmt.Errorf("failed to set language: %w", err)
	}
	if err := client.SetImageFromBytes(buf.Bytes()); err != nil {
		return Text{}, fmt.Errorf("failed to set image: %w", err)
	}

	text, err := client.Text()
	if err != nil {
		ocrCallsTotal.WithLabelValues(BackendTesseract, "error").Inc()
		return Text{}, fmt.Errorf("tesseract failed: %w", err)
	}
	ocrCallsTotal.WithLabelValues(BackendTesseract, "success").Inc()

	if strings.TrimSpace(text) == "" {
		return Text{Value: Placeholder, Source: SourceTesseract}, nil
	}
	return Text{Value: text, Found: true, Source: SourceTesseract}, nil
}
