// Package ocr extracts text from cropped regions, by default through a
// hosted OCR REST API.
package ocr

import (
	"context"
	"errors"
	"fmt"
	"image"
	"strings"
)

// Placeholder is the text reported when the service finds nothing or fails.
const Placeholder = "No text found"

// Source identifies where a text value came from.
type Source string

const (
	SourceRemote    Source = "remote"
	SourceTesseract Source = "tesseract"
	SourceFallback  Source = "fallback"
	SourceSkipped   Source = "skipped"
)

// Text is the outcome of one extraction. Found is false when the service
// answered without a text field. Err holds the failure a Fallback absorbed.
type Text struct {
	Value  string `json:"text"`
	Found  bool   `json:"found"`
	Source Source `json:"source"`
	Err    error  `json:"-"`
}

// Extractor extracts text from a single image.
type Extractor interface {
	Extract(ctx context.Context, img image.Image) (Text, error)
}

// ExtractorFunc adapts a function to Extractor.
type ExtractorFunc func(ctx context.Context, img image.Image) (Text, error)

// Extract calls f.
func (f ExtractorFunc) Extract(ctx context.Context, img image.Image) (Text, error) { return f(ctx, img) }

// RemoteServiceError reports a failed or malformed OCR service call.
type RemoteServiceError struct {
	StatusCode int
	Attempts   int
	Err        error
}

func (e *RemoteServiceError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("ocr service error (status %d, %d attempt(s)): %v", e.StatusCode, e.Attempts, e.Err)
	}
	return fmt.Sprintf("ocr service error (%d attempt(s)): %v", e.Attempts, e.Err)
}

func (e *RemoteServiceError) Unwrap() error { return e.Err }

// ErrCircuitOpen is returned while the breaker rejects calls.
var ErrCircuitOpen = errors.New("ocr circuit breaker open")

// Fallback wraps an extractor so failures degrade to Placeholder. The
// returned error is always nil except for context cancellation; the absorbed
// failure is kept in Text.Err.
type Fallback struct {
	Next Extractor
}

// Extract runs the wrapped extractor and substitutes Placeholder on failure.
func (f Fallback) Extract(ctx context.Context, img image.Image) (Text, error) {
	if f.Next == nil {
		return Text{Value: Placeholder, Source: SourceSkipped}, nil
	}
	txt, err := f.Next.Extract(ctx, img)
	if err == nil {
		return txt, nil
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		return Text{}, ctxErr
	}
	return Text{Value: Placeholder, Source: SourceFallback, Err: err}, nil
}

// Backend names accepted by New.
const (
	BackendRemote    = "remote"
	BackendTesseract = "tesseract"
	BackendNone      = "none"
)

// New builds the extractor for the configured backend, guarded by a breaker
// when cfg.BreakerThreshold is positive. BackendNone returns nil (crop only).
func New(cfg Config) (Extractor, error) {
	var ex Extractor
	switch strings.ToLower(cfg.Backend) {
	case "", BackendRemote:
		c, err := NewClient(cfg, nil)
		if err != nil {
			return nil, err
		}
		ex = c
	case BackendTesseract:
		t, err := newTesseract(cfg.Language)
		if err != nil {
			return nil, err
		}
		ex = t
	case BackendNone:
		return nil, nil
	default:
		return nil, fmt.Errorf("unknown ocr backend: %q", cfg.Backend)
	}

	if cfg.BreakerThreshold > 0 {
		ex = NewBreaker(cfg.BreakerThreshold, cfg.BreakerCooldown).Wrap(ex)
	}
	return ex, nil
}
