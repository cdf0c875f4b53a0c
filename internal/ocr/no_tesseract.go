//go:build !tesseract

package ocr

import "errors"

// ErrNoBackend is returned when a backend was not linked into the binary.
var ErrNoBackend = errors.New("ocr: tesseract backend not linked; build with -tags=tesseract")

func newTesseract(string) (Extractor, error) { return nil, ErrNoBackend }
