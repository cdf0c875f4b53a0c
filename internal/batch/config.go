package batch

import (
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/MeKo-Tech/cropocr/internal/layout"
	"github.com/MeKo-Tech/cropocr/internal/ocr"
	"github.com/MeKo-Tech/cropocr/internal/pipeline"
	"github.com/MeKo-Tech/cropocr/internal/textclean"
)

// DefaultWorkers is the number of images processed concurrently when
// Config.Workers is not set.
const DefaultWorkers = 4

// Config holds all configuration for batch extraction.
type Config struct {
	Layout    layout.Layout
	Extractor ocr.Extractor

	// AnnotationsDir holds <image base name>.json canvases. Empty means the
	// canvas sits next to each image.
	AnnotationsDir string
	MaxImagePixels int
	CleanOptions   textclean.Options

	// Parallel processing settings
	Workers int

	// File discovery settings
	Recursive       bool
	IncludePatterns []string
	ExcludePatterns []string
}

// ImageResult is the outcome for one image. Exactly one of Result and Err is set.
type ImageResult struct {
	File   string
	Result *pipeline.Result
	Err    error
}

// Result holds the result of batch processing.
type Result struct {
	Layout      layout.Layout
	Images      []ImageResult
	Duration    time.Duration
	WorkerCount int
}

// Failed returns the number of images that produced no row.
func (r *Result) Failed() int {
	n := 0
	for _, img := range r.Images {
		if img.Err != nil {
			n++
		}
	}
	return n
}

// Err joins the per-image errors.
func (r *Result) Err() error {
	var errs []error
	for _, img := range r.Images {
		if img.Err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", img.File, img.Err))
		}
	}
	return errors.Join(errs...)
}

// FormatResults formats the batch results in the specified format.
func (r *Result) FormatResults(format string) (string, error) {
	return formatBatchResults(r, format)
}

// SaveResults writes the formatted results to outputFile, or to w when
// outputFile is empty.
func (r *Result) SaveResults(w io.Writer, format, outputFile string) error {
	output, err := r.FormatResults(format)
	if err != nil {
		return fmt.Errorf("failed to format results: %w", err)
	}
	if outputFile != "" {
		if err := os.WriteFile(outputFile, []byte(output), 0o600); err != nil {
			return fmt.Errorf("failed to write output file: %w", err)
		}
		return nil
	}
	_, err = io.WriteString(w, output)
	return err
}

// PrintStats prints processing statistics.
func (r *Result) PrintStats(w io.Writer) {
	total := len(r.Images)
	failed := r.Failed()
	_, _ = fmt.Fprintf(w, "\nProcessing Statistics:\n")
	_, _ = fmt.Fprintf(w, "  Total images: %d\n", total)
	_, _ = fmt.Fprintf(w, "  Processed: %d\n", total-failed)
	_, _ = fmt.Fprintf(w, "  Failed: %d\n", failed)
	_, _ = fmt.Fprintf(w, "  Workers: %d\n", r.WorkerCount)
	_, _ = fmt.Fprintf(w, "  Duration: %v\n", r.Duration.Round(time.Millisecond))
	if total > 0 {
		_, _ = fmt.Fprintf(w, "  Avg per image: %v\n", (r.Duration / time.Duration(total)).Round(time.Millisecond))
	}
}

func (c *Config) workers() int {
	if c.Workers > 0 {
		return c.Workers
	}
	return DefaultWorkers
}
