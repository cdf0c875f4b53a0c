// Package batch extracts regions from many annotated images at once.
package batch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/MeKo-Tech/cropocr/internal/pipeline"
	"github.com/MeKo-Tech/cropocr/internal/textclean"
)

// ProcessBatch discovers the images under imagePaths and runs each one with
// its canvas through the pipeline. Per-image failures are reported in the
// result; only discovery errors and cancellation abort the batch.
func ProcessBatch(ctx context.Context, imagePaths []string, config *Config) (*Result, error) {
	if err := config.Layout.Validate(); err != nil {
		return nil, err
	}

	filter := nameFilter{include: config.IncludePatterns, exclude: config.ExcludePatterns}
	files, err := discoverImages(imagePaths, config.Recursive, filter)
	if err != nil {
		return nil, fmt.Errorf("failed to discover image files: %w", err)
	}
	if len(files) == 0 {
		return nil, errors.New("no image files found")
	}

	clean := config.CleanOptions
	if clean == (textclean.Options{}) {
		clean = textclean.DefaultOptions()
	}
	pl := pipeline.NewBuilder().WithExtractor(config.Extractor).WithCleanOptions(clean).Build()

	startTime := time.Now()
	images := processImagesParallel(ctx, pl, files, config)
	duration := time.Since(startTime)
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	res := &Result{
		Layout:      config.Layout,
		Images:      images,
		Duration:    duration,
		WorkerCount: min(config.workers(), len(files)),
	}
	slog.Info("Batch complete",
		"images", len(files),
		"failed", res.Failed(),
		"workers", res.WorkerCount,
		"duration", duration)
	return res, nil
}
