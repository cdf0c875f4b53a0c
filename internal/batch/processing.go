package batch

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"sync"

	"github.com/MeKo-Tech/cropocr/internal/pipeline"
	"github.com/MeKo-Tech/cropocr/internal/region"
	"github.com/MeKo-Tech/cropocr/internal/utils"
)

// processSingleImage runs one image and its canvas through the pipeline.
func processSingleImage(ctx context.Context, pl *pipeline.Pipeline, path string, config *Config) (*pipeline.Result, error) {
	data, err := os.ReadFile(path) //nolint:gosec // G304: path comes from discovery of user-provided inputs
	if err != nil {
		return nil, fmt.Errorf("failed to read image: %w", err)
	}
	img, _, err := utils.DecodeImage(data, config.MaxImagePixels)
	if err != nil {
		return nil, err
	}

	canvasPath := annotationsPath(path, config.AnnotationsDir)
	canvas, err := os.ReadFile(canvasPath) //nolint:gosec // G304: derived from the image path
	if err != nil {
		return nil, fmt.Errorf("failed to read annotations %s: %w", canvasPath, err)
	}
	annotations, err := region.ParseCanvas(canvas)
	if err != nil {
		return nil, err
	}

	session, err := pipeline.NewSession(img, config.Layout)
	if err != nil {
		return nil, err
	}
	return pl.Run(ctx, session, annotations)
}

// processImagesParallel processes images with a bounded number of workers.
// Results keep the order of imagePaths.
func processImagesParallel(ctx context.Context, pl *pipeline.Pipeline, imagePaths []string,
	config *Config) []ImageResult {
	results := make([]ImageResult, len(imagePaths))
	jobs := make(chan int)

	var wg sync.WaitGroup
	for range min(config.workers(), len(imagePaths)) {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range jobs {
				path := imagePaths[i]
				res, err := processSingleImage(ctx, pl, path, config)
				if err != nil {
					slog.Warn("Image failed", "file", path, "error", err)
				}
				results[i] = ImageResult{File: path, Result: res, Err: err}
			}
		}()
	}

feed:
	for i := range imagePaths {
		select {
		case jobs <- i:
		case <-ctx.Done():
			break feed
		}
	}
	close(jobs)
	wg.Wait()

	for i := range results {
		if results[i].File == "" {
			results[i] = ImageResult{File: imagePaths[i], Err: ctx.Err()}
		}
	}
	return results
}
