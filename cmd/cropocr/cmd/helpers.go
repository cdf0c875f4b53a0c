package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/MeKo-Tech/cropocr/internal/config"
	"github.com/MeKo-Tech/cropocr/internal/ocr"
	"github.com/MeKo-Tech/cropocr/internal/pipeline"
	"github.com/MeKo-Tech/cropocr/internal/region"
	"github.com/MeKo-Tech/cropocr/internal/utils"
)

// openSession decodes the image at path and pairs it with the configured
// layout.
func openSession(cfg *config.Config, path string) (*pipeline.Session, error) {
	reg, err := cfg.LoadLayouts()
	if err != nil {
		return nil, err
	}
	l, err := reg.Get(cfg.Layout)
	if err != nil {
		return nil, err
	}

	data, err := os.ReadFile(path) //nolint:gosec // G304: Reading user-provided image file path is expected
	if err != nil {
		return nil, fmt.Errorf("failed to read image: %w", err)
	}
	img, meta, err := utils.DecodeImage(data, cfg.MaxImagePixels)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	slog.Debug("Image loaded", "path", path, "format", meta.Format, "width", meta.Width, "height", meta.Height)
	return pipeline.NewSession(img, l)
}

// readAnnotations parses a canvas JSON file.
func readAnnotations(path string) ([]region.Annotation, error) {
	if path == "" {
		return nil, fmt.Errorf("--annotations is required")
	}
	data, err := os.ReadFile(path) //nolint:gosec // G304: Reading user-provided annotations file path is expected
	if err != nil {
		return nil, fmt.Errorf("failed to read annotations: %w", err)
	}
	return region.ParseCanvas(data)
}

// newExtractor builds the configured OCR backend.
func newExtractor(cfg *config.Config) (ocr.Extractor, error) {
	ocrCfg := cfg.ToOCRConfig()
	if strings.EqualFold(ocrCfg.Backend, ocr.BackendRemote) && ocrCfg.APIKey == "" {
		slog.Warn("No OCR API key configured; set " + config.APIKeyEnv + " or ocr.api_key")
	}
	return ocr.New(ocrCfg)
}

// writeOutput writes data to path, or to the command's stdout when path is
// empty or "-".
func writeOutput(cmd *cobra.Command, path string, data []byte) error {
	if path == "" || path == "-" {
		_, err := cmd.OutOrStdout().Write(data)
		return err
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return fmt.Errorf("failed to create output directory: %w", err)
		}
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("failed to write output file: %w", err)
	}
	slog.Debug("Output written", "path", path, "bytes", len(data))
	return nil
}

// signalContext is cancelled on SIGINT or SIGTERM.
func signalContext(cmd *cobra.Command) (context.Context, context.CancelFunc) {
	parent := cmd.Context()
	if parent == nil {
		parent = context.Background()
	}
	return signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
}

// cropFileName names a saved crop after its index and field.
func cropFileName(index int, field string) string {
	name := strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
			return r
		default:
			return '_'
		}
	}, field)
	return fmt.Sprintf("%02d_%s.jpg", index, strings.ToLower(name))
}

// flagOr returns the string flag when it was set, otherwise fallback.
func flagOr(cmd *cobra.Command, name, fallback string) string {
	if cmd.Flags().Changed(name) {
		v, _ := cmd.Flags().GetString(name)
		return v
	}
	return fallback
}
