package cmd

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/MeKo-Tech/cropocr/internal/pipeline"
	"github.com/MeKo-Tech/cropocr/internal/utils"
)

func newExtractCommand(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "extract IMAGE",
		Short: "Crop annotated regions and extract their text",
		Long: `Crop every annotated region of IMAGE, read it through the OCR service and
print one row of cleaned texts, one column per layout field.

The annotations file is the JSON document produced by the drawing canvas
({"objects":[{"type":"circle","left":..,"top":..}, ...]}), in canvas
coordinates. Use "cropocr canvas" to obtain the canvas image.

Examples:
  cropocr extract label.jpg --annotations canvas.json
  cropocr extract label.jpg --annotations rects.json --layout rect2 --format json
  cropocr extract label.jpg --annotations canvas.json --crops-dir crops/`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := a.config
			annotationsPath, _ := cmd.Flags().GetString("annotations")
			format := strings.ToLower(flagOr(cmd, "format", cfg.Output.Format))
			output := flagOr(cmd, "output", cfg.Output.File)
			cropsDir := flagOr(cmd, "crops-dir", cfg.Output.CropsDir)
			if !pipeline.ValidFormat(format) {
				return fmt.Errorf("unsupported format %q (want one of %s)", format, strings.Join(pipeline.Formats, ", "))
			}
			cfg.OCR.Backend = flagOr(cmd, "ocr-backend", cfg.OCR.Backend)
			cfg.OCR.Endpoint = flagOr(cmd, "ocr-endpoint", cfg.OCR.Endpoint)

			session, err := openSession(cfg, args[0])
			if err != nil {
				return err
			}
			annotations, err := readAnnotations(annotationsPath)
			if err != nil {
				return err
			}
			extractor, err := newExtractor(cfg)
			if err != nil {
				return err
			}

			p := pipeline.NewBuilder().
				WithExtractor(extractor).
				WithCleanOptions(cfg.CleanOptions()).
				WithKeepCrops(cropsDir != "").
				Build()

			ctx, cancel := signalContext(cmd)
			defer cancel()

			res, err := p.Run(ctx, session, annotations)
			if err != nil {
				return err
			}

			if cropsDir != "" {
				if err := saveCrops(cropsDir, res); err != nil {
					return err
				}
			}

			out, err := pipeline.Render(res, format)
			if err != nil {
				return err
			}
			if !strings.HasSuffix(out, "\n") {
				out += "\n"
			}
			return writeOutput(cmd, output, []byte(out))
		},
	}

	cmd.Flags().StringP("annotations", "a", "", "canvas JSON file with the annotations (required)")
	cmd.Flags().StringP("format", "f", "table", "output format (table, json, csv, text)")
	cmd.Flags().StringP("output", "o", "", "output file (default: stdout)")
	cmd.Flags().String("crops-dir", "", "directory to write the cropped regions as JPEG")
	cmd.Flags().String("ocr-backend", "remote", "OCR backend (remote, tesseract, none)")
	cmd.Flags().String("ocr-endpoint", "", "OCR service endpoint URL")
	return cmd
}

// saveCrops writes each non-degenerate crop of res into dir.
func saveCrops(dir string, res *pipeline.Result) error {
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return fmt.Errorf("failed to create crops directory: %w", err)
	}
	var errs []error
	for _, f := range res.Fields {
		if f.Crop == nil {
			continue
		}
		data, err := utils.EncodeJPEG(f.Crop, 95)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		path := filepath.Join(dir, cropFileName(f.Index, f.Field))
		if err := os.WriteFile(path, data, 0o600); err != nil {
			errs = append(errs, fmt.Errorf("failed to write crop: %w", err))
			continue
		}
		slog.Debug("Crop written", "field", f.Field, "path", path)
	}
	return errors.Join(errs...)
}
