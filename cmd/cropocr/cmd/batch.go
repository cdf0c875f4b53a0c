package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/MeKo-Tech/cropocr/internal/batch"
)

func newBatchCommand(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "batch PATH...",
		Short: "Extract regions from many annotated images",
		Long: `Extract regions from every image under the given files and directories.
Each image needs a canvas JSON file with the same base name (label.png ->
label.json), next to the image or in --annotations-dir. All images use the
same layout. The output has one row per image.

Examples:
  cropocr batch scans/
  cropocr batch scans/ --annotations-dir canvases/ --workers 8 -o rows.csv
  cropocr batch a.jpg b.jpg --format json`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := a.config
			format, _ := cmd.Flags().GetString("format")
			format = strings.ToLower(format)
			output, _ := cmd.Flags().GetString("output")
			showStats, _ := cmd.Flags().GetBool("stats")
			cfg.OCR.Backend = flagOr(cmd, "ocr-backend", cfg.OCR.Backend)
			cfg.OCR.Endpoint = flagOr(cmd, "ocr-endpoint", cfg.OCR.Endpoint)

			reg, err := cfg.LoadLayouts()
			if err != nil {
				return err
			}
			l, err := reg.Get(cfg.Layout)
			if err != nil {
				return err
			}
			extractor, err := newExtractor(cfg)
			if err != nil {
				return err
			}

			batchConfig := &batch.Config{
				Layout:         l,
				Extractor:      extractor,
				MaxImagePixels: cfg.MaxImagePixels,
				CleanOptions:   cfg.CleanOptions(),
			}
			batchConfig.AnnotationsDir, _ = cmd.Flags().GetString("annotations-dir")
			batchConfig.Workers, _ = cmd.Flags().GetInt("workers")
			batchConfig.Recursive, _ = cmd.Flags().GetBool("recursive")
			batchConfig.IncludePatterns, _ = cmd.Flags().GetStringSlice("include")
			batchConfig.ExcludePatterns, _ = cmd.Flags().GetStringSlice("exclude")

			ctx, cancel := signalContext(cmd)
			defer cancel()

			res, err := batch.ProcessBatch(ctx, args, batchConfig)
			if err != nil {
				return err
			}
			if err := res.SaveResults(cmd.OutOrStdout(), format, output); err != nil {
				return err
			}
			if showStats {
				res.PrintStats(cmd.ErrOrStderr())
			}
			if failed := res.Failed(); failed > 0 {
				return fmt.Errorf("%d of %d images failed: %w", failed, len(res.Images), res.Err())
			}
			return nil
		},
	}

	cmd.Flags().String("annotations-dir", "", "directory with the canvas JSON files (default: next to each image)")
	cmd.Flags().IntP("workers", "w", batch.DefaultWorkers, "number of images processed concurrently")
	cmd.Flags().BoolP("recursive", "r", false, "descend into subdirectories")
	cmd.Flags().StringSlice("include", nil, "only include files matching these glob patterns")
	cmd.Flags().StringSlice("exclude", nil, "skip files matching these glob patterns")
	cmd.Flags().StringP("format", "f", "csv", "output format (csv, json, text)")
	cmd.Flags().StringP("output", "o", "", "output file (default: stdout)")
	cmd.Flags().Bool("stats", false, "print processing statistics to stderr")
	cmd.Flags().String("ocr-backend", "remote", "OCR backend (remote, tesseract, none)")
	cmd.Flags().String("ocr-endpoint", "", "OCR service endpoint URL")
	return cmd
}
