package cmd

import (
	"bytes"
	"errors"
	"fmt"
	"image/png"

	"github.com/spf13/cobra"

	"github.com/MeKo-Tech/cropocr/internal/pipeline"
)

func newPreviewCommand(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "preview IMAGE",
		Short: "Draw the annotated regions onto the image",
		Long: `Map the annotations to image coordinates and write a PNG of IMAGE with one
labelled box per region. No OCR is performed.

Examples:
  cropocr preview label.jpg --annotations canvas.json --output boxes.png
  cropocr preview label.jpg -a rects.json --layout rect2 -o boxes.png --color 00ff00`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := a.config
			annotationsPath, _ := cmd.Flags().GetString("annotations")
			output, _ := cmd.Flags().GetString("output")
			if output == "" {
				return errors.New("--output is required")
			}
			col, err := pipeline.ParseColor(flagOr(cmd, "color", cfg.Output.OverlayColor))
			if err != nil {
				return err
			}

			session, err := openSession(cfg, args[0])
			if err != nil {
				return err
			}
			annotations, err := readAnnotations(annotationsPath)
			if err != nil {
				return err
			}
			mapped, err := pipeline.NewBuilder().Build().Map(session, annotations)
			if err != nil {
				return err
			}

			overlay := pipeline.RenderOverlay(session.Image, pipeline.MappedBoxes(session, mapped), col)
			var buf bytes.Buffer
			if err := png.Encode(&buf, overlay); err != nil {
				return fmt.Errorf("failed to encode preview: %w", err)
			}
			return writeOutput(cmd, output, buf.Bytes())
		},
	}

	cmd.Flags().StringP("annotations", "a", "", "canvas JSON file with the annotations (required)")
	cmd.Flags().StringP("output", "o", "", "PNG output file (use - for stdout)")
	cmd.Flags().String("color", "#ff0000", "box colour (hex)")
	return cmd
}
