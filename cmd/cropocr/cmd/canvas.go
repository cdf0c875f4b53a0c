package cmd

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/MeKo-Tech/cropocr/internal/utils"
)

func newCanvasCommand(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "canvas IMAGE",
		Short: "Write the display canvas that annotations are drawn on",
		Long: `Resize IMAGE to the canvas size of the layout and write it as JPEG.
Annotation coordinates are interpreted in this canvas.

Examples:
  cropocr canvas label.jpg --output display.jpg
  cropocr canvas label.jpg --layout rect2 --output display.jpg`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			output, _ := cmd.Flags().GetString("output")
			if output == "" {
				return errors.New("--output is required")
			}
			quality, _ := cmd.Flags().GetInt("quality")

			session, err := openSession(a.config, args[0])
			if err != nil {
				return err
			}
			display, err := session.Display()
			if err != nil {
				return err
			}
			data, err := utils.EncodeJPEG(display, quality)
			if err != nil {
				return err
			}
			if err := writeOutput(cmd, output, data); err != nil {
				return err
			}
			if output != "-" {
				_, _ = fmt.Fprintf(cmd.OutOrStdout(), "canvas %dx%d (image %dx%d, scale %.4fx%.4f)\n",
					session.CanvasWidth, session.CanvasHeight, session.Width(), session.Height(),
					session.Scale.X, session.Scale.Y)
			}
			return nil
		},
	}

	cmd.Flags().StringP("output", "o", "", "JPEG output file (use - for stdout)")
	cmd.Flags().Int("quality", 90, "JPEG quality (1-100)")
	return cmd
}
