package cmd

import (
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/MeKo-Tech/cropocr/internal/layout"
)

func newLayoutsCommand(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "layouts",
		Short: "List the available region layouts",
		Long: `List the built-in layouts and those loaded from --layouts-file.

Examples:
  cropocr layouts
  cropocr layouts --yaml > layouts.yaml`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			reg, err := a.config.LoadLayouts()
			if err != nil {
				return err
			}
			all := reg.All()

			if asYAML, _ := cmd.Flags().GetBool("yaml"); asYAML {
				data, err := layout.Marshal(all)
				if err != nil {
					return err
				}
				_, err = cmd.OutOrStdout().Write(data)
				return err
			}

			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			_, _ = fmt.Fprintln(tw, "NAME\tMODE\tREGIONS\tANNOTATIONS\tCANVAS\tFIELDS")
			for _, l := range all {
				name := l.Name
				if name == a.config.Layout {
					name += " *"
				}
				canvas := "native"
				if !l.Native {
					canvas = fmt.Sprintf("%dx%d", l.CanvasWidth, l.CanvasHeight)
				}
				fields := strings.Join(l.FieldNames(), ", ")
				if l.CropOnly {
					fields += " (crop only)"
				}
				_, _ = fmt.Fprintf(tw, "%s\t%s\t%d\t%d\t%s\t%s\n",
					name, l.Mode, l.Regions, l.ExpectedAnnotations(), canvas, fields)
			}
			return tw.Flush()
		},
	}
	cmd.Flags().Bool("yaml", false, "print the layouts as a YAML layouts file")
	return cmd
}
