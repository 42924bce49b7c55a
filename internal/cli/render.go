package cli

import (
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

func newRenderCmd(root *rootOptions) *cobra.Command {
	opts := &plotOptions{}
	cmd := &cobra.Command{
		Use:   "render",
		Short: "Render tracks as an SVG lollipop diagram",
		Example: `  lollipop render -t tracks.yaml -o tp53.svg
  lollipop render -t tracks.yaml --vcf calls.vcf.gz -g TP53 -r 100,300
  lollipop render -t tracks.yaml -x p.R175H-p.R175C`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return renderExec(cmd, root, opts)
		},
		SuggestionsMinimumDistance: 3,
	}
	opts.register(cmd)
	return cmd
}

// renderExec lays out the tracks and writes the SVG document.
func renderExec(cmd *cobra.Command, root *rootOptions, opts *plotOptions) error {
	layouts, req, logger, err := opts.plan(cmd, root)
	if err != nil {
		return err
	}

	doc, result, err := layouts.RenderSVG(commandContext(cmd), req)
	if err != nil {
		return err
	}
	if err := writeOutput(cmd, opts.out, doc); err != nil {
		return err
	}

	logger.WithFields(logrus.Fields{
		"width":        result.Width,
		"height":       result.Height,
		"protein_view": result.ViewProteinRange,
		"out":          opts.out,
	}).Info("Rendered lollipop diagram")
	return nil
}
