package cli

import (
	"bytes"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/variant-lollipop-server/internal/loader"
	"github.com/variant-lollipop-server/pkg/lollipop"
)

// sampleTracks is written by init as a starting point.
func sampleTracks() *loader.TrackFile {
	return &loader.TrackFile{
		Width: 1000,
		Tracks: []*lollipop.Track{
			{
				Name: "navigation",
				Type: lollipop.TrackPositionBar,
				View: &lollipop.TrackView{Height: 20, ScaleHeight: 20},
				Subsections: map[string]lollipop.Subsection{
					"DNA-binding": {Start: 102, End: 292, Color: "#74c476"},
				},
			},
			{
				Name: "variants",
				Type: lollipop.TrackVariants,
				View: &lollipop.TrackView{VariantAreaHeight: 100, ScaleHeight: 20, CircleSize: 10},
				Variants: []lollipop.Variant{
					{ID: "p.R175H", Start: 175},
					{ID: "p.R248Q", Start: 248},
					{ID: "p.R248W", Start: 248},
					{ID: "p.R273H", Start: 273},
				},
			},
		},
	}
}

func newInitCmd() *cobra.Command {
	var (
		out   string
		force bool
	)
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Write an example track file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return initExec(cmd, out, force)
		},
	}
	cmd.Flags().StringVarP(&out, "out", "o", "tracks.yaml", "output file name, - for stdout")
	cmd.Flags().BoolVarP(&force, "force", "f", false, "overwrite an existing file")
	return cmd
}

func initExec(cmd *cobra.Command, out string, force bool) error {
	if out != "-" && !force {
		if _, err := os.Stat(out); err == nil {
			return fmt.Errorf("%s already exists (use --force to overwrite)", out)
		}
	}

	var buf bytes.Buffer
	if err := loader.WriteTracks(&buf, sampleTracks()); err != nil {
		return err
	}
	return writeOutput(cmd, out, buf.Bytes())
}
