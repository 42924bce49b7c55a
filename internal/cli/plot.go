package cli

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/variant-lollipop-server/internal/domain"
	"github.com/variant-lollipop-server/internal/loader"
	"github.com/variant-lollipop-server/internal/service"
	"github.com/variant-lollipop-server/pkg/lollipop"
)

// plotOptions are the flags shared by render and layout.
type plotOptions struct {
	tracks       string
	vcf          string
	vcfTrack     string
	gene         string
	positionKey  string
	genomic      bool
	passOnly     bool
	fetch        string
	proteinRange string
	viewRange    string
	width        float64
	explode      string
	explodeTrack string
	out          string
}

func (p *plotOptions) register(cmd *cobra.Command) {
	flags := cmd.Flags()
	flags.StringVarP(&p.tracks, "tracks", "t", "", "YAML track file")
	flags.StringVar(&p.vcf, "vcf", "", "VCF (plain, gzip or BGZF) to fill a variants track from")
	flags.StringVar(&p.vcfTrack, "vcf-track", "", "variants track filled from --vcf (default first variants track)")
	flags.StringVarP(&p.gene, "gene", "g", "", "keep only ANN annotations of this gene")
	flags.StringVar(&p.positionKey, "position-key", loader.DefaultPositionKey, "INFO key holding the protein position")
	flags.BoolVar(&p.genomic, "genomic", false, "use POS as the variant position")
	flags.BoolVar(&p.passOnly, "pass-only", false, "drop records that failed a filter")
	flags.StringVar(&p.fetch, "fetch", "", "fetch variants of this gene from the remote variant API")
	flags.StringVarP(&p.proteinRange, "range", "r", "", "protein window to zoom to, as start,end")
	flags.StringVar(&p.viewRange, "view", "", "pixel window on the navigation bar, as lo,hi")
	flags.Float64VarP(&p.width, "width", "w", 0, "canvas width in pixels")
	flags.StringVarP(&p.explode, "explode", "x", "", "cluster node id to fan out")
	flags.StringVar(&p.explodeTrack, "explode-track", "", "track of the exploded cluster (default first variants track)")
	flags.StringVarP(&p.out, "out", "o", "", "output file name (default stdout)")
}

// plan resolves the flags into a layout service and a request.
func (p *plotOptions) plan(cmd *cobra.Command, root *rootOptions) (*service.LayoutService, *domain.LayoutRequest, *logrus.Logger, error) {
	cfgManager, logger, err := root.load(cmd)
	if err != nil {
		return nil, nil, nil, err
	}
	if p.tracks == "" && p.fetch == "" && p.vcf == "" {
		return nil, nil, nil, fmt.Errorf("one of --tracks, --vcf or --fetch is required")
	}

	req := &domain.LayoutRequest{}
	if p.tracks != "" {
		tf, err := loader.LoadTracks(p.tracks)
		if err != nil {
			return nil, nil, nil, err
		}
		req.Tracks = tf.Tracks
		req.Width = tf.Width
		req.ViewRange = tf.ViewRange
		req.ProteinRange = tf.ProteinRange
	}

	if p.width > 0 {
		req.Width = p.width
	}
	if p.proteinRange != "" {
		r, err := parseRange(p.proteinRange)
		if err != nil {
			return nil, nil, nil, fmt.Errorf("--range: %w", err)
		}
		req.ProteinRange, req.ViewRange = &r, nil
	}
	if p.viewRange != "" {
		r, err := parseRange(p.viewRange)
		if err != nil {
			return nil, nil, nil, fmt.Errorf("--view: %w", err)
		}
		req.ViewRange, req.ProteinRange = &r, nil
	}

	source := service.NewRemoteVariantSource(cfgManager.GetConfig().VariantSource, nil, logger)
	provider := service.NewVariantProvider(source, logger)

	if p.vcf != "" {
		track := p.vcfTrack
		if track == "" {
			track = firstVariantsTrack(req.Tracks)
		}
		tracks, stats, err := provider.ApplyFile(req.Tracks, track, p.vcf, loader.VCFOptions{
			Gene:            p.gene,
			PositionKey:     p.positionKey,
			GenomicPosition: p.genomic,
			PassOnly:        p.passOnly,
		})
		if err != nil {
			return nil, nil, nil, err
		}
		req.Tracks = tracks
		logger.WithFields(logrus.Fields{
			"file":     p.vcf,
			"track":    track,
			"records":  stats.Records,
			"variants": stats.Variants,
			"skipped":  stats.Skipped,
		}).Info("Loaded variants")
	}

	if p.fetch != "" {
		track := p.vcfTrack
		if track == "" {
			track = firstVariantsTrack(req.Tracks)
		}
		req.Source = &domain.SourceRef{Gene: p.fetch, Track: track}
	}

	if p.explode != "" {
		track := p.explodeTrack
		if track == "" {
			track = firstVariantsTrack(req.Tracks)
		}
		req.Explode = &domain.NodeRef{Track: track, NodeID: p.explode}
	}

	layouts := service.NewLayoutService(*cfgManager.GetLayoutConfig(), nil, 0, provider, logger)
	return layouts, req, logger, nil
}

func firstVariantsTrack(tracks []*lollipop.Track) string {
	for _, t := range tracks {
		if t.Type == lollipop.TrackVariants {
			return t.Name
		}
	}
	return "variants"
}

// parseRange reads "a,b" (or "a-b") into a range.
func parseRange(s string) (lollipop.Range, error) {
	sep := ","
	if !strings.Contains(s, sep) {
		sep = "-"
	}
	parts := strings.SplitN(s, sep, 2)
	if len(parts) != 2 {
		return lollipop.Range{}, fmt.Errorf("expected two comma separated integers, got %q", s)
	}
	var r lollipop.Range
	for i, part := range parts {
		v, err := strconv.Atoi(strings.TrimSpace(part))
		if err != nil {
			return lollipop.Range{}, fmt.Errorf("expected two comma separated integers, got %q", s)
		}
		r[i] = v
	}
	return r, nil
}

// writeOutput writes data to path, or to the command's stdout for "" and "-".
func writeOutput(cmd *cobra.Command, path string, data []byte) error {
	if path == "" || path == "-" {
		_, err := cmd.OutOrStdout().Write(data)
		return err
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return nil
}

func commandContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}
