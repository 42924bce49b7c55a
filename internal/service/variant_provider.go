package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/variant-lollipop-server/internal/domain"
	"github.com/variant-lollipop-server/internal/loader"
	"github.com/variant-lollipop-server/pkg/external"
	"github.com/variant-lollipop-server/pkg/lollipop"
)

// VariantProvider fills variants tracks from inline data, the remote variant
// source or variant files. Tracks are copied so callers' definitions are never
// mutated.
type VariantProvider struct {
	source domain.VariantSource
	logger *logrus.Logger
}

// NewVariantProvider creates a provider. source may be nil when no remote
// variant source is configured.
func NewVariantProvider(source domain.VariantSource, logger *logrus.Logger) *VariantProvider {
	if logger == nil {
		logger = logrus.New()
	}
	return &VariantProvider{source: source, logger: logger}
}

// HasSource reports whether a remote variant source is configured.
func (p *VariantProvider) HasSource() bool {
	return p.source != nil
}

// Resolve returns the tracks of a request with remote variants applied.
func (p *VariantProvider) Resolve(ctx context.Context, req *domain.LayoutRequest) ([]*lollipop.Track, error) {
	tracks := cloneTracks(req.Tracks)
	if req.Source == nil {
		return tracks, nil
	}
	if p.source == nil {
		return nil, domain.NewAPIError(domain.ErrExternalAPI, "variant source is not configured", req.Source.Gene, "")
	}

	variants, err := p.source.FetchVariants(ctx, req.Source.Gene)
	if err != nil {
		p.logger.WithError(err).WithField("gene", req.Source.Gene).Warn("Failed to fetch variants")
		if errors.Is(err, external.ErrGeneNotFound) {
			return nil, domain.NewValidationError("source.gene", "gene not found in variant source", req.Source.Gene)
		}
		return nil, domain.NewAPIError(domain.ErrExternalAPI, "failed to fetch variants", err.Error(), "")
	}

	p.logger.WithFields(logrus.Fields{
		"gene":     req.Source.Gene,
		"track":    req.Source.Track,
		"variants": len(variants),
	}).Debug("Fetched variants from remote source")

	return setTrackVariants(tracks, req.Source.Track, variants)
}

// ApplyFile loads variants from a VCF file into the named variants track.
func (p *VariantProvider) ApplyFile(tracks []*lollipop.Track, track, path string, opts loader.VCFOptions) ([]*lollipop.Track, loader.VCFStats, error) {
	variants, stats, err := loader.NewVCFLoader(opts, p.logger).Load(path)
	if err != nil {
		return nil, stats, err
	}
	out, err := setTrackVariants(cloneTracks(tracks), track, variants)
	return out, stats, err
}

// setTrackVariants replaces the variants of a named track. A missing track is
// appended as a default variants lane under the last track.
func setTrackVariants(tracks []*lollipop.Track, name string, variants []lollipop.Variant) ([]*lollipop.Track, error) {
	for _, t := range tracks {
		if t.Name != name {
			continue
		}
		if t.Type != lollipop.TrackVariants {
			return nil, domain.NewValidationError("source.track", "track is not a variants track", name)
		}
		t.Variants = variants
		return tracks, nil
	}
	t := DefaultVariantsTrack(name)
	t.Variants = variants
	return append(tracks, t), nil
}

// DefaultVariantsTrack returns a variants lane with stock view parameters.
func DefaultVariantsTrack(name string) *lollipop.Track {
	return &lollipop.Track{
		Name: name,
		Type: lollipop.TrackVariants,
		View: &lollipop.TrackView{Height: 120, VariantAreaHeight: 100, CircleSize: 10},
	}
}

func cloneTracks(tracks []*lollipop.Track) []*lollipop.Track {
	out := make([]*lollipop.Track, 0, len(tracks))
	for _, t := range tracks {
		if t == nil {
			out = append(out, nil)
			continue
		}
		c := *t
		if t.View != nil {
			view := *t.View
			c.View = &view
		}
		if t.Variants != nil {
			c.Variants = append([]lollipop.Variant(nil), t.Variants...)
		}
		if t.Subsections != nil {
			c.Subsections = make(map[string]lollipop.Subsection, len(t.Subsections))
			for k, v := range t.Subsections {
				c.Subsections[k] = v
			}
		}
		out = append(out, &c)
	}
	return out
}

func describeTracks(tracks []*lollipop.Track) string {
	names := make([]string, 0, len(tracks))
	for _, t := range tracks {
		if t != nil {
			names = append(names, t.Name)
		}
	}
	return fmt.Sprint(names)
}

// NewRemoteVariantSource builds the rate limited, circuit broken client for
// the configured variant API. It returns nil when the source is disabled.
// store may be nil.
func NewRemoteVariantSource(cfg domain.VariantSourceConfig, store external.VariantStore, logger *logrus.Logger) domain.VariantSource {
	if !cfg.Enabled || cfg.BaseURL == "" {
		return nil
	}
	client := external.NewVariantClient(external.VariantClientConfig{
		BaseURL:    cfg.BaseURL,
		APIKey:     cfg.APIKey,
		Timeout:    cfg.Timeout,
		RateLimit:  cfg.RateLimit,
		RetryCount: cfg.RetryCount,
	}, logger)
	return external.NewResilientVariantClient(client, store, external.DefaultCircuitBreakerConfig(), logger)
}
