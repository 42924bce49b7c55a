package service

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/variant-lollipop-server/internal/cache"
	"github.com/variant-lollipop-server/internal/domain"
	"github.com/variant-lollipop-server/internal/render/svg"
	"github.com/variant-lollipop-server/pkg/lollipop"
)

// LayoutService computes stateless layouts and SVG renderings
type LayoutService struct {
	config   lollipop.Config
	cache    domain.LayoutCache
	cacheTTL time.Duration
	variants *VariantProvider
	logger   *logrus.Logger
}

var _ domain.LayoutComputer = (*LayoutService)(nil)

// NewLayoutService creates a layout service. layoutCache may be nil.
func NewLayoutService(config lollipop.Config, layoutCache domain.LayoutCache, cacheTTL time.Duration, variants *VariantProvider, logger *logrus.Logger) *LayoutService {
	if logger == nil {
		logger = logrus.New()
	}
	if variants == nil {
		variants = NewVariantProvider(nil, logger)
	}
	return &LayoutService{
		config:   config,
		cache:    layoutCache,
		cacheTTL: cacheTTL,
		variants: variants,
		logger:   logger,
	}
}

// cacheKey binds the request to the engine configuration it is laid out with
type cacheKey struct {
	Request *domain.LayoutRequest `json:"request"`
	Config  lollipop.Config       `json:"config"`
}

// ComputeLayout lays out every track of the request. Results are cached by
// request fingerprint.
func (s *LayoutService) ComputeLayout(ctx context.Context, req *domain.LayoutRequest) (*domain.LayoutResult, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	key := ""
	if s.cache != nil {
		k, err := cache.Key(cacheKey{Request: req, Config: s.config})
		if err != nil {
			s.logger.WithError(err).Warn("Failed to fingerprint layout request")
		} else {
			key = k
			if cached, ok := s.cache.Get(ctx, key); ok {
				result := *cached
				result.Cached = true
				return &result, nil
			}
		}
	}

	startTime := time.Now()
	engine, err := s.buildEngine(ctx, req, lollipop.NopSurface{})
	if err != nil {
		return nil, err
	}
	result := Snapshot(engine)

	s.logger.WithFields(logrus.Fields{
		"tracks":   describeTracks(req.Tracks),
		"width":    result.Width,
		"view":     result.ViewProteinRange,
		"duration": time.Since(startTime),
	}).Debug("Layout computed")

	if key != "" {
		if err := s.cache.Set(ctx, key, result, s.cacheTTL); err != nil {
			s.logger.WithError(err).Warn("Failed to cache layout")
		}
	}
	return result, nil
}

// RenderSVG lays out the request and draws it as a standalone SVG document.
func (s *LayoutService) RenderSVG(ctx context.Context, req *domain.LayoutRequest) ([]byte, *domain.LayoutResult, error) {
	if err := req.Validate(); err != nil {
		return nil, nil, err
	}
	canvas := svg.New(s.width(req), 0)
	engine, err := s.buildEngine(ctx, req, canvas)
	if err != nil {
		return nil, nil, err
	}
	canvas.SetSize(engine.Width(), engine.Height())
	return canvas.Bytes(), Snapshot(engine), nil
}

func (s *LayoutService) width(req *domain.LayoutRequest) float64 {
	if req.Width > 0 {
		return req.Width
	}
	return s.config.Width
}

// buildEngine creates an engine for the request and applies its view and
// explode instructions.
func (s *LayoutService) buildEngine(ctx context.Context, req *domain.LayoutRequest, surface lollipop.Surface) (*lollipop.Engine, error) {
	tracks, err := s.variants.Resolve(ctx, req)
	if err != nil {
		return nil, err
	}
	engine, err := lollipop.New(surface, tracks,
		lollipop.WithConfig(s.config),
		lollipop.WithWidth(s.width(req)),
		lollipop.WithLogger(s.logger),
	)
	if err != nil {
		return nil, err
	}
	if err := applyView(engine, req); err != nil {
		return nil, err
	}
	return engine, nil
}

func applyView(engine *lollipop.Engine, req *domain.LayoutRequest) error {
	var err error
	switch {
	case req.ViewRange != nil:
		err = engine.ResizeVariant(*req.ViewRange)
	case req.ProteinRange != nil:
		err = engine.ZoomToProtein(*req.ProteinRange)
	default:
		err = engine.RenderAll(true)
	}
	if err != nil {
		return err
	}
	if req.Explode != nil {
		if _, err := engine.ExplodeCluster(req.Explode.NodeID, req.Explode.Track); err != nil {
			return fmt.Errorf("failed to explode cluster: %w", err)
		}
	}
	return nil
}

// Snapshot captures the current layouts and view of an engine.
func Snapshot(engine *lollipop.Engine) *domain.LayoutResult {
	result := &domain.LayoutResult{
		ViewRange:        engine.ViewRange(),
		ViewProteinRange: engine.ViewProteinRange(),
		ProteinDomain:    engine.ProteinDomain(),
		Width:            engine.Width(),
		Height:           engine.Height(),
		State:            engine.State(),
	}
	for _, name := range engine.Tracks() {
		if l := engine.Layout(name); l != nil {
			result.Layouts = append(result.Layouts, l)
		}
	}
	if track, node, ok := engine.ExplodedCluster(); ok {
		result.Exploded = &domain.NodeRef{Track: track, NodeID: node}
	}
	return result
}
