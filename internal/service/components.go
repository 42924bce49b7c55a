package service

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/variant-lollipop-server/internal/cache"
	"github.com/variant-lollipop-server/internal/domain"
	"github.com/variant-lollipop-server/pkg/external"
)

// sessionSweepInterval is how often idle sessions are looked for
const sessionSweepInterval = time.Minute

// Components are the long lived services shared by the server binaries.
// Cache and Source are nil when disabled.
type Components struct {
	Layouts  *LayoutService
	Sessions *SessionManager
	Cache    *cache.LayoutCache
	Source   domain.VariantSource
}

// NewComponents wires the layout cache, the remote variant source and the
// layout and session services from configuration.
func NewComponents(cfgManager domain.ConfigManager, logger *logrus.Logger) (*Components, error) {
	cfg := cfgManager.GetConfig()
	c := &Components{}

	var (
		layoutCache  domain.LayoutCache
		variantStore external.VariantStore
	)
	if cfg.Cache.Enabled {
		lc, err := cache.New(cfg.Cache, logger)
		if err != nil {
			return nil, err
		}
		c.Cache = lc
		layoutCache = lc
		if client := lc.Redis(); client != nil {
			variantStore = external.NewCacheClientFromRedis(client, cfg.Cache.DefaultTTL)
		}
	}

	c.Source = NewRemoteVariantSource(cfg.VariantSource, variantStore, logger)
	provider := NewVariantProvider(c.Source, logger)

	c.Layouts = NewLayoutService(*cfgManager.GetLayoutConfig(), layoutCache, cfg.Cache.DefaultTTL, provider, logger)
	c.Sessions = NewSessionManager(c.Layouts, cfg.Server.SessionTTL, cfg.Server.MaxSessions, logger)

	logger.WithFields(logrus.Fields{
		"cache":          c.Cache != nil,
		"redis":          variantStore != nil,
		"variant_source": c.Source != nil,
	}).Info("Services initialized")
	return c, nil
}

// RunJanitor expires idle sessions until ctx is done.
func (c *Components) RunJanitor(ctx context.Context) {
	c.Sessions.Run(ctx, sessionSweepInterval)
}

// Close releases the cache connections.
func (c *Components) Close() error {
	if c.Cache == nil {
		return nil
	}
	return c.Cache.Close()
}
