package domain

import (
	"context"
	"time"

	"github.com/variant-lollipop-server/pkg/lollipop"
)

// LayoutComputer lays out tracks for a single request without keeping state
type LayoutComputer interface {
	ComputeLayout(ctx context.Context, req *LayoutRequest) (*LayoutResult, error)
	RenderSVG(ctx context.Context, req *LayoutRequest) ([]byte, *LayoutResult, error)
}

// SessionStore keeps interactive engine sessions alive between requests
type SessionStore interface {
	Create(ctx context.Context, req *LayoutRequest) (*SessionInfo, error)
	Get(id string) (*SessionInfo, error)
	HandleEvent(id string, ev lollipop.Event) (*SessionInfo, bool, error)
	Explode(id, track, nodeID string) (*SessionInfo, error)
	Delete(id string) error
}

// VariantSource resolves the variants of a gene from a remote knowledge base
type VariantSource interface {
	FetchVariants(ctx context.Context, gene string) ([]lollipop.Variant, error)
}

// LayoutCache stores computed layouts keyed by request fingerprint
type LayoutCache interface {
	Get(ctx context.Context, key string) (*LayoutResult, bool)
	Set(ctx context.Context, key string, result *LayoutResult, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
}

// ConfigManager defines the interface for configuration management
type ConfigManager interface {
	GetConfig() *Config
	GetServerConfig() *ServerConfig
	GetLayoutConfig() *lollipop.Config
	GetCacheConfig() *CacheConfig
	GetVariantSourceConfig() *VariantSourceConfig
	Reload() error
	Validate() error
	GetRedisConnectionString() string
	IsProduction() bool
	IsDevelopment() bool
}
