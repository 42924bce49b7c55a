package external

import (
	"context"
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/variant-lollipop-server/pkg/lollipop"
)

// CacheConfig represents the redis settings of the variant cache
type CacheConfig struct {
	RedisURL    string
	DefaultTTL  time.Duration
	MaxRetries  int
	PoolSize    int
	PoolTimeout time.Duration
}

// CacheClient wraps Redis client with caching functionality for variant API responses
type CacheClient struct {
	redis      *redis.Client
	defaultTTL time.Duration
}

// NewCacheClient creates a new cache client
func NewCacheClient(config CacheConfig) (*CacheClient, error) {
	opts, err := redis.ParseURL(config.RedisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
	}

	if config.PoolSize > 0 {
		opts.PoolSize = config.PoolSize
	}
	if config.PoolTimeout > 0 {
		opts.PoolTimeout = config.PoolTimeout
	}
	opts.MaxRetries = config.MaxRetries

	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return NewCacheClientFromRedis(client, config.DefaultTTL), nil
}

// NewCacheClientFromRedis wraps an existing client.
func NewCacheClientFromRedis(client *redis.Client, defaultTTL time.Duration) *CacheClient {
	if defaultTTL == 0 {
		defaultTTL = time.Hour
	}
	return &CacheClient{redis: client, defaultTTL: defaultTTL}
}

// CachedVariants represents cached variants with metadata
type CachedVariants struct {
	Gene      string             `json:"gene"`
	Variants  []lollipop.Variant `json:"variants"`
	CachedAt  time.Time          `json:"cached_at"`
	ExpiresAt time.Time          `json:"expires_at"`
}

// GetVariants retrieves cached variants of a gene
func (c *CacheClient) GetVariants(ctx context.Context, gene string) ([]lollipop.Variant, bool, error) {
	key := c.generateVariantsKey(gene)

	val, err := c.redis.Get(ctx, key).Result()
	if err == redis.Nil {
		return nil, false, nil // Cache miss
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to get variant cache: %w", err)
	}

	var cached CachedVariants
	if err := json.Unmarshal([]byte(val), &cached); err != nil {
		// Remove corrupted cache entry
		c.redis.Del(ctx, key)
		return nil, false, nil
	}

	if time.Now().After(cached.ExpiresAt) {
		c.redis.Del(ctx, key)
		return nil, false, nil
	}

	return cached.Variants, true, nil
}

// SetVariants caches the variants of a gene
func (c *CacheClient) SetVariants(ctx context.Context, gene string, variants []lollipop.Variant, ttl time.Duration) error {
	if ttl == 0 {
		ttl = c.defaultTTL
	}

	now := time.Now()
	cached := CachedVariants{
		Gene:      normalizeGene(gene),
		Variants:  variants,
		CachedAt:  now,
		ExpiresAt: now.Add(ttl),
	}

	jsonData, err := json.Marshal(cached)
	if err != nil {
		return fmt.Errorf("failed to marshal variant cache data: %w", err)
	}

	return c.redis.Set(ctx, c.generateVariantsKey(gene), jsonData, ttl).Err()
}

// InvalidateGene removes cached variants of a gene
func (c *CacheClient) InvalidateGene(ctx context.Context, gene string) error {
	return c.redis.Del(ctx, c.generateVariantsKey(gene)).Err()
}

// Ping checks if Redis connection is alive
func (c *CacheClient) Ping(ctx context.Context) error {
	return c.redis.Ping(ctx).Err()
}

// Close closes the Redis connection
func (c *CacheClient) Close() error {
	return c.redis.Close()
}

// generateVariantsKey creates a standardized cache key for a gene
func (c *CacheClient) generateVariantsKey(gene string) string {
	hash := sha256.Sum256([]byte(normalizeGene(gene)))
	return fmt.Sprintf("variants:gene:%x", hash[:8]) // Use first 8 bytes of hash
}

func normalizeGene(gene string) string {
	return strings.TrimSpace(strings.ToUpper(gene))
}
