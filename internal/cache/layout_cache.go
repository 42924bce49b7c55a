// Package cache provides the two-tier layout cache.
package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/variant-lollipop-server/internal/domain"
)

const keyPrefix = "lollipop:layout:"

type memoryEntry struct {
	result    *domain.LayoutResult
	expiresAt time.Time
}

// cachedLayout is the redis envelope
type cachedLayout struct {
	Result    *domain.LayoutResult `json:"result"`
	CachedAt  time.Time            `json:"cached_at"`
	ExpiresAt time.Time            `json:"expires_at"`
}

// Stats represents cache performance statistics
type Stats struct {
	MemoryHits   int64     `json:"memory_hits"`
	MemoryMisses int64     `json:"memory_misses"`
	RedisHits    int64     `json:"redis_hits"`
	RedisMisses  int64     `json:"redis_misses"`
	RedisErrors  int64     `json:"redis_errors"`
	Sets         int64     `json:"sets"`
	LastReset    time.Time `json:"last_reset"`
}

// LayoutCache keeps computed layouts in an in-memory LRU (tier 1) backed by an
// optional redis (tier 2). Redis failures degrade to memory-only operation.
type LayoutCache struct {
	memory     *lru.Cache[string, memoryEntry]
	redis      *redis.Client
	defaultTTL time.Duration
	logger     *logrus.Logger

	stats   Stats
	statsMu sync.RWMutex
}

var _ domain.LayoutCache = (*LayoutCache)(nil)

// New creates a layout cache from configuration and connects to redis when a
// URL is set.
func New(cfg domain.CacheConfig, logger *logrus.Logger) (*LayoutCache, error) {
	var client *redis.Client
	if cfg.RedisURL != "" {
		opts, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
		}
		if cfg.PoolSize > 0 {
			opts.PoolSize = cfg.PoolSize
		}
		if cfg.PoolTimeout > 0 {
			opts.PoolTimeout = cfg.PoolTimeout
		}
		opts.MaxRetries = cfg.MaxRetries
		client = redis.NewClient(opts)

		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := client.Ping(ctx).Err(); err != nil {
			client.Close()
			return nil, fmt.Errorf("failed to connect to Redis: %w", err)
		}
	}
	return NewWithClient(cfg.MemorySize, cfg.DefaultTTL, client, logger)
}

// NewWithClient creates a layout cache around an existing redis client, which
// may be nil.
func NewWithClient(size int, defaultTTL time.Duration, client *redis.Client, logger *logrus.Logger) (*LayoutCache, error) {
	if size <= 0 {
		size = 512
	}
	if defaultTTL <= 0 {
		defaultTTL = time.Hour
	}
	if logger == nil {
		logger = logrus.New()
	}
	memory, err := lru.New[string, memoryEntry](size)
	if err != nil {
		return nil, fmt.Errorf("failed to create memory cache: %w", err)
	}
	return &LayoutCache{
		memory:     memory,
		redis:      client,
		defaultTTL: defaultTTL,
		logger:     logger,
		stats:      Stats{LastReset: time.Now()},
	}, nil
}

// Redis returns the second tier client, or nil for a memory-only cache.
func (c *LayoutCache) Redis() *redis.Client {
	return c.redis
}

// Key fingerprints any JSON-encodable request.
func Key(v interface{}) (string, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return "", fmt.Errorf("failed to fingerprint request: %w", err)
	}
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:]), nil
}

// Get looks a layout up in memory, then in redis. Redis hits are promoted.
func (c *LayoutCache) Get(ctx context.Context, key string) (*domain.LayoutResult, bool) {
	if entry, ok := c.memory.Get(key); ok {
		if time.Now().Before(entry.expiresAt) {
			c.record(func(s *Stats) { s.MemoryHits++ })
			return entry.result, true
		}
		c.memory.Remove(key)
	}
	c.record(func(s *Stats) { s.MemoryMisses++ })

	if c.redis == nil {
		return nil, false
	}

	val, err := c.redis.Get(ctx, keyPrefix+key).Bytes()
	if err == redis.Nil {
		c.record(func(s *Stats) { s.RedisMisses++ })
		return nil, false
	}
	if err != nil {
		c.record(func(s *Stats) { s.RedisErrors++ })
		c.logger.WithError(err).Warn("Layout cache redis lookup failed")
		return nil, false
	}

	var cached cachedLayout
	if err := json.Unmarshal(val, &cached); err != nil || cached.Result == nil {
		c.redis.Del(ctx, keyPrefix+key)
		c.record(func(s *Stats) { s.RedisMisses++ })
		return nil, false
	}
	if time.Now().After(cached.ExpiresAt) {
		c.redis.Del(ctx, keyPrefix+key)
		c.record(func(s *Stats) { s.RedisMisses++ })
		return nil, false
	}

	c.record(func(s *Stats) { s.RedisHits++ })
	c.memory.Add(key, memoryEntry{result: cached.Result, expiresAt: cached.ExpiresAt})
	return cached.Result, true
}

// Set stores a layout in both tiers. A zero ttl uses the default.
func (c *LayoutCache) Set(ctx context.Context, key string, result *domain.LayoutResult, ttl time.Duration) error {
	if ttl <= 0 {
		ttl = c.defaultTTL
	}
	now := time.Now()
	c.memory.Add(key, memoryEntry{result: result, expiresAt: now.Add(ttl)})
	c.record(func(s *Stats) { s.Sets++ })

	if c.redis == nil {
		return nil
	}
	data, err := json.Marshal(cachedLayout{Result: result, CachedAt: now, ExpiresAt: now.Add(ttl)})
	if err != nil {
		return fmt.Errorf("failed to marshal layout cache data: %w", err)
	}
	if err := c.redis.Set(ctx, keyPrefix+key, data, ttl).Err(); err != nil {
		c.record(func(s *Stats) { s.RedisErrors++ })
		return fmt.Errorf("failed to store layout in redis: %w", err)
	}
	return nil
}

// Delete removes a layout from both tiers.
func (c *LayoutCache) Delete(ctx context.Context, key string) error {
	c.memory.Remove(key)
	if c.redis == nil {
		return nil
	}
	return c.redis.Del(ctx, keyPrefix+key).Err()
}

// Len returns the number of layouts held in memory.
func (c *LayoutCache) Len() int {
	return c.memory.Len()
}

// GetStats returns a snapshot of the cache counters.
func (c *LayoutCache) GetStats() Stats {
	c.statsMu.RLock()
	defer c.statsMu.RUnlock()
	return c.stats
}

// ResetStats zeroes the counters.
func (c *LayoutCache) ResetStats() {
	c.statsMu.Lock()
	defer c.statsMu.Unlock()
	c.stats = Stats{LastReset: time.Now()}
}

// Ping checks the redis tier, if any.
func (c *LayoutCache) Ping(ctx context.Context) error {
	if c.redis == nil {
		return nil
	}
	return c.redis.Ping(ctx).Err()
}

// Close closes the redis connection.
func (c *LayoutCache) Close() error {
	if c.redis == nil {
		return nil
	}
	return c.redis.Close()
}

func (c *LayoutCache) record(update func(*Stats)) {
	c.statsMu.Lock()
	update(&c.stats)
	c.statsMu.Unlock()
}
