package cache

import (
	"context"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	tcredis "github.com/testcontainers/testcontainers-go/modules/redis"

	"github.com/variant-lollipop-server/internal/domain"
	"github.com/variant-lollipop-server/pkg/lollipop"
)

func quietLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetLevel(logrus.FatalLevel)
	return logger
}

func sampleResult() *domain.LayoutResult {
	return &domain.LayoutResult{
		Layouts: []*lollipop.Layout{{
			Track: "variants",
			Type:  lollipop.TrackVariants,
			Nodes: []*lollipop.Node{{ID: "v1", Type: lollipop.NodeVariant, ViewPos: 10, Size: 10}},
		}},
		ViewRange:        lollipop.Range{0, 1000},
		ViewProteinRange: lollipop.Range{1, 393},
		Width:            1000,
		Height:           160,
		State:            lollipop.StateIdle,
	}
}

func TestKey(t *testing.T) {
	a, err := Key(map[string]int{"width": 800})
	require.NoError(t, err)
	b, err := Key(map[string]int{"width": 800})
	require.NoError(t, err)
	c, err := Key(map[string]int{"width": 801})
	require.NoError(t, err)

	assert.Len(t, a, 64)
	assert.Equal(t, a, b)
	assert.NotEqual(t, a, c)

	_, err = Key(func() {})
	assert.Error(t, err)
}

func TestLayoutCache_Memory(t *testing.T) {
	ctx := context.Background()
	c, err := NewWithClient(2, time.Minute, nil, quietLogger())
	require.NoError(t, err)

	_, ok := c.Get(ctx, "a")
	assert.False(t, ok)

	require.NoError(t, c.Set(ctx, "a", sampleResult(), 0))
	got, ok := c.Get(ctx, "a")
	require.True(t, ok)
	assert.Equal(t, sampleResult(), got)

	// LRU eviction
	require.NoError(t, c.Set(ctx, "b", sampleResult(), 0))
	require.NoError(t, c.Set(ctx, "c", sampleResult(), 0))
	assert.Equal(t, 2, c.Len())
	_, ok = c.Get(ctx, "a")
	assert.False(t, ok)

	require.NoError(t, c.Delete(ctx, "c"))
	_, ok = c.Get(ctx, "c")
	assert.False(t, ok)

	stats := c.GetStats()
	assert.Equal(t, int64(1), stats.MemoryHits)
	assert.Equal(t, int64(3), stats.MemoryMisses)
	assert.Equal(t, int64(3), stats.Sets)

	c.ResetStats()
	assert.Zero(t, c.GetStats().MemoryHits)
	assert.NoError(t, c.Ping(ctx))
	assert.NoError(t, c.Close())
}

func TestLayoutCache_Expiry(t *testing.T) {
	ctx := context.Background()
	c, err := NewWithClient(4, time.Minute, nil, quietLogger())
	require.NoError(t, err)

	require.NoError(t, c.Set(ctx, "short", sampleResult(), time.Millisecond))
	time.Sleep(5 * time.Millisecond)
	_, ok := c.Get(ctx, "short")
	assert.False(t, ok)
	assert.Equal(t, 0, c.Len())
}

func TestNew_MemoryOnly(t *testing.T) {
	c, err := New(domain.CacheConfig{Enabled: true, MemorySize: 8}, quietLogger())
	require.NoError(t, err)
	assert.NoError(t, c.Ping(context.Background()))

	_, err = New(domain.CacheConfig{MemorySize: 8, RedisURL: "://bad"}, quietLogger())
	assert.Error(t, err)
}

func TestLayoutCache_Redis(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping redis container test in short mode")
	}
	ctx := context.Background()

	container, err := tcredis.Run(ctx, "redis:7-alpine")
	require.NoError(t, err)
	defer func() {
		if err := container.Terminate(ctx); err != nil {
			t.Logf("Failed to terminate redis container: %v", err)
		}
	}()
	url, err := container.ConnectionString(ctx)
	require.NoError(t, err)

	writer, err := New(domain.CacheConfig{MemorySize: 8, RedisURL: url, DefaultTTL: time.Minute}, quietLogger())
	require.NoError(t, err)
	defer writer.Close()
	require.NoError(t, writer.Set(ctx, "shared", sampleResult(), 0))

	// a second instance sees the layout through redis and promotes it
	opts, err := redis.ParseURL(url)
	require.NoError(t, err)
	reader, err := NewWithClient(8, time.Minute, redis.NewClient(opts), quietLogger())
	require.NoError(t, err)
	defer reader.Close()

	got, ok := reader.Get(ctx, "shared")
	require.True(t, ok)
	assert.Equal(t, sampleResult().ViewProteinRange, got.ViewProteinRange)
	assert.Equal(t, "v1", got.Layouts[0].Nodes[0].ID)
	assert.Equal(t, int64(1), reader.GetStats().RedisHits)

	_, ok = reader.Get(ctx, "shared")
	require.True(t, ok)
	assert.Equal(t, int64(1), reader.GetStats().MemoryHits)

	require.NoError(t, writer.Delete(ctx, "shared"))
	_, ok = writer.Get(ctx, "shared")
	assert.False(t, ok)
}
