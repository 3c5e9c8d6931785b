package cache

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct{ t time.Time }

func (c *fakeClock) now() time.Time          { return c.t }
func (c *fakeClock) advance(d time.Duration) { c.t = c.t.Add(d) }

func newTestCache(maxItems int, maxMemory int64) (*MemoryCache, *fakeClock) {
	clock := &fakeClock{t: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)}
	c := NewMemoryCache(maxItems, maxMemory, nil)
	c.now = clock.now
	return c, clock
}

func TestMemoryCache_GetSet(t *testing.T) {
	ctx := context.Background()
	c, _ := newTestCache(10, 1024)

	require.NoError(t, c.Set(ctx, "k", []byte("v"), time.Minute))
	got, ok, err := c.Get(ctx, "k")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, []byte("v"), got)

	got[0] = 'x'
	again, _, _ := c.Get(ctx, "k")
	assert.Equal(t, []byte("v"), again, "callers get copies")

	_, ok, _ = c.Get(ctx, "missing")
	assert.False(t, ok)

	stats := c.Stats()
	assert.Equal(t, int64(2), stats.Hits)
	assert.Equal(t, int64(1), stats.Misses)
	assert.InDelta(t, 2.0/3.0, stats.HitRate, 0.0001)
}

func TestMemoryCache_TTL(t *testing.T) {
	ctx := context.Background()
	c, clock := newTestCache(10, 1024)

	require.NoError(t, c.Set(ctx, "k", []byte("v"), time.Minute))
	clock.advance(2 * time.Minute)

	_, ok, _ := c.Get(ctx, "k")
	assert.False(t, ok)
	assert.Equal(t, 0, c.Stats().Items)
}

func TestMemoryCache_LRUEviction(t *testing.T) {
	ctx := context.Background()
	c, _ := newTestCache(2, 1024)

	require.NoError(t, c.Set(ctx, "a", []byte("1"), time.Minute))
	require.NoError(t, c.Set(ctx, "b", []byte("2"), time.Minute))
	_, _, _ = c.Get(ctx, "a") // a is now most recent
	require.NoError(t, c.Set(ctx, "c", []byte("3"), time.Minute))

	_, okA, _ := c.Get(ctx, "a")
	_, okB, _ := c.Get(ctx, "b")
	_, okC, _ := c.Get(ctx, "c")
	assert.True(t, okA)
	assert.False(t, okB)
	assert.True(t, okC)
	assert.Equal(t, int64(1), c.Stats().Evictions)
}

func TestMemoryCache_MemoryLimit(t *testing.T) {
	ctx := context.Background()
	c, _ := newTestCache(100, 10)

	require.NoError(t, c.Set(ctx, "big", []byte("this value is too large"), time.Minute))
	_, ok, _ := c.Get(ctx, "big")
	assert.False(t, ok)

	require.NoError(t, c.Set(ctx, "a", []byte("12345"), time.Minute))
	require.NoError(t, c.Set(ctx, "b", []byte("12345"), time.Minute))
	stats := c.Stats()
	assert.Equal(t, 1, stats.Items)
	assert.LessOrEqual(t, stats.Size, int64(10))
}

func TestMemoryCache_Clear(t *testing.T) {
	ctx := context.Background()
	c, _ := newTestCache(10, 1024)
	for _, k := range []string{"graph:1", "graph:2", "graphs:list"} {
		require.NoError(t, c.Set(ctx, k, []byte("x"), time.Minute))
	}

	require.NoError(t, c.Clear(ctx, "graph:*"))
	assert.Equal(t, 1, c.Stats().Items)

	require.NoError(t, c.Clear(ctx, "*"))
	assert.Equal(t, 0, c.Stats().Items)
}

func TestMatchPattern(t *testing.T) {
	tests := []struct {
		str, pattern string
		want         bool
	}{
		{"graph:1", "*", true},
		{"graph:1", "graph:*", true},
		{"graphs:list", "*:list", true},
		{"graph:1", "graph:1", true},
		{"graph:1", "graph:2", false},
		{"graph:1", "*:list", false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, matchPattern(tt.str, tt.pattern), "%s ~ %s", tt.str, tt.pattern)
	}
}

func TestMemoryCache_CleanupExpired(t *testing.T) {
	ctx := context.Background()
	c, clock := newTestCache(10, 1024)
	require.NoError(t, c.Set(ctx, "short", []byte("x"), time.Second))
	require.NoError(t, c.Set(ctx, "long", []byte("x"), time.Hour))

	clock.advance(time.Minute)
	c.cleanupExpired()

	assert.Equal(t, 1, c.Stats().Items)
}
