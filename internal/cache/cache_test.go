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

func newTestCache(max int) (*MemoryCache, *fakeClock) {
	clock := &fakeClock{t: time.Date(2025, 4, 1, 0, 0, 0, 0, time.UTC)}
	c := NewMemoryCache(max)
	c.now = clock.now
	return c, clock
}

func TestFilterKey(t *testing.T) {
	assert.Equal(t, "filter:abc:2025-04-01..2025-04-05", FilterKey("abc", "2025-04-01..2025-04-05"))
	assert.Equal(t, "filter:abc:", DatasetPrefix("abc"))
}

func TestMemoryCache_GetSet(t *testing.T) {
	ctx := context.Background()
	c, clock := newTestCache(0)

	_, ok, err := c.Get(ctx, "missing")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, c.Set(ctx, "k", []byte("v"), time.Minute))
	val, ok, err := c.Get(ctx, "k")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, []byte("v"), val)

	clock.advance(2 * time.Minute)
	_, ok, _ = c.Get(ctx, "k")
	assert.False(t, ok, "expected entry to expire")
	assert.Equal(t, 0, c.Len())

	require.NoError(t, c.Set(ctx, "forever", []byte("v"), 0))
	clock.advance(24 * time.Hour)
	_, ok, _ = c.Get(ctx, "forever")
	assert.True(t, ok)
}

func TestMemoryCache_Invalidate(t *testing.T) {
	ctx := context.Background()
	c, _ := newTestCache(0)

	require.NoError(t, c.Set(ctx, FilterKey("a", "all"), []byte("1"), 0))
	require.NoError(t, c.Set(ctx, FilterKey("a", "2025-04-01..*"), []byte("2"), 0))
	require.NoError(t, c.Set(ctx, FilterKey("ab", "all"), []byte("3"), 0))

	require.NoError(t, c.Invalidate(ctx, DatasetPrefix("a")))
	assert.Equal(t, 1, c.Len())
	_, ok, _ := c.Get(ctx, FilterKey("ab", "all"))
	assert.True(t, ok)
}

func TestMemoryCache_Eviction(t *testing.T) {
	ctx := context.Background()
	c, clock := newTestCache(2)

	require.NoError(t, c.Set(ctx, "soon", []byte("1"), time.Minute))
	require.NoError(t, c.Set(ctx, "later", []byte("2"), time.Hour))
	require.NoError(t, c.Set(ctx, "new", []byte("3"), time.Hour))

	assert.Equal(t, 2, c.Len())
	_, ok, _ := c.Get(ctx, "soon")
	assert.False(t, ok, "entry closest to expiry should be evicted")

	// Overwriting an existing key never evicts.
	require.NoError(t, c.Set(ctx, "new", []byte("4"), time.Hour))
	assert.Equal(t, 2, c.Len())

	clock.advance(2 * time.Hour)
	require.NoError(t, c.Set(ctx, "fresh", []byte("5"), 0))
	assert.Equal(t, 1, c.Len())
}

func TestNewRedisCache_Unreachable(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	_, err := NewRedisCache(ctx, RedisConfig{Addr: "127.0.0.1:1"})
	assert.Error(t, err)
}
