package embeddings

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// countingProvider records which texts reach the inner provider.
type countingProvider struct {
	Provider
	mu    sync.Mutex
	seen  []string
	calls int
}

func (c *countingProvider) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	c.mu.Lock()
	c.seen = append(c.seen, texts...)
	c.calls++
	c.mu.Unlock()
	return c.Provider.EmbedBatch(ctx, texts)
}

func newTestCache(t *testing.T) (*CachingProvider, *countingProvider, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	inner := &countingProvider{Provider: NewMockProvider(16)}
	return NewCachingProvider(inner, client, time.Hour, nil), inner, mr
}

func TestCachingProviderHitsAndMisses(t *testing.T) {
	cache, inner, _ := newTestCache(t)
	ctx := context.Background()

	first, err := cache.Embed(ctx, "cache this")
	require.NoError(t, err)

	second, err := cache.Embed(ctx, "cache this")
	require.NoError(t, err)
	assert.Equal(t, first, second)

	assert.Equal(t, 1, inner.calls, "second request must be served from cache")
	hits, misses := cache.Stats()
	assert.Equal(t, int64(1), hits)
	assert.Equal(t, int64(1), misses)
}

func TestCachingProviderPartialBatch(t *testing.T) {
	cache, inner, _ := newTestCache(t)
	ctx := context.Background()

	_, err := cache.Embed(ctx, "warm")
	require.NoError(t, err)

	vectors, err := cache.EmbedBatch(ctx, []string{"warm", "cold"})
	require.NoError(t, err)
	require.Len(t, vectors, 2)

	assert.Equal(t, []string{"warm", "cold"}, inner.seen,
		"only the cache miss should reach the inner provider on the second call")

	direct, err := NewMockProvider(16).Embed(ctx, "warm")
	require.NoError(t, err)
	assert.Equal(t, direct, vectors[0], "cached vector keeps its batch position")
}

func TestCachingProviderSurvivesRedisOutage(t *testing.T) {
	cache, inner, mr := newTestCache(t)
	ctx := context.Background()
	mr.Close()

	vec, err := cache.Embed(ctx, "redis is down")
	require.NoError(t, err, "cache failures must fall through to the provider")
	assert.NotEmpty(t, vec)
	assert.Equal(t, 1, inner.calls)
}

func TestCachingProviderKeyIncludesModel(t *testing.T) {
	cache, _, _ := newTestCache(t)
	key := cache.key("some text")
	assert.Contains(t, key, "ragb:embedding:")
	assert.NotContains(t, key, "some text", "keys are hashed, not raw text")
}

func TestCachingProviderDelegates(t *testing.T) {
	cache, _, _ := newTestCache(t)
	assert.Equal(t, 16, cache.Dimensions())
	assert.Equal(t, "mock-embedding", cache.Model())
}
