package embeddings

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/go-redis/redis/v8"
)

// CachingProvider wraps a Provider with a Redis cache keyed by the model
// and a hash of the text. Cache failures fall through to the inner
// provider; the cache is an optimization, never a dependency.
type CachingProvider struct {
	inner  Provider
	client *redis.Client
	ttl    time.Duration
	prefix string
	logger *slog.Logger

	hits   int64
	misses int64
}

// NewCachingProvider wraps inner with a Redis embedding cache.
func NewCachingProvider(inner Provider, client *redis.Client, ttl time.Duration, logger *slog.Logger) *CachingProvider {
	if logger == nil {
		logger = slog.Default()
	}
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &CachingProvider{
		inner:  inner,
		client: client,
		ttl:    ttl,
		prefix: "ragb:embedding:",
		logger: logger.With("component", "embedding-cache"),
	}
}

// Dimensions returns the inner provider's dimensionality.
func (c *CachingProvider) Dimensions() int { return c.inner.Dimensions() }

// Model returns the inner provider's model name.
func (c *CachingProvider) Model() string { return c.inner.Model() }

// Stats returns cache hit and miss counts.
func (c *CachingProvider) Stats() (hits, misses int64) {
	return atomic.LoadInt64(&c.hits), atomic.LoadInt64(&c.misses)
}

// Embed returns a cached embedding when available, generating and caching
// it otherwise.
func (c *CachingProvider) Embed(ctx context.Context, text string) ([]float32, error) {
	vectors, err := c.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vectors[0], nil
}

// EmbedBatch resolves cached entries first and only sends cache misses to
// the inner provider, preserving input order.
func (c *CachingProvider) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	out := make([][]float32, len(texts))
	missing := make([]string, 0, len(texts))
	missingIdx := make([]int, 0, len(texts))

	for i, text := range texts {
		vec, err := c.get(ctx, text)
		if err == nil && vec != nil {
			out[i] = vec
			atomic.AddInt64(&c.hits, 1)
			continue
		}
		if err != nil && !errors.Is(err, redis.Nil) {
			c.logger.Warn("embedding cache read failed", slog.String("error", err.Error()))
		}
		atomic.AddInt64(&c.misses, 1)
		missing = append(missing, text)
		missingIdx = append(missingIdx, i)
	}

	if len(missing) > 0 {
		vectors, err := c.inner.EmbedBatch(ctx, missing)
		if err != nil {
			return nil, err
		}
		for j, vec := range vectors {
			out[missingIdx[j]] = vec
			if err := c.set(ctx, missing[j], vec); err != nil {
				c.logger.Warn("embedding cache write failed", slog.String("error", err.Error()))
			}
		}
	}
	return out, nil
}

func (c *CachingProvider) key(text string) string {
	sum := sha256.Sum256([]byte(c.inner.Model() + "\x00" + text))
	return c.prefix + hex.EncodeToString(sum[:])
}

func (c *CachingProvider) get(ctx context.Context, text string) ([]float32, error) {
	raw, err := c.client.Get(ctx, c.key(text)).Bytes()
	if err != nil {
		return nil, err
	}
	var vec []float32
	if err := json.Unmarshal(raw, &vec); err != nil {
		return nil, fmt.Errorf("corrupt cache entry: %w", err)
	}
	return vec, nil
}

func (c *CachingProvider) set(ctx context.Context, text string, vec []float32) error {
	raw, err := json.Marshal(vec)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, c.key(text), raw, c.ttl).Err()
}
