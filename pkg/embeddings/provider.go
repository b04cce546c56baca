// Package embeddings generates embedding vectors for document chunks and
// queries, with rate limiting, batching, and an optional Redis cache in
// front of the provider.
package embeddings

import (
	"context"
	"sync"
)

// Provider generates embedding vectors for text.
type Provider interface {
	// Embed generates an embedding for a single text.
	Embed(ctx context.Context, text string) ([]float32, error)

	// EmbedBatch generates embeddings for multiple texts, preserving order.
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)

	// Dimensions returns the embedding dimensionality.
	Dimensions() int

	// Model returns the model name in use.
	Model() string
}

// Usage tracks accumulated token and request counts.
type Usage struct {
	PromptTokens int64 `json:"prompt_tokens"`
	TotalTokens  int64 `json:"total_tokens"`
	Requests     int64 `json:"requests"`
}

type usageCounter struct {
	mu    sync.Mutex
	usage Usage
}

func (u *usageCounter) add(prompt, total int64) {
	u.mu.Lock()
	u.usage.PromptTokens += prompt
	u.usage.TotalTokens += total
	u.usage.Requests++
	u.mu.Unlock()
}

func (u *usageCounter) snapshot() Usage {
	u.mu.Lock()
	defer u.mu.Unlock()
	return u.usage
}
