package embeddings

import (
	"context"
	"hash/fnv"
	"math"
)

// MockProvider produces deterministic unit vectors derived from a text
// hash. Useful for tests and for running the service without an API key:
// identical texts always map to identical vectors, so exact-match
// retrieval still works end to end.
type MockProvider struct {
	dims int
}

// NewMockProvider creates a mock provider with the given dimensionality.
func NewMockProvider(dims int) *MockProvider {
	if dims <= 0 {
		dims = 64
	}
	return &MockProvider{dims: dims}
}

// Dimensions returns the configured dimensionality.
func (m *MockProvider) Dimensions() int { return m.dims }

// Model returns a fixed identifier.
func (m *MockProvider) Model() string { return "mock-embedding" }

// Embed returns a deterministic unit vector for the text.
func (m *MockProvider) Embed(ctx context.Context, text string) ([]float32, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	vec := make([]float32, m.dims)
	h := fnv.New64a()
	_, _ = h.Write([]byte(text))
	seed := h.Sum64()

	var norm float64
	for i := range vec {
		seed = seed*6364136223846793005 + 1442695040888963407
		v := float64(int64(seed>>11)) / float64(1<<52)
		vec[i] = float32(v)
		norm += v * v
	}
	if norm > 0 {
		inv := float32(1 / math.Sqrt(norm))
		for i := range vec {
			vec[i] *= inv
		}
	}
	return vec, nil
}

// EmbedBatch embeds each text in order.
func (m *MockProvider) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, t := range texts {
		vec, err := m.Embed(ctx, t)
		if err != nil {
			return nil, err
		}
		out[i] = vec
	}
	return out, nil
}
