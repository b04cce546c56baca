// Package vectorstore provides similarity search over embedded document
// chunks, with interchangeable backends: an in-memory flat index with disk
// snapshots, a MongoDB-backed scan, and Weaviate.
package vectorstore

import (
	"context"
	"fmt"
	"log/slog"
	"math"

	"github.com/YuBaichuan2000/rag-backend/pkg/config"
	"github.com/YuBaichuan2000/rag-backend/pkg/embeddings"
	"github.com/YuBaichuan2000/rag-backend/pkg/store"
)

// ChunkRecord is an embedded chunk to index.
type ChunkRecord struct {
	Content   string         `json:"content"`
	Embedding []float32      `json:"embedding"`
	Metadata  map[string]any `json:"metadata"`
}

// Query is a similarity search request. When Embedding is empty the
// backend embeds Text itself. UserID, when set, restricts matches to
// chunks tagged with that user.
type Query struct {
	Text      string    `json:"text"`
	Embedding []float32 `json:"embedding,omitempty"`
	TopK      int       `json:"top_k"`
	UserID    string    `json:"user_id,omitempty"`
}

// Match is a single search hit. Score is cosine similarity in [-1, 1].
type Match struct {
	Content  string         `json:"content"`
	Metadata map[string]any `json:"metadata"`
	Score    float64        `json:"score"`
}

// Store is the vector search interface the engine and processor use.
type Store interface {
	// Add indexes the given chunk records.
	Add(ctx context.Context, records []ChunkRecord) error

	// Search returns the top-k most similar chunks, best first.
	Search(ctx context.Context, q Query) ([]Match, error)

	// Count returns the number of indexed chunks.
	Count(ctx context.Context) (int64, error)

	// Close releases backend resources.
	Close(ctx context.Context) error
}

// Deps carries the shared dependencies backends may need.
type Deps struct {
	Embedder embeddings.Provider
	Mongo    *store.Store
	Logger   *slog.Logger
}

// New builds the vector store selected by VECTOR_STORE_TYPE. Unknown
// types fall back to the MongoDB backend with a warning.
func New(cfg *config.Settings, deps Deps) (Store, error) {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}

	switch cfg.VectorStoreType {
	case "memory":
		logger.Info("using in-memory vector store", slog.String("snapshot_path", cfg.MemoryIndexPath))
		return NewMemoryStore(&MemoryConfig{SnapshotPath: cfg.MemoryIndexPath}, deps.Embedder, logger), nil
	case "weaviate":
		logger.Info("using weaviate vector store", slog.String("host", cfg.WeaviateHost))
		return NewWeaviateStore(&WeaviateConfig{
			Host:   cfg.WeaviateHost,
			Scheme: cfg.WeaviateScheme,
			APIKey: cfg.WeaviateAPIKey,
			Class:  cfg.WeaviateClass,
		}, deps.Embedder, logger)
	case "mongodb":
		logger.Info("using mongodb vector store")
	default:
		logger.Warn("unknown vector store type, falling back to mongodb",
			slog.String("type", cfg.VectorStoreType))
	}

	if deps.Mongo == nil {
		return nil, fmt.Errorf("mongodb vector store requires a database connection")
	}
	return NewMongoStore(deps.Mongo.Vectors(), deps.Embedder, logger), nil
}

// cosineSimilarity computes the cosine of the angle between two vectors.
// Mismatched or zero-length vectors score zero.
func cosineSimilarity(a, b []float32) float64 {
	if len(a) == 0 || len(a) != len(b) {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}

// resolveEmbedding embeds q.Text when the caller did not supply a vector.
func resolveEmbedding(ctx context.Context, embedder embeddings.Provider, q Query) ([]float32, error) {
	if len(q.Embedding) > 0 {
		return q.Embedding, nil
	}
	if q.Text == "" {
		return nil, fmt.Errorf("query requires text or an embedding")
	}
	if embedder == nil {
		return nil, fmt.Errorf("no embedder configured for text queries")
	}
	return embedder.Embed(ctx, q.Text)
}

func userIDOf(metadata map[string]any) string {
	if metadata == nil {
		return ""
	}
	if v, ok := metadata["user_id"].(string); ok {
		return v
	}
	return ""
}
