package vectorstore

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/weaviate/weaviate-go-client/v4/weaviate"
	"github.com/weaviate/weaviate-go-client/v4/weaviate/auth"
	"github.com/weaviate/weaviate-go-client/v4/weaviate/filters"
	"github.com/weaviate/weaviate-go-client/v4/weaviate/graphql"
	"github.com/weaviate/weaviate/entities/models"

	"github.com/YuBaichuan2000/rag-backend/pkg/embeddings"
)

// WeaviateConfig holds configuration for the Weaviate backend.
type WeaviateConfig struct {
	Host   string `json:"host"`
	Scheme string `json:"scheme"`
	APIKey string `json:"-"`
	Class  string `json:"class"`
}

// WeaviateStore indexes chunks in a Weaviate class with externally
// supplied vectors (vectorizer "none"); embeddings stay under this
// service's control so all backends share one embedding space.
type WeaviateStore struct {
	client   *weaviate.Client
	config   *WeaviateConfig
	embedder embeddings.Provider
	logger   *slog.Logger
}

// NewWeaviateStore connects to Weaviate and ensures the chunk class exists.
func NewWeaviateStore(config *WeaviateConfig, embedder embeddings.Provider, logger *slog.Logger) (*WeaviateStore, error) {
	if config == nil || config.Host == "" {
		return nil, fmt.Errorf("weaviate host is required")
	}
	if config.Scheme == "" {
		config.Scheme = "http"
	}
	if config.Class == "" {
		config.Class = "DocumentChunk"
	}
	if logger == nil {
		logger = slog.Default()
	}

	var authConfig auth.Config
	if config.APIKey != "" {
		authConfig = auth.ApiKey{Value: config.APIKey}
	}

	client, err := weaviate.NewClient(weaviate.Config{
		Host:       config.Host,
		Scheme:     config.Scheme,
		AuthConfig: authConfig,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create weaviate client: %w", err)
	}

	ws := &WeaviateStore{
		client:   client,
		config:   config,
		embedder: embedder,
		logger:   logger.With("component", "weaviate-vector-store"),
	}
	if err := ws.ensureSchema(context.Background()); err != nil {
		return nil, err
	}
	return ws, nil
}

func (w *WeaviateStore) ensureSchema(ctx context.Context) error {
	class := &models.Class{
		Class:       w.config.Class,
		Description: "Embedded document chunk for retrieval-augmented generation",
		Vectorizer:  "none",
		Properties: []*models.Property{
			{Name: "content", DataType: []string{"text"}, Description: "Chunk text"},
			{Name: "title", DataType: []string{"text"}, Description: "Source document title"},
			{Name: "source", DataType: []string{"text"}, Description: "Source URL or filename"},
			{Name: "userId", DataType: []string{"text"}, Description: "Owning user"},
			{Name: "parentDocumentId", DataType: []string{"text"}, Description: "Uploaded document ID"},
		},
	}

	err := w.client.Schema().ClassCreator().WithClass(class).Do(ctx)
	if err != nil {
		if strings.Contains(err.Error(), "already exists") {
			w.logger.Debug("weaviate class already exists", slog.String("class", w.config.Class))
			return nil
		}
		return fmt.Errorf("failed to create weaviate class: %w", err)
	}
	w.logger.Info("created weaviate class", slog.String("class", w.config.Class))
	return nil
}

// Add inserts chunk records with their vectors.
func (w *WeaviateStore) Add(ctx context.Context, records []ChunkRecord) error {
	for _, r := range records {
		properties := map[string]any{
			"content":          r.Content,
			"title":            stringField(r.Metadata, "title"),
			"source":           stringField(r.Metadata, "source"),
			"userId":           userIDOf(r.Metadata),
			"parentDocumentId": stringField(r.Metadata, "parent_document_id"),
		}
		_, err := w.client.Data().Creator().
			WithClassName(w.config.Class).
			WithID(uuid.NewString()).
			WithProperties(properties).
			WithVector(r.Embedding).
			Do(ctx)
		if err != nil {
			return fmt.Errorf("failed to insert chunk into weaviate: %w", err)
		}
	}
	return nil
}

// Search runs a nearVector query and maps results to matches. Weaviate's
// certainty is rescaled from [0, 1] back to cosine similarity.
func (w *WeaviateStore) Search(ctx context.Context, q Query) ([]Match, error) {
	queryVec, err := resolveEmbedding(ctx, w.embedder, q)
	if err != nil {
		return nil, err
	}
	topK := q.TopK
	if topK <= 0 {
		topK = 4
	}

	nearVector := w.client.GraphQL().NearVectorArgBuilder().WithVector(queryVec)

	fields := []graphql.Field{
		{Name: "content"},
		{Name: "title"},
		{Name: "source"},
		{Name: "userId"},
		{Name: "parentDocumentId"},
		{Name: "_additional", Fields: []graphql.Field{
			{Name: "certainty"},
		}},
	}

	builder := w.client.GraphQL().Get().
		WithClassName(w.config.Class).
		WithNearVector(nearVector).
		WithLimit(topK).
		WithFields(fields...)

	if q.UserID != "" {
		builder = builder.WithWhere(filters.Where().
			WithPath([]string{"userId"}).
			WithOperator(filters.Equal).
			WithValueText(q.UserID))
	}

	started := time.Now()
	result, err := builder.Do(ctx)
	if err != nil {
		return nil, fmt.Errorf("weaviate search failed: %w", err)
	}
	if len(result.Errors) > 0 {
		return nil, fmt.Errorf("weaviate search failed: %s", result.Errors[0].Message)
	}

	var matches []Match
	if data, ok := result.Data["Get"].(map[string]any); ok {
		if items, ok := data[w.config.Class].([]any); ok {
			for _, item := range items {
				obj, ok := item.(map[string]any)
				if !ok {
					continue
				}
				matches = append(matches, w.parseMatch(obj))
			}
		}
	}

	w.logger.Debug("weaviate search completed",
		slog.Int("results", len(matches)),
		slog.Duration("took", time.Since(started)))
	return matches, nil
}

func (w *WeaviateStore) parseMatch(obj map[string]any) Match {
	match := Match{
		Metadata: map[string]any{},
	}
	if content, ok := obj["content"].(string); ok {
		match.Content = content
	}
	for prop, key := range map[string]string{
		"title":            "title",
		"source":           "source",
		"userId":           "user_id",
		"parentDocumentId": "parent_document_id",
	} {
		if v, ok := obj[prop].(string); ok && v != "" {
			match.Metadata[key] = v
		}
	}
	if additional, ok := obj["_additional"].(map[string]any); ok {
		if certainty, ok := additional["certainty"].(float64); ok {
			// certainty = (1 + cosine) / 2
			match.Score = certainty*2 - 1
		}
	}
	return match
}

// Count returns the number of objects in the chunk class.
func (w *WeaviateStore) Count(ctx context.Context) (int64, error) {
	result, err := w.client.GraphQL().Aggregate().
		WithClassName(w.config.Class).
		WithFields(graphql.Field{Name: "meta", Fields: []graphql.Field{{Name: "count"}}}).
		Do(ctx)
	if err != nil {
		return 0, fmt.Errorf("weaviate aggregate failed: %w", err)
	}
	if data, ok := result.Data["Aggregate"].(map[string]any); ok {
		if items, ok := data[w.config.Class].([]any); ok && len(items) > 0 {
			if obj, ok := items[0].(map[string]any); ok {
				if meta, ok := obj["meta"].(map[string]any); ok {
					if count, ok := meta["count"].(float64); ok {
						return int64(count), nil
					}
				}
			}
		}
	}
	return 0, nil
}

// Close is a no-op; the client holds no persistent connections.
func (w *WeaviateStore) Close(ctx context.Context) error { return nil }

func stringField(metadata map[string]any, key string) string {
	if metadata == nil {
		return ""
	}
	if v, ok := metadata[key].(string); ok {
		return v
	}
	return ""
}
