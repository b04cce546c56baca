package vectorstore

import (
	"context"
	"fmt"
	"log/slog"
	"sort"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/YuBaichuan2000/rag-backend/pkg/embeddings"
	"github.com/YuBaichuan2000/rag-backend/pkg/store"
)

// MongoStore persists chunk vectors in the vectors collection and scores
// them with in-process cosine similarity. This is the self-hosted
// counterpart of Atlas $vectorSearch: exact and unindexed, adequate for
// collections that fit a single scan.
type MongoStore struct {
	collection *mongo.Collection
	embedder   embeddings.Provider
	logger     *slog.Logger
}

// NewMongoStore creates a vector store over the given collection.
func NewMongoStore(collection *mongo.Collection, embedder embeddings.Provider, logger *slog.Logger) *MongoStore {
	if logger == nil {
		logger = slog.Default()
	}
	return &MongoStore{
		collection: collection,
		embedder:   embedder,
		logger:     logger.With("component", "mongo-vector-store"),
	}
}

// Add persists the chunk records.
func (m *MongoStore) Add(ctx context.Context, records []ChunkRecord) error {
	if len(records) == 0 {
		return nil
	}
	docs := make([]any, 0, len(records))
	for _, r := range records {
		docs = append(docs, store.VectorRecord{
			Content:   r.Content,
			Embedding: r.Embedding,
			Metadata:  r.Metadata,
		})
	}
	if _, err := m.collection.InsertMany(ctx, docs); err != nil {
		return fmt.Errorf("failed to insert vectors: %w", err)
	}
	return nil
}

// Search scans stored vectors (optionally filtered by user) and returns
// the top-k cosine matches.
func (m *MongoStore) Search(ctx context.Context, q Query) ([]Match, error) {
	queryVec, err := resolveEmbedding(ctx, m.embedder, q)
	if err != nil {
		return nil, err
	}
	topK := q.TopK
	if topK <= 0 {
		topK = 4
	}

	filter := bson.M{}
	if q.UserID != "" {
		filter["metadata.user_id"] = q.UserID
	}

	cursor, err := m.collection.Find(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("failed to query vectors: %w", err)
	}
	defer cursor.Close(ctx)

	var matches []Match
	for cursor.Next(ctx) {
		var rec store.VectorRecord
		if err := cursor.Decode(&rec); err != nil {
			return nil, fmt.Errorf("failed to decode vector record: %w", err)
		}
		matches = append(matches, Match{
			Content:  rec.Content,
			Metadata: rec.Metadata,
			Score:    cosineSimilarity(queryVec, rec.Embedding),
		})
	}
	if err := cursor.Err(); err != nil {
		return nil, fmt.Errorf("vector scan failed: %w", err)
	}

	sort.SliceStable(matches, func(i, j int) bool {
		return matches[i].Score > matches[j].Score
	})
	if len(matches) > topK {
		matches = matches[:topK]
	}
	return matches, nil
}

// Count returns the number of stored vectors.
func (m *MongoStore) Count(ctx context.Context) (int64, error) {
	return m.collection.CountDocuments(ctx, bson.M{})
}

// Close is a no-op; the Mongo client is owned by the store package.
func (m *MongoStore) Close(ctx context.Context) error { return nil }
