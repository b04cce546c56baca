package vectorstore

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/YuBaichuan2000/rag-backend/pkg/embeddings"
)

func seedRecords() []ChunkRecord {
	return []ChunkRecord{
		{
			Content:   "folate intake in the first trimester",
			Embedding: []float32{1, 0, 0},
			Metadata:  map[string]any{"user_id": "alice", "title": "nutrition"},
		},
		{
			Content:   "iron supplements in the third trimester",
			Embedding: []float32{0.9, 0.1, 0},
			Metadata:  map[string]any{"user_id": "alice", "title": "nutrition"},
		},
		{
			Content:   "stretching exercises for back pain",
			Embedding: []float32{0, 1, 0},
			Metadata:  map[string]any{"user_id": "bob", "title": "exercise"},
		},
	}
}

func TestMemoryStoreSearchOrdering(t *testing.T) {
	m := NewMemoryStore(nil, nil, nil)
	require.NoError(t, m.Add(context.Background(), seedRecords()))

	matches, err := m.Search(context.Background(), Query{
		Embedding: []float32{1, 0, 0},
		TopK:      3,
	})
	require.NoError(t, err)
	require.Len(t, matches, 3)

	assert.Equal(t, "folate intake in the first trimester", matches[0].Content)
	assert.InDelta(t, 1.0, matches[0].Score, 1e-6)
	for i := 1; i < len(matches); i++ {
		assert.LessOrEqual(t, matches[i].Score, matches[i-1].Score, "scores must be descending")
	}
}

func TestMemoryStoreTopK(t *testing.T) {
	m := NewMemoryStore(nil, nil, nil)
	require.NoError(t, m.Add(context.Background(), seedRecords()))

	matches, err := m.Search(context.Background(), Query{
		Embedding: []float32{1, 0, 0},
		TopK:      1,
	})
	require.NoError(t, err)
	assert.Len(t, matches, 1)
}

func TestMemoryStoreUserFilter(t *testing.T) {
	m := NewMemoryStore(nil, nil, nil)
	require.NoError(t, m.Add(context.Background(), seedRecords()))

	matches, err := m.Search(context.Background(), Query{
		Embedding: []float32{1, 0, 0},
		TopK:      10,
		UserID:    "bob",
	})
	require.NoError(t, err)
	require.Len(t, matches, 1)
	assert.Equal(t, "stretching exercises for back pain", matches[0].Content)
}

func TestMemoryStoreEmptyIndex(t *testing.T) {
	m := NewMemoryStore(nil, nil, nil)
	matches, err := m.Search(context.Background(), Query{Embedding: []float32{1, 0, 0}})
	require.NoError(t, err)
	assert.Empty(t, matches)

	count, err := m.Count(context.Background())
	require.NoError(t, err)
	assert.Zero(t, count)
}

func TestMemoryStoreEmbedsTextQueries(t *testing.T) {
	embedder := embeddings.NewMockProvider(16)
	m := NewMemoryStore(nil, embedder, nil)

	vec, err := embedder.Embed(context.Background(), "sleep positions")
	require.NoError(t, err)
	require.NoError(t, m.Add(context.Background(), []ChunkRecord{
		{Content: "sleep positions", Embedding: vec, Metadata: map[string]any{}},
		{Content: "unrelated", Embedding: mustEmbed(t, embedder, "totally different topic"), Metadata: map[string]any{}},
	}))

	matches, err := m.Search(context.Background(), Query{Text: "sleep positions", TopK: 1})
	require.NoError(t, err)
	require.Len(t, matches, 1)
	assert.Equal(t, "sleep positions", matches[0].Content)
	assert.InDelta(t, 1.0, matches[0].Score, 1e-5)
}

func TestMemoryStoreQueryWithoutTextOrEmbedding(t *testing.T) {
	m := NewMemoryStore(nil, nil, nil)
	require.NoError(t, m.Add(context.Background(), seedRecords()))

	_, err := m.Search(context.Background(), Query{})
	assert.Error(t, err)
}

func TestMemoryStoreSnapshotRestore(t *testing.T) {
	dir := t.TempDir()

	m := NewMemoryStore(&MemoryConfig{SnapshotPath: dir}, nil, nil)
	records := seedRecords()
	records[0].Metadata["date_added"] = time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)
	require.NoError(t, m.Add(context.Background(), records))
	require.NoError(t, m.Snapshot())

	restored := NewMemoryStore(&MemoryConfig{SnapshotPath: dir}, nil, nil)
	require.NoError(t, restored.Restore())

	count, err := restored.Count(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(3), count)

	matches, err := restored.Search(context.Background(), Query{
		Embedding: []float32{1, 0, 0},
		TopK:      1,
	})
	require.NoError(t, err)
	require.Len(t, matches, 1)
	assert.Equal(t, "folate intake in the first trimester", matches[0].Content)
	assert.Equal(t, "alice", matches[0].Metadata["user_id"])
}

func TestMemoryStoreRestoreMissingSnapshot(t *testing.T) {
	m := NewMemoryStore(&MemoryConfig{SnapshotPath: t.TempDir()}, nil, nil)
	require.NoError(t, m.Restore(), "a missing snapshot is not an error")

	count, _ := m.Count(context.Background())
	assert.Zero(t, count)
}

func TestCosineSimilarity(t *testing.T) {
	assert.InDelta(t, 1.0, cosineSimilarity([]float32{1, 2, 3}, []float32{1, 2, 3}), 1e-6)
	assert.InDelta(t, -1.0, cosineSimilarity([]float32{1, 0}, []float32{-1, 0}), 1e-6)
	assert.InDelta(t, 0.0, cosineSimilarity([]float32{1, 0}, []float32{0, 1}), 1e-6)
	assert.Zero(t, cosineSimilarity([]float32{1, 2}, []float32{1, 2, 3}), "mismatched lengths score zero")
	assert.Zero(t, cosineSimilarity(nil, nil))
	assert.Zero(t, cosineSimilarity([]float32{0, 0}, []float32{1, 1}), "zero vector scores zero")
}

func mustEmbed(t *testing.T, p embeddings.Provider, text string) []float32 {
	t.Helper()
	vec, err := p.Embed(context.Background(), text)
	require.NoError(t, err)
	return vec
}
