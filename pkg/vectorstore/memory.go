package vectorstore

import (
	"context"
	"encoding/gob"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/YuBaichuan2000/rag-backend/pkg/embeddings"
)

func init() {
	// Metadata maps survive gob snapshots only if their concrete value
	// types are registered.
	gob.Register(map[string]any{})
	gob.Register([]any{})
	gob.Register(time.Time{})
}

// MemoryConfig holds configuration for the in-memory store.
type MemoryConfig struct {
	SnapshotPath string `json:"snapshot_path"`
}

// MemoryStore is a flat in-memory index with exact cosine search, for
// indexes small enough to hold in memory. Snapshot and Restore persist
// the index to disk between runs.
type MemoryStore struct {
	config   *MemoryConfig
	embedder embeddings.Provider
	logger   *slog.Logger

	mu      sync.RWMutex
	entries []ChunkRecord
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore(config *MemoryConfig, embedder embeddings.Provider, logger *slog.Logger) *MemoryStore {
	if config == nil {
		config = &MemoryConfig{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &MemoryStore{
		config:   config,
		embedder: embedder,
		logger:   logger.With("component", "memory-vector-store"),
	}
}

// Add appends records to the index.
func (m *MemoryStore) Add(ctx context.Context, records []ChunkRecord) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if len(records) == 0 {
		return nil
	}
	m.mu.Lock()
	m.entries = append(m.entries, records...)
	total := len(m.entries)
	m.mu.Unlock()

	m.logger.Debug("indexed chunks", slog.Int("added", len(records)), slog.Int("total", total))
	return nil
}

// Search scans the whole index and returns the top-k cosine matches.
// An empty index yields no matches, not an error.
func (m *MemoryStore) Search(ctx context.Context, q Query) ([]Match, error) {
	m.mu.RLock()
	empty := len(m.entries) == 0
	m.mu.RUnlock()
	if empty {
		return nil, nil
	}

	queryVec, err := resolveEmbedding(ctx, m.embedder, q)
	if err != nil {
		return nil, err
	}
	topK := q.TopK
	if topK <= 0 {
		topK = 4
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	matches := make([]Match, 0, len(m.entries))
	for _, e := range m.entries {
		if q.UserID != "" && userIDOf(e.Metadata) != q.UserID {
			continue
		}
		matches = append(matches, Match{
			Content:  e.Content,
			Metadata: e.Metadata,
			Score:    cosineSimilarity(queryVec, e.Embedding),
		})
	}
	sort.SliceStable(matches, func(i, j int) bool {
		return matches[i].Score > matches[j].Score
	})
	if len(matches) > topK {
		matches = matches[:topK]
	}
	return matches, nil
}

// Count returns the number of indexed chunks.
func (m *MemoryStore) Count(ctx context.Context) (int64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return int64(len(m.entries)), nil
}

// Close snapshots the index when a snapshot path is configured.
func (m *MemoryStore) Close(ctx context.Context) error {
	if m.config.SnapshotPath == "" {
		return nil
	}
	return m.Snapshot()
}

const snapshotFile = "index.gob"

// Snapshot writes the index to the configured snapshot directory.
func (m *MemoryStore) Snapshot() error {
	if m.config.SnapshotPath == "" {
		return fmt.Errorf("no snapshot path configured")
	}
	if err := os.MkdirAll(m.config.SnapshotPath, 0o755); err != nil {
		return fmt.Errorf("failed to create snapshot directory: %w", err)
	}

	path := filepath.Join(m.config.SnapshotPath, snapshotFile)
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create snapshot file: %w", err)
	}
	defer f.Close()

	m.mu.RLock()
	defer m.mu.RUnlock()
	if err := gob.NewEncoder(f).Encode(m.entries); err != nil {
		return fmt.Errorf("failed to encode snapshot: %w", err)
	}
	m.logger.Info("vector index snapshot written",
		slog.String("path", path), slog.Int("entries", len(m.entries)))
	return nil
}

// Restore loads a previously written snapshot. A missing snapshot leaves
// the index empty and is not an error.
func (m *MemoryStore) Restore() error {
	if m.config.SnapshotPath == "" {
		return fmt.Errorf("no snapshot path configured")
	}
	path := filepath.Join(m.config.SnapshotPath, snapshotFile)
	f, err := os.Open(path)
	if os.IsNotExist(err) {
		m.logger.Info("no vector index snapshot found, starting empty", slog.String("path", path))
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to open snapshot: %w", err)
	}
	defer f.Close()

	var entries []ChunkRecord
	if err := gob.NewDecoder(f).Decode(&entries); err != nil {
		return fmt.Errorf("failed to decode snapshot: %w", err)
	}

	m.mu.Lock()
	m.entries = entries
	m.mu.Unlock()

	m.logger.Info("vector index snapshot restored",
		slog.String("path", path), slog.Int("entries", len(entries)))
	return nil
}
