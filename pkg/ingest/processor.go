package ingest

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/YuBaichuan2000/rag-backend/pkg/embeddings"
	"github.com/YuBaichuan2000/rag-backend/pkg/store"
	"github.com/YuBaichuan2000/rag-backend/pkg/vectorstore"
)

// DocumentWriter persists uploaded source documents. *store.Store
// satisfies it.
type DocumentWriter interface {
	InsertDocument(ctx context.Context, doc *store.DocumentRecord) error
}

// ProcessorConfig holds ingestion parameters.
type ProcessorConfig struct {
	ChunkSize      int `json:"chunk_size"`
	ChunkOverlap   int `json:"chunk_overlap"`
	MinChunkSize   int `json:"min_chunk_size"`
	MaxConcurrency int `json:"max_concurrency"` // concurrent embedding batches
	EmbedBatchSize int `json:"embed_batch_size"`
}

// Processor chunks, embeds, and indexes loaded documents.
type Processor struct {
	config   *ProcessorConfig
	writer   DocumentWriter
	embedder embeddings.Provider
	vectors  vectorstore.Store
	chunker  *Chunker
	logger   *slog.Logger
}

// NewProcessor creates an ingestion processor.
func NewProcessor(config *ProcessorConfig, writer DocumentWriter, embedder embeddings.Provider, vectors vectorstore.Store, logger *slog.Logger) *Processor {
	if config == nil {
		config = &ProcessorConfig{}
	}
	if config.MaxConcurrency <= 0 {
		config.MaxConcurrency = 4
	}
	if config.EmbedBatchSize <= 0 {
		config.EmbedBatchSize = 32
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Processor{
		config:   config,
		writer:   writer,
		embedder: embedder,
		vectors:  vectors,
		chunker: NewChunker(&ChunkerConfig{
			ChunkSize:    config.ChunkSize,
			ChunkOverlap: config.ChunkOverlap,
			MinChunkSize: config.MinChunkSize,
		}),
		logger: logger.With("component", "ingest-processor"),
	}
}

// IngestDocuments stores each document, chunks it, embeds the chunks, and
// indexes them in the vector store tagged with the parent document and
// owning user. Document IDs are returned in input order. Documents are
// persisted before embedding begins; an embedding failure aborts indexing
// but leaves stored documents in place.
func (p *Processor) IngestDocuments(ctx context.Context, docs []Document, userID string) ([]string, error) {
	if len(docs) == 0 {
		return nil, fmt.Errorf("no documents to ingest")
	}

	documentIDs := make([]string, len(docs))
	type chunkBatch struct {
		docIdx int
		chunks []Chunk
	}
	var batches []chunkBatch
	totalChunks := 0

	for i, doc := range docs {
		id := uuid.NewString()
		documentIDs[i] = id

		record := &store.DocumentRecord{
			ID:       id,
			Content:  doc.Content,
			Metadata: doc.Metadata,
			UserID:   userID,
		}
		if err := p.writer.InsertDocument(ctx, record); err != nil {
			return nil, fmt.Errorf("failed to store document: %w", err)
		}

		chunks := p.chunker.Split(doc.Content)
		totalChunks += len(chunks)
		batches = append(batches, chunkBatch{docIdx: i, chunks: chunks})
	}

	records := make([]vectorstore.ChunkRecord, 0, totalChunks)
	var mu sync.Mutex

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.config.MaxConcurrency)

	for _, batch := range batches {
		doc := docs[batch.docIdx]
		docID := documentIDs[batch.docIdx]
		chunks := batch.chunks

		for start := 0; start < len(chunks); start += p.config.EmbedBatchSize {
			end := start + p.config.EmbedBatchSize
			if end > len(chunks) {
				end = len(chunks)
			}
			part := chunks[start:end]

			g.Go(func() error {
				texts := make([]string, len(part))
				for i, ch := range part {
					texts[i] = ch.Content
				}
				vectors, err := p.embedder.EmbedBatch(gctx, texts)
				if err != nil {
					return fmt.Errorf("failed to embed chunks: %w", err)
				}

				local := make([]vectorstore.ChunkRecord, len(part))
				for i, ch := range part {
					metadata := map[string]any{
						"parent_document_id": docID,
						"user_id":            userID,
						"chunk_index":        ch.Index,
					}
					for k, v := range doc.Metadata {
						if _, exists := metadata[k]; !exists {
							metadata[k] = v
						}
					}
					local[i] = vectorstore.ChunkRecord{
						Content:   ch.Content,
						Embedding: vectors[i],
						Metadata:  metadata,
					}
				}

				mu.Lock()
				records = append(records, local...)
				mu.Unlock()
				return nil
			})
		}
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	if err := p.vectors.Add(ctx, records); err != nil {
		return nil, fmt.Errorf("failed to index chunks: %w", err)
	}

	p.logger.Info("documents ingested",
		slog.Int("documents", len(docs)),
		slog.Int("chunks", len(records)),
		slog.String("user_id", userID))
	return documentIDs, nil
}
