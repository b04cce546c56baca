// rag-server is the RAG chatbot API: document ingestion, retrieval-augmented
// chat, and conversation management over MongoDB and a pluggable vector store.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/go-redis/redis/v8"
	"github.com/gorilla/mux"

	"github.com/YuBaichuan2000/rag-backend/pkg/config"
	"github.com/YuBaichuan2000/rag-backend/pkg/embeddings"
	"github.com/YuBaichuan2000/rag-backend/pkg/handlers"
	"github.com/YuBaichuan2000/rag-backend/pkg/ingest"
	"github.com/YuBaichuan2000/rag-backend/pkg/llm"
	"github.com/YuBaichuan2000/rag-backend/pkg/middleware"
	"github.com/YuBaichuan2000/rag-backend/pkg/rag"
	"github.com/YuBaichuan2000/rag-backend/pkg/store"
	"github.com/YuBaichuan2000/rag-backend/pkg/vectorstore"
)

func main() {
	if err := run(); err != nil {
		slog.Error("server exited with error", slog.String("error", err.Error()))
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	logger := newLogger(cfg.LogLevel)
	slog.SetDefault(logger)
	logger.Info("starting rag-server",
		slog.String("addr", cfg.ListenAddr()),
		slog.String("llm_backend", cfg.LLMBackend),
		slog.String("vector_store", cfg.VectorStoreType))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := store.Connect(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer func() {
		if err := db.Close(context.Background()); err != nil {
			logger.Warn("error closing mongodb connection", slog.String("error", err.Error()))
		}
	}()
	db.EnsureIndexes(ctx)

	embedder, redisClient := newEmbedder(cfg, logger)
	if redisClient != nil {
		defer redisClient.Close()
	}

	vectors, err := vectorstore.New(cfg, vectorstore.Deps{
		Embedder: embedder,
		Mongo:    db,
		Logger:   logger,
	})
	if err != nil {
		return err
	}
	defer func() {
		if err := vectors.Close(context.Background()); err != nil {
			logger.Warn("error closing vector store", slog.String("error", err.Error()))
		}
	}()
	if mem, ok := vectors.(*vectorstore.MemoryStore); ok {
		if err := mem.Restore(); err != nil {
			logger.Warn("could not restore vector index snapshot", slog.String("error", err.Error()))
		}
	}

	client := newLLMClient(cfg, logger)

	engine := rag.NewEngine(client, vectors, db.NewCheckpointer(),
		&rag.EngineConfig{TopK: cfg.RetrievalTopK}, logger)

	loader := ingest.NewLoader(&ingest.LoaderConfig{MaxFileSize: cfg.MaxUploadBytes}, logger)
	processor := ingest.NewProcessor(&ingest.ProcessorConfig{
		ChunkSize:      cfg.ChunkSize,
		ChunkOverlap:   cfg.ChunkOverlap,
		MinChunkSize:   cfg.MinChunkSize,
		EmbedBatchSize: cfg.EmbeddingBatchSize,
	}, db, embedder, vectors, logger)

	router := mux.NewRouter()
	router.Use(
		middleware.Logging(logger),
		middleware.Instrument(),
		middleware.CORS(cfg.CORSOrigins),
		middleware.MaxBytes(cfg.MaxUploadBytes),
	)
	handlers.New(cfg, engine, processor, loader, db, logger).Register(router)

	server := &http.Server{
		Addr:    cfg.ListenAddr(),
		Handler: router,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("http server listening", slog.String("addr", server.Addr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("http server failed: %w", err)
	case <-ctx.Done():
	}

	logger.Info("shutting down", slog.Duration("grace_period", cfg.GracefulShutdown))
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.GracefulShutdown)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("graceful shutdown failed: %w", err)
	}

	if mem, ok := vectors.(*vectorstore.MemoryStore); ok {
		if err := mem.Snapshot(); err != nil {
			logger.Warn("could not snapshot vector index", slog.String("error", err.Error()))
		}
	}

	logger.Info("shutdown complete")
	return nil
}

func newLogger(level string) *slog.Logger {
	var lvl slog.Level
	switch strings.ToLower(level) {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: lvl}))
}

// newEmbedder builds the embedding provider for the configured backend,
// wrapped in the Redis cache when enabled. The returned client is nil when
// the cache is disabled.
func newEmbedder(cfg *config.Settings, logger *slog.Logger) (embeddings.Provider, *redis.Client) {
	var provider embeddings.Provider
	if cfg.LLMBackend == "mock" {
		provider = embeddings.NewMockProvider(cfg.EmbeddingDimensions)
	} else {
		provider = embeddings.NewOpenAIProvider(&embeddings.OpenAIConfig{
			APIKey:     cfg.OpenAIAPIKey,
			APIBase:    cfg.OpenAIAPIBase,
			Model:      cfg.EmbeddingModel,
			Dimensions: cfg.EmbeddingDimensions,
			BatchSize:  cfg.EmbeddingBatchSize,
			RateLimit:  cfg.EmbeddingRateLimit,
		}, logger)
	}

	if !cfg.RedisEnabled {
		return provider, nil
	}
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	logger.Info("embedding cache enabled", slog.String("redis_addr", cfg.RedisAddr))
	return embeddings.NewCachingProvider(provider, client, cfg.EmbeddingCacheTTL, logger), client
}

func newLLMClient(cfg *config.Settings, logger *slog.Logger) llm.Client {
	if cfg.LLMBackend == "mock" {
		logger.Warn("using mock llm backend")
		return llm.NewMockClient()
	}
	return llm.NewOpenAIClient(&llm.OpenAIConfig{
		APIKey:      cfg.OpenAIAPIKey,
		APIBase:     cfg.OpenAIAPIBase,
		Model:       cfg.LLMModel,
		Temperature: cfg.LLMTemperature,
		MaxTokens:   cfg.LLMMaxTokens,
		Timeout:     cfg.LLMTimeout,
		MaxRetries:  cfg.LLMMaxRetries,
	}, logger)
}
