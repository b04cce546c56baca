// Package store provides MongoDB persistence for the RAG chatbot:
// conversations, messages, uploaded documents, chunk vectors, and the
// per-thread conversation checkpoints used by the engine.
package store

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"

	"github.com/YuBaichuan2000/rag-backend/pkg/config"
)

// Store wraps the MongoDB client and the service's collections.
type Store struct {
	client *mongo.Client
	db     *mongo.Database
	cfg    *config.Settings
	logger *slog.Logger
}

// Connect opens a MongoDB connection and verifies it with a ping.
func Connect(ctx context.Context, cfg *config.Settings, logger *slog.Logger) (*Store, error) {
	if logger == nil {
		logger = slog.Default()
	}

	connectCtx, cancel := context.WithTimeout(ctx, cfg.MongoConnectTimeout)
	defer cancel()

	client, err := mongo.Connect(connectCtx, options.Client().ApplyURI(cfg.MongoURI))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to mongodb: %w", err)
	}
	if err := client.Ping(connectCtx, readpref.Primary()); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("mongodb ping failed: %w", err)
	}

	return &Store{
		client: client,
		db:     client.Database(cfg.DBName),
		cfg:    cfg,
		logger: logger.With("component", "store"),
	}, nil
}

// Close disconnects the underlying client.
func (s *Store) Close(ctx context.Context) error {
	return s.client.Disconnect(ctx)
}

// Ping verifies the database connection, used by the health endpoint.
func (s *Store) Ping(ctx context.Context) error {
	return s.client.Ping(ctx, readpref.Primary())
}

// Vectors exposes the vectors collection for the Mongo vector store backend.
func (s *Store) Vectors() *mongo.Collection {
	return s.db.Collection(s.cfg.VectorsCollection)
}

func (s *Store) conversations() *mongo.Collection {
	return s.db.Collection(s.cfg.ConversationsCollection)
}

func (s *Store) messages() *mongo.Collection {
	return s.db.Collection(s.cfg.MessagesCollection)
}

func (s *Store) documents() *mongo.Collection {
	return s.db.Collection(s.cfg.DocumentsCollection)
}

func (s *Store) chatHistory() *mongo.Collection {
	return s.db.Collection(s.cfg.ChatHistoryCollection)
}

// EnsureIndexes creates the collections and indexes the service relies on.
// Index creation failures are logged but do not abort startup: the service
// degrades to unindexed queries rather than refusing to run.
func (s *Store) EnsureIndexes(ctx context.Context) {
	existing, err := s.db.ListCollectionNames(ctx, bson.M{})
	if err != nil {
		s.logger.Warn("could not list collections", slog.String("error", err.Error()))
	}
	present := make(map[string]bool, len(existing))
	for _, name := range existing {
		present[name] = true
	}
	for _, name := range []string{
		s.cfg.ConversationsCollection,
		s.cfg.MessagesCollection,
		s.cfg.DocumentsCollection,
		s.cfg.VectorsCollection,
		s.cfg.ChatHistoryCollection,
	} {
		if !present[name] {
			if err := s.db.CreateCollection(ctx, name); err != nil {
				s.logger.Warn("could not create collection",
					slog.String("collection", name),
					slog.String("error", err.Error()))
			}
		}
	}

	unique := options.Index().SetUnique(true)

	if _, err := s.conversations().Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "conversation_id", Value: 1}}, Options: unique},
		{Keys: bson.D{{Key: "user_id", Value: 1}, {Key: "updated_at", Value: -1}}},
	}); err != nil {
		s.logger.Warn("could not create conversation indexes", slog.String("error", err.Error()))
	}

	if _, err := s.messages().Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "conversation_id", Value: 1}, {Key: "timestamp", Value: 1}}},
		{Keys: bson.D{{Key: "message_id", Value: 1}}, Options: unique},
	}); err != nil {
		s.logger.Warn("could not create message indexes", slog.String("error", err.Error()))
	}

	if _, err := s.documents().Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "user_id", Value: 1}}},
	}); err != nil {
		s.logger.Warn("could not create document indexes", slog.String("error", err.Error()))
	}

	if _, err := s.chatHistory().Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "thread_id", Value: 1}}, Options: options.Index().SetUnique(true)},
	}); err != nil {
		s.logger.Warn("could not create chat history indexes", slog.String("error", err.Error()))
	}

	s.logger.Info("database indexes ensured", slog.String("db", s.cfg.DBName))
}

// nowUTC is stubbed in tests.
var nowUTC = func() time.Time { return time.Now().UTC() }
