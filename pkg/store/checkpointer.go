package store

import (
	"context"
	"errors"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/YuBaichuan2000/rag-backend/pkg/llm"
)

// Checkpointer persists per-thread conversation state in the chat_history
// collection so a thread can resume across requests and restarts.
type Checkpointer struct {
	store *Store
}

// NewCheckpointer returns a checkpointer backed by this store.
func (s *Store) NewCheckpointer() *Checkpointer {
	return &Checkpointer{store: s}
}

type checkpointDoc struct {
	ThreadID  string        `bson:"thread_id"`
	State     []llm.Message `bson:"state"`
	UpdatedAt any           `bson:"updated_at"`
}

// Get loads the message state for a thread. A missing thread yields an
// empty state, not an error.
func (c *Checkpointer) Get(ctx context.Context, threadID string) ([]llm.Message, error) {
	var doc checkpointDoc
	err := c.store.chatHistory().FindOne(ctx, bson.M{"thread_id": threadID}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load checkpoint: %w", err)
	}
	return doc.State, nil
}

// Put upserts the message state for a thread.
func (c *Checkpointer) Put(ctx context.Context, threadID string, state []llm.Message) error {
	_, err := c.store.chatHistory().UpdateOne(ctx,
		bson.M{"thread_id": threadID},
		bson.M{"$set": bson.M{"state": state, "updated_at": nowUTC()}},
		options.Update().SetUpsert(true),
	)
	if err != nil {
		return fmt.Errorf("failed to save checkpoint: %w", err)
	}
	return nil
}

// List returns all known thread IDs.
func (c *Checkpointer) List(ctx context.Context) ([]string, error) {
	opts := options.Find().SetProjection(bson.M{"thread_id": 1})
	cursor, err := c.store.chatHistory().Find(ctx, bson.M{}, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to list checkpoints: %w", err)
	}
	defer cursor.Close(ctx)

	var threads []string
	for cursor.Next(ctx) {
		var doc struct {
			ThreadID string `bson:"thread_id"`
		}
		if err := cursor.Decode(&doc); err != nil {
			return nil, fmt.Errorf("failed to decode checkpoint: %w", err)
		}
		threads = append(threads, doc.ThreadID)
	}
	return threads, cursor.Err()
}
