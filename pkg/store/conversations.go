package store

import (
	"context"
	"errors"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// ErrNotFound is returned when a conversation does not exist or is not
// owned by the requesting user.
var ErrNotFound = errors.New("not found")

const listConversationsLimit = 50

// CreateConversation inserts a new conversation record.
func (s *Store) CreateConversation(ctx context.Context, conv *Conversation) error {
	now := nowUTC()
	if conv.CreatedAt.IsZero() {
		conv.CreatedAt = now
	}
	if conv.UpdatedAt.IsZero() {
		conv.UpdatedAt = now
	}
	if _, err := s.conversations().InsertOne(ctx, conv); err != nil {
		return fmt.Errorf("failed to create conversation: %w", err)
	}
	return nil
}

// ListConversations returns a user's conversations, most recently updated
// first, capped at 50.
func (s *Store) ListConversations(ctx context.Context, userID string) ([]Conversation, error) {
	opts := options.Find().
		SetSort(bson.D{{Key: "updated_at", Value: -1}}).
		SetLimit(listConversationsLimit)

	cursor, err := s.conversations().Find(ctx, bson.M{"user_id": userID}, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to list conversations: %w", err)
	}
	defer cursor.Close(ctx)

	conversations := make([]Conversation, 0)
	if err := cursor.All(ctx, &conversations); err != nil {
		return nil, fmt.Errorf("failed to decode conversations: %w", err)
	}
	return conversations, nil
}

// GetConversation looks up a conversation by ID.
func (s *Store) GetConversation(ctx context.Context, conversationID string) (*Conversation, error) {
	var conv Conversation
	err := s.conversations().FindOne(ctx, bson.M{"conversation_id": conversationID}).Decode(&conv)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get conversation: %w", err)
	}
	return &conv, nil
}

// GetConversationForUser looks up a conversation and verifies ownership.
func (s *Store) GetConversationForUser(ctx context.Context, conversationID, userID string) (*Conversation, error) {
	var conv Conversation
	err := s.conversations().FindOne(ctx, bson.M{
		"conversation_id": conversationID,
		"user_id":         userID,
	}).Decode(&conv)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get conversation: %w", err)
	}
	return &conv, nil
}

// RecordExchange updates conversation bookkeeping after one user/AI
// round trip: bumps updated_at, increments message_count by two, and
// stores a preview of the AI response.
func (s *Store) RecordExchange(ctx context.Context, conversationID, preview string) error {
	_, err := s.conversations().UpdateOne(ctx,
		bson.M{"conversation_id": conversationID},
		bson.M{
			"$set": bson.M{
				"updated_at":           nowUTC(),
				"last_message_preview": preview,
			},
			"$inc": bson.M{"message_count": 2},
		},
	)
	if err != nil {
		return fmt.Errorf("failed to update conversation: %w", err)
	}
	return nil
}

// DeleteConversation removes a conversation and all its messages. The
// conversation must belong to the given user.
func (s *Store) DeleteConversation(ctx context.Context, conversationID, userID string) error {
	if _, err := s.GetConversationForUser(ctx, conversationID, userID); err != nil {
		return err
	}
	if _, err := s.messages().DeleteMany(ctx, bson.M{"conversation_id": conversationID}); err != nil {
		return fmt.Errorf("failed to delete messages: %w", err)
	}
	if _, err := s.conversations().DeleteOne(ctx, bson.M{"conversation_id": conversationID}); err != nil {
		return fmt.Errorf("failed to delete conversation: %w", err)
	}
	return nil
}

// InsertMessage stores a single chat message.
func (s *Store) InsertMessage(ctx context.Context, msg *ChatMessage) error {
	if msg.Timestamp.IsZero() {
		msg.Timestamp = nowUTC()
	}
	if _, err := s.messages().InsertOne(ctx, msg); err != nil {
		return fmt.Errorf("failed to insert message: %w", err)
	}
	return nil
}

// ListMessages returns a conversation's messages in chronological order.
func (s *Store) ListMessages(ctx context.Context, conversationID string) ([]ChatMessage, error) {
	opts := options.Find().SetSort(bson.D{{Key: "timestamp", Value: 1}})
	cursor, err := s.messages().Find(ctx, bson.M{"conversation_id": conversationID}, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to list messages: %w", err)
	}
	defer cursor.Close(ctx)

	messages := make([]ChatMessage, 0)
	if err := cursor.All(ctx, &messages); err != nil {
		return nil, fmt.Errorf("failed to decode messages: %w", err)
	}
	return messages, nil
}

// InsertDocument stores an uploaded document.
func (s *Store) InsertDocument(ctx context.Context, doc *DocumentRecord) error {
	if doc.DateAdded.IsZero() {
		doc.DateAdded = nowUTC()
	}
	if _, err := s.documents().InsertOne(ctx, doc); err != nil {
		return fmt.Errorf("failed to insert document: %w", err)
	}
	return nil
}
