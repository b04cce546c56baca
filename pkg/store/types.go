package store

import "time"

// Message type discriminators, matching the unified chat schema.
const (
	MessageTypeUser = "user"
	MessageTypeAI   = "ai"
)

// Conversation is a chat thread owned by a user.
type Conversation struct {
	ConversationID     string    `bson:"conversation_id" json:"conversation_id"`
	UserID             string    `bson:"user_id" json:"user_id"`
	Title              string    `bson:"title" json:"title"`
	CreatedAt          time.Time `bson:"created_at" json:"created_at"`
	UpdatedAt          time.Time `bson:"updated_at" json:"updated_at"`
	MessageCount       int       `bson:"message_count" json:"message_count"`
	LastMessagePreview string    `bson:"last_message_preview" json:"last_message_preview"`
}

// ChatMessage is a single stored message within a conversation.
type ChatMessage struct {
	ConversationID string         `bson:"conversation_id" json:"conversation_id"`
	MessageID      string         `bson:"message_id" json:"message_id"`
	Type           string         `bson:"type" json:"type"`
	Content        string         `bson:"content" json:"content"`
	Timestamp      time.Time      `bson:"timestamp" json:"timestamp"`
	Metadata       map[string]any `bson:"metadata,omitempty" json:"metadata,omitempty"`
}

// DocumentRecord is an uploaded source document.
type DocumentRecord struct {
	ID        string         `bson:"_id" json:"document_id"`
	Content   string         `bson:"content" json:"content"`
	Metadata  map[string]any `bson:"metadata" json:"metadata"`
	UserID    string         `bson:"user_id" json:"user_id"`
	DateAdded time.Time      `bson:"date_added" json:"date_added"`
}

// VectorRecord is an embedded chunk persisted in the vectors collection.
type VectorRecord struct {
	Content   string         `bson:"content" json:"content"`
	Embedding []float32      `bson:"embedding" json:"embedding"`
	Metadata  map[string]any `bson:"metadata" json:"metadata"`
}
