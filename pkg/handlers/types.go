package handlers

import "github.com/YuBaichuan2000/rag-backend/pkg/store"

// ChatRequest is the body of POST /chat.
type ChatRequest struct {
	Message  string `json:"message"`
	ThreadID string `json:"thread_id,omitempty"`
	UserID   string `json:"user_id"`
}

// ChatResponse is the reply for /chat and /new-conversation.
type ChatResponse struct {
	Response string `json:"response"`
	ThreadID string `json:"thread_id"`
}

// URLUploadRequest is the body of POST /upload-url.
type URLUploadRequest struct {
	URL    string `json:"url"`
	Title  string `json:"title,omitempty"`
	UserID string `json:"user_id"`
}

// DocumentUploadResponse is the reply for both upload endpoints.
type DocumentUploadResponse struct {
	DocumentID string `json:"document_id"`
	Title      string `json:"title"`
	Status     string `json:"status"`
	Message    string `json:"message"`
}

// ConversationListResponse is the reply for GET /conversations.
type ConversationListResponse struct {
	Conversations []store.Conversation `json:"conversations"`
}

// ConversationMessagesResponse is the reply for
// GET /conversations/{conversation_id}/messages.
type ConversationMessagesResponse struct {
	Conversation  store.Conversation  `json:"conversation"`
	Messages      []store.ChatMessage `json:"messages"`
	TotalMessages int                 `json:"total_messages"`
}
