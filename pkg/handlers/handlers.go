// Package handlers implements the HTTP API of the RAG chatbot service.
package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"github.com/YuBaichuan2000/rag-backend/pkg/config"
	"github.com/YuBaichuan2000/rag-backend/pkg/ingest"
	"github.com/YuBaichuan2000/rag-backend/pkg/metrics"
	"github.com/YuBaichuan2000/rag-backend/pkg/rag"
	"github.com/YuBaichuan2000/rag-backend/pkg/store"
)

// ChatEngine processes chat messages. *rag.Engine satisfies it.
type ChatEngine interface {
	ProcessMessage(ctx context.Context, message, threadID string) (string, string, error)
}

// Ingestor indexes loaded documents. *ingest.Processor satisfies it.
type Ingestor interface {
	IngestDocuments(ctx context.Context, docs []ingest.Document, userID string) ([]string, error)
}

// DocumentLoader loads documents from the supported sources.
// *ingest.Loader satisfies it.
type DocumentLoader interface {
	FromURL(ctx context.Context, url, title string) ([]ingest.Document, error)
	FromPDF(content []byte, filename, title string) ([]ingest.Document, error)
	FromText(content []byte, filename, title string) ([]ingest.Document, error)
}

// ConversationStore persists conversations and messages. *store.Store
// satisfies it.
type ConversationStore interface {
	CreateConversation(ctx context.Context, conv *store.Conversation) error
	ListConversations(ctx context.Context, userID string) ([]store.Conversation, error)
	GetConversation(ctx context.Context, conversationID string) (*store.Conversation, error)
	DeleteConversation(ctx context.Context, conversationID, userID string) error
	InsertMessage(ctx context.Context, msg *store.ChatMessage) error
	ListMessages(ctx context.Context, conversationID string) ([]store.ChatMessage, error)
	RecordExchange(ctx context.Context, conversationID, preview string) error
	Ping(ctx context.Context) error
}

// Handler carries the wired service components.
type Handler struct {
	cfg      *config.Settings
	engine   ChatEngine
	ingestor Ingestor
	loader   DocumentLoader
	store    ConversationStore
	logger   *slog.Logger
}

// New creates the API handler.
func New(cfg *config.Settings, engine ChatEngine, ingestor Ingestor, loader DocumentLoader, convStore ConversationStore, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		cfg:      cfg,
		engine:   engine,
		ingestor: ingestor,
		loader:   loader,
		store:    convStore,
		logger:   logger.With("component", "api"),
	}
}

// Register mounts all routes on the router.
func (h *Handler) Register(r *mux.Router) {
	r.HandleFunc("/", h.root).Methods(http.MethodGet)
	r.HandleFunc("/healthz", h.health).Methods(http.MethodGet)
	r.Handle("/metrics", metrics.Handler()).Methods(http.MethodGet)

	r.HandleFunc("/chat", h.chat).Methods(http.MethodPost)
	r.HandleFunc("/new-conversation", h.newConversation).Methods(http.MethodPost)
	r.HandleFunc("/conversations", h.listConversations).Methods(http.MethodGet)
	r.HandleFunc("/conversations/{conversation_id}/messages", h.conversationMessages).Methods(http.MethodGet)
	r.HandleFunc("/conversations/{conversation_id}", h.deleteConversation).Methods(http.MethodDelete)

	r.HandleFunc("/upload-url", h.uploadURL).Methods(http.MethodPost)
	r.HandleFunc("/upload-file", h.uploadFile).Methods(http.MethodPost)
}

func (h *Handler) root(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"message": "RAG Chatbot API is running"})
}

func (h *Handler) health(w http.ResponseWriter, r *http.Request) {
	if err := h.store.Ping(r.Context()); err != nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"status": "unhealthy",
			"detail": err.Error(),
		})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *Handler) chat(w http.ResponseWriter, r *http.Request) {
	var req ChatRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if strings.TrimSpace(req.Message) == "" {
		writeError(w, http.StatusBadRequest, "message is required")
		return
	}
	if req.UserID == "" {
		writeError(w, http.StatusBadRequest, "user_id is required")
		return
	}

	ctx := r.Context()
	isNewThread := req.ThreadID == ""

	response, threadID, err := h.engine.ProcessMessage(ctx, req.Message, req.ThreadID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, fmt.Sprintf("Error processing chat: %v", err))
		return
	}
	metrics.ChatMessagesProcessed.Inc()

	// Conversation bookkeeping must not fail the chat response; failures
	// are logged and the reply still goes out.
	if isNewThread {
		conv := &store.Conversation{
			ConversationID: threadID,
			UserID:         req.UserID,
			Title:          truncate(req.Message, 50),
		}
		if err := h.store.CreateConversation(ctx, conv); err != nil {
			h.logger.Warn("failed to create conversation record",
				slog.String("thread_id", threadID),
				slog.String("error", err.Error()))
		}
	}
	h.recordMessages(ctx, threadID, req, response)

	writeJSON(w, http.StatusOK, ChatResponse{Response: response, ThreadID: threadID})
}

func (h *Handler) recordMessages(ctx context.Context, threadID string, req ChatRequest, response string) {
	userMsg := &store.ChatMessage{
		ConversationID: threadID,
		MessageID:      uuid.NewString(),
		Type:           store.MessageTypeUser,
		Content:        req.Message,
		Metadata:       map[string]any{"user_id": req.UserID},
	}
	aiMsg := &store.ChatMessage{
		ConversationID: threadID,
		MessageID:      uuid.NewString(),
		Type:           store.MessageTypeAI,
		Content:        response,
		Metadata: map[string]any{
			"model_used":  h.cfg.LLMModel,
			"temperature": h.cfg.LLMTemperature,
		},
	}
	for _, msg := range []*store.ChatMessage{userMsg, aiMsg} {
		if err := h.store.InsertMessage(ctx, msg); err != nil {
			h.logger.Warn("failed to record message",
				slog.String("thread_id", threadID),
				slog.String("type", msg.Type),
				slog.String("error", err.Error()))
		}
	}
	if err := h.store.RecordExchange(ctx, threadID, truncate(response, 100)); err != nil {
		h.logger.Warn("failed to update conversation",
			slog.String("thread_id", threadID),
			slog.String("error", err.Error()))
	}
}

func (h *Handler) newConversation(w http.ResponseWriter, r *http.Request) {
	userID := r.URL.Query().Get("user_id")
	if userID == "" {
		writeError(w, http.StatusBadRequest, "user_id is required")
		return
	}

	conversationID := uuid.NewString()
	conv := &store.Conversation{
		ConversationID: conversationID,
		UserID:         userID,
		Title:          "New Conversation",
	}
	if err := h.store.CreateConversation(r.Context(), conv); err != nil {
		writeError(w, http.StatusInternalServerError, fmt.Sprintf("Error creating new conversation: %v", err))
		return
	}

	writeJSON(w, http.StatusOK, ChatResponse{Response: rag.Greeting, ThreadID: conversationID})
}

func (h *Handler) listConversations(w http.ResponseWriter, r *http.Request) {
	userID := r.URL.Query().Get("user_id")
	if userID == "" {
		writeError(w, http.StatusBadRequest, "user_id is required")
		return
	}

	conversations, err := h.store.ListConversations(r.Context(), userID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, fmt.Sprintf("Error listing conversations: %v", err))
		return
	}
	writeJSON(w, http.StatusOK, ConversationListResponse{Conversations: conversations})
}

func (h *Handler) conversationMessages(w http.ResponseWriter, r *http.Request) {
	conversationID := mux.Vars(r)["conversation_id"]

	conv, err := h.store.GetConversation(r.Context(), conversationID)
	if errors.Is(err, store.ErrNotFound) {
		writeError(w, http.StatusNotFound, "Conversation not found")
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, fmt.Sprintf("Error fetching conversation messages: %v", err))
		return
	}

	messages, err := h.store.ListMessages(r.Context(), conversationID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, fmt.Sprintf("Error fetching conversation messages: %v", err))
		return
	}

	writeJSON(w, http.StatusOK, ConversationMessagesResponse{
		Conversation:  *conv,
		Messages:      messages,
		TotalMessages: len(messages),
	})
}

func (h *Handler) deleteConversation(w http.ResponseWriter, r *http.Request) {
	conversationID := mux.Vars(r)["conversation_id"]
	userID := r.URL.Query().Get("user_id")
	if userID == "" {
		writeError(w, http.StatusBadRequest, "user_id is required")
		return
	}

	err := h.store.DeleteConversation(r.Context(), conversationID, userID)
	if errors.Is(err, store.ErrNotFound) {
		writeError(w, http.StatusNotFound, "Conversation not found or unauthorized")
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, fmt.Sprintf("Error deleting conversation: %v", err))
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "Conversation deleted successfully"})
}

func (h *Handler) uploadURL(w http.ResponseWriter, r *http.Request) {
	var req URLUploadRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if req.URL == "" {
		writeError(w, http.StatusBadRequest, "url is required")
		return
	}
	if req.UserID == "" {
		writeError(w, http.StatusBadRequest, "user_id is required")
		return
	}

	documents, err := h.loader.FromURL(r.Context(), req.URL, req.Title)
	if err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("Failed to load URL: %v", err))
		return
	}

	h.finishUpload(w, r, documents, req.UserID, "Successfully uploaded and processed document from URL")
}

func (h *Handler) uploadFile(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(h.cfg.MaxUploadBytes); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid multipart form: %v", err))
		return
	}

	userID := r.FormValue("user_id")
	if userID == "" {
		writeError(w, http.StatusBadRequest, "user_id is required")
		return
	}
	title := r.FormValue("title")

	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, "file is required")
		return
	}
	defer file.Close()

	content, err := io.ReadAll(io.LimitReader(file, h.cfg.MaxUploadBytes+1))
	if err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("failed to read file: %v", err))
		return
	}
	if int64(len(content)) > h.cfg.MaxUploadBytes {
		writeError(w, http.StatusBadRequest, "file exceeds maximum upload size")
		return
	}

	var documents []ingest.Document
	switch strings.ToLower(filepath.Ext(header.Filename)) {
	case ".pdf":
		documents, err = h.loader.FromPDF(content, header.Filename, title)
	case ".txt", ".md":
		documents, err = h.loader.FromText(content, header.Filename, title)
	default:
		writeError(w, http.StatusBadRequest, "Unsupported file type. Please upload PDF or text files.")
		return
	}
	if err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("Failed to load file: %v", err))
		return
	}

	h.finishUpload(w, r, documents, userID,
		fmt.Sprintf("Successfully uploaded and processed %s", header.Filename))
}

func (h *Handler) finishUpload(w http.ResponseWriter, r *http.Request, documents []ingest.Document, userID, message string) {
	documentIDs, err := h.ingestor.IngestDocuments(r.Context(), documents, userID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, fmt.Sprintf("Error processing documents: %v", err))
		return
	}
	metrics.DocumentsIngested.Add(float64(len(documentIDs)))

	title := "Unknown"
	if t, ok := documents[0].Metadata["title"].(string); ok && t != "" {
		title = t
	}
	writeJSON(w, http.StatusOK, DocumentUploadResponse{
		DocumentID: documentIDs[0],
		Title:      title,
		Status:     "success",
		Message:    message,
	})
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max] + "..."
}

func decodeJSON(r *http.Request, v any) error {
	dec := json.NewDecoder(r.Body)
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("invalid JSON body: %w", err)
	}
	return nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, detail string) {
	writeJSON(w, status, map[string]string{"detail": detail})
}
