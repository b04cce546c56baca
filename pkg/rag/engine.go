// Package rag implements the conversation engine: each user message either
// gets a direct answer or triggers a retrieval pass over the vector store
// before the answer is generated. Conversation state is checkpointed per
// thread.
package rag

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"

	"github.com/YuBaichuan2000/rag-backend/pkg/llm"
	"github.com/YuBaichuan2000/rag-backend/pkg/vectorstore"
)

// Checkpointer persists conversation state per thread.
type Checkpointer interface {
	// Get loads the state for a thread; a missing thread yields nil state.
	Get(ctx context.Context, threadID string) ([]llm.Message, error)

	// Put saves the state for a thread.
	Put(ctx context.Context, threadID string, state []llm.Message) error

	// List returns all known thread IDs.
	List(ctx context.Context) ([]string, error)
}

// Greeting is returned when a new conversation is opened explicitly.
const Greeting = "I'm ready to help you with any questions about your pregnancy journey!"

const decidePrompt = "You are an AI assistant that responds to questions based on stored documents. " +
	"Use the retrieval tool to find relevant information when needed. " +
	"If you don't know the answer, say so."

const generatePrompt = "You are an AI assistant that helps users with information from their documents. " +
	"Use the following retrieved information to answer the question. " +
	"If you don't know the answer, say so clearly."

const retrieveToolName = "retrieve"

var retrieveTool = llm.Tool{
	Type: "function",
	Function: llm.ToolFunction{
		Name:        retrieveToolName,
		Description: "Retrieve information related to a query.",
		Parameters: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"query": map[string]any{
					"type":        "string",
					"description": "The search query to run against the document store.",
				},
			},
			"required": []string{"query"},
		},
	},
}

// EngineConfig holds engine parameters.
type EngineConfig struct {
	TopK int `json:"top_k"`
}

// Engine orchestrates the decide → retrieve → generate flow.
type Engine struct {
	client       llm.Client
	vectors      vectorstore.Store
	checkpointer Checkpointer
	config       *EngineConfig
	logger       *slog.Logger
}

// NewEngine creates a conversation engine.
func NewEngine(client llm.Client, vectors vectorstore.Store, checkpointer Checkpointer, config *EngineConfig, logger *slog.Logger) *Engine {
	if config == nil {
		config = &EngineConfig{}
	}
	if config.TopK <= 0 {
		config.TopK = 3
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{
		client:       client,
		vectors:      vectors,
		checkpointer: checkpointer,
		config:       config,
		logger:       logger.With("component", "rag-engine"),
	}
}

// ProcessMessage handles one user message on a thread and returns the
// assistant's response together with the (possibly newly created) thread ID.
func (e *Engine) ProcessMessage(ctx context.Context, message, threadID string) (string, string, error) {
	if strings.TrimSpace(message) == "" {
		return "", "", fmt.Errorf("message must not be empty")
	}
	if threadID == "" {
		threadID = uuid.NewString()
	}

	state, err := e.checkpointer.Get(ctx, threadID)
	if err != nil {
		return "", "", err
	}
	if !hasSystemMessage(state) {
		state = append([]llm.Message{llm.SystemMessage(decidePrompt)}, state...)
	}
	state = append(state, llm.UserMessage(message))

	// Decide: answer directly or call the retrieval tool.
	decision, err := e.client.Chat(ctx, state, []llm.Tool{retrieveTool})
	if err != nil {
		return "", "", fmt.Errorf("llm decision failed: %w", err)
	}
	state = append(state, *decision)

	response := decision.Content
	if call := findRetrieveCall(decision); call != nil {
		answer, toolMsg, err := e.retrieveAndGenerate(ctx, state, call)
		if err != nil {
			return "", "", err
		}
		state = append(state, toolMsg, llm.Message{Role: llm.RoleAssistant, Content: answer})
		response = answer
	}

	if err := e.checkpointer.Put(ctx, threadID, state); err != nil {
		return "", "", err
	}
	return response, threadID, nil
}

// retrieveAndGenerate runs the requested vector search and asks the model
// for a grounded answer built on the retrieved context.
func (e *Engine) retrieveAndGenerate(ctx context.Context, state []llm.Message, call *llm.ToolCall) (string, llm.Message, error) {
	var args struct {
		Query string `json:"query"`
	}
	if err := json.Unmarshal([]byte(call.Function.Arguments), &args); err != nil {
		return "", llm.Message{}, fmt.Errorf("invalid retrieve arguments: %w", err)
	}
	if args.Query == "" {
		return "", llm.Message{}, fmt.Errorf("retrieve call carried no query")
	}

	matches, err := e.vectors.Search(ctx, vectorstore.Query{
		Text: args.Query,
		TopK: e.config.TopK,
	})
	if err != nil {
		return "", llm.Message{}, fmt.Errorf("retrieval failed: %w", err)
	}

	serialized := serializeMatches(matches)
	toolMsg := llm.Message{
		Role:       llm.RoleTool,
		Content:    serialized,
		ToolCallID: call.ID,
	}

	e.logger.Debug("retrieval completed",
		slog.String("query", args.Query),
		slog.Int("matches", len(matches)))

	// Generation prompt: retrieved context plus the conversation without
	// tool plumbing.
	prompt := []llm.Message{llm.SystemMessage(generatePrompt + "\n\n" + serialized)}
	for _, msg := range state {
		switch msg.Role {
		case llm.RoleUser:
			prompt = append(prompt, msg)
		case llm.RoleAssistant:
			if len(msg.ToolCalls) == 0 {
				prompt = append(prompt, msg)
			}
		}
	}

	answer, err := e.client.Chat(ctx, prompt, nil)
	if err != nil {
		return "", llm.Message{}, fmt.Errorf("llm generation failed: %w", err)
	}
	return answer.Content, toolMsg, nil
}

func serializeMatches(matches []vectorstore.Match) string {
	if len(matches) == 0 {
		return "No relevant documents were found."
	}
	blocks := make([]string, 0, len(matches))
	for _, m := range matches {
		meta, _ := json.Marshal(m.Metadata)
		blocks = append(blocks, fmt.Sprintf("Source: %s\nContent: %s", meta, m.Content))
	}
	return strings.Join(blocks, "\n\n")
}

func hasSystemMessage(state []llm.Message) bool {
	for _, msg := range state {
		if msg.Role == llm.RoleSystem {
			return true
		}
	}
	return false
}

func findRetrieveCall(msg *llm.Message) *llm.ToolCall {
	for i := range msg.ToolCalls {
		if msg.ToolCalls[i].Function.Name == retrieveToolName {
			return &msg.ToolCalls[i]
		}
	}
	return nil
}
