package rag

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/YuBaichuan2000/rag-backend/pkg/llm"
	"github.com/YuBaichuan2000/rag-backend/pkg/vectorstore"
)

// fakeVectorStore returns canned matches and records the queries it sees.
type fakeVectorStore struct {
	matches []vectorstore.Match
	err     error
	queries []vectorstore.Query
}

func (f *fakeVectorStore) Add(ctx context.Context, records []vectorstore.ChunkRecord) error {
	return nil
}

func (f *fakeVectorStore) Search(ctx context.Context, q vectorstore.Query) ([]vectorstore.Match, error) {
	f.queries = append(f.queries, q)
	return f.matches, f.err
}

func (f *fakeVectorStore) Count(ctx context.Context) (int64, error) {
	return int64(len(f.matches)), nil
}
func (f *fakeVectorStore) Close(ctx context.Context) error { return nil }

func retrieveCallMessage(query string) llm.Message {
	return llm.Message{
		Role: llm.RoleAssistant,
		ToolCalls: []llm.ToolCall{{
			ID:   "call_1",
			Type: "function",
			Function: llm.FunctionCall{
				Name:      retrieveToolName,
				Arguments: fmt.Sprintf(`{"query":%q}`, query),
			},
		}},
	}
}

func TestProcessMessageDirectAnswer(t *testing.T) {
	client := llm.NewMockClient(llm.Message{Role: llm.RoleAssistant, Content: "Hello! How can I help?"})
	vectors := &fakeVectorStore{}
	cp := NewMemoryCheckpointer()
	engine := NewEngine(client, vectors, cp, nil, nil)

	response, threadID, err := engine.ProcessMessage(context.Background(), "hi there", "")
	require.NoError(t, err)
	assert.Equal(t, "Hello! How can I help?", response)
	assert.NotEmpty(t, threadID, "a thread ID is minted for new conversations")
	assert.Empty(t, vectors.queries, "a direct answer must not hit the vector store")

	state, err := cp.Get(context.Background(), threadID)
	require.NoError(t, err)
	require.Len(t, state, 3)
	assert.Equal(t, llm.RoleSystem, state[0].Role)
	assert.Equal(t, llm.RoleUser, state[1].Role)
	assert.Equal(t, "hi there", state[1].Content)
	assert.Equal(t, llm.RoleAssistant, state[2].Role)
}

func TestProcessMessageWithRetrieval(t *testing.T) {
	client := llm.NewMockClient(
		retrieveCallMessage("vaccination schedule"),
		llm.Message{Role: llm.RoleAssistant, Content: "The Tdap vaccine is given between weeks 27 and 36."},
	)
	vectors := &fakeVectorStore{
		matches: []vectorstore.Match{
			{
				Content:  "Tdap is recommended between 27 and 36 weeks.",
				Metadata: map[string]any{"title": "vaccines", "user_id": "alice"},
				Score:    0.92,
			},
		},
	}
	cp := NewMemoryCheckpointer()
	engine := NewEngine(client, vectors, cp, &EngineConfig{TopK: 5}, nil)

	response, threadID, err := engine.ProcessMessage(context.Background(), "when do I get the Tdap shot?", "")
	require.NoError(t, err)
	assert.Equal(t, "The Tdap vaccine is given between weeks 27 and 36.", response)

	require.Len(t, vectors.queries, 1)
	assert.Equal(t, "vaccination schedule", vectors.queries[0].Text, "the model's query is used, not the raw message")
	assert.Equal(t, 5, vectors.queries[0].TopK)

	// The generation call must carry the retrieved context in its system
	// prompt and omit tool plumbing.
	calls := client.Calls()
	require.Len(t, calls, 2)
	generation := calls[1]
	assert.Equal(t, llm.RoleSystem, generation[0].Role)
	assert.Contains(t, generation[0].Content, "Tdap is recommended between 27 and 36 weeks.")
	for _, msg := range generation {
		assert.Empty(t, msg.ToolCalls)
		assert.NotEqual(t, llm.RoleTool, msg.Role)
	}

	// The checkpoint keeps the full exchange including the tool messages.
	state, err := cp.Get(context.Background(), threadID)
	require.NoError(t, err)
	roles := make([]string, len(state))
	for i, msg := range state {
		roles[i] = msg.Role
	}
	assert.Equal(t, []string{
		llm.RoleSystem, llm.RoleUser, llm.RoleAssistant, llm.RoleTool, llm.RoleAssistant,
	}, roles)
}

func TestProcessMessageKeepsThreadID(t *testing.T) {
	client := llm.NewMockClient()
	engine := NewEngine(client, &fakeVectorStore{}, NewMemoryCheckpointer(), nil, nil)

	_, threadID, err := engine.ProcessMessage(context.Background(), "first", "")
	require.NoError(t, err)

	_, again, err := engine.ProcessMessage(context.Background(), "second", threadID)
	require.NoError(t, err)
	assert.Equal(t, threadID, again)
}

func TestProcessMessageAccumulatesHistory(t *testing.T) {
	client := llm.NewMockClient()
	cp := NewMemoryCheckpointer()
	engine := NewEngine(client, &fakeVectorStore{}, cp, nil, nil)

	_, threadID, err := engine.ProcessMessage(context.Background(), "first question", "")
	require.NoError(t, err)
	_, _, err = engine.ProcessMessage(context.Background(), "second question", threadID)
	require.NoError(t, err)

	state, err := cp.Get(context.Background(), threadID)
	require.NoError(t, err)
	assert.Len(t, state, 5, "system + two user/assistant exchanges")

	var systems int
	for _, msg := range state {
		if msg.Role == llm.RoleSystem {
			systems++
		}
	}
	assert.Equal(t, 1, systems, "the system prompt is only prepended once")
}

func TestProcessMessageEmptyMessage(t *testing.T) {
	engine := NewEngine(llm.NewMockClient(), &fakeVectorStore{}, NewMemoryCheckpointer(), nil, nil)
	_, _, err := engine.ProcessMessage(context.Background(), "   ", "")
	assert.Error(t, err)
}

func TestProcessMessageNoMatches(t *testing.T) {
	client := llm.NewMockClient(
		retrieveCallMessage("something obscure"),
		llm.Message{Role: llm.RoleAssistant, Content: "I could not find anything about that."},
	)
	engine := NewEngine(client, &fakeVectorStore{}, NewMemoryCheckpointer(), nil, nil)

	response, _, err := engine.ProcessMessage(context.Background(), "tell me about X", "")
	require.NoError(t, err)
	assert.Equal(t, "I could not find anything about that.", response)

	calls := client.Calls()
	require.Len(t, calls, 2)
	assert.Contains(t, calls[1][0].Content, "No relevant documents were found.")
}

func TestProcessMessageRetrievalFailure(t *testing.T) {
	client := llm.NewMockClient(retrieveCallMessage("anything"))
	vectors := &fakeVectorStore{err: fmt.Errorf("index unavailable")}
	engine := NewEngine(client, vectors, NewMemoryCheckpointer(), nil, nil)

	_, _, err := engine.ProcessMessage(context.Background(), "question", "")
	require.Error(t, err)
	assert.True(t, strings.Contains(err.Error(), "retrieval failed"))
}

func TestSerializeMatches(t *testing.T) {
	out := serializeMatches([]vectorstore.Match{
		{Content: "chunk one", Metadata: map[string]any{"title": "a"}},
		{Content: "chunk two", Metadata: map[string]any{"title": "b"}},
	})
	assert.Contains(t, out, "Content: chunk one")
	assert.Contains(t, out, "Content: chunk two")
	assert.Contains(t, out, `"title":"a"`)
	assert.Equal(t, 2, strings.Count(out, "Source:"))
}
