package llm

import (
	"context"
	"fmt"
	"sync"
)

// MockClient is a scripted chat client for tests and local development
// without an API key. Responses are consumed in order; when the script is
// exhausted it echoes the last user message.
type MockClient struct {
	mu        sync.Mutex
	responses []Message
	calls     [][]Message
}

// NewMockClient creates a mock client with an optional response script.
func NewMockClient(responses ...Message) *MockClient {
	return &MockClient{responses: responses}
}

// Chat pops the next scripted response.
func (m *MockClient) Chat(ctx context.Context, messages []Message, tools []Tool) (*Message, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	copied := make([]Message, len(messages))
	copy(copied, messages)
	m.calls = append(m.calls, copied)

	if len(m.responses) > 0 {
		next := m.responses[0]
		m.responses = m.responses[1:]
		return &next, nil
	}

	for i := len(messages) - 1; i >= 0; i-- {
		if messages[i].Role == RoleUser {
			return &Message{
				Role:    RoleAssistant,
				Content: fmt.Sprintf("mock response to: %s", messages[i].Content),
			}, nil
		}
	}
	return &Message{Role: RoleAssistant, Content: "mock response"}, nil
}

// Calls returns the message lists Chat received, in order.
func (m *MockClient) Calls() [][]Message {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([][]Message, len(m.calls))
	copy(out, m.calls)
	return out
}
