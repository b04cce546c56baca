package rag

import (
	"context"
	"sync"

	"github.com/YuBaichuan2000/rag-backend/pkg/llm"
)

// MemoryCheckpointer keeps thread state in process memory. Used by tests
// and by the mock backends in local development.
type MemoryCheckpointer struct {
	mu     sync.RWMutex
	states map[string][]llm.Message
}

// NewMemoryCheckpointer creates an empty in-memory checkpointer.
func NewMemoryCheckpointer() *MemoryCheckpointer {
	return &MemoryCheckpointer{states: make(map[string][]llm.Message)}
}

// Get returns a copy of the state for a thread.
func (m *MemoryCheckpointer) Get(ctx context.Context, threadID string) ([]llm.Message, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	state, ok := m.states[threadID]
	if !ok {
		return nil, nil
	}
	out := make([]llm.Message, len(state))
	copy(out, state)
	return out, nil
}

// Put stores a copy of the state for a thread.
func (m *MemoryCheckpointer) Put(ctx context.Context, threadID string, state []llm.Message) error {
	copied := make([]llm.Message, len(state))
	copy(copied, state)
	m.mu.Lock()
	m.states[threadID] = copied
	m.mu.Unlock()
	return nil
}

// List returns all thread IDs.
func (m *MemoryCheckpointer) List(ctx context.Context) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]string, 0, len(m.states))
	for id := range m.states {
		out = append(out, id)
	}
	return out, nil
}
