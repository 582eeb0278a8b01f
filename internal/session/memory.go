package session

import (
	"context"
	"sync"
)

// MemoryStore is an in-memory Store for tests and single-shot runs.
type MemoryStore struct {
	mu       sync.RWMutex
	sessions map[string]*State
}

// NewMemory returns an empty in-memory store.
func NewMemory() *MemoryStore {
	return &MemoryStore{sessions: make(map[string]*State)}
}

func (m *MemoryStore) Get(_ context.Context, domain string) (*State, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	st, ok := m.sessions[domain]
	if !ok {
		return nil, nil
	}
	cp := *st
	cp.Cookies = append([]Cookie(nil), st.Cookies...)
	return &cp, nil
}

func (m *MemoryStore) Put(_ context.Context, state *State) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *state
	cp.Cookies = append([]Cookie(nil), state.Cookies...)
	m.sessions[state.Domain] = &cp
	return nil
}
