package store

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/anatolykoptev/go_digest/internal/engine"
)

// MemoryRecords is an in-memory Records implementation for tests.
type MemoryRecords struct {
	mu    sync.RWMutex
	byURL map[string]*Record
	byID  map[string]*Record
}

func NewMemoryRecords() *MemoryRecords {
	return &MemoryRecords{
		byURL: make(map[string]*Record),
		byID:  make(map[string]*Record),
	}
}

func (m *MemoryRecords) Save(_ context.Context, rec *Record) (*Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	saved := *rec
	now := time.Now()
	if existing, ok := m.byURL[rec.NormalizedURL]; ok {
		saved.ID = existing.ID
		saved.CreatedAt = existing.CreatedAt
	} else {
		if saved.ID == "" {
			saved.ID = uuid.NewString()
		}
		saved.CreatedAt = now
	}
	saved.UpdatedAt = now

	m.byURL[saved.NormalizedURL] = &saved
	m.byID[saved.ID] = &saved
	engine.IncrRecordsSaved()

	out := saved
	return &out, nil
}

func (m *MemoryRecords) FindByNormalizedURL(_ context.Context, normalizedURL string) (*Record, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	rec, ok := m.byURL[normalizedURL]
	if !ok {
		return nil, nil
	}
	out := *rec
	return &out, nil
}

func (m *MemoryRecords) GetByID(_ context.Context, id string) (*Record, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	rec, ok := m.byID[id]
	if !ok {
		return nil, nil
	}
	out := *rec
	return &out, nil
}
