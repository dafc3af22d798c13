package store

import (
	"context"
	"sync"

	"matterguard/authcore/internal/mfa/domain"
)

// MemoryStore is an in-memory enrollment store for development and tests.
type MemoryStore struct {
	mu    sync.RWMutex
	items map[string]*domain.Enrollment
}

// NewMemoryStore returns an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{items: make(map[string]*domain.Enrollment)}
}

// Get returns a copy of the user's enrollment, or (nil, nil).
func (m *MemoryStore) Get(ctx context.Context, userID string) (*domain.Enrollment, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.items[userID].Clone(), nil
}

// Save upserts the user's enrollment.
func (m *MemoryStore) Save(ctx context.Context, e *domain.Enrollment) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.items[e.UserID] = e.Clone()
	return nil
}
