package store

import (
	"context"
	"sync"
	"time"

	"matterguard/authcore/internal/session/domain"
)

type memoryEntry struct {
	session   *domain.Session
	expiresAt time.Time
}

// MemoryStore is an in-memory session store for development and tests.
// Expired entries are dropped lazily on access.
type MemoryStore struct {
	mu     sync.RWMutex
	items  map[string]*memoryEntry
	byUser map[string]map[string]struct{} // orgID/userID -> set of session ids

	nowF func() time.Time
}

// NewMemoryStore returns an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		items:  make(map[string]*memoryEntry),
		byUser: make(map[string]map[string]struct{}),
		nowF:   time.Now().UTC,
	}
}

func userKey(orgID, userID string) string { return orgID + "/" + userID }

// Get returns the stored session, or (nil, nil) when absent or expired.
func (m *MemoryStore) Get(ctx context.Context, id string) (*domain.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.items[id]
	if !ok {
		return nil, nil
	}
	if !e.expiresAt.After(m.nowF()) {
		m.removeLocked(id, e.session)
		return nil, nil
	}
	return e.session.Clone(), nil
}

// Save upserts the session with the given retention ttl.
func (m *MemoryStore) Save(ctx context.Context, s *domain.Session, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.items[s.ID] = &memoryEntry{session: s.Clone(), expiresAt: m.nowF().Add(ttl)}
	key := userKey(s.OrgID, s.UserID)
	if m.byUser[key] == nil {
		m.byUser[key] = make(map[string]struct{})
	}
	m.byUser[key][s.ID] = struct{}{}
	return nil
}

// Delete removes the session and its index entry. Deleting a missing
// session is not an error.
func (m *MemoryStore) Delete(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if e, ok := m.items[id]; ok {
		m.removeLocked(id, e.session)
	}
	return nil
}

// ListActiveByUser returns the user's active, unexpired sessions.
func (m *MemoryStore) ListActiveByUser(ctx context.Context, userID, orgID string) ([]*domain.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := m.nowF()
	var out []*domain.Session
	for id := range m.byUser[userKey(orgID, userID)] {
		e, ok := m.items[id]
		if !ok {
			continue
		}
		if !e.expiresAt.After(now) {
			m.removeLocked(id, e.session)
			continue
		}
		if e.session.Active {
			out = append(out, e.session.Clone())
		}
	}
	return out, nil
}

// RevokeAllByUser marks the user's active sessions inactive, skipping
// exceptID.
func (m *MemoryStore) RevokeAllByUser(ctx context.Context, userID, orgID, exceptID, reason string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := m.nowF()
	revoked := 0
	for id := range m.byUser[userKey(orgID, userID)] {
		if id == exceptID {
			continue
		}
		e, ok := m.items[id]
		if !ok || !e.session.Active {
			continue
		}
		at := now
		e.session.Active = false
		e.session.Reason = reason
		e.session.InvalidatedAt = &at
		revoked++
	}
	return revoked, nil
}

func (m *MemoryStore) removeLocked(id string, s *domain.Session) {
	delete(m.items, id)
	if s == nil {
		return
	}
	key := userKey(s.OrgID, s.UserID)
	if set, ok := m.byUser[key]; ok {
		delete(set, id)
		if len(set) == 0 {
			delete(m.byUser, key)
		}
	}
}
