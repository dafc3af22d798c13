package store

import (
	"context"
	"sync"
	"time"
)

// MemoryStore is an in-memory refresh-token store for development and
// tests. The mutex makes MarkRotated atomic under concurrent rotation.
type MemoryStore struct {
	mu       sync.Mutex
	byJTI    map[string]*RefreshRecord
	byFamily map[string]map[string]struct{}

	nowF func() time.Time
}

// NewMemoryStore returns an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		byJTI:    make(map[string]*RefreshRecord),
		byFamily: make(map[string]map[string]struct{}),
		nowF:     time.Now().UTC,
	}
}

// Put stores the record keyed by jti.
func (m *MemoryStore) Put(ctx context.Context, rec *RefreshRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *rec
	m.byJTI[rec.JTI] = &cp
	if m.byFamily[rec.FamilyID] == nil {
		m.byFamily[rec.FamilyID] = make(map[string]struct{})
	}
	m.byFamily[rec.FamilyID][rec.JTI] = struct{}{}
	return nil
}

// Get returns a copy of the record, or ErrNotFound.
func (m *MemoryStore) Get(ctx context.Context, jti string) (*RefreshRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.byJTI[jti]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *rec
	return &cp, nil
}

// MarkRotated marks the record used exactly once.
func (m *MemoryStore) MarkRotated(ctx context.Context, jti, successorJTI string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.byJTI[jti]
	if !ok {
		return ErrNotFound
	}
	if !rec.Live() {
		return ErrReused
	}
	now := m.nowF()
	rec.UsedAt = &now
	rec.ReplacedBy = successorJTI
	return nil
}

// RevokeFamily revokes every live record in the family.
func (m *MemoryStore) RevokeFamily(ctx context.Context, familyID string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := m.nowF()
	revoked := 0
	for jti := range m.byFamily[familyID] {
		rec, ok := m.byJTI[jti]
		if !ok || rec.RevokedAt != nil {
			continue
		}
		rec.RevokedAt = &now
		revoked++
	}
	return revoked, nil
}

// RevokeBySession revokes every live record bound to the session.
func (m *MemoryStore) RevokeBySession(ctx context.Context, sessionID string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := m.nowF()
	revoked := 0
	for _, rec := range m.byJTI {
		if rec.SessionID != sessionID || rec.RevokedAt != nil {
			continue
		}
		rec.RevokedAt = &now
		revoked++
	}
	return revoked, nil
}
