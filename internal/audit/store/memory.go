package store

import (
	"context"
	"sync"

	"matterguard/authcore/internal/audit/domain"
)

// Memory is an in-memory Store for tests and development. Events are
// held newest first.
type Memory struct {
	mu     sync.Mutex
	events []*domain.Event
}

// NewMemory returns an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{}
}

// Append implements Store.
func (m *Memory) Append(_ context.Context, e *domain.Event) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	cp := *e
	m.events = append([]*domain.Event{&cp}, m.events...)
	return nil
}

// GetByID implements Store.
func (m *Memory) GetByID(_ context.Context, id string) (*domain.Event, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, e := range m.events {
		if e.ID == id {
			cp := *e
			return &cp, nil
		}
	}
	return nil, nil
}

// ListByOrg implements Store.
func (m *Memory) ListByOrg(_ context.Context, orgID string, limit, offset int32) ([]*domain.Event, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.page(func(e *domain.Event) bool { return e.OrgID == orgID }, limit, offset), nil
}

// ListByUser implements Store.
func (m *Memory) ListByUser(_ context.Context, orgID, userID string, limit, offset int32) ([]*domain.Event, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.page(func(e *domain.Event) bool { return e.OrgID == orgID && e.UserID == userID }, limit, offset), nil
}

func (m *Memory) page(keep func(*domain.Event) bool, limit, offset int32) []*domain.Event {
	var out []*domain.Event
	var skipped int32
	for _, e := range m.events {
		if !keep(e) {
			continue
		}
		if skipped < offset {
			skipped++
			continue
		}
		cp := *e
		out = append(out, &cp)
		if limit > 0 && int32(len(out)) >= limit {
			break
		}
	}
	return out
}
