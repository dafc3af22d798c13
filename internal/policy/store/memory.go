package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"matterguard/authcore/internal/policy/domain"
)

// Memory is an in-memory Store for tests and development.
type Memory struct {
	mu    sync.Mutex
	items map[string]domain.CustomPolicy

	nowF func() time.Time
}

// NewMemory returns an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{
		items: make(map[string]domain.CustomPolicy),
		nowF:  func() time.Time { return time.Now().UTC() },
	}
}

func policyKey(orgID, name string) string {
	return orgID + "/" + name
}

// List implements Store.
func (m *Memory) List(_ context.Context) ([]domain.CustomPolicy, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]domain.CustomPolicy, 0, len(m.items))
	for _, cp := range m.items {
		out = append(out, cp)
	}
	sortPolicies(out)
	return out, nil
}

// ListByOrg implements Store.
func (m *Memory) ListByOrg(_ context.Context, orgID string) ([]domain.CustomPolicy, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []domain.CustomPolicy
	for _, cp := range m.items {
		if cp.OrgID == orgID {
			out = append(out, cp)
		}
	}
	sortPolicies(out)
	return out, nil
}

// Upsert implements Store.
func (m *Memory) Upsert(_ context.Context, cp domain.CustomPolicy) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.nowF()
	key := policyKey(cp.OrgID, cp.Name)
	if existing, ok := m.items[key]; ok {
		cp.CreatedAt = existing.CreatedAt
	} else if cp.CreatedAt.IsZero() {
		cp.CreatedAt = now
	}
	cp.UpdatedAt = now
	m.items[key] = cp
	return nil
}

// Delete implements Store.
func (m *Memory) Delete(_ context.Context, orgID, name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.items, policyKey(orgID, name))
	return nil
}

func sortPolicies(cps []domain.CustomPolicy) {
	sort.Slice(cps, func(i, j int) bool {
		if cps[i].Priority != cps[j].Priority {
			return cps[i].Priority < cps[j].Priority
		}
		return cps[i].Name < cps[j].Name
	})
}
