package store

import (
	"context"
	"testing"
	"time"

	"matterguard/authcore/internal/policy/domain"
)

func newTestMemory(t *testing.T) (*Memory, *time.Time) {
	t.Helper()
	m := NewMemory()
	current := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	m.nowF = func() time.Time { return current }
	return m, &current
}

func TestMemory_UpsertAndList(t *testing.T) {
	m, _ := newTestMemory(t)
	ctx := context.Background()

	for _, cp := range []domain.CustomPolicy{
		{Name: "later", OrgID: "org-a", Priority: 20, Effect: domain.EffectDeny, Enabled: true},
		{Name: "sooner", OrgID: "org-a", Priority: 10, Effect: domain.EffectDeny, Enabled: true},
	} {
		if err := m.Upsert(ctx, cp); err != nil {
			t.Fatalf("Upsert(%s) error = %v", cp.Name, err)
		}
	}

	got, err := m.List(ctx)
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("List() returned %d policies, want 2", len(got))
	}
	if got[0].Name != "sooner" || got[1].Name != "later" {
		t.Errorf("List() order = %s, %s; want sooner, later", got[0].Name, got[1].Name)
	}
	if got[0].CreatedAt.IsZero() || got[0].UpdatedAt.IsZero() {
		t.Error("List() returned zero timestamps")
	}
}

func TestMemory_UpsertPreservesCreatedAt(t *testing.T) {
	m, now := newTestMemory(t)
	ctx := context.Background()

	cp := domain.CustomPolicy{Name: "p", OrgID: "org-a", Priority: 1, Effect: domain.EffectDeny, Enabled: true}
	if err := m.Upsert(ctx, cp); err != nil {
		t.Fatalf("Upsert() error = %v", err)
	}
	created := *now

	*now = now.Add(time.Hour)
	cp.Priority = 2
	if err := m.Upsert(ctx, cp); err != nil {
		t.Fatalf("Upsert() error = %v", err)
	}

	got, err := m.List(ctx)
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("List() returned %d policies, want 1", len(got))
	}
	if !got[0].CreatedAt.Equal(created) {
		t.Errorf("CreatedAt = %v, want %v", got[0].CreatedAt, created)
	}
	if !got[0].UpdatedAt.Equal(*now) {
		t.Errorf("UpdatedAt = %v, want %v", got[0].UpdatedAt, *now)
	}
	if got[0].Priority != 2 {
		t.Errorf("Priority = %d, want 2", got[0].Priority)
	}
}

func TestMemory_ListByOrg(t *testing.T) {
	m, _ := newTestMemory(t)
	ctx := context.Background()

	for _, cp := range []domain.CustomPolicy{
		{Name: "a1", OrgID: "org-a", Priority: 1, Effect: domain.EffectDeny, Enabled: true},
		{Name: "b1", OrgID: "org-b", Priority: 1, Effect: domain.EffectDeny, Enabled: true},
		{Name: "global", OrgID: "", Priority: 1, Effect: domain.EffectDeny, Enabled: true},
	} {
		if err := m.Upsert(ctx, cp); err != nil {
			t.Fatalf("Upsert(%s) error = %v", cp.Name, err)
		}
	}

	got, err := m.ListByOrg(ctx, "org-a")
	if err != nil {
		t.Fatalf("ListByOrg() error = %v", err)
	}
	if len(got) != 1 || got[0].Name != "a1" {
		t.Errorf("ListByOrg(org-a) = %+v, want only a1", got)
	}

	got, err = m.ListByOrg(ctx, "")
	if err != nil {
		t.Fatalf("ListByOrg() error = %v", err)
	}
	if len(got) != 1 || got[0].Name != "global" {
		t.Errorf("ListByOrg(\"\") = %+v, want only global", got)
	}
}

func TestMemory_Delete(t *testing.T) {
	m, _ := newTestMemory(t)
	ctx := context.Background()

	cp := domain.CustomPolicy{Name: "p", OrgID: "org-a", Priority: 1, Effect: domain.EffectDeny, Enabled: true}
	if err := m.Upsert(ctx, cp); err != nil {
		t.Fatalf("Upsert() error = %v", err)
	}
	if err := m.Delete(ctx, "org-a", "p"); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	got, err := m.List(ctx)
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(got) != 0 {
		t.Errorf("List() returned %d policies after delete, want 0", len(got))
	}

	if err := m.Delete(ctx, "org-a", "missing"); err != nil {
		t.Errorf("Delete(missing) error = %v, want nil", err)
	}
}
