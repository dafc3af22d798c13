package store

import (
	"context"
	"fmt"
	"testing"
	"time"

	"matterguard/authcore/internal/audit/domain"
)

func seedEvents(t *testing.T, m *Memory) {
	t.Helper()
	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	for i := 0; i < 5; i++ {
		e := &domain.Event{
			ID:        fmt.Sprintf("evt-%d", i),
			OrgID:     "org-a",
			UserID:    "user-1",
			Action:    "read",
			Resource:  "matter",
			IP:        "203.0.113.1",
			CreatedAt: base.Add(time.Duration(i) * time.Minute),
		}
		if i == 3 {
			e.UserID = "user-2"
		}
		if err := m.Append(context.Background(), e); err != nil {
			t.Fatalf("Append() error = %v", err)
		}
	}
}

func TestMemory_ListByOrg_NewestFirstPaginated(t *testing.T) {
	m := NewMemory()
	seedEvents(t, m)

	got, err := m.ListByOrg(context.Background(), "org-a", 2, 0)
	if err != nil {
		t.Fatalf("ListByOrg() error = %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("ListByOrg() returned %d events, want 2", len(got))
	}
	if got[0].ID != "evt-4" || got[1].ID != "evt-3" {
		t.Errorf("first page = %s, %s; want evt-4, evt-3", got[0].ID, got[1].ID)
	}

	got, err = m.ListByOrg(context.Background(), "org-a", 2, 2)
	if err != nil {
		t.Fatalf("ListByOrg() error = %v", err)
	}
	if len(got) != 2 || got[0].ID != "evt-2" {
		t.Errorf("second page starts at %s, want evt-2", got[0].ID)
	}

	got, err = m.ListByOrg(context.Background(), "org-b", 10, 0)
	if err != nil {
		t.Fatalf("ListByOrg() error = %v", err)
	}
	if len(got) != 0 {
		t.Errorf("ListByOrg(org-b) returned %d events, want 0", len(got))
	}
}

func TestMemory_ListByUser(t *testing.T) {
	m := NewMemory()
	seedEvents(t, m)

	got, err := m.ListByUser(context.Background(), "org-a", "user-2", 10, 0)
	if err != nil {
		t.Fatalf("ListByUser() error = %v", err)
	}
	if len(got) != 1 || got[0].ID != "evt-3" {
		t.Errorf("ListByUser(user-2) = %+v, want only evt-3", got)
	}
}

func TestMemory_GetByID(t *testing.T) {
	m := NewMemory()
	seedEvents(t, m)

	e, err := m.GetByID(context.Background(), "evt-1")
	if err != nil {
		t.Fatalf("GetByID() error = %v", err)
	}
	if e == nil || e.ID != "evt-1" {
		t.Fatalf("GetByID(evt-1) = %+v", e)
	}

	e, err = m.GetByID(context.Background(), "missing")
	if err != nil {
		t.Fatalf("GetByID() error = %v", err)
	}
	if e != nil {
		t.Errorf("GetByID(missing) = %+v, want nil", e)
	}
}
