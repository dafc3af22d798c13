package domain

import (
	"context"
	"errors"
	"testing"
	"time"
)

func baseContext() *Context {
	return &Context{
		Subject: Subject{
			ID:          "user-1",
			OrgID:       "org-a",
			Roles:       []string{"attorney"},
			Permissions: []string{"matters:read"},
		},
		Resource: Resource{
			Type:            "matter",
			ID:              "matter-1",
			OrgID:           "org-a",
			OwnerID:         "user-1",
			Assignees:       []string{"user-2"},
			Confidentiality: ConfidentialityInternal,
		},
		Action: ActionRead,
		Environment: Environment{
			Timestamp:   time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC),
			IP:          "203.0.113.7",
			MFAVerified: true,
			SessionAge:  10 * time.Minute,
		},
	}
}

func TestFixedConditions(t *testing.T) {
	tests := []struct {
		name   string
		cond   Condition
		mutate func(*Context)
		want   bool
	}{
		{name: "same org", cond: SameOrg{}, want: true},
		{name: "same org differs", cond: SameOrg{}, mutate: func(pc *Context) { pc.Resource.OrgID = "org-b" }, want: false},
		{name: "same org both empty", cond: SameOrg{}, mutate: func(pc *Context) {
			pc.Subject.OrgID = ""
			pc.Resource.OrgID = ""
		}, want: false},
		{name: "org is", cond: OrgIs("org-a"), want: true},
		{name: "org is other", cond: OrgIs("org-b"), want: false},
		{name: "org is empty", cond: OrgIs(""), want: false},
		{name: "role in", cond: RoleIn{"admin", "attorney"}, want: true},
		{name: "role not in", cond: RoleIn{"admin"}, want: false},
		{name: "permission in", cond: PermissionIn{"matters:read"}, want: true},
		{name: "permission not in", cond: PermissionIn{"matters:delete"}, want: false},
		{name: "action in", cond: ActionIn{ActionRead, ActionList}, want: true},
		{name: "action not in", cond: ActionIn{ActionDelete}, want: false},
		{name: "resource type in", cond: ResourceTypeIn{"matter", "document"}, want: true},
		{name: "resource type not in", cond: ResourceTypeIn{"template"}, want: false},
		{name: "confidentiality in", cond: ConfidentialityIn{ConfidentialityInternal}, want: true},
		{name: "confidentiality not in", cond: ConfidentialityIn{ConfidentialityPrivileged}, want: false},
		{name: "owner", cond: Owner{}, want: true},
		{name: "not owner", cond: Owner{}, mutate: func(pc *Context) { pc.Resource.OwnerID = "user-9" }, want: false},
		{name: "owner empty ids", cond: Owner{}, mutate: func(pc *Context) {
			pc.Subject.ID = ""
			pc.Resource.OwnerID = ""
		}, want: false},
		{name: "assignee", cond: Assignee{}, mutate: func(pc *Context) { pc.Subject.ID = "user-2" }, want: true},
		{name: "not assignee", cond: Assignee{}, want: false},
		{name: "mfa verified", cond: MFAVerified{}, want: true},
		{name: "mfa not verified", cond: MFAVerified{}, mutate: func(pc *Context) { pc.Environment.MFAVerified = false }, want: false},
		{name: "session age within limit", cond: MaxSessionAge(15 * time.Minute), want: true},
		{name: "session age over limit", cond: MaxSessionAge(5 * time.Minute), want: false},
		{name: "session age zero limit", cond: MaxSessionAge(0), want: false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pc := baseContext()
			if tt.mutate != nil {
				tt.mutate(pc)
			}
			got, err := tt.cond.Match(context.Background(), pc)
			if err != nil {
				t.Fatalf("Match() error = %v", err)
			}
			if got != tt.want {
				t.Errorf("Match() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestCombinators(t *testing.T) {
	yes := CondFunc(func(context.Context, *Context) (bool, error) { return true, nil })
	no := CondFunc(func(context.Context, *Context) (bool, error) { return false, nil })

	tests := []struct {
		name string
		cond Condition
		want bool
	}{
		{name: "all empty", cond: All{}, want: true},
		{name: "all matches", cond: All{yes, yes}, want: true},
		{name: "all one fails", cond: All{yes, no}, want: false},
		{name: "any empty", cond: Any{}, want: false},
		{name: "any matches", cond: Any{no, yes}, want: true},
		{name: "any none match", cond: Any{no, no}, want: false},
		{name: "not true", cond: Not{C: yes}, want: false},
		{name: "not false", cond: Not{C: no}, want: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := tt.cond.Match(context.Background(), baseContext())
			if err != nil {
				t.Fatalf("Match() error = %v", err)
			}
			if got != tt.want {
				t.Errorf("Match() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestCombinators_PropagateErrors(t *testing.T) {
	boom := CondFunc(func(context.Context, *Context) (bool, error) {
		return false, errors.New("boom")
	})
	yes := CondFunc(func(context.Context, *Context) (bool, error) { return true, nil })

	for _, cond := range []Condition{All{boom}, Any{boom, yes}, Not{C: boom}} {
		if _, err := cond.Match(context.Background(), baseContext()); err == nil {
			t.Errorf("%T.Match() error = nil, want boom", cond)
		}
	}
}

func TestCombinators_ShortCircuit(t *testing.T) {
	var calls int
	counted := CondFunc(func(context.Context, *Context) (bool, error) {
		calls++
		return true, nil
	})
	yes := CondFunc(func(context.Context, *Context) (bool, error) { return true, nil })
	no := CondFunc(func(context.Context, *Context) (bool, error) { return false, nil })

	if _, err := (All{no, counted}).Match(context.Background(), baseContext()); err != nil {
		t.Fatalf("All.Match() error = %v", err)
	}
	if calls != 0 {
		t.Errorf("All evaluated %d conditions past a non-match, want 0", calls)
	}

	if _, err := (Any{yes, counted}).Match(context.Background(), baseContext()); err != nil {
		t.Fatalf("Any.Match() error = %v", err)
	}
	if calls != 0 {
		t.Errorf("Any evaluated %d conditions past a match, want 0", calls)
	}
}
