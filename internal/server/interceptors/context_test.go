package interceptors

import (
	"context"
	"testing"
)

func TestWithIdentity_RoundTrip(t *testing.T) {
	ctx := WithIdentity(context.Background(), Identity{
		UserID:      "user-1",
		OrgID:       "org-1",
		SessionID:   "session-1",
		Roles:       []string{"attorney", "admin"},
		MFAVerified: true,
	})

	id, ok := GetIdentity(ctx)
	if !ok {
		t.Fatal("GetIdentity: not set")
	}
	if id.UserID != "user-1" || id.OrgID != "org-1" || id.SessionID != "session-1" {
		t.Errorf("identity = %+v", id)
	}
	if len(id.Roles) != 2 || !id.MFAVerified {
		t.Errorf("roles = %v, mfa = %v", id.Roles, id.MFAVerified)
	}

	if userID, ok := GetUserID(ctx); !ok || userID != "user-1" {
		t.Errorf("GetUserID = %q, %v", userID, ok)
	}
	if orgID, ok := GetOrgID(ctx); !ok || orgID != "org-1" {
		t.Errorf("GetOrgID = %q, %v", orgID, ok)
	}
	if sessionID, ok := GetSessionID(ctx); !ok || sessionID != "session-1" {
		t.Errorf("GetSessionID = %q, %v", sessionID, ok)
	}
}

func TestGetIdentity_Unset(t *testing.T) {
	ctx := context.Background()
	if _, ok := GetIdentity(ctx); ok {
		t.Error("GetIdentity: ok on a bare context")
	}
	if _, ok := GetUserID(ctx); ok {
		t.Error("GetUserID: ok on a bare context")
	}
	if _, ok := GetOrgID(ctx); ok {
		t.Error("GetOrgID: ok on a bare context")
	}
	if _, ok := GetSessionID(ctx); ok {
		t.Error("GetSessionID: ok on a bare context")
	}
}

func TestFieldAccessors_EmptyField(t *testing.T) {
	ctx := WithIdentity(context.Background(), Identity{UserID: "user-1"})
	if _, ok := GetOrgID(ctx); ok {
		t.Error("GetOrgID: ok for an identity without an org")
	}
	if userID, ok := GetUserID(ctx); !ok || userID != "user-1" {
		t.Errorf("GetUserID = %q, %v", userID, ok)
	}
}
