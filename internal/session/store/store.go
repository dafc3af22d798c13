// Package store provides session persistence keyed by hashed session id,
// with a per-user index of active sessions for listing and bulk revocation.
package store

import (
	"context"
	"time"

	"matterguard/authcore/internal/session/domain"
)

// Store defines persistence for sessions. Implementations must be safe for
// concurrent use. Get returns (nil, nil) when no session exists for the id;
// an error is reserved for backend failures.
type Store interface {
	Get(ctx context.Context, id string) (*domain.Session, error)
	// Save upserts the session and refreshes its per-user index entry.
	// ttl bounds how long the record is retained; it mirrors the absolute
	// timeout, not the idle timeout.
	Save(ctx context.Context, s *domain.Session, ttl time.Duration) error
	Delete(ctx context.Context, id string) error
	// ListActiveByUser returns the user's active sessions in the org.
	ListActiveByUser(ctx context.Context, userID, orgID string) ([]*domain.Session, error)
	// RevokeAllByUser marks every active session for the user inactive,
	// except the one identified by exceptID (pass "" to revoke all).
	// Returns the number of sessions revoked.
	RevokeAllByUser(ctx context.Context, userID, orgID, exceptID, reason string) (int, error)
}
