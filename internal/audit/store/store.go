// Package store persists audit events.
package store

import (
	"context"

	"matterguard/authcore/internal/audit/domain"
)

// Store is the persistence contract for audit events. Events are
// append-only; there is no update or delete.
type Store interface {
	// Append persists one event.
	Append(ctx context.Context, e *domain.Event) error
	// GetByID returns the event for id, or nil if not found.
	GetByID(ctx context.Context, id string) (*domain.Event, error)
	// ListByOrg returns the org's events newest first, paginated.
	ListByOrg(ctx context.Context, orgID string, limit, offset int32) ([]*domain.Event, error)
	// ListByUser returns the user's events in the org, newest first.
	ListByUser(ctx context.Context, orgID, userID string, limit, offset int32) ([]*domain.Event, error)
}
