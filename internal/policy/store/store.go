// Package store persists org-defined custom policies.
package store

import (
	"context"

	"matterguard/authcore/internal/policy/domain"
)

// Store is the persistence contract for custom policies. Entries are
// keyed by (org id, name); an empty org id means platform-wide.
type Store interface {
	// List returns every stored policy ordered by priority then name.
	List(ctx context.Context) ([]domain.CustomPolicy, error)
	// ListByOrg returns the policies whose org id equals orgID.
	ListByOrg(ctx context.Context, orgID string) ([]domain.CustomPolicy, error)
	// Upsert inserts or replaces a policy.
	Upsert(ctx context.Context, cp domain.CustomPolicy) error
	// Delete removes a policy. Deleting a missing policy is not an
	// error.
	Delete(ctx context.Context, orgID, name string) error
}
