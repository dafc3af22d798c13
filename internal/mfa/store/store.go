// Package store persists MFA enrollment records.
package store

import (
	"context"

	"matterguard/authcore/internal/mfa/domain"
)

// Store defines persistence for enrollments, one record per user. Get
// returns (nil, nil) when the user has no enrollment; an error is reserved
// for backend failures.
type Store interface {
	Get(ctx context.Context, userID string) (*domain.Enrollment, error)
	// Save upserts the user's record. An enrollment replaces any previous
	// record for the same user.
	Save(ctx context.Context, e *domain.Enrollment) error
}
