// Package store records refresh-token state for rotation and reuse
// detection. Each issued refresh token has one record keyed by jti;
// records in the same rotation chain share a family id so a reuse signal
// can revoke every descendant at once.
package store

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrNotFound is returned when no record exists for the jti.
	ErrNotFound = errors.New("tokenstore: not found")
	// ErrReused is returned by MarkRotated when the record was already
	// rotated or revoked. Presentation of a rotated token is a compromise
	// signal, not a retryable failure.
	ErrReused = errors.New("tokenstore: refresh token already used")
)

// RefreshRecord is the persisted state of one refresh token.
type RefreshRecord struct {
	JTI        string
	FamilyID   string
	SessionID  string
	UserID     string
	OrgID      string
	TokenHash  string // keyed hash of the raw token; the raw value is never stored
	IssuedAt   time.Time
	ExpiresAt  time.Time
	UsedAt     *time.Time // set when rotated
	RevokedAt  *time.Time // set when the family is revoked
	ReplacedBy string     // jti of the successor, set on rotation
}

// Live reports whether the record can still be rotated.
func (r *RefreshRecord) Live() bool {
	return r.UsedAt == nil && r.RevokedAt == nil
}

// Store persists refresh-token records. Implementations must make
// MarkRotated atomic: two concurrent rotations of the same jti must yield
// exactly one success, the other ErrReused.
type Store interface {
	Put(ctx context.Context, rec *RefreshRecord) error
	Get(ctx context.Context, jti string) (*RefreshRecord, error)
	// MarkRotated transitions the record to used and links its successor.
	// Returns ErrNotFound for an unknown jti and ErrReused when the record
	// was already used or revoked.
	MarkRotated(ctx context.Context, jti, successorJTI string) error
	// RevokeFamily revokes every record sharing familyID. Returns the
	// number of records newly revoked.
	RevokeFamily(ctx context.Context, familyID string) (int, error)
	// RevokeBySession revokes every record bound to the session.
	RevokeBySession(ctx context.Context, sessionID string) (int, error)
}
