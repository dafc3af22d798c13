package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// PostgresStore persists refresh-token records in the refresh_tokens
// table. MarkRotated is a single conditional UPDATE, so rotation is atomic
// at the row level.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore returns a refresh-token store backed by db.
func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// Put inserts the record. Records are immutable except for the rotation
// and revocation columns.
func (p *PostgresStore) Put(ctx context.Context, rec *RefreshRecord) error {
	_, err := p.db.ExecContext(ctx, `
		INSERT INTO refresh_tokens (
			jti, family_id, session_id, user_id, org_id, token_hash,
			issued_at, expires_at, used_at, revoked_at, replaced_by
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)`,
		rec.JTI, rec.FamilyID, rec.SessionID, rec.UserID, rec.OrgID, rec.TokenHash,
		rec.IssuedAt, rec.ExpiresAt, timeToNullTime(rec.UsedAt), timeToNullTime(rec.RevokedAt),
		nullString(rec.ReplacedBy),
	)
	if err != nil {
		return fmt.Errorf("put refresh record: %w", err)
	}
	return nil
}

// Get returns the record for jti, or ErrNotFound.
func (p *PostgresStore) Get(ctx context.Context, jti string) (*RefreshRecord, error) {
	row := p.db.QueryRowContext(ctx, `
		SELECT jti, family_id, session_id, user_id, org_id, token_hash,
		       issued_at, expires_at, used_at, revoked_at, replaced_by
		FROM refresh_tokens
		WHERE jti = $1`, jti)

	var (
		rec        RefreshRecord
		usedAt     sql.NullTime
		revokedAt  sql.NullTime
		replacedBy sql.NullString
	)
	err := row.Scan(&rec.JTI, &rec.FamilyID, &rec.SessionID, &rec.UserID, &rec.OrgID,
		&rec.TokenHash, &rec.IssuedAt, &rec.ExpiresAt, &usedAt, &revokedAt, &replacedBy)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get refresh record: %w", err)
	}
	rec.UsedAt = nullTimeToPtr(usedAt)
	rec.RevokedAt = nullTimeToPtr(revokedAt)
	rec.ReplacedBy = replacedBy.String
	return &rec, nil
}

// MarkRotated flips the record to used if and only if it is still live.
// The WHERE clause carries the liveness check, so concurrent rotations
// serialize on the row and at most one succeeds.
func (p *PostgresStore) MarkRotated(ctx context.Context, jti, successorJTI string) error {
	res, err := p.db.ExecContext(ctx, `
		UPDATE refresh_tokens
		SET used_at = now(), replaced_by = $2
		WHERE jti = $1 AND used_at IS NULL AND revoked_at IS NULL`,
		jti, successorJTI)
	if err != nil {
		return fmt.Errorf("rotate refresh record: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 1 {
		return nil
	}
	// Lost the race or unknown jti: one SELECT tells which.
	if _, err := p.Get(ctx, jti); err != nil {
		return err
	}
	return ErrReused
}

// RevokeFamily revokes every live record in the family.
func (p *PostgresStore) RevokeFamily(ctx context.Context, familyID string) (int, error) {
	res, err := p.db.ExecContext(ctx, `
		UPDATE refresh_tokens
		SET revoked_at = now()
		WHERE family_id = $1 AND revoked_at IS NULL`, familyID)
	if err != nil {
		return 0, fmt.Errorf("revoke refresh family: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, err
	}
	return int(n), nil
}

// RevokeBySession revokes every live record bound to the session.
func (p *PostgresStore) RevokeBySession(ctx context.Context, sessionID string) (int, error) {
	res, err := p.db.ExecContext(ctx, `
		UPDATE refresh_tokens
		SET revoked_at = now()
		WHERE session_id = $1 AND revoked_at IS NULL`, sessionID)
	if err != nil {
		return 0, fmt.Errorf("revoke refresh records: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, err
	}
	return int(n), nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func timeToNullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}

func nullTimeToPtr(n sql.NullTime) *time.Time {
	if !n.Valid {
		return nil
	}
	return &n.Time
}
