package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"matterguard/authcore/internal/mfa/domain"
)

// PostgresStore persists enrollments in the mfa_enrollments table, one row
// per user. Backup-code hashes are a JSONB array so single-use removal is
// one row update.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore returns an enrollment store backed by db.
func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// Get returns the user's enrollment, or nil if none exists.
// It returns an error only for database failures, not for missing rows.
func (p *PostgresStore) Get(ctx context.Context, userID string) (*domain.Enrollment, error) {
	row := p.db.QueryRowContext(ctx, `
		SELECT user_id, org_id, label, secret_sealed, backup_code_salt,
		       backup_code_hashes, recovery_key_hash, state, created_at,
		       verified_at, last_used_at, disabled_at
		FROM mfa_enrollments
		WHERE user_id = $1`, userID)

	var (
		e          domain.Enrollment
		hashes     []byte
		state      string
		verifiedAt sql.NullTime
		lastUsedAt sql.NullTime
		disabledAt sql.NullTime
	)
	err := row.Scan(&e.UserID, &e.OrgID, &e.Label, &e.SecretSealed, &e.BackupCodeSalt,
		&hashes, &e.RecoveryKeyHash, &state, &e.CreatedAt,
		&verifiedAt, &lastUsedAt, &disabledAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get enrollment: %w", err)
	}
	if len(hashes) > 0 {
		if err := json.Unmarshal(hashes, &e.BackupCodeHashes); err != nil {
			return nil, fmt.Errorf("decode backup code hashes: %w", err)
		}
	}
	e.State = domain.State(state)
	e.VerifiedAt = nullTimeToPtr(verifiedAt)
	e.LastUsedAt = nullTimeToPtr(lastUsedAt)
	e.DisabledAt = nullTimeToPtr(disabledAt)
	return &e, nil
}

// Save upserts the user's enrollment row.
func (p *PostgresStore) Save(ctx context.Context, e *domain.Enrollment) error {
	hashes, err := json.Marshal(e.BackupCodeHashes)
	if err != nil {
		return fmt.Errorf("encode backup code hashes: %w", err)
	}
	_, err = p.db.ExecContext(ctx, `
		INSERT INTO mfa_enrollments (
			user_id, org_id, label, secret_sealed, backup_code_salt,
			backup_code_hashes, recovery_key_hash, state, created_at,
			verified_at, last_used_at, disabled_at
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12)
		ON CONFLICT (user_id) DO UPDATE SET
			org_id             = EXCLUDED.org_id,
			label              = EXCLUDED.label,
			secret_sealed      = EXCLUDED.secret_sealed,
			backup_code_salt   = EXCLUDED.backup_code_salt,
			backup_code_hashes = EXCLUDED.backup_code_hashes,
			recovery_key_hash  = EXCLUDED.recovery_key_hash,
			state              = EXCLUDED.state,
			created_at         = EXCLUDED.created_at,
			verified_at        = EXCLUDED.verified_at,
			last_used_at       = EXCLUDED.last_used_at,
			disabled_at        = EXCLUDED.disabled_at`,
		e.UserID, e.OrgID, e.Label, e.SecretSealed, e.BackupCodeSalt,
		hashes, e.RecoveryKeyHash, string(e.State), e.CreatedAt,
		timeToNullTime(e.VerifiedAt), timeToNullTime(e.LastUsedAt), timeToNullTime(e.DisabledAt),
	)
	if err != nil {
		return fmt.Errorf("save enrollment: %w", err)
	}
	return nil
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
