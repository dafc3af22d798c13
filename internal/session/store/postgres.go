package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"matterguard/authcore/internal/session/domain"
)

// PostgresStore persists sessions in the sessions table. Retention is
// enforced by an expires_at column checked on every read.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore returns a session store backed by db.
func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

const sessionColumns = `id, user_id, org_id, fingerprint, mfa_verified, privilege, active,
	reason, invalidated_at, created_at, last_activity_at, ip_address, user_agent, metadata`

// Get returns the session for id, or nil if not found or past retention.
// It returns an error only for database failures, not for missing rows.
func (p *PostgresStore) Get(ctx context.Context, id string) (*domain.Session, error) {
	row := p.db.QueryRowContext(ctx, `
		SELECT `+sessionColumns+`
		FROM sessions
		WHERE id = $1 AND expires_at > now()`, id)
	s, err := scanSession(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return s, nil
}

// Save upserts the session. ttl sets the retention horizon from now.
func (p *PostgresStore) Save(ctx context.Context, s *domain.Session, ttl time.Duration) error {
	metadata, err := metadataJSON(s.Metadata)
	if err != nil {
		return err
	}
	_, err = p.db.ExecContext(ctx, `
		INSERT INTO sessions (
			id, user_id, org_id, fingerprint, mfa_verified, privilege, active,
			reason, invalidated_at, created_at, last_activity_at, ip_address,
			user_agent, metadata, expires_at
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15)
		ON CONFLICT (id) DO UPDATE SET
			mfa_verified     = EXCLUDED.mfa_verified,
			privilege        = EXCLUDED.privilege,
			active           = EXCLUDED.active,
			reason           = EXCLUDED.reason,
			invalidated_at   = EXCLUDED.invalidated_at,
			last_activity_at = EXCLUDED.last_activity_at,
			metadata         = EXCLUDED.metadata,
			expires_at       = EXCLUDED.expires_at`,
		s.ID, s.UserID, s.OrgID, s.Fingerprint, s.MFAVerified, string(s.Privilege), s.Active,
		nullString(s.Reason), timeToNullTime(s.InvalidatedAt), s.CreatedAt, s.LastActivityAt,
		nullString(s.IPAddress), nullString(s.UserAgent), metadata, time.Now().UTC().Add(ttl),
	)
	if err != nil {
		return fmt.Errorf("save session: %w", err)
	}
	return nil
}

// Delete removes the session row. Deleting a missing session is not an error.
func (p *PostgresStore) Delete(ctx context.Context, id string) error {
	if _, err := p.db.ExecContext(ctx, `DELETE FROM sessions WHERE id = $1`, id); err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	return nil
}

// ListActiveByUser returns the user's active sessions in the org, newest first.
func (p *PostgresStore) ListActiveByUser(ctx context.Context, userID, orgID string) ([]*domain.Session, error) {
	rows, err := p.db.QueryContext(ctx, `
		SELECT `+sessionColumns+`
		FROM sessions
		WHERE user_id = $1 AND org_id = $2 AND active AND expires_at > now()
		ORDER BY created_at DESC`, userID, orgID)
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	defer rows.Close()

	var out []*domain.Session
	for rows.Next() {
		s, err := scanSession(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

// RevokeAllByUser marks the user's active sessions inactive, skipping
// exceptID, and returns the number of rows updated.
func (p *PostgresStore) RevokeAllByUser(ctx context.Context, userID, orgID, exceptID, reason string) (int, error) {
	res, err := p.db.ExecContext(ctx, `
		UPDATE sessions
		SET active = FALSE, reason = $4, invalidated_at = now()
		WHERE user_id = $1 AND org_id = $2 AND active AND id <> $3`,
		userID, orgID, exceptID, reason)
	if err != nil {
		return 0, fmt.Errorf("revoke sessions: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, err
	}
	return int(n), nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSession(row rowScanner) (*domain.Session, error) {
	var (
		s             domain.Session
		privilege     string
		reason        sql.NullString
		invalidatedAt sql.NullTime
		ip            sql.NullString
		ua            sql.NullString
		metadata      []byte
	)
	err := row.Scan(&s.ID, &s.UserID, &s.OrgID, &s.Fingerprint, &s.MFAVerified, &privilege,
		&s.Active, &reason, &invalidatedAt, &s.CreatedAt, &s.LastActivityAt, &ip, &ua, &metadata)
	if err != nil {
		return nil, err
	}
	s.Privilege = domain.Privilege(privilege)
	s.Reason = reason.String
	s.InvalidatedAt = nullTimeToPtr(invalidatedAt)
	s.IPAddress = ip.String
	s.UserAgent = ua.String
	if len(metadata) > 0 {
		if err := json.Unmarshal(metadata, &s.Metadata); err != nil {
			return nil, fmt.Errorf("decode session metadata: %w", err)
		}
	}
	return &s, nil
}

func metadataJSON(m map[string]string) ([]byte, error) {
	if len(m) == 0 {
		return nil, nil
	}
	b, err := json.Marshal(m)
	if err != nil {
		return nil, fmt.Errorf("encode session metadata: %w", err)
	}
	return b, nil
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
