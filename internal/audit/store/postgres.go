package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"matterguard/authcore/internal/audit/domain"
)

// PostgresStore persists audit events in the audit_events table.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore returns an audit event store backed by db.
func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

const eventColumns = `id, org_id, user_id, session_id, action, resource, ip, metadata, created_at`

// Append implements Store.
func (p *PostgresStore) Append(ctx context.Context, e *domain.Event) error {
	metadata, err := metadataJSON(e.Metadata)
	if err != nil {
		return err
	}
	_, err = p.db.ExecContext(ctx, `
		INSERT INTO audit_events (`+eventColumns+`)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)`,
		e.ID, e.OrgID, nullString(e.UserID), nullString(e.SessionID),
		e.Action, e.Resource, e.IP, metadata, e.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("append audit event: %w", err)
	}
	return nil
}

// GetByID returns the event for id, or nil if not found. It returns an
// error only for database failures, not for missing rows.
func (p *PostgresStore) GetByID(ctx context.Context, id string) (*domain.Event, error) {
	row := p.db.QueryRowContext(ctx, `
		SELECT `+eventColumns+` FROM audit_events WHERE id = $1`, id)
	e, err := scanEvent(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return e, nil
}

// ListByOrg implements Store.
func (p *PostgresStore) ListByOrg(ctx context.Context, orgID string, limit, offset int32) ([]*domain.Event, error) {
	rows, err := p.db.QueryContext(ctx, `
		SELECT `+eventColumns+`
		FROM audit_events
		WHERE org_id = $1
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3`, orgID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("list audit events: %w", err)
	}
	defer rows.Close()
	return collectEvents(rows)
}

// ListByUser implements Store.
func (p *PostgresStore) ListByUser(ctx context.Context, orgID, userID string, limit, offset int32) ([]*domain.Event, error) {
	rows, err := p.db.QueryContext(ctx, `
		SELECT `+eventColumns+`
		FROM audit_events
		WHERE org_id = $1 AND user_id = $2
		ORDER BY created_at DESC
		LIMIT $3 OFFSET $4`, orgID, userID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("list audit events: %w", err)
	}
	defer rows.Close()
	return collectEvents(rows)
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanEvent(row rowScanner) (*domain.Event, error) {
	var (
		e        domain.Event
		userID   sql.NullString
		sid      sql.NullString
		metadata []byte
	)
	err := row.Scan(&e.ID, &e.OrgID, &userID, &sid, &e.Action, &e.Resource, &e.IP, &metadata, &e.CreatedAt)
	if err != nil {
		return nil, err
	}
	e.UserID = userID.String
	e.SessionID = sid.String
	if len(metadata) > 0 {
		if err := json.Unmarshal(metadata, &e.Metadata); err != nil {
			return nil, fmt.Errorf("decode audit metadata: %w", err)
		}
	}
	return &e, nil
}

func collectEvents(rows *sql.Rows) ([]*domain.Event, error) {
	var out []*domain.Event
	for rows.Next() {
		e, err := scanEvent(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func metadataJSON(m map[string]string) ([]byte, error) {
	if len(m) == 0 {
		return nil, nil
	}
	b, err := json.Marshal(m)
	if err != nil {
		return nil, fmt.Errorf("encode audit metadata: %w", err)
	}
	return b, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
