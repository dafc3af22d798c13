package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"matterguard/authcore/internal/policy/domain"
)

// PostgresStore persists custom policies in the custom_policies table.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore returns a custom-policy store backed by db.
func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

const customPolicyColumns = `org_id, name, description, effect, priority, kind, source, query,
	enabled, created_at, updated_at`

// List implements Store.
func (p *PostgresStore) List(ctx context.Context) ([]domain.CustomPolicy, error) {
	rows, err := p.db.QueryContext(ctx, `
		SELECT `+customPolicyColumns+`
		FROM custom_policies
		ORDER BY priority, name`)
	if err != nil {
		return nil, fmt.Errorf("list custom policies: %w", err)
	}
	defer rows.Close()
	return collectPolicies(rows)
}

// ListByOrg implements Store.
func (p *PostgresStore) ListByOrg(ctx context.Context, orgID string) ([]domain.CustomPolicy, error) {
	rows, err := p.db.QueryContext(ctx, `
		SELECT `+customPolicyColumns+`
		FROM custom_policies
		WHERE org_id = $1
		ORDER BY priority, name`, orgID)
	if err != nil {
		return nil, fmt.Errorf("list custom policies: %w", err)
	}
	defer rows.Close()
	return collectPolicies(rows)
}

// Upsert implements Store.
func (p *PostgresStore) Upsert(ctx context.Context, cp domain.CustomPolicy) error {
	now := time.Now().UTC()
	created := cp.CreatedAt
	if created.IsZero() {
		created = now
	}
	_, err := p.db.ExecContext(ctx, `
		INSERT INTO custom_policies (
			org_id, name, description, effect, priority, kind, source, query,
			enabled, created_at, updated_at
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)
		ON CONFLICT (org_id, name) DO UPDATE SET
			description = EXCLUDED.description,
			effect      = EXCLUDED.effect,
			priority    = EXCLUDED.priority,
			kind        = EXCLUDED.kind,
			source      = EXCLUDED.source,
			query       = EXCLUDED.query,
			enabled     = EXCLUDED.enabled,
			updated_at  = EXCLUDED.updated_at`,
		cp.OrgID, cp.Name, cp.Description, string(cp.Effect), cp.Priority, cp.Kind,
		cp.Source, cp.Query, cp.Enabled, created, now,
	)
	if err != nil {
		return fmt.Errorf("upsert custom policy: %w", err)
	}
	return nil
}

// Delete implements Store.
func (p *PostgresStore) Delete(ctx context.Context, orgID, name string) error {
	_, err := p.db.ExecContext(ctx, `
		DELETE FROM custom_policies WHERE org_id = $1 AND name = $2`, orgID, name)
	if err != nil {
		return fmt.Errorf("delete custom policy: %w", err)
	}
	return nil
}

func collectPolicies(rows *sql.Rows) ([]domain.CustomPolicy, error) {
	var out []domain.CustomPolicy
	for rows.Next() {
		var (
			cp     domain.CustomPolicy
			effect string
		)
		err := rows.Scan(&cp.OrgID, &cp.Name, &cp.Description, &effect, &cp.Priority,
			&cp.Kind, &cp.Source, &cp.Query, &cp.Enabled, &cp.CreatedAt, &cp.UpdatedAt)
		if err != nil {
			return nil, fmt.Errorf("scan custom policy: %w", err)
		}
		cp.Effect = domain.Effect(effect)
		out = append(out, cp)
	}
	return out, rows.Err()
}
