package repository

import (
	"context"
	"database/sql"
	"errors"

	"saas-core/backend/internal/db"
	"saas-core/backend/internal/membership/domain"
	userdomain "saas-core/backend/internal/user/domain"
)

// PostgresRepository reads memberships through row-level security: outside the bypass only the
// bound tenant's rows are visible.
type PostgresRepository struct {
	db db.DBTX
}

// NewPostgresRepository returns a membership repository that uses the given db for persistence.
func NewPostgresRepository(conn db.DBTX) *PostgresRepository {
	return &PostgresRepository{db: conn}
}

func (r *PostgresRepository) GetRole(ctx context.Context, userID, scopeID string) (userdomain.Role, error) {
	var role string
	err := db.Conn(ctx, r.db).QueryRowContext(ctx,
		`SELECT role FROM memberships WHERE user_id = $1 AND scope_id = $2`, userID, scopeID).Scan(&role)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", nil
		}
		return "", err
	}
	return userdomain.Role(role), nil
}

func (r *PostgresRepository) ListByUser(ctx context.Context, userID string) ([]*domain.Membership, error) {
	rows, err := db.Conn(ctx, r.db).QueryContext(ctx, `
		SELECT id, tenant_id, user_id, scope_id, role, created_at
		FROM memberships WHERE user_id = $1 ORDER BY created_at`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []*domain.Membership
	for rows.Next() {
		var (
			m    domain.Membership
			role string
		)
		if err := rows.Scan(&m.ID, &m.TenantID, &m.UserID, &m.ScopeID, &role, &m.CreatedAt); err != nil {
			return nil, err
		}
		m.Role = userdomain.Role(role)
		out = append(out, &m)
	}
	return out, rows.Err()
}

func (r *PostgresRepository) Upsert(ctx context.Context, m *domain.Membership) error {
	_, err := db.Conn(ctx, r.db).ExecContext(ctx, `
		INSERT INTO memberships (id, tenant_id, user_id, scope_id, role, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (user_id, scope_id) DO UPDATE SET role = EXCLUDED.role`,
		m.ID, m.TenantID, m.UserID, m.ScopeID, string(m.Role), m.CreatedAt)
	return err
}
