package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"saas-core/backend/internal/db"
	"saas-core/backend/internal/impersonation/domain"
)

const impersonationColumns = `id, admin_id, target_id, tenant_id, reason, started_at, expires_at, ended_at`

type PostgresRepository struct {
	db db.DBTX
}

// NewPostgresRepository returns an impersonation repository that uses the given db for persistence.
func NewPostgresRepository(conn db.DBTX) *PostgresRepository {
	return &PostgresRepository{db: conn}
}

func (r *PostgresRepository) Create(ctx context.Context, s *domain.Session) error {
	_, err := db.Conn(ctx, r.db).ExecContext(ctx, `
		INSERT INTO impersonation_sessions (`+impersonationColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, NULL)`,
		s.ID, s.AdminID, s.TargetID, s.TenantID, s.Reason, s.StartedAt, s.ExpiresAt)
	return err
}

func (r *PostgresRepository) GetByID(ctx context.Context, id string) (*domain.Session, error) {
	row := db.Conn(ctx, r.db).QueryRowContext(ctx,
		`SELECT `+impersonationColumns+` FROM impersonation_sessions WHERE id = $1`, id)
	return scanImpersonation(row)
}

func (r *PostgresRepository) End(ctx context.Context, id string, at time.Time) (bool, error) {
	res, err := db.Conn(ctx, r.db).ExecContext(ctx,
		`UPDATE impersonation_sessions SET ended_at = $2 WHERE id = $1 AND ended_at IS NULL`, id, at)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

func (r *PostgresRepository) GetActiveByAdmin(ctx context.Context, adminID string, now time.Time) (*domain.Session, error) {
	row := db.Conn(ctx, r.db).QueryRowContext(ctx, `
		SELECT `+impersonationColumns+` FROM impersonation_sessions
		WHERE admin_id = $1 AND ended_at IS NULL AND expires_at > $2
		ORDER BY started_at DESC LIMIT 1`, adminID, now)
	return scanImpersonation(row)
}

func scanImpersonation(row *sql.Row) (*domain.Session, error) {
	var (
		s       domain.Session
		endedAt sql.NullTime
	)
	err := row.Scan(&s.ID, &s.AdminID, &s.TargetID, &s.TenantID, &s.Reason, &s.StartedAt, &s.ExpiresAt, &endedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	if endedAt.Valid {
		s.EndedAt = &endedAt.Time
	}
	return &s, nil
}
