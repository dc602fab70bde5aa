package repository

import (
	"context"
	"encoding/json"
	"fmt"

	"saas-core/backend/internal/audit/domain"
	"saas-core/backend/internal/db"
)

// PostgresRepository stores audit logs. audit_logs is under row-level security: reads see the bound
// tenant's rows only, and writes need the admin bypass for system events without a tenant.
type PostgresRepository struct {
	db db.DBTX
}

// NewPostgresRepository returns an audit log repository that uses the given db for persistence.
func NewPostgresRepository(conn db.DBTX) *PostgresRepository {
	return &PostgresRepository{db: conn}
}

// Save persists the audit log. The audit log must have ID set.
func (r *PostgresRepository) Save(ctx context.Context, a *domain.AuditLog) (bool, error) {
	payload := []byte("{}")
	if a.Payload != nil {
		b, err := json.Marshal(a.Payload)
		if err != nil {
			return false, fmt.Errorf("audit: encode payload: %w", err)
		}
		payload = b
	}
	res, err := db.Conn(ctx, r.db).ExecContext(ctx, `
		INSERT INTO audit_logs (id, tenant_id, event_name, aggregate_id, actor_id, request_id, payload, occurred_at)
		VALUES ($1, NULLIF($2, '')::uuid, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (event_name, aggregate_id, occurred_at) DO NOTHING`,
		a.ID, a.TenantID, a.EventName, a.AggregateID, a.ActorID, a.RequestID, string(payload), a.OccurredAt)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

// ListByTenant returns the tenant's audit logs, newest first, paginated by limit and offset.
// Returns (nil, error) only on database errors.
func (r *PostgresRepository) ListByTenant(ctx context.Context, tenantID string, limit, offset int32) ([]*domain.AuditLog, error) {
	rows, err := db.Conn(ctx, r.db).QueryContext(ctx, `
		SELECT id, COALESCE(tenant_id::text, ''), event_name, aggregate_id, actor_id, request_id, payload, occurred_at, created_at
		FROM audit_logs
		WHERE tenant_id = $1
		ORDER BY created_at DESC, id
		LIMIT $2 OFFSET $3`, tenantID, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []*domain.AuditLog
	for rows.Next() {
		var (
			a       domain.AuditLog
			payload []byte
		)
		if err := rows.Scan(&a.ID, &a.TenantID, &a.EventName, &a.AggregateID, &a.ActorID, &a.RequestID,
			&payload, &a.OccurredAt, &a.CreatedAt); err != nil {
			return nil, err
		}
		if len(payload) > 0 {
			if err := json.Unmarshal(payload, &a.Payload); err != nil {
				return nil, fmt.Errorf("audit: decode payload of %s: %w", a.ID, err)
			}
		}
		out = append(out, &a)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

var _ Repository = (*PostgresRepository)(nil)
