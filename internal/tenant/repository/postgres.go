package repository

import (
	"context"
	"database/sql"
	"errors"

	"saas-core/backend/internal/db"
	"saas-core/backend/internal/tenant/domain"
)

type TenantPostgresRepository struct {
	db db.DBTX
}

// NewTenantPostgresRepository returns a tenant repository that uses the given db for persistence.
func NewTenantPostgresRepository(conn db.DBTX) *TenantPostgresRepository {
	return &TenantPostgresRepository{db: conn}
}

// GetByID returns the tenant for id, or nil if not found.
// It returns an error only for database failures, not for missing rows.
func (r *TenantPostgresRepository) GetByID(ctx context.Context, id string) (*domain.Tenant, error) {
	row := db.Conn(ctx, r.db).QueryRowContext(ctx, `SELECT id, name, slug, created_at FROM tenants WHERE id = $1`, id)
	return scanTenant(row)
}

// GetBySlug returns the tenant with slug, or nil if not found.
func (r *TenantPostgresRepository) GetBySlug(ctx context.Context, slug string) (*domain.Tenant, error) {
	row := db.Conn(ctx, r.db).QueryRowContext(ctx, `SELECT id, name, slug, created_at FROM tenants WHERE slug = $1`, slug)
	return scanTenant(row)
}

// Create persists the tenant to the database. The tenant must have ID set.
func (r *TenantPostgresRepository) Create(ctx context.Context, t *domain.Tenant) error {
	_, err := db.Conn(ctx, r.db).ExecContext(ctx,
		`INSERT INTO tenants (id, name, slug, created_at) VALUES ($1, $2, $3, $4)`,
		t.ID, t.Name, t.Slug, t.CreatedAt)
	return err
}

func scanTenant(row *sql.Row) (*domain.Tenant, error) {
	var t domain.Tenant
	if err := row.Scan(&t.ID, &t.Name, &t.Slug, &t.CreatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &t, nil
}

type WorkspacePostgresRepository struct {
	db db.DBTX
}

// NewWorkspacePostgresRepository returns a workspace repository that uses the given db for persistence.
func NewWorkspacePostgresRepository(conn db.DBTX) *WorkspacePostgresRepository {
	return &WorkspacePostgresRepository{db: conn}
}

// GetByID returns the workspace for id, or nil if it does not exist or is not visible to the bound tenant.
func (r *WorkspacePostgresRepository) GetByID(ctx context.Context, id string) (*domain.Workspace, error) {
	row := db.Conn(ctx, r.db).QueryRowContext(ctx,
		`SELECT id, tenant_id, name, created_at FROM workspaces WHERE id = $1`, id)
	return scanWorkspace(row)
}

// GetByName returns the tenant's workspace called name, or nil.
func (r *WorkspacePostgresRepository) GetByName(ctx context.Context, tenantID, name string) (*domain.Workspace, error) {
	row := db.Conn(ctx, r.db).QueryRowContext(ctx,
		`SELECT id, tenant_id, name, created_at FROM workspaces WHERE tenant_id = $1 AND name = $2`, tenantID, name)
	return scanWorkspace(row)
}

// ListByTenant returns the tenant's workspaces ordered by name, paginated by limit and offset.
func (r *WorkspacePostgresRepository) ListByTenant(ctx context.Context, tenantID string, limit, offset int32) ([]*domain.Workspace, error) {
	rows, err := db.Conn(ctx, r.db).QueryContext(ctx, `
		SELECT id, tenant_id, name, created_at FROM workspaces
		WHERE tenant_id = $1 ORDER BY name, id LIMIT $2 OFFSET $3`, tenantID, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []*domain.Workspace
	for rows.Next() {
		var w domain.Workspace
		if err := rows.Scan(&w.ID, &w.TenantID, &w.Name, &w.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, &w)
	}
	return out, rows.Err()
}

// Create persists the workspace. Must run in a transaction bound to the workspace's tenant or the bypass.
func (r *WorkspacePostgresRepository) Create(ctx context.Context, w *domain.Workspace) error {
	_, err := db.Conn(ctx, r.db).ExecContext(ctx,
		`INSERT INTO workspaces (id, tenant_id, name, created_at) VALUES ($1, $2, $3, $4)`,
		w.ID, w.TenantID, w.Name, w.CreatedAt)
	if db.IsUniqueViolation(err) {
		return ErrWorkspaceNameTaken
	}
	return err
}

func scanWorkspace(row *sql.Row) (*domain.Workspace, error) {
	var w domain.Workspace
	if err := row.Scan(&w.ID, &w.TenantID, &w.Name, &w.CreatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &w, nil
}
