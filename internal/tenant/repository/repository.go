package repository

import (
	"context"
	"errors"

	"saas-core/backend/internal/tenant/domain"
)

// ErrWorkspaceNameTaken is returned by Create when the tenant already has a workspace with that name.
var ErrWorkspaceNameTaken = errors.New("workspace name already in use")

// TenantRepository defines persistence for tenants.
type TenantRepository interface {
	GetByID(ctx context.Context, id string) (*domain.Tenant, error)
	GetBySlug(ctx context.Context, slug string) (*domain.Tenant, error)
	Create(ctx context.Context, t *domain.Tenant) error
}

// WorkspaceRepository defines persistence for workspaces. Reads go through row-level security, so
// outside the admin bypass only the bound tenant's workspaces are visible.
type WorkspaceRepository interface {
	GetByID(ctx context.Context, id string) (*domain.Workspace, error)
	ListByTenant(ctx context.Context, tenantID string, limit, offset int32) ([]*domain.Workspace, error)
	GetByName(ctx context.Context, tenantID, name string) (*domain.Workspace, error)
	Create(ctx context.Context, w *domain.Workspace) error
}
