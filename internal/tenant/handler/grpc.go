package handler

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/structpb"

	apperrors "saas-core/backend/internal/platform/errors"
	"saas-core/backend/internal/platform/rbac"
	"saas-core/backend/internal/server/interceptors"
	"saas-core/backend/internal/server/rpc"
	"saas-core/backend/internal/tenant/domain"
	"saas-core/backend/internal/tenant/repository"
	userdomain "saas-core/backend/internal/user/domain"
)

// ServiceName is the gRPC service implemented by Server.
const ServiceName = "saas.tenant.v1.WorkspaceService"

const (
	defaultPageSize int32 = 50
	maxPageSize     int32 = 200
)

// WorkspaceServiceServer is the server API of saas.tenant.v1.WorkspaceService.
type WorkspaceServiceServer interface {
	ListWorkspaces(context.Context, *structpb.Struct) (*structpb.Struct, error)
	GetWorkspace(context.Context, *structpb.Struct) (*structpb.Struct, error)
	CreateWorkspace(context.Context, *structpb.Struct) (*structpb.Struct, error)
}

func workspaceMethod(name string, pick func(WorkspaceServiceServer) rpc.UnaryFunc) grpc.MethodDesc {
	return rpc.Method(ServiceName, name, func(srv any) rpc.UnaryFunc { return pick(srv.(WorkspaceServiceServer)) })
}

var serviceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*WorkspaceServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		workspaceMethod("ListWorkspaces", func(s WorkspaceServiceServer) rpc.UnaryFunc { return s.ListWorkspaces }),
		workspaceMethod("GetWorkspace", func(s WorkspaceServiceServer) rpc.UnaryFunc { return s.GetWorkspace }),
		workspaceMethod("CreateWorkspace", func(s WorkspaceServiceServer) rpc.UnaryFunc { return s.CreateWorkspace }),
	},
	Streams: []grpc.StreamDesc{},
}

// Register registers srv on s.
func Register(s grpc.ServiceRegistrar, srv WorkspaceServiceServer) {
	s.RegisterService(&serviceDesc, srv)
}

// Server implements WorkspaceService. Every read runs inside the caller's tenant binding, so a
// workspace of another tenant is reported as not found.
type Server struct {
	workspaces repository.WorkspaceRepository
	authz      rbac.Authorizer
	now        func() time.Time
}

// NewServer returns a new Workspace gRPC server.
func NewServer(workspaces repository.WorkspaceRepository, authz rbac.Authorizer) *Server {
	return &Server{workspaces: workspaces, authz: authz, now: time.Now}
}

func principal(ctx context.Context) (*userdomain.Principal, error) {
	p, ok := interceptors.PrincipalFromContext(ctx)
	if !ok {
		return nil, apperrors.New(apperrors.CodeUnauthenticated, "authentication required")
	}
	return p, nil
}

// tenantOf returns the tenant the request acts on: tenant_id for a global administrator, the
// caller's own tenant for everyone else.
func tenantOf(p *userdomain.Principal, req *structpb.Struct) (string, error) {
	if p.AdminBypass() {
		if id := rpc.String(req, "tenant_id"); id != "" {
			if _, err := uuid.Parse(id); err != nil {
				return "", apperrors.WithMetadata(apperrors.CodeInvalidArgument, "tenant_id is not a valid id", map[string]string{"field": "tenant_id"})
			}
			return id, nil
		}
	}
	return p.TenantID, nil
}

func nameTaken() error {
	return apperrors.WithMetadata(apperrors.CodeInvalidArgument, "workspace name already in use", map[string]string{"field": "name"})
}

// ListWorkspaces returns the workspaces of the caller's tenant.
func (s *Server) ListWorkspaces(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	p, err := principal(ctx)
	if err != nil {
		return nil, err
	}
	tenantID, err := tenantOf(p, req)
	if err != nil {
		return nil, err
	}
	if err := rbac.Require(ctx, s.authz, p, rbac.ActionRead, rbac.ResourceWorkspace, rbac.Scope{TenantScopeID: tenantID}); err != nil {
		return nil, err
	}
	limit := rpc.Int32(req, "limit", defaultPageSize, 1, maxPageSize)
	offset := rpc.Int32(req, "offset", 0, 0, 1<<30)
	list, err := s.workspaces.ListByTenant(ctx, tenantID, limit, offset)
	if err != nil {
		return nil, err
	}
	items := make([]map[string]any, len(list))
	for i, w := range list {
		items[i] = workspaceToMap(w)
	}
	return rpc.Reply(map[string]any{"workspaces": items})
}

// GetWorkspace returns workspace_id. Membership in the workspace itself or in its tenant grants read.
func (s *Server) GetWorkspace(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	p, err := principal(ctx)
	if err != nil {
		return nil, err
	}
	id, err := rpc.RequiredString(req, "workspace_id")
	if err != nil {
		return nil, err
	}
	notFound := apperrors.New(apperrors.CodeNotFound, "workspace not found")
	if _, err := uuid.Parse(id); err != nil {
		return nil, notFound
	}
	w, err := s.workspaces.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if w == nil {
		return nil, notFound
	}
	ok, err := s.authz.Can(ctx, p, rbac.ActionRead, rbac.ResourceWorkspace, rbac.Scope{TenantScopeID: w.ID})
	if err != nil {
		return nil, err
	}
	if !ok {
		if err := rbac.Require(ctx, s.authz, p, rbac.ActionRead, rbac.ResourceWorkspace, rbac.Scope{TenantScopeID: w.TenantID}); err != nil {
			return nil, err
		}
	}
	return rpc.Reply(workspaceToMap(w))
}

// CreateWorkspace creates a workspace called name in the caller's tenant.
func (s *Server) CreateWorkspace(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	p, err := principal(ctx)
	if err != nil {
		return nil, err
	}
	name, err := rpc.RequiredString(req, "name")
	if err != nil {
		return nil, err
	}
	tenantID, err := tenantOf(p, req)
	if err != nil {
		return nil, err
	}
	if err := rbac.Require(ctx, s.authz, p, rbac.ActionCreate, rbac.ResourceWorkspace, rbac.Scope{TenantScopeID: tenantID}); err != nil {
		return nil, err
	}
	existing, err := s.workspaces.GetByName(ctx, tenantID, name)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, nameTaken()
	}
	w := &domain.Workspace{
		ID:        uuid.New().String(),
		TenantID:  tenantID,
		Name:      name,
		CreatedAt: s.now().UTC(),
	}
	if err := w.Validate(); err != nil {
		return nil, apperrors.New(apperrors.CodeInvalidArgument, err.Error())
	}
	if err := s.workspaces.Create(ctx, w); err != nil {
		if errors.Is(err, repository.ErrWorkspaceNameTaken) {
			return nil, nameTaken()
		}
		if errors.Is(err, context.Canceled) {
			return nil, err
		}
		return nil, apperrors.Wrap(apperrors.CodeInternal, "create workspace", err)
	}
	return rpc.Reply(workspaceToMap(w))
}

func workspaceToMap(w *domain.Workspace) map[string]any {
	return map[string]any{
		"id":         w.ID,
		"tenant_id":  w.TenantID,
		"name":       w.Name,
		"created_at": w.CreatedAt,
	}
}
