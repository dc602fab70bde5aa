package handler

import (
	"context"

	"github.com/google/uuid"
	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/structpb"

	"saas-core/backend/internal/audit/domain"
	"saas-core/backend/internal/audit/repository"
	apperrors "saas-core/backend/internal/platform/errors"
	"saas-core/backend/internal/platform/rbac"
	"saas-core/backend/internal/server/interceptors"
	"saas-core/backend/internal/server/rpc"
)

// ServiceName is the gRPC service implemented by Server.
const ServiceName = "saas.audit.v1.AuditLogService"

// AuditLogServiceServer is the server API of saas.audit.v1.AuditLogService.
type AuditLogServiceServer interface {
	ListAuditLogs(context.Context, *structpb.Struct) (*structpb.Struct, error)
}

var serviceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*AuditLogServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		rpc.Method(ServiceName, "ListAuditLogs", func(srv any) rpc.UnaryFunc { return srv.(AuditLogServiceServer).ListAuditLogs }),
	},
	Streams: []grpc.StreamDesc{},
}

// Register registers srv on s.
func Register(s grpc.ServiceRegistrar, srv AuditLogServiceServer) {
	s.RegisterService(&serviceDesc, srv)
}

// Server implements AuditLogService for reading a tenant's audit trail.
type Server struct {
	logs  repository.Repository
	authz rbac.Authorizer
}

// NewServer returns a new Audit gRPC server.
func NewServer(logs repository.Repository, authz rbac.Authorizer) *Server {
	return &Server{logs: logs, authz: authz}
}

// ListAuditLogs returns a page of audit logs for the caller's tenant, newest first. A global
// administrator may name another tenant with tenant_id.
func (s *Server) ListAuditLogs(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	p, ok := interceptors.PrincipalFromContext(ctx)
	if !ok {
		return nil, apperrors.New(apperrors.CodeUnauthenticated, "authentication required")
	}
	tenantID := p.TenantID
	if id := rpc.String(req, "tenant_id"); id != "" && p.AdminBypass() {
		if _, err := uuid.Parse(id); err != nil {
			return nil, apperrors.WithMetadata(apperrors.CodeInvalidArgument, "tenant_id is not a valid id", map[string]string{"field": "tenant_id"})
		}
		tenantID = id
	}
	if err := rbac.Require(ctx, s.authz, p, rbac.ActionRead, rbac.ResourceAuditLog, rbac.Scope{TenantScopeID: tenantID}); err != nil {
		return nil, err
	}
	limit := rpc.Int32(req, "limit", 50, 1, 500)
	offset := rpc.Int32(req, "offset", 0, 0, 1<<30)
	list, err := s.logs.ListByTenant(ctx, tenantID, limit, offset)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.CodeInternal, "list audit logs", err)
	}
	items := make([]map[string]any, len(list))
	for i, a := range list {
		items[i] = logToMap(a)
	}
	return rpc.Reply(map[string]any{"audit_logs": items})
}

func logToMap(a *domain.AuditLog) map[string]any {
	return map[string]any{
		"id":           a.ID,
		"tenant_id":    a.TenantID,
		"event_name":   a.EventName,
		"aggregate_id": a.AggregateID,
		"actor_id":     a.ActorID,
		"request_id":   a.RequestID,
		"payload":      a.Payload,
		"occurred_at":  a.OccurredAt,
		"created_at":   a.CreatedAt,
	}
}
