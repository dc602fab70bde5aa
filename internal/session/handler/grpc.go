package handler

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/structpb"

	apperrors "saas-core/backend/internal/platform/errors"
	"saas-core/backend/internal/server/interceptors"
	"saas-core/backend/internal/server/rpc"
	"saas-core/backend/internal/session/domain"
	userdomain "saas-core/backend/internal/user/domain"
)

// ServiceName is the gRPC service implemented by Server.
const ServiceName = "saas.session.v1.SessionService"

// Sessions is the session management used by Server.
type Sessions interface {
	ListSessions(ctx context.Context, p *userdomain.Principal, userID string) ([]*domain.Session, error)
	RevokeSession(ctx context.Context, p *userdomain.Principal, sessionID string) error
	RevokeOtherSessions(ctx context.Context, p *userdomain.Principal) (int64, error)
}

// SessionServiceServer is the server API of saas.session.v1.SessionService.
type SessionServiceServer interface {
	ListSessions(context.Context, *structpb.Struct) (*structpb.Struct, error)
	RevokeSession(context.Context, *structpb.Struct) (*structpb.Struct, error)
	RevokeOtherSessions(context.Context, *structpb.Struct) (*structpb.Struct, error)
}

func sessionMethod(name string, pick func(SessionServiceServer) rpc.UnaryFunc) grpc.MethodDesc {
	return rpc.Method(ServiceName, name, func(srv any) rpc.UnaryFunc { return pick(srv.(SessionServiceServer)) })
}

var serviceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*SessionServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		sessionMethod("ListSessions", func(s SessionServiceServer) rpc.UnaryFunc { return s.ListSessions }),
		sessionMethod("RevokeSession", func(s SessionServiceServer) rpc.UnaryFunc { return s.RevokeSession }),
		sessionMethod("RevokeOtherSessions", func(s SessionServiceServer) rpc.UnaryFunc { return s.RevokeOtherSessions }),
	},
	Streams: []grpc.StreamDesc{},
}

// Register registers srv on s.
func Register(s grpc.ServiceRegistrar, srv SessionServiceServer) {
	s.RegisterService(&serviceDesc, srv)
}

// Server implements SessionService for listing and revoking sessions.
type Server struct {
	sessions Sessions
}

// NewServer returns a new Session gRPC server.
func NewServer(sessions Sessions) *Server {
	return &Server{sessions: sessions}
}

func principal(ctx context.Context) (*userdomain.Principal, error) {
	p, ok := interceptors.PrincipalFromContext(ctx)
	if !ok {
		return nil, apperrors.New(apperrors.CodeUnauthenticated, "authentication required")
	}
	return p, nil
}

// ListSessions returns the active sessions of user_id, or of the caller when user_id is empty.
func (s *Server) ListSessions(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	p, err := principal(ctx)
	if err != nil {
		return nil, err
	}
	list, err := s.sessions.ListSessions(ctx, p, rpc.String(req, "user_id"))
	if err != nil {
		return nil, err
	}
	items := make([]map[string]any, len(list))
	for i, ses := range list {
		items[i] = sessionToMap(ses, p.SessionID)
	}
	return rpc.Reply(map[string]any{"sessions": items})
}

// RevokeSession revokes session_id. Revoking an already revoked session succeeds.
func (s *Server) RevokeSession(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	p, err := principal(ctx)
	if err != nil {
		return nil, err
	}
	sessionID, err := rpc.RequiredString(req, "session_id")
	if err != nil {
		return nil, err
	}
	if err := s.sessions.RevokeSession(ctx, p, sessionID); err != nil {
		return nil, err
	}
	return rpc.Reply(nil)
}

// RevokeOtherSessions revokes every session of the caller except the current one.
func (s *Server) RevokeOtherSessions(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	p, err := principal(ctx)
	if err != nil {
		return nil, err
	}
	n, err := s.sessions.RevokeOtherSessions(ctx, p)
	if err != nil {
		return nil, err
	}
	return rpc.Reply(map[string]any{"revoked": n})
}

func sessionToMap(s *domain.Session, currentID string) map[string]any {
	return map[string]any{
		"id":           s.ID,
		"user_id":      s.UserID,
		"tenant_id":    s.TenantID,
		"device_id":    s.DeviceID,
		"ip_address":   s.IPAddress,
		"user_agent":   s.UserAgent,
		"origin":       string(s.Origin),
		"created_at":   s.CreatedAt,
		"last_seen_at": s.LastSeenAt,
		"expires_at":   s.ExpiresAt,
		"current":      s.ID == currentID,
	}
}
