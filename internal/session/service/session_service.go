// Package service implements self-service and administrative session management.
package service

import (
	"context"
	"time"

	"github.com/google/uuid"

	"saas-core/backend/internal/events"
	apperrors "saas-core/backend/internal/platform/errors"
	"saas-core/backend/internal/platform/rbac"
	"saas-core/backend/internal/session/domain"
	userdomain "saas-core/backend/internal/user/domain"
)

var (
	ErrSessionNotFound = apperrors.New(apperrors.CodeNotFound, "session not found")
	ErrUserNotFound    = apperrors.New(apperrors.CodeNotFound, "user not found")
)

// SessionRepo is the minimal session repository needed by SessionService.
type SessionRepo interface {
	GetByID(ctx context.Context, id string) (*domain.Session, error)
	Revoke(ctx context.Context, id string, at time.Time) error
	RevokeAllExcept(ctx context.Context, userID, keepID string, at time.Time) (int64, error)
	ListActiveByUser(ctx context.Context, userID string, now time.Time) ([]*domain.Session, error)
}

// UserRepo resolves the owner of sessions an administrator asks about.
type UserRepo interface {
	GetByID(ctx context.Context, id string) (*userdomain.User, error)
}

// Publisher records domain events.
type Publisher interface {
	Publish(ctx context.Context, e events.Event) error
}

// SessionService lists and revokes sessions. A principal always manages its own sessions; other
// users' sessions need the session permissions in the owner's tenant.
type SessionService struct {
	sessions  SessionRepo
	users     UserRepo
	authz     rbac.Authorizer
	publisher Publisher
	now       func() time.Time
}

// NewSessionService returns a SessionService with the given dependencies.
func NewSessionService(sessions SessionRepo, users UserRepo, authz rbac.Authorizer, publisher Publisher) *SessionService {
	return &SessionService{
		sessions:  sessions,
		users:     users,
		authz:     authz,
		publisher: publisher,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// ListSessions returns the active sessions of userID, or of the principal when userID is empty.
func (s *SessionService) ListSessions(ctx context.Context, p *userdomain.Principal, userID string) ([]*domain.Session, error) {
	if userID == "" || userID == p.ID {
		return s.sessions.ListActiveByUser(ctx, p.ID, s.now())
	}
	if _, err := uuid.Parse(userID); err != nil {
		return nil, ErrUserNotFound
	}
	owner, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if owner == nil || !visible(p, owner.TenantID) {
		return nil, ErrUserNotFound
	}
	if err := rbac.Require(ctx, s.authz, p, rbac.ActionRead, rbac.ResourceSession, rbac.Scope{TenantScopeID: owner.TenantID}); err != nil {
		return nil, err
	}
	return s.sessions.ListActiveByUser(ctx, userID, s.now())
}

// RevokeSession revokes one session. Revoking an already revoked session succeeds.
func (s *SessionService) RevokeSession(ctx context.Context, p *userdomain.Principal, sessionID string) error {
	if _, err := uuid.Parse(sessionID); err != nil {
		return ErrSessionNotFound
	}
	sess, err := s.sessions.GetByID(ctx, sessionID)
	if err != nil {
		return err
	}
	if sess == nil || !visible(p, sess.TenantID) {
		return ErrSessionNotFound
	}
	if sess.UserID != p.ID {
		if err := rbac.Require(ctx, s.authz, p, rbac.ActionRevoke, rbac.ResourceSession, rbac.Scope{TenantScopeID: sess.TenantID}); err != nil {
			return err
		}
	}
	if sess.IsRevoked() {
		return nil
	}
	if err := s.sessions.Revoke(ctx, sess.ID, s.now()); err != nil {
		return err
	}
	return s.publisher.Publish(ctx, events.New(ctx, events.SessionRevoked, sess.ID, map[string]any{
		"user_id": sess.UserID,
	}).WithTenant(sess.TenantID, p.ActorID()))
}

// RevokeOtherSessions revokes every session of the principal except the one the request uses.
func (s *SessionService) RevokeOtherSessions(ctx context.Context, p *userdomain.Principal) (int64, error) {
	if p.SessionID == "" {
		return 0, apperrors.New(apperrors.CodeUnauthenticated, "session required")
	}
	n, err := s.sessions.RevokeAllExcept(ctx, p.ID, p.SessionID, s.now())
	if err != nil {
		return 0, err
	}
	err = s.publisher.Publish(ctx, events.New(ctx, events.OtherSessionsRevoked, p.SessionID, map[string]any{
		"user_id":          p.ID,
		"sessions_revoked": n,
	}).WithTenant(p.TenantID, p.ActorID()))
	return n, err
}

// visible reports whether a row of tenantID exists for p. Another tenant's rows read as missing,
// the same answer row-level security gives inside the request transaction.
func visible(p *userdomain.Principal, tenantID string) bool {
	return p.AdminBypass() || tenantID == p.TenantID
}
