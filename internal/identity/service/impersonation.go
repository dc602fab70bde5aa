package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"saas-core/backend/internal/events"
	impersonationdomain "saas-core/backend/internal/impersonation/domain"
	apperrors "saas-core/backend/internal/platform/errors"
	"saas-core/backend/internal/platform/logging"
	"saas-core/backend/internal/platform/rbac"
	"saas-core/backend/internal/security"
	sessiondomain "saas-core/backend/internal/session/domain"
	userdomain "saas-core/backend/internal/user/domain"
)

// StartResult is returned by ImpersonationService.Start. The access token acts as the target and
// cannot outlive ExpiresAt; no refresh token is issued.
type StartResult struct {
	ImpersonationID string
	TargetID        string
	TenantID        string
	SessionID       string
	AccessToken     string
	AccessExpiresAt time.Time
	ExpiresAt       time.Time
}

// ImpersonationService starts and ends time-boxed impersonation.
type ImpersonationService struct {
	userRepo      UserRepo
	sessionRepo   SessionRepo
	impersonation ImpersonationRepo
	tokens        *security.TokenProvider
	authz         rbac.Authorizer
	publisher     Publisher
	logger        *zap.Logger
	metrics       authMetrics
	now           func() time.Time
}

// NewImpersonationService returns an ImpersonationService. logger may be nil.
func NewImpersonationService(
	userRepo UserRepo,
	sessionRepo SessionRepo,
	impersonation ImpersonationRepo,
	tokens *security.TokenProvider,
	authz rbac.Authorizer,
	publisher Publisher,
	logger *zap.Logger,
) *ImpersonationService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ImpersonationService{
		userRepo:      userRepo,
		sessionRepo:   sessionRepo,
		impersonation: impersonation,
		tokens:        tokens,
		authz:         authz,
		publisher:     publisher,
		logger:        logger,
		metrics:       newAuthMetrics(),
		now:           func() time.Time { return time.Now().UTC() },
	}
}

// Start lets actor act as targetID for impersonationdomain.Duration. The impersonation.started
// event is required: a failure to record it is returned.
func (s *ImpersonationService) Start(ctx context.Context, actor *userdomain.Principal, targetID, reason string, client ClientInfo) (*StartResult, error) {
	if err := rbac.Require(ctx, s.authz, actor, rbac.ActionStart, rbac.ResourceImpersonation, rbac.Scope{}); err != nil {
		return nil, err
	}
	if actor.IsImpersonated() {
		return nil, apperrors.New(apperrors.CodePermissionDenied, "cannot start impersonation while impersonating")
	}
	targetID = strings.TrimSpace(targetID)
	if targetID == "" {
		return nil, apperrors.New(apperrors.CodeInvalidArgument, "target id is required")
	}
	if targetID == actor.ID {
		return nil, apperrors.New(apperrors.CodeInvalidArgument, "cannot impersonate yourself")
	}
	if !impersonationdomain.ValidReason(reason) {
		return nil, apperrors.WithMetadata(apperrors.CodeInvalidArgument,
			fmt.Sprintf("reason must be at least %d characters", impersonationdomain.MinReasonLength),
			map[string]string{"field": "reason"})
	}
	now := s.now()
	active, err := s.impersonation.GetActiveByAdmin(ctx, actor.ID, now)
	if err != nil {
		return nil, err
	}
	if active != nil {
		return nil, apperrors.WithMetadata(apperrors.CodePermissionDenied, "an impersonation is already active",
			map[string]string{"impersonation_id": active.ID})
	}

	target, err := s.userRepo.GetByID(ctx, targetID)
	if err != nil {
		return nil, err
	}
	if !target.IsActive() {
		return nil, ErrPrincipalNotFound
	}
	if target.Role.IsGlobal() {
		return nil, apperrors.New(apperrors.CodePermissionDenied, "cannot impersonate a global administrator")
	}

	imp := &impersonationdomain.Session{
		ID:        uuid.New().String(),
		AdminID:   actor.ID,
		TargetID:  target.ID,
		TenantID:  target.TenantID,
		Reason:    strings.TrimSpace(reason),
		StartedAt: now,
		ExpiresAt: now.Add(impersonationdomain.Duration),
	}
	if err := s.impersonation.Create(ctx, imp); err != nil {
		return nil, err
	}
	// the refresh token of an impersonation session is never handed out
	sess, _, err := newSession(target, sessiondomain.OriginImpersonation, client, now, imp.ExpiresAt, imp.ID)
	if err != nil {
		return nil, err
	}
	if err := s.sessionRepo.Create(ctx, sess); err != nil {
		return nil, err
	}
	access, _, accessExp, err := s.tokens.IssueAccess(target.ID, target.TenantID, sess.ID, imp.ID, imp.ExpiresAt)
	if err != nil {
		return nil, fmt.Errorf("issue impersonation token: %w", err)
	}

	e := events.New(ctx, events.ImpersonationStarted, imp.ID, map[string]any{
		"admin_id":   actor.ID,
		"target_id":  target.ID,
		"reason":     imp.Reason,
		"expires_at": imp.ExpiresAt.Format(time.RFC3339),
	}).WithTenant(target.TenantID, actor.ID)
	if err := s.publisher.Publish(ctx, e); err != nil {
		return nil, apperrors.Wrap(apperrors.CodeInternal, "record impersonation start", err)
	}
	count(ctx, s.metrics.impersonations, "started")
	logging.FromContext(ctx, s.logger).Info("impersonation started",
		zap.String("impersonation_id", imp.ID), zap.String("admin_id", actor.ID), zap.String("target_id", target.ID))

	return &StartResult{
		ImpersonationID: imp.ID,
		TargetID:        target.ID,
		TenantID:        target.TenantID,
		SessionID:       sess.ID,
		AccessToken:     access,
		AccessExpiresAt: accessExp,
		ExpiresAt:       imp.ExpiresAt,
	}, nil
}

// End ends the impersonation. The holder of the impersonation token, the administrator who
// started it and any principal allowed to end impersonations may end it. Ending an impersonation
// that has already ended is a no-op; ended reports whether this call ended it.
func (s *ImpersonationService) End(ctx context.Context, actor *userdomain.Principal, impersonationID string) (ended bool, err error) {
	if actor == nil {
		return false, ErrUnauthenticated
	}
	if impersonationID == "" {
		impersonationID = actor.ImpersonationID
	}
	if impersonationID == "" {
		return false, apperrors.New(apperrors.CodeInvalidArgument, "impersonation id is required")
	}
	imp, err := s.impersonation.GetByID(ctx, impersonationID)
	if err != nil {
		return false, err
	}
	if imp == nil {
		return false, ErrImpersonationNotFound
	}
	holder := actor.ImpersonationID == imp.ID || actor.ID == imp.AdminID
	if !holder {
		if err := rbac.Require(ctx, s.authz, actor, rbac.ActionEnd, rbac.ResourceImpersonation, rbac.Scope{}); err != nil {
			return false, err
		}
	}
	if imp.IsEnded() {
		return false, nil
	}
	now := s.now()
	ended, err = s.impersonation.End(ctx, imp.ID, now)
	if err != nil || !ended {
		return false, err
	}

	e := events.New(ctx, events.ImpersonationEnded, imp.ID, map[string]any{
		"admin_id":  imp.AdminID,
		"target_id": imp.TargetID,
		"ended_by":  actor.ActorID(),
		"expired":   imp.IsExpired(now),
	}).WithTenant(imp.TenantID, actor.ActorID())
	if err := s.publisher.Publish(ctx, e); err != nil {
		return true, apperrors.Wrap(apperrors.CodeInternal, "record impersonation end", err)
	}
	count(ctx, s.metrics.impersonations, "ended")
	return true, nil
}
