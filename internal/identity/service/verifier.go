package service

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	apperrors "saas-core/backend/internal/platform/errors"
	"saas-core/backend/internal/platform/logging"
	"saas-core/backend/internal/security"
	userdomain "saas-core/backend/internal/user/domain"
)

// Verifier turns a bearer access token into the request's principal.
type Verifier struct {
	tokens         *security.TokenProvider
	sessionRepo    SessionRepo
	userRepo       UserRepo
	impersonations ImpersonationRepo
	logger         *zap.Logger
	tracer         trace.Tracer
	metrics        authMetrics
	now            func() time.Time
}

// NewVerifier returns a Verifier. logger may be nil.
func NewVerifier(tokens *security.TokenProvider, sessionRepo SessionRepo, userRepo UserRepo, impersonations ImpersonationRepo, logger *zap.Logger) *Verifier {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Verifier{
		tokens:         tokens,
		sessionRepo:    sessionRepo,
		userRepo:       userRepo,
		impersonations: impersonations,
		logger:         logger,
		tracer:         otel.Tracer(instrumentationName),
		metrics:        newAuthMetrics(),
		now:            func() time.Time { return time.Now().UTC() },
	}
}

// VerifyRequest validates the token, then checks that its session is live, that the impersonation
// it was minted for (if any) is still active, and that the principal exists and is active. It fails
// closed at the first check that does not pass.
func (v *Verifier) VerifyRequest(ctx context.Context, token string) (*userdomain.Principal, error) {
	ctx, span := v.tracer.Start(ctx, "identity.VerifyRequest")
	defer span.End()

	p, err := v.verify(ctx, token)
	if err != nil {
		count(ctx, v.metrics.verifications, string(apperrors.CodeOf(err)))
		span.SetAttributes(attribute.String("auth.result", string(apperrors.CodeOf(err))))
		return nil, err
	}
	count(ctx, v.metrics.verifications, "ok")
	span.SetAttributes(attribute.String("auth.principal_id", p.ID), attribute.String("auth.tenant_id", p.TenantID))
	return p, nil
}

func (v *Verifier) verify(ctx context.Context, token string) (*userdomain.Principal, error) {
	if token == "" {
		return nil, ErrUnauthenticated
	}
	claims, err := v.tokens.ValidateAccess(token)
	if err != nil {
		return nil, ErrUnauthenticated
	}
	now := v.now()

	sess, err := v.sessionRepo.GetByID(ctx, claims.SessionID)
	if err != nil {
		return nil, err
	}
	if sess == nil || sess.IsRevoked() {
		return nil, ErrSessionRevoked
	}
	if sess.IsExpired(now) {
		return nil, ErrSessionExpired
	}
	if sess.UserID != claims.PrincipalID() || sess.TenantID != claims.TenantID || sess.ImpersonationSessionID != claims.ImpersonationID {
		return nil, ErrSessionRevoked
	}

	impersonatorID := ""
	if claims.ImpersonationID != "" {
		imp, err := v.impersonations.GetByID(ctx, claims.ImpersonationID)
		if err != nil {
			return nil, err
		}
		if imp == nil || imp.IsEnded() || imp.TargetID != claims.PrincipalID() {
			return nil, ErrSessionRevoked
		}
		if imp.IsExpired(now) {
			return nil, ErrSessionExpired
		}
		impersonatorID = imp.AdminID
	}

	user, err := v.userRepo.GetByID(ctx, claims.PrincipalID())
	if err != nil {
		return nil, err
	}
	if !user.IsActive() {
		return nil, ErrPrincipalNotFound
	}
	if user.TenantID != claims.TenantID {
		return nil, ErrSessionRevoked
	}

	if err := v.sessionRepo.UpdateLastSeen(ctx, sess.ID, now); err != nil {
		logging.FromContext(ctx, v.logger).Warn("update session last seen failed",
			zap.String("session_id", sess.ID), zap.Error(err))
	}

	p := userdomain.PrincipalFromUser(user, sess.ID)
	p.ImpersonationID = claims.ImpersonationID
	p.ImpersonatorID = impersonatorID
	return p, nil
}
