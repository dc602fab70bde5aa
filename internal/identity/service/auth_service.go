package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"saas-core/backend/internal/events"
	identitydomain "saas-core/backend/internal/identity/domain"
	impersonationdomain "saas-core/backend/internal/impersonation/domain"
	loginattemptdomain "saas-core/backend/internal/loginattempt/domain"
	apperrors "saas-core/backend/internal/platform/errors"
	"saas-core/backend/internal/platform/logging"
	"saas-core/backend/internal/security"
	sessiondomain "saas-core/backend/internal/session/domain"
	userdomain "saas-core/backend/internal/user/domain"
)

// Lockout policy. A failure that brings the failures inside FailureWindow to MaxFailedAttempts
// locks the email for LockoutDuration.
const (
	MaxFailedAttempts = 5
	FailureWindow     = 15 * time.Minute
	LockoutDuration   = 15 * time.Minute
)

// AuthResult holds the tokens minted by SignIn or Refresh.
type AuthResult struct {
	AccessToken      string
	AccessExpiresAt  time.Time
	RefreshToken     string
	SessionID        string
	SessionExpiresAt time.Time
	UserID           string
	TenantID         string
}

// ClientInfo describes the caller's device. It is stored on the session for display and auditing.
type ClientInfo struct {
	DeviceID  string
	IPAddress string
	UserAgent string
}

// UserRepo is the minimal user repository needed by the identity services.
type UserRepo interface {
	GetByID(ctx context.Context, id string) (*userdomain.User, error)
	GetByEmail(ctx context.Context, email string) (*userdomain.User, error)
}

// IdentityRepo is the minimal identity repository needed by the auth service.
type IdentityRepo interface {
	GetByUserAndProvider(ctx context.Context, userID string, provider identitydomain.IdentityProvider) (*identitydomain.Identity, error)
}

// SessionRepo is the minimal session repository needed by the identity services.
type SessionRepo interface {
	Create(ctx context.Context, s *sessiondomain.Session) error
	GetByID(ctx context.Context, id string) (*sessiondomain.Session, error)
	GetByRefreshHash(ctx context.Context, hash string) (*sessiondomain.Session, error)
	Revoke(ctx context.Context, id string, at time.Time) error
	RevokeIfActive(ctx context.Context, id string, at time.Time) (bool, error)
	RevokeAllForUser(ctx context.Context, userID string, at time.Time) (int64, error)
	UpdateLastSeen(ctx context.Context, id string, at time.Time) error
}

// AttemptRepo is the minimal login attempt repository needed by the auth service.
type AttemptRepo interface {
	FindLockoutByEmail(ctx context.Context, email string, now time.Time) (*loginattemptdomain.Lockout, error)
	Record(ctx context.Context, a *loginattemptdomain.Attempt) error
	RecordFailure(ctx context.Context, a *loginattemptdomain.Attempt, since time.Time, threshold int, lockFor time.Duration) (int, error)
}

// ImpersonationRepo is the minimal impersonation repository needed by the identity services.
type ImpersonationRepo interface {
	Create(ctx context.Context, s *impersonationdomain.Session) error
	GetByID(ctx context.Context, id string) (*impersonationdomain.Session, error)
	End(ctx context.Context, id string, at time.Time) (bool, error)
	GetActiveByAdmin(ctx context.Context, adminID string, now time.Time) (*impersonationdomain.Session, error)
}

// Publisher records domain events. events.Dispatcher implements it.
type Publisher interface {
	Publish(ctx context.Context, e events.Event) error
	PublishAsync(ctx context.Context, e events.Event)
}

// AuthService implements password sign-in, refresh token rotation and logout.
type AuthService struct {
	userRepo     UserRepo
	identityRepo IdentityRepo
	sessionRepo  SessionRepo
	attemptRepo  AttemptRepo
	hasher       *security.Hasher
	tokens       *security.TokenProvider
	publisher    Publisher
	refreshTTL   time.Duration
	logger       *zap.Logger
	metrics      authMetrics
	now          func() time.Time
}

// NewAuthService returns an AuthService with the given dependencies. logger may be nil.
func NewAuthService(
	userRepo UserRepo,
	identityRepo IdentityRepo,
	sessionRepo SessionRepo,
	attemptRepo AttemptRepo,
	hasher *security.Hasher,
	tokens *security.TokenProvider,
	publisher Publisher,
	refreshTTL time.Duration,
	logger *zap.Logger,
) *AuthService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AuthService{
		userRepo:     userRepo,
		identityRepo: identityRepo,
		sessionRepo:  sessionRepo,
		attemptRepo:  attemptRepo,
		hasher:       hasher,
		tokens:       tokens,
		publisher:    publisher,
		refreshTTL:   refreshTTL,
		logger:       logger,
		metrics:      newAuthMetrics(),
		now:          func() time.Time { return time.Now().UTC() },
	}
}

// SignIn authenticates email and password, creates a session and returns an access token and a
// refresh token. Every credential failure returns ErrInvalidCredentials (or AccountLocked once the
// failure budget is spent) so the caller cannot tell an unknown email from a wrong password.
func (s *AuthService) SignIn(ctx context.Context, email, password string, client ClientInfo) (*AuthResult, error) {
	email = userdomain.NormalizeEmail(email)
	if email == "" || password == "" {
		return nil, apperrors.New(apperrors.CodeInvalidArgument, "email and password are required")
	}
	now := s.now()

	lock, err := s.attemptRepo.FindLockoutByEmail(ctx, email, now)
	if err != nil {
		return nil, err
	}
	if lock != nil {
		count(ctx, s.metrics.signIns, "locked")
		return nil, apperrors.Locked(lock.RetryAfter(now))
	}

	user, err := s.userRepo.GetByEmail(ctx, email)
	if err != nil {
		return nil, err
	}
	var ident *identitydomain.Identity
	if user != nil {
		ident, err = s.identityRepo.GetByUserAndProvider(ctx, user.ID, identitydomain.IdentityProviderLocal)
		if err != nil {
			return nil, err
		}
	}
	if !ident.HasPassword() {
		_ = s.hasher.CompareDummy([]byte(password))
		return nil, s.failSignIn(ctx, email, user, client, now)
	}
	if err := s.hasher.Compare(ident.PasswordHash, []byte(password)); err != nil {
		return nil, s.failSignIn(ctx, email, user, client, now)
	}
	if !user.IsActive() {
		return nil, s.failSignIn(ctx, email, user, client, now)
	}
	if !user.EmailVerified {
		count(ctx, s.metrics.signIns, "email_not_verified")
		return nil, ErrEmailNotVerified
	}

	if err := s.attemptRepo.Record(ctx, &loginattemptdomain.Attempt{
		ID:        uuid.New().String(),
		Email:     email,
		IPAddress: client.IPAddress,
		Success:   true,
		CreatedAt: now,
	}); err != nil {
		return nil, err
	}

	sess, refresh, err := newSession(user, sessiondomain.OriginLogin, client, now, now.Add(s.refreshTTL), "")
	if err != nil {
		return nil, err
	}
	if err := s.sessionRepo.Create(ctx, sess); err != nil {
		return nil, err
	}
	result, err := s.issue(user, sess, refresh)
	if err != nil {
		return nil, err
	}
	count(ctx, s.metrics.signIns, "success")
	s.publisher.PublishAsync(ctx, events.New(ctx, events.SignInSucceeded, sess.ID, map[string]any{
		"user_id":    user.ID,
		"ip_address": client.IPAddress,
	}).WithTenant(user.TenantID, user.ID))
	return result, nil
}

// failSignIn records a failed attempt and returns the error the caller sees. The failure that
// reaches MaxFailedAttempts inside FailureWindow carries the lockout.
func (s *AuthService) failSignIn(ctx context.Context, email string, user *userdomain.User, client ClientInfo, now time.Time) error {
	attempt := &loginattemptdomain.Attempt{
		ID:        uuid.New().String(),
		Email:     email,
		IPAddress: client.IPAddress,
		CreatedAt: now,
	}
	failures, err := s.attemptRepo.RecordFailure(ctx, attempt, now.Add(-FailureWindow), MaxFailedAttempts, LockoutDuration)
	if err != nil {
		return err
	}
	locking := attempt.LockedUntil != nil

	tenantID := ""
	if user != nil {
		tenantID = user.TenantID
	}
	payload := map[string]any{"email": email, "ip_address": client.IPAddress}
	if !locking {
		count(ctx, s.metrics.signIns, "invalid_credentials")
		s.publisher.PublishAsync(ctx, events.New(ctx, events.SignInFailed, email, payload).WithTenant(tenantID, ""))
		return ErrInvalidCredentials
	}
	count(ctx, s.metrics.signIns, "locked")
	payload["locked_until"] = attempt.LockedUntil.Format(time.RFC3339)
	s.publisher.PublishAsync(ctx, events.New(ctx, events.AccountLocked, email, payload).WithTenant(tenantID, ""))
	logging.FromContext(ctx, s.logger).Warn("account locked after repeated sign-in failures",
		zap.String("ip_address", client.IPAddress), zap.Int("failures", failures))
	return apperrors.Locked(LockoutDuration)
}

// Refresh rotates a refresh token: the presented session is revoked and a successor is created.
// Presenting a token whose session was already revoked is treated as theft and revokes every
// session of the principal.
func (s *AuthService) Refresh(ctx context.Context, refreshToken string, client ClientInfo) (*AuthResult, error) {
	refreshToken = strings.TrimSpace(refreshToken)
	if refreshToken == "" {
		return nil, ErrSessionNotFound
	}
	sess, err := s.sessionRepo.GetByRefreshHash(ctx, security.HashOpaqueToken(refreshToken))
	if err != nil {
		return nil, err
	}
	if sess == nil || sess.Origin == sessiondomain.OriginImpersonation {
		count(ctx, s.metrics.refreshes, "not_found")
		return nil, ErrSessionNotFound
	}
	now := s.now()
	if sess.IsRevoked() {
		return nil, s.handleReuse(ctx, sess, now)
	}
	if sess.IsExpired(now) {
		if err := s.sessionRepo.Revoke(ctx, sess.ID, now); err != nil {
			return nil, err
		}
		count(ctx, s.metrics.refreshes, "expired")
		return nil, ErrSessionExpired
	}
	user, err := s.userRepo.GetByID(ctx, sess.UserID)
	if err != nil {
		return nil, err
	}
	if !user.IsActive() {
		if err := s.sessionRepo.Revoke(ctx, sess.ID, now); err != nil {
			return nil, err
		}
		count(ctx, s.metrics.refreshes, "not_found")
		return nil, ErrPrincipalNotFound
	}

	won, err := s.sessionRepo.RevokeIfActive(ctx, sess.ID, now)
	if err != nil {
		return nil, err
	}
	if !won {
		return nil, s.handleReuse(ctx, sess, now)
	}

	carried := ClientInfo{DeviceID: sess.DeviceID, IPAddress: client.IPAddress, UserAgent: sess.UserAgent}
	if client.UserAgent != "" {
		carried.UserAgent = client.UserAgent
	}
	next, refresh, err := newSession(user, sessiondomain.OriginRefresh, carried, now, now.Add(s.refreshTTL), "")
	if err != nil {
		return nil, err
	}
	if err := s.sessionRepo.Create(ctx, next); err != nil {
		return nil, err
	}
	result, err := s.issue(user, next, refresh)
	if err != nil {
		return nil, err
	}
	count(ctx, s.metrics.refreshes, "success")
	s.publisher.PublishAsync(ctx, events.New(ctx, events.TokenRefreshed, next.ID, map[string]any{
		"previous_session_id": sess.ID,
	}).WithTenant(user.TenantID, user.ID))
	return result, nil
}

func (s *AuthService) handleReuse(ctx context.Context, sess *sessiondomain.Session, now time.Time) error {
	n, err := s.sessionRepo.RevokeAllForUser(ctx, sess.UserID, now)
	if err != nil {
		return err
	}
	count(ctx, s.metrics.refreshes, "reuse")
	if s.metrics.reuse != nil {
		s.metrics.reuse.Add(ctx, 1)
	}
	logging.FromContext(ctx, s.logger).Warn("refresh token reuse detected; all sessions revoked",
		zap.String("user_id", sess.UserID), zap.String("session_id", sess.ID), zap.Int64("revoked", n))
	e := events.New(ctx, events.TokenReuseDetected, sess.ID, map[string]any{
		"user_id":          sess.UserID,
		"sessions_revoked": n,
	}).WithTenant(sess.TenantID, sess.UserID)
	// the dispatcher logs enqueue failures; the caller still needs the revocation outcome
	_ = s.publisher.Publish(ctx, e)
	return reuseDetected()
}

// Logout revokes the session the principal's access token was minted for.
func (s *AuthService) Logout(ctx context.Context, p *userdomain.Principal) error {
	if p == nil || p.SessionID == "" {
		return ErrUnauthenticated
	}
	if err := s.sessionRepo.Revoke(ctx, p.SessionID, s.now()); err != nil {
		return err
	}
	return s.publisher.Publish(ctx, events.New(ctx, events.LoggedOut, p.SessionID, nil).WithTenant(p.TenantID, p.ActorID()))
}

// LogoutAll revokes every session of the principal, including the current one.
func (s *AuthService) LogoutAll(ctx context.Context, p *userdomain.Principal) (int64, error) {
	if p == nil || p.ID == "" {
		return 0, ErrUnauthenticated
	}
	n, err := s.sessionRepo.RevokeAllForUser(ctx, p.ID, s.now())
	if err != nil {
		return 0, err
	}
	err = s.publisher.Publish(ctx, events.New(ctx, events.LoggedOutAll, p.ID, map[string]any{
		"sessions_revoked": n,
	}).WithTenant(p.TenantID, p.ActorID()))
	return n, err
}

func (s *AuthService) issue(user *userdomain.User, sess *sessiondomain.Session, refresh string) (*AuthResult, error) {
	access, _, accessExp, err := s.tokens.IssueAccess(user.ID, user.TenantID, sess.ID, "", time.Time{})
	if err != nil {
		return nil, fmt.Errorf("issue access token: %w", err)
	}
	return &AuthResult{
		AccessToken:      access,
		AccessExpiresAt:  accessExp,
		RefreshToken:     refresh,
		SessionID:        sess.ID,
		SessionExpiresAt: sess.ExpiresAt,
		UserID:           user.ID,
		TenantID:         user.TenantID,
	}, nil
}

// newSession builds a session for user and returns it with its raw refresh token.
func newSession(user *userdomain.User, origin sessiondomain.Origin, client ClientInfo, now, expiresAt time.Time, impersonationID string) (*sessiondomain.Session, string, error) {
	refresh, err := security.RandomOpaqueToken()
	if err != nil {
		return nil, "", fmt.Errorf("generate refresh token: %w", err)
	}
	return &sessiondomain.Session{
		ID:                     uuid.New().String(),
		UserID:                 user.ID,
		TenantID:               user.TenantID,
		RefreshTokenHash:       security.HashOpaqueToken(refresh),
		DeviceID:               client.DeviceID,
		IPAddress:              client.IPAddress,
		UserAgent:              client.UserAgent,
		Origin:                 origin,
		ImpersonationSessionID: impersonationID,
		CreatedAt:              now,
		LastSeenAt:             now,
		ExpiresAt:              expiresAt,
	}, refresh, nil
}
