package service

import apperrors "saas-core/backend/internal/platform/errors"

// Sentinel errors for the identity services. They are *apperrors.Error values, so errors.Is
// matches on code and the gRPC layer converts them without string matching.
var (
	ErrInvalidCredentials    = apperrors.New(apperrors.CodeInvalidCredentials, "invalid email or password")
	ErrEmailNotVerified      = apperrors.New(apperrors.CodeEmailNotVerified, "email address not verified")
	ErrUnauthenticated       = apperrors.New(apperrors.CodeUnauthenticated, "invalid or expired access token")
	ErrSessionRevoked        = apperrors.New(apperrors.CodeSessionRevoked, "session revoked")
	ErrSessionExpired        = apperrors.New(apperrors.CodeSessionExpired, "session expired")
	ErrTokenReuseDetected    = apperrors.New(apperrors.CodeTokenReuseDetected, "refresh token reuse detected")
	ErrSessionNotFound       = apperrors.New(apperrors.CodeNotFound, "session not found")
	ErrPrincipalNotFound     = apperrors.New(apperrors.CodeNotFound, "principal not found")
	ErrImpersonationNotFound = apperrors.New(apperrors.CodeNotFound, "impersonation session not found")
)

// reuseDetected is what a caller sees after token reuse: a revoked session caused by reuse.
func reuseDetected() error {
	return &apperrors.Error{
		Code:    apperrors.CodeSessionRevoked,
		Message: "session revoked",
		Cause:   ErrTokenReuseDetected,
	}
}
