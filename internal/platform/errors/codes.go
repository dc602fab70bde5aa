// Package errors provides the coded error taxonomy shared by the auth core and its gRPC surface.
package errors

import "google.golang.org/grpc/codes"

// Code is a stable machine-readable error code surfaced to callers.
type Code string

const (
	CodeUnknown Code = "UNKNOWN"

	// Credential errors
	CodeInvalidCredentials Code = "INVALID_CREDENTIALS"
	CodeAccountLocked      Code = "ACCOUNT_LOCKED"
	CodeEmailNotVerified   Code = "EMAIL_NOT_VERIFIED"
	CodeUnauthenticated    Code = "UNAUTHENTICATED"

	// Session errors
	CodeSessionRevoked     Code = "SESSION_REVOKED"
	CodeSessionExpired     Code = "SESSION_EXPIRED"
	CodeTokenReuseDetected Code = "TOKEN_REUSE_DETECTED"

	// Authorization errors
	CodePermissionDenied Code = "PERMISSION_DENIED"

	// Generic errors
	CodeNotFound        Code = "NOT_FOUND"
	CodeInvalidArgument Code = "INVALID_ARGUMENT"
	CodeInternal        Code = "INTERNAL"
)

// GRPCCode maps domain codes to gRPC status codes.
func (c Code) GRPCCode() codes.Code {
	switch c {
	case CodeInvalidCredentials,
		CodeUnauthenticated,
		CodeSessionRevoked,
		CodeSessionExpired,
		CodeTokenReuseDetected:
		return codes.Unauthenticated

	case CodeAccountLocked:
		return codes.ResourceExhausted

	case CodeEmailNotVerified:
		return codes.FailedPrecondition

	case CodePermissionDenied:
		return codes.PermissionDenied

	case CodeNotFound:
		return codes.NotFound

	case CodeInvalidArgument:
		return codes.InvalidArgument

	default:
		return codes.Internal
	}
}
