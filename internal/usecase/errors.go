package usecase

import "errors"

var (
	// ErrValidation indicates a required request field is missing.
	ErrValidation = errors.New("validation failed")
	// ErrDuplicateEmail indicates an account with the email already exists.
	ErrDuplicateEmail = errors.New("email already registered")
	// ErrInvalidCredentials covers both an unknown email and a wrong password.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrEmailNotVerified indicates valid credentials for an account that is not verified yet.
	ErrEmailNotVerified = errors.New("email not verified")
	// ErrInvalidToken indicates the verification token does not match any account.
	ErrInvalidToken = errors.New("invalid verification token")
	// ErrInvalidOrExpiredToken covers unknown, expired and already used reset tokens.
	ErrInvalidOrExpiredToken = errors.New("invalid or expired token")
	// ErrUnauthenticated indicates the bearer session token failed validation.
	ErrUnauthenticated = errors.New("unauthenticated")
	// ErrInternalInconsistency indicates stored records reference each other inconsistently.
	ErrInternalInconsistency = errors.New("internal inconsistency")
	// ErrTokenCollision indicates a freshly generated opaque token already existed.
	// Treated as an entropy failure, never retried.
	ErrTokenCollision = errors.New("opaque token collision")
)

// outcomeOf classifies an operation result for metrics.
func outcomeOf(err error) string {
	switch {
	case err == nil:
		return "success"
	case errors.Is(err, ErrValidation):
		return "validation_error"
	case errors.Is(err, ErrDuplicateEmail):
		return "duplicate_email"
	case errors.Is(err, ErrInvalidCredentials):
		return "invalid_credentials"
	case errors.Is(err, ErrEmailNotVerified):
		return "email_not_verified"
	case errors.Is(err, ErrInvalidToken), errors.Is(err, ErrInvalidOrExpiredToken):
		return "invalid_token"
	case errors.Is(err, ErrUnauthenticated):
		return "unauthenticated"
	default:
		return "internal_error"
	}
}
