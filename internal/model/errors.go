package model

import "errors"

var (
	// ErrNotFound is returned by stores when a row does not exist.
	ErrNotFound = errors.New("not found")

	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrWeakPassword       = errors.New("password does not meet strength requirements")
	ErrDuplicateUser      = errors.New("user with given email or contact number already exists")
	ErrInvalidRole        = errors.New("invalid role")

	ErrTokenExpired      = errors.New("token expired")
	ErrTokenMalformed    = errors.New("token malformed")
	ErrTokenKindMismatch = errors.New("token kind mismatch")

	// ErrRefreshTokenNotFound covers unknown, revoked and expired ledger entries alike.
	ErrRefreshTokenNotFound = errors.New("refresh token not found or revoked")
	ErrUserInactive         = errors.New("user inactive")

	ErrUnauthorized = errors.New("unauthorized")
	ErrForbidden    = errors.New("forbidden")

	ErrTooManyAttempts = errors.New("too many login attempts")
)

// IsTokenError reports whether err came from token verification.
func IsTokenError(err error) bool {
	return errors.Is(err, ErrTokenExpired) ||
		errors.Is(err, ErrTokenMalformed) ||
		errors.Is(err, ErrTokenKindMismatch)
}
