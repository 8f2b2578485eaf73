package auth

import "errors"

// Sentinel errors for client credentials.
var (
	ErrMissingCredentials = errors.New("auth: missing credentials")
	ErrInvalidConfig      = errors.New("auth: invalid configuration")
	ErrSigningFailed      = errors.New("auth: token signing failed")
)
