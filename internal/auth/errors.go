package auth

import "errors"

// Domain errors for token handling.
var (
	ErrTokenInvalid   = errors.New("invalid token")
	ErrSecretRequired = errors.New("signing secret is required")
	ErrInvalidScope   = errors.New("invalid token scope")
	ErrScopeDenied    = errors.New("token scope does not permit this operation")
)
