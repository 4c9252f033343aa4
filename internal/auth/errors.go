package auth

import "errors"

var (
	ErrMissingSecret    = errors.New("jwt secret is required")
	ErrNoEmailClaim     = errors.New("token has no email claim")
	ErrTokenRevoked     = errors.New("token has been revoked")
	ErrNotAuthenticated = errors.New("Not authenticated")
	ErrNotAdmin         = errors.New("User is Forbidden from performing this action")
)
