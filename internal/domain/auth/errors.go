package auth

import "errors"

var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrRateLimitExceeded  = errors.New("rate limit exceeded")
	ErrLoginDisabled      = errors.New("admin login is not configured")
)
