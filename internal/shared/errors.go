package shared

import "errors"

var (
	// ErrInvalidCredentials indicates login failure.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrTokenInvalid occurs when a bearer token is missing, expired or unknown.
	ErrTokenInvalid = errors.New("invalid token")
)
