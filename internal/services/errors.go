package services

import "errors"

// Errors returned across the service boundary. Handlers map these to HTTP statuses.
var (
	ErrInvalidRequest = errors.New("invalid request")
	ErrNotFound       = errors.New("not found")
	ErrUnauthorized   = errors.New("unauthorized")
	ErrStorage        = errors.New("failed to store attachment")
	ErrUpstream       = errors.New("failed to get response")
)
