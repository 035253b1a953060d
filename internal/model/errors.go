package model

import "errors"

var (
	// User store errors
	ErrUserNotFound  = errors.New("user not found")
	ErrDuplicateUser = errors.New("user already exists")

	// ErrStoreBusy marks a transient datastore failure (connection pool
	// exhaustion). Callers may retry once; it never reaches a client as-is.
	ErrStoreBusy = errors.New("datastore temporarily unavailable")

	// Token errors
	ErrInvalidToken = errors.New("invalid token")
)
