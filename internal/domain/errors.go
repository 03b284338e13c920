package domain

import "errors"

var (
	ErrDuplicateEndpoint = errors.New("endpoint already registered")
	ErrEndpointNotFound  = errors.New("endpoint not found")
	ErrSessionNotFound   = errors.New("session not found")
	// ErrUnauthorizedRelay is returned when the sender is not a member of the
	// session it names.
	ErrUnauthorizedRelay = errors.New("sender is not a member of the session")
	// ErrInvariantViolation marks an internal assertion failure. It aborts the
	// current operation only.
	ErrInvariantViolation = errors.New("internal invariant violated")
)
