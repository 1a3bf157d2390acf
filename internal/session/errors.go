package session

import "errors"

// Domain errors for session history.
var (
	// ErrSessionNotFound is returned when no record has the given ID.
	ErrSessionNotFound = errors.New("session: not found")

	// ErrInvalidStatus is returned when finishing with a non-terminal status.
	ErrInvalidStatus = errors.New("session: invalid status")
)
