package remote

import "errors"

var (
	// ErrBadCommand is returned for a command message that cannot be decoded
	// or arrives on a topic that names no context.
	ErrBadCommand = errors.New("remote: bad command")

	// ErrAlreadyStarted is returned by Start on a running bridge.
	ErrAlreadyStarted = errors.New("remote: bridge already started")
)
