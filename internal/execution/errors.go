package execution

import "errors"

// Domain errors for the execution package.
//
// These errors can be checked using errors.Is():
//
//	if errors.Is(err, execution.ErrNoContextType) {
//	    // nothing registered for this target and feature set
//	}
var (
	// ErrInvalidArgument is returned for missing required arguments
	// (features, sequence, program, executor).
	ErrInvalidArgument = errors.New("execution: invalid argument")

	// ErrNoContextType is returned when the catalog has no implementation
	// for the requested target type and features.
	ErrNoContextType = errors.New("execution: no context type for target and features")

	// ErrContextNotFound is returned when an ID is not registered.
	ErrContextNotFound = errors.New("execution: context not found")

	// ErrNotRunning is returned by snapshot and update on a stopped context.
	ErrNotRunning = errors.New("execution: context not running")

	// ErrContextPanic wraps a panic recovered while ticking a context.
	ErrContextPanic = errors.New("execution: context panicked")

	// ErrUnknownAction is returned for a transport command not in the
	// start/pause/resume/stop/release set.
	ErrUnknownAction = errors.New("execution: unknown action")
)
