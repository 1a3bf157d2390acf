package session

import (
	"context"
	"time"
)

// Status is the lifecycle state of a recorded session.
type Status string

// Session statuses.
const (
	StatusRunning   Status = "running"
	StatusCompleted Status = "completed"
	StatusStopped   Status = "stopped"
)

// Terminal reports whether s is a final status.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusStopped
}

// Record is one playback session of one context.
type Record struct {
	ID          string        `json:"id"`
	ContextID   string        `json:"context_id"`
	ContextName string        `json:"context_name"`
	Sequence    string        `json:"sequence"`
	Start       time.Duration `json:"start_ns"`
	End         time.Duration `json:"end_ns"`
	StartedAt   time.Time     `json:"started_at"`
	EndedAt     *time.Time    `json:"ended_at,omitempty"`
	Status      Status        `json:"status"`
}

// Repository stores and retrieves session records.
//
// Implementations must be thread-safe and use UTC timestamps.
type Repository interface {
	// Create inserts rec. An empty ID is generated and written back.
	Create(ctx context.Context, rec *Record) error

	// Finish marks a running record as ended.
	//
	// Parameters:
	//   - ctx: Context for cancellation and timeout
	//   - id: Record ID returned by Create
	//   - status: StatusCompleted or StatusStopped
	//   - endedAt: When the session ended
	//
	// Returns:
	//   - error: ErrInvalidStatus, ErrSessionNotFound, or a database error
	Finish(ctx context.Context, id string, status Status, endedAt time.Time) error

	Get(ctx context.Context, id string) (*Record, error)

	// List returns the most recent records, newest first.
	List(ctx context.Context, limit int) ([]Record, error)

	// ListByContext returns the most recent records for one context.
	ListByContext(ctx context.Context, contextID string, limit int) ([]Record, error)
}
