package remote

import "time"

// TickMessage is published on showcore/tick.
type TickMessage struct {
	Elements []string  `json:"elements"`
	At       time.Time `json:"at"`
}

// ContextMessage is published on showcore/context/{id}/created|released.
type ContextMessage struct {
	ID     string    `json:"id"`
	Name   string    `json:"name"`
	Target string    `json:"target,omitempty"`
	Event  string    `json:"event"`
	At     time.Time `json:"at"`
}

// SessionMessage is published on showcore/context/{id}/session.
type SessionMessage struct {
	ContextID   string    `json:"context_id"`
	ContextName string    `json:"context_name"`
	Sequence    string    `json:"sequence"`
	Session     uint64    `json:"session"`
	Event       string    `json:"event"` // started | ended
	StartMS     int64     `json:"start_ms"`
	EndMS       int64     `json:"end_ms"`
	Completed   bool      `json:"completed,omitempty"`
	At          time.Time `json:"at"`
}

// NoticeMessage is published on showcore/context/{id}/notice.
type NoticeMessage struct {
	ContextID   string    `json:"context_id"`
	ContextName string    `json:"context_name"`
	Level       string    `json:"level"` // message | error
	Text        string    `json:"text"`
	At          time.Time `json:"at"`
}

// StateMessage is the retained state on showcore/context/{id}/state. The
// topic is cleared when the context is released.
type StateMessage struct {
	ID       string    `json:"id"`
	Name     string    `json:"name"`
	Target   string    `json:"target,omitempty"`
	Running  bool      `json:"running"`
	Sequence string    `json:"sequence,omitempty"`
	Session  uint64    `json:"session,omitempty"`
	At       time.Time `json:"at"`
}

// CommandMessage is accepted on showcore/command/context/{id}.
type CommandMessage struct {
	Action string `json:"action"`
}

// Session event names.
const (
	SessionStarted = "started"
	SessionEnded   = "ended"
)
