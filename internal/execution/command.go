package execution

import (
	"fmt"
	"strings"
)

// Action is a transport command addressed to one context.
type Action string

// Transport actions.
const (
	ActionStart   Action = "start"
	ActionPause   Action = "pause"
	ActionResume  Action = "resume"
	ActionStop    Action = "stop"
	ActionRelease Action = "release"
)

// ParseAction accepts an action name in any case.
func ParseAction(s string) (Action, error) {
	a := Action(strings.ToLower(strings.TrimSpace(s)))
	switch a {
	case ActionStart, ActionPause, ActionResume, ActionStop, ActionRelease:
		return a, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownAction, s)
}

// Apply runs action against the context registered under id.
//
// Returns ErrContextNotFound for an unknown id and ErrUnknownAction for an
// unrecognised action.
func (m *Manager) Apply(id string, action Action) (Context, error) {
	ctx, err := m.Get(id)
	if err != nil {
		return nil, err
	}

	switch action {
	case ActionStart:
		ctx.Start()
	case ActionPause:
		ctx.Pause()
	case ActionResume:
		ctx.Resume()
	case ActionStop:
		ctx.Stop()
	case ActionRelease:
		m.ReleaseContext(ctx)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownAction, action)
	}

	m.logger.Debug("command applied", "context_id", id, "action", string(action))
	return ctx, nil
}
