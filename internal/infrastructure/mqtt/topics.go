package mqtt

import (
	"fmt"
	"strings"
)

// Topic prefixes for the show core's MQTT hierarchy.
const (
	// TopicPrefix is the root of every show core topic.
	TopicPrefix = "showcore"

	// TopicPrefixContext is the base for context lifecycle and session topics.
	TopicPrefixContext = TopicPrefix + "/context"

	// TopicPrefixCommand is the base for inbound commands.
	TopicPrefixCommand = TopicPrefix + "/command"

	// TopicPrefixSystem is the base for system topics.
	TopicPrefixSystem = TopicPrefix + "/system"
)

// Context lifecycle events published under a context topic.
const (
	ContextCreated  = "created"
	ContextReleased = "released"
	ContextSession  = "session"
	ContextNotice   = "notice"

	// ContextState is the retained per-context state topic. It is cleared
	// when the context is released.
	ContextState = "state"
)

// Topics provides builders for show core MQTT topics.
//
//	topics := mqtt.Topics{}
//	topic := topics.ContextEvent("c0ffee", mqtt.ContextCreated)
//	// Returns: "showcore/context/c0ffee/created"
type Topics struct{}

// Tick returns the topic carrying affected elements for each non-empty tick.
//
// Example: showcore/tick
func (Topics) Tick() string {
	return TopicPrefix + "/tick"
}

// ContextEvent returns the topic for a context lifecycle event.
//
// Example: showcore/context/c0ffee/released
func (Topics) ContextEvent(contextID, event string) string {
	return fmt.Sprintf("%s/%s/%s", TopicPrefixContext, contextID, event)
}

// ContextCommand returns the command topic for one context.
//
// Example: showcore/command/context/c0ffee
func (Topics) ContextCommand(contextID string) string {
	return fmt.Sprintf("%s/context/%s", TopicPrefixCommand, contextID)
}

// SystemStatus returns the system status topic (online/offline, retained).
//
// Example: showcore/system/status
func (Topics) SystemStatus() string {
	return TopicPrefixSystem + "/status"
}

// AllContextCommands returns a pattern matching every context command.
//
// Pattern: showcore/command/context/+
func (Topics) AllContextCommands() string {
	return TopicPrefixCommand + "/context/+"
}

// AllContextEvents returns a pattern matching every context event.
//
// Pattern: showcore/context/+/+
func (Topics) AllContextEvents() string {
	return TopicPrefixContext + "/+/+"
}

// AllTopics returns a pattern matching all show core topics.
//
// Pattern: showcore/#
func (Topics) AllTopics() string {
	return TopicPrefix + "/#"
}

// ParseContextCommand extracts the context ID from a command topic.
// It reports false for any topic not of the form showcore/command/context/{id}.
func (Topics) ParseContextCommand(topic string) (contextID string, ok bool) {
	rest, found := strings.CutPrefix(topic, TopicPrefixCommand+"/context/")
	if !found || rest == "" || strings.Contains(rest, "/") {
		return "", false
	}
	return rest, true
}
