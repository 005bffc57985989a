// Package events provides an in-process pub/sub event bus for cross-component
// communication within the flapboard daemon.
package events

import (
	"time"
)

// EventType identifies the type of event being published.
type EventType string

const (
	// RefreshRequested is published when a major refresh is requested, either
	// by the automation bus or by a matched entity trigger.
	RefreshRequested EventType = "refresh.requested"

	// StateChanged is published for every entity state change received from
	// the automation bus.
	StateChanged EventType = "state.changed"

	// CircuitControl is published when an operator circuit control command
	// arrives from the automation bus.
	CircuitControl EventType = "circuit.control"

	// ContentSent is published after a frame has been delivered to the display.
	ContentSent EventType = "content.sent"

	// TriggersReloaded is published when the trigger config is successfully
	// reloaded from disk.
	TriggersReloaded EventType = "triggers.reloaded"

	// TriggersReloadFailed is published when a trigger config reload fails
	// and the previous snapshot is retained.
	TriggersReloadFailed EventType = "triggers.reload_failed"

	// BusDisconnected is published when the automation bus connection drops.
	BusDisconnected EventType = "bus.disconnected"

	// BusReconnected is published when the automation bus connection is restored.
	BusReconnected EventType = "bus.reconnected"
)

// Event represents a published event in the system.
type Event struct {
	// Type identifies the event type.
	Type EventType

	// Timestamp is when the event was created.
	Timestamp time.Time

	// Payload contains event-specific data.
	Payload any
}

// NewEvent creates a new event with the given type and payload.
func NewEvent(eventType EventType, payload any) Event {
	return Event{
		Type:      eventType,
		Timestamp: time.Now(),
		Payload:   payload,
	}
}

// EventHandler is a function that processes events.
type EventHandler func(event Event)

// RefreshPayload accompanies RefreshRequested events.
type RefreshPayload struct {
	// Source names what asked for the refresh ("automation", "trigger", "operator").
	Source string

	// Trigger is the trigger name for trigger-initiated refreshes.
	Trigger string

	// EventData carries the raw automation event payload, if any.
	EventData map[string]any
}

// StatePayload accompanies StateChanged events.
type StatePayload struct {
	EntityID string
	NewState string
	Attrs    map[string]any
}

// CircuitControlPayload accompanies CircuitControl events.
type CircuitControlPayload struct {
	CircuitID string
	Action    string
}

// ContentSentPayload accompanies ContentSent events.
type ContentSentPayload struct {
	Generator  string
	UpdateType string
	Text       string
}
