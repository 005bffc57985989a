// Package automation connects the daemon to the home automation bus over a
// websocket, and routes bus events into display refreshes and circuit
// control.
package automation

import (
	"context"
)

// Event is one event received from the automation bus.
type Event struct {
	// Type is the bus event type, for example "state_changed".
	Type string

	// Data is the event payload as decoded JSON.
	Data map[string]any
}

// EntityState is the current state of one automation entity.
type EntityState struct {
	EntityID   string
	State      string
	Attributes map[string]any
}

// Bus is the automation bus surface the daemon depends on. Client is the
// websocket implementation; tests substitute fakes.
type Bus interface {
	// Connect dials the bus and completes the token handshake.
	Connect(ctx context.Context) error

	// Disconnect closes the connection and stops reconnecting.
	Disconnect() error

	// SubscribeToEvents registers a callback for a bus event type. The
	// returned function removes the subscription.
	SubscribeToEvents(eventType string, cb func(Event)) (unsubscribe func(), err error)

	// GetState fetches the current state of an entity.
	GetState(ctx context.Context, entityID string) (*EntityState, error)

	// CallService invokes a service on the bus.
	CallService(ctx context.Context, domain, service string, data map[string]any) error
}
