// Package breaker implements named circuit breakers gating the content
// pipeline and individual AI providers. State is persisted so breakers
// survive restarts; every operation tolerates an unavailable store.
package breaker

import (
	"strings"
	"time"
)

// State is a breaker position.
type State string

const (
	// StateOn allows traffic through the breaker.
	StateOn State = "on"

	// StateOff blocks traffic through the breaker.
	StateOff State = "off"

	// StateHalfOpen allows probe traffic while a provider recovers.
	StateHalfOpen State = "half_open"
)

// Valid reports whether s is a known state.
func (s State) Valid() bool {
	return s == StateOn || s == StateOff || s == StateHalfOpen
}

// CircuitType distinguishes operator-managed breakers from provider-health
// breakers.
type CircuitType string

const (
	// TypeManual breakers change only by operator action.
	TypeManual CircuitType = "manual"

	// TypeProvider breakers trip automatically on repeated failures.
	TypeProvider CircuitType = "provider"
)

// Well-known manual circuits.
const (
	CircuitMaster    = "MASTER"
	CircuitSleepMode = "SLEEP_MODE"
)

// DefaultFailureThreshold trips a provider breaker after this many failures.
const DefaultFailureThreshold = 5

// ProviderCircuitID returns the breaker id for an AI provider name.
func ProviderCircuitID(provider string) string {
	return "PROVIDER_" + strings.ToUpper(provider)
}

// CircuitDef describes a breaker to initialize at startup.
type CircuitDef struct {
	CircuitID        string
	CircuitType      CircuitType
	DefaultState     State
	FailureThreshold int
}

// CircuitState is a snapshot of a persisted breaker.
type CircuitState struct {
	CircuitID        string
	CircuitType      CircuitType
	State            State
	DefaultState     State
	FailureCount     int
	SuccessCount     int
	FailureThreshold int
	LastFailureAt    *time.Time
	LastSuccessAt    *time.Time
	StateChangedAt   time.Time
}
