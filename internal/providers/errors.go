package providers

import (
	"errors"
	"fmt"
)

// Kind classifies a provider error for retry and failover decisions.
type Kind string

const (
	// KindRateLimit marks 429 responses. Retryable; triggers failover.
	KindRateLimit Kind = "rate_limit"

	// KindAuthentication marks credential failures. Terminal for the
	// provider; triggers failover and counts toward the provider circuit.
	KindAuthentication Kind = "authentication"

	// KindInvalidRequest marks malformed requests. Terminal; never retried.
	KindInvalidRequest Kind = "invalid_request"

	// KindOverloaded marks provider-side capacity errors. Retryable.
	KindOverloaded Kind = "overloaded"

	// KindTransient marks network failures and timeouts. Retryable.
	KindTransient Kind = "transient"

	// KindValidation marks generated output that failed shape or content
	// checks. Retryable up to the attempt budget.
	KindValidation Kind = "validation"

	// KindCircuitOpen marks a call blocked by an open provider circuit.
	// Not retryable against the same provider.
	KindCircuitOpen Kind = "circuit_open"

	// KindNoAlternate marks exhaustion of available providers. Terminal.
	KindNoAlternate Kind = "no_alternate"
)

// Error is a classified provider failure.
type Error struct {
	Kind     Kind
	Provider string
	Message  string
	Err      error
}

func (e *Error) Error() string {
	if e.Provider != "" {
		return fmt.Sprintf("%s: %s (%s)", e.Provider, e.Message, e.Kind)
	}
	return fmt.Sprintf("%s (%s)", e.Message, e.Kind)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// NewError creates a classified provider error.
func NewError(kind Kind, provider, message string, err error) *Error {
	return &Error{Kind: kind, Provider: provider, Message: message, Err: err}
}

// KindOf extracts the error kind, defaulting to transient for unclassified
// errors so unknown failures stay retryable.
func KindOf(err error) Kind {
	var pe *Error
	if errors.As(err, &pe) {
		return pe.Kind
	}
	return KindTransient
}

// Retryable reports whether a failure may succeed on another attempt against
// the same provider.
func Retryable(err error) bool {
	switch KindOf(err) {
	case KindRateLimit, KindOverloaded, KindTransient, KindValidation:
		return true
	default:
		return false
	}
}

// FailsOver reports whether a failure should be retried against an alternate
// provider. Authentication failures are terminal for one provider but
// another provider may still serve the request.
func FailsOver(err error) bool {
	switch KindOf(err) {
	case KindRateLimit, KindOverloaded, KindTransient, KindAuthentication, KindCircuitOpen:
		return true
	default:
		return false
	}
}

// classifyStatus maps an HTTP status code to an error kind.
func classifyStatus(status int) Kind {
	switch {
	case status == 429:
		return KindRateLimit
	case status == 401 || status == 403:
		return KindAuthentication
	case status == 400 || status == 404 || status == 422:
		return KindInvalidRequest
	case status == 503 || status == 529:
		return KindOverloaded
	case status >= 500:
		return KindTransient
	default:
		return KindInvalidRequest
	}
}
