// Package providers defines the AI provider port, the model tier selector,
// and the HTTP adapters for the supported completion APIs.
package providers

import (
	"context"
	"sync"
	"time"
)

// CompletionRequest is a single text completion call.
type CompletionRequest struct {
	// System is the system prompt.
	System string

	// User is the user message.
	User string

	// MaxTokens bounds the response length. Zero uses the adapter default.
	MaxTokens int

	// Temperature adjusts sampling. Nil uses the provider default.
	Temperature *float64
}

// Completion is the result of a provider call.
type Completion struct {
	// Text is the generated content.
	Text string

	// Provider and Model identify what produced the text.
	Provider string
	Model    string

	// TokensUsed is the total token consumption, when reported.
	TokensUsed int

	// FinishReason is the provider's stop reason, when reported.
	FinishReason string

	// GeneratedAt is when the completion returned.
	GeneratedAt time.Time
}

// Provider is the capability surface of one AI completion backend.
type Provider interface {
	// Name returns the provider's unique identifier.
	Name() string

	// Available returns true if the provider is configured and ready.
	Available() bool

	// Complete runs one completion against the given model.
	Complete(ctx context.Context, model string, req CompletionRequest) (*Completion, error)

	// ValidateConnection performs a minimal live call to confirm credentials.
	ValidateConnection(ctx context.Context) error
}

// Registry holds the configured providers by name.
type Registry struct {
	mu        sync.RWMutex
	providers map[string]Provider
}

// NewRegistry creates an empty provider registry.
func NewRegistry() *Registry {
	return &Registry{providers: make(map[string]Provider)}
}

// Register adds a provider. Later registrations with the same name replace
// earlier ones.
func (r *Registry) Register(p Provider) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.providers[p.Name()] = p
}

// Get returns a provider by name.
func (r *Registry) Get(name string) (Provider, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.providers[name]
	return p, ok
}

// Names returns the registered provider names.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.providers))
	for name := range r.providers {
		names = append(names, name)
	}
	return names
}
