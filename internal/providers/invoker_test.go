package providers

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leefowlercu/flapboard/internal/breaker"
)

// stubProvider returns a canned completion or error.
type stubProvider struct {
	name  string
	err   error
	text  string
	calls int
}

func (s *stubProvider) Name() string    { return s.name }
func (s *stubProvider) Available() bool { return true }

func (s *stubProvider) Complete(_ context.Context, model string, _ CompletionRequest) (*Completion, error) {
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	return &Completion{
		Text:        s.text,
		Provider:    s.name,
		Model:       model,
		GeneratedAt: time.Now(),
	}, nil
}

func (s *stubProvider) ValidateConnection(context.Context) error { return nil }

// stubBreakers tracks open circuits and recorded outcomes in memory.
type stubBreakers struct {
	open      map[string]bool
	failures  map[string]int
	successes map[string]int
}

func newStubBreakers() *stubBreakers {
	return &stubBreakers{
		open:      make(map[string]bool),
		failures:  make(map[string]int),
		successes: make(map[string]int),
	}
}

func (b *stubBreakers) IsCircuitOpen(_ context.Context, id string) bool { return b.open[id] }

func (b *stubBreakers) RecordFailure(_ context.Context, id string) int {
	b.failures[id]++
	return b.failures[id]
}

func (b *stubBreakers) RecordSuccess(_ context.Context, id string) int {
	b.successes[id]++
	return b.successes[id]
}

func newTestInvoker(t *testing.T, anthropic, openai *stubProvider, breakers Breakers) *Invoker {
	t.Helper()
	tiers, err := NewTierSelector(testProvidersConfig())
	require.NoError(t, err)

	registry := NewRegistry()
	registry.Register(anthropic)
	registry.Register(openai)
	registry.Register(&stubProvider{name: "gemini", text: "gemini says hi"})

	return NewInvoker(registry, tiers, breakers)
}

func TestInvoker_PreferredProviderSucceeds(t *testing.T) {
	primary := &stubProvider{name: "anthropic", text: "hello"}
	alt := &stubProvider{name: "openai", text: "backup"}
	breakers := newStubBreakers()
	inv := newTestInvoker(t, primary, alt, breakers)

	result, err := inv.Invoke(context.Background(), TierMedium, CompletionRequest{User: "hi"})
	require.NoError(t, err)

	assert.Equal(t, "hello", result.Text)
	assert.Equal(t, "anthropic", result.Provider)
	assert.Equal(t, "claude-sonnet-4-5", result.Model)
	assert.False(t, result.FailedOver)
	assert.Zero(t, alt.calls)
	assert.Equal(t, 1, breakers.successes[breaker.ProviderCircuitID("anthropic")])
}

func TestInvoker_FailsOverOnRetryableError(t *testing.T) {
	primary := &stubProvider{name: "anthropic", err: NewError(KindRateLimit, "anthropic", "rate limited", nil)}
	alt := &stubProvider{name: "openai", text: "backup"}
	breakers := newStubBreakers()
	inv := newTestInvoker(t, primary, alt, breakers)

	result, err := inv.Invoke(context.Background(), TierLight, CompletionRequest{User: "hi"})
	require.NoError(t, err)

	assert.Equal(t, "backup", result.Text)
	assert.Equal(t, "openai", result.Provider)
	assert.Equal(t, "gpt-5.2-mini", result.Model)
	assert.True(t, result.FailedOver)
	assert.Contains(t, result.PrimaryError, "rate limited")
	assert.Equal(t, 1, breakers.failures[breaker.ProviderCircuitID("anthropic")])
	assert.Equal(t, 1, breakers.successes[breaker.ProviderCircuitID("openai")])
}

func TestInvoker_NoFailoverOnInvalidRequest(t *testing.T) {
	primary := &stubProvider{name: "anthropic", err: NewError(KindInvalidRequest, "anthropic", "bad request", nil)}
	alt := &stubProvider{name: "openai", text: "backup"}
	inv := newTestInvoker(t, primary, alt, newStubBreakers())

	_, err := inv.Invoke(context.Background(), TierMedium, CompletionRequest{User: "hi"})
	require.Error(t, err)

	assert.Equal(t, KindInvalidRequest, KindOf(err))
	assert.Zero(t, alt.calls)
}

func TestInvoker_SkipsProviderWithOpenCircuit(t *testing.T) {
	primary := &stubProvider{name: "anthropic", text: "never called"}
	alt := &stubProvider{name: "openai", text: "backup"}
	breakers := newStubBreakers()
	breakers.open[breaker.ProviderCircuitID("anthropic")] = true
	inv := newTestInvoker(t, primary, alt, breakers)

	result, err := inv.Invoke(context.Background(), TierMedium, CompletionRequest{User: "hi"})
	require.NoError(t, err)

	assert.Zero(t, primary.calls)
	assert.Equal(t, "openai", result.Provider)
	assert.True(t, result.FailedOver)
}

func TestInvoker_AllProvidersExhausted(t *testing.T) {
	primary := &stubProvider{name: "anthropic", err: NewError(KindOverloaded, "anthropic", "overloaded", nil)}
	alt := &stubProvider{name: "openai", err: NewError(KindTransient, "openai", "timeout", nil)}
	inv := newTestInvoker(t, primary, alt, newStubBreakers())

	_, err := inv.Invoke(context.Background(), TierMedium, CompletionRequest{User: "hi"})
	require.Error(t, err)

	assert.Equal(t, KindNoAlternate, KindOf(err))
}

func TestInvoker_UnclassifiedErrorFailsOver(t *testing.T) {
	primary := &stubProvider{name: "anthropic", err: errors.New("connection reset")}
	alt := &stubProvider{name: "openai", text: "backup"}
	inv := newTestInvoker(t, primary, alt, newStubBreakers())

	result, err := inv.Invoke(context.Background(), TierMedium, CompletionRequest{User: "hi"})
	require.NoError(t, err)
	assert.True(t, result.FailedOver)
}

func TestRetryable(t *testing.T) {
	assert.True(t, Retryable(NewError(KindRateLimit, "p", "m", nil)))
	assert.True(t, Retryable(NewError(KindValidation, "p", "m", nil)))
	assert.True(t, Retryable(errors.New("plain")))
	assert.False(t, Retryable(NewError(KindAuthentication, "p", "m", nil)))
	assert.False(t, Retryable(NewError(KindInvalidRequest, "p", "m", nil)))
	assert.False(t, Retryable(NewError(KindNoAlternate, "p", "m", nil)))
}
