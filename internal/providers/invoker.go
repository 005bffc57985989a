package providers

import (
	"context"
	"log/slog"

	"github.com/leefowlercu/flapboard/internal/breaker"
	"github.com/leefowlercu/flapboard/internal/metrics"
)

// Breakers is the circuit surface the invoker needs. *breaker.Service
// satisfies it; tests substitute fakes.
type Breakers interface {
	IsCircuitOpen(ctx context.Context, id string) bool
	RecordFailure(ctx context.Context, id string) int
	RecordSuccess(ctx context.Context, id string) int
}

// Result is a completion plus failover metadata.
type Result struct {
	Completion

	// FailedOver is true when the preferred provider failed and an
	// alternate produced the text.
	FailedOver bool

	// PrimaryError describes the preferred provider's failure when
	// FailedOver is set.
	PrimaryError string
}

// Invoker runs completions with provider failover. Callers ask for a
// capability tier; the invoker resolves the model, honors provider circuit
// breakers, records outcomes, and tries one same-tier alternate when the
// preferred provider fails. Generators stay oblivious to which provider
// served them.
type Invoker struct {
	registry *Registry
	tiers    *TierSelector
	breakers Breakers
	log      *slog.Logger
}

// InvokerOption configures the Invoker.
type InvokerOption func(*Invoker)

// WithInvokerLogger sets the logger.
func WithInvokerLogger(logger *slog.Logger) InvokerOption {
	return func(i *Invoker) {
		i.log = logger
	}
}

// NewInvoker creates an invoker over the given registry, tier selector, and
// breaker service.
func NewInvoker(registry *Registry, tiers *TierSelector, breakers Breakers, opts ...InvokerOption) *Invoker {
	inv := &Invoker{
		registry: registry,
		tiers:    tiers,
		breakers: breakers,
		log:      slog.Default(),
	}
	for _, opt := range opts {
		opt(inv)
	}
	return inv
}

// Invoke runs one completion at the given tier. The preferred provider is
// tried first; on a failover-eligible failure one alternate is tried. A
// provider whose circuit is open is skipped without a call.
func (i *Invoker) Invoke(ctx context.Context, tier Tier, req CompletionRequest) (*Result, error) {
	primary := i.tiers.Select(tier)

	completion, primaryErr := i.tryProvider(ctx, primary, req)
	if primaryErr == nil {
		return &Result{Completion: *completion}, nil
	}

	if !FailsOver(primaryErr) {
		return nil, primaryErr
	}

	alternate := i.tiers.Alternate(primary)
	if alternate == nil {
		return nil, NewError(KindNoAlternate, primary.Provider,
			"all providers exhausted", primaryErr)
	}

	i.log.Warn("provider failed, trying alternate",
		"provider", primary.Provider,
		"alternate", alternate.Provider,
		"error", primaryErr)
	metrics.ProviderFailoversTotal.Inc()

	completion, altErr := i.tryProvider(ctx, *alternate, req)
	if altErr != nil {
		return nil, NewError(KindNoAlternate, alternate.Provider,
			"all providers exhausted", altErr)
	}

	return &Result{
		Completion:   *completion,
		FailedOver:   true,
		PrimaryError: primaryErr.Error(),
	}, nil
}

func (i *Invoker) tryProvider(ctx context.Context, sel Selection, req CompletionRequest) (*Completion, error) {
	circuitID := breaker.ProviderCircuitID(sel.Provider)
	if i.breakers.IsCircuitOpen(ctx, circuitID) {
		metrics.ProviderRequestsTotal.WithLabelValues(sel.Provider, "circuit_open").Inc()
		return nil, NewError(KindCircuitOpen, sel.Provider, "provider circuit is open", nil)
	}

	provider, ok := i.registry.Get(sel.Provider)
	if !ok {
		return nil, NewError(KindInvalidRequest, sel.Provider, "provider not registered", nil)
	}

	completion, err := provider.Complete(ctx, sel.Model, req)
	if err != nil {
		metrics.ProviderRequestsTotal.WithLabelValues(sel.Provider, "error").Inc()
		i.breakers.RecordFailure(ctx, circuitID)
		return nil, err
	}

	metrics.ProviderRequestsTotal.WithLabelValues(sel.Provider, "ok").Inc()
	i.breakers.RecordSuccess(ctx, circuitID)
	return completion, nil
}
