package generators

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
)

// CircuitGate is the breaker surface the selector needs to filter gated
// generators.
type CircuitGate interface {
	IsCircuitOpen(ctx context.Context, id string) bool
}

// Selector chooses one generator per major refresh. Selection is
// deterministic given the registry, history, and event, and has no side
// effects; the orchestrator records usage afterward.
type Selector struct {
	registry *Registry
	history  *History
	gate     CircuitGate
	log      *slog.Logger
}

// SelectorOption configures the Selector.
type SelectorOption func(*Selector)

// WithSelectorLogger sets the logger.
func WithSelectorLogger(logger *slog.Logger) SelectorOption {
	return func(s *Selector) {
		s.log = logger
	}
}

// NewSelector creates a selector over the given registry and history.
func NewSelector(registry *Registry, history *History, gate CircuitGate, opts ...SelectorOption) *Selector {
	s := &Selector{
		registry: registry,
		history:  history,
		gate:     gate,
		log:      slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Select walks the priority tiers: P0 on an event match, P1 inside its time
// window and off cooldown, P2 by oldest-last-used rotation, then the P3
// fallback. Candidates whose gate circuit is off are skipped at every tier.
func (s *Selector) Select(ctx context.Context, gctx GenerationContext) (Registration, error) {
	regs := s.registry.List()

	if gctx.Event != "" || len(gctx.EventData) > 0 {
		for _, reg := range regs {
			if reg.Priority != P0 || s.gated(ctx, reg) {
				continue
			}
			if matchEventPattern(reg.EventPattern, gctx.Event) {
				return reg, nil
			}
		}
	}

	for _, reg := range regs {
		if reg.Priority != P1 || s.gated(ctx, reg) {
			continue
		}
		if reg.Window != nil && !reg.Window.Contains(gctx.Timestamp) {
			continue
		}
		last := s.history.LastUsed(reg.ID)
		if !last.IsZero() && gctx.Timestamp.Sub(last) < reg.cooldown() {
			continue
		}
		return reg, nil
	}

	var best *Registration
	for i := range regs {
		reg := regs[i]
		if reg.Priority != P2 || s.gated(ctx, reg) {
			continue
		}
		if best == nil || s.history.LastUsed(reg.ID).Before(s.history.LastUsed(best.ID)) {
			best = &regs[i]
		}
	}
	if best != nil {
		return *best, nil
	}

	for _, reg := range regs {
		if reg.Priority == P3 && !s.gated(ctx, reg) {
			return reg, nil
		}
	}

	return Registration{}, fmt.Errorf("no eligible generator")
}

func (s *Selector) gated(ctx context.Context, reg Registration) bool {
	if reg.GateCircuit == "" || s.gate == nil {
		return false
	}
	if s.gate.IsCircuitOpen(ctx, reg.GateCircuit) {
		s.log.Debug("generator gated by circuit", "generator", reg.ID, "circuit", reg.GateCircuit)
		return true
	}
	return false
}

// matchEventPattern matches an event name against a registration pattern.
// A pattern containing '*' matches as an anchored glob; otherwise the match
// is exact. An empty pattern never matches.
func matchEventPattern(pattern, event string) bool {
	if pattern == "" || event == "" {
		return false
	}
	if !strings.Contains(pattern, "*") {
		return pattern == event
	}

	parts := strings.Split(pattern, "*")
	rest := event
	for i, part := range parts {
		if part == "" {
			continue
		}
		idx := strings.Index(rest, part)
		if idx == -1 {
			return false
		}
		if i == 0 && idx != 0 {
			return false
		}
		rest = rest[idx+len(part):]
	}
	if last := parts[len(parts)-1]; last != "" && !strings.HasSuffix(event, last) {
		return false
	}
	return true
}
