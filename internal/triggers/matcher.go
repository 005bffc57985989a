package triggers

import (
	"sync"
	"time"

	"github.com/leefowlercu/flapboard/internal/metrics"
)

// MatchResult is the outcome of evaluating one state change.
type MatchResult struct {
	Matched   bool
	Trigger   string
	Debounced bool
}

// Matcher evaluates state changes against a configuration snapshot. First
// match wins; a match inside the trigger's debounce window is reported but
// flagged debounced.
type Matcher struct {
	cfg *Config
	now func() time.Time

	mu          sync.Mutex
	lastMatchAt map[string]time.Time
}

// MatcherOption configures the Matcher.
type MatcherOption func(*Matcher)

// WithMatcherClock overrides the time source. Used by tests.
func WithMatcherClock(now func() time.Time) MatcherOption {
	return func(m *Matcher) {
		m.now = now
	}
}

// NewMatcher creates a matcher over a validated snapshot.
func NewMatcher(cfg *Config, opts ...MatcherOption) *Matcher {
	m := &Matcher{
		cfg:         cfg,
		now:         time.Now,
		lastMatchAt: make(map[string]time.Time),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Match evaluates triggers in order against an entity state change.
func (m *Matcher) Match(entityID, newState string) MatchResult {
	for i := range m.cfg.Triggers {
		t := &m.cfg.Triggers[i]
		if !t.matchEntity(entityID) {
			continue
		}
		if !t.StateFilter.Contains(newState) {
			continue
		}

		if m.debounced(t) {
			metrics.TriggerMatchesTotal.WithLabelValues(t.Name, "debounced").Inc()
			return MatchResult{Matched: true, Trigger: t.Name, Debounced: true}
		}
		metrics.TriggerMatchesTotal.WithLabelValues(t.Name, "matched").Inc()
		return MatchResult{Matched: true, Trigger: t.Name}
	}
	return MatchResult{}
}

// debounced checks and updates the trigger's last-match time.
func (m *Matcher) debounced(t *Trigger) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	if t.DebounceSeconds > 0 {
		if last, ok := m.lastMatchAt[t.Name]; ok {
			if now.Sub(last) < time.Duration(t.DebounceSeconds)*time.Second {
				return true
			}
		}
	}
	m.lastMatchAt[t.Name] = now
	return false
}
