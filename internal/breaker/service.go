package breaker

import (
	"context"
	"log/slog"
	"time"

	"github.com/leefowlercu/flapboard/internal/logging"
	"github.com/leefowlercu/flapboard/internal/metrics"
	"github.com/leefowlercu/flapboard/internal/storage"
)

// Store is the persistence surface the service needs. *storage.Storage
// satisfies it; tests substitute fakes.
type Store interface {
	GetCircuit(ctx context.Context, id string) (*storage.CircuitRow, error)
	ListCircuits(ctx context.Context) ([]storage.CircuitRow, error)
	InsertCircuit(ctx context.Context, c storage.CircuitRow) error
	UpdateCircuitState(ctx context.Context, id, state string, at time.Time) error
	IncrementFailure(ctx context.Context, id string, at time.Time) (*storage.CircuitRow, error)
	IncrementSuccess(ctx context.Context, id string, at time.Time) (*storage.CircuitRow, error)
	ResetCircuit(ctx context.Context, id, state string, at time.Time) error
}

// Service evaluates and mutates circuit breakers. All store errors are
// handled internally: reads fail open, writes are dropped, and the failure
// is logged once per throttle window. The pipeline must keep running when
// the store is unavailable.
type Service struct {
	store Store
	log   *slog.Logger
	tlog  *logging.ThrottledLogger
	now   func() time.Time
}

// ServiceOption configures the Service.
type ServiceOption func(*Service)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) ServiceOption {
	return func(s *Service) {
		s.log = logger
	}
}

// WithThrottledLogger sets the throttled logger used for store failures.
func WithThrottledLogger(tlog *logging.ThrottledLogger) ServiceOption {
	return func(s *Service) {
		s.tlog = tlog
	}
}

// WithClock overrides the time source. Used by tests.
func WithClock(now func() time.Time) ServiceOption {
	return func(s *Service) {
		s.now = now
	}
}

// NewService creates a breaker service over the given store.
func NewService(store Store, opts ...ServiceOption) *Service {
	s := &Service{
		store: store,
		log:   slog.Default(),
		now:   time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.tlog == nil {
		s.tlog = logging.NewThrottledLogger(s.log)
	}
	return s
}

// InitializeCircuit inserts a breaker row if absent. Calling it again for an
// existing circuit never overwrites stored state.
func (s *Service) InitializeCircuit(ctx context.Context, def CircuitDef) {
	threshold := def.FailureThreshold
	if threshold <= 0 {
		threshold = DefaultFailureThreshold
	}
	state := def.DefaultState
	if !state.Valid() {
		state = StateOn
	}

	err := s.store.InsertCircuit(ctx, storage.CircuitRow{
		CircuitID:        def.CircuitID,
		CircuitType:      string(def.CircuitType),
		State:            string(state),
		DefaultState:     string(state),
		FailureThreshold: threshold,
		StateChangedAt:   s.now(),
	})
	if err != nil {
		s.storeWarn("init", "failed to initialize circuit", "circuit", def.CircuitID, "error", err)
		return
	}
	s.exportState(ctx, def.CircuitID)
}

// IsCircuitOpen returns true iff the stored state is off. Store failures
// fail open: the circuit is treated as passable.
func (s *Service) IsCircuitOpen(ctx context.Context, id string) bool {
	row, err := s.store.GetCircuit(ctx, id)
	if err != nil {
		s.storeWarn("read", "failed to read circuit state, failing open", "circuit", id, "error", err)
		return false
	}
	if row == nil {
		return false
	}
	return State(row.State) == StateOff
}

// GetState returns the breaker snapshot, or nil when absent or unreadable.
func (s *Service) GetState(ctx context.Context, id string) *CircuitState {
	row, err := s.store.GetCircuit(ctx, id)
	if err != nil {
		s.storeWarn("read", "failed to read circuit state", "circuit", id, "error", err)
		return nil
	}
	if row == nil {
		return nil
	}
	return fromRow(row)
}

// ListStates returns all breaker snapshots, or nil on store failure.
func (s *Service) ListStates(ctx context.Context) []CircuitState {
	rows, err := s.store.ListCircuits(ctx)
	if err != nil {
		s.storeWarn("read", "failed to list circuits", "error", err)
		return nil
	}
	states := make([]CircuitState, 0, len(rows))
	for i := range rows {
		states = append(states, *fromRow(&rows[i]))
	}
	return states
}

// SetCircuitState writes a new state with a fresh state_changed_at.
func (s *Service) SetCircuitState(ctx context.Context, id string, state State) {
	if !state.Valid() {
		s.log.Warn("ignoring invalid circuit state", "circuit", id, "state", state)
		return
	}
	if err := s.store.UpdateCircuitState(ctx, id, string(state), s.now()); err != nil {
		s.storeWarn("write", "failed to set circuit state, dropping write", "circuit", id, "error", err)
		return
	}
	s.log.Info("circuit state changed", "circuit", id, "state", state)
	s.exportState(ctx, id)
}

// RecordFailure increments the failure counter and returns the new count.
// Provider breakers in the on state trip to off once the count reaches the
// threshold; half-open provider breakers trip back to off on any failure.
func (s *Service) RecordFailure(ctx context.Context, id string) int {
	row, err := s.store.IncrementFailure(ctx, id, s.now())
	if err != nil {
		s.storeWarn("write", "failed to record circuit failure, dropping write", "circuit", id, "error", err)
		return 0
	}

	if CircuitType(row.CircuitType) == TypeProvider {
		switch State(row.State) {
		case StateOn:
			if row.FailureCount >= row.FailureThreshold {
				s.log.Warn("provider circuit tripped",
					"circuit", id,
					"failures", row.FailureCount,
					"threshold", row.FailureThreshold)
				s.SetCircuitState(ctx, id, StateOff)
			}
		case StateHalfOpen:
			s.log.Warn("provider circuit failed during recovery probe", "circuit", id)
			s.SetCircuitState(ctx, id, StateOff)
		}
	}

	return row.FailureCount
}

// RecordSuccess increments the success counter and returns the new count.
// Provider breakers in half_open close back to on and clear counters.
func (s *Service) RecordSuccess(ctx context.Context, id string) int {
	row, err := s.store.IncrementSuccess(ctx, id, s.now())
	if err != nil {
		s.storeWarn("write", "failed to record circuit success, dropping write", "circuit", id, "error", err)
		return 0
	}

	if CircuitType(row.CircuitType) == TypeProvider && State(row.State) == StateHalfOpen {
		s.log.Info("provider circuit recovered", "circuit", id)
		s.ResetProviderCircuit(ctx, id)
	}

	return row.SuccessCount
}

// ResetProviderCircuit sets the breaker to on and clears both counters.
func (s *Service) ResetProviderCircuit(ctx context.Context, id string) {
	if err := s.store.ResetCircuit(ctx, id, string(StateOn), s.now()); err != nil {
		s.storeWarn("write", "failed to reset circuit, dropping write", "circuit", id, "error", err)
		return
	}
	s.log.Info("circuit reset", "circuit", id)
	s.exportState(ctx, id)
}

// exportState refreshes the prometheus gauge for a circuit.
func (s *Service) exportState(ctx context.Context, id string) {
	row, err := s.store.GetCircuit(ctx, id)
	if err != nil || row == nil {
		return
	}
	var v float64
	switch State(row.State) {
	case StateOn:
		v = 1
	case StateHalfOpen:
		v = 0.5
	}
	metrics.CircuitState.WithLabelValues(id).Set(v)
}

func (s *Service) storeWarn(key, msg string, args ...any) {
	s.tlog.Warn("breaker.store."+key, msg, args...)
}

func fromRow(row *storage.CircuitRow) *CircuitState {
	return &CircuitState{
		CircuitID:        row.CircuitID,
		CircuitType:      CircuitType(row.CircuitType),
		State:            State(row.State),
		DefaultState:     State(row.DefaultState),
		FailureCount:     row.FailureCount,
		SuccessCount:     row.SuccessCount,
		FailureThreshold: row.FailureThreshold,
		LastFailureAt:    row.LastFailureAt,
		LastSuccessAt:    row.LastSuccessAt,
		StateChangedAt:   row.StateChangedAt,
	}
}
