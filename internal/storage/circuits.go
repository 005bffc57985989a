package storage

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// CircuitRow is a persisted circuit breaker record.
type CircuitRow struct {
	CircuitID        string
	CircuitType      string
	State            string
	DefaultState     string
	FailureCount     int
	SuccessCount     int
	FailureThreshold int
	LastFailureAt    *time.Time
	LastSuccessAt    *time.Time
	StateChangedAt   time.Time
}

const circuitColumns = `circuit_id, circuit_type, state, default_state,
	failure_count, success_count, failure_threshold,
	last_failure_at, last_success_at, state_changed_at`

// GetCircuit returns the circuit row for id, or (nil, nil) if absent.
func (s *Storage) GetCircuit(ctx context.Context, id string) (*CircuitRow, error) {
	row := s.db.QueryRowContext(ctx,
		"SELECT "+circuitColumns+" FROM circuit_breaker_state WHERE circuit_id = ?", id)

	c, err := scanCircuit(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query circuit %s; %w", id, err)
	}
	return c, nil
}

// ListCircuits returns all circuit rows ordered by id.
func (s *Storage) ListCircuits(ctx context.Context) ([]CircuitRow, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT "+circuitColumns+" FROM circuit_breaker_state ORDER BY circuit_id")
	if err != nil {
		return nil, fmt.Errorf("failed to list circuits; %w", err)
	}
	defer rows.Close()

	var circuits []CircuitRow
	for rows.Next() {
		c, err := scanCircuit(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan circuit; %w", err)
		}
		circuits = append(circuits, *c)
	}
	return circuits, rows.Err()
}

// InsertCircuit inserts a circuit row if no row with the same id exists.
// Existing rows are left untouched, making initialization idempotent.
func (s *Storage) InsertCircuit(ctx context.Context, c CircuitRow) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT OR IGNORE INTO circuit_breaker_state
			(circuit_id, circuit_type, state, default_state, failure_threshold, state_changed_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		c.CircuitID, c.CircuitType, c.State, c.DefaultState, c.FailureThreshold, c.StateChangedAt)
	if err != nil {
		return fmt.Errorf("failed to insert circuit %s; %w", c.CircuitID, err)
	}
	return nil
}

// UpdateCircuitState sets the state and state_changed_at of a circuit.
func (s *Storage) UpdateCircuitState(ctx context.Context, id, state string, at time.Time) error {
	_, err := s.db.ExecContext(ctx,
		"UPDATE circuit_breaker_state SET state = ?, state_changed_at = ? WHERE circuit_id = ?",
		state, at, id)
	if err != nil {
		return fmt.Errorf("failed to update circuit %s state; %w", id, err)
	}
	return nil
}

// IncrementFailure atomically increments failure_count and stamps
// last_failure_at, returning the updated row.
func (s *Storage) IncrementFailure(ctx context.Context, id string, at time.Time) (*CircuitRow, error) {
	return s.incrementCounter(ctx, id,
		"UPDATE circuit_breaker_state SET failure_count = failure_count + 1, last_failure_at = ? WHERE circuit_id = ?", at)
}

// IncrementSuccess atomically increments success_count and stamps
// last_success_at, returning the updated row.
func (s *Storage) IncrementSuccess(ctx context.Context, id string, at time.Time) (*CircuitRow, error) {
	return s.incrementCounter(ctx, id,
		"UPDATE circuit_breaker_state SET success_count = success_count + 1, last_success_at = ? WHERE circuit_id = ?", at)
}

func (s *Storage) incrementCounter(ctx context.Context, id, query string, at time.Time) (*CircuitRow, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction; %w", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, query, at, id)
	if err != nil {
		return nil, fmt.Errorf("failed to increment counter for %s; %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return nil, err
	}
	if n == 0 {
		return nil, fmt.Errorf("circuit %s not found", id)
	}

	row := tx.QueryRowContext(ctx,
		"SELECT "+circuitColumns+" FROM circuit_breaker_state WHERE circuit_id = ?", id)
	c, err := scanCircuit(row)
	if err != nil {
		return nil, fmt.Errorf("failed to read circuit %s; %w", id, err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit transaction; %w", err)
	}
	return c, nil
}

// ResetCircuit sets state to the given value and clears both counters.
func (s *Storage) ResetCircuit(ctx context.Context, id, state string, at time.Time) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE circuit_breaker_state
		SET state = ?, failure_count = 0, success_count = 0, state_changed_at = ?
		WHERE circuit_id = ?`, state, at, id)
	if err != nil {
		return fmt.Errorf("failed to reset circuit %s; %w", id, err)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanCircuit(r rowScanner) (*CircuitRow, error) {
	var c CircuitRow
	var lastFailure, lastSuccess sql.NullTime
	err := r.Scan(&c.CircuitID, &c.CircuitType, &c.State, &c.DefaultState,
		&c.FailureCount, &c.SuccessCount, &c.FailureThreshold,
		&lastFailure, &lastSuccess, &c.StateChangedAt)
	if err != nil {
		return nil, err
	}
	if lastFailure.Valid {
		c.LastFailureAt = &lastFailure.Time
	}
	if lastSuccess.Valid {
		c.LastSuccessAt = &lastSuccess.Time
	}
	return &c, nil
}
