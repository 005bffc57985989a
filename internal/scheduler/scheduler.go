// Package scheduler fires minute-aligned minor refreshes.
package scheduler

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/leefowlercu/flapboard/internal/logging"
	"github.com/leefowlercu/flapboard/internal/metrics"
)

// RefreshFunc runs one minor refresh.
type RefreshFunc func(ctx context.Context, at time.Time) error

// Scheduler aligns ticks to wall-clock minute boundaries and runs at most
// one refresh at a time. A tick arriving while the previous refresh is
// still running is skipped.
type Scheduler struct {
	refresh RefreshFunc
	log     *slog.Logger
	tlog    *logging.ThrottledLogger
	now     func() time.Time

	inFlight atomic.Bool
	cancel   context.CancelFunc
	done     chan struct{}
	mu       sync.Mutex
}

// Option configures the Scheduler.
type Option func(*Scheduler)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Scheduler) {
		s.log = logger
	}
}

// WithThrottledLogger sets the throttled logger used for skipped ticks.
func WithThrottledLogger(tlog *logging.ThrottledLogger) Option {
	return func(s *Scheduler) {
		s.tlog = tlog
	}
}

// WithClock overrides the time source. Used by tests.
func WithClock(now func() time.Time) Option {
	return func(s *Scheduler) {
		s.now = now
	}
}

// New creates a scheduler that calls refresh every minute.
func New(refresh RefreshFunc, opts ...Option) *Scheduler {
	s := &Scheduler{
		refresh: refresh,
		log:     slog.Default(),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.tlog == nil {
		s.tlog = logging.NewThrottledLogger(s.log)
	}
	return s
}

// Start sleeps until the next minute boundary, then ticks every minute
// until Stop is called or the context is cancelled.
func (s *Scheduler) Start(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancel != nil {
		return
	}

	ctx, s.cancel = context.WithCancel(ctx)
	s.done = make(chan struct{})

	go s.run(ctx, s.done)
	s.log.Info("scheduler started")
}

// Stop cancels the timer immediately and waits for the loop to exit. A
// refresh already in flight is allowed to finish.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	cancel, done := s.cancel, s.done
	s.cancel, s.done = nil, nil
	s.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	<-done
	s.log.Info("scheduler stopped")
}

func (s *Scheduler) run(ctx context.Context, done chan struct{}) {
	defer close(done)

	// Align to the next minute boundary before the first tick.
	wait := s.untilNextMinute()
	select {
	case <-ctx.Done():
		return
	case <-time.After(wait):
	}

	s.fire(ctx)

	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.fire(ctx)
		}
	}
}

// fire runs one refresh unless the previous one is still in flight.
func (s *Scheduler) fire(ctx context.Context) {
	if !s.inFlight.CompareAndSwap(false, true) {
		metrics.SchedulerSkippedTicks.Inc()
		s.tlog.Warn("scheduler.tick_overlap", "previous refresh still running, skipping tick")
		return
	}

	go func() {
		defer s.inFlight.Store(false)
		at := s.now()
		if err := s.refresh(ctx, at); err != nil {
			s.log.Warn("minor refresh failed", "error", err)
		}
	}()
}

func (s *Scheduler) untilNextMinute() time.Duration {
	now := s.now()
	next := now.Truncate(time.Minute).Add(time.Minute)
	return next.Sub(now)
}
