package providers

import (
	"context"
	"sync"
	"time"
)

// DefaultRequestsPerMinute is the per-provider cap used when the
// providers.rate_limit setting is absent.
const DefaultRequestsPerMinute = 20

// RateLimiter paces calls to one AI provider at the configured
// requests-per-minute. The vendor APIs meter in per-minute windows, so the
// limiter keeps a sliding window of recent send times rather than a token
// bucket: a call proceeds once fewer than the cap were sent in the last
// minute, and a blocked caller sleeps exactly until the oldest send ages
// out.
type RateLimiter struct {
	mu    sync.Mutex
	limit int
	sent  []time.Time

	now   func() time.Time
	sleep func(ctx context.Context, d time.Duration) error
}

// NewRateLimiter creates a limiter allowing requestsPerMinute calls per
// sliding minute. Non-positive values fall back to DefaultRequestsPerMinute.
func NewRateLimiter(requestsPerMinute int) *RateLimiter {
	if requestsPerMinute <= 0 {
		requestsPerMinute = DefaultRequestsPerMinute
	}
	return &RateLimiter{
		limit: requestsPerMinute,
		sent:  make([]time.Time, 0, requestsPerMinute),
		now:   time.Now,
		sleep: sleepCtx,
	}
}

// Wait blocks until the call may proceed or the context is cancelled.
func (r *RateLimiter) Wait(ctx context.Context) error {
	for {
		r.mu.Lock()
		now := r.now()
		r.prune(now)

		if len(r.sent) < r.limit {
			r.sent = append(r.sent, now)
			r.mu.Unlock()
			return nil
		}

		// Window is full; the oldest send ages out first.
		wait := r.sent[0].Add(time.Minute).Sub(now)
		r.mu.Unlock()

		if err := r.sleep(ctx, wait); err != nil {
			return err
		}
	}
}

// Allow reports whether a call may proceed right now, consuming a slot if so.
func (r *RateLimiter) Allow() bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.now()
	r.prune(now)

	if len(r.sent) >= r.limit {
		return false
	}
	r.sent = append(r.sent, now)
	return true
}

// prune drops send times older than one minute. Must be called with the
// lock held.
func (r *RateLimiter) prune(now time.Time) {
	cutoff := now.Add(-time.Minute)
	i := 0
	for i < len(r.sent) && !r.sent[i].After(cutoff) {
		i++
	}
	if i > 0 {
		r.sent = append(r.sent[:0], r.sent[i:]...)
	}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
