package logging

import (
	"container/list"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

const (
	// DefaultThrottleWindow is how long identical log keys are suppressed
	// after the first emission.
	DefaultThrottleWindow = 5 * time.Minute

	// DefaultMaxEntries bounds the number of tracked keys before LRU eviction.
	DefaultMaxEntries = 100
)

// ThrottledLogger rate-limits repeated log lines sharing a key. The first
// call for a key logs immediately; calls within the throttle window are
// suppressed and counted; the first call after the window expires logs once
// with the suppressed count appended.
type ThrottledLogger struct {
	logger *slog.Logger
	window time.Duration
	max    int
	now    func() time.Time

	mu      sync.Mutex
	entries map[string]*list.Element
	order   *list.List // front = most recently used
}

type throttleEntry struct {
	key        string
	windowFrom time.Time
	suppressed int
}

// ThrottleOption configures a ThrottledLogger.
type ThrottleOption func(*ThrottledLogger)

// WithWindow sets the suppression window.
func WithWindow(d time.Duration) ThrottleOption {
	return func(t *ThrottledLogger) {
		if d > 0 {
			t.window = d
		}
	}
}

// WithMaxEntries sets the maximum number of tracked keys.
func WithMaxEntries(n int) ThrottleOption {
	return func(t *ThrottledLogger) {
		if n > 0 {
			t.max = n
		}
	}
}

// WithClock overrides the time source. Used by tests.
func WithClock(now func() time.Time) ThrottleOption {
	return func(t *ThrottledLogger) {
		t.now = now
	}
}

// NewThrottledLogger creates a throttled logger wrapping the given slog logger.
func NewThrottledLogger(logger *slog.Logger, opts ...ThrottleOption) *ThrottledLogger {
	t := &ThrottledLogger{
		logger:  logger,
		window:  DefaultThrottleWindow,
		max:     DefaultMaxEntries,
		now:     time.Now,
		entries: make(map[string]*list.Element),
		order:   list.New(),
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Warn logs msg at warn level, throttled by key.
func (t *ThrottledLogger) Warn(key, msg string, args ...any) {
	t.log(slog.LevelWarn, key, msg, args...)
}

// Error logs msg at error level, throttled by key.
func (t *ThrottledLogger) Error(key, msg string, args ...any) {
	t.log(slog.LevelError, key, msg, args...)
}

func (t *ThrottledLogger) log(level slog.Level, key, msg string, args ...any) {
	emit, suppressed := t.admit(key)
	if !emit {
		return
	}
	if suppressed > 0 {
		msg = fmt.Sprintf("%s (suppressed %d similar)", msg, suppressed)
	}
	switch level {
	case slog.LevelError:
		t.logger.Error(msg, args...)
	default:
		t.logger.Warn(msg, args...)
	}
}

// admit decides whether a log for key should be emitted now and returns the
// number of suppressed occurrences to report with it.
func (t *ThrottledLogger) admit(key string) (emit bool, suppressed int) {
	t.mu.Lock()
	defer t.mu.Unlock()

	now := t.now()

	if elem, ok := t.entries[key]; ok {
		entry := elem.Value.(*throttleEntry)
		t.order.MoveToFront(elem)

		if now.Sub(entry.windowFrom) < t.window {
			entry.suppressed++
			return false, 0
		}

		// Window expired: emit with the accumulated count and start a new window.
		suppressed = entry.suppressed
		entry.suppressed = 0
		entry.windowFrom = now
		return true, suppressed
	}

	entry := &throttleEntry{key: key, windowFrom: now}
	t.entries[key] = t.order.PushFront(entry)
	t.evict()
	return true, 0
}

// evict drops least recently used keys beyond the max.
func (t *ThrottledLogger) evict() {
	for len(t.entries) > t.max {
		oldest := t.order.Back()
		if oldest == nil {
			return
		}
		entry := oldest.Value.(*throttleEntry)
		t.order.Remove(oldest)
		delete(t.entries, entry.key)
	}
}

// TrackedKeys returns the number of keys currently tracked (for testing).
func (t *ThrottledLogger) TrackedKeys() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.entries)
}
