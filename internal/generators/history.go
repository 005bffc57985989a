package generators

import (
	"sync"
	"time"
)

// History tracks when each generator last produced content. The orchestrator
// records usage after a successful run; the selector only reads.
type History struct {
	mu       sync.RWMutex
	lastUsed map[string]time.Time
}

// NewHistory creates an empty history.
func NewHistory() *History {
	return &History{lastUsed: make(map[string]time.Time)}
}

// RecordUse marks a generator as used at the given time.
func (h *History) RecordUse(id string, at time.Time) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.lastUsed[id] = at
}

// LastUsed returns when the generator last ran. The zero time means never.
func (h *History) LastUsed(id string) time.Time {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.lastUsed[id]
}
