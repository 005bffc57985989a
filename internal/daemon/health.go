package daemon

import (
	"sync"
	"time"
)

// ComponentStatus is the health state of one component.
type ComponentStatus string

const (
	StatusHealthy  ComponentStatus = "healthy"
	StatusDegraded ComponentStatus = "degraded"
	StatusFailed   ComponentStatus = "failed"
)

// IsHealthy reports whether the status counts as healthy for aggregation.
func (s ComponentStatus) IsHealthy() bool {
	return s == StatusHealthy
}

// ComponentHealth is the health snapshot of a single component.
type ComponentHealth struct {
	Status ComponentStatus `json:"status"`

	// Error is the failure message when Status is not healthy.
	Error string `json:"error,omitempty"`

	// Since is when the component entered the current state.
	Since time.Time `json:"since,omitempty"`
}

// HealthStatus is the aggregate daemon health, served by /readyz.
type HealthStatus struct {
	// Status is "healthy" or "degraded". A failed component degrades the
	// daemon; it keeps serving.
	Status string `json:"status"`

	// Ready reports whether the daemon serves requests.
	Ready bool `json:"ready"`

	// Uptime is how long the daemon has been running.
	Uptime time.Duration `json:"uptime"`

	// Components is the per-component breakdown.
	Components map[string]ComponentHealth `json:"components,omitempty"`
}

// HealthManager aggregates component health. Safe for concurrent use.
type HealthManager struct {
	mu         sync.RWMutex
	components map[string]ComponentHealth
	startTime  time.Time
}

// NewHealthManager creates an empty health manager.
func NewHealthManager() *HealthManager {
	return &HealthManager{
		components: make(map[string]ComponentHealth),
		startTime:  time.Now(),
	}
}

// SetHealthy marks a component healthy.
func (m *HealthManager) SetHealthy(name string) {
	m.update(name, ComponentHealth{Status: StatusHealthy, Since: time.Now()})
}

// SetFailed marks a component failed with the given cause.
func (m *HealthManager) SetFailed(name string, err error) {
	health := ComponentHealth{Status: StatusFailed, Since: time.Now()}
	if err != nil {
		health.Error = err.Error()
	}
	m.update(name, health)
}

// SetDegraded marks a component degraded with the given cause.
func (m *HealthManager) SetDegraded(name string, err error) {
	health := ComponentHealth{Status: StatusDegraded, Since: time.Now()}
	if err != nil {
		health.Error = err.Error()
	}
	m.update(name, health)
}

func (m *HealthManager) update(name string, health ComponentHealth) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if cur, ok := m.components[name]; ok && cur.Status == health.Status {
		// Keep the original transition time for repeated reports.
		health.Since = cur.Since
	}
	m.components[name] = health
}

// Status returns the aggregate snapshot.
func (m *HealthManager) Status() HealthStatus {
	m.mu.RLock()
	defer m.mu.RUnlock()

	status := HealthStatus{
		Status:     "healthy",
		Ready:      true,
		Uptime:     time.Since(m.startTime),
		Components: make(map[string]ComponentHealth, len(m.components)),
	}
	for name, health := range m.components {
		status.Components[name] = health
		if !health.Status.IsHealthy() {
			status.Status = "degraded"
		}
	}
	return status
}
