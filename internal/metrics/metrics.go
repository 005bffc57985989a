// Package metrics defines the prometheus collectors exported by the daemon.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// RefreshesTotal counts refresh pipeline runs by update type and result.
	RefreshesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "flapboard_refreshes_total",
		Help: "Refresh pipeline runs by update type and result.",
	}, []string{"type", "result"})

	// GenerationAttemptsTotal counts generator invocations by generator id and result.
	GenerationAttemptsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "flapboard_generation_attempts_total",
		Help: "Generator invocations by generator id and result.",
	}, []string{"generator", "result"})

	// ProviderRequestsTotal counts AI provider calls by provider and result.
	ProviderRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "flapboard_provider_requests_total",
		Help: "AI provider completions by provider name and result.",
	}, []string{"provider", "result"})

	// ProviderFailoversTotal counts cross-provider failovers.
	ProviderFailoversTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "flapboard_provider_failovers_total",
		Help: "Completions that fell back to an alternate provider.",
	})

	// CircuitState exports the stored state per circuit (1 = on, 0 = off, 0.5 = half open).
	CircuitState = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "flapboard_circuit_state",
		Help: "Circuit breaker state per circuit id.",
	}, []string{"circuit"})

	// TriggerMatchesTotal counts trigger matches by trigger name and debounce outcome.
	TriggerMatchesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "flapboard_trigger_matches_total",
		Help: "Entity trigger matches by trigger name and outcome.",
	}, []string{"trigger", "outcome"})

	// EventBusDroppedEvents counts events dropped due to full subscriber buffers.
	EventBusDroppedEvents = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "flapboard_event_bus_dropped_events_total",
		Help: "Events dropped because a subscriber buffer was full.",
	}, []string{"event_type"})

	// SchedulerSkippedTicks counts minor ticks skipped due to an in-flight refresh.
	SchedulerSkippedTicks = promauto.NewCounter(prometheus.CounterOpts{
		Name: "flapboard_scheduler_skipped_ticks_total",
		Help: "Minute ticks skipped because a refresh was still running.",
	})
)

// Handler returns the HTTP handler serving the metrics endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}
