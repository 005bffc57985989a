package automation

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/leefowlercu/flapboard/internal/breaker"
	"github.com/leefowlercu/flapboard/internal/events"
	"github.com/leefowlercu/flapboard/internal/generators"
	"github.com/leefowlercu/flapboard/internal/logging"
	"github.com/leefowlercu/flapboard/internal/triggers"
)

// Bus event types the handler listens for.
const (
	EventRefresh        = "vestaboard_refresh"
	EventStateChanged   = "state_changed"
	EventCircuitControl = "vestaboard_circuit_control"
)

// Refresher runs a content refresh. *orchestrator.Orchestrator satisfies it.
type Refresher interface {
	GenerateAndSend(ctx context.Context, gctx generators.GenerationContext) error
}

// CircuitController mutates circuit breakers. *breaker.Service satisfies it.
type CircuitController interface {
	IsCircuitOpen(ctx context.Context, id string) bool
	SetCircuitState(ctx context.Context, id string, state breaker.State)
	ResetProviderCircuit(ctx context.Context, id string)
}

// TriggerSource supplies the active trigger configuration snapshot.
// *triggers.Loader satisfies it.
type TriggerSource interface {
	Snapshot() *triggers.Config
}

// Handler wires automation bus events into the content pipeline: refresh
// commands run major refreshes, entity state changes are evaluated against
// the trigger config, and circuit control commands flip breakers.
type Handler struct {
	bus         Bus
	refresher   Refresher
	circuits    CircuitController
	triggerCfg  TriggerSource
	personality string

	internal *events.EventBus
	log      *slog.Logger
	tlog     *logging.ThrottledLogger
	now      func() time.Time

	matcher atomic.Pointer[triggers.Matcher]
	unsubs  []func()
}

// HandlerOption configures the Handler.
type HandlerOption func(*Handler)

// WithHandlerLogger sets the logger.
func WithHandlerLogger(logger *slog.Logger) HandlerOption {
	return func(h *Handler) {
		h.log = logger
	}
}

// WithHandlerThrottledLogger sets the throttled logger used for repeating
// event-path failures.
func WithHandlerThrottledLogger(tlog *logging.ThrottledLogger) HandlerOption {
	return func(h *Handler) {
		h.tlog = tlog
	}
}

// WithHandlerEventBus mirrors received bus events onto the internal bus.
func WithHandlerEventBus(bus *events.EventBus) HandlerOption {
	return func(h *Handler) {
		h.internal = bus
	}
}

// WithHandlerPersonality sets the personality passed to generators.
func WithHandlerPersonality(personality string) HandlerOption {
	return func(h *Handler) {
		h.personality = personality
	}
}

// WithHandlerClock overrides the time source. Used by tests.
func WithHandlerClock(now func() time.Time) HandlerOption {
	return func(h *Handler) {
		h.now = now
	}
}

// NewHandler creates an event handler. Call Start to begin routing.
func NewHandler(bus Bus, refresher Refresher, circuits CircuitController, triggerCfg TriggerSource, opts ...HandlerOption) *Handler {
	h := &Handler{
		bus:        bus,
		refresher:  refresher,
		circuits:   circuits,
		triggerCfg: triggerCfg,
		log:        slog.Default(),
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(h)
	}
	if h.tlog == nil {
		h.tlog = logging.NewThrottledLogger(h.log)
	}
	h.matcher.Store(triggers.NewMatcher(triggerCfg.Snapshot()))
	return h
}

// Start subscribes to the bus event types the daemon reacts to, and to
// trigger config reloads so the matcher follows the active snapshot.
func (h *Handler) Start(ctx context.Context) error {
	subs := []struct {
		eventType string
		cb        func(Event)
	}{
		{EventRefresh, func(evt Event) { h.handleRefresh(ctx, evt) }},
		{EventStateChanged, func(evt Event) { h.handleStateChanged(ctx, evt) }},
		{EventCircuitControl, func(evt Event) { h.handleCircuitControl(ctx, evt) }},
	}

	for _, s := range subs {
		unsub, err := h.bus.SubscribeToEvents(s.eventType, s.cb)
		if err != nil {
			h.Stop()
			return fmt.Errorf("failed to subscribe to %q; %w", s.eventType, err)
		}
		h.unsubs = append(h.unsubs, unsub)
	}

	if h.internal != nil {
		h.unsubs = append(h.unsubs, h.internal.Subscribe(events.TriggersReloaded, func(events.Event) {
			h.rebindMatcher()
		}))
	}

	h.log.Info("automation event handler started")
	return nil
}

// Stop removes all subscriptions.
func (h *Handler) Stop() {
	for _, unsub := range h.unsubs {
		unsub()
	}
	h.unsubs = nil
}

// rebindMatcher builds a fresh matcher over the active trigger snapshot.
// Debounce windows restart; a reload is rare enough that this is acceptable.
func (h *Handler) rebindMatcher() {
	h.matcher.Store(triggers.NewMatcher(h.triggerCfg.Snapshot()))
	h.log.Info("trigger matcher rebound to reloaded config")
}

// handleRefresh runs a major refresh on operator command.
func (h *Handler) handleRefresh(ctx context.Context, evt Event) {
	refreshID := uuid.NewString()
	log := h.log.With("refresh_id", refreshID)

	if h.circuits.IsCircuitOpen(ctx, breaker.CircuitMaster) {
		log.Info("refresh command ignored, master circuit is off")
		return
	}

	log.Info("refresh requested from automation bus")
	h.mirror(ctx, events.RefreshRequested, events.RefreshPayload{
		Source:    "automation",
		EventData: evt.Data,
	})

	h.runRefresh(ctx, log, generators.GenerationContext{
		UpdateType:  generators.UpdateMajor,
		Timestamp:   h.now(),
		Event:       EventRefresh,
		EventData:   evt.Data,
		Personality: h.personality,
	})
}

// handleStateChanged evaluates an entity state change against the trigger
// config and runs a major refresh on a non-debounced match.
func (h *Handler) handleStateChanged(ctx context.Context, evt Event) {
	entityID, _ := evt.Data["entity_id"].(string)
	if entityID == "" {
		return
	}
	newState := ""
	attrs := map[string]any(nil)
	if ns, ok := evt.Data["new_state"].(map[string]any); ok {
		newState, _ = ns["state"].(string)
		attrs, _ = ns["attributes"].(map[string]any)
	}

	h.mirror(ctx, events.StateChanged, events.StatePayload{
		EntityID: entityID,
		NewState: newState,
		Attrs:    attrs,
	})

	res := h.matcher.Load().Match(entityID, newState)
	if !res.Matched {
		return
	}
	if res.Debounced {
		h.log.Debug("trigger match debounced", "trigger", res.Trigger, "entity", entityID)
		return
	}

	refreshID := uuid.NewString()
	log := h.log.With("refresh_id", refreshID, "trigger", res.Trigger)

	if h.circuits.IsCircuitOpen(ctx, breaker.CircuitMaster) {
		log.Info("trigger refresh ignored, master circuit is off")
		return
	}

	log.Info("trigger matched", "entity", entityID, "state", newState)
	h.mirror(ctx, events.RefreshRequested, events.RefreshPayload{
		Source:    "trigger",
		Trigger:   res.Trigger,
		EventData: evt.Data,
	})

	h.runRefresh(ctx, log, generators.GenerationContext{
		UpdateType:  generators.UpdateMajor,
		Timestamp:   h.now(),
		Event:       res.Trigger,
		EventData:   evt.Data,
		Personality: h.personality,
	})
}

// handleCircuitControl flips a breaker on operator command. Unknown actions
// are dropped with a warning.
func (h *Handler) handleCircuitControl(ctx context.Context, evt Event) {
	circuitID, _ := evt.Data["circuit_id"].(string)
	action, _ := evt.Data["action"].(string)
	if circuitID == "" {
		h.log.Warn("circuit control command missing circuit_id")
		return
	}

	h.mirror(ctx, events.CircuitControl, events.CircuitControlPayload{
		CircuitID: circuitID,
		Action:    action,
	})

	switch action {
	case "on":
		h.circuits.SetCircuitState(ctx, circuitID, breaker.StateOn)
	case "off":
		h.circuits.SetCircuitState(ctx, circuitID, breaker.StateOff)
	case "reset":
		h.circuits.ResetProviderCircuit(ctx, circuitID)
	default:
		h.log.Warn("dropping unknown circuit control action",
			"circuit", circuitID, "action", action)
	}
}

func (h *Handler) runRefresh(ctx context.Context, log *slog.Logger, gctx generators.GenerationContext) {
	if err := h.refresher.GenerateAndSend(ctx, gctx); err != nil {
		h.tlog.Error("automation.refresh_failed", "refresh failed", "event", gctx.Event, "error", err)
		return
	}
	log.Info("refresh complete")
}

func (h *Handler) mirror(ctx context.Context, eventType events.EventType, payload any) {
	if h.internal == nil {
		return
	}
	if err := h.internal.Publish(ctx, events.NewEvent(eventType, payload)); err != nil {
		h.log.Debug("internal event not published", "event_type", eventType, "error", err)
	}
}
