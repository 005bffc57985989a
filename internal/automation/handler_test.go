package automation

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leefowlercu/flapboard/internal/breaker"
	"github.com/leefowlercu/flapboard/internal/generators"
	"github.com/leefowlercu/flapboard/internal/triggers"
)

// fakeBus records subscriptions and lets tests inject events.
type fakeBus struct {
	mu   sync.Mutex
	subs map[string]func(Event)
}

func newFakeBus() *fakeBus {
	return &fakeBus{subs: make(map[string]func(Event))}
}

func (b *fakeBus) Connect(context.Context) error { return nil }
func (b *fakeBus) Disconnect() error             { return nil }

func (b *fakeBus) SubscribeToEvents(eventType string, cb func(Event)) (func(), error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.subs[eventType] = cb
	return func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		delete(b.subs, eventType)
	}, nil
}

func (b *fakeBus) GetState(context.Context, string) (*EntityState, error) { return nil, nil }

func (b *fakeBus) CallService(context.Context, string, string, map[string]any) error {
	return nil
}

// emit delivers an event synchronously to the registered callback.
func (b *fakeBus) emit(eventType string, data map[string]any) {
	b.mu.Lock()
	cb := b.subs[eventType]
	b.mu.Unlock()
	if cb != nil {
		cb(Event{Type: eventType, Data: data})
	}
}

type fakeRefresher struct {
	mu    sync.Mutex
	calls []generators.GenerationContext
}

func (r *fakeRefresher) GenerateAndSend(_ context.Context, gctx generators.GenerationContext) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, gctx)
	return nil
}

func (r *fakeRefresher) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.calls)
}

func (r *fakeRefresher) last() generators.GenerationContext {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.calls[len(r.calls)-1]
}

type fakeCircuits struct {
	mu        sync.Mutex
	open      map[string]bool
	setCalls  []string
	resetList []string
}

func newFakeCircuits() *fakeCircuits {
	return &fakeCircuits{open: make(map[string]bool)}
}

func (c *fakeCircuits) IsCircuitOpen(_ context.Context, id string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.open[id]
}

func (c *fakeCircuits) SetCircuitState(_ context.Context, id string, state breaker.State) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.setCalls = append(c.setCalls, id+"="+string(state))
}

func (c *fakeCircuits) ResetProviderCircuit(_ context.Context, id string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.resetList = append(c.resetList, id)
}

type stubTriggerSource struct {
	cfg *triggers.Config
}

func (s *stubTriggerSource) Snapshot() *triggers.Config { return s.cfg }

func testTriggerSource(t *testing.T) *stubTriggerSource {
	t.Helper()
	cfg, err := triggers.Parse([]byte(`
triggers:
  - name: doorbell
    entity_pattern: binary_sensor.doorbell
    state_filter: "on"
    debounce_seconds: 30
`))
	require.NoError(t, err)
	return &stubTriggerSource{cfg: cfg}
}

func newTestHandler(t *testing.T) (*Handler, *fakeBus, *fakeRefresher, *fakeCircuits) {
	t.Helper()
	bus := newFakeBus()
	refresher := &fakeRefresher{}
	circuits := newFakeCircuits()
	h := NewHandler(bus, refresher, circuits, testTriggerSource(t))
	require.NoError(t, h.Start(context.Background()))
	t.Cleanup(h.Stop)
	return h, bus, refresher, circuits
}

func TestHandler_RefreshCommandRunsMajorRefresh(t *testing.T) {
	_, bus, refresher, _ := newTestHandler(t)

	bus.emit(EventRefresh, map[string]any{"requested_by": "dashboard"})

	require.Equal(t, 1, refresher.count())
	gctx := refresher.last()
	assert.Equal(t, generators.UpdateMajor, gctx.UpdateType)
	assert.Equal(t, EventRefresh, gctx.Event)
}

func TestHandler_RefreshIgnoredWhenMasterOff(t *testing.T) {
	_, bus, refresher, circuits := newTestHandler(t)
	circuits.open[breaker.CircuitMaster] = true

	bus.emit(EventRefresh, nil)

	assert.Zero(t, refresher.count())
}

func TestHandler_StateChangeMatchingTriggerRefreshes(t *testing.T) {
	_, bus, refresher, _ := newTestHandler(t)

	bus.emit(EventStateChanged, map[string]any{
		"entity_id": "binary_sensor.doorbell",
		"new_state": map[string]any{"state": "on"},
	})

	require.Equal(t, 1, refresher.count())
	gctx := refresher.last()
	assert.Equal(t, generators.UpdateMajor, gctx.UpdateType)
	assert.Equal(t, "doorbell", gctx.Event)
}

func TestHandler_StateChangeNotMatchingIsIgnored(t *testing.T) {
	_, bus, refresher, _ := newTestHandler(t)

	bus.emit(EventStateChanged, map[string]any{
		"entity_id": "binary_sensor.doorbell",
		"new_state": map[string]any{"state": "off"},
	})
	bus.emit(EventStateChanged, map[string]any{
		"entity_id": "light.kitchen",
		"new_state": map[string]any{"state": "on"},
	})

	assert.Zero(t, refresher.count())
}

func TestHandler_DebouncedMatchDoesNotRefresh(t *testing.T) {
	_, bus, refresher, _ := newTestHandler(t)

	evt := map[string]any{
		"entity_id": "binary_sensor.doorbell",
		"new_state": map[string]any{"state": "on"},
	}
	bus.emit(EventStateChanged, evt)
	bus.emit(EventStateChanged, evt)

	assert.Equal(t, 1, refresher.count())
}

func TestHandler_CircuitControlDispatch(t *testing.T) {
	_, bus, _, circuits := newTestHandler(t)

	bus.emit(EventCircuitControl, map[string]any{"circuit_id": "MASTER", "action": "off"})
	bus.emit(EventCircuitControl, map[string]any{"circuit_id": "MASTER", "action": "on"})
	bus.emit(EventCircuitControl, map[string]any{"circuit_id": "PROVIDER_ANTHROPIC", "action": "reset"})

	assert.Equal(t, []string{"MASTER=off", "MASTER=on"}, circuits.setCalls)
	assert.Equal(t, []string{"PROVIDER_ANTHROPIC"}, circuits.resetList)
}

func TestHandler_CircuitControlUnknownActionDropped(t *testing.T) {
	_, bus, _, circuits := newTestHandler(t)

	bus.emit(EventCircuitControl, map[string]any{"circuit_id": "MASTER", "action": "explode"})
	bus.emit(EventCircuitControl, map[string]any{"action": "on"})

	assert.Empty(t, circuits.setCalls)
	assert.Empty(t, circuits.resetList)
}

func TestHandler_StopRemovesSubscriptions(t *testing.T) {
	h, bus, refresher, _ := newTestHandler(t)

	h.Stop()
	bus.emit(EventRefresh, nil)

	assert.Zero(t, refresher.count())
	assert.Empty(t, bus.subs)
}

func TestHandler_RebindMatcherFollowsNewSnapshot(t *testing.T) {
	bus := newFakeBus()
	refresher := &fakeRefresher{}
	circuits := newFakeCircuits()
	source := testTriggerSource(t)
	h := NewHandler(bus, refresher, circuits, source)
	require.NoError(t, h.Start(context.Background()))
	defer h.Stop()

	replacement, err := triggers.Parse([]byte(`
triggers:
  - name: motion
    entity_pattern: "binary_sensor.motion_*"
`))
	require.NoError(t, err)
	source.cfg = replacement
	h.rebindMatcher()

	bus.emit(EventStateChanged, map[string]any{
		"entity_id": "binary_sensor.motion_hall",
		"new_state": map[string]any{"state": "on"},
	})
	require.Equal(t, 1, refresher.count())
	assert.Equal(t, "motion", refresher.last().Event)

	// The old doorbell trigger no longer exists.
	bus.emit(EventStateChanged, map[string]any{
		"entity_id": "binary_sensor.doorbell",
		"new_state": map[string]any{"state": "on"},
	})
	assert.Equal(t, 1, refresher.count())
}

func TestHandler_RefreshTimestampUsesClock(t *testing.T) {
	bus := newFakeBus()
	refresher := &fakeRefresher{}
	fixed := time.Date(2026, 8, 24, 12, 0, 0, 0, time.UTC)
	h := NewHandler(bus, refresher, newFakeCircuits(), testTriggerSource(t),
		WithHandlerClock(func() time.Time { return fixed }))
	require.NoError(t, h.Start(context.Background()))
	defer h.Stop()

	bus.emit(EventRefresh, nil)

	require.Equal(t, 1, refresher.count())
	assert.Equal(t, fixed, refresher.last().Timestamp)
}
