package events

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func TestNewBus(t *testing.T) {
	bus := NewBus()
	if bus == nil {
		t.Fatal("expected non-nil bus")
	}

	stats := bus.Stats()
	if stats.SubscriberCount != 0 {
		t.Errorf("expected 0 subscribers, got %d", stats.SubscriberCount)
	}
	if stats.IsClosed {
		t.Error("expected bus to not be closed")
	}
}

func TestBus_PublishSubscribe(t *testing.T) {
	bus := NewBus()
	defer bus.Close()

	var received atomic.Bool
	var receivedEvent Event

	unsubscribe := bus.Subscribe(RefreshRequested, func(event Event) {
		receivedEvent = event
		received.Store(true)
	})
	defer unsubscribe()

	event := NewEvent(RefreshRequested, RefreshPayload{Source: "operator"})
	if err := bus.Publish(context.Background(), event); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// Wait for event to be processed
	waitFor(t, received.Load)

	if receivedEvent.Type != RefreshRequested {
		t.Errorf("expected event type %s, got %s", RefreshRequested, receivedEvent.Type)
	}
	payload, ok := receivedEvent.Payload.(RefreshPayload)
	if !ok {
		t.Fatalf("expected RefreshPayload, got %T", receivedEvent.Payload)
	}
	if payload.Source != "operator" {
		t.Errorf("expected source operator, got %s", payload.Source)
	}
}

func TestBus_TypeFiltering(t *testing.T) {
	bus := NewBus()
	defer bus.Close()

	var refreshes, states atomic.Int32

	defer bus.Subscribe(RefreshRequested, func(Event) { refreshes.Add(1) })()
	defer bus.Subscribe(StateChanged, func(Event) { states.Add(1) })()

	ctx := context.Background()
	if err := bus.Publish(ctx, NewEvent(StateChanged, StatePayload{EntityID: "light.kitchen"})); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := bus.Publish(ctx, NewEvent(StateChanged, StatePayload{EntityID: "light.hall"})); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	waitFor(t, func() bool { return states.Load() == 2 })

	if refreshes.Load() != 0 {
		t.Errorf("expected refresh subscriber to receive nothing, got %d", refreshes.Load())
	}
}

func TestBus_SubscribeAll(t *testing.T) {
	bus := NewBus()
	defer bus.Close()

	var count atomic.Int32
	defer bus.SubscribeAll(func(Event) { count.Add(1) })()

	ctx := context.Background()
	for _, eventType := range []EventType{RefreshRequested, StateChanged, ContentSent} {
		if err := bus.Publish(ctx, NewEvent(eventType, nil)); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}

	waitFor(t, func() bool { return count.Load() == 3 })
}

func TestBus_Unsubscribe(t *testing.T) {
	bus := NewBus()
	defer bus.Close()

	var count atomic.Int32
	unsubscribe := bus.Subscribe(ContentSent, func(Event) { count.Add(1) })

	ctx := context.Background()
	if err := bus.Publish(ctx, NewEvent(ContentSent, nil)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	waitFor(t, func() bool { return count.Load() == 1 })

	unsubscribe()

	if err := bus.Publish(ctx, NewEvent(ContentSent, nil)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	time.Sleep(50 * time.Millisecond)

	if count.Load() != 1 {
		t.Errorf("expected 1 delivery after unsubscribe, got %d", count.Load())
	}
	if got := bus.Stats().SubscriberCount; got != 0 {
		t.Errorf("expected 0 subscribers after unsubscribe, got %d", got)
	}
}

func TestBus_PublishAfterClose(t *testing.T) {
	bus := NewBus()
	if err := bus.Close(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	err := bus.Publish(context.Background(), NewEvent(RefreshRequested, nil))
	if !errors.Is(err, ErrBusClosed) {
		t.Errorf("expected ErrBusClosed, got %v", err)
	}

	// Closing twice is a no-op
	if err := bus.Close(); err != nil {
		t.Fatalf("unexpected error on second close: %v", err)
	}
}

func TestBus_HandlerPanicDoesNotCrash(t *testing.T) {
	bus := NewBus()
	defer bus.Close()

	var received atomic.Bool
	defer bus.Subscribe(RefreshRequested, func(Event) { panic("boom") })()
	defer bus.Subscribe(RefreshRequested, func(Event) { received.Store(true) })()

	if err := bus.Publish(context.Background(), NewEvent(RefreshRequested, nil)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	waitFor(t, received.Load)
}

func TestBus_ConcurrentPublish(t *testing.T) {
	bus := NewBus(WithBufferSize(256))
	defer bus.Close()

	var count atomic.Int32
	defer bus.Subscribe(StateChanged, func(Event) { count.Add(1) })()

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 10; j++ {
				_ = bus.Publish(context.Background(), NewEvent(StateChanged, nil))
			}
		}()
	}
	wg.Wait()

	waitFor(t, func() bool { return count.Load() == 100 })
}

func TestBus_LossyEventDroppedWhenSubscriberLags(t *testing.T) {
	bus := NewBus(WithBufferSize(1))
	defer bus.Close()

	entered := make(chan struct{}, 8)
	gate := make(chan struct{})
	var mu sync.Mutex
	var got []string

	defer bus.Subscribe(StateChanged, func(event Event) {
		entered <- struct{}{}
		<-gate
		mu.Lock()
		got = append(got, event.Payload.(StatePayload).NewState)
		mu.Unlock()
	})()

	ctx := context.Background()
	publish := func(state string) {
		t.Helper()
		if err := bus.Publish(ctx, NewEvent(StateChanged, StatePayload{NewState: state})); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}

	publish("first")
	<-entered // handler is holding the first event, buffer is empty
	publish("second")
	publish("third") // buffer full, state changes are superseded by the next

	close(gate)
	waitFor(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(got) == 2
	})

	mu.Lock()
	defer mu.Unlock()
	if got[0] != "first" || got[1] != "second" {
		t.Errorf("expected [first second], got %v", got)
	}
}

func TestBus_CriticalEventEvictsOldestWhenSubscriberLags(t *testing.T) {
	bus := NewBus(WithBufferSize(1))
	defer bus.Close()

	entered := make(chan struct{}, 8)
	gate := make(chan struct{})
	var mu sync.Mutex
	var got []int

	defer bus.Subscribe(TriggersReloaded, func(event Event) {
		entered <- struct{}{}
		<-gate
		mu.Lock()
		got = append(got, event.Payload.(int))
		mu.Unlock()
	})()

	ctx := context.Background()
	publish := func(gen int) {
		t.Helper()
		if err := bus.Publish(ctx, NewEvent(TriggersReloaded, gen)); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}

	publish(1)
	<-entered // handler is holding generation 1, buffer is empty
	publish(2)
	publish(3) // evicts 2 so the newest reload always lands

	close(gate)
	waitFor(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(got) == 2
	})

	mu.Lock()
	defer mu.Unlock()
	if got[0] != 1 || got[1] != 3 {
		t.Errorf("expected [1 3], got %v", got)
	}
}

// waitFor polls a condition with a deadline, failing the test on timeout.
func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not met before deadline")
}
