package events

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/leefowlercu/flapboard/internal/metrics"
)

// Bus is the interface for the event bus.
type Bus interface {
	// Publish sends an event to all subscribers of the event type.
	// Returns an error if the bus is closed.
	Publish(ctx context.Context, event Event) error

	// Subscribe registers a handler for a specific event type.
	// Returns an unsubscribe function that removes the subscription.
	Subscribe(eventType EventType, handler EventHandler) (unsubscribe func())

	// SubscribeAll registers a handler for all event types.
	// Returns an unsubscribe function that removes the subscription.
	SubscribeAll(handler EventHandler) (unsubscribe func())

	// Close shuts down the event bus and drains pending events.
	Close() error
}

// lossy reports whether an event type may be dropped when a subscriber lags.
// StateChanged arrives for every entity update and ContentSent after every
// frame; each is superseded by the next, so losing one under backpressure is
// harmless. Everything else (refresh requests, circuit commands, trigger and
// connection lifecycle) must reach the subscriber, so a full buffer evicts
// its oldest entry to make room for the newest.
func lossy(t EventType) bool {
	return t == StateChanged || t == ContentSent
}

// subscription represents a registered event handler. The handler runs on a
// dedicated goroutine that ranges over events, so closing the channel drains
// whatever is still buffered before the goroutine exits.
type subscription struct {
	id        uint64
	eventType EventType // empty string means subscribe to all
	handler   EventHandler
	events    chan Event
}

// EventBus is the default implementation of the Bus interface.
type EventBus struct {
	mu            sync.RWMutex
	subscriptions map[uint64]*subscription
	nextID        atomic.Uint64
	closed        atomic.Bool
	logger        *slog.Logger

	// bufferSize is the size of each subscriber's event buffer.
	bufferSize int
}

// BusOption configures the event bus.
type BusOption func(*EventBus)

// WithBufferSize sets the buffer size for subscriber event channels.
func WithBufferSize(size int) BusOption {
	return func(b *EventBus) {
		if size > 0 {
			b.bufferSize = size
		}
	}
}

// WithLogger sets the logger for the event bus.
func WithLogger(logger *slog.Logger) BusOption {
	return func(b *EventBus) {
		b.logger = logger
	}
}

// NewBus creates a new event bus with the given options.
func NewBus(opts ...BusOption) *EventBus {
	b := &EventBus{
		subscriptions: make(map[uint64]*subscription),
		bufferSize:    100, // default buffer size
		logger:        slog.Default(),
	}

	for _, opt := range opts {
		opt(b)
	}

	return b
}

// Publish sends an event to all subscribers of the event type.
func (b *EventBus) Publish(ctx context.Context, event Event) error {
	if b.closed.Load() {
		return ErrBusClosed
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	// The read lock excludes unsubscribe and Close, which take the write
	// lock before closing subscriber channels. No send can hit a closed
	// channel.
	b.mu.RLock()
	defer b.mu.RUnlock()

	for _, sub := range b.subscriptions {
		if sub.eventType != "" && sub.eventType != event.Type {
			continue
		}
		b.deliver(sub, event)
	}

	return nil
}

// deliver hands an event to one subscriber without ever blocking the
// publisher. Lossy events are dropped when the buffer is full; for the rest
// the oldest buffered event is evicted so the newest always lands.
func (b *EventBus) deliver(sub *subscription, event Event) {
	for {
		select {
		case sub.events <- event:
			return
		default:
		}

		if lossy(event.Type) {
			b.logger.Warn("subscriber lagging, dropping superseded event",
				"event_type", event.Type,
				"subscriber_id", sub.id,
			)
			metrics.EventBusDroppedEvents.WithLabelValues(string(event.Type)).Inc()
			return
		}

		// The subscriber consumes concurrently, so eviction races with it;
		// retry the send after each attempt.
		select {
		case evicted := <-sub.events:
			b.logger.Warn("subscriber lagging, evicting oldest buffered event",
				"evicted_type", evicted.Type,
				"event_type", event.Type,
				"subscriber_id", sub.id,
			)
			metrics.EventBusDroppedEvents.WithLabelValues(string(evicted.Type)).Inc()
		default:
		}
	}
}

// Subscribe registers a handler for a specific event type.
func (b *EventBus) Subscribe(eventType EventType, handler EventHandler) func() {
	return b.subscribe(eventType, handler)
}

// SubscribeAll registers a handler for all event types.
func (b *EventBus) SubscribeAll(handler EventHandler) func() {
	return b.subscribe("", handler)
}

func (b *EventBus) subscribe(eventType EventType, handler EventHandler) func() {
	if b.closed.Load() {
		// Return no-op unsubscribe if bus is closed
		return func() {}
	}

	id := b.nextID.Add(1)
	sub := &subscription{
		id:        id,
		eventType: eventType,
		handler:   handler,
		events:    make(chan Event, b.bufferSize),
	}

	b.mu.Lock()
	b.subscriptions[id] = sub
	b.mu.Unlock()

	go b.processEvents(sub)

	return func() {
		b.unsubscribe(id)
	}
}

// processEvents handles events for a single subscription. Ranging over the
// channel delivers everything buffered at close before the goroutine exits.
func (b *EventBus) processEvents(sub *subscription) {
	for event := range sub.events {
		b.safeCall(sub, event)
	}
}

// safeCall invokes the handler with panic recovery.
func (b *EventBus) safeCall(sub *subscription, event Event) {
	defer func() {
		if r := recover(); r != nil {
			b.logger.Error("event handler panicked",
				"subscriber_id", sub.id,
				"event_type", event.Type,
				"panic", r,
			)
		}
	}()

	sub.handler(event)
}

// unsubscribe removes a subscription by ID. The write lock keeps the close
// mutually exclusive with in-flight publishes.
func (b *EventBus) unsubscribe(id uint64) {
	b.mu.Lock()
	defer b.mu.Unlock()

	sub, ok := b.subscriptions[id]
	if !ok {
		return
	}
	delete(b.subscriptions, id)
	close(sub.events)
}

// Close shuts down the event bus and drains pending events.
func (b *EventBus) Close() error {
	if b.closed.Swap(true) {
		// Already closed
		return nil
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	for id, sub := range b.subscriptions {
		delete(b.subscriptions, id)
		close(sub.events)
	}

	return nil
}

// Stats returns current bus statistics.
func (b *EventBus) Stats() BusStats {
	b.mu.RLock()
	defer b.mu.RUnlock()

	return BusStats{
		SubscriberCount: len(b.subscriptions),
		IsClosed:        b.closed.Load(),
	}
}

// BusStats contains event bus statistics.
type BusStats struct {
	SubscriberCount int
	IsClosed        bool
}
