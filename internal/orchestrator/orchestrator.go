// Package orchestrator runs the end-to-end content pipeline: gate, fetch,
// select, generate, decorate, send, cache.
package orchestrator

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/leefowlercu/flapboard/internal/board"
	"github.com/leefowlercu/flapboard/internal/breaker"
	"github.com/leefowlercu/flapboard/internal/datasource"
	"github.com/leefowlercu/flapboard/internal/events"
	"github.com/leefowlercu/flapboard/internal/frame"
	"github.com/leefowlercu/flapboard/internal/generators"
	"github.com/leefowlercu/flapboard/internal/logging"
	"github.com/leefowlercu/flapboard/internal/metrics"
	"github.com/leefowlercu/flapboard/internal/storage"
)

// Display is the transport surface the orchestrator sends frames through.
type Display interface {
	SendText(ctx context.Context, text string) error
	SendLayout(ctx context.Context, grid board.Grid) error
}

// DataProvider pre-fetches companion data for major refreshes.
type DataProvider interface {
	FetchData(ctx context.Context) datasource.ContentData
}

// ContentSelector picks one generator per major refresh.
type ContentSelector interface {
	Select(ctx context.Context, gctx generators.GenerationContext) (generators.Registration, error)
}

// CircuitGate is the breaker surface the orchestrator needs.
type CircuitGate interface {
	IsCircuitOpen(ctx context.Context, id string) bool
}

// AuditStore records delivered frames. *storage.Storage satisfies it.
type AuditStore interface {
	InsertContent(ctx context.Context, c storage.ContentRow) error
}

// cachedEntry is the single content slot plus what minor refreshes need to
// re-send it.
type cachedEntry struct {
	content generators.GeneratedContent
	reg     generators.Registration
	data    *datasource.ContentData
}

// Orchestrator serializes refreshes and owns the content cache. One
// GenerateAndSend runs at a time; callers enqueue, they do not run
// generation inline.
type Orchestrator struct {
	gate      CircuitGate
	data      DataProvider
	selector  ContentSelector
	retry     *RetryEngine
	decorator *frame.Decorator
	display   Display
	history   *generators.History
	registry  *generators.Registry

	fallbackID string
	audit      AuditStore
	bus        *events.EventBus
	log        *slog.Logger
	tlog       *logging.ThrottledLogger
	now        func() time.Time

	mu    sync.Mutex
	cache *cachedEntry
}

// Option configures the Orchestrator.
type Option func(*Orchestrator)

// WithAuditStore enables content audit rows.
func WithAuditStore(store AuditStore) Option {
	return func(o *Orchestrator) {
		o.audit = store
	}
}

// WithEventBus publishes ContentSent events after delivery.
func WithEventBus(bus *events.EventBus) Option {
	return func(o *Orchestrator) {
		o.bus = bus
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(o *Orchestrator) {
		o.log = logger
	}
}

// WithThrottledLogger sets the throttled logger used for repeating skips
// and failures.
func WithThrottledLogger(tlog *logging.ThrottledLogger) Option {
	return func(o *Orchestrator) {
		o.tlog = tlog
	}
}

// WithClock overrides the time source. Used by tests.
func WithClock(now func() time.Time) Option {
	return func(o *Orchestrator) {
		o.now = now
	}
}

// WithFallbackGenerator names the registration used when generation fails
// terminally. Defaults to "static".
func WithFallbackGenerator(id string) Option {
	return func(o *Orchestrator) {
		o.fallbackID = id
	}
}

// New creates an orchestrator.
func New(
	gate CircuitGate,
	data DataProvider,
	selector ContentSelector,
	retry *RetryEngine,
	decorator *frame.Decorator,
	display Display,
	registry *generators.Registry,
	history *generators.History,
	opts ...Option,
) *Orchestrator {
	o := &Orchestrator{
		gate:       gate,
		data:       data,
		selector:   selector,
		retry:      retry,
		decorator:  decorator,
		display:    display,
		registry:   registry,
		history:    history,
		fallbackID: "static",
		log:        slog.Default(),
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(o)
	}
	if o.tlog == nil {
		o.tlog = logging.NewThrottledLogger(o.log)
	}
	return o
}

// GenerateAndSend runs one refresh. Concurrent calls are serialized; the
// pipeline within a call is strictly sequential.
func (o *Orchestrator) GenerateAndSend(ctx context.Context, gctx generators.GenerationContext) error {
	o.mu.Lock()
	defer o.mu.Unlock()

	updateType := string(gctx.UpdateType)

	if o.gate.IsCircuitOpen(ctx, breaker.CircuitMaster) {
		o.tlog.Warn("orchestrator.master_off", "master circuit off, skipping refresh", "update_type", updateType)
		metrics.RefreshesTotal.WithLabelValues(updateType, "skipped").Inc()
		return nil
	}

	if gctx.UpdateType == generators.UpdateMinor {
		err := o.minorRefresh(ctx, gctx)
		if err != nil {
			metrics.RefreshesTotal.WithLabelValues(updateType, "failed").Inc()
		} else {
			metrics.RefreshesTotal.WithLabelValues(updateType, "ok").Inc()
		}
		return err
	}

	err := o.majorRefresh(ctx, gctx)
	if err != nil {
		metrics.RefreshesTotal.WithLabelValues(updateType, "failed").Inc()
	} else {
		metrics.RefreshesTotal.WithLabelValues(updateType, "ok").Inc()
	}
	return err
}

// minorRefresh re-sends cached content with a fresh timestamp. Layout
// content is re-sent as-is; text content is re-decorated.
func (o *Orchestrator) minorRefresh(ctx context.Context, gctx generators.GenerationContext) error {
	if o.cache == nil {
		return fmt.Errorf("no cached content")
	}

	entry := o.cache
	if entry.content.OutputMode == generators.OutputLayout {
		if err := o.display.SendLayout(ctx, *entry.content.Layout); err != nil {
			return fmt.Errorf("failed to re-send cached layout; %w", err)
		}
		return nil
	}

	result := o.decorator.Decorate(entry.content.Text, gctx.Timestamp, entry.data, entry.reg.FormatOptions)
	if err := o.display.SendLayout(ctx, result.Layout); err != nil {
		return fmt.Errorf("failed to send refreshed frame; %w", err)
	}
	return nil
}

// majorRefresh runs the full pipeline and updates the cache on success.
func (o *Orchestrator) majorRefresh(ctx context.Context, gctx generators.GenerationContext) error {
	data := o.data.FetchData(ctx)
	gctx.Data = &data

	reg, err := o.selector.Select(ctx, gctx)
	if err != nil {
		return fmt.Errorf("selection failed; %w", err)
	}

	content, err := o.retry.GenerateWithRetry(ctx, reg, gctx)
	if err != nil {
		o.log.Warn("generation failed, trying fallback", "generator", reg.ID, "error", err)
		reg, content, err = o.runFallback(ctx, gctx, err)
		if err != nil {
			o.tlog.Error("orchestrator.generation_failed", "refresh failed, display unchanged", "error", err)
			return err
		}
	}

	if err := o.send(ctx, reg, content, gctx); err != nil {
		o.tlog.Error("orchestrator.transport_failed", "failed to deliver frame", "error", err)
		return err
	}

	o.cache = &cachedEntry{content: *content, reg: reg, data: gctx.Data}
	o.history.RecordUse(reg.ID, gctx.Timestamp)
	o.recordAudit(ctx, reg, content, gctx)
	o.publishSent(ctx, reg, content, gctx)
	return nil
}

// runFallback gives the static fallback generator one attempt.
func (o *Orchestrator) runFallback(ctx context.Context, gctx generators.GenerationContext, cause error) (generators.Registration, *generators.GeneratedContent, error) {
	reg, ok := o.registry.GetByID(o.fallbackID)
	if !ok {
		return generators.Registration{}, nil, fmt.Errorf("fallback generator %q not registered; %w", o.fallbackID, cause)
	}

	content, err := reg.Generator.Generate(ctx, gctx)
	if err != nil {
		return generators.Registration{}, nil, fmt.Errorf("fallback generator failed; %w", err)
	}
	if err := validateContent(content); err != nil {
		return generators.Registration{}, nil, fmt.Errorf("fallback content invalid; %w", err)
	}
	return reg, content, nil
}

// send decorates when required and delivers the frame.
func (o *Orchestrator) send(ctx context.Context, reg generators.Registration, content *generators.GeneratedContent, gctx generators.GenerationContext) error {
	switch {
	case content.OutputMode == generators.OutputLayout:
		return o.display.SendLayout(ctx, *content.Layout)
	case reg.ApplyFrame:
		result := o.decorator.Decorate(content.Text, gctx.Timestamp, gctx.Data, reg.FormatOptions)
		for _, warn := range result.Warnings {
			o.log.Warn("frame degraded", "generator", reg.ID, "warning", warn)
		}
		return o.display.SendLayout(ctx, result.Layout)
	default:
		return o.display.SendText(ctx, content.Text)
	}
}

func (o *Orchestrator) recordAudit(ctx context.Context, reg generators.Registration, content *generators.GeneratedContent, gctx generators.GenerationContext) {
	if o.audit == nil {
		return
	}
	provider, _ := content.Metadata[generators.MetaProvider].(string)
	model, _ := content.Metadata[generators.MetaModel].(string)
	err := o.audit.InsertContent(ctx, storage.ContentRow{
		Generator:  reg.ID,
		Provider:   provider,
		Model:      model,
		UpdateType: string(gctx.UpdateType),
		OutputMode: string(content.OutputMode),
		Text:       content.Text,
		CreatedAt:  o.now(),
	})
	if err != nil {
		o.tlog.Warn("orchestrator.audit_failed", "failed to record content audit row", "error", err)
	}
}

func (o *Orchestrator) publishSent(ctx context.Context, reg generators.Registration, content *generators.GeneratedContent, gctx generators.GenerationContext) {
	if o.bus == nil {
		return
	}
	err := o.bus.Publish(ctx, events.NewEvent(events.ContentSent, events.ContentSentPayload{
		Generator:  reg.ID,
		UpdateType: string(gctx.UpdateType),
		Text:       content.Text,
	}))
	if err != nil {
		o.log.Debug("content sent event not published", "error", err)
	}
}

// GetCachedContent returns the last cached major result, or nil.
func (o *Orchestrator) GetCachedContent() *generators.GeneratedContent {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.cache == nil {
		return nil
	}
	content := o.cache.content
	return &content
}

// ClearCache empties the content cache.
func (o *Orchestrator) ClearCache() {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.cache = nil
}
