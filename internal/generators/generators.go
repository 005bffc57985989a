// Package generators defines the content generator contract, the ordered
// registry, usage history, and the priority-based selector that picks one
// generator per refresh.
package generators

import (
	"context"
	"time"

	"github.com/leefowlercu/flapboard/internal/board"
	"github.com/leefowlercu/flapboard/internal/datasource"
	"github.com/leefowlercu/flapboard/internal/frame"
	"github.com/leefowlercu/flapboard/internal/providers"
)

// UpdateType distinguishes full regenerations from timestamp refreshes.
type UpdateType string

const (
	UpdateMajor UpdateType = "major"
	UpdateMinor UpdateType = "minor"
)

// GenerationContext is the envelope passed through the pipeline. It is
// created per refresh and not mutated after creation.
type GenerationContext struct {
	UpdateType UpdateType
	Timestamp  time.Time

	// Event names the automation event or trigger that caused a major
	// refresh. Empty for scheduled refreshes.
	Event string

	// EventData carries the raw event payload for reactive generators.
	EventData map[string]any

	// Personality is substituted into prompt templates.
	Personality string

	// Data is the pre-fetched companion data. Nil when the fetch degraded
	// entirely.
	Data *datasource.ContentData
}

// OutputMode is how a generator's product should be handled downstream.
type OutputMode string

const (
	// OutputText requires frame decoration before sending.
	OutputText OutputMode = "text"

	// OutputLayout is a self-contained grid, sent as-is.
	OutputLayout OutputMode = "layout"
)

// Metadata keys stamped onto generated content.
const (
	MetaGenerator    = "generator"
	MetaProvider     = "provider"
	MetaModel        = "model"
	MetaTokensUsed   = "tokens_used"
	MetaFailedOver   = "failed_over"
	MetaPrimaryError = "primary_error"
)

// GeneratedContent is a generator's product. Text is always set; in layout
// mode it is kept for logging and minor-refresh gating.
type GeneratedContent struct {
	Text       string
	OutputMode OutputMode
	Layout     *board.Grid
	Metadata   map[string]any
}

// Generator produces display content.
type Generator interface {
	// Generate produces content for one refresh.
	Generate(ctx context.Context, gctx GenerationContext) (*GeneratedContent, error)

	// Validate checks that the generator is usable. Called at registration.
	Validate() error
}

// Priority orders generators from reactive to fallback.
type Priority int

const (
	// P0 generators react to a matching automation event.
	P0 Priority = iota

	// P1 generators run inside a time-of-day window.
	P1

	// P2 generators rotate through the regular schedule.
	P2

	// P3 is the always-available static fallback.
	P3
)

func (p Priority) String() string {
	switch p {
	case P0:
		return "P0"
	case P1:
		return "P1"
	case P2:
		return "P2"
	default:
		return "P3"
	}
}

// TimeWindow is an inclusive daily hour range. End < Start wraps midnight.
type TimeWindow struct {
	StartHour int
	EndHour   int
}

// Contains reports whether t falls inside the window.
func (w TimeWindow) Contains(t time.Time) bool {
	hour := t.Hour()
	if w.StartHour <= w.EndHour {
		return hour >= w.StartHour && hour <= w.EndHour
	}
	return hour >= w.StartHour || hour <= w.EndHour
}

// Registration describes one generator in the registry.
type Registration struct {
	ID   string
	Name string

	Priority Priority

	// Tier is the model capability class for AI-backed generators.
	Tier providers.Tier

	// ApplyFrame controls whether text output is decorated. Layout output
	// is never decorated.
	ApplyFrame    bool
	FormatOptions frame.FormatOptions

	// EventPattern gates P0 generators on the triggering event name.
	// Exact match, or glob when it contains '*'.
	EventPattern string

	// GateCircuit names a manual breaker that must not be off for this
	// generator to be eligible. Empty means ungated.
	GateCircuit string

	// Window gates P1 generators on time of day.
	Window *TimeWindow

	// Cooldown is the minimum gap between uses of a P1 generator. Zero
	// means DefaultP1Cooldown.
	Cooldown time.Duration

	Generator Generator
}

// DefaultP1Cooldown keeps a windowed generator from repeating every cycle
// inside its window.
const DefaultP1Cooldown = 6 * time.Hour

func (r Registration) cooldown() time.Duration {
	if r.Cooldown > 0 {
		return r.Cooldown
	}
	return DefaultP1Cooldown
}

// completionMetadata builds the standard metadata map for AI-backed output.
func completionMetadata(generatorID string, result *providers.Result) map[string]any {
	meta := map[string]any{
		MetaGenerator:  generatorID,
		MetaProvider:   result.Provider,
		MetaModel:      result.Model,
		MetaTokensUsed: result.TokensUsed,
	}
	if result.FailedOver {
		meta[MetaFailedOver] = true
		meta[MetaPrimaryError] = result.PrimaryError
	}
	return meta
}
