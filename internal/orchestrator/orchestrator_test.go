package orchestrator

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leefowlercu/flapboard/internal/board"
	"github.com/leefowlercu/flapboard/internal/breaker"
	"github.com/leefowlercu/flapboard/internal/datasource"
	"github.com/leefowlercu/flapboard/internal/frame"
	"github.com/leefowlercu/flapboard/internal/generators"
	"github.com/leefowlercu/flapboard/internal/providers"
)

var testTime = time.Date(2024, 1, 15, 10, 30, 0, 0, time.UTC) // a Monday

// spyDisplay records every frame it is asked to send.
type spyDisplay struct {
	grids []board.Grid
	texts []string
	err   error
}

func (d *spyDisplay) SendText(_ context.Context, text string) error {
	if d.err != nil {
		return d.err
	}
	d.texts = append(d.texts, text)
	return nil
}

func (d *spyDisplay) SendLayout(_ context.Context, grid board.Grid) error {
	if d.err != nil {
		return d.err
	}
	d.grids = append(d.grids, grid)
	return nil
}

// stubData returns fixed companion data.
type stubData struct{ data datasource.ContentData }

func (s stubData) FetchData(context.Context) datasource.ContentData { return s.data }

// stubSelector returns a fixed registration.
type stubSelector struct {
	reg generators.Registration
	err error
}

func (s stubSelector) Select(context.Context, generators.GenerationContext) (generators.Registration, error) {
	return s.reg, s.err
}

// openCircuits reports the listed circuits as off.
type openCircuits map[string]bool

func (o openCircuits) IsCircuitOpen(_ context.Context, id string) bool { return o[id] }

// scriptedGenerator returns queued results in order.
type scriptedGenerator struct {
	results []func() (*generators.GeneratedContent, error)
	calls   int
}

func (g *scriptedGenerator) Generate(context.Context, generators.GenerationContext) (*generators.GeneratedContent, error) {
	i := g.calls
	g.calls++
	if i >= len(g.results) {
		i = len(g.results) - 1
	}
	return g.results[i]()
}

func (g *scriptedGenerator) Validate() error { return nil }

func textContent(text string) *generators.GeneratedContent {
	return &generators.GeneratedContent{
		Text:       text,
		OutputMode: generators.OutputText,
		Metadata:   map[string]any{generators.MetaProvider: "anthropic", generators.MetaModel: "claude-sonnet-4-5"},
	}
}

func testData() datasource.ContentData {
	colors := [6]int{63, 64, 65, 66, 67, 68}
	return datasource.ContentData{
		Weather:   &datasource.WeatherData{Temperature: 72, Units: "imperial", Condition: "Sunny"},
		ColorBar:  &colors,
		FetchedAt: testTime,
	}
}

type fixture struct {
	orch     *Orchestrator
	display  *spyDisplay
	registry *generators.Registry
	history  *generators.History
	gate     openCircuits
}

func newFixture(t *testing.T, gen generators.Generator, opts ...Option) *fixture {
	t.Helper()

	registry := generators.NewRegistry()
	reg := generators.Registration{
		ID:         "hottake",
		Priority:   generators.P2,
		ApplyFrame: true,
		Generator:  gen,
	}
	require.NoError(t, registry.Register(reg))

	fallback := &scriptedGenerator{results: []func() (*generators.GeneratedContent, error){
		func() (*generators.GeneratedContent, error) { return textContent("STAY FOCUSED"), nil },
	}}
	require.NoError(t, registry.Register(generators.Registration{
		ID:         "static",
		Priority:   generators.P3,
		ApplyFrame: true,
		Generator:  fallback,
	}))

	display := &spyDisplay{}
	history := generators.NewHistory()
	gate := openCircuits{}

	orch := New(
		gate,
		stubData{data: testData()},
		stubSelector{reg: reg},
		NewRetryEngine(3, nil),
		frame.NewDecorator(board.VariantBlack),
		display,
		registry,
		history,
		opts...,
	)
	return &fixture{orch: orch, display: display, registry: registry, history: history, gate: gate}
}

func majorCtx() generators.GenerationContext {
	return generators.GenerationContext{
		UpdateType: generators.UpdateMajor,
		Timestamp:  testTime,
		Event:      "vestaboard_refresh",
	}
}

func minorCtx(at time.Time) generators.GenerationContext {
	return generators.GenerationContext{UpdateType: generators.UpdateMinor, Timestamp: at}
}

func TestOrchestrator_HappyPathMajor(t *testing.T) {
	gen := &scriptedGenerator{results: []func() (*generators.GeneratedContent, error){
		func() (*generators.GeneratedContent, error) { return textContent("PINEAPPLE BELONGS\nON PIZZA"), nil },
	}}
	f := newFixture(t, gen)

	require.NoError(t, f.orch.GenerateAndSend(context.Background(), majorCtx()))

	require.Len(t, f.display.grids, 1)
	grid := f.display.grids[0]
	assert.NoError(t, grid.Validate())
	assert.Equal(t, 68, grid[5][21])

	cached := f.orch.GetCachedContent()
	require.NotNil(t, cached)
	assert.Equal(t, "PINEAPPLE BELONGS\nON PIZZA", cached.Text)
	assert.False(t, f.history.LastUsed("hottake").IsZero())
}

func TestOrchestrator_MasterGateSkips(t *testing.T) {
	gen := &scriptedGenerator{results: []func() (*generators.GeneratedContent, error){
		func() (*generators.GeneratedContent, error) { return textContent("NEVER"), nil },
	}}
	f := newFixture(t, gen)
	f.gate[breaker.CircuitMaster] = true

	require.NoError(t, f.orch.GenerateAndSend(context.Background(), majorCtx()))

	assert.Zero(t, gen.calls)
	assert.Empty(t, f.display.grids)
	assert.Nil(t, f.orch.GetCachedContent())
}

func TestOrchestrator_MinorWithNoCacheFails(t *testing.T) {
	f := newFixture(t, &scriptedGenerator{results: []func() (*generators.GeneratedContent, error){
		func() (*generators.GeneratedContent, error) { return textContent("X"), nil },
	}})

	err := f.orch.GenerateAndSend(context.Background(), minorCtx(testTime))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no cached content")
}

func TestOrchestrator_MinorTextRedecoratesWithFreshTimestamp(t *testing.T) {
	gen := &scriptedGenerator{results: []func() (*generators.GeneratedContent, error){
		func() (*generators.GeneratedContent, error) { return textContent("STAY FOCUSED"), nil },
	}}
	f := newFixture(t, gen)

	require.NoError(t, f.orch.GenerateAndSend(context.Background(), majorCtx()))
	require.Len(t, f.display.grids, 1)

	later := testTime.Add(7 * time.Minute)
	require.NoError(t, f.orch.GenerateAndSend(context.Background(), minorCtx(later)))
	require.Len(t, f.display.grids, 2)

	// The generator ran only once; the second frame differs only in its
	// info row time.
	assert.Equal(t, 1, gen.calls)
	first, second := f.display.grids[0], f.display.grids[1]
	assert.Equal(t, first[0], second[0])
	assert.NotEqual(t, first[5], second[5])

	// Cache unchanged.
	cached := f.orch.GetCachedContent()
	require.NotNil(t, cached)
	assert.Equal(t, "STAY FOCUSED", cached.Text)
}

func TestOrchestrator_MinorLayoutResendsWithoutDecoration(t *testing.T) {
	var layout board.Grid
	layout[0][0] = board.CodeRed
	layoutContent := &generators.GeneratedContent{
		Text:       "DING DONG",
		OutputMode: generators.OutputLayout,
		Layout:     &layout,
	}
	gen := &scriptedGenerator{results: []func() (*generators.GeneratedContent, error){
		func() (*generators.GeneratedContent, error) { return layoutContent, nil },
	}}
	f := newFixture(t, gen)

	require.NoError(t, f.orch.GenerateAndSend(context.Background(), majorCtx()))
	require.NoError(t, f.orch.GenerateAndSend(context.Background(), minorCtx(testTime.Add(time.Minute))))

	require.Len(t, f.display.grids, 2)

	// The re-sent grid is byte-identical to the cached layout. A decorated
	// frame would have an info bar in row 5.
	assert.Equal(t, f.display.grids[0], f.display.grids[1])
	assert.Equal(t, board.CodeBlank, f.display.grids[1][5][0])
}

func TestOrchestrator_TerminalFailureUsesFallbackOnce(t *testing.T) {
	gen := &scriptedGenerator{results: []func() (*generators.GeneratedContent, error){
		func() (*generators.GeneratedContent, error) {
			return nil, providers.NewError(providers.KindInvalidRequest, "anthropic", "bad prompt", nil)
		},
	}}
	f := newFixture(t, gen)

	require.NoError(t, f.orch.GenerateAndSend(context.Background(), majorCtx()))

	assert.Equal(t, 1, gen.calls)
	require.Len(t, f.display.grids, 1)

	cached := f.orch.GetCachedContent()
	require.NotNil(t, cached)
	assert.Equal(t, "STAY FOCUSED", cached.Text)
	assert.False(t, f.history.LastUsed("static").IsZero())
}

func TestOrchestrator_RetryableErrorRetriesThenSucceeds(t *testing.T) {
	gen := &scriptedGenerator{results: []func() (*generators.GeneratedContent, error){
		func() (*generators.GeneratedContent, error) {
			return nil, providers.NewError(providers.KindTransient, "anthropic", "timeout", nil)
		},
		func() (*generators.GeneratedContent, error) { return textContent("SECOND TRY"), nil },
	}}
	f := newFixture(t, gen)

	require.NoError(t, f.orch.GenerateAndSend(context.Background(), majorCtx()))

	assert.Equal(t, 2, gen.calls)
	cached := f.orch.GetCachedContent()
	require.NotNil(t, cached)
	assert.Equal(t, "SECOND TRY", cached.Text)
}

func TestOrchestrator_TransportFailureLeavesCacheEmpty(t *testing.T) {
	gen := &scriptedGenerator{results: []func() (*generators.GeneratedContent, error){
		func() (*generators.GeneratedContent, error) { return textContent("DOOMED"), nil },
	}}
	f := newFixture(t, gen)
	f.display.err = errors.New("device unreachable")

	err := f.orch.GenerateAndSend(context.Background(), majorCtx())
	require.Error(t, err)
	assert.Nil(t, f.orch.GetCachedContent())
	assert.True(t, f.history.LastUsed("hottake").IsZero())
}

func TestOrchestrator_ClearCache(t *testing.T) {
	gen := &scriptedGenerator{results: []func() (*generators.GeneratedContent, error){
		func() (*generators.GeneratedContent, error) { return textContent("X"), nil },
	}}
	f := newFixture(t, gen)

	require.NoError(t, f.orch.GenerateAndSend(context.Background(), majorCtx()))
	require.NotNil(t, f.orch.GetCachedContent())

	f.orch.ClearCache()
	assert.Nil(t, f.orch.GetCachedContent())
}

func TestRetryEngine_ValidationFailureConsumesAttempts(t *testing.T) {
	gen := &scriptedGenerator{results: []func() (*generators.GeneratedContent, error){
		func() (*generators.GeneratedContent, error) {
			return &generators.GeneratedContent{Text: "", OutputMode: generators.OutputText}, nil
		},
		func() (*generators.GeneratedContent, error) { return textContent("VALID NOW"), nil },
	}}
	engine := NewRetryEngine(3, nil)

	content, err := engine.GenerateWithRetry(context.Background(),
		generators.Registration{ID: "g", Generator: gen},
		generators.GenerationContext{Timestamp: testTime})
	require.NoError(t, err)
	assert.Equal(t, "VALID NOW", content.Text)
	assert.Equal(t, 2, gen.calls)
}

func TestRetryEngine_ExhaustsAttempts(t *testing.T) {
	gen := &scriptedGenerator{results: []func() (*generators.GeneratedContent, error){
		func() (*generators.GeneratedContent, error) {
			return nil, providers.NewError(providers.KindOverloaded, "anthropic", "busy", nil)
		},
	}}
	engine := NewRetryEngine(3, nil)

	_, err := engine.GenerateWithRetry(context.Background(),
		generators.Registration{ID: "g", Generator: gen},
		generators.GenerationContext{Timestamp: testTime})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "exhausted 3 attempts")
	assert.Equal(t, 3, gen.calls)
}

func TestValidateContent(t *testing.T) {
	assert.Error(t, validateContent(nil))
	assert.Error(t, validateContent(&generators.GeneratedContent{OutputMode: generators.OutputText}))
	assert.NoError(t, validateContent(textContent("OK")))

	long := make([]byte, textCapacity+1)
	for i := range long {
		long[i] = 'A'
	}
	assert.Error(t, validateContent(textContent(string(long))))

	var grid board.Grid
	layout := &generators.GeneratedContent{Text: "x", OutputMode: generators.OutputLayout, Layout: &grid}
	assert.NoError(t, validateContent(layout))

	grid[1][1] = 999
	assert.Error(t, validateContent(layout))

	assert.Error(t, validateContent(&generators.GeneratedContent{Text: "x", OutputMode: generators.OutputLayout}))
}
