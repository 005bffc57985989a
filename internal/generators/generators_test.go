package generators

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leefowlercu/flapboard/internal/board"
	"github.com/leefowlercu/flapboard/internal/providers"
)

// fakeInvoker returns a canned completion result.
type fakeInvoker struct {
	result *providers.Result
	err    error
	tier   providers.Tier
	req    providers.CompletionRequest
}

func (f *fakeInvoker) Invoke(_ context.Context, tier providers.Tier, req providers.CompletionRequest) (*providers.Result, error) {
	f.tier = tier
	f.req = req
	if f.err != nil {
		return nil, f.err
	}
	return f.result, nil
}

// fakePrompts renders templates from an in-memory map.
type fakePrompts map[string]string

func (f fakePrompts) Render(name string, vars map[string]string) (string, error) {
	text, ok := f[name]
	if !ok {
		return "", os.ErrNotExist
	}
	return text, nil
}

func aiResult(text string) *providers.Result {
	return &providers.Result{
		Completion: providers.Completion{
			Text:       text,
			Provider:   "anthropic",
			Model:      "claude-haiku-4-5",
			TokensUsed: 42,
		},
	}
}

func TestDoorbellGenerator(t *testing.T) {
	g := NewDoorbellGenerator()
	require.NoError(t, g.Validate())

	content, err := g.Generate(context.Background(), GenerationContext{Timestamp: noon})
	require.NoError(t, err)

	assert.Equal(t, OutputLayout, content.OutputMode)
	require.NotNil(t, content.Layout)
	assert.NoError(t, content.Layout.Validate())
	assert.Equal(t, board.CodeYellow, content.Layout[0][0])
	assert.NotEmpty(t, content.Text)
}

func TestBedtimeGenerator(t *testing.T) {
	invoker := &fakeInvoker{result: aiResult(`"Sleep well, humans."`)}
	g := NewBedtimeGenerator(invoker, fakePrompts{"bedtime": "say goodnight"})
	require.NoError(t, g.Validate())

	content, err := g.Generate(context.Background(), GenerationContext{Timestamp: noon})
	require.NoError(t, err)

	assert.Equal(t, providers.TierLight, invoker.tier)
	assert.Equal(t, "Sleep well, humans.", content.Text)
	assert.Equal(t, OutputText, content.OutputMode)
	assert.Equal(t, "bedtime", content.Metadata[MetaGenerator])
	assert.Equal(t, "anthropic", content.Metadata[MetaProvider])
}

func TestBedtimeGenerator_ValidateFailsWithoutPrompt(t *testing.T) {
	g := NewBedtimeGenerator(&fakeInvoker{}, fakePrompts{})
	assert.Error(t, g.Validate())
}

func TestAIMetadata_FailoverSurfaced(t *testing.T) {
	result := aiResult("take")
	result.FailedOver = true
	result.PrimaryError = "anthropic: rate limited (rate_limit)"
	invoker := &fakeInvoker{result: result}

	g := NewHotTakeGenerator(invoker, fakePrompts{"hottake": "one take please"})
	content, err := g.Generate(context.Background(), GenerationContext{Timestamp: noon})
	require.NoError(t, err)

	assert.Equal(t, providers.TierMedium, invoker.tier)
	assert.Equal(t, true, content.Metadata[MetaFailedOver])
	assert.Contains(t, content.Metadata[MetaPrimaryError], "rate limited")
}

func TestStaticGenerator(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.txt"), []byte("STAY FOCUSED\n"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "b.txt"), []byte("DRINK WATER\n"), 0o644))

	g := NewStaticGenerator(dir)
	require.NoError(t, g.Validate())

	day1 := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	day2 := day1.AddDate(0, 0, 1)

	c1, err := g.Generate(context.Background(), GenerationContext{Timestamp: day1})
	require.NoError(t, err)
	c2, err := g.Generate(context.Background(), GenerationContext{Timestamp: day2})
	require.NoError(t, err)

	assert.NotEqual(t, c1.Text, c2.Text)
	assert.Equal(t, OutputText, c1.OutputMode)

	// Same day is deterministic.
	c1again, err := g.Generate(context.Background(), GenerationContext{Timestamp: day1})
	require.NoError(t, err)
	assert.Equal(t, c1.Text, c1again.Text)
}

func TestStaticGenerator_ValidateFailsOnEmptyDir(t *testing.T) {
	g := NewStaticGenerator(t.TempDir())
	assert.Error(t, g.Validate())
}

func TestHistory(t *testing.T) {
	h := NewHistory()
	assert.True(t, h.LastUsed("x").IsZero())

	h.RecordUse("x", noon)
	assert.Equal(t, noon, h.LastUsed("x"))
}

func TestCleanCompletion(t *testing.T) {
	assert.Equal(t, "HELLO", cleanCompletion(`  "HELLO"  `))
	assert.Equal(t, "HELLO", cleanCompletion("'HELLO'"))
	assert.Equal(t, "A \"QUOTED\" WORD", cleanCompletion(`A "QUOTED" WORD`))
}
