package generators

import (
	"context"
	"fmt"

	"github.com/leefowlercu/flapboard/internal/providers"
)

// BedtimeGenerator produces a short wind-down message during the evening
// window. It is gated behind the sleep-mode breaker so the household can
// turn it off.
type BedtimeGenerator struct {
	invoker CompletionInvoker
	prompts PromptRenderer
}

// NewBedtimeGenerator creates a bedtime generator.
func NewBedtimeGenerator(invoker CompletionInvoker, prompts PromptRenderer) *BedtimeGenerator {
	return &BedtimeGenerator{invoker: invoker, prompts: prompts}
}

// Generate asks a light model for a calm goodnight line.
func (g *BedtimeGenerator) Generate(ctx context.Context, gctx GenerationContext) (*GeneratedContent, error) {
	user, err := g.prompts.Render("bedtime", promptVars(gctx, nil))
	if err != nil {
		return nil, err
	}

	result, err := g.invoker.Invoke(ctx, providers.TierLight, providers.CompletionRequest{
		User:      user,
		MaxTokens: 120,
	})
	if err != nil {
		return nil, fmt.Errorf("bedtime generation failed; %w", err)
	}

	return &GeneratedContent{
		Text:       cleanCompletion(result.Text),
		OutputMode: OutputText,
		Metadata:   completionMetadata("bedtime", result),
	}, nil
}

// Validate checks that the prompt template loads.
func (g *BedtimeGenerator) Validate() error {
	if g.invoker == nil {
		return fmt.Errorf("no invoker configured")
	}
	if _, err := g.prompts.Render("bedtime", promptVars(GenerationContext{}, nil)); err != nil {
		return fmt.Errorf("bedtime prompt unavailable; %w", err)
	}
	return nil
}
