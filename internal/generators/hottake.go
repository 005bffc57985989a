package generators

import (
	"context"
	"fmt"

	"github.com/leefowlercu/flapboard/internal/providers"
)

// HotTakeGenerator produces a short contrarian one-liner for the regular
// rotation.
type HotTakeGenerator struct {
	invoker CompletionInvoker
	prompts PromptRenderer
}

// NewHotTakeGenerator creates a hot-take generator.
func NewHotTakeGenerator(invoker CompletionInvoker, prompts PromptRenderer) *HotTakeGenerator {
	return &HotTakeGenerator{invoker: invoker, prompts: prompts}
}

// Generate asks a medium model for one opinionated line.
func (g *HotTakeGenerator) Generate(ctx context.Context, gctx GenerationContext) (*GeneratedContent, error) {
	user, err := g.prompts.Render("hottake", promptVars(gctx, nil))
	if err != nil {
		return nil, err
	}

	result, err := g.invoker.Invoke(ctx, providers.TierMedium, providers.CompletionRequest{
		User:      user,
		MaxTokens: 120,
	})
	if err != nil {
		return nil, fmt.Errorf("hot take generation failed; %w", err)
	}

	return &GeneratedContent{
		Text:       cleanCompletion(result.Text),
		OutputMode: OutputText,
		Metadata:   completionMetadata("hottake", result),
	}, nil
}

// Validate checks that the prompt template loads.
func (g *HotTakeGenerator) Validate() error {
	if g.invoker == nil {
		return fmt.Errorf("no invoker configured")
	}
	if _, err := g.prompts.Render("hottake", promptVars(GenerationContext{}, nil)); err != nil {
		return fmt.Errorf("hottake prompt unavailable; %w", err)
	}
	return nil
}
