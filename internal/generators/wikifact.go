package generators

import (
	"context"
	"fmt"

	"github.com/leefowlercu/flapboard/internal/feeds"
	"github.com/leefowlercu/flapboard/internal/providers"
)

// SummarySource fetches random article summaries. *feeds.WikipediaClient
// satisfies it.
type SummarySource interface {
	GetRandomArticleSummary(ctx context.Context, maxLen int) (*feeds.ArticleSummary, error)
}

// WikiFactGenerator riffs on a random encyclopedia article.
type WikiFactGenerator struct {
	invoker CompletionInvoker
	prompts PromptRenderer
	source  SummarySource
}

// summaryMaxLen keeps the prompt small; the board only fits a line or two
// anyway.
const summaryMaxLen = 400

// NewWikiFactGenerator creates a wiki-fact generator.
func NewWikiFactGenerator(invoker CompletionInvoker, prompts PromptRenderer, source SummarySource) *WikiFactGenerator {
	return &WikiFactGenerator{invoker: invoker, prompts: prompts, source: source}
}

// Generate fetches a random summary and asks a light model for a short fact.
func (g *WikiFactGenerator) Generate(ctx context.Context, gctx GenerationContext) (*GeneratedContent, error) {
	summary, err := g.source.GetRandomArticleSummary(ctx, summaryMaxLen)
	if err != nil {
		return nil, fmt.Errorf("summary fetch failed; %w", err)
	}

	user, err := g.prompts.Render("wikifact", promptVars(gctx, map[string]string{
		"title":   summary.Title,
		"extract": summary.Extract,
	}))
	if err != nil {
		return nil, err
	}

	result, err := g.invoker.Invoke(ctx, providers.TierLight, providers.CompletionRequest{
		User:      user,
		MaxTokens: 120,
	})
	if err != nil {
		return nil, fmt.Errorf("wiki fact generation failed; %w", err)
	}

	return &GeneratedContent{
		Text:       cleanCompletion(result.Text),
		OutputMode: OutputText,
		Metadata:   completionMetadata("wikifact", result),
	}, nil
}

// Validate checks configuration and the prompt template.
func (g *WikiFactGenerator) Validate() error {
	if g.invoker == nil {
		return fmt.Errorf("no invoker configured")
	}
	if g.source == nil {
		return fmt.Errorf("no summary source configured")
	}
	vars := map[string]string{"title": "", "extract": ""}
	if _, err := g.prompts.Render("wikifact", promptVars(GenerationContext{}, vars)); err != nil {
		return fmt.Errorf("wikifact prompt unavailable; %w", err)
	}
	return nil
}
