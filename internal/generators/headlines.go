package generators

import (
	"context"
	"fmt"
	"strings"

	"github.com/leefowlercu/flapboard/internal/feeds"
	"github.com/leefowlercu/flapboard/internal/providers"
)

// HeadlineSource fetches recent feed items. *feeds.RSSClient satisfies it.
type HeadlineSource interface {
	GetLatestItems(ctx context.Context, urls []string, limit int) ([]feeds.RSSItem, error)
}

// HeadlinesGenerator condenses the latest feed headlines into one line for
// the board.
type HeadlinesGenerator struct {
	invoker CompletionInvoker
	prompts PromptRenderer
	source  HeadlineSource
	urls    []string
	limit   int
}

// NewHeadlinesGenerator creates a headlines generator over the given feeds.
func NewHeadlinesGenerator(invoker CompletionInvoker, prompts PromptRenderer, source HeadlineSource, urls []string, limit int) *HeadlinesGenerator {
	if limit <= 0 {
		limit = 8
	}
	return &HeadlinesGenerator{
		invoker: invoker,
		prompts: prompts,
		source:  source,
		urls:    urls,
		limit:   limit,
	}
}

// Generate fetches headlines and asks a medium model for a single-line
// digest.
func (g *HeadlinesGenerator) Generate(ctx context.Context, gctx GenerationContext) (*GeneratedContent, error) {
	items, err := g.source.GetLatestItems(ctx, g.urls, g.limit)
	if err != nil {
		return nil, fmt.Errorf("headline fetch failed; %w", err)
	}

	var lines []string
	for _, item := range items {
		lines = append(lines, "- "+item.Title)
	}

	user, err := g.prompts.Render("headlines", promptVars(gctx, map[string]string{
		"headlines": strings.Join(lines, "\n"),
	}))
	if err != nil {
		return nil, err
	}

	result, err := g.invoker.Invoke(ctx, providers.TierMedium, providers.CompletionRequest{
		User:      user,
		MaxTokens: 120,
	})
	if err != nil {
		return nil, fmt.Errorf("headline generation failed; %w", err)
	}

	return &GeneratedContent{
		Text:       cleanCompletion(result.Text),
		OutputMode: OutputText,
		Metadata:   completionMetadata("headlines", result),
	}, nil
}

// Validate checks configuration and the prompt template.
func (g *HeadlinesGenerator) Validate() error {
	if g.invoker == nil {
		return fmt.Errorf("no invoker configured")
	}
	if len(g.urls) == 0 {
		return fmt.Errorf("no feed urls configured")
	}
	if _, err := g.prompts.Render("headlines", promptVars(GenerationContext{}, map[string]string{"headlines": ""})); err != nil {
		return fmt.Errorf("headlines prompt unavailable; %w", err)
	}
	return nil
}
