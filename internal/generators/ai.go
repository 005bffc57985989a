package generators

import (
	"context"
	"strings"

	"github.com/leefowlercu/flapboard/internal/providers"
)

// CompletionInvoker is the AI surface AI-backed generators call through.
// *providers.Invoker satisfies it; tests substitute fakes.
type CompletionInvoker interface {
	Invoke(ctx context.Context, tier providers.Tier, req providers.CompletionRequest) (*providers.Result, error)
}

// PromptRenderer loads and renders prompt templates. *prompts.Loader
// satisfies it.
type PromptRenderer interface {
	Render(name string, vars map[string]string) (string, error)
}

// promptVars builds the standard template variables for a refresh.
func promptVars(gctx GenerationContext, extra map[string]string) map[string]string {
	vars := map[string]string{
		"personality": gctx.Personality,
		"time":        gctx.Timestamp.Format("15:04"),
		"day":         gctx.Timestamp.Format("Monday"),
	}
	if gctx.Personality == "" {
		vars["personality"] = "a dry, observant household companion"
	}
	for k, v := range extra {
		vars[k] = v
	}
	return vars
}

// cleanCompletion strips quoting and whitespace AI models wrap around short
// display copy.
func cleanCompletion(text string) string {
	text = strings.TrimSpace(text)
	text = strings.Trim(text, `"'`)
	return strings.TrimSpace(text)
}
