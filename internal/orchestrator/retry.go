package orchestrator

import (
	"context"
	"fmt"
	"log/slog"
	"unicode/utf8"

	"github.com/leefowlercu/flapboard/internal/frame"
	"github.com/leefowlercu/flapboard/internal/generators"
	"github.com/leefowlercu/flapboard/internal/metrics"
	"github.com/leefowlercu/flapboard/internal/providers"
)

// textCapacity is the most glyphs a decorated frame can hold: the text rows
// above the info bar.
const textCapacity = frame.DefaultMaxLines * frame.DefaultMaxCharsPerLine

// DefaultMaxAttempts bounds generator invocations per refresh.
const DefaultMaxAttempts = 3

// RetryEngine invokes a generator with bounded retries and per-attempt
// output validation. It knows nothing about providers; provider failover
// happens below it and surfaces only through content metadata.
type RetryEngine struct {
	maxAttempts int
	log         *slog.Logger
}

// NewRetryEngine creates a retry engine. Attempts below one fall back to
// the default.
func NewRetryEngine(maxAttempts int, logger *slog.Logger) *RetryEngine {
	if maxAttempts < 1 {
		maxAttempts = DefaultMaxAttempts
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &RetryEngine{maxAttempts: maxAttempts, log: logger}
}

// GenerateWithRetry runs the generator up to maxAttempts times. Validation
// failures and retryable provider errors consume attempts; terminal errors
// return immediately.
func (e *RetryEngine) GenerateWithRetry(ctx context.Context, reg generators.Registration, gctx generators.GenerationContext) (*generators.GeneratedContent, error) {
	var lastErr error

	for attempt := 1; attempt <= e.maxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		content, err := reg.Generator.Generate(ctx, gctx)
		if err != nil {
			metrics.GenerationAttemptsTotal.WithLabelValues(reg.ID, "error").Inc()
			if !providers.Retryable(err) {
				return nil, fmt.Errorf("generator %q failed terminally; %w", reg.ID, err)
			}
			lastErr = err
			e.log.Warn("generation attempt failed",
				"generator", reg.ID,
				"attempt", attempt,
				"error", err)
			continue
		}

		if err := validateContent(content); err != nil {
			metrics.GenerationAttemptsTotal.WithLabelValues(reg.ID, "invalid").Inc()
			lastErr = providers.NewError(providers.KindValidation, "", err.Error(), err)
			e.log.Warn("generated content failed validation",
				"generator", reg.ID,
				"attempt", attempt,
				"error", err)
			continue
		}

		metrics.GenerationAttemptsTotal.WithLabelValues(reg.ID, "ok").Inc()
		return content, nil
	}

	return nil, fmt.Errorf("generator %q exhausted %d attempts; %w", reg.ID, e.maxAttempts, lastErr)
}

// validateContent checks the generator's product against the device shape.
func validateContent(content *generators.GeneratedContent) error {
	if content == nil {
		return fmt.Errorf("generator returned no content")
	}

	switch content.OutputMode {
	case generators.OutputText:
		if content.Text == "" {
			return fmt.Errorf("text content is empty")
		}
		if n := utf8.RuneCountInString(content.Text); n > textCapacity {
			return fmt.Errorf("text is %d glyphs, device fits %d", n, textCapacity)
		}
	case generators.OutputLayout:
		if content.Layout == nil {
			return fmt.Errorf("layout content missing grid")
		}
		if err := content.Layout.Validate(); err != nil {
			return fmt.Errorf("layout grid invalid; %w", err)
		}
	default:
		return fmt.Errorf("unknown output mode %q", content.OutputMode)
	}
	return nil
}
