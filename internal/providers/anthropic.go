package providers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"
)

const (
	anthropicAPIURL     = "https://api.anthropic.com/v1/messages"
	anthropicAPIVersion = "2023-06-01"
)

// AnthropicProvider implements Provider using Anthropic's Messages API.
type AnthropicProvider struct {
	apiKey        string
	httpClient    *http.Client
	rateLimiter   *RateLimiter
	validateModel string
}

// AnthropicOption configures the AnthropicProvider.
type AnthropicOption func(*AnthropicProvider)

// WithAnthropicHTTPClient sets the HTTP client to use.
func WithAnthropicHTTPClient(client *http.Client) AnthropicOption {
	return func(p *AnthropicProvider) {
		p.httpClient = client
	}
}

// WithAnthropicRateLimit caps requests per minute.
func WithAnthropicRateLimit(requestsPerMinute int) AnthropicOption {
	return func(p *AnthropicProvider) {
		p.rateLimiter = NewRateLimiter(requestsPerMinute)
	}
}

// WithAnthropicValidateModel sets the model used by ValidateConnection.
// Empty values keep the default.
func WithAnthropicValidateModel(model string) AnthropicOption {
	return func(p *AnthropicProvider) {
		if model != "" {
			p.validateModel = model
		}
	}
}

// NewAnthropicProvider creates a new Anthropic provider. The API key is read
// from ANTHROPIC_API_KEY.
func NewAnthropicProvider(opts ...AnthropicOption) *AnthropicProvider {
	p := &AnthropicProvider{
		apiKey:        os.Getenv("ANTHROPIC_API_KEY"),
		httpClient:    &http.Client{Timeout: 60 * time.Second},
		validateModel: "claude-haiku-4-5",
	}

	for _, opt := range opts {
		opt(p)
	}

	if p.rateLimiter == nil {
		p.rateLimiter = NewRateLimiter(DefaultRequestsPerMinute)
	}

	return p
}

// Name returns the provider's unique identifier.
func (p *AnthropicProvider) Name() string {
	return "anthropic"
}

// Available returns true if the provider is configured and ready.
func (p *AnthropicProvider) Available() bool {
	return p.apiKey != ""
}

// Complete runs one completion against the given model.
func (p *AnthropicProvider) Complete(ctx context.Context, model string, req CompletionRequest) (*Completion, error) {
	if !p.Available() {
		return nil, NewError(KindAuthentication, p.Name(), "ANTHROPIC_API_KEY not set", nil)
	}

	if err := p.rateLimiter.Wait(ctx); err != nil {
		return nil, NewError(KindTransient, p.Name(), "rate limit wait failed", err)
	}

	maxTokens := req.MaxTokens
	if maxTokens == 0 {
		maxTokens = 1024
	}

	requestBody := map[string]any{
		"model":      model,
		"max_tokens": maxTokens,
		"messages": []map[string]any{
			{"role": "user", "content": req.User},
		},
	}
	if req.System != "" {
		requestBody["system"] = req.System
	}
	if req.Temperature != nil {
		requestBody["temperature"] = *req.Temperature
	}

	jsonBody, err := json.Marshal(requestBody)
	if err != nil {
		return nil, NewError(KindInvalidRequest, p.Name(), "failed to marshal request", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, "POST", anthropicAPIURL, bytes.NewReader(jsonBody))
	if err != nil {
		return nil, NewError(KindInvalidRequest, p.Name(), "failed to create request", err)
	}

	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("x-api-key", p.apiKey)
	httpReq.Header.Set("anthropic-version", anthropicAPIVersion)

	resp, err := p.httpClient.Do(httpReq)
	if err != nil {
		return nil, NewError(KindTransient, p.Name(), "API request failed", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, NewError(KindTransient, p.Name(), "failed to read response", err)
	}

	if resp.StatusCode != http.StatusOK {
		kind := classifyStatus(resp.StatusCode)
		return nil, NewError(kind, p.Name(),
			fmt.Sprintf("API error %d: %s", resp.StatusCode, truncateBody(body)), nil)
	}

	var apiResp anthropicResponse
	if err := json.Unmarshal(body, &apiResp); err != nil {
		return nil, NewError(KindTransient, p.Name(), "failed to parse response", err)
	}

	var text string
	for _, c := range apiResp.Content {
		if c.Type == "text" {
			text = c.Text
			break
		}
	}
	if text == "" {
		return nil, NewError(KindTransient, p.Name(), "no text content in response", nil)
	}

	return &Completion{
		Text:         text,
		Provider:     p.Name(),
		Model:        model,
		TokensUsed:   apiResp.Usage.InputTokens + apiResp.Usage.OutputTokens,
		FinishReason: apiResp.StopReason,
		GeneratedAt:  time.Now(),
	}, nil
}

// ValidateConnection performs a minimal live call to confirm credentials.
func (p *AnthropicProvider) ValidateConnection(ctx context.Context) error {
	_, err := p.Complete(ctx, p.validateModel, CompletionRequest{
		User:      "Reply with OK.",
		MaxTokens: 8,
	})
	if err != nil {
		return fmt.Errorf("anthropic connection check failed; %w", err)
	}
	return nil
}

// anthropicResponse represents the API response structure.
type anthropicResponse struct {
	Content []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
	StopReason string `json:"stop_reason"`
	Usage      struct {
		InputTokens  int `json:"input_tokens"`
		OutputTokens int `json:"output_tokens"`
	} `json:"usage"`
}

// truncateBody keeps provider error payloads log-sized.
func truncateBody(body []byte) string {
	const limit = 512
	if len(body) > limit {
		return string(body[:limit]) + "..."
	}
	return string(body)
}
