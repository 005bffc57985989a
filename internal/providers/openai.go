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

const openaiAPIURL = "https://api.openai.com/v1/chat/completions"

// OpenAIProvider implements Provider using OpenAI's Chat Completions API.
type OpenAIProvider struct {
	apiKey        string
	httpClient    *http.Client
	rateLimiter   *RateLimiter
	validateModel string
}

// OpenAIOption configures the OpenAIProvider.
type OpenAIOption func(*OpenAIProvider)

// WithOpenAIHTTPClient sets the HTTP client to use.
func WithOpenAIHTTPClient(client *http.Client) OpenAIOption {
	return func(p *OpenAIProvider) {
		p.httpClient = client
	}
}

// WithOpenAIRateLimit caps requests per minute.
func WithOpenAIRateLimit(requestsPerMinute int) OpenAIOption {
	return func(p *OpenAIProvider) {
		p.rateLimiter = NewRateLimiter(requestsPerMinute)
	}
}

// WithOpenAIValidateModel sets the model used by ValidateConnection.
// Empty values keep the default.
func WithOpenAIValidateModel(model string) OpenAIOption {
	return func(p *OpenAIProvider) {
		if model != "" {
			p.validateModel = model
		}
	}
}

// NewOpenAIProvider creates a new OpenAI provider. The API key is read from
// OPENAI_API_KEY.
func NewOpenAIProvider(opts ...OpenAIOption) *OpenAIProvider {
	p := &OpenAIProvider{
		apiKey:        os.Getenv("OPENAI_API_KEY"),
		httpClient:    &http.Client{Timeout: 60 * time.Second},
		validateModel: "gpt-5.2-mini",
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
func (p *OpenAIProvider) Name() string {
	return "openai"
}

// Available returns true if the provider is configured and ready.
func (p *OpenAIProvider) Available() bool {
	return p.apiKey != ""
}

// Complete runs one completion against the given model.
func (p *OpenAIProvider) Complete(ctx context.Context, model string, req CompletionRequest) (*Completion, error) {
	if !p.Available() {
		return nil, NewError(KindAuthentication, p.Name(), "OPENAI_API_KEY not set", nil)
	}

	if err := p.rateLimiter.Wait(ctx); err != nil {
		return nil, NewError(KindTransient, p.Name(), "rate limit wait failed", err)
	}

	messages := []map[string]any{}
	if req.System != "" {
		messages = append(messages, map[string]any{"role": "system", "content": req.System})
	}
	messages = append(messages, map[string]any{"role": "user", "content": req.User})

	requestBody := map[string]any{
		"model":    model,
		"messages": messages,
	}
	if req.MaxTokens > 0 {
		requestBody["max_completion_tokens"] = req.MaxTokens
	}
	if req.Temperature != nil {
		requestBody["temperature"] = *req.Temperature
	}

	jsonBody, err := json.Marshal(requestBody)
	if err != nil {
		return nil, NewError(KindInvalidRequest, p.Name(), "failed to marshal request", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, "POST", openaiAPIURL, bytes.NewReader(jsonBody))
	if err != nil {
		return nil, NewError(KindInvalidRequest, p.Name(), "failed to create request", err)
	}

	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+p.apiKey)

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

	var apiResp openaiResponse
	if err := json.Unmarshal(body, &apiResp); err != nil {
		return nil, NewError(KindTransient, p.Name(), "failed to parse response", err)
	}

	if len(apiResp.Choices) == 0 || apiResp.Choices[0].Message.Content == "" {
		return nil, NewError(KindTransient, p.Name(), "no text content in response", nil)
	}
	choice := apiResp.Choices[0]

	return &Completion{
		Text:         choice.Message.Content,
		Provider:     p.Name(),
		Model:        model,
		TokensUsed:   apiResp.Usage.TotalTokens,
		FinishReason: choice.FinishReason,
		GeneratedAt:  time.Now(),
	}, nil
}

// ValidateConnection performs a minimal live call to confirm credentials.
func (p *OpenAIProvider) ValidateConnection(ctx context.Context) error {
	_, err := p.Complete(ctx, p.validateModel, CompletionRequest{
		User:      "Reply with OK.",
		MaxTokens: 8,
	})
	if err != nil {
		return fmt.Errorf("openai connection check failed; %w", err)
	}
	return nil
}

// openaiResponse represents the API response structure.
type openaiResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
		FinishReason string `json:"finish_reason"`
	} `json:"choices"`
	Usage struct {
		TotalTokens int `json:"total_tokens"`
	} `json:"usage"`
}
