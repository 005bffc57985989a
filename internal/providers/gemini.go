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

const geminiAPIURLFormat = "https://generativelanguage.googleapis.com/v1beta/models/%s:generateContent"

// GeminiProvider implements Provider using Google's Generative Language API.
type GeminiProvider struct {
	apiKey        string
	httpClient    *http.Client
	rateLimiter   *RateLimiter
	validateModel string
}

// GeminiOption configures the GeminiProvider.
type GeminiOption func(*GeminiProvider)

// WithGeminiHTTPClient sets the HTTP client to use.
func WithGeminiHTTPClient(client *http.Client) GeminiOption {
	return func(p *GeminiProvider) {
		p.httpClient = client
	}
}

// WithGeminiRateLimit caps requests per minute.
func WithGeminiRateLimit(requestsPerMinute int) GeminiOption {
	return func(p *GeminiProvider) {
		p.rateLimiter = NewRateLimiter(requestsPerMinute)
	}
}

// WithGeminiValidateModel sets the model used by ValidateConnection.
// Empty values keep the default.
func WithGeminiValidateModel(model string) GeminiOption {
	return func(p *GeminiProvider) {
		if model != "" {
			p.validateModel = model
		}
	}
}

// NewGeminiProvider creates a new Gemini provider. The API key is read from
// GEMINI_API_KEY.
func NewGeminiProvider(opts ...GeminiOption) *GeminiProvider {
	p := &GeminiProvider{
		apiKey:        os.Getenv("GEMINI_API_KEY"),
		httpClient:    &http.Client{Timeout: 60 * time.Second},
		validateModel: "gemini-3-flash",
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
func (p *GeminiProvider) Name() string {
	return "gemini"
}

// Available returns true if the provider is configured and ready.
func (p *GeminiProvider) Available() bool {
	return p.apiKey != ""
}

// Complete runs one completion against the given model.
func (p *GeminiProvider) Complete(ctx context.Context, model string, req CompletionRequest) (*Completion, error) {
	if !p.Available() {
		return nil, NewError(KindAuthentication, p.Name(), "GEMINI_API_KEY not set", nil)
	}

	if err := p.rateLimiter.Wait(ctx); err != nil {
		return nil, NewError(KindTransient, p.Name(), "rate limit wait failed", err)
	}

	generationConfig := map[string]any{}
	if req.MaxTokens > 0 {
		generationConfig["maxOutputTokens"] = req.MaxTokens
	}
	if req.Temperature != nil {
		generationConfig["temperature"] = *req.Temperature
	}

	requestBody := map[string]any{
		"contents": []map[string]any{
			{
				"role":  "user",
				"parts": []map[string]any{{"text": req.User}},
			},
		},
	}
	if req.System != "" {
		requestBody["systemInstruction"] = map[string]any{
			"parts": []map[string]any{{"text": req.System}},
		}
	}
	if len(generationConfig) > 0 {
		requestBody["generationConfig"] = generationConfig
	}

	jsonBody, err := json.Marshal(requestBody)
	if err != nil {
		return nil, NewError(KindInvalidRequest, p.Name(), "failed to marshal request", err)
	}

	url := fmt.Sprintf(geminiAPIURLFormat, model)
	httpReq, err := http.NewRequestWithContext(ctx, "POST", url, bytes.NewReader(jsonBody))
	if err != nil {
		return nil, NewError(KindInvalidRequest, p.Name(), "failed to create request", err)
	}

	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("x-goog-api-key", p.apiKey)

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

	var apiResp geminiResponse
	if err := json.Unmarshal(body, &apiResp); err != nil {
		return nil, NewError(KindTransient, p.Name(), "failed to parse response", err)
	}

	if len(apiResp.Candidates) == 0 {
		return nil, NewError(KindTransient, p.Name(), "no candidates in response", nil)
	}
	candidate := apiResp.Candidates[0]

	var text string
	for _, part := range candidate.Content.Parts {
		if part.Text != "" {
			text = part.Text
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
		TokensUsed:   apiResp.UsageMetadata.TotalTokenCount,
		FinishReason: candidate.FinishReason,
		GeneratedAt:  time.Now(),
	}, nil
}

// ValidateConnection performs a minimal live call to confirm credentials.
func (p *GeminiProvider) ValidateConnection(ctx context.Context) error {
	_, err := p.Complete(ctx, p.validateModel, CompletionRequest{
		User:      "Reply with OK.",
		MaxTokens: 8,
	})
	if err != nil {
		return fmt.Errorf("gemini connection check failed; %w", err)
	}
	return nil
}

// geminiResponse represents the API response structure.
type geminiResponse struct {
	Candidates []struct {
		Content struct {
			Parts []struct {
				Text string `json:"text"`
			} `json:"parts"`
		} `json:"content"`
		FinishReason string `json:"finishReason"`
	} `json:"candidates"`
	UsageMetadata struct {
		TotalTokenCount int `json:"totalTokenCount"`
	} `json:"usageMetadata"`
}
