package feeds

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
	"unicode/utf8"
)

const wikipediaRandomURL = "https://en.wikipedia.org/api/rest_v1/page/random/summary"

// ArticleSummary is a random Wikipedia article summary.
type ArticleSummary struct {
	Title       string
	Extract     string
	Description string
	URL         string
}

// WikipediaClient fetches random article summaries from the Wikipedia REST
// API.
type WikipediaClient struct {
	httpClient *http.Client
}

// WikipediaOption configures the WikipediaClient.
type WikipediaOption func(*WikipediaClient)

// WithWikipediaTimeout bounds each summary fetch.
func WithWikipediaTimeout(timeout time.Duration) WikipediaOption {
	return func(c *WikipediaClient) {
		c.httpClient.Timeout = timeout
	}
}

// NewWikipediaClient creates a Wikipedia client.
func NewWikipediaClient(opts ...WikipediaOption) *WikipediaClient {
	c := &WikipediaClient{
		httpClient: &http.Client{Timeout: 15 * time.Second},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// GetRandomArticleSummary fetches one random summary. When maxLen > 0 the
// extract is truncated to that many runes at a word boundary.
func (c *WikipediaClient) GetRandomArticleSummary(ctx context.Context, maxLen int) (*ArticleSummary, error) {
	req, err := http.NewRequestWithContext(ctx, "GET", wikipediaRandomURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create summary request; %w", err)
	}
	req.Header.Set("User-Agent", "flapboard/1.0")
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("summary fetch failed; %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("summary fetch returned %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxFeedBytes))
	if err != nil {
		return nil, fmt.Errorf("failed to read summary body; %w", err)
	}

	var apiResp struct {
		Title       string `json:"title"`
		Extract     string `json:"extract"`
		Description string `json:"description"`
		ContentURLs struct {
			Desktop struct {
				Page string `json:"page"`
			} `json:"desktop"`
		} `json:"content_urls"`
	}
	if err := json.Unmarshal(body, &apiResp); err != nil {
		return nil, fmt.Errorf("failed to parse summary; %w", err)
	}
	if apiResp.Title == "" || apiResp.Extract == "" {
		return nil, fmt.Errorf("summary response missing title or extract")
	}

	extract := apiResp.Extract
	if maxLen > 0 {
		extract = truncateAtWord(extract, maxLen)
	}

	return &ArticleSummary{
		Title:       apiResp.Title,
		Extract:     extract,
		Description: apiResp.Description,
		URL:         apiResp.ContentURLs.Desktop.Page,
	}, nil
}

// truncateAtWord cuts s to at most maxRunes runes, backing up to the last
// space when possible.
func truncateAtWord(s string, maxRunes int) string {
	if utf8.RuneCountInString(s) <= maxRunes {
		return s
	}

	runes := []rune(s)
	cut := maxRunes
	for i := cut - 1; i > 0; i-- {
		if runes[i] == ' ' {
			cut = i
			break
		}
	}
	return string(runes[:cut])
}
