// Package transport delivers frames to the physical split-flap display.
package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/leefowlercu/flapboard/internal/board"
)

// Display is the device surface the rest of the daemon sends through.
type Display interface {
	// SendText asks the device to lay out plain text itself.
	SendText(ctx context.Context, text string) error

	// SendLayout sends a full 6x22 grid of tile codes.
	SendLayout(ctx context.Context, grid board.Grid) error

	// SendLayoutWithAnimation sends a grid with a named flap animation.
	SendLayoutWithAnimation(ctx context.Context, grid board.Grid, animation string) error

	// ReadMessage returns the grid the device currently shows.
	ReadMessage(ctx context.Context) (board.Grid, error)

	// ValidateConnection confirms the device is reachable and the key is
	// accepted.
	ValidateConnection(ctx context.Context) error
}

// HTTPDisplay talks to the device's local HTTP API.
type HTTPDisplay struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

// HTTPDisplayOption configures the HTTPDisplay.
type HTTPDisplayOption func(*HTTPDisplay)

// WithDisplayHTTPClient sets the HTTP client to use.
func WithDisplayHTTPClient(client *http.Client) HTTPDisplayOption {
	return func(d *HTTPDisplay) {
		d.httpClient = client
	}
}

// WithDisplayTimeout bounds each device call.
func WithDisplayTimeout(timeout time.Duration) HTTPDisplayOption {
	return func(d *HTTPDisplay) {
		d.httpClient.Timeout = timeout
	}
}

// WithDisplayAPIKeyEnv reads the device key from the named environment
// variable.
func WithDisplayAPIKeyEnv(envVar string) HTTPDisplayOption {
	return func(d *HTTPDisplay) {
		d.apiKey = os.Getenv(envVar)
	}
}

// NewHTTPDisplay creates a display client for the device's local API.
func NewHTTPDisplay(baseURL string, opts ...HTTPDisplayOption) *HTTPDisplay {
	d := &HTTPDisplay{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: 15 * time.Second},
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// SendText posts plain text for device-side layout.
func (d *HTTPDisplay) SendText(ctx context.Context, text string) error {
	return d.post(ctx, "/local-api/message", map[string]any{"text": text})
}

// SendLayout posts a full grid.
func (d *HTTPDisplay) SendLayout(ctx context.Context, grid board.Grid) error {
	if err := grid.Validate(); err != nil {
		return fmt.Errorf("refusing to send invalid grid; %w", err)
	}
	return d.post(ctx, "/local-api/message", map[string]any{"characters": grid})
}

// SendLayoutWithAnimation posts a grid with an animation hint. Devices that
// do not understand the hint fall back to the default flap sweep.
func (d *HTTPDisplay) SendLayoutWithAnimation(ctx context.Context, grid board.Grid, animation string) error {
	if err := grid.Validate(); err != nil {
		return fmt.Errorf("refusing to send invalid grid; %w", err)
	}
	return d.post(ctx, "/local-api/message", map[string]any{
		"characters": grid,
		"animation":  animation,
	})
}

// ReadMessage fetches the currently displayed grid.
func (d *HTTPDisplay) ReadMessage(ctx context.Context) (board.Grid, error) {
	var grid board.Grid

	req, err := http.NewRequestWithContext(ctx, "GET", d.baseURL+"/local-api/message", nil)
	if err != nil {
		return grid, fmt.Errorf("failed to create read request; %w", err)
	}
	d.setHeaders(req)

	resp, err := d.httpClient.Do(req)
	if err != nil {
		return grid, fmt.Errorf("device read failed; %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return grid, fmt.Errorf("device read returned %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<16))
	if err != nil {
		return grid, fmt.Errorf("failed to read device response; %w", err)
	}

	var apiResp struct {
		Message [board.Rows][board.Cols]int `json:"message"`
	}
	if err := json.Unmarshal(body, &apiResp); err != nil {
		return grid, fmt.Errorf("failed to parse device response; %w", err)
	}
	return board.Grid(apiResp.Message), nil
}

// ValidateConnection reads the current message as a credential check.
func (d *HTTPDisplay) ValidateConnection(ctx context.Context) error {
	if _, err := d.ReadMessage(ctx); err != nil {
		return fmt.Errorf("display connection check failed; %w", err)
	}
	return nil
}

func (d *HTTPDisplay) post(ctx context.Context, path string, payload map[string]any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal device payload; %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", d.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to create device request; %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	d.setHeaders(req)

	resp, err := d.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("device request failed; %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("device returned %d: %s", resp.StatusCode, string(respBody))
	}
	return nil
}

func (d *HTTPDisplay) setHeaders(req *http.Request) {
	if d.apiKey != "" {
		req.Header.Set("X-Vestaboard-Local-Api-Key", d.apiKey)
	}
}
