// Package datasource pre-fetches the companion data a frame needs: current
// weather and the color-bar palette. Each source degrades independently; a
// fetch never fails the caller.
package datasource

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"
)

// WeatherData is the current-conditions snapshot used by the info row.
type WeatherData struct {
	// Temperature is in the configured units, rounded.
	Temperature int

	// Units is "imperial" or "metric".
	Units string

	// Condition is a short label like "Sunny" or "Rain".
	Condition string
}

// UnitGlyph returns the single-letter temperature unit for the info row.
func (w WeatherData) UnitGlyph() string {
	if w.Units == "metric" {
		return "C"
	}
	return "F"
}

// ContentData is the pre-fetched companion data for one refresh. Warnings
// accumulates per-source failure reasons; a source that failed leaves its
// field nil.
type ContentData struct {
	Weather   *WeatherData
	ColorBar  *[6]int
	FetchedAt time.Time
	Warnings  []string
}

// WeatherService fetches current conditions.
type WeatherService interface {
	GetWeather(ctx context.Context) (*WeatherData, error)
}

// ColorBarService produces the six color tile codes for the frame edge.
type ColorBarService interface {
	GetColors(ctx context.Context) ([6]int, error)
}

// Provider runs the companion fetches concurrently.
type Provider struct {
	weather  WeatherService
	colorBar ColorBarService
	log      *slog.Logger
	now      func() time.Time
}

// ProviderOption configures the Provider.
type ProviderOption func(*Provider)

// WithProviderLogger sets the logger.
func WithProviderLogger(logger *slog.Logger) ProviderOption {
	return func(p *Provider) {
		p.log = logger
	}
}

// WithProviderClock overrides the time source. Used by tests.
func WithProviderClock(now func() time.Time) ProviderOption {
	return func(p *Provider) {
		p.now = now
	}
}

// NewProvider creates a data provider over the given sources. Either source
// may be nil, in which case it is reported as unavailable.
func NewProvider(weather WeatherService, colorBar ColorBarService, opts ...ProviderOption) *Provider {
	p := &Provider{
		weather:  weather,
		colorBar: colorBar,
		log:      slog.Default(),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// FetchData fetches weather and color bar concurrently and waits for both to
// settle. It never returns an error: failed sources leave their field nil
// and append a warning.
func (p *Provider) FetchData(ctx context.Context) ContentData {
	data := ContentData{FetchedAt: p.now()}

	var weather *WeatherData
	var weatherWarn string
	var colors *[6]int
	var colorWarn string

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		if p.weather == nil {
			weatherWarn = "weather: no service configured"
			return nil
		}
		w, err := p.weather.GetWeather(gctx)
		if err != nil {
			weatherWarn = fmt.Sprintf("weather: %v", err)
			return nil
		}
		if w == nil {
			weatherWarn = "weather: no data available"
			return nil
		}
		weather = w
		return nil
	})

	g.Go(func() error {
		if p.colorBar == nil {
			colorWarn = "color bar: no service configured"
			return nil
		}
		c, err := p.colorBar.GetColors(gctx)
		if err != nil {
			colorWarn = fmt.Sprintf("color bar: %v", err)
			return nil
		}
		colors = &c
		return nil
	})

	g.Wait()

	data.Weather = weather
	data.ColorBar = colors
	if weatherWarn != "" {
		data.Warnings = append(data.Warnings, weatherWarn)
	}
	if colorWarn != "" {
		data.Warnings = append(data.Warnings, colorWarn)
	}

	for _, warn := range data.Warnings {
		p.log.Warn("companion data source degraded", "warning", warn)
	}
	return data
}
