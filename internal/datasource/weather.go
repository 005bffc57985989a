package datasource

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"net/http"
	"net/url"
	"strconv"
	"time"
)

const openMeteoURL = "https://api.open-meteo.com/v1/forecast"

// OpenMeteoService fetches current conditions from the Open-Meteo forecast
// API, which requires no API key.
type OpenMeteoService struct {
	latitude   float64
	longitude  float64
	units      string
	httpClient *http.Client
}

// OpenMeteoOption configures the OpenMeteoService.
type OpenMeteoOption func(*OpenMeteoService)

// WithWeatherHTTPClient sets the HTTP client to use.
func WithWeatherHTTPClient(client *http.Client) OpenMeteoOption {
	return func(s *OpenMeteoService) {
		s.httpClient = client
	}
}

// WithWeatherUnits selects "imperial" or "metric".
func WithWeatherUnits(units string) OpenMeteoOption {
	return func(s *OpenMeteoService) {
		s.units = units
	}
}

// NewOpenMeteoService creates a weather service for the given location.
func NewOpenMeteoService(latitude, longitude float64, opts ...OpenMeteoOption) *OpenMeteoService {
	s := &OpenMeteoService{
		latitude:   latitude,
		longitude:  longitude,
		units:      "imperial",
		httpClient: &http.Client{Timeout: 10 * time.Second},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// GetWeather fetches the current temperature and condition.
func (s *OpenMeteoService) GetWeather(ctx context.Context) (*WeatherData, error) {
	query := url.Values{}
	query.Set("latitude", strconv.FormatFloat(s.latitude, 'f', 4, 64))
	query.Set("longitude", strconv.FormatFloat(s.longitude, 'f', 4, 64))
	query.Set("current", "temperature_2m,weather_code")
	if s.units == "imperial" {
		query.Set("temperature_unit", "fahrenheit")
	}

	req, err := http.NewRequestWithContext(ctx, "GET", openMeteoURL+"?"+query.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create weather request; %w", err)
	}

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("weather fetch failed; %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("weather fetch returned %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<16))
	if err != nil {
		return nil, fmt.Errorf("failed to read weather response; %w", err)
	}

	var apiResp struct {
		Current struct {
			Temperature float64 `json:"temperature_2m"`
			WeatherCode int     `json:"weather_code"`
		} `json:"current"`
	}
	if err := json.Unmarshal(body, &apiResp); err != nil {
		return nil, fmt.Errorf("failed to parse weather response; %w", err)
	}

	return &WeatherData{
		Temperature: int(math.Round(apiResp.Current.Temperature)),
		Units:       s.units,
		Condition:   conditionForCode(apiResp.Current.WeatherCode),
	}, nil
}

// conditionForCode maps WMO weather codes to short condition labels.
func conditionForCode(code int) string {
	switch {
	case code == 0:
		return "Sunny"
	case code <= 2:
		return "Partly Cloudy"
	case code == 3:
		return "Cloudy"
	case code <= 48:
		return "Fog"
	case code <= 57:
		return "Drizzle"
	case code <= 67:
		return "Rain"
	case code <= 77:
		return "Snow"
	case code <= 82:
		return "Showers"
	case code <= 86:
		return "Snow"
	default:
		return "Storm"
	}
}
