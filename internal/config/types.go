// Package config defines the flapboard configuration schema, defaults,
// loading, and validation.
package config

import "time"

// Config is the root configuration for the daemon.
type Config struct {
	// LogLevel is the minimum log level (debug/info/warn/error).
	LogLevel string `mapstructure:"log_level"`

	// LogFile is the path for JSON file logging.
	LogFile string `mapstructure:"log_file"`

	Daemon     DaemonConfig     `mapstructure:"daemon"`
	Storage    StorageConfig    `mapstructure:"storage"`
	Display    DisplayConfig    `mapstructure:"display"`
	Providers  ProvidersConfig  `mapstructure:"providers"`
	Automation AutomationConfig `mapstructure:"automation"`
	Triggers   TriggersConfig   `mapstructure:"triggers"`
	Weather    WeatherConfig    `mapstructure:"weather"`
	Feeds      FeedsConfig      `mapstructure:"feeds"`
	Content    ContentConfig    `mapstructure:"content"`
	Retry      RetryConfig      `mapstructure:"retry"`
	Throttle   ThrottleConfig   `mapstructure:"throttle"`
}

// DaemonConfig holds daemon process settings.
type DaemonConfig struct {
	// HTTPPort is the port for the health/metrics HTTP server.
	HTTPPort int `mapstructure:"http_port"`

	// HTTPBind is the address to bind the HTTP server.
	HTTPBind string `mapstructure:"http_bind"`

	// ShutdownTimeoutSeconds is the maximum time to wait for graceful shutdown.
	ShutdownTimeoutSeconds int `mapstructure:"shutdown_timeout"`

	// PIDFile is the path to the PID file.
	PIDFile string `mapstructure:"pid_file"`

	// EventBusBufferSize is the per-subscriber event buffer size.
	EventBusBufferSize int `mapstructure:"event_bus_buffer_size"`
}

// ShutdownTimeout returns the shutdown timeout as a duration.
func (d DaemonConfig) ShutdownTimeout() time.Duration {
	return time.Duration(d.ShutdownTimeoutSeconds) * time.Second
}

// StorageConfig holds persistence settings.
type StorageConfig struct {
	// Path is the SQLite database file path.
	Path string `mapstructure:"path"`
}

// DisplayConfig holds split-flap device settings.
type DisplayConfig struct {
	// Variant selects the device background ("black" or "white").
	Variant string `mapstructure:"variant"`

	// BaseURL is the device's local API endpoint.
	BaseURL string `mapstructure:"base_url"`

	// APIKeyEnv names the environment variable holding the device API key.
	APIKeyEnv string `mapstructure:"api_key_env"`

	// TimeoutSeconds bounds each transport call.
	TimeoutSeconds int `mapstructure:"timeout"`
}

// TierModels maps capability tiers to concrete model identifiers for one provider.
type TierModels struct {
	Light  string `mapstructure:"light"`
	Medium string `mapstructure:"medium"`
	Heavy  string `mapstructure:"heavy"`
}

// ProvidersConfig holds AI provider settings.
type ProvidersConfig struct {
	// Preferred is the provider tried first for every completion.
	Preferred string `mapstructure:"preferred"`

	// Available lists the providers that may be used, in fallback order.
	Available []string `mapstructure:"available"`

	// Tiers maps provider name to its tier/model table. Defaults cover the
	// built-in providers; entries here override per provider.
	Tiers map[string]TierModels `mapstructure:"tiers"`

	// TimeoutSeconds bounds each AI completion call.
	TimeoutSeconds int `mapstructure:"timeout"`

	// RateLimitPerMinute caps requests per provider per minute.
	RateLimitPerMinute int `mapstructure:"rate_limit"`
}

// AutomationConfig holds automation bus connection settings.
type AutomationConfig struct {
	// URL is the websocket endpoint of the automation bus.
	URL string `mapstructure:"url"`

	// TokenEnv names the environment variable holding the access token.
	TokenEnv string `mapstructure:"token_env"`

	// HandshakeTimeoutSeconds bounds the connect + auth exchange.
	HandshakeTimeoutSeconds int `mapstructure:"handshake_timeout"`

	// ReconnectMinSeconds is the initial reconnect backoff.
	ReconnectMinSeconds int `mapstructure:"reconnect_min"`

	// ReconnectMaxSeconds caps the reconnect backoff.
	ReconnectMaxSeconds int `mapstructure:"reconnect_max"`
}

// TriggersConfig holds trigger configuration settings.
type TriggersConfig struct {
	// Path is the trigger config YAML file.
	Path string `mapstructure:"path"`
}

// WeatherConfig holds weather data source settings.
type WeatherConfig struct {
	// Latitude and Longitude locate the forecast point.
	Latitude  float64 `mapstructure:"latitude"`
	Longitude float64 `mapstructure:"longitude"`

	// Units selects "imperial" or "metric".
	Units string `mapstructure:"units"`

	// TimeoutSeconds bounds each weather fetch.
	TimeoutSeconds int `mapstructure:"timeout"`
}

// FeedsConfig holds RSS feed settings for the headlines generator.
type FeedsConfig struct {
	// URLs lists feed endpoints polled for headlines.
	URLs []string `mapstructure:"urls"`

	// Limit caps the number of items fetched per refresh.
	Limit int `mapstructure:"limit"`

	// TimeoutSeconds bounds each feed fetch.
	TimeoutSeconds int `mapstructure:"timeout"`
}

// ContentConfig holds content generation settings.
type ContentConfig struct {
	// PromptsDir is the directory holding prompt template files.
	PromptsDir string `mapstructure:"prompts_dir"`

	// FallbackDir is the directory of static fallback text files.
	FallbackDir string `mapstructure:"fallback_dir"`

	// Personality is an optional personality label substituted into prompts.
	Personality string `mapstructure:"personality"`
}

// RetryConfig holds generation retry settings.
type RetryConfig struct {
	// MaxAttempts bounds generator invocations per refresh.
	MaxAttempts int `mapstructure:"max_attempts"`
}

// ThrottleConfig holds throttled logger settings.
type ThrottleConfig struct {
	// WindowSeconds is the suppression window for identical log keys.
	WindowSeconds int `mapstructure:"window"`

	// MaxEntries bounds tracked log keys before LRU eviction.
	MaxEntries int `mapstructure:"max_entries"`
}

// Window returns the throttle window as a duration.
func (t ThrottleConfig) Window() time.Duration {
	return time.Duration(t.WindowSeconds) * time.Second
}
