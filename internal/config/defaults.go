package config

// Default configuration values.
const (
	DefaultLogLevel = "info"
	DefaultLogFile  = "~/.config/flapboard/flapboard.log"

	DefaultDaemonHTTPPort           = 7610
	DefaultDaemonHTTPBind           = "127.0.0.1"
	DefaultDaemonShutdownTimeout    = 30
	DefaultDaemonPIDFile            = "~/.config/flapboard/daemon.pid"
	DefaultDaemonEventBusBufferSize = 100

	DefaultStoragePath = "~/.config/flapboard/flapboard.db"

	DefaultDisplayVariant = "black"
	DefaultDisplayBaseURL = "http://vestaboard.local:7000"
	DefaultDisplayKeyEnv  = "FLAPBOARD_DISPLAY_KEY"
	DefaultDisplayTimeout = 10

	DefaultPreferredProvider  = "anthropic"
	DefaultProviderTimeout    = 30
	DefaultProviderRateLimit  = 10
	DefaultAutomationTokenEnv = "FLAPBOARD_AUTOMATION_TOKEN"

	DefaultAutomationHandshakeTimeout = 60
	DefaultAutomationReconnectMin     = 1
	DefaultAutomationReconnectMax     = 60

	DefaultTriggersPath = "~/.config/flapboard/triggers.yaml"

	DefaultWeatherUnits   = "imperial"
	DefaultWeatherTimeout = 10

	DefaultFeedsLimit   = 5
	DefaultFeedsTimeout = 10

	DefaultPromptsDir  = "~/.config/flapboard/prompts"
	DefaultFallbackDir = "~/.config/flapboard/fallback"

	DefaultRetryMaxAttempts = 3

	DefaultThrottleWindow     = 300
	DefaultThrottleMaxEntries = 100
)

// DefaultAvailableProviders lists the built-in providers in fallback order.
func DefaultAvailableProviders() []string {
	return []string{"anthropic", "openai", "gemini"}
}

// DefaultTiers returns the built-in tier/model tables per provider.
// Overridable under providers.tiers in the config file.
func DefaultTiers() map[string]TierModels {
	return map[string]TierModels{
		"anthropic": {
			Light:  "claude-haiku-4-5-20251015",
			Medium: "claude-sonnet-4-5-20250929",
			Heavy:  "claude-opus-4-5-20251101",
		},
		"openai": {
			Light:  "gpt-5.2-mini",
			Medium: "gpt-5.2",
			Heavy:  "gpt-5.2-pro",
		},
		"gemini": {
			Light:  "gemini-3-flash-preview",
			Medium: "gemini-3-pro-preview",
			Heavy:  "gemini-3-ultra-preview",
		},
	}
}

// NewDefaultConfig returns a Config populated with defaults.
func NewDefaultConfig() Config {
	return Config{
		LogLevel: DefaultLogLevel,
		LogFile:  DefaultLogFile,
		Daemon: DaemonConfig{
			HTTPPort:               DefaultDaemonHTTPPort,
			HTTPBind:               DefaultDaemonHTTPBind,
			ShutdownTimeoutSeconds: DefaultDaemonShutdownTimeout,
			PIDFile:                DefaultDaemonPIDFile,
			EventBusBufferSize:     DefaultDaemonEventBusBufferSize,
		},
		Storage: StorageConfig{Path: DefaultStoragePath},
		Display: DisplayConfig{
			Variant:        DefaultDisplayVariant,
			BaseURL:        DefaultDisplayBaseURL,
			APIKeyEnv:      DefaultDisplayKeyEnv,
			TimeoutSeconds: DefaultDisplayTimeout,
		},
		Providers: ProvidersConfig{
			Preferred:          DefaultPreferredProvider,
			Available:          DefaultAvailableProviders(),
			Tiers:              DefaultTiers(),
			TimeoutSeconds:     DefaultProviderTimeout,
			RateLimitPerMinute: DefaultProviderRateLimit,
		},
		Automation: AutomationConfig{
			TokenEnv:                DefaultAutomationTokenEnv,
			HandshakeTimeoutSeconds: DefaultAutomationHandshakeTimeout,
			ReconnectMinSeconds:     DefaultAutomationReconnectMin,
			ReconnectMaxSeconds:     DefaultAutomationReconnectMax,
		},
		Triggers: TriggersConfig{Path: DefaultTriggersPath},
		Weather: WeatherConfig{
			Units:          DefaultWeatherUnits,
			TimeoutSeconds: DefaultWeatherTimeout,
		},
		Feeds: FeedsConfig{
			Limit:          DefaultFeedsLimit,
			TimeoutSeconds: DefaultFeedsTimeout,
		},
		Content: ContentConfig{
			PromptsDir:  DefaultPromptsDir,
			FallbackDir: DefaultFallbackDir,
		},
		Retry: RetryConfig{MaxAttempts: DefaultRetryMaxAttempts},
		Throttle: ThrottleConfig{
			WindowSeconds: DefaultThrottleWindow,
			MaxEntries:    DefaultThrottleMaxEntries,
		},
	}
}
