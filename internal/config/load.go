package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

// Load reads and returns the typed configuration.
// It searches for configuration files in priority order:
//  1. Directory specified by FLAPBOARD_CONFIG_DIR environment variable
//  2. ~/.config/flapboard/
//  3. Current working directory (.)
//
// If no config file is found, defaults are used. If a config file exists but
// is invalid, returns a validation error.
func Load() (*Config, error) {
	v := viper.New()

	v.SetConfigName("config")
	v.SetConfigType("yaml")

	// Setup environment variable support
	v.SetEnvPrefix("FLAPBOARD")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Register default values
	setViperDefaults(v)

	// Add config paths in priority order
	if envPath := os.Getenv("FLAPBOARD_CONFIG_DIR"); envPath != "" {
		v.AddConfigPath(envPath)
	}

	if home := os.Getenv("HOME"); home != "" {
		v.AddConfigPath(filepath.Join(home, ".config", "flapboard"))
	}

	v.AddConfigPath(".")

	err := v.ReadInConfig()
	if err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config; %w", err)
		}
		// No config file: defaults plus env overrides still apply.
	}

	return unmarshalConfig(v)
}

// LoadFromPath reads configuration from a specific file path.
func LoadFromPath(path string) (*Config, error) {
	v := viper.New()

	v.SetConfigFile(path)
	v.SetConfigType("yaml")

	v.SetEnvPrefix("FLAPBOARD")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setViperDefaults(v)

	err := v.ReadInConfig()
	if err != nil {
		return nil, fmt.Errorf("failed to read config from %s; %w", path, err)
	}

	return unmarshalConfig(v)
}

// unmarshalConfig converts viper config to typed Config struct.
func unmarshalConfig(v *viper.Viper) (*Config, error) {
	cfg := &Config{}

	err := v.Unmarshal(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to unmarshal config; %w", err)
	}

	// Tier tables merge per provider: unspecified providers keep defaults.
	defaults := DefaultTiers()
	if cfg.Providers.Tiers == nil {
		cfg.Providers.Tiers = defaults
	} else {
		for name, tiers := range defaults {
			if _, ok := cfg.Providers.Tiers[name]; !ok {
				cfg.Providers.Tiers[name] = tiers
			}
		}
	}

	if err := Validate(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

// ExpandPath expands a leading ~ to the user's home directory.
func ExpandPath(path string) string {
	if strings.HasPrefix(path, "~/") {
		if home, err := os.UserHomeDir(); err == nil {
			return filepath.Join(home, path[2:])
		}
	}
	return path
}

// setViperDefaults registers all default configuration values with a viper instance.
func setViperDefaults(v *viper.Viper) {
	v.SetDefault("log_level", DefaultLogLevel)
	v.SetDefault("log_file", DefaultLogFile)

	// Daemon defaults
	v.SetDefault("daemon.http_port", DefaultDaemonHTTPPort)
	v.SetDefault("daemon.http_bind", DefaultDaemonHTTPBind)
	v.SetDefault("daemon.shutdown_timeout", DefaultDaemonShutdownTimeout)
	v.SetDefault("daemon.pid_file", DefaultDaemonPIDFile)
	v.SetDefault("daemon.event_bus_buffer_size", DefaultDaemonEventBusBufferSize)

	// Storage defaults
	v.SetDefault("storage.path", DefaultStoragePath)

	// Display defaults
	v.SetDefault("display.variant", DefaultDisplayVariant)
	v.SetDefault("display.base_url", DefaultDisplayBaseURL)
	v.SetDefault("display.api_key_env", DefaultDisplayKeyEnv)
	v.SetDefault("display.timeout", DefaultDisplayTimeout)

	// Provider defaults
	v.SetDefault("providers.preferred", DefaultPreferredProvider)
	v.SetDefault("providers.available", DefaultAvailableProviders())
	v.SetDefault("providers.timeout", DefaultProviderTimeout)
	v.SetDefault("providers.rate_limit", DefaultProviderRateLimit)

	// Automation defaults
	v.SetDefault("automation.token_env", DefaultAutomationTokenEnv)
	v.SetDefault("automation.handshake_timeout", DefaultAutomationHandshakeTimeout)
	v.SetDefault("automation.reconnect_min", DefaultAutomationReconnectMin)
	v.SetDefault("automation.reconnect_max", DefaultAutomationReconnectMax)

	// Trigger defaults
	v.SetDefault("triggers.path", DefaultTriggersPath)

	// Weather defaults
	v.SetDefault("weather.units", DefaultWeatherUnits)
	v.SetDefault("weather.timeout", DefaultWeatherTimeout)

	// Feed defaults
	v.SetDefault("feeds.limit", DefaultFeedsLimit)
	v.SetDefault("feeds.timeout", DefaultFeedsTimeout)

	// Content defaults
	v.SetDefault("content.prompts_dir", DefaultPromptsDir)
	v.SetDefault("content.fallback_dir", DefaultFallbackDir)

	// Retry defaults
	v.SetDefault("retry.max_attempts", DefaultRetryMaxAttempts)

	// Throttle defaults
	v.SetDefault("throttle.window", DefaultThrottleWindow)
	v.SetDefault("throttle.max_entries", DefaultThrottleMaxEntries)
}
