package config

import (
	"fmt"
	"slices"
)

// Validate checks a Config for structural errors. It is called by Load after
// unmarshaling; invalid configs are rejected before any component sees them.
func Validate(cfg *Config) error {
	if _, ok := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}[cfg.LogLevel]; !ok {
		return fmt.Errorf("invalid log_level %q; must be debug, info, warn, or error", cfg.LogLevel)
	}

	if cfg.Daemon.HTTPPort < 1 || cfg.Daemon.HTTPPort > 65535 {
		return fmt.Errorf("invalid daemon.http_port %d", cfg.Daemon.HTTPPort)
	}
	if cfg.Daemon.ShutdownTimeoutSeconds < 1 {
		return fmt.Errorf("daemon.shutdown_timeout must be at least 1 second")
	}

	if cfg.Display.Variant != "black" && cfg.Display.Variant != "white" {
		return fmt.Errorf("invalid display.variant %q; must be black or white", cfg.Display.Variant)
	}

	if len(cfg.Providers.Available) == 0 {
		return fmt.Errorf("providers.available must list at least one provider")
	}
	if !slices.Contains(cfg.Providers.Available, cfg.Providers.Preferred) {
		return fmt.Errorf("providers.preferred %q is not in providers.available", cfg.Providers.Preferred)
	}
	for _, name := range cfg.Providers.Available {
		tiers, ok := cfg.Providers.Tiers[name]
		if !ok {
			return fmt.Errorf("provider %q has no tier table under providers.tiers", name)
		}
		if tiers.Light == "" || tiers.Medium == "" || tiers.Heavy == "" {
			return fmt.Errorf("provider %q tier table must define light, medium, and heavy models", name)
		}
	}

	if cfg.Weather.Units != "imperial" && cfg.Weather.Units != "metric" {
		return fmt.Errorf("invalid weather.units %q; must be imperial or metric", cfg.Weather.Units)
	}

	if cfg.Retry.MaxAttempts < 1 {
		return fmt.Errorf("retry.max_attempts must be at least 1")
	}

	if cfg.Throttle.WindowSeconds < 1 {
		return fmt.Errorf("throttle.window must be at least 1 second")
	}

	return nil
}
