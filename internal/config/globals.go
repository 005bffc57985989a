package config

import (
	"fmt"
	"sync"
)

var (
	mu     sync.RWMutex
	loaded *Config
)

// Init loads the configuration into the package-level instance. Called once
// from the CLI root before subcommands run.
func Init() error {
	cfg, err := Load()
	if err != nil {
		return err
	}

	mu.Lock()
	loaded = cfg
	mu.Unlock()
	return nil
}

// Get returns the loaded configuration. It panics when Init has not run;
// that is a programming error, not a runtime condition.
func Get() *Config {
	mu.RLock()
	defer mu.RUnlock()
	if loaded == nil {
		panic(fmt.Errorf("config.Get called before config.Init"))
	}
	return loaded
}

// Set replaces the loaded configuration. Used by tests.
func Set(cfg *Config) {
	mu.Lock()
	loaded = cfg
	mu.Unlock()
}
