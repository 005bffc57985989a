// Package logging provides the daemon's slog-based logging stack: a manager
// handling the bootstrap-to-full transition, and a throttled logger that
// de-duplicates repeated error lines.
package logging

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	slogmulti "github.com/samber/slog-multi"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Manager handles logger lifecycle including bootstrap-to-full mode transitions.
// Components should obtain a logger via Logger() and use it for all logging.
type Manager struct {
	handler *sink
	logger  *slog.Logger
	rotator *lumberjack.Logger
	level   *slog.LevelVar
	mu      sync.Mutex
}

// NewManager creates a logging manager in bootstrap mode.
// Bootstrap mode writes only to stderr using text format.
// Call Upgrade() after config is available to enable file logging.
func NewManager() *Manager {
	level := new(slog.LevelVar)
	level.Set(DefaultLevel)

	// The sink gates on level; destinations are wide open so the LevelVar
	// is the one authority.
	bootstrap := slog.NewTextHandler(os.Stderr, openOpts())

	handler := newSink(level, bootstrap)
	logger := slog.New(handler)

	return &Manager{
		handler: handler,
		logger:  logger,
		level:   level,
	}
}

// Logger returns the current logger instance.
// The returned logger is stable across Upgrade calls.
func (m *Manager) Logger() *slog.Logger {
	return m.logger
}

// Upgrade transitions from bootstrap mode (stderr-only) to full mode
// (stderr text + rotated JSON file). Call after the config subsystem is
// initialized. Returns an error if the log directory cannot be created.
func (m *Manager) Upgrade(logFilePath string, level slog.Level) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	dir := filepath.Dir(logFilePath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create log directory %q; %w", dir, err)
	}

	if m.rotator != nil {
		_ = m.rotator.Close()
	}
	m.rotator = &lumberjack.Logger{
		Filename:   logFilePath,
		MaxSize:    20, // megabytes
		MaxBackups: 5,
		MaxAge:     30, // days
		Compress:   true,
	}

	m.level.Set(level)

	// Full mode: text to stderr + JSON to rotated file. Fanout consults
	// each destination's Enabled, so they stay wide open and the sink's
	// LevelVar remains the one gate.
	fullHandler := slogmulti.Fanout(
		slog.NewTextHandler(os.Stderr, openOpts()),
		slog.NewJSONHandler(m.rotator, openOpts()),
	)

	// Atomic swap; every logger in flight, including ones already derived
	// with With, follows to the new destination.
	m.handler.swap(fullHandler)

	return nil
}

// SetLevel changes the log level at runtime.
// Applies immediately to all future log calls.
func (m *Manager) SetLevel(level slog.Level) {
	m.level.Set(level)
}

// openOpts admits every level so gating happens only at the sink.
func openOpts() *slog.HandlerOptions {
	return &slog.HandlerOptions{Level: slog.LevelDebug}
}

// Close cleanly shuts down the logger, closing the file rotator if open.
// Should be called during application shutdown.
func (m *Manager) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.rotator != nil {
		err := m.rotator.Close()
		m.rotator = nil
		return err
	}
	return nil
}
