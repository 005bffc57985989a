// Package daemon manages the flapboard background process: lifecycle state,
// PID file, health aggregation, the HTTP control surface, and the runtime
// wiring of every pipeline component.
package daemon

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	sd "github.com/coreos/go-systemd/v22/daemon"

	"github.com/leefowlercu/flapboard/internal/metrics"
)

// State is the daemon lifecycle state.
type State string

const (
	StateStarting State = "starting"
	StateRunning  State = "running"
	StateStopping State = "stopping"
	StateStopped  State = "stopped"
)

// Config holds process-level daemon settings.
type Config struct {
	// HTTPPort is the port for the health/metrics HTTP server.
	HTTPPort int

	// HTTPBind is the address to bind the HTTP server.
	HTTPBind string

	// ShutdownTimeout bounds graceful shutdown.
	ShutdownTimeout time.Duration

	// PIDFile is the path to the PID file.
	PIDFile string
}

// Daemon owns the process lifecycle. It is safe for concurrent use.
type Daemon struct {
	mu      sync.RWMutex
	config  Config
	state   State
	server  *Server
	health  *HealthManager
	pidFile *PIDFile
	log     *slog.Logger
}

// New creates a daemon with the given configuration.
func New(cfg Config, logger *slog.Logger) *Daemon {
	if logger == nil {
		logger = slog.Default()
	}
	health := NewHealthManager()
	server := NewServer(health, ServerConfig{
		Port: cfg.HTTPPort,
		Bind: cfg.HTTPBind,
	})
	server.SetMetricsHandler(metrics.Handler())

	return &Daemon{
		config:  cfg,
		state:   StateStopped,
		server:  server,
		health:  health,
		pidFile: NewPIDFile(cfg.PIDFile),
		log:     logger,
	}
}

// State returns the current lifecycle state.
func (d *Daemon) State() State {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.state
}

func (d *Daemon) setState(state State) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.state = state
}

// Health returns the health manager components report into.
func (d *Daemon) Health() *HealthManager {
	return d.health
}

// Server returns the HTTP control surface, for wiring handlers before Start.
func (d *Daemon) Server() *Server {
	return d.server
}

// Start claims the PID file, starts the HTTP server, notifies the service
// manager, and blocks until the context is cancelled or the server fails.
func (d *Daemon) Start(ctx context.Context) error {
	d.setState(StateStarting)

	if err := d.pidFile.CheckAndClaim(); err != nil {
		d.setState(StateStopped)
		return fmt.Errorf("failed to claim PID file; %w", err)
	}
	defer func() { _ = d.pidFile.Remove() }()

	d.setState(StateRunning)
	d.log.Info("daemon started",
		"bind", d.config.HTTPBind,
		"port", d.config.HTTPPort,
		"pid_file", d.config.PIDFile)

	// Tell systemd we are up; a no-op outside a unit.
	if _, err := sd.SdNotify(false, sd.SdNotifyReady); err != nil {
		d.log.Debug("sd_notify ready failed", "error", err)
	}

	serverErr := make(chan error, 1)
	go func() {
		if err := d.server.Start(ctx); err != nil {
			serverErr <- err
		}
		close(serverErr)
	}()

	select {
	case <-ctx.Done():
		d.log.Info("shutdown signal received")
	case err := <-serverErr:
		if err != nil {
			d.log.Error("http server error", "error", err)
		}
	}

	return d.Stop()
}

// Stop performs graceful shutdown of the HTTP server.
func (d *Daemon) Stop() error {
	d.setState(StateStopping)
	d.log.Info("stopping daemon")

	if _, err := sd.SdNotify(false, sd.SdNotifyStopping); err != nil {
		d.log.Debug("sd_notify stopping failed", "error", err)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), d.config.ShutdownTimeout)
	defer cancel()

	if err := d.server.Shutdown(shutdownCtx); err != nil {
		d.log.Error("failed to shutdown http server", "error", err)
	}

	d.setState(StateStopped)
	d.log.Info("daemon stopped")
	return nil
}
