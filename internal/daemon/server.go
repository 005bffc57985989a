package daemon

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
)

// ServerConfig holds configuration for the HTTP server.
type ServerConfig struct {
	Port int
	Bind string
}

// RefreshResult is the response to a /refresh request.
type RefreshResult struct {
	Status   string `json:"status"`
	Duration string `json:"duration"`
	Error    string `json:"error,omitempty"`
}

// RefreshFunc triggers an on-demand major refresh.
type RefreshFunc func(ctx context.Context) error

// Server serves the daemon's health, metrics, and control endpoints.
// It is safe for concurrent use.
type Server struct {
	mu             sync.RWMutex
	health         *HealthManager
	config         ServerConfig
	server         *http.Server
	router         *chi.Mux
	metricsHandler http.Handler
	refreshFunc    RefreshFunc
}

// NewServer creates an HTTP server over the given health manager.
func NewServer(health *HealthManager, config ServerConfig) *Server {
	s := &Server{
		health: health,
		config: config,
		router: chi.NewRouter(),
	}
	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	s.router.Get("/healthz", s.handleHealthz)
	s.router.Get("/readyz", s.handleReadyz)
	s.router.Post("/refresh", s.handleRefresh)

	if s.metricsHandler != nil {
		s.router.Handle("/metrics", s.metricsHandler)
	}
}

// SetMetricsHandler mounts the Prometheus metrics handler at /metrics.
func (s *Server) SetMetricsHandler(handler http.Handler) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.metricsHandler = handler
	s.router = chi.NewRouter()
	s.setupRoutes()
}

// SetRefreshFunc sets the function invoked by POST /refresh.
func (s *Server) SetRefreshFunc(fn RefreshFunc) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.refreshFunc = fn
}

// Handler returns the HTTP handler. Used by tests.
func (s *Server) Handler() http.Handler {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.router
}

// handleHealthz is the liveness probe: the process is up.
func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(map[string]string{"status": "alive"})
}

// handleReadyz is the readiness probe with per-component breakdown. Both
// healthy and degraded return 200.
func (s *Server) handleReadyz(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(s.health.Status())
}

// handleRefresh runs an on-demand major refresh. The refresh runs on its own
// context so a dropped client does not abort a send mid-flight.
func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	s.mu.RLock()
	fn := s.refreshFunc
	s.mu.RUnlock()

	if fn == nil {
		w.WriteHeader(http.StatusServiceUnavailable)
		json.NewEncoder(w).Encode(RefreshResult{Status: "error", Error: "refresh not available"})
		return
	}

	refreshCtx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	start := time.Now()
	if err := fn(refreshCtx); err != nil {
		w.WriteHeader(http.StatusInternalServerError)
		json.NewEncoder(w).Encode(RefreshResult{
			Status:   "error",
			Duration: time.Since(start).Round(time.Millisecond).String(),
			Error:    err.Error(),
		})
		return
	}

	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(RefreshResult{
		Status:   "ok",
		Duration: time.Since(start).Round(time.Millisecond).String(),
	})
}

// Start starts the HTTP server and blocks until it is stopped.
func (s *Server) Start(ctx context.Context) error {
	addr := fmt.Sprintf("%s:%d", s.config.Bind, s.config.Port)

	s.mu.Lock()
	s.server = &http.Server{
		Addr:    addr,
		Handler: s.router,
		BaseContext: func(net.Listener) context.Context {
			return ctx
		},
	}
	server := s.server
	s.mu.Unlock()

	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("http server error; %w", err)
	}
	return nil
}

// Shutdown gracefully shuts down the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.mu.RLock()
	server := s.server
	s.mu.RUnlock()

	if server == nil {
		return nil
	}
	if err := server.Shutdown(ctx); err != nil {
		return fmt.Errorf("failed to shutdown http server; %w", err)
	}
	return nil
}
