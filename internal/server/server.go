// Package server exposes the tool host over streamable HTTP: /mcp carries
// the MCP session and /health answers probes.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/matiasleandrokruk/sqlagent/internal/infra/logging"
	"github.com/matiasleandrokruk/sqlagent/internal/server/middleware"
	"github.com/matiasleandrokruk/sqlagent/internal/version"
)

// MCPPath is where the streamable MCP handler is mounted.
const MCPPath = "/mcp"

// Config holds HTTP server configuration.
type Config struct {
	Addr         string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration
	// JWTSecret enables bearer auth on MCPPath when non-empty.
	JWTSecret       []byte
	ShutdownTimeout time.Duration
	// Health, when set, backs /health; a failure reports the host degraded.
	Health func(context.Context) error
}

// DefaultConfig returns default HTTP server configuration. WriteTimeout is
// zero because MCP responses may be long-lived event streams.
func DefaultConfig() Config {
	return Config{
		Addr:            "127.0.0.1:8750",
		ReadTimeout:     15 * time.Second,
		IdleTimeout:     60 * time.Second,
		ShutdownTimeout: 5 * time.Second,
	}
}

// NewRouter mounts mcpHandler under MCPPath and the public health check.
func NewRouter(mcpHandler http.Handler, cfg Config, logger *slog.Logger) *chi.Mux {
	r := chi.NewRouter()

	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(chimw.Recoverer)

	r.Get("/health", func(w http.ResponseWriter, req *http.Request) {
		status, body := http.StatusOK, map[string]string{
			"status":  "ok",
			"name":    version.Name,
			"version": version.Version,
		}
		if cfg.Health != nil {
			if err := cfg.Health(req.Context()); err != nil {
				logger.Warn("health check failed", slog.String("error", err.Error()))
				status = http.StatusServiceUnavailable
				body["status"] = "degraded"
				body["error"] = err.Error()
			}
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		json.NewEncoder(w).Encode(body) //nolint:errcheck
	})

	r.Group(func(r chi.Router) {
		if len(cfg.JWTSecret) > 0 {
			r.Use(middleware.BearerAuth(cfg.JWTSecret))
		}
		r.Use(middleware.AccessLog(logger))
		r.Handle(MCPPath, mcpHandler)
	})

	return r
}

// Server wraps the HTTP server in front of the tool host.
type Server struct {
	config Config
	http   *http.Server
	log    *slog.Logger
}

// NewServer creates a server routing MCPPath to mcpHandler.
func NewServer(mcpHandler http.Handler, config Config) *Server {
	log := logging.New("http")
	return &Server{
		config: config,
		log:    log,
		http: &http.Server{
			Addr:              config.Addr,
			Handler:           NewRouter(mcpHandler, config, log),
			ReadTimeout:       config.ReadTimeout,
			ReadHeaderTimeout: config.ReadTimeout,
			WriteTimeout:      config.WriteTimeout,
			IdleTimeout:       config.IdleTimeout,
		},
	}
}

// Handler returns the routed handler.
func (s *Server) Handler() http.Handler {
	return s.http.Handler
}

// Start serves until ctx is cancelled or the listener fails. Cancellation
// triggers a graceful shutdown and Start returns nil.
func (s *Server) Start(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		s.log.Info("starting HTTP server", slog.String("addr", s.http.Addr), slog.Bool("auth", len(s.config.JWTSecret) > 0))
		errCh <- s.http.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("http server: %w", err)
	case <-ctx.Done():
	}

	timeout := s.config.ShutdownTimeout
	if timeout <= 0 {
		timeout = DefaultConfig().ShutdownTimeout
	}
	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), timeout)
	defer cancel()
	return s.Shutdown(shutdownCtx)
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.log.Info("shutting down HTTP server")
	if err := s.http.Shutdown(ctx); err != nil {
		return fmt.Errorf("server shutdown error: %w", err)
	}
	return nil
}
