// Package core provides the API chassis for the flight risk service: a chi
// router with the cross-cutting middleware chain (panic recovery, request
// correlation, logging, CORS, metrics) and the standard JSON response and
// error envelopes. Domain handlers mount onto the chassis through route
// registrars.
package core

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"flightrisk/internal/config"
)

// MetricsCollector records API request telemetry.
type MetricsCollector interface {
	RecordRequest(method, endpoint, status string, duration time.Duration)
}

// RouteRegistrar mounts one domain handler's routes onto the /v1 group. The
// indirection keeps core free of handler imports.
type RouteRegistrar func(r chi.Router)

// Server bundles the router with everything the middleware chain needs.
// Metrics and HealthProbes are optional; nil values degrade to pass-through.
type Server struct {
	Config            *config.Config
	Logger            *slog.Logger
	Metrics           MetricsCollector
	HealthProbes      []HealthProbe
	V1RouteRegistrars []RouteRegistrar

	router  *chi.Mux
	closers []func() error
}

// NewServer prepares the chassis. The caller mounts routes afterwards via
// MountRoutes; the separation lets tests customize registration.
func NewServer(cfg *config.Config, logger *slog.Logger) (*Server, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config must not be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{
		Config: cfg,
		Logger: logger,
		router: chi.NewRouter(),
	}, nil
}

// Handler returns the http.Handler for http.Server.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Router returns the underlying chi.Mux for route registration in tests.
func (s *Server) Router() *chi.Mux {
	return s.router
}

// OnShutdown registers a cleanup function to run during Shutdown, typically
// a connection pool close.
func (s *Server) OnShutdown(fn func() error) {
	s.closers = append(s.closers, fn)
}

// Shutdown runs registered cleanup functions in reverse order. The first
// failure is returned but does not stop the remaining cleanups.
func (s *Server) Shutdown(ctx context.Context) error {
	s.Logger.InfoContext(ctx, "server shutdown initiated")

	var firstErr error
	for i := len(s.closers) - 1; i >= 0; i-- {
		if err := s.closers[i](); err != nil {
			s.Logger.ErrorContext(ctx, "shutdown cleanup failed", "error", err)
			if firstErr == nil {
				firstErr = err
			}
		}
	}

	s.Logger.InfoContext(ctx, "server shutdown complete")
	return firstErr
}
