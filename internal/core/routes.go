package core

import (
	"time"

	"github.com/go-chi/chi/v5"
)

// defaultRequestTimeout applies when the config does not set one.
const defaultRequestTimeout = 30 * time.Second

// MountRoutes registers the global middleware chain, the /v1 group, and the
// health endpoint.
//
// Middleware order matters:
//  1. Recoverer        - outermost, catches everything below.
//  2. ContextTimeout   - soft deadline for downstream work.
//  3. RequestID        - correlation ID for logs and envelopes.
//  4. SecurityHeaders  - present on every response, errors included.
//  5. RequestLogger    - structured request logs.
//  6. CORS             - browser access control.
//  7. Metrics          - request latency and count.
func (s *Server) MountRoutes() {
	s.router.Use(s.Recoverer)
	s.router.Use(ContextTimeoutMiddleware(s.requestTimeout()))
	s.router.Use(RequestIDMiddleware)
	s.router.Use(s.SecurityHeadersMiddleware)
	s.router.Use(s.RequestLogger)
	s.router.Use(NewCORSMiddleware(s.corsAllowedOrigins()))
	s.router.Use(s.MetricsMiddleware)

	s.router.Route("/v1", func(r chi.Router) {
		for _, registrar := range s.V1RouteRegistrars {
			registrar(r)
		}
	})

	s.router.Get("/health", s.HandleHealth)
}

func (s *Server) requestTimeout() time.Duration {
	if s.Config != nil && s.Config.Server.RequestTimeout > 0 {
		return s.Config.Server.RequestTimeout
	}
	return defaultRequestTimeout
}

func (s *Server) corsAllowedOrigins() []string {
	if s.Config != nil && len(s.Config.Server.CorsAllowedOrigins) > 0 {
		return s.Config.Server.CorsAllowedOrigins
	}
	return []string{"*"}
}
