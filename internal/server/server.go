// Package server provides the HTTP server setup and wiring.
package server

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/verimeta/verimeta/internal/config"
	metadataDomain "github.com/verimeta/verimeta/internal/metadata/domain"
	metadataTransport "github.com/verimeta/verimeta/internal/metadata/transport"
	"github.com/verimeta/verimeta/internal/middleware/logging"
	"github.com/verimeta/verimeta/internal/middleware/ratelimit"
	"github.com/verimeta/verimeta/internal/middleware/realip"
	"github.com/verimeta/verimeta/internal/middleware/security"
	"github.com/verimeta/verimeta/internal/networks"
	"github.com/verimeta/verimeta/internal/observability/metrics"
	"github.com/verimeta/verimeta/internal/sources/registry"
	"github.com/verimeta/verimeta/internal/storage"
)

// Server is the HTTP server
type Server struct {
	cfg    *config.Config
	store  storage.Store
	logger *slog.Logger
	router *chi.Mux

	// Service typed via the transport interface
	metadataSvc metadataTransport.Service
}

// New creates a new server
func New(cfg *config.Config, store storage.Store, logger *slog.Logger) *Server {
	s := &Server{
		cfg:    cfg,
		store:  store,
		logger: logger,
		router: chi.NewRouter(),
	}

	// Network registry and per-chain source assembly
	nets := networks.DefaultRegistry()
	provider := registry.New(cfg.Sources, nets, logger)

	// Domain service wrapped with logging middleware
	svc := metadataDomain.NewService(store, provider, nets, cacheTTL(cfg.Cache))
	s.metadataSvc = metadataDomain.LoggingMiddleware(logger)(svc)

	s.setupMiddleware()
	s.setupRoutes()

	return s
}

// cacheTTL maps cache configuration to the service TTL. A disabled cache
// means no reads; a non-positive TTL with the cache enabled means cached
// records never expire.
func cacheTTL(cfg config.CacheConfig) time.Duration {
	if !cfg.Enabled {
		return 0
	}
	if cfg.TTLSeconds <= 0 {
		return -1
	}
	return time.Duration(cfg.TTLSeconds) * time.Second
}

// Handler returns the HTTP handler
func (s *Server) Handler() http.Handler {
	return s.router
}

// MetricsHandler returns the metrics HTTP handler for the separate metrics listener
func (s *Server) MetricsHandler() http.Handler {
	return metrics.Handler()
}

func (s *Server) setupMiddleware() {
	// Order matters! Client IP resolution must run before anything that logs
	// or throttles by IP.

	// 1. Real IP extraction
	s.router.Use(realip.Middleware(realip.Config{
		TrustProxy:     s.cfg.Proxy.TrustProxy,
		TrustedProxies: s.cfg.Proxy.TrustedProxies,
	}))

	// 2. Scanner filter (blocks attack patterns, bypasses health probes)
	s.router.Use(security.Middleware(s.cfg.Security.FilterEnabled))

	// 3. Rate limiting (bypasses health probes)
	s.router.Use(ratelimit.Middleware(ratelimit.Config{
		Enabled:        s.cfg.RateLimit.Enabled,
		RequestsPerMin: s.cfg.RateLimit.RequestsPerMin,
		BurstSize:      s.cfg.RateLimit.BurstSize,
		CleanupMinutes: s.cfg.RateLimit.CleanupMinutes,
	}))

	// 4. Standard middleware
	s.router.Use(middleware.RequestID)
	s.router.Use(logging.Middleware(s.logger))
	s.router.Use(metrics.Middleware)
	s.router.Use(middleware.Recoverer)
	s.router.Use(middleware.Compress(5))

	// 5. CORS. The API is read-only for browsers; eviction is an
	// operational call and stays out of the allowed methods.
	s.router.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Access-Control-Allow-Origin", "*")
			w.Header().Set("Access-Control-Allow-Methods", "GET, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Accept, Content-Type")
			if r.Method == "OPTIONS" {
				w.WriteHeader(http.StatusOK)
				return
			}
			next.ServeHTTP(w, r)
		})
	})
}

func (s *Server) setupRoutes() {
	// OpenAPI spec
	s.router.Get("/api/openapi.yaml", s.handleOpenAPISpec)

	// Health checks: liveness is unconditional, readiness pings the store
	s.router.Get("/health", s.handleHealth)
	s.router.Get("/healthz", s.handleHealth)
	s.router.Get("/readyz", s.handleReady)

	handler := metadataTransport.NewHandler(s.metadataSvc)

	// API v1 routes (read plus cache eviction, no auth surface)
	s.router.Route("/api/v1", func(r chi.Router) {
		handler.RegisterRoutes(r)
	})
}

// Health check handlers

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	if err := s.store.Ping(r.Context()); err != nil {
		s.logger.Warn("readiness check failed", "error", err)
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handleOpenAPISpec serves the OpenAPI specification.
func (s *Server) handleOpenAPISpec(w http.ResponseWriter, r *http.Request) {
	http.ServeFile(w, r, "spec/openapi.yaml")
}

// Helper functions

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}
