// Package api provides the HTTP server and routing.
package api

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/axonops/axonops-schema-registry/internal/api/handlers"
	"github.com/axonops/axonops-schema-registry/internal/auth"
	"github.com/axonops/axonops-schema-registry/internal/compatibility"
	"github.com/axonops/axonops-schema-registry/internal/config"
	"github.com/axonops/axonops-schema-registry/internal/metrics"
	"github.com/axonops/axonops-schema-registry/internal/registry"
	"github.com/axonops/axonops-schema-registry/internal/schema"
)

// Server represents the HTTP server. It serves exclusively off the
// log-replay core (spec §4.D/E): state is rebuilt by replaying the
// compacted schemas topic, and writer is the sole path by which a write
// request reaches that log.
type Server struct {
	config        *config.Config
	router        chi.Router
	server        *http.Server
	logger        *slog.Logger
	metrics       *metrics.Metrics
	authenticator *auth.Authenticator
	authorizer    *auth.Authorizer
	authService   *auth.Service
	rateLimiter   *auth.RateLimiter

	state         *registry.State
	writer        *registry.Writer
	checker       *compatibility.Checker
	schemaParser  *schema.Registry
	handlerConfig handlers.Config
}

// ServerOption is a function that configures the server.
type ServerOption func(*Server)

// WithLogReplay wires the server onto the log-replay core: reads come
// from state, writes go through writer and block until the reader loop
// replays them back into state. Required before Start; NewServer panics if
// it was never applied.
func WithLogReplay(state *registry.State, writer *registry.Writer, checker *compatibility.Checker, schemaParser *schema.Registry, cfg handlers.Config) ServerOption {
	return func(s *Server) {
		s.state = state
		s.writer = writer
		s.checker = checker
		s.schemaParser = schemaParser
		s.handlerConfig = cfg
	}
}

// WithAuth configures authentication and authorization for the server.
func WithAuth(authenticator *auth.Authenticator, authorizer *auth.Authorizer, authService *auth.Service) ServerOption {
	return func(s *Server) {
		s.authenticator = authenticator
		s.authorizer = authorizer
		s.authService = authService
	}
}

// WithMetrics overrides the server's default Prometheus registry. Used when
// another component (the reader loop) must publish to the same registry so
// both surface through the one /metrics endpoint.
func WithMetrics(m *metrics.Metrics) ServerOption {
	return func(s *Server) {
		s.metrics = m
	}
}

// WithRateLimiter configures rate limiting for the server.
func WithRateLimiter(rateLimiter *auth.RateLimiter) ServerOption {
	return func(s *Server) {
		s.rateLimiter = rateLimiter
	}
}

// NewServer creates a new HTTP server. opts must include WithLogReplay.
func NewServer(cfg *config.Config, logger *slog.Logger, opts ...ServerOption) *Server {
	s := &Server{
		config:  cfg,
		logger:  logger,
		metrics: metrics.New(),
	}

	// Apply options
	for _, opt := range opts {
		opt(s)
	}
	if s.state == nil {
		panic("api.NewServer: WithLogReplay was not supplied")
	}

	s.setupRouter()
	return s
}

// Metrics returns the metrics instance for recording custom metrics.
func (s *Server) Metrics() *metrics.Metrics {
	return s.metrics
}

// setupRouter configures the HTTP router.
func (s *Server) setupRouter() {
	r := chi.NewRouter()

	// Common middleware for all routes
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.loggingMiddleware)
	r.Use(s.metrics.Middleware)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(30 * time.Second))

	lh := handlers.NewLogReplayHandler(s.state, s.writer, s.checker, s.schemaParser, s.handlerConfig)

	// Public endpoints (no auth required) - health checks, metrics, and documentation
	r.Get("/", lh.HealthCheck)
	r.Get("/health/live", lh.LivenessCheck)
	r.Get("/health/ready", lh.ReadinessCheck)
	r.Get("/health/startup", lh.StartupCheck)
	r.Get("/metrics", func(w http.ResponseWriter, r *http.Request) {
		s.metrics.Handler().ServeHTTP(w, r)
	})
	if s.config.Server.DocsEnabled {
		r.Get("/docs", handleSwaggerUI)
		r.Get("/openapi.yaml", handleOpenAPISpec)
	}

	// Protected routes group (auth required when configured)
	r.Group(func(r chi.Router) {
		// Add auth middleware if configured
		if s.authenticator != nil {
			r.Use(s.authenticator.Middleware)
		}

		// Add authorization middleware if configured
		if s.authorizer != nil {
			r.Use(s.authorizer.AuthorizeEndpoint(auth.DefaultEndpointPermissions()))
		}

		// Add rate limiting middleware if configured
		if s.rateLimiter != nil {
			r.Use(s.rateLimiter.Middleware)
		}

		// Mount all schema registry routes at root level
		mountLogReplayRoutes(r, lh)

		// Account endpoints (self-service, requires auth)
		if s.authService != nil {
			accountHandler := handlers.NewAccountHandler(s.authService)
			r.Route("/me", func(r chi.Router) {
				r.Get("/", accountHandler.GetCurrentUser)
				r.Post("/password", accountHandler.ChangePassword)
			})
		}

		// Admin endpoints (requires auth)
		if s.authService != nil && s.authorizer != nil {
			adminHandler := handlers.NewAdminHandler(s.authService, s.authorizer)
			r.Route("/admin", func(r chi.Router) {
				// User management
				r.Get("/users", adminHandler.ListUsers)
				r.Post("/users", adminHandler.CreateUser)
				r.Get("/users/{id}", adminHandler.GetUser)
				r.Put("/users/{id}", adminHandler.UpdateUser)
				r.Delete("/users/{id}", adminHandler.DeleteUser)

				// API Key management
				r.Get("/apikeys", adminHandler.ListAPIKeys)
				r.Post("/apikeys", adminHandler.CreateAPIKey)
				r.Get("/apikeys/{id}", adminHandler.GetAPIKey)
				r.Put("/apikeys/{id}", adminHandler.UpdateAPIKey)
				r.Delete("/apikeys/{id}", adminHandler.DeleteAPIKey)
				r.Post("/apikeys/{id}/revoke", adminHandler.RevokeAPIKey)
				r.Post("/apikeys/{id}/rotate", adminHandler.RotateAPIKey)

				// Roles
				r.Get("/roles", adminHandler.ListRoles)
			})
		}
	})

	s.router = r
}

// mountLogReplayRoutes registers the schema registry API the log-replay
// core (registry.State + registry.Writer) serves. The core models a single
// flat namespace (spec module D has no multi-context support), so there is
// no /contexts/{context} route group; mode and schema-import have no
// equivalent in State and are out of scope.
func mountLogReplayRoutes(r chi.Router, h *handlers.LogReplayHandler) {
	r.Get("/schemas/types", h.GetSchemaTypes)

	r.Get("/schemas/ids/{id}", h.GetSchemaByID)
	r.Get("/schemas/ids/{id}/schema", h.GetRawSchemaByID)

	r.Get("/subjects", h.ListSubjects)
	r.Get("/subjects/{subject}/versions", h.GetVersions)
	r.Get("/subjects/{subject}/versions/{version}", h.GetVersion)
	r.Get("/subjects/{subject}/versions/{version}/schema", h.GetRawSchemaByVersion)
	r.Post("/subjects/{subject}/versions", h.RegisterSchema)
	r.Post("/subjects/{subject}", h.LookupSchema)
	r.Delete("/subjects/{subject}", h.DeleteSubject)
	r.Delete("/subjects/{subject}/versions/{version}", h.DeleteVersion)

	r.Get("/config", h.GetConfig)
	r.Put("/config", h.SetConfig)
	r.Delete("/config", h.DeleteGlobalConfig)
	r.Get("/config/{subject}", h.GetConfig)
	r.Put("/config/{subject}", h.SetConfig)
	r.Delete("/config/{subject}", h.DeleteConfig)

	r.Post("/compatibility/subjects/{subject}/versions/{version}", h.CheckCompatibility)
	r.Post("/compatibility/subjects/{subject}/versions", h.CheckCompatibility)

	r.Get("/contexts", h.GetContexts)

	r.Get("/v1/metadata/id", h.GetClusterID)
	r.Get("/v1/metadata/version", h.GetServerVersion)
}

// loggingMiddleware logs HTTP requests.
func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

		defer func() {
			s.logger.Info("request",
				slog.String("method", r.Method),
				slog.String("path", r.URL.Path),
				slog.Int("status", ww.Status()),
				slog.Duration("duration", time.Since(start)),
				slog.String("remote", r.RemoteAddr),
			)
		}()

		next.ServeHTTP(ww, r)
	})
}

// Start starts the HTTP server.
func (s *Server) Start() error {
	addr := s.config.Address()
	s.server = &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  time.Duration(s.config.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(s.config.Server.WriteTimeout) * time.Second,
	}

	// Configure TLS if enabled
	if s.config.Security.TLS.Enabled {
		tlsConfig, err := auth.CreateServerTLSConfig(s.config.Security.TLS)
		if err != nil {
			return fmt.Errorf("failed to configure TLS: %w", err)
		}
		s.server.TLSConfig = tlsConfig
		s.logger.Info("starting server with TLS", slog.String("address", addr))
		return s.server.ListenAndServeTLS("", "") // Certs loaded via GetCertificate
	}

	s.logger.Info("starting server", slog.String("address", addr))
	return s.server.ListenAndServe()
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}

// Router returns the HTTP router for testing.
func (s *Server) Router() http.Handler {
	return s.router
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// Address returns the server address.
func (s *Server) Address() string {
	if s.config.Security.TLS.Enabled {
		return fmt.Sprintf("https://%s", s.config.Address())
	}
	return fmt.Sprintf("http://%s", s.config.Address())
}
