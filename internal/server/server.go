// Package server provides the pokedex HTTP server.
package server

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/ericreyes/pokedex/internal/config"
	"github.com/ericreyes/pokedex/internal/events"
	"github.com/ericreyes/pokedex/internal/httputil"
	"github.com/ericreyes/pokedex/internal/metrics"
	"github.com/ericreyes/pokedex/internal/store"
)

const (
	serviceName = "pokedex"
	apiVersion  = "pokedex/v1"

	maxBodyBytes = 1 << 20
)

// Server wraps HTTP routes and dependencies.
type Server struct {
	store       store.Store
	cfg         config.Config
	version     string
	commit      string
	buildDate   string
	openapiSpec []byte
	publisher   events.Publisher
	metrics     *metrics.Metrics
	router      chi.Router
}

// Option configures server construction.
type Option func(*Server)

// WithOpenAPISpec sets the embedded OpenAPI bytes.
func WithOpenAPISpec(spec []byte) Option {
	return func(s *Server) {
		s.openapiSpec = spec
	}
}

// WithPublisher sets the change event publisher.
func WithPublisher(p events.Publisher) Option {
	return func(s *Server) {
		if p != nil {
			s.publisher = p
		}
	}
}

// WithMetrics enables request instrumentation and the /metrics endpoint.
func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Server) {
		s.metrics = m
	}
}

// New constructs a pokedex API server.
func New(st store.Store, cfg config.Config, version, commit, buildDate string, opts ...Option) *Server {
	s := &Server{
		store:     st,
		cfg:       cfg,
		version:   version,
		commit:    commit,
		buildDate: buildDate,
		publisher: events.NoopPublisher{},
	}
	for _, opt := range opts {
		opt(s)
	}
	s.router = s.buildRouter()
	return s
}

// Router returns the configured router.
func (s *Server) Router() chi.Router {
	return s.router
}

func (s *Server) buildRouter() chi.Router {
	r := chi.NewRouter()

	r.Use(otelhttp.NewMiddleware(serviceName))
	if s.metrics != nil {
		r.Use(s.metrics.Middleware)
	}
	r.Use(middleware.RequestID)
	r.Use(httputil.RequestLogger(log.Logger))
	r.Use(httputil.Recoverer)
	r.Use(httputil.SecureHeaders)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: s.cfg.CORSAllowedOrigins,
		AllowedMethods: []string{
			http.MethodGet, http.MethodPost, http.MethodPut,
			http.MethodPatch, http.MethodDelete, http.MethodOptions,
		},
		AllowedHeaders: []string{"Accept", "Content-Type", middleware.RequestIDHeader},
		ExposedHeaders: []string{"X-API-Version", middleware.RequestIDHeader},
		MaxAge:         300,
	}))
	r.Use(httputil.BodyLimit(maxBodyBytes))
	r.Use(httputil.APIVersion(apiVersion))

	r.NotFound(s.handleRouteNotFound)
	r.MethodNotAllowed(s.handleMethodNotAllowed)

	r.Group(func(r chi.Router) {
		r.Method(http.MethodGet, "/health", httputil.HealthHandler())
		r.Method(http.MethodGet, "/readiness", httputil.ReadinessHandler(func(ctx context.Context) error {
			return s.store.Ping(ctx)
		}))
		r.Method(http.MethodGet, "/version", httputil.VersionHandler(s.version, s.commit, s.buildDate))
		if s.cfg.MetricsEnabled && s.metrics != nil {
			r.Method(http.MethodGet, "/metrics", s.metrics.Handler())
		}
	})

	r.Route("/api", func(r chi.Router) {
		r.Use(httputil.Timeout(s.cfg.RequestTimeout))
		r.Use(httputil.ContentType)

		r.NotFound(s.handleRouteNotFound)
		r.MethodNotAllowed(s.handleMethodNotAllowed)

		r.Method(http.MethodGet, "/openapi.yaml", httputil.OpenAPIHandler(s.openapiSpec))

		r.Route("/pokemon", func(r chi.Router) {
			r.Get("/", s.handleListPokemon)
			r.Post("/", s.handleCreatePokemon)
			r.Post("/search", s.handleSearchPokemon)
			r.Get("/{id}", s.handleGetPokemon)
			r.Put("/{id}", s.handleReplacePokemon)
			r.Patch("/{id}", s.handlePatchPokemon)
			r.Delete("/{id}", s.handleDeletePokemon)
		})
	})

	if s.cfg.StaticDir != "" {
		r.Handle("/*", staticHandler(s.cfg.StaticDir, s.handleRouteNotFound))
	}

	return r
}
