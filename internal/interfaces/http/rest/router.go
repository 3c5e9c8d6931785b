// Package rest wires the graph API routes and middleware.
package rest

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"brain2-graph/internal/config"
	"brain2-graph/internal/interfaces/http/rest/handlers"
	"brain2-graph/internal/interfaces/http/rest/middleware"
	"brain2-graph/internal/observability"
	"brain2-graph/pkg/api"
)

// Router creates and configures the HTTP router
type Router struct {
	graphs  *handlers.GraphHandler
	config  *config.Config
	metrics *observability.Collector
	tracer  trace.Tracer
	logger  *zap.Logger
}

// NewRouter creates a new router instance. metrics may be nil, in which case
// neither request metrics nor the metrics endpoint are served.
func NewRouter(
	graphs *handlers.GraphHandler,
	cfg *config.Config,
	metrics *observability.Collector,
	logger *zap.Logger,
) *Router {
	return &Router{
		graphs:  graphs,
		config:  cfg,
		metrics: metrics,
		tracer:  otel.Tracer("brain2-graph/http"),
		logger:  logger,
	}
}

// Setup configures all routes and middleware
func (rt *Router) Setup() http.Handler {
	router := chi.NewRouter()

	// Global middleware
	router.Use(chimiddleware.RequestID)
	router.Use(chimiddleware.RealIP)
	router.Use(middleware.Recovery(rt.logger))
	router.Use(middleware.Logger(rt.logger))
	router.Use(middleware.Tracing(rt.tracer))
	if rt.metrics != nil {
		router.Use(middleware.Metrics(rt.metrics))
	}

	router.Use(cors.Handler(cors.Options{
		AllowedOrigins: rt.config.CORS.AllowedOrigins,
		AllowedMethods: rt.config.CORS.AllowedMethods,
		AllowedHeaders: rt.config.CORS.AllowedHeaders,
		ExposedHeaders: []string{"X-Request-ID"},
		MaxAge:         rt.config.CORS.MaxAge,
	}))

	router.Get("/health", rt.healthCheck)
	if rt.metrics != nil && rt.config.Metrics.Enabled {
		router.Method(http.MethodGet, rt.metricsPath(), rt.metrics.Handler())
	}

	router.Route("/api/graph", func(r chi.Router) {
		if size := rt.config.Server.MaxRequestSize; size > 0 {
			r.Use(chimiddleware.RequestSize(size))
		}
		r.Use(middleware.CircuitBreaker(rt.breakerConfig(), rt.logger))

		r.Post("/process", rt.graphs.ProcessText)
		r.Post("/expand", rt.graphs.ExpandEntity)
		r.Post("/query", rt.graphs.ExecuteQuery)
		r.Get("/", rt.graphs.ListGraphs)
		r.Get("/{graphId}", rt.graphs.GetGraph)
		r.Delete("/{graphId}", rt.graphs.DeleteGraph)
	})

	router.NotFound(func(w http.ResponseWriter, r *http.Request) {
		api.RespondError(w, http.StatusNotFound, "ROUTE_NOT_FOUND", "Route not found")
	})
	router.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		api.RespondError(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "Method not allowed")
	})

	return router
}

func (rt *Router) breakerConfig() middleware.CircuitBreakerConfig {
	cfg := middleware.DefaultCircuitBreakerConfig("graph-api")
	b := rt.config.Breaker
	if b.MaxRequests > 0 {
		cfg.MaxRequests = b.MaxRequests
	}
	if b.Interval > 0 {
		cfg.Interval = b.Interval
	}
	if b.Timeout > 0 {
		cfg.Timeout = b.Timeout
	}
	if b.FailureRatio > 0 {
		cfg.FailureThreshold = b.FailureRatio
	}
	if b.MinRequests > 0 {
		cfg.MinRequests = b.MinRequests
	}
	return cfg
}

func (rt *Router) metricsPath() string {
	if rt.config.Metrics.Path != "" {
		return rt.config.Metrics.Path
	}
	return "/metrics"
}

// healthCheck handles health check requests
func (rt *Router) healthCheck(w http.ResponseWriter, req *http.Request) {
	api.RespondJSON(w, http.StatusOK, map[string]string{
		"status":      "healthy",
		"environment": string(rt.config.Environment),
	})
}
