// Package api provides the REST API server for repository access.
package api

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	v1 "github.com/stacklok/gitrepo-server/internal/api/v1"
	"github.com/stacklok/gitrepo-server/internal/notify"
	"github.com/stacklok/gitrepo-server/internal/service"
)

// DefaultRequestTimeout bounds REST requests. The websocket route is exempt.
const DefaultRequestTimeout = 30 * time.Second

// ServerOption configures the repository API server
type ServerOption func(*serverConfig)

type serverConfig struct {
	middlewares    []func(http.Handler) http.Handler
	requestTimeout time.Duration
	hub            *notify.Hub
	wsWriteTimeout time.Duration
	metricsHandler http.Handler
}

// WithMiddlewares adds middleware to the server
func WithMiddlewares(mw ...func(http.Handler) http.Handler) ServerOption {
	return func(cfg *serverConfig) {
		cfg.middlewares = append(cfg.middlewares, mw...)
	}
}

// WithRequestTimeout sets the deadline of REST requests
func WithRequestTimeout(d time.Duration) ServerOption {
	return func(cfg *serverConfig) {
		cfg.requestTimeout = d
	}
}

// WithNotifications serves the websocket notification channel at /v1/ws
func WithNotifications(hub *notify.Hub, writeTimeout time.Duration) ServerOption {
	return func(cfg *serverConfig) {
		cfg.hub = hub
		cfg.wsWriteTimeout = writeTimeout
	}
}

// WithMetricsHandler serves a Prometheus scrape handler at /metrics
func WithMetricsHandler(h http.Handler) ServerOption {
	return func(cfg *serverConfig) {
		cfg.metricsHandler = h
	}
}

// NewServer creates and configures the HTTP router with the given service and options
func NewServer(svc service.RepositoryService, opts ...ServerOption) *chi.Mux {
	cfg := &serverConfig{
		requestTimeout: DefaultRequestTimeout,
	}
	for _, opt := range opts {
		opt(cfg)
	}

	r := chi.NewRouter()
	for _, mw := range cfg.middlewares {
		r.Use(mw)
	}

	r.Mount("/", HealthRouter(svc))
	if cfg.metricsHandler != nil {
		r.Method(http.MethodGet, "/metrics", cfg.metricsHandler)
	}

	r.Route("/v1", func(r chi.Router) {
		if cfg.hub != nil {
			r.Get("/ws", v1.WebsocketHandler(cfg.hub, cfg.wsWriteTimeout))
		}
		r.Group(func(r chi.Router) {
			if cfg.requestTimeout > 0 {
				r.Use(middleware.Timeout(cfg.requestTimeout))
			}
			r.Mount("/repos", v1.Router(svc))
		})
	})

	return r
}

// LoggingMiddleware logs HTTP requests
func LoggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

		next.ServeHTTP(ww, r)

		slog.DebugContext(r.Context(), "HTTP request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"duration", time.Since(start),
			"request_id", middleware.GetReqID(r.Context()),
		)
	})
}
