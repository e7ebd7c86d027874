package app

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/netip"
	"os"
	"strings"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/stacklok/gitrepo-server/internal/api"
	"github.com/stacklok/gitrepo-server/internal/auth"
	"github.com/stacklok/gitrepo-server/internal/blocking"
	"github.com/stacklok/gitrepo-server/internal/clone"
	"github.com/stacklok/gitrepo-server/internal/config"
	"github.com/stacklok/gitrepo-server/internal/git"
	"github.com/stacklok/gitrepo-server/internal/notify"
	"github.com/stacklok/gitrepo-server/internal/repolock"
	"github.com/stacklok/gitrepo-server/internal/repopath"
	"github.com/stacklok/gitrepo-server/internal/service"
	"github.com/stacklok/gitrepo-server/internal/status"
	"github.com/stacklok/gitrepo-server/internal/telemetry"
)

const (
	defaultHTTPAddress    = ":8080"
	defaultRequestTimeout = api.DefaultRequestTimeout
	defaultReadTimeout    = 10 * time.Second
	defaultWriteTimeout   = defaultRequestTimeout + 5*time.Second
	defaultIdleTimeout    = 60 * time.Second

	basePathPerm = 0750
)

// defaultPublicPaths are paths that never require authentication
var defaultPublicPaths = []string{"/health", "/readiness", "/version", "/metrics"}

// GitRepoAppOptions is a function that configures the app builder
type GitRepoAppOptions func(*gitRepoAppConfig) error

// gitRepoAppConfig collects the builder inputs. Component overrides exist
// for tests; production leaves them nil and gets the defaults.
type gitRepoAppConfig struct {
	config *config.Config

	// Optional component overrides
	gitClient      git.Client
	authMiddleware func(http.Handler) http.Handler

	// HTTP server options
	address        string
	middlewares    []func(http.Handler) http.Handler
	requestTimeout time.Duration
	readTimeout    time.Duration
	writeTimeout   time.Duration
	idleTimeout    time.Duration

	// Telemetry components
	meterProvider  metric.MeterProvider
	tracerProvider trace.TracerProvider
	metricsHandler http.Handler
}

func baseConfig(opts ...GitRepoAppOptions) (*gitRepoAppConfig, error) {
	cfg := &gitRepoAppConfig{
		address:        defaultHTTPAddress,
		requestTimeout: defaultRequestTimeout,
		readTimeout:    defaultReadTimeout,
		writeTimeout:   defaultWriteTimeout,
		idleTimeout:    defaultIdleTimeout,
	}

	for _, opt := range opts {
		if err := opt(cfg); err != nil {
			return nil, err
		}
	}

	if cfg.writeTimeout <= cfg.requestTimeout {
		cfg.writeTimeout = cfg.requestTimeout + 5*time.Second
	}

	return cfg, nil
}

// NewGitRepoApp wires every component of the server from the configuration
func NewGitRepoApp(
	ctx context.Context,
	opts ...GitRepoAppOptions,
) (*GitRepoApp, error) {
	cfg, err := baseConfig(opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to build base configuration: %w", err)
	}
	if cfg.config == nil {
		return nil, fmt.Errorf("config cannot be nil")
	}

	components, err := buildComponents(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to build components: %w", err)
	}

	// The orchestrator holds a background context until stopped
	var cleanupNeeded = true
	defer func() {
		if cleanupNeeded {
			_ = components.CloneOrchestrator.Stop()
		}
	}()

	if cfg.authMiddleware == nil {
		cfg.authMiddleware, err = auth.NewAuthMiddleware(cfg.config.Auth)
		if err != nil {
			return nil, fmt.Errorf("failed to build auth middleware: %w", err)
		}
	}

	httpServer, err := buildHTTPServer(ctx, cfg, components)
	if err != nil {
		return nil, fmt.Errorf("failed to build HTTP server: %w", err)
	}
	cleanupNeeded = false

	appCtx, cancel := context.WithCancel(ctx)

	return &GitRepoApp{
		config:     cfg.config,
		components: components,
		httpServer: httpServer,
		ctx:        appCtx,
		cancelFunc: cancel,
	}, nil
}

// WithConfig sets the configuration
func WithConfig(c *config.Config) GitRepoAppOptions {
	return func(cfg *gitRepoAppConfig) error {
		cfg.config = c
		return nil
	}
}

// WithAddress sets the HTTP server address
func WithAddress(addr string) GitRepoAppOptions {
	return func(cfg *gitRepoAppConfig) error {
		if addr == "" {
			return fmt.Errorf("address cannot be empty")
		}

		host, port, ok := strings.Cut(addr, ":")
		if !ok || port == "" {
			return fmt.Errorf("address is not a valid port: %s", addr)
		}
		if host == "localhost" {
			host = "127.0.0.1"
		}
		if host == "" {
			host = "0.0.0.0"
		}

		if _, err := netip.ParseAddrPort(host + ":" + port); err != nil {
			return fmt.Errorf("address is not a valid port: %w", err)
		}

		cfg.address = addr
		return nil
	}
}

// WithMiddlewares sets custom HTTP middlewares
func WithMiddlewares(mw ...func(http.Handler) http.Handler) GitRepoAppOptions {
	return func(cfg *gitRepoAppConfig) error {
		cfg.middlewares = mw
		return nil
	}
}

// WithRequestTimeout sets the deadline of REST requests
func WithRequestTimeout(d time.Duration) GitRepoAppOptions {
	return func(cfg *gitRepoAppConfig) error {
		if d <= 0 {
			return fmt.Errorf("request timeout must be positive")
		}
		cfg.requestTimeout = d
		return nil
	}
}

// WithMeterProvider sets the OpenTelemetry meter provider for HTTP, clone and repository metrics
func WithMeterProvider(mp metric.MeterProvider) GitRepoAppOptions {
	return func(cfg *gitRepoAppConfig) error {
		cfg.meterProvider = mp
		return nil
	}
}

// WithTracerProvider sets the OpenTelemetry tracer provider for HTTP and repository spans
func WithTracerProvider(tp trace.TracerProvider) GitRepoAppOptions {
	return func(cfg *gitRepoAppConfig) error {
		cfg.tracerProvider = tp
		return nil
	}
}

// WithMetricsHandler serves a Prometheus scrape handler at /metrics
func WithMetricsHandler(h http.Handler) GitRepoAppOptions {
	return func(cfg *gitRepoAppConfig) error {
		cfg.metricsHandler = h
		return nil
	}
}

// WithGitClient allows injecting a custom clone client (for testing)
func WithGitClient(c git.Client) GitRepoAppOptions {
	return func(cfg *gitRepoAppConfig) error {
		cfg.gitClient = c
		return nil
	}
}

// WithAuthMiddleware allows injecting a custom auth middleware (for testing)
func WithAuthMiddleware(mw func(http.Handler) http.Handler) GitRepoAppOptions {
	return func(cfg *gitRepoAppConfig) error {
		cfg.authMiddleware = mw
		return nil
	}
}

// buildComponents builds the storage, clone and service layers
func buildComponents(
	_ context.Context,
	b *gitRepoAppConfig,
) (*AppComponents, error) {
	slog.Info("Initializing repository components")
	c := b.config

	if err := os.MkdirAll(c.Storage.BasePath, basePathPerm); err != nil {
		return nil, fmt.Errorf("failed to create base path: %w", err)
	}
	resolver, err := repopath.NewResolver(c.Storage.BasePath)
	if err != nil {
		return nil, fmt.Errorf("failed to create path resolver: %w", err)
	}

	locker, err := repolock.New(c.Storage.LocksDir)
	if err != nil {
		return nil, fmt.Errorf("failed to create repository locker: %w", err)
	}

	remoteAuth, err := buildRemoteAuth(&c.Clone)
	if err != nil {
		return nil, err
	}

	var (
		cloneOpts   []clone.Option
		serviceOpts = []service.Option{
			service.WithPagination(c.Pagination.DefaultPageSize, c.Pagination.MaxPageSize),
			service.WithDefaultBranch(c.Git.DefaultBranch),
			service.WithRejectDivergent(c.Pull.RejectDivergent),
			service.WithRequireGitSuffix(c.Clone.GetRequireGitSuffix()),
			service.WithPullAuth(remoteAuth),
		}
	)

	if b.meterProvider != nil {
		cloneMetrics, err := telemetry.NewCloneMetrics(b.meterProvider)
		if err != nil {
			return nil, fmt.Errorf("failed to create clone metrics: %w", err)
		}
		repoMetrics, err := telemetry.NewRepositoryMetrics(b.meterProvider)
		if err != nil {
			return nil, fmt.Errorf("failed to create repository metrics: %w", err)
		}
		cloneOpts = append(cloneOpts,
			clone.WithCloneMetrics(cloneMetrics),
			clone.WithRepositoryMetrics(repoMetrics),
		)
		serviceOpts = append(serviceOpts, service.WithMetrics(repoMetrics))
		slog.Info("Repository metrics enabled")
	}
	if b.tracerProvider != nil {
		serviceOpts = append(serviceOpts, service.WithTracer(b.tracerProvider.Tracer(service.ServiceTracerName)))
	}

	if b.gitClient == nil {
		b.gitClient = git.NewDefaultGitClient()
	}

	hub := notify.NewHub()
	orchestrator := clone.New(
		resolver,
		locker,
		b.gitClient,
		hub,
		status.NewFileStore(c.Storage.StatusDir),
		clone.Config{
			Timeout:       c.Clone.GetCloneTimeout(),
			MaxAttempts:   c.Clone.MaxAttempts,
			MaxConcurrent: c.Clone.MaxConcurrent,
			DefaultBranch: c.Git.DefaultBranch,
			Auth:          remoteAuth,
		},
		cloneOpts...,
	)

	svc, err := service.New(resolver, locker, blocking.NewExecutor(c.Git.Workers), orchestrator, serviceOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create repository service: %w", err)
	}

	slog.Info("Repository components initialized",
		"base_path", resolver.BasePath(),
		"workers", c.Git.Workers,
		"max_concurrent_clones", c.Clone.MaxConcurrent)

	return &AppComponents{
		CloneOrchestrator: orchestrator,
		RepositoryService: svc,
		Hub:               hub,
	}, nil
}

// buildRemoteAuth returns basic auth credentials for remotes, or nil when no username is configured
func buildRemoteAuth(c *config.CloneConfig) (*git.AuthConfig, error) {
	if c.Username == "" {
		return nil, nil
	}
	password, err := c.GetPassword()
	if err != nil {
		return nil, fmt.Errorf("failed to read clone password: %w", err)
	}
	return &git.AuthConfig{Username: c.Username, Password: password}, nil
}

// buildHTTPServer builds the HTTP server with router and middleware
//
//nolint:unparam // we prefer having a similar interface
func buildHTTPServer(
	_ context.Context,
	b *gitRepoAppConfig,
	components *AppComponents,
) (*http.Server, error) {
	slog.Info("Initializing HTTP server")

	if b.middlewares == nil {
		b.middlewares = []func(http.Handler) http.Handler{
			middleware.RequestID,
			middleware.RealIP,
			middleware.Recoverer,
			api.LoggingMiddleware,
		}
	}

	// Metrics and tracing come first to observe requests rejected by auth
	if b.meterProvider != nil {
		metricsMiddleware, err := telemetry.MetricsMiddleware(b.meterProvider)
		if err != nil {
			return nil, fmt.Errorf("failed to create metrics middleware: %w", err)
		}
		b.middlewares = append([]func(http.Handler) http.Handler{metricsMiddleware}, b.middlewares...)
		slog.Info("HTTP metrics middleware enabled")
	}
	if b.tracerProvider != nil {
		b.middlewares = append([]func(http.Handler) http.Handler{telemetry.TracingMiddleware(b.tracerProvider)}, b.middlewares...)
		slog.Info("HTTP tracing middleware enabled")
	}

	publicPaths := append([]string{}, defaultPublicPaths...)
	if b.config.Auth != nil {
		publicPaths = append(publicPaths, b.config.Auth.PublicPaths...)
	}
	b.middlewares = append(b.middlewares, auth.WrapWithPublicPaths(b.authMiddleware, publicPaths))

	serverOpts := []api.ServerOption{
		api.WithMiddlewares(b.middlewares...),
		api.WithRequestTimeout(b.requestTimeout),
		api.WithNotifications(components.Hub, notify.DefaultWriteTimeout),
	}
	if b.metricsHandler != nil {
		serverOpts = append(serverOpts, api.WithMetricsHandler(b.metricsHandler))
	}
	router := api.NewServer(components.RepositoryService, serverOpts...)

	// WriteTimeout exceeds the request timeout so the timeout middleware answers first.
	// The websocket handler clears its connection deadlines.
	server := &http.Server{
		Addr:         b.address,
		Handler:      router,
		ReadTimeout:  b.readTimeout,
		WriteTimeout: b.writeTimeout,
		IdleTimeout:  b.idleTimeout,
	}

	slog.Info("HTTP server configured", "address", b.address, "request_timeout", b.requestTimeout)
	return server, nil
}
