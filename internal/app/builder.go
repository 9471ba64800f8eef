package app

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/netip"
	"strings"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/stacklok/asteroid-radar/internal/api"
	"github.com/stacklok/asteroid-radar/internal/app/storage"
	"github.com/stacklok/asteroid-radar/internal/config"
	"github.com/stacklok/asteroid-radar/internal/feed"
	"github.com/stacklok/asteroid-radar/internal/telemetry"
)

const (
	defaultHTTPAddress    = ":8080"
	defaultRequestTimeout = 10 * time.Second
	defaultReadTimeout    = 10 * time.Second
	defaultWriteTimeout   = 15 * time.Second
	defaultIdleTimeout    = 60 * time.Second

	// A refresh runs synchronously inside POST /v1/refresh and may wait for the feed
	refreshRequestTimeout = 2 * time.Minute
)

// AsteroidAppOptions is a function that configures the asteroid app builder
type AsteroidAppOptions func(*asteroidAppConfig) error

// asteroidAppConfig collects the builder settings.
// It supports dependency injection for testing while providing sensible defaults for production.
type asteroidAppConfig struct {
	config *config.Config

	// Optional component overrides (primarily for testing)
	storageFactory storage.Factory
	feedClient     feed.Client

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

func baseConfig(opts ...AsteroidAppOptions) (*asteroidAppConfig, error) {
	cfg := &asteroidAppConfig{
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

	return cfg, nil
}

// NewAsteroidApp builds the components and the HTTP server from the given options
func NewAsteroidApp(
	ctx context.Context,
	opts ...AsteroidAppOptions,
) (*AsteroidApp, error) {
	cfg, err := baseConfig(opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to build base configuration: %w", err)
	}
	if cfg.config == nil {
		return nil, fmt.Errorf("config cannot be nil")
	}

	components, err := NewComponents(ctx,
		WithComponentsConfig(cfg.config),
		WithStorage(cfg.storageFactory),
		WithFeed(cfg.feedClient),
		WithComponentsTelemetry(cfg.meterProvider, cfg.tracerProvider),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to build sync components: %w", err)
	}

	httpServer, err := buildHTTPServer(ctx, cfg, components)
	if err != nil {
		components.Close()
		return nil, fmt.Errorf("failed to build HTTP server: %w", err)
	}

	appCtx, cancel := context.WithCancel(ctx)

	return &AsteroidApp{
		config:     cfg.config,
		components: components,
		httpServer: httpServer,
		ctx:        appCtx,
		cancelFunc: func() {
			cancel()
			components.Close()
		},
	}, nil
}

// WithConfig sets the configuration
func WithConfig(c *config.Config) AsteroidAppOptions {
	return func(cfg *asteroidAppConfig) error {
		cfg.config = c
		return nil
	}
}

// WithAddress sets the HTTP server address
func WithAddress(addr string) AsteroidAppOptions {
	return func(cfg *asteroidAppConfig) error {
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
func WithMiddlewares(mw ...func(http.Handler) http.Handler) AsteroidAppOptions {
	return func(cfg *asteroidAppConfig) error {
		cfg.middlewares = mw
		return nil
	}
}

// WithStorageFactory allows injecting a custom storage factory (for testing)
func WithStorageFactory(f storage.Factory) AsteroidAppOptions {
	return func(cfg *asteroidAppConfig) error {
		cfg.storageFactory = f
		return nil
	}
}

// WithFeedClient allows injecting a custom feed client (for testing)
func WithFeedClient(c feed.Client) AsteroidAppOptions {
	return func(cfg *asteroidAppConfig) error {
		cfg.feedClient = c
		return nil
	}
}

// WithMeterProvider sets the OpenTelemetry meter provider for HTTP, cache and sync metrics
func WithMeterProvider(mp metric.MeterProvider) AsteroidAppOptions {
	return func(cfg *asteroidAppConfig) error {
		cfg.meterProvider = mp
		return nil
	}
}

// WithTracerProvider sets the OpenTelemetry tracer provider for HTTP and refresh spans
func WithTracerProvider(tp trace.TracerProvider) AsteroidAppOptions {
	return func(cfg *asteroidAppConfig) error {
		cfg.tracerProvider = tp
		return nil
	}
}

// WithMetricsHandler serves h on /metrics
func WithMetricsHandler(h http.Handler) AsteroidAppOptions {
	return func(cfg *asteroidAppConfig) error {
		cfg.metricsHandler = h
		return nil
	}
}

// buildHTTPServer builds the HTTP server with router and middleware
//
//nolint:unparam // we prefer having a similar interface
func buildHTTPServer(
	_ context.Context,
	b *asteroidAppConfig,
	components *AppComponents,
) (*http.Server, error) {
	slog.Info("Initializing HTTP server")

	// Use default middlewares if not provided
	if b.middlewares == nil {
		b.middlewares = []func(http.Handler) http.Handler{
			middleware.RequestID,
			middleware.RealIP,
			middleware.Recoverer,
			requestTimeout(b.requestTimeout),
			api.LoggingMiddleware,
		}
	}

	// Tracing and metrics go first so that they observe every request
	var telemetryMiddlewares []func(http.Handler) http.Handler
	if b.tracerProvider != nil {
		telemetryMiddlewares = append(telemetryMiddlewares, telemetry.TracingMiddleware(b.tracerProvider))
	}
	if b.meterProvider != nil {
		metricsMiddleware, err := telemetry.MetricsMiddleware(b.meterProvider)
		if err != nil {
			return nil, fmt.Errorf("failed to create metrics middleware: %w", err)
		}
		if metricsMiddleware != nil {
			telemetryMiddlewares = append(telemetryMiddlewares, metricsMiddleware)
			slog.Info("HTTP metrics middleware enabled")
		}
	}
	b.middlewares = append(telemetryMiddlewares, b.middlewares...)

	router := api.NewServer(
		components.Engine,
		components.SyncCoordinator,
		components.StateService,
		api.WithMiddlewares(b.middlewares...),
		api.WithMetricsHandler(b.metricsHandler),
	)

	server := &http.Server{
		Addr:         b.address,
		Handler:      router,
		ReadTimeout:  b.readTimeout,
		WriteTimeout: b.writeTimeout,
		IdleTimeout:  b.idleTimeout,
	}

	slog.Info("HTTP server configured", "address", b.address)
	return server, nil
}

// requestTimeout applies middleware.Timeout except to the watch stream and the
// synchronous refresh, which get no deadline and a longer one respectively
func requestTimeout(d time.Duration) func(http.Handler) http.Handler {
	standard := middleware.Timeout(d)
	refresh := middleware.Timeout(max(d, refreshRequestTimeout))
	return func(next http.Handler) http.Handler {
		withStandard := standard(next)
		withRefresh := refresh(next)
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			switch r.URL.Path {
			case "/v1/asteroids/watch":
				next.ServeHTTP(w, r)
			case "/v1/refresh":
				withRefresh.ServeHTTP(w, r)
			default:
				withStandard.ServeHTTP(w, r)
			}
		})
	}
}
