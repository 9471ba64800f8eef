package app

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/stacklok/asteroid-radar/internal/app/storage"
	"github.com/stacklok/asteroid-radar/internal/config"
	"github.com/stacklok/asteroid-radar/internal/feed"
	"github.com/stacklok/asteroid-radar/internal/httpclient"
	"github.com/stacklok/asteroid-radar/internal/store"
	pkgsync "github.com/stacklok/asteroid-radar/internal/sync"
	"github.com/stacklok/asteroid-radar/internal/sync/coordinator"
	"github.com/stacklok/asteroid-radar/internal/sync/state"
	"github.com/stacklok/asteroid-radar/internal/telemetry"
	"github.com/stacklok/asteroid-radar/pkg/versions"
)

// SyncTracerName is the tracer used by the engine, the feed client and the coordinator
const SyncTracerName = "github.com/stacklok/asteroid-radar/sync"

// AppComponents groups all application components
//
//nolint:revive // This name is fine
type AppComponents struct {
	// Engine owns the cached asteroid view
	Engine pkgsync.Engine

	// SyncCoordinator manages background refreshes
	SyncCoordinator coordinator.Coordinator

	// StateService tracks the persisted refresh status
	StateService state.StateService

	storageFactory storage.Factory
}

// Close releases the storage held by the components
func (c *AppComponents) Close() {
	if c != nil && c.storageFactory != nil {
		c.storageFactory.Cleanup()
	}
}

// componentsConfig holds what is needed to build the components
type componentsConfig struct {
	config         *config.Config
	storageFactory storage.Factory
	feedClient     feed.Client

	meterProvider  metric.MeterProvider
	tracerProvider trace.TracerProvider
}

// ComponentsOption configures NewComponents
type ComponentsOption func(*componentsConfig) error

// WithComponentsConfig sets the configuration
func WithComponentsConfig(c *config.Config) ComponentsOption {
	return func(cfg *componentsConfig) error {
		cfg.config = c
		return nil
	}
}

// WithStorage allows injecting a custom storage factory (for testing)
func WithStorage(f storage.Factory) ComponentsOption {
	return func(cfg *componentsConfig) error {
		cfg.storageFactory = f
		return nil
	}
}

// WithFeed allows injecting a custom feed client (for testing)
func WithFeed(c feed.Client) ComponentsOption {
	return func(cfg *componentsConfig) error {
		cfg.feedClient = c
		return nil
	}
}

// WithComponentsTelemetry sets the providers used for engine and coordinator metrics and spans
func WithComponentsTelemetry(mp metric.MeterProvider, tp trace.TracerProvider) ComponentsOption {
	return func(cfg *componentsConfig) error {
		cfg.meterProvider = mp
		cfg.tracerProvider = tp
		return nil
	}
}

// NewComponents builds the storage, the engine and the refresh coordinator.
// The state service is initialized and the engine has loaded the store when it returns.
// The caller must Close the components.
func NewComponents(ctx context.Context, opts ...ComponentsOption) (*AppComponents, error) {
	cfg := &componentsConfig{}
	for _, opt := range opts {
		if err := opt(cfg); err != nil {
			return nil, err
		}
	}
	if cfg.config == nil {
		return nil, fmt.Errorf("config cannot be nil")
	}

	slog.Info("Initializing sync components")

	if cfg.storageFactory == nil {
		factory, err := storage.NewStorageFactory(ctx, cfg.config, versions.Version)
		if err != nil {
			return nil, fmt.Errorf("failed to create storage factory: %w", err)
		}
		cfg.storageFactory = factory
	}

	// Ensure cleanup happens on error
	cleanupNeeded := true
	defer func() {
		if cleanupNeeded {
			cfg.storageFactory.Cleanup()
		}
	}()

	recordStore, err := cfg.storageFactory.CreateRecordStore(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to create record store: %w", err)
	}

	stateService, err := cfg.storageFactory.CreateStateService(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to create state service: %w", err)
	}
	if err := stateService.Initialize(ctx); err != nil {
		return nil, fmt.Errorf("failed to initialize state service: %w", err)
	}

	var tracer trace.Tracer
	if cfg.tracerProvider != nil {
		tracer = cfg.tracerProvider.Tracer(SyncTracerName)
	}

	feedCfg := cfg.config.GetFeed()
	if cfg.feedClient == nil {
		cfg.feedClient = buildFeedClient(feedCfg, tracer)
	}

	engine, err := buildEngine(cfg, recordStore, tracer)
	if err != nil {
		return nil, err
	}

	if syncErr := engine.Load(ctx); syncErr != nil {
		return nil, fmt.Errorf("failed to load cached asteroids: %w", syncErr)
	}

	syncCoordinator, err := buildCoordinator(cfg, engine, stateService, tracer)
	if err != nil {
		return nil, err
	}

	slog.Info("Sync components initialized successfully",
		"backend", cfg.config.GetStore().GetBackend(),
		"endpoint", feedCfg.GetEndpoint(),
		"cached", engine.CurrentView().Len())

	cleanupNeeded = false
	return &AppComponents{
		Engine:          engine,
		SyncCoordinator: syncCoordinator,
		StateService:    stateService,
		storageFactory:  cfg.storageFactory,
	}, nil
}

// buildFeedClient builds the NeoWs client on a rate-limited, size-bounded HTTP client
func buildFeedClient(feedCfg *config.FeedConfig, tracer trace.Tracer) feed.Client {
	httpClient := httpclient.NewDefaultClient(
		feedCfg.GetTimeout(),
		httpclient.WithRateLimit(feedCfg.GetRateInterval(), feedCfg.GetRateBurst()),
		httpclient.WithMaxResponseSize(feedCfg.MaxResponseBytes),
		httpclient.WithUserAgent("asteroid-radar/"+versions.Version),
	)
	return feed.NewNeoWsClient(httpClient,
		feed.WithEndpoint(feedCfg.GetEndpoint()),
		feed.WithTracer(tracer),
	)
}

func buildEngine(cfg *componentsConfig, recordStore store.RecordStore, tracer trace.Tracer) (pkgsync.Engine, error) {
	feedCfg := cfg.config.GetFeed()
	syncCfg := cfg.config.GetSync()

	apiKey, err := feedCfg.GetAPIKey()
	if err != nil {
		return nil, fmt.Errorf("failed to resolve feed API key: %w", err)
	}
	if apiKey == feed.DemoAPIKey {
		slog.Warn("Using the NeoWs demo API key, requests are heavily rate limited")
	}

	loc := syncCfg.GetLocation()
	engineOpts := []pkgsync.Option{
		pkgsync.WithAPIKey(apiKey),
		pkgsync.WithFetchTimeout(feedCfg.GetTimeout()),
		pkgsync.WithDefaultFilter(syncCfg.GetDefaultFilter()),
		pkgsync.WithClock(func() time.Time { return time.Now().In(loc) }),
		pkgsync.WithTracer(tracer),
	}

	if cfg.meterProvider != nil {
		cacheMetrics, err := telemetry.NewCacheMetrics(cfg.meterProvider)
		if err != nil {
			return nil, fmt.Errorf("failed to create cache metrics: %w", err)
		}
		engineOpts = append(engineOpts, pkgsync.WithCacheMetrics(cacheMetrics))
	}

	return pkgsync.NewEngine(cfg.feedClient, recordStore, engineOpts...), nil
}

func buildCoordinator(
	cfg *componentsConfig,
	engine pkgsync.Engine,
	stateService state.StateService,
	tracer trace.Tracer,
) (coordinator.Coordinator, error) {
	syncCfg := cfg.config.GetSync()

	if syncCfg.LockFile != "" {
		if err := os.MkdirAll(filepath.Dir(syncCfg.LockFile), 0750); err != nil {
			return nil, fmt.Errorf("failed to create lock file directory: %w", err)
		}
	}

	coordOpts := []coordinator.Option{
		coordinator.WithLocation(syncCfg.GetLocation()),
		coordinator.WithTracer(tracer),
	}

	if cfg.meterProvider != nil {
		syncMetrics, err := telemetry.NewSyncMetrics(cfg.meterProvider)
		if err != nil {
			return nil, fmt.Errorf("failed to create sync metrics: %w", err)
		}
		if syncMetrics != nil {
			coordOpts = append(coordOpts, coordinator.WithSyncMetrics(syncMetrics))
			slog.Info("Sync metrics enabled")
		}
	}

	return coordinator.New(engine, stateService, syncCfg, coordOpts...), nil
}
