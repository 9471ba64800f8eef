// Package telemetry provides OpenTelemetry instrumentation for the asteroid-radar service.
package telemetry

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const (
	// CacheMetricsMeterName is the name used for the view cache meter
	CacheMetricsMeterName = "github.com/stacklok/asteroid-radar/cache"

	// SyncMetricsMeterName is the name used for the refresh cycle meter
	SyncMetricsMeterName = "github.com/stacklok/asteroid-radar/sync"
)

// CacheMetrics holds the instruments describing published views
type CacheMetrics struct {
	viewPublishes metric.Int64Counter
	viewRows      metric.Int64Gauge
}

// NewCacheMetrics creates a new CacheMetrics instance with the given meter provider.
// If provider is nil, it returns nil (no-op metrics).
func NewCacheMetrics(provider metric.MeterProvider) (*CacheMetrics, error) {
	if provider == nil {
		return nil, nil
	}

	meter := provider.Meter(CacheMetricsMeterName)

	viewPublishes, err := meter.Int64Counter(
		"asteroid_radar_view_publishes_total",
		metric.WithDescription("Number of views published to consumers"),
		metric.WithUnit("{view}"),
	)
	if err != nil {
		return nil, err
	}

	viewRows, err := meter.Int64Gauge(
		"asteroid_radar_view_rows",
		metric.WithDescription("Number of asteroids in the published view"),
		metric.WithUnit("{asteroid}"),
	)
	if err != nil {
		return nil, err
	}

	return &CacheMetrics{
		viewPublishes: viewPublishes,
		viewRows:      viewRows,
	}, nil
}

// RecordPublish records one published view and its size
func (m *CacheMetrics) RecordPublish(ctx context.Context, filter string, rows int) {
	if m == nil {
		return
	}

	attrs := metric.WithAttributes(attribute.String("filter", filter))
	m.viewPublishes.Add(ctx, 1, attrs)
	m.viewRows.Record(ctx, int64(rows), attrs)
}

// SyncMetrics holds the OpenTelemetry instruments for refresh cycles
type SyncMetrics struct {
	cycleDuration   metric.Float64Histogram
	cachedAsteroids metric.Int64Gauge
	evicted         metric.Int64Counter
	skipped         metric.Int64Counter
}

// NewSyncMetrics creates a new SyncMetrics instance with the given meter provider.
// If provider is nil, it returns nil (no-op metrics).
func NewSyncMetrics(provider metric.MeterProvider) (*SyncMetrics, error) {
	if provider == nil {
		return nil, nil
	}

	meter := provider.Meter(SyncMetricsMeterName)

	cycleDuration, err := meter.Float64Histogram(
		"asteroid_radar_sync_duration_seconds",
		metric.WithDescription("Duration of refresh cycles in seconds"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(0.1, 0.5, 1, 2.5, 5, 10, 30, 60, 120),
	)
	if err != nil {
		return nil, err
	}

	cachedAsteroids, err := meter.Int64Gauge(
		"asteroid_radar_cached_asteroids",
		metric.WithDescription("Number of asteroids held in the local store"),
		metric.WithUnit("{asteroid}"),
	)
	if err != nil {
		return nil, err
	}

	evicted, err := meter.Int64Counter(
		"asteroid_radar_evicted_total",
		metric.WithDescription("Number of stale asteroids removed from the store"),
		metric.WithUnit("{asteroid}"),
	)
	if err != nil {
		return nil, err
	}

	skipped, err := meter.Int64Counter(
		"asteroid_radar_skipped_records_total",
		metric.WithDescription("Number of malformed feed records dropped during normalization"),
		metric.WithUnit("{record}"),
	)
	if err != nil {
		return nil, err
	}

	return &SyncMetrics{
		cycleDuration:   cycleDuration,
		cachedAsteroids: cachedAsteroids,
		evicted:         evicted,
		skipped:         skipped,
	}, nil
}

// RecordCycleDuration records the duration of one refresh cycle by outcome
func (m *SyncMetrics) RecordCycleDuration(ctx context.Context, outcome string, duration time.Duration) {
	if m == nil {
		return
	}
	m.cycleDuration.Record(ctx, duration.Seconds(), metric.WithAttributes(attribute.String("outcome", outcome)))
}

// RecordCachedAsteroids records the store size after a cycle
func (m *SyncMetrics) RecordCachedAsteroids(ctx context.Context, count int) {
	if m == nil {
		return
	}
	m.cachedAsteroids.Record(ctx, int64(count))
}

// RecordEvicted adds to the evicted counter
func (m *SyncMetrics) RecordEvicted(ctx context.Context, count int) {
	if m == nil || count <= 0 {
		return
	}
	m.evicted.Add(ctx, int64(count))
}

// RecordSkipped adds to the skipped-record counter
func (m *SyncMetrics) RecordSkipped(ctx context.Context, count int) {
	if m == nil || count <= 0 {
		return
	}
	m.skipped.Add(ctx, int64(count))
}
