package telemetry

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

// collect gathers every metric of the named scope from reader
func collect(t *testing.T, reader *sdkmetric.ManualReader, scopeName string) map[string]metricdata.Metrics {
	t.Helper()

	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &rm))

	out := make(map[string]metricdata.Metrics)
	for _, scope := range rm.ScopeMetrics {
		if scope.Scope.Name != scopeName {
			continue
		}
		for _, m := range scope.Metrics {
			out[m.Name] = m
		}
	}
	return out
}

func TestNewCacheMetrics(t *testing.T) {
	t.Parallel()

	t.Run("returns nil when provider is nil", func(t *testing.T) {
		t.Parallel()

		metrics, err := NewCacheMetrics(nil)
		require.NoError(t, err)
		assert.Nil(t, metrics)
	})

	t.Run("creates metrics with SDK provider", func(t *testing.T) {
		t.Parallel()

		mp := sdkmetric.NewMeterProvider()
		defer func() { _ = mp.Shutdown(context.Background()) }()

		metrics, err := NewCacheMetrics(mp)
		require.NoError(t, err)
		require.NotNil(t, metrics)
		assert.NotNil(t, metrics.viewPublishes)
		assert.NotNil(t, metrics.viewRows)
	})
}

func TestCacheMetrics_RecordPublish(t *testing.T) {
	t.Parallel()

	t.Run("no-op when metrics is nil", func(t *testing.T) {
		t.Parallel()

		var metrics *CacheMetrics
		metrics.RecordPublish(context.Background(), "week", 3)
	})

	t.Run("counts publishes per filter", func(t *testing.T) {
		t.Parallel()

		reader := sdkmetric.NewManualReader()
		mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
		defer func() { _ = mp.Shutdown(context.Background()) }()

		metrics, err := NewCacheMetrics(mp)
		require.NoError(t, err)

		metrics.RecordPublish(context.Background(), "week", 3)
		metrics.RecordPublish(context.Background(), "week", 5)
		metrics.RecordPublish(context.Background(), "all", 9)

		got := collect(t, reader, CacheMetricsMeterName)
		require.Contains(t, got, "asteroid_radar_view_publishes_total")
		require.Contains(t, got, "asteroid_radar_view_rows")

		sum, ok := got["asteroid_radar_view_publishes_total"].Data.(metricdata.Sum[int64])
		require.True(t, ok)
		var total int64
		for _, dp := range sum.DataPoints {
			total += dp.Value
		}
		assert.Equal(t, int64(3), total)
		assert.Len(t, sum.DataPoints, 2)
	})
}

func TestNewSyncMetrics(t *testing.T) {
	t.Parallel()

	t.Run("returns nil when provider is nil", func(t *testing.T) {
		t.Parallel()

		metrics, err := NewSyncMetrics(nil)
		require.NoError(t, err)
		assert.Nil(t, metrics)
	})

	t.Run("creates metrics with SDK provider", func(t *testing.T) {
		t.Parallel()

		mp := sdkmetric.NewMeterProvider()
		defer func() { _ = mp.Shutdown(context.Background()) }()

		metrics, err := NewSyncMetrics(mp)
		require.NoError(t, err)
		require.NotNil(t, metrics)
		assert.NotNil(t, metrics.cycleDuration)
		assert.NotNil(t, metrics.cachedAsteroids)
		assert.NotNil(t, metrics.evicted)
		assert.NotNil(t, metrics.skipped)
	})
}

func TestSyncMetrics_Record(t *testing.T) {
	t.Parallel()

	t.Run("no-op when metrics is nil", func(t *testing.T) {
		t.Parallel()

		var metrics *SyncMetrics
		metrics.RecordCycleDuration(context.Background(), "success", time.Second)
		metrics.RecordCachedAsteroids(context.Background(), 10)
		metrics.RecordEvicted(context.Background(), 2)
		metrics.RecordSkipped(context.Background(), 1)
	})

	t.Run("records cycle instruments", func(t *testing.T) {
		t.Parallel()

		reader := sdkmetric.NewManualReader()
		mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
		defer func() { _ = mp.Shutdown(context.Background()) }()

		metrics, err := NewSyncMetrics(mp)
		require.NoError(t, err)

		ctx := context.Background()
		metrics.RecordCycleDuration(ctx, "success", 2500*time.Millisecond)
		metrics.RecordCycleDuration(ctx, "network-error", 500*time.Millisecond)
		metrics.RecordCachedAsteroids(ctx, 42)
		metrics.RecordEvicted(ctx, 3)
		metrics.RecordEvicted(ctx, 0)
		metrics.RecordSkipped(ctx, 1)

		got := collect(t, reader, SyncMetricsMeterName)

		hist, ok := got["asteroid_radar_sync_duration_seconds"].Data.(metricdata.Histogram[float64])
		require.True(t, ok)
		assert.Len(t, hist.DataPoints, 2)

		gauge, ok := got["asteroid_radar_cached_asteroids"].Data.(metricdata.Gauge[int64])
		require.True(t, ok)
		require.Len(t, gauge.DataPoints, 1)
		assert.Equal(t, int64(42), gauge.DataPoints[0].Value)

		evicted, ok := got["asteroid_radar_evicted_total"].Data.(metricdata.Sum[int64])
		require.True(t, ok)
		require.Len(t, evicted.DataPoints, 1)
		assert.Equal(t, int64(3), evicted.DataPoints[0].Value)

		skipped, ok := got["asteroid_radar_skipped_records_total"].Data.(metricdata.Sum[int64])
		require.True(t, ok)
		require.Len(t, skipped.DataPoints, 1)
		assert.Equal(t, int64(1), skipped.DataPoints[0].Value)
	})
}
