package telemetry

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stacklok/asteroid-radar/pkg/versions"
)

func floatPtr(f float64) *float64 {
	return &f
}

func TestConfig_Getters(t *testing.T) {
	t.Parallel()

	t.Run("nil config uses defaults", func(t *testing.T) {
		t.Parallel()

		var cfg *Config
		assert.Equal(t, DefaultServiceName, cfg.GetServiceName())
		assert.Equal(t, versions.Version, cfg.GetServiceVersion())
		assert.Equal(t, DefaultEndpoint, cfg.GetEndpoint())
		assert.False(t, cfg.tracingEnabled())
		assert.False(t, cfg.metricsEnabled())
	})

	t.Run("configured values win", func(t *testing.T) {
		t.Parallel()

		cfg := &Config{ServiceName: "radar-eu", ServiceVersion: "1.4.0", Endpoint: "collector:4318"}
		assert.Equal(t, "radar-eu", cfg.GetServiceName())
		assert.Equal(t, "1.4.0", cfg.GetServiceVersion())
		assert.Equal(t, "collector:4318", cfg.GetEndpoint())
	})

	t.Run("sub-configs need the global switch", func(t *testing.T) {
		t.Parallel()

		cfg := &Config{
			Tracing: &TracingConfig{Enabled: true},
			Metrics: &MetricsConfig{Enabled: true, Prometheus: true},
		}
		assert.False(t, cfg.tracingEnabled())
		assert.False(t, cfg.prometheusEnabled())

		cfg.Enabled = true
		assert.True(t, cfg.tracingEnabled())
		assert.True(t, cfg.metricsEnabled())
		assert.True(t, cfg.prometheusEnabled())
	})
}

func TestTracingConfig_GetSampling(t *testing.T) {
	t.Parallel()

	var nilCfg *TracingConfig
	assert.Equal(t, DefaultSampling, nilCfg.GetSampling())
	assert.Equal(t, DefaultSampling, (&TracingConfig{}).GetSampling())
	assert.Equal(t, 0.25, (&TracingConfig{Sampling: floatPtr(0.25)}).GetSampling())
}

func TestMetricsConfig_GetExportInterval(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		cfg  *MetricsConfig
		want time.Duration
	}{
		{name: "nil", cfg: nil, want: DefaultExportInterval},
		{name: "empty", cfg: &MetricsConfig{}, want: DefaultExportInterval},
		{name: "configured", cfg: &MetricsConfig{ExportInterval: "15s"}, want: 15 * time.Second},
		{name: "unparseable falls back", cfg: &MetricsConfig{ExportInterval: "often"}, want: DefaultExportInterval},
		{name: "negative falls back", cfg: &MetricsConfig{ExportInterval: "-1s"}, want: DefaultExportInterval},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, tt.cfg.GetExportInterval())
		})
	}
}

func TestConfig_Validate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		cfg     *Config
		wantErr []string
	}{
		{name: "nil config", cfg: nil},
		{
			name: "disabled config skips checks",
			cfg:  &Config{Enabled: false, Endpoint: "https://collector", Tracing: &TracingConfig{Enabled: true, Sampling: floatPtr(7)}},
		},
		{
			name: "valid full config",
			cfg: &Config{
				Enabled:  true,
				Endpoint: "collector:4318",
				Headers:  map[string]string{"Authorization": "Bearer token"},
				Tracing:  &TracingConfig{Enabled: true, Sampling: floatPtr(1)},
				Metrics:  &MetricsConfig{Enabled: true, Prometheus: true, ExportInterval: "30s"},
			},
		},
		{
			name:    "endpoint with scheme",
			cfg:     &Config{Enabled: true, Endpoint: "http://collector:4318"},
			wantErr: []string{"without a scheme"},
		},
		{
			name:    "zero sampling",
			cfg:     &Config{Enabled: true, Tracing: &TracingConfig{Enabled: true, Sampling: floatPtr(0)}},
			wantErr: []string{"tracing:", "sampling must be greater than 0.0"},
		},
		{
			name:    "sampling above one",
			cfg:     &Config{Enabled: true, Tracing: &TracingConfig{Enabled: true, Sampling: floatPtr(1.5)}},
			wantErr: []string{"sampling must be greater than 0.0"},
		},
		{
			name: "sampling ignored when tracing is off",
			cfg:  &Config{Enabled: true, Tracing: &TracingConfig{Enabled: false, Sampling: floatPtr(5)}},
		},
		{
			name:    "no metric reader",
			cfg:     &Config{Enabled: true, Metrics: &MetricsConfig{Enabled: true, DisableOTLP: true}},
			wantErr: []string{"metrics:", "at least one of OTLP or Prometheus"},
		},
		{
			name:    "bad export interval",
			cfg:     &Config{Enabled: true, Metrics: &MetricsConfig{Enabled: true, ExportInterval: "hourly"}},
			wantErr: []string{"invalid exportInterval"},
		},
		{
			name:    "zero export interval",
			cfg:     &Config{Enabled: true, Metrics: &MetricsConfig{Enabled: true, ExportInterval: "0s"}},
			wantErr: []string{"exportInterval must be positive"},
		},
		{
			name: "errors are joined",
			cfg: &Config{
				Enabled:  true,
				Endpoint: "https://collector",
				Tracing:  &TracingConfig{Enabled: true, Sampling: floatPtr(-1)},
				Metrics:  &MetricsConfig{Enabled: true, DisableOTLP: true},
			},
			wantErr: []string{"without a scheme", "tracing:", "metrics:"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			err := tt.cfg.Validate()
			if len(tt.wantErr) == 0 {
				require.NoError(t, err)
				return
			}
			require.Error(t, err)
			for _, want := range tt.wantErr {
				assert.Contains(t, err.Error(), want)
			}
		})
	}
}
