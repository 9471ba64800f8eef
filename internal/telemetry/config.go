package telemetry

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/stacklok/asteroid-radar/pkg/versions"
)

const (
	// DefaultServiceName identifies the service to the collector
	DefaultServiceName = "asteroid-radar"

	// DefaultEndpoint is the OTLP/HTTP collector address
	DefaultEndpoint = "localhost:4318"

	// DefaultSampling keeps 5% of root traces
	DefaultSampling = 0.05

	// DefaultExportInterval is how often metrics are pushed over OTLP
	DefaultExportInterval = time.Minute
)

// Config is the telemetry section of the service configuration
type Config struct {
	// Enabled switches every provider on or off. Disabled telemetry uses no-op providers.
	Enabled bool `yaml:"enabled"`

	ServiceName string `yaml:"serviceName,omitempty"`

	// ServiceVersion defaults to the version of the running binary
	ServiceVersion string `yaml:"serviceVersion,omitempty"`

	// Endpoint is the collector as host:port. The OTLP paths are appended by the exporters.
	Endpoint string `yaml:"endpoint,omitempty"`

	// Insecure exports over plain HTTP
	Insecure bool `yaml:"insecure,omitempty"`

	// Headers are added to every export request, e.g. collector credentials
	Headers map[string]string `yaml:"headers,omitempty"`

	Tracing *TracingConfig `yaml:"tracing,omitempty"`
	Metrics *MetricsConfig `yaml:"metrics,omitempty"`
}

// TracingConfig configures span export
type TracingConfig struct {
	Enabled bool `yaml:"enabled"`

	// Sampling is the ratio of root traces kept, in (0, 1]
	Sampling *float64 `yaml:"sampling,omitempty"`
}

// MetricsConfig configures metric export
type MetricsConfig struct {
	Enabled bool `yaml:"enabled"`

	// Prometheus serves the metrics for scraping on /metrics
	Prometheus bool `yaml:"prometheus,omitempty"`

	// DisableOTLP turns the push exporter off, leaving only the Prometheus reader
	DisableOTLP bool `yaml:"disableOtlp,omitempty"`

	// ExportInterval is a Go duration, DefaultExportInterval when empty
	ExportInterval string `yaml:"exportInterval,omitempty"`
}

// GetServiceName returns the service name or DefaultServiceName
func (c *Config) GetServiceName() string {
	if c == nil || c.ServiceName == "" {
		return DefaultServiceName
	}
	return c.ServiceName
}

// GetServiceVersion returns the configured version or the binary version
func (c *Config) GetServiceVersion() string {
	if c == nil || c.ServiceVersion == "" {
		return versions.Version
	}
	return c.ServiceVersion
}

// GetEndpoint returns the collector endpoint or DefaultEndpoint
func (c *Config) GetEndpoint() string {
	if c == nil || c.Endpoint == "" {
		return DefaultEndpoint
	}
	return c.Endpoint
}

func (c *Config) tracingEnabled() bool {
	return c != nil && c.Enabled && c.Tracing != nil && c.Tracing.Enabled
}

func (c *Config) metricsEnabled() bool {
	return c != nil && c.Enabled && c.Metrics != nil && c.Metrics.Enabled
}

func (c *Config) prometheusEnabled() bool {
	return c.metricsEnabled() && c.Metrics.Prometheus
}

// GetSampling returns the sampling ratio or DefaultSampling
func (c *TracingConfig) GetSampling() float64 {
	if c == nil || c.Sampling == nil {
		return DefaultSampling
	}
	return *c.Sampling
}

// GetExportInterval returns the push interval. Call Validate first; an
// unparseable value falls back to DefaultExportInterval.
func (c *MetricsConfig) GetExportInterval() time.Duration {
	if c == nil || c.ExportInterval == "" {
		return DefaultExportInterval
	}
	d, err := time.ParseDuration(c.ExportInterval)
	if err != nil || d <= 0 {
		return DefaultExportInterval
	}
	return d
}

// Validate checks the configuration. A nil or disabled config is valid.
func (c *Config) Validate() error {
	if c == nil || !c.Enabled {
		return nil
	}

	var errs []error
	if strings.Contains(c.Endpoint, "://") {
		errs = append(errs, fmt.Errorf("endpoint must be host:port without a scheme, got %q", c.Endpoint))
	}
	if err := c.Tracing.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("tracing: %w", err))
	}
	if err := c.Metrics.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("metrics: %w", err))
	}
	return errors.Join(errs...)
}

// Validate checks the sampling ratio of enabled tracing
func (c *TracingConfig) Validate() error {
	if c == nil || !c.Enabled || c.Sampling == nil {
		return nil
	}
	if s := *c.Sampling; s <= 0 || s > 1 {
		return fmt.Errorf("sampling must be greater than 0.0 and at most 1.0, got %f", s)
	}
	return nil
}

// Validate checks that enabled metrics have a reader and a usable interval
func (c *MetricsConfig) Validate() error {
	if c == nil || !c.Enabled {
		return nil
	}
	if c.DisableOTLP && !c.Prometheus {
		return errors.New("at least one of OTLP or Prometheus must be enabled")
	}
	if c.ExportInterval != "" {
		d, err := time.ParseDuration(c.ExportInterval)
		if err != nil {
			return fmt.Errorf("invalid exportInterval %q: %w", c.ExportInterval, err)
		}
		if d <= 0 {
			return fmt.Errorf("exportInterval must be positive, got %s", d)
		}
	}
	return nil
}
