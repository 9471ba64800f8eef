// Package config provides configuration loading and management for the asteroid-radar service.
package config

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/stacklok/asteroid-radar/internal/asteroid"
	"github.com/stacklok/asteroid-radar/internal/feed"
	"github.com/stacklok/asteroid-radar/internal/store"
	"github.com/stacklok/asteroid-radar/internal/telemetry"
)

// EnvPrefix is the prefix of every environment variable read by the service
const EnvPrefix = "ASTEROID_RADAR"

const (
	// DefaultStorePath is the SQLite database file used when none is configured
	DefaultStorePath = "./data/asteroids.db"

	// DefaultStatusPath is the directory holding status.json
	DefaultStatusPath = "./data"

	defaultFeedTimeout   = 30 * time.Second
	defaultRateInterval  = time.Second
	defaultSyncInterval  = 24 * time.Hour
	defaultSyncJitter    = 5 * time.Minute
	defaultRetryInitial  = 30 * time.Second
	defaultRetryMaxDelay = 30 * time.Minute
)

// Option defines the interface for configuration options
type Option func(*loaderConfig) error

// loaderConfig defines the configuration for loading a configuration
type loaderConfig struct {
	path string
}

// WithConfigPath loads configuration from a YAML file
func WithConfigPath(path string) Option {
	return func(cfg *loaderConfig) error {
		if path == "" {
			return fmt.Errorf("path is required")
		}

		// Resolve symlinks to prevent symlink attacks.
		// Note that this calls filepath.Clean internally.
		realPath, err := filepath.EvalSymlinks(path)
		if err != nil {
			return fmt.Errorf("failed to evaluate symlinks: %w", err)
		}

		// Validate the path to prevent path traversal attacks
		if !filepath.IsAbs(realPath) {
			if !filepath.IsLocal(realPath) {
				return fmt.Errorf("path is not local or contains invalid traversal: %s", path)
			}
		}

		cfg.path = realPath
		return nil
	}
}

// Config represents the root configuration structure
type Config struct {
	Feed      *FeedConfig       `yaml:"feed,omitempty"`
	Store     *StoreConfig      `yaml:"store,omitempty"`
	Sync      *SyncConfig       `yaml:"sync,omitempty"`
	Status    *StatusConfig     `yaml:"status,omitempty"`
	Telemetry *telemetry.Config `yaml:"telemetry,omitempty"`
}

// FeedConfig defines how the NeoWs feed is reached
type FeedConfig struct {
	// Endpoint is the REST base URL; "/feed" is appended to it
	Endpoint string `yaml:"endpoint,omitempty"`

	// APIKey is the literal API key. Prefer APIKeyFile or the environment.
	APIKey string `yaml:"apiKey,omitempty"`

	// APIKeyFile is the path to a file containing the API key
	APIKeyFile string `yaml:"apiKeyFile,omitempty"`

	// Timeout bounds one feed request (e.g., "30s")
	Timeout string `yaml:"timeout,omitempty"`

	// RateInterval is the minimum spacing between outbound requests (e.g., "1s").
	// "0s" disables rate limiting.
	RateInterval string `yaml:"rateInterval,omitempty"`

	// RateBurst is the number of requests allowed in a burst
	RateBurst int `yaml:"rateBurst,omitempty"`

	// MaxResponseBytes caps the accepted response size
	MaxResponseBytes int64 `yaml:"maxResponseBytes,omitempty"`
}

// StoreConfig defines where asteroids are persisted
type StoreConfig struct {
	// Backend is "sqlite" (default) or "memory"
	Backend string `yaml:"backend,omitempty"`

	// Path is the SQLite database file, or ":memory:"
	Path string `yaml:"path,omitempty"`
}

// SyncConfig defines the refresh schedule
type SyncConfig struct {
	// Interval between successful refresh cycles (default "24h")
	Interval string `yaml:"interval,omitempty"`

	// Jitter is the maximum random offset applied to Interval (default "5m")
	Jitter string `yaml:"jitter,omitempty"`

	// LockFile serializes refresh cycles across processes sharing a store.
	// Empty disables the cross-process lock.
	LockFile string `yaml:"lockFile,omitempty"`

	// DefaultFilter is the filter published at startup (today, week or all)
	DefaultFilter string `yaml:"defaultFilter,omitempty"`

	// Timezone decides which calendar day is "today" (default: local time)
	Timezone string `yaml:"timezone,omitempty"`

	// Retry controls the delays after a retryable failure
	Retry *RetryConfig `yaml:"retry,omitempty"`
}

// RetryConfig defines the exponential backoff used after retryable failures
type RetryConfig struct {
	InitialInterval string `yaml:"initialInterval,omitempty"`
	MaxInterval     string `yaml:"maxInterval,omitempty"`
}

// StatusConfig defines where the sync status file lives
type StatusConfig struct {
	// Path is the directory holding status.json
	Path string `yaml:"path,omitempty"`
}

// LoadConfig loads the configuration, applies environment overrides and validates the result
func LoadConfig(opts ...Option) (*Config, error) {
	loaderCfg := &loaderConfig{}
	for _, opt := range opts {
		if err := opt(loaderCfg); err != nil {
			return nil, err
		}
	}

	// As of now, this is required because there's no other options to load
	// configuration. Once we add more options, we can remove this check.
	if loaderCfg.path == "" {
		return nil, fmt.Errorf("path is required")
	}

	// Read the entire file into memory
	data, err := os.ReadFile(loaderCfg.path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	// Parse YAML content
	var config Config
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse YAML config: %w", err)
	}

	config.applyEnvOverrides(newEnv())

	// Validate the config
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &config, nil
}

// newEnv returns a viper instance reading ASTEROID_RADAR_* variables
func newEnv() *viper.Viper {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	return v
}

// applyEnvOverrides replaces file values with ASTEROID_RADAR_STORE_PATH and
// ASTEROID_RADAR_SYNC_INTERVAL when they are set
func (c *Config) applyEnvOverrides(v *viper.Viper) {
	if path := v.GetString("STORE_PATH"); path != "" {
		if c.Store == nil {
			c.Store = &StoreConfig{}
		}
		c.Store.Path = path
	}
	if interval := v.GetString("SYNC_INTERVAL"); interval != "" {
		if c.Sync == nil {
			c.Sync = &SyncConfig{}
		}
		c.Sync.Interval = interval
	}
}

// Validate performs validation on the configuration
func (c *Config) Validate() error {
	if c == nil {
		return fmt.Errorf("config cannot be nil")
	}

	if err := c.Feed.validate(); err != nil {
		return fmt.Errorf("feed: %w", err)
	}
	if err := c.Store.validate(); err != nil {
		return fmt.Errorf("store: %w", err)
	}
	if err := c.Sync.validate(); err != nil {
		return fmt.Errorf("sync: %w", err)
	}
	if err := c.Telemetry.Validate(); err != nil {
		return fmt.Errorf("telemetry: %w", err)
	}

	return nil
}

func (f *FeedConfig) validate() error {
	if f == nil {
		return nil
	}
	if f.Endpoint != "" {
		u, err := url.Parse(f.Endpoint)
		if err != nil {
			return fmt.Errorf("invalid endpoint: %w", err)
		}
		if u.Scheme != "http" && u.Scheme != "https" {
			return fmt.Errorf("endpoint must use http or https, got %q", f.Endpoint)
		}
	}
	if err := validateDuration("timeout", f.Timeout, false); err != nil {
		return err
	}
	if err := validateDuration("rateInterval", f.RateInterval, true); err != nil {
		return err
	}
	if f.RateBurst < 0 {
		return fmt.Errorf("rateBurst cannot be negative")
	}
	if f.MaxResponseBytes < 0 {
		return fmt.Errorf("maxResponseBytes cannot be negative")
	}
	return nil
}

func (s *StoreConfig) validate() error {
	if s == nil {
		return nil
	}
	switch s.Backend {
	case "", store.BackendSQLite, store.BackendMemory:
		return nil
	default:
		return fmt.Errorf("unsupported backend %q (expected %s or %s)", s.Backend, store.BackendSQLite, store.BackendMemory)
	}
}

func (s *SyncConfig) validate() error {
	if s == nil {
		return nil
	}
	if err := validateDuration("interval", s.Interval, false); err != nil {
		return err
	}
	if err := validateDuration("jitter", s.Jitter, true); err != nil {
		return err
	}
	if s.DefaultFilter != "" {
		if _, err := asteroid.ParseFilter(s.DefaultFilter); err != nil {
			return fmt.Errorf("defaultFilter: %w", err)
		}
	}
	if s.Timezone != "" {
		if _, err := time.LoadLocation(s.Timezone); err != nil {
			return fmt.Errorf("invalid timezone %q: %w", s.Timezone, err)
		}
	}
	if s.Retry != nil {
		if err := validateDuration("retry.initialInterval", s.Retry.InitialInterval, false); err != nil {
			return err
		}
		if err := validateDuration("retry.maxInterval", s.Retry.MaxInterval, false); err != nil {
			return err
		}
		if s.Retry.InitialInterval != "" && s.Retry.MaxInterval != "" &&
			s.Retry.GetInitialInterval() > s.Retry.GetMaxInterval() {
			return fmt.Errorf("retry.initialInterval cannot exceed retry.maxInterval")
		}
	}
	return nil
}

// validateDuration checks that value, when set, is a positive duration (or zero if allowZero)
func validateDuration(field, value string, allowZero bool) error {
	if value == "" {
		return nil
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return fmt.Errorf("invalid %s %q: %w", field, value, err)
	}
	if d < 0 || (d == 0 && !allowZero) {
		return fmt.Errorf("%s must be positive, got %q", field, value)
	}
	return nil
}

// GetFeed returns the feed section, never nil
func (c *Config) GetFeed() *FeedConfig {
	if c == nil || c.Feed == nil {
		return &FeedConfig{}
	}
	return c.Feed
}

// GetStore returns the store section, never nil
func (c *Config) GetStore() *StoreConfig {
	if c == nil || c.Store == nil {
		return &StoreConfig{}
	}
	return c.Store
}

// GetSync returns the sync section, never nil
func (c *Config) GetSync() *SyncConfig {
	if c == nil || c.Sync == nil {
		return &SyncConfig{}
	}
	return c.Sync
}

// GetStatusPath returns the status directory, using DefaultStatusPath if not specified
func (c *Config) GetStatusPath() string {
	if c == nil || c.Status == nil || c.Status.Path == "" {
		return DefaultStatusPath
	}
	return c.Status.Path
}

// GetEndpoint returns the feed endpoint, using feed.DefaultEndpoint if not specified
func (f *FeedConfig) GetEndpoint() string {
	if f.Endpoint == "" {
		return feed.DefaultEndpoint
	}
	return f.Endpoint
}

// GetAPIKey returns the NeoWs API key using the following priority:
// 1. Read from APIKeyFile if specified
// 2. Read from ASTEROID_RADAR_FEED_API_KEY environment variable
// 3. The literal APIKey
// 4. feed.DemoAPIKey
//
// The key from file will have leading/trailing whitespace trimmed.
func (f *FeedConfig) GetAPIKey() (string, error) {
	if f.APIKeyFile != "" {
		cleanPath := filepath.Clean(f.APIKeyFile)

		data, err := os.ReadFile(cleanPath)
		if err != nil {
			return "", fmt.Errorf("failed to read API key from file %s: %w", cleanPath, err)
		}
		key := strings.TrimSpace(string(data))
		if key == "" {
			return "", fmt.Errorf("API key file %s is empty", cleanPath)
		}
		return key, nil
	}

	if key := newEnv().GetString("FEED_API_KEY"); key != "" {
		return key, nil
	}

	if f.APIKey != "" {
		return f.APIKey, nil
	}

	return feed.DemoAPIKey, nil
}

// GetTimeout returns the feed request timeout
func (f *FeedConfig) GetTimeout() time.Duration {
	return parseDurationOr(f.Timeout, defaultFeedTimeout)
}

// GetRateInterval returns the spacing between outbound requests; zero disables the limiter
func (f *FeedConfig) GetRateInterval() time.Duration {
	if f.RateInterval == "" {
		return defaultRateInterval
	}
	return parseDurationOr(f.RateInterval, defaultRateInterval)
}

// GetRateBurst returns the limiter burst, at least 1
func (f *FeedConfig) GetRateBurst() int {
	if f.RateBurst < 1 {
		return 1
	}
	return f.RateBurst
}

// GetBackend returns the store backend, defaulting to SQLite
func (s *StoreConfig) GetBackend() string {
	if s.Backend == "" {
		return store.BackendSQLite
	}
	return s.Backend
}

// GetPath returns the database path, using DefaultStorePath if not specified
func (s *StoreConfig) GetPath() string {
	if s.Path == "" {
		return DefaultStorePath
	}
	return s.Path
}

// GetInterval returns the interval between successful cycles
func (s *SyncConfig) GetInterval() time.Duration {
	return parseDurationOr(s.Interval, defaultSyncInterval)
}

// GetJitter returns the maximum offset applied to the interval
func (s *SyncConfig) GetJitter() time.Duration {
	if s.Jitter == "" {
		return defaultSyncJitter
	}
	return parseDurationOr(s.Jitter, defaultSyncJitter)
}

// GetDefaultFilter returns the startup filter, WEEK if not specified
func (s *SyncConfig) GetDefaultFilter() asteroid.Filter {
	f, err := asteroid.ParseFilter(s.DefaultFilter)
	if err != nil {
		return asteroid.DefaultFilter
	}
	return f
}

// GetLocation returns the time zone deciding the calendar day, time.Local if not specified
func (s *SyncConfig) GetLocation() *time.Location {
	if s.Timezone == "" {
		return time.Local
	}
	loc, err := time.LoadLocation(s.Timezone)
	if err != nil {
		return time.Local
	}
	return loc
}

// GetRetry returns the retry section, never nil
func (s *SyncConfig) GetRetry() *RetryConfig {
	if s.Retry == nil {
		return &RetryConfig{}
	}
	return s.Retry
}

// GetInitialInterval returns the first retry delay
func (r *RetryConfig) GetInitialInterval() time.Duration {
	return parseDurationOr(r.InitialInterval, defaultRetryInitial)
}

// GetMaxInterval returns the cap on retry delays
func (r *RetryConfig) GetMaxInterval() time.Duration {
	return parseDurationOr(r.MaxInterval, defaultRetryMaxDelay)
}

func parseDurationOr(value string, fallback time.Duration) time.Duration {
	if value == "" {
		return fallback
	}
	d, err := time.ParseDuration(value)
	if err != nil || d < 0 {
		return fallback
	}
	return d
}
