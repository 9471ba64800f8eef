// Package httpclient provides the rate-limited, size-bounded HTTP GET client
// used to talk to remote feeds.
package httpclient

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"golang.org/x/time/rate"
)

const (
	// DefaultTimeout is the default timeout for HTTP requests
	DefaultTimeout = 30 * time.Second

	// DefaultMaxResponseSize is the default maximum accepted response size (16MB)
	DefaultMaxResponseSize = 16 * 1024 * 1024

	// UserAgent is the user agent string for HTTP requests
	UserAgent = "asteroid-radar/1.0"
)

// ErrResponseTooLarge is returned when a response exceeds the configured size limit
var ErrResponseTooLarge = errors.New("response exceeds maximum allowed size")

// Client is an interface for HTTP operations
//
//go:generate mockgen -destination=mocks/mock_client.go -package=mocks github.com/stacklok/asteroid-radar/internal/httpclient Client
type Client interface {
	// Get performs an HTTP GET request and returns the response body
	Get(ctx context.Context, url string) ([]byte, error)
}

// Option configures a DefaultClient
type Option func(*DefaultClient)

// WithRateLimit limits outbound requests to one every interval, with the given burst.
// A non-positive interval disables rate limiting.
func WithRateLimit(interval time.Duration, burst int) Option {
	return func(c *DefaultClient) {
		if interval <= 0 {
			c.limiter = nil
			return
		}
		if burst < 1 {
			burst = 1
		}
		c.limiter = rate.NewLimiter(rate.Every(interval), burst)
	}
}

// WithMaxResponseSize overrides the maximum accepted response size in bytes
func WithMaxResponseSize(size int64) Option {
	return func(c *DefaultClient) {
		if size > 0 {
			c.maxResponseSize = size
		}
	}
}

// WithUserAgent overrides the User-Agent header
func WithUserAgent(ua string) Option {
	return func(c *DefaultClient) {
		if ua != "" {
			c.userAgent = ua
		}
	}
}

// DefaultClient is the default HTTP client implementation
type DefaultClient struct {
	client          *http.Client
	limiter         *rate.Limiter
	maxResponseSize int64
	userAgent       string
}

// NewDefaultClient creates a new HTTP client with the specified timeout.
// If timeout is 0, DefaultTimeout is used.
func NewDefaultClient(timeout time.Duration, opts ...Option) Client {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	c := &DefaultClient{
		client: &http.Client{
			Timeout: timeout,
		},
		maxResponseSize: DefaultMaxResponseSize,
		userAgent:       UserAgent,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Get performs an HTTP GET request, waiting on the rate limiter first
func (c *DefaultClient) Get(ctx context.Context, url string) ([]byte, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("rate limiter wait: %w", err)
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("Accept", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to execute request: %w", err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		return nil, NewHTTPError(resp.StatusCode, RedactURL(url), resp.Status)
	}

	if resp.ContentLength > c.maxResponseSize {
		return nil, fmt.Errorf("%w: content length %d bytes, limit %d bytes",
			ErrResponseTooLarge, resp.ContentLength, c.maxResponseSize)
	}

	// Read one byte past the limit so an oversized body is detected
	body, err := io.ReadAll(io.LimitReader(resp.Body, c.maxResponseSize+1))
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}
	if int64(len(body)) > c.maxResponseSize {
		return nil, fmt.Errorf("%w: limit %d bytes", ErrResponseTooLarge, c.maxResponseSize)
	}

	return body, nil
}
