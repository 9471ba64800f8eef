package feed

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"strings"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/stacklok/asteroid-radar/internal/asteroid"
	"github.com/stacklok/asteroid-radar/internal/httpclient"
	"github.com/stacklok/asteroid-radar/internal/otel"
)

// NeoWsClient fetches asteroid records from the NASA NeoWs feed endpoint
type NeoWsClient struct {
	httpClient httpclient.Client
	endpoint   string
	tracer     trace.Tracer
}

// Option configures a NeoWsClient
type Option func(*NeoWsClient)

// WithEndpoint overrides the NeoWs base URL
func WithEndpoint(endpoint string) Option {
	return func(c *NeoWsClient) {
		if endpoint != "" {
			c.endpoint = strings.TrimSuffix(endpoint, "/")
		}
	}
}

// WithTracer sets the tracer used for fetch spans
func WithTracer(tracer trace.Tracer) Option {
	return func(c *NeoWsClient) {
		c.tracer = tracer
	}
}

// NewNeoWsClient creates a feed client on top of the given HTTP client
func NewNeoWsClient(httpClient httpclient.Client, opts ...Option) *NeoWsClient {
	c := &NeoWsClient{
		httpClient: httpClient,
		endpoint:   DefaultEndpoint,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Endpoint returns the configured base URL
func (c *NeoWsClient) Endpoint() string {
	return c.endpoint
}

// Fetch retrieves the 7-day window starting at start
func (c *NeoWsClient) Fetch(ctx context.Context, start asteroid.Date, apiKey string) (*Payload, error) {
	window := NewWindow(start)

	ctx, span := otel.StartSpan(ctx, c.tracer, "feed.Fetch",
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			otel.AttrFeedWindowStart.String(window.Start.String()),
			otel.AttrFeedWindowEnd.String(window.End.String()),
		),
	)
	defer span.End()

	if apiKey == "" {
		apiKey = DemoAPIKey
	}

	body, err := c.httpClient.Get(ctx, c.feedURL(window, apiKey))
	if err != nil {
		otel.RecordError(span, err)
		return nil, networkError(err)
	}

	payload, err := ParsePayload(body)
	if err != nil {
		otel.RecordError(span, err)
		return nil, err
	}
	payload.Window = window

	span.SetAttributes(
		otel.AttrResultCount.Int(len(payload.Records)),
		attribute.Int("feed.element_count", payload.ElementCount),
	)
	if payload.ElementCount != len(payload.Records) {
		slog.WarnContext(ctx, "Feed element count does not match records received",
			"window", window.String(),
			"element_count", payload.ElementCount,
			"records", len(payload.Records))
	}

	return payload, nil
}

func (c *NeoWsClient) feedURL(window Window, apiKey string) string {
	q := url.Values{}
	q.Set("start_date", window.Start.String())
	q.Set("end_date", window.End.String())
	q.Set("api_key", apiKey)
	return fmt.Sprintf("%s/feed?%s", c.endpoint, q.Encode())
}
