// Package otel provides OpenTelemetry span helpers shared by the feed client,
// the sync engine and the coordinator.
package otel

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
)

// Attribute keys used across the application
const (
	AttrFeedWindowStart = attribute.Key("feed.window.start")
	AttrFeedWindowEnd   = attribute.Key("feed.window.end")
	AttrReferenceDate   = attribute.Key("sync.reference_date")
	AttrOutcome         = attribute.Key("sync.outcome")
	AttrRunID           = attribute.Key("sync.run_id")
	AttrFilter          = attribute.Key("view.filter")
	AttrAsteroidID      = attribute.Key("asteroid.id")
	AttrResultCount     = attribute.Key("result.count")
	AttrSkippedCount    = attribute.Key("result.skipped")
)

// StartSpan starts a span when tracer is non-nil. Otherwise it returns ctx
// unchanged with a non-recording span, leaving any parent span untouched.
func StartSpan(
	ctx context.Context,
	tracer trace.Tracer,
	name string,
	opts ...trace.SpanStartOption,
) (context.Context, trace.Span) {
	if tracer == nil {
		return ctx, noop.Span{}
	}
	return tracer.Start(ctx, name, opts...)
}

// RecordError records err on span and marks the span as failed.
// The status description stays generic; the error itself is kept as a span event.
func RecordError(span trace.Span, err error) {
	if err != nil && span != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "operation failed")
	}
}
