// Package tracing holds the process-wide tracer used by the stage
// processors, repositories, and HTTP handlers. Until SetTracer runs,
// StartSpan is a no-op so unit tests need no tracing setup.
package tracing

import (
	"context"

	"go.opentelemetry.io/otel/trace"
)

var tracer trace.Tracer

// SetTracer installs the tracer. Called once at boot when tracing is
// enabled.
func SetTracer(t trace.Tracer) {
	tracer = t
}

// StartSpan starts a child span, or returns the context unchanged when
// no tracer is installed.
func StartSpan(ctx context.Context, spanName string) (context.Context, trace.Span) {
	if tracer == nil {
		return ctx, trace.SpanFromContext(ctx)
	}
	return tracer.Start(ctx, spanName)
}

// GetTraceID returns the active trace ID, or empty when the context
// carries no recorded span. Error responses and DLQ entries attach it
// so a failure can be chased across services.
func GetTraceID(ctx context.Context) string {
	if tracer == nil {
		return ""
	}
	span := trace.SpanFromContext(ctx)
	if !span.SpanContext().IsValid() {
		return ""
	}
	return span.SpanContext().TraceID().String()
}
