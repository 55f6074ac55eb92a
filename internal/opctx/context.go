// Package opctx carries per-operation state through a context.
package opctx

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
)

type ctxKey int

const key ctxKey = 1

// Values represent state for each operation.
type Values struct {
	TraceID string
	Tracer  trace.Tracer
	Now     time.Time
}

// GetValues returns the values from the context.
func GetValues(ctx context.Context) *Values {
	v, ok := ctx.Value(key).(*Values)
	if !ok {
		return &Values{
			TraceID: trace.TraceID{}.String(),
			Tracer:  noop.NewTracerProvider().Tracer(""),
			Now:     time.Now(),
		}
	}

	return v
}

// SetValues set operation values to the context.
func SetValues(ctx context.Context, v *Values) context.Context {
	return context.WithValue(ctx, key, v)
}

// GetTraceID returns the trace id from the context.
func GetTraceID(ctx context.Context) string {
	v, ok := ctx.Value(key).(*Values)
	if !ok {
		return trace.TraceID{}.String()
	}
	return v.TraceID
}

// GetTime returns the clock of the operation. Every timestamp written during
// one operation comes from here.
func GetTime(ctx context.Context) time.Time {
	v, ok := ctx.Value(key).(*Values)
	if !ok || v.Now.IsZero() {
		return time.Now()
	}
	return v.Now
}

// WithTime returns a context whose operation clock reads now. Mostly useful
// for tests.
func WithTime(ctx context.Context, now time.Time) context.Context {
	v := *GetValues(ctx)
	v.Now = now
	return SetValues(ctx, &v)
}

// AddSpan adds a OpenTelemetry span to the trace and context.
func AddSpan(ctx context.Context, spanName string, keyValues ...attribute.KeyValue) (context.Context, trace.Span) {
	v, ok := ctx.Value(key).(*Values)
	if !ok || v.Tracer == nil {
		return ctx, trace.SpanFromContext(ctx)
	}

	ctx, span := v.Tracer.Start(ctx, spanName)
	for _, kv := range keyValues {
		span.SetAttributes(kv)
	}

	return ctx, span
}
