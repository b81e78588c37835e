package observe

import (
	"context"
	"log/slog"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "github.com/standvox/standvox"

// Tracer returns the tracer for this service.
func Tracer() trace.Tracer {
	return otel.Tracer(tracerName)
}

// StartSpan starts a span with the given name on the context.
func StartSpan(ctx context.Context, name string, opts ...trace.SpanStartOption) (context.Context, trace.Span) {
	return Tracer().Start(ctx, name, opts...)
}

// CorrelationID returns the trace ID of the current span, or "" when the
// context carries no recording span. Useful for tying log lines to traces.
func CorrelationID(ctx context.Context) string {
	sc := trace.SpanContextFromContext(ctx)
	if !sc.HasTraceID() {
		return ""
	}
	return sc.TraceID().String()
}

// Logger returns the default slog logger annotated with the current trace ID
// when one is present.
func Logger(ctx context.Context) *slog.Logger {
	log := slog.Default()
	if id := CorrelationID(ctx); id != "" {
		log = log.With(slog.String("trace_id", id))
	}
	return log
}
