// Package observe provides the observability layer for Standvox: OpenTelemetry
// metric instruments, distributed tracing, structured logging, and the HTTP
// middleware that ties them together.
//
// Instruments are recorded through the OpenTelemetry Metrics API and surface
// on /metrics through the Prometheus bridge that [InitProvider] installs.
// Production code shares the process-wide [DefaultMetrics] instance; tests
// build their own with [NewMetrics] and a private [metric.MeterProvider].
package observe

import (
	"context"
	"errors"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// meterName is the instrumentation scope for every Standvox instrument.
const meterName = "github.com/standvox/standvox"

// Metrics bundles the application's metric instruments. The underlying OTel
// types are safe for concurrent use.
type Metrics struct {
	// SpeechSegmentDuration tracks the length of detected user speech
	// segments, start to stop.
	SpeechSegmentDuration metric.Float64Histogram

	// SignalDuration tracks upstream signaling round-trip latency for the
	// WebRTC SDP proxy.
	SignalDuration metric.Float64Histogram

	// HTTPRequestDuration tracks HTTP request processing time, partitioned
	// by "method" and "path" attributes.
	HTTPRequestDuration metric.Float64Histogram

	// VADFrames counts analysed audio frames, partitioned by a "result"
	// attribute: voiced, unvoiced or calibrating.
	VADFrames metric.Int64Counter

	// TurnChanges counts speaking-turn transitions by their "to" state.
	TurnChanges metric.Int64Counter

	// TurnViolations counts operations rejected for being attempted outside
	// their legal turn state.
	TurnViolations metric.Int64Counter

	// Transcripts counts finalized transcripts, partitioned by "role".
	Transcripts metric.Int64Counter

	// AnswersRecorded counts committed standup answers by "question".
	AnswersRecorded metric.Int64Counter

	// SessionsCompleted counts interviews that ran the full roster.
	SessionsCompleted metric.Int64Counter

	// TransportErrors counts realtime transport error events.
	TransportErrors metric.Int64Counter

	// ActiveSessions tracks the number of live interview sessions.
	ActiveSessions metric.Int64UpDownCounter
}

// latencyBuckets are histogram boundaries in seconds, sized for the
// millisecond-to-seconds range a voice pipeline lives in.
var latencyBuckets = []float64{
	0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10,
}

// NewMetrics builds every instrument on the given provider, reporting all
// creation failures joined into one error.
func NewMetrics(mp metric.MeterProvider) (*Metrics, error) {
	meter := mp.Meter(meterName)

	var errs []error
	counter := func(name, desc string) metric.Int64Counter {
		c, err := meter.Int64Counter(name, metric.WithDescription(desc))
		errs = append(errs, err)
		return c
	}
	latency := func(name, desc string) metric.Float64Histogram {
		h, err := meter.Float64Histogram(name,
			metric.WithDescription(desc),
			metric.WithUnit("s"),
			metric.WithExplicitBucketBoundaries(latencyBuckets...),
		)
		errs = append(errs, err)
		return h
	}

	m := &Metrics{
		SpeechSegmentDuration: latency("standvox.vad.segment.duration",
			"Length of detected user speech segments."),
		SignalDuration: latency("standvox.signal.duration",
			"Upstream SDP signaling round-trip latency."),

		VADFrames: counter("standvox.vad.frames",
			"Total analysed audio frames by classification result."),
		TurnChanges: counter("standvox.turn.changes",
			"Total speaking-turn transitions by destination state."),
		TurnViolations: counter("standvox.turn.violations",
			"Total operations rejected outside their legal turn state."),
		Transcripts: counter("standvox.transcripts",
			"Total finalized transcripts by role."),
		AnswersRecorded: counter("standvox.answers.recorded",
			"Total committed standup answers by question."),
		SessionsCompleted: counter("standvox.sessions.completed",
			"Total interviews that completed the full roster."),
		TransportErrors: counter("standvox.transport.errors",
			"Total realtime transport error events."),
	}

	var err error
	m.HTTPRequestDuration, err = meter.Float64Histogram("standvox.http.request.duration",
		metric.WithDescription("HTTP request latency by method and path."),
		metric.WithUnit("s"),
	)
	errs = append(errs, err)

	m.ActiveSessions, err = meter.Int64UpDownCounter("standvox.active_sessions",
		metric.WithDescription("Number of live interview sessions."))
	errs = append(errs, err)

	if err := errors.Join(errs...); err != nil {
		return nil, err
	}
	return m, nil
}

var (
	defaultMetrics     *Metrics
	defaultMetricsOnce sync.Once
)

// DefaultMetrics returns the process-wide [Metrics], built on first call from
// [otel.GetMeterProvider]. Instrument creation against the global provider
// does not fail; a failure here panics.
func DefaultMetrics() *Metrics {
	defaultMetricsOnce.Do(func() {
		var err error
		defaultMetrics, err = NewMetrics(otel.GetMeterProvider())
		if err != nil {
			panic("observe: default metrics: " + err.Error())
		}
	})
	return defaultMetrics
}

// RecordTurnChange counts a speaking-turn transition to the named state.
func (m *Metrics) RecordTurnChange(ctx context.Context, to string) {
	m.TurnChanges.Add(ctx, 1, metric.WithAttributes(attribute.String("to", to)))
}

// RecordTranscript counts a finalized transcript for the given role.
func (m *Metrics) RecordTranscript(ctx context.Context, role string) {
	m.Transcripts.Add(ctx, 1, metric.WithAttributes(attribute.String("role", role)))
}

// RecordAnswer counts a committed answer to the given question.
func (m *Metrics) RecordAnswer(ctx context.Context, question string) {
	m.AnswersRecorded.Add(ctx, 1, metric.WithAttributes(attribute.String("question", question)))
}

// RecordVADFrame counts one analysed frame with its classification result.
func (m *Metrics) RecordVADFrame(ctx context.Context, result string) {
	m.VADFrames.Add(ctx, 1, metric.WithAttributes(attribute.String("result", result)))
}
