package observe_test

import (
	"context"
	"testing"

	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"

	"github.com/standvox/standvox/internal/observe"
)

func newTestMetrics(t *testing.T) (*observe.Metrics, *sdkmetric.ManualReader) {
	t.Helper()
	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	m, err := observe.NewMetrics(mp)
	if err != nil {
		t.Fatalf("NewMetrics: %v", err)
	}
	return m, reader
}

func collect(t *testing.T, reader *sdkmetric.ManualReader) metricdata.ResourceMetrics {
	t.Helper()
	var rm metricdata.ResourceMetrics
	if err := reader.Collect(context.Background(), &rm); err != nil {
		t.Fatalf("Collect: %v", err)
	}
	return rm
}

func findMetric(rm metricdata.ResourceMetrics, name string) (metricdata.Metrics, bool) {
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			if m.Name == name {
				return m, true
			}
		}
	}
	return metricdata.Metrics{}, false
}

func TestNewMetricsRegistersInstruments(t *testing.T) {
	m, reader := newTestMetrics(t)
	ctx := context.Background()

	m.TurnChanges.Add(ctx, 1)
	m.Transcripts.Add(ctx, 1)
	m.AnswersRecorded.Add(ctx, 1)
	m.SessionsCompleted.Add(ctx, 1)
	m.VADFrames.Add(ctx, 1)
	m.TransportErrors.Add(ctx, 1)
	m.ActiveSessions.Add(ctx, 1)
	m.SpeechSegmentDuration.Record(ctx, 1.5)
	m.SignalDuration.Record(ctx, 0.2)
	m.HTTPRequestDuration.Record(ctx, 0.01)

	rm := collect(t, reader)
	for _, name := range []string{
		"standvox.turn.changes",
		"standvox.transcripts",
		"standvox.answers.recorded",
		"standvox.sessions.completed",
		"standvox.vad.frames",
		"standvox.transport.errors",
		"standvox.active_sessions",
		"standvox.vad.segment.duration",
		"standvox.signal.duration",
		"standvox.http.request.duration",
	} {
		if _, ok := findMetric(rm, name); !ok {
			t.Errorf("metric %q not recorded", name)
		}
	}
}

func TestCounterValues(t *testing.T) {
	m, reader := newTestMetrics(t)
	ctx := context.Background()

	m.RecordTurnChange(ctx, "AI_TURN")
	m.RecordTurnChange(ctx, "USER_TURN")
	m.RecordTurnChange(ctx, "AI_TURN")

	rm := collect(t, reader)
	md, ok := findMetric(rm, "standvox.turn.changes")
	if !ok {
		t.Fatal("turn.changes metric not found")
	}
	sum, ok := md.Data.(metricdata.Sum[int64])
	if !ok {
		t.Fatalf("unexpected data type %T", md.Data)
	}
	var total int64
	for _, dp := range sum.DataPoints {
		total += dp.Value
	}
	if total != 3 {
		t.Errorf("turn.changes total = %d, want 3", total)
	}
}

func TestRecordTranscriptPartitionsByRole(t *testing.T) {
	m, reader := newTestMetrics(t)
	ctx := context.Background()

	m.RecordTranscript(ctx, "user")
	m.RecordTranscript(ctx, "assistant")
	m.RecordTranscript(ctx, "user")

	rm := collect(t, reader)
	md, ok := findMetric(rm, "standvox.transcripts")
	if !ok {
		t.Fatal("transcripts metric not found")
	}
	sum := md.Data.(metricdata.Sum[int64])
	if len(sum.DataPoints) != 2 {
		t.Fatalf("datapoints = %d, want 2 (one per role)", len(sum.DataPoints))
	}
}

func TestHistogramRecordsObservations(t *testing.T) {
	m, reader := newTestMetrics(t)
	ctx := context.Background()

	m.SpeechSegmentDuration.Record(ctx, 0.8)
	m.SpeechSegmentDuration.Record(ctx, 2.3)

	rm := collect(t, reader)
	md, ok := findMetric(rm, "standvox.vad.segment.duration")
	if !ok {
		t.Fatal("segment duration metric not found")
	}
	hist, ok := md.Data.(metricdata.Histogram[float64])
	if !ok {
		t.Fatalf("unexpected data type %T", md.Data)
	}
	if len(hist.DataPoints) != 1 {
		t.Fatalf("datapoints = %d, want 1", len(hist.DataPoints))
	}
	if got := hist.DataPoints[0].Count; got != 2 {
		t.Errorf("observation count = %d, want 2", got)
	}
}

func TestDefaultMetricsIsSingleton(t *testing.T) {
	a := observe.DefaultMetrics()
	b := observe.DefaultMetrics()
	if a != b {
		t.Error("DefaultMetrics returned distinct instances")
	}
	if a == nil {
		t.Fatal("DefaultMetrics returned nil")
	}
}
