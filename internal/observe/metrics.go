// Package observe provides application-wide observability primitives for
// Inkwell: OpenTelemetry metrics, distributed tracing, structured logging,
// and HTTP middleware that ties them together.
//
// Metrics are recorded through the OpenTelemetry Metrics API and exported to
// Prometheus by the registry a [Provider] owns. A package-level default
// [Metrics] instance ([DefaultMetrics]) is provided for convenience; tests
// should use [NewMetrics] with a custom [metric.MeterProvider] to avoid
// cross-test pollution.
package observe

import (
	"context"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// meterName is the instrumentation scope name used for all Inkwell metrics.
const meterName = "github.com/MrWong99/inkwell"

// Metrics holds all OpenTelemetry metric instruments for the application.
// All fields are safe for concurrent use.
type Metrics struct {
	// --- Writing assistant ---

	// AssistDuration tracks the latency of one remote generation call. Use
	// with attribute.String("operation", ...).
	AssistDuration metric.Float64Histogram

	// AssistRequests counts adapter calls. Use with attributes:
	//   attribute.String("operation", ...), attribute.String("status", ...)
	AssistRequests metric.Int64Counter

	// AssistErrors counts failed adapter calls. Use with attributes:
	//   attribute.String("operation", ...), attribute.String("kind", ...)
	AssistErrors metric.Int64Counter

	// SuggestionsApplied counts suggestions accepted into a draft.
	SuggestionsApplied metric.Int64Counter

	// SuggestionsSkipped counts stale or overlapping suggestions skipped
	// during accept. Use with attribute.String("reason", ...).
	SuggestionsSkipped metric.Int64Counter

	// --- Idea pad live sessions ---

	// LiveConnectDuration tracks the time from start to active.
	LiveConnectDuration metric.Float64Histogram

	// LiveFramesSent counts capture frames handed to the transport.
	LiveFramesSent metric.Int64Counter

	// LiveFramesDropped counts capture frames discarded by a full send queue.
	LiveFramesDropped metric.Int64Counter

	// LiveAudioScheduled counts model audio chunks scheduled for playback.
	LiveAudioScheduled metric.Int64Counter

	// LiveInterruptions counts barge-in flushes.
	LiveInterruptions metric.Int64Counter

	// LiveTurns counts completed conversational turns.
	LiveTurns metric.Int64Counter

	// ActiveSessions tracks the number of live sessions that are connecting
	// or active.
	ActiveSessions metric.Int64UpDownCounter

	// --- HTTP middleware ---

	// HTTPRequestDuration tracks HTTP request processing time. Use with attributes:
	//   attribute.String("method", ...), attribute.String("path", ...)
	HTTPRequestDuration metric.Float64Histogram
}

// latencyBuckets defines histogram bucket boundaries (in seconds) for remote
// model calls, which range from sub-second lookups to long transcriptions.
var latencyBuckets = []float64{
	0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 20, 40,
}

// NewMetrics creates a fully initialised [Metrics] struct using the given
// [metric.MeterProvider]. Returns an error if any instrument creation fails.
func NewMetrics(mp metric.MeterProvider) (*Metrics, error) {
	m := mp.Meter(meterName)
	var err error
	met := &Metrics{}

	// Histograms.
	if met.AssistDuration, err = m.Float64Histogram("inkwell.assist.duration",
		metric.WithDescription("Latency of remote generation calls by operation."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.LiveConnectDuration, err = m.Float64Histogram("inkwell.live.connect.duration",
		metric.WithDescription("Time from session start until the live session is active."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}

	// Counters.
	if met.AssistRequests, err = m.Int64Counter("inkwell.assist.requests",
		metric.WithDescription("Total writing assistant requests by operation and status."),
	); err != nil {
		return nil, err
	}
	if met.AssistErrors, err = m.Int64Counter("inkwell.assist.errors",
		metric.WithDescription("Total writing assistant errors by operation and kind."),
	); err != nil {
		return nil, err
	}
	if met.SuggestionsApplied, err = m.Int64Counter("inkwell.suggestions.applied",
		metric.WithDescription("Total suggestions applied to a draft."),
	); err != nil {
		return nil, err
	}
	if met.SuggestionsSkipped, err = m.Int64Counter("inkwell.suggestions.skipped",
		metric.WithDescription("Total suggestions skipped during accept by reason."),
	); err != nil {
		return nil, err
	}
	if met.LiveFramesSent, err = m.Int64Counter("inkwell.live.frames.sent",
		metric.WithDescription("Total capture frames handed to the live transport."),
	); err != nil {
		return nil, err
	}
	if met.LiveFramesDropped, err = m.Int64Counter("inkwell.live.frames.dropped",
		metric.WithDescription("Total capture frames dropped by a full send queue."),
	); err != nil {
		return nil, err
	}
	if met.LiveAudioScheduled, err = m.Int64Counter("inkwell.live.audio.scheduled",
		metric.WithDescription("Total model audio chunks scheduled for playback."),
	); err != nil {
		return nil, err
	}
	if met.LiveInterruptions, err = m.Int64Counter("inkwell.live.interruptions",
		metric.WithDescription("Total barge-in interruptions."),
	); err != nil {
		return nil, err
	}
	if met.LiveTurns, err = m.Int64Counter("inkwell.live.turns",
		metric.WithDescription("Total completed conversational turns."),
	); err != nil {
		return nil, err
	}

	// Gauges (UpDownCounters).
	if met.ActiveSessions, err = m.Int64UpDownCounter("inkwell.live.active_sessions",
		metric.WithDescription("Number of live sessions connecting or active."),
	); err != nil {
		return nil, err
	}

	// HTTP middleware histogram.
	if met.HTTPRequestDuration, err = m.Float64Histogram("inkwell.http.request.duration",
		metric.WithDescription("HTTP request latency by method and path."),
		metric.WithUnit("s"),
	); err != nil {
		return nil, err
	}

	return met, nil
}

// defaultMetrics is the lazily-initialised package-level Metrics instance.
var (
	defaultMetrics     *Metrics
	defaultMetricsOnce sync.Once
)

// DefaultMetrics returns the package-level [Metrics] instance, creating it on
// first call using [otel.GetMeterProvider]. Subsequent calls return the same
// pointer. Panics if instrument creation fails (should not happen with the
// global provider).
func DefaultMetrics() *Metrics {
	defaultMetricsOnce.Do(func() {
		var err error
		defaultMetrics, err = NewMetrics(otel.GetMeterProvider())
		if err != nil {
			panic("observe: failed to create default metrics: " + err.Error())
		}
	})
	return defaultMetrics
}

// Attr is a convenience alias for [attribute.String] to reduce verbosity at
// call sites.
func Attr(key, value string) attribute.KeyValue {
	return attribute.String(key, value)
}

// RecordAssist records one adapter call: its latency and a request counter
// increment with the standard attribute set.
func (m *Metrics) RecordAssist(ctx context.Context, operation, status string, d time.Duration) {
	m.AssistDuration.Record(ctx, d.Seconds(),
		metric.WithAttributes(attribute.String("operation", operation)),
	)
	m.AssistRequests.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("operation", operation),
			attribute.String("status", status),
		),
	)
}

// RecordAssistError is a convenience method that records an adapter error
// counter increment.
func (m *Metrics) RecordAssistError(ctx context.Context, operation, kind string) {
	m.AssistErrors.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("operation", operation),
			attribute.String("kind", kind),
		),
	)
}

// RecordSuggestions records the outcome of accepting suggestions.
func (m *Metrics) RecordSuggestions(ctx context.Context, applied, stale, overlapping int) {
	if applied > 0 {
		m.SuggestionsApplied.Add(ctx, int64(applied))
	}
	if stale > 0 {
		m.SuggestionsSkipped.Add(ctx, int64(stale), metric.WithAttributes(attribute.String("reason", "stale")))
	}
	if overlapping > 0 {
		m.SuggestionsSkipped.Add(ctx, int64(overlapping), metric.WithAttributes(attribute.String("reason", "overlap")))
	}
}
