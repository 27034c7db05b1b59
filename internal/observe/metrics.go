// Package observe provides application-wide observability primitives:
// OpenTelemetry metrics, tracing helpers, and structured-logging glue.
//
// Metrics are recorded through the OpenTelemetry Metrics API. A Prometheus
// exporter bridge is available via [InitProvider] so that metrics can be
// scraped via the standard /metrics endpoint. A package-level default
// [Metrics] instance ([DefaultMetrics]) is provided for convenience; tests
// should use [NewMetrics] with a custom [metric.MeterProvider] to avoid
// cross-test pollution.
package observe

import (
	"context"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// meterName is the instrumentation scope name used for all voxwire metrics.
const meterName = "github.com/voxwire/voxwire"

// Metrics holds all OpenTelemetry metric instruments for the application.
// All fields are safe for concurrent use — the underlying OTel types handle
// their own synchronisation.
type Metrics struct {
	// --- Audio pipeline counters ---

	// FramesSent counts outbound audio frames delivered to the transport.
	FramesSent metric.Int64Counter

	// ChunksReceived counts inbound audio chunks enqueued for playback.
	ChunksReceived metric.Int64Counter

	// Underruns counts playback pulls that were padded with silence.
	Underruns metric.Int64Counter

	// MarksSent counts playback cadence acknowledgements.
	MarksSent metric.Int64Counter

	// --- Call counters ---

	// BargeIns counts server-ordered playback clears.
	BargeIns metric.Int64Counter

	// CallsCompleted counts finished calls. Use with attribute:
	//   attribute.String("reason", ...)
	CallsCompleted metric.Int64Counter

	// --- Latency histograms ---

	// CallSetupDuration tracks time from dial to connected.
	CallSetupDuration metric.Float64Histogram

	// --- Gauges ---

	// ActiveCalls tracks the number of live calls (0 or 1 per process).
	ActiveCalls metric.Int64UpDownCounter
}

// setupBuckets defines histogram bucket boundaries (in seconds) for call
// setup latency.
var setupBuckets = []float64{
	0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30,
}

// NewMetrics creates a fully initialised [Metrics] struct using the given
// [metric.MeterProvider]. Returns an error if any instrument creation fails.
func NewMetrics(mp metric.MeterProvider) (*Metrics, error) {
	m := mp.Meter(meterName)
	var err error
	met := &Metrics{}

	if met.FramesSent, err = m.Int64Counter("voxwire.audio.frames_sent",
		metric.WithDescription("Total outbound audio frames delivered to the transport."),
	); err != nil {
		return nil, err
	}
	if met.ChunksReceived, err = m.Int64Counter("voxwire.audio.chunks_received",
		metric.WithDescription("Total inbound audio chunks enqueued for playback."),
	); err != nil {
		return nil, err
	}
	if met.Underruns, err = m.Int64Counter("voxwire.audio.underruns",
		metric.WithDescription("Total playback pulls padded with silence."),
	); err != nil {
		return nil, err
	}
	if met.MarksSent, err = m.Int64Counter("voxwire.audio.marks_sent",
		metric.WithDescription("Total playback cadence acknowledgements sent."),
	); err != nil {
		return nil, err
	}
	if met.BargeIns, err = m.Int64Counter("voxwire.call.barge_ins",
		metric.WithDescription("Total server-ordered playback clears."),
	); err != nil {
		return nil, err
	}
	if met.CallsCompleted, err = m.Int64Counter("voxwire.call.completed",
		metric.WithDescription("Total finished calls by end reason."),
	); err != nil {
		return nil, err
	}
	if met.CallSetupDuration, err = m.Float64Histogram("voxwire.call.setup.duration",
		metric.WithDescription("Time from dial to connected."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(setupBuckets...),
	); err != nil {
		return nil, err
	}
	if met.ActiveCalls, err = m.Int64UpDownCounter("voxwire.call.active",
		metric.WithDescription("Number of live calls."),
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

// DefaultMetrics returns the package-level [Metrics] instance, creating it
// on first call using [otel.GetMeterProvider]. Subsequent calls return the
// same pointer. Panics if instrument creation fails (should not happen
// with the global provider).
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

// RecordCallCompleted records a finished call with its end reason.
func (m *Metrics) RecordCallCompleted(ctx context.Context, reason string) {
	m.CallsCompleted.Add(ctx, 1,
		metric.WithAttributes(attribute.String("reason", reason)),
	)
}
