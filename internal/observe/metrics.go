// Package observe holds the OpenTelemetry metric instruments recorded by the
// capture pipeline.
//
// Instruments are only touched from controller goroutines, never from the
// audio runtime. Tests should build a Metrics with [NewMetrics] and a
// private MeterProvider to avoid cross-test pollution.
package observe

import (
	"context"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// meterName is the instrumentation scope name used for all metrics.
const meterName = "github.com/audiolibrelab/snapcapture"

// Reasons attached to the recordings counter.
const (
	ReasonStop      = "stop"
	ReasonMaxLength = "max_length"
	ReasonSnapshot  = "snapshot"
)

// Metrics holds all metric instruments for the application.
type Metrics struct {
	// Recordings counts encoded recordings. Use with attribute:
	//   attribute.String("reason", ...)
	Recordings metric.Int64Counter

	// EncodeDuration tracks WAV encoding latency.
	EncodeDuration metric.Float64Histogram

	// EncodedBytes counts bytes produced by the encoder.
	EncodedBytes metric.Int64Counter

	// BufferTimeouts counts buffer requests that were not answered in time.
	BufferTimeouts metric.Int64Counter

	// TelemetryDropped counts telemetry events discarded because the event
	// outbox was full.
	TelemetryDropped metric.Int64Counter

	// BlockOverruns counts input blocks lost because the block pool was
	// exhausted.
	BlockOverruns metric.Int64Counter

	// ActiveSessions tracks capture sessions holding an input stream.
	ActiveSessions metric.Int64UpDownCounter
}

var encodeBuckets = []float64{
	0.0005, 0.001, 0.0025, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5,
}

// NewMetrics creates a fully initialised [Metrics] struct using the given
// [metric.MeterProvider].
func NewMetrics(mp metric.MeterProvider) (*Metrics, error) {
	m := mp.Meter(meterName)
	var err error
	met := &Metrics{}

	if met.Recordings, err = m.Int64Counter("snapcapture.recordings",
		metric.WithDescription("Encoded recordings by completion reason."),
	); err != nil {
		return nil, err
	}
	if met.EncodeDuration, err = m.Float64Histogram("snapcapture.encode.duration",
		metric.WithDescription("Latency of WAV encoding."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(encodeBuckets...),
	); err != nil {
		return nil, err
	}
	if met.EncodedBytes, err = m.Int64Counter("snapcapture.encode.bytes",
		metric.WithDescription("Bytes produced by the WAV encoder."),
		metric.WithUnit("By"),
	); err != nil {
		return nil, err
	}
	if met.BufferTimeouts, err = m.Int64Counter("snapcapture.buffer_timeouts",
		metric.WithDescription("Buffer requests that timed out."),
	); err != nil {
		return nil, err
	}
	if met.TelemetryDropped, err = m.Int64Counter("snapcapture.telemetry.dropped",
		metric.WithDescription("Telemetry events dropped by a full outbox."),
	); err != nil {
		return nil, err
	}
	if met.BlockOverruns, err = m.Int64Counter("snapcapture.block.overruns",
		metric.WithDescription("Input blocks lost to an exhausted block pool."),
	); err != nil {
		return nil, err
	}
	if met.ActiveSessions, err = m.Int64UpDownCounter("snapcapture.sessions.active",
		metric.WithDescription("Capture sessions holding an input stream."),
	); err != nil {
		return nil, err
	}
	return met, nil
}

var (
	defaultOnce    sync.Once
	defaultMetrics *Metrics
)

// DefaultMetrics returns a lazily-initialised Metrics backed by the global
// MeterProvider. It panics if instrument creation fails.
func DefaultMetrics() *Metrics {
	defaultOnce.Do(func() {
		var err error
		defaultMetrics, err = NewMetrics(otel.GetMeterProvider())
		if err != nil {
			panic("observe: failed to create default metrics: " + err.Error())
		}
	})
	return defaultMetrics
}

// RecordEncode records one encoded recording.
func (m *Metrics) RecordEncode(ctx context.Context, reason string, seconds float64, size int) {
	attrs := metric.WithAttributes(attribute.String("reason", reason))
	m.Recordings.Add(ctx, 1, attrs)
	m.EncodeDuration.Record(ctx, seconds, attrs)
	m.EncodedBytes.Add(ctx, int64(size))
}

// RecordBufferTimeout records a buffer request that timed out.
func (m *Metrics) RecordBufferTimeout(ctx context.Context) {
	m.BufferTimeouts.Add(ctx, 1)
}

// RecordSessionDrops adds the drop counters collected over a session.
func (m *Metrics) RecordSessionDrops(ctx context.Context, telemetryDropped, overruns uint64) {
	if telemetryDropped > 0 {
		m.TelemetryDropped.Add(ctx, int64(telemetryDropped))
	}
	if overruns > 0 {
		m.BlockOverruns.Add(ctx, int64(overruns))
	}
}
