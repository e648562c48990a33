// Package observe provides application-wide observability primitives for
// echochat: OpenTelemetry metrics, tracing helpers, structured logging,
// and HTTP middleware for the status server.
//
// Metrics are recorded through the OpenTelemetry Metrics API and exposed
// via a Prometheus exporter bridge set up by [InitProvider]. A
// package-level default [Metrics] instance ([DefaultMetrics]) is provided
// for convenience; tests should use [NewMetrics] with a custom
// [metric.MeterProvider] to avoid cross-test pollution.
package observe

import (
	"context"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// meterName is the instrumentation scope name used for all echochat metrics.
const meterName = "github.com/MrWong99/echochat"

// Metrics holds all OpenTelemetry metric instruments for the application.
// All fields are safe for concurrent use.
type Metrics struct {
	// MessagesIncoming counts classified messages before filtering. Use
	// with attribute.String("channel", ...).
	MessagesIncoming metric.Int64Counter

	// MessagesNarrated counts messages accepted for narration. Use with
	// attribute.String("channel", ...).
	MessagesNarrated metric.Int64Counter

	// MessagesDropped counts filtered messages. Use with
	// attribute.String("reason", ...).
	MessagesDropped metric.Int64Counter

	// ParseFailures counts stanzas neither parser path could extract.
	ParseFailures metric.Int64Counter

	// PollCycles counts message poll cycles. Use with
	// attribute.String("status", "ok"|"error").
	PollCycles metric.Int64Counter

	// QueueDropped counts narration requests rejected by a full queue.
	QueueDropped metric.Int64Counter

	// QueueDepth tracks the number of pending narration requests.
	QueueDepth metric.Int64UpDownCounter

	// SynthesisDuration tracks speech synthesis latency.
	SynthesisDuration metric.Float64Histogram

	// HTTPRequestDuration tracks status-server request time. Use with
	// attribute.String("method", ...), attribute.String("path", ...).
	HTTPRequestDuration metric.Float64Histogram
}

// latencyBuckets defines histogram bucket boundaries in seconds, sized
// for local speech synthesis.
var latencyBuckets = []float64{
	0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10,
}

// NewMetrics creates a fully initialised [Metrics] struct using the given
// [metric.MeterProvider]. Returns an error if any instrument creation fails.
func NewMetrics(mp metric.MeterProvider) (*Metrics, error) {
	m := mp.Meter(meterName)
	var err error
	met := &Metrics{}

	if met.MessagesIncoming, err = m.Int64Counter("echochat.messages.incoming",
		metric.WithDescription("Total classified messages before filtering, by channel."),
	); err != nil {
		return nil, err
	}
	if met.MessagesNarrated, err = m.Int64Counter("echochat.messages.narrated",
		metric.WithDescription("Total messages accepted for narration, by channel."),
	); err != nil {
		return nil, err
	}
	if met.MessagesDropped, err = m.Int64Counter("echochat.messages.dropped",
		metric.WithDescription("Total filtered messages, by drop reason."),
	); err != nil {
		return nil, err
	}
	if met.ParseFailures, err = m.Int64Counter("echochat.stanza.parse_failures",
		metric.WithDescription("Total stanzas that defeated both parser paths."),
	); err != nil {
		return nil, err
	}
	if met.PollCycles, err = m.Int64Counter("echochat.poll.cycles",
		metric.WithDescription("Total message poll cycles, by status."),
	); err != nil {
		return nil, err
	}
	if met.QueueDropped, err = m.Int64Counter("echochat.queue.dropped",
		metric.WithDescription("Total narration requests rejected by a full queue."),
	); err != nil {
		return nil, err
	}
	if met.QueueDepth, err = m.Int64UpDownCounter("echochat.queue.depth",
		metric.WithDescription("Number of pending narration requests."),
	); err != nil {
		return nil, err
	}
	if met.SynthesisDuration, err = m.Float64Histogram("echochat.synthesis.duration",
		metric.WithDescription("Latency of speech synthesis."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.HTTPRequestDuration, err = m.Float64Histogram("echochat.http.request.duration",
		metric.WithDescription("HTTP request latency by method and path."),
		metric.WithUnit("s"),
	); err != nil {
		return nil, err
	}

	return met, nil
}

var (
	defaultMetrics     *Metrics
	defaultMetricsOnce sync.Once
)

// DefaultMetrics returns the package-level [Metrics] instance, creating it
// on first call using [otel.GetMeterProvider]. Panics if instrument
// creation fails (should not happen with the global provider).
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

// RecordIncoming records one classified message on its channel.
func (m *Metrics) RecordIncoming(ctx context.Context, channel string) {
	m.MessagesIncoming.Add(ctx, 1,
		metric.WithAttributes(attribute.String("channel", channel)),
	)
}

// RecordNarrated records one message accepted for narration.
func (m *Metrics) RecordNarrated(ctx context.Context, channel string) {
	m.MessagesNarrated.Add(ctx, 1,
		metric.WithAttributes(attribute.String("channel", channel)),
	)
}

// RecordDropped records one filtered message with its drop reason.
func (m *Metrics) RecordDropped(ctx context.Context, reason string) {
	m.MessagesDropped.Add(ctx, 1,
		metric.WithAttributes(attribute.String("reason", reason)),
	)
}

// RecordPollCycle records one poll cycle outcome.
func (m *Metrics) RecordPollCycle(ctx context.Context, status string) {
	m.PollCycles.Add(ctx, 1,
		metric.WithAttributes(attribute.String("status", status)),
	)
}
