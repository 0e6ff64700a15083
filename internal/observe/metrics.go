// Package observe provides application-wide observability primitives for
// Vector: OpenTelemetry metrics, distributed tracing, structured logging,
// and HTTP middleware that ties them together.
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

// meterName is the instrumentation scope name used for application metrics.
const meterName = "github.com/careercompass/vector"

// Metrics holds the application-level OpenTelemetry metric instruments.
// All fields are safe for concurrent use; the underlying OTel types handle
// their own synchronisation.
type Metrics struct {
	// ActiveSessions tracks the number of live realtime conversations.
	ActiveSessions metric.Int64UpDownCounter

	// SessionTransitions counts connection state changes. Use with attribute:
	//   attribute.String("state", ...)
	SessionTransitions metric.Int64Counter

	// PayloadsDelivered counts structured payloads handed to the application.
	PayloadsDelivered metric.Int64Counter

	// HTTPRequestDuration tracks HTTP request processing time. Use with attributes:
	//   attribute.String("method", ...), attribute.String("path", ...)
	HTTPRequestDuration metric.Float64Histogram
}

// NewMetrics creates a fully initialised [Metrics] struct using the given
// [metric.MeterProvider]. Returns an error if any instrument creation fails.
func NewMetrics(mp metric.MeterProvider) (*Metrics, error) {
	m := mp.Meter(meterName)
	var err error
	met := &Metrics{}

	if met.ActiveSessions, err = m.Int64UpDownCounter("vector.sessions.active",
		metric.WithDescription("Number of live realtime conversations."),
	); err != nil {
		return nil, err
	}
	if met.SessionTransitions, err = m.Int64Counter("vector.sessions.transitions",
		metric.WithDescription("Connection state transitions by state."),
	); err != nil {
		return nil, err
	}
	if met.PayloadsDelivered, err = m.Int64Counter("vector.payloads.delivered",
		metric.WithDescription("Structured payloads delivered to the application."),
	); err != nil {
		return nil, err
	}
	if met.HTTPRequestDuration, err = m.Float64Histogram("vector.http.request.duration",
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

// RecordTransition records one connection state transition.
func (m *Metrics) RecordTransition(ctx context.Context, state string) {
	m.SessionTransitions.Add(ctx, 1,
		metric.WithAttributes(attribute.String("state", state)),
	)
}

// RecordPayload records one delivered payload.
func (m *Metrics) RecordPayload(ctx context.Context) {
	m.PayloadsDelivered.Add(ctx, 1)
}
