package observe

import (
	"context"
	"errors"

	"go.opentelemetry.io/otel"
	promexporter "go.opentelemetry.io/otel/exporters/prometheus"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
)

const serviceName = "vector"

// ProviderOption configures InitProvider.
type ProviderOption func(*providerSettings)

type providerSettings struct {
	version       string
	traceExporter sdktrace.SpanExporter
}

// WithServiceVersion sets the service.version resource attribute.
func WithServiceVersion(v string) ProviderOption {
	return func(s *providerSettings) { s.version = v }
}

// WithTraceExporter enables span export. Without it spans are still recorded,
// which keeps request correlation IDs working, but nothing leaves the
// process. The diagnostics server is the only traced surface.
func WithTraceExporter(exp sdktrace.SpanExporter) ProviderOption {
	return func(s *providerSettings) { s.traceExporter = exp }
}

// shutdownGroup collects provider shutdown hooks so main can flush them with
// one call.
type shutdownGroup []func(context.Context) error

func (g shutdownGroup) shutdown(ctx context.Context) error {
	var errs []error
	for _, fn := range g {
		if err := fn(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// InitProvider installs the global OTel providers for the process: a meter
// provider bridged to Prometheus so the client's counters land on /metrics,
// and a tracer provider for the diagnostics server's request spans. The
// returned function shuts both down.
func InitProvider(_ context.Context, opts ...ProviderOption) (func(context.Context) error, error) {
	var settings providerSettings
	for _, o := range opts {
		o(&settings)
	}

	res, err := resource.Merge(
		resource.Default(),
		resource.NewWithAttributes(
			semconv.SchemaURL,
			semconv.ServiceName(serviceName),
			semconv.ServiceVersion(settings.version),
		),
	)
	if err != nil {
		return nil, err
	}

	promExp, err := promexporter.New()
	if err != nil {
		return nil, err
	}

	var group shutdownGroup

	mp := sdkmetric.NewMeterProvider(
		sdkmetric.WithResource(res),
		sdkmetric.WithReader(promExp),
	)
	otel.SetMeterProvider(mp)
	group = append(group, mp.Shutdown)

	traceOpts := []sdktrace.TracerProviderOption{sdktrace.WithResource(res)}
	if settings.traceExporter != nil {
		traceOpts = append(traceOpts, sdktrace.WithBatcher(settings.traceExporter))
	}
	tp := sdktrace.NewTracerProvider(traceOpts...)
	otel.SetTracerProvider(tp)
	group = append(group, tp.Shutdown)

	return group.shutdown, nil
}
