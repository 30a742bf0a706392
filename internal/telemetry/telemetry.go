// Package telemetry wires the agent's own OpenTelemetry tracer provider:
// noop by default, or an OTLP-over-HTTP exporter when an endpoint is
// configured. This instruments the agent's own operations (Init, beacon
// sends, eviction passes), separate from otelhttp's client spans around
// the outbound requests those operations make.
package telemetry

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
)

// Config selects whether and where the agent exports its own traces.
type Config struct {
	// OTLPEndpoint, if non-empty, enables an OTLP/HTTP exporter pointed at
	// this collector address. Empty leaves the global tracer provider as
	// the OpenTelemetry no-op default.
	OTLPEndpoint string
	ServiceName  string
}

// Tracer is the name components request spans under.
const Tracer = "github.com/openkit-go/openkit"

// Init installs a tracer provider per cfg and returns a shutdown func. When
// OTLPEndpoint is empty, it installs nothing and returns a no-op shutdown,
// leaving otel.GetTracerProvider() at the SDK's default no-op provider.
func Init(ctx context.Context, cfg Config) (shutdown func(context.Context) error, err error) {
	if cfg.OTLPEndpoint == "" {
		return func(context.Context) error { return nil }, nil
	}

	exporter, err := otlptracehttp.New(ctx, otlptracehttp.WithEndpoint(cfg.OTLPEndpoint), otlptracehttp.WithInsecure())
	if err != nil {
		return nil, err
	}

	serviceName := cfg.ServiceName
	if serviceName == "" {
		serviceName = "openkit-agent"
	}
	res, err := resource.New(ctx, resource.WithAttributes(attribute.String("service.name", serviceName)))
	if err != nil {
		return nil, err
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter, sdktrace.WithBatchTimeout(5*time.Second)),
		sdktrace.WithResource(res),
	)
	otel.SetTracerProvider(tp)

	return tp.Shutdown, nil
}

// StartSpan is a thin convenience wrapper so call sites don't each re-derive
// the tracer name.
func StartSpan(ctx context.Context, name string) (context.Context, trace.Span) {
	return otel.Tracer(Tracer).Start(ctx, name)
}
