// Package otelhelper sets up OpenTelemetry tracing for account invocations.
package otelhelper

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	otlptracehttp "go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
)

const (
	InvocationIDKey = "tunnelgate.invocation.id"
	AccountKindKey  = "tunnelgate.account.kind"
	OperationKey    = "tunnelgate.operation"
	ExecutableKey   = "tunnelgate.executable"
	StateKey        = "tunnelgate.invocation.state"
	ExitCodeKey     = "tunnelgate.invocation.exit_code"
	ResultKey       = "tunnelgate.result"
)

// Tracing owns the tracer and the provider that must be flushed on shutdown.
type Tracing struct {
	Tracer   trace.Tracer
	shutdown func(context.Context) error
}

// NewTracing exports spans over OTLP/HTTP, configured through the standard
// OTEL_EXPORTER_OTLP_* environment variables.
func NewTracing(ctx context.Context, serviceName string) (*Tracing, error) {
	provider, err := newTracerProvider(ctx, serviceName)
	if err != nil {
		return nil, err
	}

	return &Tracing{Tracer: provider.Tracer(serviceName), shutdown: provider.Shutdown}, nil
}

// NoopTracing records nothing.
func NoopTracing() *Tracing {
	return &Tracing{
		Tracer:   noop.NewTracerProvider().Tracer(""),
		shutdown: func(context.Context) error { return nil },
	}
}

func (t *Tracing) Shutdown(ctx context.Context) error {
	return t.shutdown(ctx)
}

// nolint:ireturn,spancheck // Returning interface is intentional for OpenTelemetry tracing
func StartSpan(ctx context.Context, tracer trace.Tracer, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	return tracer.Start(ctx, name, trace.WithAttributes(attrs...))
}

func newTracerProvider(ctx context.Context, serviceName string) (*sdktrace.TracerProvider, error) {
	r, err := resource.Merge(
		resource.Default(),
		resource.NewWithAttributes(
			semconv.SchemaURL,
			semconv.ServiceName(serviceName),
		),
	)
	if err != nil {
		return nil, err
	}

	exporter, err := otlptracehttp.New(ctx)
	if err != nil {
		return nil, err
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(r),
		sdktrace.WithSampler(sdktrace.AlwaysSample()),
	)

	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(propagation.TraceContext{}))

	return tp, nil
}
