package telemetry

import (
	"context"

	"go.opentelemetry.io/otel"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "custodia-backend"

// Provider wraps the tracer provider lifecycle.
type Provider struct {
	tp *sdktrace.TracerProvider
}

// InitTracing installs a tracer provider. Exporters are attached by
// deployment configuration; the default provider samples everything
// and exports nowhere, which keeps spans available to the traced
// logger without external infrastructure.
func InitTracing(serviceName string) *Provider {
	tp := sdktrace.NewTracerProvider(
		sdktrace.WithSampler(sdktrace.AlwaysSample()),
	)
	otel.SetTracerProvider(tp)
	return &Provider{tp: tp}
}

// Shutdown flushes and stops the tracer provider.
func (p *Provider) Shutdown(ctx context.Context) error {
	if p == nil || p.tp == nil {
		return nil
	}
	return p.tp.Shutdown(ctx)
}

// Tracer returns the service tracer.
func Tracer() trace.Tracer {
	return otel.Tracer(tracerName)
}
