package observability

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

// NewTracerProvider builds an always-sampling provider tagged with the service
// name. Spans go to the given processors; with none they are created but
// dropped, which still gives request-scoped trace ids in logs.
func NewTracerProvider(serviceName string, processors ...sdktrace.SpanProcessor) *sdktrace.TracerProvider {
	opts := []sdktrace.TracerProviderOption{
		sdktrace.WithSampler(sdktrace.AlwaysSample()),
		sdktrace.WithResource(resource.NewSchemaless(attribute.String("service.name", serviceName))),
	}
	for _, p := range processors {
		opts = append(opts, sdktrace.WithSpanProcessor(p))
	}
	return sdktrace.NewTracerProvider(opts...)
}

// EnableTracing installs provider globally and points this instance's tracer
// at it. The returned func flushes and shuts the provider down.
func (o *Observability) EnableTracing(serviceName string, provider *sdktrace.TracerProvider) func() {
	otel.SetTracerProvider(provider)
	o.tracer = provider.Tracer(serviceName)
	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = provider.Shutdown(ctx)
	}
}
