package observability

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/prometheus"
	otelmetric "go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/trace"

	"dropout-alerts/internal/common/logger"
)

// Observability owns the OpenTelemetry meter and tracer used by the scoring
// and alerting paths. A zero value is safe to use and records nothing.
type Observability struct {
	meterProvider *metric.MeterProvider
	meter         otelmetric.Meter
	tracer        trace.Tracer

	jobCounter    otelmetric.Int64Counter
	jobDuration   otelmetric.Float64Histogram
	scoringPasses otelmetric.Int64Counter
	scoringTime   otelmetric.Float64Histogram
	deliveries    otelmetric.Int64Counter
}

// New registers a Prometheus-backed meter provider. Exporter failures are
// logged and leave a no-op instance behind.
func New(serviceName string, log logger.Logger) *Observability {
	log = logger.OrDefault(log)
	o := &Observability{tracer: otel.Tracer(serviceName)}

	exporter, err := prometheus.New()
	if err != nil {
		log.Warn("failed to create prometheus exporter", map[string]interface{}{"error": err.Error()})
		return o
	}

	provider := metric.NewMeterProvider(metric.WithReader(exporter))
	otel.SetMeterProvider(provider)

	meter := provider.Meter(serviceName)
	o.meterProvider = provider
	o.meter = meter

	o.jobCounter, _ = meter.Int64Counter("jobs.processed",
		otelmetric.WithDescription("Number of jobs processed"))
	o.jobDuration, _ = meter.Float64Histogram("jobs.duration",
		otelmetric.WithDescription("Job processing duration"),
		otelmetric.WithUnit("ms"))
	o.scoringPasses, _ = meter.Int64Counter("scoring.passes",
		otelmetric.WithDescription("Batch scoring passes"))
	o.scoringTime, _ = meter.Float64Histogram("scoring.duration",
		otelmetric.WithDescription("Batch scoring duration"),
		otelmetric.WithUnit("ms"))
	o.deliveries, _ = meter.Int64Counter("alerts.deliveries",
		otelmetric.WithDescription("Alert deliveries by channel and status"))

	return o
}

// StartSpan opens a span on the service tracer.
func (o *Observability) StartSpan(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	tracer := o.tracer
	if tracer == nil {
		tracer = otel.Tracer("dropout-alerts")
	}
	return tracer.Start(ctx, name, trace.WithAttributes(attrs...))
}

func (o *Observability) RecordJobProcessed(ctx context.Context, status string) {
	if o.jobCounter != nil {
		o.jobCounter.Add(ctx, 1, otelmetric.WithAttributes(attribute.String("status", status)))
	}
}

func (o *Observability) RecordJobDuration(ctx context.Context, duration time.Duration, status string) {
	if o.jobDuration != nil {
		o.jobDuration.Record(ctx, float64(duration.Milliseconds()), otelmetric.WithAttributes(
			attribute.String("status", status),
		))
	}
}

func (o *Observability) RecordScoringPass(ctx context.Context, duration time.Duration, scored, failed int) {
	if o.scoringPasses != nil {
		o.scoringPasses.Add(ctx, 1, otelmetric.WithAttributes(
			attribute.Int("scored", scored),
			attribute.Int("failed", failed),
		))
	}
	if o.scoringTime != nil {
		o.scoringTime.Record(ctx, float64(duration.Milliseconds()))
	}
}

func (o *Observability) RecordDelivery(ctx context.Context, channel, status string) {
	if o.deliveries != nil {
		o.deliveries.Add(ctx, 1, otelmetric.WithAttributes(
			attribute.String("channel", channel),
			attribute.String("status", status),
		))
	}
}

func (o *Observability) Shutdown() {
	if o.meterProvider != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = o.meterProvider.Shutdown(ctx)
	}
}
