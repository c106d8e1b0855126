// internal/common/observability/metrics.go
package observability

import (
	"context"
	"time"

	"servicedesk/internal/common/logger"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/prometheus"
	otelmetric "go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/sdk/metric"
)

// Observability records lifecycle operation counts and latencies through an
// OpenTelemetry meter exported on the Prometheus registry.
type Observability struct {
	meterProvider *metric.MeterProvider
	meter         otelmetric.Meter
	opCounter     otelmetric.Int64Counter
	opDuration    otelmetric.Float64Histogram
	jobCounter    otelmetric.Int64Counter
	jobDuration   otelmetric.Float64Histogram
}

func New(serviceName string, log logger.Logger) *Observability {
	exporter, err := prometheus.New()
	if err != nil {
		log.Error("failed to create prometheus exporter", map[string]interface{}{"error": err.Error()})
		return &Observability{}
	}

	provider := metric.NewMeterProvider(metric.WithReader(exporter))
	otel.SetMeterProvider(provider)

	return newWithProvider(provider, serviceName)
}

// NewNoop returns an instance whose recorders do nothing.
func NewNoop() *Observability {
	return &Observability{}
}

func newWithProvider(provider *metric.MeterProvider, serviceName string) *Observability {
	meter := provider.Meter(serviceName)

	opCounter, _ := meter.Int64Counter(
		"lifecycle.operations",
		otelmetric.WithDescription("Service request lifecycle operations by outcome"),
	)
	opDuration, _ := meter.Float64Histogram(
		"lifecycle.operation.duration",
		otelmetric.WithDescription("Service request lifecycle operation duration"),
		otelmetric.WithUnit("ms"),
	)
	jobCounter, _ := meter.Int64Counter(
		"jobs.processed",
		otelmetric.WithDescription("Number of jobs processed"),
	)
	jobDuration, _ := meter.Float64Histogram(
		"jobs.duration",
		otelmetric.WithDescription("Job processing duration"),
		otelmetric.WithUnit("ms"),
	)

	return &Observability{
		meterProvider: provider,
		meter:         meter,
		opCounter:     opCounter,
		opDuration:    opDuration,
		jobCounter:    jobCounter,
		jobDuration:   jobDuration,
	}
}

// RecordOperation counts one lifecycle operation and its latency. outcome is
// "ok" or an error code.
func (o *Observability) RecordOperation(ctx context.Context, op, outcome string, duration time.Duration) {
	if o == nil {
		return
	}
	attrs := otelmetric.WithAttributes(
		attribute.String("operation", op),
		attribute.String("outcome", outcome),
	)
	if o.opCounter != nil {
		o.opCounter.Add(ctx, 1, attrs)
	}
	if o.opDuration != nil {
		o.opDuration.Record(ctx, float64(duration.Microseconds())/1000, attrs)
	}
}

func (o *Observability) RecordJobProcessed(ctx context.Context, taskType, status string, duration time.Duration) {
	if o == nil {
		return
	}
	attrs := otelmetric.WithAttributes(
		attribute.String("task_type", taskType),
		attribute.String("status", status),
	)
	if o.jobCounter != nil {
		o.jobCounter.Add(ctx, 1, attrs)
	}
	if o.jobDuration != nil {
		o.jobDuration.Record(ctx, float64(duration.Milliseconds()), attrs)
	}
}

func (o *Observability) Shutdown(ctx context.Context) error {
	if o == nil || o.meterProvider == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	return o.meterProvider.Shutdown(ctx)
}
