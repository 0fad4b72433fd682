package observability

import (
	"context"
	"time"

	"mandate-matching/internal/common/logger"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/prometheus"
	otelmetric "go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/sdk/metric"
)

// Observability records operation latencies through an OpenTelemetry meter
// exported on the Prometheus registry.
type Observability struct {
	meterProvider    *metric.MeterProvider
	meter            otelmetric.Meter
	jobCounter       otelmetric.Int64Counter
	jobDuration      otelmetric.Float64Histogram
	searchDuration   otelmetric.Float64Histogram
	recomputeCounter otelmetric.Int64Counter
}

func New(serviceName string, log logger.Logger) *Observability {
	exporter, err := prometheus.New()
	if err != nil {
		log.Warn("failed to create prometheus exporter, metrics disabled", map[string]interface{}{
			"error": err,
		})
		return &Observability{}
	}

	provider := metric.NewMeterProvider(metric.WithReader(exporter))
	otel.SetMeterProvider(provider)

	return newWithMeter(provider, provider.Meter(serviceName))
}

func newWithMeter(provider *metric.MeterProvider, meter otelmetric.Meter) *Observability {
	jobCounter, _ := meter.Int64Counter(
		"jobs.processed",
		otelmetric.WithDescription("Number of jobs processed"),
	)

	jobDuration, _ := meter.Float64Histogram(
		"jobs.duration",
		otelmetric.WithDescription("Job processing duration"),
		otelmetric.WithUnit("ms"),
	)

	searchDuration, _ := meter.Float64Histogram(
		"matching.search.duration",
		otelmetric.WithDescription("Mandate search duration"),
		otelmetric.WithUnit("ms"),
	)

	recomputeCounter, _ := meter.Int64Counter(
		"matching.weights.recomputed",
		otelmetric.WithDescription("Weight recomputations by outcome"),
	)

	return &Observability{
		meterProvider:    provider,
		meter:            meter,
		jobCounter:       jobCounter,
		jobDuration:      jobDuration,
		searchDuration:   searchDuration,
		recomputeCounter: recomputeCounter,
	}
}

func (o *Observability) RecordJobProcessed(ctx context.Context, taskType, status string) {
	if o == nil || o.jobCounter == nil {
		return
	}
	o.jobCounter.Add(ctx, 1, otelmetric.WithAttributes(
		attribute.String("task_type", taskType),
		attribute.String("status", status),
	))
}

func (o *Observability) RecordJobDuration(ctx context.Context, taskType string, duration time.Duration) {
	if o == nil || o.jobDuration == nil {
		return
	}
	o.jobDuration.Record(ctx, float64(duration.Milliseconds()), otelmetric.WithAttributes(
		attribute.String("task_type", taskType),
	))
}

func (o *Observability) RecordSearch(ctx context.Context, duration time.Duration, status string, returned int) {
	if o == nil || o.searchDuration == nil {
		return
	}
	o.searchDuration.Record(ctx, float64(duration.Milliseconds()), otelmetric.WithAttributes(
		attribute.String("status", status),
		attribute.Int("returned", returned),
	))
}

func (o *Observability) RecordRecompute(ctx context.Context, outcome string) {
	if o == nil || o.recomputeCounter == nil {
		return
	}
	o.recomputeCounter.Add(ctx, 1, otelmetric.WithAttributes(
		attribute.String("outcome", outcome),
	))
}

func (o *Observability) Shutdown(ctx context.Context) error {
	if o == nil || o.meterProvider == nil {
		return nil
	}
	return o.meterProvider.Shutdown(ctx)
}
