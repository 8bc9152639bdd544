package infra

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/runtime"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetrichttp"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/propagation"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"

	"github.com/tnqbao/gau-plugin-installer/config"
)

// Telemetry owns the trace and metric providers and the installer instruments.
type Telemetry struct {
	tracerProvider *sdktrace.TracerProvider
	meterProvider  *sdkmetric.MeterProvider

	jobs         metric.Int64Counter
	stepDuration metric.Float64Histogram
}

func NewResource(cfg *config.EnvConfig) (*resource.Resource, error) {
	return resource.Merge(resource.Default(), resource.NewSchemaless(
		attribute.String("service.name", cfg.Grafana.ServiceName),
		attribute.String("deployment.environment", cfg.Environment.Mode),
		attribute.String("service.namespace", cfg.Environment.Group),
	))
}

// InitTelemetry installs global OTLP providers when an endpoint is configured.
// Without one the global no-op providers stay in place.
func InitTelemetry(ctx context.Context, cfg *config.EnvConfig, res *resource.Resource) (*Telemetry, error) {
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))

	if cfg.Grafana.OTLPEndpoint == "" {
		return NewTelemetry(), nil
	}

	traceExporter, err := otlptracehttp.New(ctx, otlptracehttp.WithEndpoint(cfg.Grafana.OTLPEndpoint))
	if err != nil {
		return nil, fmt.Errorf("failed to create otlp trace exporter: %w", err)
	}
	tracerProvider := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(traceExporter),
		sdktrace.WithResource(res),
	)
	otel.SetTracerProvider(tracerProvider)

	metricExporter, err := otlpmetrichttp.New(ctx, otlpmetrichttp.WithEndpoint(cfg.Grafana.OTLPEndpoint))
	if err != nil {
		_ = tracerProvider.Shutdown(ctx)
		return nil, fmt.Errorf("failed to create otlp metric exporter: %w", err)
	}
	meterProvider := sdkmetric.NewMeterProvider(
		sdkmetric.WithReader(sdkmetric.NewPeriodicReader(metricExporter, sdkmetric.WithInterval(30*time.Second))),
		sdkmetric.WithResource(res),
	)
	otel.SetMeterProvider(meterProvider)

	if err := runtime.Start(runtime.WithMeterProvider(meterProvider)); err != nil {
		return nil, fmt.Errorf("failed to start runtime instrumentation: %w", err)
	}

	t := NewTelemetry()
	t.tracerProvider = tracerProvider
	t.meterProvider = meterProvider
	return t, nil
}

// NewTelemetry builds the instruments from the current global meter provider.
func NewTelemetry() *Telemetry {
	meter := otel.Meter(instrumentationName)

	// Instrument creation only fails on invalid names; fall back to no-ops
	jobs, _ := meter.Int64Counter("installer.jobs",
		metric.WithDescription("Plugin install jobs by type and outcome"))
	stepDuration, _ := meter.Float64Histogram("installer.step.duration",
		metric.WithDescription("Pipeline step duration"),
		metric.WithUnit("s"))

	return &Telemetry{jobs: jobs, stepDuration: stepDuration}
}

func (t *Telemetry) RecordJob(ctx context.Context, jobType, outcome string) {
	if t == nil || t.jobs == nil {
		return
	}
	t.jobs.Add(ctx, 1, metric.WithAttributes(
		attribute.String("job.type", jobType),
		attribute.String("job.outcome", outcome),
	))
}

func (t *Telemetry) RecordStep(ctx context.Context, step string, d time.Duration, ok bool) {
	if t == nil || t.stepDuration == nil {
		return
	}
	t.stepDuration.Record(ctx, d.Seconds(), metric.WithAttributes(
		attribute.String("step.name", step),
		attribute.Bool("step.succeeded", ok),
	))
}

func (t *Telemetry) Shutdown(ctx context.Context) error {
	if t == nil {
		return nil
	}
	var errs []error
	if t.tracerProvider != nil {
		errs = append(errs, t.tracerProvider.Shutdown(ctx))
	}
	if t.meterProvider != nil {
		errs = append(errs, t.meterProvider.Shutdown(ctx))
	}
	return errors.Join(errs...)
}
