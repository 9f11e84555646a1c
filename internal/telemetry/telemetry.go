package telemetry

import (
	"context"
	"fmt"
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	otelruntime "go.opentelemetry.io/contrib/instrumentation/runtime"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
)

// Telemetry holds the metric instruments for the agent.
type Telemetry struct {
	meterProvider metric.MeterProvider
	meter         metric.Meter
	exporter      *prometheus.Exporter

	jobsTotal        metric.Int64Counter
	bytesDownloaded  metric.Int64Counter
	entriesExtracted metric.Int64Counter
	opsActive        metric.Int64UpDownCounter
}

// Config holds telemetry configuration.
type Config struct {
	Enabled     bool
	ServiceName string
}

// New creates a new telemetry instance backed by a Prometheus
// exporter. With Enabled false every recording method is a no-op.
func New(cfg Config) (*Telemetry, error) {
	if !cfg.Enabled {
		return &Telemetry{}, nil
	}

	exporter, err := prometheus.New()
	if err != nil {
		return nil, fmt.Errorf("failed to create prometheus exporter: %w", err)
	}

	meterProvider := sdkmetric.NewMeterProvider(
		sdkmetric.WithReader(exporter),
	)

	otel.SetMeterProvider(meterProvider)

	if err := otelruntime.Start(); err != nil {
		return nil, fmt.Errorf("failed to start runtime instrumentation: %w", err)
	}

	t := &Telemetry{
		meterProvider: meterProvider,
		meter:         otel.Meter(cfg.ServiceName),
		exporter:      exporter,
	}

	if err := t.initializeMetrics(); err != nil {
		return nil, fmt.Errorf("failed to initialize metrics: %w", err)
	}

	return t, nil
}

func (t *Telemetry) initializeMetrics() error {
	var err error

	if t.jobsTotal, err = t.meter.Int64Counter("fetchkit_jobs_total",
		metric.WithDescription("Jobs finished, by kind and status")); err != nil {
		return err
	}

	if t.bytesDownloaded, err = t.meter.Int64Counter("fetchkit_bytes_downloaded_total",
		metric.WithDescription("Bytes written by completed downloads")); err != nil {
		return err
	}

	if t.entriesExtracted, err = t.meter.Int64Counter("fetchkit_entries_extracted_total",
		metric.WithDescription("Archive entries processed by extractions")); err != nil {
		return err
	}

	if t.opsActive, err = t.meter.Int64UpDownCounter("fetchkit_operations_active",
		metric.WithDescription("Operations currently in flight, by kind")); err != nil {
		return err
	}

	return nil
}

// RecordJob records a finished job.
func (t *Telemetry) RecordJob(ctx context.Context, kind, status string) {
	if t.jobsTotal != nil {
		t.jobsTotal.Add(ctx, 1, metric.WithAttributes(
			attribute.String("kind", kind),
			attribute.String("status", status),
		))
	}
}

// AddBytesDownloaded accounts bytes written by a completed download.
func (t *Telemetry) AddBytesDownloaded(ctx context.Context, n int64) {
	if t.bytesDownloaded != nil {
		t.bytesDownloaded.Add(ctx, n)
	}
}

// AddEntriesExtracted accounts archive entries processed.
func (t *Telemetry) AddEntriesExtracted(ctx context.Context, n int64) {
	if t.entriesExtracted != nil {
		t.entriesExtracted.Add(ctx, n)
	}
}

// OperationStarted marks an operation of the given kind in flight.
func (t *Telemetry) OperationStarted(ctx context.Context, kind string) {
	if t.opsActive != nil {
		t.opsActive.Add(ctx, 1, metric.WithAttributes(attribute.String("kind", kind)))
	}
}

// OperationFinished releases an in-flight operation.
func (t *Telemetry) OperationFinished(ctx context.Context, kind string) {
	if t.opsActive != nil {
		t.opsActive.Add(ctx, -1, metric.WithAttributes(attribute.String("kind", kind)))
	}
}

// Handler returns the HTTP handler for the metrics endpoint.
func (t *Telemetry) Handler() http.Handler {
	if t.exporter == nil {
		return http.NotFoundHandler()
	}

	return promhttp.Handler()
}
