// Package telemetry exports job counters in Prometheus format through OpenTelemetry.
package telemetry

import (
	"context"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
)

// Job outcomes.
const (
	OutcomeSucceeded = "succeeded"
	OutcomeFailed    = "failed"
	OutcomeSkipped   = "skipped"
)

// Recorder is safe to use as a nil pointer; every method becomes a no-op.
type Recorder struct {
	runs     metric.Int64Counter
	attempts metric.Int64Histogram
	duration metric.Float64Histogram
	refresh  metric.Int64Counter
}

// Setup installs a Prometheus-backed meter provider and returns the recorder
// together with the scrape handler.
func Setup(serviceName string) (*Recorder, http.Handler, error) {
	exporter, err := prometheus.New()
	if err != nil {
		return nil, nil, err
	}

	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(exporter))
	otel.SetMeterProvider(provider)

	r, err := NewRecorder(provider.Meter(serviceName))
	if err != nil {
		return nil, nil, err
	}
	return r, promhttp.Handler(), nil
}

func NewRecorder(meter metric.Meter) (*Recorder, error) {
	r := &Recorder{}
	var err error

	r.runs, err = meter.Int64Counter(
		"postflow_job_runs_total",
		metric.WithDescription("Job executions by job and outcome"),
	)
	if err != nil {
		return nil, err
	}

	r.attempts, err = meter.Int64Histogram(
		"postflow_job_attempts",
		metric.WithDescription("Attempts used by a single job execution"),
	)
	if err != nil {
		return nil, err
	}

	r.duration, err = meter.Float64Histogram(
		"postflow_job_duration_seconds",
		metric.WithDescription("Wall time of a job execution in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, err
	}

	r.refresh, err = meter.Int64Counter(
		"postflow_token_refresh_total",
		metric.WithDescription("Token refresh results by platform and outcome"),
	)
	if err != nil {
		return nil, err
	}

	return r, nil
}

func (r *Recorder) RecordJob(ctx context.Context, job, outcome string, attempts int, d time.Duration) {
	if r == nil {
		return
	}
	labels := metric.WithAttributes(
		attribute.String("job", job),
		attribute.String("outcome", outcome),
	)
	r.runs.Add(ctx, 1, labels)
	r.attempts.Record(ctx, int64(attempts), metric.WithAttributes(attribute.String("job", job)))
	r.duration.Record(ctx, d.Seconds(), labels)
}

func (r *Recorder) RecordRefresh(ctx context.Context, platform, outcome string) {
	if r == nil {
		return
	}
	r.refresh.Add(ctx, 1, metric.WithAttributes(
		attribute.String("platform", platform),
		attribute.String("outcome", outcome),
	))
}
