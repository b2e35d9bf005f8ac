// Package observe provides application-wide observability primitives for
// soundpilot: OpenTelemetry metrics and the HTTP middleware that records
// them.
//
// Metrics are recorded through the OpenTelemetry Metrics API. A Prometheus
// exporter bridge is available via [InitProvider] so that metrics can be
// scraped via the standard /metrics endpoint. A package-level default
// [Metrics] instance ([DefaultMetrics]) is provided for convenience; tests
// should use [NewMetrics] with a custom [metric.MeterProvider] to avoid
// cross-test pollution.
package observe

import (
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
)

// meterName is the instrumentation scope name used for all soundpilot metrics.
const meterName = "github.com/soundpilot/soundpilot"

// Metrics holds all OpenTelemetry metric instruments for the application.
// All fields are safe for concurrent use; the underlying OTel types handle
// their own synchronisation.
type Metrics struct {
	// --- Latency histograms per pipeline stage ---

	// TrainingDuration tracks full retraining latency per user.
	TrainingDuration metric.Float64Histogram

	// ExtractionDuration tracks feature extraction latency per capture.
	ExtractionDuration metric.Float64Histogram

	// --- Counters ---

	// Enrollments counts enrolled examples. Use with attributes:
	//   attribute.Bool("quiet", ...)
	Enrollments metric.Int64Counter

	// Classifications counts classification requests. Use with attribute:
	//   attribute.String("outcome", ...): one of "matched", "unknown",
	//   "no_model", "error".
	Classifications metric.Int64Counter

	// TrainingRuns counts training attempts. Use with attribute:
	//   attribute.String("status", ...): "trained", "insufficient_data",
	//   "error".
	TrainingRuns metric.Int64Counter

	// ActionTriggers counts outbound action invocations. Use with attribute:
	//   attribute.String("status", ...)
	ActionTriggers metric.Int64Counter

	// --- HTTP middleware ---

	// HTTPRequestDuration tracks HTTP request processing time. Use with
	// attributes: attribute.String("method", ...), attribute.String("path", ...)
	HTTPRequestDuration metric.Float64Histogram
}

// latencyBuckets defines histogram bucket boundaries (in seconds). Training
// a forest on a full example set can take multiple seconds, so the upper
// buckets are generous.
var latencyBuckets = []float64{
	0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30,
}

// NewMetrics creates a fully initialised [Metrics] struct using the given
// [metric.MeterProvider]. Returns an error if any instrument creation fails.
func NewMetrics(mp metric.MeterProvider) (*Metrics, error) {
	m := mp.Meter(meterName)
	var err error
	met := &Metrics{}

	// Histograms.
	if met.TrainingDuration, err = m.Float64Histogram("soundpilot.training.duration",
		metric.WithDescription("Latency of a full per-user retraining run."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.ExtractionDuration, err = m.Float64Histogram("soundpilot.extraction.duration",
		metric.WithDescription("Latency of feature extraction for one capture."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}

	// Counters.
	if met.Enrollments, err = m.Int64Counter("soundpilot.enrollments",
		metric.WithDescription("Total enrolled examples by user and quiet flag."),
	); err != nil {
		return nil, err
	}
	if met.Classifications, err = m.Int64Counter("soundpilot.classifications",
		metric.WithDescription("Total classification requests by outcome."),
	); err != nil {
		return nil, err
	}
	if met.TrainingRuns, err = m.Int64Counter("soundpilot.training.runs",
		metric.WithDescription("Total training attempts by status."),
	); err != nil {
		return nil, err
	}
	if met.ActionTriggers, err = m.Int64Counter("soundpilot.action.triggers",
		metric.WithDescription("Total outbound action invocations by status."),
	); err != nil {
		return nil, err
	}

	// HTTP middleware histogram.
	if met.HTTPRequestDuration, err = m.Float64Histogram("soundpilot.http.request.duration",
		metric.WithDescription("HTTP request latency by method and path."),
		metric.WithUnit("s"),
	); err != nil {
		return nil, err
	}

	return met, nil
}

// defaultMetrics is the lazily-initialised package-level Metrics instance.
var (
	defaultMetrics     *Metrics
	defaultMetricsOnce sync.Once
)

// DefaultMetrics returns the package-level [Metrics] instance, creating it on
// first call using [otel.GetMeterProvider]. Subsequent calls return the same
// pointer. Panics if instrument creation fails (should not happen with the
// global provider).
func DefaultMetrics() *Metrics {
	defaultMetricsOnce.Do(func() {
		var err error
		defaultMetrics, err = NewMetrics(otel.GetMeterProvider())
		if err != nil {
			panic("observe: default metrics init: " + err.Error())
		}
	})
	return defaultMetrics
}
