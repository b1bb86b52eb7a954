// Package observe provides application-wide observability primitives for
// lettersprout: OpenTelemetry metrics, distributed tracing, structured
// logging, and HTTP middleware that ties them together.
//
// Metrics are recorded through the OpenTelemetry Metrics API. A Prometheus
// exporter bridge is available via [InitProvider] so that metrics can be
// scraped via the standard /metrics endpoint. A package-level default
// [Metrics] instance ([DefaultMetrics]) is provided for convenience; tests
// should use [NewMetrics] with a custom [metric.MeterProvider] to avoid
// cross-test pollution.
package observe

import (
	"context"
	"strconv"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// meterName is the instrumentation scope name used for all lettersprout metrics.
const meterName = "github.com/MrWong99/lettersprout"

// Metrics holds all OpenTelemetry metric instruments for the application.
// All fields are safe for concurrent use.
type Metrics struct {
	// STTDuration tracks speech-to-text transcription latency.
	STTDuration metric.Float64Histogram

	// EvaluationAccuracy tracks the accuracy percentage of matched
	// evaluations.
	EvaluationAccuracy metric.Float64Histogram

	// Evaluations counts finished evaluations. Use with attributes:
	//   attribute.String("stars", ...), attribute.Bool("matched", ...)
	Evaluations metric.Int64Counter

	// ProviderRequests counts provider API calls. Use with attributes:
	//   attribute.String("provider", ...), attribute.String("kind", ...), attribute.String("status", ...)
	ProviderRequests metric.Int64Counter

	// ProviderErrors counts provider errors. Use with attributes:
	//   attribute.String("provider", ...), attribute.String("kind", ...)
	ProviderErrors metric.Int64Counter

	// Checkins counts daily check-ins. Use with attribute:
	//   attribute.Bool("first_today", ...)
	Checkins metric.Int64Counter

	// ActiveEvaluations tracks evaluations currently waiting on a provider.
	ActiveEvaluations metric.Int64UpDownCounter

	// HTTPRequestDuration tracks HTTP request processing time. Use with attributes:
	//   attribute.String("method", ...), attribute.String("path", ...)
	HTTPRequestDuration metric.Float64Histogram
}

// latencyBuckets defines histogram bucket boundaries (in seconds) for
// transcription of clips a few seconds long.
var latencyBuckets = []float64{
	0.05, 0.1, 0.25, 0.5, 1, 2, 4, 8, 15, 30,
}

// accuracyBuckets spans the 0-100 accuracy scale.
var accuracyBuckets = []float64{
	10, 20, 30, 40, 50, 60, 70, 80, 90, 100,
}

// NewMetrics creates a fully initialised [Metrics] struct using the given
// [metric.MeterProvider]. Returns an error if any instrument creation fails.
func NewMetrics(mp metric.MeterProvider) (*Metrics, error) {
	m := mp.Meter(meterName)
	var err error
	met := &Metrics{}

	// Histograms.
	if met.STTDuration, err = m.Float64Histogram("lettersprout.stt.duration",
		metric.WithDescription("Latency of speech-to-text transcription."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.EvaluationAccuracy, err = m.Float64Histogram("lettersprout.evaluation.accuracy",
		metric.WithDescription("Accuracy percentage of matched pronunciation evaluations."),
		metric.WithUnit("%"),
		metric.WithExplicitBucketBoundaries(accuracyBuckets...),
	); err != nil {
		return nil, err
	}

	// Counters.
	if met.Evaluations, err = m.Int64Counter("lettersprout.evaluations",
		metric.WithDescription("Total pronunciation evaluations by stars and match status."),
	); err != nil {
		return nil, err
	}
	if met.ProviderRequests, err = m.Int64Counter("lettersprout.provider.requests",
		metric.WithDescription("Total provider API requests by provider, kind, and status."),
	); err != nil {
		return nil, err
	}
	if met.ProviderErrors, err = m.Int64Counter("lettersprout.provider.errors",
		metric.WithDescription("Total provider errors by provider and kind."),
	); err != nil {
		return nil, err
	}
	if met.Checkins, err = m.Int64Counter("lettersprout.checkins",
		metric.WithDescription("Total daily check-ins."),
	); err != nil {
		return nil, err
	}

	if met.ActiveEvaluations, err = m.Int64UpDownCounter("lettersprout.active_evaluations",
		metric.WithDescription("Number of evaluations waiting on a transcription provider."),
	); err != nil {
		return nil, err
	}

	// HTTP middleware histogram.
	if met.HTTPRequestDuration, err = m.Float64Histogram("lettersprout.http.request.duration",
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
			panic("observe: failed to create default metrics: " + err.Error())
		}
	})
	return defaultMetrics
}

// Attr is a convenience alias for [attribute.String] to reduce verbosity at
// call sites.
func Attr(key, value string) attribute.KeyValue {
	return attribute.String(key, value)
}

// RecordProviderRequest records a provider request counter increment with
// the standard attribute set.
func (m *Metrics) RecordProviderRequest(ctx context.Context, provider, kind, status string) {
	m.ProviderRequests.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("provider", provider),
			attribute.String("kind", kind),
			attribute.String("status", status),
		),
	)
}

// RecordProviderError records a provider error counter increment.
func (m *Metrics) RecordProviderError(ctx context.Context, provider, kind string) {
	m.ProviderErrors.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("provider", provider),
			attribute.String("kind", kind),
		),
	)
}

// RecordEvaluation records one finished evaluation. Accuracy is only
// observed for matched evaluations, since unmatched ones are always 0.
func (m *Metrics) RecordEvaluation(ctx context.Context, stars int, matched bool, accuracy float64) {
	m.Evaluations.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("stars", strconv.Itoa(stars)),
			attribute.Bool("matched", matched),
		),
	)
	if matched {
		m.EvaluationAccuracy.Record(ctx, accuracy)
	}
}

// RecordCheckin records a daily check-in.
func (m *Metrics) RecordCheckin(ctx context.Context, firstToday bool) {
	m.Checkins.Add(ctx, 1, metric.WithAttributes(attribute.Bool("first_today", firstToday)))
}
