// Package observe provides application-wide observability primitives for
// dubctl: OpenTelemetry metrics, distributed tracing, structured logging,
// and HTTP middleware that ties them together (used by the mcp-serve
// subcommand's health endpoint).
//
// Metrics are recorded through the OpenTelemetry Metrics API. [InitProvider]
// attaches a Prometheus exporter bridge, which registers the instruments with
// the default Prometheus registry; no dubctl command serves that registry
// over HTTP. A package-level default
// [Metrics] instance ([DefaultMetrics]) is provided for convenience; tests
// should use [NewMetrics] with a custom [metric.MeterProvider] to avoid
// cross-test pollution.
package observe

import (
	"context"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// meterName is the instrumentation scope name used for all dubctl metrics.
const meterName = "github.com/MrWong99/dubctl"

// Metrics holds all OpenTelemetry metric instruments for the application.
// All fields are safe for concurrent use — the underlying OTel types handle
// their own synchronisation.
type Metrics struct {
	// --- Latency histograms ---

	// PhaseDuration tracks a phase run's wall-clock time. Use with attributes:
	//   attribute.String("phase", ...), attribute.String("status", ...)
	PhaseDuration metric.Float64Histogram

	// ProviderDuration tracks latency of calls to external collaborators
	// (recognition, translation, synthesis, embeddings). Use with:
	//   attribute.String("provider", ...), attribute.String("kind", ...)
	ProviderDuration metric.Float64Histogram

	// --- Counters ---

	// PhaseRuns counts phase executions by phase name and outcome. Use with:
	//   attribute.String("phase", ...), attribute.String("status", ...), attribute.String("reason", ...)
	PhaseRuns metric.Int64Counter

	// SynthCacheResults counts synthesis cache hits and misses. Use with:
	//   attribute.String("result", "hit"|"miss")
	SynthCacheResults metric.Int64Counter

	// ProviderErrors counts provider errors by provider and kind.
	ProviderErrors metric.Int64Counter

	// ProviderRetries counts retry attempts issued by [resilience.Retry].
	// Use with attribute.String("provider", ...), attribute.String("kind", ...)
	ProviderRetries metric.Int64Counter

	// --- Gauges (UpDownCounters) ---

	// InFlightSynthWorkers tracks the number of utterances currently being
	// synthesized concurrently.
	InFlightSynthWorkers metric.Int64UpDownCounter

	// HTTPRequestDuration tracks HTTP request processing time. Use with attributes:
	//   attribute.String("method", ...), attribute.String("path", ...)
	HTTPRequestDuration metric.Float64Histogram
}

// latencyBuckets defines histogram bucket boundaries (in seconds) optimised
// for phase-level latencies, which run from sub-second (subtitle formatting)
// to several minutes (batch recognition of a full episode).
var latencyBuckets = []float64{
	0.1, 0.5, 1, 5, 15, 30, 60, 180, 600, 1800,
}

// providerLatencyBuckets covers individual provider calls, which are much
// shorter-lived than whole phases.
var providerLatencyBuckets = []float64{
	0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60,
}

// NewMetrics creates a fully initialised [Metrics] struct using the given
// [metric.MeterProvider]. Returns an error if any instrument creation fails.
func NewMetrics(mp metric.MeterProvider) (*Metrics, error) {
	m := mp.Meter(meterName)
	var err error
	met := &Metrics{}

	// Histograms.
	if met.PhaseDuration, err = m.Float64Histogram("dubctl.phase.duration",
		metric.WithDescription("Wall-clock time of a phase run."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.ProviderDuration, err = m.Float64Histogram("dubctl.provider.duration",
		metric.WithDescription("Latency of calls to external recognition/translation/synthesis providers."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(providerLatencyBuckets...),
	); err != nil {
		return nil, err
	}

	// Counters.
	if met.PhaseRuns, err = m.Int64Counter("dubctl.phase.runs",
		metric.WithDescription("Total phase executions by phase, status, and should-run reason."),
	); err != nil {
		return nil, err
	}
	if met.SynthCacheResults, err = m.Int64Counter("dubctl.synth.cache_results",
		metric.WithDescription("Synthesis content-hash cache hits and misses."),
	); err != nil {
		return nil, err
	}
	if met.ProviderErrors, err = m.Int64Counter("dubctl.provider.errors",
		metric.WithDescription("Total provider errors by provider and kind."),
	); err != nil {
		return nil, err
	}
	if met.ProviderRetries, err = m.Int64Counter("dubctl.provider.retries",
		metric.WithDescription("Total retry attempts issued against a provider call."),
	); err != nil {
		return nil, err
	}

	// Gauges (UpDownCounters).
	if met.InFlightSynthWorkers, err = m.Int64UpDownCounter("dubctl.synth.inflight_workers",
		metric.WithDescription("Number of utterances currently being synthesized concurrently."),
	); err != nil {
		return nil, err
	}

	// HTTP middleware histogram (mcp-serve's /mcp, /healthz and /readyz).
	if met.HTTPRequestDuration, err = m.Float64Histogram("dubctl.http.request.duration",
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

// RecordPhaseRun is a convenience method that records a phase run counter
// increment with the standard attribute set.
func (m *Metrics) RecordPhaseRun(ctx context.Context, phase, status, reason string) {
	m.PhaseRuns.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("phase", phase),
			attribute.String("status", status),
			attribute.String("reason", reason),
		),
	)
}

// RecordSynthCacheResult is a convenience method that records a synthesis
// cache hit or miss.
func (m *Metrics) RecordSynthCacheResult(ctx context.Context, hit bool) {
	result := "miss"
	if hit {
		result = "hit"
	}
	m.SynthCacheResults.Add(ctx, 1,
		metric.WithAttributes(attribute.String("result", result)),
	)
}

// RecordProviderError is a convenience method that records a provider error
// counter increment.
func (m *Metrics) RecordProviderError(ctx context.Context, provider, kind string) {
	m.ProviderErrors.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("provider", provider),
			attribute.String("kind", kind),
		),
	)
}

// RecordProviderRetry is a convenience method that records a retry attempt
// against a provider call.
func (m *Metrics) RecordProviderRetry(ctx context.Context, provider, kind string) {
	m.ProviderRetries.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("provider", provider),
			attribute.String("kind", kind),
		),
	)
}
