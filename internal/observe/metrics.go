// Package observe provides application-wide observability primitives for
// sitescope: OpenTelemetry metrics, distributed tracing, structured logging,
// and HTTP middleware that ties them together.
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
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// meterName is the instrumentation scope name used for all sitescope metrics.
const meterName = "github.com/MrWong99/sitescope"

// Pipeline stage names used with [Metrics.RecordStage] and as span names.
const (
	StageCorrect   = "correct"
	StageExtract   = "extract"
	StageNormalize = "normalize"
	StageOrganize  = "organize"
)

// Capture status values used with [Metrics.RecordCapture].
const (
	StatusOK       = "ok"
	StatusWarning  = "warning"
	StatusRejected = "rejected"
)

// Metrics holds all OpenTelemetry metric instruments for the application.
// All fields are safe for concurrent use; the underlying OTel types handle
// their own synchronisation.
type Metrics struct {
	// --- Latency histograms ---

	// StageDuration tracks the latency of one pipeline stage. Use with
	// attribute:
	//   attribute.String("stage", ...)
	StageDuration metric.Float64Histogram

	// CaptureDuration tracks the end-to-end latency of one narration capture.
	CaptureDuration metric.Float64Histogram

	// ToolExecutionDuration tracks MCP tool execution latency.
	ToolExecutionDuration metric.Float64Histogram

	// --- Counters ---

	// Captures counts analysed narration captures. Use with attribute:
	//   attribute.String("status", ...)
	Captures metric.Int64Counter

	// Tokens counts extracted measurement tokens. Use with attribute:
	//   attribute.String("class", ...)
	Tokens metric.Int64Counter

	// Corrections counts terminology corrections. Use with attribute:
	//   attribute.String("method", ...)
	Corrections metric.Int64Counter

	// Ambiguities counts flagged quantity ambiguities. Use with attributes:
	//   attribute.String("type", ...), attribute.String("severity", ...)
	Ambiguities metric.Int64Counter

	// ToolCalls counts tool invocations. Use with attributes:
	//   attribute.String("tool", ...), attribute.String("status", ...)
	ToolCalls metric.Int64Counter

	// --- Gauges ---

	// ActiveCaptures tracks the number of captures currently being analysed.
	ActiveCaptures metric.Int64UpDownCounter

	// --- HTTP middleware ---

	// HTTPRequestDuration tracks HTTP request processing time. Use with attributes:
	//   attribute.String("method", ...), attribute.String("path", ...)
	HTTPRequestDuration metric.Float64Histogram
}

// latencyBuckets defines histogram bucket boundaries (in seconds) for
// in-process text analysis, which completes in micro- to milliseconds.
var latencyBuckets = []float64{
	0.0001, 0.00025, 0.0005, 0.001, 0.0025, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 1,
}

// NewMetrics creates a fully initialised [Metrics] struct using the given
// [metric.MeterProvider]. Returns an error if any instrument creation fails.
func NewMetrics(mp metric.MeterProvider) (*Metrics, error) {
	m := mp.Meter(meterName)
	var err error
	met := &Metrics{}

	// Histograms.
	if met.StageDuration, err = m.Float64Histogram("sitescope.stage.duration",
		metric.WithDescription("Latency of a single analysis pipeline stage."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.CaptureDuration, err = m.Float64Histogram("sitescope.capture.duration",
		metric.WithDescription("End-to-end latency of analysing one narration capture."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.ToolExecutionDuration, err = m.Float64Histogram("sitescope.tool_execution.duration",
		metric.WithDescription("Latency of MCP tool execution."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}

	// Counters.
	if met.Captures, err = m.Int64Counter("sitescope.captures",
		metric.WithDescription("Total analysed narration captures by status."),
	); err != nil {
		return nil, err
	}
	if met.Tokens, err = m.Int64Counter("sitescope.tokens",
		metric.WithDescription("Total extracted measurement tokens by measurement class."),
	); err != nil {
		return nil, err
	}
	if met.Corrections, err = m.Int64Counter("sitescope.corrections",
		metric.WithDescription("Total terminology corrections by method."),
	); err != nil {
		return nil, err
	}
	if met.Ambiguities, err = m.Int64Counter("sitescope.ambiguities",
		metric.WithDescription("Total flagged quantity ambiguities by type and severity."),
	); err != nil {
		return nil, err
	}
	if met.ToolCalls, err = m.Int64Counter("sitescope.tool.calls",
		metric.WithDescription("Total tool invocations by tool name and status."),
	); err != nil {
		return nil, err
	}

	// Gauges (UpDownCounters).
	if met.ActiveCaptures, err = m.Int64UpDownCounter("sitescope.active_captures",
		metric.WithDescription("Number of captures currently being analysed."),
	); err != nil {
		return nil, err
	}

	// HTTP middleware histogram.
	if met.HTTPRequestDuration, err = m.Float64Histogram("sitescope.http.request.duration",
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

// RecordStage records the duration of one pipeline stage in seconds.
func (m *Metrics) RecordStage(ctx context.Context, stage string, seconds float64) {
	m.StageDuration.Record(ctx, seconds,
		metric.WithAttributes(attribute.String("stage", stage)),
	)
}

// RecordCapture records a finished capture with its status and duration.
func (m *Metrics) RecordCapture(ctx context.Context, status string, seconds float64) {
	m.Captures.Add(ctx, 1,
		metric.WithAttributes(attribute.String("status", status)),
	)
	m.CaptureDuration.Record(ctx, seconds)
}

// RecordToken is a convenience method that records an extracted token.
func (m *Metrics) RecordToken(ctx context.Context, class string) {
	m.Tokens.Add(ctx, 1,
		metric.WithAttributes(attribute.String("class", class)),
	)
}

// RecordCorrection is a convenience method that records a terminology
// correction.
func (m *Metrics) RecordCorrection(ctx context.Context, method string) {
	m.Corrections.Add(ctx, 1,
		metric.WithAttributes(attribute.String("method", method)),
	)
}

// RecordAmbiguity is a convenience method that records a flagged ambiguity
// with the standard attribute set.
func (m *Metrics) RecordAmbiguity(ctx context.Context, typ, severity string) {
	m.Ambiguities.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("type", typ),
			attribute.String("severity", severity),
		),
	)
}

// RecordToolCall is a convenience method that records a tool call counter
// increment with the standard attribute set.
func (m *Metrics) RecordToolCall(ctx context.Context, tool, status string) {
	m.ToolCalls.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("tool", tool),
			attribute.String("status", status),
		),
	)
}
