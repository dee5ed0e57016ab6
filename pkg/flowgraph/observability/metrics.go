package observability

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Run outcomes reported by RecordGraphRun.
const (
	OutcomeCompleted = "completed"
	OutcomeFallback  = "fallback"
	OutcomeFailed    = "failed"
)

// MeterName is the instrumentation scope for all instruments.
const MeterName = "agentgraph"

// MetricsRecorder records engine and port metrics.
// Use NewMetricsRecorder() for OTel metrics or NoopMetrics{} when disabled.
type MetricsRecorder interface {
	// RecordNodeExecution records a node execution with its duration and error status.
	RecordNodeExecution(ctx context.Context, nodeID string, duration time.Duration, err error)

	// RecordGraphRun records a run with one of the Outcome* values.
	RecordGraphRun(ctx context.Context, outcome string, duration time.Duration)

	// RecordCheckpoint records a successful checkpoint write.
	RecordCheckpoint(ctx context.Context, sizeBytes int64)

	// RecordCheckpointFailure records a failed checkpoint operation.
	RecordCheckpointFailure(ctx context.Context, op string)

	// RecordPortCall records a call to an external port such as "llm" or "search".
	RecordPortCall(ctx context.Context, port, op string, duration time.Duration, err error)
}

type otelMetrics struct {
	nodeExecutions     metric.Int64Counter
	nodeLatency        metric.Float64Histogram
	nodeErrors         metric.Int64Counter
	graphRuns          metric.Int64Counter
	graphLatency       metric.Float64Histogram
	checkpointSize     metric.Int64Histogram
	checkpointFailures metric.Int64Counter
	portCalls          metric.Int64Counter
	portLatency        metric.Float64Histogram
}

var (
	defaultMetrics     *otelMetrics
	defaultMetricsOnce sync.Once
	defaultMetricsErr  error
)

func getDefaultMetrics() (*otelMetrics, error) {
	defaultMetricsOnce.Do(func() {
		defaultMetrics, defaultMetricsErr = newOtelMetrics()
	})
	return defaultMetrics, defaultMetricsErr
}

func newOtelMetrics() (*otelMetrics, error) {
	meter := otel.Meter(MeterName)
	m := &otelMetrics{}
	var err error

	if m.nodeExecutions, err = meter.Int64Counter("agentgraph.node.executions",
		metric.WithDescription("Number of node executions"),
	); err != nil {
		return nil, err
	}
	if m.nodeLatency, err = meter.Float64Histogram("agentgraph.node.latency_ms",
		metric.WithDescription("Node execution latency in milliseconds"),
		metric.WithUnit("ms"),
	); err != nil {
		return nil, err
	}
	if m.nodeErrors, err = meter.Int64Counter("agentgraph.node.errors",
		metric.WithDescription("Number of node execution errors"),
	); err != nil {
		return nil, err
	}
	if m.graphRuns, err = meter.Int64Counter("agentgraph.run.count",
		metric.WithDescription("Number of runs by outcome"),
	); err != nil {
		return nil, err
	}
	if m.graphLatency, err = meter.Float64Histogram("agentgraph.run.latency_ms",
		metric.WithDescription("Run latency in milliseconds"),
		metric.WithUnit("ms"),
	); err != nil {
		return nil, err
	}
	if m.checkpointSize, err = meter.Int64Histogram("agentgraph.checkpoint.size_bytes",
		metric.WithDescription("Checkpoint size in bytes"),
		metric.WithUnit("By"),
	); err != nil {
		return nil, err
	}
	if m.checkpointFailures, err = meter.Int64Counter("agentgraph.checkpoint.failures",
		metric.WithDescription("Number of failed checkpoint operations"),
	); err != nil {
		return nil, err
	}
	if m.portCalls, err = meter.Int64Counter("agentgraph.port.calls",
		metric.WithDescription("Number of external port calls"),
	); err != nil {
		return nil, err
	}
	if m.portLatency, err = meter.Float64Histogram("agentgraph.port.latency_ms",
		metric.WithDescription("External port call latency in milliseconds"),
		metric.WithUnit("ms"),
	); err != nil {
		return nil, err
	}
	return m, nil
}

// NewMetricsRecorder returns a MetricsRecorder backed by the global OTel
// meter provider. Set the provider (otel.SetMeterProvider) before the first
// call; instruments are created once per process. Falls back to NoopMetrics
// if instrument creation fails.
func NewMetricsRecorder() MetricsRecorder {
	m, err := getDefaultMetrics()
	if err != nil {
		slog.Warn("metrics initialization failed, using no-op recorder",
			slog.String("error", err.Error()))
		return NoopMetrics{}
	}
	return m
}

func (m *otelMetrics) RecordNodeExecution(ctx context.Context, nodeID string, duration time.Duration, err error) {
	attrs := metric.WithAttributes(attribute.String("node_id", nodeID))
	m.nodeExecutions.Add(ctx, 1, attrs)
	m.nodeLatency.Record(ctx, float64(duration.Milliseconds()), attrs)
	if err != nil {
		m.nodeErrors.Add(ctx, 1, attrs)
	}
}

func (m *otelMetrics) RecordGraphRun(ctx context.Context, outcome string, duration time.Duration) {
	attrs := metric.WithAttributes(attribute.String("outcome", outcome))
	m.graphRuns.Add(ctx, 1, attrs)
	m.graphLatency.Record(ctx, float64(duration.Milliseconds()), attrs)
}

func (m *otelMetrics) RecordCheckpoint(ctx context.Context, sizeBytes int64) {
	m.checkpointSize.Record(ctx, sizeBytes)
}

func (m *otelMetrics) RecordCheckpointFailure(ctx context.Context, op string) {
	m.checkpointFailures.Add(ctx, 1, metric.WithAttributes(attribute.String("operation", op)))
}

func (m *otelMetrics) RecordPortCall(ctx context.Context, port, op string, duration time.Duration, err error) {
	attrs := metric.WithAttributes(
		attribute.String("port", port),
		attribute.String("operation", op),
		attribute.Bool("success", err == nil),
	)
	m.portCalls.Add(ctx, 1, attrs)
	m.portLatency.Record(ctx, float64(duration.Milliseconds()), attrs)
}
