package observability

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

// setupMetricsTest installs a manual-reader meter provider for the test.
func setupMetricsTest(t *testing.T) *sdkmetric.ManualReader {
	reader := sdkmetric.NewManualReader()
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))

	original := otel.GetMeterProvider()
	otel.SetMeterProvider(provider)
	t.Cleanup(func() {
		otel.SetMeterProvider(original)
		_ = provider.Shutdown(context.Background())
	})
	return reader
}

func collectMetrics(t *testing.T, reader *sdkmetric.ManualReader) *metricdata.ResourceMetrics {
	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &rm))
	return &rm
}

func findMetric(rm *metricdata.ResourceMetrics, name string) *metricdata.Metrics {
	for _, sm := range rm.ScopeMetrics {
		for i := range sm.Metrics {
			if sm.Metrics[i].Name == name {
				return &sm.Metrics[i]
			}
		}
	}
	return nil
}

// counterValue sums the int64 datapoints carrying the given attribute.
func counterValue(t *testing.T, rm *metricdata.ResourceMetrics, name string, kv attribute.KeyValue) int64 {
	t.Helper()
	m := findMetric(rm, name)
	require.NotNil(t, m, name)
	sum, ok := m.Data.(metricdata.Sum[int64])
	require.True(t, ok, "expected Sum type for %s", name)

	var total int64
	for _, dp := range sum.DataPoints {
		if v, ok := dp.Attributes.Value(kv.Key); ok && v == kv.Value {
			total += dp.Value
		}
	}
	return total
}

func TestNewMetricsRecorder(t *testing.T) {
	setupMetricsTest(t)

	recorder := NewMetricsRecorder()
	require.NotNil(t, recorder)
	_, isNoop := recorder.(NoopMetrics)
	assert.False(t, isNoop)
}

func TestRecordNodeExecution(t *testing.T) {
	reader := setupMetricsTest(t)
	m, err := newOtelMetrics()
	require.NoError(t, err)
	ctx := context.Background()

	m.RecordNodeExecution(ctx, "classify_intent", 50*time.Millisecond, nil)
	m.RecordNodeExecution(ctx, "generate_response", 10*time.Millisecond, errors.New("boom"))

	rm := collectMetrics(t, reader)
	assert.Equal(t, int64(1), counterValue(t, rm, "agentgraph.node.executions", attribute.String("node_id", "classify_intent")))
	assert.Equal(t, int64(1), counterValue(t, rm, "agentgraph.node.errors", attribute.String("node_id", "generate_response")))
	assert.Equal(t, int64(0), counterValue(t, rm, "agentgraph.node.errors", attribute.String("node_id", "classify_intent")))

	hist := findMetric(rm, "agentgraph.node.latency_ms")
	require.NotNil(t, hist)
	_, ok := hist.Data.(metricdata.Histogram[float64])
	assert.True(t, ok)
}

func TestRecordGraphRun(t *testing.T) {
	reader := setupMetricsTest(t)
	m, err := newOtelMetrics()
	require.NoError(t, err)
	ctx := context.Background()

	m.RecordGraphRun(ctx, OutcomeCompleted, time.Millisecond)
	m.RecordGraphRun(ctx, OutcomeCompleted, time.Millisecond)
	m.RecordGraphRun(ctx, OutcomeFallback, time.Millisecond)

	rm := collectMetrics(t, reader)
	assert.Equal(t, int64(2), counterValue(t, rm, "agentgraph.run.count", attribute.String("outcome", OutcomeCompleted)))
	assert.Equal(t, int64(1), counterValue(t, rm, "agentgraph.run.count", attribute.String("outcome", OutcomeFallback)))
}

func TestRecordCheckpoint(t *testing.T) {
	reader := setupMetricsTest(t)
	m, err := newOtelMetrics()
	require.NoError(t, err)
	ctx := context.Background()

	m.RecordCheckpoint(ctx, 2048)
	m.RecordCheckpointFailure(ctx, "put")

	rm := collectMetrics(t, reader)
	size := findMetric(rm, "agentgraph.checkpoint.size_bytes")
	require.NotNil(t, size)
	hist, ok := size.Data.(metricdata.Histogram[int64])
	require.True(t, ok)
	require.Len(t, hist.DataPoints, 1)
	assert.Equal(t, int64(2048), hist.DataPoints[0].Sum)

	assert.Equal(t, int64(1), counterValue(t, rm, "agentgraph.checkpoint.failures", attribute.String("operation", "put")))
}

func TestRecordPortCall(t *testing.T) {
	reader := setupMetricsTest(t)
	m, err := newOtelMetrics()
	require.NoError(t, err)
	ctx := context.Background()

	m.RecordPortCall(ctx, "llm", "generate", time.Millisecond, nil)
	m.RecordPortCall(ctx, "search", "search", time.Millisecond, errors.New("timeout"))

	rm := collectMetrics(t, reader)
	assert.Equal(t, int64(1), counterValue(t, rm, "agentgraph.port.calls", attribute.String("port", "llm")))
	assert.Equal(t, int64(1), counterValue(t, rm, "agentgraph.port.calls", attribute.Bool("success", false)))
}
