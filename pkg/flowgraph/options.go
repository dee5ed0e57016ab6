package flowgraph

import (
	"github.com/bytebuddhi/agentgraph/pkg/flowgraph/checkpoint"
	"github.com/bytebuddhi/agentgraph/pkg/flowgraph/observability"
)

// runConfig holds configuration for one Run.
type runConfig struct {
	graphName string
	metrics   observability.MetricsRecorder
	spans     observability.SpanManager

	store            checkpoint.Store
	threadID         string
	parentCheckpoint string
	onCheckpoint     func(*checkpoint.Checkpoint)
}

func defaultRunConfig() runConfig {
	return runConfig{
		graphName: "flowgraph",
		metrics:   observability.NoopMetrics{},
		spans:     observability.NoopSpanManager{},
	}
}

// RunOption configures execution behavior.
type RunOption func(*runConfig)

// WithGraphName labels the run span.
func WithGraphName(name string) RunOption {
	return func(c *runConfig) {
		if name != "" {
			c.graphName = name
		}
	}
}

// WithMetrics records node, run and checkpoint metrics.
func WithMetrics(m observability.MetricsRecorder) RunOption {
	return func(c *runConfig) {
		if m != nil {
			c.metrics = m
		}
	}
}

// WithTracing creates a run span and one child span per node.
func WithTracing(sm observability.SpanManager) RunOption {
	return func(c *runConfig) {
		if sm != nil {
			c.spans = sm
		}
	}
}

// WithCheckpointing enables the post-run checkpoint write.
// It has no effect without WithThreadID.
func WithCheckpointing(store checkpoint.Store) RunOption {
	return func(c *runConfig) {
		c.store = store
	}
}

// WithThreadID sets the thread the checkpoint is appended to.
func WithThreadID(threadID string) RunOption {
	return func(c *runConfig) {
		c.threadID = threadID
	}
}

// WithParentCheckpoint records the checkpoint this run continues from.
func WithParentCheckpoint(checkpointID string) RunOption {
	return func(c *runConfig) {
		c.parentCheckpoint = checkpointID
	}
}

// WithCheckpointCallback is called with the checkpoint after a successful write.
func WithCheckpointCallback(fn func(*checkpoint.Checkpoint)) RunOption {
	return func(c *runConfig) {
		c.onCheckpoint = fn
	}
}
