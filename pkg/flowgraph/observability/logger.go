// Package observability provides the logging, metrics and tracing hooks used
// by the workflow engine and the agent.
//
// Logging goes through log/slog. Metrics and spans go through the global
// OpenTelemetry providers, so whatever exporter the process installs (see
// pkg/telemetry) receives them. Every recorder has a no-op counterpart.
package observability

import (
	"log/slog"
	"time"
)

// EnrichLogger returns logger annotated with run, node and attempt fields.
func EnrichLogger(logger *slog.Logger, runID, nodeID string, attempt int) *slog.Logger {
	if logger == nil {
		return nil
	}
	return logger.With(
		slog.String("run_id", runID),
		slog.String("node_id", nodeID),
		slog.Int("attempt", attempt),
	)
}

// LogRunStart logs the start of a run. threadID may be empty.
func LogRunStart(logger *slog.Logger, runID, threadID string) {
	if logger == nil {
		return
	}
	logger.Info("run starting",
		slog.String("run_id", runID),
		slog.String("thread_id", threadID),
	)
}

// LogRunComplete logs a run that reached END without failures.
func LogRunComplete(logger *slog.Logger, runID string, durationMs float64, nodeCount int) {
	if logger == nil {
		return
	}
	logger.Info("run completed",
		slog.String("run_id", runID),
		slog.Float64("duration_ms", durationMs),
		slog.Int("nodes_executed", nodeCount),
	)
}

// LogRunFallback logs a run whose failure was absorbed by the fallback node.
// The error text is operator-facing only.
func LogRunFallback(logger *slog.Logger, runID, failedNode, fallbackNode string, err error, durationMs float64) {
	if logger == nil {
		return
	}
	logger.Error("run failed, fallback executed",
		slog.String("run_id", runID),
		slog.String("failed_node", failedNode),
		slog.String("fallback_node", fallbackNode),
		slog.String("error", err.Error()),
		slog.Float64("duration_ms", durationMs),
	)
}

// LogRunError logs a run that failed with no fallback configured.
func LogRunError(logger *slog.Logger, runID string, err error, durationMs float64, lastNode string) {
	if logger == nil {
		return
	}
	logger.Error("run failed",
		slog.String("run_id", runID),
		slog.String("error", err.Error()),
		slog.Float64("duration_ms", durationMs),
		slog.String("last_node", lastNode),
	)
}

// LogNodeStart logs node execution start.
func LogNodeStart(logger *slog.Logger, nodeID string) {
	if logger == nil {
		return
	}
	logger.Debug("node starting", slog.String("node_id", nodeID))
}

// LogNodeComplete logs successful node completion.
func LogNodeComplete(logger *slog.Logger, nodeID string, durationMs float64) {
	if logger == nil {
		return
	}
	logger.Debug("node completed",
		slog.String("node_id", nodeID),
		slog.Float64("duration_ms", durationMs),
	)
}

// LogNodeError logs node execution error.
func LogNodeError(logger *slog.Logger, nodeID string, err error) {
	if logger == nil {
		return
	}
	logger.Error("node failed",
		slog.String("node_id", nodeID),
		slog.String("error", err.Error()),
	)
}

// LogCheckpoint logs a checkpoint write.
func LogCheckpoint(logger *slog.Logger, threadID, checkpointID string, sizeBytes int) {
	if logger == nil {
		return
	}
	logger.Debug("checkpoint saved",
		slog.String("thread_id", threadID),
		slog.String("checkpoint_id", checkpointID),
		slog.Int("size_bytes", sizeBytes),
	)
}

// LogCheckpointError logs a checkpoint failure. Checkpoint failures never
// fail a run, so this is a warning.
func LogCheckpointError(logger *slog.Logger, threadID, op string, err error) {
	if logger == nil {
		return
	}
	logger.Warn("checkpoint failed",
		slog.String("thread_id", threadID),
		slog.String("operation", op),
		slog.String("error", err.Error()),
	)
}

// TimedOperation returns a function reporting milliseconds since the call.
//
//	done := TimedOperation()
//	// ... do work ...
//	durationMs := done()
func TimedOperation() func() float64 {
	start := time.Now()
	return func() float64 {
		return float64(time.Since(start).Milliseconds())
	}
}
