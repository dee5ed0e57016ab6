package observability

import (
	"bytes"
	"encoding/json"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// capture returns a debug-level JSON logger and a function decoding the last record.
func capture(t *testing.T) (*slog.Logger, func() map[string]any) {
	t.Helper()
	buf := &bytes.Buffer{}
	logger := slog.New(slog.NewJSONHandler(buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
	return logger, func() map[string]any {
		lines := bytes.Split(bytes.TrimSpace(buf.Bytes()), []byte("\n"))
		require.NotEmpty(t, lines)
		var m map[string]any
		require.NoError(t, json.Unmarshal(lines[len(lines)-1], &m))
		return m
	}
}

func TestEnrichLogger(t *testing.T) {
	logger, last := capture(t)

	EnrichLogger(logger, "run-123", "classify_intent", 2).Info("hello")

	rec := last()
	assert.Equal(t, "run-123", rec["run_id"])
	assert.Equal(t, "classify_intent", rec["node_id"])
	assert.Equal(t, float64(2), rec["attempt"])
	assert.Nil(t, EnrichLogger(nil, "r", "n", 1))
}

func TestLogHelpers(t *testing.T) {
	boom := errors.New("llm unavailable")

	tests := []struct {
		name  string
		log   func(*slog.Logger)
		level string
		msg   string
		attrs map[string]any
	}{
		{
			name:  "run start",
			log:   func(l *slog.Logger) { LogRunStart(l, "run-1", "thread-1") },
			level: "INFO", msg: "run starting",
			attrs: map[string]any{"run_id": "run-1", "thread_id": "thread-1"},
		},
		{
			name:  "run complete",
			log:   func(l *slog.Logger) { LogRunComplete(l, "run-1", 12.5, 3) },
			level: "INFO", msg: "run completed",
			attrs: map[string]any{"duration_ms": 12.5, "nodes_executed": float64(3)},
		},
		{
			name:  "run fallback",
			log:   func(l *slog.Logger) { LogRunFallback(l, "run-1", "generate_response", "handle_error", boom, 4) },
			level: "ERROR", msg: "run failed, fallback executed",
			attrs: map[string]any{"failed_node": "generate_response", "fallback_node": "handle_error", "error": "llm unavailable"},
		},
		{
			name:  "run error",
			log:   func(l *slog.Logger) { LogRunError(l, "run-1", boom, 4, "generate_response") },
			level: "ERROR", msg: "run failed",
			attrs: map[string]any{"last_node": "generate_response"},
		},
		{
			name:  "node start",
			log:   func(l *slog.Logger) { LogNodeStart(l, "web_search") },
			level: "DEBUG", msg: "node starting",
			attrs: map[string]any{"node_id": "web_search"},
		},
		{
			name:  "node complete",
			log:   func(l *slog.Logger) { LogNodeComplete(l, "web_search", 45.7) },
			level: "DEBUG", msg: "node completed",
			attrs: map[string]any{"duration_ms": 45.7},
		},
		{
			name:  "node error",
			log:   func(l *slog.Logger) { LogNodeError(l, "generate_response", boom) },
			level: "ERROR", msg: "node failed",
			attrs: map[string]any{"error": "llm unavailable"},
		},
		{
			name:  "checkpoint",
			log:   func(l *slog.Logger) { LogCheckpoint(l, "t1", "cp-1", 1024) },
			level: "DEBUG", msg: "checkpoint saved",
			attrs: map[string]any{"thread_id": "t1", "checkpoint_id": "cp-1", "size_bytes": float64(1024)},
		},
		{
			name:  "checkpoint error",
			log:   func(l *slog.Logger) { LogCheckpointError(l, "t1", "put", boom) },
			level: "WARN", msg: "checkpoint failed",
			attrs: map[string]any{"thread_id": "t1", "operation": "put"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			logger, last := capture(t)
			tt.log(logger)

			rec := last()
			assert.Equal(t, tt.level, rec["level"])
			assert.Equal(t, tt.msg, rec["msg"])
			for k, v := range tt.attrs {
				assert.Equal(t, v, rec[k], k)
			}

			assert.NotPanics(t, func() { tt.log(nil) })
		})
	}
}

func TestTimedOperation(t *testing.T) {
	done := TimedOperation()
	time.Sleep(10 * time.Millisecond)
	d1 := done()
	assert.GreaterOrEqual(t, d1, 10.0)

	time.Sleep(5 * time.Millisecond)
	assert.Greater(t, done(), d1)
}
