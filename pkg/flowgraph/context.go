package flowgraph

import (
	"context"
	"log/slog"

	"github.com/google/uuid"
)

// Context provides execution context to nodes.
// It extends context.Context with a logger and run metadata.
//
// Context is immutable after creation. The executor creates derived contexts
// for each node with updated NodeID and enriched logger.
type Context interface {
	context.Context

	// Logger returns the configured logger, enriched with run and node context.
	// Never returns nil - defaults to slog.Default() if not configured.
	Logger() *slog.Logger

	// RunID returns the unique identifier for this execution run.
	// Auto-generated if not configured.
	RunID() string

	// NodeID returns the current node being executed.
	// Empty string before execution starts.
	NodeID() string

	// Attempt returns the attempt number (1 = first attempt).
	Attempt() int
}

type executionContext struct {
	context.Context

	logger  *slog.Logger
	runID   string
	nodeID  string
	attempt int
}

func (c *executionContext) Logger() *slog.Logger { return c.logger }
func (c *executionContext) RunID() string        { return c.runID }
func (c *executionContext) NodeID() string       { return c.nodeID }
func (c *executionContext) Attempt() int         { return c.attempt }

// ContextOption configures a Context.
type ContextOption func(*executionContext)

// WithLogger sets the logger for the context.
// The logger will be enriched with run_id, node_id, and attempt during execution.
func WithLogger(logger *slog.Logger) ContextOption {
	return func(c *executionContext) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithRunID sets the run identifier. If not set, a UUID is generated.
func WithRunID(id string) ContextOption {
	return func(c *executionContext) {
		if id != "" {
			c.runID = id
		}
	}
}

// NewContext wraps ctx with flowgraph services and metadata.
//
//	ctx := flowgraph.NewContext(context.Background(),
//	    flowgraph.WithLogger(logger),
//	    flowgraph.WithRunID("run-123"))
func NewContext(ctx context.Context, opts ...ContextOption) Context {
	ec := &executionContext{
		Context: ctx,
		logger:  slog.Default(),
		runID:   uuid.NewString(),
		attempt: 1,
	}
	for _, opt := range opts {
		opt(ec)
	}
	return ec
}

// withSpanContext swaps the embedded context.Context, keeping metadata.
// The executor uses it to carry trace spans into nodes.
func (c *executionContext) withSpanContext(ctx context.Context) *executionContext {
	cp := *c
	cp.Context = ctx
	return &cp
}

// withNodeID returns a copy scoped to nodeID with an enriched logger.
func (c *executionContext) withNodeID(nodeID string) *executionContext {
	return &executionContext{
		Context: c.Context,
		logger:  c.logger.With("run_id", c.runID, "node_id", nodeID, "attempt", c.attempt),
		runID:   c.runID,
		nodeID:  nodeID,
		attempt: c.attempt,
	}
}

// asExecutionContext adapts any Context implementation.
func asExecutionContext(ctx Context) *executionContext {
	if ec, ok := ctx.(*executionContext); ok {
		return ec
	}
	logger := ctx.Logger()
	if logger == nil {
		logger = slog.Default()
	}
	return &executionContext{
		Context: ctx,
		logger:  logger,
		runID:   ctx.RunID(),
		nodeID:  ctx.NodeID(),
		attempt: ctx.Attempt(),
	}
}
