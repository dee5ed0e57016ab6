package flowgraph

import (
	"context"
	"encoding/json"
	"fmt"
	"runtime/debug"
	"slices"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/bytebuddhi/agentgraph/pkg/flowgraph/checkpoint"
	"github.com/bytebuddhi/agentgraph/pkg/flowgraph/observability"
)

// Run executes the graph with the given initial state.
//
// Nodes run strictly one after another. Before each node the context is
// checked for cancellation. When a node fails (error, panic, cancellation or
// a bad routing decision) the remaining path is skipped. With a fallback, the
// fallback's result is returned with a nil error; without one, the state as
// of the last successful node is returned together with the error.
//
// When checkpointing is configured, one checkpoint of the final state is
// appended after the run. Checkpoint failures never affect the result.
func (cg *CompiledGraph[S, N]) Run(ctx Context, state S, opts ...RunOption) (result S, runErr error) {
	if ctx == nil {
		return state, ErrNilContext
	}

	cfg := defaultRunConfig()
	for _, opt := range opts {
		opt(&cfg)
	}

	ec := asExecutionContext(ctx)
	logger := ec.logger
	runID := ec.runID
	startTime := time.Now()

	observability.LogRunStart(logger, runID, cfg.threadID)

	spanCtx, runSpan := cfg.spans.StartRunSpan(ec.Context, cfg.graphName, runID)
	ec = ec.withSpanContext(spanCtx)
	defer func() {
		cfg.spans.EndSpanWithError(runSpan, runErr)
	}()

	result, nodeCount, err := cg.execute(ec, state, &cfg)

	durationMs := float64(time.Since(startTime).Milliseconds())
	outcome := observability.OutcomeCompleted

	if err != nil {
		failed := failedNode(err)
		if cg.fallback == nil {
			observability.LogRunError(logger, runID, err, durationMs, failed)
			cfg.metrics.RecordGraphRun(ec, observability.OutcomeFailed, time.Since(startTime))
			return result, err
		}

		cfg.spans.AddSpanEvent(ec, "fallback",
			attribute.String("failed_node", failed),
			attribute.String("error", err.Error()),
		)
		result = cg.runFallback(ec, result, err)
		outcome = observability.OutcomeFallback
		observability.LogRunFallback(logger, runID, failed, string(cg.fallbackID), err, durationMs)
	} else {
		observability.LogRunComplete(logger, runID, durationMs, nodeCount)
	}

	cfg.metrics.RecordGraphRun(ec, outcome, time.Since(startTime))
	cg.saveCheckpoint(ec, &cfg, result)
	return result, nil
}

// execute walks the path from the entry point. On failure it returns the
// state as of the last successful node.
func (cg *CompiledGraph[S, N]) execute(ec *executionContext, state S, cfg *runConfig) (S, int, error) {
	current := cg.entryPoint
	nodeCount := 0

	for current != N(END) {
		nodeID := string(current)

		if err := ec.Err(); err != nil {
			return state, nodeCount, &CancellationError{NodeID: nodeID, Cause: err}
		}

		observability.LogNodeStart(ec.logger, nodeID)

		nodeSpanCtx, nodeSpan := cfg.spans.StartNodeSpan(ec.Context, nodeID)
		nodeCtx := ec.withSpanContext(nodeSpanCtx).withNodeID(nodeID)

		nodeStart := time.Now()
		next, nodeErr := cg.executeNode(nodeCtx, current, state)
		nodeDuration := time.Since(nodeStart)

		cfg.metrics.RecordNodeExecution(nodeSpanCtx, nodeID, nodeDuration, nodeErr)
		cfg.spans.EndSpanWithError(nodeSpan, nodeErr)

		if nodeErr != nil {
			observability.LogNodeError(ec.logger, nodeID, nodeErr)
			return state, nodeCount, nodeErr
		}
		observability.LogNodeComplete(ec.logger, nodeID, float64(nodeDuration.Milliseconds()))
		nodeCount++
		state = next

		following, err := cg.nextNode(nodeCtx, state, current)
		if err != nil {
			observability.LogNodeError(ec.logger, nodeID, err)
			return state, nodeCount, err
		}
		current = following
	}

	return state, nodeCount, nil
}

// executeNode executes a single node with panic recovery.
func (cg *CompiledGraph[S, N]) executeNode(ctx *executionContext, id N, state S) (result S, err error) {
	fn := cg.nodes[id]

	defer func() {
		if r := recover(); r != nil {
			result = state
			err = &PanicError{
				NodeID: string(id),
				Value:  r,
				Stack:  string(debug.Stack()),
			}
		}
	}()

	result, err = fn(ctx, state)
	if err != nil {
		return state, &NodeError{NodeID: string(id), Op: "execute", Err: err}
	}
	return result, nil
}

// runFallback runs the fallback on the last good state. A panicking
// fallback leaves that state unchanged.
func (cg *CompiledGraph[S, N]) runFallback(ec *executionContext, state S, cause error) (result S) {
	fallbackID := string(cg.fallbackID)
	ctx := ec.withNodeID(fallbackID)

	defer func() {
		if r := recover(); r != nil {
			ec.logger.Error("fallback panicked",
				"node_id", fallbackID,
				"panic", fmt.Sprint(r),
				"stack", string(debug.Stack()),
			)
			result = state
		}
	}()

	observability.LogNodeStart(ec.logger, fallbackID)
	return cg.fallback(ctx, state, cause)
}

// nextNode determines the next node to execute.
func (cg *CompiledGraph[S, N]) nextNode(ctx Context, state S, current N) (N, error) {
	if ce, ok := cg.conditional[current]; ok {
		next := ce.router(ctx, state)
		if next == "" {
			return "", &RouterError{FromNode: string(current), Returned: "", Err: ErrInvalidRouterResult}
		}
		if !slices.Contains(ce.targets, next) {
			return "", &RouterError{FromNode: string(current), Returned: string(next), Err: ErrRouterTargetNotFound}
		}
		return next, nil
	}
	return cg.edges[current], nil
}

// saveCheckpoint appends the final state to the checkpoint log. It never
// fails the run: errors are logged and counted.
func (cg *CompiledGraph[S, N]) saveCheckpoint(ctx *executionContext, cfg *runConfig, state S) {
	if cfg.store == nil || cfg.threadID == "" {
		return
	}

	logger := ctx.logger
	if err := ctx.Err(); err != nil {
		observability.LogCheckpointError(logger, cfg.threadID, "skip", err)
		cfg.metrics.RecordCheckpointFailure(context.WithoutCancel(ctx), "skip")
		return
	}

	data, err := json.Marshal(state)
	if err != nil {
		cpErr := &CheckpointError{ThreadID: cfg.threadID, Op: "serialize", Err: err}
		observability.LogCheckpointError(logger, cfg.threadID, cpErr.Op, cpErr)
		cfg.metrics.RecordCheckpointFailure(ctx, cpErr.Op)
		return
	}

	cp := checkpoint.New(cfg.threadID, data).WithParent(cfg.parentCheckpoint)
	if err := cfg.store.Put(ctx, cp); err != nil {
		cpErr := &CheckpointError{ThreadID: cfg.threadID, Op: "put", Err: err}
		observability.LogCheckpointError(logger, cfg.threadID, cpErr.Op, cpErr)
		cfg.metrics.RecordCheckpointFailure(ctx, cpErr.Op)
		return
	}

	observability.LogCheckpoint(logger, cfg.threadID, cp.CheckpointID, len(data))
	cfg.metrics.RecordCheckpoint(ctx, int64(len(data)))
	if cfg.onCheckpoint != nil {
		cfg.onCheckpoint(cp)
	}
}
