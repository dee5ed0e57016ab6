package flowgraph

import (
	"errors"
	"fmt"
)

// Sentinel errors for graph building and compilation.
var (
	// ErrNoEntryPoint indicates SetEntry() was not called before Compile().
	ErrNoEntryPoint = errors.New("entry point not set")

	// ErrEntryNotFound indicates the entry point references a non-existent node.
	ErrEntryNotFound = errors.New("entry point node not found")

	// ErrNodeNotFound indicates an edge references a non-existent node.
	ErrNodeNotFound = errors.New("node not found")

	// ErrNoPathToEnd indicates no path exists from the entry point to END.
	ErrNoPathToEnd = errors.New("no path to END from entry")

	// ErrDeadEnd indicates a node has no outgoing edge.
	ErrDeadEnd = errors.New("node has no outgoing edge")

	// ErrCycle indicates the graph contains a cycle.
	ErrCycle = errors.New("graph contains a cycle")

	// ErrFallbackReachable indicates an edge or the entry point names the fallback.
	ErrFallbackReachable = errors.New("fallback node must not be reachable by edges")
)

// Sentinel errors for execution.
var (
	// ErrNilContext indicates Run() was called with a nil context.
	ErrNilContext = errors.New("context cannot be nil")

	// ErrInvalidRouterResult indicates a router function returned an empty ID.
	ErrInvalidRouterResult = errors.New("router returned empty node ID")

	// ErrRouterTargetNotFound indicates a router returned a target it did not declare.
	ErrRouterTargetNotFound = errors.New("router returned undeclared target")
)

// Sentinel errors for checkpoint loading.
var (
	// ErrNoCheckpoints indicates the thread has no checkpoints.
	ErrNoCheckpoints = errors.New("no checkpoints found for thread")

	// ErrDeserializeState indicates a checkpoint could not be decoded into the state type.
	ErrDeserializeState = errors.New("failed to deserialize state")
)

// CheckpointError wraps errors from checkpoint operations.
type CheckpointError struct {
	// ThreadID is the thread being read or written.
	ThreadID string
	// Op is the operation that failed ("serialize", "put", "load").
	Op string
	// Err is the underlying error.
	Err error
}

func (e *CheckpointError) Error() string {
	return fmt.Sprintf("checkpoint %s for thread %s: %v", e.Op, e.ThreadID, e.Err)
}

func (e *CheckpointError) Unwrap() error {
	return e.Err
}

// NodeError wraps an error with node context.
type NodeError struct {
	// NodeID is the identifier of the node that failed.
	NodeID string
	// Op is the operation that failed (e.g., "execute").
	Op string
	// Err is the underlying error from the node.
	Err error
}

func (e *NodeError) Error() string {
	return fmt.Sprintf("node %s: %s: %v", e.NodeID, e.Op, e.Err)
}

func (e *NodeError) Unwrap() error {
	return e.Err
}

// PanicError captures panic information from node execution.
type PanicError struct {
	// NodeID is the identifier of the node that panicked.
	NodeID string
	// Value is the value passed to panic().
	Value any
	// Stack is the full stack trace at the point of panic.
	Stack string
}

func (e *PanicError) Error() string {
	return fmt.Sprintf("node %s panicked: %v", e.NodeID, e.Value)
}

// CancellationError reports that the run's context ended before a node.
type CancellationError struct {
	// NodeID is the node that was about to execute.
	NodeID string
	// Cause is context.Canceled or context.DeadlineExceeded.
	Cause error
}

func (e *CancellationError) Error() string {
	return fmt.Sprintf("cancelled before node %s: %v", e.NodeID, e.Cause)
}

func (e *CancellationError) Unwrap() error {
	return e.Cause
}

// RouterError wraps errors from conditional edge routing.
type RouterError struct {
	// FromNode is the node with the conditional edge.
	FromNode string
	// Returned is the value the router returned.
	Returned string
	// Err is the underlying error.
	Err error
}

func (e *RouterError) Error() string {
	return fmt.Sprintf("router from %s returned %q: %v", e.FromNode, e.Returned, e.Err)
}

func (e *RouterError) Unwrap() error {
	return e.Err
}

// failedNode extracts the node a run error is attributed to.
func failedNode(err error) string {
	var (
		nodeErr   *NodeError
		panicErr  *PanicError
		cancelErr *CancellationError
		routerErr *RouterError
	)
	switch {
	case errors.As(err, &nodeErr):
		return nodeErr.NodeID
	case errors.As(err, &panicErr):
		return panicErr.NodeID
	case errors.As(err, &cancelErr):
		return cancelErr.NodeID
	case errors.As(err, &routerErr):
		return routerErr.FromNode
	}
	return ""
}
