package flowgraph

// END is the terminal node identifier.
// Use this as an edge target to indicate the run should terminate.
const END = "__end__"

// ID constrains node identifiers to string-based types, letting callers
// define their node set as a typed enum.
type ID interface {
	~string
}

// NodeFunc is the signature for all node functions.
// Nodes receive the execution context and current state,
// and return the updated state and any error.
//
// The state parameter is passed by value. Nodes should modify and return
// a new state value, not rely on pointer mutation.
type NodeFunc[S any] func(ctx Context, state S) (S, error)

// RouterFunc picks the next node after a node with a conditional edge.
// It must return one of the targets declared in AddConditionalEdge.
type RouterFunc[S any, N ID] func(ctx Context, state S) N

// FallbackFunc converts a failed run into a terminal state. It receives the
// state as of the last successful node and the error that stopped the run.
// It has no error result: a fallback cannot fail.
type FallbackFunc[S any] func(ctx Context, state S, err error) S
