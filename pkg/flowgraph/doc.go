/*
Package flowgraph runs small, acyclic workflows over a typed state value.

# Overview

A workflow is a set of named nodes joined by fixed edges and, at most once per
node, a conditional edge whose router picks among a declared set of targets.
Node IDs are a caller-defined string type, so the closed set of nodes lives in
the caller's own enum:

	type Step string

	const (
	    Fetch   Step = "fetch"
	    Render  Step = "render"
	    Recover Step = "recover"
	)

	graph := flowgraph.NewGraph[State, Step]().
	    AddNode(Fetch, fetch).
	    AddNode(Render, render).
	    AddEdge(Fetch, Render).
	    AddEdge(Render, flowgraph.END).
	    SetEntry(Fetch).
	    SetFallback(Recover, recoverFn)

	compiled, err := graph.Compile()

# Structure

Compile rejects cycles. Because every conditional edge lists its possible
targets, the whole plan is known before the first run: MaxDepth reports the
longest number of node executions any run can take. Routers that return a
target they did not declare fail the run with a RouterError.

# Failures

Nodes return (state, error). A nil error continues the path; a non-nil error
(or a panic, or cancellation observed between nodes) stops it. If a fallback
node is configured it receives the state as of the last successful node
together with the error, and its result becomes the run's result with a nil
error. The fallback cannot be targeted by any edge and cannot itself fail.

# Checkpoints

With WithCheckpointing and WithThreadID, Run appends one checkpoint holding the
JSON-encoded final state after the run completes. The write is best effort:
failures are logged and counted, never returned. A run whose context is already
done writes nothing. LoadLatest decodes the newest checkpoint of a thread.
*/
package flowgraph
