package flowgraph

import (
	"fmt"
	"strings"
	"sync"
)

// Graph is a mutable builder for creating execution graphs.
// Use NewGraph to create a new graph, then chain AddNode, AddEdge,
// AddConditionalEdge, SetEntry and SetFallback calls to define the workflow.
//
// Graph is NOT thread-safe during building. Use a single goroutine
// to construct the graph, then call Compile() to create an immutable
// CompiledGraph that can be safely shared.
type Graph[S any, N ID] struct {
	mu          sync.RWMutex
	nodes       map[N]NodeFunc[S]
	order       []N
	edges       map[N]N
	conditional map[N]conditionalEdge[S, N]
	entryPoint  N
	fallbackID  N
	fallback    FallbackFunc[S]
}

type conditionalEdge[S any, N ID] struct {
	router  RouterFunc[S, N]
	targets []N
}

// NewGraph creates a new graph builder for state type S and node ID type N.
func NewGraph[S any, N ID]() *Graph[S, N] {
	return &Graph[S, N]{
		nodes:       make(map[N]NodeFunc[S]),
		edges:       make(map[N]N),
		conditional: make(map[N]conditionalEdge[S, N]),
	}
}

func validateNodeID[N ID](id N) {
	if id == "" {
		panic("flowgraph: node ID cannot be empty")
	}
	lower := strings.ToLower(string(id))
	if lower == "end" || lower == END {
		panic("flowgraph: node ID cannot be reserved word 'END'")
	}
	if strings.ContainsAny(string(id), " \t\n\r") {
		panic("flowgraph: node ID cannot contain whitespace")
	}
}

// AddNode adds a named node to the graph.
//
// Panics if id is empty, reserved ("END"/"__end__", any case), contains
// whitespace, is already used, or if fn is nil.
func (g *Graph[S, N]) AddNode(id N, fn NodeFunc[S]) *Graph[S, N] {
	validateNodeID(id)
	if fn == nil {
		panic("flowgraph: node function cannot be nil")
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	if _, exists := g.nodes[id]; exists || (g.fallback != nil && g.fallbackID == id) {
		panic(fmt.Sprintf("flowgraph: duplicate node ID: %s", id))
	}
	g.nodes[id] = fn
	g.order = append(g.order, id)
	return g
}

// AddEdge adds the unconditional edge from one node to another (or END).
// Edge endpoints are validated at Compile() time.
//
// Panics if from already has an outgoing edge: runs are strictly sequential.
func (g *Graph[S, N]) AddEdge(from, to N) *Graph[S, N] {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.mustHaveNoTransition(from)
	g.edges[from] = to
	return g
}

// AddConditionalEdge routes from a node by calling router after it succeeds.
// targets declares every node (or END) router may return; Compile validates
// them and uses them for cycle and depth analysis.
//
// Panics if router is nil, no targets are given, or from already has an
// outgoing edge.
func (g *Graph[S, N]) AddConditionalEdge(from N, router RouterFunc[S, N], targets ...N) *Graph[S, N] {
	if router == nil {
		panic("flowgraph: router function cannot be nil")
	}
	if len(targets) == 0 {
		panic("flowgraph: conditional edge must declare its targets")
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	g.mustHaveNoTransition(from)
	g.conditional[from] = conditionalEdge[S, N]{
		router:  router,
		targets: append([]N(nil), targets...),
	}
	return g
}

func (g *Graph[S, N]) mustHaveNoTransition(from N) {
	if _, ok := g.edges[from]; ok {
		panic(fmt.Sprintf("flowgraph: node %s already has an outgoing edge", from))
	}
	if _, ok := g.conditional[from]; ok {
		panic(fmt.Sprintf("flowgraph: node %s already has an outgoing edge", from))
	}
}

// SetEntry designates the entry point node.
// Entry point validation happens at Compile() time.
func (g *Graph[S, N]) SetEntry(id N) *Graph[S, N] {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.entryPoint = id
	return g
}

// SetFallback installs the node that absorbs run failures. The fallback is
// not a regular node: no edge may target it, and after it runs the run ends.
//
// Panics on an invalid or duplicate id, a nil fn, or a second fallback.
func (g *Graph[S, N]) SetFallback(id N, fn FallbackFunc[S]) *Graph[S, N] {
	validateNodeID(id)
	if fn == nil {
		panic("flowgraph: fallback function cannot be nil")
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	if g.fallback != nil {
		panic("flowgraph: fallback already set")
	}
	if _, exists := g.nodes[id]; exists {
		panic(fmt.Sprintf("flowgraph: duplicate node ID: %s", id))
	}
	g.fallbackID = id
	g.fallback = fn
	return g
}
