package flowgraph

// CompiledGraph is an immutable, executable graph.
// It is created by calling Compile() on a Graph builder.
//
// CompiledGraph is thread-safe and can be used concurrently for multiple
// Run() calls. The graph structure cannot be modified after compilation.
type CompiledGraph[S any, N ID] struct {
	nodes       map[N]NodeFunc[S]
	order       []N
	edges       map[N]N
	conditional map[N]conditionalEdge[S, N]
	entryPoint  N
	fallbackID  N
	fallback    FallbackFunc[S]
	maxDepth    int
}

// EntryPoint returns the entry node ID.
func (cg *CompiledGraph[S, N]) EntryPoint() N {
	return cg.entryPoint
}

// NodeIDs returns all regular node IDs in insertion order.
// The fallback is not included.
func (cg *CompiledGraph[S, N]) NodeIDs() []N {
	return append([]N(nil), cg.order...)
}

// HasNode checks if a regular node exists in the graph.
func (cg *CompiledGraph[S, N]) HasNode(id N) bool {
	_, exists := cg.nodes[id]
	return exists
}

// Successors returns the nodes (or END) that may follow id: the fixed edge
// target, or every declared target of its conditional edge.
func (cg *CompiledGraph[S, N]) Successors(id N) []N {
	if to, ok := cg.edges[id]; ok {
		return []N{to}
	}
	if ce, ok := cg.conditional[id]; ok {
		return append([]N(nil), ce.targets...)
	}
	return nil
}

// IsConditional returns true if the node has a conditional edge.
func (cg *CompiledGraph[S, N]) IsConditional(id N) bool {
	_, ok := cg.conditional[id]
	return ok
}

// Fallback returns the fallback node ID and whether one is configured.
func (cg *CompiledGraph[S, N]) Fallback() (N, bool) {
	return cg.fallbackID, cg.fallback != nil
}

// MaxDepth returns the largest number of regular nodes any run can execute
// before reaching END.
func (cg *CompiledGraph[S, N]) MaxDepth() int {
	return cg.maxDepth
}
