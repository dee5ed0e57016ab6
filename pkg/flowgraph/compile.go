package flowgraph

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
)

// Compile validates the graph and creates an executable CompiledGraph.
// Multiple validation errors are joined together.
//
// Validation checks:
//  1. Entry point is set and names an existing node
//  2. Every edge source is an existing node
//  3. Every edge target (fixed or declared) is an existing node or END
//  4. No edge targets the fallback, and the fallback is not the entry
//  5. Every node has an outgoing edge
//  6. The graph is acyclic
//  7. END is reachable from the entry
//
// Nodes unreachable from the entry are logged as warnings only.
func (g *Graph[S, N]) Compile() (*CompiledGraph[S, N], error) {
	g.mu.RLock()
	defer g.mu.RUnlock()

	var errs []error
	end := N(END)

	entryOK := false
	switch {
	case g.entryPoint == "":
		errs = append(errs, ErrNoEntryPoint)
	case g.fallback != nil && g.entryPoint == g.fallbackID:
		errs = append(errs, fmt.Errorf("%w: fallback %s is the entry point", ErrFallbackReachable, g.fallbackID))
	default:
		if _, ok := g.nodes[g.entryPoint]; ok {
			entryOK = true
		} else {
			errs = append(errs, fmt.Errorf("%w: %s", ErrEntryNotFound, g.entryPoint))
		}
	}

	checkTarget := func(from, to N) {
		if to == end {
			return
		}
		if g.fallback != nil && to == g.fallbackID {
			errs = append(errs, fmt.Errorf("%w: edge %s -> %s", ErrFallbackReachable, from, to))
			return
		}
		if _, ok := g.nodes[to]; !ok {
			errs = append(errs, fmt.Errorf("%w: edge target '%s' does not exist", ErrNodeNotFound, to))
		}
	}

	for _, from := range g.sources() {
		if _, ok := g.nodes[from]; !ok {
			errs = append(errs, fmt.Errorf("%w: edge source '%s' does not exist", ErrNodeNotFound, from))
		}
		for _, to := range g.successors(from) {
			checkTarget(from, to)
		}
	}

	for _, id := range g.order {
		if len(g.successors(id)) == 0 {
			errs = append(errs, fmt.Errorf("%w: %s", ErrDeadEnd, id))
		}
	}

	if cycle := g.findCycle(); cycle != nil {
		errs = append(errs, fmt.Errorf("%w: %s", ErrCycle, joinIDs(cycle)))
	}

	if len(errs) == 0 && entryOK && !g.hasPathToEnd() {
		errs = append(errs, ErrNoPathToEnd)
	}

	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}

	g.warnUnreachableNodes()
	return g.buildCompiledGraph(), nil
}

// sources returns every node with an outgoing edge, in insertion order
// followed by unknown sources.
func (g *Graph[S, N]) sources() []N {
	seen := make(map[N]bool)
	var out []N
	add := func(id N) {
		if !seen[id] {
			seen[id] = true
			out = append(out, id)
		}
	}
	for _, id := range g.order {
		if _, ok := g.edges[id]; ok {
			add(id)
		}
		if _, ok := g.conditional[id]; ok {
			add(id)
		}
	}
	for id := range g.edges {
		add(id)
	}
	for id := range g.conditional {
		add(id)
	}
	return out
}

// successors returns every node (or END) reachable in one step from id.
func (g *Graph[S, N]) successors(id N) []N {
	if to, ok := g.edges[id]; ok {
		return []N{to}
	}
	if ce, ok := g.conditional[id]; ok {
		return ce.targets
	}
	return nil
}

// findCycle returns the node sequence of a cycle, or nil.
func (g *Graph[S, N]) findCycle() []N {
	const (
		unvisited = iota
		visiting
		done
	)
	state := make(map[N]int)
	var stack []N
	var cycle []N

	var visit func(id N) bool
	visit = func(id N) bool {
		state[id] = visiting
		stack = append(stack, id)
		for _, next := range g.successors(id) {
			if next == N(END) {
				continue
			}
			switch state[next] {
			case visiting:
				for i, s := range stack {
					if s == next {
						cycle = append(append([]N(nil), stack[i:]...), next)
						break
					}
				}
				return true
			case unvisited:
				if visit(next) {
					return true
				}
			}
		}
		stack = stack[:len(stack)-1]
		state[id] = done
		return false
	}

	for _, id := range g.order {
		if state[id] == unvisited && visit(id) {
			return cycle
		}
	}
	return nil
}

// hasPathToEnd checks if END is reachable from the entry point.
func (g *Graph[S, N]) hasPathToEnd() bool {
	seen := map[N]bool{g.entryPoint: true}
	queue := []N{g.entryPoint}
	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]
		for _, next := range g.successors(current) {
			if next == N(END) {
				return true
			}
			if !seen[next] {
				seen[next] = true
				queue = append(queue, next)
			}
		}
	}
	return false
}

// warnUnreachableNodes logs warnings for nodes not reachable from entry.
func (g *Graph[S, N]) warnUnreachableNodes() {
	reachable := map[N]bool{g.entryPoint: true}
	queue := []N{g.entryPoint}
	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]
		for _, next := range g.successors(current) {
			if next != N(END) && !reachable[next] {
				reachable[next] = true
				queue = append(queue, next)
			}
		}
	}
	for _, id := range g.order {
		if !reachable[id] {
			slog.Warn("node is unreachable from entry", "node_id", string(id))
		}
	}
}

// longestPath returns the maximum number of node executions from id to END.
// The graph must be acyclic.
func (g *Graph[S, N]) longestPath(id N, memo map[N]int) int {
	if id == N(END) {
		return 0
	}
	if d, ok := memo[id]; ok {
		return d
	}
	best := 0
	for _, next := range g.successors(id) {
		if d := g.longestPath(next, memo); d > best {
			best = d
		}
	}
	memo[id] = best + 1
	return best + 1
}

func (g *Graph[S, N]) buildCompiledGraph() *CompiledGraph[S, N] {
	nodes := make(map[N]NodeFunc[S], len(g.nodes))
	for id, fn := range g.nodes {
		nodes[id] = fn
	}

	edges := make(map[N]N, len(g.edges))
	for from, to := range g.edges {
		edges[from] = to
	}

	conditional := make(map[N]conditionalEdge[S, N], len(g.conditional))
	for from, ce := range g.conditional {
		conditional[from] = conditionalEdge[S, N]{
			router:  ce.router,
			targets: append([]N(nil), ce.targets...),
		}
	}

	return &CompiledGraph[S, N]{
		nodes:       nodes,
		order:       append([]N(nil), g.order...),
		edges:       edges,
		conditional: conditional,
		entryPoint:  g.entryPoint,
		fallbackID:  g.fallbackID,
		fallback:    g.fallback,
		maxDepth:    g.longestPath(g.entryPoint, make(map[N]int)),
	}
}

func joinIDs[N ID](ids []N) string {
	parts := make([]string, len(ids))
	for i, id := range ids {
		parts[i] = string(id)
	}
	return strings.Join(parts, " -> ")
}
