package benchmarks

import (
	"fmt"
	"testing"

	"github.com/bytebuddhi/agentgraph/pkg/flowgraph"
)

// State for benchmarks.
type State struct {
	Value int
}

// noopNode does minimal work to measure framework overhead.
func noopNode(ctx flowgraph.Context, s State) (State, error) {
	return s, nil
}

func BenchmarkNewGraph(b *testing.B) {
	for i := 0; i < b.N; i++ {
		flowgraph.NewGraph[State, string]()
	}
}

func BenchmarkAddNode_10(b *testing.B) {
	for i := 0; i < b.N; i++ {
		graph := flowgraph.NewGraph[State, string]()
		for j := 0; j < 10; j++ {
			graph.AddNode(nodeID(j), noopNode)
		}
	}
}

func BenchmarkAddNode_100(b *testing.B) {
	for i := 0; i < b.N; i++ {
		graph := flowgraph.NewGraph[State, string]()
		for j := 0; j < 100; j++ {
			graph.AddNode(nodeID(j), noopNode)
		}
	}
}

// Compile validates reachability, cycles and the longest path, so its cost
// grows with graph size.
func BenchmarkCompile_Linear(b *testing.B) {
	for _, n := range []int{5, 10, 50, 100} {
		b.Run(fmt.Sprint(n), func(b *testing.B) {
			graph := buildLinearGraph(n)
			b.ResetTimer()
			for i := 0; i < b.N; i++ {
				_, _ = graph.Compile()
			}
		})
	}
}

func BenchmarkCompile_Branching(b *testing.B) {
	graph := buildBranchingGraph()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_, _ = graph.Compile()
	}
}

func nodeID(n int) string {
	return fmt.Sprintf("n%03d", n)
}

func buildLinearGraph(n int) *flowgraph.Graph[State, string] {
	graph := flowgraph.NewGraph[State, string]()
	for i := 0; i < n; i++ {
		graph.AddNode(nodeID(i), noopNode)
	}
	for i := 0; i < n-1; i++ {
		graph.AddEdge(nodeID(i), nodeID(i+1))
	}
	graph.AddEdge(nodeID(n-1), flowgraph.END)
	graph.SetEntry(nodeID(0))
	return graph
}

func buildBranchingGraph() *flowgraph.Graph[State, string] {
	router := func(ctx flowgraph.Context, s State) string {
		if s.Value%2 == 0 {
			return "even"
		}
		return "odd"
	}

	return flowgraph.NewGraph[State, string]().
		AddNode("start", noopNode).
		AddNode("even", noopNode).
		AddNode("odd", noopNode).
		AddNode("merge", noopNode).
		AddConditionalEdge("start", router, "even", "odd").
		AddEdge("even", "merge").
		AddEdge("odd", "merge").
		AddEdge("merge", flowgraph.END).
		SetEntry("start")
}

func mustCompile[S any](g *flowgraph.Graph[S, string]) *flowgraph.CompiledGraph[S, string] {
	compiled, err := g.Compile()
	if err != nil {
		panic(err)
	}
	return compiled
}
