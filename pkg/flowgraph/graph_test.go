package flowgraph

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

type step string

func TestNewGraph(t *testing.T) {
	graph := NewGraph[Counter, string]()
	assert.NotNil(t, graph.nodes)
	assert.NotNil(t, graph.edges)
	assert.NotNil(t, graph.conditional)
	assert.Empty(t, graph.entryPoint)
}

func TestGraph_AddNode(t *testing.T) {
	graph := NewGraph[Counter, string]().
		AddNode("a", increment).
		AddNode("b", increment)

	assert.Len(t, graph.nodes, 2)
	assert.Equal(t, []string{"a", "b"}, graph.order)
}

func TestGraph_TypedIDs(t *testing.T) {
	const first step = "first"
	graph := NewGraph[Counter, step]().AddNode(first, increment)
	assert.Contains(t, graph.nodes, first)
}

func TestGraph_Chaining(t *testing.T) {
	graph := NewGraph[Counter, string]()
	assert.Same(t, graph, graph.AddNode("a", increment))
	assert.Same(t, graph, graph.AddEdge("a", END))
	assert.Same(t, graph, graph.SetEntry("a"))
}

func TestGraph_AddNode_Panics(t *testing.T) {
	tests := []struct {
		name string
		want string
		fn   func()
	}{
		{"empty id", "flowgraph: node ID cannot be empty", func() {
			NewGraph[Counter, string]().AddNode("", increment)
		}},
		{"END", "flowgraph: node ID cannot be reserved word 'END'", func() {
			NewGraph[Counter, string]().AddNode("END", increment)
		}},
		{"end lowercase", "flowgraph: node ID cannot be reserved word 'END'", func() {
			NewGraph[Counter, string]().AddNode("end", increment)
		}},
		{"__end__", "flowgraph: node ID cannot be reserved word 'END'", func() {
			NewGraph[Counter, string]().AddNode(END, increment)
		}},
		{"whitespace", "flowgraph: node ID cannot contain whitespace", func() {
			NewGraph[Counter, string]().AddNode("node a", increment)
		}},
		{"nil fn", "flowgraph: node function cannot be nil", func() {
			NewGraph[Counter, string]().AddNode("a", nil)
		}},
		{"duplicate", "flowgraph: duplicate node ID: a", func() {
			NewGraph[Counter, string]().AddNode("a", increment).AddNode("a", increment)
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.PanicsWithValue(t, tt.want, tt.fn)
		})
	}
}

func TestGraph_SecondOutgoingEdge_Panics(t *testing.T) {
	router := func(ctx Context, s Counter) string { return END }

	assert.PanicsWithValue(t, "flowgraph: node a already has an outgoing edge", func() {
		NewGraph[Counter, string]().AddEdge("a", "b").AddEdge("a", "c")
	})
	assert.PanicsWithValue(t, "flowgraph: node a already has an outgoing edge", func() {
		NewGraph[Counter, string]().AddEdge("a", "b").AddConditionalEdge("a", router, END)
	})
	assert.PanicsWithValue(t, "flowgraph: node a already has an outgoing edge", func() {
		NewGraph[Counter, string]().AddConditionalEdge("a", router, END).AddEdge("a", END)
	})
}

func TestGraph_AddConditionalEdge_Panics(t *testing.T) {
	assert.PanicsWithValue(t, "flowgraph: router function cannot be nil", func() {
		NewGraph[Counter, string]().AddConditionalEdge("a", nil, "b")
	})
	assert.PanicsWithValue(t, "flowgraph: conditional edge must declare its targets", func() {
		NewGraph[Counter, string]().AddConditionalEdge("a", func(Context, Counter) string { return "b" })
	})
}

func TestGraph_SetFallback_Panics(t *testing.T) {
	fb := func(ctx Context, s Counter, err error) Counter { return s }

	assert.PanicsWithValue(t, "flowgraph: fallback function cannot be nil", func() {
		NewGraph[Counter, string]().SetFallback("fb", nil)
	})
	assert.PanicsWithValue(t, "flowgraph: fallback already set", func() {
		NewGraph[Counter, string]().SetFallback("fb", fb).SetFallback("fb2", fb)
	})
	assert.PanicsWithValue(t, "flowgraph: duplicate node ID: a", func() {
		NewGraph[Counter, string]().AddNode("a", increment).SetFallback("a", fb)
	})
	assert.PanicsWithValue(t, "flowgraph: duplicate node ID: fb", func() {
		NewGraph[Counter, string]().SetFallback("fb", fb).AddNode("fb", increment)
	})
	assert.PanicsWithValue(t, "flowgraph: node ID cannot be reserved word 'END'", func() {
		NewGraph[Counter, string]().SetFallback(END, fb)
	})
}
