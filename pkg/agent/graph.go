package agent

import "github.com/bytebuddhi/agentgraph/pkg/flowgraph"

// buildGraph wires the workflow:
//
//	classify_intent ─┬─> retrieve_context ─┐
//	                 ├─> web_search ───────┤
//	                 └─────────────────────┴─> generate_response ─> END
//
// handle_error is the fallback and is never an edge target.
func buildGraph(n *nodes) (*flowgraph.CompiledGraph[State, Node], error) {
	return flowgraph.NewGraph[State, Node]().
		AddNode(NodeClassifyIntent, n.classifyIntent).
		AddNode(NodeRetrieveContext, n.retrieveContext).
		AddNode(NodeWebSearch, n.webSearch).
		AddNode(NodeGenerateResponse, n.generateResponse).
		AddConditionalEdge(NodeClassifyIntent, routeByIntent,
			NodeRetrieveContext, NodeWebSearch, NodeGenerateResponse).
		AddEdge(NodeRetrieveContext, NodeGenerateResponse).
		AddEdge(NodeWebSearch, NodeGenerateResponse).
		AddEdge(NodeGenerateResponse, flowgraph.END).
		SetEntry(NodeClassifyIntent).
		SetFallback(NodeHandleError, handleError).
		Compile()
}
