package agent

import "github.com/bytebuddhi/agentgraph/pkg/flowgraph"

// Route picks the step after classification. Code questions about existing
// code get retrieval, web_search gets a search, and everything else
// (code_generation included) goes straight to generation.
func Route(intent Intent) Node {
	switch intent {
	case IntentCodeExplanation, IntentCodeDebug, IntentCodeRefactor:
		return NodeRetrieveContext
	case IntentWebSearch:
		return NodeWebSearch
	case IntentCodeGeneration, IntentQuestionAnswer, IntentGeneralChat:
		return NodeGenerateResponse
	default:
		return NodeGenerateResponse
	}
}

func routeByIntent(_ flowgraph.Context, s State) Node {
	return Route(s.Intent)
}
