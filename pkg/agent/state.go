package agent

import (
	"strings"

	"github.com/bytebuddhi/agentgraph/pkg/llm"
	"github.com/bytebuddhi/agentgraph/pkg/retrieval"
	"github.com/bytebuddhi/agentgraph/pkg/search"
)

// Intent is the classified purpose of a user query.
type Intent string

// The closed intent set.
const (
	IntentCodeGeneration  Intent = "code_generation"
	IntentCodeExplanation Intent = "code_explanation"
	IntentCodeDebug       Intent = "code_debug"
	IntentCodeRefactor    Intent = "code_refactor"
	IntentQuestionAnswer  Intent = "question_answer"
	IntentWebSearch       Intent = "web_search"
	IntentGeneralChat     Intent = "general_chat"
)

// Intents lists every intent in prompt order.
func Intents() []Intent {
	return []Intent{
		IntentCodeGeneration,
		IntentCodeExplanation,
		IntentCodeDebug,
		IntentCodeRefactor,
		IntentQuestionAnswer,
		IntentWebSearch,
		IntentGeneralChat,
	}
}

// Valid reports whether i is in the closed set.
func (i Intent) Valid() bool {
	switch i {
	case IntentCodeGeneration, IntentCodeExplanation, IntentCodeDebug, IntentCodeRefactor,
		IntentQuestionAnswer, IntentWebSearch, IntentGeneralChat:
		return true
	}
	return false
}

// ParseIntent normalizes a model label (trim, lowercase). Labels outside
// the closed set become IntentGeneralChat with ok false.
func ParseIntent(label string) (intent Intent, ok bool) {
	i := Intent(strings.ToLower(strings.TrimSpace(label)))
	if !i.Valid() {
		return IntentGeneralChat, false
	}
	return i, true
}

// Node names a step of the workflow.
type Node string

// Workflow nodes.
const (
	NodeClassifyIntent   Node = "classify_intent"
	NodeRetrieveContext  Node = "retrieve_context"
	NodeWebSearch        Node = "web_search"
	NodeGenerateResponse Node = "generate_response"
	NodeHandleError      Node = "handle_error"
)

// State is the data carried through one run and stored in checkpoints.
// Nodes treat it as a value: slices and maps are copied before being
// extended so a failed node cannot leak changes into the last good state.
type State struct {
	Messages  []llm.Message `json:"messages"`
	UserQuery string        `json:"user_query"`
	// Intent is empty until classification.
	Intent           Intent            `json:"intent,omitempty"`
	ProjectID        string            `json:"project_id,omitempty"`
	RetrievedContext []retrieval.Chunk `json:"retrieved_context,omitempty"`
	// SearchResults is nil unless the web search succeeded.
	SearchResults *search.Result `json:"search_results,omitempty"`
	// Explanation is the answer shown to the user. Every completed run sets it.
	Explanation string `json:"explanation,omitempty"`
	// Error holds diagnostic detail for operators.
	Error    string         `json:"error,omitempty"`
	Metadata map[string]any `json:"metadata,omitempty"`
	// Path lists the nodes that completed, in order.
	Path []Node `json:"path,omitempty"`
}

// visit returns s with node appended to a copy of Path.
func (s State) visit(node Node) State {
	path := make([]Node, len(s.Path), len(s.Path)+1)
	copy(path, s.Path)
	s.Path = append(path, node)
	return s
}

// appendMessages returns s with msgs appended to a copy of Messages.
func (s State) appendMessages(msgs ...llm.Message) State {
	out := make([]llm.Message, len(s.Messages), len(s.Messages)+len(msgs))
	copy(out, s.Messages)
	s.Messages = append(out, msgs...)
	return s
}

// withMetadata returns s with key set on a copy of Metadata.
func (s State) withMetadata(key string, value any) State {
	md := make(map[string]any, len(s.Metadata)+1)
	for k, v := range s.Metadata {
		md[k] = v
	}
	md[key] = value
	s.Metadata = md
	return s
}
