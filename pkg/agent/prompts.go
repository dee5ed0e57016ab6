package agent

import (
	"github.com/bytebuddhi/agentgraph/pkg/flowgraph/template"
)

// ApologyMessage is the only text a user sees when a run fails.
const ApologyMessage = "I encountered an error while processing your request. Please try again or rephrase your question."

// SearchNotConfiguredMessage is recorded in State.Error when a web search
// is requested without a search client.
const SearchNotConfiguredMessage = "Web search is not configured"

var classifyPrompt = template.MustParse("classify_intent", `Classify the following user request into one of these categories:
- code_generation: User wants to generate new code
- code_explanation: User wants to understand existing code
- code_debug: User needs help debugging an issue
- code_refactor: User wants to improve/refactor code
- question_answer: User has a general programming question
- web_search: User needs current information from the web
- general_chat: General conversation

User request: ${query}

Respond with only the category name.`)

const defaultPersona = "You are a helpful programming assistant."

var personas = map[Intent]string{
	IntentCodeGeneration:  "You are an expert programmer. Generate clean, well-documented code based on the user's request.",
	IntentCodeExplanation: "You are an expert programmer. Explain code clearly and concisely.",
	IntentCodeDebug:       "You are an expert debugger. Help identify and fix issues in code.",
	IntentCodeRefactor:    "You are an expert in code quality. Suggest improvements and refactorings.",
	IntentWebSearch:       "You are a helpful programming assistant with access to current web search results. Base your answer on them and cite the URLs you use.",
}

// personaFor returns the system prompt for an intent.
func personaFor(intent Intent) string {
	if p, ok := personas[intent]; ok {
		return p
	}
	return defaultPersona
}
