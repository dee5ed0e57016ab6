package agent

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/bytebuddhi/agentgraph/pkg/flowgraph"
	"github.com/bytebuddhi/agentgraph/pkg/flowgraph/observability"
	"github.com/bytebuddhi/agentgraph/pkg/llm"
	"github.com/bytebuddhi/agentgraph/pkg/retrieval"
	"github.com/bytebuddhi/agentgraph/pkg/search"
)

// Port names used for spans and metrics.
const (
	portLLM       = "llm"
	portSearch    = "search"
	portRetrieval = "retrieval"
)

// nodes holds the collaborators shared by all runs. It keeps no per-run
// state, so one instance serves concurrent runs.
type nodes struct {
	llm       llm.Client
	searcher  search.Searcher
	retriever retrieval.Retriever
	metrics   observability.MetricsRecorder
	spans     observability.SpanManager
}

// call wraps one port call in a client span and a port metric.
func (n *nodes) call(ctx context.Context, port, op string, fn func(context.Context) error) error {
	spanCtx, span := n.spans.StartPortSpan(ctx, port, op)
	start := time.Now()
	err := fn(spanCtx)
	n.metrics.RecordPortCall(spanCtx, port, op, time.Since(start), err)
	n.spans.EndSpanWithError(span, err)
	return err
}

func (n *nodes) classifyIntent(ctx flowgraph.Context, s State) (State, error) {
	prompt, err := classifyPrompt.Render(map[string]string{"query": s.UserQuery})
	if err != nil {
		return s, err
	}

	var label string
	err = n.call(ctx, portLLM, "classify", func(ctx context.Context) error {
		var genErr error
		label, genErr = n.llm.Generate(ctx, []llm.Message{llm.User(prompt)}, samplingFrom(ctx)...)
		return genErr
	})
	if err != nil {
		return s, fmt.Errorf("classify intent: %w", err)
	}

	intent, ok := ParseIntent(label)
	if !ok {
		ctx.Logger().Warn("unrecognized intent label, using general_chat", "label", label)
		s = s.withMetadata("raw_intent", label)
	}
	ctx.Logger().Debug("intent classified", "intent", string(intent))

	s.Intent = intent
	return s.visit(NodeClassifyIntent), nil
}

func (n *nodes) retrieveContext(ctx flowgraph.Context, s State) (State, error) {
	var chunks []retrieval.Chunk
	err := n.call(ctx, portRetrieval, "retrieve", func(ctx context.Context) error {
		var rErr error
		chunks, rErr = n.retriever.Retrieve(ctx, s.ProjectID, s.UserQuery)
		return rErr
	})
	if err != nil {
		// A missing index must not cost the user an answer.
		ctx.Logger().Warn("context retrieval failed", "project_id", s.ProjectID, "error", err)
		s.Error = fmt.Sprintf("context retrieval failed: %v", err)
		chunks = nil
	}

	s.RetrievedContext = chunks
	return s.visit(NodeRetrieveContext), nil
}

func (n *nodes) webSearch(ctx flowgraph.Context, s State) (State, error) {
	s.SearchResults = nil
	if n.searcher == nil {
		ctx.Logger().Warn("web search requested but no search client is configured")
		s.Error = SearchNotConfiguredMessage
		return s.visit(NodeWebSearch), nil
	}

	var result *search.Result
	err := n.call(ctx, portSearch, "search", func(ctx context.Context) error {
		var sErr error
		result, sErr = n.searcher.Search(ctx, s.UserQuery)
		return sErr
	})
	if err != nil {
		ctx.Logger().Warn("web search failed", "error", err)
		s.Error = err.Error()
		return s.visit(NodeWebSearch), nil
	}

	s.SearchResults = result
	return s.visit(NodeWebSearch), nil
}

// errEmptyAnswer keeps a blank model reply from becoming a blank answer.
var errEmptyAnswer = errors.New("model returned an empty answer")

func (n *nodes) generateResponse(ctx flowgraph.Context, s State) (State, error) {
	prompt := s.UserQuery
	prompt += retrieval.FormatContext(s.RetrievedContext)
	if s.SearchResults != nil && n.searcher != nil {
		prompt += "\n\n" + n.searcher.FormatForContext(s.SearchResults)
	}

	msgs := []llm.Message{
		llm.System(personaFor(s.Intent)),
		llm.User(prompt),
	}

	var answer string
	err := n.call(ctx, portLLM, "generate", func(ctx context.Context) error {
		var genErr error
		answer, genErr = n.llm.Generate(ctx, msgs, samplingFrom(ctx)...)
		if genErr == nil && answer == "" {
			genErr = errEmptyAnswer
		}
		return genErr
	})
	if err != nil {
		return s, fmt.Errorf("generate response: %w", err)
	}

	s = s.appendMessages(llm.User(s.UserQuery), llm.Assistant(answer))
	s.Explanation = answer
	return s.visit(NodeGenerateResponse), nil
}

// handleError is the engine's fallback. It receives the last good state and
// the error that ended the run; its output depends only on those inputs.
func handleError(ctx flowgraph.Context, s State, err error) State {
	ctx.Logger().Error("run failed, answering with apology", "error", err)

	if err != nil {
		s.Error = err.Error()
	}
	s = s.appendMessages(llm.Assistant(ApologyMessage))
	s.Explanation = ApologyMessage
	return s.visit(NodeHandleError)
}
