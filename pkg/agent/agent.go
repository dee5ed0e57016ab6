// Package agent implements the ByteBuddhi coding assistant workflow: intent
// classification, optional code retrieval or web search, and answer
// generation, run on the flowgraph engine with per-thread checkpoints.
//
// Process never returns an error. Every failure ends in a state whose
// Explanation is ApologyMessage and whose Error holds the cause.
package agent

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/bytebuddhi/agentgraph/pkg/flowgraph"
	"github.com/bytebuddhi/agentgraph/pkg/flowgraph/checkpoint"
	"github.com/bytebuddhi/agentgraph/pkg/flowgraph/observability"
	"github.com/bytebuddhi/agentgraph/pkg/llm"
	"github.com/bytebuddhi/agentgraph/pkg/retrieval"
	"github.com/bytebuddhi/agentgraph/pkg/search"
)

// GraphName labels run spans.
const GraphName = "bytebuddhi"

var (
	// ErrNilClient is returned by New without an LLM client.
	ErrNilClient = errors.New("agent: llm client is required")

	// ErrNoCheckpointStore is returned by History when no store is configured.
	ErrNoCheckpointStore = errors.New("agent: no checkpoint store configured")
)

// Agent runs the workflow. It is safe for concurrent use; runs share only
// the injected ports and store.
type Agent struct {
	graph   *flowgraph.CompiledGraph[State, Node]
	store   checkpoint.Store
	logger  *slog.Logger
	metrics observability.MetricsRecorder
	spans   observability.SpanManager
}

// Option configures an Agent.
type Option func(*options)

type options struct {
	searcher  search.Searcher
	retriever retrieval.Retriever
	store     checkpoint.Store
	logger    *slog.Logger
	metrics   observability.MetricsRecorder
	spans     observability.SpanManager
}

// WithSearcher enables the web_search node. Without it, web_search records
// SearchNotConfiguredMessage and the run continues.
func WithSearcher(s search.Searcher) Option {
	return func(o *options) { o.searcher = s }
}

// WithRetriever sets the code context source. Defaults to retrieval.Noop.
func WithRetriever(r retrieval.Retriever) Option {
	return func(o *options) {
		if r != nil {
			o.retriever = r
		}
	}
}

// WithCheckpointStore enables checkpoints for runs with a thread ID.
func WithCheckpointStore(s checkpoint.Store) Option {
	return func(o *options) { o.store = s }
}

// WithLogger sets the logger handed to every run.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.logger = l
		}
	}
}

// WithMetrics records run, node, port and checkpoint metrics.
func WithMetrics(m observability.MetricsRecorder) Option {
	return func(o *options) {
		if m != nil {
			o.metrics = m
		}
	}
}

// WithTracing creates spans for runs, nodes and port calls.
func WithTracing(sm observability.SpanManager) Option {
	return func(o *options) {
		if sm != nil {
			o.spans = sm
		}
	}
}

// New builds an Agent around client.
func New(client llm.Client, opts ...Option) (*Agent, error) {
	if client == nil {
		return nil, ErrNilClient
	}

	o := options{
		retriever: retrieval.Noop{},
		logger:    slog.Default(),
		metrics:   observability.NoopMetrics{},
		spans:     observability.NoopSpanManager{},
	}
	for _, opt := range opts {
		opt(&o)
	}

	graph, err := buildGraph(&nodes{
		llm:       client,
		searcher:  o.searcher,
		retriever: o.retriever,
		metrics:   o.metrics,
		spans:     o.spans,
	})
	if err != nil {
		return nil, fmt.Errorf("build workflow: %w", err)
	}

	return &Agent{
		graph:   graph,
		store:   o.store,
		logger:  o.logger,
		metrics: o.metrics,
		spans:   o.spans,
	}, nil
}

// RunConfig holds per-run settings.
type RunConfig struct {
	// ThreadID enables checkpointing. Empty means the run is not persisted.
	ThreadID string
	// ProjectID scopes context retrieval. It overrides State.ProjectID when set.
	ProjectID string
	// ParentCheckpointID is recorded on the checkpoint this run writes.
	ParentCheckpointID string
	// Temperature is passed to every LLM call. Nil uses the provider default.
	Temperature *float64
	// MaxTokens is passed to every LLM call when positive.
	MaxTokens int
}

func (c RunConfig) llmOptions() []llm.Option {
	var opts []llm.Option
	if c.Temperature != nil {
		opts = append(opts, llm.WithTemperature(*c.Temperature))
	}
	if c.MaxTokens > 0 {
		opts = append(opts, llm.WithMaxTokens(c.MaxTokens))
	}
	return opts
}

// Process runs the workflow on state and returns the final state.
// The returned state always has a non-empty Explanation.
func (a *Agent) Process(ctx context.Context, state State, cfg RunConfig) State {
	if cfg.ProjectID != "" {
		state.ProjectID = cfg.ProjectID
	}

	fctx := flowgraph.NewContext(withSampling(ctx, cfg.llmOptions()),
		flowgraph.WithLogger(a.logger.With("thread_id", cfg.ThreadID)))

	runOpts := []flowgraph.RunOption{
		flowgraph.WithGraphName(GraphName),
		flowgraph.WithMetrics(a.metrics),
		flowgraph.WithTracing(a.spans),
	}
	if a.store != nil && cfg.ThreadID != "" {
		runOpts = append(runOpts,
			flowgraph.WithCheckpointing(a.store),
			flowgraph.WithThreadID(cfg.ThreadID),
			flowgraph.WithParentCheckpoint(cfg.ParentCheckpointID))
	}

	result, err := a.graph.Run(fctx, state, runOpts...)
	if err != nil {
		return handleError(fctx, state, err)
	}
	if result.Explanation == "" {
		return handleError(fctx, result, errors.New("run completed without an answer"))
	}
	return result
}

// Ask processes a single query as a new turn.
func (a *Agent) Ask(ctx context.Context, query string, cfg RunConfig) State {
	return a.Process(ctx, State{UserQuery: query}, cfg)
}

// Resume continues threadID with query. The message history is seeded from
// the thread's latest checkpoint; a missing store, an empty thread or an
// unreadable checkpoint all start a fresh conversation.
func (a *Agent) Resume(ctx context.Context, threadID, query string, cfg RunConfig) State {
	cfg.ThreadID = threadID
	state := State{UserQuery: query}

	if a.store == nil {
		return a.Process(ctx, state, cfg)
	}

	prev, cp, err := flowgraph.LoadLatest[State](ctx, a.store, threadID)
	switch {
	case err == nil:
		state.Messages = prev.Messages
		state.ProjectID = prev.ProjectID
		cfg.ParentCheckpointID = cp.CheckpointID
		a.logger.Debug("resuming thread",
			"thread_id", threadID,
			"checkpoint_id", cp.CheckpointID,
			"messages", len(prev.Messages))
	case errors.Is(err, flowgraph.ErrNoCheckpoints):
		a.logger.Debug("no checkpoint for thread, starting fresh", "thread_id", threadID)
	default:
		a.logger.Warn("could not load checkpoint, starting fresh", "thread_id", threadID, "error", err)
	}

	return a.Process(ctx, state, cfg)
}

// Snapshot is one stored turn of a thread.
type Snapshot struct {
	CheckpointID       string    `json:"checkpoint_id"`
	ParentCheckpointID string    `json:"parent_checkpoint_id,omitempty"`
	CreatedAt          time.Time `json:"created_at"`
	State              State     `json:"state"`
}

// History returns up to limit snapshots of threadID, newest first.
// limit <= 0 uses checkpoint.DefaultListLimit.
func (a *Agent) History(ctx context.Context, threadID string, limit int) ([]Snapshot, error) {
	if a.store == nil {
		return nil, ErrNoCheckpointStore
	}

	cps, err := a.store.List(ctx, threadID, limit)
	if err != nil {
		return nil, &flowgraph.CheckpointError{ThreadID: threadID, Op: "list", Err: err}
	}

	out := make([]Snapshot, 0, len(cps))
	for _, cp := range cps {
		var s State
		if err := json.Unmarshal(cp.Data, &s); err != nil {
			return nil, fmt.Errorf("%w: checkpoint %s: %v", flowgraph.ErrDeserializeState, cp.CheckpointID, err)
		}
		out = append(out, Snapshot{
			CheckpointID:       cp.CheckpointID,
			ParentCheckpointID: cp.ParentCheckpointID,
			CreatedAt:          cp.CreatedAt,
			State:              s,
		})
	}
	return out, nil
}

// Forget deletes every checkpoint of threadID. Forgetting an unknown thread
// is not an error.
func (a *Agent) Forget(ctx context.Context, threadID string) error {
	if a.store == nil {
		return ErrNoCheckpointStore
	}
	if err := a.store.DeleteThread(ctx, threadID); err != nil {
		return &flowgraph.CheckpointError{ThreadID: threadID, Op: "delete", Err: err}
	}
	a.logger.Info("thread forgotten", "thread_id", threadID)
	return nil
}
