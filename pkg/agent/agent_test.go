package agent_test

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bytebuddhi/agentgraph/pkg/agent"
	"github.com/bytebuddhi/agentgraph/pkg/flowgraph"
	"github.com/bytebuddhi/agentgraph/pkg/flowgraph/checkpoint"
	"github.com/bytebuddhi/agentgraph/pkg/llm"
	"github.com/bytebuddhi/agentgraph/pkg/retrieval"
	"github.com/bytebuddhi/agentgraph/pkg/search"
)

// scripted answers the classification prompt with label and every
// generation call (which starts with a system persona) with answer.
func scripted(label, answer string) *llm.MockClient {
	return llm.NewMockClient("").WithHandler(func(call llm.Call) (string, error) {
		if isGeneration(call) {
			return answer, nil
		}
		return label, nil
	})
}

func isGeneration(call llm.Call) bool {
	return len(call.Messages) > 0 && call.Messages[0].Role == llm.RoleSystem
}

func generationCall(t *testing.T, client *llm.MockClient) llm.Call {
	t.Helper()
	for _, c := range client.Calls() {
		if isGeneration(c) {
			return c
		}
	}
	t.Fatal("no generation call recorded")
	return llm.Call{}
}

type fakeSearcher struct {
	result *search.Result
	err    error
	mu     sync.Mutex
	query  string
}

func (f *fakeSearcher) Search(_ context.Context, query string, _ ...search.Option) (*search.Result, error) {
	f.mu.Lock()
	f.query = query
	f.mu.Unlock()
	return f.result, f.err
}

func (f *fakeSearcher) FormatForContext(r *search.Result) string { return search.Format(r) }

type fakeRetriever struct {
	chunks    []retrieval.Chunk
	err       error
	projectID string
}

func (f *fakeRetriever) Retrieve(_ context.Context, projectID, _ string) ([]retrieval.Chunk, error) {
	f.projectID = projectID
	return f.chunks, f.err
}

func newAgent(t *testing.T, client llm.Client, opts ...agent.Option) *agent.Agent {
	t.Helper()
	a, err := agent.New(client, opts...)
	require.NoError(t, err)
	return a
}

func TestNew_RequiresClient(t *testing.T) {
	_, err := agent.New(nil)
	assert.ErrorIs(t, err, agent.ErrNilClient)
}

func TestProcess_Routing(t *testing.T) {
	tests := []struct {
		intent agent.Intent
		path   []agent.Node
	}{
		{agent.IntentCodeExplanation, []agent.Node{agent.NodeClassifyIntent, agent.NodeRetrieveContext, agent.NodeGenerateResponse}},
		{agent.IntentCodeDebug, []agent.Node{agent.NodeClassifyIntent, agent.NodeRetrieveContext, agent.NodeGenerateResponse}},
		{agent.IntentCodeRefactor, []agent.Node{agent.NodeClassifyIntent, agent.NodeRetrieveContext, agent.NodeGenerateResponse}},
		{agent.IntentWebSearch, []agent.Node{agent.NodeClassifyIntent, agent.NodeWebSearch, agent.NodeGenerateResponse}},
		{agent.IntentCodeGeneration, []agent.Node{agent.NodeClassifyIntent, agent.NodeGenerateResponse}},
		{agent.IntentQuestionAnswer, []agent.Node{agent.NodeClassifyIntent, agent.NodeGenerateResponse}},
		{agent.IntentGeneralChat, []agent.Node{agent.NodeClassifyIntent, agent.NodeGenerateResponse}},
	}

	for _, tt := range tests {
		t.Run(string(tt.intent), func(t *testing.T) {
			a := newAgent(t, scripted(string(tt.intent), "answer"))
			out := a.Ask(context.Background(), "help", agent.RunConfig{})

			assert.Equal(t, tt.intent, out.Intent)
			assert.Equal(t, tt.path, out.Path)
			assert.Equal(t, "answer", out.Explanation)
		})
	}
}

func TestProcess_ExplainWithContext(t *testing.T) {
	client := scripted("code_explanation", "It adds two numbers.")
	retriever := &fakeRetriever{chunks: []retrieval.Chunk{{Content: "func add(a, b int) int { return a + b }", Source: "math.go:1-1"}}}
	a := newAgent(t, client, agent.WithRetriever(retriever))

	in := agent.State{UserQuery: "What does this function do?"}
	out := a.Process(context.Background(), in, agent.RunConfig{ProjectID: "proj-1"})

	assert.Equal(t, []agent.Node{agent.NodeClassifyIntent, agent.NodeRetrieveContext, agent.NodeGenerateResponse}, out.Path)
	assert.Len(t, out.Messages, len(in.Messages)+2)
	assert.Equal(t, llm.User("What does this function do?"), out.Messages[0])
	assert.Equal(t, llm.Assistant("It adds two numbers."), out.Messages[1])
	assert.NotEmpty(t, out.Explanation)
	assert.Empty(t, out.Error)
	assert.Equal(t, "proj-1", retriever.projectID)
	assert.Equal(t, retriever.chunks, out.RetrievedContext)

	gen := generationCall(t, client)
	require.Len(t, gen.Messages, 2)
	assert.Contains(t, gen.Messages[0].Content, "Explain code")
	assert.True(t, strings.HasPrefix(gen.Messages[1].Content, "What does this function do?\n\nRelevant code context:\n"))
	assert.Contains(t, gen.Messages[1].Content, "func add")
}

func TestProcess_GenerationFailureApologizes(t *testing.T) {
	client := llm.NewMockClient("").WithHandler(func(call llm.Call) (string, error) {
		if isGeneration(call) {
			return "", errors.New("upstream 500: secret stack trace")
		}
		return "code_generation", nil
	})
	a := newAgent(t, client)

	out := a.Ask(context.Background(), "write a parser", agent.RunConfig{})

	assert.Equal(t, agent.ApologyMessage, out.Explanation)
	assert.Contains(t, out.Error, "secret stack trace")
	assert.Equal(t, agent.IntentCodeGeneration, out.Intent, "state as of the last good node")
	assert.Equal(t, []agent.Node{agent.NodeClassifyIntent, agent.NodeHandleError}, out.Path)
	require.Len(t, out.Messages, 1)
	assert.Equal(t, llm.Assistant(agent.ApologyMessage), out.Messages[0])
	assert.NotContains(t, out.Explanation, "secret")
}

func TestProcess_EmptyAnswerApologizes(t *testing.T) {
	a := newAgent(t, scripted("general_chat", ""))

	out := a.Ask(context.Background(), "hi", agent.RunConfig{})

	assert.Equal(t, agent.ApologyMessage, out.Explanation)
	assert.NotEmpty(t, out.Error)
}

func TestProcess_ClassificationFailure(t *testing.T) {
	a := newAgent(t, llm.NewMockClient("").WithError(errors.New("rate limited")))

	out := a.Ask(context.Background(), "hi", agent.RunConfig{})

	assert.Equal(t, agent.ApologyMessage, out.Explanation)
	assert.Contains(t, out.Error, "rate limited")
	assert.Empty(t, out.Intent)
	assert.Equal(t, []agent.Node{agent.NodeHandleError}, out.Path)
}

func TestProcess_UnknownLabelFallsBackToGeneralChat(t *testing.T) {
	for _, label := range []string{"", "banana", "code generation", "CODE_GENERATION please"} {
		t.Run(label, func(t *testing.T) {
			client := scripted(label, "ok")
			a := newAgent(t, client)

			out := a.Ask(context.Background(), "hi", agent.RunConfig{})

			assert.Equal(t, agent.IntentGeneralChat, out.Intent)
			assert.Equal(t, label, out.Metadata["raw_intent"])
			assert.Equal(t, "ok", out.Explanation)
			assert.Equal(t, "You are a helpful programming assistant.", generationCall(t, client).Messages[0].Content)
		})
	}
}

func TestProcess_LabelNormalized(t *testing.T) {
	a := newAgent(t, scripted("  Code_Debug\n", "fixed"))

	out := a.Ask(context.Background(), "why does this panic", agent.RunConfig{})

	assert.Equal(t, agent.IntentCodeDebug, out.Intent)
	assert.Nil(t, out.Metadata)
}

func TestProcess_SearchNotConfigured(t *testing.T) {
	client := scripted("web_search", "Go 1.24 is the latest.")
	a := newAgent(t, client)

	out := a.Ask(context.Background(), "latest Go release?", agent.RunConfig{})

	assert.Nil(t, out.SearchResults)
	assert.Equal(t, agent.SearchNotConfiguredMessage, out.Error)
	assert.Equal(t, "Go 1.24 is the latest.", out.Explanation)
	assert.Equal(t, []agent.Node{agent.NodeClassifyIntent, agent.NodeWebSearch, agent.NodeGenerateResponse}, out.Path)
	assert.Equal(t, "latest Go release?", generationCall(t, client).Messages[1].Content)
}

func TestProcess_SearchFailureContained(t *testing.T) {
	searcher := &fakeSearcher{err: errors.New("web search failed: timeout")}
	a := newAgent(t, scripted("web_search", "answer"), agent.WithSearcher(searcher))

	out := a.Ask(context.Background(), "news", agent.RunConfig{})

	assert.Nil(t, out.SearchResults)
	assert.Equal(t, "web search failed: timeout", out.Error)
	assert.Equal(t, "answer", out.Explanation)
}

func TestProcess_SearchResultsInPrompt(t *testing.T) {
	result := &search.Result{
		Query:   "go generics",
		Answer:  "Generics arrived in Go 1.18.",
		Results: []search.Item{{Title: "Go 1.18", URL: "https://go.dev/doc/go1.18", Content: "Type parameters."}},
	}
	searcher := &fakeSearcher{result: result}
	client := scripted("web_search", "answer")
	a := newAgent(t, client, agent.WithSearcher(searcher))

	out := a.Ask(context.Background(), "go generics", agent.RunConfig{})

	assert.Equal(t, result, out.SearchResults)
	assert.Empty(t, out.Error)
	assert.Equal(t, "go generics", searcher.query)

	gen := generationCall(t, client)
	assert.Contains(t, gen.Messages[0].Content, "web search results")
	assert.Equal(t, "go generics\n\n"+search.Format(result), gen.Messages[1].Content)
	assert.Equal(t, llm.User("go generics"), out.Messages[0], "history keeps the original query")
}

func TestProcess_RetrievalFailureContained(t *testing.T) {
	retriever := &fakeRetriever{err: errors.New("relation does not exist")}
	a := newAgent(t, scripted("code_refactor", "refactored"), agent.WithRetriever(retriever))

	out := a.Ask(context.Background(), "clean this up", agent.RunConfig{})

	assert.Empty(t, out.RetrievedContext)
	assert.Contains(t, out.Error, "relation does not exist")
	assert.Equal(t, "refactored", out.Explanation)
}

func TestProcess_SamplingPassedThrough(t *testing.T) {
	client := scripted("general_chat", "ok")
	a := newAgent(t, client)
	temp := 0.2

	a.Ask(context.Background(), "hi", agent.RunConfig{Temperature: &temp, MaxTokens: 256})

	calls := client.Calls()
	require.Len(t, calls, 2)
	for _, c := range calls {
		assert.Equal(t, llm.Options{Temperature: 0.2, MaxTokens: 256}, c.Options)
	}
}

func TestProcess_DefaultSampling(t *testing.T) {
	client := scripted("general_chat", "ok")
	a := newAgent(t, client)

	a.Ask(context.Background(), "hi", agent.RunConfig{})

	assert.Equal(t, llm.Options{Temperature: llm.DefaultTemperature}, client.LastCall().Options)
}

func TestProcess_CancelledContext(t *testing.T) {
	store := checkpoint.NewMemoryStore()
	a := newAgent(t, scripted("general_chat", "ok"), agent.WithCheckpointStore(store))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	out := a.Ask(ctx, "hi", agent.RunConfig{ThreadID: "t1"})

	assert.Equal(t, agent.ApologyMessage, out.Explanation)
	assert.Zero(t, store.Len(), "a cancelled run writes no checkpoint")
}

func TestProcess_Checkpointing(t *testing.T) {
	store := checkpoint.NewMemoryStore()
	a := newAgent(t, scripted("general_chat", "hello"), agent.WithCheckpointStore(store))

	a.Ask(context.Background(), "hi", agent.RunConfig{})
	assert.Zero(t, store.Len(), "no thread, no checkpoint")

	out := a.Ask(context.Background(), "hi", agent.RunConfig{ThreadID: "t1"})
	require.Equal(t, 1, store.Len())

	cp, err := store.Latest(context.Background(), "t1")
	require.NoError(t, err)
	var saved agent.State
	require.NoError(t, json.Unmarshal(cp.Data, &saved))
	assert.Equal(t, out, saved)
}

func TestProcess_FailedRunIsCheckpointed(t *testing.T) {
	store := checkpoint.NewMemoryStore()
	client := llm.NewMockClient("").WithHandler(func(call llm.Call) (string, error) {
		if isGeneration(call) {
			return "", errors.New("boom")
		}
		return "general_chat", nil
	})
	a := newAgent(t, client, agent.WithCheckpointStore(store))

	a.Ask(context.Background(), "hi", agent.RunConfig{ThreadID: "t1"})

	cp, err := store.Latest(context.Background(), "t1")
	require.NoError(t, err)
	var saved agent.State
	require.NoError(t, json.Unmarshal(cp.Data, &saved))
	assert.Equal(t, agent.ApologyMessage, saved.Explanation)
}

func seedThread(t *testing.T, store checkpoint.Store, threadID string, s agent.State) *checkpoint.Checkpoint {
	t.Helper()
	data, err := json.Marshal(s)
	require.NoError(t, err)
	cp := checkpoint.New(threadID, data)
	require.NoError(t, store.Put(context.Background(), cp))
	return cp
}

func TestResume_SeedsHistory(t *testing.T) {
	store := checkpoint.NewMemoryStore()
	prior := []llm.Message{
		llm.User("what is a goroutine?"),
		llm.Assistant("A lightweight thread."),
		llm.User("and a channel?"),
		llm.Assistant("A typed conduit."),
	}
	seeded := seedThread(t, store, "t1", agent.State{Messages: prior, ProjectID: "proj-9"})

	a := newAgent(t, scripted("question_answer", "Sure."), agent.WithCheckpointStore(store))
	out := a.Resume(context.Background(), "t1", "continue", agent.RunConfig{})

	require.Len(t, out.Messages, 6)
	assert.Equal(t, prior, out.Messages[:4])
	assert.Equal(t, llm.User("continue"), out.Messages[4])
	assert.Equal(t, llm.Assistant("Sure."), out.Messages[5])
	assert.Equal(t, "continue", out.UserQuery)
	assert.Equal(t, "proj-9", out.ProjectID)

	latest, err := store.Latest(context.Background(), "t1")
	require.NoError(t, err)
	assert.NotEqual(t, seeded.CheckpointID, latest.CheckpointID)
	assert.Equal(t, seeded.CheckpointID, latest.ParentCheckpointID)
	assert.Equal(t, 2, store.Len())
}

func TestResume_FreshConversation(t *testing.T) {
	corrupt := checkpoint.NewMemoryStore()
	require.NoError(t, corrupt.Put(context.Background(), checkpoint.New("bad", []byte(`{"messages": "nope"}`))))

	tests := []struct {
		name   string
		store  checkpoint.Store
		thread string
	}{
		{"no store", nil, "t1"},
		{"unknown thread", checkpoint.NewMemoryStore(), "missing"},
		{"undecodable checkpoint", corrupt, "bad"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var opts []agent.Option
			if tt.store != nil {
				opts = append(opts, agent.WithCheckpointStore(tt.store))
			}
			a := newAgent(t, scripted("general_chat", "hi there"), opts...)

			out := a.Resume(context.Background(), tt.thread, "hello", agent.RunConfig{})

			assert.Equal(t, []llm.Message{llm.User("hello"), llm.Assistant("hi there")}, out.Messages)
			assert.Equal(t, "hi there", out.Explanation)
		})
	}
}

func TestResume_ProjectOverride(t *testing.T) {
	store := checkpoint.NewMemoryStore()
	seedThread(t, store, "t1", agent.State{ProjectID: "old"})
	retriever := &fakeRetriever{}
	a := newAgent(t, scripted("code_debug", "fixed"), agent.WithCheckpointStore(store), agent.WithRetriever(retriever))

	out := a.Resume(context.Background(), "t1", "still broken", agent.RunConfig{ProjectID: "new"})

	assert.Equal(t, "new", out.ProjectID)
	assert.Equal(t, "new", retriever.projectID)
}

func TestHistory(t *testing.T) {
	store := checkpoint.NewMemoryStore()
	a := newAgent(t, scripted("general_chat", "ok"), agent.WithCheckpointStore(store))
	ctx := context.Background()

	a.Ask(ctx, "first", agent.RunConfig{ThreadID: "t1"})
	a.Resume(ctx, "t1", "second", agent.RunConfig{})

	history, err := a.History(ctx, "t1", 0)
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, "second", history[0].State.UserQuery)
	assert.Equal(t, "first", history[1].State.UserQuery)
	assert.Equal(t, history[1].CheckpointID, history[0].ParentCheckpointID)
	assert.Len(t, history[0].State.Messages, 4)

	limited, err := a.History(ctx, "t1", 1)
	require.NoError(t, err)
	assert.Len(t, limited, 1)

	empty, err := a.History(ctx, "nobody", 5)
	require.NoError(t, err)
	assert.Empty(t, empty)
}

func TestHistory_NoStore(t *testing.T) {
	a := newAgent(t, scripted("general_chat", "ok"))

	_, err := a.History(context.Background(), "t1", 5)
	assert.ErrorIs(t, err, agent.ErrNoCheckpointStore)
}

func TestForget(t *testing.T) {
	store := checkpoint.NewMemoryStore()
	a := newAgent(t, scripted("general_chat", "ok"), agent.WithCheckpointStore(store))
	ctx := context.Background()

	a.Ask(ctx, "first", agent.RunConfig{ThreadID: "t1"})
	a.Ask(ctx, "other", agent.RunConfig{ThreadID: "t2"})

	require.NoError(t, a.Forget(ctx, "t1"))
	require.NoError(t, a.Forget(ctx, "unknown"))

	history, err := a.History(ctx, "t1", 0)
	require.NoError(t, err)
	assert.Empty(t, history)
	assert.Equal(t, 1, store.Len())

	out := a.Resume(ctx, "t1", "again", agent.RunConfig{})
	assert.Len(t, out.Messages, 2)
}

func TestForget_Errors(t *testing.T) {
	a := newAgent(t, scripted("general_chat", "ok"))
	assert.ErrorIs(t, a.Forget(context.Background(), "t1"), agent.ErrNoCheckpointStore)

	store := checkpoint.NewMemoryStore()
	require.NoError(t, store.Close())
	b := newAgent(t, scripted("general_chat", "ok"), agent.WithCheckpointStore(store))

	err := b.Forget(context.Background(), "t1")
	var cpErr *flowgraph.CheckpointError
	require.ErrorAs(t, err, &cpErr)
	assert.Equal(t, "delete", cpErr.Op)
	assert.ErrorIs(t, err, checkpoint.ErrStoreClosed)
}

func TestProcess_ConcurrentRuns(t *testing.T) {
	store := checkpoint.NewMemoryStore()
	a := newAgent(t, scripted("general_chat", "ok"), agent.WithCheckpointStore(store))

	var wg sync.WaitGroup
	results := make([]agent.State, 20)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i] = a.Ask(context.Background(), fmt.Sprintf("q%d", i), agent.RunConfig{ThreadID: fmt.Sprintf("t%d", i%4)})
		}(i)
	}
	wg.Wait()

	for i, r := range results {
		assert.Equal(t, "ok", r.Explanation)
		assert.Equal(t, fmt.Sprintf("q%d", i), r.UserQuery)
	}
	assert.Equal(t, 20, store.Len())
}
