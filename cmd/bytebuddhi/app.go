package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/bytebuddhi/agentgraph/pkg/agent"
	"github.com/bytebuddhi/agentgraph/pkg/flowgraph/checkpoint"
	"github.com/bytebuddhi/agentgraph/pkg/flowgraph/observability"
	"github.com/bytebuddhi/agentgraph/pkg/llm"
	"github.com/bytebuddhi/agentgraph/pkg/llm/anthropic"
	_ "github.com/bytebuddhi/agentgraph/pkg/llm/claudecli" // registers "claude-cli"
	_ "github.com/bytebuddhi/agentgraph/pkg/llm/openai"    // registers "openai"
	"github.com/bytebuddhi/agentgraph/pkg/retrieval"
	"github.com/bytebuddhi/agentgraph/pkg/search"
	"github.com/bytebuddhi/agentgraph/pkg/settings"
	"github.com/bytebuddhi/agentgraph/pkg/telemetry"
)

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

// app owns everything a command needs and releases it on Close.
type app struct {
	settings settings.Settings
	logger   *slog.Logger
	agent    *agent.Agent
	closers  []func(context.Context) error
}

func newApp(ctx context.Context, s settings.Settings, logger *slog.Logger) (_ *app, err error) {
	a := &app{settings: s, logger: logger}
	defer func() {
		if err != nil {
			a.Close(ctx)
		}
	}()

	shutdown, err := telemetry.Init(ctx, telemetry.Config{
		Enabled:     s.Telemetry.Enabled,
		Endpoint:    s.Telemetry.Endpoint,
		ServiceName: s.Telemetry.ServiceName,
		Version:     version,
		Insecure:    s.Telemetry.Insecure,
	}, logger)
	if err != nil {
		return nil, err
	}
	a.closers = append(a.closers, shutdown)

	client, err := llm.New(s.LLM.Provider, providerConfig(s.LLM))
	if err != nil {
		return nil, fmt.Errorf("llm provider %q: %w", s.LLM.Provider, err)
	}

	opts := []agent.Option{agent.WithLogger(logger)}
	if s.Telemetry.Enabled {
		opts = append(opts,
			agent.WithMetrics(observability.NewMetricsRecorder()),
			agent.WithTracing(observability.NewSpanManager()))
	}

	searcher, err := newSearcher(s.Search, logger)
	if err != nil {
		return nil, err
	}
	if searcher != nil {
		opts = append(opts, agent.WithSearcher(searcher))
	}

	retriever, err := newRetriever(ctx, s.Retrieval, client, logger)
	if err != nil {
		return nil, err
	}
	if retriever != nil {
		a.closers = append(a.closers, func(context.Context) error { return retriever.Close() })
		opts = append(opts, agent.WithRetriever(retriever))
	}

	store, err := openStore(ctx, s.Checkpoint)
	if err != nil {
		return nil, err
	}
	a.closers = append(a.closers, func(context.Context) error { return store.Close() })
	opts = append(opts, agent.WithCheckpointStore(store))

	a.agent, err = agent.New(client, opts...)
	if err != nil {
		return nil, err
	}
	return a, nil
}

// Close releases resources in reverse order of acquisition.
func (a *app) Close(ctx context.Context) {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		errs = append(errs, a.closers[i](ctx))
	}
	a.closers = nil
	if err := errors.Join(errs...); err != nil {
		a.logger.Warn("shutdown", "error", err)
	}
}

// providerConfig picks the credentials of the selected provider.
func providerConfig(s settings.LLM) llm.ProviderConfig {
	cfg := llm.ProviderConfig{
		APIKey:         s.APIKey,
		Model:          s.Model,
		BaseURL:        s.BaseURL,
		EmbeddingModel: s.EmbeddingModel,
		Timeout:        s.Timeout,
		MaxRetries:     s.MaxRetries,
		Command:        s.Command,
	}
	if s.Provider == anthropic.ProviderName {
		cfg.APIKey = s.Anthropic.APIKey
		cfg.Model = s.Anthropic.Model
		cfg.BaseURL = s.Anthropic.BaseURL
		cfg.EmbeddingModel = ""
	}
	return cfg
}

// newSearcher returns nil when no Tavily key is configured.
func newSearcher(cfg settings.Search, logger *slog.Logger) (search.Searcher, error) {
	if cfg.APIKey == "" {
		logger.Debug("web search disabled: no API key")
		return nil, nil
	}
	opts := []search.TavilyOption{
		search.WithLogger(logger),
		search.WithDefaults(
			search.WithMaxResults(cfg.MaxResults),
			search.WithDepth(search.Depth(cfg.Depth)),
			search.WithAnswer(cfg.IncludeAnswer),
		),
	}
	if cfg.Endpoint != "" {
		opts = append(opts, search.WithEndpoint(cfg.Endpoint))
	}
	return search.NewTavily(cfg.APIKey, opts...)
}

// newRetriever returns nil when retrieval is disabled. The LLM client must
// also produce embeddings.
func newRetriever(ctx context.Context, cfg settings.Retrieval, client llm.Client, logger *slog.Logger) (*retrieval.PGVector, error) {
	if !cfg.Enabled {
		return nil, nil
	}
	embedder, ok := client.(llm.Embedder)
	if !ok {
		return nil, errors.New("retrieval needs an llm provider that supports embeddings")
	}
	return retrieval.OpenPGVector(ctx, cfg.DatabaseURL, embedder,
		retrieval.WithTopK(cfg.TopK),
		retrieval.WithMinScore(cfg.MinScore),
		retrieval.WithLogger(logger))
}

// openStore opens the configured checkpoint backend.
func openStore(ctx context.Context, cfg settings.Checkpoint) (checkpoint.Store, error) {
	switch cfg.Backend {
	case settings.BackendMemory:
		return checkpoint.NewMemoryStore(), nil
	case settings.BackendSQLite:
		return checkpoint.NewSQLiteStore(cfg.SQLitePath)
	case settings.BackendPostgres:
		store, err := checkpoint.OpenPostgresStore(ctx, cfg.PostgresURL)
		if err != nil {
			return nil, err
		}
		if err := store.Migrate(ctx); err != nil {
			store.Close()
			return nil, err
		}
		return store, nil
	case settings.BackendRedis:
		var opts []checkpoint.RedisOption
		if cfg.RedisPrefix != "" {
			opts = append(opts, checkpoint.WithRedisPrefix(cfg.RedisPrefix))
		}
		return checkpoint.OpenRedisStore(ctx, cfg.RedisURL, opts...)
	default:
		return nil, fmt.Errorf("unknown checkpoint backend %q", cfg.Backend)
	}
}
