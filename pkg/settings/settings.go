// Package settings loads the application configuration.
//
// Values are layered, later layers winning:
//
//  1. built-in defaults
//  2. an optional YAML (or JSON) file
//  3. .env files
//  4. well-known environment variables (OPENAI_API_KEY, TAVILY_API_KEY,
//     DATABASE_URL, REDIS_URL, OTEL_EXPORTER_OTLP_ENDPOINT)
//  5. BYTEBUDDHI_* variables, with "__" separating nested keys
//     (BYTEBUDDHI_LLM__MODEL sets llm.model)
//
// Real environment variables override values read from .env files.
package settings

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"slices"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/bytebuddhi/agentgraph/pkg/flowgraph/config"
)

// EnvPrefix marks application environment variables.
const EnvPrefix = "BYTEBUDDHI_"

// Checkpoint backends.
const (
	BackendMemory   = "memory"
	BackendSQLite   = "sqlite"
	BackendPostgres = "postgres"
	BackendRedis    = "redis"
)

// Settings is the full application configuration.
type Settings struct {
	LLM        LLM
	Search     Search
	Retrieval  Retrieval
	Checkpoint Checkpoint
	Telemetry  Telemetry
	Log        Log
}

// LLM selects and configures the model provider.
type LLM struct {
	Provider       string
	APIKey         string
	Model          string
	BaseURL        string
	EmbeddingModel string
	Timeout        time.Duration
	MaxRetries     int
	// Command is the binary of a CLI-backed provider such as claude-cli.
	Command string
	// Anthropic holds the credentials of the anthropic provider, kept apart
	// so one settings file can carry both API keys.
	Anthropic Anthropic
	// Temperature and MaxTokens are the per-run sampling defaults.
	Temperature float64
	MaxTokens   int
}

// Anthropic configures the anthropic provider.
type Anthropic struct {
	APIKey  string
	Model   string
	BaseURL string
}

// Search configures the Tavily client. Search is disabled without an API key.
type Search struct {
	APIKey        string
	Endpoint      string
	MaxResults    int
	Depth         string
	IncludeAnswer bool
}

// Retrieval configures the pgvector retriever.
type Retrieval struct {
	Enabled     bool
	DatabaseURL string
	TopK        int
	MinScore    float64
}

// Checkpoint selects the checkpoint backend.
type Checkpoint struct {
	Backend     string
	SQLitePath  string
	PostgresURL string
	RedisURL    string
	RedisPrefix string
}

// Telemetry configures OTLP export.
type Telemetry struct {
	Enabled     bool
	Endpoint    string
	ServiceName string
	Insecure    bool
}

// Log configures the slog handler.
type Log struct {
	Level  string
	Format string
}

// Default returns the built-in defaults.
func Default() Settings {
	return Settings{
		LLM: LLM{
			Provider:       "openai",
			Model:          "gpt-4-turbo-preview",
			EmbeddingModel: "text-embedding-3-small",
			Timeout:        60 * time.Second,
			MaxRetries:     2,
			Temperature:    0.7,
			Anthropic: Anthropic{
				Model: "claude-3-5-sonnet-20241022",
			},
		},
		Search: Search{
			MaxResults:    5,
			Depth:         "basic",
			IncludeAnswer: true,
		},
		Retrieval: Retrieval{
			TopK: 5,
		},
		Checkpoint: Checkpoint{
			Backend:    BackendMemory,
			SQLitePath: "bytebuddhi.db",
		},
		Telemetry: Telemetry{
			ServiceName: "bytebuddhi",
			Insecure:    true,
		},
		Log: Log{
			Level:  "info",
			Format: "text",
		},
	}
}

// Load reads path (optional), ./.env and the process environment.
func Load(path string) (Settings, error) {
	return LoadFrom(path, os.Environ(), ".env")
}

// LoadFrom layers the file at path, the dotenv files and environ over the
// defaults. An empty path skips the file layer; missing dotenv files are
// ignored. The result is validated.
func LoadFrom(path string, environ []string, dotenvFiles ...string) (Settings, error) {
	cfg := config.New(nil)

	if path != "" {
		fileCfg, err := config.FromFile(path)
		if err != nil {
			return Settings{}, err
		}
		cfg = fileCfg
	}

	env, err := mergeEnv(environ, dotenvFiles)
	if err != nil {
		return Settings{}, err
	}
	cfg = cfg.Merge(wellKnown(env))
	cfg = cfg.Merge(config.FromEnv(EnvPrefix, env))

	s := FromConfig(cfg)
	if err := s.Validate(); err != nil {
		return Settings{}, fmt.Errorf("invalid settings: %w", err)
	}
	return s, nil
}

// mergeEnv returns environ with dotenv values added for keys it lacks.
func mergeEnv(environ, dotenvFiles []string) ([]string, error) {
	set := make(map[string]bool, len(environ))
	for _, kv := range environ {
		if k, _, ok := strings.Cut(kv, "="); ok {
			set[k] = true
		}
	}

	out := slices.Clone(environ)
	for _, file := range dotenvFiles {
		values, err := godotenv.Read(file)
		if errors.Is(err, fs.ErrNotExist) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", file, err)
		}
		keys := make([]string, 0, len(values))
		for k := range values {
			keys = append(keys, k)
		}
		slices.Sort(keys)
		for _, k := range keys {
			if set[k] {
				continue
			}
			set[k] = true
			out = append(out, k+"="+values[k])
		}
	}
	return out, nil
}

// wellKnown maps conventional variable names onto settings keys.
func wellKnown(environ []string) config.Config {
	lookup := make(map[string]string, len(environ))
	for _, kv := range environ {
		if k, v, ok := strings.Cut(kv, "="); ok {
			lookup[k] = v
		}
	}

	data := map[string]any{}
	set := func(section, key, envName string) {
		v := lookup[envName]
		if v == "" {
			return
		}
		m, _ := data[section].(map[string]any)
		if m == nil {
			m = map[string]any{}
			data[section] = m
		}
		m[key] = v
	}
	set("llm", "api_key", "OPENAI_API_KEY")
	set("llm", "base_url", "OPENAI_BASE_URL")
	set("llm", "anthropic_api_key", "ANTHROPIC_API_KEY")
	set("llm", "anthropic_base_url", "ANTHROPIC_BASE_URL")
	set("search", "api_key", "TAVILY_API_KEY")
	set("checkpoint", "postgres_url", "DATABASE_URL")
	set("retrieval", "database_url", "DATABASE_URL")
	set("checkpoint", "redis_url", "REDIS_URL")
	set("telemetry", "endpoint", "OTEL_EXPORTER_OTLP_ENDPOINT")
	return config.New(data)
}

// FromConfig reads Settings from cfg, keeping defaults for missing keys.
func FromConfig(cfg config.Config) Settings {
	s := Default()

	l := cfg.Sub("llm")
	s.LLM.Provider = l.String("provider", s.LLM.Provider)
	s.LLM.APIKey = l.String("api_key", s.LLM.APIKey)
	s.LLM.Model = l.String("model", s.LLM.Model)
	s.LLM.BaseURL = l.String("base_url", s.LLM.BaseURL)
	s.LLM.EmbeddingModel = l.String("embedding_model", s.LLM.EmbeddingModel)
	s.LLM.Timeout = l.Duration("timeout", s.LLM.Timeout)
	s.LLM.MaxRetries = l.Int("max_retries", s.LLM.MaxRetries)
	s.LLM.Command = l.String("command", s.LLM.Command)
	s.LLM.Temperature = l.Float("temperature", s.LLM.Temperature)
	s.LLM.MaxTokens = l.Int("max_tokens", s.LLM.MaxTokens)
	s.LLM.Anthropic.APIKey = l.String("anthropic_api_key", s.LLM.Anthropic.APIKey)
	s.LLM.Anthropic.Model = l.String("anthropic_model", s.LLM.Anthropic.Model)
	s.LLM.Anthropic.BaseURL = l.String("anthropic_base_url", s.LLM.Anthropic.BaseURL)

	sr := cfg.Sub("search")
	s.Search.APIKey = sr.String("api_key", s.Search.APIKey)
	s.Search.Endpoint = sr.String("endpoint", s.Search.Endpoint)
	s.Search.MaxResults = sr.Int("max_results", s.Search.MaxResults)
	s.Search.Depth = sr.String("depth", s.Search.Depth)
	s.Search.IncludeAnswer = sr.Bool("include_answer", s.Search.IncludeAnswer)

	r := cfg.Sub("retrieval")
	s.Retrieval.Enabled = r.Bool("enabled", s.Retrieval.Enabled)
	s.Retrieval.DatabaseURL = r.String("database_url", s.Retrieval.DatabaseURL)
	s.Retrieval.TopK = r.Int("top_k", s.Retrieval.TopK)
	s.Retrieval.MinScore = r.Float("min_score", s.Retrieval.MinScore)

	c := cfg.Sub("checkpoint")
	s.Checkpoint.Backend = strings.ToLower(c.String("backend", s.Checkpoint.Backend))
	s.Checkpoint.SQLitePath = c.String("sqlite_path", s.Checkpoint.SQLitePath)
	s.Checkpoint.PostgresURL = c.String("postgres_url", s.Checkpoint.PostgresURL)
	s.Checkpoint.RedisURL = c.String("redis_url", s.Checkpoint.RedisURL)
	s.Checkpoint.RedisPrefix = c.String("redis_prefix", s.Checkpoint.RedisPrefix)

	t := cfg.Sub("telemetry")
	s.Telemetry.Enabled = t.Bool("enabled", s.Telemetry.Enabled)
	s.Telemetry.Endpoint = t.String("endpoint", s.Telemetry.Endpoint)
	s.Telemetry.ServiceName = t.String("service_name", s.Telemetry.ServiceName)
	s.Telemetry.Insecure = t.Bool("insecure", s.Telemetry.Insecure)

	lg := cfg.Sub("log")
	s.Log.Level = lg.String("level", s.Log.Level)
	s.Log.Format = strings.ToLower(lg.String("format", s.Log.Format))

	return s
}

// Validate reports every invalid value at once.
func (s Settings) Validate() error {
	var errs []error

	if s.LLM.Provider == "" {
		errs = append(errs, errors.New("llm.provider is required"))
	}
	if s.LLM.Temperature < 0 || s.LLM.Temperature > 2 {
		errs = append(errs, fmt.Errorf("llm.temperature %v out of range [0, 2]", s.LLM.Temperature))
	}
	if s.LLM.MaxTokens < 0 {
		errs = append(errs, errors.New("llm.max_tokens must not be negative"))
	}

	switch s.Search.Depth {
	case "basic", "advanced":
	default:
		errs = append(errs, fmt.Errorf("search.depth %q must be basic or advanced", s.Search.Depth))
	}

	if s.Retrieval.Enabled && s.Retrieval.DatabaseURL == "" {
		errs = append(errs, errors.New("retrieval.database_url is required when retrieval is enabled"))
	}

	switch s.Checkpoint.Backend {
	case BackendMemory:
	case BackendSQLite:
		if s.Checkpoint.SQLitePath == "" {
			errs = append(errs, errors.New("checkpoint.sqlite_path is required for the sqlite backend"))
		}
	case BackendPostgres:
		if s.Checkpoint.PostgresURL == "" {
			errs = append(errs, errors.New("checkpoint.postgres_url (or DATABASE_URL) is required for the postgres backend"))
		}
	case BackendRedis:
		if s.Checkpoint.RedisURL == "" {
			errs = append(errs, errors.New("checkpoint.redis_url (or REDIS_URL) is required for the redis backend"))
		}
	default:
		errs = append(errs, fmt.Errorf("checkpoint.backend %q is not one of memory, sqlite, postgres, redis", s.Checkpoint.Backend))
	}

	if s.Telemetry.Enabled && s.Telemetry.Endpoint == "" {
		errs = append(errs, errors.New("telemetry.endpoint is required when telemetry is enabled"))
	}

	if _, err := parseLevel(s.Log.Level); err != nil {
		errs = append(errs, err)
	}
	if s.Log.Format != "text" && s.Log.Format != "json" {
		errs = append(errs, fmt.Errorf("log.format %q must be text or json", s.Log.Format))
	}

	return errors.Join(errs...)
}

// SlogLevel returns the configured log level, or info if it is invalid.
func (l Log) SlogLevel() slog.Level {
	level, err := parseLevel(l.Level)
	if err != nil {
		return slog.LevelInfo
	}
	return level
}

func parseLevel(s string) (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(s)); err != nil {
		return slog.LevelInfo, fmt.Errorf("log.level %q: %w", s, err)
	}
	return level, nil
}

// SearchEnabled reports whether a search client should be built.
func (s Settings) SearchEnabled() bool {
	return s.Search.APIKey != ""
}
