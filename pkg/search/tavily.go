package search

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"time"
	"unicode/utf8"

	fgerrors "github.com/bytebuddhi/agentgraph/pkg/flowgraph/errors"
)

// DefaultTavilyEndpoint is the Tavily search API.
const DefaultTavilyEndpoint = "https://api.tavily.com/search"

// Tavily is a Searcher backed by the Tavily API.
type Tavily struct {
	apiKey     string
	endpoint   string
	httpClient *http.Client
	defaults   Options
	retry      fgerrors.RetryConfig
	logger     *slog.Logger
}

// TavilyOption configures a Tavily client.
type TavilyOption func(*Tavily)

// WithEndpoint overrides the API URL.
func WithEndpoint(url string) TavilyOption {
	return func(t *Tavily) { t.endpoint = url }
}

// WithHTTPClient sets the HTTP client.
func WithHTTPClient(c *http.Client) TavilyOption {
	return func(t *Tavily) {
		if c != nil {
			t.httpClient = c
		}
	}
}

// WithDefaults sets the options applied before per-call options.
func WithDefaults(opts ...Option) TavilyOption {
	return func(t *Tavily) {
		for _, opt := range opts {
			opt(&t.defaults)
		}
	}
}

// WithRetry sets the retry policy for transient failures.
func WithRetry(cfg fgerrors.RetryConfig) TavilyOption {
	return func(t *Tavily) { t.retry = cfg }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) TavilyOption {
	return func(t *Tavily) {
		if l != nil {
			t.logger = l
		}
	}
}

// NewTavily creates a client. It returns ErrNotConfigured without an API key.
func NewTavily(apiKey string, opts ...TavilyOption) (*Tavily, error) {
	if apiKey == "" {
		return nil, ErrNotConfigured
	}
	t := &Tavily{
		apiKey:     apiKey,
		endpoint:   DefaultTavilyEndpoint,
		httpClient: &http.Client{Timeout: 30 * time.Second},
		defaults: Options{
			MaxResults:    DefaultMaxResults,
			Depth:         DepthBasic,
			IncludeAnswer: true,
		},
		retry:  fgerrors.DefaultRetry,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(t)
	}
	return t, nil
}

type tavilyRequest struct {
	Query             string `json:"query"`
	MaxResults        int    `json:"max_results"`
	SearchDepth       Depth  `json:"search_depth"`
	IncludeAnswer     bool   `json:"include_answer"`
	IncludeRawContent bool   `json:"include_raw_content"`
	IncludeImages     bool   `json:"include_images"`
}

// Search implements Searcher.
func (t *Tavily) Search(ctx context.Context, query string, opts ...Option) (*Result, error) {
	o := t.defaults
	for _, opt := range opts {
		opt(&o)
	}

	body, err := json.Marshal(tavilyRequest{
		Query:             query,
		MaxResults:        o.MaxResults,
		SearchDepth:       o.Depth,
		IncludeAnswer:     o.IncludeAnswer,
		IncludeRawContent: o.IncludeRawContent,
		IncludeImages:     o.IncludeImages,
	})
	if err != nil {
		return nil, fmt.Errorf("encode search request: %w", err)
	}

	t.logger.Info("web search starting",
		"max_results", o.MaxResults,
		"search_depth", string(o.Depth),
	)

	retry := t.retry
	retry.OnRetry = func(attempt int, err error, wait time.Duration) {
		t.logger.Warn("web search retrying",
			"attempt", attempt,
			"error", err.Error(),
			"wait_ms", wait.Milliseconds(),
		)
	}

	result, err := fgerrors.Do(ctx, retry, func(ctx context.Context) (*Result, error) {
		return t.do(ctx, body)
	})
	if err != nil {
		t.logger.Error("web search failed", "error", err.Error())
		return nil, fmt.Errorf("web search failed: %w", err)
	}

	if result.Query == "" {
		result.Query = query
	}
	t.logger.Info("web search completed",
		"num_results", len(result.Results),
		"has_answer", result.Answer != "",
	)
	return result, nil
}

func (t *Tavily) do(ctx context.Context, body []byte) (*Result, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fgerrors.Permanent(err, "build request")
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+t.apiKey)

	resp, err := t.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return nil, fgerrors.Transient(err, "read response")
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &fgerrors.HTTPError{
			StatusCode: resp.StatusCode,
			Message:    errorMessage(data),
			Endpoint:   t.endpoint,
			RetryAfter: retryAfter(resp.Header.Get("Retry-After")),
		}
	}

	var result Result
	if err := json.Unmarshal(data, &result); err != nil {
		return nil, fgerrors.Permanent(fmt.Errorf("decode search response: %w", err), "decode")
	}
	return &result, nil
}

// FormatForContext implements Searcher.
func (t *Tavily) FormatForContext(result *Result) string {
	return Format(result)
}

// errorMessage extracts Tavily's {"detail": {"error": ...}} or falls back
// to the raw body.
func errorMessage(body []byte) string {
	var payload struct {
		Detail json.RawMessage `json:"detail"`
	}
	if json.Unmarshal(body, &payload) == nil && len(payload.Detail) > 0 {
		var nested struct {
			Error string `json:"error"`
		}
		if json.Unmarshal(payload.Detail, &nested) == nil && nested.Error != "" {
			return nested.Error
		}
		var s string
		if json.Unmarshal(payload.Detail, &s) == nil && s != "" {
			return s
		}
	}
	return truncateBody(body, maxErrorBody)
}

const maxErrorBody = 200

// truncateBody cuts body to at most n bytes without splitting a rune.
func truncateBody(body []byte, n int) string {
	if len(body) <= n {
		return string(body)
	}
	for n > 0 && !utf8.RuneStart(body[n]) {
		n--
	}
	return string(body[:n])
}

// retryAfter parses a Retry-After header given in seconds.
func retryAfter(v string) time.Duration {
	if v == "" {
		return 0
	}
	secs, err := strconv.Atoi(v)
	if err != nil || secs < 0 {
		return 0
	}
	return time.Duration(secs) * time.Second
}

var _ Searcher = (*Tavily)(nil)
