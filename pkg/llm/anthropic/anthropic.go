// Package anthropic provides the "anthropic" llm provider backed by
// anthropic-sdk-go. Anthropic has no embedding models, so this client is
// not an llm.Embedder.
package anthropic

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	fgerrors "github.com/bytebuddhi/agentgraph/pkg/flowgraph/errors"
	"github.com/bytebuddhi/agentgraph/pkg/llm"
)

// ProviderName is the registry name of this provider.
const ProviderName = "anthropic"

const (
	DefaultModel = "claude-3-5-sonnet-20241022"
	// DefaultMaxTokens applies when a call sets no limit; the Messages API
	// requires one.
	DefaultMaxTokens = 4096
)

// ErrMissingAPIKey is returned by New without an API key.
var ErrMissingAPIKey = errors.New("anthropic: API key is required")

func init() {
	if err := llm.Register(ProviderName, func(cfg llm.ProviderConfig) (llm.Client, error) {
		return New(cfg)
	}); err != nil {
		panic(err)
	}
}

// Client implements llm.Client.
type Client struct {
	client anthropic.Client
	model  string
}

// New creates a client. MaxRetries and Timeout are handed to the SDK.
func New(cfg llm.ProviderConfig) (*Client, error) {
	if cfg.APIKey == "" {
		return nil, ErrMissingAPIKey
	}

	opts := []option.RequestOption{
		option.WithAPIKey(cfg.APIKey),
		option.WithMaxRetries(max(cfg.MaxRetries, 0)),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}
	if cfg.Timeout > 0 {
		opts = append(opts, option.WithRequestTimeout(cfg.Timeout))
	}

	c := &Client{
		client: anthropic.NewClient(opts...),
		model:  cfg.Model,
	}
	if c.model == "" {
		c.model = DefaultModel
	}
	return c, nil
}

// Model returns the model name.
func (c *Client) Model() string { return c.model }

// Generate implements llm.Client. Text blocks of the reply are concatenated.
func (c *Client) Generate(ctx context.Context, messages []llm.Message, opts ...llm.Option) (string, error) {
	resp, err := c.client.Messages.New(ctx, c.params(messages, opts))
	if err != nil {
		return "", wrapError("messages", err)
	}

	var b strings.Builder
	for _, block := range resp.Content {
		if block.Type == "text" {
			b.WriteString(block.Text)
		}
	}
	if b.Len() == 0 {
		return "", llm.ErrEmptyResponse
	}
	return b.String(), nil
}

// Stream implements llm.Client. Request failures arrive as the final
// chunk's Err.
func (c *Client) Stream(ctx context.Context, messages []llm.Message, opts ...llm.Option) (<-chan llm.StreamChunk, error) {
	stream := c.client.Messages.NewStreaming(ctx, c.params(messages, opts))
	out := make(chan llm.StreamChunk)

	go func() {
		defer close(out)
		defer stream.Close()

		send := func(chunk llm.StreamChunk) bool {
			select {
			case out <- chunk:
				return true
			case <-ctx.Done():
				return false
			}
		}

		for stream.Next() {
			event, ok := stream.Current().AsAny().(anthropic.ContentBlockDeltaEvent)
			if !ok {
				continue
			}
			delta, ok := event.Delta.AsAny().(anthropic.TextDelta)
			if !ok || delta.Text == "" {
				continue
			}
			if !send(llm.StreamChunk{Content: delta.Text}) {
				return
			}
		}
		if err := stream.Err(); err != nil {
			send(llm.StreamChunk{Err: wrapError("messages", err)})
			return
		}
		send(llm.StreamChunk{Done: true})
	}()

	return out, nil
}

// params maps messages onto the Messages API: system messages become the
// system prompt, everything else alternates user and assistant turns.
func (c *Client) params(messages []llm.Message, opts []llm.Option) anthropic.MessageNewParams {
	o := llm.ApplyOptions(opts...)

	maxTokens := int64(DefaultMaxTokens)
	if o.MaxTokens > 0 {
		maxTokens = int64(o.MaxTokens)
	}
	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(c.model),
		MaxTokens: maxTokens,
		// The API accepts temperatures up to 1.
		Temperature: anthropic.Float(min(o.Temperature, 1)),
	}

	for _, msg := range messages {
		switch msg.Role {
		case llm.RoleSystem:
			params.System = append(params.System, anthropic.TextBlockParam{Text: msg.Content})
		case llm.RoleAssistant:
			params.Messages = append(params.Messages, anthropic.NewAssistantMessage(anthropic.NewTextBlock(msg.Content)))
		default:
			params.Messages = append(params.Messages, anthropic.NewUserMessage(anthropic.NewTextBlock(msg.Content)))
		}
	}
	return params
}

// wrapError maps API errors onto HTTPError so callers can categorize them.
func wrapError(endpoint string, err error) error {
	var apiErr *anthropic.Error
	if errors.As(err, &apiErr) {
		return fmt.Errorf("anthropic: %w", &fgerrors.HTTPError{
			StatusCode: apiErr.StatusCode,
			Message:    errorMessage(apiErr.RawJSON(), apiErr.StatusCode),
			Endpoint:   endpoint,
		})
	}
	return fmt.Errorf("anthropic: %w", err)
}

// errorMessage reads {"type":"error","error":{"message":...}}.
func errorMessage(raw string, status int) string {
	var body struct {
		Error struct {
			Message string `json:"message"`
		} `json:"error"`
	}
	if json.Unmarshal([]byte(raw), &body) == nil && body.Error.Message != "" {
		return body.Error.Message
	}
	return http.StatusText(status)
}

var _ llm.Client = (*Client)(nil)
