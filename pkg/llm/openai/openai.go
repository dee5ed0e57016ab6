// Package openai provides the "openai" llm provider backed by openai-go.
// It works against api.openai.com and any OpenAI-compatible endpoint set
// through ProviderConfig.BaseURL.
package openai

import (
	"context"
	"errors"
	"fmt"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	fgerrors "github.com/bytebuddhi/agentgraph/pkg/flowgraph/errors"
	"github.com/bytebuddhi/agentgraph/pkg/llm"
)

// ProviderName is the registry name of this provider.
const ProviderName = "openai"

// Defaults applied when ProviderConfig leaves a field empty.
const (
	DefaultModel          = "gpt-4-turbo-preview"
	DefaultEmbeddingModel = "text-embedding-3-small"
)

// ErrMissingAPIKey is returned by New without an API key.
var ErrMissingAPIKey = errors.New("openai: API key is required")

func init() {
	if err := llm.Register(ProviderName, func(cfg llm.ProviderConfig) (llm.Client, error) {
		return New(cfg)
	}); err != nil {
		panic(err)
	}
}

// Client implements llm.Client and llm.Embedder.
type Client struct {
	client         openai.Client
	model          string
	embeddingModel string
}

// New creates a client. MaxRetries and Timeout are handed to openai-go,
// which retries 429 and 5xx responses itself.
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
		client:         openai.NewClient(opts...),
		model:          cfg.Model,
		embeddingModel: cfg.EmbeddingModel,
	}
	if c.model == "" {
		c.model = DefaultModel
	}
	if c.embeddingModel == "" {
		c.embeddingModel = DefaultEmbeddingModel
	}
	return c, nil
}

// Model returns the chat model name.
func (c *Client) Model() string { return c.model }

// Generate implements llm.Client.
func (c *Client) Generate(ctx context.Context, messages []llm.Message, opts ...llm.Option) (string, error) {
	resp, err := c.client.Chat.Completions.New(ctx, c.params(messages, opts))
	if err != nil {
		return "", wrapError("chat/completions", err)
	}
	if len(resp.Choices) == 0 {
		return "", llm.ErrEmptyResponse
	}
	return resp.Choices[0].Message.Content, nil
}

// Stream implements llm.Client. Request failures arrive as the final
// chunk's Err.
func (c *Client) Stream(ctx context.Context, messages []llm.Message, opts ...llm.Option) (<-chan llm.StreamChunk, error) {
	stream := c.client.Chat.Completions.NewStreaming(ctx, c.params(messages, opts))
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
			chunk := stream.Current()
			if len(chunk.Choices) == 0 || chunk.Choices[0].Delta.Content == "" {
				continue
			}
			if !send(llm.StreamChunk{Content: chunk.Choices[0].Delta.Content}) {
				return
			}
		}
		if err := stream.Err(); err != nil {
			send(llm.StreamChunk{Err: wrapError("chat/completions", err)})
			return
		}
		send(llm.StreamChunk{Done: true})
	}()

	return out, nil
}

// Embed implements llm.Embedder.
func (c *Client) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	resp, err := c.client.Embeddings.New(ctx, openai.EmbeddingNewParams{
		Input:          openai.EmbeddingNewParamsInputUnion{OfArrayOfStrings: texts},
		Model:          openai.EmbeddingModel(c.embeddingModel),
		EncodingFormat: openai.EmbeddingNewParamsEncodingFormatFloat,
	})
	if err != nil {
		return nil, wrapError("embeddings", err)
	}
	if len(resp.Data) != len(texts) {
		return nil, fmt.Errorf("openai: got %d embeddings for %d inputs", len(resp.Data), len(texts))
	}

	vectors := make([][]float32, len(texts))
	for _, d := range resp.Data {
		if d.Index < 0 || int(d.Index) >= len(texts) {
			return nil, fmt.Errorf("openai: embedding index %d out of range", d.Index)
		}
		vec := make([]float32, len(d.Embedding))
		for i, v := range d.Embedding {
			vec[i] = float32(v)
		}
		vectors[d.Index] = vec
	}
	return vectors, nil
}

func (c *Client) params(messages []llm.Message, opts []llm.Option) openai.ChatCompletionNewParams {
	o := llm.ApplyOptions(opts...)
	params := openai.ChatCompletionNewParams{
		Model:       openai.ChatModel(c.model),
		Messages:    convertMessages(messages),
		Temperature: openai.Float(o.Temperature),
	}
	if o.MaxTokens > 0 {
		params.MaxCompletionTokens = openai.Int(int64(o.MaxTokens))
	}
	return params
}

func convertMessages(messages []llm.Message) []openai.ChatCompletionMessageParamUnion {
	result := make([]openai.ChatCompletionMessageParamUnion, len(messages))
	for i, msg := range messages {
		switch msg.Role {
		case llm.RoleSystem:
			result[i] = openai.SystemMessage(msg.Content)
		case llm.RoleAssistant:
			result[i] = openai.AssistantMessage(msg.Content)
		default:
			result[i] = openai.UserMessage(msg.Content)
		}
	}
	return result
}

// wrapError maps API errors onto HTTPError so callers can categorize them.
func wrapError(endpoint string, err error) error {
	var apiErr *openai.Error
	if errors.As(err, &apiErr) {
		return fmt.Errorf("openai: %w", &fgerrors.HTTPError{
			StatusCode: apiErr.StatusCode,
			Message:    apiErr.Message,
			Endpoint:   endpoint,
		})
	}
	return fmt.Errorf("openai: %w", err)
}

var (
	_ llm.Client   = (*Client)(nil)
	_ llm.Embedder = (*Client)(nil)
)
