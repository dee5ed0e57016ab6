// Package llm defines the language model port used by the agent: chat
// generation, streaming, and embeddings, plus a name-keyed provider
// registry and a scripted MockClient for tests.
package llm

import (
	"context"
	"errors"
)

// ErrEmptyResponse is returned when a provider answers with no choices.
var ErrEmptyResponse = errors.New("llm: empty response")

// Role identifies the message sender.
type Role string

// Standard message roles.
const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleSystem    Role = "system"
	RoleTool      Role = "tool"
)

// Message is a conversation turn.
type Message struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// System builds a system message.
func System(content string) Message { return Message{Role: RoleSystem, Content: content} }

// User builds a user message.
func User(content string) Message { return Message{Role: RoleUser, Content: content} }

// Assistant builds an assistant message.
func Assistant(content string) Message { return Message{Role: RoleAssistant, Content: content} }

// DefaultTemperature is used when no temperature is given.
const DefaultTemperature = 0.7

// Options are the sampling parameters of one call.
type Options struct {
	Temperature float64
	// MaxTokens of zero leaves the limit to the provider.
	MaxTokens int
}

// Option sets a sampling parameter.
type Option func(*Options)

// WithTemperature sets the sampling temperature.
func WithTemperature(t float64) Option {
	return func(o *Options) { o.Temperature = t }
}

// WithMaxTokens caps the number of generated tokens.
func WithMaxTokens(n int) Option {
	return func(o *Options) {
		if n > 0 {
			o.MaxTokens = n
		}
	}
}

// ApplyOptions resolves opts over the defaults.
func ApplyOptions(opts ...Option) Options {
	o := Options{Temperature: DefaultTemperature}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// StreamChunk is a piece of a streaming response. The final chunk has
// Done set; a failed stream ends with a chunk carrying Err.
type StreamChunk struct {
	Content string
	Done    bool
	Err     error
}

// Client generates chat completions. Implementations must be safe for
// concurrent use.
type Client interface {
	// Generate returns the full completion for messages.
	Generate(ctx context.Context, messages []Message, opts ...Option) (string, error)
	// Stream returns completion chunks on a channel that is closed after
	// the final chunk. The stream cannot be restarted.
	Stream(ctx context.Context, messages []Message, opts ...Option) (<-chan StreamChunk, error)
}

// Embedder turns texts into vectors, one per input in order.
type Embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
}
