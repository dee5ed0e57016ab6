package llm

import (
	"errors"
	"fmt"
	"time"

	"github.com/bytebuddhi/agentgraph/pkg/flowgraph/registry"
)

// ErrUnknownProvider is returned by New for unregistered provider names.
var ErrUnknownProvider = errors.New("llm: unknown provider")

// ProviderConfig configures a provider instance.
type ProviderConfig struct {
	APIKey string
	Model  string
	// BaseURL points an OpenAI-compatible provider at another endpoint.
	BaseURL        string
	EmbeddingModel string
	Timeout        time.Duration
	MaxRetries     int
	// Command is the executable of a CLI-backed provider.
	Command string
}

// Factory builds a Client from configuration.
type Factory func(cfg ProviderConfig) (Client, error)

var providers = registry.New[string, Factory]()

// Register makes a provider available under name. Providers register
// from init; registering a name twice is an error.
func Register(name string, factory Factory) error {
	if name == "" || factory == nil {
		return errors.New("llm: provider name and factory are required")
	}
	return providers.Add(name, factory)
}

// New builds the named provider.
func New(name string, cfg ProviderConfig) (Client, error) {
	factory, ok := providers.Get(name)
	if !ok {
		return nil, fmt.Errorf("%w: %q (registered: %v)", ErrUnknownProvider, name, providers.Keys())
	}
	return factory(cfg)
}

// Providers lists the registered provider names in sorted order.
func Providers() []string {
	return providers.Keys()
}
