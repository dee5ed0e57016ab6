package agent

import (
	"context"

	"github.com/bytebuddhi/agentgraph/pkg/llm"
)

type samplingKey struct{}

// withSampling attaches per-run LLM options to ctx.
func withSampling(ctx context.Context, opts []llm.Option) context.Context {
	if len(opts) == 0 {
		return ctx
	}
	return context.WithValue(ctx, samplingKey{}, opts)
}

func samplingFrom(ctx context.Context) []llm.Option {
	opts, _ := ctx.Value(samplingKey{}).([]llm.Option)
	return opts
}
