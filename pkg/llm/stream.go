package llm

import (
	"context"
	"strings"
)

// Collect drains a stream into one string. It stops at the first chunk
// carrying an error, or when ctx ends.
func Collect(ctx context.Context, chunks <-chan StreamChunk) (string, error) {
	var sb strings.Builder
	for {
		select {
		case <-ctx.Done():
			return sb.String(), ctx.Err()
		case chunk, ok := <-chunks:
			if !ok {
				return sb.String(), nil
			}
			if chunk.Err != nil {
				return sb.String(), chunk.Err
			}
			sb.WriteString(chunk.Content)
			if chunk.Done {
				return sb.String(), nil
			}
		}
	}
}
