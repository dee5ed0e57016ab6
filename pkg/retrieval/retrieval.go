// Package retrieval supplies code context for a query: the Retriever port,
// a Noop implementation and a pgvector-backed one.
package retrieval

import (
	"context"
	"fmt"
	"strings"
)

// Chunk is one piece of retrieved code context.
type Chunk struct {
	Content string `json:"content"`
	// Source identifies where the chunk came from, e.g. "path/file.go:10-42".
	Source string  `json:"source,omitempty"`
	Score  float64 `json:"score,omitempty"`
}

// Retriever returns context chunks ranked by relevance. It returns an empty
// slice when there is no project or no index yet.
type Retriever interface {
	Retrieve(ctx context.Context, projectID, query string) ([]Chunk, error)
}

// Noop never finds anything.
type Noop struct{}

// Retrieve implements Retriever.
func (Noop) Retrieve(context.Context, string, string) ([]Chunk, error) {
	return nil, nil
}

// FormatContext renders chunks for a prompt, or "" when there are none.
func FormatContext(chunks []Chunk) string {
	if len(chunks) == 0 {
		return ""
	}
	blocks := make([]string, len(chunks))
	for i, c := range chunks {
		blocks[i] = fmt.Sprintf("```\n%s\n```", c.Content)
	}
	return "\n\nRelevant code context:\n" + strings.Join(blocks, "\n\n")
}

var _ Retriever = Noop{}
