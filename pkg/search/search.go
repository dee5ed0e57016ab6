// Package search defines the web search port and its Tavily implementation.
package search

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// ErrNotConfigured is returned when a search client is built without credentials.
var ErrNotConfigured = errors.New("search: API key not configured")

// Item is one ranked web result.
type Item struct {
	Title   string  `json:"title"`
	URL     string  `json:"url"`
	Content string  `json:"content"`
	Score   float64 `json:"score"`
	// RawContent is only filled when requested.
	RawContent string `json:"raw_content,omitempty"`
}

// Result is the structured response of one search.
type Result struct {
	Query   string   `json:"query"`
	Answer  string   `json:"answer,omitempty"`
	Results []Item   `json:"results"`
	Images  []string `json:"images,omitempty"`
}

// Depth selects how thorough the search is.
type Depth string

// Search depths.
const (
	DepthBasic    Depth = "basic"
	DepthAdvanced Depth = "advanced"
)

// DefaultMaxResults is the result count when none is configured.
const DefaultMaxResults = 5

// Options are the parameters of one search.
type Options struct {
	MaxResults        int
	Depth             Depth
	IncludeAnswer     bool
	IncludeRawContent bool
	IncludeImages     bool
}

// Option sets a search parameter.
type Option func(*Options)

// WithMaxResults limits the number of results.
func WithMaxResults(n int) Option {
	return func(o *Options) {
		if n > 0 {
			o.MaxResults = n
		}
	}
}

// WithDepth sets the search depth.
func WithDepth(d Depth) Option {
	return func(o *Options) { o.Depth = d }
}

// WithAnswer toggles the generated short answer.
func WithAnswer(include bool) Option {
	return func(o *Options) { o.IncludeAnswer = include }
}

// WithRawContent requests the page content alongside the snippet.
func WithRawContent(include bool) Option {
	return func(o *Options) { o.IncludeRawContent = include }
}

// WithImages requests related image URLs.
func WithImages(include bool) Option {
	return func(o *Options) { o.IncludeImages = include }
}

// Searcher performs web searches. Implementations must be safe for
// concurrent use.
type Searcher interface {
	Search(ctx context.Context, query string, opts ...Option) (*Result, error)
	FormatForContext(result *Result) string
}

// Format renders a result as prompt context. The output depends only on
// the result, so equal results format identically.
func Format(result *Result) string {
	if result == nil {
		return ""
	}

	var lines []string
	if result.Answer != "" {
		lines = append(lines, fmt.Sprintf("**Quick Answer:** %s\n", result.Answer))
	}
	if len(result.Results) > 0 {
		lines = append(lines, "**Web Search Results:**\n")
		for i, item := range result.Results {
			title := item.Title
			if title == "" {
				title = "No title"
			}
			lines = append(lines,
				fmt.Sprintf("%d. **%s**", i+1, title),
				fmt.Sprintf("   URL: %s", item.URL),
				fmt.Sprintf("   %s\n", item.Content),
			)
		}
	}
	return strings.Join(lines, "\n")
}

// KeyInformation returns the answer followed by the content of the top
// three results, skipping empty entries.
func KeyInformation(result *Result) []string {
	if result == nil {
		return nil
	}
	var snippets []string
	if result.Answer != "" {
		snippets = append(snippets, result.Answer)
	}
	for _, item := range result.Results[:min(3, len(result.Results))] {
		if item.Content != "" {
			snippets = append(snippets, item.Content)
		}
	}
	return snippets
}
