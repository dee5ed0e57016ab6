package llm

import (
	"context"
	"slices"
	"strings"
	"sync"
)

// Call records one request made to a MockClient.
type Call struct {
	Messages []Message
	Options  Options
}

// MockClient is a scripted Client for tests. Responses are returned in
// order and cycle; a handler, when set, decides instead.
type MockClient struct {
	mu        sync.Mutex
	responses []string
	next      int
	err       error
	handler   func(call Call) (string, error)
	calls     []Call
}

// NewMockClient returns a client that always answers response.
func NewMockClient(response string) *MockClient {
	return &MockClient{responses: []string{response}}
}

// WithResponses replaces the scripted responses.
func (m *MockClient) WithResponses(responses ...string) *MockClient {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.responses = responses
	m.next = 0
	return m
}

// WithError makes every call fail with err.
func (m *MockClient) WithError(err error) *MockClient {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.err = err
	return m
}

// WithHandler answers each call with fn.
func (m *MockClient) WithHandler(fn func(call Call) (string, error)) *MockClient {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.handler = fn
	return m
}

// Generate implements Client.
func (m *MockClient) Generate(ctx context.Context, messages []Message, opts ...Option) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	call := Call{Messages: slices.Clone(messages), Options: ApplyOptions(opts...)}

	m.mu.Lock()
	m.calls = append(m.calls, call)
	handler, err := m.handler, m.err
	var response string
	if handler == nil && err == nil && len(m.responses) > 0 {
		response = m.responses[m.next%len(m.responses)]
		m.next++
	}
	m.mu.Unlock()

	if handler != nil {
		return handler(call)
	}
	if err != nil {
		return "", err
	}
	return response, nil
}

// Stream implements Client by splitting the Generate result into words.
func (m *MockClient) Stream(ctx context.Context, messages []Message, opts ...Option) (<-chan StreamChunk, error) {
	response, err := m.Generate(ctx, messages, opts...)
	if err != nil {
		return nil, err
	}
	parts := strings.SplitAfter(response, " ")
	ch := make(chan StreamChunk, len(parts)+1)
	for _, p := range parts {
		if p != "" {
			ch <- StreamChunk{Content: p}
		}
	}
	ch <- StreamChunk{Done: true}
	close(ch)
	return ch, nil
}

// CallCount returns the number of calls made.
func (m *MockClient) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.calls)
}

// Calls returns a copy of the recorded calls.
func (m *MockClient) Calls() []Call {
	m.mu.Lock()
	defer m.mu.Unlock()
	return slices.Clone(m.calls)
}

// LastCall returns the most recent call, or nil.
func (m *MockClient) LastCall() *Call {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.calls) == 0 {
		return nil
	}
	c := m.calls[len(m.calls)-1]
	return &c
}

// Reset clears recorded calls and rewinds the responses.
func (m *MockClient) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = nil
	m.next = 0
}

var _ Client = (*MockClient)(nil)
