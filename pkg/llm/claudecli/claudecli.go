// Package claudecli provides an llm.Client that shells out to the claude
// command line tool. It registers itself as the "claude-cli" provider.
//
// The CLI takes a single prompt, so the conversation is flattened: the
// system message becomes --system-prompt and the remaining turns are
// joined into the -p argument. Temperature is not supported by the CLI
// and is ignored.
package claudecli

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os/exec"
	"strconv"
	"strings"
	"time"

	fgerrors "github.com/bytebuddhi/agentgraph/pkg/flowgraph/errors"
	"github.com/bytebuddhi/agentgraph/pkg/llm"
)

// ProviderName is the registry name of this provider.
const ProviderName = "claude-cli"

// DefaultCommand is looked up in PATH when no command is configured.
const DefaultCommand = "claude"

// DefaultTimeout bounds one CLI invocation.
const DefaultTimeout = 5 * time.Minute

func init() {
	if err := llm.Register(ProviderName, func(cfg llm.ProviderConfig) (llm.Client, error) {
		opts := []Option{WithModel(cfg.Model)}
		if cfg.Command != "" {
			opts = append(opts, WithCommand(cfg.Command))
		}
		if cfg.Timeout > 0 {
			opts = append(opts, WithTimeout(cfg.Timeout))
		}
		return New(opts...), nil
	}); err != nil {
		panic(err)
	}
}

// Client implements llm.Client using the claude binary.
type Client struct {
	command      string
	model        string
	workdir      string
	timeout      time.Duration
	allowedTools []string
}

// Option configures Client.
type Option func(*Client)

// New creates a client.
func New(opts ...Option) *Client {
	c := &Client{
		command: DefaultCommand,
		timeout: DefaultTimeout,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// WithCommand sets the path to the claude binary.
func WithCommand(path string) Option {
	return func(c *Client) { c.command = path }
}

// WithModel sets the model passed with --model.
func WithModel(model string) Option {
	return func(c *Client) { c.model = model }
}

// WithWorkdir sets the working directory of the CLI process.
func WithWorkdir(dir string) Option {
	return func(c *Client) { c.workdir = dir }
}

// WithTimeout bounds each invocation. Zero disables the bound.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.timeout = d }
}

// WithAllowedTools passes --allowedTools for each entry.
func WithAllowedTools(tools ...string) Option {
	return func(c *Client) { c.allowedTools = tools }
}

func (c *Client) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if c.timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, c.timeout)
}

// Generate implements llm.Client.
func (c *Client) Generate(ctx context.Context, messages []llm.Message, opts ...llm.Option) (string, error) {
	ctx, cancel := c.withTimeout(ctx)
	defer cancel()

	cmd := c.newCmd(ctx, c.buildArgs(messages, llm.ApplyOptions(opts...)))
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return "", fgerrors.Transient(ctx.Err(), "claude cli")
		}
		return "", categorize(fmt.Errorf("%w: %s", err, strings.TrimSpace(stderr.String())), stderr.String())
	}

	content := strings.TrimSpace(stdout.String())
	if content == "" {
		return "", llm.ErrEmptyResponse
	}
	return content, nil
}

// Stream implements llm.Client using --output-format stream-json. Lines
// that are not JSON events are passed through as text.
func (c *Client) Stream(ctx context.Context, messages []llm.Message, opts ...llm.Option) (<-chan llm.StreamChunk, error) {
	ctx, cancel := c.withTimeout(ctx)

	args := append(c.buildArgs(messages, llm.ApplyOptions(opts...)), "--output-format", "stream-json")
	cmd := c.newCmd(ctx, args)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		cancel()
		return nil, fmt.Errorf("claude cli: stdout pipe: %w", err)
	}
	if err := cmd.Start(); err != nil {
		cancel()
		return nil, fgerrors.Permanent(fmt.Errorf("start: %w", err), "claude cli")
	}

	ch := make(chan llm.StreamChunk)
	go func() {
		defer close(ch)
		defer cancel()

		send := func(chunk llm.StreamChunk) bool {
			select {
			case ch <- chunk:
				return true
			case <-ctx.Done():
				return false
			}
		}

		scanner := bufio.NewScanner(stdout)
		scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
		for scanner.Scan() {
			line := scanner.Text()
			if line == "" {
				continue
			}
			var ev streamEvent
			if err := json.Unmarshal([]byte(line), &ev); err != nil {
				if !send(llm.StreamChunk{Content: line + "\n"}) {
					_ = cmd.Wait()
					return
				}
				continue
			}
			if ev.Type == "content_block_delta" && ev.Delta != nil && ev.Delta.Text != "" {
				if !send(llm.StreamChunk{Content: ev.Delta.Text}) {
					_ = cmd.Wait()
					return
				}
			}
		}
		scanErr := scanner.Err()
		waitErr := cmd.Wait()

		switch {
		case ctx.Err() != nil:
			send(llm.StreamChunk{Err: ctx.Err()})
		case scanErr != nil:
			send(llm.StreamChunk{Err: fmt.Errorf("claude cli: read output: %w", scanErr)})
		case waitErr != nil:
			send(llm.StreamChunk{Err: categorize(fmt.Errorf("%w: %s", waitErr, strings.TrimSpace(stderr.String())), stderr.String())})
		default:
			send(llm.StreamChunk{Done: true})
		}
	}()
	return ch, nil
}

func (c *Client) newCmd(ctx context.Context, args []string) *exec.Cmd {
	cmd := exec.CommandContext(ctx, c.command, args...)
	// Children that inherit stdout must not hold Wait open after a kill.
	cmd.WaitDelay = time.Second
	if c.workdir != "" {
		cmd.Dir = c.workdir
	}
	return cmd
}

// buildArgs flattens messages into CLI arguments.
func (c *Client) buildArgs(messages []llm.Message, o llm.Options) []string {
	args := []string{"--print"}

	var system []string
	var prompt strings.Builder
	for _, m := range messages {
		switch m.Role {
		case llm.RoleSystem:
			system = append(system, m.Content)
		case llm.RoleUser:
			if prompt.Len() > 0 {
				prompt.WriteString("\n\nUser: ")
			}
			prompt.WriteString(m.Content)
		case llm.RoleAssistant:
			prompt.WriteString("\n\nAssistant: ")
			prompt.WriteString(m.Content)
		}
	}

	if len(system) > 0 {
		args = append(args, "--system-prompt", strings.Join(system, "\n\n"))
	}
	if c.model != "" {
		args = append(args, "--model", c.model)
	}
	if o.MaxTokens > 0 {
		args = append(args, "--max-tokens", strconv.Itoa(o.MaxTokens))
	}
	for _, tool := range c.allowedTools {
		args = append(args, "--allowedTools", tool)
	}
	if p := strings.TrimSpace(prompt.String()); p != "" {
		args = append(args, "-p", p)
	}
	return args
}

// categorize marks failures the CLI reports as temporary.
func categorize(err error, stderr string) error {
	s := strings.ToLower(stderr)
	for _, marker := range []string{"rate limit", "timeout", "overloaded", "503", "529"} {
		if strings.Contains(s, marker) {
			return fgerrors.Transient(err, "claude cli")
		}
	}
	return fgerrors.Permanent(err, "claude cli")
}

type streamEvent struct {
	Type  string       `json:"type"`
	Delta *streamDelta `json:"delta,omitempty"`
}

type streamDelta struct {
	Type string `json:"type"`
	Text string `json:"text"`
}
