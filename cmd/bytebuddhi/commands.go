package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/bytebuddhi/agentgraph/pkg/agent"
	"github.com/bytebuddhi/agentgraph/pkg/settings"
)

// runFlags are the per-run flags of ask and resume.
type runFlags struct {
	threadID    string
	projectID   string
	temperature float64
	maxTokens   int
}

func (f *runFlags) register(cmd *cobra.Command, withThread bool) {
	fl := cmd.Flags()
	if withThread {
		fl.StringVarP(&f.threadID, "thread", "t", "", "thread ID; enables checkpointing")
	}
	fl.StringVarP(&f.projectID, "project", "p", "", "project ID for code retrieval")
	fl.Float64Var(&f.temperature, "temperature", 0, "sampling temperature (default from settings)")
	fl.IntVar(&f.maxTokens, "max-tokens", 0, "maximum tokens per answer (default from settings)")
}

// runConfig merges flags over the settings defaults.
func (f *runFlags) runConfig(cmd *cobra.Command, s settings.Settings) agent.RunConfig {
	temp := s.LLM.Temperature
	if cmd.Flags().Changed("temperature") {
		temp = f.temperature
	}
	maxTokens := s.LLM.MaxTokens
	if f.maxTokens > 0 {
		maxTokens = f.maxTokens
	}
	return agent.RunConfig{
		ThreadID:    f.threadID,
		ProjectID:   f.projectID,
		Temperature: &temp,
		MaxTokens:   maxTokens,
	}
}

func newAskCmd(g *globalFlags) *cobra.Command {
	var f runFlags
	cmd := &cobra.Command{
		Use:   "ask <query>",
		Short: "Ask a question, optionally as the first turn of a thread",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			query := strings.TrimSpace(strings.Join(args, " "))
			if query == "" {
				return fmt.Errorf("query is empty")
			}
			return withApp(cmd, g, func(a *app) error {
				out := a.agent.Ask(cmd.Context(), query, f.runConfig(cmd, a.settings))
				return printState(cmd.OutOrStdout(), out, g)
			})
		},
	}
	f.register(cmd, true)
	return cmd
}

func newResumeCmd(g *globalFlags) *cobra.Command {
	var f runFlags
	cmd := &cobra.Command{
		Use:   "resume <thread> <query>",
		Short: "Continue a thread from its latest checkpoint",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			threadID := args[0]
			query := strings.TrimSpace(strings.Join(args[1:], " "))
			if query == "" {
				return fmt.Errorf("query is empty")
			}
			return withApp(cmd, g, func(a *app) error {
				out := a.agent.Resume(cmd.Context(), threadID, query, f.runConfig(cmd, a.settings))
				return printState(cmd.OutOrStdout(), out, g)
			})
		},
	}
	f.register(cmd, false)
	return cmd
}

func newHistoryCmd(g *globalFlags) *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "history <thread>",
		Short: "List the stored turns of a thread, newest first",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, g, func(a *app) error {
				snaps, err := a.agent.History(cmd.Context(), args[0], limit)
				if err != nil {
					return err
				}
				return printHistory(cmd.OutOrStdout(), snaps, g)
			})
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 10, "maximum number of turns")
	return cmd
}

func newForgetCmd(g *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "forget <thread>",
		Short: "Delete every stored turn of a thread",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, g, func(a *app) error {
				if err := a.agent.Forget(cmd.Context(), args[0]); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "forgot %s\n", args[0])
				return nil
			})
		},
	}
}

// withApp builds the application for one command and closes it afterwards.
func withApp(cmd *cobra.Command, g *globalFlags, fn func(*app) error) error {
	s, logger, err := g.loadSettings(cmd.ErrOrStderr())
	if err != nil {
		return err
	}
	a, err := newApp(cmd.Context(), s, logger)
	if err != nil {
		return err
	}
	defer a.Close(cmd.Context())
	return fn(a)
}

func printState(w io.Writer, s agent.State, g *globalFlags) error {
	if g.jsonOut {
		if !g.debug {
			s.Error = ""
		}
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(s)
	}

	fmt.Fprintln(w, s.Explanation)
	if g.debug {
		fmt.Fprintf(w, "\n[intent=%s path=%s]\n", s.Intent, joinPath(s.Path))
		if s.Error != "" {
			fmt.Fprintf(w, "[error=%s]\n", s.Error)
		}
	}
	return nil
}

// printHistory hides internal error text unless debug is set.
func printHistory(w io.Writer, snaps []agent.Snapshot, g *globalFlags) error {
	if g.jsonOut {
		if !g.debug {
			for i := range snaps {
				snaps[i].State.Error = ""
			}
		}
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(snaps)
	}
	if len(snaps) == 0 {
		fmt.Fprintln(w, "no checkpoints")
		return nil
	}
	for _, s := range snaps {
		fmt.Fprintf(w, "%s  %s  %d messages\n", s.CreatedAt.Format(time.RFC3339), s.CheckpointID, len(s.State.Messages))
		fmt.Fprintf(w, "  Q: %s\n", truncate(s.State.UserQuery, 80))
		fmt.Fprintf(w, "  A: %s\n", truncate(s.State.Explanation, 80))
	}
	return nil
}

func joinPath(path []agent.Node) string {
	parts := make([]string, len(path))
	for i, n := range path {
		parts[i] = string(n)
	}
	return strings.Join(parts, ">")
}

func truncate(s string, n int) string {
	s = strings.Join(strings.Fields(s), " ")
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}
