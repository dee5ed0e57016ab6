package main

import (
	"io"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/bytebuddhi/agentgraph/pkg/settings"
)

// globalFlags are shared by every subcommand.
type globalFlags struct {
	configPath string
	debug      bool
	jsonOut    bool
}

func newRootCmd(stdout, stderr io.Writer) *cobra.Command {
	var g globalFlags

	root := &cobra.Command{
		Use:           "bytebuddhi",
		Short:         "Ask a coding assistant that remembers your conversations",
		SilenceUsage:  true,
		SilenceErrors: false,
	}
	root.SetOut(stdout)
	root.SetErr(stderr)

	pf := root.PersistentFlags()
	pf.StringVarP(&g.configPath, "config", "c", "", "settings file (YAML or JSON)")
	pf.BoolVar(&g.debug, "debug", false, "log at debug level and show internal errors")
	pf.BoolVar(&g.jsonOut, "json", false, "print the full result as JSON")

	root.AddCommand(
		newAskCmd(&g),
		newResumeCmd(&g),
		newHistoryCmd(&g),
		newForgetCmd(&g),
	)
	return root
}

// loadSettings reads settings and builds the logger for one command.
func (g *globalFlags) loadSettings(stderr io.Writer) (settings.Settings, *slog.Logger, error) {
	s, err := settings.Load(g.configPath)
	if err != nil {
		return settings.Settings{}, nil, err
	}
	return s, newLogger(stderr, s.Log, g.debug), nil
}

func newLogger(w io.Writer, cfg settings.Log, debug bool) *slog.Logger {
	level := cfg.SlogLevel()
	if debug {
		level = slog.LevelDebug
	}
	opts := &slog.HandlerOptions{Level: level}

	var h slog.Handler
	if cfg.Format == "json" {
		h = slog.NewJSONHandler(w, opts)
	} else {
		h = slog.NewTextHandler(w, opts)
	}
	return slog.New(h)
}
