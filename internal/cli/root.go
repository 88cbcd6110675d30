// Package cli implements the worklog command line: the MCP server,
// hook handlers for agent lifecycle events, and maintenance commands.
package cli

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/worklog-dev/worklog/internal/config"
)

var configPath string

// NewRootCmd builds the worklog command tree.
func NewRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "worklog",
		Short: "Cross-session memory for AI coding agents",
		Long: `Worklog persists what AI coding agents learn: work entries, memories,
knowledge, and error patterns survive across sessions in SQLite or
Postgres, retrieved on demand through MCP tools and lifecycle hooks.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.PersistentFlags().StringVar(&configPath, "config", "", "config file (default: $WORKLOG_CONFIG or ~/.worklog/config.yaml)")

	root.AddCommand(
		newServeCmd(),
		newHookCmd(),
		newCurateCmd(),
		newInitCmd(),
		newVersionCmd(),
	)
	return root
}

// Execute runs the CLI and exits non-zero on error.
func Execute() {
	if err := NewRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// loadConfig loads configuration honoring the --config flag.
func loadConfig() (config.Config, error) {
	if configPath != "" {
		return config.LoadFrom(configPath)
	}
	return config.Load()
}

// newLogger builds the process logger. Hooks and the MCP server both own
// stdout (hook output goes to the agent, MCP speaks JSON-RPC on stdout),
// so logs always go to stderr.
func newLogger() *slog.Logger {
	level := slog.LevelInfo
	if os.Getenv("WORKLOG_DEBUG") != "" {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}
