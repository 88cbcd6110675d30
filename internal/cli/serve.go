package cli

import (
	"fmt"

	mcpserver "github.com/mark3labs/mcp-go/server"
	"github.com/spf13/cobra"

	"github.com/worklog-dev/worklog/internal/server"
)

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the MCP server on stdio",
		Long: `Starts the worklog MCP server speaking JSON-RPC over stdio, the
transport every MCP-capable agent (Claude Code, Cursor, Codex, ...)
expects. Logs go to stderr.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return fmt.Errorf("loading config: %w", err)
			}
			log := newLogger()

			s, cleanup, err := server.New(cfg, log)
			if err != nil {
				return fmt.Errorf("creating server: %w", err)
			}
			defer cleanup()

			log.Info("worklog MCP server starting",
				"version", server.Version, "backend", cfg.Store.Backend)
			return mcpserver.ServeStdio(s)
		},
	}
}
