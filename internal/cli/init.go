package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/worklog-dev/worklog/internal/store"
)

func newInitCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "init",
		Short: "Create the database schema and verify connectivity",
		Long: `Opens the configured backend, creates any missing tables and indexes,
seeds the default tag taxonomy, and registers this system. Migration is
idempotent; running init against an existing database changes nothing.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return fmt.Errorf("loading config: %w", err)
			}

			st, err := store.Open(cfg.Store)
			if err != nil {
				return fmt.Errorf("opening store: %w", err)
			}
			defer st.Close()

			if err := st.Ping(cmd.Context()); err != nil {
				return fmt.Errorf("pinging store: %w", err)
			}
			if err := st.RegisterSystem(cmd.Context(), "", string(cfg.Hooks.SessionStart), string(cfg.Store.Backend)); err != nil {
				return fmt.Errorf("registering system: %w", err)
			}

			counts, err := st.TableCounts(cmd.Context())
			if err != nil {
				return fmt.Errorf("verifying schema: %w", err)
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Worklog initialized (%s backend, system %q, %d tables)\n",
				cfg.Store.Backend, st.System(), len(counts))
			return nil
		},
	}
}
