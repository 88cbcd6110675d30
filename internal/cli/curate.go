package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/worklog-dev/worklog/internal/classify"
	"github.com/worklog-dev/worklog/internal/curation"
	"github.com/worklog-dev/worklog/internal/store"
)

func newCurateCmd() *cobra.Command {
	var operations []string

	cmd := &cobra.Command{
		Use:   "curate",
		Short: "Run curation phases over the store",
		Long: `Runs the curation engine: tag normalization, relationship discovery,
topic indexing, duplicate detection, and memory promotion. Safe to run
from cron or by hand; every phase is idempotent and nothing is deleted.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return fmt.Errorf("loading config: %w", err)
			}
			log := newLogger()

			st, err := store.Open(cfg.Store)
			if err != nil {
				return fmt.Errorf("opening store: %w", err)
			}
			defer st.Close()

			var classifier classify.Classifier
			if cfg.OpenAI.APIKey != "" {
				classifier = classify.NewOpenAI(cfg.OpenAI.APIKey, cfg.OpenAI.Model)
			}

			engine := curation.NewEngine(st, classifier, cfg.Curation, "cli:"+st.System(), log)
			report, err := engine.Run(cmd.Context(), operations)
			if err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Curation run %s\n", report.RunID)
			for _, p := range report.Phases {
				switch {
				case p.Error != "":
					fmt.Fprintf(cmd.OutOrStdout(), "  %-24s FAILED: %s\n", p.Operation, p.Error)
				case p.Skipped != "":
					fmt.Fprintf(cmd.OutOrStdout(), "  %-24s skipped (%s)\n", p.Operation, p.Skipped)
				default:
					fmt.Fprintf(cmd.OutOrStdout(), "  %-24s examined %d, changed %d, flagged %d\n",
						p.Operation, p.Examined, p.Changed, len(p.Flagged))
				}
			}
			if report.Failed() {
				return fmt.Errorf("one or more curation phases failed")
			}
			return nil
		},
	}

	cmd.Flags().StringSliceVar(&operations, "op", nil,
		"curation operations to run (default: all). Repeatable; one of: "+
			"tag_normalization, relationship_discovery, topic_indexing, duplicate_detection, memory_promotion")
	return cmd
}
