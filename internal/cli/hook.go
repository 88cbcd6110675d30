package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/worklog-dev/worklog/internal/classify"
	"github.com/worklog-dev/worklog/internal/config"
	"github.com/worklog-dev/worklog/internal/hooks"
	"github.com/worklog-dev/worklog/internal/recall"
	"github.com/worklog-dev/worklog/internal/store"
)

// hookTimeout caps any single hook invocation. A hook that cannot finish
// quickly must not stall the agent.
const hookTimeout = 10 * time.Second

func newHookCmd() *cobra.Command {
	hook := &cobra.Command{
		Use:   "hook",
		Short: "Handle agent lifecycle events",
		Long: `Hook handlers read one JSON event from stdin and write their result
to stdout. They are wired into the agent's hook configuration and
always exit zero: a broken store must never break the agent.`,
	}
	hook.AddCommand(newSessionStartCmd(), newSessionEndCmd(), newPostToolUseCmd())
	return hook
}

func newSessionStartCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "session-start",
		Short: "Emit the context index for a new session",
		RunE: func(cmd *cobra.Command, args []string) error {
			var event struct {
				Topic         string `json:"topic,omitempty"`
				MinImportance int    `json:"min_importance,omitempty"`
			}
			readEvent(cmd.InOrStdin(), &event)

			return withDispatcher(cmd, func(ctx context.Context, d *hooks.Dispatcher) error {
				idx := d.OnSessionStart(ctx, event.Topic, event.MinImportance)
				return json.NewEncoder(cmd.OutOrStdout()).Encode(idx)
			})
		},
	}
}

func newSessionEndCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "session-end",
		Short: "Compress the finished session into the worklog",
		RunE: func(cmd *cobra.Command, args []string) error {
			var event struct {
				Agent    string                   `json:"agent,omitempty"`
				Activity classify.SessionActivity `json:"activity"`
			}
			readEvent(cmd.InOrStdin(), &event)

			return withDispatcher(cmd, func(ctx context.Context, d *hooks.Dispatcher) error {
				result, err := d.OnSessionEnd(ctx, event.Agent, event.Activity)
				if err != nil {
					return err
				}
				return json.NewEncoder(cmd.OutOrStdout()).Encode(result)
			})
		},
	}
}

func newPostToolUseCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "post-tool-use",
		Short: "Capture a tool observation as a staging memory",
		RunE: func(cmd *cobra.Command, args []string) error {
			var obs hooks.ToolObservation
			readEvent(cmd.InOrStdin(), &obs)

			return withDispatcher(cmd, func(ctx context.Context, d *hooks.Dispatcher) error {
				stored, err := d.OnPostToolUse(ctx, obs)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), `{"stored":%t}`+"\n", stored)
				return nil
			})
		},
	}
}

// withDispatcher opens the store, runs fn, and swallows failures: the
// warning lands on stderr and the command still exits zero.
func withDispatcher(cmd *cobra.Command, fn func(context.Context, *hooks.Dispatcher) error) error {
	log := newLogger()

	cfg, err := loadConfig()
	if err != nil {
		log.Warn("hook skipped: config unavailable", "err", err)
		return nil
	}

	ctx, cancel := context.WithTimeout(cmd.Context(), hookTimeout)
	defer cancel()

	st, err := store.Open(cfg.Store)
	if err != nil {
		log.Warn("hook skipped: store unavailable", "err", err)
		emitDegraded(cmd.OutOrStdout(), cfg)
		return nil
	}
	defer st.Close()

	d := hooks.NewDispatcher(st, recall.NewBuilder(st, cfg.Recall, log), newSummarizer(cfg), cfg.Hooks, log)
	if err := fn(ctx, d); err != nil {
		log.Warn("hook failed", "err", err)
	}
	return nil
}

// emitDegraded writes the remind-level fallback so the agent still hears
// that a worklog exists.
func emitDegraded(w io.Writer, cfg config.Config) {
	idx := recall.Index{
		Level:    cfg.Hooks.SessionStart,
		Degraded: true,
		Reminder: "Worklog store is unreachable; context unavailable this session.",
	}
	_ = json.NewEncoder(w).Encode(idx)
}

// newSummarizer returns the LLM summarizer, or nil without an API key.
func newSummarizer(cfg config.Config) classify.Summarizer {
	if cfg.OpenAI.APIKey == "" {
		return nil
	}
	return classify.NewOpenAI(cfg.OpenAI.APIKey, cfg.OpenAI.Model)
}

// readEvent decodes the stdin event, tolerating an empty stream.
func readEvent(r io.Reader, v any) {
	if err := json.NewDecoder(r).Decode(v); err != nil && err != io.EOF {
		slog.New(slog.NewTextHandler(os.Stderr, nil)).Warn("malformed hook event", "err", err)
	}
}
