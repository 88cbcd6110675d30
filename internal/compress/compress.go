// Package compress turns a finished agent session into a handful of
// rows: one work entry, staging memories and knowledge for the typed
// learnings, and error patterns for anything the session debugged. It
// never stores transcripts.
package compress

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/worklog-dev/worklog/internal/classify"
	"github.com/worklog-dev/worklog/internal/config"
	"github.com/worklog-dev/worklog/internal/store"
)

// Result reports what one compression run produced.
type Result struct {
	SessionID  string `json:"session_id"`
	Skipped    bool   `json:"skipped"`
	SkipReason string `json:"skip_reason,omitempty"`
	// Reminder is set instead of any rows at remind-level automation.
	Reminder  string `json:"reminder,omitempty"`
	EntryID   int64  `json:"entry_id,omitempty"`
	Learnings int    `json:"learnings"`
	Memories  int    `json:"memories"`
	Errors    int    `json:"error_patterns"`
	// SummarizerDown is set when the LLM summarizer was unreachable and
	// learnings extraction was skipped; the work entry still lands via
	// the deterministic fallback.
	SummarizerDown bool `json:"summarizer_down,omitempty"`
}

// Compressor compresses session activity into store rows.
type Compressor struct {
	store      *store.Store
	summarizer classify.Summarizer
	level      config.AutomationLevel
	log        *slog.Logger
}

// NewCompressor creates a Compressor. summarizer may be nil, in which
// case only the deterministic work entry is produced.
func NewCompressor(s *store.Store, summarizer classify.Summarizer, level config.AutomationLevel, log *slog.Logger) *Compressor {
	if log == nil {
		log = slog.Default()
	}
	return &Compressor{store: s, summarizer: summarizer, level: level, log: log}
}

// Significant reports whether the session produced enough activity to be
// worth a work entry at all. Trivial sessions are dropped entirely.
func Significant(a classify.SessionActivity) bool {
	return len(a.CompletedTasks) > 0 ||
		len(a.FilesTouched) > 2 ||
		a.MessageCount > 10 ||
		len(a.ErrorsResolved) > 0
}

// Compress runs one end-of-session compression. It is safe to call with
// the summarizer unavailable: the work entry is then built from the raw
// activity and learnings extraction is recorded as skipped.
func (c *Compressor) Compress(ctx context.Context, agent string, activity classify.SessionActivity) (*Result, error) {
	res := &Result{SessionID: activity.SessionID}

	if c.level == config.AutomationOff || c.level == config.AutomationRemind {
		res.Skipped = true
		res.SkipReason = "automation level " + string(c.level)
		if c.level == config.AutomationRemind {
			res.Reminder = "Session not compressed. Call log_entry to record significant work before it is lost."
		}
		return res, nil
	}
	if !Significant(activity) {
		res.Skipped = true
		res.SkipReason = "no significant activity"
		return res, nil
	}

	summary := c.summarize(ctx, activity, res)

	entry, err := c.store.LogEntry(ctx, store.LogEntryParams{
		Agent:        agent,
		TaskType:     summary.TaskType,
		Title:        summary.Title,
		Details:      summary.Details,
		Outcome:      summary.Outcome,
		Tags:         summary.Tags,
		RelatedFiles: strings.Join(activity.FilesTouched, ","),
	})
	if err != nil {
		return nil, fmt.Errorf("compress: log entry: %w", err)
	}
	res.EntryID = entry.ID

	// Typed learnings only at the automation levels that opted into LLM
	// extraction, and only while the summarizer is reachable.
	if c.summarizer == nil || res.SummarizerDown {
		return res, nil
	}
	if c.level != config.AutomationFull && c.level != config.AutomationAggressive {
		return res, nil
	}

	learnings, err := c.summarizer.ExtractLearnings(ctx, activity)
	if err != nil {
		if errors.Is(err, classify.ErrUnavailable) {
			c.log.Warn("learnings extraction unavailable", "session", activity.SessionID, "err", err)
			res.SummarizerDown = true
			return res, nil
		}
		return nil, fmt.Errorf("compress: extract learnings: %w", err)
	}
	for _, l := range learnings {
		if err := c.storeLearning(ctx, agent, l, res); err != nil {
			c.log.Warn("learning not stored", "kind", l.Kind, "title", l.Title, "err", err)
		}
	}
	return res, nil
}

// summarize produces the work entry shape, via the LLM when possible and
// deterministically otherwise.
func (c *Compressor) summarize(ctx context.Context, activity classify.SessionActivity, res *Result) classify.WorkSummary {
	if c.summarizer != nil {
		summary, err := c.summarizer.SummarizeWork(ctx, activity)
		if err == nil && summary != nil {
			return *summary
		}
		if errors.Is(err, classify.ErrUnavailable) {
			res.SummarizerDown = true
		}
		c.log.Warn("work summarization failed, using fallback", "session", activity.SessionID, "err", err)
	}
	return fallbackSummary(activity)
}

// fallbackSummary builds a usable work entry from raw activity alone.
func fallbackSummary(a classify.SessionActivity) classify.WorkSummary {
	title := "Session " + a.SessionID
	if len(a.CompletedTasks) > 0 {
		title = store.Truncate(a.CompletedTasks[0], 120)
	}
	taskType := "development"
	if len(a.ErrorsResolved) > 0 && len(a.CompletedTasks) == 0 {
		taskType = "debugging"
	}
	var details []string
	if len(a.CompletedTasks) > 0 {
		details = append(details, "Completed: "+strings.Join(a.CompletedTasks, "; "))
	}
	if len(a.ErrorsResolved) > 0 {
		details = append(details, "Resolved: "+strings.Join(a.ErrorsResolved, "; "))
	}
	if a.Notes != "" {
		details = append(details, a.Notes)
	}
	return classify.WorkSummary{
		Title:    title,
		TaskType: taskType,
		Details:  store.Truncate(strings.Join(details, "\n"), 1000),
		Outcome:  fmt.Sprintf("%d tasks, %d files, %d errors resolved", len(a.CompletedTasks), len(a.FilesTouched), len(a.ErrorsResolved)),
	}
}

// storeLearning routes one typed learning. Decisions are durable and go
// straight to the knowledge base; patterns and gotchas start as staging
// memories so the curation lifecycle decides whether they earn
// promotion; error patterns get their own table.
func (c *Compressor) storeLearning(ctx context.Context, agent string, l classify.Learning, res *Result) error {
	if l.Title == "" {
		return fmt.Errorf("learning without title")
	}
	switch l.Kind {
	case classify.KindErrorPattern:
		_, err := c.store.StoreErrorPattern(ctx, store.StoreErrorPatternParams{
			ErrorSignature: firstNonEmpty(l.ErrorSignature, l.Title),
			ErrorMessage:   l.Content,
			RootCause:      l.RootCause,
			Resolution:     l.Resolution,
			PreventionTip:  l.Prevention,
			Tags:           l.Tags,
		})
		if err != nil {
			return err
		}
		res.Errors++
	case classify.KindDecision:
		_, err := c.store.StoreKnowledge(ctx, store.StoreKnowledgeParams{
			Category:    "decisions",
			Title:       l.Title,
			Content:     l.Content,
			Tags:        l.Tags,
			SourceAgent: agent,
		})
		if err != nil {
			return err
		}
		res.Learnings++
	case classify.KindPattern, classify.KindGotcha:
		_, err := c.store.StoreMemory(ctx, store.StoreMemoryParams{
			Key:         learningKey(l.Title),
			Content:     firstNonEmpty(l.Content, l.Title),
			Summary:     l.Title,
			MemoryType:  "fact",
			Importance:  6,
			Tags:        append([]string{l.Kind}, l.Tags...),
			SourceAgent: agent,
		})
		if err != nil {
			// The same learning from an earlier session already sits in
			// staging; the first capture stands.
			if errors.Is(err, store.ErrConflict) {
				return nil
			}
			return err
		}
		res.Memories++
	default:
		return fmt.Errorf("unknown learning kind %q", l.Kind)
	}
	return nil
}

// learningKey derives a stable memory key from a learning title so the
// same learning is staged once across sessions.
func learningKey(title string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(title) {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
		} else {
			b.WriteByte('_')
		}
	}
	return "learning:" + store.Truncate(b.String(), 80)
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
