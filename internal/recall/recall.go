// Package recall builds the token-budgeted context index served at
// session start, and answers on-demand detail fetches.
//
// Progressive disclosure: the index carries counts, a few title samples,
// and an estimated token cost per category, never full content. The
// agent calls FetchDetail for anything it actually wants to read.
package recall

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/worklog-dev/worklog/internal/config"
	"github.com/worklog-dev/worklog/internal/store"
)

// Category names of the index.
const (
	CategoryRecentWork    = "recent_work"
	CategoryMemories      = "memories"
	CategoryKnowledge     = "knowledge"
	CategoryErrorPatterns = "error_patterns"
)

// CategoryIndex summarizes one category without carrying content.
type CategoryIndex struct {
	Category        string   `json:"category"`
	Count           int      `json:"count"`
	Samples         []string `json:"samples"`
	EstimatedTokens int      `json:"estimated_tokens"`
}

// Index is the session-start context summary.
type Index struct {
	Topic      string                 `json:"topic,omitempty"`
	Level      config.AutomationLevel `json:"level"`
	Categories []CategoryIndex        `json:"categories"`
	// Critical carries full records only at aggressive automation:
	// status=critical or importance >= 9.
	Critical []store.Memory `json:"critical,omitempty"`
	// Degraded is set when the store was unreachable or the latency
	// budget was exceeded; Reminder then points at what exists instead
	// of blocking the session.
	Degraded bool   `json:"degraded,omitempty"`
	Reminder string `json:"reminder,omitempty"`
}

// categoryScanLimit bounds each index query; counts above it read as
// "limit or more". Keeps one index build to a handful of small queries.
const categoryScanLimit = 50

// Builder builds context indexes against the store.
type Builder struct {
	store *store.Store
	cfg   config.RecallConfig
	log   *slog.Logger
}

// NewBuilder creates a Builder.
func NewBuilder(s *store.Store, cfg config.RecallConfig, log *slog.Logger) *Builder {
	if log == nil {
		log = slog.Default()
	}
	if cfg.SamplesPerCategory <= 0 {
		cfg.SamplesPerCategory = 3
	}
	if cfg.AvgRecordTokens <= 0 {
		cfg.AvgRecordTokens = 120
	}
	if cfg.Budget <= 0 {
		cfg.Budget = 500 * time.Millisecond
	}
	return &Builder{store: s, cfg: cfg, log: log}
}

// BuildIndex assembles the index for the given topic and automation
// level under a hard wall-clock budget. A non-empty topic scopes every
// category query by substring; minImportance raises the memory floor
// (<= 0 means the default floor of 5). It never returns an error for an
// empty or unreachable store: failures degrade to a reminder.
func (b *Builder) BuildIndex(ctx context.Context, topic string, minImportance int, level config.AutomationLevel) Index {
	idx := Index{Topic: topic, Level: level}

	switch level {
	case config.AutomationOff:
		return idx
	case config.AutomationRemind:
		idx.Reminder = reminderText(topic)
		return idx
	}

	ctx, cancel := context.WithTimeout(ctx, b.cfg.Budget)
	defer cancel()

	for _, category := range b.categoriesFor(level) {
		ci, err := b.buildCategory(ctx, category, topic, minImportance)
		if err != nil {
			// Latency budget exceeded or store unreachable: degrade to
			// remind behavior rather than blocking the session start.
			b.log.Warn("recall degraded", "category", category, "err", err)
			idx.Degraded = true
			idx.Reminder = reminderText(topic)
			return idx
		}
		idx.Categories = append(idx.Categories, ci)
	}

	if level == config.AutomationAggressive {
		critical, err := b.store.CriticalMemories(ctx, 10)
		if err != nil {
			b.log.Warn("recall critical fetch failed", "err", err)
		} else {
			idx.Critical = critical
		}
	}
	return idx
}

func (b *Builder) categoriesFor(level config.AutomationLevel) []string {
	switch level {
	case config.AutomationLight:
		return []string{CategoryRecentWork, CategoryMemories}
	default: // full, aggressive
		return []string{CategoryRecentWork, CategoryMemories, CategoryKnowledge, CategoryErrorPatterns}
	}
}

func (b *Builder) buildCategory(ctx context.Context, category, topic string, minImportance int) (CategoryIndex, error) {
	ci := CategoryIndex{Category: category, Samples: []string{}}
	if minImportance <= 0 {
		minImportance = 5
	}

	var titles []string
	switch category {
	case CategoryRecentWork:
		entries, err := b.store.RecentEntries(ctx, "", topic, b.cfg.RecentDays, categoryScanLimit)
		if err != nil {
			return ci, err
		}
		for _, e := range entries {
			titles = append(titles, e.Title)
		}
	case CategoryMemories:
		memories, err := b.store.HighImportanceMemories(ctx, topic, minImportance, categoryScanLimit)
		if err != nil {
			return ci, err
		}
		for _, m := range memories {
			titles = append(titles, m.Key)
		}
	case CategoryKnowledge:
		entries, err := b.store.RecentKnowledge(ctx, topic, categoryScanLimit)
		if err != nil {
			return ci, err
		}
		for _, e := range entries {
			titles = append(titles, e.Title)
		}
	case CategoryErrorPatterns:
		patterns, err := b.store.ActiveErrorPatterns(ctx, topic, categoryScanLimit)
		if err != nil {
			return ci, err
		}
		for _, p := range patterns {
			titles = append(titles, p.ErrorSignature)
		}
	default:
		return ci, fmt.Errorf("unknown category %q", category)
	}

	ci.Count = len(titles)
	ci.EstimatedTokens = ci.Count * b.cfg.AvgRecordTokens
	for i, t := range titles {
		if i >= b.cfg.SamplesPerCategory {
			break
		}
		ci.Samples = append(ci.Samples, t)
	}
	return ci, nil
}

// Detail is the result of an on-demand fetch.
type Detail struct {
	Category      string                 `json:"category,omitempty"`
	Query         string                 `json:"query,omitempty"`
	Entries       []store.WorkEntry      `json:"entries,omitempty"`
	Memories      []store.Memory         `json:"memories,omitempty"`
	Knowledge     []store.KnowledgeEntry `json:"knowledge,omitempty"`
	ErrorPatterns []store.ErrorPattern   `json:"error_patterns,omitempty"`
	Hits          []store.SearchHit      `json:"hits,omitempty"`
}

// FetchDetail returns full records for one index category, or runs a
// free-text search when the string is not a category name.
func (b *Builder) FetchDetail(ctx context.Context, categoryOrQuery string, limit int) (*Detail, error) {
	if limit <= 0 {
		limit = 20
	}
	d := &Detail{}

	switch categoryOrQuery {
	case CategoryRecentWork:
		entries, err := b.store.RecentEntries(ctx, "", "", b.cfg.RecentDays, limit)
		if err != nil {
			return nil, err
		}
		d.Category, d.Entries = categoryOrQuery, entries
	case CategoryMemories:
		memories, err := b.store.HighImportanceMemories(ctx, "", 5, limit)
		if err != nil {
			return nil, err
		}
		d.Category, d.Memories = categoryOrQuery, memories
	case CategoryKnowledge:
		entries, err := b.store.RecentKnowledge(ctx, "", limit)
		if err != nil {
			return nil, err
		}
		d.Category, d.Knowledge = categoryOrQuery, entries
	case CategoryErrorPatterns:
		patterns, err := b.store.ActiveErrorPatterns(ctx, "", limit)
		if err != nil {
			return nil, err
		}
		d.Category, d.ErrorPatterns = categoryOrQuery, patterns
	default:
		hits, err := b.store.Search(ctx, categoryOrQuery, nil, limit)
		if err != nil {
			if errors.Is(err, store.ErrValidation) {
				return nil, err
			}
			return nil, fmt.Errorf("fetch detail: %w", err)
		}
		d.Query, d.Hits = categoryOrQuery, hits
	}
	return d, nil
}

func reminderText(topic string) string {
	if topic == "" {
		return "Worklog context is available. Call recall_context or search_knowledge to load it."
	}
	return fmt.Sprintf("Worklog context about %q may exist. Call search_knowledge(%q) to load it.", topic, topic)
}
