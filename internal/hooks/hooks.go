// Package hooks dispatches agent lifecycle events into the worklog.
// SessionStart loads context, SessionEnd compresses the session, and
// PostToolUse captures observations about touched files as staging
// memories. Hooks never block or fail the agent: every handler degrades
// to a no-op on store trouble and reports what it could do.
package hooks

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path"
	"path/filepath"
	"strings"

	"github.com/worklog-dev/worklog/internal/classify"
	"github.com/worklog-dev/worklog/internal/compress"
	"github.com/worklog-dev/worklog/internal/config"
	"github.com/worklog-dev/worklog/internal/recall"
	"github.com/worklog-dev/worklog/internal/store"
)

// Hook event names.
const (
	EventSessionStart = "SessionStart"
	EventSessionEnd   = "SessionEnd"
	EventPostToolUse  = "PostToolUse"
)

// Dispatcher routes hook events. Each hook runs at its own automation
// level, so a deployment can compress sessions fully while only
// reminding at session start.
type Dispatcher struct {
	store      *store.Store
	builder    *recall.Builder
	summarizer classify.Summarizer
	cfg        config.HooksConfig
	log        *slog.Logger
}

// NewDispatcher creates a Dispatcher. summarizer may be nil.
func NewDispatcher(s *store.Store, builder *recall.Builder, summarizer classify.Summarizer, cfg config.HooksConfig, log *slog.Logger) *Dispatcher {
	if log == nil {
		log = slog.Default()
	}
	return &Dispatcher{store: s, builder: builder, summarizer: summarizer, cfg: cfg, log: log}
}

// OnSessionStart builds the context index for a new session.
func (d *Dispatcher) OnSessionStart(ctx context.Context, topic string, minImportance int) recall.Index {
	return d.builder.BuildIndex(ctx, topic, minImportance, d.cfg.SessionStart)
}

// OnSessionEnd compresses the finished session into store rows.
func (d *Dispatcher) OnSessionEnd(ctx context.Context, agent string, activity classify.SessionActivity) (*compress.Result, error) {
	c := compress.NewCompressor(d.store, d.summarizer, d.cfg.SessionEnd, d.log)
	return c.Compress(ctx, agent, activity)
}

// ToolObservation is one PostToolUse event: which tool ran, which file
// it touched, and a one-line note worth remembering.
type ToolObservation struct {
	SessionID string `json:"session_id"`
	Tool      string `json:"tool"`
	FilePath  string `json:"file_path,omitempty"`
	Note      string `json:"note"`
	Agent     string `json:"agent,omitempty"`
}

// OnPostToolUse captures a tool observation as a staging memory, subject
// to the automation level and the capture globs. It reports whether the
// observation was stored.
func (d *Dispatcher) OnPostToolUse(ctx context.Context, obs ToolObservation) (bool, error) {
	switch d.cfg.PostToolUse {
	case config.AutomationOff, config.AutomationRemind, config.AutomationLight:
		return false, nil
	}
	if obs.Note == "" {
		return false, nil
	}
	if obs.FilePath != "" && !d.captureAllowed(obs.FilePath) {
		return false, nil
	}

	key := captureKey(obs)
	tags := []string{"captured", strings.ToLower(obs.Tool)}
	if ext := strings.TrimPrefix(filepath.Ext(obs.FilePath), "."); ext != "" {
		tags = append(tags, ext)
	}

	_, err := d.store.StoreMemory(ctx, store.StoreMemoryParams{
		Key:         key,
		Content:     obs.Note,
		Summary:     obs.FilePath,
		MemoryType:  "context",
		Importance:  3,
		Tags:        tags,
		SourceAgent: obs.Agent,
	})
	if err != nil {
		// Same key within a session means the observation repeats; the
		// first capture stands.
		if errors.Is(err, store.ErrConflict) {
			return false, nil
		}
		return false, fmt.Errorf("capture observation: %w", err)
	}
	return true, nil
}

// captureAllowed applies the include and exclude globs against both the
// full path and the base name. Empty include means everything; exclude
// always wins.
func (d *Dispatcher) captureAllowed(filePath string) bool {
	normalized := filepath.ToSlash(filePath)
	base := path.Base(normalized)

	for _, g := range d.cfg.CaptureExclude {
		if globMatch(g, normalized, base) {
			return false
		}
	}
	if len(d.cfg.CaptureInclude) == 0 {
		return true
	}
	for _, g := range d.cfg.CaptureInclude {
		if globMatch(g, normalized, base) {
			return true
		}
	}
	return false
}

func globMatch(pattern, fullPath, base string) bool {
	if ok, err := path.Match(pattern, fullPath); err == nil && ok {
		return true
	}
	ok, err := path.Match(pattern, base)
	return err == nil && ok
}

// captureKey derives a stable memory key so the same observation in the
// same session is captured once.
func captureKey(obs ToolObservation) string {
	parts := []string{"capture", obs.SessionID, strings.ToLower(obs.Tool)}
	if obs.FilePath != "" {
		clean := strings.NewReplacer("/", "_", "\\", "_", ".", "_").Replace(filepath.ToSlash(obs.FilePath))
		parts = append(parts, clean)
	}
	return strings.Join(parts, ":")
}
