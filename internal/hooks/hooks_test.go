package hooks

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/worklog-dev/worklog/internal/classify"
	"github.com/worklog-dev/worklog/internal/config"
	"github.com/worklog-dev/worklog/internal/recall"
	"github.com/worklog-dev/worklog/internal/store"
)

func newTestStore(t *testing.T) *store.Store {
	t.Helper()
	s, err := store.Open(config.StoreConfig{
		Backend: config.BackendSQLite,
		Path:    filepath.Join(t.TempDir(), "worklog.db"),
		System:  "test",
	})
	if err != nil {
		t.Fatalf("failed to create test store: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func newTestDispatcher(t *testing.T, s *store.Store, cfg config.HooksConfig) *Dispatcher {
	t.Helper()
	builder := recall.NewBuilder(s, config.RecallConfig{
		Budget:             500 * time.Millisecond,
		SamplesPerCategory: 3,
		AvgRecordTokens:    120,
		RecentDays:         7,
	}, nil)
	return NewDispatcher(s, builder, nil, cfg, nil)
}

func fullCaptureConfig() config.HooksConfig {
	return config.HooksConfig{
		SessionStart: config.AutomationFull,
		SessionEnd:   config.AutomationFull,
		PostToolUse:  config.AutomationFull,
	}
}

func TestOnSessionStart(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	if _, err := s.LogEntry(ctx, store.LogEntryParams{TaskType: "development", Title: "Yesterday's work"}); err != nil {
		t.Fatal(err)
	}

	d := newTestDispatcher(t, s, fullCaptureConfig())
	idx := d.OnSessionStart(ctx, "", 0)
	if len(idx.Categories) == 0 {
		t.Fatal("session start produced no index")
	}
}

func TestOnSessionEnd(t *testing.T) {
	s := newTestStore(t)
	d := newTestDispatcher(t, s, fullCaptureConfig())

	res, err := d.OnSessionEnd(context.Background(), "agent", classify.SessionActivity{
		SessionID:      "s-1",
		CompletedTasks: []string{"Shipped the feature"},
	})
	if err != nil {
		t.Fatalf("OnSessionEnd: %v", err)
	}
	if res.EntryID == 0 {
		t.Error("session end wrote no entry")
	}
}

func TestOnPostToolUseCaptures(t *testing.T) {
	s := newTestStore(t)
	d := newTestDispatcher(t, s, fullCaptureConfig())
	ctx := context.Background()

	obs := ToolObservation{
		SessionID: "s-1",
		Tool:      "Edit",
		FilePath:  "internal/billing/schema.go",
		Note:      "schema.go now owns invoice line items",
	}
	stored, err := d.OnPostToolUse(ctx, obs)
	if err != nil {
		t.Fatalf("OnPostToolUse: %v", err)
	}
	if !stored {
		t.Fatal("observation not captured")
	}

	// Captures land in staging, never anywhere else.
	memories, err := s.StagingMemories(ctx, 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(memories) != 1 {
		t.Fatalf("staging memories = %d, want 1", len(memories))
	}
	if memories[0].Content != obs.Note {
		t.Errorf("content = %q", memories[0].Content)
	}

	// The same observation in the same session is captured once.
	stored, err = d.OnPostToolUse(ctx, obs)
	if err != nil {
		t.Fatalf("repeat OnPostToolUse: %v", err)
	}
	if stored {
		t.Error("repeat observation captured twice")
	}
}

func TestOnPostToolUseRespectsLevel(t *testing.T) {
	s := newTestStore(t)
	for _, level := range []config.AutomationLevel{
		config.AutomationOff, config.AutomationRemind, config.AutomationLight,
	} {
		cfg := fullCaptureConfig()
		cfg.PostToolUse = level
		d := newTestDispatcher(t, s, cfg)

		stored, err := d.OnPostToolUse(context.Background(), ToolObservation{
			SessionID: "s-1", Tool: "Edit", Note: "n",
		})
		if err != nil {
			t.Fatalf("level %s: %v", level, err)
		}
		if stored {
			t.Errorf("level %s captured an observation", level)
		}
	}
}

func TestOnPostToolUseGlobFilters(t *testing.T) {
	s := newTestStore(t)
	cfg := fullCaptureConfig()
	cfg.CaptureInclude = []string{"*.go", "*.sql"}
	cfg.CaptureExclude = []string{"*_test.go", "vendor/*"}
	d := newTestDispatcher(t, s, cfg)
	ctx := context.Background()

	cases := []struct {
		path string
		want bool
	}{
		{"internal/billing/schema.go", true},
		{"db/migrate.sql", true},
		{"internal/billing/schema_test.go", false}, // excluded
		{"vendor/lib.go", false},                   // excluded wins over included
		{"README.md", false},                       // not included
	}
	for i, c := range cases {
		stored, err := d.OnPostToolUse(ctx, ToolObservation{
			SessionID: "s-1", Tool: "Edit", FilePath: c.path,
			Note: "note " + c.path,
		})
		if err != nil {
			t.Fatalf("case %d: %v", i, err)
		}
		if stored != c.want {
			t.Errorf("capture(%q) = %v, want %v", c.path, stored, c.want)
		}
	}
}

func TestOnPostToolUseIgnoresEmptyNote(t *testing.T) {
	d := newTestDispatcher(t, newTestStore(t), fullCaptureConfig())
	stored, err := d.OnPostToolUse(context.Background(), ToolObservation{SessionID: "s", Tool: "Edit"})
	if err != nil {
		t.Fatal(err)
	}
	if stored {
		t.Error("empty note captured")
	}
}
