package recall

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/worklog-dev/worklog/internal/config"
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

func testRecallConfig() config.RecallConfig {
	return config.RecallConfig{
		Budget:             500 * time.Millisecond,
		SamplesPerCategory: 3,
		AvgRecordTokens:    120,
		RecentDays:         7,
	}
}

func seedStore(t *testing.T, s *store.Store) {
	t.Helper()
	ctx := context.Background()
	for _, key := range []string{"alpha", "beta", "gamma", "delta", "epsilon"} {
		if _, err := s.StoreMemory(ctx, store.StoreMemoryParams{Key: key, Content: "c", Importance: 6}); err != nil {
			t.Fatal(err)
		}
	}
	if _, err := s.LogEntry(ctx, store.LogEntryParams{TaskType: "development", Title: "Built the thing"}); err != nil {
		t.Fatal(err)
	}
	if _, err := s.StoreKnowledge(ctx, store.StoreKnowledgeParams{
		Category: "development", Title: "How we test", Content: "t.TempDir everywhere",
	}); err != nil {
		t.Fatal(err)
	}
	if _, err := s.StoreErrorPattern(ctx, store.StoreErrorPatternParams{
		ErrorSignature: "context deadline exceeded",
	}); err != nil {
		t.Fatal(err)
	}
}

func TestBuildIndexOff(t *testing.T) {
	b := NewBuilder(newTestStore(t), testRecallConfig(), nil)
	idx := b.BuildIndex(context.Background(), "", 0, config.AutomationOff)
	if len(idx.Categories) != 0 || idx.Reminder != "" {
		t.Errorf("off-level index not empty: %+v", idx)
	}
}

func TestBuildIndexRemind(t *testing.T) {
	b := NewBuilder(newTestStore(t), testRecallConfig(), nil)
	idx := b.BuildIndex(context.Background(), "deployment", 0, config.AutomationRemind)
	if len(idx.Categories) != 0 {
		t.Error("remind level loaded categories")
	}
	if idx.Reminder == "" {
		t.Error("remind level produced no reminder")
	}
}

func TestBuildIndexLight(t *testing.T) {
	s := newTestStore(t)
	seedStore(t, s)
	b := NewBuilder(s, testRecallConfig(), nil)

	idx := b.BuildIndex(context.Background(), "", 0, config.AutomationLight)
	if len(idx.Categories) != 2 {
		t.Fatalf("light categories = %d, want 2", len(idx.Categories))
	}
	for _, c := range idx.Categories {
		if c.Category == CategoryKnowledge || c.Category == CategoryErrorPatterns {
			t.Errorf("light level loaded %s", c.Category)
		}
	}
}

func TestBuildIndexFull(t *testing.T) {
	s := newTestStore(t)
	seedStore(t, s)
	b := NewBuilder(s, testRecallConfig(), nil)

	idx := b.BuildIndex(context.Background(), "", 0, config.AutomationFull)
	if len(idx.Categories) != 4 {
		t.Fatalf("full categories = %d, want 4", len(idx.Categories))
	}

	var memories CategoryIndex
	for _, c := range idx.Categories {
		if c.Category == CategoryMemories {
			memories = c
		}
	}
	if memories.Count != 5 {
		t.Errorf("memories count = %d, want 5", memories.Count)
	}
	// The index carries at most three samples however many records exist.
	if len(memories.Samples) != 3 {
		t.Errorf("samples = %d, want 3", len(memories.Samples))
	}
	if memories.EstimatedTokens != 5*120 {
		t.Errorf("estimated tokens = %d, want %d", memories.EstimatedTokens, 5*120)
	}
	if len(idx.Critical) != 0 {
		t.Error("full level attached critical records")
	}
}

func TestBuildIndexMinImportance(t *testing.T) {
	s := newTestStore(t)
	seedStore(t, s) // five memories at importance 6
	ctx := context.Background()
	if _, err := s.StoreMemory(ctx, store.StoreMemoryParams{
		Key: "failover_runbook", Content: "c", Importance: 9,
	}); err != nil {
		t.Fatal(err)
	}

	b := NewBuilder(s, testRecallConfig(), nil)
	idx := b.BuildIndex(ctx, "", 8, config.AutomationFull)
	for _, c := range idx.Categories {
		if c.Category != CategoryMemories {
			continue
		}
		if c.Count != 1 || c.Samples[0] != "failover_runbook" {
			t.Errorf("memories = %+v, want only the importance-9 record", c)
		}
	}
}

func TestBuildIndexTopicScopesQueries(t *testing.T) {
	s := newTestStore(t)
	seedStore(t, s)
	ctx := context.Background()
	if _, err := s.StoreMemory(ctx, store.StoreMemoryParams{
		Key: "billing_cutover", Content: "dual-write during the cutover", Importance: 7,
	}); err != nil {
		t.Fatal(err)
	}

	b := NewBuilder(s, testRecallConfig(), nil)
	idx := b.BuildIndex(ctx, "billing", 0, config.AutomationFull)
	for _, c := range idx.Categories {
		switch c.Category {
		case CategoryMemories:
			if c.Count != 1 || c.Samples[0] != "billing_cutover" {
				t.Errorf("memories = %+v, want the billing record only", c)
			}
		case CategoryRecentWork, CategoryKnowledge, CategoryErrorPatterns:
			if c.Count != 0 {
				t.Errorf("%s count = %d, topic must scope the query", c.Category, c.Count)
			}
		}
	}
}

func TestBuildIndexAggressiveAttachesCritical(t *testing.T) {
	s := newTestStore(t)
	seedStore(t, s)
	ctx := context.Background()
	if _, err := s.StoreMemory(ctx, store.StoreMemoryParams{
		Key: "prod_credentials_rotation", Content: "rotate every 90 days", Importance: 9,
	}); err != nil {
		t.Fatal(err)
	}

	b := NewBuilder(s, testRecallConfig(), nil)
	idx := b.BuildIndex(ctx, "", 0, config.AutomationAggressive)
	if len(idx.Critical) != 1 || idx.Critical[0].Key != "prod_credentials_rotation" {
		t.Errorf("critical = %+v", idx.Critical)
	}
	// Critical records come with full content, not samples.
	if idx.Critical[0].Content == "" {
		t.Error("critical record missing content")
	}
}

func TestBuildIndexDegradesOnDeadline(t *testing.T) {
	s := newTestStore(t)
	seedStore(t, s)

	cfg := testRecallConfig()
	cfg.Budget = time.Nanosecond // guaranteed to be exceeded
	b := NewBuilder(s, cfg, nil)

	idx := b.BuildIndex(context.Background(), "migrations", 0, config.AutomationFull)
	if !idx.Degraded {
		t.Fatal("index not degraded past the budget")
	}
	if idx.Reminder == "" {
		t.Error("degraded index carries no reminder")
	}
}

func TestFetchDetailCategory(t *testing.T) {
	s := newTestStore(t)
	seedStore(t, s)
	b := NewBuilder(s, testRecallConfig(), nil)

	d, err := b.FetchDetail(context.Background(), CategoryKnowledge, 10)
	if err != nil {
		t.Fatalf("FetchDetail: %v", err)
	}
	if len(d.Knowledge) != 1 || d.Knowledge[0].Title != "How we test" {
		t.Errorf("knowledge = %+v", d.Knowledge)
	}
	if d.Knowledge[0].Content == "" {
		t.Error("detail fetch returned no content")
	}
}

func TestFetchDetailFreeText(t *testing.T) {
	s := newTestStore(t)
	seedStore(t, s)
	b := NewBuilder(s, testRecallConfig(), nil)

	d, err := b.FetchDetail(context.Background(), "deadline", 10)
	if err != nil {
		t.Fatalf("FetchDetail: %v", err)
	}
	if len(d.Hits) != 1 || d.Hits[0].Table != "error_patterns" {
		t.Errorf("hits = %+v", d.Hits)
	}
}
