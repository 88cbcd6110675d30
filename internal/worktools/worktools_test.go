package worktools

import (
	"context"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/worklog-dev/worklog/internal/config"
	"github.com/worklog-dev/worklog/internal/curation"
	"github.com/worklog-dev/worklog/internal/recall"
	"github.com/worklog-dev/worklog/internal/store"
)

// ─── Test helpers ────────────────────────────────────────────────────────────

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

func newTestBuilder(s *store.Store) *recall.Builder {
	return recall.NewBuilder(s, config.RecallConfig{
		Budget:             500 * time.Millisecond,
		SamplesPerCategory: 3,
		AvgRecordTokens:    120,
		RecentDays:         7,
	}, nil)
}

// makeReq builds a mcp.CallToolRequest with the given arguments.
func makeReq(args map[string]interface{}) mcp.CallToolRequest {
	req := mcp.CallToolRequest{}
	req.Params.Arguments = args
	return req
}

// resultText extracts the text content from a tool result.
func resultText(r *mcp.CallToolResult) string {
	if r == nil || len(r.Content) == 0 {
		return ""
	}
	for _, c := range r.Content {
		if tc, ok := c.(mcp.TextContent); ok {
			return tc.Text
		}
	}
	return ""
}

// ─── StoreMemoryTool ─────────────────────────────────────────────────────────

func TestStoreMemoryTool(t *testing.T) {
	s := newTestStore(t)
	tool := NewStoreMemoryTool(s)

	if tool.Definition().Name != "store_memory" {
		t.Errorf("tool name = %q", tool.Definition().Name)
	}

	res, err := tool.Handle(context.Background(), makeReq(map[string]interface{}{
		"key":        "db_host",
		"content":    "primary is on pg-1",
		"importance": float64(7),
		"tags":       "postgres, infra",
	}))
	if err != nil {
		t.Fatalf("Handle: %v", err)
	}
	if res.IsError {
		t.Fatalf("unexpected error result: %s", resultText(res))
	}
	if !strings.Contains(resultText(res), "staging") {
		t.Errorf("result missing staging status: %s", resultText(res))
	}

	m, err := s.GetMemory(context.Background(), "db_host")
	if err != nil {
		t.Fatal(err)
	}
	if m.Importance != 7 || len(m.Tags) != 2 {
		t.Errorf("memory = %+v", m)
	}
}

func TestStoreMemoryToolMissingKey(t *testing.T) {
	tool := NewStoreMemoryTool(newTestStore(t))
	res, err := tool.Handle(context.Background(), makeReq(map[string]interface{}{"content": "c"}))
	if err != nil {
		t.Fatalf("Handle: %v", err)
	}
	if !res.IsError {
		t.Error("missing key accepted")
	}
}

func TestStoreMemoryToolDuplicate(t *testing.T) {
	tool := NewStoreMemoryTool(newTestStore(t))
	req := makeReq(map[string]interface{}{"key": "k", "content": "c"})

	if _, err := tool.Handle(context.Background(), req); err != nil {
		t.Fatal(err)
	}
	res, err := tool.Handle(context.Background(), req)
	if err != nil {
		t.Fatal(err)
	}
	if !res.IsError || !strings.Contains(resultText(res), "update_memory") {
		t.Errorf("duplicate result = %s", resultText(res))
	}
}

// ─── UpdateMemoryTool / GetMemoryTool ────────────────────────────────────────

func TestUpdateMemoryTool(t *testing.T) {
	s := newTestStore(t)
	if _, err := s.StoreMemory(context.Background(), store.StoreMemoryParams{Key: "k", Content: "old"}); err != nil {
		t.Fatal(err)
	}

	tool := NewUpdateMemoryTool(s)
	res, err := tool.Handle(context.Background(), makeReq(map[string]interface{}{
		"key":     "k",
		"content": "new",
		"status":  "promoted",
	}))
	if err != nil {
		t.Fatal(err)
	}
	if res.IsError {
		t.Fatalf("error result: %s", resultText(res))
	}

	m, _ := s.GetMemory(context.Background(), "k")
	if m.Content != "new" || m.Status != store.StatusPromoted {
		t.Errorf("memory = %+v", m)
	}
}

func TestUpdateMemoryToolBackwardsTransition(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	if _, err := s.StoreMemory(ctx, store.StoreMemoryParams{Key: "k", Content: "c"}); err != nil {
		t.Fatal(err)
	}
	status := store.StatusArchived
	if _, err := s.UpdateMemory(ctx, "k", store.UpdateMemoryParams{Status: &status}); err != nil {
		t.Fatal(err)
	}

	tool := NewUpdateMemoryTool(s)
	res, err := tool.Handle(ctx, makeReq(map[string]interface{}{"key": "k", "status": "staging"}))
	if err != nil {
		t.Fatal(err)
	}
	if !res.IsError {
		t.Error("backwards status transition accepted")
	}
}

func TestGetMemoryToolNotFound(t *testing.T) {
	tool := NewGetMemoryTool(newTestStore(t))
	res, err := tool.Handle(context.Background(), makeReq(map[string]interface{}{"key": "missing"}))
	if err != nil {
		t.Fatal(err)
	}
	if !res.IsError {
		t.Error("missing key did not error")
	}
}

// ─── Knowledge tools ─────────────────────────────────────────────────────────

func TestStoreKnowledgeToolAppend(t *testing.T) {
	tool := NewStoreKnowledgeTool(newTestStore(t))
	ctx := context.Background()

	res, err := tool.Handle(ctx, makeReq(map[string]interface{}{
		"category": "infrastructure",
		"title":    "Nginx reverse proxy setup",
		"content":  "proxy_pass upstream",
	}))
	if err != nil {
		t.Fatal(err)
	}
	if res.IsError {
		t.Fatalf("error result: %s", resultText(res))
	}

	res, err = tool.Handle(ctx, makeReq(map[string]interface{}{
		"category": "infrastructure",
		"title":    "Nginx reverse proxy tuning",
		"content":  "keepalive connections",
	}))
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(resultText(res), "Appended") {
		t.Errorf("overlap did not append: %s", resultText(res))
	}
}

func TestStoreKnowledgeToolBadCategory(t *testing.T) {
	tool := NewStoreKnowledgeTool(newTestStore(t))
	res, err := tool.Handle(context.Background(), makeReq(map[string]interface{}{
		"category": "rumors", "title": "t", "content": "c",
	}))
	if err != nil {
		t.Fatal(err)
	}
	if !res.IsError {
		t.Error("invalid category accepted")
	}
}

// ─── Entry tools ─────────────────────────────────────────────────────────────

func TestLogEntryAndRecentEntriesTools(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	logTool := NewLogEntryTool(s)
	res, err := logTool.Handle(ctx, makeReq(map[string]interface{}{
		"title":     "Rotated TLS certs",
		"task_type": "maintenance",
		"outcome":   "expires 2027",
	}))
	if err != nil {
		t.Fatal(err)
	}
	if res.IsError {
		t.Fatalf("error result: %s", resultText(res))
	}

	recentTool := NewRecentEntriesTool(s)
	res, err = recentTool.Handle(ctx, makeReq(map[string]interface{}{}))
	if err != nil {
		t.Fatal(err)
	}
	text := resultText(res)
	if !strings.Contains(text, "Rotated TLS certs") || !strings.Contains(text, "expires 2027") {
		t.Errorf("recent entries output: %s", text)
	}
}

// ─── Recall tools ────────────────────────────────────────────────────────────

func TestRecallContextTool(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	if _, err := s.LogEntry(ctx, store.LogEntryParams{TaskType: "development", Title: "Prior work"}); err != nil {
		t.Fatal(err)
	}

	tool := NewRecallContextTool(newTestBuilder(s), config.AutomationFull)
	res, err := tool.Handle(ctx, makeReq(map[string]interface{}{}))
	if err != nil {
		t.Fatal(err)
	}
	text := resultText(res)
	if !strings.Contains(text, "recent_work") {
		t.Errorf("index output: %s", text)
	}
	if !strings.Contains(text, "Prior work") {
		t.Errorf("sample missing: %s", text)
	}
	// The index never carries full entry bodies.
	if strings.Contains(text, "fetch_detail") == false {
		t.Errorf("no pointer to detail fetch: %s", text)
	}
}

func TestRecallContextToolMinImportance(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	if _, err := s.StoreMemory(ctx, store.StoreMemoryParams{Key: "minor_note", Content: "c", Importance: 5}); err != nil {
		t.Fatal(err)
	}
	if _, err := s.StoreMemory(ctx, store.StoreMemoryParams{Key: "failover_runbook", Content: "c", Importance: 9}); err != nil {
		t.Fatal(err)
	}

	tool := NewRecallContextTool(newTestBuilder(s), config.AutomationFull)
	res, err := tool.Handle(ctx, makeReq(map[string]interface{}{"min_importance": 8.0}))
	if err != nil {
		t.Fatal(err)
	}
	text := resultText(res)
	if !strings.Contains(text, "failover_runbook") {
		t.Errorf("importance-9 memory missing: %s", text)
	}
	if strings.Contains(text, "minor_note") {
		t.Errorf("memory below the floor listed: %s", text)
	}
}

func TestRecallContextToolLevelOverride(t *testing.T) {
	s := newTestStore(t)
	tool := NewRecallContextTool(newTestBuilder(s), config.AutomationFull)

	res, err := tool.Handle(context.Background(), makeReq(map[string]interface{}{"level": "remind"}))
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(resultText(res), "recall_context or search_knowledge") {
		t.Errorf("remind override output: %s", resultText(res))
	}

	res, err = tool.Handle(context.Background(), makeReq(map[string]interface{}{"level": "everything"}))
	if err != nil {
		t.Fatal(err)
	}
	if !res.IsError {
		t.Error("invalid level accepted")
	}
}

func TestFetchDetailTool(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	if _, err := s.StoreKnowledge(ctx, store.StoreKnowledgeParams{
		Category: "development", Title: "How we deploy", Content: "blue-green via the release job",
	}); err != nil {
		t.Fatal(err)
	}

	tool := NewFetchDetailTool(newTestBuilder(s))
	res, err := tool.Handle(ctx, makeReq(map[string]interface{}{"category": "knowledge"}))
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(resultText(res), "blue-green") {
		t.Errorf("detail output missing content: %s", resultText(res))
	}
}

// ─── Search tool ─────────────────────────────────────────────────────────────

func TestSearchKnowledgeTool(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	if _, err := s.StoreMemory(ctx, store.StoreMemoryParams{Key: "redis_eviction", Content: "allkeys-lru"}); err != nil {
		t.Fatal(err)
	}

	tool := NewSearchKnowledgeTool(s)
	res, err := tool.Handle(ctx, makeReq(map[string]interface{}{"query": "redis"}))
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(resultText(res), "redis_eviction") {
		t.Errorf("search output: %s", resultText(res))
	}

	res, err = tool.Handle(ctx, makeReq(map[string]interface{}{"query": "nonexistent-term"}))
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(resultText(res), "No results") {
		t.Errorf("empty search output: %s", resultText(res))
	}
}

// ─── Query tools ─────────────────────────────────────────────────────────────

func TestQueryTableTool(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	if _, err := s.StoreMemory(ctx, store.StoreMemoryParams{Key: "k", Content: "c"}); err != nil {
		t.Fatal(err)
	}

	tool := NewQueryTableTool(s)
	res, err := tool.Handle(ctx, makeReq(map[string]interface{}{
		"table":   "memories",
		"filters": map[string]interface{}{"status": "staging"},
	}))
	if err != nil {
		t.Fatal(err)
	}
	if res.IsError {
		t.Fatalf("error result: %s", resultText(res))
	}
	if !strings.Contains(resultText(res), `"total": 1`) {
		t.Errorf("query output: %s", resultText(res))
	}
}

func TestListTablesTool(t *testing.T) {
	tool := NewListTablesTool(newTestStore(t))
	res, err := tool.Handle(context.Background(), makeReq(nil))
	if err != nil {
		t.Fatal(err)
	}
	text := resultText(res)
	for _, table := range []string{"memories", "knowledge_base", "curation_history"} {
		if !strings.Contains(text, table) {
			t.Errorf("table %q missing from listing", table)
		}
	}
}

// ─── Curation tools ──────────────────────────────────────────────────────────

func testEngine(s *store.Store) *curation.Engine {
	return curation.NewEngine(s, nil, config.CurationConfig{
		PromotionImportance: 7,
		ArchivalImportance:  4,
		ArchivalAge:         720 * time.Hour,
		SimilarityFloor:     0.7,
		ConfidenceFloor:     0.5,
		TitleWeight:         0.3,
		ContentWeight:       0.5,
		TagWeight:           0.2,
		MaxItemsPerPhase:    200,
	}, "test", nil)
}

func TestRunCurationTool(t *testing.T) {
	s := newTestStore(t)
	tool := NewRunCurationTool(testEngine(s))

	res, err := tool.Handle(context.Background(), makeReq(map[string]interface{}{}))
	if err != nil {
		t.Fatal(err)
	}
	text := resultText(res)
	for _, op := range curation.AllPhases {
		if !strings.Contains(text, op) {
			t.Errorf("phase %q missing from report: %s", op, text)
		}
	}
}

func TestReviewDuplicateTool(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	if _, err := s.FlagDuplicate(ctx, "memories", 1, "memories", 2, 0.8, "similarity"); err != nil {
		t.Fatal(err)
	}

	tool := NewReviewDuplicateTool(s)

	// Listing without an id.
	res, err := tool.Handle(ctx, makeReq(map[string]interface{}{}))
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(resultText(res), "pending duplicate") {
		t.Errorf("listing output: %s", resultText(res))
	}

	pending, _ := s.PendingDuplicates(ctx, 10)

	// Resolving without a reviewer is rejected.
	res, err = tool.Handle(ctx, makeReq(map[string]interface{}{
		"id": float64(pending[0].ID), "verdict": "confirmed",
	}))
	if err != nil {
		t.Fatal(err)
	}
	if !res.IsError {
		t.Error("resolution without reviewer accepted")
	}

	res, err = tool.Handle(ctx, makeReq(map[string]interface{}{
		"id": float64(pending[0].ID), "verdict": "confirmed", "reviewer": "alice",
	}))
	if err != nil {
		t.Fatal(err)
	}
	if res.IsError {
		t.Fatalf("resolution failed: %s", resultText(res))
	}
}
