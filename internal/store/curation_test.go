package store

import (
	"errors"
	"testing"
)

// ─── Taxonomy ────────────────────────────────────────────────────────────────

func TestAliasMapIncludesSeedAliases(t *testing.T) {
	s := newTestStore(t)

	aliases, err := s.AliasMap(ctxT(t))
	if err != nil {
		t.Fatalf("AliasMap: %v", err)
	}
	if aliases["k8s"] != "kubernetes" {
		t.Errorf("k8s -> %q, want kubernetes", aliases["k8s"])
	}
	if aliases["pg"] != "postgresql" {
		t.Errorf("pg -> %q, want postgresql", aliases["pg"])
	}
	// Canonical tags map to themselves.
	if aliases["kubernetes"] != "kubernetes" {
		t.Error("canonical tag missing identity mapping")
	}
}

func TestRegisterCanonicalTagIdempotent(t *testing.T) {
	s := newTestStore(t)
	ctx := ctxT(t)

	tag := TagTaxonomy{CanonicalTag: "terraform", Aliases: []string{"tf"}}
	if err := s.RegisterCanonicalTag(ctx, tag); err != nil {
		t.Fatalf("first register: %v", err)
	}
	// Concurrent curators may race on the same tag; the second insert
	// must be a silent no-op.
	if err := s.RegisterCanonicalTag(ctx, tag); err != nil {
		t.Fatalf("second register: %v", err)
	}

	aliases, _ := s.AliasMap(ctx)
	if aliases["tf"] != "terraform" {
		t.Errorf("tf -> %q", aliases["tf"])
	}
}

func TestRewriteEntityTags(t *testing.T) {
	s := newTestStore(t)
	ctx := ctxT(t)

	m, err := s.StoreMemory(ctx, StoreMemoryParams{Key: "k", Content: "c", Tags: []string{"k8s", "kube"}})
	if err != nil {
		t.Fatal(err)
	}
	if err := s.RewriteEntityTags(ctx, "memories", m.ID, []string{"kubernetes"}); err != nil {
		t.Fatalf("RewriteEntityTags: %v", err)
	}
	got, _ := s.GetMemory(ctx, "k")
	if len(got.Tags) != 1 || got.Tags[0] != "kubernetes" {
		t.Errorf("tags = %v", got.Tags)
	}
}

// ─── Relationships ───────────────────────────────────────────────────────────

func TestAddRelationship(t *testing.T) {
	s := newTestStore(t)
	ctx := ctxT(t)

	m, _ := s.StoreMemory(ctx, StoreMemoryParams{Key: "k", Content: "c"})
	kb, _ := s.StoreKnowledge(ctx, StoreKnowledgeParams{Category: "development", Title: "T", Content: "c"})

	p := AddRelationshipParams{
		SourceTable: "memories", SourceID: m.ID,
		TargetTable: "knowledge_base", TargetID: kb.Entry.ID,
		RelationshipType: "documents",
	}
	id, err := s.AddRelationship(ctx, p)
	if err != nil {
		t.Fatalf("AddRelationship: %v", err)
	}
	if id == 0 {
		t.Fatal("no id for new relationship")
	}

	// Same link again is a no-op, reported as id 0.
	again, err := s.AddRelationship(ctx, p)
	if err != nil {
		t.Fatalf("repeat AddRelationship: %v", err)
	}
	if again != 0 {
		t.Errorf("repeat insert returned id %d, want 0", again)
	}

	rels, err := s.RelationshipsFor(ctx, "memories", m.ID)
	if err != nil {
		t.Fatal(err)
	}
	if len(rels) != 1 || rels[0].RelationshipType != "documents" {
		t.Errorf("relationships = %+v", rels)
	}
	if rels[0].Confidence != 1.0 {
		t.Errorf("default confidence = %v, want 1.0", rels[0].Confidence)
	}
}

func TestAddRelationshipValidation(t *testing.T) {
	s := newTestStore(t)
	ctx := ctxT(t)

	cases := []AddRelationshipParams{
		{SourceTable: "memories", SourceID: 1, TargetTable: "memories", TargetID: 1},                                   // self-loop
		{SourceTable: "systems", SourceID: 1, TargetTable: "memories", TargetID: 2},                                    // bad table
		{SourceTable: "memories", SourceID: 1, TargetTable: "memories", TargetID: 2, RelationshipType: "married_to"},   // bad type
		{SourceTable: "memories", SourceID: 1, TargetTable: "memories", TargetID: 2, Confidence: 1.5},                  // bad confidence
	}
	for _, p := range cases {
		if _, err := s.AddRelationship(ctx, p); !errors.Is(err, ErrValidation) {
			t.Errorf("AddRelationship(%+v) error = %v, want ErrValidation", p, err)
		}
	}
}

func TestHasLinksAndUnlinked(t *testing.T) {
	s := newTestStore(t)
	ctx := ctxT(t)

	linked, _ := s.StoreMemory(ctx, StoreMemoryParams{Key: "linked", Content: "c", Importance: 8})
	lonely, _ := s.StoreMemory(ctx, StoreMemoryParams{Key: "lonely", Content: "c", Importance: 8})
	kb, _ := s.StoreKnowledge(ctx, StoreKnowledgeParams{Category: "development", Title: "T", Content: "c"})

	if _, err := s.AddRelationship(ctx, AddRelationshipParams{
		SourceTable: "memories", SourceID: linked.ID,
		TargetTable: "knowledge_base", TargetID: kb.Entry.ID,
	}); err != nil {
		t.Fatal(err)
	}

	has, err := s.HasLinks(ctx, "memories", linked.ID)
	if err != nil || !has {
		t.Errorf("HasLinks(linked) = %v, %v", has, err)
	}
	has, err = s.HasLinks(ctx, "memories", lonely.ID)
	if err != nil || has {
		t.Errorf("HasLinks(lonely) = %v, %v", has, err)
	}

	unlinked, err := s.UnlinkedHighImportanceMemories(ctx, 7, 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(unlinked) != 1 || unlinked[0].Key != "lonely" {
		t.Errorf("unlinked = %+v", unlinked)
	}
}

// ─── Topics ──────────────────────────────────────────────────────────────────

func TestUpsertTopic(t *testing.T) {
	s := newTestStore(t)
	ctx := ctxT(t)

	id1, err := s.UpsertTopic(ctx, "kubernetes", "cluster ops", []string{"k8s"})
	if err != nil {
		t.Fatalf("first upsert: %v", err)
	}
	id2, err := s.UpsertTopic(ctx, "kubernetes", "cluster operations", []string{"k8s", "kube"})
	if err != nil {
		t.Fatalf("second upsert: %v", err)
	}
	if id1 != id2 {
		t.Errorf("upsert duplicated topic: %d vs %d", id1, id2)
	}

	topic, err := s.GetTopic(ctx, "kubernetes")
	if err != nil {
		t.Fatal(err)
	}
	if topic.Summary == nil || *topic.Summary != "cluster operations" {
		t.Errorf("summary not updated: %+v", topic)
	}
}

func TestLinkTopicEntry(t *testing.T) {
	s := newTestStore(t)
	ctx := ctxT(t)

	m, _ := s.StoreMemory(ctx, StoreMemoryParams{Key: "k", Content: "c"})
	topicID, _ := s.UpsertTopic(ctx, "topic", "", nil)

	if err := s.LinkTopicEntry(ctx, topicID, "memories", m.ID, 0.4); err != nil {
		t.Fatalf("first link: %v", err)
	}
	// Relinking updates relevance instead of duplicating.
	if err := s.LinkTopicEntry(ctx, topicID, "memories", m.ID, 0.9); err != nil {
		t.Fatalf("second link: %v", err)
	}

	entries, err := s.TopicEntries(ctx, topicID)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 {
		t.Fatalf("entries = %d, want 1", len(entries))
	}
	if entries[0].RelevanceScore != 0.9 {
		t.Errorf("relevance = %v, want 0.9", entries[0].RelevanceScore)
	}
}

// ─── Duplicates ──────────────────────────────────────────────────────────────

func TestFlagDuplicateNormalizesPairOrder(t *testing.T) {
	s := newTestStore(t)
	ctx := ctxT(t)

	created, err := s.FlagDuplicate(ctx, "memories", 2, "memories", 1, 0.8, "similarity")
	if err != nil {
		t.Fatalf("first flag: %v", err)
	}
	if !created {
		t.Fatal("first flag not created")
	}
	// The same pair in the other order is the same flag.
	created, err = s.FlagDuplicate(ctx, "memories", 1, "memories", 2, 0.9, "similarity")
	if err != nil {
		t.Fatalf("swapped flag: %v", err)
	}
	if created {
		t.Error("swapped pair created a second flag")
	}

	pending, _ := s.PendingDuplicates(ctx, 10)
	if len(pending) != 1 {
		t.Fatalf("pending = %d, want 1", len(pending))
	}
	if pending[0].Entry1ID != 1 || pending[0].Entry2ID != 2 {
		t.Errorf("pair order not normalized: %+v", pending[0])
	}
}

func TestResolveDuplicate(t *testing.T) {
	s := newTestStore(t)
	ctx := ctxT(t)

	if _, err := s.FlagDuplicate(ctx, "memories", 1, "memories", 2, 0.8, "similarity"); err != nil {
		t.Fatal(err)
	}
	pending, _ := s.PendingDuplicates(ctx, 10)
	id := pending[0].ID

	if err := s.ResolveDuplicate(ctx, id, DuplicateConfirmed, ""); !errors.Is(err, ErrValidation) {
		t.Errorf("resolve without reviewer error = %v, want ErrValidation", err)
	}
	if err := s.ResolveDuplicate(ctx, id, "merged", "alice"); !errors.Is(err, ErrValidation) {
		t.Errorf("invalid verdict error = %v, want ErrValidation", err)
	}
	if err := s.ResolveDuplicate(ctx, id, DuplicateConfirmed, "alice"); err != nil {
		t.Fatalf("resolve: %v", err)
	}
	// Resolution is terminal.
	if err := s.ResolveDuplicate(ctx, id, DuplicateRejected, "bob"); !errors.Is(err, ErrNotFound) {
		t.Errorf("re-resolve error = %v, want ErrNotFound", err)
	}

	pending, _ = s.PendingDuplicates(ctx, 10)
	if len(pending) != 0 {
		t.Error("resolved flag still pending")
	}
}

// ─── Audit ───────────────────────────────────────────────────────────────────

func TestPromotionHistory(t *testing.T) {
	s := newTestStore(t)
	ctx := ctxT(t)

	m, _ := s.StoreMemory(ctx, StoreMemoryParams{Key: "k", Content: "c"})
	if err := s.RecordPromotion(ctx, m.ID, StatusStaging, StatusPromoted, "earned it", "curator"); err != nil {
		t.Fatalf("RecordPromotion: %v", err)
	}

	history, err := s.PromotionHistory(ctx, m.ID)
	if err != nil {
		t.Fatal(err)
	}
	if len(history) != 1 || history[0].ToStatus != StatusPromoted {
		t.Errorf("history = %+v", history)
	}
}

func TestLogCurationRun(t *testing.T) {
	s := newTestStore(t)
	ctx := ctxT(t)

	stats := map[string]int{"examined": 5, "changed": 2}
	if err := s.LogCurationRun(ctx, "run-1", "tag_normalization", "tester", stats); err != nil {
		t.Fatalf("LogCurationRun: %v", err)
	}
	if err := s.LogCurationRun(ctx, "run-1", "memory_promotion", "tester", nil); err != nil {
		t.Fatalf("second phase: %v", err)
	}

	runs, err := s.CurationHistory(ctx, "run-1")
	if err != nil {
		t.Fatal(err)
	}
	if len(runs) != 2 {
		t.Fatalf("runs = %d, want 2", len(runs))
	}
	if runs[0].Operation != "tag_normalization" {
		t.Errorf("first op = %q", runs[0].Operation)
	}
}

func TestLogCurationRunInvalidOperation(t *testing.T) {
	s := newTestStore(t)
	err := s.LogCurationRun(ctxT(t), "run-1", "mass_deletion", "tester", nil)
	if !errors.Is(err, ErrValidation) {
		t.Errorf("error = %v, want ErrValidation", err)
	}
}
