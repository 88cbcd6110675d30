// Package server wires the worklog components and creates the MCP server
// instance.
//
// This is the composition root: it opens the store, builds the recall,
// curation, and classification services, and injects them into the tool
// handlers. No business logic lives here, only wiring.
package server

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/mark3labs/mcp-go/server"

	"github.com/worklog-dev/worklog/internal/classify"
	"github.com/worklog-dev/worklog/internal/config"
	"github.com/worklog-dev/worklog/internal/curation"
	"github.com/worklog-dev/worklog/internal/recall"
	"github.com/worklog-dev/worklog/internal/store"
	"github.com/worklog-dev/worklog/internal/worktools"
)

// Version is set at build time via ldflags.
var Version = "dev"

// New creates the MCP server with every worklog tool registered. The
// returned cleanup function closes the store and must be called on
// shutdown; it is always non-nil.
//
// The LLM classifier is optional: without an API key the server still
// serves every tool, and curation's relationship discovery reports
// itself as skipped.
func New(cfg config.Config, log *slog.Logger) (*server.MCPServer, func(), error) {
	if log == nil {
		log = slog.Default()
	}

	st, err := store.Open(cfg.Store)
	if err != nil {
		return nil, noop, fmt.Errorf("opening store: %w", err)
	}
	cleanup := func() {
		if err := st.Close(); err != nil {
			log.Warn("store close", "err", err)
		}
	}

	if err := st.RegisterSystem(context.Background(), "", string(cfg.Hooks.SessionStart), string(cfg.Store.Backend)); err != nil {
		log.Warn("system registration failed", "err", err)
	}

	var classifier classify.Classifier
	if cfg.OpenAI.APIKey != "" {
		classifier = classify.NewOpenAI(cfg.OpenAI.APIKey, cfg.OpenAI.Model)
	} else {
		log.Info("no OpenAI key configured, LLM-assisted curation disabled")
	}

	builder := recall.NewBuilder(st, cfg.Recall, log)
	engine := curation.NewEngine(st, classifier, cfg.Curation, "mcp:"+st.System(), log)

	s := server.NewMCPServer(
		"worklog",
		Version,
		server.WithToolCapabilities(true),
		server.WithRecovery(),
		server.WithInstructions(serverInstructions()),
	)

	registerTools(s, st, builder, engine, cfg)
	return s, cleanup, nil
}

// noop is the default cleanup when store init failed.
func noop() {}

// registerTools registers the full worklog tool surface.
func registerTools(s *server.MCPServer, st *store.Store, builder *recall.Builder, engine *curation.Engine, cfg config.Config) {
	// --- Context retrieval ---
	recallTool := worktools.NewRecallContextTool(builder, cfg.Hooks.SessionStart)
	s.AddTool(recallTool.Definition(), recallTool.Handle)

	fetchTool := worktools.NewFetchDetailTool(builder)
	s.AddTool(fetchTool.Definition(), fetchTool.Handle)

	searchTool := worktools.NewSearchKnowledgeTool(st)
	s.AddTool(searchTool.Definition(), searchTool.Handle)

	// --- Memories ---
	storeMemory := worktools.NewStoreMemoryTool(st)
	s.AddTool(storeMemory.Definition(), storeMemory.Handle)

	updateMemory := worktools.NewUpdateMemoryTool(st)
	s.AddTool(updateMemory.Definition(), updateMemory.Handle)

	getMemory := worktools.NewGetMemoryTool(st)
	s.AddTool(getMemory.Definition(), getMemory.Handle)

	// --- Knowledge base ---
	storeKnowledge := worktools.NewStoreKnowledgeTool(st)
	s.AddTool(storeKnowledge.Definition(), storeKnowledge.Handle)

	getKnowledge := worktools.NewGetKnowledgeEntryTool(st)
	s.AddTool(getKnowledge.Definition(), getKnowledge.Handle)

	// --- Work journal ---
	logEntry := worktools.NewLogEntryTool(st)
	s.AddTool(logEntry.Definition(), logEntry.Handle)

	recentEntries := worktools.NewRecentEntriesTool(st)
	s.AddTool(recentEntries.Definition(), recentEntries.Handle)

	// --- Organization ---
	addRelationship := worktools.NewAddRelationshipTool(st)
	s.AddTool(addRelationship.Definition(), addRelationship.Handle)

	createTopic := worktools.NewCreateTopicTool(st)
	s.AddTool(createTopic.Definition(), createTopic.Handle)

	// --- Curation ---
	runCuration := worktools.NewRunCurationTool(engine)
	s.AddTool(runCuration.Definition(), runCuration.Handle)

	reviewDuplicate := worktools.NewReviewDuplicateTool(st)
	s.AddTool(reviewDuplicate.Definition(), reviewDuplicate.Handle)

	curationHistory := worktools.NewCurationHistoryTool(st)
	s.AddTool(curationHistory.Definition(), curationHistory.Handle)

	// --- Diagnostics ---
	queryTable := worktools.NewQueryTableTool(st)
	s.AddTool(queryTable.Definition(), queryTable.Handle)

	listTables := worktools.NewListTablesTool(st)
	s.AddTool(listTables.Definition(), listTables.Handle)
}

func serverInstructions() string {
	return `Worklog is your persistent memory across coding sessions.

At session start, call recall_context to load the index of what past
sessions learned. The index is cheap (counts and samples); fetch_detail
loads full records on demand.

During work:
- search_knowledge before debugging anything that smells familiar
- store_memory for facts worth keeping (stable key, honest importance)
- store_knowledge for reusable how-to and decision records
- log_entry when a unit of work completes

Worklog never deletes: knowledge appends, memories archive, and
curation only flags duplicates for review.`
}
