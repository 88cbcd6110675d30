package worktools

import (
	"context"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/worklog-dev/worklog/internal/store"
)

// LogEntryTool handles the log_entry MCP tool.
type LogEntryTool struct {
	store *store.Store
}

// NewLogEntryTool creates a LogEntryTool.
func NewLogEntryTool(s *store.Store) *LogEntryTool {
	return &LogEntryTool{store: s}
}

// Definition returns the MCP tool definition for log_entry.
func (t *LogEntryTool) Definition() mcp.Tool {
	return mcp.NewTool("log_entry",
		mcp.WithDescription(
			"Log a completed unit of work to the shared work journal. Entries are append-only: "+
				"log what was done, what the outcome was, and which files were involved.",
		),
		mcp.WithString("title",
			mcp.Required(),
			mcp.Description("Short description of the work"),
		),
		mcp.WithString("task_type",
			mcp.Required(),
			mcp.Description("One of: configuration, deployment, debugging, development, documentation, research, maintenance, handoff"),
		),
		mcp.WithString("details",
			mcp.Description("What was done, in a few sentences"),
		),
		mcp.WithString("outcome",
			mcp.Description("Result: what works now, what is still open"),
		),
		mcp.WithString("tags",
			mcp.Description("Comma-separated tags"),
		),
		mcp.WithString("related_files",
			mcp.Description("Comma-separated file paths touched"),
		),
		mcp.WithString("agent",
			mcp.Description("Agent identifier (default: agent)"),
		),
	)
}

// Handle processes the log_entry tool call.
func (t *LogEntryTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	title := req.GetString("title", "")
	taskType := req.GetString("task_type", "")
	if title == "" {
		return mcp.NewToolResultError("'title' is required"), nil
	}
	if taskType == "" {
		return mcp.NewToolResultError("'task_type' is required"), nil
	}

	entry, err := t.store.LogEntry(ctx, store.LogEntryParams{
		Agent:        req.GetString("agent", ""),
		TaskType:     taskType,
		Title:        title,
		Details:      req.GetString("details", ""),
		Outcome:      req.GetString("outcome", ""),
		Tags:         listArg(req, "tags"),
		RelatedFiles: req.GetString("related_files", ""),
	})
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to log entry: %v", err)), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("Work entry logged: %q (%s)\nID: %d", entry.Title, entry.TaskType, entry.ID)), nil
}

// ─── RecentEntriesTool ───────────────────────────────────────────────────────

// RecentEntriesTool handles the get_recent_entries MCP tool.
type RecentEntriesTool struct {
	store *store.Store
}

// NewRecentEntriesTool creates a RecentEntriesTool.
func NewRecentEntriesTool(s *store.Store) *RecentEntriesTool {
	return &RecentEntriesTool{store: s}
}

// Definition returns the MCP tool definition for get_recent_entries.
func (t *RecentEntriesTool) Definition() mcp.Tool {
	return mcp.NewTool("get_recent_entries",
		mcp.WithDescription("List recent work journal entries, newest first, optionally filtered by agent."),
		mcp.WithString("agent",
			mcp.Description("Only entries by this agent"),
		),
		mcp.WithString("topic",
			mcp.Description("Only entries whose title or tags contain this substring"),
		),
		mcp.WithNumber("days",
			mcp.Description("Lookback window in days (default: 7)"),
		),
		mcp.WithNumber("limit",
			mcp.Description("Max entries (default: 10)"),
		),
	)
}

// Handle processes the get_recent_entries tool call.
func (t *RecentEntriesTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	entries, err := t.store.RecentEntries(ctx,
		req.GetString("agent", ""), req.GetString("topic", ""),
		intArg(req, "days", 7), intArg(req, "limit", 10))
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to list entries: %v", err)), nil
	}
	if len(entries) == 0 {
		return mcp.NewToolResultText("No recent work entries."), nil
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Recent work (%d entries):\n\n", len(entries))
	for _, e := range entries {
		fmt.Fprintf(&b, "[%s] %s (%s, %s)\n", e.CreatedAt, e.Title, e.TaskType, e.Agent)
		if e.Outcome != nil && *e.Outcome != "" {
			fmt.Fprintf(&b, "  outcome: %s\n", *e.Outcome)
		}
	}
	return mcp.NewToolResultText(b.String()), nil
}
