package worktools

import (
	"context"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/worklog-dev/worklog/internal/config"
	"github.com/worklog-dev/worklog/internal/recall"
)

// RecallContextTool handles the recall_context MCP tool.
type RecallContextTool struct {
	builder *recall.Builder
	level   config.AutomationLevel
}

// NewRecallContextTool creates a RecallContextTool.
func NewRecallContextTool(builder *recall.Builder, level config.AutomationLevel) *RecallContextTool {
	return &RecallContextTool{builder: builder, level: level}
}

// Definition returns the MCP tool definition for recall_context.
func (t *RecallContextTool) Definition() mcp.Tool {
	return mcp.NewTool("recall_context",
		mcp.WithDescription(
			"Load the cross-session context index: counts and samples of recent work, memories, "+
				"knowledge, and error patterns. Call this at the START of a session before doing anything else. "+
				"The index is cheap; use fetch_detail to read full records.",
		),
		mcp.WithString("topic",
			mcp.Description("Optional topic to scope the index to, matched as a substring (e.g. 'deployment', 'auth')"),
		),
		mcp.WithNumber("min_importance",
			mcp.Description("Only include memories at or above this importance (default: 5)"),
		),
		mcp.WithString("level",
			mcp.Description("Override automation level for this call: off, remind, light, full, aggressive"),
		),
	)
}

// Handle processes the recall_context tool call.
func (t *RecallContextTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	topic := req.GetString("topic", "")
	level := t.level
	if override := req.GetString("level", ""); override != "" {
		if !config.ValidAutomationLevel(config.AutomationLevel(override)) {
			return mcp.NewToolResultError(fmt.Sprintf("invalid level %q", override)), nil
		}
		level = config.AutomationLevel(override)
	}

	idx := t.builder.BuildIndex(ctx, topic, intArg(req, "min_importance", 0), level)
	return mcp.NewToolResultText(formatIndex(idx)), nil
}

func formatIndex(idx recall.Index) string {
	var b strings.Builder
	b.WriteString("# Worklog context\n\n")
	if idx.Reminder != "" {
		b.WriteString(idx.Reminder + "\n")
		return b.String()
	}
	if len(idx.Categories) == 0 {
		return "No worklog context recorded yet."
	}
	for _, c := range idx.Categories {
		fmt.Fprintf(&b, "## %s (%d records, ~%d tokens)\n", c.Category, c.Count, c.EstimatedTokens)
		for _, s := range c.Samples {
			fmt.Fprintf(&b, "- %s\n", s)
		}
		b.WriteString("\n")
	}
	if len(idx.Critical) > 0 {
		b.WriteString("## critical\n")
		for _, m := range idx.Critical {
			fmt.Fprintf(&b, "- [%d] %s: %s\n", m.Importance, m.Key, m.Content)
		}
		b.WriteString("\n")
	}
	b.WriteString("Use fetch_detail(category) or search_knowledge(query) for full records.\n")
	return b.String()
}

// ─── FetchDetailTool ─────────────────────────────────────────────────────────

// FetchDetailTool handles the fetch_detail MCP tool.
type FetchDetailTool struct {
	builder *recall.Builder
}

// NewFetchDetailTool creates a FetchDetailTool.
func NewFetchDetailTool(builder *recall.Builder) *FetchDetailTool {
	return &FetchDetailTool{builder: builder}
}

// Definition returns the MCP tool definition for fetch_detail.
func (t *FetchDetailTool) Definition() mcp.Tool {
	return mcp.NewTool("fetch_detail",
		mcp.WithDescription(
			"Fetch full records behind the context index. Pass an index category "+
				"(recent_work, memories, knowledge, error_patterns) or any free-text query.",
		),
		mcp.WithString("category",
			mcp.Required(),
			mcp.Description("Index category name, or a free-text search query"),
		),
		mcp.WithNumber("limit",
			mcp.Description("Max records (default: 20)"),
		),
	)
}

// Handle processes the fetch_detail tool call.
func (t *FetchDetailTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	category := req.GetString("category", "")
	if category == "" {
		return mcp.NewToolResultError("'category' is required"), nil
	}
	detail, err := t.builder.FetchDetail(ctx, category, intArg(req, "limit", 20))
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to fetch detail: %v", err)), nil
	}
	return jsonResult(detail)
}
