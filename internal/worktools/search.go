package worktools

import (
	"context"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/worklog-dev/worklog/internal/store"
)

// SearchKnowledgeTool handles the search_knowledge MCP tool.
type SearchKnowledgeTool struct {
	store *store.Store
}

// NewSearchKnowledgeTool creates a SearchKnowledgeTool.
func NewSearchKnowledgeTool(s *store.Store) *SearchKnowledgeTool {
	return &SearchKnowledgeTool{store: s}
}

// Definition returns the MCP tool definition for search_knowledge.
func (t *SearchKnowledgeTool) Definition() mcp.Tool {
	return mcp.NewTool("search_knowledge",
		mcp.WithDescription(
			"Search across memories, knowledge base, work entries, and error patterns. "+
				"Use this before starting work on anything that might have been done or debugged before.",
		),
		mcp.WithString("query",
			mcp.Required(),
			mcp.Description("Search query, keywords or natural language"),
		),
		mcp.WithString("tables",
			mcp.Description("Comma-separated subset of: memories, knowledge_base, entries, error_patterns (default: all)"),
		),
		mcp.WithNumber("limit",
			mcp.Description("Max results per table (default: 10)"),
		),
	)
}

// Handle processes the search_knowledge tool call.
func (t *SearchKnowledgeTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	query := req.GetString("query", "")
	if query == "" {
		return mcp.NewToolResultError("'query' is required"), nil
	}

	hits, err := t.store.Search(ctx, query, listArg(req, "tables"), intArg(req, "limit", 10))
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("search failed: %v", err)), nil
	}
	if len(hits) == 0 {
		return mcp.NewToolResultText(fmt.Sprintf("No results for %q.", query)), nil
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Found %d results for %q:\n\n", len(hits), query)
	for _, h := range hits {
		fmt.Fprintf(&b, "[%s/%d] %s\n", h.Table, h.ID, h.Title)
		if h.Snippet != "" && h.Snippet != h.Title {
			fmt.Fprintf(&b, "  %s\n", h.Snippet)
		}
		if len(h.Tags) > 0 {
			fmt.Fprintf(&b, "  tags: %s\n", strings.Join(h.Tags, ", "))
		}
	}
	return mcp.NewToolResultText(b.String()), nil
}
