package worktools

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/worklog-dev/worklog/internal/store"
)

// StoreKnowledgeTool handles the store_knowledge MCP tool.
type StoreKnowledgeTool struct {
	store *store.Store
}

// NewStoreKnowledgeTool creates a StoreKnowledgeTool.
func NewStoreKnowledgeTool(s *store.Store) *StoreKnowledgeTool {
	return &StoreKnowledgeTool{store: s}
}

// Definition returns the MCP tool definition for store_knowledge.
func (t *StoreKnowledgeTool) Definition() mcp.Tool {
	return mcp.NewTool("store_knowledge",
		mcp.WithDescription(
			"Store a knowledge base entry. If an entry with a strongly overlapping title "+
				"already exists in the category, your content is APPENDED to it instead of "+
				"creating a near-duplicate; nothing is ever overwritten.",
		),
		mcp.WithString("category",
			mcp.Required(),
			mcp.Description("One of: system-administration, development, infrastructure, decisions, projects, protocols"),
		),
		mcp.WithString("title",
			mcp.Required(),
			mcp.Description("Entry title, short and searchable"),
		),
		mcp.WithString("content",
			mcp.Required(),
			mcp.Description("Entry content, markdown welcome"),
		),
		mcp.WithString("tags",
			mcp.Description("Comma-separated tags"),
		),
		mcp.WithString("source_url",
			mcp.Description("Optional source URL"),
		),
		mcp.WithString("agent",
			mcp.Description("Agent identifier storing this entry"),
		),
	)
}

// Handle processes the store_knowledge tool call.
func (t *StoreKnowledgeTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	category := req.GetString("category", "")
	title := req.GetString("title", "")
	content := req.GetString("content", "")
	if category == "" || title == "" || content == "" {
		return mcp.NewToolResultError("'category', 'title' and 'content' are required"), nil
	}

	result, err := t.store.StoreKnowledge(ctx, store.StoreKnowledgeParams{
		Category:    category,
		Title:       title,
		Content:     content,
		Tags:        listArg(req, "tags"),
		SourceAgent: req.GetString("agent", ""),
		SourceURL:   req.GetString("source_url", ""),
	})
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to store knowledge: %v", err)), nil
	}

	if result.Appended {
		return mcp.NewToolResultText(fmt.Sprintf(
			"Appended to existing entry %q (ID: %d) in %s. Original content preserved.",
			result.Entry.Title, result.Entry.ID, result.Entry.Category)), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("Knowledge stored: %q in %s (ID: %d)",
		result.Entry.Title, result.Entry.Category, result.Entry.ID)), nil
}

// ─── GetKnowledgeEntryTool ───────────────────────────────────────────────────

// GetKnowledgeEntryTool handles the get_knowledge_entry MCP tool.
type GetKnowledgeEntryTool struct {
	store *store.Store
}

// NewGetKnowledgeEntryTool creates a GetKnowledgeEntryTool.
func NewGetKnowledgeEntryTool(s *store.Store) *GetKnowledgeEntryTool {
	return &GetKnowledgeEntryTool{store: s}
}

// Definition returns the MCP tool definition for get_knowledge_entry.
func (t *GetKnowledgeEntryTool) Definition() mcp.Tool {
	return mcp.NewTool("get_knowledge_entry",
		mcp.WithDescription("Fetch one knowledge base entry by ID, with full content."),
		mcp.WithNumber("id",
			mcp.Required(),
			mcp.Description("Knowledge entry ID"),
		),
	)
}

// Handle processes the get_knowledge_entry tool call.
func (t *GetKnowledgeEntryTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id := intArg(req, "id", 0)
	if id <= 0 {
		return mcp.NewToolResultError("'id' is required"), nil
	}

	entry, err := t.store.GetKnowledgeEntry(ctx, int64(id))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return mcp.NewToolResultError(fmt.Sprintf("no knowledge entry with id %d", id)), nil
		}
		return mcp.NewToolResultError(fmt.Sprintf("failed to get knowledge entry: %v", err)), nil
	}

	var b strings.Builder
	fmt.Fprintf(&b, "# %s [%s]\n\n%s\n\n", entry.Title, entry.Category, entry.Content)
	fmt.Fprintf(&b, "system: %s | updated: %s\n", entry.System, entry.UpdatedAt)
	if len(entry.Tags) > 0 {
		fmt.Fprintf(&b, "tags: %s\n", strings.Join(entry.Tags, ", "))
	}
	return mcp.NewToolResultText(b.String()), nil
}
