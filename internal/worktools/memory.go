package worktools

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/worklog-dev/worklog/internal/store"
)

// StoreMemoryTool handles the store_memory MCP tool.
type StoreMemoryTool struct {
	store *store.Store
}

// NewStoreMemoryTool creates a StoreMemoryTool.
func NewStoreMemoryTool(s *store.Store) *StoreMemoryTool {
	return &StoreMemoryTool{store: s}
}

// Definition returns the MCP tool definition for store_memory.
func (t *StoreMemoryTool) Definition() mcp.Tool {
	return mcp.NewTool("store_memory",
		mcp.WithDescription(
			"Store a keyed memory. New memories always start in 'staging'; the curation "+
				"engine promotes them once they prove useful. Use a stable, descriptive key "+
				"(e.g. 'prod_db_connection_pooling').",
		),
		mcp.WithString("key",
			mcp.Required(),
			mcp.Description("Unique memory key"),
		),
		mcp.WithString("content",
			mcp.Required(),
			mcp.Description("The memory content"),
		),
		mcp.WithString("summary",
			mcp.Description("One-line summary shown in indexes"),
		),
		mcp.WithString("memory_type",
			mcp.Description("One of: fact, entity, preference, context (default: fact)"),
		),
		mcp.WithNumber("importance",
			mcp.Description("1-10, default 5. 9+ surfaces as critical context"),
		),
		mcp.WithString("tags",
			mcp.Description("Comma-separated tags"),
		),
		mcp.WithString("agent",
			mcp.Description("Agent identifier storing this memory"),
		),
	)
}

// Handle processes the store_memory tool call.
func (t *StoreMemoryTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	key := req.GetString("key", "")
	content := req.GetString("content", "")
	if key == "" {
		return mcp.NewToolResultError("'key' is required"), nil
	}
	if content == "" {
		return mcp.NewToolResultError("'content' is required"), nil
	}

	m, err := t.store.StoreMemory(ctx, store.StoreMemoryParams{
		Key:         key,
		Content:     content,
		Summary:     req.GetString("summary", ""),
		MemoryType:  req.GetString("memory_type", ""),
		Importance:  intArg(req, "importance", 0),
		Tags:        listArg(req, "tags"),
		SourceAgent: req.GetString("agent", ""),
	})
	if err != nil {
		if errors.Is(err, store.ErrConflict) {
			return mcp.NewToolResultError(fmt.Sprintf("memory %q already exists; use update_memory to change it", key)), nil
		}
		return mcp.NewToolResultError(fmt.Sprintf("failed to store memory: %v", err)), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("Memory stored: %q (%s, importance %d, status %s)\nID: %d",
		m.Key, m.MemoryType, m.Importance, m.Status, m.ID)), nil
}

// ─── UpdateMemoryTool ────────────────────────────────────────────────────────

// UpdateMemoryTool handles the update_memory MCP tool.
type UpdateMemoryTool struct {
	store *store.Store
}

// NewUpdateMemoryTool creates an UpdateMemoryTool.
func NewUpdateMemoryTool(s *store.Store) *UpdateMemoryTool {
	return &UpdateMemoryTool{store: s}
}

// Definition returns the MCP tool definition for update_memory.
func (t *UpdateMemoryTool) Definition() mcp.Tool {
	return mcp.NewTool("update_memory",
		mcp.WithDescription(
			"Update an existing memory by key. Only the provided fields change. "+
				"Status can only move forward: staging to promoted to archived, "+
				"with critical settable from anywhere.",
		),
		mcp.WithString("key",
			mcp.Required(),
			mcp.Description("Memory key to update"),
		),
		mcp.WithString("content",
			mcp.Description("Replacement content"),
		),
		mcp.WithString("summary",
			mcp.Description("Replacement summary"),
		),
		mcp.WithNumber("importance",
			mcp.Description("New importance 1-10"),
		),
		mcp.WithString("tags",
			mcp.Description("Replacement comma-separated tags"),
		),
		mcp.WithString("status",
			mcp.Description("New status: staging, promoted, archived, critical"),
		),
	)
}

// Handle processes the update_memory tool call.
func (t *UpdateMemoryTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	key := req.GetString("key", "")
	if key == "" {
		return mcp.NewToolResultError("'key' is required"), nil
	}

	var p store.UpdateMemoryParams
	if v := req.GetString("content", ""); v != "" {
		p.Content = &v
	}
	if v := req.GetString("summary", ""); v != "" {
		p.Summary = &v
	}
	if v := intArg(req, "importance", 0); v != 0 {
		p.Importance = &v
	}
	if v := req.GetString("status", ""); v != "" {
		p.Status = &v
	}
	p.Tags = listArg(req, "tags")

	m, err := t.store.UpdateMemory(ctx, key, p)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return mcp.NewToolResultError(fmt.Sprintf("no memory with key %q", key)), nil
		}
		return mcp.NewToolResultError(fmt.Sprintf("failed to update memory: %v", err)), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("Memory updated: %q (importance %d, status %s)", m.Key, m.Importance, m.Status)), nil
}

// ─── GetMemoryTool ───────────────────────────────────────────────────────────

// GetMemoryTool handles the get_memory MCP tool.
type GetMemoryTool struct {
	store *store.Store
}

// NewGetMemoryTool creates a GetMemoryTool.
func NewGetMemoryTool(s *store.Store) *GetMemoryTool {
	return &GetMemoryTool{store: s}
}

// Definition returns the MCP tool definition for get_memory.
func (t *GetMemoryTool) Definition() mcp.Tool {
	return mcp.NewTool("get_memory",
		mcp.WithDescription(
			"Fetch one memory by key. Reading a memory bumps its access count, "+
				"which the curation engine uses as a usefulness signal.",
		),
		mcp.WithString("key",
			mcp.Required(),
			mcp.Description("Memory key"),
		),
	)
}

// Handle processes the get_memory tool call.
func (t *GetMemoryTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	key := req.GetString("key", "")
	if key == "" {
		return mcp.NewToolResultError("'key' is required"), nil
	}

	m, err := t.store.GetMemory(ctx, key)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return mcp.NewToolResultError(fmt.Sprintf("no memory with key %q", key)), nil
		}
		return mcp.NewToolResultError(fmt.Sprintf("failed to get memory: %v", err)), nil
	}

	var b strings.Builder
	fmt.Fprintf(&b, "# %s\n\n%s\n\n", m.Key, m.Content)
	fmt.Fprintf(&b, "type: %s | importance: %d | status: %s | accessed: %d times\n",
		m.MemoryType, m.Importance, m.Status, m.AccessCount)
	if len(m.Tags) > 0 {
		fmt.Fprintf(&b, "tags: %s\n", strings.Join(m.Tags, ", "))
	}
	return mcp.NewToolResultText(b.String()), nil
}
