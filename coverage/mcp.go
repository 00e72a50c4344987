package coverage

import (
	"context"
	"encoding/json"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/hazyhaar/tidbridge/kit"
)

// RegisterMCP registers coverage tools on an MCP server.
func (k *Keeper) RegisterMCP(srv *mcp.Server) {
	k.registerStatsTool(srv)
	k.registerPagesTool(srv)
	k.registerWritesTool(srv)
	k.registerCoverageTool(srv)
	k.registerReportTool(srv)
}

// inputSchema builds a JSON Schema object with type "object".
func inputSchema(properties map[string]any, required []string) map[string]any {
	s := map[string]any{
		"type":       "object",
		"properties": properties,
	}
	if len(required) > 0 {
		s["required"] = required
	}
	return s
}

// --- stats ---

func (k *Keeper) registerStatsTool(srv *mcp.Server) {
	tool := &mcp.Tool{
		Name:        "tidbridge_stats",
		Description: "Get bridge statistics: counts of pages, batches, writes, and snapshots.",
		InputSchema: inputSchema(map[string]any{}, nil),
	}

	endpoint := func(ctx context.Context, _ any) (any, error) {
		return k.Stats(ctx)
	}

	decode := func(_ *mcp.CallToolRequest) (*kit.MCPDecodeResult, error) {
		return &kit.MCPDecodeResult{Request: nil}, nil
	}

	kit.RegisterMCPTool(srv, tool, endpoint, decode)
}

// --- pages ---

func (k *Keeper) registerPagesTool(srv *mcp.Server) {
	tool := &mcp.Tool{
		Name:        "tidbridge_pages",
		Description: "List all pages the bridge has reported from, most recently seen first.",
		InputSchema: inputSchema(map[string]any{}, nil),
	}

	endpoint := func(ctx context.Context, _ any) (any, error) {
		return k.Pages(ctx)
	}

	decode := func(_ *mcp.CallToolRequest) (*kit.MCPDecodeResult, error) {
		return &kit.MCPDecodeResult{Request: nil}, nil
	}

	kit.RegisterMCPTool(srv, tool, endpoint, decode)
}

// --- writes ---

type writesRequest struct {
	PageID string `json:"page_id,omitempty"`
	Limit  int    `json:"limit,omitempty"`
}

func (k *Keeper) registerWritesTool(srv *mcp.Server) {
	tool := &mcp.Tool{
		Name:        "tidbridge_writes",
		Description: "List recent legacy-attribute writes, newest first. Each write carries the element XPath, tag, new and old values.",
		InputSchema: inputSchema(map[string]any{
			"page_id": map[string]any{"type": "string", "description": "Filter by page ID"},
			"limit":   map[string]any{"type": "integer", "description": "Max results (default 50)"},
		}, nil),
	}

	endpoint := func(ctx context.Context, req any) (any, error) {
		r := req.(*writesRequest)
		return k.Writes(ctx, r.PageID, r.Limit)
	}

	decode := func(req *mcp.CallToolRequest) (*kit.MCPDecodeResult, error) {
		var r writesRequest
		if err := json.Unmarshal(req.Params.Arguments, &r); err != nil {
			return nil, err
		}
		res := &kit.MCPDecodeResult{Request: &r}
		if r.PageID != "" {
			res.EnrichCtx = func(ctx context.Context) context.Context {
				return kit.WithPageID(ctx, r.PageID)
			}
		}
		return res, nil
	}

	kit.RegisterMCPTool(srv, tool, endpoint, decode)
}

// --- coverage ---

func (k *Keeper) registerCoverageTool(srv *mcp.Server) {
	tool := &mcp.Tool{
		Name:        "tidbridge_coverage",
		Description: "Get the latest bridging tally per page: tagged elements, mirrored elements, and stale mirrors.",
		InputSchema: inputSchema(map[string]any{}, nil),
	}

	endpoint := func(ctx context.Context, _ any) (any, error) {
		return k.LatestCoverage(ctx)
	}

	decode := func(_ *mcp.CallToolRequest) (*kit.MCPDecodeResult, error) {
		return &kit.MCPDecodeResult{Request: nil}, nil
	}

	kit.RegisterMCPTool(srv, tool, endpoint, decode)
}

// --- report ---

type reportRequest struct {
	PageID string `json:"page_id"`
}

func (k *Keeper) registerReportTool(srv *mcp.Server) {
	tool := &mcp.Tool{
		Name:        "tidbridge_report",
		Description: "Build a markdown bridge report for a page: coverage tally, recent writes, and the latest snapshot converted to markdown.",
		InputSchema: inputSchema(map[string]any{
			"page_id": map[string]any{"type": "string", "description": "Page ID to report on"},
		}, []string{"page_id"}),
	}

	endpoint := func(ctx context.Context, req any) (any, error) {
		r := req.(*reportRequest)
		return k.Report(ctx, r.PageID)
	}

	decode := func(req *mcp.CallToolRequest) (*kit.MCPDecodeResult, error) {
		var r reportRequest
		if err := json.Unmarshal(req.Params.Arguments, &r); err != nil {
			return nil, err
		}
		return &kit.MCPDecodeResult{Request: &r}, nil
	}

	kit.RegisterMCPTool(srv, tool, endpoint, decode)
}
