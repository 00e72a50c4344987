package coverage

import (
	"context"
	"encoding/json"
	"strings"
	"testing"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/hazyhaar/tidbridge/event"
)

var testImpl = &mcp.Implementation{Name: "tidbridge-test", Version: "0.1.0"}

// mcpSession creates a Keeper, registers MCP tools, and returns a connected
// client session that can call tools end-to-end.
func mcpSession(t *testing.T) (*Keeper, *mcp.ClientSession) {
	t.Helper()
	k := testKeeper(t)

	srv := mcp.NewServer(testImpl, nil)
	k.RegisterMCP(srv)

	serverT, clientT := mcp.NewInMemoryTransports()
	ctx := context.Background()

	go func() {
		_ = srv.Run(ctx, serverT)
	}()

	client := mcp.NewClient(testImpl, nil)
	session, err := client.Connect(ctx, clientT, nil)
	if err != nil {
		t.Fatalf("client connect: %v", err)
	}
	t.Cleanup(func() { session.Close() })

	return k, session
}

// callTool invokes a tool and returns the JSON text from the first TextContent.
func callTool(t *testing.T, session *mcp.ClientSession, name string, args any) string {
	t.Helper()
	result, err := session.CallTool(context.Background(), &mcp.CallToolParams{
		Name:      name,
		Arguments: args,
	})
	if err != nil {
		t.Fatalf("CallTool(%s): %v", name, err)
	}
	if err := result.GetError(); err != nil {
		t.Fatalf("CallTool(%s) tool error: %v", name, err)
	}
	if len(result.Content) == 0 {
		t.Fatalf("CallTool(%s): empty content", name)
	}
	tc, ok := result.Content[0].(*mcp.TextContent)
	if !ok {
		t.Fatalf("CallTool(%s): expected TextContent, got %T", name, result.Content[0])
	}
	return tc.Text
}

// seedPage puts one page with a batch, a coverage tally, and a snapshot into
// the store.
func seedPage(t *testing.T, k *Keeper, pageID string) {
	t.Helper()
	ctx := context.Background()

	if err := k.HandleBatch(ctx, event.Batch{
		ID: "b-" + pageID, PageID: pageID, PageURL: "https://example.com/" + pageID, Seq: 1,
		Writes: []event.Write{
			{XPath: "/html/body/button", Tag: "button", Value: "save-button"},
		},
		Timestamp: 1000,
	}); err != nil {
		t.Fatalf("seed batch: %v", err)
	}
	if err := k.HandleCoverage(ctx, event.Coverage{
		PageID: pageID, PageURL: "https://example.com/" + pageID,
		Tagged: 3, Mirrored: 3, Timestamp: 1000,
	}); err != nil {
		t.Fatalf("seed coverage: %v", err)
	}
	html := []byte("<html><body><h1>Page " + pageID + "</h1></body></html>")
	if err := k.HandleSnapshot(ctx, event.Snapshot{
		ID: "s-" + pageID, PageID: pageID, PageURL: "https://example.com/" + pageID,
		HTML: html, HTMLHash: event.HashHTML(html), Timestamp: 1000,
	}); err != nil {
		t.Fatalf("seed snapshot: %v", err)
	}
}

// --- tidbridge_stats ---

func TestMCP_Stats(t *testing.T) {
	k, session := mcpSession(t)

	text := callTool(t, session, "tidbridge_stats", map[string]any{})
	var stats Stats
	if err := json.Unmarshal([]byte(text), &stats); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if stats.Pages != 0 || stats.Writes != 0 {
		t.Errorf("expected all zeros, got %+v", stats)
	}

	seedPage(t, k, "pg_1")

	text = callTool(t, session, "tidbridge_stats", map[string]any{})
	json.Unmarshal([]byte(text), &stats)
	if stats.Pages != 1 || stats.Batches != 1 || stats.Writes != 1 || stats.Snapshots != 1 {
		t.Errorf("stats after seed: got %+v", stats)
	}
}

// --- tidbridge_pages ---

func TestMCP_Pages(t *testing.T) {
	k, session := mcpSession(t)
	seedPage(t, k, "pg_1")
	seedPage(t, k, "pg_2")

	text := callTool(t, session, "tidbridge_pages", map[string]any{})
	var pages []*Page
	if err := json.Unmarshal([]byte(text), &pages); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if len(pages) != 2 {
		t.Fatalf("expected 2 pages, got %d", len(pages))
	}
}

// --- tidbridge_writes ---

func TestMCP_Writes(t *testing.T) {
	k, session := mcpSession(t)
	seedPage(t, k, "pg_1")
	seedPage(t, k, "pg_2")

	// All writes.
	text := callTool(t, session, "tidbridge_writes", map[string]any{})
	var writes []*WriteRow
	if err := json.Unmarshal([]byte(text), &writes); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if len(writes) != 2 {
		t.Fatalf("expected 2 writes, got %d", len(writes))
	}

	// Filtered by page.
	text = callTool(t, session, "tidbridge_writes", map[string]any{"page_id": "pg_2"})
	json.Unmarshal([]byte(text), &writes)
	if len(writes) != 1 {
		t.Fatalf("expected 1 write for pg_2, got %d", len(writes))
	}
	if writes[0].PageID != "pg_2" {
		t.Errorf("page = %q, want pg_2", writes[0].PageID)
	}
}

// --- tidbridge_coverage ---

func TestMCP_Coverage(t *testing.T) {
	k, session := mcpSession(t)
	seedPage(t, k, "pg_1")

	text := callTool(t, session, "tidbridge_coverage", map[string]any{})
	var covs []*CoverageRow
	if err := json.Unmarshal([]byte(text), &covs); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if len(covs) != 1 {
		t.Fatalf("expected 1 tally, got %d", len(covs))
	}
	if covs[0].Tagged != 3 || covs[0].Mirrored != 3 {
		t.Errorf("tally: got %+v", covs[0])
	}
}

// --- tidbridge_report ---

func TestMCP_Report(t *testing.T) {
	k, session := mcpSession(t)
	seedPage(t, k, "pg_1")

	text := callTool(t, session, "tidbridge_report", map[string]any{"page_id": "pg_1"})
	var rep Report
	if err := json.Unmarshal([]byte(text), &rep); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if rep.Coverage == nil || rep.Coverage.Mirrored != 3 {
		t.Errorf("coverage in report: got %+v", rep.Coverage)
	}
	if !strings.Contains(rep.Markdown, "# Bridge report") {
		t.Error("markdown missing report header")
	}
}

func TestMCP_Report_UnknownPage(t *testing.T) {
	_, session := mcpSession(t)

	result, err := session.CallTool(context.Background(), &mcp.CallToolParams{
		Name:      "tidbridge_report",
		Arguments: map[string]any{"page_id": "nope"},
	})
	if err != nil {
		t.Fatalf("CallTool: %v", err)
	}
	// GetError is server-side only; IsError is what crosses the wire.
	if !result.IsError {
		t.Fatal("expected tool error for unknown page")
	}
	if len(result.Content) == 0 {
		t.Fatal("expected error text content")
	}
	tc, ok := result.Content[0].(*mcp.TextContent)
	if !ok {
		t.Fatalf("expected TextContent, got %T", result.Content[0])
	}
	if !strings.Contains(tc.Text, "unknown page") {
		t.Errorf("error text = %q, want mention of unknown page", tc.Text)
	}
}
