package config

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	_ "modernc.org/sqlite"

	"github.com/hazyhaar/tidbridge/dbopen"
)

func TestLoadFile(t *testing.T) {
	yaml := `
browser:
  headful: false
  resource_blocking: [images, fonts]
attributes:
  primary: data-test-id
pages:
  - id: settings
    url: https://app.example.com/settings
    snapshot_interval: 1h
  - id: checkout
    url: https://app.example.com/checkout
sinks:
  - type: stdout
`
	path := filepath.Join(t.TempDir(), "bridge.yaml")
	if err := os.WriteFile(path, []byte(yaml), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := LoadFile(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}

	if len(cfg.Pages) != 2 {
		t.Fatalf("pages: got %d, want 2", len(cfg.Pages))
	}
	if cfg.Pages[0].SnapshotInterval != time.Hour {
		t.Errorf("snapshot_interval: got %v, want 1h", cfg.Pages[0].SnapshotInterval)
	}
	// Defaults applied.
	if cfg.Pages[1].SnapshotInterval != 4*time.Hour {
		t.Errorf("default snapshot_interval: got %v, want 4h", cfg.Pages[1].SnapshotInterval)
	}
	if cfg.Attributes.Legacy != "data-testid" {
		t.Errorf("default legacy: got %q, want data-testid", cfg.Attributes.Legacy)
	}
	if cfg.Browser.MemoryLimit != 1<<30 {
		t.Errorf("default memory_limit: got %d", cfg.Browser.MemoryLimit)
	}
	if len(cfg.Browser.ResourceBlocking) != 2 {
		t.Errorf("resource_blocking: got %v", cfg.Browser.ResourceBlocking)
	}
}

func TestLoadFile_Missing(t *testing.T) {
	if _, err := LoadFile("/nonexistent/bridge.yaml"); err == nil {
		t.Fatal("expected error for missing file")
	}
}

func TestLoadPages(t *testing.T) {
	db := dbopen.OpenMemory(t, dbopen.WithSchema(Schema))
	ctx := context.Background()

	_, err := db.Exec(`
		INSERT INTO bridge_pages (id, url, snapshot_interval_ms, status, updated_at) VALUES
		('pg_a', 'https://a.example.com', 3600000, 'active', 1),
		('pg_b', 'https://b.example.com', 0, 'active', 1),
		('pg_c', 'https://c.example.com', 3600000, 'paused', 1)`)
	if err != nil {
		t.Fatal(err)
	}

	pages, err := LoadPages(ctx, db)
	if err != nil {
		t.Fatalf("load pages: %v", err)
	}
	if len(pages) != 2 {
		t.Fatalf("pages: got %d, want 2 (paused excluded)", len(pages))
	}
	byID := map[string]PageConfig{}
	for _, p := range pages {
		byID[p.ID] = p
	}
	if byID["pg_a"].SnapshotInterval != time.Hour {
		t.Errorf("pg_a interval: got %v", byID["pg_a"].SnapshotInterval)
	}
	if byID["pg_b"].SnapshotInterval != 4*time.Hour {
		t.Errorf("pg_b interval fallback: got %v", byID["pg_b"].SnapshotInterval)
	}
}
