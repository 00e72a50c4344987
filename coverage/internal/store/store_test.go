package store

import (
	"context"
	"testing"

	_ "modernc.org/sqlite"

	"github.com/hazyhaar/tidbridge/dbopen"
)

func testStore(t *testing.T) *Store {
	t.Helper()
	db := dbopen.OpenMemory(t)
	if _, err := db.Exec(Schema); err != nil {
		t.Fatalf("apply schema: %v", err)
	}
	return &Store{DB: db}
}

func TestPageUpsert(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	p := &Page{PageID: "pg_1", PageURL: "https://app.example.com/settings"}
	if err := s.UpsertPage(ctx, p); err != nil {
		t.Fatalf("upsert: %v", err)
	}

	got, err := s.GetPage(ctx, "pg_1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got == nil {
		t.Fatal("get: got nil")
	}
	if got.PrimaryAttr != "data-test-id" {
		t.Errorf("PrimaryAttr: got %q, want data-test-id", got.PrimaryAttr)
	}
	if got.LegacyAttr != "data-testid" {
		t.Errorf("LegacyAttr: got %q, want data-testid", got.LegacyAttr)
	}

	// Upsert again with a new URL: last_seen and URL refresh, row count stays 1.
	p2 := &Page{PageID: "pg_1", PageURL: "https://app.example.com/settings?v=2", LastSeen: got.LastSeen + 1}
	if err := s.UpsertPage(ctx, p2); err != nil {
		t.Fatalf("upsert 2: %v", err)
	}
	pages, err := s.ListPages(ctx)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(pages) != 1 {
		t.Fatalf("pages: got %d, want 1", len(pages))
	}
	if pages[0].PageURL != p2.PageURL {
		t.Errorf("PageURL: got %q, want %q", pages[0].PageURL, p2.PageURL)
	}
}

func TestGetPage_NotFound(t *testing.T) {
	s := testStore(t)
	got, err := s.GetPage(context.Background(), "missing")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got != nil {
		t.Fatal("expected nil for missing page")
	}
}

func TestInsertBatchPreservesOrder(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	b := &BatchRow{ID: "b1", PageID: "pg_1", Seq: 1}
	writes := []*WriteRow{
		{ID: "w1", PageID: "pg_1", XPath: "/html/body/div[1]", Tag: "div", Value: "first"},
		{ID: "w2", PageID: "pg_1", XPath: "/html/body/div[2]", Tag: "div", Value: "second", Inserted: true},
		{ID: "w3", PageID: "pg_1", XPath: "/html/body/div[3]", Tag: "div", Value: "third"},
	}
	if err := s.InsertBatch(ctx, b, writes); err != nil {
		t.Fatalf("insert batch: %v", err)
	}
	if b.WriteCount != 3 {
		t.Errorf("WriteCount: got %d, want 3", b.WriteCount)
	}

	got, err := s.BatchWrites(ctx, "b1")
	if err != nil {
		t.Fatalf("batch writes: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("writes: got %d, want 3", len(got))
	}
	want := []string{"first", "second", "third"}
	for i, w := range got {
		if w.Value != want[i] {
			t.Errorf("writes[%d]: got %q, want %q", i, w.Value, want[i])
		}
	}
	if !got[1].Inserted {
		t.Error("writes[1].Inserted: got false, want true")
	}

	n, err := s.CountWrites(ctx)
	if err != nil {
		t.Fatalf("count writes: %v", err)
	}
	if n != 3 {
		t.Errorf("count: got %d, want 3", n)
	}
}

func TestRecentWritesFilterByPage(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	s.InsertBatch(ctx, &BatchRow{ID: "b1", PageID: "pg_a"}, []*WriteRow{
		{ID: "w1", PageID: "pg_a", Value: "a"},
	})
	s.InsertBatch(ctx, &BatchRow{ID: "b2", PageID: "pg_b"}, []*WriteRow{
		{ID: "w2", PageID: "pg_b", Value: "b"},
	})

	got, err := s.RecentWrites(ctx, "pg_a", 10)
	if err != nil {
		t.Fatalf("recent writes: %v", err)
	}
	if len(got) != 1 || got[0].Value != "a" {
		t.Fatalf("filtered writes: got %+v", got)
	}

	all, err := s.RecentWrites(ctx, "", 10)
	if err != nil {
		t.Fatalf("recent writes all: %v", err)
	}
	if len(all) != 2 {
		t.Fatalf("all writes: got %d, want 2", len(all))
	}
}

func TestInsertSnapshotDedup(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	snap := &SnapshotRow{ID: "s1", PageID: "pg_1", HTML: "<html></html>", HTMLHash: "h1"}
	written, err := s.InsertSnapshot(ctx, snap)
	if err != nil {
		t.Fatalf("insert: %v", err)
	}
	if !written {
		t.Fatal("first insert: expected write")
	}

	// Same hash again: skipped.
	dup := &SnapshotRow{ID: "s2", PageID: "pg_1", HTML: "<html></html>", HTMLHash: "h1"}
	written, err = s.InsertSnapshot(ctx, dup)
	if err != nil {
		t.Fatalf("insert dup: %v", err)
	}
	if written {
		t.Error("duplicate hash: expected skip")
	}

	// New hash: written and becomes latest.
	s3 := &SnapshotRow{ID: "s3", PageID: "pg_1", HTML: "<html><body></body></html>", HTMLHash: "h2", CreatedAt: snap.CreatedAt + 1}
	written, err = s.InsertSnapshot(ctx, s3)
	if err != nil {
		t.Fatalf("insert s3: %v", err)
	}
	if !written {
		t.Fatal("new hash: expected write")
	}

	latest, err := s.LatestSnapshot(ctx, "pg_1")
	if err != nil {
		t.Fatalf("latest: %v", err)
	}
	if latest.ID != "s3" {
		t.Errorf("latest: got %q, want s3", latest.ID)
	}

	n, _ := s.CountSnapshots(ctx)
	if n != 2 {
		t.Errorf("count: got %d, want 2", n)
	}
}

func TestCoverageLatestPerPage(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	s.InsertCoverage(ctx, &CoverageRow{ID: "c1", PageID: "pg_1", Tagged: 5, Mirrored: 3, Stale: 1, CreatedAt: 100})
	s.InsertCoverage(ctx, &CoverageRow{ID: "c2", PageID: "pg_1", Tagged: 5, Mirrored: 5, Stale: 0, CreatedAt: 200})
	s.InsertCoverage(ctx, &CoverageRow{ID: "c3", PageID: "pg_2", Tagged: 2, Mirrored: 2, Stale: 0, CreatedAt: 150})

	latest, err := s.LatestCoverage(ctx, "pg_1")
	if err != nil {
		t.Fatalf("latest: %v", err)
	}
	if latest.ID != "c2" || latest.Mirrored != 5 {
		t.Errorf("latest: got %+v", latest)
	}

	all, err := s.ListLatestCoverage(ctx)
	if err != nil {
		t.Fatalf("list latest: %v", err)
	}
	if len(all) != 2 {
		t.Fatalf("list: got %d rows, want 2", len(all))
	}
	for _, c := range all {
		if c.PageID == "pg_1" && c.ID != "c2" {
			t.Errorf("pg_1 latest: got %q, want c2", c.ID)
		}
	}
}

func TestBatchCascadeDelete(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	s.InsertBatch(ctx, &BatchRow{ID: "b1", PageID: "pg_1"}, []*WriteRow{
		{ID: "w1", PageID: "pg_1", Value: "x"},
	})

	if _, err := s.DB.ExecContext(ctx, `DELETE FROM batches WHERE id = 'b1'`); err != nil {
		t.Fatalf("delete batch: %v", err)
	}
	n, err := s.CountWrites(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if n != 0 {
		t.Errorf("writes after cascade: got %d, want 0", n)
	}
}
