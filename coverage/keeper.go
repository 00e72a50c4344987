// Package coverage is the persistence and reporting side of the bridge.
//
// It sits between the mirror (attribute bridging) and downstream consumers
// (MCP tools, the inspect API, migration reports). The pipeline:
//
//	mirror → coverage.HandleBatch/HandleSnapshot/HandleCoverage → store → stats/report/MCP
//
// Key features:
//   - Write log: every legacy-attribute write with XPath, value, and batch order
//   - Snapshot store: rendered HTML deduplicated by SHA-256 content hash
//   - Coverage history: tagged/mirrored/stale tallies per page over time
//   - Markdown reports: sanitized snapshot HTML converted for review
//   - MCP tools: stats, pages, writes, coverage, report
//
// Usage:
//
//	k, err := coverage.New(cfg, logger)
//	defer k.Close()
//	sink := k.Sink()  // plug into a mirror or the live bridge
//	k.RegisterMCP(mcpServer)
package coverage

import (
	"context"
	"log/slog"

	"github.com/JohannesKaufmann/html-to-markdown/v2/converter"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/base"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/commonmark"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/table"
	"github.com/microcosm-cc/bluemonday"

	"github.com/hazyhaar/tidbridge/coverage/internal/store"
	"github.com/hazyhaar/tidbridge/event"
	"github.com/hazyhaar/tidbridge/idgen"
)

// Keeper is the main coverage orchestrator.
type Keeper struct {
	store       *store.Store
	logger      *slog.Logger
	config      *Config
	newID       idgen.Generator
	sanitizer   *bluemonday.Policy
	mdConverter *converter.Converter
}

// New creates a Keeper instance. Opens the SQLite database and initialises
// the sanitizer and markdown converter used for reports.
func New(cfg *Config, logger *slog.Logger) (*Keeper, error) {
	cfg.defaults()
	if logger == nil {
		logger = slog.Default()
	}

	s, err := store.Open(cfg.DBPath)
	if err != nil {
		return nil, err
	}

	return &Keeper{
		store:     s,
		logger:    logger,
		config:    cfg,
		newID:     idgen.Default,
		sanitizer: bluemonday.UGCPolicy(),
		mdConverter: converter.NewConverter(
			converter.WithPlugins(
				base.NewBasePlugin(),
				commonmark.NewCommonmarkPlugin(),
				table.NewTablePlugin(),
			),
		),
	}, nil
}

// Close shuts down the keeper and closes the database.
func (k *Keeper) Close() error {
	return k.store.Close()
}

// Store returns the underlying store for direct access (testing, admin).
func (k *Keeper) Store() *store.Store {
	return k.store
}

// HandleBatch persists a mirror write batch.
func (k *Keeper) HandleBatch(ctx context.Context, batch event.Batch) error {
	if err := k.touchPage(ctx, batch.PageID, batch.PageURL); err != nil {
		return err
	}

	row := &store.BatchRow{
		ID:          batch.ID,
		PageID:      batch.PageID,
		PageURL:     batch.PageURL,
		Seq:         batch.Seq,
		SnapshotRef: batch.SnapshotRef,
		CreatedAt:   batch.Timestamp,
	}
	writes := make([]*store.WriteRow, 0, len(batch.Writes))
	for _, w := range batch.Writes {
		writes = append(writes, &store.WriteRow{
			ID:        k.newID(),
			PageID:    batch.PageID,
			XPath:     w.XPath,
			Tag:       w.Tag,
			Value:     w.Value,
			OldValue:  w.OldValue,
			Inserted:  w.Inserted,
			CreatedAt: w.Timestamp,
		})
	}

	if err := k.store.InsertBatch(ctx, row, writes); err != nil {
		return err
	}
	k.logger.Debug("coverage: batch stored",
		"batch_id", batch.ID, "page_id", batch.PageID, "writes", len(writes))
	return nil
}

// HandleSnapshot persists a rendered document snapshot. Snapshots whose
// content hash matches the page's latest stored snapshot are skipped.
func (k *Keeper) HandleSnapshot(ctx context.Context, snap event.Snapshot) error {
	if err := k.touchPage(ctx, snap.PageID, snap.PageURL); err != nil {
		return err
	}

	written, err := k.store.InsertSnapshot(ctx, &store.SnapshotRow{
		ID:        snap.ID,
		PageID:    snap.PageID,
		PageURL:   snap.PageURL,
		HTML:      string(snap.HTML),
		HTMLHash:  snap.HTMLHash,
		CreatedAt: snap.Timestamp,
	})
	if err != nil {
		return err
	}
	if !written {
		k.logger.Debug("coverage: snapshot unchanged, skipped",
			"snapshot_id", snap.ID, "page_id", snap.PageID)
	}
	return nil
}

// HandleCoverage persists a bridging tally.
func (k *Keeper) HandleCoverage(ctx context.Context, cov event.Coverage) error {
	if err := k.touchPage(ctx, cov.PageID, cov.PageURL); err != nil {
		return err
	}
	return k.store.InsertCoverage(ctx, &store.CoverageRow{
		ID:        k.newID(),
		PageID:    cov.PageID,
		PageURL:   cov.PageURL,
		Tagged:    cov.Tagged,
		Mirrored:  cov.Mirrored,
		Stale:     cov.Stale,
		CreatedAt: cov.Timestamp,
	})
}

func (k *Keeper) touchPage(ctx context.Context, pageID, pageURL string) error {
	if pageID == "" {
		return nil
	}
	return k.store.UpsertPage(ctx, &store.Page{PageID: pageID, PageURL: pageURL})
}

// Pages lists all tracked pages.
func (k *Keeper) Pages(ctx context.Context) ([]*store.Page, error) {
	return k.store.ListPages(ctx)
}

// Writes returns recent writes, optionally filtered by page.
func (k *Keeper) Writes(ctx context.Context, pageID string, limit int) ([]*store.WriteRow, error) {
	return k.store.RecentWrites(ctx, pageID, limit)
}

// LatestCoverage returns the latest tally per page.
func (k *Keeper) LatestCoverage(ctx context.Context) ([]*store.CoverageRow, error) {
	return k.store.ListLatestCoverage(ctx)
}

// Stats returns current store counts.
func (k *Keeper) Stats(ctx context.Context) (*Stats, error) {
	pages, err := k.store.ListPages(ctx)
	if err != nil {
		return nil, err
	}
	batches, err := k.store.CountBatches(ctx)
	if err != nil {
		return nil, err
	}
	writes, err := k.store.CountWrites(ctx)
	if err != nil {
		return nil, err
	}
	snapshots, err := k.store.CountSnapshots(ctx)
	if err != nil {
		return nil, err
	}

	return &Stats{
		Pages:     len(pages),
		Batches:   batches,
		Writes:    writes,
		Snapshots: snapshots,
	}, nil
}

// Stats holds coverage counts.
type Stats struct {
	Pages     int `json:"pages"`
	Batches   int `json:"batches"`
	Writes    int `json:"writes"`
	Snapshots int `json:"snapshots"`
}
