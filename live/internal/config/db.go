package config

import (
	"context"
	"database/sql"
	"log/slog"
	"time"

	"github.com/hazyhaar/tidbridge/watch"
)

// Schema for the bridge_pages table.
const Schema = `
CREATE TABLE IF NOT EXISTS bridge_pages (
	id                   TEXT PRIMARY KEY,
	url                  TEXT NOT NULL,
	snapshot_interval_ms INTEGER DEFAULT 14400000,
	status               TEXT DEFAULT 'active',
	updated_at           INTEGER NOT NULL
);
`

// LoadPages reads all active pages from the database.
func LoadPages(ctx context.Context, db *sql.DB) ([]PageConfig, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT id, url, snapshot_interval_ms
		FROM bridge_pages
		WHERE status = 'active'
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var pages []PageConfig
	for rows.Next() {
		var p PageConfig
		var snapMs int64

		if err := rows.Scan(&p.ID, &p.URL, &snapMs); err != nil {
			return nil, err
		}

		p.SnapshotInterval = time.Duration(snapMs) * time.Millisecond
		if p.SnapshotInterval <= 0 {
			p.SnapshotInterval = 4 * time.Hour
		}
		pages = append(pages, p)
	}
	return pages, rows.Err()
}

// WatchPages creates a watch.Watcher that detects changes to bridge_pages.
func WatchPages(db *sql.DB, logger *slog.Logger) *watch.Watcher {
	return watch.New(db, watch.Options{
		Interval: 200 * time.Millisecond,
		Debounce: 500 * time.Millisecond,
		Detector: watch.PragmaDataVersion,
		Logger:   logger,
	})
}
