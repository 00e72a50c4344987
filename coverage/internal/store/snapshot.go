package store

import (
	"context"
	"database/sql"
	"errors"
	"time"
)

// SnapshotRow is a persisted document snapshot.
type SnapshotRow struct {
	ID        string `json:"id"`
	PageID    string `json:"page_id"`
	PageURL   string `json:"page_url"`
	HTML      string `json:"html,omitempty"`
	HTMLHash  string `json:"html_hash"`
	CreatedAt int64  `json:"created_at"`
}

// InsertSnapshot stores a snapshot unless the page's latest snapshot already
// carries the same content hash. Returns whether a row was written.
func (s *Store) InsertSnapshot(ctx context.Context, snap *SnapshotRow) (bool, error) {
	if snap.CreatedAt == 0 {
		snap.CreatedAt = time.Now().UnixMilli()
	}

	var lastHash string
	err := s.DB.QueryRowContext(ctx, `
		SELECT html_hash FROM snapshots WHERE page_id = ?
		ORDER BY created_at DESC LIMIT 1`, snap.PageID).Scan(&lastHash)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return false, err
	}
	if lastHash == snap.HTMLHash {
		return false, nil
	}

	_, err = s.DB.ExecContext(ctx, `
		INSERT INTO snapshots (id, page_id, page_url, html, html_hash, created_at)
		VALUES (?,?,?,?,?,?)`,
		snap.ID, snap.PageID, snap.PageURL, snap.HTML, snap.HTMLHash, snap.CreatedAt,
	)
	if err != nil {
		return false, err
	}
	return true, nil
}

// LatestSnapshot returns the most recent snapshot for a page, or nil.
func (s *Store) LatestSnapshot(ctx context.Context, pageID string) (*SnapshotRow, error) {
	snap := &SnapshotRow{}
	err := s.DB.QueryRowContext(ctx, `
		SELECT id, page_id, page_url, html, html_hash, created_at
		FROM snapshots WHERE page_id = ?
		ORDER BY created_at DESC LIMIT 1`, pageID).Scan(
		&snap.ID, &snap.PageID, &snap.PageURL, &snap.HTML, &snap.HTMLHash, &snap.CreatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return snap, nil
}

// CountSnapshots returns the total number of stored snapshots.
func (s *Store) CountSnapshots(ctx context.Context) (int, error) {
	var n int
	err := s.DB.QueryRowContext(ctx, `SELECT COUNT(*) FROM snapshots`).Scan(&n)
	return n, err
}
