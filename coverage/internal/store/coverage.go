package store

import (
	"context"
	"database/sql"
	"errors"
	"time"
)

// CoverageRow is one bridging tally for a page at a point in time.
type CoverageRow struct {
	ID        string `json:"id"`
	PageID    string `json:"page_id"`
	PageURL   string `json:"page_url"`
	Tagged    int    `json:"tagged"`
	Mirrored  int    `json:"mirrored"`
	Stale     int    `json:"stale"`
	CreatedAt int64  `json:"created_at"`
}

// InsertCoverage stores a coverage tally.
func (s *Store) InsertCoverage(ctx context.Context, c *CoverageRow) error {
	if c.CreatedAt == 0 {
		c.CreatedAt = time.Now().UnixMilli()
	}
	_, err := s.DB.ExecContext(ctx, `
		INSERT INTO coverage_log (id, page_id, page_url, tagged, mirrored, stale, created_at)
		VALUES (?,?,?,?,?,?,?)`,
		c.ID, c.PageID, c.PageURL, c.Tagged, c.Mirrored, c.Stale, c.CreatedAt,
	)
	return err
}

// LatestCoverage returns the most recent tally for a page, or nil.
func (s *Store) LatestCoverage(ctx context.Context, pageID string) (*CoverageRow, error) {
	c := &CoverageRow{}
	err := s.DB.QueryRowContext(ctx, `
		SELECT id, page_id, page_url, tagged, mirrored, stale, created_at
		FROM coverage_log WHERE page_id = ?
		ORDER BY created_at DESC LIMIT 1`, pageID).Scan(
		&c.ID, &c.PageID, &c.PageURL, &c.Tagged, &c.Mirrored, &c.Stale, &c.CreatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return c, nil
}

// ListLatestCoverage returns the latest tally per page.
func (s *Store) ListLatestCoverage(ctx context.Context) ([]*CoverageRow, error) {
	rows, err := s.DB.QueryContext(ctx, `
		SELECT c.id, c.page_id, c.page_url, c.tagged, c.mirrored, c.stale, c.created_at
		FROM coverage_log c
		JOIN (
			SELECT page_id, MAX(created_at) AS max_at
			FROM coverage_log GROUP BY page_id
		) latest ON c.page_id = latest.page_id AND c.created_at = latest.max_at
		ORDER BY c.page_id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*CoverageRow
	for rows.Next() {
		c := &CoverageRow{}
		if err := rows.Scan(&c.ID, &c.PageID, &c.PageURL, &c.Tagged, &c.Mirrored,
			&c.Stale, &c.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}
