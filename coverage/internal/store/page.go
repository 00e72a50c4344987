package store

import (
	"context"
	"database/sql"
	"errors"
	"time"
)

// Page is a tracked document.
type Page struct {
	PageID      string `json:"page_id"`
	PageURL     string `json:"page_url"`
	PrimaryAttr string `json:"primary_attr"`
	LegacyAttr  string `json:"legacy_attr"`
	LastSeen    int64  `json:"last_seen"`
	CreatedAt   int64  `json:"created_at"`
}

// UpsertPage creates or refreshes a page record.
func (s *Store) UpsertPage(ctx context.Context, p *Page) error {
	now := time.Now().UnixMilli()
	if p.LastSeen == 0 {
		p.LastSeen = now
	}
	if p.PrimaryAttr == "" {
		p.PrimaryAttr = "data-test-id"
	}
	if p.LegacyAttr == "" {
		p.LegacyAttr = "data-testid"
	}
	_, err := s.DB.ExecContext(ctx, `
		INSERT INTO pages (page_id, page_url, primary_attr, legacy_attr, last_seen, created_at)
		VALUES (?,?,?,?,?,?)
		ON CONFLICT(page_id) DO UPDATE SET
			page_url=excluded.page_url, last_seen=excluded.last_seen`,
		p.PageID, p.PageURL, p.PrimaryAttr, p.LegacyAttr, p.LastSeen, now,
	)
	return err
}

// GetPage retrieves a page by ID. Returns nil when not found.
func (s *Store) GetPage(ctx context.Context, pageID string) (*Page, error) {
	p := &Page{}
	err := s.DB.QueryRowContext(ctx, `
		SELECT page_id, page_url, primary_attr, legacy_attr, last_seen, created_at
		FROM pages WHERE page_id = ?`, pageID).Scan(
		&p.PageID, &p.PageURL, &p.PrimaryAttr, &p.LegacyAttr, &p.LastSeen, &p.CreatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return p, nil
}

// ListPages returns all tracked pages, most recently seen first.
func (s *Store) ListPages(ctx context.Context) ([]*Page, error) {
	rows, err := s.DB.QueryContext(ctx, `
		SELECT page_id, page_url, primary_attr, legacy_attr, last_seen, created_at
		FROM pages ORDER BY last_seen DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var pages []*Page
	for rows.Next() {
		p := &Page{}
		if err := rows.Scan(&p.PageID, &p.PageURL, &p.PrimaryAttr, &p.LegacyAttr,
			&p.LastSeen, &p.CreatedAt); err != nil {
			return nil, err
		}
		pages = append(pages, p)
	}
	return pages, rows.Err()
}
