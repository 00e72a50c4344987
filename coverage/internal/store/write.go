package store

import (
	"context"
	"database/sql"
	"time"

	"github.com/hazyhaar/tidbridge/dbopen"
)

// BatchRow is a persisted write batch header.
type BatchRow struct {
	ID          string `json:"id"`
	PageID      string `json:"page_id"`
	PageURL     string `json:"page_url"`
	Seq         uint64 `json:"seq"`
	SnapshotRef string `json:"snapshot_ref,omitempty"`
	WriteCount  int    `json:"write_count"`
	CreatedAt   int64  `json:"created_at"`
}

// WriteRow is one persisted legacy-attribute write.
type WriteRow struct {
	ID         string `json:"id"`
	BatchID    string `json:"batch_id"`
	BatchIndex int    `json:"batch_index"`
	PageID     string `json:"page_id"`
	XPath      string `json:"xpath"`
	Tag        string `json:"tag"`
	Value      string `json:"value"`
	OldValue   string `json:"old_value,omitempty"`
	Inserted   bool   `json:"inserted"`
	CreatedAt  int64  `json:"created_at"`
}

// InsertBatch stores a batch header together with its writes in one
// transaction. Write order within the batch is preserved via batch_index.
func (s *Store) InsertBatch(ctx context.Context, b *BatchRow, writes []*WriteRow) error {
	if b.CreatedAt == 0 {
		b.CreatedAt = time.Now().UnixMilli()
	}
	b.WriteCount = len(writes)

	return dbopen.RunTx(ctx, s.DB, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO batches (id, page_id, page_url, seq, snapshot_ref, write_count, created_at)
			VALUES (?,?,?,?,?,?,?)`,
			b.ID, b.PageID, b.PageURL, b.Seq, b.SnapshotRef, b.WriteCount, b.CreatedAt,
		)
		if err != nil {
			return err
		}
		for i, w := range writes {
			w.BatchID = b.ID
			w.BatchIndex = i
			if w.CreatedAt == 0 {
				w.CreatedAt = b.CreatedAt
			}
			_, err := tx.ExecContext(ctx, `
				INSERT INTO writes (id, batch_id, batch_index, page_id, xpath, tag, value, old_value, inserted, created_at)
				VALUES (?,?,?,?,?,?,?,?,?,?)`,
				w.ID, w.BatchID, w.BatchIndex, w.PageID, w.XPath, w.Tag, w.Value, w.OldValue,
				boolToInt(w.Inserted), w.CreatedAt,
			)
			if err != nil {
				return err
			}
		}
		return nil
	})
}

// RecentWrites returns the latest writes, optionally filtered by page.
func (s *Store) RecentWrites(ctx context.Context, pageID string, limit int) ([]*WriteRow, error) {
	if limit <= 0 {
		limit = 50
	}
	query := `
		SELECT id, batch_id, batch_index, page_id, xpath, tag, value, old_value, inserted, created_at
		FROM writes`
	args := []any{}
	if pageID != "" {
		query += ` WHERE page_id = ?`
		args = append(args, pageID)
	}
	query += ` ORDER BY created_at DESC, batch_index DESC LIMIT ?`
	args = append(args, limit)

	rows, err := s.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*WriteRow
	for rows.Next() {
		w := &WriteRow{}
		var inserted int
		if err := rows.Scan(&w.ID, &w.BatchID, &w.BatchIndex, &w.PageID, &w.XPath,
			&w.Tag, &w.Value, &w.OldValue, &inserted, &w.CreatedAt); err != nil {
			return nil, err
		}
		w.Inserted = inserted != 0
		out = append(out, w)
	}
	return out, rows.Err()
}

// BatchWrites returns the writes of one batch in batch order.
func (s *Store) BatchWrites(ctx context.Context, batchID string) ([]*WriteRow, error) {
	rows, err := s.DB.QueryContext(ctx, `
		SELECT id, batch_id, batch_index, page_id, xpath, tag, value, old_value, inserted, created_at
		FROM writes WHERE batch_id = ? ORDER BY batch_index`, batchID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*WriteRow
	for rows.Next() {
		w := &WriteRow{}
		var inserted int
		if err := rows.Scan(&w.ID, &w.BatchID, &w.BatchIndex, &w.PageID, &w.XPath,
			&w.Tag, &w.Value, &w.OldValue, &inserted, &w.CreatedAt); err != nil {
			return nil, err
		}
		w.Inserted = inserted != 0
		out = append(out, w)
	}
	return out, rows.Err()
}

// CountWrites returns the total number of stored writes.
func (s *Store) CountWrites(ctx context.Context) (int, error) {
	var n int
	err := s.DB.QueryRowContext(ctx, `SELECT COUNT(*) FROM writes`).Scan(&n)
	return n, err
}

// CountBatches returns the total number of stored batches.
func (s *Store) CountBatches(ctx context.Context) (int, error) {
	var n int
	err := s.DB.QueryRowContext(ctx, `SELECT COUNT(*) FROM batches`).Scan(&n)
	return n, err
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
