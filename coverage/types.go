package coverage

import "github.com/hazyhaar/tidbridge/coverage/internal/store"

// Re-exported types from internal/store for use by cmd/ and external callers.
type (
	Page        = store.Page
	BatchRow    = store.BatchRow
	WriteRow    = store.WriteRow
	SnapshotRow = store.SnapshotRow
	CoverageRow = store.CoverageRow
)
