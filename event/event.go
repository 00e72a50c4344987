// Package event defines the structured types emitted by tidbridge.
// These are the public API contract: any consumer (the coverage keeper,
// custom pipelines) imports this package to receive and process mirror
// activity.
package event

// Write is a single applied mirror write: the legacy attribute of one
// element was set to the value of its primary attribute.
type Write struct {
	XPath     string `json:"xpath"`
	Tag       string `json:"tag,omitempty"`
	Value     string `json:"value"`               // primary value copied to the legacy attribute
	OldValue  string `json:"old_value,omitempty"` // previous legacy value ("" when absent)
	Inserted  bool   `json:"inserted,omitempty"`  // true when triggered by a child-list insertion
	Timestamp int64  `json:"timestamp"`           // epoch milliseconds
}

// Batch is the atomic unit emitted by the mirror. One batch = all writes
// applied while processing a single mutation batch (or one JS flush in
// live-browser mode).
type Batch struct {
	ID          string  `json:"id"` // UUIDv7
	PageURL     string  `json:"page_url,omitempty"`
	PageID      string  `json:"page_id"`
	Seq         uint64  `json:"seq"` // monotonically increasing per page (gap detection)
	Writes      []Write `json:"writes"`
	Timestamp   int64   `json:"timestamp"`              // epoch milliseconds at flush
	SnapshotRef string  `json:"snapshot_ref,omitempty"` // ID of the last snapshot
}
