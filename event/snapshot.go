package event

// Snapshot is a complete DOM photo of an observed page. Emitted once at
// install time and on demand afterwards. The raw HTML is the immutable
// asset the coverage report is rendered from.
type Snapshot struct {
	ID        string `json:"id"` // UUIDv7
	PageURL   string `json:"page_url,omitempty"`
	PageID    string `json:"page_id"`
	HTML      []byte `json:"html"`      // full serialised DOM
	HTMLHash  string `json:"html_hash"` // SHA-256 hex
	Timestamp int64  `json:"timestamp"` // epoch milliseconds
}

// Coverage is a per-page tally of test-identifier bridging state.
type Coverage struct {
	PageID    string `json:"page_id"`
	PageURL   string `json:"page_url,omitempty"`
	Tagged    int    `json:"tagged"`    // elements carrying the primary attribute
	Mirrored  int    `json:"mirrored"`  // of those, elements whose legacy attribute matches
	Stale     int    `json:"stale"`     // legacy present but different from primary
	Timestamp int64  `json:"timestamp"` // epoch milliseconds
}
