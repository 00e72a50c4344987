package event

import (
	"crypto/sha256"
	"encoding/json"
	"fmt"
)

// MarshalBatch serialises a Batch to JSON.
func MarshalBatch(b *Batch) ([]byte, error) {
	return json.Marshal(b)
}

// UnmarshalBatch deserialises a Batch from JSON.
func UnmarshalBatch(data []byte) (*Batch, error) {
	var b Batch
	if err := json.Unmarshal(data, &b); err != nil {
		return nil, err
	}
	return &b, nil
}

// MarshalSnapshot serialises a Snapshot to JSON.
func MarshalSnapshot(s *Snapshot) ([]byte, error) {
	return json.Marshal(s)
}

// UnmarshalSnapshot deserialises a Snapshot from JSON.
func UnmarshalSnapshot(data []byte) (*Snapshot, error) {
	var s Snapshot
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, err
	}
	return &s, nil
}

// MarshalCoverage serialises a Coverage to JSON.
func MarshalCoverage(c *Coverage) ([]byte, error) {
	return json.Marshal(c)
}

// UnmarshalCoverage deserialises a Coverage from JSON.
func UnmarshalCoverage(data []byte) (*Coverage, error) {
	var c Coverage
	if err := json.Unmarshal(data, &c); err != nil {
		return nil, err
	}
	return &c, nil
}

// HashHTML returns the SHA-256 hex digest of raw HTML bytes.
func HashHTML(html []byte) string {
	h := sha256.Sum256(html)
	return fmt.Sprintf("%x", h)
}
