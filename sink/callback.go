package sink

import (
	"context"

	"github.com/hazyhaar/tidbridge/event"
)

// BatchFunc is called for each write batch (in-process, zero serialisation).
type BatchFunc func(ctx context.Context, batch event.Batch) error

// SnapshotFunc is called for each snapshot.
type SnapshotFunc func(ctx context.Context, snap event.Snapshot) error

// CoverageFunc is called for each coverage tally.
type CoverageFunc func(ctx context.Context, cov event.Coverage) error

// Callback delivers mirror activity via Go function calls. This is the
// local path: when the coverage keeper and the mirror live in the same
// binary, batches are in-memory function calls with zero serialisation
// overhead.
type Callback struct {
	onBatch    BatchFunc
	onSnapshot SnapshotFunc
	onCoverage CoverageFunc
}

// NewCallback creates a Callback sink. Any handler may be nil.
func NewCallback(onBatch BatchFunc, onSnapshot SnapshotFunc, onCoverage CoverageFunc) *Callback {
	return &Callback{onBatch: onBatch, onSnapshot: onSnapshot, onCoverage: onCoverage}
}

func (c *Callback) Send(ctx context.Context, batch event.Batch) error {
	if c.onBatch != nil {
		return c.onBatch(ctx, batch)
	}
	return nil
}

func (c *Callback) SendSnapshot(ctx context.Context, snap event.Snapshot) error {
	if c.onSnapshot != nil {
		return c.onSnapshot(ctx, snap)
	}
	return nil
}

func (c *Callback) SendCoverage(ctx context.Context, cov event.Coverage) error {
	if c.onCoverage != nil {
		return c.onCoverage(ctx, cov)
	}
	return nil
}

func (c *Callback) Close() error { return nil }
