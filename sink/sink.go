// Package sink defines output backends for tidbridge mirror activity.
// Implementations deliver write batches, snapshots, and coverage tallies to
// different backends (stdout, webhook, in-process callback).
package sink

import (
	"context"

	"github.com/hazyhaar/tidbridge/event"
)

// Sink is the output interface.
type Sink interface {
	Send(ctx context.Context, batch event.Batch) error
	SendSnapshot(ctx context.Context, snap event.Snapshot) error
	SendCoverage(ctx context.Context, cov event.Coverage) error
	Close() error
}

type envelope struct {
	Type string `json:"type"`
	Data any    `json:"data"`
}
