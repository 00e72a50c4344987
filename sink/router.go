package sink

import (
	"context"
	"log/slog"

	"github.com/hazyhaar/tidbridge/event"
)

// Router fans out to all configured sinks. One sink error does not block
// the others; errors are logged and the first encountered is returned.
type Router struct {
	sinks  []Sink
	logger *slog.Logger
}

// NewRouter creates a fan-out router delivering to all sinks.
func NewRouter(logger *slog.Logger, sinks ...Sink) *Router {
	if logger == nil {
		logger = slog.Default()
	}
	return &Router{sinks: sinks, logger: logger}
}

func (r *Router) Send(ctx context.Context, batch event.Batch) error {
	var firstErr error
	for _, s := range r.sinks {
		if err := s.Send(ctx, batch); err != nil {
			r.logger.Warn("sink: send batch failed", "error", err)
			if firstErr == nil {
				firstErr = err
			}
		}
	}
	return firstErr
}

func (r *Router) SendSnapshot(ctx context.Context, snap event.Snapshot) error {
	var firstErr error
	for _, s := range r.sinks {
		if err := s.SendSnapshot(ctx, snap); err != nil {
			r.logger.Warn("sink: send snapshot failed", "error", err)
			if firstErr == nil {
				firstErr = err
			}
		}
	}
	return firstErr
}

func (r *Router) SendCoverage(ctx context.Context, cov event.Coverage) error {
	var firstErr error
	for _, s := range r.sinks {
		if err := s.SendCoverage(ctx, cov); err != nil {
			r.logger.Warn("sink: send coverage failed", "error", err)
			if firstErr == nil {
				firstErr = err
			}
		}
	}
	return firstErr
}

func (r *Router) Close() error {
	var firstErr error
	for _, s := range r.sinks {
		if err := s.Close(); err != nil {
			if firstErr == nil {
				firstErr = err
			}
		}
	}
	return firstErr
}
