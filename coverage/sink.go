package coverage

import (
	"github.com/hazyhaar/tidbridge/sink"
)

// Sink returns a sink.Sink that feeds into this Keeper's store.
// Wire it into a mirror or the live bridge to connect bridging → persistence.
//
// Usage:
//
//	k, _ := coverage.New(cfg, logger)
//	m := mirror.New(doc, mirror.Config{Sink: k.Sink()})
func (k *Keeper) Sink() sink.Sink {
	return sink.NewCallback(
		k.HandleBatch,
		k.HandleSnapshot,
		k.HandleCoverage,
	)
}
