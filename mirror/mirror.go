// Package mirror keeps the modern test-identification attribute
// (data-test-id by default) mirrored onto the legacy attribute
// (data-testid) that external query utilities look up, so component markup
// only ever sets the modern one.
//
// A Mirror installs once per document: a deferred full-tree pass catches
// elements present before observation starts, then a continuous observer
// handles attribute changes and child-list insertions. The mirror never
// tears down and never fails: non-element nodes, untagged elements, and
// already-synchronized elements are silent no-ops.
//
// Like the document it observes, a Mirror is confined to one logical
// thread of execution; idempotency, not locking, makes Install safe to
// call from multiple entry points.
package mirror

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/hazyhaar/tidbridge/dom"
	"github.com/hazyhaar/tidbridge/event"
	"github.com/hazyhaar/tidbridge/idgen"
	"github.com/hazyhaar/tidbridge/sink"
)

// DefaultPrimary is the attribute component authors write.
const DefaultPrimary = "data-test-id"

// DefaultLegacy is the attribute external query utilities read.
const DefaultLegacy = "data-testid"

// Config tunes a Mirror. The zero value mirrors DefaultPrimary onto
// DefaultLegacy with no sink.
type Config struct {
	// Primary is the attribute to mirror from. Default: data-test-id.
	Primary string
	// Legacy is the attribute to mirror to. Default: data-testid.
	Legacy string
	// PageID identifies the document in emitted batches.
	PageID string
	// PageURL is carried through to emitted batches.
	PageURL string
	// Sink receives write batches, snapshots, and coverage. Nil = no emission.
	Sink sink.Sink
	// NewID overrides the default UUIDv7 generator.
	NewID idgen.Generator
	// Logger overrides the default slog logger.
	Logger *slog.Logger
}

func (c *Config) defaults() {
	if c.Primary == "" {
		c.Primary = DefaultPrimary
	}
	if c.Legacy == "" {
		c.Legacy = DefaultLegacy
	}
	if c.NewID == nil {
		c.NewID = idgen.Default
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
}

// Mirror synchronizes one attribute pair on one document.
type Mirror struct {
	doc     *dom.Document
	primary string
	legacy  string
	pageID  string
	pageURL string
	out     sink.Sink
	newID   idgen.Generator
	logger  *slog.Logger
	ctx     context.Context

	// installed is the one-way flag: Uninstalled → Installed, no teardown.
	installed bool

	seq         uint64
	snapshotRef string
}

// New creates a Mirror over doc. Call Install to attach it.
func New(doc *dom.Document, cfg Config) *Mirror {
	cfg.defaults()
	return &Mirror{
		doc:     doc,
		primary: cfg.Primary,
		legacy:  cfg.Legacy,
		pageID:  cfg.PageID,
		pageURL: cfg.PageURL,
		out:     cfg.Sink,
		newID:   cfg.NewID,
		logger:  cfg.Logger,
		ctx:     context.Background(),
	}
}

// SetContext sets the context passed to the sink on every emission.
// Cancelling it stops deliveries in flight; the mirror itself keeps
// synchronizing, only reporting is affected.
func (m *Mirror) SetContext(ctx context.Context) {
	if ctx != nil {
		m.ctx = ctx
	}
}

// Primary returns the attribute the mirror copies from.
func (m *Mirror) Primary() string { return m.primary }

// Legacy returns the attribute the mirror copies to.
func (m *Mirror) Legacy() string { return m.legacy }

// Installed reports whether Install has run.
func (m *Mirror) Installed() bool { return m != nil && m.installed }

// Install attaches the mirror to its document. Idempotent: every call
// after the first returns immediately, so independent entry points may all
// call it without coordination. Without a document the mirror skips
// installation entirely rather than fail.
//
// Installation schedules a one-time deferred pass over the whole tree
// (the tree may not be fully populated at call time) and subscribes to
// mutations filtered to the primary attribute and child-list insertions.
// Legacy-attribute writes fall outside that filter, so the mirror never
// observes its own output.
func (m *Mirror) Install() {
	if m == nil || m.installed {
		return
	}
	if m.doc == nil || m.doc.Root() == nil {
		m.logger.Debug("mirror: no document, skipping install")
		return
	}
	m.installed = true

	m.doc.QueueTask(func() {
		writes := m.collectSubtree(m.doc.Root(), false, nil)
		m.emit(writes)
	})

	m.doc.Observe(nil, dom.Options{
		ChildList:       true,
		AttributeFilter: []string{m.primary},
		Subtree:         true,
	}, m.onBatch)

	m.logger.Info("mirror: installed",
		"page_id", m.pageID, "primary", m.primary, "legacy", m.legacy)
}

// SynchronizeElement mirrors a single node: when n is an element carrying
// the primary attribute and its legacy attribute is absent or different,
// the legacy attribute is set to the primary value. Everything else is a
// no-op. Returns whether a write occurred. Idempotent: a second call on
// the same node writes nothing.
func (m *Mirror) SynchronizeElement(n *dom.Node) bool {
	_, applied := m.synchronize(n, false)
	return applied
}

// SynchronizeSubtree applies SynchronizeElement to root and every
// descendant, returning the number of writes applied.
func (m *Mirror) SynchronizeSubtree(root *dom.Node) int {
	return len(m.collectSubtree(root, false, nil))
}

// Coverage walks the document and tallies bridging state.
func (m *Mirror) Coverage() event.Coverage {
	cov := event.Coverage{
		PageID:    m.pageID,
		PageURL:   m.pageURL,
		Timestamp: time.Now().UnixMilli(),
	}
	if m.doc == nil {
		return cov
	}
	m.doc.Root().Walk(func(n *dom.Node) bool {
		if primary, ok := n.Attr(m.primary); ok {
			cov.Tagged++
			legacy, has := n.Attr(m.legacy)
			switch {
			case has && legacy == primary:
				cov.Mirrored++
			case has:
				cov.Stale++
			}
		}
		return true
	})
	return cov
}

// Snapshot renders the document, emits it together with a fresh coverage
// tally, and chains subsequent batches to the snapshot ID.
func (m *Mirror) Snapshot(ctx context.Context) (*event.Snapshot, error) {
	if m.doc == nil {
		return nil, fmt.Errorf("mirror: no document")
	}
	html, err := m.doc.Render()
	if err != nil {
		return nil, fmt.Errorf("mirror: snapshot: %w", err)
	}

	snap := &event.Snapshot{
		ID:        m.newID(),
		PageURL:   m.pageURL,
		PageID:    m.pageID,
		HTML:      html,
		HTMLHash:  event.HashHTML(html),
		Timestamp: time.Now().UnixMilli(),
	}
	m.snapshotRef = snap.ID

	if m.out != nil {
		if err := m.out.SendSnapshot(ctx, *snap); err != nil {
			m.logger.Error("mirror: send snapshot failed", "error", err)
		}
		if err := m.out.SendCoverage(ctx, m.Coverage()); err != nil {
			m.logger.Error("mirror: send coverage failed", "error", err)
		}
	}
	return snap, nil
}

// onBatch processes one delivered mutation batch: every record, in
// delivery order, before yielding.
func (m *Mirror) onBatch(records []dom.Mutation) {
	var writes []event.Write
	for _, rec := range records {
		switch rec.Type {
		case dom.AttributeChanged:
			if w, applied := m.synchronize(rec.Target, false); applied {
				writes = append(writes, w)
			}
		case dom.ChildListChanged:
			for _, added := range rec.Added {
				writes = m.collectSubtree(added, true, writes)
			}
		}
	}
	m.emit(writes)
}

// collectSubtree synchronizes root and its descendants, appending applied
// writes to dst.
func (m *Mirror) collectSubtree(root *dom.Node, inserted bool, dst []event.Write) []event.Write {
	root.Walk(func(n *dom.Node) bool {
		if w, applied := m.synchronize(n, inserted); applied {
			dst = append(dst, w)
		}
		return true
	})
	return dst
}

// synchronize is the single-write primitive. The write happens only when
// the values differ and results in equality, so re-observing the same node
// performs no further write.
func (m *Mirror) synchronize(n *dom.Node, inserted bool) (event.Write, bool) {
	if !n.IsElement() {
		return event.Write{}, false
	}
	primary, ok := n.Attr(m.primary)
	if !ok {
		return event.Write{}, false
	}
	legacy, has := n.Attr(m.legacy)
	if has && legacy == primary {
		return event.Write{}, false
	}

	n.SetAttr(m.legacy, primary)

	return event.Write{
		XPath:     dom.XPath(n),
		Tag:       n.Tag(),
		Value:     primary,
		OldValue:  legacy,
		Inserted:  inserted,
		Timestamp: time.Now().UnixMilli(),
	}, true
}

func (m *Mirror) emit(writes []event.Write) {
	if len(writes) == 0 || m.out == nil {
		return
	}

	m.seq++
	batch := event.Batch{
		ID:          m.newID(),
		PageURL:     m.pageURL,
		PageID:      m.pageID,
		Seq:         m.seq,
		Writes:      writes,
		Timestamp:   time.Now().UnixMilli(),
		SnapshotRef: m.snapshotRef,
	}

	if err := m.out.Send(m.ctx, batch); err != nil {
		m.logger.Error("mirror: send batch failed", "error", err)
	}
}
