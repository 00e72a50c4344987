package mirror

import (
	"context"
	"testing"

	"github.com/hazyhaar/tidbridge/dom"
	"github.com/hazyhaar/tidbridge/event"
	"github.com/hazyhaar/tidbridge/sink"
)

func newTestMirror(t *testing.T, html string) (*dom.Document, *Mirror, *[]event.Batch) {
	t.Helper()
	d, err := dom.ParseString(html)
	if err != nil {
		t.Fatal(err)
	}
	var batches []event.Batch
	capture := sink.NewCallback(func(_ context.Context, b event.Batch) error {
		batches = append(batches, b)
		return nil
	}, nil, nil)
	m := New(d, Config{PageID: "test", Sink: capture})
	return d, m, &batches
}

func attr(t *testing.T, n *dom.Node, name string) string {
	t.Helper()
	v, _ := n.Attr(name)
	return v
}

func findByPrimary(d *dom.Document, value string) *dom.Node {
	var found *dom.Node
	d.Root().Walk(func(n *dom.Node) bool {
		if v, ok := n.Attr(DefaultPrimary); ok && v == value {
			found = n
			return false
		}
		return true
	})
	return found
}

func TestInstallMirrorsExistingElements(t *testing.T) {
	d, m, _ := newTestMirror(t, `<html><body>
		<button data-test-id="save-button">Save</button>
		<input data-test-id="name-field">
	</body></html>`)

	m.Install()
	d.Flush()

	for _, id := range []string{"save-button", "name-field"} {
		n := findByPrimary(d, id)
		if got := attr(t, n, DefaultLegacy); got != id {
			t.Errorf("%s: legacy got %q, want %q", id, got, id)
		}
	}
}

func TestInsertedElementMirroredAfterNextBatch(t *testing.T) {
	d, m, _ := newTestMirror(t, `<html><body><main></main></body></html>`)
	m.Install()
	d.Flush()

	var main *dom.Node
	d.Root().Walk(func(n *dom.Node) bool {
		if n.Tag() == "main" {
			main = n
			return false
		}
		return true
	})

	div := dom.NewElement("div", dom.Attr{Name: DefaultPrimary, Value: "save-button"})
	main.AppendChild(div)
	d.Flush()

	if got := attr(t, div, DefaultLegacy); got != "save-button" {
		t.Errorf("legacy after insert: got %q, want %q", got, "save-button")
	}
}

func TestInsertedSubtreeDescendantsMirrored(t *testing.T) {
	d, m, _ := newTestMirror(t, `<html><body></body></html>`)
	m.Install()
	d.Flush()

	panel := dom.NewElement("section")
	inner := dom.NewElement("button", dom.Attr{Name: DefaultPrimary, Value: "nested"})
	panel.AppendChild(inner)

	var body *dom.Node
	d.Root().Walk(func(n *dom.Node) bool {
		if n.Tag() == "body" {
			body = n
			return false
		}
		return true
	})
	body.AppendChild(panel)
	d.Flush()

	if got := attr(t, inner, DefaultLegacy); got != "nested" {
		t.Errorf("nested legacy: got %q, want %q", got, "nested")
	}
}

func TestPrimaryValueChangeUpdatesLegacy(t *testing.T) {
	d, m, _ := newTestMirror(t, `<html><body><div data-test-id="a"></div></body></html>`)
	m.Install()
	d.Flush()

	n := findByPrimary(d, "a")
	n.SetAttr(DefaultPrimary, "b")
	d.Flush()

	if got := attr(t, n, DefaultLegacy); got != "b" {
		t.Errorf("legacy after change: got %q, want %q", got, "b")
	}
}

func TestSynchronizeElementIdempotent(t *testing.T) {
	d, err := dom.ParseString(`<html><body><div data-test-id="x"></div></body></html>`)
	if err != nil {
		t.Fatal(err)
	}
	m := New(d, Config{})
	n := findByPrimary(d, "x")

	if !m.SynchronizeElement(n) {
		t.Fatal("first call: expected a write")
	}
	if m.SynchronizeElement(n) {
		t.Error("second call: expected no write")
	}
	if got := attr(t, n, DefaultLegacy); got != "x" {
		t.Errorf("legacy: got %q, want %q", got, "x")
	}
}

func TestAlreadySynchronizedIsNoOp(t *testing.T) {
	d, m, batches := newTestMirror(t,
		`<html><body><div data-test-id="x" data-testid="x"></div></body></html>`)

	m.Install()
	d.Flush()

	if len(*batches) != 0 {
		t.Errorf("batches: got %d, want 0 (already synchronized)", len(*batches))
	}
}

func TestNonElementNodesIgnored(t *testing.T) {
	d, err := dom.ParseString(`<html><body>text</body></html>`)
	if err != nil {
		t.Fatal(err)
	}
	m := New(d, Config{})

	if m.SynchronizeElement(nil) {
		t.Error("nil node: expected no write")
	}
	if m.SynchronizeElement(dom.NewText("hello")) {
		t.Error("text node: expected no write")
	}
}

func TestInstallIdempotent(t *testing.T) {
	d, m, batches := newTestMirror(t,
		`<html><body><div data-test-id="x"></div></body></html>`)

	m.Install()
	m.Install()
	m.Install()
	d.Flush()

	// One initial pass, one batch: N installs never duplicate the observer.
	if len(*batches) != 1 {
		t.Fatalf("batches: got %d, want 1", len(*batches))
	}
	if !m.Installed() {
		t.Error("Installed: got false")
	}

	// A later mutation is delivered once, not once per Install call.
	n := findByPrimary(d, "x")
	n.SetAttr(DefaultPrimary, "y")
	d.Flush()
	if len(*batches) != 2 {
		t.Fatalf("batches after mutation: got %d, want 2", len(*batches))
	}
	if len((*batches)[1].Writes) != 1 {
		t.Errorf("writes: got %d, want 1", len((*batches)[1].Writes))
	}
}

func TestNoDocumentSkipsInstall(t *testing.T) {
	m := New(nil, Config{})
	m.Install() // must not panic
	if m.Installed() {
		t.Error("Installed: got true without a document")
	}
}

func TestMirrorWritesDoNotLoop(t *testing.T) {
	d, m, batches := newTestMirror(t,
		`<html><body><div data-test-id="x"></div></body></html>`)

	m.Install()
	d.Flush() // terminating is the property: the legacy write is filtered out

	if len(*batches) != 1 {
		t.Fatalf("batches: got %d, want 1", len(*batches))
	}
	if n := len((*batches)[0].Writes); n != 1 {
		t.Errorf("writes: got %d, want 1", n)
	}
}

func TestLegacyOnlyEditNotReconciled(t *testing.T) {
	d, m, _ := newTestMirror(t, `<html><body><div data-test-id="x"></div></body></html>`)
	m.Install()
	d.Flush()

	// Manual legacy edit after synchronization: primary wins only on the
	// next primary write; the mirror never reconciles legacy-only edits.
	n := findByPrimary(d, "x")
	n.SetAttr(DefaultLegacy, "tampered")
	d.Flush()

	if got := attr(t, n, DefaultLegacy); got != "tampered" {
		t.Errorf("legacy: got %q, want %q (no reverse sync)", got, "tampered")
	}

	n.SetAttr(DefaultPrimary, "x2")
	d.Flush()
	if got := attr(t, n, DefaultLegacy); got != "x2" {
		t.Errorf("legacy after primary write: got %q, want %q", got, "x2")
	}
}

func TestBatchOrderPreserved(t *testing.T) {
	d, m, batches := newTestMirror(t, `<html><body>
		<div data-test-id="first"></div>
		<div data-test-id="second"></div>
		<div data-test-id="third"></div>
	</body></html>`)

	m.Install()
	d.Flush()

	if len(*batches) != 1 {
		t.Fatalf("batches: got %d, want 1", len(*batches))
	}
	writes := (*batches)[0].Writes
	want := []string{"first", "second", "third"}
	if len(writes) != len(want) {
		t.Fatalf("writes: got %d, want %d", len(writes), len(want))
	}
	for i, w := range writes {
		if w.Value != want[i] {
			t.Errorf("writes[%d]: got %q, want %q", i, w.Value, want[i])
		}
	}
}

func TestCoverage(t *testing.T) {
	d, m, _ := newTestMirror(t, `<html><body>
		<div data-test-id="a" data-testid="a"></div>
		<div data-test-id="b"></div>
		<div data-test-id="c" data-testid="stale"></div>
		<div></div>
	</body></html>`)

	cov := m.Coverage()
	if cov.Tagged != 3 || cov.Mirrored != 1 || cov.Stale != 1 {
		t.Errorf("coverage before install: got %+v", cov)
	}

	m.Install()
	d.Flush()

	cov = m.Coverage()
	if cov.Tagged != 3 || cov.Mirrored != 3 || cov.Stale != 0 {
		t.Errorf("coverage after install: got %+v", cov)
	}
}

func TestSetContextReachesSink(t *testing.T) {
	d, err := dom.ParseString(`<html><body><div data-test-id="x"></div></body></html>`)
	if err != nil {
		t.Fatal(err)
	}

	var sinkErr error
	capture := sink.NewCallback(func(ctx context.Context, _ event.Batch) error {
		sinkErr = ctx.Err()
		return nil
	}, nil, nil)

	ctx, cancel := context.WithCancel(context.Background())
	m := New(d, Config{PageID: "test", Sink: capture})
	m.SetContext(ctx)
	cancel()

	m.Install()
	d.Flush()

	// The mirror still writes; only delivery sees the cancellation.
	n := findByPrimary(d, "x")
	if got := attr(t, n, DefaultLegacy); got != "x" {
		t.Errorf("legacy: got %q, want %q", got, "x")
	}
	if sinkErr != context.Canceled {
		t.Errorf("sink ctx err: got %v, want context.Canceled", sinkErr)
	}
}

func TestSnapshotEmitsAndChains(t *testing.T) {
	d, err := dom.ParseString(`<html><body><div data-test-id="x"></div></body></html>`)
	if err != nil {
		t.Fatal(err)
	}

	var snaps []event.Snapshot
	var covs []event.Coverage
	var bat []event.Batch
	capture := sink.NewCallback(
		func(_ context.Context, b event.Batch) error { bat = append(bat, b); return nil },
		func(_ context.Context, s event.Snapshot) error { snaps = append(snaps, s); return nil },
		func(_ context.Context, c event.Coverage) error { covs = append(covs, c); return nil },
	)
	m := New(d, Config{PageID: "test", Sink: capture})

	snap, err := m.Snapshot(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if len(snaps) != 1 || len(covs) != 1 {
		t.Fatalf("emitted: snapshots=%d coverage=%d, want 1 each", len(snaps), len(covs))
	}
	if snap.HTMLHash != event.HashHTML(snap.HTML) {
		t.Error("snapshot hash mismatch")
	}

	m.Install()
	d.Flush()
	if len(bat) != 1 {
		t.Fatalf("batches: got %d, want 1", len(bat))
	}
	if bat[0].SnapshotRef != snap.ID {
		t.Errorf("snapshot ref: got %q, want %q", bat[0].SnapshotRef, snap.ID)
	}
}
