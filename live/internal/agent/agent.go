// Package agent attaches the attribute mirror to a live browser tab and
// relays its output: the mirror script runs inside the page, every legacy
// write comes back over a CDP binding, and the agent turns the records into
// batches for the sinks.
package agent

import (
	"context"
	_ "embed"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/go-rod/rod/lib/proto"

	"github.com/hazyhaar/tidbridge/event"
	"github.com/hazyhaar/tidbridge/idgen"
	"github.com/hazyhaar/tidbridge/live/internal/browser"
	"github.com/hazyhaar/tidbridge/sink"
)

//go:embed mirror.js
var mirrorJS []byte

const bindingName = "__tidbridge_binding"

// Agent bridges one page.
type Agent struct {
	tab    *browser.Tab
	out    sink.Sink
	logger *slog.Logger
	ctx    context.Context
	cancel context.CancelFunc

	primary string
	legacy  string

	// Sequence counter (monotonically increasing per page).
	seq atomic.Uint64

	// Last snapshot ID for batch chaining.
	snapshotRef atomic.Value // stores string

	snapshotInterval time.Duration
}

// Config for creating an Agent.
type Config struct {
	Tab              *browser.Tab
	Sink             sink.Sink
	Primary          string
	Legacy           string
	SnapshotInterval time.Duration
	Logger           *slog.Logger
}

// New creates an Agent for the given tab.
func New(cfg Config) *Agent {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Primary == "" {
		cfg.Primary = "data-test-id"
	}
	if cfg.Legacy == "" {
		cfg.Legacy = "data-testid"
	}
	if cfg.SnapshotInterval <= 0 {
		cfg.SnapshotInterval = 4 * time.Hour
	}

	ctx, cancel := context.WithCancel(context.Background())

	return &Agent{
		tab:              cfg.Tab,
		out:              cfg.Sink,
		logger:           cfg.Logger,
		ctx:              ctx,
		cancel:           cancel,
		primary:          cfg.Primary,
		legacy:           cfg.Legacy,
		snapshotInterval: cfg.SnapshotInterval,
	}
}

// SetContext allows the parent bridge to pass its context.
func (a *Agent) SetContext(ctx context.Context) {
	a.ctx, a.cancel = context.WithCancel(ctx)
}

// Start attaches the mirror. It:
// 1. Registers the CDP binding and starts listening
// 2. Injects the mirror script (config first, then the script itself)
// 3. Emits an initial snapshot and coverage tally
// 4. Runs the periodic snapshot loop
func (a *Agent) Start() error {
	err := proto.RuntimeAddBinding{Name: bindingName}.Call(a.tab.Page)
	if err != nil {
		a.logger.Warn("agent: addBinding failed (may already exist)", "error", err)
	}

	go a.listenBinding()

	if err := a.inject(); err != nil {
		return fmt.Errorf("agent: inject: %w", err)
	}

	a.emitSnapshot()

	go a.loop()

	a.logger.Info("agent: mirror attached",
		"url", a.tab.PageURL, "id", a.tab.PageID,
		"primary", a.primary, "legacy", a.legacy)
	return nil
}

// Stop detaches the agent. The in-page mirror stays installed: it has no
// teardown and keeps the page consistent even unobserved.
func (a *Agent) Stop() {
	a.cancel()
}

func (a *Agent) inject() error {
	cfgJSON, _ := json.Marshal(map[string]string{
		"primary": a.primary,
		"legacy":  a.legacy,
	})
	setup := fmt.Sprintf("window.__tidbridge_config = %s;", cfgJSON)
	if _, err := a.tab.Page.Eval(setup); err != nil {
		return fmt.Errorf("set config: %w", err)
	}

	if _, err := a.tab.Page.Eval(string(mirrorJS)); err != nil {
		return fmt.Errorf("inject mirror.js: %w", err)
	}
	return nil
}

// listenBinding receives write records from the in-page mirror via
// Runtime.bindingCalled. Each payload is one batch: its records are kept in
// report order.
func (a *Agent) listenBinding() {
	page := a.tab.Page
	page.Context(a.ctx).EachEvent(func(e *proto.RuntimeBindingCalled) {
		if e.Name != bindingName {
			return
		}

		var jsWrites []struct {
			XPath    string `json:"xpath"`
			Tag      string `json:"tag"`
			Value    string `json:"value"`
			OldValue string `json:"old_value"`
			Inserted bool   `json:"inserted"`
			TS       int64  `json:"ts"`
		}
		if err := json.Unmarshal([]byte(e.Payload), &jsWrites); err != nil {
			a.logger.Warn("agent: parse binding payload", "error", err)
			return
		}
		if len(jsWrites) == 0 {
			return
		}

		writes := make([]event.Write, 0, len(jsWrites))
		for _, w := range jsWrites {
			writes = append(writes, event.Write{
				XPath:     w.XPath,
				Tag:       w.Tag,
				Value:     w.Value,
				OldValue:  w.OldValue,
				Inserted:  w.Inserted,
				Timestamp: w.TS,
			})
		}
		a.emitBatch(writes)
	})()
}

// loop emits periodic snapshots until the agent is stopped.
func (a *Agent) loop() {
	ticker := time.NewTicker(a.snapshotInterval)
	defer ticker.Stop()

	for {
		select {
		case <-a.ctx.Done():
			return
		case <-ticker.C:
			a.emitSnapshot()
		}
	}
}

func (a *Agent) emitBatch(writes []event.Write) {
	ref := ""
	if v := a.snapshotRef.Load(); v != nil {
		ref = v.(string)
	}

	batch := event.Batch{
		ID:          idgen.New(),
		PageURL:     a.tab.PageURL,
		PageID:      a.tab.PageID,
		Seq:         a.seq.Add(1),
		Writes:      writes,
		Timestamp:   time.Now().UnixMilli(),
		SnapshotRef: ref,
	}

	if err := a.out.Send(a.ctx, batch); err != nil {
		a.logger.Error("agent: send batch failed", "error", err)
	}
}

func (a *Agent) emitSnapshot() {
	html, err := a.tab.GetFullDOM(a.ctx)
	if err != nil {
		a.logger.Error("agent: get DOM for snapshot", "error", err)
		return
	}

	snap := event.Snapshot{
		ID:        idgen.New(),
		PageURL:   a.tab.PageURL,
		PageID:    a.tab.PageID,
		HTML:      html,
		HTMLHash:  event.HashHTML(html),
		Timestamp: time.Now().UnixMilli(),
	}

	a.snapshotRef.Store(snap.ID)

	if err := a.out.SendSnapshot(a.ctx, snap); err != nil {
		a.logger.Error("agent: send snapshot failed", "error", err)
	}

	if cov, err := a.Coverage(a.ctx); err == nil {
		if err := a.out.SendCoverage(a.ctx, *cov); err != nil {
			a.logger.Error("agent: send coverage failed", "error", err)
		}
	}

	a.logger.Info("agent: snapshot emitted",
		"url", a.tab.PageURL, "id", snap.ID, "size", len(html))
}

// Coverage asks the in-page mirror for its bridging tally.
func (a *Agent) Coverage(ctx context.Context) (*event.Coverage, error) {
	res, err := a.tab.Page.Context(ctx).Eval(
		`() => JSON.stringify(window.__tidbridge ? window.__tidbridge.coverage() : {})`)
	if err != nil {
		return nil, fmt.Errorf("agent: coverage: %w", err)
	}

	cov := &event.Coverage{
		PageID:    a.tab.PageID,
		PageURL:   a.tab.PageURL,
		Timestamp: time.Now().UnixMilli(),
	}
	if err := json.Unmarshal([]byte(res.Value.Str()), cov); err != nil {
		return nil, fmt.Errorf("agent: parse coverage: %w", err)
	}
	return cov, nil
}

// Installed reports whether the in-page mirror is attached.
func (a *Agent) Installed(ctx context.Context) bool {
	res, err := a.tab.Page.Context(ctx).Eval(
		`() => !!(window.__tidbridge && window.__tidbridge.installed)`)
	if err != nil {
		return false
	}
	return res.Value.Bool()
}
