// Package live runs the attribute mirror against real pages. It orchestrates
// Chrome headless as a disposable component: one tab per configured page,
// the mirror script injected into each, every legacy write relayed to sinks.
//
// live bridges, it does not interpret. Write batches, snapshots, and coverage
// tallies are emitted to sinks (stdout, webhook, callback) for consumers like
// the coverage keeper to process.
package live

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/go-rod/rod"

	"github.com/hazyhaar/tidbridge/live/internal/agent"
	"github.com/hazyhaar/tidbridge/live/internal/browser"
	"github.com/hazyhaar/tidbridge/live/internal/config"
	"github.com/hazyhaar/tidbridge/sink"
)

// Bridge is the top-level orchestrator. It manages the browser, page agents,
// and sinks. Create one per live instance.
type Bridge struct {
	cfg    *config.Config
	mgr    *browser.Manager
	sinkR  *sink.Router
	agents map[string]*agent.Agent // keyed by page ID
	mu     sync.Mutex
	logger *slog.Logger
}

// New creates a Bridge from configuration.
func New(cfg *config.Config, logger *slog.Logger, sinks ...sink.Sink) *Bridge {
	if logger == nil {
		logger = slog.Default()
	}

	mode := browser.ModeHeadless
	if cfg.Browser.Headful {
		mode = browser.ModeHeadful
	}

	mgr := browser.NewManager(browser.Config{
		RemoteURL:        cfg.Browser.Remote,
		MemoryLimit:      cfg.Browser.MemoryLimit,
		RecycleInterval:  cfg.Browser.RecycleInterval,
		ResourceBlocking: cfg.Browser.ResourceBlocking,
		Mode:             mode,
		XvfbDisplay:      cfg.Browser.XvfbDisplay,
		Logger:           logger,
	})

	return &Bridge{
		cfg:    cfg,
		mgr:    mgr,
		sinkR:  sink.NewRouter(logger, sinks...),
		agents: make(map[string]*agent.Agent),
		logger: logger,
	}
}

// Start launches the browser and attaches the mirror to all configured pages.
func (b *Bridge) Start(ctx context.Context) error {
	_, err := b.mgr.Start(ctx)
	if err != nil {
		return fmt.Errorf("live: start browser: %w", err)
	}

	// Re-attach agents after a browser recycle.
	b.mgr.SetRecycleCallback(&browser.RecycleCallback{
		BeforeRecycle: b.stopAllAgents,
		AfterRecycle:  func(_ *rod.Browser) { b.reattachAgents(ctx) },
	})

	for _, page := range b.cfg.Pages {
		if err := b.AttachPage(ctx, page); err != nil {
			b.logger.Error("live: failed to attach page",
				"url", page.URL, "error", err)
		}
	}

	return nil
}

// AttachPage opens a tab for a single page and installs the mirror.
// Attaching an already-attached page is a no-op: the in-page mirror is
// idempotent and a second agent would only duplicate batches.
func (b *Bridge) AttachPage(ctx context.Context, pageCfg config.PageConfig) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.attachPageLocked(ctx, pageCfg)
}

func (b *Bridge) attachPageLocked(ctx context.Context, pageCfg config.PageConfig) error {
	if _, ok := b.agents[pageCfg.ID]; ok {
		b.logger.Debug("live: page already attached", "id", pageCfg.ID)
		return nil
	}

	tab, err := browser.OpenTab(ctx, b.mgr, pageCfg.URL, pageCfg.ID)
	if err != nil {
		return fmt.Errorf("live: open tab: %w", err)
	}

	a := agent.New(agent.Config{
		Tab:              tab,
		Sink:             b.sinkR,
		Primary:          b.cfg.Attributes.Primary,
		Legacy:           b.cfg.Attributes.Legacy,
		SnapshotInterval: pageCfg.SnapshotInterval,
		Logger:           b.logger,
	})
	a.SetContext(ctx)

	if err := a.Start(); err != nil {
		tab.Close()
		return fmt.Errorf("live: start agent: %w", err)
	}

	b.agents[pageCfg.ID] = a

	b.logger.Info("live: bridging page",
		"url", pageCfg.URL, "id", pageCfg.ID)
	return nil
}

// Reload replaces the page roster: new pages are attached, removed pages are
// detached. Used by the bridge_pages hot-reload watcher.
func (b *Bridge) Reload(ctx context.Context, pages []config.PageConfig) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	keep := make(map[string]bool, len(pages))
	for _, p := range pages {
		keep[p.ID] = true
		if err := b.attachPageLocked(ctx, p); err != nil {
			b.logger.Error("live: reload attach failed", "url", p.URL, "error", err)
		}
	}

	for id, a := range b.agents {
		if !keep[id] {
			a.Stop()
			delete(b.agents, id)
			b.logger.Info("live: detached page", "id", id)
		}
	}

	b.cfg.Pages = pages
	return nil
}

// Stop gracefully shuts down all agents and the browser.
func (b *Bridge) Stop() {
	b.mu.Lock()
	defer b.mu.Unlock()

	for id, a := range b.agents {
		a.Stop()
		b.logger.Info("live: stopped agent", "id", id)
	}
	b.agents = make(map[string]*agent.Agent)

	b.sinkR.Close()
	b.mgr.Close()
}

func (b *Bridge) stopAllAgents() {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, a := range b.agents {
		a.Stop()
	}
}

func (b *Bridge) reattachAgents(ctx context.Context) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.agents = make(map[string]*agent.Agent)
	for _, page := range b.cfg.Pages {
		if err := b.attachPageLocked(ctx, page); err != nil {
			b.logger.Error("live: reattach failed",
				"url", page.URL, "error", err)
		}
	}
}
