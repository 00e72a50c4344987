// Command tidbridge mirrors the primary test attribute onto its legacy alias
// on live pages and records what it wrote.
//
// Usage:
//
//	tidbridge -config tidbridge.yaml                # bridge pages from YAML config
//	tidbridge -url https://example.com              # quick single-page bridge (stdout sink)
//	tidbridge -config tidbridge.yaml -db bridge.db  # bridge with coverage store
//	tidbridge -db bridge.db -stats                  # show store stats and exit
//	tidbridge -db bridge.db -report <pageID>        # print a page report and exit
//	tidbridge -config tidbridge.yaml -db bridge.db -addr :8086   # inspect API
//	tidbridge -config tidbridge.yaml -db bridge.db -mcp          # MCP on stdio
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	_ "modernc.org/sqlite"

	"github.com/hazyhaar/tidbridge/coverage"
	"github.com/hazyhaar/tidbridge/idgen"
	"github.com/hazyhaar/tidbridge/live"
	"github.com/hazyhaar/tidbridge/sink"
)

type options struct {
	configPath string
	dbPath     string
	singleURL  string
	showStats  bool
	reportPage string
	addr       string
	mcpStdio   bool
}

func main() {
	opts := options{}
	flag.StringVar(&opts.configPath, "config", "", "path to tidbridge.yaml config file")
	flag.StringVar(&opts.dbPath, "db", "", "path to SQLite coverage database")
	flag.StringVar(&opts.singleURL, "url", "", "bridge a single URL (stdout sink)")
	flag.BoolVar(&opts.showStats, "stats", false, "show store stats and exit")
	flag.StringVar(&opts.reportPage, "report", "", "print a markdown report for a page ID and exit")
	flag.StringVar(&opts.addr, "addr", "", "listen address for the inspect API (requires -db)")
	flag.BoolVar(&opts.mcpStdio, "mcp", false, "serve MCP tools on stdio (requires -db)")
	logLevel := flag.String("log-level", "info", "log level: debug, info, warn, error")
	flag.Parse()

	var level slog.Level
	switch *logLevel {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, logger, opts); err != nil {
		logger.Error("tidbridge: fatal", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, logger *slog.Logger, opts options) error {
	if opts.showStats || opts.reportPage != "" {
		return runOneShot(ctx, logger, opts)
	}

	if opts.singleURL != "" {
		return runSingle(ctx, logger, opts)
	}

	if opts.configPath != "" {
		cfg, err := live.LoadConfigFile(opts.configPath)
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		return runBridge(ctx, logger, cfg, opts)
	}

	fmt.Fprintln(os.Stderr, "usage: tidbridge -config <file> | -url <url> | -db <path> [-stats | -report <pageID>]")
	os.Exit(1)
	return nil
}

// runOneShot answers a stats or report query against an existing store.
func runOneShot(ctx context.Context, logger *slog.Logger, opts options) error {
	if opts.dbPath == "" {
		return fmt.Errorf("-stats and -report require -db")
	}

	k, err := coverage.New(&coverage.Config{DBPath: opts.dbPath}, logger)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer k.Close()

	if opts.reportPage != "" {
		rep, err := k.Report(ctx, opts.reportPage)
		if err != nil {
			return fmt.Errorf("report: %w", err)
		}
		fmt.Println(rep.Markdown)
		return nil
	}

	stats, err := k.Stats(ctx)
	if err != nil {
		return fmt.Errorf("stats: %w", err)
	}
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(stats)
}

// runSingle bridges one page with defaults. Writes go to stdout, and to the
// coverage store when -db is given.
func runSingle(ctx context.Context, logger *slog.Logger, opts options) error {
	cfg := defaultConfig()
	cfg.Pages = []live.PageConfig{{
		ID:  idgen.New(),
		URL: opts.singleURL,
	}}
	return runBridge(ctx, logger, cfg, opts)
}

func runBridge(ctx context.Context, logger *slog.Logger, cfg *live.Config, opts options) error {
	// Stdout carries MCP framing in -mcp mode, so the stdout sink moves
	// to stderr there.
	var out io.Writer = os.Stdout
	if opts.mcpStdio {
		out = os.Stderr
	}

	var sinks []sink.Sink
	for _, sc := range cfg.Sinks {
		switch sc.Type {
		case "stdout":
			sinks = append(sinks, sink.NewStdout(out))
		case "webhook":
			sinks = append(sinks, sink.NewWebhook(sc.URL, sink.WithWebhookLogger(logger)))
		default:
			logger.Warn("tidbridge: unknown sink type", "type", sc.Type)
		}
	}

	var keeper *coverage.Keeper
	if opts.dbPath != "" {
		k, err := coverage.New(&coverage.Config{DBPath: opts.dbPath}, logger)
		if err != nil {
			return fmt.Errorf("open store: %w", err)
		}
		defer k.Close()
		keeper = k
		sinks = append(sinks, k.Sink())
	}
	if len(sinks) == 0 {
		sinks = append(sinks, sink.NewStdout(out))
	}

	bridge := live.New(cfg, logger, sinks...)
	if err := bridge.Start(ctx); err != nil {
		return fmt.Errorf("start: %w", err)
	}
	defer bridge.Stop()

	// Hot reload of the page roster from the bridge_pages table. Reload
	// replaces the roster, so the YAML pages are captured once and merged
	// with each DB read.
	if keeper != nil {
		db := keeper.Store().DB
		if _, err := db.ExecContext(ctx, live.PagesSchema); err != nil {
			return fmt.Errorf("pages schema: %w", err)
		}
		staticPages := append([]live.PageConfig(nil), cfg.Pages...)
		reload := func() error {
			pages, err := live.LoadPages(ctx, db)
			if err != nil {
				return err
			}
			return bridge.Reload(ctx, append(staticPages, pages...))
		}
		if err := reload(); err != nil {
			logger.Warn("tidbridge: initial page load", "error", err)
		}
		w := live.WatchPages(db, logger)
		go w.OnChange(ctx, reload)
	}

	if opts.addr != "" {
		if keeper == nil {
			return fmt.Errorf("-addr requires -db")
		}
		srv := inspectServer(opts.addr, keeper, logger)
		go func() {
			logger.Info("tidbridge: inspect API listening", "addr", opts.addr)
			if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				logger.Error("tidbridge: inspect API", "error", err)
			}
		}()
		defer func() {
			sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			srv.Shutdown(sctx)
		}()
	}

	if opts.mcpStdio {
		if keeper == nil {
			return fmt.Errorf("-mcp requires -db")
		}
		mcpSrv := mcp.NewServer(&mcp.Implementation{
			Name:    "tidbridge",
			Version: "1.0.0",
		}, nil)
		keeper.RegisterMCP(mcpSrv)
		go func() {
			if err := mcpSrv.Run(ctx, &mcp.StdioTransport{}); err != nil {
				logger.Error("tidbridge: mcp server", "error", err)
			}
		}()
	}

	<-ctx.Done()
	logger.Info("tidbridge: shutting down")
	return nil
}

func defaultConfig() *live.Config {
	return &live.Config{
		Browser: live.BrowserConfig{
			MemoryLimit:      1 << 30,
			RecycleInterval:  4 * time.Hour,
			ResourceBlocking: []string{"images", "fonts", "media"},
		},
		Attributes: live.AttributeConfig{
			Primary: "data-test-id",
			Legacy:  "data-testid",
		},
	}
}
