package live

import (
	"context"
	"database/sql"
	"log/slog"

	"github.com/hazyhaar/tidbridge/live/internal/config"
	"github.com/hazyhaar/tidbridge/watch"
)

// Config is the top-level live bridge configuration. Re-exported from internal.
type Config = config.Config

// BrowserConfig controls Chrome lifecycle.
type BrowserConfig = config.BrowserConfig

// AttributeConfig names the attribute pair to bridge.
type AttributeConfig = config.AttributeConfig

// PageConfig defines a page to bridge.
type PageConfig = config.PageConfig

// SinkConfig defines an output backend.
type SinkConfig = config.SinkConfig

// PagesSchema is the DDL for the bridge_pages hot-reload table.
const PagesSchema = config.Schema

// LoadConfigFile reads a YAML configuration file.
func LoadConfigFile(path string) (*Config, error) {
	return config.LoadFile(path)
}

// LoadPages reads all active pages from the bridge_pages table.
func LoadPages(ctx context.Context, db *sql.DB) ([]PageConfig, error) {
	return config.LoadPages(ctx, db)
}

// WatchPages creates a watcher that detects changes to bridge_pages.
func WatchPages(db *sql.DB, logger *slog.Logger) *watch.Watcher {
	return config.WatchPages(db, logger)
}
