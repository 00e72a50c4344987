// Package config handles live bridge configuration from YAML files or SQLite.
package config

import (
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the top-level live bridge configuration.
type Config struct {
	Browser    BrowserConfig   `yaml:"browser"`
	Attributes AttributeConfig `yaml:"attributes"`
	Pages      []PageConfig    `yaml:"pages"`
	Sinks      []SinkConfig    `yaml:"sinks"`
}

// BrowserConfig controls Chrome lifecycle.
type BrowserConfig struct {
	Remote           string        `yaml:"remote"`
	MemoryLimit      int64         `yaml:"memory_limit"`
	RecycleInterval  time.Duration `yaml:"recycle_interval"`
	ResourceBlocking []string      `yaml:"resource_blocking"`
	Headful          bool          `yaml:"headful"`
	XvfbDisplay      string        `yaml:"xvfb_display"`
}

// AttributeConfig names the attribute pair to bridge.
type AttributeConfig struct {
	Primary string `yaml:"primary"`
	Legacy  string `yaml:"legacy"`
}

// PageConfig defines a page to bridge.
type PageConfig struct {
	ID               string        `yaml:"id"`
	URL              string        `yaml:"url"`
	SnapshotInterval time.Duration `yaml:"snapshot_interval"`
}

// SinkConfig defines an output backend.
type SinkConfig struct {
	Type string `yaml:"type"` // stdout | webhook
	URL  string `yaml:"url"`  // for webhook
}

// LoadFile reads a YAML configuration file.
func LoadFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}

	cfg.applyDefaults()
	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Browser.MemoryLimit <= 0 {
		c.Browser.MemoryLimit = 1 << 30
	}
	if c.Browser.RecycleInterval <= 0 {
		c.Browser.RecycleInterval = 4 * time.Hour
	}
	if c.Browser.XvfbDisplay == "" {
		c.Browser.XvfbDisplay = ":99"
	}
	if c.Attributes.Primary == "" {
		c.Attributes.Primary = "data-test-id"
	}
	if c.Attributes.Legacy == "" {
		c.Attributes.Legacy = "data-testid"
	}
	for i := range c.Pages {
		if c.Pages[i].SnapshotInterval <= 0 {
			c.Pages[i].SnapshotInterval = 4 * time.Hour
		}
	}
}
