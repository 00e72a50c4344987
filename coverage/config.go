package coverage

import (
	"os"

	"gopkg.in/yaml.v3"
)

// Config holds all coverage configuration.
type Config struct {
	DBPath string       `yaml:"db_path"`
	Report ReportConfig `yaml:"report"`
}

// ReportConfig controls markdown report generation.
type ReportConfig struct {
	// MaxWrites caps the recent-writes table in a report.
	MaxWrites int `yaml:"max_writes"`
	// MaxMarkdownBytes truncates the converted snapshot body.
	MaxMarkdownBytes int `yaml:"max_markdown_bytes"`
}

func (c *Config) defaults() {
	if c.DBPath == "" {
		c.DBPath = "tidbridge.db"
	}
	if c.Report.MaxWrites <= 0 {
		c.Report.MaxWrites = 50
	}
	if c.Report.MaxMarkdownBytes <= 0 {
		c.Report.MaxMarkdownBytes = 64 * 1024
	}
}

// LoadConfigFile reads a YAML config file.
func LoadConfigFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	cfg := &Config{}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}
