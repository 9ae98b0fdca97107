// Package config defines scheduler configuration options.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/smartcrawl/scheduler/internal/kvstore"
)

// Config holds all configuration for the crawl scheduler.
type Config struct {
	// === Frontier ===

	// Number of frontier shards
	FrontierShards int `json:"frontier_shards"`

	// Soft bound on queued URLs across all shards
	MaxQueueSize int `json:"max_queue_size"`

	// Maximum crawl depth
	MaxDepth int `json:"max_depth"`

	// === Metadata store ===

	// Number of metadata shards
	MetadataShards int `json:"metadata_shards"`

	// Path of the durable metadata store
	StorePath string `json:"store_path"`

	// Durable store backend: badger or sqlite
	StoreBackend kvstore.Backend `json:"store_backend"`

	// How often the persistence worker flushes
	FlushInterval time.Duration `json:"flush_interval"`

	// Records per durable write batch
	FlushBatchSize int `json:"flush_batch_size"`

	// === Workers ===

	// Number of concurrent fetch workers
	Workers int `json:"workers"`

	// Per-host politeness delay
	CrawlDelay time.Duration `json:"crawl_delay"`

	// Global request rate limit (requests per second, 0 = unlimited)
	RequestsPerSecond float64 `json:"requests_per_second"`

	// === Supporting files (optional) ===

	// Domain blacklist file, one domain per line
	BlacklistFile string `json:"blacklist_file"`

	// Per-domain configuration JSON file
	DomainConfigFile string `json:"domain_config_file"`

	// Directory of content-filter list files
	FilterConfigDir string `json:"filter_config_dir"`
}

// DefaultConfig returns the standard scheduler configuration.
func DefaultConfig() *Config {
	return &Config{
		FrontierShards:    16,
		MaxQueueSize:      100000,
		MaxDepth:          5,
		MetadataShards:    256,
		StorePath:         "crawl-metadata",
		StoreBackend:      kvstore.BackendBadger,
		FlushInterval:     500 * time.Millisecond,
		FlushBatchSize:    100,
		Workers:           8,
		CrawlDelay:        time.Second,
		RequestsPerSecond: 50,
	}
}

// LoadConfig reads configuration from a JSON file, applying defaults for
// absent fields.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := DefaultConfig()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the configuration for inconsistencies.
func (c *Config) Validate() error {
	if c.FrontierShards <= 0 {
		return fmt.Errorf("frontier_shards must be positive, got %d", c.FrontierShards)
	}
	if c.MetadataShards <= 0 {
		return fmt.Errorf("metadata_shards must be positive, got %d", c.MetadataShards)
	}
	if c.MaxQueueSize <= 0 {
		return fmt.Errorf("max_queue_size must be positive, got %d", c.MaxQueueSize)
	}
	if c.MaxDepth < 0 {
		return fmt.Errorf("max_depth must not be negative, got %d", c.MaxDepth)
	}
	if c.FlushInterval <= 0 {
		return fmt.Errorf("flush_interval must be positive, got %s", c.FlushInterval)
	}
	if c.FlushBatchSize <= 0 {
		return fmt.Errorf("flush_batch_size must be positive, got %d", c.FlushBatchSize)
	}
	if c.Workers <= 0 {
		return fmt.Errorf("workers must be positive, got %d", c.Workers)
	}
	if c.StorePath == "" {
		return fmt.Errorf("store_path must not be empty")
	}
	switch c.StoreBackend {
	case kvstore.BackendBadger, kvstore.BackendSQLite, "":
	default:
		return fmt.Errorf("unknown store_backend %q", c.StoreBackend)
	}
	return nil
}
