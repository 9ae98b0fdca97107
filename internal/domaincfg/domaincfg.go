// Package domaincfg holds per-domain crawl policy: how often a domain may
// be recrawled, whether it is enabled, a priority multiplier and an
// optional language whitelist. Configuration is loaded from a JSON file
// and can be reloaded while the crawler runs.
package domaincfg

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// DefaultCrawlInterval applies to domains without an explicit frequency.
const DefaultCrawlInterval = 24 * time.Hour

// DomainConfig is the effective policy for one domain.
type DomainConfig struct {
	// Minimum interval between crawls of the same URL on this domain.
	CrawlInterval time.Duration

	// UseFreshness derives the interval from the URL's observed change
	// frequency instead of the fixed interval.
	UseFreshness bool

	// FrequencyMultiplier scales the freshness-derived rate.
	FrequencyMultiplier float64

	// Enabled gates the whole domain.
	Enabled bool

	// PriorityMultiplier scales URL priorities for this domain.
	PriorityMultiplier float64

	// LanguageWhitelist restricts accepted content languages; empty means
	// all languages.
	LanguageWhitelist []string
}

// DefaultConfig is the policy applied to unconfigured domains.
func DefaultConfig() DomainConfig {
	return DomainConfig{
		CrawlInterval:       DefaultCrawlInterval,
		FrequencyMultiplier: 1.0,
		Enabled:             true,
		PriorityMultiplier:  1.0,
	}
}

// fileFormat mirrors the on-disk JSON layout.
type fileFormat struct {
	Domains map[string]domainEntry `json:"domains"`
}

type domainEntry struct {
	CrawlFrequencyLimit string   `json:"crawl_frequency_limit"`
	LanguageWhitelist   []string `json:"language_whitelist"`
	Enabled             *bool    `json:"enabled"`
	PriorityMultiplier  *float64 `json:"priority_multiplier"`
}

// Manager is the process-wide per-domain configuration. Load it once at
// startup; Reload swaps the whole table atomically, and a failed reload
// keeps the previous configuration intact.
type Manager struct {
	mu       sync.RWMutex
	configs  map[string]DomainConfig
	defaults DomainConfig
	path     string
	logger   zerolog.Logger
}

// NewManager creates a Manager with only the default policy.
func NewManager(logger zerolog.Logger) *Manager {
	return &Manager{
		configs:  make(map[string]DomainConfig),
		defaults: DefaultConfig(),
		logger:   logger,
	}
}

// Load reads the JSON configuration file at path. An invalid
// crawl_frequency_limit is skipped with a warning and the rest of that
// entry still applies; a file that cannot be read or decoded leaves the
// current configuration untouched.
func (m *Manager) Load(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read domain config: %w", err)
	}

	var file fileFormat
	if err := json.Unmarshal(data, &file); err != nil {
		return fmt.Errorf("parse domain config: %w", err)
	}

	configs := make(map[string]DomainConfig, len(file.Domains))
	for domain, entry := range file.Domains {
		configs[NormalizeDomain(domain)] = m.parseEntry(domain, entry)
	}

	m.mu.Lock()
	m.configs = configs
	m.path = path
	m.mu.Unlock()

	m.logger.Info().Int("domains", len(configs)).Str("path", path).Msg("loaded domain configuration")
	return nil
}

// Reload re-reads the file given to the last successful Load.
func (m *Manager) Reload() error {
	m.mu.RLock()
	path := m.path
	m.mu.RUnlock()

	if path == "" {
		return fmt.Errorf("no domain config loaded yet")
	}
	return m.Load(path)
}

// parseEntry builds a DomainConfig from one JSON entry, starting from the
// defaults.
func (m *Manager) parseEntry(domain string, entry domainEntry) DomainConfig {
	cfg := m.defaults

	if entry.CrawlFrequencyLimit != "" {
		if interval, ok := m.parseFrequency(domain, entry.CrawlFrequencyLimit); ok {
			cfg.CrawlInterval = interval
		}
	}
	if entry.LanguageWhitelist != nil {
		cfg.LanguageWhitelist = append([]string(nil), entry.LanguageWhitelist...)
	}
	if entry.Enabled != nil {
		cfg.Enabled = *entry.Enabled
	}
	if entry.PriorityMultiplier != nil {
		cfg.PriorityMultiplier = *entry.PriorityMultiplier
	}

	return cfg
}

// parseFrequency parses strings like "6h", "1d" or "30m". Hours pass
// through, days multiply by 24, and minutes floor-divide to hours with a
// one-hour lower bound. Unknown suffixes are ignored with a warning.
func (m *Manager) parseFrequency(domain, freq string) (time.Duration, bool) {
	if len(freq) < 2 {
		m.logger.Warn().Str("domain", domain).Str("frequency", freq).Msg("invalid frequency value")
		return 0, false
	}

	unit := freq[len(freq)-1]
	value, err := strconv.Atoi(freq[:len(freq)-1])
	if err != nil {
		m.logger.Warn().Str("domain", domain).Str("frequency", freq).Msg("invalid frequency value")
		return 0, false
	}

	switch unit {
	case 'h', 'H':
		return time.Duration(value) * time.Hour, true
	case 'd', 'D':
		return time.Duration(value*24) * time.Hour, true
	case 'm', 'M':
		hours := value / 60
		if hours < 1 {
			hours = 1
		}
		return time.Duration(hours) * time.Hour, true
	default:
		m.logger.Warn().Str("domain", domain).Str("unit", string(unit)).Msg("unknown frequency unit")
		return 0, false
	}
}

// Get returns the policy for a domain, or the defaults when unconfigured.
func (m *Manager) Get(domain string) DomainConfig {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if cfg, ok := m.configs[NormalizeDomain(domain)]; ok {
		return cfg
	}
	return m.defaults
}

// Has reports whether the domain has an explicit entry.
func (m *Manager) Has(domain string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.configs[NormalizeDomain(domain)]
	return ok
}

// Set installs or replaces a domain's policy at runtime.
func (m *Manager) Set(domain string, cfg DomainConfig) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.configs[NormalizeDomain(domain)] = cfg
}

// NextCrawlTime advises when a URL on this domain may be crawled again.
// With freshness mode on and a measured change frequency (changes per
// day), the interval shrinks as the page changes more often; otherwise the
// fixed interval applies.
func (m *Manager) NextCrawlTime(domain string, lastCrawl time.Time, changeFrequency float64) time.Time {
	cfg := m.Get(domain)

	if cfg.UseFreshness && changeFrequency > 0 {
		hours := 24.0 / (changeFrequency * cfg.FrequencyMultiplier)
		return lastCrawl.Add(time.Duration(hours) * time.Hour)
	}

	return lastCrawl.Add(cfg.CrawlInterval)
}

// ShouldCrawlNow reports whether the advised next-crawl time has passed.
func (m *Manager) ShouldCrawlNow(domain string, lastCrawl time.Time, changeFrequency float64) bool {
	return !time.Now().Before(m.NextCrawlTime(domain, lastCrawl, changeFrequency))
}

// NormalizeDomain lowercases a domain key and strips a leading "www.".
func NormalizeDomain(domain string) string {
	d := strings.ToLower(domain)
	return strings.TrimPrefix(d, "www.")
}
