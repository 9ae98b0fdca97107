package domaincfg_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/smartcrawl/scheduler/internal/domaincfg"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "domains.json")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadAndGet(t *testing.T) {
	t.Parallel()

	path := writeConfig(t, `{
		"domains": {
			"News.Example.com": {
				"crawl_frequency_limit": "6h",
				"language_whitelist": ["en", "de"],
				"enabled": true,
				"priority_multiplier": 1.5
			},
			"www.disabled.example": {
				"enabled": false
			}
		}
	}`)

	m := domaincfg.NewManager(zerolog.Nop())
	require.NoError(t, m.Load(path))

	// Keys are lowercased; lookups normalize the same way.
	cfg := m.Get("news.example.com")
	assert.Equal(t, 6*time.Hour, cfg.CrawlInterval)
	assert.Equal(t, []string{"en", "de"}, cfg.LanguageWhitelist)
	assert.True(t, cfg.Enabled)
	assert.Equal(t, 1.5, cfg.PriorityMultiplier)

	// www. prefixes are stripped on both sides.
	assert.True(t, m.Has("disabled.example"))
	assert.False(t, m.Get("www.disabled.example").Enabled)

	// Unconfigured domains get the defaults.
	def := m.Get("other.example")
	assert.Equal(t, domaincfg.DefaultCrawlInterval, def.CrawlInterval)
	assert.True(t, def.Enabled)
}

func TestFrequencyUnits(t *testing.T) {
	t.Parallel()

	tests := []struct {
		freq string
		want time.Duration
	}{
		{"6h", 6 * time.Hour},
		{"12H", 12 * time.Hour},
		{"1d", 24 * time.Hour},
		{"2D", 48 * time.Hour},
		{"180m", 3 * time.Hour},
		{"30m", time.Hour},  // floors to the one-hour minimum
		{"90M", time.Hour},  // 90/60 floors to 1
		{"240m", 4 * time.Hour},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.freq, func(t *testing.T) {
			t.Parallel()

			path := writeConfig(t, `{"domains": {"a.example": {"crawl_frequency_limit": "`+tt.freq+`"}}}`)
			m := domaincfg.NewManager(zerolog.Nop())
			require.NoError(t, m.Load(path))
			assert.Equal(t, tt.want, m.Get("a.example").CrawlInterval)
		})
	}
}

func TestUnknownUnitIgnored(t *testing.T) {
	t.Parallel()

	path := writeConfig(t, `{"domains": {"a.example": {"crawl_frequency_limit": "6w", "priority_multiplier": 2.0}}}`)

	m := domaincfg.NewManager(zerolog.Nop())
	require.NoError(t, m.Load(path))

	// The bad frequency is skipped with a warning; the rest of the entry
	// still applies.
	cfg := m.Get("a.example")
	assert.Equal(t, domaincfg.DefaultCrawlInterval, cfg.CrawlInterval)
	assert.Equal(t, 2.0, cfg.PriorityMultiplier)
}

func TestFailedReloadKeepsConfiguration(t *testing.T) {
	t.Parallel()

	path := writeConfig(t, `{"domains": {"a.example": {"crawl_frequency_limit": "6h"}}}`)

	m := domaincfg.NewManager(zerolog.Nop())
	require.NoError(t, m.Load(path))

	// Corrupt the file; Reload must fail and keep the loaded table.
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o644))
	assert.Error(t, m.Reload())
	assert.Equal(t, 6*time.Hour, m.Get("a.example").CrawlInterval)
}

func TestNextCrawlTime(t *testing.T) {
	t.Parallel()

	path := writeConfig(t, `{"domains": {"a.example": {"crawl_frequency_limit": "12h"}}}`)

	m := domaincfg.NewManager(zerolog.Nop())
	require.NoError(t, m.Load(path))

	last := time.Now().Add(-6 * time.Hour)
	next := m.NextCrawlTime("a.example", last, 0)
	assert.Equal(t, last.Add(12*time.Hour), next)
	assert.False(t, m.ShouldCrawlNow("a.example", last, 0))
	assert.True(t, m.ShouldCrawlNow("a.example", time.Now().Add(-13*time.Hour), 0))
}

func TestFreshnessMode(t *testing.T) {
	t.Parallel()

	m := domaincfg.NewManager(zerolog.Nop())
	m.Set("fresh.example", domaincfg.DomainConfig{
		CrawlInterval:       24 * time.Hour,
		UseFreshness:        true,
		FrequencyMultiplier: 1.0,
		Enabled:             true,
		PriorityMultiplier:  1.0,
	})

	// Two changes per day: a 12-hour interval.
	last := time.Unix(1700000000, 0)
	next := m.NextCrawlTime("fresh.example", last, 2.0)
	assert.Equal(t, last.Add(12*time.Hour), next)
}

func TestNormalizeDomain(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "example.com", domaincfg.NormalizeDomain("WWW.Example.COM"))
	assert.Equal(t, "example.com", domaincfg.NormalizeDomain("example.com"))
	assert.Equal(t, "wwwx.example.com", domaincfg.NormalizeDomain("wwwx.example.com"))
}
