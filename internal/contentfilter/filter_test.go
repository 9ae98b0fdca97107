package contentfilter_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/smartcrawl/scheduler/internal/contentfilter"
)

func TestIsCrawlable(t *testing.T) {
	t.Parallel()

	f := contentfilter.New(zerolog.Nop())
	f.AddExcludedExtension(".pdf")
	f.AddExcludedPattern("/login")

	assert.True(t, f.IsCrawlable("https://example.com/article"))
	assert.False(t, f.IsCrawlable("https://example.com/file.pdf"))
	assert.False(t, f.IsCrawlable("https://example.com/FILE.PDF"))
	assert.False(t, f.IsCrawlable("https://example.com/login?next=/"))

	long := "https://example.com/" + strings.Repeat("x", 600)
	assert.False(t, f.IsCrawlable(long))
}

func TestCalculatePriority(t *testing.T) {
	t.Parallel()

	f := contentfilter.New(zerolog.Nop())
	f.AddHighPriorityDomain("docs.example.com")

	// Deeper URLs score lower.
	p0 := f.CalculatePriority("https://example.com/a", 0)
	p3 := f.CalculatePriority("https://example.com/a", 3)
	assert.Greater(t, p0, p3)

	// Boosted domains outrank plain ones at equal depth.
	boosted := f.CalculatePriority("https://docs.example.com/a", 1)
	plain := f.CalculatePriority("https://example.com/a", 1)
	assert.Greater(t, boosted, plain)

	edu := f.CalculatePriority("https://cs.university.edu/a", 1)
	assert.Greater(t, edu, plain)

	// Bounds hold even at extreme depth or with stacked boosts.
	deep := f.CalculatePriority("https://example.com/a", 50)
	assert.GreaterOrEqual(t, deep, contentfilter.MinPriority)

	maxed := f.CalculatePriority("https://news.wiki.docs.example.com/a", 0)
	assert.LessOrEqual(t, maxed, contentfilter.MaxPriority)
}

func TestIsHighQuality(t *testing.T) {
	t.Parallel()

	f := contentfilter.New(zerolog.Nop())

	text := strings.Repeat("Lorem ipsum dolor sit amet consectetur. ", 20)
	good := "<!DOCTYPE html><html><body><p>" + text + "</p></body></html>"
	assert.True(t, f.IsHighQuality(good))

	assert.False(t, f.IsHighQuality("<html><body>tiny</body></html>"), "too short")
	assert.False(t, f.IsHighQuality(strings.Repeat("plain text no markup ", 100)), "no HTML structure")

	// Script bodies do not count as visible text.
	script := "<!DOCTYPE html><html><body><script>" + strings.Repeat("var x = 1;", 100) + "</script></body></html>"
	assert.False(t, f.IsHighQuality(script))
}

func TestLoadFilterLists(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "excluded_extensions.json"), []byte(`[".zip", ".exe"]`), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "excluded_patterns.json"), []byte(`["/admin"]`), 0o644))
	// high_priority_domains.json intentionally missing: stays empty.

	f := contentfilter.Load(dir, zerolog.Nop())

	assert.False(t, f.IsCrawlable("https://example.com/x.zip"))
	assert.False(t, f.IsCrawlable("https://example.com/admin/panel"))
	assert.True(t, f.IsCrawlable("https://example.com/article"))
}
