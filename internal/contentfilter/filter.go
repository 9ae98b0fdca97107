// Package contentfilter decides which URLs are worth crawling and which
// fetched documents are worth keeping, and supplies the initial priority
// hint for discovered URLs.
package contentfilter

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog"
	"golang.org/x/net/html"

	"github.com/smartcrawl/scheduler/internal/urlutil"
)

// Priority bounds and quality thresholds.
const (
	MinPriority  = 0.1
	MaxPriority  = 2.0
	DepthPenalty = 0.1

	// maxCrawlableURLLength rejects URLs longer than this outright.
	maxCrawlableURLLength = 500

	// Quality gate: documents outside this size window, or with fewer
	// visible alphanumeric characters than the minimum, are low quality.
	minContentSize    = 500
	maxContentSize    = 5 * 1024 * 1024
	minTextCharacters = 200
)

// Filter holds the exclusion lists and priority hints. All sets are
// fixed after Load; reads need no locking.
type Filter struct {
	excludedExtensions  map[string]struct{}
	excludedPatterns    map[string]struct{}
	highPriorityDomains map[string]struct{}
	logger              zerolog.Logger
}

// New creates an empty filter: everything crawlable, no priority boosts.
func New(logger zerolog.Logger) *Filter {
	return &Filter{
		excludedExtensions:  make(map[string]struct{}),
		excludedPatterns:    make(map[string]struct{}),
		highPriorityDomains: make(map[string]struct{}),
		logger:              logger,
	}
}

// Load populates the filter from JSON string-array files in configDir:
// excluded_extensions.json, excluded_patterns.json and
// high_priority_domains.json. A missing or unreadable file leaves that
// list empty with a warning.
func Load(configDir string, logger zerolog.Logger) *Filter {
	f := New(logger)
	f.loadSet(filepath.Join(configDir, "excluded_extensions.json"), f.excludedExtensions)
	f.loadSet(filepath.Join(configDir, "excluded_patterns.json"), f.excludedPatterns)
	f.loadSet(filepath.Join(configDir, "high_priority_domains.json"), f.highPriorityDomains)
	return f
}

// loadSet reads a JSON array of strings into target.
func (f *Filter) loadSet(path string, target map[string]struct{}) {
	data, err := os.ReadFile(path)
	if err != nil {
		f.logger.Warn().Err(err).Str("path", path).Msg("could not read filter list, leaving it empty")
		return
	}

	var entries []string
	if err := json.Unmarshal(data, &entries); err != nil {
		f.logger.Warn().Err(err).Str("path", path).Msg("could not parse filter list, leaving it empty")
		return
	}

	for _, e := range entries {
		target[e] = struct{}{}
	}
	f.logger.Info().Int("entries", len(entries)).Str("path", path).Msg("loaded filter list")
}

// AddExcludedExtension registers an extension substring to reject.
func (f *Filter) AddExcludedExtension(ext string) {
	f.excludedExtensions[strings.ToLower(ext)] = struct{}{}
}

// AddExcludedPattern registers a URL substring to reject.
func (f *Filter) AddExcludedPattern(pattern string) {
	f.excludedPatterns[strings.ToLower(pattern)] = struct{}{}
}

// AddHighPriorityDomain registers a domain whose URLs get boosted.
func (f *Filter) AddHighPriorityDomain(domain string) {
	f.highPriorityDomains[strings.ToLower(domain)] = struct{}{}
}

// IsCrawlable reports whether a URL passes the exclusion lists and the
// length cap.
func (f *Filter) IsCrawlable(url string) bool {
	if len(url) > maxCrawlableURLLength {
		return false
	}

	lower := strings.ToLower(url)

	for ext := range f.excludedExtensions {
		if strings.Contains(lower, ext) {
			return false
		}
	}
	for pattern := range f.excludedPatterns {
		if strings.Contains(lower, pattern) {
			return false
		}
	}

	return true
}

// CalculatePriority scores a discovered URL. Depth lowers the score;
// trusted and high-priority domains raise it; very long URLs are
// penalized. The result lies in [MinPriority, MaxPriority].
func (f *Filter) CalculatePriority(url string, depth int) float64 {
	domain := urlutil.ExtractDomain(url)

	priority := 1.0 - float64(depth)*DepthPenalty
	if priority < MinPriority {
		priority = MinPriority
	}

	if _, ok := f.highPriorityDomains[domain]; ok {
		priority *= 1.5
	}

	if strings.Contains(domain, ".edu") || strings.Contains(domain, ".gov") {
		priority *= 1.3
	}

	if strings.Contains(domain, "news") || strings.Contains(domain, "wiki") {
		priority *= 1.2
	}

	if len(url) > 200 {
		priority *= 0.8
	}

	if priority > MaxPriority {
		priority = MaxPriority
	}
	return priority
}

// IsHighQuality reports whether a fetched document is worth keeping: sane
// size, recognizable HTML structure and enough visible text.
func (f *Filter) IsHighQuality(htmlContent string) bool {
	if len(htmlContent) < minContentSize || len(htmlContent) > maxContentSize {
		return false
	}

	if !strings.Contains(htmlContent, "<html") && !strings.Contains(htmlContent, "<!DOCTYPE") {
		return false
	}

	return visibleTextLength(htmlContent) >= minTextCharacters
}

// visibleTextLength counts ASCII letters and digits in text outside of
// markup, skipping script and style bodies.
func visibleTextLength(htmlContent string) int {
	tokenizer := html.NewTokenizer(strings.NewReader(htmlContent))

	count := 0
	skipDepth := 0
	for {
		switch tokenizer.Next() {
		case html.ErrorToken:
			return count
		case html.StartTagToken:
			name, _ := tokenizer.TagName()
			if tag := string(name); tag == "script" || tag == "style" {
				skipDepth++
			}
		case html.EndTagToken:
			name, _ := tokenizer.TagName()
			if tag := string(name); (tag == "script" || tag == "style") && skipDepth > 0 {
				skipDepth--
			}
		case html.TextToken:
			if skipDepth > 0 {
				continue
			}
			for _, r := range tokenizer.Text() {
				if isAlnum(r) {
					count++
				}
			}
		}
	}
}

func isAlnum(b byte) bool {
	return (b >= 'a' && b <= 'z') || (b >= 'A' && b <= 'Z') || (b >= '0' && b <= '9')
}

// String summarizes the loaded lists for startup logging.
func (f *Filter) String() string {
	return fmt.Sprintf("contentfilter(extensions=%d patterns=%d priority_domains=%d)",
		len(f.excludedExtensions), len(f.excludedPatterns), len(f.highPriorityDomains))
}
