// Package frontier implements the sharded URL frontier: discovered URLs,
// deduplicated and exposed in readiness-and-priority order.
package frontier

import (
	"time"
)

// URLRecord is a discovered URL waiting in the frontier.
type URLRecord struct {
	// Normalized URL string
	URL string

	// Scheduling priority; higher is fetched sooner among equals
	Priority float64

	// Crawl depth (0 for seeds)
	Depth int

	// Domain of the page that linked here (empty for seeds)
	ReferringDomain string

	// When this URL was discovered (monotonic)
	DiscoveredAt time.Time

	// When this URL becomes eligible to fetch (wall clock)
	ExpectedCrawlAt time.Time
}

// NewURLRecord creates a record for a freshly discovered URL, eligible
// immediately until the metadata store says otherwise.
func NewURLRecord(url string, priority float64, depth int, referringDomain string) URLRecord {
	now := time.Now()
	return URLRecord{
		URL:             url,
		Priority:        priority,
		Depth:           depth,
		ReferringDomain: referringDomain,
		DiscoveredAt:    now,
		ExpectedCrawlAt: now,
	}
}

// IsReady reports whether the record is eligible to fetch at now.
func (r *URLRecord) IsReady(now time.Time) bool {
	return !r.ExpectedCrawlAt.After(now)
}

// outranks reports whether a should be fetched before b at time now.
// Ready URLs beat not-ready ones; then earlier schedules, then higher
// priority, then shallower depth.
func outranks(a, b *URLRecord, now time.Time) bool {
	aReady := a.IsReady(now)
	bReady := b.IsReady(now)

	if aReady != bReady {
		return aReady
	}

	if !a.ExpectedCrawlAt.Equal(b.ExpectedCrawlAt) {
		return a.ExpectedCrawlAt.Before(b.ExpectedCrawlAt)
	}

	if diff := a.Priority - b.Priority; diff > 0.01 || diff < -0.01 {
		return a.Priority > b.Priority
	}

	return a.Depth < b.Depth
}

// recordHeap orders records by outranks. Readiness depends on the current
// time, so the ordering is re-evaluated against the wall clock on every
// sift; the heap is a good approximation rather than a stable total order,
// and callers re-check readiness at pop.
type recordHeap []URLRecord

func (h recordHeap) Len() int { return len(h) }

func (h recordHeap) Less(i, j int) bool {
	return outranks(&h[i], &h[j], time.Now())
}

func (h recordHeap) Swap(i, j int) { h[i], h[j] = h[j], h[i] }

func (h *recordHeap) Push(x any) {
	*h = append(*h, x.(URLRecord))
}

func (h *recordHeap) Pop() any {
	old := *h
	n := len(old)
	rec := old[n-1]
	*h = old[:n-1]
	return rec
}
