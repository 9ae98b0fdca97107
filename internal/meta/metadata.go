// Package meta tracks per-URL adaptive scheduling state: when a URL was
// last crawled, how its content has been changing, and when it should be
// crawled next.
package meta

import "time"

// Revisit interval bounds.
const (
	// MinRevisitInterval is the floor applied to every recomputed schedule.
	MinRevisitInterval = 15 * time.Minute

	// maxBackoffHours caps the stable-content interval at thirty days.
	maxBackoffHours = 24 * 30

	// MaxBackoffMultiplier caps the doubling applied to unchanged content.
	MaxBackoffMultiplier = 8

	// MaxTemporaryFailures saturates the transient-failure counter.
	MaxTemporaryFailures = 5
)

// URLMetadata is the adaptive scheduling record for one URL.
type URLMetadata struct {
	// When the URL was last fetched successfully.
	LastCrawlAt time.Time

	// When the content fingerprint last changed.
	PreviousChangeAt time.Time

	// When the URL becomes eligible to fetch again.
	ExpectedNextCrawl time.Time

	// Fingerprint of the content seen at the last crawl.
	ContentHash string

	// Interval scaling for stable content: 1, 2, 4 or 8.
	BackoffMultiplier int

	// Number of successful crawls.
	CrawlCount int

	// Observed change frequency (changes per day); zero until measured.
	ChangeFrequency float64

	// Consecutive transient fetch failures, saturating at 5.
	TemporaryFailures int
}

// NewURLMetadata returns the default record for a URL first seen at now:
// immediately eligible, no fingerprint, no backoff.
func NewURLMetadata(now time.Time) URLMetadata {
	return URLMetadata{
		LastCrawlAt:       now,
		PreviousChangeAt:  now,
		ExpectedNextCrawl: now,
		BackoffMultiplier: 1,
	}
}

// UpdateNextCrawl recomputes ExpectedNextCrawl from the time since the last
// observed change, scaled by the backoff multiplier. The interval is never
// shorter than MinRevisitInterval and never longer than thirty days.
func (m *URLMetadata) UpdateNextCrawl(now time.Time) {
	delta := int(now.Sub(m.PreviousChangeAt).Hours())

	backoffHours := delta * m.BackoffMultiplier
	if backoffHours < 1 {
		backoffHours = 1
	}
	if backoffHours > maxBackoffHours {
		backoffHours = maxBackoffHours
	}

	backoffMinutes := backoffHours * 60
	if backoffMinutes < int(MinRevisitInterval/time.Minute) {
		backoffMinutes = int(MinRevisitInterval / time.Minute)
	}

	m.ExpectedNextCrawl = now.Add(time.Duration(backoffMinutes) * time.Minute)
}

// ResetBackoffOnChange records that the content changed: the multiplier
// drops back to 1 and the change clock restarts at now.
func (m *URLMetadata) ResetBackoffOnChange(now time.Time) {
	m.BackoffMultiplier = 1
	m.PreviousChangeAt = now
	m.UpdateNextCrawl(now)
}

// IncreaseBackoff doubles the multiplier (capped at 8) after a crawl that
// found the content unchanged.
func (m *URLMetadata) IncreaseBackoff(now time.Time) {
	m.BackoffMultiplier *= 2
	if m.BackoffMultiplier > MaxBackoffMultiplier {
		m.BackoffMultiplier = MaxBackoffMultiplier
	}
	m.UpdateNextCrawl(now)
}

// IsReady reports whether the URL is eligible to fetch at now.
func (m *URLMetadata) IsReady(now time.Time) bool {
	return !now.Before(m.ExpectedNextCrawl)
}

// Priority scores the URL by how overdue it is. Overdue URLs score above
// 1.0, growing by 1 per overdue hour; URLs due within a day decay linearly
// toward the 0.1 floor.
func (m *URLMetadata) Priority(now time.Time) float64 {
	if !now.Before(m.ExpectedNextCrawl) {
		overdueMinutes := now.Sub(m.ExpectedNextCrawl).Minutes()
		return 1.0 + overdueMinutes/60.0
	}

	minutesUntilDue := m.ExpectedNextCrawl.Sub(now).Minutes()
	p := 1.0 - minutesUntilDue/(24.0*60.0)
	if p < 0.1 {
		p = 0.1
	}
	return p
}
