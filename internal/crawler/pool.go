package crawler

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"github.com/smartcrawl/scheduler/internal/blacklist"
	"github.com/smartcrawl/scheduler/internal/config"
	"github.com/smartcrawl/scheduler/internal/contentfilter"
	"github.com/smartcrawl/scheduler/internal/domaincfg"
	"github.com/smartcrawl/scheduler/internal/frontier"
	"github.com/smartcrawl/scheduler/internal/hasher"
	"github.com/smartcrawl/scheduler/internal/meta"
	"github.com/smartcrawl/scheduler/internal/urlutil"
)

// notReadyRequeueThreshold: a dequeued URL further than this from its
// schedule goes back into the frontier instead of being fetched early.
const notReadyRequeueThreshold = 2 * time.Second

// FetchResult is what the external fetcher hands back for one URL.
type FetchResult struct {
	// Raw response body
	Body []byte

	// Links extracted from the page, absolute or relative
	DiscoveredURLs []string
}

// FetchFunc performs the actual HTTP fetch. Fetching is external to the
// scheduler; any transport satisfies this signature.
type FetchFunc func(ctx context.Context, url string) (*FetchResult, error)

// Stats holds pool counters.
type Stats struct {
	Processed int64
	Succeeded int64
	Failed    int64
	Skipped   int64
}

// Pool runs fetch workers against the frontier: dequeue, fetch, record the
// outcome, re-insert, and admit discovered links.
type Pool struct {
	cfg        *config.Config
	frontier   *frontier.Frontier
	store      *meta.Store
	normalizer *urlutil.Normalizer
	blacklist  *blacklist.Blacklist
	domains    *domaincfg.Manager
	filter     *contentfilter.Filter
	limiter    *HostLimiter
	fetch      FetchFunc
	logger     zerolog.Logger

	running       atomic.Bool
	activeWorkers atomic.Int32
	processed     atomic.Int64
	succeeded     atomic.Int64
	failed        atomic.Int64
	skipped       atomic.Int64

	wg     sync.WaitGroup
	stopCh chan struct{}
}

// NewPool wires a worker pool. All collaborators are required except that
// blacklist, domains and filter may be fresh empty instances.
func NewPool(
	cfg *config.Config,
	fr *frontier.Frontier,
	store *meta.Store,
	bl *blacklist.Blacklist,
	domains *domaincfg.Manager,
	filter *contentfilter.Filter,
	fetch FetchFunc,
	logger zerolog.Logger,
) *Pool {
	return &Pool{
		cfg:        cfg,
		frontier:   fr,
		store:      store,
		normalizer: urlutil.DefaultNormalizer(),
		blacklist:  bl,
		domains:    domains,
		filter:     filter,
		limiter:    NewHostLimiter(cfg.CrawlDelay, cfg.RequestsPerSecond),
		fetch:      fetch,
		logger:     logger,
		stopCh:     make(chan struct{}),
	}
}

// Seed normalizes and admits a seed URL at depth 0.
func (p *Pool) Seed(rawURL string) bool {
	normalized, err := p.normalizer.Normalize(rawURL)
	if err != nil || !urlutil.IsValid(normalized) {
		p.logger.Warn().Str("url", rawURL).Msg("invalid seed URL")
		return false
	}

	rec := frontier.NewURLRecord(normalized, 1.0, 0, "")
	return p.frontier.Enqueue(rec)
}

// Start launches the workers. They run until ctx is canceled, Stop is
// called, or the frontier stays empty with no fetch in flight.
func (p *Pool) Start(ctx context.Context) {
	p.running.Store(true)

	for i := 0; i < p.cfg.Workers; i++ {
		p.wg.Add(1)
		go p.worker(ctx, i)
	}
}

// Stop signals the workers to exit.
func (p *Pool) Stop() {
	if p.running.CompareAndSwap(true, false) {
		close(p.stopCh)
	}
}

// Wait blocks until all workers have exited.
func (p *Pool) Wait() {
	p.wg.Wait()
}

// StatsSnapshot returns current counters.
func (p *Pool) StatsSnapshot() Stats {
	return Stats{
		Processed: p.processed.Load(),
		Succeeded: p.succeeded.Load(),
		Failed:    p.failed.Load(),
		Skipped:   p.skipped.Load(),
	}
}

func (p *Pool) worker(ctx context.Context, id int) {
	defer p.wg.Done()

	log := p.logger.With().Int("worker", id).Logger()

	for {
		select {
		case <-ctx.Done():
			return
		case <-p.stopCh:
			return
		default:
		}

		rec, ok := p.frontier.Dequeue()
		if !ok {
			// No more URLs, wait a bit and check again
			time.Sleep(100 * time.Millisecond)
			if p.frontier.Size() == 0 && p.activeWorkers.Load() == 0 {
				return
			}
			continue
		}

		// Dequeue hands out the earliest-scheduled URL even when nothing
		// is ready; park ones that are still clearly ahead of schedule.
		now := time.Now()
		if !rec.IsReady(now) && rec.ExpectedCrawlAt.Sub(now) > notReadyRequeueThreshold {
			p.frontier.EnqueueSmart(rec)
			time.Sleep(50 * time.Millisecond)
			continue
		}

		domain := urlutil.ExtractDomain(rec.URL)
		if p.blacklist.IsBlacklisted(domain) || !p.domains.Get(domain).Enabled {
			p.skipped.Add(1)
			continue
		}

		if err := p.limiter.Wait(ctx, domain); err != nil {
			return
		}

		p.activeWorkers.Add(1)
		result, err := p.fetch(ctx, rec.URL)
		p.activeWorkers.Add(-1)
		p.limiter.RecordAccess(domain)
		p.processed.Add(1)

		if err != nil {
			p.failed.Add(1)
			log.Debug().Err(err).Str("url", rec.URL).Msg("fetch failed")
			p.store.RecordFailure(rec.URL)
			p.requeue(rec)
			continue
		}

		p.succeeded.Add(1)
		p.store.RecordSuccess(rec.URL, hasher.HashKeyContent(string(result.Body)))

		// Low-quality pages are still rescheduled above, but their links
		// are not worth following.
		if p.filter.IsHighQuality(string(result.Body)) {
			p.admitDiscovered(rec, result.DiscoveredURLs)
		}

		p.requeue(rec)
	}
}

// requeue re-inserts a fetched URL with its refreshed schedule.
func (p *Pool) requeue(rec frontier.URLRecord) {
	m := p.store.GetOrCreate(rec.URL)

	rec.ExpectedCrawlAt = m.ExpectedNextCrawl
	rec.Priority = m.Priority(time.Now())
	p.frontier.EnqueueSmart(rec)
}

// admitDiscovered filters, normalizes and batch-enqueues links found on a
// page.
func (p *Pool) admitDiscovered(parent frontier.URLRecord, links []string) {
	if len(links) == 0 {
		return
	}

	parentDomain := urlutil.ExtractDomain(parent.URL)
	depth := parent.Depth + 1

	batch := make([]frontier.URLRecord, 0, len(links))
	for _, link := range links {
		resolved, err := urlutil.ResolveRelative(parent.URL, link)
		if err != nil {
			continue
		}

		normalized, err := p.normalizer.Normalize(resolved)
		if err != nil || !urlutil.IsValid(normalized) {
			continue
		}

		if !p.filter.IsCrawlable(normalized) {
			continue
		}

		domain := urlutil.ExtractDomain(normalized)
		dcfg := p.domains.Get(domain)
		if p.blacklist.IsBlacklisted(domain) || !dcfg.Enabled {
			continue
		}

		priority := p.filter.CalculatePriority(normalized, depth) * dcfg.PriorityMultiplier
		batch = append(batch, frontier.NewURLRecord(normalized, priority, depth, parentDomain))
	}

	if rejected := p.frontier.EnqueueBatch(batch); len(rejected) > 0 {
		p.logger.Debug().Int("rejected", len(rejected)).Str("from", parent.URL).
			Msg("frontier rejected discovered URLs")
	}
}
