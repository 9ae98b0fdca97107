package frontier

import (
	"container/heap"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cespare/xxhash/v2"

	"github.com/smartcrawl/scheduler/internal/meta"
	"github.com/smartcrawl/scheduler/internal/metrics"
)

// Frontier defaults; overridable through Config.
const (
	DefaultShards       = 16
	DefaultMaxQueueSize = 100000
	DefaultMaxDepth     = 5
)

// MetadataSource supplies scheduling state at enqueue time. Satisfied by
// *meta.Store.
type MetadataSource interface {
	GetOrCreate(url string) meta.URLMetadata
}

// Config tunes a Frontier. Zero values fall back to the defaults above.
type Config struct {
	Shards       int
	MaxQueueSize int
	MaxDepth     int
}

// shard owns one slice of the URL space: a priority heap plus the
// deduplication sets. seen is monotone for the life of the run; queued
// tracks only what is currently in the heap.
type shard struct {
	mu     sync.Mutex
	heap   recordHeap
	seen   map[string]struct{}
	queued map[string]struct{}
	size   atomic.Int64
}

// Frontier is a sharded priority queue of discovered URLs. Every operation
// touches only the shard that owns the URL, so contention on one shard
// never blocks the others.
type Frontier struct {
	shards    []shard
	nextShard atomic.Uint64

	maxQueueSize atomic.Int64
	maxDepth     atomic.Int64

	store MetadataSource
}

// New creates a Frontier reading scheduling state from store.
func New(store MetadataSource, cfg Config) *Frontier {
	if cfg.Shards <= 0 {
		cfg.Shards = DefaultShards
	}
	if cfg.MaxQueueSize <= 0 {
		cfg.MaxQueueSize = DefaultMaxQueueSize
	}
	if cfg.MaxDepth <= 0 {
		cfg.MaxDepth = DefaultMaxDepth
	}

	f := &Frontier{
		shards: make([]shard, cfg.Shards),
		store:  store,
	}
	f.maxQueueSize.Store(int64(cfg.MaxQueueSize))
	f.maxDepth.Store(int64(cfg.MaxDepth))

	for i := range f.shards {
		f.shards[i].seen = make(map[string]struct{})
		f.shards[i].queued = make(map[string]struct{})
	}

	return f
}

func (f *Frontier) shard(url string) *shard {
	return &f.shards[xxhash.Sum64String(url)%uint64(len(f.shards))]
}

// Enqueue admits a discovered URL. It consults the metadata store for the
// URL's schedule and priority, then inserts. Returns false when the record
// is too deep, already seen, or the frontier is full.
//
// The metadata store is always consulted before the shard lock is taken;
// that ordering is what keeps the frontier and the store deadlock-free.
func (f *Frontier) Enqueue(rec URLRecord) bool {
	if int64(rec.Depth) > f.maxDepth.Load() {
		metrics.FrontierRejected.WithLabelValues(metrics.ReasonDepth).Inc()
		return false
	}

	m := f.store.GetOrCreate(rec.URL)
	rec.ExpectedCrawlAt = m.ExpectedNextCrawl
	rec.Priority = m.Priority(time.Now())

	sh := f.shard(rec.URL)
	sh.mu.Lock()
	defer sh.mu.Unlock()

	if _, ok := sh.seen[rec.URL]; ok {
		metrics.FrontierRejected.WithLabelValues(metrics.ReasonSeen).Inc()
		return false
	}

	if f.Size() >= int(f.maxQueueSize.Load()) {
		metrics.FrontierRejected.WithLabelValues(metrics.ReasonCapacity).Inc()
		return false
	}

	f.insertLocked(sh, rec)
	return true
}

// EnqueueBatch admits a batch in two passes: records are binned by shard
// with no locks held (metadata consulted here, per the lock order above),
// then each non-empty shard is locked exactly once. Returns the records
// that were not admitted for depth or capacity so the caller may retry
// them; duplicates of already-seen URLs are dropped silently since a retry
// can never admit them.
//
// The capacity check reads the approximate global size once per shard, so
// a concurrent burst may overshoot the bound by up to one batch per shard.
func (f *Frontier) EnqueueBatch(recs []URLRecord) []URLRecord {
	if len(recs) == 0 {
		return nil
	}

	var rejected []URLRecord
	maxDepth := f.maxDepth.Load()
	now := time.Now()

	// Pass 1: bin by shard, no locks held.
	bins := make([][]URLRecord, len(f.shards))
	for _, rec := range recs {
		if int64(rec.Depth) > maxDepth {
			metrics.FrontierRejected.WithLabelValues(metrics.ReasonDepth).Inc()
			rejected = append(rejected, rec)
			continue
		}

		m := f.store.GetOrCreate(rec.URL)
		rec.ExpectedCrawlAt = m.ExpectedNextCrawl
		rec.Priority = m.Priority(now)

		idx := xxhash.Sum64String(rec.URL) % uint64(len(f.shards))
		bins[idx] = append(bins[idx], rec)
	}

	total := f.Size()
	maxSize := int(f.maxQueueSize.Load())

	// Pass 2: lock each non-empty shard once and apply its bin.
	for i := range bins {
		if len(bins[i]) == 0 {
			continue
		}

		sh := &f.shards[i]
		sh.mu.Lock()
		for _, rec := range bins[i] {
			if total >= maxSize {
				metrics.FrontierRejected.WithLabelValues(metrics.ReasonCapacity).Inc()
				rejected = append(rejected, rec)
				continue
			}
			if _, ok := sh.seen[rec.URL]; ok {
				metrics.FrontierRejected.WithLabelValues(metrics.ReasonSeen).Inc()
				continue
			}
			f.insertLocked(sh, rec)
			total++
		}
		sh.mu.Unlock()
	}

	return rejected
}

// EnqueueSmart re-inserts a URL with a pre-computed schedule, without
// consulting the metadata store. This is the worker re-insertion path, so
// the monotone seen set does not apply; only a copy already in the heap
// blocks admission.
func (f *Frontier) EnqueueSmart(rec URLRecord) bool {
	if int64(rec.Depth) > f.maxDepth.Load() {
		metrics.FrontierRejected.WithLabelValues(metrics.ReasonDepth).Inc()
		return false
	}

	sh := f.shard(rec.URL)
	sh.mu.Lock()
	defer sh.mu.Unlock()

	if _, ok := sh.queued[rec.URL]; ok {
		metrics.FrontierRejected.WithLabelValues(metrics.ReasonQueued).Inc()
		return false
	}

	if f.Size() >= int(f.maxQueueSize.Load()) {
		metrics.FrontierRejected.WithLabelValues(metrics.ReasonCapacity).Inc()
		return false
	}

	f.insertLocked(sh, rec)
	return true
}

// insertLocked pushes rec into sh. The shard mutex must be held.
func (f *Frontier) insertLocked(sh *shard, rec URLRecord) {
	heap.Push(&sh.heap, rec)
	sh.seen[rec.URL] = struct{}{}
	sh.queued[rec.URL] = struct{}{}
	sh.size.Add(1)

	metrics.FrontierEnqueued.Inc()
	metrics.FrontierSize.Inc()
}

// popLocked removes the heap top of sh. The shard mutex must be held.
func (f *Frontier) popLocked(sh *shard) URLRecord {
	rec := heap.Pop(&sh.heap).(URLRecord)
	delete(sh.queued, rec.URL)
	sh.size.Add(-1)

	metrics.FrontierDequeued.Inc()
	metrics.FrontierSize.Dec()

	return rec
}

// Dequeue returns the next URL to fetch. The scan starts at a round-robin
// shard for fairness. The first pass returns the first ready heap top; if
// nothing is ready, a second pass returns the top with the earliest
// schedule. Returns false only when every shard is empty.
func (f *Frontier) Dequeue() (URLRecord, bool) {
	n := len(f.shards)
	start := int(f.nextShard.Add(1)-1) % n

	// First pass: any ready top wins.
	now := time.Now()
	for i := 0; i < n; i++ {
		sh := &f.shards[(start+i)%n]
		sh.mu.Lock()
		if len(sh.heap) > 0 && sh.heap[0].IsReady(now) {
			rec := f.popLocked(sh)
			sh.mu.Unlock()
			return rec, true
		}
		sh.mu.Unlock()
	}

	// Second pass: nothing is ready, take the earliest-scheduled top.
	earliestShard := -1
	var earliestAt time.Time
	for i := 0; i < n; i++ {
		idx := (start + i) % n
		sh := &f.shards[idx]
		sh.mu.Lock()
		if len(sh.heap) > 0 {
			at := sh.heap[0].ExpectedCrawlAt
			if earliestShard == -1 || at.Before(earliestAt) {
				earliestShard = idx
				earliestAt = at
			}
		}
		sh.mu.Unlock()
	}

	if earliestShard >= 0 {
		sh := &f.shards[earliestShard]
		sh.mu.Lock()
		defer sh.mu.Unlock()
		// The top may have been taken between the two lockings.
		if len(sh.heap) > 0 {
			return f.popLocked(sh), true
		}
	}

	return URLRecord{}, false
}

// DrainReady pops up to max ready records across all shards. Not-ready
// tops encountered on the way are buffered and re-inserted so one stale
// entry cannot hide ready work behind it; at most max entries per shard
// are inspected.
func (f *Frontier) DrainReady(max int) []URLRecord {
	if max <= 0 {
		return nil
	}

	ready := make([]URLRecord, 0, max)
	now := time.Now()

	for i := range f.shards {
		sh := &f.shards[i]
		sh.mu.Lock()

		var parked []URLRecord
		checked := 0
		for len(sh.heap) > 0 && len(ready) < max && checked < max {
			checked++
			if sh.heap[0].IsReady(now) {
				ready = append(ready, f.popLocked(sh))
			} else {
				parked = append(parked, heap.Pop(&sh.heap).(URLRecord))
			}
		}

		for _, rec := range parked {
			heap.Push(&sh.heap, rec)
		}

		sh.mu.Unlock()

		if len(ready) >= max {
			break
		}
	}

	return ready
}

// UpdateURLPriority is a deliberate no-op: the heap cannot reprioritize an
// arbitrary entry cheaply, and readiness is re-evaluated on every Dequeue
// anyway, so stale priorities self-correct at pop time.
func (f *Frontier) UpdateURLPriority(url string) {}

// IsSeen reports whether the URL was ever admitted during this run.
func (f *Frontier) IsSeen(url string) bool {
	sh := f.shard(url)
	sh.mu.Lock()
	defer sh.mu.Unlock()
	_, ok := sh.seen[url]
	return ok
}

// Size returns the approximate number of queued URLs.
func (f *Frontier) Size() int {
	total := int64(0)
	for i := range f.shards {
		total += f.shards[i].size.Load()
	}
	return int(total)
}

// CountReady approximates how many URLs are ready right now by inspecting
// only each shard's heap top. A shard holding several ready entries counts
// once, so this is a lower bound.
func (f *Frontier) CountReady() int {
	now := time.Now()
	count := 0
	for i := range f.shards {
		sh := &f.shards[i]
		sh.mu.Lock()
		if len(sh.heap) > 0 && sh.heap[0].IsReady(now) {
			count++
		}
		sh.mu.Unlock()
	}
	return count
}

// SetMaxQueueSize reconfigures the soft capacity bound. Existing entries
// above the new bound are not evicted.
func (f *Frontier) SetMaxQueueSize(n int) {
	f.maxQueueSize.Store(int64(n))
}

// SetMaxDepth reconfigures the depth limit for future admissions.
func (f *Frontier) SetMaxDepth(d int) {
	f.maxDepth.Store(int64(d))
}
