package meta

import (
	"errors"
	"sync"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/rs/zerolog"

	"github.com/smartcrawl/scheduler/internal/kvstore"
	"github.com/smartcrawl/scheduler/internal/metrics"
)

// Store defaults; overridable through Config.
const (
	DefaultShards        = 256
	DefaultFlushInterval = 500 * time.Millisecond
	DefaultBatchSize     = 100

	// updateQueueSize bounds the persistence queue. At the default flush
	// cadence the worker keeps far ahead of any realistic fetch rate; an
	// overflowing update is dropped with a warning and re-enqueued by the
	// next write to the same URL.
	updateQueueSize = 65536
)

// Config tunes a Store. Zero values fall back to the defaults above.
type Config struct {
	Shards        int
	FlushInterval time.Duration
	BatchSize     int
	Logger        zerolog.Logger
}

// update is one pending durable write, handed off by value so no live
// record crosses the concurrency boundary.
type update struct {
	url    string
	record URLMetadata
}

// metadataShard owns a slice of the URL space. Each URL belongs to exactly
// one shard, chosen by hash.
type metadataShard struct {
	mu      sync.Mutex
	records map[string]*URLMetadata
}

// Store is the sharded crawl-metadata store: an in-memory cache over a
// durable key-value store, with a single background worker batching writes.
type Store struct {
	shards []metadataShard
	db     kvstore.Store

	updates chan update
	done    chan struct{}
	wg      sync.WaitGroup
	closed  sync.Once

	flushInterval time.Duration
	batchSize     int
	logger        zerolog.Logger

	// now is swappable for tests.
	now func() time.Time
}

// NewStore creates a Store over an opened durable store and starts the
// persistence worker. The caller must Close the Store to drain pending
// writes; Close also closes db.
func NewStore(db kvstore.Store, cfg Config) *Store {
	if cfg.Shards <= 0 {
		cfg.Shards = DefaultShards
	}
	if cfg.FlushInterval <= 0 {
		cfg.FlushInterval = DefaultFlushInterval
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = DefaultBatchSize
	}

	s := &Store{
		shards:        make([]metadataShard, cfg.Shards),
		db:            db,
		updates:       make(chan update, updateQueueSize),
		done:          make(chan struct{}),
		flushInterval: cfg.FlushInterval,
		batchSize:     cfg.BatchSize,
		logger:        cfg.Logger,
		now:           time.Now,
	}
	for i := range s.shards {
		s.shards[i].records = make(map[string]*URLMetadata)
	}

	s.wg.Add(1)
	go s.persistenceWorker()

	return s
}

func (s *Store) shard(url string) *metadataShard {
	return &s.shards[xxhash.Sum64String(url)%uint64(len(s.shards))]
}

// GetOrCreate returns a snapshot of the metadata for url, creating the
// default record if the URL has never been seen. Lookup order: in-memory
// shard, durable store, fresh default.
func (s *Store) GetOrCreate(url string) URLMetadata {
	sh := s.shard(url)
	sh.mu.Lock()
	defer sh.mu.Unlock()

	return *s.getOrCreateLocked(sh, url)
}

// getOrCreateLocked resolves the live record for url. The shard mutex must
// be held.
func (s *Store) getOrCreateLocked(sh *metadataShard, url string) *URLMetadata {
	if m, ok := sh.records[url]; ok {
		return m
	}

	// Not cached; try the durable store. An unreadable value degrades to a
	// default record inside Deserialize.
	if value, err := s.db.Get([]byte(url)); err == nil {
		m := Deserialize(string(value), s.now())
		sh.records[url] = &m
		return &m
	} else if !errors.Is(err, kvstore.ErrNotFound) {
		s.logger.Warn().Err(err).Str("url", url).Msg("metadata read failed, treating as new")
	}

	m := NewURLMetadata(s.now())
	sh.records[url] = &m
	s.enqueuePersist(url, m)
	return &m
}

// RecordSuccess updates the schedule after a successful fetch. An unchanged
// fingerprint widens the revisit interval; a changed one resets it.
func (s *Store) RecordSuccess(url, newHash string) {
	now := s.now()

	sh := s.shard(url)
	sh.mu.Lock()
	defer sh.mu.Unlock()

	m := s.getOrCreateLocked(sh, url)
	m.LastCrawlAt = now
	m.CrawlCount++
	m.TemporaryFailures = 0

	if newHash != m.ContentHash {
		m.ContentHash = newHash
		m.ResetBackoffOnChange(now)
	} else {
		m.IncreaseBackoff(now)
	}

	s.enqueuePersist(url, *m)
}

// RecordFailure notes a transient fetch failure and pushes the next attempt
// out by 2·2^(failures−1) minutes: 2, 4, 8, 16, 32, saturating at 32.
func (s *Store) RecordFailure(url string) {
	now := s.now()

	sh := s.shard(url)
	sh.mu.Lock()
	defer sh.mu.Unlock()

	m := s.getOrCreateLocked(sh, url)
	if m.TemporaryFailures < MaxTemporaryFailures {
		m.TemporaryFailures++
	}
	backoff := time.Duration(2*(1<<(m.TemporaryFailures-1))) * time.Minute
	m.ExpectedNextCrawl = now.Add(backoff)

	s.enqueuePersist(url, *m)
}

// Size returns the number of records resident in memory. Pending queue
// entries may make this differ slightly from the durable count.
func (s *Store) Size() int {
	total := 0
	for i := range s.shards {
		sh := &s.shards[i]
		sh.mu.Lock()
		total += len(sh.records)
		sh.mu.Unlock()
	}
	return total
}

// CountReady returns how many tracked URLs are eligible to crawl now.
func (s *Store) CountReady() int {
	now := s.now()
	count := 0
	for i := range s.shards {
		sh := &s.shards[i]
		sh.mu.Lock()
		for _, m := range sh.records {
			if m.IsReady(now) {
				count++
			}
		}
		sh.mu.Unlock()
	}
	return count
}

// enqueuePersist hands a record copy to the persistence worker without
// blocking on durable I/O.
func (s *Store) enqueuePersist(url string, m URLMetadata) {
	select {
	case s.updates <- update{url: url, record: m}:
	default:
		metrics.MetadataUpdatesDropped.Inc()
		s.logger.Warn().Str("url", url).Msg("persistence queue full, dropping update")
	}
}

// persistenceWorker drains the update queue in batches on a fixed cadence,
// then fully on shutdown.
func (s *Store) persistenceWorker() {
	defer s.wg.Done()

	ticker := time.NewTicker(s.flushInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.flush()
		case <-s.done:
			s.flush()
			return
		}
	}
}

// flush writes everything currently queued, batchSize records per atomic
// write batch.
func (s *Store) flush() {
	for {
		puts := make([]kvstore.Put, 0, s.batchSize)

	fill:
		for len(puts) < s.batchSize {
			select {
			case u := <-s.updates:
				puts = append(puts, kvstore.Put{
					Key:   []byte(u.url),
					Value: []byte(Serialize(u.record)),
				})
			default:
				break fill
			}
		}

		if len(puts) == 0 {
			return
		}

		if err := s.db.WriteBatch(puts); err != nil {
			// In-memory state stays authoritative; the records land with a
			// later batch or rewrite.
			metrics.MetadataFlushErrors.Inc()
			s.logger.Error().Err(err).Int("records", len(puts)).Msg("metadata batch write failed")
		} else {
			metrics.MetadataFlushBatches.Inc()
			metrics.MetadataRecordsPersisted.Add(float64(len(puts)))
		}

		if len(puts) < s.batchSize {
			return
		}
	}
}

// Close stops the persistence worker after a final drain and closes the
// durable store.
func (s *Store) Close() error {
	var err error
	s.closed.Do(func() {
		close(s.done)
		s.wg.Wait()
		err = s.db.Close()
	})
	return err
}
