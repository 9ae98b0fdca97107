package crawler_test

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/smartcrawl/scheduler/internal/blacklist"
	"github.com/smartcrawl/scheduler/internal/config"
	"github.com/smartcrawl/scheduler/internal/contentfilter"
	"github.com/smartcrawl/scheduler/internal/crawler"
	"github.com/smartcrawl/scheduler/internal/domaincfg"
	"github.com/smartcrawl/scheduler/internal/frontier"
	"github.com/smartcrawl/scheduler/internal/kvstore"
	"github.com/smartcrawl/scheduler/internal/meta"
)

// memKV keeps the durable store in memory for pool tests.
type memKV struct {
	mu   sync.Mutex
	data map[string]string
}

func (m *memKV) Get(key []byte) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.data[string(key)]
	if !ok {
		return nil, kvstore.ErrNotFound
	}
	return []byte(v), nil
}

func (m *memKV) WriteBatch(puts []kvstore.Put) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, p := range puts {
		m.data[string(p.Key)] = string(p.Value)
	}
	return nil
}

func (m *memKV) Close() error { return nil }

// qualityPage is large enough and texty enough to pass the content filter.
func qualityPage(links ...string) []byte {
	var sb strings.Builder
	sb.WriteString("<!DOCTYPE html><html><head><title>Page</title></head><body><p>")
	sb.WriteString(strings.Repeat("Readable article text with many words. ", 20))
	sb.WriteString("</p>")
	for _, l := range links {
		sb.WriteString(`<a href="` + l + `">link</a>`)
	}
	sb.WriteString("</body></html>")
	return []byte(sb.String())
}

func testPool(t *testing.T, fetch crawler.FetchFunc) (*crawler.Pool, *frontier.Frontier, *meta.Store) {
	t.Helper()

	cfg := config.DefaultConfig()
	cfg.Workers = 2
	cfg.CrawlDelay = time.Millisecond
	cfg.RequestsPerSecond = 0

	store := meta.NewStore(&memKV{data: make(map[string]string)}, meta.Config{
		Shards:        16,
		FlushInterval: 10 * time.Millisecond,
		Logger:        zerolog.Nop(),
	})
	t.Cleanup(func() { store.Close() })

	fr := frontier.New(store, frontier.Config{})

	pool := crawler.NewPool(cfg, fr, store,
		blacklist.New(zerolog.Nop()),
		domaincfg.NewManager(zerolog.Nop()),
		contentfilter.New(zerolog.Nop()),
		fetch,
		zerolog.Nop())

	return pool, fr, store
}

func TestPoolCrawlsSeedAndDiscoveredLinks(t *testing.T) {
	t.Parallel()

	var mu sync.Mutex
	fetched := make(map[string]int)

	fetch := func(ctx context.Context, url string) (*crawler.FetchResult, error) {
		mu.Lock()
		fetched[url]++
		mu.Unlock()

		return &crawler.FetchResult{
			Body:           qualityPage("/about", "/contact?utm_source=feed"),
			DiscoveredURLs: []string{"/about", "/contact?utm_source=feed"},
		}, nil
	}

	pool, fr, store := testPool(t, fetch)
	require.True(t, pool.Seed("https://example.com"))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	pool.Start(ctx)

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(fetched) >= 3
	}, 5*time.Second, 10*time.Millisecond, "seed and both discovered links should be fetched")

	pool.Stop()
	pool.Wait()

	// Discovered links were normalized before admission.
	assert.True(t, fr.IsSeen("https://example.com/about"))
	assert.True(t, fr.IsSeen("https://example.com/contact"), "tracking params are stripped")

	m := store.GetOrCreate("https://example.com/")
	assert.GreaterOrEqual(t, m.CrawlCount, 1)
	assert.NotEmpty(t, m.ContentHash)

	stats := pool.StatsSnapshot()
	assert.GreaterOrEqual(t, stats.Succeeded, int64(3))
	assert.Zero(t, stats.Failed)
}

func TestPoolRecordsFailures(t *testing.T) {
	t.Parallel()

	fetch := func(ctx context.Context, url string) (*crawler.FetchResult, error) {
		return nil, errors.New("connection refused")
	}

	pool, _, store := testPool(t, fetch)
	require.True(t, pool.Seed("https://example.com/down"))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	pool.Start(ctx)

	require.Eventually(t, func() bool {
		return pool.StatsSnapshot().Failed >= 1
	}, 5*time.Second, 10*time.Millisecond)

	pool.Stop()
	pool.Wait()

	m := store.GetOrCreate("https://example.com/down")
	assert.GreaterOrEqual(t, m.TemporaryFailures, 1)
	assert.False(t, m.IsReady(time.Now()), "failure backoff pushed the schedule out")
}

func TestPoolSkipsBlacklistedDomains(t *testing.T) {
	t.Parallel()

	fetch := func(ctx context.Context, url string) (*crawler.FetchResult, error) {
		t.Errorf("blacklisted URL was fetched: %s", url)
		return nil, errors.New("unreachable")
	}

	cfg := config.DefaultConfig()
	cfg.Workers = 1
	cfg.CrawlDelay = time.Millisecond
	cfg.RequestsPerSecond = 0

	store := meta.NewStore(&memKV{data: make(map[string]string)}, meta.Config{
		Shards: 16, FlushInterval: 10 * time.Millisecond, Logger: zerolog.Nop(),
	})
	t.Cleanup(func() { store.Close() })
	fr := frontier.New(store, frontier.Config{})

	bl := blacklist.New(zerolog.Nop())
	bl.AddPermanent("blocked.example")

	pool := crawler.NewPool(cfg, fr, store, bl,
		domaincfg.NewManager(zerolog.Nop()),
		contentfilter.New(zerolog.Nop()),
		fetch, zerolog.Nop())

	require.True(t, pool.Seed("https://blocked.example/page"))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	pool.Start(ctx)

	require.Eventually(t, func() bool {
		return pool.StatsSnapshot().Skipped >= 1
	}, 5*time.Second, 10*time.Millisecond)

	pool.Stop()
	pool.Wait()
	assert.Zero(t, pool.StatsSnapshot().Processed)
}
