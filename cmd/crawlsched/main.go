// Package main is the entry point for the crawl scheduler.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/smartcrawl/scheduler/internal/blacklist"
	"github.com/smartcrawl/scheduler/internal/config"
	"github.com/smartcrawl/scheduler/internal/contentfilter"
	"github.com/smartcrawl/scheduler/internal/crawler"
	"github.com/smartcrawl/scheduler/internal/domaincfg"
	"github.com/smartcrawl/scheduler/internal/frontier"
	"github.com/smartcrawl/scheduler/internal/kvstore"
	"github.com/smartcrawl/scheduler/internal/meta"
)

func main() {
	logger := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}).
		With().Timestamp().Logger()

	if len(os.Args) < 2 {
		fmt.Println("Usage: crawlsched <seed-url> [seed-url...]")
		fmt.Println("Example: crawlsched https://example.com")
		os.Exit(1)
	}

	cfg := config.DefaultConfig()
	if path := os.Getenv("CRAWLSCHED_CONFIG"); path != "" {
		loaded, err := config.LoadConfig(path)
		if err != nil {
			logger.Fatal().Err(err).Str("path", path).Msg("failed to load config")
		}
		cfg = loaded
	}

	db, err := kvstore.Open(cfg.StoreBackend, cfg.StorePath)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to open metadata store")
	}

	store := meta.NewStore(db, meta.Config{
		Shards:        cfg.MetadataShards,
		FlushInterval: cfg.FlushInterval,
		BatchSize:     cfg.FlushBatchSize,
		Logger:        logger.With().Str("component", "meta").Logger(),
	})
	defer store.Close()

	front := frontier.New(store, frontier.Config{
		Shards:       cfg.FrontierShards,
		MaxQueueSize: cfg.MaxQueueSize,
		MaxDepth:     cfg.MaxDepth,
	})

	bl := blacklist.New(logger.With().Str("component", "blacklist").Logger())
	if cfg.BlacklistFile != "" {
		if err := bl.LoadFromFile(cfg.BlacklistFile); err != nil {
			logger.Warn().Err(err).Msg("continuing without blacklist file")
		}
	}

	domains := domaincfg.NewManager(logger.With().Str("component", "domaincfg").Logger())
	if cfg.DomainConfigFile != "" {
		if err := domains.Load(cfg.DomainConfigFile); err != nil {
			logger.Warn().Err(err).Msg("continuing with default domain configuration")
		}
	}

	filter := contentfilter.New(logger.With().Str("component", "contentfilter").Logger())
	if cfg.FilterConfigDir != "" {
		filter = contentfilter.Load(cfg.FilterConfigDir, logger.With().Str("component", "contentfilter").Logger())
	}

	pool := crawler.NewPool(cfg, front, store, bl, domains, filter, stubFetcher,
		logger.With().Str("component", "crawler").Logger())

	for _, seed := range os.Args[1:] {
		if !pool.Seed(seed) {
			logger.Warn().Str("url", seed).Msg("seed not admitted")
		}
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		logger.Info().Msg("received interrupt signal, stopping")
		cancel()
		pool.Stop()
	}()

	logger.Info().Int("workers", cfg.Workers).Int("queued", front.Size()).Msg("starting crawl")
	pool.Start(ctx)
	pool.Wait()

	stats := pool.StatsSnapshot()
	logger.Info().
		Int64("processed", stats.Processed).
		Int64("succeeded", stats.Succeeded).
		Int64("failed", stats.Failed).
		Int64("skipped", stats.Skipped).
		Int("tracked_urls", store.Size()).
		Msg("crawl finished")
}

// stubFetcher stands in for the external HTTP fetcher; it returns an empty
// page for every URL. Replace with a real transport to crawl.
func stubFetcher(ctx context.Context, url string) (*crawler.FetchResult, error) {
	return &crawler.FetchResult{Body: nil, DiscoveredURLs: nil}, nil
}
