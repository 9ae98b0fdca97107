// Package blacklist maintains the set of domains the crawler must not
// touch: permanent entries loaded from a file plus temporary entries that
// expire after a cooldown.
package blacklist

import (
	"bufio"
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// DefaultCooldown is how long a temporary entry stays effective.
const DefaultCooldown = 60 * time.Second

// Blacklist is safe for concurrent use.
type Blacklist struct {
	mu        sync.Mutex
	permanent map[string]struct{}
	temporary map[string]time.Time
	cooldown  time.Duration
	logger    zerolog.Logger
}

// New creates an empty blacklist with the default cooldown.
func New(logger zerolog.Logger) *Blacklist {
	return &Blacklist{
		permanent: make(map[string]struct{}),
		temporary: make(map[string]time.Time),
		cooldown:  DefaultCooldown,
		logger:    logger,
	}
}

// IsBlacklisted reports whether the domain is currently blocked. A
// temporary entry past its cooldown no longer blocks; it is removed by the
// next CleanupExpired.
func (b *Blacklist) IsBlacklisted(domain string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	if _, ok := b.permanent[domain]; ok {
		return true
	}

	if added, ok := b.temporary[domain]; ok {
		return time.Since(added) < b.cooldown
	}

	return false
}

// AddTemporary blocks a domain until the cooldown elapses.
func (b *Blacklist) AddTemporary(domain string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.temporary[domain] = time.Now()
}

// AddPermanent blocks a domain for the life of the process.
func (b *Blacklist) AddPermanent(domain string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.permanent[domain] = struct{}{}
}

// CleanupExpired drops temporary entries whose cooldown has elapsed.
func (b *Blacklist) CleanupExpired() {
	b.mu.Lock()
	defer b.mu.Unlock()

	now := time.Now()
	for domain, added := range b.temporary {
		if now.Sub(added) >= b.cooldown {
			delete(b.temporary, domain)
		}
	}
}

// Size returns the number of entries, temporary and permanent.
func (b *Blacklist) Size() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.permanent) + len(b.temporary)
}

// LoadFromFile adds permanent entries from a file of one domain per line.
// Lines starting with '#' are comments. A file that cannot be opened is
// logged as a warning and returned as an error; entries already loaded
// stay in place.
func (b *Blacklist) LoadFromFile(path string) error {
	f, err := os.Open(path)
	if err != nil {
		b.logger.Warn().Err(err).Str("path", path).Msg("could not open blacklist file")
		return fmt.Errorf("open blacklist file: %w", err)
	}
	defer f.Close()

	loaded := 0
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		domain := strings.TrimSpace(scanner.Text())
		if domain == "" || strings.HasPrefix(domain, "#") {
			continue
		}
		b.AddPermanent(domain)
		loaded++
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("read blacklist file: %w", err)
	}

	b.logger.Info().Int("domains", loaded).Str("path", path).Msg("loaded blacklist file")
	return nil
}
