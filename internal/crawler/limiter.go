// Package crawler runs the fetch workers that consume the frontier and
// feed crawl outcomes back into the metadata store.
package crawler

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// HostLimiter enforces a global request rate plus a per-host politeness
// delay.
type HostLimiter struct {
	mu         sync.Mutex
	lastAccess map[string]time.Time
	crawlDelay time.Duration
	global     *rate.Limiter
}

// NewHostLimiter creates a limiter. globalRPS <= 0 means no global limit.
func NewHostLimiter(crawlDelay time.Duration, globalRPS float64) *HostLimiter {
	limit := rate.Inf
	burst := 1
	if globalRPS > 0 {
		limit = rate.Limit(globalRPS)
		burst = int(globalRPS) + 1
	}

	return &HostLimiter{
		lastAccess: make(map[string]time.Time),
		crawlDelay: crawlDelay,
		global:     rate.NewLimiter(limit, burst),
	}
}

// Wait blocks until a request to host is allowed, or ctx is done.
func (l *HostLimiter) Wait(ctx context.Context, host string) error {
	if err := l.global.Wait(ctx); err != nil {
		return err
	}

	l.mu.Lock()
	last, seen := l.lastAccess[host]
	l.mu.Unlock()

	if seen {
		if remaining := l.crawlDelay - time.Since(last); remaining > 0 {
			timer := time.NewTimer(remaining)
			defer timer.Stop()
			select {
			case <-timer.C:
			case <-ctx.Done():
				return ctx.Err()
			}
		}
	}

	return nil
}

// RecordAccess notes that a request was just made to host.
func (l *HostLimiter) RecordAccess(host string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.lastAccess[host] = time.Now()
}

// CanAccess reports whether a request to host would not violate the
// per-host delay right now.
func (l *HostLimiter) CanAccess(host string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	last, seen := l.lastAccess[host]
	if !seen {
		return true
	}
	return time.Since(last) >= l.crawlDelay
}
