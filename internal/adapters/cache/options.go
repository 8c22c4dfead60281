package cache

import (
	"time"

	"github.com/Aygren/balendip-sub000/pkg/logger"
)

// Option applies a configuration option to the Cache.
type Option func(*Cache)

// WithRefresher sets where stale-while-revalidate refreshes are submitted.
// Without one, stale entries are refreshed on a fresh goroutine.
func WithRefresher(r Refresher) Option {
	return func(c *Cache) {
		if r != nil {
			c.refresher = r
		}
	}
}

// WithMaxEntries bounds the cache; the oldest entry is evicted first.
// Zero or negative means unbounded.
func WithMaxEntries(n int) Option {
	return func(c *Cache) {
		c.maxEntries = n
	}
}

// WithLogger sets a custom logger for the cache.
func WithLogger(l logger.Logger) Option {
	return func(c *Cache) {
		if l != nil {
			c.logger = l
		}
	}
}

// WithClock overrides the time source, mainly for tests.
func WithClock(now func() time.Time) Option {
	return func(c *Cache) {
		if now != nil {
			c.now = now
		}
	}
}
