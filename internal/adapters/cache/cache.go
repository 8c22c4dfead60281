// Package cache is the process-wide query cache: time-based staleness,
// stale-while-revalidate refresh, per-key request de-duplication and
// prefix invalidation on mutation.
//
// An entry younger than its StaleAfter is served as is. An entry past
// StaleAfter but younger than EvictAfter is served immediately while one
// background refresh runs. Older entries are dropped and fetched
// synchronously. Cached values are shared and must not be mutated.
package cache

import (
	"context"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/Aygren/balendip-sub000/pkg/logger"
	"github.com/Aygren/balendip-sub000/pkg/metrics"
)

// Policy sets the staleness windows of one entry.
type Policy struct {
	StaleAfter time.Duration
	EvictAfter time.Duration
}

func (p Policy) normalize() Policy {
	if p.EvictAfter < p.StaleAfter {
		p.EvictAfter = p.StaleAfter
	}
	return p
}

// FetchFunc loads the value for a key.
type FetchFunc func(ctx context.Context) (any, error)

// Refresher runs background refreshes. Submit must not block; a rejected
// job is dropped and retried on a later stale read.
type Refresher interface {
	Submit(key string, run func(ctx context.Context) error) error
}

type entry struct {
	value     any
	fetchedAt time.Time
	policy    Policy
}

// flight marks a fetch in progress. Invalidation detaches it so its result
// is returned to its callers but never stored.
type flight struct{}

// Stats is a snapshot of cache counters.
type Stats struct {
	Entries       int   `json:"entries"`
	InFlight      int   `json:"in_flight"`
	Hits          int64 `json:"hits"`
	Misses        int64 `json:"misses"`
	StaleServes   int64 `json:"stale_serves"`
	Refreshes     int64 `json:"refreshes"`
	Invalidations int64 `json:"invalidations"`
}

// Cache is safe for concurrent use.
type Cache struct {
	mu         sync.Mutex
	entries    map[string]*entry
	flights    map[string]*flight
	refreshing map[string]struct{}
	group      singleflight.Group

	refresher  Refresher
	maxEntries int
	logger     logger.Logger
	now        func() time.Time

	hits, misses, staleServes, refreshes, invalidations atomic.Int64
}

// New creates an empty Cache.
func New(opts ...Option) *Cache {
	c := &Cache{
		entries:    make(map[string]*entry),
		flights:    make(map[string]*flight),
		refreshing: make(map[string]struct{}),
		logger:     logger.Nop(),
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// GetOrFetch returns the value for key, fetching it with fetch when no
// usable entry exists. Concurrent callers for the same key share one fetch.
// A caller whose ctx ends stops waiting; the shared fetch keeps running for
// the others.
func (c *Cache) GetOrFetch(ctx context.Context, key string, policy Policy, fetch FetchFunc) (any, error) {
	if fetch == nil {
		return nil, ErrNilFetcher
	}
	policy = policy.normalize()
	cls := class(key)

	c.mu.Lock()
	if e, ok := c.entries[key]; ok {
		age := c.now().Sub(e.fetchedAt)
		switch {
		case age < e.policy.StaleAfter:
			c.mu.Unlock()
			c.hits.Add(1)
			metrics.RecordCacheHit(cls)
			return e.value, nil
		case age < e.policy.EvictAfter:
			c.mu.Unlock()
			c.staleServes.Add(1)
			metrics.RecordCacheStaleServe(cls)
			c.revalidate(ctx, key, policy, fetch)
			return e.value, nil
		default:
			delete(c.entries, key)
			metrics.UpdateCacheEntries(len(c.entries))
		}
	}
	c.mu.Unlock()

	c.misses.Add(1)
	metrics.RecordCacheMiss(cls)
	return c.load(ctx, key, policy, fetch)
}

// load joins or starts the shared fetch for key.
func (c *Cache) load(ctx context.Context, key string, policy Policy, fetch FetchFunc) (any, error) {
	detached := context.WithoutCancel(ctx)
	ch := c.group.DoChan(key, func() (any, error) {
		f := &flight{}
		c.mu.Lock()
		c.flights[key] = f
		c.mu.Unlock()

		v, err := fetch(detached)

		c.mu.Lock()
		defer c.mu.Unlock()
		if c.flights[key] != f {
			return v, err
		}
		delete(c.flights, key)
		if err == nil {
			c.store(key, v, policy)
		}
		return v, err
	})

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		return res.Val, res.Err
	}
}

// revalidate schedules one background refresh of key.
func (c *Cache) revalidate(ctx context.Context, key string, policy Policy, fetch FetchFunc) {
	c.mu.Lock()
	if _, busy := c.refreshing[key]; busy {
		c.mu.Unlock()
		return
	}
	c.refreshing[key] = struct{}{}
	c.mu.Unlock()

	run := func(rctx context.Context) error {
		defer func() {
			c.mu.Lock()
			delete(c.refreshing, key)
			c.mu.Unlock()
		}()
		c.refreshes.Add(1)
		_, err := c.load(rctx, key, policy, fetch)
		if err != nil {
			c.logger.Warn(rctx, "background refresh failed", logger.String("key", key), logger.Error(err))
		}
		return err
	}

	if c.refresher == nil {
		go func() { _ = run(context.WithoutCancel(ctx)) }()
		return
	}
	if err := c.refresher.Submit(key, run); err != nil {
		c.mu.Lock()
		delete(c.refreshing, key)
		c.mu.Unlock()
		c.logger.Debug(ctx, "refresh not scheduled", logger.String("key", key), logger.Error(err))
	}
}

// store writes an entry. c.mu must be held.
func (c *Cache) store(key string, v any, policy Policy) {
	c.entries[key] = &entry{value: v, fetchedAt: c.now(), policy: policy}
	if c.maxEntries > 0 {
		for len(c.entries) > c.maxEntries {
			c.evictOldest()
		}
	}
	metrics.UpdateCacheEntries(len(c.entries))
}

// evictOldest drops the entry fetched longest ago. c.mu must be held.
func (c *Cache) evictOldest() {
	var (
		oldestKey string
		oldest    time.Time
	)
	for k, e := range c.entries {
		if oldestKey == "" || e.fetchedAt.Before(oldest) {
			oldestKey, oldest = k, e.fetchedAt
		}
	}
	delete(c.entries, oldestKey)
}

// detach stops an in-flight fetch for key from storing its result and
// lets the next caller start a new one. c.mu must be held.
func (c *Cache) detach(key string) {
	if _, ok := c.flights[key]; ok {
		delete(c.flights, key)
		c.group.Forget(key)
	}
}

// Seed stores v under key directly, replacing any entry and detaching any
// in-flight fetch for it.
func (c *Cache) Seed(key string, v any, policy Policy) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.detach(key)
	c.store(key, v, policy.normalize())
}

// Remove drops key and detaches any in-flight fetch for it.
func (c *Cache) Remove(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.detach(key)
	if _, ok := c.entries[key]; ok {
		delete(c.entries, key)
		c.invalidations.Add(1)
		metrics.RecordCacheInvalidations(1)
	}
	metrics.UpdateCacheEntries(len(c.entries))
}

// Invalidate drops every entry whose key starts with prefix and detaches the
// matching in-flight fetches. It returns the number of entries dropped.
func (c *Cache) Invalidate(prefix string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for k := range c.entries {
		if strings.HasPrefix(k, prefix) {
			delete(c.entries, k)
			n++
		}
	}
	for k := range c.flights {
		if strings.HasPrefix(k, prefix) {
			c.detach(k)
		}
	}
	c.invalidations.Add(int64(n))
	metrics.RecordCacheInvalidations(n)
	metrics.UpdateCacheEntries(len(c.entries))
	return n
}

// Sweep drops entries past their eviction window and returns how many.
func (c *Cache) Sweep() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	now := c.now()
	n := 0
	for k, e := range c.entries {
		if now.Sub(e.fetchedAt) >= e.policy.EvictAfter {
			delete(c.entries, k)
			n++
		}
	}
	metrics.UpdateCacheEntries(len(c.entries))
	return n
}

// RunJanitor sweeps every interval until ctx is done.
func (c *Cache) RunJanitor(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := c.Sweep(); n > 0 {
				c.logger.Debug(ctx, "swept expired cache entries", logger.Int("count", n))
			}
		}
	}
}

// Stats returns a snapshot of the counters.
func (c *Cache) Stats() Stats {
	c.mu.Lock()
	entries, inflight := len(c.entries), len(c.flights)
	c.mu.Unlock()
	return Stats{
		Entries:       entries,
		InFlight:      inflight,
		Hits:          c.hits.Load(),
		Misses:        c.misses.Load(),
		StaleServes:   c.staleServes.Load(),
		Refreshes:     c.refreshes.Load(),
		Invalidations: c.invalidations.Load(),
	}
}

// Fetch is the typed form of GetOrFetch.
func Fetch[T any](ctx context.Context, c *Cache, key string, policy Policy, fetch func(ctx context.Context) (T, error)) (T, error) {
	v, err := c.GetOrFetch(ctx, key, policy, func(ctx context.Context) (any, error) {
		return fetch(ctx)
	})
	if err != nil {
		var zero T
		return zero, err
	}
	t, ok := v.(T)
	if !ok {
		var zero T
		return zero, ErrUnexpectedType
	}
	return t, nil
}
