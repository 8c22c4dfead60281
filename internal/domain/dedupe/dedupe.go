// Package dedupe tracks client idempotency keys so a retried create returns
// the event the first attempt made instead of a duplicate.
package dedupe

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
)

// ErrInFlight means another request holding the same key has not finished.
var ErrInFlight = errors.New("request with this idempotency key is in progress")

// Deduper maps (user, key) pairs to the id of the resource they created.
type Deduper interface {
	// Claim reserves key for userID. When the key already completed it
	// returns the recorded id and claimed=false. When another holder is
	// still working it returns ErrInFlight.
	Claim(ctx context.Context, userID, key string) (id string, claimed bool, err error)

	// Record completes a claim with the id of the created resource.
	Record(ctx context.Context, userID, key, id string)

	// Release drops a claim whose request failed so a retry can proceed.
	Release(ctx context.Context, userID, key string)

	Size() int64
}

type entry struct {
	key  string
	id   string // empty while pending
	prev *entry
	next *entry
}

// inMemoryDeduper keeps completed keys in insertion order and evicts the
// oldest once maxSize is reached. Pending claims are never evicted.
type inMemoryDeduper struct {
	mu      sync.Mutex
	entries map[string]*entry
	head    *entry // newest
	tail    *entry // oldest
	maxSize int
	size    atomic.Int64
}

// NewInMemoryDeduper creates a new in-memory deduper with configuration options.
func NewInMemoryDeduper(opts ...Option) Deduper {
	d := &inMemoryDeduper{maxSize: defaultMaxSize}
	for _, opt := range opts {
		opt(d)
	}
	d.entries = make(map[string]*entry)
	return d
}

func compositeKey(userID, key string) string { return userID + "\x00" + key }

func (d *inMemoryDeduper) Claim(_ context.Context, userID, key string) (string, bool, error) {
	k := compositeKey(userID, key)
	d.mu.Lock()
	defer d.mu.Unlock()

	if e, ok := d.entries[k]; ok {
		if e.id == "" {
			return "", false, ErrInFlight
		}
		return e.id, false, nil
	}
	if d.maxSize > 0 && len(d.entries) >= d.maxSize {
		d.evictOldest()
	}
	e := &entry{key: k}
	d.pushFront(e)
	d.entries[k] = e
	d.size.Add(1)
	return "", true, nil
}

func (d *inMemoryDeduper) Record(_ context.Context, userID, key, id string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if e, ok := d.entries[compositeKey(userID, key)]; ok {
		e.id = id
	}
}

func (d *inMemoryDeduper) Release(_ context.Context, userID, key string) {
	k := compositeKey(userID, key)
	d.mu.Lock()
	defer d.mu.Unlock()
	if e, ok := d.entries[k]; ok && e.id == "" {
		d.unlink(e)
		delete(d.entries, k)
		d.size.Add(-1)
	}
}

// Size returns the current number of entries in the deduper.
func (d *inMemoryDeduper) Size() int64 {
	return d.size.Load()
}

func (d *inMemoryDeduper) pushFront(e *entry) {
	e.next = d.head
	if d.head != nil {
		d.head.prev = e
	}
	d.head = e
	if d.tail == nil {
		d.tail = e
	}
}

func (d *inMemoryDeduper) unlink(e *entry) {
	if e.prev != nil {
		e.prev.next = e.next
	} else {
		d.head = e.next
	}
	if e.next != nil {
		e.next.prev = e.prev
	} else {
		d.tail = e.prev
	}
	e.prev, e.next = nil, nil
}

// evictOldest drops the oldest completed entry. Must be called with d.mu held.
func (d *inMemoryDeduper) evictOldest() {
	for e := d.tail; e != nil; e = e.prev {
		if e.id == "" {
			continue
		}
		d.unlink(e)
		delete(d.entries, e.key)
		d.size.Add(-1)
		return
	}
}
