// Package service is the application layer behind the HTTP API. It puts the
// local cache in front of the entity store, pages and aggregates events,
// and drives onboarding.
package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"runtime"
	"sync"
	"time"

	"github.com/Aygren/balendip-sub000/internal/adapters/cache"
	"github.com/Aygren/balendip-sub000/internal/adapters/mq/queue"
	"github.com/Aygren/balendip-sub000/internal/adapters/mq/worker"
	"github.com/Aygren/balendip-sub000/internal/adapters/store"
	"github.com/Aygren/balendip-sub000/internal/domain/dedupe"
	"github.com/Aygren/balendip-sub000/internal/domain/onboarding"
	"github.com/Aygren/balendip-sub000/internal/domain/pagination"
	"github.com/Aygren/balendip-sub000/pkg/logger"
	"github.com/Aygren/balendip-sub000/pkg/metrics"
)

// Default cache windows and limits.
const (
	DefaultListStale   = 30 * time.Second
	DefaultListEvict   = 5 * time.Minute
	DefaultSphereStale = 5 * time.Minute
	DefaultSphereEvict = 30 * time.Minute
	DefaultMaxCollect  = 10000
	DefaultIdempotency = 50000
	defaultQueueSize   = 256
	janitorInterval    = time.Minute
)

// Service implements the dependencies of the HTTP API.
type Service struct {
	mu sync.RWMutex

	store      *store.Adapter
	progress   onboarding.ProgressStore
	cache      *cache.Cache
	pager      *pagination.Engine
	onboarding *onboarding.Machine
	queue      *queue.InMemoryQueue
	pool       *worker.Pool
	dedupe     dedupe.Deduper

	// Configuration
	listPolicy   cache.Policy
	spherePolicy cache.Policy
	pageSize     int
	maxPageSize  int
	maxCollect   int
	queueSize    int
	workerCount  int
	cacheEntries int
	idemKeys     int

	// State
	started bool
	stopped bool
	cancel  context.CancelFunc

	logger logger.Logger
}

// Option applies a configuration option to the Service.
type Option func(*Service)

// WithListPolicy sets the cache windows for event lists, single events and
// analytics.
func WithListPolicy(stale, evict time.Duration) Option {
	return func(s *Service) {
		if stale > 0 {
			s.listPolicy = cache.Policy{StaleAfter: stale, EvictAfter: evict}
		}
	}
}

// WithSpherePolicy sets the cache windows for spheres.
func WithSpherePolicy(stale, evict time.Duration) Option {
	return func(s *Service) {
		if stale > 0 {
			s.spherePolicy = cache.Policy{StaleAfter: stale, EvictAfter: evict}
		}
	}
}

// WithPageSize sets the default and maximum page sizes.
func WithPageSize(size, maxSize int) Option {
	return func(s *Service) {
		s.pageSize = size
		s.maxPageSize = maxSize
	}
}

// WithMaxCollect caps how many events analytics and export load.
func WithMaxCollect(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.maxCollect = n
		}
	}
}

// WithRefreshWorkers sets the background refresh queue size and worker count.
func WithRefreshWorkers(queueSize, workers int) Option {
	return func(s *Service) {
		if queueSize > 0 {
			s.queueSize = queueSize
		}
		if workers > 0 {
			s.workerCount = workers
		}
	}
}

// WithCacheMaxEntries bounds the cache size.
func WithCacheMaxEntries(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.cacheEntries = n
		}
	}
}

// WithIdempotencyKeys bounds how many completed idempotency keys are kept.
func WithIdempotencyKeys(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.idemKeys = n
		}
	}
}

// WithLogger sets a custom logger for the service.
func WithLogger(l logger.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

// New builds a Service over the store adapter and progress store.
func New(adapter *store.Adapter, progress onboarding.ProgressStore, opts ...Option) (*Service, error) {
	if adapter == nil || progress == nil {
		return nil, ErrNilDependency
	}
	s := &Service{
		store:        adapter,
		progress:     progress,
		listPolicy:   cache.Policy{StaleAfter: DefaultListStale, EvictAfter: DefaultListEvict},
		spherePolicy: cache.Policy{StaleAfter: DefaultSphereStale, EvictAfter: DefaultSphereEvict},
		maxCollect:   DefaultMaxCollect,
		idemKeys:     DefaultIdempotency,
		queueSize:    defaultQueueSize,
		workerCount:  runtime.NumCPU(),
		logger:       logger.Nop(),
	}
	for _, opt := range opts {
		opt(s)
	}

	s.queue = queue.NewInMemoryQueue(queue.WithCapacity(s.queueSize))
	s.pool = worker.NewPool(s.workerCount, s.queue, worker.WithPoolLogger(s.logger))
	s.dedupe = dedupe.NewInMemoryDeduper(dedupe.WithMaxSize(s.idemKeys))
	s.cache = cache.New(
		cache.WithRefresher(s.queue),
		cache.WithMaxEntries(s.cacheEntries),
		cache.WithLogger(s.logger.Named("cache")),
	)

	pager, err := pagination.New(adapter,
		pagination.WithPageSize(s.pageSize),
		pagination.WithMaxPageSize(s.maxPageSize),
	)
	if err != nil {
		return nil, fmt.Errorf("pagination: %w", err)
	}
	s.pager = pager

	machine, err := onboarding.New(progress, sphereWriter{s}, onboarding.WithLogger(s.logger.Named("onboarding")))
	if err != nil {
		return nil, fmt.Errorf("onboarding: %w", err)
	}
	s.onboarding = machine
	return s, nil
}

// Start launches the refresh workers and the cache janitor.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.started {
		return nil
	}
	if s.stopped {
		return ErrStopped
	}

	runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	s.cancel = cancel
	s.pool.Start(runCtx)
	go s.cache.RunJanitor(runCtx, janitorInterval)

	s.started = true
	s.logger.Info(ctx, "balendip service started",
		logger.Int("refreshWorkers", s.pool.Size()),
		logger.Int("refreshQueue", s.queue.Capacity()),
	)
	return nil
}

// Stop shuts down the workers and releases the store and progress backends.
// A stopped service cannot be restarted.
func (s *Service) Stop(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopped {
		return nil
	}
	s.stopped = true

	var errs []error
	if s.started {
		s.logger.Info(ctx, "stopping balendip service...")
		if err := s.pool.Shutdown(ctx); err != nil {
			errs = append(errs, err)
		}
		s.cancel()
		s.started = false
	} else {
		_ = s.queue.Close()
	}
	if err := s.store.Close(); err != nil {
		errs = append(errs, fmt.Errorf("close store: %w", err))
	}
	if closer, ok := s.progress.(io.Closer); ok {
		if err := closer.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close progress: %w", err))
		}
	}
	s.logger.Info(ctx, "balendip service stopped")
	return errors.Join(errs...)
}

// GetStats returns service statistics for monitoring.
func (s *Service) GetStats() map[string]interface{} {
	s.mu.RLock()
	defer s.mu.RUnlock()

	queueLen := s.queue.Len(context.Background())
	cs := s.cache.Stats()
	metrics.UpdateQueueSize(queueLen)
	metrics.UpdateCacheEntries(cs.Entries)

	return map[string]interface{}{
		"started":       s.started,
		"workerCount":   s.pool.Size(),
		"queueCapacity": s.queue.Capacity(),
		"queueLength":   queueLen,
		"cache":         cs,
		"pageSize":      s.pager.PageSize(0),
		"idempotency":   s.dedupe.Size(),
	}
}

// principal is the caller identity carried in a request context. Cache
// fetches may outlive the request, so they re-bind it to their own context.
type principal struct {
	userID string
	token  string
}

func principalOf(ctx context.Context) (principal, error) {
	uid, ok := store.UserFromContext(ctx)
	if !ok {
		return principal{}, store.NewClientError(store.ErrUnauthorized, "no authenticated user")
	}
	tok, _ := store.TokenFromContext(ctx)
	return principal{userID: uid, token: tok}, nil
}

func (p principal) bind(ctx context.Context) context.Context {
	ctx = store.WithUser(ctx, p.userID)
	if p.token != "" {
		ctx = store.WithToken(ctx, p.token)
	}
	return ctx
}
