// Package worker runs background refresh jobs pulled off the queue.
package worker

import (
	"context"
	"fmt"
	"runtime"
	"strconv"
	"time"

	"github.com/Aygren/balendip-sub000/internal/adapters/mq/queue"
	"github.com/Aygren/balendip-sub000/pkg/logger"
	"github.com/Aygren/balendip-sub000/pkg/metrics"
)

// Default worker configuration constants.
const (
	defaultJobTimeout     = 15 * time.Second
	poolShutdownTimeout   = 30 * time.Second
	metricsUpdateInterval = 5 * time.Second
)

// Queue defines how workers receive jobs.
type Queue interface {
	Dequeue(ctx context.Context) <-chan queue.Job
}

// Worker processes jobs until stopped.
type Worker interface {
	// Run starts the worker loop until ctx is canceled.
	Run(ctx context.Context)

	// Shutdown stops the worker after the job in hand finishes.
	Shutdown(ctx context.Context) error
}

// InMemoryWorker implements Worker for jobs from an in-process queue.
type InMemoryWorker struct {
	queue      Queue
	name       string
	jobTimeout time.Duration

	shutdown chan struct{}
	done     chan struct{}

	logger logger.Logger
}

// NewInMemoryWorker creates a new worker with configuration options.
func NewInMemoryWorker(q Queue, opts ...Option) *InMemoryWorker {
	w := &InMemoryWorker{
		queue:      q,
		name:       "worker",
		jobTimeout: defaultJobTimeout,
		shutdown:   make(chan struct{}),
		done:       make(chan struct{}),
		logger:     logger.Nop(),
	}
	for _, opt := range opts {
		opt(w)
	}
	w.logger = w.logger.Named(w.name)
	return w
}

// Run starts the worker loop.
func (w *InMemoryWorker) Run(ctx context.Context) {
	defer close(w.done)

	jobs := w.queue.Dequeue(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-w.shutdown:
			return
		case job, ok := <-jobs:
			if !ok {
				return
			}
			if err := w.process(ctx, job); err != nil {
				w.logger.Warn(ctx, "refresh job failed", logger.String("key", job.Key), logger.Error(err))
			}
		}
	}
}

// Shutdown gracefully stops the worker.
func (w *InMemoryWorker) Shutdown(ctx context.Context) error {
	select {
	case <-w.shutdown:
	default:
		close(w.shutdown)
	}

	select {
	case <-w.done:
		return nil
	case <-ctx.Done():
		w.logger.Warn(ctx, "shutdown timed out")
		return fmt.Errorf("shutdown timed out: %w", ctx.Err())
	}
}

// Done is closed once Run has returned.
func (w *InMemoryWorker) Done() <-chan struct{} { return w.done }

func (w *InMemoryWorker) process(ctx context.Context, job queue.Job) (err error) {
	if job.Run == nil {
		return nil
	}
	start := time.Now()
	defer func() {
		metrics.RecordWorkerProcessingLatency(float64(time.Since(start).Milliseconds()))
		if r := recover(); r != nil {
			err = fmt.Errorf("job %s panicked: %v", job.Key, r)
		}
		if err != nil {
			metrics.RecordWorkerError()
		}
	}()

	jobCtx, cancel := context.WithTimeout(ctx, w.jobTimeout)
	defer cancel()
	if err := job.Run(jobCtx); err != nil {
		return fmt.Errorf("job %s: %w", job.Key, err)
	}
	w.logger.Debug(ctx, "refresh job done",
		logger.String("key", job.Key),
		logger.Duration("queued_for", start.Sub(job.EnqueuedAt)),
	)
	return nil
}

// Pool manages multiple workers over one queue.
type Pool struct {
	workers []*InMemoryWorker
	queue   Queue

	shutdown chan struct{}
	logger   logger.Logger
}

// NewPool creates a pool of count workers. A count below one means one
// worker per CPU.
func NewPool(count int, q Queue, opts ...PoolOption) *Pool {
	if count < 1 {
		count = runtime.NumCPU()
	}
	cfg := poolConfig{logger: logger.Nop(), jobTimeout: defaultJobTimeout}
	for _, opt := range opts {
		opt(&cfg)
	}

	p := &Pool{
		workers:  make([]*InMemoryWorker, count),
		queue:    q,
		shutdown: make(chan struct{}),
		logger:   cfg.logger.Named("worker-pool"),
	}
	for i := 0; i < count; i++ {
		p.workers[i] = NewInMemoryWorker(q,
			WithName("worker-"+strconv.Itoa(i)),
			WithLogger(cfg.logger),
			WithJobTimeout(cfg.jobTimeout),
		)
	}
	metrics.UpdateWorkerCount(count)
	return p
}

// Size returns the number of workers.
func (p *Pool) Size() int { return len(p.workers) }

// Start starts all workers in the pool.
func (p *Pool) Start(ctx context.Context) {
	for _, w := range p.workers {
		go w.Run(ctx)
	}
	go p.reportQueue(ctx)
}

func (p *Pool) reportQueue(ctx context.Context) {
	sized, ok := p.queue.(interface{ Len(context.Context) int })
	if !ok {
		return
	}
	ticker := time.NewTicker(metricsUpdateInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-p.shutdown:
			return
		case <-ticker.C:
			metrics.UpdateQueueSize(sized.Len(ctx))
		}
	}
}

// Shutdown closes the queue and waits for every worker to stop.
func (p *Pool) Shutdown(ctx context.Context) error {
	if closer, ok := p.queue.(interface{ Close() error }); ok {
		if err := closer.Close(); err != nil {
			p.logger.Error(ctx, "error closing queue", logger.Error(err))
		}
	}

	select {
	case <-p.shutdown:
		return nil
	default:
		close(p.shutdown)
	}

	shutdownCtx, cancel := context.WithTimeout(ctx, poolShutdownTimeout)
	defer cancel()

	var timedOut bool
	for i, w := range p.workers {
		if err := w.Shutdown(shutdownCtx); err != nil {
			p.logger.Warn(ctx, "worker shutdown timed out", logger.Int("worker_id", i))
			timedOut = true
		}
	}
	metrics.UpdateWorkerCount(0)
	if timedOut {
		return fmt.Errorf("worker pool shutdown: %w", shutdownCtx.Err())
	}
	return nil
}
