package worker

import (
	"time"

	"github.com/Aygren/balendip-sub000/pkg/logger"
)

// Option applies a configuration option to the InMemoryWorker.
type Option func(*InMemoryWorker)

// WithName sets the worker name for identification and logging.
func WithName(name string) Option {
	return func(w *InMemoryWorker) {
		if name != "" {
			w.name = name
		}
	}
}

// WithLogger sets a custom logger for the worker.
func WithLogger(l logger.Logger) Option {
	return func(w *InMemoryWorker) {
		if l != nil {
			w.logger = l
		}
	}
}

// WithJobTimeout bounds how long a single job may run.
func WithJobTimeout(d time.Duration) Option {
	return func(w *InMemoryWorker) {
		if d > 0 {
			w.jobTimeout = d
		}
	}
}

type poolConfig struct {
	logger     logger.Logger
	jobTimeout time.Duration
}

// PoolOption configures a Pool.
type PoolOption func(*poolConfig)

// WithPoolLogger sets the logger shared by the pool and its workers.
func WithPoolLogger(l logger.Logger) PoolOption {
	return func(c *poolConfig) {
		if l != nil {
			c.logger = l
		}
	}
}

// WithPoolJobTimeout sets the per-job timeout for every worker.
func WithPoolJobTimeout(d time.Duration) PoolOption {
	return func(c *poolConfig) {
		if d > 0 {
			c.jobTimeout = d
		}
	}
}
