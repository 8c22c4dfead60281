package store

import (
	"context"
	"time"

	"github.com/Aygren/balendip-sub000/pkg/logger"
)

// Option applies a configuration option to the Adapter.
type Option func(*Adapter)

// WithRetryPolicy sets the transient-failure retry policy. Negative
// retries disable retrying.
func WithRetryPolicy(p RetryPolicy) Option {
	return func(a *Adapter) {
		if p.MaxRetries < 0 {
			p.MaxRetries = 0
		}
		if p.BaseDelay <= 0 {
			p.BaseDelay = DefaultBaseDelay
		}
		if p.MaxDelay <= 0 {
			p.MaxDelay = DefaultMaxDelay
		}
		a.retry = p
	}
}

// WithLogger sets a custom logger for the adapter.
func WithLogger(l logger.Logger) Option {
	return func(a *Adapter) {
		if l != nil {
			a.logger = l
		}
	}
}

// WithSleeper replaces the backoff wait, mainly for tests.
func WithSleeper(sleep func(ctx context.Context, d time.Duration) error) Option {
	return func(a *Adapter) {
		if sleep != nil {
			a.sleep = sleep
		}
	}
}
