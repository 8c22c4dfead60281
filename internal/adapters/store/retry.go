package store

import (
	"context"
	"errors"
	"time"

	"github.com/Aygren/balendip-sub000/pkg/logger"
	"github.com/Aygren/balendip-sub000/pkg/metrics"
)

// Default retry policy.
const (
	DefaultMaxRetries = 3
	DefaultBaseDelay  = 200 * time.Millisecond
	DefaultMaxDelay   = 2 * time.Second
)

// RetryPolicy bounds retries of transient failures.
type RetryPolicy struct {
	MaxRetries int
	BaseDelay  time.Duration
	MaxDelay   time.Duration
}

// Backoff returns the wait before retry number attempt (1-based): the base
// delay doubled per attempt, capped at MaxDelay.
func (p RetryPolicy) Backoff(attempt int) time.Duration {
	if attempt < 1 {
		return 0
	}
	d := p.BaseDelay * time.Duration(1<<(attempt-1))
	if p.MaxDelay > 0 && (d > p.MaxDelay || d <= 0) {
		return p.MaxDelay
	}
	return d
}

// sleepCtx waits for d or until ctx is done.
func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// do runs fn, retrying only TransientErrors up to MaxRetries times.
// Context errors and ClientErrors return immediately.
func (a *Adapter) do(ctx context.Context, kind Kind, op string, fn func(ctx context.Context) error) error {
	start := time.Now()
	var err error
	for attempt := 0; attempt <= a.retry.MaxRetries; attempt++ {
		if attempt > 0 {
			metrics.RecordStoreRetry(string(kind), op)
			if serr := a.sleep(ctx, a.retry.Backoff(attempt)); serr != nil {
				err = serr
				break
			}
		}

		err = fn(ctx)
		if err == nil || !IsTransient(err) {
			break
		}
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			break
		}
		a.logger.Debug(ctx, "store call failed, retrying",
			logger.String("kind", string(kind)),
			logger.String("op", op),
			logger.Int("attempt", attempt+1),
			logger.Int("maxRetries", a.retry.MaxRetries),
			logger.Error(err),
		)
	}

	metrics.RecordStoreCall(string(kind), op, outcome(err), float64(time.Since(start).Milliseconds()))
	return err
}

func outcome(err error) string {
	switch {
	case err == nil:
		return "ok"
	case IsTransient(err):
		return "transient_error"
	case IsClientError(err):
		return "client_error"
	}
	return "error"
}
