package onboarding

import (
	"time"

	"github.com/Aygren/balendip-sub000/pkg/logger"
)

// Option applies a configuration option to the Machine.
type Option func(*Machine)

// WithLogger sets a custom logger for the machine.
func WithLogger(l logger.Logger) Option {
	return func(m *Machine) {
		if l != nil {
			m.logger = l
		}
	}
}

// WithClock overrides the time source used for completion timestamps.
func WithClock(now func() time.Time) Option {
	return func(m *Machine) {
		if now != nil {
			m.now = now
		}
	}
}
