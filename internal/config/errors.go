package config

import "errors"

var (
	// ErrInvalidConfig wraps every Validate failure; the wrapped text names
	// the offending koanf key.
	ErrInvalidConfig = errors.New("invalid balendip config")

	// ErrLoadConfig wraps failures reading BALENDIP_CONFIG or BALENDIP_* env.
	ErrLoadConfig = errors.New("cannot load balendip config")
)
