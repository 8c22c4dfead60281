package service

import "errors"

// ErrNilDependency is returned by New when the store or progress backend is missing.
var ErrNilDependency = errors.New("service: nil dependency")

// ErrUnknownAction is returned for onboarding actions other than next, back, skip and reset.
var ErrUnknownAction = errors.New("service: unknown onboarding action")

// ErrStopped is returned by Start after Stop.
var ErrStopped = errors.New("service: stopped")
