package onboarding

import "errors"

// Sentinel errors for the onboarding flow.
var (
	ErrNoSpheresSelected = errors.New("select at least one sphere to continue")
	ErrAtFirstStep       = errors.New("already at the first step")
	ErrAlreadyCompleted  = errors.New("onboarding already completed")
	ErrUnknownSphere     = errors.New("unknown sphere")
	ErrUnknownStep       = errors.New("unknown onboarding step")
	ErrPersistence       = errors.New("failed to persist onboarding spheres")
	ErrNilDependency     = errors.New("onboarding dependency is nil")
)
