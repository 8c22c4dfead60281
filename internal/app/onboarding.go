package service

import (
	"context"

	"github.com/Aygren/balendip-sub000/internal/domain/onboarding"
)

// Onboarding returns the user's onboarding progress.
func (s *Service) Onboarding(ctx context.Context) (onboarding.Progress, error) {
	p, err := principalOf(ctx)
	if err != nil {
		return onboarding.Progress{}, err
	}
	return s.onboarding.Get(ctx, p.userID)
}

// UpdateOnboarding edits the data of the current step.
func (s *Service) UpdateOnboarding(ctx context.Context, u onboarding.Update) (onboarding.Progress, error) {
	p, err := principalOf(ctx)
	if err != nil {
		return onboarding.Progress{}, err
	}
	return s.onboarding.Update(ctx, p.userID, u)
}

// Onboarding actions.
const (
	ActionNext  = "next"
	ActionBack  = "back"
	ActionSkip  = "skip"
	ActionReset = "reset"
)

// OnboardingAction runs one of next, back, skip or reset.
func (s *Service) OnboardingAction(ctx context.Context, action string) (onboarding.Progress, error) {
	p, err := principalOf(ctx)
	if err != nil {
		return onboarding.Progress{}, err
	}
	switch action {
	case ActionNext:
		return s.onboarding.Next(ctx, p.userID)
	case ActionBack:
		return s.onboarding.Back(ctx, p.userID)
	case ActionSkip:
		return s.onboarding.Skip(ctx, p.userID)
	case ActionReset:
		return s.onboarding.Reset(ctx, p.userID)
	}
	return onboarding.Progress{}, ErrUnknownAction
}
