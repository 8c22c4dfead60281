package onboarding

import (
	"fmt"
)

// Step is a position in the linear onboarding flow.
type Step int

const (
	StepWelcome Step = iota
	StepSphereSelection
	StepSphereSetup
	StepCompleted
)

var stepNames = [...]string{"welcome", "sphere_selection", "sphere_setup", "completed"}

func (s Step) String() string {
	if s < StepWelcome || s > StepCompleted {
		return fmt.Sprintf("step(%d)", int(s))
	}
	return stepNames[s]
}

// ParseStep maps a step name back to its Step.
func ParseStep(name string) (Step, error) {
	for i, n := range stepNames {
		if n == name {
			return Step(i), nil
		}
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknownStep, name)
}

// MarshalText encodes the step by name.
func (s Step) MarshalText() ([]byte, error) {
	if s < StepWelcome || s > StepCompleted {
		return nil, fmt.Errorf("%w: %d", ErrUnknownStep, int(s))
	}
	return []byte(stepNames[s]), nil
}

// UnmarshalText decodes a step name.
func (s *Step) UnmarshalText(b []byte) error {
	v, err := ParseStep(string(b))
	if err != nil {
		return err
	}
	*s = v
	return nil
}
