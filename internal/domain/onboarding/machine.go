// Package onboarding implements the linear first-run setup flow:
// welcome, sphere selection, sphere setup, completed.
package onboarding

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/cespare/xxhash/v2"

	"github.com/Aygren/balendip-sub000/internal/domain/model"
	"github.com/Aygren/balendip-sub000/pkg/logger"
	"github.com/Aygren/balendip-sub000/pkg/metrics"
)

// ProgressStore keeps per-user progress. Load reports found=false for a
// user with no saved progress.
type ProgressStore interface {
	Load(ctx context.Context, userID string) (p Progress, found bool, err error)
	Save(ctx context.Context, userID string, p Progress) error
	Delete(ctx context.Context, userID string) error
}

// SphereWriter replaces the whole sphere set of a user.
type SphereWriter interface {
	ReplaceSpheres(ctx context.Context, userID string, spheres []model.LifeSphere) ([]model.LifeSphere, error)
}

// lockStripes bounds the mutexes serialising per-user transitions; users
// hashing to the same stripe wait on each other.
const lockStripes = 64

// Machine drives onboarding transitions for any number of users.
type Machine struct {
	store  ProgressStore
	writer SphereWriter
	logger logger.Logger
	now    func() time.Time

	locks [lockStripes]sync.Mutex
}

// New creates a Machine.
func New(store ProgressStore, writer SphereWriter, opts ...Option) (*Machine, error) {
	if store == nil || writer == nil {
		return nil, ErrNilDependency
	}
	m := &Machine{
		store:  store,
		writer: writer,
		logger: logger.Nop(),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m, nil
}

func (m *Machine) lock(userID string) func() {
	l := &m.locks[lockStripe(userID)]
	l.Lock()
	return l.Unlock
}

func lockStripe(userID string) uint64 {
	return xxhash.Sum64String(userID) % lockStripes
}

func (m *Machine) load(ctx context.Context, userID string) (Progress, error) {
	p, found, err := m.store.Load(ctx, userID)
	if err != nil {
		return Progress{}, fmt.Errorf("load progress: %w", err)
	}
	if !found {
		return NewProgress(), nil
	}
	if p.SelectedSpheres == nil {
		p.SelectedSpheres = []string{}
	}
	if p.Spheres == nil {
		p.Spheres = []model.LifeSphere{}
	}
	return p, nil
}

func (m *Machine) save(ctx context.Context, userID string, p Progress) error {
	if err := m.store.Save(ctx, userID, p); err != nil {
		return fmt.Errorf("save progress: %w", err)
	}
	return nil
}

// Get returns the current progress, a fresh Welcome state on first visit.
func (m *Machine) Get(ctx context.Context, userID string) (Progress, error) {
	defer m.lock(userID)()
	return m.load(ctx, userID)
}

// Update edits the per-step data and saves it. Selected sphere keys must
// name catalogue entries.
func (m *Machine) Update(ctx context.Context, userID string, u Update) (Progress, error) {
	defer m.lock(userID)()
	p, err := m.load(ctx, userID)
	if err != nil {
		return Progress{}, err
	}
	if p.IsCompleted {
		return p, ErrAlreadyCompleted
	}
	if u.SelectedSpheres != nil {
		for _, key := range *u.SelectedSpheres {
			if _, ok := model.LookupTemplate(key); !ok {
				return p, fmt.Errorf("%w: %q", ErrUnknownSphere, key)
			}
		}
	}

	next := p.clone()
	if u.UserName != nil {
		next.UserName = *u.UserName
	}
	if u.Goal != nil {
		next.Goal = *u.Goal
	}
	if u.SelectedSpheres != nil {
		next.SelectedSpheres = append([]string{}, *u.SelectedSpheres...)
	}
	if u.Spheres != nil {
		next.Spheres = make([]model.LifeSphere, len(*u.Spheres))
		for i, s := range *u.Spheres {
			s.Score = model.ClampScore(s.Score)
			next.Spheres[i] = s
		}
	}
	if err := m.save(ctx, userID, next); err != nil {
		return p, err
	}
	return next, nil
}

// Next advances one step. Leaving SphereSelection requires a selection;
// otherwise the state is left untouched and ErrNoSpheresSelected returned.
// Advancing from SphereSetup completes the flow.
func (m *Machine) Next(ctx context.Context, userID string) (Progress, error) {
	defer m.lock(userID)()
	p, err := m.load(ctx, userID)
	if err != nil {
		return Progress{}, err
	}

	switch p.Step {
	case StepWelcome:
		next := p.clone()
		next.Step = StepSphereSelection
		return m.transition(ctx, userID, p, next)
	case StepSphereSelection:
		if len(p.SelectedSpheres) == 0 {
			return p, ErrNoSpheresSelected
		}
		next := p.clone()
		next.Step = StepSphereSetup
		next.Spheres = reconcile(userID, p.SelectedSpheres, p.Spheres)
		return m.transition(ctx, userID, p, next)
	case StepSphereSetup:
		return m.complete(ctx, userID, p, p.Spheres)
	default:
		return p, ErrAlreadyCompleted
	}
}

// Back returns to the previous step.
func (m *Machine) Back(ctx context.Context, userID string) (Progress, error) {
	defer m.lock(userID)()
	p, err := m.load(ctx, userID)
	if err != nil {
		return Progress{}, err
	}
	switch p.Step {
	case StepWelcome:
		return p, ErrAtFirstStep
	case StepCompleted:
		return p, ErrAlreadyCompleted
	}
	next := p.clone()
	next.Step = p.Step - 1
	return m.transition(ctx, userID, p, next)
}

// Skip jumps straight to Completed with the default sphere catalogue.
func (m *Machine) Skip(ctx context.Context, userID string) (Progress, error) {
	defer m.lock(userID)()
	p, err := m.load(ctx, userID)
	if err != nil {
		return Progress{}, err
	}
	if p.IsCompleted {
		return p, ErrAlreadyCompleted
	}
	p.SelectedSpheres = make([]string, 0, len(model.DefaultSpheres()))
	for _, t := range model.DefaultSpheres() {
		p.SelectedSpheres = append(p.SelectedSpheres, t.Key)
	}
	return m.complete(ctx, userID, p, model.DefaultSphereSet(userID))
}

// Reset erases local progress. Spheres already written to the store are
// left in place.
func (m *Machine) Reset(ctx context.Context, userID string) (Progress, error) {
	defer m.lock(userID)()
	if err := m.store.Delete(ctx, userID); err != nil {
		return Progress{}, fmt.Errorf("delete progress: %w", err)
	}
	metrics.RecordOnboardingTransition(StepWelcome.String())
	return NewProgress(), nil
}

func (m *Machine) transition(ctx context.Context, userID string, prev, next Progress) (Progress, error) {
	if err := m.save(ctx, userID, next); err != nil {
		return prev, err
	}
	metrics.RecordOnboardingTransition(next.Step.String())
	m.logger.Debug(ctx, "onboarding transition",
		logger.String("userID", userID),
		logger.String("from", prev.Step.String()),
		logger.String("to", next.Step.String()),
	)
	return next, nil
}

// complete writes the sphere set and marks the flow completed locally. A
// failed write still completes locally and is returned wrapped in
// ErrPersistence.
func (m *Machine) complete(ctx context.Context, userID string, p Progress, spheres []model.LifeSphere) (Progress, error) {
	next := p.clone()
	for i := range spheres {
		spheres[i].UserID = userID
		spheres[i].Score = model.ClampScore(spheres[i].Score)
	}

	var persistErr error
	written, err := m.writer.ReplaceSpheres(ctx, userID, spheres)
	if err != nil {
		metrics.RecordOnboardingPersistFailure()
		m.logger.Warn(ctx, "onboarding sphere write failed",
			logger.String("userID", userID),
			logger.Int("spheres", len(spheres)),
			logger.Error(err),
		)
		persistErr = fmt.Errorf("%w: %w", ErrPersistence, err)
		next.Spheres = append([]model.LifeSphere{}, spheres...)
	} else {
		next.Spheres = written
	}

	at := m.now().UTC()
	next.Step = StepCompleted
	next.IsCompleted = true
	next.CompletedAt = &at

	if err := m.save(ctx, userID, next); err != nil {
		return next, errors.Join(persistErr, err)
	}
	metrics.RecordOnboardingTransition(StepCompleted.String())
	return next, persistErr
}

// reconcile builds the setup list for the selected catalogue keys, keeping
// spheres the user already edited for keys that are still selected.
func reconcile(userID string, selected []string, current []model.LifeSphere) []model.LifeSphere {
	byName := make(map[string]model.LifeSphere, len(current))
	for _, s := range current {
		byName[s.Name] = s
	}
	out := make([]model.LifeSphere, 0, len(selected))
	for _, key := range selected {
		t, ok := model.LookupTemplate(key)
		if !ok {
			continue
		}
		if s, kept := byName[t.Name]; kept {
			out = append(out, s)
			continue
		}
		out = append(out, t.Sphere(userID))
	}
	return out
}
