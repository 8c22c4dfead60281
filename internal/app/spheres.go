package service

import (
	"context"

	"github.com/Aygren/balendip-sub000/internal/adapters/cache"
	"github.com/Aygren/balendip-sub000/internal/adapters/store"
	"github.com/Aygren/balendip-sub000/internal/domain/model"
)

// ListSpheres returns the user's spheres.
func (s *Service) ListSpheres(ctx context.Context) ([]model.LifeSphere, error) {
	p, err := principalOf(ctx)
	if err != nil {
		return nil, err
	}
	return s.listSpheres(ctx, p)
}

func (s *Service) listSpheres(ctx context.Context, p principal) ([]model.LifeSphere, error) {
	return cache.Fetch(ctx, s.cache, cache.SphereListKey(p.userID), s.spherePolicy, func(fctx context.Context) ([]model.LifeSphere, error) {
		return s.store.ListSpheres(p.bind(fctx))
	})
}

// CreateSphere adds a sphere.
func (s *Service) CreateSphere(ctx context.Context, in model.SphereInput) (model.LifeSphere, error) {
	p, err := principalOf(ctx)
	if err != nil {
		return model.LifeSphere{}, err
	}
	sp, err := s.store.CreateSphere(ctx, in)
	if err != nil {
		return model.LifeSphere{}, err
	}
	s.spheresChanged(p.userID)
	s.cache.Seed(cache.SphereKey(p.userID, sp.ID), sp, s.spherePolicy)
	return sp, nil
}

// UpdateSphere applies patch to a sphere; the score is clamped to [1,10].
func (s *Service) UpdateSphere(ctx context.Context, id string, patch model.SpherePatch) (model.LifeSphere, error) {
	p, err := principalOf(ctx)
	if err != nil {
		return model.LifeSphere{}, err
	}
	sp, err := s.store.UpdateSphere(ctx, id, patch)
	if err != nil {
		return model.LifeSphere{}, err
	}
	s.spheresChanged(p.userID)
	s.cache.Seed(cache.SphereKey(p.userID, sp.ID), sp, s.spherePolicy)
	return sp, nil
}

// DeleteSphere removes a sphere. Default spheres need force.
func (s *Service) DeleteSphere(ctx context.Context, id string, force bool) error {
	p, err := principalOf(ctx)
	if err != nil {
		return err
	}
	if err := s.store.DeleteSphere(ctx, id, force); err != nil {
		return err
	}
	s.spheresChanged(p.userID)
	s.cache.Remove(cache.SphereKey(p.userID, id))
	return nil
}

// SeedDefaultSpheres installs the default catalogue for a user without
// spheres.
func (s *Service) SeedDefaultSpheres(ctx context.Context) ([]model.LifeSphere, bool, error) {
	p, err := principalOf(ctx)
	if err != nil {
		return nil, false, err
	}
	spheres, seeded, err := s.store.SeedDefaultSpheres(ctx)
	if err != nil {
		return nil, false, err
	}
	if seeded {
		s.spheresChanged(p.userID)
	}
	return spheres, seeded, nil
}

// spheresChanged drops sphere lists and analytics; balance depends on scores.
func (s *Service) spheresChanged(userID string) {
	s.cache.Remove(cache.SphereListKey(userID))
	s.cache.Invalidate(cache.AnalyticsPrefix(userID))
}

// sphereWriter lets the onboarding machine replace spheres through the
// service so the cache sees the change.
type sphereWriter struct {
	s *Service
}

// ReplaceSpheres drops the cached sphere views even when the write fails: a
// non-atomic backend may already have deleted the old set.
func (w sphereWriter) ReplaceSpheres(ctx context.Context, userID string, spheres []model.LifeSphere) ([]model.LifeSphere, error) {
	out, err := w.s.store.ReplaceSpheres(store.WithUser(ctx, userID), spheres)
	w.s.cache.Invalidate(cache.SphereKey(userID, ""))
	w.s.spheresChanged(userID)
	if err != nil {
		return nil, err
	}
	return out, nil
}
