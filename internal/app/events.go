package service

import (
	"context"

	"github.com/Aygren/balendip-sub000/internal/adapters/cache"
	"github.com/Aygren/balendip-sub000/internal/adapters/store"
	"github.com/Aygren/balendip-sub000/internal/domain/model"
	"github.com/Aygren/balendip-sub000/internal/domain/pagination"
)

// ListEvents returns the page after token for filter. Pages are cached per
// user, filter, token and size; any event mutation drops them all.
func (s *Service) ListEvents(ctx context.Context, filter model.EventFilter, token string, size int) (pagination.Page, error) {
	p, err := principalOf(ctx)
	if err != nil {
		return pagination.Page{}, err
	}
	filter = filter.Normalize()
	if err := model.Validate(filter); err != nil {
		return pagination.Page{}, &store.ClientError{Kind: store.ErrValidation, Err: err}
	}
	size = s.pager.PageSize(size)
	key := cache.EventListKey(p.userID, filter.Fingerprint(), token, size)
	return cache.Fetch(ctx, s.cache, key, s.listPolicy, func(fctx context.Context) (pagination.Page, error) {
		return s.pager.LoadPage(p.bind(fctx), filter, token, size)
	})
}

// GetEvent returns one event.
func (s *Service) GetEvent(ctx context.Context, id string) (model.Event, error) {
	p, err := principalOf(ctx)
	if err != nil {
		return model.Event{}, err
	}
	return cache.Fetch(ctx, s.cache, cache.EventKey(p.userID, id), s.listPolicy, func(fctx context.Context) (model.Event, error) {
		return s.store.GetEvent(p.bind(fctx), id)
	})
}

// CreateEvent stores a new event. Cached lists and analytics for the user
// are dropped before it returns, so the next read includes the event.
func (s *Service) CreateEvent(ctx context.Context, in model.EventInput) (model.Event, error) {
	p, err := principalOf(ctx)
	if err != nil {
		return model.Event{}, err
	}
	e, err := s.store.CreateEvent(ctx, in)
	if err != nil {
		return model.Event{}, err
	}
	s.eventsChanged(p.userID)
	s.cache.Seed(cache.EventKey(p.userID, e.ID), e, s.listPolicy)
	return e, nil
}

// CreateEventOnce is CreateEvent keyed by a client idempotency key. A retry
// with a completed key returns the original event and replayed=true; a
// retry racing the first attempt is a conflict. An empty key never dedupes.
func (s *Service) CreateEventOnce(ctx context.Context, key string, in model.EventInput) (e model.Event, replayed bool, err error) {
	if key == "" {
		e, err = s.CreateEvent(ctx, in)
		return e, false, err
	}
	p, err := principalOf(ctx)
	if err != nil {
		return model.Event{}, false, err
	}
	id, claimed, err := s.dedupe.Claim(ctx, p.userID, key)
	if err != nil {
		return model.Event{}, false, &store.ClientError{Kind: store.ErrConflict, Err: err}
	}
	if !claimed {
		e, err = s.GetEvent(ctx, id)
		return e, err == nil, err
	}
	e, err = s.CreateEvent(ctx, in)
	if err != nil {
		s.dedupe.Release(ctx, p.userID, key)
		return model.Event{}, false, err
	}
	s.dedupe.Record(ctx, p.userID, key, e.ID)
	return e, false, nil
}

// UpdateEvent applies patch to an event.
func (s *Service) UpdateEvent(ctx context.Context, id string, patch model.EventPatch) (model.Event, error) {
	p, err := principalOf(ctx)
	if err != nil {
		return model.Event{}, err
	}
	e, err := s.store.UpdateEvent(ctx, id, patch)
	if err != nil {
		return model.Event{}, err
	}
	s.eventsChanged(p.userID)
	s.cache.Seed(cache.EventKey(p.userID, e.ID), e, s.listPolicy)
	return e, nil
}

// DeleteEvent removes an event.
func (s *Service) DeleteEvent(ctx context.Context, id string) error {
	p, err := principalOf(ctx)
	if err != nil {
		return err
	}
	if err := s.store.DeleteEvent(ctx, id); err != nil {
		return err
	}
	s.eventsChanged(p.userID)
	s.cache.Remove(cache.EventKey(p.userID, id))
	return nil
}

func (s *Service) eventsChanged(userID string) {
	s.cache.Invalidate(cache.EventListPrefix(userID))
	s.cache.Invalidate(cache.AnalyticsPrefix(userID))
}
