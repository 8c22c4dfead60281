// Package memory is an in-process store backend for development and tests.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/Aygren/balendip-sub000/internal/adapters/store"
	"github.com/Aygren/balendip-sub000/internal/domain/model"
)

// Backend keeps every row in maps guarded by one RWMutex.
type Backend struct {
	mu      sync.RWMutex
	events  map[string]model.Event
	spheres map[string]model.LifeSphere
	now     func() time.Time
	fail    func(op string) error
}

// Option configures a Backend.
type Option func(*Backend)

// WithClock overrides the time source for timestamps.
func WithClock(now func() time.Time) Option {
	return func(b *Backend) {
		if now != nil {
			b.now = now
		}
	}
}

// WithFailures installs a hook consulted before every operation; a non-nil
// return is surfaced as the operation's error.
func WithFailures(fail func(op string) error) Option {
	return func(b *Backend) { b.fail = fail }
}

// New creates an empty Backend.
func New(opts ...Option) *Backend {
	b := &Backend{
		events:  make(map[string]model.Event),
		spheres: make(map[string]model.LifeSphere),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

var (
	_ store.Backend        = (*Backend)(nil)
	_ store.SphereReplacer = (*Backend)(nil)
)

func (b *Backend) check(op string) error {
	if b.fail == nil {
		return nil
	}
	return b.fail(op)
}

func cloneEvent(e model.Event) model.Event {
	e.Spheres = append([]string{}, e.Spheres...)
	return e
}

// ListEvents implements store.Backend.
func (b *Backend) ListEvents(ctx context.Context, q store.EventQuery) ([]model.Event, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := b.check("list_events"); err != nil {
		return nil, err
	}
	b.mu.RLock()
	matched := make([]model.Event, 0, len(b.events))
	for _, e := range b.events {
		if e.UserID != q.UserID || !q.Filter.Matches(&e) {
			continue
		}
		if q.After != nil && !q.After.Before(model.CursorOf(&e)) {
			continue
		}
		matched = append(matched, cloneEvent(e))
	}
	b.mu.RUnlock()

	model.SortEvents(matched)
	if q.Limit > 0 && len(matched) > q.Limit {
		matched = matched[:q.Limit]
	}
	return matched, nil
}

// GetEvent implements store.Backend.
func (b *Backend) GetEvent(_ context.Context, userID, id string) (model.Event, error) {
	if err := b.check("get_event"); err != nil {
		return model.Event{}, err
	}
	b.mu.RLock()
	defer b.mu.RUnlock()
	e, ok := b.events[id]
	if !ok || e.UserID != userID {
		return model.Event{}, store.NotFound(store.KindEvents, id)
	}
	return cloneEvent(e), nil
}

// InsertEvent implements store.Backend.
func (b *Backend) InsertEvent(_ context.Context, e model.Event) (model.Event, error) {
	if err := b.check("insert_event"); err != nil {
		return model.Event{}, err
	}
	now := b.now().UTC()
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = now
	}
	e.UpdatedAt = now
	if e.Spheres == nil {
		e.Spheres = []string{}
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if _, exists := b.events[e.ID]; exists {
		return model.Event{}, store.NewClientError(store.ErrConflict, "event %q already exists", e.ID)
	}
	b.events[e.ID] = cloneEvent(e)
	return e, nil
}

// UpdateEvent implements store.Backend.
func (b *Backend) UpdateEvent(_ context.Context, e model.Event) (model.Event, error) {
	if err := b.check("update_event"); err != nil {
		return model.Event{}, err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	cur, ok := b.events[e.ID]
	if !ok || cur.UserID != e.UserID {
		return model.Event{}, store.NotFound(store.KindEvents, e.ID)
	}
	e.CreatedAt = cur.CreatedAt
	e.UpdatedAt = b.now().UTC()
	b.events[e.ID] = cloneEvent(e)
	return e, nil
}

// DeleteEvent implements store.Backend.
func (b *Backend) DeleteEvent(_ context.Context, userID, id string) error {
	if err := b.check("delete_event"); err != nil {
		return err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	e, ok := b.events[id]
	if !ok || e.UserID != userID {
		return store.NotFound(store.KindEvents, id)
	}
	delete(b.events, id)
	return nil
}

// ListSpheres implements store.Backend.
func (b *Backend) ListSpheres(_ context.Context, userID string) ([]model.LifeSphere, error) {
	if err := b.check("list_spheres"); err != nil {
		return nil, err
	}
	b.mu.RLock()
	out := make([]model.LifeSphere, 0)
	for _, s := range b.spheres {
		if s.UserID == userID {
			out = append(out, s)
		}
	}
	b.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

// GetSphere implements store.Backend.
func (b *Backend) GetSphere(_ context.Context, userID, id string) (model.LifeSphere, error) {
	if err := b.check("get_sphere"); err != nil {
		return model.LifeSphere{}, err
	}
	b.mu.RLock()
	defer b.mu.RUnlock()
	s, ok := b.spheres[id]
	if !ok || s.UserID != userID {
		return model.LifeSphere{}, store.NotFound(store.KindSpheres, id)
	}
	return s, nil
}

// InsertSpheres implements store.Backend. Rows of one call share a
// creation time and keep their order through a nanosecond offset.
func (b *Backend) InsertSpheres(_ context.Context, spheres []model.LifeSphere) ([]model.LifeSphere, error) {
	if err := b.check("insert_spheres"); err != nil {
		return nil, err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	out, err := b.prepareSpheres(spheres, "")
	if err != nil {
		return nil, err
	}
	for _, s := range out {
		b.spheres[s.ID] = s
	}
	return out, nil
}

// ReplaceSpheres implements store.SphereReplacer. The old set is dropped
// and the new one written under a single lock.
func (b *Backend) ReplaceSpheres(_ context.Context, userID string, spheres []model.LifeSphere) ([]model.LifeSphere, error) {
	if err := b.check("replace_spheres"); err != nil {
		return nil, err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	out, err := b.prepareSpheres(spheres, userID)
	if err != nil {
		return nil, err
	}
	for id, s := range b.spheres {
		if s.UserID == userID {
			delete(b.spheres, id)
		}
	}
	for _, s := range out {
		b.spheres[s.ID] = s
	}
	return out, nil
}

// prepareSpheres assigns ids and timestamps. Existing ids conflict unless
// they belong to replacing, whose rows are about to go. b.mu must be held.
func (b *Backend) prepareSpheres(spheres []model.LifeSphere, replacing string) ([]model.LifeSphere, error) {
	now := b.now().UTC()
	out := make([]model.LifeSphere, len(spheres))
	for i, s := range spheres {
		if s.ID == "" {
			s.ID = uuid.NewString()
		}
		if cur, exists := b.spheres[s.ID]; exists && (replacing == "" || cur.UserID != replacing) {
			return nil, store.NewClientError(store.ErrConflict, "sphere %q already exists", s.ID)
		}
		s.Score = model.ClampScore(s.Score)
		s.CreatedAt = now.Add(time.Duration(i))
		s.UpdatedAt = s.CreatedAt
		out[i] = s
	}
	return out, nil
}

// UpdateSphere implements store.Backend.
func (b *Backend) UpdateSphere(_ context.Context, s model.LifeSphere) (model.LifeSphere, error) {
	if err := b.check("update_sphere"); err != nil {
		return model.LifeSphere{}, err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	cur, ok := b.spheres[s.ID]
	if !ok || cur.UserID != s.UserID {
		return model.LifeSphere{}, store.NotFound(store.KindSpheres, s.ID)
	}
	s.CreatedAt = cur.CreatedAt
	s.IsDefault = cur.IsDefault
	s.Score = model.ClampScore(s.Score)
	s.UpdatedAt = b.now().UTC()
	b.spheres[s.ID] = s
	return s, nil
}

// DeleteSphere implements store.Backend.
func (b *Backend) DeleteSphere(_ context.Context, userID, id string) error {
	if err := b.check("delete_sphere"); err != nil {
		return err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	s, ok := b.spheres[id]
	if !ok || s.UserID != userID {
		return store.NotFound(store.KindSpheres, id)
	}
	delete(b.spheres, id)
	return nil
}

// DeleteAllSpheres implements store.Backend.
func (b *Backend) DeleteAllSpheres(_ context.Context, userID string) error {
	if err := b.check("delete_all_spheres"); err != nil {
		return err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	for id, s := range b.spheres {
		if s.UserID == userID {
			delete(b.spheres, id)
		}
	}
	return nil
}

// Count returns the number of stored events and spheres.
func (b *Backend) Count() (events, spheres int) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.events), len(b.spheres)
}

// Close implements store.Backend.
func (b *Backend) Close() error { return nil }
