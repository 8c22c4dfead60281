package store

import (
	"context"
	"time"

	"github.com/Aygren/balendip-sub000/internal/domain/model"
	"github.com/Aygren/balendip-sub000/pkg/logger"
)

// Adapter scopes every call to the user carried by the context, validates
// payloads and retries transient backend failures. It holds no cache.
type Adapter struct {
	backend Backend
	retry   RetryPolicy
	logger  logger.Logger
	sleep   func(ctx context.Context, d time.Duration) error
}

// New creates an Adapter over backend.
func New(backend Backend, opts ...Option) (*Adapter, error) {
	if backend == nil {
		return nil, ErrNilBackend
	}
	a := &Adapter{
		backend: backend,
		retry:   RetryPolicy{MaxRetries: DefaultMaxRetries, BaseDelay: DefaultBaseDelay, MaxDelay: DefaultMaxDelay},
		logger:  logger.Nop(),
		sleep:   sleepCtx,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a, nil
}

// Close releases the backend.
func (a *Adapter) Close() error { return a.backend.Close() }

func user(ctx context.Context) (string, error) {
	id, ok := UserFromContext(ctx)
	if !ok {
		return "", &ClientError{Kind: ErrUnauthorized, Msg: "no authenticated user"}
	}
	return id, nil
}

func validate(v any) error {
	if err := model.Validate(v); err != nil {
		return &ClientError{Kind: ErrValidation, Err: err}
	}
	return nil
}

// Events.

// ListEvents returns up to limit of the user's events matching filter, in
// listing order and strictly after the cursor when one is given.
func (a *Adapter) ListEvents(ctx context.Context, filter model.EventFilter, after *model.Cursor, limit int) ([]model.Event, error) {
	uid, err := user(ctx)
	if err != nil {
		return nil, err
	}
	if limit <= 0 {
		return nil, NewClientError(ErrValidation, "limit must be positive, got %d", limit)
	}
	q := EventQuery{UserID: uid, Filter: filter.Normalize(), After: after, Limit: limit}
	var out []model.Event
	err = a.do(ctx, KindEvents, "list", func(ctx context.Context) error {
		var ferr error
		out, ferr = a.backend.ListEvents(ctx, q)
		return ferr
	})
	return out, err
}

// GetEvent returns one of the user's events.
func (a *Adapter) GetEvent(ctx context.Context, id string) (model.Event, error) {
	uid, err := user(ctx)
	if err != nil {
		return model.Event{}, err
	}
	var out model.Event
	err = a.do(ctx, KindEvents, "get", func(ctx context.Context) error {
		var ferr error
		out, ferr = a.backend.GetEvent(ctx, uid, id)
		return ferr
	})
	return out, err
}

// CreateEvent validates in and stores it as an event owned by the user.
func (a *Adapter) CreateEvent(ctx context.Context, in model.EventInput) (model.Event, error) {
	uid, err := user(ctx)
	if err != nil {
		return model.Event{}, err
	}
	if err := validate(&in); err != nil {
		return model.Event{}, err
	}
	e := in.Event(uid)
	var out model.Event
	err = a.do(ctx, KindEvents, "create", func(ctx context.Context) error {
		var ferr error
		out, ferr = a.backend.InsertEvent(ctx, e)
		return ferr
	})
	return out, err
}

// UpdateEvent applies patch to one of the user's events.
func (a *Adapter) UpdateEvent(ctx context.Context, id string, patch model.EventPatch) (model.Event, error) {
	if patch.Empty() {
		return model.Event{}, NewClientError(ErrValidation, "patch changes nothing")
	}
	if err := validate(&patch); err != nil {
		return model.Event{}, err
	}
	current, err := a.GetEvent(ctx, id)
	if err != nil {
		return model.Event{}, err
	}
	next := patch.Apply(current)
	var out model.Event
	err = a.do(ctx, KindEvents, "update", func(ctx context.Context) error {
		var ferr error
		out, ferr = a.backend.UpdateEvent(ctx, next)
		return ferr
	})
	return out, err
}

// DeleteEvent removes one of the user's events.
func (a *Adapter) DeleteEvent(ctx context.Context, id string) error {
	uid, err := user(ctx)
	if err != nil {
		return err
	}
	return a.do(ctx, KindEvents, "delete", func(ctx context.Context) error {
		return a.backend.DeleteEvent(ctx, uid, id)
	})
}

// Spheres.

// ListSpheres returns the user's spheres in creation order.
func (a *Adapter) ListSpheres(ctx context.Context) ([]model.LifeSphere, error) {
	uid, err := user(ctx)
	if err != nil {
		return nil, err
	}
	var out []model.LifeSphere
	err = a.do(ctx, KindSpheres, "list", func(ctx context.Context) error {
		var ferr error
		out, ferr = a.backend.ListSpheres(ctx, uid)
		return ferr
	})
	return out, err
}

// GetSphere returns one of the user's spheres.
func (a *Adapter) GetSphere(ctx context.Context, id string) (model.LifeSphere, error) {
	uid, err := user(ctx)
	if err != nil {
		return model.LifeSphere{}, err
	}
	var out model.LifeSphere
	err = a.do(ctx, KindSpheres, "get", func(ctx context.Context) error {
		var ferr error
		out, ferr = a.backend.GetSphere(ctx, uid, id)
		return ferr
	})
	return out, err
}

// CreateSphere validates in and stores a user-created sphere.
func (a *Adapter) CreateSphere(ctx context.Context, in model.SphereInput) (model.LifeSphere, error) {
	uid, err := user(ctx)
	if err != nil {
		return model.LifeSphere{}, err
	}
	if err := validate(&in); err != nil {
		return model.LifeSphere{}, err
	}
	out, err := a.insertSpheres(ctx, "create", []model.LifeSphere{in.Sphere(uid)})
	if err != nil {
		return model.LifeSphere{}, err
	}
	return out[0], nil
}

// UpdateSphere applies patch to one of the user's spheres. The score is
// clamped to the valid range.
func (a *Adapter) UpdateSphere(ctx context.Context, id string, patch model.SpherePatch) (model.LifeSphere, error) {
	if patch.Empty() {
		return model.LifeSphere{}, NewClientError(ErrValidation, "patch changes nothing")
	}
	if err := validate(&patch); err != nil {
		return model.LifeSphere{}, err
	}
	current, err := a.GetSphere(ctx, id)
	if err != nil {
		return model.LifeSphere{}, err
	}
	next := patch.Apply(current)
	var out model.LifeSphere
	err = a.do(ctx, KindSpheres, "update", func(ctx context.Context) error {
		var ferr error
		out, ferr = a.backend.UpdateSphere(ctx, next)
		return ferr
	})
	return out, err
}

// DeleteSphere removes one of the user's spheres. Default spheres are only
// removed with force.
func (a *Adapter) DeleteSphere(ctx context.Context, id string, force bool) error {
	uid, err := user(ctx)
	if err != nil {
		return err
	}
	if !force {
		current, err := a.GetSphere(ctx, id)
		if err != nil {
			return err
		}
		if current.IsDefault {
			return NewClientError(ErrConflict, "sphere %q is a default sphere; pass force to delete it", id)
		}
	}
	return a.do(ctx, KindSpheres, "delete", func(ctx context.Context) error {
		return a.backend.DeleteSphere(ctx, uid, id)
	})
}

// SeedDefaultSpheres inserts the default catalogue when the user has no
// spheres yet. seeded is false when spheres already existed; those are
// returned unchanged.
func (a *Adapter) SeedDefaultSpheres(ctx context.Context) (spheres []model.LifeSphere, seeded bool, err error) {
	uid, err := user(ctx)
	if err != nil {
		return nil, false, err
	}
	existing, err := a.ListSpheres(ctx)
	if err != nil {
		return nil, false, err
	}
	if len(existing) > 0 {
		return existing, false, nil
	}
	out, err := a.insertSpheres(ctx, "seed", model.DefaultSphereSet(uid))
	if err != nil {
		return nil, false, err
	}
	a.logger.Info(ctx, "seeded default spheres", logger.String("userID", uid), logger.Int("count", len(out)))
	return out, true, nil
}

// ReplaceSpheres swaps the user's whole sphere set for spheres. Backends
// implementing SphereReplacer do it atomically; for the rest the old set is
// deleted first, so a failed insert leaves the user with no spheres.
func (a *Adapter) ReplaceSpheres(ctx context.Context, spheres []model.LifeSphere) ([]model.LifeSphere, error) {
	uid, err := user(ctx)
	if err != nil {
		return nil, err
	}
	rows := make([]model.LifeSphere, len(spheres))
	for i, s := range spheres {
		s.ID = ""
		s.UserID = uid
		s.Score = model.ClampScore(s.Score)
		rows[i] = s
	}
	if r, ok := a.backend.(SphereReplacer); ok {
		var out []model.LifeSphere
		err := a.do(ctx, KindSpheres, "replace", func(ctx context.Context) error {
			var ferr error
			out, ferr = r.ReplaceSpheres(ctx, uid, rows)
			return ferr
		})
		if err != nil {
			return nil, err
		}
		if out == nil {
			out = []model.LifeSphere{}
		}
		return out, nil
	}
	if err := a.do(ctx, KindSpheres, "delete_all", func(ctx context.Context) error {
		return a.backend.DeleteAllSpheres(ctx, uid)
	}); err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return []model.LifeSphere{}, nil
	}
	return a.insertSpheres(ctx, "replace", rows)
}

func (a *Adapter) insertSpheres(ctx context.Context, op string, rows []model.LifeSphere) ([]model.LifeSphere, error) {
	var out []model.LifeSphere
	err := a.do(ctx, KindSpheres, op, func(ctx context.Context) error {
		var ferr error
		out, ferr = a.backend.InsertSpheres(ctx, rows)
		return ferr
	})
	return out, err
}
