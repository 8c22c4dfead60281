// Package store is the entity store adapter: a typed, user-scoped wrapper
// over a pluggable backend with bounded retry on transient failures.
package store

import (
	"context"

	"github.com/Aygren/balendip-sub000/internal/domain/model"
)

// Kind names an entity collection.
type Kind string

// Collections.
const (
	KindEvents  Kind = "events"
	KindSpheres Kind = "life_spheres"
)

// EventQuery is one bounded listing query. Results are in listing order
// (model.Less) and strictly after After when set.
type EventQuery struct {
	UserID string
	Filter model.EventFilter
	After  *model.Cursor
	Limit  int
}

// Backend is the storage the adapter drives. Every call is already scoped
// to a user; implementations must never return another user's rows.
//
// Insert and update calls fill identifiers and timestamps that are unset
// and return the stored record. Missing rows are ClientErrors of kind
// ErrNotFound; retryable failures are TransientErrors.
type Backend interface {
	ListEvents(ctx context.Context, q EventQuery) ([]model.Event, error)
	GetEvent(ctx context.Context, userID, id string) (model.Event, error)
	InsertEvent(ctx context.Context, e model.Event) (model.Event, error)
	UpdateEvent(ctx context.Context, e model.Event) (model.Event, error)
	DeleteEvent(ctx context.Context, userID, id string) error

	ListSpheres(ctx context.Context, userID string) ([]model.LifeSphere, error)
	GetSphere(ctx context.Context, userID, id string) (model.LifeSphere, error)
	InsertSpheres(ctx context.Context, spheres []model.LifeSphere) ([]model.LifeSphere, error)
	UpdateSphere(ctx context.Context, s model.LifeSphere) (model.LifeSphere, error)
	DeleteSphere(ctx context.Context, userID, id string) error
	DeleteAllSpheres(ctx context.Context, userID string) error

	Close() error
}

// SphereReplacer is implemented by backends that can swap a user's whole
// sphere set in one step. On failure the previous set must be left intact.
type SphereReplacer interface {
	ReplaceSpheres(ctx context.Context, userID string, spheres []model.LifeSphere) ([]model.LifeSphere, error)
}

type userKey struct{}

// WithUser returns a context carrying the authenticated user id.
func WithUser(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, userKey{}, userID)
}

// UserFromContext returns the authenticated user id, if any.
func UserFromContext(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(userKey{}).(string)
	return id, ok && id != ""
}

type tokenKey struct{}

// WithToken returns a context carrying the caller's bearer token, forwarded
// by backends that authenticate per request.
func WithToken(ctx context.Context, token string) context.Context {
	return context.WithValue(ctx, tokenKey{}, token)
}

// TokenFromContext returns the bearer token, if any.
func TokenFromContext(ctx context.Context) (string, bool) {
	t, ok := ctx.Value(tokenKey{}).(string)
	return t, ok && t != ""
}
