package store_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/Aygren/balendip-sub000/internal/adapters/store"
	"github.com/Aygren/balendip-sub000/internal/adapters/store/memory"
	"github.com/Aygren/balendip-sub000/internal/domain/model"
	. "github.com/smartystreets/goconvey/convey"
)

type failPlan struct {
	mu    sync.Mutex
	calls map[string]int
	errs  map[string][]error
}

func newFailPlan() *failPlan {
	return &failPlan{calls: map[string]int{}, errs: map[string][]error{}}
}

func (p *failPlan) hook(op string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls[op]++
	if q := p.errs[op]; len(q) > 0 {
		p.errs[op] = q[1:]
		return q[0]
	}
	return nil
}

func (p *failPlan) count(op string) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.calls[op]
}

func newAdapter(plan *failPlan) (*store.Adapter, *[]time.Duration) {
	var waits []time.Duration
	a, err := store.New(memory.New(memory.WithFailures(plan.hook)),
		store.WithRetryPolicy(store.RetryPolicy{MaxRetries: 3, BaseDelay: 10 * time.Millisecond, MaxDelay: 25 * time.Millisecond}),
		store.WithSleeper(func(_ context.Context, d time.Duration) error {
			waits = append(waits, d)
			return nil
		}),
	)
	if err != nil {
		panic(err)
	}
	return a, &waits
}

func input(title string) model.EventInput {
	return model.EventInput{Title: title, Emotion: model.EmotionPositive, Date: "2024-01-01"}
}

func TestAdapterScoping(t *testing.T) {
	Convey("Given an adapter over the memory backend", t, func() {
		a, _ := newAdapter(newFailPlan())
		alice := store.WithUser(context.Background(), "alice")
		bob := store.WithUser(context.Background(), "bob")

		Convey("Calls without a user should be unauthorized", func() {
			_, err := a.CreateEvent(context.Background(), input("x"))
			So(errors.Is(err, store.ErrUnauthorized), ShouldBeTrue)
			So(store.IsClientError(err), ShouldBeTrue)
		})

		Convey("Created events should be owned by the caller", func() {
			e, err := a.CreateEvent(alice, input("Walk"))
			So(err, ShouldBeNil)
			So(e.UserID, ShouldEqual, "alice")
			So(e.ID, ShouldNotBeEmpty)

			Convey("And invisible to other users", func() {
				_, err := a.GetEvent(bob, e.ID)
				So(errors.Is(err, store.ErrNotFound), ShouldBeTrue)
				list, err := a.ListEvents(bob, model.EventFilter{}, nil, 10)
				So(err, ShouldBeNil)
				So(list, ShouldBeEmpty)
				So(errors.Is(a.DeleteEvent(bob, e.ID), store.ErrNotFound), ShouldBeTrue)
			})

			Convey("And editable by their owner", func() {
				title := "Evening walk"
				out, err := a.UpdateEvent(alice, e.ID, model.EventPatch{Title: &title})
				So(err, ShouldBeNil)
				So(out.Title, ShouldEqual, "Evening walk")
				So(out.CreatedAt.Equal(e.CreatedAt), ShouldBeTrue)
			})
		})

		Convey("Invalid payloads should be validation errors", func() {
			_, err := a.CreateEvent(alice, model.EventInput{Title: "x", Emotion: "meh", Date: "2024-01-01"})
			So(errors.Is(err, store.ErrValidation), ShouldBeTrue)
			So(errors.Is(err, model.ErrInvalid), ShouldBeTrue)

			_, err = a.UpdateEvent(alice, "any", model.EventPatch{})
			So(errors.Is(err, store.ErrValidation), ShouldBeTrue)
		})
	})
}

func TestAdapterRetry(t *testing.T) {
	Convey("Given a backend that fails transiently", t, func() {
		plan := newFailPlan()
		a, waits := newAdapter(plan)
		ctx := store.WithUser(context.Background(), "alice")

		Convey("Two transient failures should be retried with doubling backoff", func() {
			plan.errs["list_spheres"] = []error{store.Transient(errors.New("reset")), store.Transient(errors.New("reset"))}
			_, err := a.ListSpheres(ctx)
			So(err, ShouldBeNil)
			So(plan.count("list_spheres"), ShouldEqual, 3)
			So(*waits, ShouldResemble, []time.Duration{10 * time.Millisecond, 20 * time.Millisecond})
		})

		Convey("Persistent transient failures should surface after three retries", func() {
			boom := store.Transient(errors.New("502"))
			plan.errs["list_spheres"] = []error{boom, boom, boom, boom, boom}
			_, err := a.ListSpheres(ctx)
			So(store.IsTransient(err), ShouldBeTrue)
			So(plan.count("list_spheres"), ShouldEqual, 4)
			So((*waits)[2], ShouldEqual, 25*time.Millisecond)
		})

		Convey("Client errors should not be retried", func() {
			plan.errs["list_spheres"] = []error{store.NewClientError(store.ErrUnauthorized, "expired")}
			_, err := a.ListSpheres(ctx)
			So(errors.Is(err, store.ErrUnauthorized), ShouldBeTrue)
			So(plan.count("list_spheres"), ShouldEqual, 1)
			So(*waits, ShouldBeEmpty)
		})
	})

	Convey("Backoff should double and cap", t, func() {
		p := store.RetryPolicy{MaxRetries: 3, BaseDelay: 100 * time.Millisecond, MaxDelay: 300 * time.Millisecond}
		So(p.Backoff(1), ShouldEqual, 100*time.Millisecond)
		So(p.Backoff(2), ShouldEqual, 200*time.Millisecond)
		So(p.Backoff(3), ShouldEqual, 300*time.Millisecond)
	})
}

func TestAdapterSpheres(t *testing.T) {
	Convey("Given a user without spheres", t, func() {
		a, _ := newAdapter(newFailPlan())
		ctx := store.WithUser(context.Background(), "alice")

		Convey("Seeding should insert the default catalogue once", func() {
			spheres, seeded, err := a.SeedDefaultSpheres(ctx)
			So(err, ShouldBeNil)
			So(seeded, ShouldBeTrue)
			So(spheres, ShouldHaveLength, len(model.DefaultSpheres()))

			again, seeded, err := a.SeedDefaultSpheres(ctx)
			So(err, ShouldBeNil)
			So(seeded, ShouldBeFalse)
			So(again, ShouldHaveLength, len(spheres))

			Convey("Default spheres should resist deletion without force", func() {
				err := a.DeleteSphere(ctx, spheres[0].ID, false)
				So(errors.Is(err, store.ErrConflict), ShouldBeTrue)
				So(a.DeleteSphere(ctx, spheres[0].ID, true), ShouldBeNil)
			})
		})

		Convey("Scores should be clamped on create and update", func() {
			s, err := a.CreateSphere(ctx, model.SphereInput{Name: "Art", Color: "#123456", Score: 15})
			So(err, ShouldBeNil)
			So(s.Score, ShouldEqual, model.MaxSphereScore)

			low := -1
			s, err = a.UpdateSphere(ctx, s.ID, model.SpherePatch{Score: &low})
			So(err, ShouldBeNil)
			So(s.Score, ShouldEqual, model.MinSphereScore)
			So(a.DeleteSphere(ctx, s.ID, false), ShouldBeNil)
		})

		Convey("Replacing should swap the whole set", func() {
			_, _, err := a.SeedDefaultSpheres(ctx)
			So(err, ShouldBeNil)
			out, err := a.ReplaceSpheres(ctx, []model.LifeSphere{{Name: "Only", Color: "#000000", Score: 7}})
			So(err, ShouldBeNil)
			So(out, ShouldHaveLength, 1)
			list, err := a.ListSpheres(ctx)
			So(err, ShouldBeNil)
			So(list, ShouldHaveLength, 1)
			So(list[0].UserID, ShouldEqual, "alice")
		})
	})
}
