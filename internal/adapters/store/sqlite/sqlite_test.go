package sqlite

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/Aygren/balendip-sub000/internal/adapters/store"
	"github.com/Aygren/balendip-sub000/internal/domain/model"
	. "github.com/smartystreets/goconvey/convey"
)

func openMemory() *Backend {
	b, err := Open(MemoryPath)
	if err != nil {
		panic(err)
	}
	tick := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	b.now = func() time.Time {
		tick = tick.Add(time.Second)
		return tick
	}
	return b
}

func TestOpen(t *testing.T) {
	Convey("Opening a file database twice should migrate once", t, func() {
		path := filepath.Join(t.TempDir(), "nested", "balendip.db")
		b, err := Open(path)
		So(err, ShouldBeNil)
		So(b.Close(), ShouldBeNil)

		b, err = Open(path)
		So(err, ShouldBeNil)
		defer b.Close()
		var version int
		So(b.db.QueryRow(`SELECT MAX(version) FROM schema_migrations`).Scan(&version), ShouldBeNil)
		So(version, ShouldEqual, SchemaVersion)
	})

	Convey("An empty path should be rejected", t, func() {
		_, err := Open("")
		So(err, ShouldNotBeNil)
	})
}

func TestEvents(t *testing.T) {
	Convey("Given a seeded sqlite backend", t, func() {
		ctx := context.Background()
		b := openMemory()
		defer b.Close()

		seed := []model.Event{
			{UserID: "u1", Title: "Gym session", Emotion: model.EmotionPositive, Date: "2024-01-01", Spheres: []string{"a", "b"}},
			{UserID: "u1", Title: "Bills", Description: "Paid the RENT", Emotion: model.EmotionNegative, Date: "2024-01-02", Spheres: []string{"c"}},
			{UserID: "u1", Title: "Walk", Emotion: model.EmotionNeutral, Date: "2024-01-02"},
			{UserID: "u1", Title: "Работа", Description: "Встреча в АТЕЛЬЕ Café", Emotion: model.EmotionNeutral, Date: "2023-12-31"},
			{UserID: "u2", Title: "Other user", Emotion: model.EmotionPositive, Date: "2024-01-03", Spheres: []string{"a"}},
		}
		var ids []string
		for _, e := range seed {
			out, err := b.InsertEvent(ctx, e)
			So(err, ShouldBeNil)
			ids = append(ids, out.ID)
		}

		list := func(f model.EventFilter, after *model.Cursor) []model.Event {
			out, err := b.ListEvents(ctx, store.EventQuery{UserID: "u1", Filter: f, After: after, Limit: 10})
			So(err, ShouldBeNil)
			return out
		}

		Convey("Listing should be newest first and scoped to the user", func() {
			out := list(model.EventFilter{}, nil)
			So(out, ShouldHaveLength, 4)
			So(out[0].Title, ShouldEqual, "Walk")
			So(out[1].Title, ShouldEqual, "Bills")
			So(out[2].Spheres, ShouldResemble, []string{"a", "b"})

			Convey("And resume after a cursor", func() {
				cur := model.CursorOf(&out[0])
				rest := list(model.EventFilter{}, &cur)
				So(rest, ShouldHaveLength, 3)
				So(rest[0].Title, ShouldEqual, "Bills")
			})
		})

		Convey("Sphere filters should match on overlap", func() {
			So(list(model.EventFilter{Spheres: []string{"b", "c"}}, nil), ShouldHaveLength, 2)
			So(list(model.EventFilter{Spheres: []string{"d"}}, nil), ShouldBeEmpty)
		})

		Convey("Search should be case-insensitive over title and description", func() {
			out := list(model.EventFilter{Search: "rent"}, nil)
			So(out, ShouldHaveLength, 1)
			So(out[0].Title, ShouldEqual, "Bills")
		})

		Convey("Search should fold non-ASCII letters like the in-memory filter", func() {
			for _, q := range []string{"работа", "РАБОТА", "ателье", "CAFÉ"} {
				f := model.EventFilter{Search: q}
				out := list(f, nil)
				So(out, ShouldHaveLength, 1)
				So(out[0].Title, ShouldEqual, "Работа")
				So(f.Matches(&out[0]), ShouldBeTrue)
			}
		})

		Convey("Date and emotion filters should apply", func() {
			So(list(model.EventFilter{From: "2024-01-02", To: "2024-01-02"}, nil), ShouldHaveLength, 2)
			So(list(model.EventFilter{Emotion: model.EmotionPositive}, nil), ShouldHaveLength, 1)
		})

		Convey("Updates should keep the creation time", func() {
			e, err := b.GetEvent(ctx, "u1", ids[0])
			So(err, ShouldBeNil)
			e.Title = "Gym"
			out, err := b.UpdateEvent(ctx, e)
			So(err, ShouldBeNil)
			So(out.Title, ShouldEqual, "Gym")
			So(out.CreatedAt.Equal(e.CreatedAt), ShouldBeTrue)
			So(out.UpdatedAt.After(e.UpdatedAt), ShouldBeTrue)
		})

		Convey("Cross-user access should look like a missing row", func() {
			_, err := b.GetEvent(ctx, "u2", ids[0])
			So(errors.Is(err, store.ErrNotFound), ShouldBeTrue)
			So(errors.Is(b.DeleteEvent(ctx, "u2", ids[0]), store.ErrNotFound), ShouldBeTrue)
			So(b.DeleteEvent(ctx, "u1", ids[0]), ShouldBeNil)
		})

		Convey("A duplicate id should be a conflict", func() {
			_, err := b.InsertEvent(ctx, model.Event{ID: ids[0], UserID: "u1", Title: "dup", Emotion: model.EmotionNeutral, Date: "2024-01-01"})
			So(errors.Is(err, store.ErrConflict), ShouldBeTrue)
		})
	})
}

func TestSpheres(t *testing.T) {
	Convey("Given the default sphere set", t, func() {
		ctx := context.Background()
		b := openMemory()
		defer b.Close()

		inserted, err := b.InsertSpheres(ctx, model.DefaultSphereSet("u1"))
		So(err, ShouldBeNil)

		list, err := b.ListSpheres(ctx, "u1")
		So(err, ShouldBeNil)
		So(list, ShouldHaveLength, len(inserted))
		So(list[0].Name, ShouldEqual, "Health")
		So(list[0].IsDefault, ShouldBeTrue)

		Convey("Updates should clamp the score", func() {
			s := list[0]
			s.Score = 99
			out, err := b.UpdateSphere(ctx, s)
			So(err, ShouldBeNil)
			So(out.Score, ShouldEqual, model.MaxSphereScore)
		})

		Convey("Deleting all should only touch the user", func() {
			_, err := b.InsertSpheres(ctx, model.DefaultSphereSet("u2"))
			So(err, ShouldBeNil)
			So(b.DeleteAllSpheres(ctx, "u1"), ShouldBeNil)
			left, _ := b.ListSpheres(ctx, "u1")
			So(left, ShouldBeEmpty)
			other, _ := b.ListSpheres(ctx, "u2")
			So(other, ShouldNotBeEmpty)
		})

		Convey("Replacing should swap the set in one transaction", func() {
			out, err := b.ReplaceSpheres(ctx, "u1", []model.LifeSphere{{UserID: "u1", Name: "Art", Color: "#111111", Score: 4}})
			So(err, ShouldBeNil)
			So(out, ShouldHaveLength, 1)
			left, _ := b.ListSpheres(ctx, "u1")
			So(left, ShouldHaveLength, 1)
			So(left[0].Name, ShouldEqual, "Art")
		})

		Convey("A failed replace should keep the previous set", func() {
			dup := []model.LifeSphere{
				{ID: "same", UserID: "u1", Name: "A", Color: "#111111", Score: 4},
				{ID: "same", UserID: "u1", Name: "B", Color: "#222222", Score: 5},
			}
			_, err := b.ReplaceSpheres(ctx, "u1", dup)
			So(errors.Is(err, store.ErrConflict), ShouldBeTrue)
			left, _ := b.ListSpheres(ctx, "u1")
			So(left, ShouldHaveLength, len(inserted))
		})
	})
}
