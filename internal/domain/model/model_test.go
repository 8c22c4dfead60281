package model

import (
	"errors"
	"testing"
	"time"

	. "github.com/smartystreets/goconvey/convey"
)

func TestEventFilterMatches(t *testing.T) {
	Convey("Given an event tagged with two spheres", t, func() {
		e := &Event{
			ID:          "e1",
			Title:       "Morning Run",
			Description: "Five km along the river",
			Emotion:     EmotionPositive,
			Spheres:     []string{"a", "b"},
			Date:        "2024-01-05",
		}

		Convey("A sphere filter with a non-empty intersection should match", func() {
			So(EventFilter{Spheres: []string{"b", "c"}}.Matches(e), ShouldBeTrue)
		})

		Convey("A disjoint sphere filter should not match", func() {
			So(EventFilter{Spheres: []string{"c", "d"}}.Matches(e), ShouldBeFalse)
		})

		Convey("Search should be case-insensitive over title and description", func() {
			So(EventFilter{Search: "RUN"}.Matches(e), ShouldBeTrue)
			So(EventFilter{Search: "river"}.Matches(e), ShouldBeTrue)
			So(EventFilter{Search: "swim"}.Matches(e), ShouldBeFalse)
		})

		Convey("Date bounds should be inclusive", func() {
			So(EventFilter{From: "2024-01-05", To: "2024-01-05"}.Matches(e), ShouldBeTrue)
			So(EventFilter{From: "2024-01-06"}.Matches(e), ShouldBeFalse)
			So(EventFilter{To: "2024-01-04"}.Matches(e), ShouldBeFalse)
		})

		Convey("Emotion should match by equality", func() {
			So(EventFilter{Emotion: EmotionPositive}.Matches(e), ShouldBeTrue)
			So(EventFilter{Emotion: EmotionNegative}.Matches(e), ShouldBeFalse)
		})
	})
}

func TestEventFilterFingerprint(t *testing.T) {
	Convey("Equivalent filters should share a fingerprint", t, func() {
		a := EventFilter{Search: " walk ", Spheres: []string{"b", "a", "b"}}
		b := EventFilter{Search: "walk", Spheres: []string{"a", "b"}}
		So(a.Fingerprint(), ShouldEqual, b.Fingerprint())
		So(a.Normalize().Spheres, ShouldResemble, []string{"a", "b"})

		c := EventFilter{Search: "walk", Emotion: EmotionNeutral}
		So(c.Fingerprint(), ShouldNotEqual, b.Fingerprint())
	})
}

func TestListingOrder(t *testing.T) {
	Convey("Given events on different dates and creation times", t, func() {
		base := time.Date(2024, 1, 1, 9, 0, 0, 0, time.UTC)
		events := []Event{
			{ID: "a", Date: "2024-01-01", CreatedAt: base},
			{ID: "b", Date: "2024-01-02", CreatedAt: base},
			{ID: "c", Date: "2024-01-01", CreatedAt: base.Add(time.Hour)},
			{ID: "d", Date: "2024-01-01", CreatedAt: base},
		}
		SortEvents(events)

		Convey("They should sort newest date first, then newest creation, then id", func() {
			ids := make([]string, len(events))
			for i, e := range events {
				ids[i] = e.ID
			}
			So(ids, ShouldResemble, []string{"b", "c", "d", "a"})
		})

		Convey("A cursor should sort ahead of everything after it", func() {
			cur := CursorOf(&events[1])
			So(cur.Before(CursorOf(&events[2])), ShouldBeTrue)
			So(CursorOf(&events[0]).Before(cur), ShouldBeTrue)
		})
	})
}

func TestValidate(t *testing.T) {
	Convey("Given event inputs", t, func() {
		Convey("A complete input should pass", func() {
			in := EventInput{Title: "Tea", Emotion: EmotionNeutral, Date: "2024-03-01", Time: "08:30"}
			So(Validate(&in), ShouldBeNil)
		})

		Convey("A blank title and unknown emotion should fail with both fields named", func() {
			in := EventInput{Title: "   ", Emotion: "ecstatic", Date: "2024-03-01"}
			err := Validate(&in)
			So(errors.Is(err, ErrInvalid), ShouldBeTrue)
			So(err.Error(), ShouldContainSubstring, "title")
			So(err.Error(), ShouldContainSubstring, "emotion")
		})

		Convey("A malformed date or time should fail", func() {
			So(Validate(&EventInput{Title: "x", Emotion: EmotionPositive, Date: "01/03/2024"}), ShouldNotBeNil)
			So(Validate(&EventInput{Title: "x", Emotion: EmotionPositive, Date: "2024-03-01", Time: "25:00"}), ShouldNotBeNil)
			So(Validate(&EventInput{Title: "x", Emotion: EmotionPositive, Date: "2024-03-01", Time: "23:15:59"}), ShouldBeNil)
		})

		Convey("Sphere inputs should require a hex color", func() {
			So(Validate(&SphereInput{Name: "Art", Color: "#FF00AA"}), ShouldBeNil)
			So(Validate(&SphereInput{Name: "Art", Color: "pink"}), ShouldNotBeNil)
		})
	})
}

func TestEventInputAndPatch(t *testing.T) {
	Convey("Given an event input with a padded title and duplicate spheres", t, func() {
		in := EventInput{Title: "  Walk ", Emotion: EmotionPositive, Spheres: []string{"x", "x", "y"}, Date: "2024-01-01"}
		e := in.Event("u1")

		So(e.UserID, ShouldEqual, "u1")
		So(e.Title, ShouldEqual, "Walk")
		So(e.Spheres, ShouldResemble, []string{"x", "y"})

		Convey("A patch should only change the set fields", func() {
			title := "Long walk"
			p := EventPatch{Title: &title}
			So(p.Empty(), ShouldBeFalse)
			out := p.Apply(e)
			So(out.Title, ShouldEqual, "Long walk")
			So(out.Emotion, ShouldEqual, EmotionPositive)
			So((&EventPatch{}).Empty(), ShouldBeTrue)
		})
	})
}

func TestSpheres(t *testing.T) {
	Convey("Given sphere scores", t, func() {
		So(ClampScore(0), ShouldEqual, MinSphereScore)
		So(ClampScore(42), ShouldEqual, MaxSphereScore)
		So(ClampScore(7), ShouldEqual, 7)

		Convey("New spheres should default to the middle score", func() {
			s := (&SphereInput{Name: "Art", Color: "#000000"}).Sphere("u1")
			So(s.Score, ShouldEqual, DefaultSphereScore)
			So(s.IsDefault, ShouldBeFalse)
		})

		Convey("Patches should clamp the score", func() {
			score := -3
			s := (&SpherePatch{Score: &score}).Apply(LifeSphere{Score: 5})
			So(s.Score, ShouldEqual, MinSphereScore)
		})

		Convey("The default catalogue should be marked as default", func() {
			set := DefaultSphereSet("u1")
			So(len(set), ShouldEqual, 8)
			for _, s := range set {
				So(s.IsDefault, ShouldBeTrue)
				So(s.UserID, ShouldEqual, "u1")
			}
			tpl, ok := LookupTemplate("growth")
			So(ok, ShouldBeTrue)
			So(tpl.Name, ShouldEqual, "Personal Growth")
		})
	})
}

func TestEventFilterValidate(t *testing.T) {
	Convey("Given event filters", t, func() {
		So(Validate(EventFilter{}), ShouldBeNil)
		So(Validate(EventFilter{From: "2024-01-01", To: "2024-01-31", Emotion: EmotionNeutral}), ShouldBeNil)

		err := Validate(EventFilter{From: "01/02/2024", Emotion: "happy"})
		So(errors.Is(err, ErrInvalid), ShouldBeTrue)
		So(err.Error(), ShouldContainSubstring, "from must be a date")
		So(err.Error(), ShouldContainSubstring, "emotion must be one of")
	})
}
