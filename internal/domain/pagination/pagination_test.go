package pagination

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/Aygren/balendip-sub000/internal/domain/model"
	. "github.com/smartystreets/goconvey/convey"
)

type sliceSource struct {
	mu     sync.Mutex
	events []model.Event
	calls  int
	hook   func()
}

func (s *sliceSource) ListEvents(_ context.Context, f model.EventFilter, after *model.Cursor, limit int) ([]model.Event, error) {
	s.mu.Lock()
	s.calls++
	hook := s.hook
	all := make([]model.Event, len(s.events))
	copy(all, s.events)
	s.mu.Unlock()
	if hook != nil {
		hook()
	}

	model.SortEvents(all)
	var out []model.Event
	for i := range all {
		if !f.Matches(&all[i]) {
			continue
		}
		if after != nil && !after.Before(model.CursorOf(&all[i])) {
			continue
		}
		out = append(out, all[i])
		if len(out) == limit {
			break
		}
	}
	return out, nil
}

func (s *sliceSource) add(e model.Event) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, e)
}

func seed(n int) *sliceSource {
	src := &sliceSource{}
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < n; i++ {
		src.add(model.Event{
			ID:        fmt.Sprintf("e%03d", i),
			Title:     "event",
			Emotion:   model.EmotionNeutral,
			Date:      base.AddDate(0, 0, i/3).Format(model.DateLayout),
			CreatedAt: base.Add(time.Duration(i) * time.Minute),
		})
	}
	return src
}

func TestLoadPage(t *testing.T) {
	Convey("Given 45 matching records and a page size of 20", t, func() {
		src := seed(45)
		engine, err := New(src)
		So(err, ShouldBeNil)
		ctx := context.Background()

		Convey("Pages should hold 20, 20 and 5 records with a token until the last", func() {
			var sizes []int
			var seen []string
			token := ""
			for i := 0; i < 3; i++ {
				page, err := engine.LoadPage(ctx, model.EventFilter{}, token, 20)
				So(err, ShouldBeNil)
				sizes = append(sizes, len(page.Events))
				for _, e := range page.Events {
					seen = append(seen, e.ID)
				}
				if i < 2 {
					So(page.Next, ShouldNotBeEmpty)
				} else {
					So(page.Next, ShouldBeEmpty)
				}
				token = page.Next
			}
			So(sizes, ShouldResemble, []int{20, 20, 5})

			Convey("And no record should repeat", func() {
				unique := map[string]bool{}
				for _, id := range seen {
					unique[id] = true
				}
				So(len(unique), ShouldEqual, 45)
			})
		})

		Convey("A token from another filter should be rejected", func() {
			page, err := engine.LoadPage(ctx, model.EventFilter{}, "", 20)
			So(err, ShouldBeNil)
			_, err = engine.LoadPage(ctx, model.EventFilter{Emotion: model.EmotionPositive}, page.Next, 20)
			So(errors.Is(err, ErrTokenMismatch), ShouldBeTrue)
		})

		Convey("A garbage token should be rejected", func() {
			_, err := engine.LoadPage(ctx, model.EventFilter{}, "!!not-a-token", 20)
			So(errors.Is(err, ErrInvalidToken), ShouldBeTrue)
		})

		Convey("Insertions between pages should not duplicate or skip older records", func() {
			first, err := engine.LoadPage(ctx, model.EventFilter{}, "", 20)
			So(err, ShouldBeNil)
			src.add(model.Event{ID: "new", Emotion: model.EmotionNeutral, Date: "2030-01-01", CreatedAt: time.Now()})
			second, err := engine.LoadPage(ctx, model.EventFilter{}, first.Next, 20)
			So(err, ShouldBeNil)
			So(second.Events[0].ID, ShouldNotEqual, "new")
			So(model.CursorOf(&first.Events[19]).Before(model.CursorOf(&second.Events[0])), ShouldBeTrue)
		})

		Convey("Page sizes should default and cap", func() {
			capped, err := New(src, WithPageSize(10), WithMaxPageSize(15))
			So(err, ShouldBeNil)
			So(capped.PageSize(0), ShouldEqual, 10)
			So(capped.PageSize(500), ShouldEqual, 15)
		})
	})

	Convey("A nil source should fail construction", t, func() {
		_, err := New(nil)
		So(err, ShouldEqual, ErrNilSource)
	})
}

func TestCollect(t *testing.T) {
	Convey("Given 45 records", t, func() {
		engine, _ := New(seed(45), WithMaxPageSize(20))
		ctx := context.Background()

		events, truncated, err := engine.Collect(ctx, model.EventFilter{}, 0)
		So(err, ShouldBeNil)
		So(events, ShouldHaveLength, 45)
		So(truncated, ShouldBeFalse)

		events, truncated, err = engine.Collect(ctx, model.EventFilter{}, 30)
		So(err, ShouldBeNil)
		So(events, ShouldHaveLength, 30)
		So(truncated, ShouldBeTrue)
	})
}

func TestSession(t *testing.T) {
	Convey("Given a session over 45 records", t, func() {
		src := seed(45)
		engine, _ := New(src)
		ctx := context.Background()
		s := engine.NewSession(model.EventFilter{}, 20)

		Convey("LoadMore should accumulate until exhausted", func() {
			for s.HasMore() {
				_, err := s.LoadMore(ctx)
				So(err, ShouldBeNil)
			}
			So(s.Events(), ShouldHaveLength, 45)
			n, err := s.LoadMore(ctx)
			So(err, ShouldBeNil)
			So(n, ShouldEqual, 0)
		})

		Convey("Changing the filter should restart from the first page", func() {
			_, err := s.LoadMore(ctx)
			So(err, ShouldBeNil)
			gen := s.Generation()
			So(s.SetFilter(model.EventFilter{Search: "event"}), ShouldBeTrue)
			So(s.Generation(), ShouldEqual, gen+1)
			So(s.Events(), ShouldBeEmpty)
			So(s.SetFilter(model.EventFilter{Search: " event "}), ShouldBeFalse)
		})

		Convey("A response arriving after a filter change should be dropped", func() {
			src.hook = func() { s.SetFilter(model.EventFilter{Emotion: model.EmotionNeutral}) }
			_, err := s.LoadMore(ctx)
			So(err, ShouldEqual, ErrStaleSession)
			So(s.Events(), ShouldBeEmpty)
			src.hook = nil
		})
	})
}
