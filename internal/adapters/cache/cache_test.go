package cache

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	. "github.com/smartystreets/goconvey/convey"
)

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func (f *fakeClock) now() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.t
}

func (f *fakeClock) advance(d time.Duration) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.t = f.t.Add(d)
}

type captureRefresher struct {
	mu   sync.Mutex
	jobs []func(ctx context.Context) error
	err  error
}

func (r *captureRefresher) Submit(_ string, run func(ctx context.Context) error) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return r.err
	}
	r.jobs = append(r.jobs, run)
	return nil
}

func (r *captureRefresher) runAll() {
	r.mu.Lock()
	jobs := r.jobs
	r.jobs = nil
	r.mu.Unlock()
	for _, j := range jobs {
		_ = j(context.Background())
	}
}

var listPolicy = Policy{StaleAfter: time.Minute, EvictAfter: 5 * time.Minute}

func counter(calls *atomic.Int64, value func(n int64) any) FetchFunc {
	return func(context.Context) (any, error) {
		n := calls.Add(1)
		return value(n), nil
	}
}

func TestGetOrFetch(t *testing.T) {
	Convey("Given a cache with a controllable clock", t, func() {
		ctx := context.Background()
		clock := &fakeClock{t: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
		refresher := &captureRefresher{}
		c := New(WithClock(clock.now), WithRefresher(refresher))
		var calls atomic.Int64
		fetch := counter(&calls, func(n int64) any { return n })

		v, err := c.GetOrFetch(ctx, "spheres:list:u1", listPolicy, fetch)
		So(err, ShouldBeNil)
		So(v, ShouldEqual, int64(1))

		Convey("A fresh entry should be served without fetching", func() {
			clock.advance(30 * time.Second)
			v, err := c.GetOrFetch(ctx, "spheres:list:u1", listPolicy, fetch)
			So(err, ShouldBeNil)
			So(v, ShouldEqual, int64(1))
			So(calls.Load(), ShouldEqual, 1)
			So(c.Stats().Hits, ShouldEqual, 1)
		})

		Convey("A stale entry should be served while one refresh is scheduled", func() {
			clock.advance(2 * time.Minute)
			v, _ := c.GetOrFetch(ctx, "spheres:list:u1", listPolicy, fetch)
			So(v, ShouldEqual, int64(1))
			v, _ = c.GetOrFetch(ctx, "spheres:list:u1", listPolicy, fetch)
			So(v, ShouldEqual, int64(1))
			So(refresher.jobs, ShouldHaveLength, 1)

			refresher.runAll()
			So(calls.Load(), ShouldEqual, 2)
			v, _ = c.GetOrFetch(ctx, "spheres:list:u1", listPolicy, fetch)
			So(v, ShouldEqual, int64(2))
			So(c.Stats().StaleServes, ShouldEqual, 2)
		})

		Convey("A rejected refresh should be retried on a later stale read", func() {
			clock.advance(2 * time.Minute)
			refresher.err = errors.New("queue full")
			_, _ = c.GetOrFetch(ctx, "spheres:list:u1", listPolicy, fetch)
			refresher.err = nil
			_, _ = c.GetOrFetch(ctx, "spheres:list:u1", listPolicy, fetch)
			So(refresher.jobs, ShouldHaveLength, 1)
		})

		Convey("An evicted entry should be fetched synchronously", func() {
			clock.advance(10 * time.Minute)
			v, err := c.GetOrFetch(ctx, "spheres:list:u1", listPolicy, fetch)
			So(err, ShouldBeNil)
			So(v, ShouldEqual, int64(2))
			So(refresher.jobs, ShouldBeEmpty)
		})

		Convey("Sweep should drop evicted entries", func() {
			clock.advance(10 * time.Minute)
			So(c.Sweep(), ShouldEqual, 1)
			So(c.Stats().Entries, ShouldEqual, 0)
		})
	})
}

func TestDeduplication(t *testing.T) {
	Convey("Two concurrent lookups of one key should issue one fetch", t, func() {
		c := New()
		var calls atomic.Int64
		started := make(chan struct{})
		release := make(chan struct{})
		fetch := func(context.Context) (any, error) {
			if calls.Add(1) == 1 {
				close(started)
			}
			<-release
			return "spheres", nil
		}

		var wg sync.WaitGroup
		results := make([]any, 2)
		policy := Policy{StaleAfter: 600 * time.Second, EvictAfter: 600 * time.Second}
		wg.Add(1)
		go func() {
			defer wg.Done()
			results[0], _ = c.GetOrFetch(context.Background(), "spheres:user1", policy, fetch)
		}()
		<-started
		wg.Add(1)
		go func() {
			defer wg.Done()
			results[1], _ = c.GetOrFetch(context.Background(), "spheres:user1", policy, fetch)
		}()
		time.Sleep(20 * time.Millisecond)
		close(release)
		wg.Wait()

		So(calls.Load(), ShouldEqual, 1)
		So(results, ShouldResemble, []any{"spheres", "spheres"})
	})
}

func TestInvalidation(t *testing.T) {
	Convey("Given cached event lists for two users", t, func() {
		ctx := context.Background()
		c := New()
		var calls atomic.Int64
		fetch := counter(&calls, func(n int64) any { return n })

		k1 := EventListKey("u1", "f", "", 20)
		k2 := EventListKey("u2", "f", "", 20)
		_, _ = c.GetOrFetch(ctx, k1, listPolicy, fetch)
		_, _ = c.GetOrFetch(ctx, k2, listPolicy, fetch)

		Convey("Invalidating one user's lists should force a refetch for that user only", func() {
			So(c.Invalidate(EventListPrefix("u1")), ShouldEqual, 1)
			v, _ := c.GetOrFetch(ctx, k1, listPolicy, fetch)
			So(v, ShouldEqual, int64(3))
			v, _ = c.GetOrFetch(ctx, k2, listPolicy, fetch)
			So(v, ShouldEqual, int64(2))
		})

		Convey("A fetch in flight during invalidation should not be stored", func() {
			release := make(chan struct{})
			started := make(chan struct{})
			slow := func(context.Context) (any, error) {
				close(started)
				<-release
				return "before", nil
			}
			key := EventListKey("u1", "other", "", 20)
			done := make(chan any)
			go func() {
				v, _ := c.GetOrFetch(ctx, key, listPolicy, slow)
				done <- v
			}()
			<-started
			c.Invalidate(EventListPrefix("u1"))
			close(release)
			So(<-done, ShouldEqual, "before")

			v, _ := c.GetOrFetch(ctx, key, listPolicy, func(context.Context) (any, error) { return "after", nil })
			So(v, ShouldEqual, "after")
		})

		Convey("Seeding should serve the seeded value without fetching", func() {
			c.Seed(EventKey("u1", "e1"), "seeded", listPolicy)
			v, _ := c.GetOrFetch(ctx, EventKey("u1", "e1"), listPolicy, fetch)
			So(v, ShouldEqual, "seeded")
			c.Remove(EventKey("u1", "e1"))
			v, _ = c.GetOrFetch(ctx, EventKey("u1", "e1"), listPolicy, fetch)
			So(v, ShouldEqual, int64(3))
		})
	})
}

func TestFailuresAndBounds(t *testing.T) {
	Convey("Given a cache", t, func() {
		ctx := context.Background()

		Convey("Errors should not be cached", func() {
			c := New()
			boom := errors.New("boom")
			_, err := c.GetOrFetch(ctx, "k", listPolicy, func(context.Context) (any, error) { return nil, boom })
			So(err, ShouldEqual, boom)
			v, err := c.GetOrFetch(ctx, "k", listPolicy, func(context.Context) (any, error) { return 1, nil })
			So(err, ShouldBeNil)
			So(v, ShouldEqual, 1)
		})

		Convey("A canceled caller should stop waiting while the fetch completes", func() {
			c := New()
			release := make(chan struct{})
			cctx, cancel := context.WithCancel(ctx)
			cancel()
			_, err := c.GetOrFetch(cctx, "k", listPolicy, func(context.Context) (any, error) {
				<-release
				return "late", nil
			})
			So(errors.Is(err, context.Canceled), ShouldBeTrue)
			close(release)
		})

		Convey("The oldest entry should be evicted past the bound", func() {
			clock := &fakeClock{t: time.Now()}
			c := New(WithMaxEntries(2), WithClock(clock.now))
			for _, k := range []string{"a", "b", "c"} {
				c.Seed(k, k, listPolicy)
				clock.advance(time.Second)
			}
			So(c.Stats().Entries, ShouldEqual, 2)
			var calls atomic.Int64
			_, _ = c.GetOrFetch(ctx, "a", listPolicy, counter(&calls, func(n int64) any { return n }))
			So(calls.Load(), ShouldEqual, 1)
		})

		Convey("Typed fetches should check the cached type", func() {
			c := New()
			c.Seed("k", "text", listPolicy)
			_, err := Fetch(ctx, c, "k", listPolicy, func(context.Context) (int, error) { return 1, nil })
			So(err, ShouldEqual, ErrUnexpectedType)
			s, err := Fetch(ctx, c, "k", listPolicy, func(context.Context) (string, error) { return "", nil })
			So(err, ShouldBeNil)
			So(s, ShouldEqual, "text")
		})

		Convey("Key helpers should nest under their prefixes", func() {
			So(EventListKey("u1", "f", "t", 20), ShouldStartWith, EventListPrefix("u1"))
			So(AnalyticsKey("u1", "a", "b"), ShouldStartWith, AnalyticsPrefix("u1"))
			So(class(SphereListKey("u1")), ShouldEqual, ClassSpheres)
		})
	})
}
