package onboarding

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/Aygren/balendip-sub000/internal/domain/model"
	. "github.com/smartystreets/goconvey/convey"
)

type memStore struct {
	mu   sync.Mutex
	data map[string][]byte
}

func newMemStore() *memStore { return &memStore{data: map[string][]byte{}} }

func (s *memStore) Load(_ context.Context, userID string) (Progress, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	raw, ok := s.data[userID]
	if !ok {
		return Progress{}, false, nil
	}
	var p Progress
	err := json.Unmarshal(raw, &p)
	return p, true, err
}

func (s *memStore) Save(_ context.Context, userID string, p Progress) error {
	raw, err := json.Marshal(p)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data[userID] = raw
	return nil
}

func (s *memStore) Delete(_ context.Context, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.data, userID)
	return nil
}

type fakeWriter struct {
	err     error
	calls   int
	written []model.LifeSphere
}

func (w *fakeWriter) ReplaceSpheres(_ context.Context, _ string, spheres []model.LifeSphere) ([]model.LifeSphere, error) {
	w.calls++
	if w.err != nil {
		return nil, w.err
	}
	w.written = make([]model.LifeSphere, len(spheres))
	for i, s := range spheres {
		s.ID = "id-" + s.Name
		w.written[i] = s
	}
	return w.written, nil
}

func TestMachineTransitions(t *testing.T) {
	Convey("Given a fresh onboarding machine", t, func() {
		ctx := context.Background()
		store := newMemStore()
		writer := &fakeWriter{}
		fixed := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
		m, err := New(store, writer, WithClock(func() time.Time { return fixed }))
		So(err, ShouldBeNil)

		p, err := m.Get(ctx, "u1")
		So(err, ShouldBeNil)
		So(p.Step, ShouldEqual, StepWelcome)

		Convey("Back from the first step should be rejected", func() {
			_, err := m.Back(ctx, "u1")
			So(err, ShouldEqual, ErrAtFirstStep)
		})

		Convey("When moving to sphere selection", func() {
			p, err := m.Next(ctx, "u1")
			So(err, ShouldBeNil)
			So(p.Step, ShouldEqual, StepSphereSelection)

			Convey("Advancing with nothing selected should leave the state unchanged", func() {
				_, err := m.Next(ctx, "u1")
				So(err, ShouldEqual, ErrNoSpheresSelected)
				p, _ := m.Get(ctx, "u1")
				So(p.Step, ShouldEqual, StepSphereSelection)
			})

			Convey("Selecting one sphere and retrying should succeed", func() {
				sel := []string{"health"}
				_, err := m.Update(ctx, "u1", Update{SelectedSpheres: &sel})
				So(err, ShouldBeNil)
				p, err := m.Next(ctx, "u1")
				So(err, ShouldBeNil)
				So(p.Step, ShouldEqual, StepSphereSetup)
				So(p.Spheres, ShouldHaveLength, 1)
				So(p.Spheres[0].Name, ShouldEqual, "Health")

				Convey("Completing should write the spheres and mark completion", func() {
					p, err := m.Next(ctx, "u1")
					So(err, ShouldBeNil)
					So(p.IsCompleted, ShouldBeTrue)
					So(p.Step, ShouldEqual, StepCompleted)
					So(p.CompletedAt.Equal(fixed), ShouldBeTrue)
					So(writer.calls, ShouldEqual, 1)
					So(p.Spheres[0].ID, ShouldEqual, "id-Health")

					_, err = m.Next(ctx, "u1")
					So(err, ShouldEqual, ErrAlreadyCompleted)
				})

				Convey("Going back should keep the selection", func() {
					p, err := m.Back(ctx, "u1")
					So(err, ShouldBeNil)
					So(p.Step, ShouldEqual, StepSphereSelection)
					So(p.SelectedSpheres, ShouldResemble, []string{"health"})
				})
			})

			Convey("Selecting an unknown catalogue key should fail", func() {
				sel := []string{"astrology"}
				_, err := m.Update(ctx, "u1", Update{SelectedSpheres: &sel})
				So(errors.Is(err, ErrUnknownSphere), ShouldBeTrue)
			})
		})

		Convey("Skip should complete with the default catalogue", func() {
			p, err := m.Skip(ctx, "u1")
			So(err, ShouldBeNil)
			So(p.IsCompleted, ShouldBeTrue)
			So(writer.written, ShouldHaveLength, len(model.DefaultSpheres()))
		})

		Convey("A failed sphere write should still complete locally and surface the error", func() {
			writer.err = errors.New("backend down")
			p, err := m.Skip(ctx, "u1")
			So(errors.Is(err, ErrPersistence), ShouldBeTrue)
			So(p.IsCompleted, ShouldBeTrue)

			saved, _ := m.Get(ctx, "u1")
			So(saved.IsCompleted, ShouldBeTrue)
		})

		Convey("Reset should erase local progress only", func() {
			_, err := m.Skip(ctx, "u1")
			So(err, ShouldBeNil)
			p, err := m.Reset(ctx, "u1")
			So(err, ShouldBeNil)
			So(p.IsCompleted, ShouldBeFalse)
			So(writer.calls, ShouldEqual, 1)

			saved, _ := m.Get(ctx, "u1")
			So(saved.Step, ShouldEqual, StepWelcome)
		})
	})

	Convey("Missing dependencies should fail construction", t, func() {
		_, err := New(nil, &fakeWriter{})
		So(err, ShouldEqual, ErrNilDependency)
	})
}

func TestMachineLocking(t *testing.T) {
	Convey("Given many users moving through onboarding at once", t, func() {
		ctx := context.Background()
		m, err := New(newMemStore(), &fakeWriter{})
		So(err, ShouldBeNil)

		const users = 500
		var wg sync.WaitGroup
		errs := make(chan error, users)
		for i := range users {
			wg.Add(1)
			go func(id string) {
				defer wg.Done()
				if _, err := m.Next(ctx, id); err != nil {
					errs <- err
				}
			}(fmt.Sprintf("user-%d", i))
		}
		wg.Wait()
		close(errs)
		So(len(errs), ShouldEqual, 0)

		Convey("Every user should have advanced exactly once", func() {
			for i := range users {
				p, err := m.Get(ctx, fmt.Sprintf("user-%d", i))
				So(err, ShouldBeNil)
				So(p.Step, ShouldEqual, StepSphereSelection)
			}
		})

		Convey("Lock stripes should stay bounded and stable per user", func() {
			seen := map[uint64]bool{}
			for i := range 10 * users {
				id := fmt.Sprintf("user-%d", i)
				stripe := lockStripe(id)
				So(stripe, ShouldBeLessThan, uint64(lockStripes))
				So(lockStripe(id), ShouldEqual, stripe)
				seen[stripe] = true
			}
			So(len(seen), ShouldBeLessThanOrEqualTo, lockStripes)
			So(len(m.locks), ShouldEqual, lockStripes)
		})
	})
}

func TestProgressJSON(t *testing.T) {
	Convey("Progress should serialize steps by name", t, func() {
		raw, err := json.Marshal(Progress{Step: StepSphereSetup, SelectedSpheres: []string{}, Spheres: []model.LifeSphere{}})
		So(err, ShouldBeNil)
		So(string(raw), ShouldContainSubstring, `"step":"sphere_setup"`)
		So(string(raw), ShouldContainSubstring, `"isCompleted":false`)

		var p Progress
		So(json.Unmarshal([]byte(`{"step":"bogus"}`), &p), ShouldNotBeNil)
	})
}
