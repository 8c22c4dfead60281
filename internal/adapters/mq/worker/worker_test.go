package worker_test

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/Aygren/balendip-sub000/internal/adapters/mq/queue"
	"github.com/Aygren/balendip-sub000/internal/adapters/mq/worker"
	"github.com/smartystreets/goconvey/convey"
)

type mockQueue struct {
	jobs chan queue.Job
	once sync.Once
}

func newMockQueue() *mockQueue {
	return &mockQueue{jobs: make(chan queue.Job, 16)}
}

func (mq *mockQueue) Dequeue(ctx context.Context) <-chan queue.Job { return mq.jobs }

func (mq *mockQueue) Close() error {
	mq.once.Do(func() { close(mq.jobs) })
	return nil
}

func (mq *mockQueue) add(j queue.Job) { mq.jobs <- j }

func waitFor(cond func() bool) bool {
	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return true
		}
		time.Sleep(5 * time.Millisecond)
	}
	return cond()
}

func TestInMemoryWorker(t *testing.T) {
	convey.Convey("Given a running InMemoryWorker", t, func() {
		q := newMockQueue()
		w := worker.NewInMemoryWorker(q, worker.WithName("test-worker"), worker.WithJobTimeout(50*time.Millisecond))
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()
		go w.Run(ctx)

		convey.Convey("When a job is queued", func() {
			var ran atomic.Int32
			q.add(queue.Job{Key: "spheres:list:u1", Run: func(context.Context) error {
				ran.Add(1)
				return nil
			}})

			convey.Convey("Then it should run exactly once", func() {
				convey.So(waitFor(func() bool { return ran.Load() == 1 }), convey.ShouldBeTrue)
			})
		})

		convey.Convey("When a job fails or panics", func() {
			var after atomic.Bool
			q.add(queue.Job{Key: "bad", Run: func(context.Context) error { return errors.New("boom") }})
			q.add(queue.Job{Key: "panic", Run: func(context.Context) error { panic("kaboom") }})
			q.add(queue.Job{Key: "good", Run: func(context.Context) error {
				after.Store(true)
				return nil
			}})

			convey.Convey("Then the worker should keep processing", func() {
				convey.So(waitFor(after.Load), convey.ShouldBeTrue)
			})
		})

		convey.Convey("When a job exceeds its timeout", func() {
			var expired atomic.Bool
			q.add(queue.Job{Key: "slow", Run: func(jobCtx context.Context) error {
				<-jobCtx.Done()
				expired.Store(errors.Is(jobCtx.Err(), context.DeadlineExceeded))
				return jobCtx.Err()
			}})

			convey.Convey("Then its context should be cancelled", func() {
				convey.So(waitFor(expired.Load), convey.ShouldBeTrue)
			})
		})

		convey.Convey("When shutting down", func() {
			shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
			defer shutdownCancel()

			convey.So(w.Shutdown(shutdownCtx), convey.ShouldBeNil)
			convey.So(w.Shutdown(shutdownCtx), convey.ShouldBeNil)
		})
	})
}

func TestWorkerPool(t *testing.T) {
	convey.Convey("Given a worker pool over a real queue", t, func() {
		q := queue.NewInMemoryQueue(queue.WithCapacity(64))
		pool := worker.NewPool(3, q)
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()
		pool.Start(ctx)

		convey.So(pool.Size(), convey.ShouldEqual, 3)

		convey.Convey("When many jobs are submitted", func() {
			var ran atomic.Int32
			for i := 0; i < 20; i++ {
				err := q.Submit("k", func(context.Context) error {
					ran.Add(1)
					return nil
				})
				convey.So(err, convey.ShouldBeNil)
			}

			convey.Convey("Then all of them should run", func() {
				convey.So(waitFor(func() bool { return ran.Load() == 20 }), convey.ShouldBeTrue)
			})
		})

		convey.Convey("When shutting down", func() {
			shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), time.Second)
			defer shutdownCancel()

			convey.So(pool.Shutdown(shutdownCtx), convey.ShouldBeNil)

			convey.Convey("Then the queue should reject new jobs", func() {
				convey.So(errors.Is(q.Submit("late", func(context.Context) error { return nil }), queue.ErrQueueClosed), convey.ShouldBeTrue)
			})
		})
	})
}

func TestWorkerPoolDefaultCount(t *testing.T) {
	convey.Convey("Given a pool created with a zero count", t, func() {
		pool := worker.NewPool(0, newMockQueue(), worker.WithPoolJobTimeout(time.Second))
		convey.So(pool.Size(), convey.ShouldBeGreaterThan, 0)
	})
}
