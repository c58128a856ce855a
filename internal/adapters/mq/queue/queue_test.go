package queue

import (
	"context"
	"testing"
	"time"

	. "github.com/smartystreets/goconvey/convey"
)

func TestInMemoryQueue(t *testing.T) {
	ctx := context.Background()

	Convey("Given a queue of capacity two", t, func() {
		q := NewInMemoryQueue(WithCapacity(2))
		So(q.Capacity(), ShouldEqual, 2)
		So(q.Len(ctx), ShouldEqual, 0)

		Convey("When it is filled", func() {
			So(q.Enqueue(ctx, Snapshot{Version: 1}), ShouldBeNil)
			So(q.Enqueue(ctx, Snapshot{Version: 2}), ShouldBeNil)

			Convey("Then a third snapshot is refused", func() {
				So(q.Enqueue(ctx, Snapshot{Version: 3}), ShouldEqual, ErrFull)
				So(q.Len(ctx), ShouldEqual, 2)
			})

			Convey("Then snapshots come out in arrival order", func() {
				dctx, cancel := context.WithCancel(ctx)
				defer cancel()
				ch := q.Dequeue(dctx)
				So((<-ch).Version, ShouldEqual, 1)
				So((<-ch).Version, ShouldEqual, 2)
			})

			Convey("Then closing drains what is buffered and ends the stream", func() {
				So(q.Close(), ShouldBeNil)
				So(q.Close(), ShouldBeNil)
				So(q.IsClosed(), ShouldBeTrue)
				So(q.Enqueue(ctx, Snapshot{Version: 3}), ShouldEqual, ErrClosed)

				var got []int64
				for s := range q.Dequeue(ctx) {
					got = append(got, s.Version)
				}
				So(got, ShouldResemble, []int64{1, 2})
			})
		})

		Convey("When the consumer context is cancelled", func() {
			dctx, cancel := context.WithCancel(ctx)
			ch := q.Dequeue(dctx)
			So(q.Enqueue(ctx, Snapshot{Version: 1}), ShouldBeNil)
			cancel()

			Convey("Then the stream ends", func() {
				deadline := time.After(time.Second)
				closed := false
				for !closed {
					select {
					case _, ok := <-ch:
						closed = !ok
					case <-deadline:
						closed = true
						So("stream still open", ShouldBeEmpty)
					}
				}
			})
		})

		Convey("When the producer context is already cancelled and the queue is full", func() {
			So(q.Enqueue(ctx, Snapshot{Version: 1}), ShouldBeNil)
			So(q.Enqueue(ctx, Snapshot{Version: 2}), ShouldBeNil)
			cctx, cancel := context.WithCancel(ctx)
			cancel()

			Convey("Then the enqueue fails", func() {
				So(q.Enqueue(cctx, Snapshot{Version: 3}), ShouldNotBeNil)
			})
		})
	})
}
