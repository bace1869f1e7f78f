package dedupe_test

import (
	"context"
	"fmt"
	"sync"
	"testing"

	dedupe "github.com/okian/sonar/internal/domain/dedupe"
	. "github.com/smartystreets/goconvey/convey"
)

func TestInMemoryDeduper(t *testing.T) {
	Convey("Given a new InMemoryDeduper", t, func() {
		ctx := context.Background()

		Convey("When recording a new job", func() {
			d := dedupe.NewInMemoryDeduper()
			seen := d.SeenAndRecord(ctx, "job-1")

			Convey("Then it should be reported as new and counted", func() {
				So(seen, ShouldBeFalse)
				So(d.Size(), ShouldEqual, 1)
			})

			Convey("Then recording it again should report a duplicate", func() {
				So(d.SeenAndRecord(ctx, "job-1"), ShouldBeTrue)
				So(d.Size(), ShouldEqual, 1)
			})
		})

		Convey("When a job is unrecorded", func() {
			d := dedupe.NewInMemoryDeduper()
			d.SeenAndRecord(ctx, "job-1")
			d.SeenAndRecord(ctx, "job-2")
			d.SeenAndRecord(ctx, "job-3")
			d.Unrecord(ctx, "job-2")
			d.Unrecord(ctx, "missing")

			Convey("Then it can be submitted again and the others are kept", func() {
				So(d.Size(), ShouldEqual, 2)
				So(d.SeenAndRecord(ctx, "job-2"), ShouldBeFalse)
				So(d.SeenAndRecord(ctx, "job-1"), ShouldBeTrue)
				So(d.SeenAndRecord(ctx, "job-3"), ShouldBeTrue)
			})
		})

		Convey("When the bound is reached", func() {
			d := dedupe.NewInMemoryDeduper(dedupe.WithMaxSize(3))
			for i := 1; i <= 4; i++ {
				d.SeenAndRecord(ctx, fmt.Sprintf("job-%d", i))
			}

			Convey("Then the oldest job should be forgotten first", func() {
				So(d.Size(), ShouldEqual, 3)
				So(d.SeenAndRecord(ctx, "job-4"), ShouldBeTrue)
				So(d.SeenAndRecord(ctx, "job-2"), ShouldBeTrue)
				So(d.SeenAndRecord(ctx, "job-1"), ShouldBeFalse)
			})
		})

		Convey("When unbounded", func() {
			d := dedupe.NewInMemoryDeduper(dedupe.WithMaxSize(0))
			for i := range 1000 {
				d.SeenAndRecord(ctx, fmt.Sprintf("job-%d", i))
			}

			Convey("Then nothing should be evicted", func() {
				So(d.Size(), ShouldEqual, 1000)
				So(d.SeenAndRecord(ctx, "job-0"), ShouldBeTrue)
			})
		})

		Convey("When many goroutines race on the same ids", func() {
			d := dedupe.NewInMemoryDeduper(dedupe.WithMaxSize(10_000))
			var (
				wg    sync.WaitGroup
				mu    sync.Mutex
				fresh int
			)
			for range 8 {
				wg.Add(1)
				go func() {
					defer wg.Done()
					for i := range 100 {
						if !d.SeenAndRecord(ctx, fmt.Sprintf("job-%d", i)) {
							mu.Lock()
							fresh++
							mu.Unlock()
						}
					}
				}()
			}
			wg.Wait()

			Convey("Then each id should be new exactly once", func() {
				So(fresh, ShouldEqual, 100)
				So(d.Size(), ShouldEqual, 100)
			})
		})
	})
}
