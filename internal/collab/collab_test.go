package collab

import (
	"testing"
	"time"

	. "github.com/smartystreets/goconvey/convey"
	"traindispatch/internal/kernel"
)

func TestNameServer(t *testing.T) {
	Convey("Given a name server", t, func() {
		ns := NewNameServer()

		Convey("WhoIs fails for an unregistered name", func() {
			_, err := ns.WhoIs("location")
			So(err, ShouldEqual, ErrNameNotFound)
		})

		Convey("RegisterAs then WhoIs resolves the bound tid", func() {
			ns.RegisterAs("location", kernel.TaskID(7))
			tid, err := ns.WhoIs("location")
			So(err, ShouldBeNil)
			So(tid, ShouldEqual, kernel.TaskID(7))
		})

		Convey("Re-registering a name overwrites the prior binding", func() {
			ns.RegisterAs("location", kernel.TaskID(7))
			ns.RegisterAs("location", kernel.TaskID(9))
			tid, err := ns.WhoIs("location")
			So(err, ShouldBeNil)
			So(tid, ShouldEqual, kernel.TaskID(9))
		})
	})
}

func TestClock(t *testing.T) {
	Convey("Given a running clock", t, func() {
		c := NewClock()
		defer c.Stop()

		Convey("Time advances monotonically", func() {
			t0 := c.Time()
			time.Sleep(Tick * 5)
			So(c.Time(), ShouldBeGreaterThan, t0)
		})

		Convey("Delay blocks until the requested number of ticks elapse", func() {
			start := c.Time()
			done := make(chan struct{})
			go func() {
				c.Delay(3)
				close(done)
			}()

			select {
			case <-done:
				So(c.Time(), ShouldBeGreaterThanOrEqualTo, start+3)
			case <-time.After(time.Second):
				t.Fatal("Delay did not return in time")
			}
		})

		Convey("DelayUntil returns immediately for a past deadline", func() {
			done := make(chan struct{})
			go func() {
				c.DelayUntil(0)
				close(done)
			}()
			select {
			case <-done:
			case <-time.After(time.Second):
				t.Fatal("DelayUntil blocked on a past deadline")
			}
		})
	})
}
