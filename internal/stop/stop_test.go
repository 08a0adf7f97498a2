package stop

import (
	"sync"
	"testing"
	"time"

	. "github.com/smartystreets/goconvey/convey"
	"traindispatch/internal/hw"
	"traindispatch/internal/hw/track"
	"traindispatch/internal/kernel"
	"traindispatch/internal/physics"
	"traindispatch/internal/route"
)

// fakeClock is Time-static and resolves every Delay instantly, since Stop
// server tests only care about whether a stop was armed and eventually
// reported, not real-time pacing.
type fakeClock struct {
	mu sync.Mutex
	t  uint32
}

func (f *fakeClock) Time() uint32 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.t
}
func (f *fakeClock) Delay(d uint32) {}

func newHarness() (*Server, *Client, *hw.SimBus, *fakeClock) {
	sw := hw.NewSwitchState(track.DirStraight)
	bus := hw.NewSimBus(sw)
	calib := physics.NewCalibration()
	clk := &fakeClock{}
	srv := New(bus, calib, clk)
	k := kernel.New()
	client := srv.Start(k, 1)
	return srv, client, bus, clk
}

func TestStopArmsWhenWithinStoppingDistance(t *testing.T) {
	Convey("Given a train approaching its stop target within stopping distance", t, func() {
		_, client, bus, _ := newHarness()
		a1, _ := track.Load(track.TrackA)
		dest, _ := a1.ByName("A5")

		client.StopTrainAtLocation(58, dest)
		client.RouteUpdate(route.Route{Train: 58, TotalDistance: 1_000_000}, 999_000, 500, physics.Steady, 5)

		Convey("It commands speed 0", func() {
			So(bus.SpeedOf(58), ShouldEqual, 0)
		})

		Convey("A DestinationReached eventually publishes", func() {
			ch := make(chan DestinationReached, 1)
			client.Subscribe(ch)
			client.StopTrainAtLocation(59, dest)
			client.RouteUpdate(route.Route{Train: 59, TotalDistance: 1_000_000}, 999_000, 500, physics.Steady, 5)
			select {
			case evt := <-ch:
				So(evt.Train, ShouldEqual, 59)
				So(evt.Location, ShouldEqual, dest)
			case <-time.After(time.Second):
				t.Fatal("timed out waiting for DestinationReached")
			}
		})
	})
}

func TestStopDoesNotArmFarFromTarget(t *testing.T) {
	Convey("Given a train far from its stop target", t, func() {
		_, client, bus, _ := newHarness()
		g, _ := track.Load(track.TrackA)
		dest, _ := g.ByName("A5")

		client.StopTrainAtLocation(58, dest)
		client.RouteUpdate(route.Route{Train: 58, TotalDistance: 1_000_000}, 0, 5000, physics.Steady, 10)

		Convey("Speed is left alone", func() {
			So(bus.SpeedOf(58), ShouldEqual, 0) // never commanded, defaults to 0
			So(len(bus.Log()), ShouldEqual, 0)
		})
	})
}
