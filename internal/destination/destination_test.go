package destination

import (
	"testing"

	. "github.com/smartystreets/goconvey/convey"
	"traindispatch/internal/hw/track"
	"traindispatch/internal/kernel"
)

type fakeRouter struct{ calls []track.NodeIndex }

func (f *fakeRouter) SetDestination(train int, node track.NodeIndex) { f.calls = append(f.calls, node) }

type fakeStopper struct{ calls []track.NodeIndex }

func (f *fakeStopper) StopTrainAtLocation(train int, node track.NodeIndex) {
	f.calls = append(f.calls, node)
}

type fakeBus struct{ speeds map[int]int }

func (f *fakeBus) SetSpeed(train, speed int) error {
	if f.speeds == nil {
		f.speeds = make(map[int]int)
	}
	f.speeds[train] = speed
	return nil
}

func newHarness() (*Server, *Client, *fakeRouter, *fakeStopper, *fakeBus) {
	g, err := track.Load(track.TrackA)
	if err != nil {
		panic(err)
	}
	r := &fakeRouter{}
	st := &fakeStopper{}
	bus := &fakeBus{}
	srv := New(g, r, st, bus, func() uint32 { return 42 })
	k := kernel.New()
	client := srv.Start(k, 1)
	return srv, client, r, st, bus
}

func TestDestinationOnceBeforeAttribution(t *testing.T) {
	Convey("Given a train not yet known to attribution", t, func() {
		_, client, route, stop, bus := newHarness()
		g, _ := track.Load(track.TrackA)
		a5, _ := g.ByName("A5")

		client.DestinationOnce(58, a5)

		Convey("It is cranked to LOOKING_SPEED instead of routed immediately", func() {
			So(bus.speeds[58], ShouldEqual, LookingSpeed)
			So(route.calls, ShouldBeEmpty)
			So(stop.calls, ShouldBeEmpty)
		})

		Convey("Once attribution reports the train, routing kicks off", func() {
			client.AttributedSensor(58, a5)
			So(route.calls, ShouldResemble, []track.NodeIndex{a5})
			So(stop.calls, ShouldResemble, []track.NodeIndex{a5})
		})
	})
}

func TestDestinationOnceAlreadyAttributed(t *testing.T) {
	Convey("Given a train already known to attribution", t, func() {
		_, client, route, stop, _ := newHarness()
		g, _ := track.Load(track.TrackA)
		a5, _ := g.ByName("A5")

		client.AttributedSensor(58, a5)
		client.DestinationOnce(58, a5)

		Convey("Routing happens immediately", func() {
			So(route.calls, ShouldResemble, []track.NodeIndex{a5})
			So(stop.calls, ShouldResemble, []track.NodeIndex{a5})
		})
	})
}

func TestDestinationForeverReassignsOnArrival(t *testing.T) {
	Convey("Given an attributed train with a forever destination", t, func() {
		_, client, route, _, _ := newHarness()
		client.AttributedSensor(63, track.Invalid)
		client.DestinationForever(63)

		So(len(route.calls), ShouldEqual, 1)
		first := route.calls[0]

		Convey("Reaching the target assigns a new random target", func() {
			client.DestinationReached(63, first)
			So(len(route.calls), ShouldEqual, 2)
		})
	})
}
