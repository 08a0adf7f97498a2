package conductor

import (
	"testing"

	. "github.com/smartystreets/goconvey/convey"
	"traindispatch/internal/hw"
	"traindispatch/internal/hw/track"
	"traindispatch/internal/kernel"
	"traindispatch/internal/physics"
	"traindispatch/internal/route"
)

func newHarness() (*Server, *Client, *track.Graph, *hw.SimBus) {
	g, err := track.Load(track.TrackA)
	if err != nil {
		panic(err)
	}
	sw := hw.NewSwitchState(track.DirStraight)
	bus := hw.NewSimBus(sw)
	calib := physics.NewCalibration()
	srv := New(g, bus, bus, calib, nil, nil)
	k := kernel.New()
	client := srv.Start(k, 1)
	return srv, client, g, bus
}

func TestConductorStartsStoppedTrain(t *testing.T) {
	Convey("Given a stopped train with a nonempty accepted path", t, func() {
		_, client, g, bus := newHarness()
		a1, _ := g.ByName("A1")
		a2, _ := g.ByName("A2")

		client.KinematicsUpdate(58, a1, 0, 0, physics.Steady, 0)
		client.RouteUpdate(route.Route{
			Train: 58,
			Path:  []route.PathNode{{Node: a1}, {Node: a2}},
		})

		Convey("It commands CRUISE speed", func() {
			So(bus.SpeedOf(58), ShouldEqual, Cruise)
		})
	})
}

func TestConductorEmptyPathStopsMovingTrain(t *testing.T) {
	Convey("Given a moving train with no accepted path", t, func() {
		_, client, g, bus := newHarness()
		a1, _ := g.ByName("A1")

		client.KinematicsUpdate(58, a1, 0, 5000, physics.Steady, 10)
		client.RouteUpdate(route.Route{Train: 58, Path: nil})

		Convey("It commands speed 0 for safety", func() {
			So(bus.SpeedOf(58), ShouldEqual, 0)
		})
	})
}

func TestConductorReversePathIgnoredMidReverse(t *testing.T) {
	Convey("Given a train mid-reverse", t, func() {
		_, client, g, bus := newHarness()
		a1, _ := g.ByName("A1")

		client.KinematicsUpdate(58, a1, 0, 0, physics.Steady, 0)
		client.RouteUpdate(route.Route{Train: 58, PerformsRev: true})
		So(len(bus.Log()), ShouldEqual, 1)

		client.RouteUpdate(route.Route{Train: 58, PerformsRev: true})

		Convey("A second reverse directive is ignored while reverse_count > 0", func() {
			So(len(bus.Log()), ShouldEqual, 1)
		})
	})
}
