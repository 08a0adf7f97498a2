package attribution

import (
	"testing"

	. "github.com/smartystreets/goconvey/convey"
	"traindispatch/internal/hw"
	"traindispatch/internal/hw/track"
	"traindispatch/internal/kernel"
	"traindispatch/internal/physics"
)

// fakeClock is a fixed/settable clock, avoiding a dependency on real time
// in these tests.
type fakeClock struct{ t uint32 }

func (f *fakeClock) Time() uint32 { return f.t }

func newHarness() (*Server, *Client, *track.Graph, *fakeClock) {
	g, err := track.Load(track.TrackA)
	if err != nil {
		panic(err)
	}
	sw := hw.NewSwitchState(track.DirStraight)
	clk := &fakeClock{t: 1000}
	srv := New(g, sw, clk)
	k := kernel.New()
	client := srv.Start(k, 1)
	return srv, client, g, clk
}

func TestSensorAttribution(t *testing.T) {
	Convey("Given a running attribution server on TrackA", t, func() {
		_, client, g, clk := newHarness()

		Convey("S3 — a lost train is adopted by the first unmatched trip", func() {
			client.SpeedChanged(63, 10)

			a1, _ := g.ByName("A1")
			sub := make(chan AttributedSensor, 1)
			client.Subscribe(sub)
			client.SensorChanged(a1)

			evt := <-sub
			So(evt.Train, ShouldEqual, 63)
			So(evt.Sensor, ShouldEqual, a1)
			So(evt.TimeTripped, ShouldEqual, clk.Time()-AverageSensorLatency)

			tracked := client.GetTrackedTrains()
			So(len(tracked), ShouldEqual, 1)
			So(tracked[0].Train, ShouldEqual, 63)
		})

		Convey("A trip with no candidate train changes nothing (invariant 3)", func() {
			a1, _ := g.ByName("A1")
			client.SensorChanged(a1)
			So(client.GetTrackedTrains(), ShouldBeEmpty)
		})

		Convey("S1 — pass-through: next_expected advances on direct match", func() {
			client.SpeedChanged(58, 10)
			a1, _ := g.ByName("A1")
			a2, _ := g.ByName("A2")
			client.SensorChanged(a1) // adopts 58 at A1, next_expected becomes A2

			So(client.NextExpectedNode(58), ShouldEqual, a2)

			client.SensorChanged(a2)
			a3, _ := g.ByName("A3")
			So(client.NextExpectedNode(58), ShouldEqual, a3)
		})

		Convey("S2 — off-by-one: skipping the expected sensor still matches", func() {
			client.SpeedChanged(58, 10)
			a1, _ := g.ByName("A1")
			a2, _ := g.ByName("A2")
			a3, _ := g.ByName("A3")
			client.SensorChanged(a1) // next_expected = A2

			client.SensorChanged(a3) // A3 is the sensor after A2: off-by-one match
			tracked := client.GetTrackedTrains()
			So(tracked[0].CurrentNode, ShouldEqual, a3)
			So(client.NextExpectedNode(58), ShouldNotEqual, a2)
		})
	})
}

func TestDirectionReversalInvolution(t *testing.T) {
	Convey("Given a tracked train", t, func() {
		_, client, g, _ := newHarness()
		client.SpeedChanged(58, 10)
		a1, _ := g.ByName("A1")
		client.SensorChanged(a1)

		before := client.GetTrackedTrains()[0]

		Convey("Two direction changes restore current/next to their original values", func() {
			client.DirectionChanged(58, physics.Reverse)
			client.DirectionChanged(58, physics.Forward)

			after := client.GetTrackedTrains()[0]
			So(after.CurrentNode, ShouldEqual, before.CurrentNode)
			So(after.NextExpectedNode, ShouldEqual, before.NextExpectedNode)
		})
	})
}
