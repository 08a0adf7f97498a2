package location

import (
	"testing"

	. "github.com/smartystreets/goconvey/convey"
	"traindispatch/internal/hw"
	"traindispatch/internal/hw/track"
	"traindispatch/internal/kernel"
	"traindispatch/internal/physics"
)

type fakeClock struct{ t uint32 }

func (f *fakeClock) Time() uint32  { return f.t }
func (f *fakeClock) advance(d int) { f.t += uint32(d) }

func newHarness() (*Server, *Client, *fakeClock) {
	g, err := track.Load(track.TrackA)
	if err != nil {
		panic(err)
	}
	sw := hw.NewSwitchState(track.DirStraight)
	calib := physics.NewCalibration()
	clk := &fakeClock{t: 0}
	srv := New(g, sw, calib, clk)
	k := kernel.New()
	client := srv.Start(k, 1)
	return srv, client, clk
}

func TestIntegrationNeverGoesNegative(t *testing.T) {
	Convey("Given a train commanded to accelerate from stop", t, func() {
		_, client, clk := newHarness()
		client.SpeedUpdate(58, 10)

		Convey("Velocity stays within [0, 1.05*vmax] across many ticks (invariant 1)", func() {
			vmax := physics.NewCalibration().For(58).SteadyVelocityUMPerTick(physics.MaxSpeed)
			for i := 0; i < 500; i++ {
				clk.advance(TickMS / 10)
				client.Tick()
				loc := client.GetLocation(58)
				So(loc.VelocityUMTick, ShouldBeGreaterThanOrEqualTo, 0)
				So(loc.VelocityUMTick, ShouldBeLessThanOrEqualTo, int(float64(vmax)*1.05))
			}
		})
	})
}

func TestStoppingNeverMovesBackwards(t *testing.T) {
	Convey("Given a moving train commanded to stop", t, func() {
		_, client, clk := newHarness()
		client.SpeedUpdate(58, 10)
		for i := 0; i < 2000; i++ {
			clk.advance(TickMS / 10)
			client.Tick()
		}
		before := client.GetLocation(58)

		client.SpeedUpdate(58, 0)
		clk.advance(physics.AverageTrainCommandLatency)
		client.Tick()

		Convey("Position never decreases tick over tick", func() {
			last := before.DistancePastNode
			for i := 0; i < 300; i++ {
				clk.advance(TickMS / 10)
				client.Tick()
				loc := client.GetLocation(58)
				So(loc.DistancePastNode, ShouldBeGreaterThanOrEqualTo, last)
				last = loc.DistancePastNode
			}
			final := client.GetLocation(58)
			So(final.VelocityUMTick, ShouldEqual, 0)
		})
	})
}
