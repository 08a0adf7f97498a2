package physics

import (
	"testing"

	. "github.com/smartystreets/goconvey/convey"
)

func TestCalibration(t *testing.T) {
	Convey("Given an empty calibration registry", t, func() {
		c := NewCalibration()

		Convey("An unregistered train falls back to the default table", func() {
			tbl := c.For(TrainID(58))
			So(tbl.SteadyVelocityUMPerTick(10), ShouldEqual, 5025)
		})

		Convey("A registered train overrides the default", func() {
			custom := defaultTable
			custom.VelocityUMPerTick[10] = 9999
			c.Register(TrainID(58), custom)
			So(c.For(TrainID(58)).SteadyVelocityUMPerTick(10), ShouldEqual, 9999)
			So(c.For(TrainID(99)).SteadyVelocityUMPerTick(10), ShouldEqual, 5025)
		})
	})
}

func TestClassifyRegime(t *testing.T) {
	Convey("Classifying a speed change", t, func() {
		So(ClassifyRegime(5000, 3000), ShouldEqual, Decelerating)
		So(ClassifyRegime(5000, 0), ShouldEqual, Stopping)
		So(ClassifyRegime(0, 4000), ShouldEqual, AccelFromStop)
		So(ClassifyRegime(2000, 4000), ShouldEqual, Accelerating)
		So(ClassifyRegime(4000, 4000), ShouldEqual, Steady)
	})
}

func TestIntegrateVelocity(t *testing.T) {
	Convey("Integrating velocity toward a target", t, func() {
		Convey("It clamps exactly at the target without overshoot", func() {
			v := IntegrateVelocity(0, 100, 1000, 2000, Accelerating)
			So(v, ShouldEqual, 100)
		})

		Convey("AccelFromStop halves the acceleration magnitude", func() {
			full := IntegrateVelocity(0, 100000, 10, 2000, Accelerating)
			halved := IntegrateVelocity(0, 100000, 10, 2000, AccelFromStop)
			So(halved, ShouldBeLessThan, full)
			So(halved, ShouldEqual, full/2)
		})

		Convey("It never overshoots past zero when decelerating to stop", func() {
			v := IntegrateVelocity(150, 0, 1000, 2000, Stopping)
			So(v, ShouldEqual, 0)
		})
	})
}

func TestStoppingDistanceAndStopTime(t *testing.T) {
	Convey("Given a velocity and deceleration magnitude", t, func() {
		v, a := 4000, 2000
		Convey("Stopping distance adds the direction-dependent pickup offset", func() {
			fwd := StoppingDistanceUM(v, a, Forward)
			rev := StoppingDistanceUM(v, a, Reverse)
			So(rev-fwd, ShouldEqual, PickupToFrontUM(Reverse)-PickupToFrontUM(Forward))
			So(fwd, ShouldEqual, v*v*100/(2*a)+PickupToFrontUM(Forward))
		})

		Convey("Stop time is proportional to velocity over acceleration", func() {
			So(StopTimeTicks(v, a), ShouldEqual, v*100/a)
		})
	})
}

func TestAccelTicksRemaining(t *testing.T) {
	Convey("Ticks remaining absorbs truncation with a +1", t, func() {
		So(AccelTicksRemaining(0, 4000, 2000), ShouldEqual, 4000*100/2000+1)
	})
}
