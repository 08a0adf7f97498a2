package hw

import (
	"testing"

	. "github.com/smartystreets/goconvey/convey"
	"traindispatch/internal/hw/track"
)

func TestSimBus(t *testing.T) {
	Convey("Given a fresh SimBus", t, func() {
		sw := NewSwitchState(track.DirStraight)
		bus := NewSimBus(sw)

		Convey("SetSpeed records the commanded speed", func() {
			err := bus.SetSpeed(58, 10)
			So(err, ShouldBeNil)
			So(bus.SpeedOf(58), ShouldEqual, 10)
		})

		Convey("SetSpeed rejects an out-of-range speed", func() {
			err := bus.SetSpeed(58, MaxSpeed+1)
			So(err, ShouldEqual, ErrSpeedOutOfRange)
		})

		Convey("SetSpeed rejects an out-of-range train id", func() {
			err := bus.SetSpeed(MaxTrainID+1, 5)
			So(err, ShouldEqual, ErrTrainOutOfRange)
		})

		Convey("SetDirection rejects an unknown switch number", func() {
			err := bus.SetDirection(999, track.DirCurved)
			So(err, ShouldEqual, ErrSwitchOutOfRange)
		})

		Convey("SetDirection updates the shared switch state", func() {
			err := bus.SetDirection(1, track.DirCurved)
			So(err, ShouldBeNil)
			So(sw.Get(1), ShouldEqual, track.DirCurved)
		})

		Convey("Stop zeroes every train's recorded speed", func() {
			bus.SetSpeed(58, 10)
			bus.SetSpeed(59, 7)
			bus.Stop()
			So(bus.SpeedOf(58), ShouldEqual, 0)
			So(bus.SpeedOf(59), ShouldEqual, 0)
		})

		Convey("Log records commands in issue order", func() {
			bus.SetSpeed(58, 10)
			bus.Reverse(58)
			log := bus.Log()
			So(len(log), ShouldEqual, 2)
			So(log[0], ShouldEqual, "set_speed(58,10)")
			So(log[1], ShouldEqual, "reverse(58)")
		})
	})
}

func TestSwitchState(t *testing.T) {
	Convey("Given a SwitchState defaulting to straight", t, func() {
		sw := NewSwitchState(track.DirStraight)

		Convey("An unset switch reads as the default", func() {
			So(sw.Get(1), ShouldEqual, track.DirStraight)
		})

		Convey("Set then Get round-trips", func() {
			sw.Set(1, track.DirCurved)
			So(sw.Get(1), ShouldEqual, track.DirCurved)
		})

		Convey("Func adapts Get to the track package's callback shape", func() {
			f := sw.Func()
			sw.Set(2, track.DirCurved)
			So(f(2), ShouldEqual, track.DirCurved)
		})
	})
}

func TestDecodeSensorFrame(t *testing.T) {
	Convey("Given a frame with module A sensor 1 and module B sensor 16 tripped", t, func() {
		var frame [10]byte
		frame[0] = 1 << 7 // k=0,m=0,j=7 -> sensor (8-7)+0 = 1
		frame[3] = 1 << 0 // k=1,m=1,j=0 -> sensor (8-0)+8 = 16

		tripped := DecodeSensorFrame(frame)

		Convey("It decodes exactly the two tripped sensors", func() {
			So(len(tripped), ShouldEqual, 2)
		})

		Convey("Every tripped sensor names a valid module letter", func() {
			for _, s := range tripped {
				So(s.Module >= 'A' && s.Module <= 'E', ShouldBeTrue)
			}
		})
	})
}
