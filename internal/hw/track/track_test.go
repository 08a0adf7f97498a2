package track

import (
	"testing"

	. "github.com/smartystreets/goconvey/convey"
)

func straightOnly(int) Direction { return DirStraight }

func TestLoadAndNavigate(t *testing.T) {
	Convey("Given Track A loaded", t, func() {
		g, err := Load(TrackA)
		So(err, ShouldBeNil)

		a1, ok := g.ByName("A1")
		So(ok, ShouldBeTrue)
		a5, ok := g.ByName("A5")
		So(ok, ShouldBeTrue)

		Convey("NodeAt resolves a sensor node with a name matching ByName", func() {
			n := g.NodeAt(a1)
			So(n.Name, ShouldEqual, "A1")
			So(n.Kind, ShouldEqual, KindSensor)
		})

		Convey("NextEdge from a non-branch node ignores the switch position", func() {
			e, ok := g.NextEdge(a1, DirCurved)
			So(ok, ShouldBeTrue)
			So(e.Valid, ShouldBeTrue)
		})

		Convey("FindNextSensor walks forward from A1 to the next sensor node", func() {
			next, ok := g.FindNextSensor(a1, straightOnly)
			So(ok, ShouldBeTrue)
			n := g.NodeAt(next)
			So(n.Kind, ShouldEqual, KindSensor)
		})

		Convey("DistanceMM sums edge lengths along the straight path from A1 to A5", func() {
			dist, err := g.DistanceMM(a1, a5, straightOnly)
			So(err, ShouldBeNil)
			So(dist, ShouldBeGreaterThan, 0)
		})

		Convey("DistanceMM to an unreachable node errors rather than looping forever", func() {
			_, err := g.DistanceMM(a5, a1, straightOnly)
			So(err, ShouldNotBeNil)
		})
	})
}

func TestSensorIndex(t *testing.T) {
	Convey("SensorIndex addresses module A sensor 1 at index 0", t, func() {
		So(SensorIndex('A', 1), ShouldEqual, NodeIndex(0))
	})

	Convey("SensorIndex addresses module B sensor 1 sixteen slots after module A", t, func() {
		So(SensorIndex('B', 1), ShouldEqual, NodeIndex(16))
	})
}

func TestNodeOutDegree(t *testing.T) {
	Convey("Given Track A loaded", t, func() {
		g, err := Load(TrackA)
		So(err, ShouldBeNil)

		Convey("Every non-exit node has at least one outgoing edge", func() {
			for i := range g.Nodes {
				n := &g.Nodes[i]
				if n.Kind == KindExit {
					continue
				}
				So(n.OutDegree(), ShouldBeGreaterThan, 0)
			}
		})

		Convey("Reverse is an involution for every node", func() {
			for i := range g.Nodes {
				n := &g.Nodes[i]
				rev := &g.Nodes[n.Reverse]
				So(rev.Reverse, ShouldEqual, NodeIndex(i))
			}
		})
	})
}
