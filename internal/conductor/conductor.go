/*
Package conductor implements the Conductor of spec.md §4.5: it turns a
freshly published Route into discrete actuations — switch throws and
initial speed commands — issued at the right moment given the train's
current kinematics and the controller's command latency.
*/
package conductor

import (
	"fmt"

	"traindispatch/internal/hw"
	"traindispatch/internal/hw/track"
	"traindispatch/internal/kernel"
	"traindispatch/internal/physics"
	"traindispatch/internal/route"
)

// Cruise is the initial speed notch commanded to start a stopped train
// toward an accepted path.
const Cruise = 10

// MinSwitchVelocity is the velocity threshold below which switches are not
// thrown (the train isn't moving fast enough for the window to make sense).
const MinSwitchVelocity = 500

// SwitchCommandLatencyTicks is how many ticks a switch_set_direction
// command takes to reach and be obeyed by the layout.
const SwitchCommandLatencyTicks = 20

// switchWindowUM is how wide the [lower, upper] throw window is, per §4.5's
// "100 mm" margin.
const switchWindowUM = 100 * 1000

// halt reports a bus-level invariant violation (speed/train/switch out of
// range) the way the rest of this server reports a malformed message: these
// can only happen from a programming mistake upstream, never a transient
// condition, so the server halts rather than silently dropping the command.
func halt(err error) {
	if err != nil {
		panic(fmt.Sprintf("conductor: %v", err))
	}
}

type trainState struct {
	speed        int
	direction    physics.Direction
	reverseCount int

	node       track.NodeIndex
	distPastUM int
	velocity   int
	accelKind  physics.AccelKind
	accel      int // centi-µm/tick^2, magnitude in the current regime
}

type calibration interface {
	For(train physics.TrainID) physics.Table
}

// attribution and location both need to hear about every commanded speed
// change to keep their own per-train models (expected sensor, integrated
// kinematics) in step with what the controller actually told the hardware.
type attributionPeer interface {
	SpeedChanged(train, speed int)
}

type locationPeer interface {
	SpeedUpdate(train, speed int)
}

// Server owns per-train actuation state and runs as a single kernel task.
type Server struct {
	graph     *track.Graph
	trainBus  hw.TrainBus
	switchBus hw.SwitchBus
	calib     calibration
	attr      attributionPeer
	loc       locationPeer

	trains map[int]*trainState

	task *kernel.Task
}

func New(graph *track.Graph, trainBus hw.TrainBus, switchBus hw.SwitchBus, calib calibration, attr attributionPeer, loc locationPeer) *Server {
	return &Server{
		graph:     graph,
		trainBus:  trainBus,
		switchBus: switchBus,
		calib:     calib,
		attr:      attr,
		loc:       loc,
		trains:    make(map[int]*trainState),
	}
}

func (s *Server) Start(k *kernel.Kernel, priority kernel.Priority) *Client {
	s.task = k.Create(priority, s.run)
	return &Client{server: s, caller: k.Create(priority, func(*kernel.Task) {})}
}

type (
	routeUpdate struct {
		train       int
		path        []route.PathNode
		performsRev bool
	}
	kinematicsUpdate struct {
		train      int
		node       track.NodeIndex
		distPastUM int
		velocity   int
		accelKind  physics.AccelKind
		commanded  int
	}
	speedAck struct{ train int }
)

func (s *Server) run(t *kernel.Task) {
	for {
		_, req, reply := t.Receive()
		switch m := req.(type) {
		case routeUpdate:
			s.onRouteUpdate(m)
			reply.Reply(nil)
		case kinematicsUpdate:
			ts := s.ensure(m.train)
			ts.node = m.node
			ts.distPastUM = m.distPastUM
			ts.velocity = m.velocity
			ts.accelKind = m.accelKind
			tbl := s.calib.For(physics.TrainID(m.train))
			if m.accelKind == physics.Decelerating || m.accelKind == physics.Stopping {
				ts.accel = tbl.DecelCentiUMPerTick2(m.commanded)
			} else {
				ts.accel = tbl.AccelCentiUMPerTick2(m.commanded)
			}
			reply.Reply(nil)
		case speedAck:
			s.onSpeedAck(m.train)
			reply.Reply(nil)
		default:
			panic(fmt.Sprintf("conductor: unknown message %T", req))
		}
	}
}

func (s *Server) ensure(train int) *trainState {
	ts, ok := s.trains[train]
	if !ok {
		ts = &trainState{}
		s.trains[train] = ts
	}
	return ts
}

// onSpeedAck implements spec.md §4.5's "On SpeedUpdate: if reverse_count >
// 0, decrement" rule.
func (s *Server) onSpeedAck(train int) {
	ts := s.ensure(train)
	if ts.reverseCount > 0 {
		ts.reverseCount--
	}
}

// fanOutSpeed reports a commanded speed change to the peers that keep
// their own per-train models (expected sensor, integrated kinematics)
// synchronized with the controller's actual commands.
func (s *Server) fanOutSpeed(train, speed int) {
	if s.attr != nil {
		s.attr.SpeedChanged(train, speed)
	}
	if s.loc != nil {
		s.loc.SpeedUpdate(train, speed)
	}
}

// onRouteUpdate implements §4.5's actuation policy for a freshly published
// Route.
func (s *Server) onRouteUpdate(m routeUpdate) {
	ts := s.ensure(m.train)

	switch {
	case ts.reverseCount > 0:
		return

	case m.performsRev:
		halt(s.trainBus.Reverse(m.train))
		ts.reverseCount = 2
		if ts.direction == physics.Forward {
			ts.direction = physics.Reverse
		} else {
			ts.direction = physics.Forward
		}
		// reverse_count only unwinds via two real SpeedAck round-trips
		// from the hardware backend (a reversal is a stop-then-restore
		// pair), so a repeated route update while mid-reverse stays
		// blocked by the guard above until both acks land.
		return

	case len(m.path) == 0:
		if ts.velocity != 0 {
			halt(s.trainBus.SetSpeed(m.train, 0))
			ts.speed = 0
			s.fanOutSpeed(m.train, 0)
		}
		return

	case ts.velocity == 0 && ts.accelKind == physics.Steady:
		halt(s.trainBus.SetSpeed(m.train, Cruise))
		ts.speed = Cruise
		s.fanOutSpeed(m.train, Cruise)
		return
	}

	if ts.velocity > MinSwitchVelocity {
		s.throwSwitches(m.path, ts)
	}
}

// distanceRolledDuringLatency closed-form integrates current kinematics
// over SwitchCommandLatencyTicks ticks: dx = v*t + a*t^2/200 (the /100
// from centi-units folded into the standard kinematic a*t^2/2 term).
func distanceRolledDuringLatency(ts *trainState) int {
	t := SwitchCommandLatencyTicks
	dx := ts.velocity * t
	if ts.accelKind != physics.Steady && ts.accel != 0 {
		sign := 1
		if ts.accelKind == physics.Decelerating || ts.accelKind == physics.Stopping {
			sign = -1
		}
		dx += sign * (ts.accel * t * t) / 200
	}
	return dx
}

// throwSwitches computes the [distance_lower, distance_upper] window and
// throws every branch whose cumulative path distance falls inside it.
func (s *Server) throwSwitches(path []route.PathNode, ts *trainState) {
	pickup := physics.PickupToFrontUM(ts.direction)
	distanceLower := ts.distPastUM + distanceRolledDuringLatency(ts) + pickup
	distanceUpper := distanceLower + switchWindowUM

	cumUM := 0
	for i := 0; i < len(path); i++ {
		if cumUM >= distanceLower && cumUM <= distanceUpper {
			node := s.graph.NodeAt(path[i].Node)
			if node.Kind == track.KindBranch {
				dir := track.DirCurved
				if path[i].Direction == track.DirStraight {
					dir = track.DirStraight
				}
				halt(s.switchBus.SetDirection(node.Num, dir))
			}
		}
		if i+1 < len(path) {
			cumUM += s.graph.NodeAt(path[i].Node).Edges[path[i].Direction].LengthMM * 1000
		}
	}
}
