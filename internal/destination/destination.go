/*
Package destination implements the Destination server of spec.md §4.7: the
user-facing "send train X to Y" and "send train X to a new random Y
forever" entry points, wiring together Route and Stop once a train becomes
attributable.
*/
package destination

import (
	"fmt"

	"traindispatch/internal/hw/track"
	"traindispatch/internal/kernel"
	"traindispatch/internal/rng"
)

// LookingSpeed is the notch commanded to a not-yet-attributed train so it
// trips a sensor and becomes trackable.
const LookingSpeed = 10

type router interface {
	SetDestination(train int, node track.NodeIndex)
}

type stopper interface {
	StopTrainAtLocation(train int, node track.NodeIndex)
}

type trainBus interface {
	SetSpeed(train, speed int) error
}

type trainGoal struct {
	target      track.NodeIndex
	hasTarget   bool
	forever     bool
	hasBeenSeen bool // train is known to attribution (has tripped a sensor)
	found       bool // current target has been routed-to since being set
	rngState    *rng.LCG
}

// Server owns per-train goals and runs as a single kernel task.
type Server struct {
	graph    *track.Graph
	route    router
	stop     stopper
	trainBus trainBus
	now      func() uint32

	trains map[int]*trainGoal

	task *kernel.Task
}

func New(graph *track.Graph, route router, stop stopper, trainBus trainBus, now func() uint32) *Server {
	return &Server{
		graph:    graph,
		route:    route,
		stop:     stop,
		trainBus: trainBus,
		now:      now,
		trains:   make(map[int]*trainGoal),
	}
}

func (s *Server) Start(k *kernel.Kernel, priority kernel.Priority) *Client {
	s.task = k.Create(priority, s.run)
	return &Client{server: s, caller: k.Create(priority, func(*kernel.Task) {})}
}

type (
	destinationOnce struct {
		train int
		node  track.NodeIndex
	}
	destinationForever struct{ train int }
	attributedSensor   struct {
		train  int
		sensor track.NodeIndex
	}
	destinationReached struct {
		train    int
		location track.NodeIndex
	}
)

func (s *Server) run(t *kernel.Task) {
	for {
		_, req, reply := t.Receive()
		switch m := req.(type) {
		case destinationOnce:
			s.onDestinationOnce(m.train, m.node)
			reply.Reply(nil)
		case destinationForever:
			s.onDestinationForever(m.train)
			reply.Reply(nil)
		case attributedSensor:
			s.onAttributedSensor(m.train, m.sensor)
			reply.Reply(nil)
		case destinationReached:
			s.onDestinationReached(m.train, m.location)
			reply.Reply(nil)
		default:
			panic(fmt.Sprintf("destination: unknown message %T", req))
		}
	}
}

func (s *Server) ensure(train int) *trainGoal {
	g, ok := s.trains[train]
	if !ok {
		g = &trainGoal{}
		s.trains[train] = g
	}
	return g
}

// onDestinationOnce implements the one-shot "send train X to Y" entry
// point of §4.7. Repeating it with the same target while that target is
// still set issues no further speed command or routing call.
func (s *Server) onDestinationOnce(train int, node track.NodeIndex) {
	g := s.ensure(train)
	if g.hasTarget && !g.forever && g.target == node {
		return
	}
	g.target = node
	g.hasTarget = true
	g.forever = false
	g.found = false

	if g.hasBeenSeen {
		s.route.SetDestination(train, node)
		s.stop.StopTrainAtLocation(train, node)
		g.found = true
		return
	}
	s.trainBus.SetSpeed(train, LookingSpeed)
}

// onDestinationForever seeds an LCG from train*now and assigns the first
// random target; AttributedSensor/DestinationReached events keep it
// cycling thereafter.
func (s *Server) onDestinationForever(train int) {
	g := s.ensure(train)
	g.forever = true
	g.rngState = rng.NewLCG(uint32(train) * s.now())
	s.assignRandomTarget(train, g)
}

func (s *Server) assignRandomTarget(train int, g *trainGoal) {
	node := s.pickRandomSensor(g)
	g.target = node
	g.hasTarget = true
	g.found = false

	if g.hasBeenSeen {
		s.route.SetDestination(train, node)
		s.stop.StopTrainAtLocation(train, node)
		g.found = true
		return
	}
	s.trainBus.SetSpeed(train, LookingSpeed)
}

// pickRandomSensor draws n = |rng()| % 80 and maps it to {module, number}
// per §4.7, rejecting exit nodes by redrawing.
func (s *Server) pickRandomSensor(g *trainGoal) track.NodeIndex {
	for {
		n := g.rngState.NextIndex(80)
		module := byte('A') + byte(n/16)
		number := n%16 + 1
		// SensorIndex's module/number addressing only coincidentally lines up
		// with the stand-in arena's A1..A8 layout; the out-of-range and
		// exit-node checks below exist to redraw past that mismatch rather
		// than to reject genuinely invalid draws.
		idx := track.SensorIndex(module, number)
		if int(idx) >= len(s.graph.Nodes) {
			continue
		}
		if s.graph.NodeAt(idx).Kind == track.KindExit {
			continue
		}
		return idx
	}
}

// onAttributedSensor marks a train as now known to attribution and, if a
// destination is set but not yet routed-to, kicks off routing (invariant
// 5's idempotence: found only flips once per target).
func (s *Server) onAttributedSensor(train int, _ track.NodeIndex) {
	g := s.ensure(train)
	g.hasBeenSeen = true
	if g.hasTarget && !g.found {
		s.route.SetDestination(train, g.target)
		s.stop.StopTrainAtLocation(train, g.target)
		g.found = true
	}
}

// onDestinationReached clears the current target and, for forever-mode
// trains, immediately assigns a new random one.
func (s *Server) onDestinationReached(train int, _ track.NodeIndex) {
	g := s.ensure(train)
	g.hasTarget = false
	g.found = false
	if g.forever {
		s.assignRandomTarget(train, g)
	}
}
