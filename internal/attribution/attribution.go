/*
Package attribution implements the Attribution server of spec.md §4.2: it
binds raw sensor trips to tracked trains and maintains each tracked train's
current_node/next_expected_node pair.

The server is a single goroutine's receive loop (via kernel.Task), so all
state mutation below is serialized exactly as spec.md §5 requires — no
locking inside this package.
*/
package attribution

import (
	"fmt"

	"traindispatch/internal/hw"
	"traindispatch/internal/hw/track"
	"traindispatch/internal/kernel"
	"traindispatch/internal/physics"
)

// MaxTracked is the spec's MAX_TRACKED: at most this many trains are
// simultaneously attributed.
const MaxTracked = 6

// AverageSensorLatency biases a trip's reported time back to approximate
// the instant the train physically crossed the contact (spec.md §3).
const AverageSensorLatency = 7

// Entry is one tracked train's attribution state.
type Entry struct {
	Train            int
	CurrentNode      track.NodeIndex
	NextExpectedNode track.NodeIndex // track.Invalid if dead end
}

// AttributedSensor is published on every successful match.
type AttributedSensor struct {
	Train       int
	Sensor      track.NodeIndex
	TimeTripped uint32
}

// now is the minimal clock contract this server needs.
type now interface{ Time() uint32 }

// Server owns all attribution state and runs as a single kernel task.
type Server struct {
	graph    *track.Graph
	switches *hw.SwitchState
	clock    now

	tracked     map[int]*Entry
	lostTrains  []int
	subscribers []chan AttributedSensor
	lastMatched AttributedSensor

	task *kernel.Task
}

// New constructs an attribution server bound to graph/switches/clock. Call
// Start to launch its receive loop.
func New(graph *track.Graph, switches *hw.SwitchState, clock now) *Server {
	return &Server{
		graph:    graph,
		switches: switches,
		clock:    clock,
		tracked:  make(map[int]*Entry),
	}
}

// Start launches the server's receive loop as a kernel task and returns a
// Client bound to it.
func (s *Server) Start(k *kernel.Kernel, priority kernel.Priority) *Client {
	s.task = k.Create(priority, s.run)
	return &Client{server: s, caller: k.Create(priority, func(*kernel.Task) {})}
}

// Request variants, one struct per spec.md §4.2 message.
type (
	sensorChanged     struct{ sensor track.NodeIndex }
	speedChanged      struct{ train, speed int }
	directionChanged struct {
		train int
		dir   physics.Direction
	}
	switchChanged     struct{ sw int }
	subscribe         struct{ ch chan AttributedSensor }
	getTrackedTrains  struct{}
	nextExpectedNodeQ struct{ train int }
)

func (s *Server) run(t *kernel.Task) {
	for {
		_, req, reply := t.Receive()
		switch m := req.(type) {
		case sensorChanged:
			s.onSensorChanged(m.sensor)
			reply.Reply(nil)
		case speedChanged:
			s.onSpeedChanged(m.train, m.speed)
			reply.Reply(nil)
		case directionChanged:
			s.onDirectionChanged(m.train, m.dir)
			reply.Reply(nil)
		case switchChanged:
			s.onSwitchChanged(m.sw)
			reply.Reply(nil)
		case subscribe:
			s.subscribers = append(s.subscribers, m.ch)
			reply.Reply(nil)
		case getTrackedTrains:
			reply.Reply(s.trackedSnapshot())
		case nextExpectedNodeQ:
			e, ok := s.tracked[m.train]
			if !ok {
				reply.Reply(track.Invalid)
				continue
			}
			reply.Reply(e.NextExpectedNode)
		default:
			panic(fmt.Sprintf("attribution: unknown message %T", req))
		}
	}
}

func (s *Server) trackedSnapshot() []Entry {
	out := make([]Entry, 0, len(s.tracked))
	for _, e := range s.tracked {
		out = append(out, *e)
	}
	return out
}

// onSensorChanged implements the four-step match algorithm of spec.md §4.2.
func (s *Server) onSensorChanged(sensor track.NodeIndex) {
	// Step 1: direct match.
	for _, e := range s.tracked {
		if e.NextExpectedNode == sensor {
			s.match(e, sensor)
			return
		}
	}
	// Step 2: off-by-one tolerance.
	for _, e := range s.tracked {
		if e.NextExpectedNode == track.Invalid {
			continue
		}
		afterNext, ok := s.graph.FindNextSensor(e.NextExpectedNode, s.switches.Func())
		if ok && afterNext == sensor {
			s.match(e, sensor)
			return
		}
	}
	// Step 3: adopt a lost train, if fewer than MaxTracked are tracked.
	if len(s.lostTrains) > 0 && len(s.tracked) < MaxTracked {
		train := s.lostTrains[0]
		s.lostTrains = s.lostTrains[1:]
		e := &Entry{Train: train}
		s.tracked[train] = e
		s.match(e, sensor)
		return
	}
	// Step 4: drop (no state changes, per invariant 3 of §8; nothing is
	// logged).
}

func (s *Server) match(e *Entry, sensor track.NodeIndex) {
	e.CurrentNode = sensor
	next, ok := s.graph.FindNextSensor(sensor, s.switches.Func())
	if !ok {
		next = track.Invalid
	}
	e.NextExpectedNode = next

	evt := AttributedSensor{
		Train:       e.Train,
		Sensor:      sensor,
		TimeTripped: s.clock.Time() - AverageSensorLatency,
	}
	s.lastMatched = evt
	for _, ch := range s.subscribers {
		select {
		case ch <- evt:
		default:
		}
	}
}

func (s *Server) onSpeedChanged(train, speed int) {
	if speed <= 0 {
		return
	}
	if _, ok := s.tracked[train]; ok {
		return
	}
	for _, t := range s.lostTrains {
		if t == train {
			return
		}
	}
	s.lostTrains = append(s.lostTrains, train)
}

// onDirectionChanged swaps current_node/next_expected_node via their
// reverse pointers, per spec.md §4.2. This is an open question per
// spec.md §9: it is a no-op (not an assert) when the train is not yet
// tracked, preserved as-is since behaviour is otherwise unspecified.
func (s *Server) onDirectionChanged(train int, _ physics.Direction) {
	e, ok := s.tracked[train]
	if !ok {
		return
	}
	oldCurrent, oldNext := e.CurrentNode, e.NextExpectedNode
	if oldNext == track.Invalid {
		return
	}
	e.CurrentNode = s.graph.NodeAt(oldNext).Reverse
	e.NextExpectedNode = s.graph.NodeAt(oldCurrent).Reverse
}

// onSwitchChanged recomputes next_expected_node for every tracked train
// whose next upcoming branch is sw and which has not yet passed it.
func (s *Server) onSwitchChanged(sw int) {
	for _, e := range s.tracked {
		if e.NextExpectedNode == track.Invalid {
			continue
		}
		if s.nextBranchIs(e.CurrentNode, sw) {
			next, ok := s.graph.FindNextSensor(e.CurrentNode, s.switches.Func())
			if !ok {
				next = track.Invalid
			}
			e.NextExpectedNode = next
		}
	}
}

// nextBranchIs walks forward from node, through sensors and other nodes
// alike, looking for the first branch encountered, reporting whether it is
// switch sw.
func (s *Server) nextBranchIs(node track.NodeIndex, sw int) bool {
	cur := node
	for steps := 0; steps < len(s.graph.Nodes)+1; steps++ {
		n := s.graph.NodeAt(cur)
		if n.Kind == track.KindBranch {
			return n.Num == sw
		}
		var pos track.Direction
		e, ok := s.graph.NextEdge(cur, pos)
		if !ok {
			return false
		}
		cur = e.Dest
	}
	return false
}
