/*
Package route implements the Route server of spec.md §4.4: on every
location update for a train with a destination, recompute the shortest
forward path and the shortest stop-then-reverse path, pick the cheaper,
check it for collisions against other trains' cached paths, and publish
the result.
*/
package route

import (
	"fmt"

	"traindispatch/internal/hw/track"
	"traindispatch/internal/kernel"
	"traindispatch/internal/physics"
)

// MinReverseConfidence is the velocity threshold (µm/tick) above which a
// reverse path is still worth considering alongside the forward one.
const MinReverseConfidence = 3000

// AllowableOverlap is how close in time (ticks) two trains may cross the
// same node before it counts as a collision.
const AllowableOverlap = 100

// maxPlanningAttempts bounds the collision-avoidance retry loop.
const maxPlanningAttempts = 3

// blockedRadiusUM is the reservation radius around a stationary train.
const blockedRadiusUM = 200000

// PathNode is one stop along a published route.
type PathNode struct {
	Node          track.NodeIndex
	Direction     track.Direction // edge taken out of this node
	ExpectedArriv int             // ticks from now
	TTrippedAt    int
}

// Route is published whenever a train's path is recomputed.
type Route struct {
	Train         int
	Path          []PathNode
	PerformsRev   bool
	TotalDistance int // µm
}

type destination struct {
	node  track.NodeIndex
	valid bool
}

type trainTrack struct {
	id          int
	dest        destination
	node        track.NodeIndex
	distPastUM  int
	velocity    int // µm/tick
	accelKind   physics.AccelKind
	commanded   int
	stationary  bool
	lastPath    []PathNode
	lastPathRev bool
	lastTotalUM int
	lastSeenAt  int
}

type calibration interface {
	For(train physics.TrainID) physics.Table
}

type switchPos interface {
	Func() func(sw int) track.Direction
}

type clock interface{ Time() uint32 }

// Server owns all routing state and runs as a single kernel task.
type Server struct {
	graph    *track.Graph
	switches switchPos
	calib    calibration
	clk      clock

	trains      map[int]*trainTrack
	subscribers []chan Route

	task *kernel.Task
}

func New(graph *track.Graph, switches switchPos, calib calibration, clk clock) *Server {
	return &Server{
		graph:    graph,
		switches: switches,
		calib:    calib,
		clk:      clk,
		trains:   make(map[int]*trainTrack),
	}
}

func (s *Server) Start(k *kernel.Kernel, priority kernel.Priority) *Client {
	s.task = k.Create(priority, s.run)
	return &Client{server: s, caller: k.Create(priority, func(*kernel.Task) {})}
}

type (
	locationUpdate struct {
		train      int
		node       track.NodeIndex
		distPastUM int
		velocity   int
		accelKind  physics.AccelKind
		commanded  int
	}
	setDestination struct {
		train int
		node  track.NodeIndex
	}
	clearDestination struct{ train int }
	subscribe        struct{ ch chan Route }
	getLastRoute     struct{ train int }
)

func (s *Server) run(t *kernel.Task) {
	for {
		_, req, reply := t.Receive()
		switch m := req.(type) {
		case locationUpdate:
			s.onLocationUpdate(m)
			reply.Reply(nil)
		case setDestination:
			s.ensure(m.train).dest = destination{node: m.node, valid: true}
			reply.Reply(nil)
		case clearDestination:
			s.ensure(m.train).dest = destination{}
			reply.Reply(nil)
		case subscribe:
			s.subscribers = append(s.subscribers, m.ch)
			reply.Reply(nil)
		case getLastRoute:
			tt, ok := s.trains[m.train]
			if !ok {
				reply.Reply(Route{Train: m.train})
				continue
			}
			reply.Reply(Route{Train: m.train, Path: tt.lastPath, PerformsRev: tt.lastPathRev, TotalDistance: tt.lastTotalUM})
		default:
			panic(fmt.Sprintf("route: unknown message %T", req))
		}
	}
}

func (s *Server) ensure(train int) *trainTrack {
	tt, ok := s.trains[train]
	if !ok {
		tt = &trainTrack{id: train, node: track.Invalid}
		s.trains[train] = tt
	}
	return tt
}

// onLocationUpdate is the per-train entry point of spec.md §4.4's algorithm.
func (s *Server) onLocationUpdate(m locationUpdate) {
	tt := s.ensure(m.train)
	tt.node = m.node
	tt.distPastUM = m.distPastUM
	tt.velocity = m.velocity
	tt.accelKind = m.accelKind
	tt.commanded = m.commanded
	tt.stationary = m.velocity == 0 && m.accelKind == physics.Steady
	tt.lastSeenAt = int(s.clk.Time())

	if !tt.dest.valid {
		return
	}

	if tt.node == tt.dest.node {
		path := []PathNode{{Node: tt.node, Direction: track.DirAhead}}
		s.accept(tt, path, false, 0)
		return
	}

	blocked := s.computeBlockedNodes(m.train)

	for attempt := 0; attempt < maxPlanningAttempts; attempt++ {
		path, performsRev, totalUM, ok := s.planOnce(tt, blocked)
		if !ok {
			continue
		}
		collideNode, collided := s.firstCollision(m.train, path)
		if !collided {
			s.accept(tt, path, performsRev, totalUM)
			return
		}
		blocked[collideNode] = true
		blocked[s.graph.NodeAt(collideNode).Reverse] = true
	}

	s.accept(tt, nil, false, 0)
}

// planOnce runs one forward+reverse planning attempt per step 2a-2c.
func (s *Server) planOnce(tt *trainTrack, blocked map[track.NodeIndex]bool) ([]PathNode, bool, int, bool) {
	fwd := dijkstra(s.graph, tt.node, tt.dest.node, blocked)

	var (
		revPath   dijkstraResult
		revPrefix []track.NodeIndex
		haveRev   bool
	)
	if tt.velocity == 0 || tt.velocity >= MinReverseConfidence {
		if prefix, ok := s.coastingPrefix(tt, blocked); ok {
			revStart := prefix[len(prefix)-1]
			revStart = s.graph.NodeAt(revStart).Reverse
			r := dijkstra(s.graph, revStart, tt.dest.node, blocked)
			if r.found {
				revPath = r
				revPrefix = prefix
				haveRev = true
			}
		}
	}

	switch {
	case fwd.found && haveRev:
		tbl := s.calib.For(physics.TrainID(tt.id))
		_ = tbl
		revCost := revPath.costMM*1000 + tt.velocity*400
		if revCost < fwd.costMM*1000 {
			path := s.buildReversePath(tt, revPrefix, revPath)
			return path, true, revPath.costMM * 1000, true
		}
		return s.buildForwardPath(tt, fwd), false, fwd.costMM * 1000, true
	case fwd.found:
		return s.buildForwardPath(tt, fwd), false, fwd.costMM * 1000, true
	case haveRev:
		path := s.buildReversePath(tt, revPrefix, revPath)
		return path, true, revPath.costMM * 1000, true
	default:
		return nil, false, 0, false
	}
}

func (s *Server) buildForwardPath(tt *trainTrack, r dijkstraResult) []PathNode {
	out := make([]PathNode, len(r.nodes))
	cum := 0
	for i, n := range r.nodes {
		dir := track.DirAhead
		if i < len(r.dirs) {
			dir = r.dirs[i]
		}
		var t int
		if tt.velocity > 0 {
			t = (cum*1000 - tt.distPastUM) / tt.velocity
		}
		out[i] = PathNode{Node: n, Direction: dir, ExpectedArriv: t}
		if i < len(r.dirs) {
			cum += s.graph.NodeAt(n).Edges[r.dirs[i]].LengthMM
		}
	}
	return out
}

// coastingPrefix walks forward from the train's current position along its
// live switch settings for stopping_distance, the distance it will cover
// while braking to a halt before a reverse manoeuvre can begin.
func (s *Server) coastingPrefix(tt *trainTrack, blocked map[track.NodeIndex]bool) ([]track.NodeIndex, bool) {
	tbl := s.calib.For(physics.TrainID(tt.id))
	decel := tbl.DecelCentiUMPerTick2(tt.commanded)
	if decel == 0 {
		decel = 1
	}
	dir := physics.Forward
	stopUM := physics.StoppingDistanceUM(tt.velocity, decel, dir)

	remaining := stopUM - tt.distPastUM
	prefix := []track.NodeIndex{tt.node}
	cur := tt.node
	for steps := 0; remaining > 0 && steps < len(s.graph.Nodes)+1; steps++ {
		if blocked[cur] {
			return nil, false
		}
		e, ok := s.graph.NextEdge(cur, s.switches.Func()(s.graph.NodeAt(cur).Num))
		if !ok {
			break
		}
		cur = e.Dest
		prefix = append(prefix, cur)
		remaining -= e.LengthMM * 1000
	}
	if blocked[cur] {
		return nil, false
	}
	return prefix, true
}

// buildReversePath prepends the coasting prefix, then its reversed mirror,
// then the Dijkstra path from the reversed node to the destination.
func (s *Server) buildReversePath(tt *trainTrack, prefix []track.NodeIndex, r dijkstraResult) []PathNode {
	out := make([]PathNode, 0, len(prefix)*2+len(r.nodes))
	for _, n := range prefix {
		out = append(out, PathNode{Node: n, Direction: track.DirAhead})
	}
	for i := len(prefix) - 1; i >= 0; i-- {
		out = append(out, PathNode{Node: s.graph.NodeAt(prefix[i]).Reverse, Direction: track.DirAhead})
	}
	for i, n := range r.nodes {
		dir := track.DirAhead
		if i < len(r.dirs) {
			dir = r.dirs[i]
		}
		out = append(out, PathNode{Node: n, Direction: dir})
	}
	return out
}

// computeBlockedNodes implements step 1: every other stationary tracked
// train reserves its current node, that node's reverse, and everything
// within a 20cm radius walked along current switch positions.
func (s *Server) computeBlockedNodes(self int) map[track.NodeIndex]bool {
	blocked := make(map[track.NodeIndex]bool)
	for id, tt := range s.trains {
		if id == self || !tt.stationary || tt.node == track.Invalid {
			continue
		}
		blocked[tt.node] = true
		blocked[s.graph.NodeAt(tt.node).Reverse] = true

		cur := tt.node
		remaining := blockedRadiusUM
		for steps := 0; remaining > 0 && steps < len(s.graph.Nodes)+1; steps++ {
			e, ok := s.graph.NextEdge(cur, s.switches.Func()(s.graph.NodeAt(cur).Num))
			if !ok {
				break
			}
			cur = e.Dest
			blocked[cur] = true
			blocked[s.graph.NodeAt(cur).Reverse] = true
			remaining -= e.LengthMM * 1000
		}
	}
	return blocked
}

// firstCollision checks path against every other tracked train's cached
// last path for a same-node-within-ALLOWABLE_OVERLAP crossing.
func (s *Server) firstCollision(self int, path []PathNode) (track.NodeIndex, bool) {
	now := int(s.clk.Time())
	for id, tt := range s.trains {
		if id == self || len(tt.lastPath) == 0 {
			continue
		}
		for _, mine := range path {
			myTime := now + mine.ExpectedArriv
			for _, theirs := range tt.lastPath {
				if theirs.Node != mine.Node && theirs.Node != s.graph.NodeAt(mine.Node).Reverse {
					continue
				}
				theirTime := tt.lastSeenAt + theirs.ExpectedArriv
				d := myTime - theirTime
				if d < 0 {
					d = -d
				}
				if d <= AllowableOverlap {
					return mine.Node, true
				}
			}
		}
	}
	return track.Invalid, false
}

func (s *Server) accept(tt *trainTrack, path []PathNode, performsRev bool, totalUM int) {
	tt.lastPath = path
	tt.lastPathRev = performsRev
	tt.lastTotalUM = totalUM
	evt := Route{Train: tt.id, Path: path, PerformsRev: performsRev, TotalDistance: totalUM}
	for _, ch := range s.subscribers {
		select {
		case ch <- evt:
		default:
		}
	}
}
