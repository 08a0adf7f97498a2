/*
Package track is the static track graph singleton: a fixed arena of nodes
addressed by index rather than pointer, per the design notes' "cyclic
pointer graph -> arena plus node indices" guidance. It is loaded once at
startup and is read-only for the remainder of the process, so it requires
no locking (Design Notes §9, "global mutable state").
*/
package track

import "fmt"

// Kind is a track node's role.
type Kind int

const (
	KindSensor Kind = iota
	KindBranch
	KindMerge
	KindEnter
	KindExit
)

func (k Kind) String() string {
	switch k {
	case KindSensor:
		return "sensor"
	case KindBranch:
		return "branch"
	case KindMerge:
		return "merge"
	case KindEnter:
		return "enter"
	case KindExit:
		return "exit"
	default:
		return "unknown"
	}
}

// Direction labels an edge, or (for branches) a commanded switch position.
type Direction int

const (
	DirAhead Direction = iota
	DirStraight
	DirCurved
)

// Invalid is the sentinel node index meaning "no such node" (NULL), e.g. a
// dead-end's next_expected_node.
const Invalid NodeIndex = 0xFFFF

// NodeIndex addresses a node in the arena.
type NodeIndex uint16

// Edge is an outgoing edge: a destination node and length in millimeters.
type Edge struct {
	Dest      NodeIndex
	LengthMM  int
	Direction Direction
	Valid     bool
}

// Node is one track-graph vertex. Branch nodes populate Edges[DirStraight]
// and Edges[DirCurved]; all others populate only Edges[DirAhead].
type Node struct {
	Name    string
	Kind    Kind
	Num     int // switch number for branches and merges; 0 for all other nodes
	Reverse NodeIndex
	Edges   [3]Edge // indexed by Direction
}

// OutDegree returns how many valid outgoing edges this node has (0, 1, or 2).
func (n *Node) OutDegree() int {
	count := 0
	for _, e := range n.Edges {
		if e.Valid {
			count++
		}
	}
	return count
}

// Graph is the read-only, process-wide track arena.
type Graph struct {
	Nodes []Node
	byName map[string]NodeIndex
}

// Name identifies which static layout to load, mirroring TrackInit(TrackA|TrackB).
type Name int

const (
	TrackA Name = iota
	TrackB
)

// NodeAt returns a pointer into the arena; callers never copy Node across
// goroutine boundaries in a way that would outlive the arena, since the
// arena lives for the process lifetime.
func (g *Graph) NodeAt(i NodeIndex) *Node {
	return &g.Nodes[i]
}

// ByName resolves a node by its track-diagram name (e.g. "A7", "SW1Br").
func (g *Graph) ByName(name string) (NodeIndex, bool) {
	i, ok := g.byName[name]
	return i, ok
}

// SensorIndex computes the arena index for sensor (module, number), per
// TrackFindSensor's ((module-'A')*16)+(number-1) addressing. This formula is
// sized for the full hardware arena (modules A..E, 16 sensors each); it only
// coincidentally lines up with TrackA's much smaller A1..A8 stand-in, so
// callers addressing TrackA must tolerate out-of-range and non-sensor
// results rather than treat every (module, number) pair as valid.
func SensorIndex(module byte, number int) NodeIndex {
	return NodeIndex(int(module-'A')*16 + (number - 1))
}

// NextEdge returns the edge a train currently takes out of node, given the
// live switch position for branch nodes (DirStraight or DirCurved) and
// DirAhead otherwise.
func (g *Graph) NextEdge(i NodeIndex, switchPos Direction) (Edge, bool) {
	n := g.NodeAt(i)
	if n.Kind == KindBranch {
		e := n.Edges[switchPos]
		return e, e.Valid
	}
	e := n.Edges[DirAhead]
	return e, e.Valid
}

// FindNextSensor walks forward from i through non-sensor nodes, following
// live switch settings via switchPos, until it reaches a sensor node or a
// dead end (exit). Returns (Invalid, false) on dead end, matching the
// spec's "fail soft (NULL) if no such sensor exists".
func (g *Graph) FindNextSensor(i NodeIndex, switchPos func(swNum int) Direction) (NodeIndex, bool) {
	cur := i
	for steps := 0; steps < len(g.Nodes)+1; steps++ {
		n := g.NodeAt(cur)
		var pos Direction
		if n.Kind == KindBranch {
			pos = switchPos(n.Num)
		}
		e, ok := g.NextEdge(cur, pos)
		if !ok {
			return Invalid, false
		}
		next := g.NodeAt(e.Dest)
		if next.Kind == KindSensor {
			return e.Dest, true
		}
		if next.Kind == KindExit {
			return Invalid, false
		}
		cur = e.Dest
	}
	return Invalid, false
}

// DistanceMM walks the path from src to dst (exclusive of backtracking)
// following switchPos and returns the summed edge length in millimeters, or
// an error if dst is not reachable within the graph's node count.
func (g *Graph) DistanceMM(src, dst NodeIndex, switchPos func(swNum int) Direction) (int, error) {
	cur := src
	total := 0
	for steps := 0; steps < len(g.Nodes)+1; steps++ {
		if cur == dst {
			return total, nil
		}
		n := g.NodeAt(cur)
		var pos Direction
		if n.Kind == KindBranch {
			pos = switchPos(n.Num)
		}
		e, ok := g.NextEdge(cur, pos)
		if !ok {
			return 0, fmt.Errorf("track: %s is unreachable from %s", g.NodeAt(dst).Name, g.NodeAt(src).Name)
		}
		total += e.LengthMM
		cur = e.Dest
	}
	return 0, fmt.Errorf("track: %s is unreachable from %s", g.NodeAt(dst).Name, g.NodeAt(src).Name)
}

// checkInvariants validates the structural invariants of spec.md §3: every
// non-exit node has an outgoing edge, reverse is an involution, a node is
// never its own reverse, and branches have exactly straight+curved edges.
func (g *Graph) checkInvariants() error {
	for i := range g.Nodes {
		n := &g.Nodes[i]
		if n.Kind != KindExit && n.OutDegree() == 0 {
			return fmt.Errorf("track: non-exit node %s has no outgoing edge", n.Name)
		}
		if int(n.Reverse) >= len(g.Nodes) {
			return fmt.Errorf("track: node %s has out-of-range reverse", n.Name)
		}
		rev := &g.Nodes[n.Reverse]
		if rev.Reverse != NodeIndex(i) {
			return fmt.Errorf("track: reverse is not an involution at %s", n.Name)
		}
		if n.Reverse == NodeIndex(i) {
			return fmt.Errorf("track: node %s is its own reverse", n.Name)
		}
		if n.Kind == KindBranch {
			if !n.Edges[DirStraight].Valid || !n.Edges[DirCurved].Valid || n.Edges[DirAhead].Valid {
				return fmt.Errorf("track: branch %s must have exactly straight and curved edges", n.Name)
			}
		}
	}
	return nil
}
