package track

import "fmt"

// builder accumulates named nodes and edges-by-name, then resolves names to
// indices once, so the hand-authored topology below can be written in terms
// of node names instead of error-prone raw indices.
type builder struct {
	nodes []Node
	index map[string]NodeIndex
}

func newBuilder() *builder {
	return &builder{index: make(map[string]NodeIndex)}
}

func (b *builder) add(name string, kind Kind, num int) NodeIndex {
	i := NodeIndex(len(b.nodes))
	b.nodes = append(b.nodes, Node{Name: name, Kind: kind, Num: num})
	b.index[name] = i
	return i
}

func (b *builder) link(from string, dir Direction, to string, lengthMM int) {
	fi := b.index[from]
	ti, ok := b.index[to]
	if !ok {
		panic(fmt.Sprintf("track: undefined node %q", to))
	}
	b.nodes[fi].Edges[dir] = Edge{Dest: ti, LengthMM: lengthMM, Direction: dir, Valid: true}
}

func (b *builder) reverse(a, bName string) {
	ai, bi := b.index[a], b.index[bName]
	b.nodes[ai].Reverse = bi
	b.nodes[bi].Reverse = ai
}

func (b *builder) build() (*Graph, error) {
	g := &Graph{Nodes: b.nodes, byName: b.index}
	if err := g.checkInvariants(); err != nil {
		return nil, err
	}
	return g, nil
}

// segLens parameterizes the two layouts (TrackA/TrackB) so the same
// topology-building code produces two distinct physical geometries, as
// TrackInit(TrackA|TrackB) selects between two real layouts in the
// original. The track this repo ships is a single siding loop small enough
// to hand-verify every invariant, since spec.md treats the real ~144-node
// layout's data as out of scope/assumed-constant; this is a faithful stand-in
// exercising every node Kind and the same addressing scheme.
type segLens struct {
	enterToA1   int
	mainSeg     int // A1-A2-A3, A4-A5-A6 segment length
	sw1Straight int
	sw1Curved   int // to EXIT1
	sw2Straight int // to A7
	sw2Curved   int // to C1 (siding)
	legToMerge  int // A7->SW3Mr and C1->SW3Mr
	mergeToA8   int
	a8ToExit    int
}

// build constructs the graph: ENTER2 -> A1 -> A2 -> A3 -> SW1(branch #1) ->
// {A4.. straight, EXIT1 curved} -> A4 -> A5 -> A6 -> SW2(branch #2) ->
// {A7 straight, C1 curved (siding)} -> SW3(merge #3) -> A8 -> EXIT3.
//
// Every plain sensor has exactly one incoming and one outgoing edge so its
// reverse mirror does too; only the two branch nodes and the one merge node
// carry asymmetric in/out degree, and each switch's forward/reverse pair is
// a true involution (SW1Br.Reverse==SW1Mr, SW3Mr.Reverse==SW3Br, ...).
func build(lens segLens) (*Graph, error) {
	b := newBuilder()

	// Plain sensors, forward direction.
	for _, name := range []string{"A1", "A2", "A3", "A4", "A5", "A6", "A7", "A8", "C1"} {
		b.add(name, KindSensor, 0)
	}
	// Their reverse mirrors.
	for _, name := range []string{"A1r", "A2r", "A3r", "A4r", "A5r", "A6r", "A7r", "A8r", "C1r"} {
		b.add(name, KindSensor, 0)
	}

	// Switch 1: diverges main line to an exit spur.
	b.add("SW1Br", KindBranch, 1)
	b.add("SW1Mr", KindMerge, 1)
	// Switch 2: diverges main line into the siding.
	b.add("SW2Br", KindBranch, 2)
	b.add("SW2Mr", KindMerge, 2)
	// Switch 3: reconverges the siding with the main line.
	b.add("SW3Mr", KindMerge, 3)
	b.add("SW3Br", KindBranch, 3)

	// Entry/exit pairs.
	b.add("ENTER2", KindEnter, 0)
	b.add("EXIT2", KindExit, 0)
	b.add("EXIT1", KindExit, 0)
	b.add("ENTER1", KindEnter, 0)
	b.add("EXIT3", KindExit, 0)
	b.add("ENTER3", KindEnter, 0)

	// Forward edges.
	b.link("ENTER2", DirAhead, "A1", lens.enterToA1)
	b.link("A1", DirAhead, "A2", lens.mainSeg)
	b.link("A2", DirAhead, "A3", lens.mainSeg)
	b.link("A3", DirAhead, "SW1Br", lens.mainSeg)
	b.link("SW1Br", DirStraight, "A4", lens.sw1Straight)
	b.link("SW1Br", DirCurved, "EXIT1", lens.sw1Curved)
	b.link("A4", DirAhead, "A5", lens.mainSeg)
	b.link("A5", DirAhead, "A6", lens.mainSeg)
	b.link("A6", DirAhead, "SW2Br", lens.mainSeg)
	b.link("SW2Br", DirStraight, "A7", lens.sw2Straight)
	b.link("SW2Br", DirCurved, "C1", lens.sw2Curved)
	b.link("A7", DirAhead, "SW3Mr", lens.legToMerge)
	b.link("C1", DirAhead, "SW3Mr", lens.legToMerge)
	b.link("SW3Mr", DirAhead, "A8", lens.mergeToA8)
	b.link("A8", DirAhead, "EXIT3", lens.a8ToExit)

	// Reverse edges: mechanically v.Reverse -> u.Reverse for every u->v above.
	b.link("A1r", DirAhead, "EXIT2", lens.enterToA1)
	b.link("A2r", DirAhead, "A1r", lens.mainSeg)
	b.link("A3r", DirAhead, "A2r", lens.mainSeg)
	b.link("SW1Mr", DirAhead, "A3r", lens.mainSeg)
	b.link("A4r", DirAhead, "SW1Mr", lens.sw1Straight)
	b.link("ENTER1", DirAhead, "SW1Mr", lens.sw1Curved)
	b.link("A5r", DirAhead, "A4r", lens.mainSeg)
	b.link("A6r", DirAhead, "A5r", lens.mainSeg)
	b.link("SW2Mr", DirAhead, "A6r", lens.mainSeg)
	b.link("A7r", DirAhead, "SW2Mr", lens.sw2Straight)
	b.link("C1r", DirAhead, "SW2Mr", lens.sw2Curved)
	b.link("SW3Br", DirStraight, "A7r", lens.legToMerge)
	b.link("SW3Br", DirCurved, "C1r", lens.legToMerge)
	b.link("A8r", DirAhead, "SW3Br", lens.mergeToA8)
	b.link("ENTER3", DirAhead, "A8r", lens.a8ToExit)

	// Reverse pairings.
	for _, pair := range [][2]string{
		{"A1", "A1r"}, {"A2", "A2r"}, {"A3", "A3r"}, {"A4", "A4r"},
		{"A5", "A5r"}, {"A6", "A6r"}, {"A7", "A7r"}, {"A8", "A8r"}, {"C1", "C1r"},
		{"SW1Br", "SW1Mr"}, {"SW2Br", "SW2Mr"}, {"SW3Mr", "SW3Br"},
		{"ENTER2", "EXIT2"}, {"EXIT1", "ENTER1"}, {"EXIT3", "ENTER3"},
	} {
		b.reverse(pair[0], pair[1])
	}

	return b.build()
}

// Load returns the requested static track layout.
func Load(name Name) (*Graph, error) {
	switch name {
	case TrackA:
		return build(segLens{
			enterToA1: 0, mainSeg: 300,
			sw1Straight: 300, sw1Curved: 250,
			sw2Straight: 400, sw2Curved: 350,
			legToMerge: 150, mergeToA8: 300, a8ToExit: 300,
		})
	case TrackB:
		return build(segLens{
			enterToA1: 0, mainSeg: 250,
			sw1Straight: 350, sw1Curved: 200,
			sw2Straight: 300, sw2Curved: 500,
			legToMerge: 120, mergeToA8: 260, a8ToExit: 260,
		})
	default:
		return nil, fmt.Errorf("track: unknown layout %d", name)
	}
}
