package route

import (
	"container/heap"

	"traindispatch/internal/hw/track"
)

// dijkstraResult is one shortest-path search's output.
type dijkstraResult struct {
	nodes  []track.NodeIndex
	dirs   []track.Direction // dirs[i] is the edge taken from nodes[i] to nodes[i+1]
	costMM int
	found  bool
}

// dijkstra runs shortest path from src to dst over g, treating any node in
// blocked as inaccessible (neither enterable nor usable as an intermediate
// hop), and branch nodes as offering both their straight and curved edges
// as neighbours regardless of the switch's live position — per spec.md
// §4.4, "Neighbour count is 2 for branches, 0 for exits, 1 otherwise",
// since route planning chooses the switch position, it does not defer to
// the current one. Ties are broken by insertion order via a monotonic
// sequence number on the priority queue.
func dijkstra(g *track.Graph, src, dst track.NodeIndex, blocked map[track.NodeIndex]bool) dijkstraResult {
	const inf = 1 << 30
	n := len(g.Nodes)
	dist := make([]int, n)
	prev := make([]track.NodeIndex, n)
	prevDir := make([]track.Direction, n)
	visited := make([]bool, n)
	for i := range dist {
		dist[i] = inf
		prev[i] = track.Invalid
	}

	if blocked[src] && src != dst {
		return dijkstraResult{}
	}
	dist[src] = 0

	pq := &priorityQueue{}
	heap.Init(pq)
	seq := 0
	heap.Push(pq, &pqItem{node: src, cost: 0, seq: seq})

	for pq.Len() > 0 {
		it := heap.Pop(pq).(*pqItem)
		u := it.node
		if visited[u] {
			continue
		}
		visited[u] = true
		if u == dst {
			break
		}

		node := g.NodeAt(u)
		for _, dir := range neighbourDirs(node.Kind) {
			e := node.Edges[dir]
			if !e.Valid {
				continue
			}
			v := e.Dest
			if blocked[v] && v != dst {
				continue
			}
			nd := dist[u] + e.LengthMM
			if nd < dist[v] {
				dist[v] = nd
				prev[v] = u
				prevDir[v] = dir
				seq++
				heap.Push(pq, &pqItem{node: v, cost: nd, seq: seq})
			}
		}
	}

	if dist[dst] >= inf {
		return dijkstraResult{}
	}

	var nodes []track.NodeIndex
	var dirs []track.Direction
	cur := dst
	for cur != src {
		p := prev[cur]
		if p == track.Invalid {
			return dijkstraResult{}
		}
		nodes = append([]track.NodeIndex{cur}, nodes...)
		dirs = append([]track.Direction{prevDir[cur]}, dirs...)
		cur = p
	}
	nodes = append([]track.NodeIndex{src}, nodes...)

	return dijkstraResult{nodes: nodes, dirs: dirs, costMM: dist[dst], found: true}
}

func neighbourDirs(kind track.Kind) []track.Direction {
	if kind == track.KindBranch {
		return []track.Direction{track.DirStraight, track.DirCurved}
	}
	return []track.Direction{track.DirAhead}
}

type pqItem struct {
	node track.NodeIndex
	cost int
	seq  int
}

type priorityQueue []*pqItem

func (pq priorityQueue) Len() int { return len(pq) }
func (pq priorityQueue) Less(i, j int) bool {
	if pq[i].cost != pq[j].cost {
		return pq[i].cost < pq[j].cost
	}
	return pq[i].seq < pq[j].seq
}
func (pq priorityQueue) Swap(i, j int) { pq[i], pq[j] = pq[j], pq[i] }
func (pq *priorityQueue) Push(x any)   { *pq = append(*pq, x.(*pqItem)) }
func (pq *priorityQueue) Pop() any {
	old := *pq
	n := len(old)
	item := old[n-1]
	*pq = old[:n-1]
	return item
}
