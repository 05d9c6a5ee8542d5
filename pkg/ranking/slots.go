package ranking

import "github.com/cuemby/milli-core/pkg/querygraph"

// slotsOf assigns every node a slot index approximating its query-term
// position: the node's longest-path distance from Start, in edge hops.
// Because Build lays edges out strictly left-to-right (a node's
// predecessors all come from earlier query positions), this distance
// equals the term slot for every node except where a multi-word Ngram,
// Split, or Synonym spans more than one original slot — those are
// treated as occupying their single longest-path slot rather than a
// range, a simplification documented in DESIGN.md.
func slotsOf(g *querygraph.Graph) map[int]int {
	indeg := make(map[int]int, len(g.Nodes))
	preds := make(map[int][]int, len(g.Nodes))
	for _, e := range g.Edges {
		indeg[e.To]++
		preds[e.To] = append(preds[e.To], e.From)
	}

	dist := make(map[int]int, len(g.Nodes))
	order := topoOrder(g, indeg)
	for _, id := range order {
		best := 0
		for _, p := range preds[id] {
			if d := dist[p] + 1; d > best {
				best = d
			}
		}
		dist[id] = best
	}

	slots := make(map[int]int, len(g.Nodes))
	for id, d := range dist {
		if id == g.Start || id == g.End {
			continue
		}
		slots[id] = d - 1
	}
	return slots
}

// topoOrder returns every node reachable from Start in a valid
// topological order (Kahn's algorithm). indeg is consumed.
func topoOrder(g *querygraph.Graph, indeg map[int]int) []int {
	indeg = cloneIndeg(indeg)
	queue := []int{g.Start}
	var order []int
	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]
		order = append(order, id)
		for _, next := range g.Successors(id) {
			indeg[next]--
			if indeg[next] == 0 {
				queue = append(queue, next)
			}
		}
	}
	return order
}

func cloneIndeg(m map[int]int) map[int]int {
	out := make(map[int]int, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

// maxSlot returns the highest slot index present in slots, or -1 if
// empty.
func maxSlot(slots map[int]int) int {
	max := -1
	for _, s := range slots {
		if s > max {
			max = s
		}
	}
	return max
}
