package ranking

import (
	"github.com/RoaringBitmap/roaring/v2"

	"github.com/cuemby/milli-core/pkg/querygraph"
)

// MatchingStrategy selects how the Words rule degrades when no document
// matches every query slot: Last drops the least important (rightmost)
// slot first, emitting progressively looser buckets; All emits only the
// every-slot-matched bucket and stops, per §4.K's terms-matching
// strategy input.
type MatchingStrategy int

const (
	StrategyLast MatchingStrategy = iota
	StrategyAll
)

// Words is the bottommost rule of the default stack (§4.I): it buckets
// the universe by how many query slots a document matches, documents
// matching every slot first, then documents matching every slot but the
// last, and so on down to documents matching only the first slot. This
// is the "Last" term-matching strategy — the least important (rightmost)
// term is dropped first — which milli uses as its default.
type Words struct {
	Strategy MatchingStrategy

	nodesBySlot map[int][]int
	slotDocids  map[int]*roaring.Bitmap
	universe    *roaring.Bitmap
	maxRequired int
	emitted     *roaring.Bitmap
	done        bool
}

func (r *Words) Name() string { return "words" }

func (r *Words) StartIteration(ctx *Context, universe *roaring.Bitmap, parentNodes []int) error {
	r.universe = universe
	r.emitted = roaring.New()
	r.done = universe == nil || universe.IsEmpty()

	slots := slotsOf(ctx.Graph)
	ids := nonSentinelNodes(ctx.Graph, parentNodes)
	r.nodesBySlot = map[int][]int{}
	for _, id := range ids {
		s, ok := slots[id]
		if !ok {
			continue
		}
		r.nodesBySlot[s] = append(r.nodesBySlot[s], id)
	}

	r.slotDocids = map[int]*roaring.Bitmap{}
	for slot, nodeIDs := range r.nodesBySlot {
		acc := roaring.New()
		for _, id := range nodeIDs {
			bm, err := nodeDocids(ctx.Tx, ctx.Graph.Nodes[id])
			if err != nil {
				return err
			}
			acc.Or(bm)
		}
		acc.And(universe)
		r.slotDocids[slot] = acc
	}
	r.maxRequired = maxSlot(slotsOnly(r.nodesBySlot))
	return nil
}

func slotsOnly(m map[int][]int) map[int]int {
	out := make(map[int]int, len(m))
	for s := range m {
		out[s] = s
	}
	return out
}

func (r *Words) NextBucket() (*Bucket, bool, error) {
	for !r.done && r.maxRequired >= 0 {
		acc := r.universe.Clone()
		var nodes []int
		matched := false
		for slot := 0; slot <= r.maxRequired; slot++ {
			bm, ok := r.slotDocids[slot]
			if !ok || bm.IsEmpty() {
				if r.Strategy == StrategyAll {
					acc.Clear()
				}
				continue
			}
			matched = true
			acc.And(bm)
			nodes = append(nodes, r.nodesBySlot[slot]...)
		}
		r.maxRequired--
		if r.Strategy == StrategyAll {
			r.done = true
		}
		if !matched {
			continue
		}
		acc.AndNot(r.emitted)
		if acc.IsEmpty() {
			continue
		}
		r.emitted.Or(acc)
		return &Bucket{Docids: acc, Nodes: nodes, Label: "words"}, true, nil
	}
	r.done = true
	return nil, false, nil
}

func (r *Words) EndIteration() {}
