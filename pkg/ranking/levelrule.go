package ranking

import (
	"github.com/RoaringBitmap/roaring/v2"

	"github.com/cuemby/milli-core/pkg/querygraph"
)

// levelFunc scores a node for a levelRule: Typo uses edit distance,
// Exactness uses 0-for-exact/1-for-everything-else.
type levelFunc func(n querygraph.Node) int

// levelRule is the shared shape behind Typo and Exactness: both bucket
// their input by requiring, for every query slot, at least one surviving
// node whose level is <= the current threshold, raising the threshold
// one step at a time. A slot with no node at the current threshold makes
// the whole bucket empty for that level, since every slot must still be
// covered by some derivation.
type levelRule struct {
	name     string
	levelOf  levelFunc
	maxLevel int

	ctx         *Context
	nodesBySlot map[int][]int
	universe    *roaring.Bitmap
	emitted     *roaring.Bitmap
	level       int
	done        bool
}

func (r *levelRule) Name() string { return r.name }

func (r *levelRule) StartIteration(ctx *Context, universe *roaring.Bitmap, parentNodes []int) error {
	r.ctx = ctx
	r.universe = universe
	r.emitted = roaring.New()
	r.done = universe == nil || universe.IsEmpty()
	r.level = 0

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
	return nil
}

func (r *levelRule) NextBucket() (*Bucket, bool, error) {
	for !r.done && r.level <= r.maxLevel {
		acc := r.universe.Clone()
		matchedAny := false
		var nodes []int
		for _, ids := range r.nodesBySlot {
			slotBM := roaring.New()
			slotMatched := false
			for _, id := range ids {
				n := r.ctx.Graph.Nodes[id]
				if r.levelOf(n) > r.level {
					continue
				}
				bm, err := nodeDocids(r.ctx.Tx, n)
				if err != nil {
					return nil, false, err
				}
				slotBM.Or(bm)
				slotMatched = true
				nodes = append(nodes, id)
			}
			if !slotMatched {
				acc = roaring.New()
				continue
			}
			matchedAny = true
			acc.And(slotBM)
		}
		r.level++
		if !matchedAny {
			continue
		}
		acc.And(r.universe)
		acc.AndNot(r.emitted)
		if acc.IsEmpty() {
			continue
		}
		r.emitted.Or(acc)
		return &Bucket{Docids: acc, Nodes: nodes, Label: r.name}, true, nil
	}
	r.done = true
	return nil, false, nil
}

func (r *levelRule) EndIteration() {}
