package ranking

import (
	"sort"

	"github.com/RoaringBitmap/roaring/v2"
)

// maxProximityLevel mirrors pkg/pipeline's proximity window: only pairs
// at most 8 tokens apart are recorded, and a pair split across fields is
// recorded at exactly 8.
const maxProximityLevel = 8

// Proximity partitions its input by the tightness of adjacent query
// terms: documents where consecutive matched slots sit close together in
// the source text rank above documents where they're far apart, per
// §4.I. Documents with no recorded pair within maxProximityLevel come
// last, in one bucket. Queries with a single matched slot have no pair to
// measure and pass their whole universe through as one bucket.
type Proximity struct {
	ctx         *Context
	slotPairs   [][2]int // adjacent (slot, slot+1) pairs present in nodesBySlot
	nodesBySlot map[int][]int
	universe    *roaring.Bitmap
	emitted     *roaring.Bitmap
	level       int
	done        bool
	singleSlot  bool
}

func (r *Proximity) Name() string { return "proximity" }

func (r *Proximity) StartIteration(ctx *Context, universe *roaring.Bitmap, parentNodes []int) error {
	r.ctx = ctx
	r.universe = universe
	r.emitted = roaring.New()
	r.level = 1
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

	var present []int
	for s := range r.nodesBySlot {
		present = append(present, s)
	}
	sort.Ints(present)

	r.slotPairs = nil
	for i := 0; i+1 < len(present); i++ {
		if present[i+1] == present[i]+1 {
			r.slotPairs = append(r.slotPairs, [2]int{present[i], present[i+1]})
		}
	}
	r.singleSlot = len(r.slotPairs) == 0
	return nil
}

func (r *Proximity) NextBucket() (*Bucket, bool, error) {
	if r.done {
		return nil, false, nil
	}
	if r.singleSlot {
		r.done = true
		if r.universe.IsEmpty() {
			return nil, false, nil
		}
		return &Bucket{Docids: r.universe, Label: "proximity"}, true, nil
	}
	for r.level <= maxProximityLevel {
		acc := r.universe.Clone()
		for _, pair := range r.slotPairs {
			pairBM, err := r.pairBitmapAtLevel(pair[0], pair[1], r.level)
			if err != nil {
				return nil, false, err
			}
			acc.And(pairBM)
		}
		r.level++
		acc.AndNot(r.emitted)
		if acc.IsEmpty() {
			continue
		}
		r.emitted.Or(acc)
		return &Bucket{Docids: acc, Label: "proximity"}, true, nil
	}
	r.done = true
	rest := r.universe.Clone()
	rest.AndNot(r.emitted)
	if rest.IsEmpty() {
		return nil, false, nil
	}
	r.emitted.Or(rest)
	return &Bucket{Docids: rest, Label: "proximity"}, true, nil
}

func (r *Proximity) EndIteration() {}

// pairBitmapAtLevel unions every pair's docids across every word
// combination spanning slotA x slotB, at every proximity value up to and
// including level (proximity buckets store one exact discrete value per
// key, so "within level" is a cumulative union).
func (r *Proximity) pairBitmapAtLevel(slotA, slotB, level int) (*roaring.Bitmap, error) {
	acc := roaring.New()
	for _, idA := range r.nodesBySlot[slotA] {
		wordsA := nodeWords(r.ctx.Graph.Nodes[idA])
		for _, idB := range r.nodesBySlot[slotB] {
			wordsB := nodeWords(r.ctx.Graph.Nodes[idB])
			for _, wa := range wordsA {
				for _, wb := range wordsB {
					for p := 1; p <= level; p++ {
						bm, err := pairProximityDocids(r.ctx.Tx, wa, wb, uint8(p))
						if err != nil {
							return nil, err
						}
						acc.Or(bm)
					}
				}
			}
		}
	}
	return acc, nil
}
