package ranking

import (
	"github.com/RoaringBitmap/roaring/v2"
)

// Attribute partitions its input by which searchable field a match
// occurred in first, in field declaration order: a document matched in
// an earlier searchable field ranks above one only matched in a later
// one (§4.I).
type Attribute struct {
	ctx      *Context
	words    []string
	order    []uint16 // searchable field ids, declaration order
	universe *roaring.Bitmap
	emitted  *roaring.Bitmap
	rank     int
	nodes    []int
	done     bool
}

func (r *Attribute) Name() string { return "attribute" }

func (r *Attribute) StartIteration(ctx *Context, universe *roaring.Bitmap, parentNodes []int) error {
	r.ctx = ctx
	r.universe = universe
	r.emitted = roaring.New()
	r.rank = 0
	r.done = universe == nil || universe.IsEmpty()

	ids := nonSentinelNodes(ctx.Graph, parentNodes)
	r.nodes = ids
	seen := map[string]bool{}
	r.words = nil
	for _, id := range ids {
		for _, w := range nodeWords(ctx.Graph.Nodes[id]) {
			if !seen[w] {
				seen[w] = true
				r.words = append(r.words, w)
			}
		}
	}

	r.order = nil
	for _, name := range ctx.Fields.Names() {
		id, ok := ctx.Fields.ID(name)
		if !ok || !ctx.Fields.Flags(id).Searchable {
			continue
		}
		r.order = append(r.order, id)
	}
	return nil
}

func (r *Attribute) NextBucket() (*Bucket, bool, error) {
	for !r.done && r.rank < len(r.order) {
		fieldID := r.order[r.rank]
		r.rank++
		acc := roaring.New()
		for _, w := range r.words {
			bm, err := wordFidDocids(r.ctx.Tx, w, fieldID)
			if err != nil {
				return nil, false, err
			}
			acc.Or(bm)
		}
		acc.And(r.universe)
		acc.AndNot(r.emitted)
		if acc.IsEmpty() {
			continue
		}
		r.emitted.Or(acc)
		return &Bucket{Docids: acc, Nodes: r.nodes, Label: "attribute"}, true, nil
	}
	if !r.done {
		r.done = true
		rest := r.universe.Clone()
		rest.AndNot(r.emitted)
		if !rest.IsEmpty() {
			r.emitted.Or(rest)
			return &Bucket{Docids: rest, Nodes: r.nodes, Label: "attribute"}, true, nil
		}
	}
	return nil, false, nil
}

func (r *Attribute) EndIteration() {}
