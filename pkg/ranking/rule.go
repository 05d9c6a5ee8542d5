package ranking

import (
	"github.com/RoaringBitmap/roaring/v2"
	bolt "go.etcd.io/bbolt"

	"github.com/cuemby/milli-core/pkg/budget"
	"github.com/cuemby/milli-core/pkg/fields"
	"github.com/cuemby/milli-core/pkg/querygraph"
)

// Bucket is one rule's output: a subset of its input universe plus the
// graph nodes that subset's members matched through, so a downstream
// rule can restrict its own computation to the same derivations rather
// than re-deriving them from scratch.
type Bucket struct {
	Docids *roaring.Bitmap
	Nodes  []int // querygraph node ids this bucket's docs matched via; nil means "all nodes"
	Label  string
}

// Context is the read-only state every rule shares: the transaction
// snapshot to read posting lists from, the query's term graph, the field
// map (for Attribute's searchable-field order and Sort's field
// resolution), and the time budget rules must check at bucket
// boundaries (§5).
type Context struct {
	Tx     *bolt.Tx
	Graph  *querygraph.Graph
	Fields *fields.Map
	Budget *budget.Budget
}

// Rule is the §4.I bucket-producing contract: StartIteration resets the
// rule against a new universe (the parent rule's most recent bucket, or
// the search's initial filtered universe for the bottommost rule in the
// stack); NextBucket yields buckets most-preferred first until it
// returns ok=false; EndIteration releases any per-iteration state.
type Rule interface {
	Name() string
	StartIteration(ctx *Context, universe *roaring.Bitmap, parentNodes []int) error
	NextBucket() (bucket *Bucket, ok bool, err error)
	EndIteration()
}

// runner wraps one Rule with the rule beneath it in the configured
// stack, so pulling from the topmost runner transparently cascades down
// to refill each rule's universe from the rule below once it is
// exhausted — the §4.I "whenever a rule has no more buckets, control
// returns to the rule beneath it" composition rule.
type runner struct {
	rule    Rule
	below   *runner // nil for the bottommost rule
	ctx     *Context
	started bool
}

func (r *runner) next() (*Bucket, bool, error) {
	if r.ctx.Budget.Exceeded() {
		return nil, false, nil
	}
	if !r.started {
		if err := r.pullNewUniverse(); err != nil {
			return nil, false, err
		}
		if !r.started {
			return nil, false, nil
		}
	}
	for {
		b, ok, err := r.rule.NextBucket()
		if err != nil {
			return nil, false, err
		}
		if ok {
			return b, true, nil
		}
		if r.below == nil {
			return nil, false, nil
		}
		r.rule.EndIteration()
		if err := r.pullNewUniverse(); err != nil {
			return nil, false, err
		}
		if !r.started {
			return nil, false, nil // below is exhausted too
		}
	}
}

func (r *runner) pullNewUniverse() error {
	if r.below == nil {
		// The bottommost rule already owns its starting universe from
		// Pipeline.Drain; nothing to pull.
		r.started = true
		return nil
	}
	b, ok, err := r.below.next()
	if err != nil {
		return err
	}
	if !ok {
		r.started = false
		return nil
	}
	r.started = true
	return r.rule.StartIteration(r.ctx, b.Docids, b.Nodes)
}

// Pipeline drains an ordered rule stack into a ranked docid list.
type Pipeline struct {
	top *runner
}

// NewPipeline builds the stack from rules in configured order (index 0
// is the bottommost / first-applied rule, matching Settings'
// RankingRules order; the last rule is §4.I's "top").
func NewPipeline(ctx *Context, initialUniverse *roaring.Bitmap, rules []Rule) (*Pipeline, error) {
	if len(rules) == 0 {
		pass := &passthroughRule{}
		if err := pass.StartIteration(ctx, initialUniverse, nil); err != nil {
			return nil, err
		}
		return &Pipeline{top: &runner{rule: pass, ctx: ctx, started: true}}, nil
	}
	var below *runner
	for i, rule := range rules {
		r := &runner{rule: rule, below: below, ctx: ctx}
		if i == 0 {
			if err := rule.StartIteration(ctx, initialUniverse, nil); err != nil {
				return nil, err
			}
			r.started = true
		}
		below = r
	}
	return &Pipeline{top: below}, nil
}

// Drain pulls buckets from the top rule, flattening their docids in rank
// order, until at least offset+limit ids have been collected or the
// pipeline is exhausted or the budget elapses (§4.K). It returns the
// full ordered id list collected so far (callers slice to [offset:] to
// paginate) and whether the budget cut the drain short.
func (p *Pipeline) Drain(offset, limit int) (ids []uint32, degraded bool, err error) {
	want := offset + limit
	for len(ids) < want {
		b, ok, err := p.top.next()
		if err != nil {
			return ids, false, err
		}
		if !ok {
			return ids, p.top.ctx.Budget.Exceeded(), nil
		}
		it := b.Docids.Iterator()
		for it.HasNext() {
			ids = append(ids, it.Next())
		}
	}
	return ids, false, nil
}

// passthroughRule is used when no ranking rules are configured: the
// initial universe is returned as a single bucket, preserving no
// particular order beyond roaring's natural ascending docid order.
type passthroughRule struct {
	universe *roaring.Bitmap
	done     bool
}

func (passthroughRule) Name() string { return "passthrough" }

func (r *passthroughRule) StartIteration(_ *Context, universe *roaring.Bitmap, _ []int) error {
	r.universe = universe
	r.done = false
	return nil
}

func (r *passthroughRule) NextBucket() (*Bucket, bool, error) {
	if r.done || r.universe == nil || r.universe.IsEmpty() {
		return nil, false, nil
	}
	r.done = true
	return &Bucket{Docids: r.universe, Label: "passthrough"}, true, nil
}

func (r *passthroughRule) EndIteration() {}
