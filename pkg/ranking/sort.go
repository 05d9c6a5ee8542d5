package ranking

import (
	"bytes"

	"github.com/RoaringBitmap/roaring/v2"
	bolt "go.etcd.io/bbolt"

	"github.com/cuemby/milli-core/pkg/apperr"
	"github.com/cuemby/milli-core/pkg/kvcodec"
	"github.com/cuemby/milli-core/pkg/rbitmap"
)

// sortRule produces one bucket per distinct value of a sortable field, in
// ascending or descending value order, followed by one final bucket (if
// non-empty) of documents that have no value for the field at all —
// those always sort last regardless of direction, matching milli's
// "documents missing the sort field rank last" behavior.
type sortRule struct {
	fieldID    uint16
	numeric    bool
	descending bool

	ctx         *Context
	universe    *roaring.Bitmap
	emitted     *roaring.Bitmap
	cur         *bolt.Cursor
	prefix      []byte
	started     bool
	cursorDone  bool
	missingDone bool
}

// NewAsc returns a rule ranking documents by ascending value of the
// given field. numeric selects BucketFacetNumberDocids over
// BucketFacetStringDocids.
func NewAsc(fieldID uint16, numeric bool) Rule {
	return &sortRule{fieldID: fieldID, numeric: numeric, descending: false}
}

// NewDesc is NewAsc in reverse order.
func NewDesc(fieldID uint16, numeric bool) Rule {
	return &sortRule{fieldID: fieldID, numeric: numeric, descending: true}
}

func (r *sortRule) Name() string {
	if r.descending {
		return "desc"
	}
	return "asc"
}

func (r *sortRule) StartIteration(ctx *Context, universe *roaring.Bitmap, _ []int) error {
	r.ctx = ctx
	r.universe = universe
	r.emitted = roaring.New()
	r.started = false
	r.cursorDone = universe == nil || universe.IsEmpty()
	r.missingDone = r.cursorDone

	bucketName := kvcodec.BucketFacetStringDocids
	r.prefix = kvcodec.FacetStringFieldPrefix(r.fieldID)
	if r.numeric {
		bucketName = kvcodec.BucketFacetNumberDocids
		r.prefix = kvcodec.FacetNumberLevelPrefix(r.fieldID, 0)
	}
	b := ctx.Tx.Bucket(bucketName)
	if b == nil {
		return apperr.Internal(nil, "ranking: bucket %q missing", bucketName)
	}
	r.cur = b.Cursor()
	return nil
}

func (r *sortRule) NextBucket() (*Bucket, bool, error) {
	for !r.cursorDone {
		k, v := r.step()
		if k == nil || !bytes.HasPrefix(k, r.prefix) {
			r.cursorDone = true
			break
		}
		bm, err := rbitmap.Decode(v)
		if err != nil {
			return nil, false, apperr.Corruption(err, "ranking: decode facet docids")
		}
		bm = bm.Clone()
		bm.And(r.universe)
		bm.AndNot(r.emitted)
		if bm.IsEmpty() {
			continue
		}
		r.emitted.Or(bm)
		return &Bucket{Docids: bm, Label: r.Name()}, true, nil
	}
	if !r.missingDone {
		r.missingDone = true
		rest := r.universe.Clone()
		rest.AndNot(r.emitted)
		if !rest.IsEmpty() {
			r.emitted.Or(rest)
			return &Bucket{Docids: rest, Label: r.Name() + ":missing"}, true, nil
		}
	}
	return nil, false, nil
}

func (r *sortRule) EndIteration() {}

// step advances the cursor one distinct key in the configured direction,
// positioning it on first call.
func (r *sortRule) step() ([]byte, []byte) {
	if !r.started {
		r.started = true
		if !r.descending {
			return r.cur.Seek(r.prefix)
		}
		upper := prefixUpperBound(r.prefix)
		if upper == nil {
			return r.cur.Last()
		}
		k, _ := r.cur.Seek(upper)
		if k == nil {
			return r.cur.Last()
		}
		return r.cur.Prev()
	}
	if !r.descending {
		return r.cur.Next()
	}
	return r.cur.Prev()
}

// prefixUpperBound returns the smallest key that is not prefixed by
// prefix, or nil if prefix is all 0xff bytes (no such bound).
func prefixUpperBound(prefix []byte) []byte {
	end := append([]byte(nil), prefix...)
	for i := len(end) - 1; i >= 0; i-- {
		if end[i] < 0xff {
			end[i]++
			return end[:i+1]
		}
	}
	return nil
}
