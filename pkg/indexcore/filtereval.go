package indexcore

import (
	"bytes"
	"encoding/json"
	"math"

	"github.com/RoaringBitmap/roaring/v2"
	bolt "go.etcd.io/bbolt"

	"github.com/cuemby/milli-core/pkg/apperr"
	"github.com/cuemby/milli-core/pkg/docstore"
	"github.com/cuemby/milli-core/pkg/facet"
	"github.com/cuemby/milli-core/pkg/fields"
	"github.com/cuemby/milli-core/pkg/filterlang"
	"github.com/cuemby/milli-core/pkg/kvcodec"
	"github.com/cuemby/milli-core/pkg/rbitmap"
)

// evalFilter resolves cond to the bitmap of matching docids. universe is
// the full docid set of the index, needed as the complement base for Not
// and as the iteration scope for the per-document Exists/IsEmpty/IsNull
// operators, which have no facet-bucket representation for "absent" vs.
// "present and null" vs. "present and empty" and so fall back to
// scanning the stored document directly — a deliberate correctness-over-
// performance tradeoff for operators expected to be rare relative to
// ordinary value comparisons.
func evalFilter(tx *bolt.Tx, fm *fields.Map, universe *roaring.Bitmap, cond filterlang.Condition) (*roaring.Bitmap, error) {
	switch n := cond.(type) {
	case *filterlang.And:
		l, err := evalFilter(tx, fm, universe, n.Left)
		if err != nil {
			return nil, err
		}
		r, err := evalFilter(tx, fm, universe, n.Right)
		if err != nil {
			return nil, err
		}
		l.And(r)
		return l, nil
	case *filterlang.Or:
		l, err := evalFilter(tx, fm, universe, n.Left)
		if err != nil {
			return nil, err
		}
		r, err := evalFilter(tx, fm, universe, n.Right)
		if err != nil {
			return nil, err
		}
		l.Or(r)
		return l, nil
	case *filterlang.Not:
		inner, err := evalFilter(tx, fm, universe, n.Inner)
		if err != nil {
			return nil, err
		}
		out := universe.Clone()
		out.AndNot(inner)
		return out, nil
	case *filterlang.Compare:
		return evalCompare(tx, fm, n)
	case *filterlang.In:
		return evalIn(tx, fm, n)
	case *filterlang.Exists:
		return evalPresence(tx, fm, universe, n.Field, presenceExists)
	case *filterlang.IsEmpty:
		return evalPresence(tx, fm, universe, n.Field, presenceIsEmpty)
	case *filterlang.IsNull:
		return evalPresence(tx, fm, universe, n.Field, presenceIsNull)
	default:
		return nil, apperr.Internal(nil, "indexcore: unknown filter condition %T", cond)
	}
}

func evalCompare(tx *bolt.Tx, fm *fields.Map, n *filterlang.Compare) (*roaring.Bitmap, error) {
	id, ok := fm.ID(n.Field)
	if !ok {
		return roaring.New(), nil
	}
	switch n.Op {
	case filterlang.OpLt, filterlang.OpLte, filterlang.OpGt, filterlang.OpGte:
		if n.Value.Number == nil {
			return nil, apperr.Validation("field %q: operator %s requires a numeric value", n.Field, n.Op)
		}
		return numericRange(tx, id, n.Op, *n.Value.Number)
	case filterlang.OpEq:
		return equalSet(tx, id, n.Value)
	case filterlang.OpNeq:
		eq, err := equalSet(tx, id, n.Value)
		if err != nil {
			return nil, err
		}
		all, err := allValuesOf(tx, id, n.Value)
		if err != nil {
			return nil, err
		}
		all.AndNot(eq)
		return all, nil
	default:
		return nil, apperr.Internal(nil, "indexcore: unknown comparison operator %q", n.Op)
	}
}

func evalIn(tx *bolt.Tx, fm *fields.Map, n *filterlang.In) (*roaring.Bitmap, error) {
	id, ok := fm.ID(n.Field)
	if !ok {
		return roaring.New(), nil
	}
	acc := roaring.New()
	for _, v := range n.Values {
		s, err := equalSet(tx, id, v)
		if err != nil {
			return nil, err
		}
		acc.Or(s)
	}
	return acc, nil
}

func numericRange(tx *bolt.Tx, fieldID uint16, op filterlang.Op, v float64) (*roaring.Bitmap, error) {
	switch op {
	case filterlang.OpLt:
		return facet.RangeQuery(tx, fieldID, math.Inf(-1), math.Nextafter(v, math.Inf(-1)))
	case filterlang.OpLte:
		return facet.RangeQuery(tx, fieldID, math.Inf(-1), v)
	case filterlang.OpGt:
		return facet.RangeQuery(tx, fieldID, math.Nextafter(v, math.Inf(1)), math.Inf(1))
	case filterlang.OpGte:
		return facet.RangeQuery(tx, fieldID, v, math.Inf(1))
	default:
		return nil, apperr.Internal(nil, "indexcore: unknown numeric operator %q", op)
	}
}

func equalSet(tx *bolt.Tx, fieldID uint16, v filterlang.Value) (*roaring.Bitmap, error) {
	switch {
	case v.Number != nil:
		return facet.RangeQuery(tx, fieldID, *v.Number, *v.Number)
	case v.Bool != nil:
		n := 0.0
		if *v.Bool {
			n = 1.0
		}
		return facet.RangeQuery(tx, fieldID, n, n)
	case v.String != nil:
		return stringEquals(tx, fieldID, *v.String)
	default:
		return roaring.New(), nil
	}
}

func stringEquals(tx *bolt.Tx, fieldID uint16, value string) (*roaring.Bitmap, error) {
	b := tx.Bucket(kvcodec.BucketFacetStringDocids)
	if b == nil {
		return roaring.New(), nil
	}
	raw := b.Get(kvcodec.FacetStringKey(fieldID, value))
	if raw == nil {
		return roaring.New(), nil
	}
	return rbitmap.Decode(raw)
}

// allValuesOf returns every docid carrying any value for fieldID of the
// same kind as v (numeric/bool share the numeric facet bucket; string
// uses the string bucket), the complement base for Neq.
func allValuesOf(tx *bolt.Tx, fieldID uint16, v filterlang.Value) (*roaring.Bitmap, error) {
	if v.String != nil {
		return unionFieldStrings(tx, fieldID)
	}
	return facet.RangeQuery(tx, fieldID, math.Inf(-1), math.Inf(1))
}

func unionFieldStrings(tx *bolt.Tx, fieldID uint16) (*roaring.Bitmap, error) {
	acc := roaring.New()
	b := tx.Bucket(kvcodec.BucketFacetStringDocids)
	if b == nil {
		return acc, nil
	}
	prefix := kvcodec.FacetStringFieldPrefix(fieldID)
	c := b.Cursor()
	for k, v := c.Seek(prefix); k != nil && bytes.HasPrefix(k, prefix); k, v = c.Next() {
		bm, err := rbitmap.Decode(v)
		if err != nil {
			return nil, err
		}
		acc.Or(bm)
	}
	return acc, nil
}

type presenceMode int

const (
	presenceExists presenceMode = iota
	presenceIsEmpty
	presenceIsNull
)

func evalPresence(tx *bolt.Tx, fm *fields.Map, universe *roaring.Bitmap, field string, mode presenceMode) (*roaring.Bitmap, error) {
	id, ok := fm.ID(field)
	out := roaring.New()
	if !ok {
		return out, nil
	}
	wanted := map[uint16]bool{id: true}
	it := universe.Iterator()
	for it.HasNext() {
		docid := it.Next()
		var raw []byte
		found := false
		_, err := docstore.Project(tx, docid, wanted, func(_ uint16, r []byte) bool {
			raw = append([]byte(nil), r...)
			found = true
			return false
		})
		if err != nil {
			return nil, err
		}
		switch mode {
		case presenceExists:
			if found {
				out.Add(docid)
			}
		case presenceIsNull:
			if found && isJSONNull(raw) {
				out.Add(docid)
			}
		case presenceIsEmpty:
			if found && isJSONEmpty(raw) {
				out.Add(docid)
			}
		}
	}
	return out, nil
}

func isJSONNull(raw []byte) bool {
	return bytes.Equal(bytes.TrimSpace(raw), []byte("null"))
}

func isJSONEmpty(raw []byte) bool {
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return false
	}
	switch t := v.(type) {
	case nil:
		return true
	case string:
		return t == ""
	case []any:
		return len(t) == 0
	case map[string]any:
		return len(t) == 0
	default:
		return false
	}
}
