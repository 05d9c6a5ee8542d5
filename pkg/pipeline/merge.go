package pipeline

import (
	"github.com/RoaringBitmap/roaring/v2"
	bolt "go.etcd.io/bbolt"

	"github.com/cuemby/milli-core/pkg/apperr"
	"github.com/cuemby/milli-core/pkg/facet"
	"github.com/cuemby/milli-core/pkg/kvcodec"
	"github.com/cuemby/milli-core/pkg/rbitmap"
)

// mergeBucket applies acc's del/add deltas to bucketName's entries inside
// tx, computing new = (old - del) ∪ add per key and deleting any entry
// that becomes empty. This is stage 5, and it is the only stage that ever
// touches tx: every extractor upstream of it is a pure in-memory
// computation, satisfying §5's "exactly one thread calls commit" rule.
func mergeBucket(tx *bolt.Tx, bucketName []byte, acc *PostingAccumulator) error {
	b := tx.Bucket(bucketName)
	if b == nil {
		return apperr.Internal(nil, "pipeline: bucket %q missing", bucketName)
	}
	return acc.Merge(func(key, del, add []byte) error {
		bm := roaring.New()
		if existing := b.Get(key); existing != nil {
			decoded, err := rbitmap.Decode(existing)
			if err != nil {
				return apperr.Corruption(err, "pipeline: decode posting list for merge")
			}
			bm = decoded.Clone()
		}
		if del != nil {
			delBM, err := rbitmap.Decode(del)
			if err != nil {
				return apperr.Corruption(err, "pipeline: decode deletion bitmap")
			}
			bm.AndNot(delBM)
		}
		if add != nil {
			addBM, err := rbitmap.Decode(add)
			if err != nil {
				return apperr.Corruption(err, "pipeline: decode addition bitmap")
			}
			bm.Or(addBM)
		}
		if bm.IsEmpty() {
			if err := b.Delete(key); err != nil {
				return apperr.Internal(err, "pipeline: delete empty posting list")
			}
			return nil
		}
		return b.Put(key, rbitmap.Encode(bm))
	})
}

// mergeFacetNumbers applies acc's level-0 deltas through pkg/facet's
// AddDocids/RemoveDocids rather than writing BucketFacetNumberDocids
// directly, so the level-0 invariant that package already maintains
// (entries keyed by (fieldID, level 0, value, value)) stays in one place.
func mergeFacetNumbers(tx *bolt.Tx, acc *PostingAccumulator) error {
	return acc.Merge(func(key, del, add []byte) error {
		fieldID, _, low, _, err := kvcodec.DecodeFacetNumberKey(key)
		if err != nil {
			return apperr.Corruption(err, "pipeline: decode facet-number key")
		}
		if del != nil {
			delBM, err := rbitmap.Decode(del)
			if err != nil {
				return apperr.Corruption(err, "pipeline: decode facet deletion bitmap")
			}
			if err := facet.RemoveDocids(tx, fieldID, low, delBM); err != nil {
				return err
			}
		}
		if add != nil {
			addBM, err := rbitmap.Decode(add)
			if err != nil {
				return apperr.Corruption(err, "pipeline: decode facet addition bitmap")
			}
			if err := facet.AddDocids(tx, fieldID, low, addBM); err != nil {
				return err
			}
		}
		return nil
	})
}
