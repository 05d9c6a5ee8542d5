package facet

import (
	"github.com/RoaringBitmap/roaring/v2"
	"github.com/cuemby/milli-core/pkg/apperr"
	"github.com/cuemby/milli-core/pkg/kvcodec"
	"github.com/cuemby/milli-core/pkg/rbitmap"
	bolt "go.etcd.io/bbolt"
)

// AddDocids unions docids into the level-0 entry for (fieldID, value),
// creating it if absent. Callers (the pipeline's facet extractor) must
// call BuildLevels for fieldID once all of a batch's level-0 edits are
// applied.
func AddDocids(tx *bolt.Tx, fieldID uint16, value float64, docids *roaring.Bitmap) error {
	b, err := bucket(tx)
	if err != nil {
		return err
	}
	key := kvcodec.FacetNumberKey(fieldID, 0, value, value)
	bm := roaring.New()
	if existing := b.Get(key); existing != nil {
		bm, err = rbitmap.Decode(existing)
		if err != nil {
			return apperr.Corruption(err, "facet: decode level-0 docids for value %v", value)
		}
		bm = bm.Clone()
	}
	bm.Or(docids)
	return putOrDelete(b, key, bm)
}

// RemoveDocids clears docids from the level-0 entry for (fieldID, value),
// deleting the entry outright if it becomes empty.
func RemoveDocids(tx *bolt.Tx, fieldID uint16, value float64, docids *roaring.Bitmap) error {
	b, err := bucket(tx)
	if err != nil {
		return err
	}
	key := kvcodec.FacetNumberKey(fieldID, 0, value, value)
	existing := b.Get(key)
	if existing == nil {
		return nil
	}
	bm, err := rbitmap.Decode(existing)
	if err != nil {
		return apperr.Corruption(err, "facet: decode level-0 docids for value %v", value)
	}
	bm = bm.Clone()
	bm.AndNot(docids)
	return putOrDelete(b, key, bm)
}

func putOrDelete(b *bolt.Bucket, key []byte, bm *roaring.Bitmap) error {
	if bm.IsEmpty() {
		if err := b.Delete(key); err != nil {
			return apperr.Internal(err, "facet: delete empty level-0 entry")
		}
		return nil
	}
	if err := b.Put(key, rbitmap.Encode(bm)); err != nil {
		return apperr.Internal(err, "facet: write level-0 entry")
	}
	return nil
}

func bucket(tx *bolt.Tx) (*bolt.Bucket, error) {
	b := tx.Bucket(kvcodec.BucketFacetNumberDocids)
	if b == nil {
		return nil, apperr.Internal(nil, "facet: facet-number-docids bucket missing")
	}
	return b, nil
}
