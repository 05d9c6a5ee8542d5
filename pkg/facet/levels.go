package facet

import (
	"bytes"

	"github.com/RoaringBitmap/roaring/v2"
	"github.com/cuemby/milli-core/pkg/apperr"
	"github.com/cuemby/milli-core/pkg/kvcodec"
	"github.com/cuemby/milli-core/pkg/rbitmap"
	bolt "go.etcd.io/bbolt"
)

// DefaultGroupSize is the number of consecutive child entries summarized
// by one parent entry at the next level up.
const DefaultGroupSize = 4

// MaxLevels caps how many summary levels are built above level 0.
const MaxLevels = 4

type level0Entry struct {
	low, high float64
	bitmap    *roaring.Bitmap
}

// BuildLevels rebuilds every summary level (1..MaxLevels) for fieldID
// from its current level-0 entries. It is idempotent and safe to call
// after any batch that changed the field's facet values, since levels
// are derived artifacts (§3) that are always fully recomputed rather
// than incrementally patched.
func BuildLevels(tx *bolt.Tx, fieldID uint16) error {
	return buildLevelsGrouped(tx, fieldID, DefaultGroupSize)
}

func buildLevelsGrouped(tx *bolt.Tx, fieldID uint16, groupSize int) error {
	if groupSize < 2 {
		groupSize = DefaultGroupSize
	}
	b := tx.Bucket(kvcodec.BucketFacetNumberDocids)
	if b == nil {
		return apperr.Internal(nil, "facet: facet-number-docids bucket missing")
	}

	if err := deleteLevelsAbove(b, fieldID, 0); err != nil {
		return err
	}

	level, err := readLevel(b, fieldID, 0)
	if err != nil {
		return err
	}

	for lvl := uint8(1); lvl <= MaxLevels && len(level) > 1; lvl++ {
		next := make([]level0Entry, 0, (len(level)+groupSize-1)/groupSize)
		for i := 0; i < len(level); i += groupSize {
			end := i + groupSize
			if end > len(level) {
				end = len(level)
			}
			group := level[i:end]
			bm := roaring.New()
			for _, g := range group {
				bm.Or(g.bitmap)
			}
			low, high := group[0].low, group[len(group)-1].high
			key := kvcodec.FacetNumberKey(fieldID, lvl, low, high)
			if err := b.Put(key, rbitmap.Encode(bm)); err != nil {
				return apperr.Internal(err, "facet: write level %d summary", lvl)
			}
			next = append(next, level0Entry{low: low, high: high, bitmap: bm})
		}
		level = next
	}
	return nil
}

// readLevel loads every entry at (fieldID, level) in key order (which is
// ascending by low, then high, per kvcodec's byte layout).
func readLevel(b *bolt.Bucket, fieldID uint16, level uint8) ([]level0Entry, error) {
	prefix := kvcodec.FacetNumberLevelPrefix(fieldID, level)
	var entries []level0Entry
	c := b.Cursor()
	for k, v := c.Seek(prefix); k != nil && bytes.HasPrefix(k, prefix); k, v = c.Next() {
		_, _, low, high, err := kvcodec.DecodeFacetNumberKey(k)
		if err != nil {
			return nil, apperr.Corruption(err, "facet: decode level-%d key", level)
		}
		bm, err := rbitmap.Decode(v)
		if err != nil {
			return nil, apperr.Corruption(err, "facet: decode level-%d docids", level)
		}
		entries = append(entries, level0Entry{low: low, high: high, bitmap: bm})
	}
	return entries, nil
}

// deleteLevelsAbove removes every persisted entry for fieldID at a level
// strictly greater than floor, so BuildLevels can recompute them from
// scratch without leaving stale higher levels behind if the value count
// shrank.
func deleteLevelsAbove(b *bolt.Bucket, fieldID uint16, floor uint8) error {
	for lvl := floor + 1; lvl <= MaxLevels; lvl++ {
		prefix := kvcodec.FacetNumberLevelPrefix(fieldID, lvl)
		c := b.Cursor()
		var keys [][]byte
		for k, _ := c.Seek(prefix); k != nil && bytes.HasPrefix(k, prefix); k, _ = c.Next() {
			keys = append(keys, append([]byte(nil), k...))
		}
		for _, k := range keys {
			if err := b.Delete(k); err != nil {
				return apperr.Internal(err, "facet: delete stale level %d entry", lvl)
			}
		}
	}
	return nil
}
