package facet

import (
	"bytes"

	"github.com/RoaringBitmap/roaring/v2"
	"github.com/cuemby/milli-core/pkg/kvcodec"
	bolt "go.etcd.io/bbolt"
)

// RangeQuery returns the union of docids whose value for fieldID falls
// in [low, high], descending the hierarchy built by BuildLevels: fully
// covered groups are unioned without inspecting their children, and only
// groups that straddle the range boundary are descended into, per §4.G.
func RangeQuery(tx *bolt.Tx, fieldID uint16, low, high float64) (*roaring.Bitmap, error) {
	b, err := bucket(tx)
	if err != nil {
		return nil, err
	}
	top, err := highestLevel(b, fieldID)
	if err != nil {
		return nil, err
	}
	acc := roaring.New()
	if err := descend(b, fieldID, top, low, high, acc); err != nil {
		return nil, err
	}
	return acc, nil
}

// highestLevel finds the topmost level with at least one entry for
// fieldID, so RangeQuery starts its descent as high as BuildLevels
// actually built rather than assuming MaxLevels always exists (a field
// with very few distinct values may stop earlier).
func highestLevel(b *bolt.Bucket, fieldID uint16) (uint8, error) {
	for lvl := uint8(MaxLevels); lvl > 0; lvl-- {
		prefix := kvcodec.FacetNumberLevelPrefix(fieldID, lvl)
		c := b.Cursor()
		if k, _ := c.Seek(prefix); k != nil && bytes.HasPrefix(k, prefix) {
			return lvl, nil
		}
	}
	return 0, nil
}

func descend(b *bolt.Bucket, fieldID uint16, level uint8, low, high float64, acc *roaring.Bitmap) error {
	entries, err := readLevel(b, fieldID, level)
	if err != nil {
		return err
	}
	for _, e := range entries {
		if e.high < low || e.low > high {
			continue // no overlap with the requested range
		}
		if e.low >= low && e.high <= high {
			acc.Or(e.bitmap) // fully covered: take the summary directly
			continue
		}
		if level == 0 {
			continue // a level-0 entry is a single value; no overlap means no match
		}
		childLow, childHigh := low, high
		if childLow < e.low {
			childLow = e.low
		}
		if childHigh > e.high {
			childHigh = e.high
		}
		if err := descend(b, fieldID, level-1, childLow, childHigh, acc); err != nil {
			return err
		}
	}
	return nil
}
