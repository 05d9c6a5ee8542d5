package consistency

import (
	"github.com/RoaringBitmap/roaring/v2"
	bolt "go.etcd.io/bbolt"

	"github.com/cuemby/milli-core/pkg/apperr"
	"github.com/cuemby/milli-core/pkg/kvcodec"
	"github.com/cuemby/milli-core/pkg/rbitmap"
	"github.com/cuemby/milli-core/pkg/termfst"
)

// Check walks a read transaction and verifies every invariant the data
// model promises holds at the end of a committed write. It returns the
// first violation found, wrapped as apperr.Corruption, or nil.
func Check(tx *bolt.Tx) error {
	live, err := liveDocids(tx)
	if err != nil {
		return err
	}
	if err := checkWordsFstBijection(tx); err != nil {
		return err
	}
	if err := checkPostingDocidsExist(tx, live); err != nil {
		return err
	}
	if err := checkExternalIDsBijection(tx); err != nil {
		return err
	}
	if err := checkFacetLevelCoverage(tx); err != nil {
		return err
	}
	if err := checkProximitySubset(tx); err != nil {
		return err
	}
	if err := checkDocumentsMatchExternalIDs(tx); err != nil {
		return err
	}
	return nil
}

func liveDocids(tx *bolt.Tx) (*roaring.Bitmap, error) {
	b := tx.Bucket(kvcodec.BucketDocuments)
	if b == nil {
		return nil, apperr.Internal(nil, "consistency: documents bucket missing")
	}
	acc := roaring.New()
	c := b.Cursor()
	for k, _ := c.First(); k != nil; k, _ = c.Next() {
		id, err := kvcodec.DecodeU32(k)
		if err != nil {
			return nil, apperr.Corruption(err, "consistency: decode document key")
		}
		acc.Add(id)
	}
	return acc, nil
}

// checkWordsFstBijection verifies invariant 1: every word with a posting
// list appears in WordsFst, and every word in WordsFst has a posting
// list, i.e. the two key sets are identical.
func checkWordsFstBijection(tx *bolt.Tx) error {
	meta := tx.Bucket(kvcodec.BucketMeta)
	if meta == nil {
		return apperr.Internal(nil, "consistency: meta bucket missing")
	}
	fst, err := termfst.Load(meta.Get([]byte(kvcodec.KeyWordsFst)))
	if err != nil {
		return apperr.Corruption(err, "consistency: load words fst")
	}

	words := tx.Bucket(kvcodec.BucketWordDocids)
	if words == nil {
		return apperr.Internal(nil, "consistency: word-docids bucket missing")
	}

	c := words.Cursor()
	for k, _ := c.First(); k != nil; k, _ = c.Next() {
		if !fst.Contains(string(k)) {
			return apperr.Corruption(nil, "consistency: word %q has postings but is absent from the words fst", string(k))
		}
	}

	var missing string
	found := false
	if err := fst.PrefixIter("", func(key string, _ uint64) bool {
		if words.Get([]byte(key)) == nil {
			missing = key
			found = true
			return false
		}
		return true
	}); err != nil {
		return apperr.Corruption(err, "consistency: walk words fst")
	}
	if found {
		return apperr.Corruption(nil, "consistency: word %q is in the words fst but has no postings", missing)
	}
	return nil
}

// checkPostingDocidsExist verifies invariant 2 across every bucket whose
// values are docid bitmaps: every docid they mention must be a live key
// in DocumentsStore.
func checkPostingDocidsExist(tx *bolt.Tx, live *roaring.Bitmap) error {
	buckets := [][]byte{
		kvcodec.BucketWordDocids,
		kvcodec.BucketWordPrefixDocids,
		kvcodec.BucketWordPositionDocids,
		kvcodec.BucketWordFidDocids,
		kvcodec.BucketWordPairProximityDocids,
		kvcodec.BucketFacetNumberDocids,
		kvcodec.BucketFacetStringDocids,
	}
	for _, name := range buckets {
		b := tx.Bucket(name)
		if b == nil {
			continue
		}
		c := b.Cursor()
		for k, v := c.First(); k != nil; k, v = c.Next() {
			bm, err := rbitmap.Decode(v)
			if err != nil {
				return apperr.Corruption(err, "consistency: decode posting bitmap in %q", string(name))
			}
			orphan := bm.Clone()
			orphan.AndNot(live)
			if !orphan.IsEmpty() {
				return apperr.Corruption(nil, "consistency: bucket %q key %q references docid(s) %v absent from documents store",
					string(name), string(k), orphan.ToArray())
			}
		}
	}
	return nil
}

// checkExternalIDsBijection verifies invariant 3: the forward fst
// (external -> internal) and the reverse bucket (internal -> external)
// agree in both directions, and no two external ids collide on one
// internal docid.
func checkExternalIDsBijection(tx *bolt.Tx) error {
	fwdBucket := tx.Bucket(kvcodec.BucketExternalToInternal)
	revBucket := tx.Bucket(kvcodec.BucketInternalToExternal)
	if fwdBucket == nil || revBucket == nil {
		return apperr.Internal(nil, "consistency: external/internal id buckets missing")
	}

	fwd, err := termfst.Load(fwdBucket.Get([]byte{}))
	if err != nil {
		return apperr.Corruption(err, "consistency: load external-to-internal fst")
	}

	seen := map[uint32]string{}
	var walkErr error
	if err := fwd.PrefixIter("", func(key string, value uint64) bool {
		id := uint32(value)
		if prior, dup := seen[id]; dup {
			walkErr = apperr.Corruption(nil, "consistency: external ids %q and %q both map to internal docid %d", prior, key, id)
			return false
		}
		seen[id] = key

		extForID := revBucket.Get(kvcodec.EncodeU32(id))
		if extForID == nil || string(extForID) != key {
			walkErr = apperr.Corruption(nil, "consistency: external id %q maps to docid %d, but reverse lookup gives %q", key, id, string(extForID))
			return false
		}
		return true
	}); err != nil {
		return apperr.Corruption(err, "consistency: walk external-to-internal fst")
	}
	if walkErr != nil {
		return walkErr
	}

	c := revBucket.Cursor()
	for k, v := c.First(); k != nil; k, v = c.Next() {
		id, err := kvcodec.DecodeU32(k)
		if err != nil {
			return apperr.Corruption(err, "consistency: decode internal-to-external key")
		}
		got, ok := fwd.Get(string(v))
		if !ok || uint32(got) != id {
			return apperr.Corruption(nil, "consistency: docid %d maps to external id %q, but forward lookup doesn't agree", id, string(v))
		}
	}
	return nil
}

// checkFacetLevelCoverage verifies invariant 4 for every field with
// numeric facet entries: level-0 entries are single points (low == high),
// and every level-k>0 entry's bitmap equals the union of exactly the
// level-0 entries whose point value falls within that entry's bounds.
func checkFacetLevelCoverage(tx *bolt.Tx) error {
	b := tx.Bucket(kvcodec.BucketFacetNumberDocids)
	if b == nil {
		return nil
	}

	type point struct {
		value  float64
		bitmap *roaring.Bitmap
	}
	byField := map[uint16][]point{}
	type higher struct {
		fieldID   uint16
		low, high float64
		bitmap    *roaring.Bitmap
	}
	var highers []higher

	c := b.Cursor()
	for k, v := c.First(); k != nil; k, v = c.Next() {
		fieldID, level, low, high, err := kvcodec.DecodeFacetNumberKey(k)
		if err != nil {
			return apperr.Corruption(err, "consistency: decode facet-number key")
		}
		bm, err := rbitmap.Decode(v)
		if err != nil {
			return apperr.Corruption(err, "consistency: decode facet-number bitmap")
		}
		if level == 0 {
			if low != high {
				return apperr.Corruption(nil, "consistency: facet field %d level-0 entry has low=%v != high=%v", fieldID, low, high)
			}
			byField[fieldID] = append(byField[fieldID], point{value: low, bitmap: bm})
		} else {
			highers = append(highers, higher{fieldID: fieldID, low: low, high: high, bitmap: bm})
		}
	}

	for _, h := range highers {
		expected := roaring.New()
		for _, p := range byField[h.fieldID] {
			if p.value >= h.low && p.value <= h.high {
				expected.Or(p.bitmap)
			}
		}
		if !expected.Equals(h.bitmap) {
			return apperr.Corruption(nil, "consistency: facet field %d range [%v,%v] does not equal the union of its level-0 descendants", h.fieldID, h.low, h.high)
		}
	}
	return nil
}

// checkProximitySubset verifies invariant 5.
func checkProximitySubset(tx *bolt.Tx) error {
	pairs := tx.Bucket(kvcodec.BucketWordPairProximityDocids)
	words := tx.Bucket(kvcodec.BucketWordDocids)
	if pairs == nil || words == nil {
		return nil
	}

	wordBitmap := func(w string) (*roaring.Bitmap, error) {
		v := words.Get([]byte(w))
		if v == nil {
			return roaring.New(), nil
		}
		return rbitmap.Decode(v)
	}

	c := pairs.Cursor()
	for k, v := c.First(); k != nil; k, v = c.Next() {
		wordA, wordB, proximity, err := kvcodec.DecodeWordPairProximityKey(k)
		if err != nil {
			return apperr.Corruption(err, "consistency: decode word-pair-proximity key")
		}
		if proximity < 1 || proximity > 8 {
			return apperr.Corruption(nil, "consistency: pair (%q,%q) has out-of-range proximity %d", wordA, wordB, proximity)
		}
		pairBm, err := rbitmap.Decode(v)
		if err != nil {
			return apperr.Corruption(err, "consistency: decode word-pair-proximity bitmap")
		}
		aBm, err := wordBitmap(wordA)
		if err != nil {
			return err
		}
		bBm, err := wordBitmap(wordB)
		if err != nil {
			return err
		}
		intersection := aBm
		intersection.And(bBm)

		extra := pairBm.Clone()
		extra.AndNot(intersection)
		if !extra.IsEmpty() {
			return apperr.Corruption(nil, "consistency: pair (%q,%q,%d) has docid(s) %v outside word_docids[%q] ∩ word_docids[%q]",
				wordA, wordB, proximity, extra.ToArray(), wordA, wordB)
		}
	}
	return nil
}

// checkDocumentsMatchExternalIDs verifies invariant 6: the key set of
// DocumentsStore equals the value set of ExternalDocumentsIds, which is
// exactly the key set of BucketInternalToExternal (keyed by internal
// docid, the same values ExternalDocumentsIds maps onto).
func checkDocumentsMatchExternalIDs(tx *bolt.Tx) error {
	docs := tx.Bucket(kvcodec.BucketDocuments)
	rev := tx.Bucket(kvcodec.BucketInternalToExternal)
	if docs == nil || rev == nil {
		return apperr.Internal(nil, "consistency: documents/internal-to-external buckets missing")
	}

	docIDs, err := liveDocids(tx)
	if err != nil {
		return err
	}

	mapped := roaring.New()
	c := rev.Cursor()
	for k, _ := c.First(); k != nil; k, _ = c.Next() {
		id, err := kvcodec.DecodeU32(k)
		if err != nil {
			return apperr.Corruption(err, "consistency: decode internal-to-external key")
		}
		mapped.Add(id)
	}

	if !docIDs.Equals(mapped) {
		onlyDocs := docIDs.Clone()
		onlyDocs.AndNot(mapped)
		onlyMapped := mapped.Clone()
		onlyMapped.AndNot(docIDs)
		return apperr.Corruption(nil, "consistency: documents store and external-id mapping disagree (documents only: %v, mapping only: %v)",
			onlyDocs.ToArray(), onlyMapped.ToArray())
	}
	return nil
}
