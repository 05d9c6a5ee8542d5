package pipeline

import (
	"github.com/RoaringBitmap/roaring/v2"
	bolt "go.etcd.io/bbolt"

	"github.com/cuemby/milli-core/pkg/apperr"
	"github.com/cuemby/milli-core/pkg/facet"
	"github.com/cuemby/milli-core/pkg/kvcodec"
	"github.com/cuemby/milli-core/pkg/rbitmap"
	"github.com/cuemby/milli-core/pkg/termfst"
)

// DefaultMaxPrefixLength caps how long a prefix BucketWordPrefixDocids
// indexes, per §4.C's bound on prefix-search cost. Query-time prefix
// derivation does not read this bucket: pkg/querygraph enumerates the
// full indexed words that extend the last token from the words FST, at
// any length.
const DefaultMaxPrefixLength = 4

// RebuildWordsFst re-derives the words-fst meta record and
// BucketWordPrefixDocids from the current (post-merge) contents of
// BucketWordDocids. It rebuilds from scratch rather than patching the old
// FST and prefix cache incrementally: vellum FSTs are immutable once
// built, and a full scan of BucketWordDocids is cheap relative to the
// per-document extraction work stage 4 already did.
func RebuildWordsFst(tx *bolt.Tx, maxPrefixLength int) error {
	if maxPrefixLength <= 0 {
		maxPrefixLength = DefaultMaxPrefixLength
	}
	wordsBucket := tx.Bucket(kvcodec.BucketWordDocids)
	if wordsBucket == nil {
		return apperr.Internal(nil, "pipeline: word-docids bucket missing")
	}
	prefixBucket := tx.Bucket(kvcodec.BucketWordPrefixDocids)
	if prefixBucket == nil {
		return apperr.Internal(nil, "pipeline: word-prefix-docids bucket missing")
	}
	metaBucket := tx.Bucket(kvcodec.BucketMeta)
	if metaBucket == nil {
		return apperr.Internal(nil, "pipeline: meta bucket missing")
	}

	prefixAccum := map[string]*roaring.Bitmap{}
	var words []string

	c := wordsBucket.Cursor()
	for k, v := c.First(); k != nil; k, v = c.Next() {
		word := string(k)
		words = append(words, word)

		bm, err := rbitmap.Decode(v)
		if err != nil {
			return apperr.Corruption(err, "pipeline: decode word-docids entry for %q", word)
		}
		runes := []rune(word)
		limit := len(runes)
		if limit > maxPrefixLength {
			limit = maxPrefixLength
		}
		for n := 1; n <= limit; n++ {
			prefix := string(runes[:n])
			acc, ok := prefixAccum[prefix]
			if !ok {
				acc = roaring.New()
				prefixAccum[prefix] = acc
			}
			acc.Or(bm)
		}
	}

	if err := clearBucket(prefixBucket); err != nil {
		return err
	}
	for prefix, bm := range prefixAccum {
		if err := prefixBucket.Put([]byte(prefix), rbitmap.Encode(bm)); err != nil {
			return apperr.Internal(err, "pipeline: write prefix entry %q", prefix)
		}
	}

	fstBytes, err := termfst.BuildSet(words)
	if err != nil {
		return apperr.Internal(err, "pipeline: build words fst")
	}
	if err := metaBucket.Put([]byte(kvcodec.KeyWordsFst), fstBytes); err != nil {
		return apperr.Internal(err, "pipeline: write words fst")
	}
	return nil
}

func clearBucket(b *bolt.Bucket) error {
	c := b.Cursor()
	for k, _ := c.First(); k != nil; k, _ = c.First() {
		if err := b.Delete(k); err != nil {
			return apperr.Internal(err, "pipeline: clear bucket")
		}
	}
	return nil
}

// RebuildFacetLevels calls facet.BuildLevels for every numeric field
// touched by the batch's facet extraction.
func RebuildFacetLevels(tx *bolt.Tx, fieldIDs map[uint16]bool) error {
	for fieldID := range fieldIDs {
		if err := facet.BuildLevels(tx, fieldID); err != nil {
			return err
		}
	}
	return nil
}
