package ranking

import (
	"github.com/RoaringBitmap/roaring/v2"
	bolt "go.etcd.io/bbolt"

	"github.com/cuemby/milli-core/pkg/apperr"
	"github.com/cuemby/milli-core/pkg/kvcodec"
	"github.com/cuemby/milli-core/pkg/querygraph"
	"github.com/cuemby/milli-core/pkg/rbitmap"
)

// getBitmap decodes the roaring bitmap stored at key in bucketName, or an
// empty bitmap if the key is absent.
func getBitmap(tx *bolt.Tx, bucketName, key []byte) (*roaring.Bitmap, error) {
	b := tx.Bucket(bucketName)
	if b == nil {
		return nil, apperr.Internal(nil, "ranking: bucket %q missing", bucketName)
	}
	v := b.Get(key)
	if v == nil {
		return roaring.New(), nil
	}
	bm, err := rbitmap.Decode(v)
	if err != nil {
		return nil, apperr.Corruption(err, "ranking: decode postings for key %q", key)
	}
	return bm, nil
}

func wordDocids(tx *bolt.Tx, word string) (*roaring.Bitmap, error) {
	return getBitmap(tx, kvcodec.BucketWordDocids, []byte(word))
}

func prefixDocids(tx *bolt.Tx, prefix string) (*roaring.Bitmap, error) {
	return getBitmap(tx, kvcodec.BucketWordPrefixDocids, []byte(prefix))
}

func wordFidDocids(tx *bolt.Tx, word string, fieldID uint16) (*roaring.Bitmap, error) {
	return getBitmap(tx, kvcodec.BucketWordFidDocids, kvcodec.WordFidKey(word, fieldID))
}

func pairProximityDocids(tx *bolt.Tx, wordA, wordB string, proximity uint8) (*roaring.Bitmap, error) {
	if wordB < wordA {
		wordA, wordB = wordB, wordA
	}
	return getBitmap(tx, kvcodec.BucketWordPairProximityDocids, kvcodec.WordPairProximityKey(wordA, wordB, proximity))
}

// nodeWords flattens a querygraph.Node into the individual indexed words
// it resolves to: one word for Exact/Prefix/Typo/Ngram, the whole
// sequence for Phrase/Synonym/Split.
func nodeWords(n querygraph.Node) []string {
	if n.Phrase != nil {
		return n.Phrase
	}
	if n.Word != "" {
		return []string{n.Word}
	}
	return nil
}

// nodeDocids computes the docids a node matches by reading (and, for
// multi-word nodes, intersecting) the exact word bucket. A prefix node
// holds a complete indexed word that extends the query token, so it reads
// the word bucket too. This does not account for phrase adjacency — see
// the Design notes in DESIGN.md.
func nodeDocids(tx *bolt.Tx, n querygraph.Node) (*roaring.Bitmap, error) {
	words := nodeWords(n)
	if len(words) == 0 {
		return roaring.New(), nil
	}
	fetch := wordDocids
	acc, err := fetch(tx, words[0])
	if err != nil {
		return nil, err
	}
	acc = acc.Clone()
	for _, w := range words[1:] {
		bm, err := fetch(tx, w)
		if err != nil {
			return nil, err
		}
		acc.And(bm)
	}
	return acc, nil
}

// nonSentinelNodes returns the ids in nodeIDs that aren't the graph's
// start/end sentinels, preserving order. A nil nodeIDs means "every node
// in the graph", used for the bottommost rule's first call.
func nonSentinelNodes(g *querygraph.Graph, nodeIDs []int) []int {
	if nodeIDs == nil {
		nodeIDs = make([]int, len(g.Nodes))
		for i := range nodeIDs {
			nodeIDs[i] = i
		}
	}
	out := make([]int, 0, len(nodeIDs))
	for _, id := range nodeIDs {
		if id == g.Start || id == g.End {
			continue
		}
		out = append(out, id)
	}
	return out
}
