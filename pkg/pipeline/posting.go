package pipeline

import (
	"os"

	"github.com/RoaringBitmap/roaring/v2"

	"github.com/cuemby/milli-core/pkg/apperr"
	"github.com/cuemby/milli-core/pkg/rbitmap"
)

// unionCombine merges two encoded roaring bitmaps, used as every posting
// accumulator's Combine: within one batch, a key accumulates every docid
// that touched it as a single unioned bitmap, regardless of how many
// documents contributed to it.
func unionCombine(a, b []byte) []byte {
	ba, err := rbitmap.Decode(a)
	if err != nil {
		ba = roaring.New()
	}
	bb, err := rbitmap.Decode(b)
	if err != nil {
		bb = roaring.New()
	}
	ba.Or(bb)
	return rbitmap.Encode(ba)
}

// PostingAccumulator collects, for one inverted-structure bucket kind
// (word-docids, word-position-docids, ...), the docids removed from and
// added to each key across a batch. Stage 4 extractors only ever add a
// single docid at a time to one side; stage 5's merge applies
// new = (old - del) ∪ add against the live bucket.
type PostingAccumulator struct {
	del *Chunk
	add *Chunk
}

func newPostingAccumulator(dir string) *PostingAccumulator {
	return &PostingAccumulator{
		del: NewChunk(dir, 0, unionCombine),
		add: NewChunk(dir, 0, unionCombine),
	}
}

func (p *PostingAccumulator) addDoc(key []byte, docid uint32) error {
	bm := roaring.New()
	bm.Add(docid)
	return p.add.Put(key, rbitmap.Encode(bm))
}

func (p *PostingAccumulator) delDoc(key []byte, docid uint32) error {
	bm := roaring.New()
	bm.Add(docid)
	return p.del.Put(key, rbitmap.Encode(bm))
}

func (p *PostingAccumulator) Close() {
	p.del.Close()
	p.add.Close()
}

// Merge walks every key touched in either the del or add run and invokes
// apply with the key's deletion and addition bitmaps (either may be nil).
func (p *PostingAccumulator) Merge(apply func(key []byte, del, add []byte) error) error {
	pending := map[string][2][]byte{}
	var order []string

	collect := func(idx int) func(key, value []byte) bool {
		return func(key, value []byte) bool {
			k := string(key)
			entry, ok := pending[k]
			if !ok {
				order = append(order, k)
			}
			entry[idx] = value
			pending[k] = entry
			return true
		}
	}
	if err := p.del.Entries(func(k, v []byte) bool { return collect(0)(k, v) }); err != nil {
		return err
	}
	if err := p.add.Entries(func(k, v []byte) bool { return collect(1)(k, v) }); err != nil {
		return err
	}

	for _, k := range order {
		entry := pending[k]
		if err := apply([]byte(k), entry[0], entry[1]); err != nil {
			return err
		}
	}
	return nil
}

// newSpillDir creates a fresh temp directory for one pipeline run's chunk
// spill files, removed by the caller once the run completes.
func newSpillDir() (string, error) {
	dir, err := os.MkdirTemp("", "milli-pipeline-*")
	if err != nil {
		return "", apperr.Internal(err, "pipeline: create spill directory")
	}
	return dir, nil
}
