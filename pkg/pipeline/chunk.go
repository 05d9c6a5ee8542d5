package pipeline

import (
	"bytes"
	"container/heap"
	"encoding/binary"
	"io"
	"os"

	"github.com/blevesearch/mmap-go"
	"github.com/google/btree"
	"github.com/klauspost/compress/zstd"

	"github.com/cuemby/milli-core/pkg/apperr"
)

// Combine merges two values stored under the same key, e.g. unioning two
// roaring-bitmap posting lists extracted from different documents in the
// same batch.
type Combine func(a, b []byte) []byte

// chunkEntry is one (key, value) pair kept in a Chunk's in-memory tree.
type chunkEntry struct {
	key   []byte
	value []byte
}

func chunkLess(a, b chunkEntry) bool {
	return bytes.Compare(a.key, b.key) < 0
}

// Chunk is one side of an extractor's sorted output (the "grenad" chunk
// of §4.F/§9). It is not safe for concurrent use; the word extractor's
// workers serialize their writes. Entries accumulate in a github.com/google/btree ordered
// tree keyed by byte order, matching the key encodings of pkg/kvcodec, so
// the merge stage can walk every chunk in lockstep. Once the in-memory
// tree grows past spillThreshold entries it is flushed to a
// zstd-compressed temp file and a fresh tree started, bounding a single
// worker's resident memory regardless of batch size.
type Chunk struct {
	combine        Combine
	spillThreshold int
	tree           *btree.BTreeG[chunkEntry]
	spillFiles     []string
	dir            string
}

// NewChunk returns an empty chunk. combine resolves duplicate keys within
// and across spilled runs; dir is the temp directory spill files are
// written to (created by the caller, usually once per pipeline run).
func NewChunk(dir string, spillThreshold int, combine Combine) *Chunk {
	if spillThreshold <= 0 {
		spillThreshold = 200_000
	}
	return &Chunk{
		combine:        combine,
		spillThreshold: spillThreshold,
		tree:           btree.NewG(32, chunkLess),
		dir:            dir,
	}
}

// Put inserts or merges (key, value) into the chunk's current in-memory
// run, spilling to disk once the run crosses spillThreshold entries.
func (c *Chunk) Put(key, value []byte) error {
	e := chunkEntry{key: append([]byte(nil), key...), value: append([]byte(nil), value...)}
	if old, ok := c.tree.Get(e); ok {
		e.value = c.combine(old.value, e.value)
	}
	c.tree.ReplaceOrInsert(e)
	if c.tree.Len() >= c.spillThreshold {
		return c.spill()
	}
	return nil
}

// spill writes the current in-memory run out as a zstd-compressed, sorted
// sequence of length-prefixed (key, value) records and resets the tree.
func (c *Chunk) spill() error {
	if c.tree.Len() == 0 {
		return nil
	}
	f, err := os.CreateTemp(c.dir, "chunk-*.grenad.zst")
	if err != nil {
		return apperr.Internal(err, "pipeline: create spill file")
	}
	defer f.Close()

	zw, err := zstd.NewWriter(f)
	if err != nil {
		return apperr.Internal(err, "pipeline: create zstd writer")
	}
	c.tree.Ascend(func(e chunkEntry) bool {
		writeRecord(zw, e)
		return true
	})
	if err := zw.Close(); err != nil {
		return apperr.Internal(err, "pipeline: close zstd writer")
	}
	c.spillFiles = append(c.spillFiles, f.Name())
	c.tree.Clear(false)
	return nil
}

func writeRecord(w io.Writer, e chunkEntry) {
	var lenBuf [8]byte
	binary.BigEndian.PutUint32(lenBuf[0:4], uint32(len(e.key)))
	binary.BigEndian.PutUint32(lenBuf[4:8], uint32(len(e.value)))
	w.Write(lenBuf[:])
	w.Write(e.key)
	w.Write(e.value)
}

// Close removes every spill file this chunk created. Call after the merge
// stage has consumed Entries().
func (c *Chunk) Close() {
	for _, path := range c.spillFiles {
		os.Remove(path)
	}
	c.spillFiles = nil
}

// runCursor is a single sorted-run's forward iterator, backed either by
// the in-memory tree (already sorted) or a decompressed spill file.
type runCursor struct {
	entries []chunkEntry
	pos     int
}

func (r *runCursor) peek() (chunkEntry, bool) {
	if r.pos >= len(r.entries) {
		return chunkEntry{}, false
	}
	return r.entries[r.pos], true
}

func (r *runCursor) advance() {
	r.pos++
}

// heapItem pairs a run cursor with the index of the cursor slice it lives
// in, so the k-way merge heap can advance the right cursor after popping.
type heapItem struct {
	entry chunkEntry
	run   int
}

type mergeHeap []heapItem

func (h mergeHeap) Len() int            { return len(h) }
func (h mergeHeap) Less(i, j int) bool  { return bytes.Compare(h[i].entry.key, h[j].entry.key) < 0 }
func (h mergeHeap) Swap(i, j int)       { h[i], h[j] = h[j], h[i] }
func (h *mergeHeap) Push(x interface{}) { *h = append(*h, x.(heapItem)) }
func (h *mergeHeap) Pop() interface{} {
	old := *h
	n := len(old)
	item := old[n-1]
	*h = old[:n-1]
	return item
}

// Entries performs a k-way merge across the in-memory tree plus every
// spilled run (memory-mapped through github.com/blevesearch/mmap-go, then
// decompressed whole into memory before the merge starts), invoking combine on any keys shared between runs, and yields the
// result in ascending key order via yield. Returning false from yield
// stops the merge early.
func (c *Chunk) Entries(yield func(key, value []byte) bool) error {
	var cursors []*runCursor

	mem := make([]chunkEntry, 0, c.tree.Len())
	c.tree.Ascend(func(e chunkEntry) bool {
		mem = append(mem, e)
		return true
	})
	if len(mem) > 0 {
		cursors = append(cursors, &runCursor{entries: mem})
	}

	var mmaps []mmap.MMap
	var files []*os.File
	defer func() {
		for _, m := range mmaps {
			m.Unmap()
		}
		for _, f := range files {
			f.Close()
		}
	}()

	for _, path := range c.spillFiles {
		f, err := os.Open(path)
		if err != nil {
			return apperr.Internal(err, "pipeline: open spill file")
		}
		files = append(files, f)

		m, err := mmap.Map(f, mmap.RDONLY, 0)
		if err != nil {
			return apperr.Internal(err, "pipeline: mmap spill file")
		}
		mmaps = append(mmaps, m)

		entries, err := readAllRecords(m)
		if err != nil {
			return err
		}
		cursors = append(cursors, &runCursor{entries: entries})
	}

	h := make(mergeHeap, 0, len(cursors))
	for i, cur := range cursors {
		if e, ok := cur.peek(); ok {
			h = append(h, heapItem{entry: e, run: i})
		}
	}
	heap.Init(&h)

	for h.Len() > 0 {
		item := heap.Pop(&h).(heapItem)
		key := item.entry.key
		value := item.entry.value
		cursors[item.run].advance()
		if e, ok := cursors[item.run].peek(); ok {
			heap.Push(&h, heapItem{entry: e, run: item.run})
		}

		// Merge in every other run's entry for the same key before yielding.
		for h.Len() > 0 && bytes.Equal(h[0].entry.key, key) {
			dup := heap.Pop(&h).(heapItem)
			value = c.combine(value, dup.entry.value)
			cursors[dup.run].advance()
			if e, ok := cursors[dup.run].peek(); ok {
				heap.Push(&h, heapItem{entry: e, run: dup.run})
			}
		}

		if !yield(key, value) {
			return nil
		}
	}
	return nil
}

func readAllRecords(data []byte) ([]chunkEntry, error) {
	zr, err := zstd.NewReader(bytes.NewReader(data))
	if err != nil {
		return nil, apperr.Internal(err, "pipeline: create zstd reader")
	}
	defer zr.Close()

	raw, err := io.ReadAll(zr)
	if err != nil {
		return nil, apperr.Internal(err, "pipeline: decompress spill file")
	}

	var entries []chunkEntry
	for off := 0; off < len(raw); {
		if off+8 > len(raw) {
			return nil, apperr.Corruption(nil, "pipeline: truncated spill record header")
		}
		keyLen := binary.BigEndian.Uint32(raw[off : off+4])
		valLen := binary.BigEndian.Uint32(raw[off+4 : off+8])
		off += 8
		if off+int(keyLen)+int(valLen) > len(raw) {
			return nil, apperr.Corruption(nil, "pipeline: truncated spill record body")
		}
		key := raw[off : off+int(keyLen)]
		off += int(keyLen)
		val := raw[off : off+int(valLen)]
		off += int(valLen)
		entries = append(entries, chunkEntry{key: key, value: val})
	}
	return entries, nil
}
