package termfst

import (
	"bytes"
	"fmt"
	"io"
	"sort"

	"github.com/blevesearch/vellum"
)

// Entry is one (key, value) pair to build into a Map.
type Entry struct {
	Key   string
	Value uint64
}

// Map is an immutable, serialized finite-state transducer from string
// keys to uint64 values.
type Map struct {
	fst *vellum.FST
}

// Build serializes entries into an FST blob. Duplicate keys are rejected:
// callers that need last-write-wins semantics must dedupe before calling.
func Build(entries []Entry) ([]byte, error) {
	sorted := append([]Entry(nil), entries...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Key < sorted[j].Key })

	var buf bytes.Buffer
	builder, err := vellum.New(&buf, nil)
	if err != nil {
		return nil, fmt.Errorf("termfst: new builder: %w", err)
	}
	for i, e := range sorted {
		if i > 0 && sorted[i-1].Key == e.Key {
			return nil, fmt.Errorf("termfst: duplicate key %q", e.Key)
		}
		if err := builder.Insert([]byte(e.Key), e.Value); err != nil {
			return nil, fmt.Errorf("termfst: insert %q: %w", e.Key, err)
		}
	}
	if err := builder.Close(); err != nil {
		return nil, fmt.Errorf("termfst: close builder: %w", err)
	}
	return buf.Bytes(), nil
}

// BuildSet is a convenience over Build for the common case of a plain
// ordered set: every key maps to value 0.
func BuildSet(words []string) ([]byte, error) {
	entries := make([]Entry, len(words))
	for i, w := range words {
		entries[i] = Entry{Key: w}
	}
	return Build(entries)
}

// Load parses a previously-built FST blob. data is retained by reference
// (vellum memory-maps or slices it directly); callers that need to mutate
// or free the backing array must rebuild the Map first.
func Load(data []byte) (*Map, error) {
	if len(data) == 0 {
		return &Map{}, nil
	}
	fst, err := vellum.Load(data)
	if err != nil {
		return nil, fmt.Errorf("termfst: load: %w", err)
	}
	return &Map{fst: fst}, nil
}

// Get returns the value associated with key and whether key is present.
func (m *Map) Get(key string) (uint64, bool) {
	if m == nil || m.fst == nil {
		return 0, false
	}
	v, ok, err := m.fst.Get([]byte(key))
	if err != nil {
		return 0, false
	}
	return v, ok
}

// Contains reports exact membership.
func (m *Map) Contains(key string) bool {
	_, ok := m.Get(key)
	return ok
}

// PrefixIter streams every (key, value) pair whose key extends prefix, in
// FST output order (which is lexicographic for byte-comparable keys).
// Returning false from yield stops the walk early.
func (m *Map) PrefixIter(prefix string, yield func(key string, value uint64) bool) error {
	if m == nil || m.fst == nil {
		return nil
	}
	start := []byte(prefix)
	end := prefixUpperBound(start)
	it, err := m.fst.Iterator(start, end)
	return m.walk(it, err, yield)
}

// Search streams every (key, value) pair accepted by aut, in FST output
// order. Used for the Levenshtein-bounded iteration built by
// NewLevenshteinAutomaton, but accepts any vellum.Automaton.
func (m *Map) Search(aut vellum.Automaton, yield func(key string, value uint64) bool) error {
	if m == nil || m.fst == nil {
		return nil
	}
	it, err := m.fst.Search(aut, nil, nil)
	return m.walk(it, err, yield)
}

func (m *Map) walk(it *vellum.FSTIterator, err error, yield func(key string, value uint64) bool) error {
	for err == nil {
		key, val := it.Current()
		if !yield(string(key), val) {
			return nil
		}
		err = it.Next()
	}
	if err == vellum.ErrIteratorDone {
		return nil
	}
	return fmt.Errorf("termfst: iterate: %w", err)
}

// WriteTo re-serializes the map's FST bytes, for callers that loaded a
// Map and need to persist it unchanged (no such path currently exists,
// kept for symmetry with Load).
func (m *Map) WriteTo(w io.Writer) (int64, error) {
	if m == nil || m.fst == nil {
		return 0, nil
	}
	return m.fst.WriteTo(w)
}

// prefixUpperBound returns the smallest key that is not prefixed by
// prefix, for use as an exclusive iterator bound. A prefix made entirely
// of 0xff bytes has no such bound, in which case nil (unbounded) is
// returned.
func prefixUpperBound(prefix []byte) []byte {
	end := append([]byte(nil), prefix...)
	for i := len(end) - 1; i >= 0; i-- {
		if end[i] < 0xff {
			end[i]++
			return end[:i+1]
		}
	}
	return nil
}
