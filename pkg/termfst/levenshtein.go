package termfst

import (
	"fmt"

	"github.com/blevesearch/vellum"
	"github.com/blevesearch/vellum/levenshtein"
)

// NewLevenshteinAutomaton builds a bounded edit-distance automaton for
// word accepting every string within maxEdits Damerau-Levenshtein edits.
// maxEdits must be 1 or 2; k=0 typo tolerance is an exact lookup and
// doesn't need an automaton (see Map.Contains).
//
// Building this automaton is the expensive part of a typo-tolerant
// lookup, which is why pkg/ranking keeps a process-wide cache of the
// result keyed by (word, maxEdits) instead of calling this once per
// document batch.
func NewLevenshteinAutomaton(word string, maxEdits uint8) (vellum.Automaton, error) {
	if maxEdits != 1 && maxEdits != 2 {
		return nil, fmt.Errorf("termfst: levenshtein automaton: maxEdits must be 1 or 2, got %d", maxEdits)
	}
	lev, err := levenshtein.New(word, maxEdits)
	if err != nil {
		return nil, fmt.Errorf("termfst: levenshtein automaton for %q: %w", word, err)
	}
	return lev, nil
}

// LevenshteinIter streams every (key, value) pair within maxEdits edits
// of word, annotated with its exact edit distance so callers can apply
// the tie-break order from §4.H (original word first, then by edit
// distance, then lexicographically). maxEdits of 0 degenerates to a
// single exact lookup.
func (m *Map) LevenshteinIter(word string, maxEdits uint8, yield func(key string, value uint64, distance int) bool) error {
	if maxEdits == 0 {
		if v, ok := m.Get(word); ok {
			yield(word, v, 0)
		}
		return nil
	}
	aut, err := NewLevenshteinAutomaton(word, maxEdits)
	if err != nil {
		return err
	}
	return m.Search(aut, func(key string, value uint64) bool {
		return yield(key, value, damerauLevenshtein(word, key))
	})
}

// SearchAutomaton is LevenshteinIter's counterpart for a caller that
// maintains its own automaton cache (pkg/ranking's process-wide LRU):
// aut must have been built by NewLevenshteinAutomaton(word, maxEdits),
// and dist is still computed exactly rather than trusted to the
// automaton's bound.
func (m *Map) SearchAutomaton(word string, aut vellum.Automaton, yield func(key string, value uint64, distance int) bool) error {
	return m.Search(aut, func(key string, value uint64) bool {
		return yield(key, value, damerauLevenshtein(word, key))
	})
}

// damerauLevenshtein computes the standard (unrestricted) Damerau-
// Levenshtein edit distance between a and b, counting an adjacent
// transposition as a single edit, per §4.C.
func damerauLevenshtein(a, b string) int {
	ar, br := []rune(a), []rune(b)
	la, lb := len(ar), len(br)

	// d[i][j] is the edit distance between ar[:i] and br[:j].
	d := make([][]int, la+1)
	for i := range d {
		d[i] = make([]int, lb+1)
		d[i][0] = i
	}
	for j := 0; j <= lb; j++ {
		d[0][j] = j
	}

	for i := 1; i <= la; i++ {
		for j := 1; j <= lb; j++ {
			cost := 1
			if ar[i-1] == br[j-1] {
				cost = 0
			}
			del := d[i-1][j] + 1
			ins := d[i][j-1] + 1
			sub := d[i-1][j-1] + cost
			best := del
			if ins < best {
				best = ins
			}
			if sub < best {
				best = sub
			}
			if i > 1 && j > 1 && ar[i-1] == br[j-2] && ar[i-2] == br[j-1] {
				if t := d[i-2][j-2] + 1; t < best {
					best = t
				}
			}
			d[i][j] = best
		}
	}
	return d[la][lb]
}
