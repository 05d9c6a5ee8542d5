// Package termfst stores an ordered set of terms in a finite-state
// transducer and answers the three lookups the search core needs over
// it: exact membership, prefix iteration, and Levenshtein-bounded
// iteration.
//
// The FST itself is built and read with github.com/blevesearch/vellum;
// the bounded edit-distance automaton used for typo-tolerant lookup comes
// from its github.com/blevesearch/vellum/levenshtein sibling package. Both
// are the FST/automaton stack the example pack's bleve-based search
// stacks standardize on.
//
// Map is the general (key, value) FST wrapper: the words FST keeps every
// value at 0 since only membership matters, while the document store's
// external-id index reuses the same wrapper to map external document ids
// to internal docids, so the two keep a single codec instead of diverging
// wire formats.
package termfst
