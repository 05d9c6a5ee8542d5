// Package tokenizer implements the default, swappable Tokenizer the
// indexing pipeline and query planner consume (§6's Tokenizer interface,
// supplemented by SPEC_FULL §4.L since the distilled spec only names the
// interface).
//
// Tokenizing a string runs three steps:
//
//  1. Unicode normalization and diacritic stripping with
//     golang.org/x/text/unicode/norm and golang.org/x/text/runes.
//  2. Word-boundary segmentation with github.com/blevesearch/segment,
//     which implements Unicode UAX #29 and classifies each segment as a
//     letter/number run, a CJK script run (handled rune-by-rune), or a
//     separator.
//  3. Per-locale stemming with github.com/blevesearch/snowballstem,
//     dispatched by the locale's language subtag; stop words are
//     recognized before stemming and marked rather than dropped, so
//     positional information for phrase proximity is preserved even for
//     tokens the pipeline will not index.
package tokenizer
