// Package ranking implements the §4.I bucket-producing ranking pipeline:
// an ordered stack of rules (Words, Typo, Proximity, Attribute, Sort,
// Exactness, plus the geo/vector/sort-field variants) that successively
// partition a universe of candidate docids, each rule only refining the
// bucket the rule below it most recently produced. Buckets are pulled
// lazily so a caller can stop draining once it has enough results
// without paying for buckets it never needed.
package ranking
