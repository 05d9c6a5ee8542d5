// Package pipeline implements the seven-stage incremental indexing
// pipeline of §4.F: resolve & assign docids, transform documents into
// OBKV, build a per-field del/add journal, run the word extractor (across
// parallel workers) and the facet extractor over each document's full old
// and new records, merge their sorted output
// into the live store, rebuild the prefix cache and facet levels, and
// hand control back to the caller for commit.
//
// Every extractor is a pure, tx-free computation over an in-memory batch
// snapshot so it can run on its own goroutine; only the merge stage
// touches the write transaction, matching §5's "exactly one thread calls
// commit" rule. An extractor accumulates its sorted output in a
// github.com/google/btree ordered tree (a "grenad" run in spec language)
// and, once that run grows past a size threshold, spills it to a
// zstd-compressed temp file that the merge memory-maps through
// github.com/blevesearch/mmap-go and decompresses whole; every spilled
// run of a chunk is held in memory at once during its merge.
package pipeline
