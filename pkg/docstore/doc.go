// Package docstore holds documents keyed by their internal docid plus the
// two pieces of bookkeeping that keep internal ids stable and reusable
// across re-indexing (§4.E):
//
//   - ExternalIDs maps a caller-supplied external document id to its
//     internal docid via a termfst.Map, with an in-memory insert/delete
//     overlay during a write transaction that gets folded into a freshly
//     built FST at commit. The reverse internal->external lookup lives in
//     a plain bbolt bucket keyed by internal id, since that direction
//     never needs ordered iteration and can be updated in place.
//
//   - Allocator hands out internal docids first-fit over a bitmap of ids
//     freed by prior deletes, falling back to the next never-used id once
//     the free set is empty, so deleting and re-inserting documents does
//     not grow ids without bound.
package docstore
