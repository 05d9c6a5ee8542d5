// Package kvstore wraps a single go.etcd.io/bbolt database file as the
// "environment" of §2/§3/§6: one memory-mapped, transactional key-value
// store shared by every index opened inside it. It owns no domain knowledge
// of sub-databases — that lives in pkg/indexcore, one level up — it only
// provides Update (the single write transaction) and View (a read
// snapshot), matching bbolt's own single-writer/many-reader contract.
//
// This is the direct generalization of the teacher's pkg/storage.BoltStore:
// same "one *bolt.DB, CRUD through named buckets" shape, now exposing the
// transaction boundary itself instead of a fixed set of per-entity methods,
// since the indexing pipeline needs multiple sub-databases mutated
// atomically inside one transaction.
package kvstore
