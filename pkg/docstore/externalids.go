package docstore

import (
	"github.com/cuemby/milli-core/pkg/apperr"
	"github.com/cuemby/milli-core/pkg/kvcodec"
	"github.com/cuemby/milli-core/pkg/termfst"
	bolt "go.etcd.io/bbolt"
)

// externalToInternalKey is the single record BucketExternalToInternal
// holds; there is one FST for the whole index, not one per field.
var externalToInternalKey = []byte{}

// ExternalIDs tracks the external-id -> internal-docid bijection for one
// write transaction. Reads check a small in-memory overlay before falling
// back to the FST loaded at transaction start; Commit folds the overlay
// into a freshly built FST and applies the matching reverse-lookup edits.
type ExternalIDs struct {
	base    *termfst.Map
	inserts map[string]uint32
	deletes map[string]bool

	reverseInserts map[uint32]string
	reverseDeletes []uint32
}

// LoadExternalIDs reads the current FST for use within tx.
func LoadExternalIDs(tx *bolt.Tx) (*ExternalIDs, error) {
	b := tx.Bucket(kvcodec.BucketExternalToInternal)
	if b == nil {
		return nil, apperr.Internal(nil, "docstore: external-to-internal bucket missing")
	}
	base, err := termfst.Load(b.Get(externalToInternalKey))
	if err != nil {
		return nil, apperr.Corruption(err, "docstore: load external-to-internal fst")
	}
	return &ExternalIDs{
		base:           base,
		inserts:        make(map[string]uint32),
		deletes:        make(map[string]bool),
		reverseInserts: make(map[uint32]string),
	}, nil
}

// Get resolves externalID to its internal docid, honoring pending inserts
// and deletes made earlier in the same transaction.
func (e *ExternalIDs) Get(externalID string) (uint32, bool) {
	if e.deletes[externalID] {
		return 0, false
	}
	if id, ok := e.inserts[externalID]; ok {
		return id, true
	}
	v, ok := e.base.Get(externalID)
	return uint32(v), ok
}

// Insert records externalID -> internalID, overriding any prior mapping
// made earlier in the same transaction.
func (e *ExternalIDs) Insert(externalID string, internalID uint32) {
	delete(e.deletes, externalID)
	e.inserts[externalID] = internalID
	e.reverseInserts[internalID] = externalID
}

// Delete removes externalID's mapping, returning the internal docid it
// pointed to (so the caller can free it back to the Allocator) and
// whether it was mapped at all.
func (e *ExternalIDs) Delete(externalID string) (internalID uint32, ok bool) {
	id, ok := e.Get(externalID)
	if !ok {
		return 0, false
	}
	delete(e.inserts, externalID)
	delete(e.reverseInserts, id)
	e.deletes[externalID] = true
	e.reverseDeletes = append(e.reverseDeletes, id)
	return id, true
}

// Commit rebuilds the external-id FST from base ∪ inserts \ deletes and
// applies the reverse-lookup edits. Call it once per write transaction,
// after every document operation has been applied.
func (e *ExternalIDs) Commit(tx *bolt.Tx) error {
	merged := make(map[string]uint32, len(e.inserts))
	if e.base != nil {
		if err := e.base.PrefixIter("", func(key string, value uint64) bool {
			if !e.deletes[key] {
				merged[key] = uint32(value)
			}
			return true
		}); err != nil {
			return apperr.Corruption(err, "docstore: walk external-to-internal fst")
		}
	}
	for k, v := range e.inserts {
		merged[k] = v
	}

	entries := make([]termfst.Entry, 0, len(merged))
	for k, v := range merged {
		entries = append(entries, termfst.Entry{Key: k, Value: uint64(v)})
	}
	data, err := termfst.Build(entries)
	if err != nil {
		return apperr.Internal(err, "docstore: rebuild external-to-internal fst")
	}

	fwd := tx.Bucket(kvcodec.BucketExternalToInternal)
	if fwd == nil {
		return apperr.Internal(nil, "docstore: external-to-internal bucket missing")
	}
	if err := fwd.Put(externalToInternalKey, data); err != nil {
		return apperr.Internal(err, "docstore: write external-to-internal fst")
	}

	rev := tx.Bucket(kvcodec.BucketInternalToExternal)
	if rev == nil {
		return apperr.Internal(nil, "docstore: internal-to-external bucket missing")
	}
	for _, id := range e.reverseDeletes {
		if err := rev.Delete(kvcodec.EncodeU32(id)); err != nil {
			return apperr.Internal(err, "docstore: delete reverse mapping for docid %d", id)
		}
	}
	for id, ext := range e.reverseInserts {
		if err := rev.Put(kvcodec.EncodeU32(id), []byte(ext)); err != nil {
			return apperr.Internal(err, "docstore: write reverse mapping for docid %d", id)
		}
	}
	return nil
}

// ExternalID returns the external id stored for internalID via the
// reverse bucket. Unlike Get/Insert/Delete this reads straight from tx
// and is usable from both read and write transactions.
func ExternalID(tx *bolt.Tx, internalID uint32) (string, bool, error) {
	b := tx.Bucket(kvcodec.BucketInternalToExternal)
	if b == nil {
		return "", false, apperr.Internal(nil, "docstore: internal-to-external bucket missing")
	}
	v := b.Get(kvcodec.EncodeU32(internalID))
	if v == nil {
		return "", false, nil
	}
	return string(v), true, nil
}
