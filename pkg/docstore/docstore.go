package docstore

import (
	"github.com/cuemby/milli-core/pkg/apperr"
	"github.com/cuemby/milli-core/pkg/kvcodec"
	bolt "go.etcd.io/bbolt"
)

// Get returns the OBKV record stored for internalID, decoded into a map.
// Prefer Project when only a subset of fields is needed.
func Get(tx *bolt.Tx, internalID uint32) (kvcodec.OBKV, bool, error) {
	raw, ok, err := getRaw(tx, internalID)
	if err != nil || !ok {
		return nil, ok, err
	}
	fields, err := kvcodec.DecodeOBKV(raw)
	if err != nil {
		return nil, false, apperr.Corruption(err, "docstore: decode document %d", internalID)
	}
	return fields, true, nil
}

// Project walks the stored record for internalID without materializing a
// map, invoking yield only for fields present in wanted (or every field
// when wanted is nil). The yielded slice aliases the transaction's
// memory-mapped page and must be copied by callers that retain it.
func Project(tx *bolt.Tx, internalID uint32, wanted map[uint16]bool, yield func(fieldID uint16, raw []byte) bool) (bool, error) {
	raw, ok, err := getRaw(tx, internalID)
	if err != nil || !ok {
		return ok, err
	}
	if err := kvcodec.ProjectOBKV(raw, wanted, yield); err != nil {
		return false, apperr.Corruption(err, "docstore: project document %d", internalID)
	}
	return true, nil
}

func getRaw(tx *bolt.Tx, internalID uint32) ([]byte, bool, error) {
	b := tx.Bucket(kvcodec.BucketDocuments)
	if b == nil {
		return nil, false, apperr.Internal(nil, "docstore: documents bucket missing")
	}
	v := b.Get(kvcodec.EncodeU32(internalID))
	if v == nil {
		return nil, false, nil
	}
	return v, true, nil
}

// Put writes or overwrites the record for internalID.
func Put(tx *bolt.Tx, internalID uint32, fields kvcodec.OBKV) error {
	b := tx.Bucket(kvcodec.BucketDocuments)
	if b == nil {
		return apperr.Internal(nil, "docstore: documents bucket missing")
	}
	if err := b.Put(kvcodec.EncodeU32(internalID), kvcodec.EncodeOBKV(fields)); err != nil {
		return apperr.Internal(err, "docstore: put document %d", internalID)
	}
	return nil
}

// Delete removes the record for internalID, if present.
func Delete(tx *bolt.Tx, internalID uint32) error {
	b := tx.Bucket(kvcodec.BucketDocuments)
	if b == nil {
		return apperr.Internal(nil, "docstore: documents bucket missing")
	}
	if err := b.Delete(kvcodec.EncodeU32(internalID)); err != nil {
		return apperr.Internal(err, "docstore: delete document %d", internalID)
	}
	return nil
}
