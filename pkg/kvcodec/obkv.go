package kvcodec

import (
	"encoding/binary"
	"fmt"
	"sort"
)

// OBKV is an ordered key-value record: a sorted sequence of
// (field_id uint16, length uint32, raw_json_bytes) tuples (glossary: OBKV).
// Sorting by field_id lets readers binary-search or merge-walk without
// decoding the whole record, and lets EncodeOBKV/DecodeOBKV round-trip
// byte-for-byte regardless of map iteration order.
type OBKV map[uint16][]byte

// EncodeOBKV serializes fields in ascending field_id order.
func EncodeOBKV(fields OBKV) []byte {
	ids := make([]uint16, 0, len(fields))
	for id := range fields {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	size := 0
	for _, id := range ids {
		size += 2 + 4 + len(fields[id])
	}
	out := make([]byte, 0, size)
	var tmp [4]byte
	for _, id := range ids {
		v := fields[id]
		out = append(out, EncodeU16(id)...)
		binary.BigEndian.PutUint32(tmp[:], uint32(len(v)))
		out = append(out, tmp[:]...)
		out = append(out, v...)
	}
	return out
}

// DecodeOBKV parses a full record into a map, materializing every value.
// Prefer ProjectOBKV when only a subset of fields is needed.
func DecodeOBKV(data []byte) (OBKV, error) {
	out := make(OBKV)
	err := ProjectOBKV(data, nil, func(fieldID uint16, raw []byte) bool {
		cp := make([]byte, len(raw))
		copy(cp, raw)
		out[fieldID] = cp
		return true
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// ProjectOBKV walks an OBKV record without allocating a map, invoking yield
// for each tuple whose field_id is in wanted (or every tuple when wanted is
// nil). yield's raw slice aliases data and is only valid until the next
// call or the transaction that produced data ends; callers that need to
// retain it must copy. Returning false from yield stops the walk early.
func ProjectOBKV(data []byte, wanted map[uint16]bool, yield func(fieldID uint16, raw []byte) bool) error {
	for off := 0; off < len(data); {
		if off+6 > len(data) {
			return fmt.Errorf("kvcodec: truncated OBKV header at offset %d", off)
		}
		fieldID, err := DecodeU16(data[off : off+2])
		if err != nil {
			return err
		}
		length := binary.BigEndian.Uint32(data[off+2 : off+6])
		start := off + 6
		end := start + int(length)
		if end > len(data) {
			return fmt.Errorf("kvcodec: truncated OBKV value at offset %d (want %d bytes)", start, length)
		}
		if wanted == nil || wanted[fieldID] {
			if !yield(fieldID, data[start:end]) {
				return nil
			}
		}
		off = end
	}
	return nil
}

// MergeOBKV applies the §4.F stage-2 "update" merge rule: new fields
// overwrite, fields absent from new are preserved from old. Use
// EncodeOBKV(newFields) directly for a "replace" operation, which fully
// supplants the old record (§4.F stage 2, S4 in §8).
func MergeOBKV(old OBKV, update OBKV) OBKV {
	merged := make(OBKV, len(old)+len(update))
	for id, v := range old {
		merged[id] = v
	}
	for id, v := range update {
		merged[id] = v
	}
	return merged
}
