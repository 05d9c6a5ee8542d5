package indexcore

import (
	"bytes"

	bolt "go.etcd.io/bbolt"

	"github.com/cuemby/milli-core/pkg/fields"
	"github.com/cuemby/milli-core/pkg/kvcodec"
)

// txFieldChecker implements filterlang.FieldChecker against one read
// transaction. A field's numeric-ness has no static flag (§4.D draws no
// searchable/numeric distinction), so IsNumeric answers dynamically by
// checking whether BucketFacetNumberDocids holds any entry for the
// field's id.
type txFieldChecker struct {
	tx *bolt.Tx
	fm *fields.Map
}

func (c *txFieldChecker) IsFilterable(field string) bool {
	id, ok := c.fm.ID(field)
	if !ok {
		return false
	}
	return c.fm.Flags(id).Filterable
}

func (c *txFieldChecker) IsNumeric(field string) bool {
	id, ok := c.fm.ID(field)
	if !ok {
		return false
	}
	return hasFacetNumberEntries(c.tx, id)
}

func hasFacetNumberEntries(tx *bolt.Tx, fieldID uint16) bool {
	b := tx.Bucket(kvcodec.BucketFacetNumberDocids)
	if b == nil {
		return false
	}
	prefix := kvcodec.EncodeU16(fieldID)
	k, _ := b.Cursor().Seek(prefix)
	return k != nil && bytes.HasPrefix(k, prefix)
}
