package docstore

import (
	"encoding/binary"

	"github.com/RoaringBitmap/roaring/v2"
	"github.com/cuemby/milli-core/pkg/apperr"
	"github.com/cuemby/milli-core/pkg/kvcodec"
	"github.com/cuemby/milli-core/pkg/rbitmap"
	bolt "go.etcd.io/bbolt"
)

var allocatorKey = []byte{}

// Allocator hands out internal docids first-fit: the smallest id in the
// free set, if any, otherwise the next id never assigned before.
type Allocator struct {
	free *roaring.Bitmap
	next uint32
}

// LoadAllocator reads the allocator's persisted state from tx.
func LoadAllocator(tx *bolt.Tx) (*Allocator, error) {
	b := tx.Bucket(kvcodec.BucketDocidFreelist)
	if b == nil {
		return nil, apperr.Internal(nil, "docstore: docid-freelist bucket missing")
	}
	data := b.Get(allocatorKey)
	if len(data) < 4 {
		return &Allocator{free: roaring.New()}, nil
	}
	next := binary.BigEndian.Uint32(data[:4])
	free, err := rbitmap.Decode(data[4:])
	if err != nil {
		return nil, apperr.Corruption(err, "docstore: decode docid freelist")
	}
	return &Allocator{free: free, next: next}, nil
}

// Alloc reserves and returns the next available internal docid.
func (a *Allocator) Alloc() uint32 {
	if !a.free.IsEmpty() {
		id := a.free.Minimum()
		a.free.Remove(id)
		return id
	}
	id := a.next
	a.next++
	return id
}

// Free returns id to the pool for future reuse.
func (a *Allocator) Free(id uint32) {
	a.free.Add(id)
}

// Commit persists the allocator's state back to tx.
func (a *Allocator) Commit(tx *bolt.Tx) error {
	b := tx.Bucket(kvcodec.BucketDocidFreelist)
	if b == nil {
		return apperr.Internal(nil, "docstore: docid-freelist bucket missing")
	}
	buf := make([]byte, 4)
	binary.BigEndian.PutUint32(buf, a.next)
	buf = append(buf, rbitmap.Encode(a.free)...)
	if err := b.Put(allocatorKey, buf); err != nil {
		return apperr.Internal(err, "docstore: write docid freelist")
	}
	return nil
}
