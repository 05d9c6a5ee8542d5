package docstore

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	bolt "go.etcd.io/bbolt"
)

func TestAllocatorAllocatesSequentiallyWhenNoFreeIDs(t *testing.T) {
	db := openTestDB(t)
	err := db.Update(func(tx *bolt.Tx) error {
		a, err := LoadAllocator(tx)
		require.NoError(t, err)
		assert.Equal(t, uint32(0), a.Alloc())
		assert.Equal(t, uint32(1), a.Alloc())
		assert.Equal(t, uint32(2), a.Alloc())
		return a.Commit(tx)
	})
	require.NoError(t, err)
}

func TestAllocatorReusesFreedIDsFirstFit(t *testing.T) {
	db := openTestDB(t)
	err := db.Update(func(tx *bolt.Tx) error {
		a, err := LoadAllocator(tx)
		require.NoError(t, err)
		a.Alloc() // 0
		a.Alloc() // 1
		a.Alloc() // 2
		a.Free(1)
		a.Free(0)
		return a.Commit(tx)
	})
	require.NoError(t, err)

	err = db.Update(func(tx *bolt.Tx) error {
		a, err := LoadAllocator(tx)
		require.NoError(t, err)
		// First-fit: smallest freed id comes back first.
		assert.Equal(t, uint32(0), a.Alloc())
		assert.Equal(t, uint32(1), a.Alloc())
		assert.Equal(t, uint32(3), a.Alloc())
		return a.Commit(tx)
	})
	require.NoError(t, err)
}

func TestAllocatorPersistsAcrossTransactions(t *testing.T) {
	db := openTestDB(t)
	err := db.Update(func(tx *bolt.Tx) error {
		a, err := LoadAllocator(tx)
		require.NoError(t, err)
		a.Alloc()
		a.Alloc()
		return a.Commit(tx)
	})
	require.NoError(t, err)

	err = db.View(func(tx *bolt.Tx) error {
		a, err := LoadAllocator(tx)
		require.NoError(t, err)
		assert.Equal(t, uint32(2), a.Alloc())
		return nil
	})
	require.NoError(t, err)
}
