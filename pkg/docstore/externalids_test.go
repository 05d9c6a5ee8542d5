package docstore

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	bolt "go.etcd.io/bbolt"
)

func TestExternalIDsInsertAndCommitPersists(t *testing.T) {
	db := openTestDB(t)

	err := db.Update(func(tx *bolt.Tx) error {
		ext, err := LoadExternalIDs(tx)
		require.NoError(t, err)
		ext.Insert("doc-1", 1)
		ext.Insert("doc-2", 2)
		return ext.Commit(tx)
	})
	require.NoError(t, err)

	err = db.View(func(tx *bolt.Tx) error {
		ext, err := LoadExternalIDs(tx)
		require.NoError(t, err)
		id, ok := ext.Get("doc-1")
		require.True(t, ok)
		assert.Equal(t, uint32(1), id)

		name, ok, err := ExternalID(tx, 1)
		require.NoError(t, err)
		require.True(t, ok)
		assert.Equal(t, "doc-1", name)
		return nil
	})
	require.NoError(t, err)
}

func TestExternalIDsDeleteWithinSameTransaction(t *testing.T) {
	db := openTestDB(t)
	err := db.Update(func(tx *bolt.Tx) error {
		ext, err := LoadExternalIDs(tx)
		require.NoError(t, err)
		ext.Insert("doc-1", 1)

		id, ok := ext.Delete("doc-1")
		require.True(t, ok)
		assert.Equal(t, uint32(1), id)

		_, ok = ext.Get("doc-1")
		assert.False(t, ok)
		return ext.Commit(tx)
	})
	require.NoError(t, err)

	err = db.View(func(tx *bolt.Tx) error {
		ext, err := LoadExternalIDs(tx)
		require.NoError(t, err)
		_, ok := ext.Get("doc-1")
		assert.False(t, ok)
		return nil
	})
	require.NoError(t, err)
}

func TestExternalIDsDeleteAcrossTransactionsClearsReverseLookup(t *testing.T) {
	db := openTestDB(t)
	err := db.Update(func(tx *bolt.Tx) error {
		ext, err := LoadExternalIDs(tx)
		require.NoError(t, err)
		ext.Insert("doc-1", 1)
		return ext.Commit(tx)
	})
	require.NoError(t, err)

	err = db.Update(func(tx *bolt.Tx) error {
		ext, err := LoadExternalIDs(tx)
		require.NoError(t, err)
		id, ok := ext.Delete("doc-1")
		require.True(t, ok)
		assert.Equal(t, uint32(1), id)
		return ext.Commit(tx)
	})
	require.NoError(t, err)

	err = db.View(func(tx *bolt.Tx) error {
		_, ok, err := ExternalID(tx, 1)
		require.NoError(t, err)
		assert.False(t, ok)
		return nil
	})
	require.NoError(t, err)
}

func TestExternalIDsInsertOverridesExisting(t *testing.T) {
	db := openTestDB(t)
	err := db.Update(func(tx *bolt.Tx) error {
		ext, err := LoadExternalIDs(tx)
		require.NoError(t, err)
		ext.Insert("doc-1", 1)
		return ext.Commit(tx)
	})
	require.NoError(t, err)

	err = db.Update(func(tx *bolt.Tx) error {
		ext, err := LoadExternalIDs(tx)
		require.NoError(t, err)
		ext.Insert("doc-1", 5)
		return ext.Commit(tx)
	})
	require.NoError(t, err)

	err = db.View(func(tx *bolt.Tx) error {
		ext, err := LoadExternalIDs(tx)
		require.NoError(t, err)
		id, ok := ext.Get("doc-1")
		require.True(t, ok)
		assert.Equal(t, uint32(5), id)
		return nil
	})
	require.NoError(t, err)
}
