package docstore

import (
	"path/filepath"
	"testing"

	"github.com/cuemby/milli-core/pkg/kvcodec"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	bolt "go.etcd.io/bbolt"
)

func openTestDB(t *testing.T) *bolt.DB {
	t.Helper()
	path := filepath.Join(t.TempDir(), "data.db")
	db, err := bolt.Open(path, 0o600, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	err = db.Update(func(tx *bolt.Tx) error {
		for _, name := range kvcodec.AllBuckets() {
			if _, err := tx.CreateBucketIfNotExists(name); err != nil {
				return err
			}
		}
		return nil
	})
	require.NoError(t, err)
	return db
}

func TestPutGetRoundTrip(t *testing.T) {
	db := openTestDB(t)
	fields := kvcodec.OBKV{1: []byte(`"hello"`), 2: []byte(`42`)}

	err := db.Update(func(tx *bolt.Tx) error {
		return Put(tx, 7, fields)
	})
	require.NoError(t, err)

	err = db.View(func(tx *bolt.Tx) error {
		got, ok, err := Get(tx, 7)
		require.NoError(t, err)
		require.True(t, ok)
		assert.Equal(t, fields, got)
		return nil
	})
	require.NoError(t, err)
}

func TestGetMissingReturnsNotOk(t *testing.T) {
	db := openTestDB(t)
	err := db.View(func(tx *bolt.Tx) error {
		_, ok, err := Get(tx, 99)
		require.NoError(t, err)
		assert.False(t, ok)
		return nil
	})
	require.NoError(t, err)
}

func TestProjectYieldsOnlyWantedFields(t *testing.T) {
	db := openTestDB(t)
	fields := kvcodec.OBKV{1: []byte("a"), 2: []byte("b"), 3: []byte("c")}
	err := db.Update(func(tx *bolt.Tx) error { return Put(tx, 1, fields) })
	require.NoError(t, err)

	err = db.View(func(tx *bolt.Tx) error {
		var got []uint16
		ok, err := Project(tx, 1, map[uint16]bool{2: true}, func(id uint16, _ []byte) bool {
			got = append(got, id)
			return true
		})
		require.NoError(t, err)
		require.True(t, ok)
		assert.Equal(t, []uint16{2}, got)
		return nil
	})
	require.NoError(t, err)
}

func TestDeleteRemovesRecord(t *testing.T) {
	db := openTestDB(t)
	err := db.Update(func(tx *bolt.Tx) error {
		return Put(tx, 1, kvcodec.OBKV{1: []byte("x")})
	})
	require.NoError(t, err)

	err = db.Update(func(tx *bolt.Tx) error { return Delete(tx, 1) })
	require.NoError(t, err)

	err = db.View(func(tx *bolt.Tx) error {
		_, ok, err := Get(tx, 1)
		require.NoError(t, err)
		assert.False(t, ok)
		return nil
	})
	require.NoError(t, err)
}
