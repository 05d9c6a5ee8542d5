package pipeline

import (
	"path/filepath"
	"testing"

	"github.com/RoaringBitmap/roaring/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	bolt "go.etcd.io/bbolt"

	"github.com/cuemby/milli-core/pkg/apperr"
	"github.com/cuemby/milli-core/pkg/docstore"
	"github.com/cuemby/milli-core/pkg/fields"
	"github.com/cuemby/milli-core/pkg/kvcodec"
	"github.com/cuemby/milli-core/pkg/rbitmap"
)

func bm(ids ...uint32) *roaring.Bitmap {
	b := roaring.New()
	b.AddMany(ids)
	return b
}

func openTestDB(t *testing.T) *bolt.DB {
	t.Helper()
	path := filepath.Join(t.TempDir(), "data.db")
	db, err := bolt.Open(path, 0o600, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	err = db.Update(func(tx *bolt.Tx) error {
		for _, b := range kvcodec.AllBuckets() {
			if _, err := tx.CreateBucketIfNotExists(b); err != nil {
				return err
			}
		}
		return nil
	})
	require.NoError(t, err)
	return db
}

func newSearchableFields(t *testing.T, names ...string) *fields.Map {
	t.Helper()
	fm := fields.New()
	for _, n := range names {
		id, err := fm.InsertName(n)
		require.NoError(t, err)
		fm.SetFlags(id, fields.Flags{Searchable: true, Displayed: true})
	}
	return fm
}

func TestDetectPrimaryKeyUsesConfigured(t *testing.T) {
	pk, err := DetectPrimaryKey("sku", Document{"id": "1", "sku": "A1"})
	require.NoError(t, err)
	assert.Equal(t, "sku", pk)
}

func TestDetectPrimaryKeyAutoDetectsIdSuffix(t *testing.T) {
	pk, err := DetectPrimaryKey("", Document{"title": "x", "productId": "7"})
	require.NoError(t, err)
	assert.Equal(t, "productId", pk)
}

func TestDetectPrimaryKeyFailsWithoutCandidate(t *testing.T) {
	_, err := DetectPrimaryKey("", Document{"title": "x"})
	require.Error(t, err)
	assert.True(t, apperr.Is(err, apperr.CodeValidation))
}

func TestExternalIDOfFormatsIntegerFloat(t *testing.T) {
	id, err := externalIDOf(Document{"id": float64(42)}, "id")
	require.NoError(t, err)
	assert.Equal(t, "42", id)
}

func TestExternalIDOfRejectsNonScalarPrimaryKey(t *testing.T) {
	_, err := externalIDOf(Document{"id": []any{1, 2}}, "id")
	require.Error(t, err)
	assert.True(t, apperr.Is(err, apperr.CodeValidation))
}

func TestBuildJournalDetectsAddedChangedRemovedFields(t *testing.T) {
	old := kvcodec.OBKV{1: []byte(`"a"`), 2: []byte(`"same"`), 3: []byte(`"gone"`)}
	new := kvcodec.OBKV{1: []byte(`"b"`), 2: []byte(`"same"`), 4: []byte(`"new"`)}

	deltas := buildJournal(old, new)
	byField := map[uint16]FieldDelta{}
	for _, d := range deltas {
		byField[d.FieldID] = d
	}

	require.Len(t, deltas, 3)
	assert.Equal(t, []byte(`"a"`), byField[1].Deletion)
	assert.Equal(t, []byte(`"b"`), byField[1].Addition)
	assert.Equal(t, []byte(`"gone"`), byField[3].Deletion)
	assert.Nil(t, byField[3].Addition)
	assert.Equal(t, []byte(`"new"`), byField[4].Addition)
	assert.Nil(t, byField[4].Deletion)
	_, unchanged := byField[2]
	assert.False(t, unchanged)
}

func TestTransformOBKVUpsertMergesOntoOld(t *testing.T) {
	fm := fields.New()
	titleID, err := fm.InsertName("title")
	require.NoError(t, err)
	_, err = fm.InsertName("price")
	require.NoError(t, err)

	op := resolvedOp{
		kind:    OpUpsert,
		doc:     Document{"price": float64(9)},
		oldOBKV: kvcodec.OBKV{titleID: []byte(`"Old Title"`)},
	}
	require.NoError(t, transformOBKV(&op, fm))

	assert.Equal(t, []byte(`"Old Title"`), op.newOBKV[titleID])
	priceID, _ := fm.ID("price")
	assert.Equal(t, []byte(`9`), op.newOBKV[priceID])
}

func TestTransformOBKVReplaceSupplantsOld(t *testing.T) {
	fm := fields.New()
	titleID, err := fm.InsertName("title")
	require.NoError(t, err)

	op := resolvedOp{
		kind:    OpReplace,
		doc:     Document{"price": float64(9)},
		oldOBKV: kvcodec.OBKV{titleID: []byte(`"Old Title"`)},
	}
	require.NoError(t, transformOBKV(&op, fm))

	_, stillPresent := op.newOBKV[titleID]
	assert.False(t, stillPresent)
	priceID, _ := fm.ID("price")
	assert.Equal(t, []byte(`9`), op.newOBKV[priceID])
}

func TestChunkSpillAndMergeRoundTrips(t *testing.T) {
	dir := t.TempDir()
	c := NewChunk(dir, 2, unionCombine)

	put := func(key string, docid uint32) {
		encoded := rbitmap.Encode(bm(docid))
		require.NoError(t, c.Put([]byte(key), encoded))
	}
	put("alpha", 1)
	put("beta", 2)  // reaching the threshold (2) spills the first run
	put("alpha", 3) // lands in a fresh run, merged with the spilled one
	put("gamma", 4)

	got := map[string][]uint32{}
	err := c.Entries(func(key, value []byte) bool {
		decoded, derr := rbitmap.Decode(value)
		require.NoError(t, derr)
		got[string(key)] = decoded.ToArray()
		return true
	})
	require.NoError(t, err)

	assert.ElementsMatch(t, []uint32{1, 3}, got["alpha"])
	assert.ElementsMatch(t, []uint32{2}, got["beta"])
	assert.ElementsMatch(t, []uint32{4}, got["gamma"])
	c.Close()
}

func TestPostingAccumulatorMergeTracksDelAndAdd(t *testing.T) {
	dir := t.TempDir()
	acc := newPostingAccumulator(dir)
	require.NoError(t, acc.delDoc([]byte("hello"), 1))
	require.NoError(t, acc.addDoc([]byte("hello"), 2))
	require.NoError(t, acc.addDoc([]byte("world"), 3))

	seen := map[string][2]bool{}
	err := acc.Merge(func(key, del, add []byte) error {
		seen[string(key)] = [2]bool{del != nil, add != nil}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, [2]bool{true, true}, seen["hello"])
	assert.Equal(t, [2]bool{false, true}, seen["world"])
	acc.Close()
}

func TestRunIndexesNewDocumentAndIsSearchable(t *testing.T) {
	db := openTestDB(t)
	fm := newSearchableFields(t, "title")

	batch := Batch{{Kind: OpUpsert, Doc: Document{"id": "1", "title": "red bicycle"}}}
	err := db.Update(func(tx *bolt.Tx) error {
		_, err := Run(tx, batch, fm, Config{})
		return err
	})
	require.NoError(t, err)

	err = db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(kvcodec.BucketWordDocids)
		v := b.Get([]byte("bicycl")) // snowball-stemmed
		if v == nil {
			v = b.Get([]byte("bicycle"))
		}
		require.NotNil(t, v, "expected a word-docids entry for the indexed title")
		bm, err := rbitmap.Decode(v)
		require.NoError(t, err)
		assert.Equal(t, uint64(1), bm.GetCardinality())
		return nil
	})
	require.NoError(t, err)
}

func TestRunDeleteRetractsPostings(t *testing.T) {
	db := openTestDB(t)
	fm := newSearchableFields(t, "title")

	upsert := Batch{{Kind: OpUpsert, Doc: Document{"id": "1", "title": "zzzuniquetoken"}}}
	require.NoError(t, db.Update(func(tx *bolt.Tx) error {
		_, err := Run(tx, upsert, fm, Config{})
		return err
	}))

	del := Batch{{Kind: OpDelete, ExternalID: "1"}}
	require.NoError(t, db.Update(func(tx *bolt.Tx) error {
		_, err := Run(tx, del, fm, Config{})
		return err
	}))

	require.NoError(t, db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(kvcodec.BucketWordDocids)
		v := b.Get([]byte("zzzuniquetoken"))
		assert.Nil(t, v, "posting list should be removed once its only document is deleted")
		return nil
	}))
}

func TestRunUpsertIsReachableByExternalID(t *testing.T) {
	db := openTestDB(t)
	fm := newSearchableFields(t, "title")

	batch := Batch{{Kind: OpUpsert, Doc: Document{"id": "42", "title": "first"}}}
	require.NoError(t, db.Update(func(tx *bolt.Tx) error {
		_, err := Run(tx, batch, fm, Config{})
		return err
	}))

	require.NoError(t, db.View(func(tx *bolt.Tx) error {
		ext, err := docstore.LoadExternalIDs(tx)
		require.NoError(t, err)
		id, ok := ext.Get("42")
		assert.True(t, ok)

		doc, found, err := docstore.Get(tx, id)
		require.NoError(t, err)
		require.True(t, found)
		titleID, _ := fm.ID("title")
		assert.Equal(t, []byte(`"first"`), doc[titleID])
		return nil
	}))
}
