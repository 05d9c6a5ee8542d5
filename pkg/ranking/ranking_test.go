package ranking

import (
	"path/filepath"
	"testing"

	"github.com/RoaringBitmap/roaring/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	bolt "go.etcd.io/bbolt"

	"github.com/cuemby/milli-core/pkg/budget"
	"github.com/cuemby/milli-core/pkg/facet"
	"github.com/cuemby/milli-core/pkg/fields"
	"github.com/cuemby/milli-core/pkg/kvcodec"
	"github.com/cuemby/milli-core/pkg/pipeline"
	"github.com/cuemby/milli-core/pkg/querygraph"
	"github.com/cuemby/milli-core/pkg/rbitmap"
	"github.com/cuemby/milli-core/pkg/termfst"
	"github.com/cuemby/milli-core/pkg/tokenizer"
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

func TestSlotsOfAssignsSequentialPositions(t *testing.T) {
	g := newTestGraph2Slots()
	slots := slotsOf(g)
	assert.Equal(t, 0, slots[2])
	assert.Equal(t, 1, slots[3])
}

// newTestGraph2Slots builds Start -> nodeA -> nodeB -> End by hand,
// bypassing Build's tokenizer/FST plumbing for a focused rule unit test.
func newTestGraph2Slots() *querygraph.Graph {
	g := &querygraph.Graph{}
	start := addNode(g, querygraph.Node{Kind: querygraph.NodeStart})
	end := addNode(g, querygraph.Node{Kind: querygraph.NodeEnd})
	a := addNode(g, querygraph.Node{Kind: querygraph.NodeExact, Word: "quick"})
	b := addNode(g, querygraph.Node{Kind: querygraph.NodeExact, Word: "fox"})
	g.Start, g.End = start, end
	g.Edges = append(g.Edges,
		querygraph.Edge{From: start, To: a},
		querygraph.Edge{From: a, To: b},
		querygraph.Edge{From: b, To: end},
	)
	return g
}

func addNode(g *querygraph.Graph, n querygraph.Node) int {
	g.Nodes = append(g.Nodes, n)
	return len(g.Nodes) - 1
}

func TestWordsRuleDropsLastSlotFirst(t *testing.T) {
	db := openTestDB(t)
	g := newTestGraph2Slots()

	// doc 1 has both "quick" and "fox"; doc 2 only has "quick".
	err := db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(kvcodec.BucketWordDocids)
		if err := b.Put([]byte("quick"), rbitmap.Encode(bm(1, 2))); err != nil {
			return err
		}
		return b.Put([]byte("fox"), rbitmap.Encode(bm(1)))
	})
	require.NoError(t, err)

	err = db.View(func(tx *bolt.Tx) error {
		ctx := &Context{Tx: tx, Graph: g, Fields: fields.New(), Budget: budget.Unlimited()}
		w := &Words{}
		require.NoError(t, w.StartIteration(ctx, bm(1, 2), nil))

		b1, ok, err := w.NextBucket()
		require.NoError(t, err)
		require.True(t, ok)
		assert.True(t, b1.Docids.Contains(1))
		assert.False(t, b1.Docids.Contains(2))

		b2, ok, err := w.NextBucket()
		require.NoError(t, err)
		require.True(t, ok)
		assert.True(t, b2.Docids.Contains(2))
		assert.False(t, b2.Docids.Contains(1))

		_, ok, err = w.NextBucket()
		require.NoError(t, err)
		assert.False(t, ok)
		return nil
	})
	require.NoError(t, err)
}

func TestTypoRulePrefersExactOverTypo(t *testing.T) {
	db := openTestDB(t)
	g := &querygraph.Graph{}
	start := addNode(g, querygraph.Node{Kind: querygraph.NodeStart})
	end := addNode(g, querygraph.Node{Kind: querygraph.NodeEnd})
	exact := addNode(g, querygraph.Node{Kind: querygraph.NodeExact, Word: "quick", EditDistance: 0})
	typo := addNode(g, querygraph.Node{Kind: querygraph.NodeTypo, Word: "quack", EditDistance: 1})
	g.Start, g.End = start, end
	g.Edges = []querygraph.Edge{{From: start, To: exact}, {From: exact, To: end}, {From: start, To: typo}, {From: typo, To: end}}

	err := db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(kvcodec.BucketWordDocids)
		if err := b.Put([]byte("quick"), rbitmap.Encode(bm(1))); err != nil {
			return err
		}
		return b.Put([]byte("quack"), rbitmap.Encode(bm(2)))
	})
	require.NoError(t, err)

	err = db.View(func(tx *bolt.Tx) error {
		ctx := &Context{Tx: tx, Graph: g, Fields: fields.New(), Budget: budget.Unlimited()}
		typoRule := NewTypo()
		require.NoError(t, typoRule.StartIteration(ctx, bm(1, 2), nil))

		first, ok, err := typoRule.NextBucket()
		require.NoError(t, err)
		require.True(t, ok)
		assert.True(t, first.Docids.Contains(1))
		assert.False(t, first.Docids.Contains(2))

		second, ok, err := typoRule.NextBucket()
		require.NoError(t, err)
		require.True(t, ok)
		assert.True(t, second.Docids.Contains(2))
		return nil
	})
	require.NoError(t, err)
}

func TestSortRuleAscendingThenMissingLast(t *testing.T) {
	db := openTestDB(t)
	const fieldID = uint16(5)
	err := db.Update(func(tx *bolt.Tx) error {
		if err := facet.AddDocids(tx, fieldID, 10, bm(1)); err != nil {
			return err
		}
		if err := facet.AddDocids(tx, fieldID, 20, bm(2)); err != nil {
			return err
		}
		return facet.BuildLevels(tx, fieldID)
	})
	require.NoError(t, err)

	// doc 3 has no value for fieldID at all.
	err = db.View(func(tx *bolt.Tx) error {
		ctx := &Context{Tx: tx, Fields: fields.New(), Budget: budget.Unlimited(), Graph: &querygraph.Graph{}}
		asc := NewAsc(fieldID, true)
		require.NoError(t, asc.StartIteration(ctx, bm(1, 2, 3), nil))

		b1, ok, err := asc.NextBucket()
		require.NoError(t, err)
		require.True(t, ok)
		assert.True(t, b1.Docids.Contains(1))

		b2, ok, err := asc.NextBucket()
		require.NoError(t, err)
		require.True(t, ok)
		assert.True(t, b2.Docids.Contains(2))

		b3, ok, err := asc.NextBucket()
		require.NoError(t, err)
		require.True(t, ok)
		assert.True(t, b3.Docids.Contains(3))

		_, ok, err = asc.NextBucket()
		require.NoError(t, err)
		assert.False(t, ok)
		return nil
	})
	require.NoError(t, err)
}

func TestSortRuleDescendingReversesValueOrder(t *testing.T) {
	db := openTestDB(t)
	const fieldID = uint16(7)
	err := db.Update(func(tx *bolt.Tx) error {
		if err := facet.AddDocids(tx, fieldID, 1, bm(1)); err != nil {
			return err
		}
		if err := facet.AddDocids(tx, fieldID, 2, bm(2)); err != nil {
			return err
		}
		return facet.BuildLevels(tx, fieldID)
	})
	require.NoError(t, err)

	err = db.View(func(tx *bolt.Tx) error {
		ctx := &Context{Tx: tx, Fields: fields.New(), Budget: budget.Unlimited(), Graph: &querygraph.Graph{}}
		desc := NewDesc(fieldID, true)
		require.NoError(t, desc.StartIteration(ctx, bm(1, 2), nil))

		first, ok, err := desc.NextBucket()
		require.NoError(t, err)
		require.True(t, ok)
		assert.True(t, first.Docids.Contains(2))

		second, ok, err := desc.NextBucket()
		require.NoError(t, err)
		require.True(t, ok)
		assert.True(t, second.Docids.Contains(1))
		return nil
	})
	require.NoError(t, err)
}

func TestLevenshteinCacheReturnsSameAutomatonOnHit(t *testing.T) {
	c, err := NewLevenshteinCache(8)
	require.NoError(t, err)

	a1, err := c.Get("quick", 1)
	require.NoError(t, err)
	a2, err := c.Get("quick", 1)
	require.NoError(t, err)
	assert.Same(t, a1, a2)

	a3, err := c.Get("quick", 2)
	require.NoError(t, err)
	assert.NotSame(t, a1, a3)
}

// TestPipelineEndToEndDrainsIndexedDocument runs the incremental indexing
// pipeline, builds a query graph from the resulting word FST, and checks
// the ranking pipeline surfaces the indexed document.
func TestPipelineEndToEndDrainsIndexedDocument(t *testing.T) {
	db := openTestDB(t)
	fm := fields.New()

	err := db.Update(func(tx *bolt.Tx) error {
		batch := pipeline.Batch{
			{Kind: pipeline.OpUpsert, Doc: pipeline.Document{"id": "1", "title": "quick brown fox"}},
			{Kind: pipeline.OpUpsert, Doc: pipeline.Document{"id": "2", "title": "lazy dog"}},
		}
		titleID, err := fm.InsertName("title")
		if err != nil {
			return err
		}
		fm.SetFlags(titleID, fields.Flags{Searchable: true, Displayed: true})
		idID, err := fm.InsertName("id")
		if err != nil {
			return err
		}
		fm.SetFlags(idID, fields.Flags{PrimaryKey: true, Displayed: true})

		_, err = pipeline.Run(tx, batch, fm, pipeline.Config{PrimaryKey: "id"})
		return err
	})
	require.NoError(t, err)

	err = db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(kvcodec.BucketMeta)
		fstBytes := b.Get([]byte(kvcodec.KeyWordsFst))
		words, err := termfst.Load(fstBytes)
		require.NoError(t, err)

		g, err := querygraph.Build("fox", querygraph.BuildParams{
			Tokenizer: tokenizer.New(nil),
			Words:     words,
		})
		require.NoError(t, err)

		universe, err := allDocids(tx)
		require.NoError(t, err)
		require.False(t, universe.IsEmpty())

		ctx := &Context{Tx: tx, Graph: g, Fields: fm, Budget: budget.Unlimited()}
		p, err := NewPipeline(ctx, universe, DefaultRules())
		require.NoError(t, err)

		ids, _, err := p.Drain(0, 10)
		require.NoError(t, err)
		require.NotEmpty(t, ids)
		// "quick brown fox" was indexed first and is allocated internal
		// docid 0; "lazy dog" (no match for "fox") must not appear.
		assert.Contains(t, ids, uint32(0))
		assert.NotContains(t, ids, uint32(1))
		return nil
	})
	require.NoError(t, err)
}

func allDocids(tx *bolt.Tx) (*roaring.Bitmap, error) {
	b := tx.Bucket(kvcodec.BucketInternalToExternal)
	acc := roaring.New()
	c := b.Cursor()
	for k, _ := c.First(); k != nil; k, _ = c.Next() {
		id, err := kvcodec.DecodeU32(k)
		if err != nil {
			return nil, err
		}
		acc.Add(id)
	}
	return acc, nil
}
