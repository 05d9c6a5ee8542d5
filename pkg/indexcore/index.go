// Package indexcore assembles the lower-level packages — kvstore,
// pipeline, docstore, filterlang, querygraph, ranking — into the single
// Index handle an embedder opens, writes documents through, and queries.
// It owns the two pieces of bookkeeping no lower package is responsible
// for: keeping pkg/fields' per-field flags in sync with the live
// settings, and translating a settings Patch's Diff into a replay of
// every stored document through the indexing pipeline.
package indexcore

import (
	"os"

	bolt "go.etcd.io/bbolt"

	"github.com/cuemby/milli-core/pkg/apperr"
	"github.com/cuemby/milli-core/pkg/consistency"
	"github.com/cuemby/milli-core/pkg/events"
	"github.com/cuemby/milli-core/pkg/fields"
	"github.com/cuemby/milli-core/pkg/kvcodec"
	"github.com/cuemby/milli-core/pkg/kvstore"
	"github.com/cuemby/milli-core/pkg/ranking"
	"github.com/cuemby/milli-core/pkg/settings"
	"github.com/cuemby/milli-core/pkg/tokenizer"
)

// Config configures Open.
type Config struct {
	// Dir is the index directory passed through to kvstore.EnvConfig.
	Dir string
	// MapSizeBytes caps the on-disk file size; zero uses kvstore's default.
	MapSizeBytes int64
	// ReadOnly opens the environment without ever taking a write lock.
	ReadOnly bool
	// Tokenizer overrides the default tokenizer.New(nil). Most embedders
	// leave this nil and configure stop words through Settings instead.
	Tokenizer tokenizer.Tokenizer
	// AutomatonCacheSize bounds the process-wide Levenshtein automaton
	// cache; zero uses ranking.DefaultAutomatonCacheSize.
	AutomatonCacheSize int
	// SkipOrphanSweep disables the startup sweep of chunk directories left
	// behind by a pipeline run that never finished. Off by default; set
	// when multiple indexes share a process and one of them has already
	// swept the shared temp directory this run.
	SkipOrphanSweep bool
}

// Index is one open embedded search index: an Environment plus the
// tokenizer and automaton cache shared by every search against it.
type Index struct {
	env            *kvstore.Environment
	tokenizer      tokenizer.Tokenizer
	automatonCache *ranking.LevenshteinCache
	events         *events.Broker
}

// SetEventBroker attaches a broker that ApplyDocuments, DeleteDocuments,
// and UpdateSettings publish to after a successful commit (except the
// reindex-started event, published when the replay begins). Unset by
// default; an Index with no broker attached skips publishing entirely.
func (ix *Index) SetEventBroker(b *events.Broker) { ix.events = b }

// publish is a no-op when no broker is attached.
func (ix *Index) publish(evt *events.Event) {
	if ix.events != nil {
		ix.events.Publish(evt)
	}
}

// Open opens (creating if absent) the index directory at cfg.Dir,
// creating the fixed bucket set on first open.
func Open(cfg Config) (*Index, error) {
	env, err := kvstore.Open(kvstore.EnvConfig{
		Dir:          cfg.Dir,
		MapSizeBytes: cfg.MapSizeBytes,
		ReadOnly:     cfg.ReadOnly,
	})
	if err != nil {
		return nil, err
	}

	if !cfg.ReadOnly {
		if err := env.Update(createBuckets); err != nil {
			_ = env.Close()
			return nil, err
		}
		if !cfg.SkipOrphanSweep {
			if _, err := consistency.Sweep(0); err != nil {
				_ = env.Close()
				return nil, err
			}
		}
	}

	tok := cfg.Tokenizer
	if tok == nil {
		tok = tokenizer.New(nil)
	}
	cache, err := ranking.NewLevenshteinCache(cfg.AutomatonCacheSize)
	if err != nil {
		_ = env.Close()
		return nil, apperr.Internal(err, "indexcore: build automaton cache")
	}

	return &Index{env: env, tokenizer: tok, automatonCache: cache}, nil
}

func createBuckets(tx *bolt.Tx) error {
	for _, b := range kvcodec.AllBuckets() {
		if _, err := tx.CreateBucketIfNotExists(b); err != nil {
			return apperr.Internal(err, "indexcore: create bucket %q", b)
		}
	}
	return nil
}

// Close releases the index's memory map.
func (ix *Index) Close() error {
	return ix.env.Close()
}

// Delete removes an index's on-disk directory. The caller must Close any
// open handle on dir first; Delete does not attempt to open or lock it.
func Delete(dir string) error {
	if err := os.RemoveAll(dir); err != nil {
		return apperr.Internal(err, "indexcore: delete index directory %q", dir)
	}
	return nil
}

// Update runs fn inside the index's single system-wide write transaction.
func (ix *Index) Update(fn func(tx *bolt.Tx) error) error {
	return ix.env.Update(fn)
}

// View runs fn against a consistent read-only snapshot.
func (ix *Index) View(fn func(tx *bolt.Tx) error) error {
	return ix.env.View(fn)
}

// Path returns the index's on-disk data file path.
func (ix *Index) Path() string { return ix.env.Path() }

// Stats returns a human-readable snapshot of the environment's internal
// counters.
func (ix *Index) Stats() string { return ix.env.Stats() }

// CheckConsistency walks a read snapshot and verifies the index's data
// model invariants, returning the first violation as a Corruption error.
func (ix *Index) CheckConsistency() error {
	return ix.View(func(tx *bolt.Tx) error {
		return consistency.Check(tx)
	})
}

// DocumentCount returns the number of live documents, read from the
// documents bucket's own key count rather than decoding every value.
func (ix *Index) DocumentCount() (uint64, error) {
	var n uint64
	err := ix.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(kvcodec.BucketDocuments)
		if b == nil {
			return apperr.Internal(nil, "indexcore: documents bucket missing")
		}
		n = uint64(b.Stats().KeyN)
		return nil
	})
	return n, err
}

// FileSizeBytes returns the size in bytes of the index's on-disk data
// file.
func (ix *Index) FileSizeBytes() (int64, error) {
	info, err := os.Stat(ix.Path())
	if err != nil {
		return 0, apperr.Internal(err, "indexcore: stat index file")
	}
	return info.Size(), nil
}

func loadFieldsMap(tx *bolt.Tx) (*fields.Map, error) {
	b := tx.Bucket(kvcodec.BucketMeta)
	if b == nil {
		return nil, apperr.Internal(nil, "indexcore: meta bucket missing")
	}
	return fields.Decode(b.Get([]byte(kvcodec.KeyFieldsIDsMap)))
}

func saveFieldsMap(tx *bolt.Tx, fm *fields.Map) error {
	b := tx.Bucket(kvcodec.BucketMeta)
	if b == nil {
		return apperr.Internal(nil, "indexcore: meta bucket missing")
	}
	data, err := fm.Encode()
	if err != nil {
		return err
	}
	if err := b.Put([]byte(kvcodec.KeyFieldsIDsMap), data); err != nil {
		return apperr.Internal(err, "indexcore: write fields-ids-map")
	}
	return nil
}

func loadSettings(tx *bolt.Tx) (settings.Settings, error) {
	b := tx.Bucket(kvcodec.BucketMeta)
	if b == nil {
		return settings.Settings{}, apperr.Internal(nil, "indexcore: meta bucket missing")
	}
	return settings.Decode(b.Get([]byte(kvcodec.KeySettings)))
}

func saveSettings(tx *bolt.Tx, s settings.Settings) error {
	b := tx.Bucket(kvcodec.BucketMeta)
	if b == nil {
		return apperr.Internal(nil, "indexcore: meta bucket missing")
	}
	data, err := s.Encode()
	if err != nil {
		return err
	}
	if err := b.Put([]byte(kvcodec.KeySettings), data); err != nil {
		return apperr.Internal(err, "indexcore: write settings")
	}
	return nil
}

// fieldFlags derives the per-field Flags a name should carry under s.
// Every field's flags are recomputed from current settings on every sync
// pass; nothing is sticky across a settings change.
func fieldFlags(s settings.Settings, name string) fields.Flags {
	return fields.Flags{
		Searchable: s.IsSearchable(name),
		Displayed:  s.IsDisplayed(name),
		Filterable: s.IsFilterable(name),
		Sortable:   s.IsSortable(name),
		PrimaryKey: name != "" && name == s.PrimaryKey,
	}
}

// syncFieldFlags recomputes and applies fieldFlags for every name in
// names, inserting any name not yet mapped. The pipeline's word/facet
// extractors and the Attribute ranking rule read fm.Flags directly, so
// this must run before any of them ever see fm for a given name.
func syncFieldFlags(fm *fields.Map, s settings.Settings, names []string) error {
	for _, name := range names {
		id, err := fm.InsertName(name)
		if err != nil {
			return err
		}
		fm.SetFlags(id, fieldFlags(s, name))
	}
	return nil
}

// documentFieldNames returns the top-level field names a batch of
// upsert/replace operations touches, for syncFieldFlags.
func documentFieldNames(names map[string]bool, doc map[string]any) {
	for k := range doc {
		names[k] = true
	}
}
