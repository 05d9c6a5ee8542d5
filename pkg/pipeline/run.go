package pipeline

import (
	"os"
	"runtime"

	bolt "go.etcd.io/bbolt"

	"github.com/cuemby/milli-core/pkg/apperr"
	"github.com/cuemby/milli-core/pkg/docstore"
	"github.com/cuemby/milli-core/pkg/fields"
	"github.com/cuemby/milli-core/pkg/kvcodec"
	"github.com/cuemby/milli-core/pkg/tokenizer"
)

// Config configures one Run call.
type Config struct {
	PrimaryKey      string
	Tokenizer       tokenizer.Tokenizer
	LocalesOf       func(fieldID uint16) []string
	MaxPrefixLength int
	Workers         int
}

func (c Config) withDefaults() Config {
	if c.Tokenizer == nil {
		c.Tokenizer = tokenizer.New(nil)
	}
	if c.LocalesOf == nil {
		c.LocalesOf = func(uint16) []string { return nil }
	}
	if c.Workers <= 0 {
		c.Workers = runtime.NumCPU()
	}
	return c
}

// Result summarizes one Run call for the caller's logging/metrics.
type Result struct {
	DocumentsUpserted int
	DocumentsDeleted  int
}

// Run executes the full seven-stage pipeline against batch inside tx:
// resolve docids, transform to OBKV, journal the change, extract in
// parallel, merge into the live buckets, rebuild the prefix cache and
// facet levels, and persist the field map / docid bookkeeping. The
// caller (pkg/indexcore) is responsible for stage 7: committing tx once
// Run returns successfully.
func Run(tx *bolt.Tx, batch Batch, fm *fields.Map, cfg Config) (Result, error) {
	cfg = cfg.withDefaults()
	var result Result

	ext, err := docstore.LoadExternalIDs(tx)
	if err != nil {
		return result, err
	}
	alloc, err := docstore.LoadAllocator(tx)
	if err != nil {
		return result, err
	}

	ops, err := resolve(batch, cfg.PrimaryKey, ext, alloc, func(id uint32) (kvcodec.OBKV, bool, error) {
		return docstore.Get(tx, id)
	})
	if err != nil {
		return result, err
	}

	for i := range ops {
		if err := transformOBKV(&ops[i], fm); err != nil {
			return result, err
		}
		ops[i].deltas = buildJournal(ops[i].oldOBKV, ops[i].newOBKV)
	}

	dir, err := newSpillDir()
	if err != nil {
		return result, err
	}
	defer os.RemoveAll(dir)

	words, err := ExtractWords(ops, fm, cfg.Tokenizer, cfg.LocalesOf, dir, cfg.Workers)
	if err != nil {
		return result, err
	}
	defer words.Close()

	facets, err := ExtractFacets(ops, fm, dir)
	if err != nil {
		return result, err
	}
	defer facets.Close()

	if err := mergeBucket(tx, kvcodec.BucketWordDocids, words.Docids); err != nil {
		return result, err
	}
	if err := mergeBucket(tx, kvcodec.BucketWordPositionDocids, words.PositionDocids); err != nil {
		return result, err
	}
	if err := mergeBucket(tx, kvcodec.BucketWordFidDocids, words.FidDocids); err != nil {
		return result, err
	}
	if err := mergeBucket(tx, kvcodec.BucketWordPairProximityDocids, words.PairProximity); err != nil {
		return result, err
	}
	if err := mergeFacetNumbers(tx, facets.Numbers); err != nil {
		return result, err
	}
	if err := mergeBucket(tx, kvcodec.BucketFacetStringDocids, facets.Strings); err != nil {
		return result, err
	}

	for _, op := range ops {
		switch op.kind {
		case OpDelete:
			if err := docstore.Delete(tx, op.internalID); err != nil {
				return result, err
			}
			result.DocumentsDeleted++
		case OpUpsert, OpReplace:
			if err := docstore.Put(tx, op.internalID, op.newOBKV); err != nil {
				return result, err
			}
			result.DocumentsUpserted++
		}
	}

	if err := RebuildWordsFst(tx, cfg.MaxPrefixLength); err != nil {
		return result, err
	}
	if err := RebuildFacetLevels(tx, facets.NumericFieldsTouched); err != nil {
		return result, err
	}

	if err := ext.Commit(tx); err != nil {
		return result, err
	}
	if err := alloc.Commit(tx); err != nil {
		return result, err
	}

	encoded, err := fm.Encode()
	if err != nil {
		return result, err
	}
	meta := tx.Bucket(kvcodec.BucketMeta)
	if meta == nil {
		return result, apperr.Internal(nil, "pipeline: meta bucket missing")
	}
	if err := meta.Put([]byte(kvcodec.KeyFieldsIDsMap), encoded); err != nil {
		return result, apperr.Internal(err, "pipeline: write fields-ids-map")
	}

	return result, nil
}
