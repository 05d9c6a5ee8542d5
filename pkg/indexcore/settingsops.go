package indexcore

import (
	"bytes"
	"encoding/json"
	"strconv"

	bolt "go.etcd.io/bbolt"

	"github.com/cuemby/milli-core/pkg/apperr"
	"github.com/cuemby/milli-core/pkg/docstore"
	"github.com/cuemby/milli-core/pkg/events"
	"github.com/cuemby/milli-core/pkg/fields"
	"github.com/cuemby/milli-core/pkg/kvcodec"
	"github.com/cuemby/milli-core/pkg/metrics"
	"github.com/cuemby/milli-core/pkg/pipeline"
	"github.com/cuemby/milli-core/pkg/settings"
)

// Settings returns the index's current settings.
func (ix *Index) Settings() (settings.Settings, error) {
	var s settings.Settings
	err := ix.View(func(tx *bolt.Tx) error {
		var err error
		s, err = loadSettings(tx)
		return err
	})
	return s, err
}

// UpdateSettings applies patch, persists the result, resyncs every
// mapped field's flags against it, and — when the resulting Diff widens
// or narrows what is indexed — replays every stored document through the
// pipeline so the change is visible immediately rather than lazily on
// the next write.
func (ix *Index) UpdateSettings(patch settings.Patch) (settings.Settings, error) {
	var result settings.Settings
	var reindexed bool
	err := ix.Update(func(tx *bolt.Tx) error {
		base, err := loadSettings(tx)
		if err != nil {
			return err
		}
		next, diff, err := settings.Apply(base, patch)
		if err != nil {
			return err
		}

		fm, err := loadFieldsMap(tx)
		if err != nil {
			return err
		}
		if err := syncFieldFlags(fm, next, fm.Names()); err != nil {
			return err
		}

		reindexed = diff.FullReindex || len(diff.FacetFieldsToRebuild) > 0
		if reindexed {
			ix.publish(&events.Event{Type: events.EventReindexStarted})
			if err := purgeFacetFields(tx, fm, diff.FacetFieldsToRebuild); err != nil {
				return err
			}
			if err := ix.replayAllDocuments(tx, fm, next); err != nil {
				return err
			}
		} else if err := saveFieldsMap(tx, fm); err != nil {
			return err
		}

		if err := saveSettings(tx, next); err != nil {
			return err
		}
		result = next
		return nil
	})
	if err == nil {
		metrics.SettingsUpdatesTotal.WithLabelValues(strconv.FormatBool(reindexed)).Inc()
		if reindexed {
			ix.publish(&events.Event{Type: events.EventReindexCompleted})
		}
		ix.publish(&events.Event{Type: events.EventSettingsUpdated})
	}
	return result, err
}

// purgeFacetFields drops every stored facet entry for the named fields,
// so replayAllDocuments rebuilds them from scratch rather than diffing
// against postings keyed by flags that no longer apply (walkFacetOBKV in
// pkg/pipeline skips a field entirely once it stops being
// filterable/sortable, so the old delete-side of a replay would never
// reach a stale entry on its own).
func purgeFacetFields(tx *bolt.Tx, fm *fields.Map, names []string) error {
	for _, name := range names {
		id, ok := fm.ID(name)
		if !ok {
			continue
		}
		if err := purgeFacetField(tx, id); err != nil {
			return err
		}
	}
	return nil
}

func purgeFacetField(tx *bolt.Tx, fieldID uint16) error {
	prefix := kvcodec.EncodeU16(fieldID)
	for _, bucketName := range [][]byte{kvcodec.BucketFacetNumberDocids, kvcodec.BucketFacetStringDocids} {
		b := tx.Bucket(bucketName)
		if b == nil {
			continue
		}
		var keys [][]byte
		c := b.Cursor()
		for k, _ := c.Seek(prefix); k != nil && bytes.HasPrefix(k, prefix); k, _ = c.Next() {
			keys = append(keys, append([]byte(nil), k...))
		}
		for _, k := range keys {
			if err := b.Delete(k); err != nil {
				return apperr.Internal(err, "indexcore: purge facet field %d", fieldID)
			}
		}
	}
	return nil
}

// replayAllDocuments reconstructs every stored document as a self
// OpReplace and runs the batch through the pipeline, so extraction sees
// fm's just-synced flags rather than whatever flags were live when each
// document was originally written.
func (ix *Index) replayAllDocuments(tx *bolt.Tx, fm *fields.Map, s settings.Settings) error {
	ids, err := allDocids(tx)
	if err != nil {
		return err
	}
	if ids.IsEmpty() {
		return nil
	}

	batch := make(pipeline.Batch, 0, ids.GetCardinality())
	it := ids.Iterator()
	for it.HasNext() {
		internalID := it.Next()
		obkv, ok, err := docstore.Get(tx, internalID)
		if err != nil {
			return err
		}
		if !ok {
			continue
		}
		doc, err := decodeDocument(fm, obkv)
		if err != nil {
			return err
		}
		batch = append(batch, pipeline.Operation{Kind: pipeline.OpReplace, Doc: doc})
	}
	if len(batch) == 0 {
		return nil
	}
	_, err = pipeline.Run(tx, batch, fm, ix.pipelineConfig(fm, s))
	return err
}

func decodeDocument(fm *fields.Map, obkv kvcodec.OBKV) (pipeline.Document, error) {
	doc := make(pipeline.Document, len(obkv))
	for id, raw := range obkv {
		name, ok := fm.Name(id)
		if !ok {
			continue
		}
		var v any
		if err := json.Unmarshal(raw, &v); err != nil {
			return nil, apperr.Corruption(err, "indexcore: decode field %q", name)
		}
		doc[name] = v
	}
	return doc, nil
}
