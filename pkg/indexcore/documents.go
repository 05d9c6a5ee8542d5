package indexcore

import (
	"fmt"

	bolt "go.etcd.io/bbolt"

	"github.com/cuemby/milli-core/pkg/events"
	"github.com/cuemby/milli-core/pkg/fields"
	"github.com/cuemby/milli-core/pkg/metrics"
	"github.com/cuemby/milli-core/pkg/pipeline"
	"github.com/cuemby/milli-core/pkg/settings"
)

// ApplyDocuments runs batch through the indexing pipeline inside one
// write transaction. Every field name the batch's upsert/replace
// operations reference is synced against current settings first, so new
// fields pick up the right Searchable/Filterable/Sortable bits before
// extraction runs.
func (ix *Index) ApplyDocuments(batch pipeline.Batch) (pipeline.Result, error) {
	timer := metrics.NewTimer()
	var result pipeline.Result
	err := ix.Update(func(tx *bolt.Tx) error {
		fm, err := loadFieldsMap(tx)
		if err != nil {
			return err
		}
		s, err := loadSettings(tx)
		if err != nil {
			return err
		}

		names := map[string]bool{}
		for _, op := range batch {
			if op.Kind != pipeline.OpDelete {
				documentFieldNames(names, op.Doc)
			}
		}
		nameList := make([]string, 0, len(names))
		for n := range names {
			nameList = append(nameList, n)
		}
		if err := syncFieldFlags(fm, s, nameList); err != nil {
			return err
		}

		r, err := pipeline.Run(tx, batch, fm, ix.pipelineConfig(fm, s))
		if err != nil {
			return err
		}
		result = r
		return nil
	})
	timer.ObserveDuration(metrics.IndexingDuration)
	if err == nil {
		metrics.IndexingBatchesTotal.WithLabelValues("success").Inc()
		metrics.DocumentsIndexedTotal.Add(float64(result.DocumentsUpserted))
		metrics.DocumentsDeletedTotal.Add(float64(result.DocumentsDeleted))
		ix.publish(&events.Event{
			Type:    EventTypeForResult(result),
			Message: fmt.Sprintf("upserted %d, deleted %d", result.DocumentsUpserted, result.DocumentsDeleted),
		})
	} else {
		metrics.IndexingBatchesTotal.WithLabelValues("error").Inc()
	}
	return result, err
}

// EventTypeForResult picks the events.EventType an ApplyDocuments commit
// should publish: a pure deletion batch reports EventDocumentsDeleted,
// anything else reports EventDocumentsIndexed.
func EventTypeForResult(r pipeline.Result) events.EventType {
	if r.DocumentsUpserted == 0 && r.DocumentsDeleted > 0 {
		return events.EventDocumentsDeleted
	}
	return events.EventDocumentsIndexed
}

// DeleteDocuments removes the documents named by externalIDs. Deleting an
// id that doesn't exist is a no-op, matching pkg/pipeline's resolve stage.
func (ix *Index) DeleteDocuments(externalIDs []string) (pipeline.Result, error) {
	batch := make(pipeline.Batch, len(externalIDs))
	for i, id := range externalIDs {
		batch[i] = pipeline.Operation{Kind: pipeline.OpDelete, ExternalID: id}
	}
	return ix.ApplyDocuments(batch)
}

func (ix *Index) pipelineConfig(fm *fields.Map, s settings.Settings) pipeline.Config {
	return pipeline.Config{
		PrimaryKey: s.PrimaryKey,
		Tokenizer:  ix.tokenizer,
		LocalesOf:  localesOfFunc(fm, s),
	}
}

func localesOfFunc(fm *fields.Map, s settings.Settings) func(fieldID uint16) []string {
	return func(fieldID uint16) []string {
		name, ok := fm.Name(fieldID)
		if !ok {
			return nil
		}
		return s.LocaleRules[name]
	}
}
