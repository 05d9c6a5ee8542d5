package pipeline

import (
	"bytes"

	"github.com/cuemby/milli-core/pkg/kvcodec"
)

// FieldDelta is the stage-3 unit of work: one field of one document whose
// raw JSON value changed between the old and new OBKV records. Deletion
// is non-nil when the field had a prior value (to be retracted from the
// inverted structures); Addition is non-nil when the field has a new
// value (to be extracted and inserted). Both non-nil means "changed";
// only Deletion non-nil means "removed"; only Addition non-nil means
// "added".
type FieldDelta struct {
	FieldID  uint16
	Deletion []byte
	Addition []byte
}

// buildJournal diffs old against new field-by-field and returns one
// FieldDelta per field whose raw bytes differ. Fields whose encoded value
// is byte-identical in both records are omitted. The stage-4 extractors
// do not read this journal: they walk each document's full old and new
// records, and stage 5's (old - del) ∪ add leaves unchanged postings as
// they were.
func buildJournal(old, new kvcodec.OBKV) []FieldDelta {
	seen := make(map[uint16]bool, len(old)+len(new))
	var deltas []FieldDelta

	for id, oldVal := range old {
		seen[id] = true
		newVal, stillPresent := new[id]
		if stillPresent && bytes.Equal(oldVal, newVal) {
			continue
		}
		d := FieldDelta{FieldID: id, Deletion: oldVal}
		if stillPresent {
			d.Addition = newVal
		}
		deltas = append(deltas, d)
	}
	for id, newVal := range new {
		if seen[id] {
			continue
		}
		deltas = append(deltas, FieldDelta{FieldID: id, Addition: newVal})
	}
	return deltas
}
