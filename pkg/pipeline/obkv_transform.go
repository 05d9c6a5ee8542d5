package pipeline

import (
	"encoding/json"
	"sort"

	"github.com/cuemby/milli-core/pkg/apperr"
	"github.com/cuemby/milli-core/pkg/fields"
	"github.com/cuemby/milli-core/pkg/kvcodec"
)

// transformOBKV runs stage 2 on op in place: every top-level field of
// op.doc is assigned (or looked up) a field id in fm, JSON-encoded, and
// assembled into op.newOBKV. OpUpsert merges onto op.oldOBKV per §4.F's
// "update" semantics (new fields overwrite, fields absent from the
// incoming document are preserved); OpReplace fully supplants the old
// record.
func transformOBKV(op *resolvedOp, fm *fields.Map) error {
	if op.kind == OpDelete {
		return nil
	}

	update := make(kvcodec.OBKV, len(op.doc))
	names := make([]string, 0, len(op.doc))
	for name := range op.doc {
		names = append(names, name)
	}
	sort.Strings(names) // deterministic field-id assignment order for a given document

	for _, name := range names {
		id, err := fm.InsertName(name)
		if err != nil {
			return err
		}
		raw, err := json.Marshal(op.doc[name])
		if err != nil {
			return apperr.Validation("document field %q cannot be encoded: %v", name, err)
		}
		update[id] = raw
	}

	switch op.kind {
	case OpReplace:
		op.newOBKV = kvcodec.OBKV(update)
	case OpUpsert:
		op.newOBKV = kvcodec.MergeOBKV(op.oldOBKV, update)
	}
	return nil
}
