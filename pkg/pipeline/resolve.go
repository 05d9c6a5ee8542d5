package pipeline

import (
	"github.com/cuemby/milli-core/pkg/apperr"
	"github.com/cuemby/milli-core/pkg/docstore"
	"github.com/cuemby/milli-core/pkg/kvcodec"
)

// resolvedOp is one batch entry after stage 1: its internal docid is
// fixed and its prior OBKV record (if any) has been loaded. Stage 2 fills
// in newOBKV; stage 3 fills in deltas.
type resolvedOp struct {
	kind       OpKind
	internalID uint32
	externalID string
	doc        Document     // nil for OpDelete
	oldOBKV    kvcodec.OBKV // nil if this is a brand-new document
	newOBKV    kvcodec.OBKV // nil for OpDelete until stage 2 runs
	deltas     []FieldDelta
}

// resolve runs stage 1 for the whole batch: detect each operation's
// primary key, resolve it to an internal docid (allocating one for new
// documents, freeing one for deletes), and load the prior OBKV record so
// later stages can diff against it. This is cheap bookkeeping against the
// already-loaded ExternalIDs/Allocator overlays, not CPU-bound extraction,
// so it runs sequentially rather than on the stage-4 worker pool.
func resolve(
	batch Batch,
	primaryKey string,
	ext *docstore.ExternalIDs,
	alloc *docstore.Allocator,
	loadOld func(internalID uint32) (kvcodec.OBKV, bool, error),
) ([]resolvedOp, error) {
	ops := make([]resolvedOp, 0, len(batch))

	for _, op := range batch {
		switch op.Kind {
		case OpDelete:
			id, ok := ext.Delete(op.ExternalID)
			if !ok {
				continue // deleting a document that doesn't exist is a no-op, not an error
			}
			old, found, err := loadOld(id)
			if err != nil {
				return nil, err
			}
			if !found {
				old = kvcodec.OBKV{}
			}
			alloc.Free(id)
			ops = append(ops, resolvedOp{
				kind:       OpDelete,
				internalID: id,
				externalID: op.ExternalID,
				oldOBKV:    old,
			})

		case OpUpsert, OpReplace:
			pk, err := DetectPrimaryKey(primaryKey, op.Doc)
			if err != nil {
				return nil, err
			}
			extID, err := externalIDOf(op.Doc, pk)
			if err != nil {
				return nil, err
			}

			var (
				internalID uint32
				old        kvcodec.OBKV
			)
			if id, exists := ext.Get(extID); exists {
				internalID = id
				o, found, err := loadOld(id)
				if err != nil {
					return nil, err
				}
				if found {
					old = o
				}
			} else {
				internalID = alloc.Alloc()
				ext.Insert(extID, internalID)
			}

			ops = append(ops, resolvedOp{
				kind:       op.Kind,
				internalID: internalID,
				externalID: extID,
				doc:        op.Doc,
				oldOBKV:    old,
			})

		default:
			return nil, apperr.Internal(nil, "pipeline: unknown operation kind %d", op.Kind)
		}
	}
	return ops, nil
}
