package pipeline

import (
	"encoding/json"

	"github.com/cuemby/milli-core/pkg/fields"
	"github.com/cuemby/milli-core/pkg/kvcodec"
)

// FacetExtractResult holds the facet-value posting accumulators stage 4's
// facet extractor contributes to, plus the set of numeric fields touched
// (so stage 6 knows which fields need BucketFacetNumberDocids level
// rebuild).
type FacetExtractResult struct {
	Numbers              *PostingAccumulator
	Strings              *PostingAccumulator
	NumericFieldsTouched map[uint16]bool
}

func newFacetExtractResult(dir string) *FacetExtractResult {
	return &FacetExtractResult{
		Numbers:              newPostingAccumulator(dir),
		Strings:              newPostingAccumulator(dir),
		NumericFieldsTouched: map[uint16]bool{},
	}
}

func (r *FacetExtractResult) Close() {
	r.Numbers.Close()
	r.Strings.Close()
}

// ExtractFacets runs the facet extractor (stage 4) over every resolved
// operation, recursing each filterable-or-sortable field's raw JSON value
// depth-first: one facet entry per array element, and per scalar leaf of
// a nested object. Unlike word extraction, facet extraction is cheap
// enough per-document that it is not sharded across workers — it runs on
// the calling goroutine of the stage-4 fan-out.
func ExtractFacets(ops []resolvedOp, fm *fields.Map, dir string) (*FacetExtractResult, error) {
	result := newFacetExtractResult(dir)
	for _, op := range ops {
		if err := extractFacetsForDoc(op, fm, result); err != nil {
			result.Close()
			return nil, err
		}
	}
	return result, nil
}

func extractFacetsForDoc(op resolvedOp, fm *fields.Map, result *FacetExtractResult) error {
	if err := walkFacetOBKV(op.oldOBKV, fm, op.internalID, result, (*PostingAccumulator).delDoc); err != nil {
		return err
	}
	if op.kind == OpDelete {
		return nil
	}
	return walkFacetOBKV(op.newOBKV, fm, op.internalID, result, (*PostingAccumulator).addDoc)
}

func walkFacetOBKV(obkv kvcodec.OBKV, fm *fields.Map, docid uint32, result *FacetExtractResult, op postingOp) error {
	for id, raw := range obkv {
		flags := fm.Flags(id)
		if !flags.Filterable && !flags.Sortable {
			continue
		}
		var v any
		if err := json.Unmarshal(raw, &v); err != nil {
			continue
		}
		if err := walkFacetValue(id, v, docid, result, op); err != nil {
			return err
		}
	}
	return nil
}

func walkFacetValue(fieldID uint16, v any, docid uint32, result *FacetExtractResult, op postingOp) error {
	switch t := v.(type) {
	case float64:
		result.NumericFieldsTouched[fieldID] = true
		key := kvcodec.FacetNumberKey(fieldID, 0, t, t)
		return op(result.Numbers, key, docid)
	case bool:
		n := 0.0
		if t {
			n = 1.0
		}
		result.NumericFieldsTouched[fieldID] = true
		return op(result.Numbers, kvcodec.FacetNumberKey(fieldID, 0, n, n), docid)
	case string:
		return op(result.Strings, kvcodec.FacetStringKey(fieldID, t), docid)
	case []any:
		for _, elem := range t {
			if err := walkFacetValue(fieldID, elem, docid, result, op); err != nil {
				return err
			}
		}
		return nil
	case map[string]any:
		for _, elem := range t {
			if err := walkFacetValue(fieldID, elem, docid, result, op); err != nil {
				return err
			}
		}
		return nil
	default:
		return nil // null or unsupported shape: not a facetable value
	}
}
