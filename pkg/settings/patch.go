package settings

import "github.com/cuemby/milli-core/pkg/apperr"

// FieldState is a patch field's disposition: leave unchanged, replace
// with a new value, or restore the default.
type FieldState int

const (
	NotSet FieldState = iota
	SetValue
	ResetValue
)

// StringSliceField is a patchable []string-valued Settings field.
type StringSliceField struct {
	State FieldState
	Value []string
}

// StringMapField is a patchable map[string][]string-valued field.
type StringMapField struct {
	State FieldState
	Value map[string][]string
}

// SynonymMapField is a patchable map[string][][]string-valued field.
type SynonymMapField struct {
	State FieldState
	Value map[string][][]string
}

// IntField is a patchable int-valued field.
type IntField struct {
	State FieldState
	Value int
}

// StringField is a patchable string-valued field.
type StringField struct {
	State FieldState
	Value string
}

// Patch expresses an update to Settings: every field independently
// Set/Reset/NotSet, per §4.J.
type Patch struct {
	SearchableFields   StringSliceField
	DisplayedFields    StringSliceField
	FilterableFields   StringSliceField
	SortableFields     StringSliceField
	RankingRules       StringSliceField
	StopWords          StringMapField
	Synonyms           SynonymMapField
	MinWordLenOneTypo  IntField
	MinWordLenTwoTypos IntField
	ExactWords         StringSliceField
	DistinctAttribute  StringField
	PrimaryKey         StringField
	LocaleRules        StringMapField
}

// Diff reports which indexing artifacts a patch requires the pipeline to
// rebuild (§4.J).
type Diff struct {
	FullReindex          bool
	FacetFieldsToRebuild []string
}

// Apply computes the Settings that result from applying patch to base,
// together with the Diff describing what must be rebuilt. It returns a
// Validation error, leaving base untouched, if the patch would silently
// widen an invariant the core cannot safely apply.
func Apply(base Settings, patch Patch) (Settings, Diff, error) {
	next := base

	if patch.PrimaryKey.State == SetValue &&
		base.PrimaryKey != "" &&
		patch.PrimaryKey.Value != "" &&
		patch.PrimaryKey.Value != base.PrimaryKey {
		return Settings{}, Diff{}, apperr.Validation(
			"primary key is already set to %q; an index's primary key cannot be changed once documents may reference it",
			base.PrimaryKey)
	}

	next.SearchableFields = applyStringSlice(patch.SearchableFields, base.SearchableFields, nil)
	next.DisplayedFields = applyStringSlice(patch.DisplayedFields, base.DisplayedFields, nil)
	next.FilterableFields = applyStringSlice(patch.FilterableFields, base.FilterableFields, nil)
	next.SortableFields = applyStringSlice(patch.SortableFields, base.SortableFields, nil)
	next.RankingRules = applyStringSlice(patch.RankingRules, base.RankingRules, nil)
	next.ExactWords = applyStringSlice(patch.ExactWords, base.ExactWords, nil)
	next.StopWords = applyStringMap(patch.StopWords, base.StopWords)
	next.Synonyms = applySynonymMap(patch.Synonyms, base.Synonyms)
	next.LocaleRules = applyStringMap(patch.LocaleRules, base.LocaleRules)
	next.MinWordLenOneTypo = applyInt(patch.MinWordLenOneTypo, base.MinWordLenOneTypo, DefaultMinWordLenOneTypo)
	next.MinWordLenTwoTypos = applyInt(patch.MinWordLenTwoTypos, base.MinWordLenTwoTypos, DefaultMinWordLenTwoTypos)
	next.DistinctAttribute = applyString(patch.DistinctAttribute, base.DistinctAttribute, "")
	next.PrimaryKey = applyString(patch.PrimaryKey, base.PrimaryKey, "")

	return next, diffOf(base, next), nil
}

func applyStringSlice(f StringSliceField, current, def []string) []string {
	switch f.State {
	case SetValue:
		return append([]string(nil), f.Value...)
	case ResetValue:
		return append([]string(nil), def...)
	default:
		return current
	}
}

func applyStringMap(f StringMapField, current map[string][]string) map[string][]string {
	switch f.State {
	case SetValue:
		return f.Value
	case ResetValue:
		return nil
	default:
		return current
	}
}

func applySynonymMap(f SynonymMapField, current map[string][][]string) map[string][][]string {
	switch f.State {
	case SetValue:
		return f.Value
	case ResetValue:
		return nil
	default:
		return current
	}
}

func applyInt(f IntField, current, def int) int {
	switch f.State {
	case SetValue:
		return f.Value
	case ResetValue:
		return def
	default:
		return current
	}
}

func applyString(f StringField, current, def string) string {
	switch f.State {
	case SetValue:
		return f.Value
	case ResetValue:
		return def
	default:
		return current
	}
}

// diffOf compares old and next to decide what the pipeline must rebuild.
func diffOf(old, next Settings) Diff {
	var d Diff

	if !stringSliceEqual(old.SearchableFields, next.SearchableFields) ||
		!stringMapEqual(old.StopWords, next.StopWords) ||
		!synonymMapEqual(old.Synonyms, next.Synonyms) ||
		old.MinWordLenOneTypo != next.MinWordLenOneTypo ||
		old.MinWordLenTwoTypos != next.MinWordLenTwoTypos ||
		!stringSliceEqual(old.ExactWords, next.ExactWords) ||
		!stringMapEqual(old.LocaleRules, next.LocaleRules) {
		d.FullReindex = true
	}

	d.FacetFieldsToRebuild = append(d.FacetFieldsToRebuild,
		symmetricDifference(old.FilterableFields, next.FilterableFields)...)
	d.FacetFieldsToRebuild = append(d.FacetFieldsToRebuild,
		symmetricDifference(old.SortableFields, next.SortableFields)...)

	return d
}

func stringSliceEqual(a, b []string) bool {
	as, bs := sortedCopy(a), sortedCopy(b)
	if len(as) != len(bs) {
		return false
	}
	for i := range as {
		if as[i] != bs[i] {
			return false
		}
	}
	return true
}

func stringMapEqual(a, b map[string][]string) bool {
	if len(a) != len(b) {
		return false
	}
	for k, av := range a {
		bv, ok := b[k]
		if !ok || !stringSliceEqual(av, bv) {
			return false
		}
	}
	return true
}

func synonymMapEqual(a, b map[string][][]string) bool {
	if len(a) != len(b) {
		return false
	}
	for k, av := range a {
		bv, ok := b[k]
		if !ok || len(av) != len(bv) {
			return false
		}
		for i := range av {
			if !stringSliceEqual(av[i], bv[i]) {
				return false
			}
		}
	}
	return true
}

// symmetricDifference returns, deduplicated, every field present in
// exactly one of a or b — the set of fields whose filterable/sortable
// membership changed.
func symmetricDifference(a, b []string) []string {
	inA := make(map[string]bool, len(a))
	for _, f := range a {
		inA[f] = true
	}
	inB := make(map[string]bool, len(b))
	for _, f := range b {
		inB[f] = true
	}
	var out []string
	for f := range inA {
		if !inB[f] {
			out = append(out, f)
		}
	}
	for f := range inB {
		if !inA[f] {
			out = append(out, f)
		}
	}
	return out
}
