package settings

import (
	"testing"

	"github.com/cuemby/milli-core/pkg/apperr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultRankingRulesUsedWhenUnset(t *testing.T) {
	s := Default()
	assert.Equal(t, DefaultRankingRules, s.EffectiveRankingRules())
}

func TestIsSearchableNilMeansAll(t *testing.T) {
	var s Settings
	assert.True(t, s.IsSearchable("title"))
}

func TestIsSearchableRespectsExplicitList(t *testing.T) {
	s := Settings{SearchableFields: []string{"title"}}
	assert.True(t, s.IsSearchable("title"))
	assert.False(t, s.IsSearchable("body"))
}

func TestEncodeDecodeRoundTrip(t *testing.T) {
	s := Settings{
		SearchableFields:   []string{"title", "body"},
		FilterableFields:   []string{"price"},
		MinWordLenOneTypo:  4,
		MinWordLenTwoTypos: 8,
		Synonyms:           map[string][][]string{"couch": {{"sofa"}}},
	}
	data, err := s.Encode()
	require.NoError(t, err)
	got, err := Decode(data)
	require.NoError(t, err)
	assert.Equal(t, s, got)
}

func TestDecodeEmptyIsDefault(t *testing.T) {
	got, err := Decode(nil)
	require.NoError(t, err)
	assert.Equal(t, Default(), got)
}

func TestApplySetValueReplacesField(t *testing.T) {
	base := Default()
	next, diff, err := Apply(base, Patch{
		FilterableFields: StringSliceField{State: SetValue, Value: []string{"price"}},
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"price"}, next.FilterableFields)
	assert.ElementsMatch(t, []string{"price"}, diff.FacetFieldsToRebuild)
	assert.False(t, diff.FullReindex)
}

func TestApplyNotSetLeavesFieldUnchanged(t *testing.T) {
	base := Settings{SearchableFields: []string{"title"}}
	next, diff, err := Apply(base, Patch{})
	require.NoError(t, err)
	assert.Equal(t, []string{"title"}, next.SearchableFields)
	assert.False(t, diff.FullReindex)
}

func TestApplyResetRestoresDefault(t *testing.T) {
	base := Settings{MinWordLenOneTypo: 2, MinWordLenTwoTypos: 3}
	next, _, err := Apply(base, Patch{
		MinWordLenOneTypo:  IntField{State: ResetValue},
		MinWordLenTwoTypos: IntField{State: ResetValue},
	})
	require.NoError(t, err)
	assert.Equal(t, DefaultMinWordLenOneTypo, next.MinWordLenOneTypo)
	assert.Equal(t, DefaultMinWordLenTwoTypos, next.MinWordLenTwoTypos)
}

func TestApplySearchableFieldChangeTriggersFullReindex(t *testing.T) {
	base := Settings{SearchableFields: []string{"title"}}
	_, diff, err := Apply(base, Patch{
		SearchableFields: StringSliceField{State: SetValue, Value: []string{"title", "body"}},
	})
	require.NoError(t, err)
	assert.True(t, diff.FullReindex)
}

func TestApplyDisplayedFieldChangeDoesNotTriggerReindex(t *testing.T) {
	base := Settings{}
	_, diff, err := Apply(base, Patch{
		DisplayedFields: StringSliceField{State: SetValue, Value: []string{"title"}},
	})
	require.NoError(t, err)
	assert.False(t, diff.FullReindex)
	assert.Empty(t, diff.FacetFieldsToRebuild)
}

func TestApplyFilterableFieldChangeOnlyRebuildsAffectedFacets(t *testing.T) {
	base := Settings{FilterableFields: []string{"price", "color"}}
	_, diff, err := Apply(base, Patch{
		FilterableFields: StringSliceField{State: SetValue, Value: []string{"price", "size"}},
	})
	require.NoError(t, err)
	assert.False(t, diff.FullReindex)
	assert.ElementsMatch(t, []string{"color", "size"}, diff.FacetFieldsToRebuild)
}

func TestApplyRejectsChangingExistingPrimaryKey(t *testing.T) {
	base := Settings{PrimaryKey: "id"}
	_, _, err := Apply(base, Patch{
		PrimaryKey: StringField{State: SetValue, Value: "uuid"},
	})
	require.Error(t, err)
	assert.True(t, apperr.Is(err, apperr.CodeValidation))
}

func TestApplyAllowsSettingPrimaryKeyWhenUnset(t *testing.T) {
	base := Settings{}
	next, _, err := Apply(base, Patch{
		PrimaryKey: StringField{State: SetValue, Value: "id"},
	})
	require.NoError(t, err)
	assert.Equal(t, "id", next.PrimaryKey)
}

func TestApplyReassertingSamePrimaryKeyIsNotAConflict(t *testing.T) {
	base := Settings{PrimaryKey: "id"}
	next, _, err := Apply(base, Patch{
		PrimaryKey: StringField{State: SetValue, Value: "id"},
	})
	require.NoError(t, err)
	assert.Equal(t, "id", next.PrimaryKey)
}
