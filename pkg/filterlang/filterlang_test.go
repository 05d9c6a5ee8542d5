package filterlang

import (
	"testing"

	"github.com/cuemby/milli-core/pkg/apperr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeFields struct {
	filterable map[string]bool
	numeric    map[string]bool
}

func (f fakeFields) IsFilterable(field string) bool { return f.filterable[field] }
func (f fakeFields) IsNumeric(field string) bool    { return f.numeric[field] }

func TestParseSimpleEquality(t *testing.T) {
	fields := fakeFields{filterable: map[string]bool{"color": true}}
	cond, err := Parse(`color = "red"`, fields)
	require.NoError(t, err)
	cmp, ok := cond.(*Compare)
	require.True(t, ok)
	assert.Equal(t, "color", cmp.Field)
	assert.Equal(t, OpEq, cmp.Op)
	require.NotNil(t, cmp.Value.String)
	assert.Equal(t, "red", *cmp.Value.String)
}

func TestParseNumericComparison(t *testing.T) {
	fields := fakeFields{filterable: map[string]bool{"price": true}, numeric: map[string]bool{"price": true}}
	cond, err := Parse("price >= 10", fields)
	require.NoError(t, err)
	cmp := cond.(*Compare)
	assert.Equal(t, OpGte, cmp.Op)
	require.NotNil(t, cmp.Value.Number)
	assert.Equal(t, 10.0, *cmp.Value.Number)
}

func TestParseRejectsNumericOpOnNonNumericField(t *testing.T) {
	fields := fakeFields{filterable: map[string]bool{"color": true}}
	_, err := Parse(`color > "red"`, fields)
	require.Error(t, err)
	assert.True(t, apperr.Is(err, apperr.CodeValidation))
}

func TestParseRejectsNonFilterableField(t *testing.T) {
	fields := fakeFields{filterable: map[string]bool{}}
	_, err := Parse(`secret = 1`, fields)
	require.Error(t, err)
	assert.True(t, apperr.Is(err, apperr.CodeValidation))
}

func TestParseAndOr(t *testing.T) {
	fields := fakeFields{filterable: map[string]bool{"a": true, "b": true}}
	cond, err := Parse(`a = "1" AND b = "2" OR a = "3"`, fields)
	require.NoError(t, err)
	// AND binds tighter than OR: (a=1 AND b=2) OR a=3
	or, ok := cond.(*Or)
	require.True(t, ok)
	and, ok := or.Left.(*And)
	require.True(t, ok)
	assert.IsType(t, &Compare{}, and.Left)
	assert.IsType(t, &Compare{}, and.Right)
	assert.IsType(t, &Compare{}, or.Right)
}

func TestParseNot(t *testing.T) {
	fields := fakeFields{filterable: map[string]bool{"a": true}}
	cond, err := Parse(`NOT a = "1"`, fields)
	require.NoError(t, err)
	not, ok := cond.(*Not)
	require.True(t, ok)
	assert.IsType(t, &Compare{}, not.Inner)
}

func TestParseParentheses(t *testing.T) {
	fields := fakeFields{filterable: map[string]bool{"a": true, "b": true, "c": true}}
	cond, err := Parse(`a = "1" AND (b = "2" OR c = "3")`, fields)
	require.NoError(t, err)
	and, ok := cond.(*And)
	require.True(t, ok)
	assert.IsType(t, &Or{}, and.Right)
}

func TestParseExistsIsEmptyIsNull(t *testing.T) {
	fields := fakeFields{filterable: map[string]bool{"a": true, "b": true, "c": true}}
	cond, err := Parse(`EXISTS a AND IS_EMPTY b AND IS_NULL c`, fields)
	require.NoError(t, err)
	and, ok := cond.(*And)
	require.True(t, ok)
	inner, ok := and.Left.(*And)
	require.True(t, ok)
	assert.IsType(t, &Exists{}, inner.Left)
	assert.IsType(t, &IsEmpty{}, inner.Right)
	assert.IsType(t, &IsNull{}, and.Right)
}

func TestParseIn(t *testing.T) {
	fields := fakeFields{filterable: map[string]bool{"color": true}}
	cond, err := Parse(`color IN ["red", "blue", "green"]`, fields)
	require.NoError(t, err)
	in, ok := cond.(*In)
	require.True(t, ok)
	assert.Equal(t, "color", in.Field)
	assert.Len(t, in.Values, 3)
}

func TestParseBooleanLiteral(t *testing.T) {
	fields := fakeFields{filterable: map[string]bool{"active": true}}
	cond, err := Parse(`active = true`, fields)
	require.NoError(t, err)
	cmp := cond.(*Compare)
	require.NotNil(t, cmp.Value.Bool)
	assert.True(t, *cmp.Value.Bool)
}

func TestParseEmptyStringReturnsNilCondition(t *testing.T) {
	cond, err := Parse("", fakeFields{})
	require.NoError(t, err)
	assert.Nil(t, cond)
}

func TestParseMalformedExpressionReturnsValidationError(t *testing.T) {
	_, err := Parse(`color = `, fakeFields{filterable: map[string]bool{"color": true}})
	require.Error(t, err)
	assert.True(t, apperr.Is(err, apperr.CodeValidation))
}
