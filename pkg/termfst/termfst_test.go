package termfst

import (
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func buildTestMap(t *testing.T, words ...string) *Map {
	t.Helper()
	sorted := append([]string(nil), words...)
	sort.Strings(sorted)
	data, err := BuildSet(sorted)
	require.NoError(t, err)
	m, err := Load(data)
	require.NoError(t, err)
	return m
}

func TestContainsExactLookup(t *testing.T) {
	m := buildTestMap(t, "quick", "brown", "fox", "jumps")
	assert.True(t, m.Contains("quick"))
	assert.True(t, m.Contains("fox"))
	assert.False(t, m.Contains("quack"))
}

func TestPrefixIterStreamsAllExtensions(t *testing.T) {
	m := buildTestMap(t, "cat", "car", "cart", "dog", "care")
	var got []string
	err := m.PrefixIter("car", func(key string, _ uint64) bool {
		got = append(got, key)
		return true
	})
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"car", "cart", "care"}, got)
}

func TestPrefixIterStopsEarly(t *testing.T) {
	m := buildTestMap(t, "aa", "ab", "ac", "ad")
	calls := 0
	err := m.PrefixIter("a", func(string, uint64) bool {
		calls++
		return false
	})
	require.NoError(t, err)
	assert.Equal(t, 1, calls)
}

func TestPrefixIterAllFFBoundary(t *testing.T) {
	m := buildTestMap(t, string([]byte{0xff, 0xff}), string([]byte{0xff, 0xff, 0x01}))
	var got []string
	err := m.PrefixIter(string([]byte{0xff, 0xff}), func(key string, _ uint64) bool {
		got = append(got, key)
		return true
	})
	require.NoError(t, err)
	assert.Len(t, got, 2)
}

func TestLevenshteinIterFindsBoundedVariants(t *testing.T) {
	m := buildTestMap(t, "quick", "quack", "quock", "quicksand", "slow")
	var got []string
	err := m.LevenshteinIter("quick", 1, func(key string, _ uint64, dist int) bool {
		got = append(got, key)
		assert.LessOrEqual(t, dist, 1)
		return true
	})
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"quick", "quack", "quock"}, got)
}

func TestLevenshteinIterZeroEditsIsExactLookup(t *testing.T) {
	m := buildTestMap(t, "quick", "quack")
	var got []string
	err := m.LevenshteinIter("quick", 0, func(key string, _ uint64, dist int) bool {
		got = append(got, key)
		assert.Equal(t, 0, dist)
		return true
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"quick"}, got)
}

func TestDamerauLevenshteinCountsTranspositionAsOneEdit(t *testing.T) {
	assert.Equal(t, 1, damerauLevenshtein("ab", "ba"))
}

func TestDamerauLevenshteinBasic(t *testing.T) {
	assert.Equal(t, 0, damerauLevenshtein("same", "same"))
	assert.Equal(t, 1, damerauLevenshtein("cat", "cats"))
	assert.Equal(t, 3, damerauLevenshtein("kitten", "sitting"))
}

func TestNewLevenshteinAutomatonRejectsZero(t *testing.T) {
	_, err := NewLevenshteinAutomaton("word", 0)
	assert.Error(t, err)
}

func TestMapGetReturnsStoredValue(t *testing.T) {
	data, err := Build([]Entry{{Key: "a", Value: 1}, {Key: "b", Value: 2}})
	require.NoError(t, err)
	m, err := Load(data)
	require.NoError(t, err)
	v, ok := m.Get("b")
	require.True(t, ok)
	assert.Equal(t, uint64(2), v)
}

func TestBuildRejectsDuplicateKeys(t *testing.T) {
	_, err := Build([]Entry{{Key: "a", Value: 1}, {Key: "a", Value: 2}})
	assert.Error(t, err)
}

func TestLoadEmptyMapIsEmpty(t *testing.T) {
	m, err := Load(nil)
	require.NoError(t, err)
	assert.False(t, m.Contains("anything"))
}
