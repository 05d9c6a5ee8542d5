package fields

import (
	"testing"

	"github.com/cuemby/milli-core/pkg/apperr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInsertNameAllocatesSequentialIds(t *testing.T) {
	m := New()
	id1, err := m.InsertName("title")
	require.NoError(t, err)
	id2, err := m.InsertName("body")
	require.NoError(t, err)
	assert.Equal(t, uint16(1), id1)
	assert.Equal(t, uint16(2), id2)
}

func TestInsertNameIsIdempotent(t *testing.T) {
	m := New()
	id1, err := m.InsertName("title")
	require.NoError(t, err)
	id2, err := m.InsertName("title")
	require.NoError(t, err)
	assert.Equal(t, id1, id2)
	assert.Equal(t, 1, m.Len())
}

func TestFieldZeroIsNeverAllocated(t *testing.T) {
	m := New()
	id, err := m.InsertName("x")
	require.NoError(t, err)
	assert.NotEqual(t, uint16(0), id)
}

func TestNameAndIDRoundTrip(t *testing.T) {
	m := New()
	id, err := m.InsertName("title")
	require.NoError(t, err)

	name, ok := m.Name(id)
	require.True(t, ok)
	assert.Equal(t, "title", name)

	gotID, ok := m.ID("title")
	require.True(t, ok)
	assert.Equal(t, id, gotID)

	_, ok = m.Name(9999)
	assert.False(t, ok)
}

func TestSetAndGetFlags(t *testing.T) {
	m := New()
	id, err := m.InsertName("title")
	require.NoError(t, err)

	m.SetFlags(id, Flags{Searchable: true, Displayed: true})
	got := m.Flags(id)
	assert.True(t, got.Searchable)
	assert.True(t, got.Displayed)
	assert.False(t, got.Filterable)
}

func TestAttributeLimitReached(t *testing.T) {
	m := &Map{
		byName: make(map[string]uint16),
		byID:   make(map[uint16]string),
		flags:  make(map[uint16]Flags),
		nextID: MaxFieldID,
	}
	_, err := m.InsertName("last")
	require.NoError(t, err)

	_, err = m.InsertName("overflow")
	require.Error(t, err)
	assert.True(t, apperr.Is(err, apperr.CodeResource))
}

func TestEncodeDecodeRoundTrip(t *testing.T) {
	m := New()
	titleID, err := m.InsertName("title")
	require.NoError(t, err)
	bodyID, err := m.InsertName("body")
	require.NoError(t, err)
	m.SetFlags(titleID, Flags{Searchable: true, Displayed: true, PrimaryKey: false})
	m.SetFlags(bodyID, Flags{Searchable: true, Filterable: true, Sortable: true})

	data, err := m.Encode()
	require.NoError(t, err)

	decoded, err := Decode(data)
	require.NoError(t, err)

	assert.Equal(t, m.Names(), decoded.Names())
	for _, name := range m.Names() {
		id, _ := m.ID(name)
		gotID, ok := decoded.ID(name)
		require.True(t, ok)
		assert.Equal(t, id, gotID)
		assert.Equal(t, m.Flags(id), decoded.Flags(gotID))
	}

	// A decoded map keeps allocating past the highest id it loaded.
	newID, err := decoded.InsertName("new-field")
	require.NoError(t, err)
	assert.Greater(t, newID, bodyID)
}

func TestDecodeEmptyIsEmptyMap(t *testing.T) {
	m, err := Decode(nil)
	require.NoError(t, err)
	assert.Equal(t, 0, m.Len())
}

func TestDecodeRejectsFieldIDZero(t *testing.T) {
	_, err := Decode([]byte(`{"entries":[{"name":"x","id":0,"flags":{}}],"next_id":2}`))
	require.Error(t, err)
	assert.True(t, apperr.Is(err, apperr.CodeCorruption))
}
