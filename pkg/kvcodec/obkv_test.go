package kvcodec

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOBKVRoundTrip(t *testing.T) {
	fields := OBKV{
		1: []byte(`"title"`),
		3: []byte(`42`),
		2: []byte(`{"nested":true}`),
	}
	encoded := EncodeOBKV(fields)
	decoded, err := DecodeOBKV(encoded)
	require.NoError(t, err)
	assert.Equal(t, fields, decoded)
}

func TestOBKVEncodeIsDeterministicRegardlessOfMapOrder(t *testing.T) {
	fields := OBKV{5: []byte("e"), 1: []byte("a"), 3: []byte("c")}
	a := EncodeOBKV(fields)
	b := EncodeOBKV(fields)
	assert.Equal(t, a, b)
}

func TestProjectOBKVFiltersFields(t *testing.T) {
	fields := OBKV{1: []byte("a"), 2: []byte("b"), 3: []byte("c")}
	encoded := EncodeOBKV(fields)

	var got []uint16
	err := ProjectOBKV(encoded, map[uint16]bool{1: true, 3: true}, func(fieldID uint16, raw []byte) bool {
		got = append(got, fieldID)
		return true
	})
	require.NoError(t, err)
	assert.Equal(t, []uint16{1, 3}, got)
}

func TestProjectOBKVStopsEarly(t *testing.T) {
	fields := OBKV{1: []byte("a"), 2: []byte("b"), 3: []byte("c")}
	encoded := EncodeOBKV(fields)

	calls := 0
	err := ProjectOBKV(encoded, nil, func(uint16, []byte) bool {
		calls++
		return false
	})
	require.NoError(t, err)
	assert.Equal(t, 1, calls)
}

func TestProjectOBKVTruncatedErrors(t *testing.T) {
	err := ProjectOBKV([]byte{0, 1, 0, 0, 0, 10, 'x'}, nil, func(uint16, []byte) bool { return true })
	assert.Error(t, err)
}

func TestMergeOBKVUpdateSemantics(t *testing.T) {
	old := OBKV{1: []byte(`"x"`), 2: []byte(`"y"`)}
	update := OBKV{1: []byte(`"z"`)}
	merged := MergeOBKV(old, update)
	assert.Equal(t, OBKV{1: []byte(`"z"`), 2: []byte(`"y"`)}, merged)
}

func TestOBKVRandomizedRoundTrip(t *testing.T) {
	r := rand.New(rand.NewSource(7))
	for i := 0; i < 50; i++ {
		n := r.Intn(20)
		fields := make(OBKV, n)
		for j := 0; j < n; j++ {
			id := uint16(r.Intn(1000))
			buf := make([]byte, r.Intn(30))
			r.Read(buf)
			fields[id] = buf
		}
		decoded, err := DecodeOBKV(EncodeOBKV(fields))
		require.NoError(t, err)
		assert.Equal(t, fields, decoded)
	}
}
