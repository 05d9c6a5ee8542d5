package rbitmap

import (
	"encoding/binary"
	"testing"

	"github.com/RoaringBitmap/roaring/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func bitmapOf(values ...uint32) *roaring.Bitmap {
	bm := roaring.New()
	bm.AddMany(values)
	return bm
}

func rangeValues(lo, hi uint32) []uint32 {
	out := make([]uint32, 0, hi-lo)
	for v := lo; v < hi; v++ {
		out = append(out, v)
	}
	return out
}

// testBitmaps mirrors the shapes exercised by the Roaring format spec:
// one with run containers, one empty, one small (array container), one
// large and sparse-but-dense-enough for a bitset container.
func testBitmaps() []*roaring.Bitmap {
	var runShaped []uint32
	runShaped = append(runShaped, rangeValues(0, 500)...)
	runShaped = append(runShaped, rangeValues(800, 800_000)...)
	runShaped = append(runShaped, rangeValues(920_056, 930_032)...)

	var arrayShaped []uint32
	arrayShaped = append(arrayShaped, 1)
	arrayShaped = append(arrayShaped, rangeValues(900_000, 900_005)...)

	var bitsetShaped []uint32
	for v := uint32(0); v < 65535; v += 2 {
		bitsetShaped = append(bitsetShaped, v)
	}
	for v := uint32(65535); v < 2*65535; v += 2 {
		bitsetShaped = append(bitsetShaped, v)
	}

	return []*roaring.Bitmap{
		bitmapOf(runShaped...),
		roaring.New(),
		bitmapOf(arrayShaped...),
		bitmapOf(bitsetShaped...),
	}
}

func TestEncodeDecodeRoundTrip(t *testing.T) {
	for _, bm := range testBitmaps() {
		encoded := Encode(bm)
		decoded, err := Decode(encoded)
		require.NoError(t, err)
		assert.True(t, bm.Equals(decoded))
	}
}

func TestDecodeCardinalityMatchesFullDecode(t *testing.T) {
	for _, bm := range testBitmaps() {
		encoded := Encode(bm)
		length, err := DecodeCardinality(encoded)
		require.NoError(t, err)
		assert.Equal(t, bm.GetCardinality(), length)
	}
}

func TestDecodeLegacyU32Array(t *testing.T) {
	docids := []uint32{3, 1, 4, 1, 5, 9, 2, 6}
	raw := make([]byte, len(docids)*4)
	for i, v := range docids {
		binary.LittleEndian.PutUint32(raw[i*4:], v)
	}
	// A flat u32 array's leading 4 bytes (docid 3) will not match either
	// Roaring cookie for any of these small values, so it falls through
	// to the legacy path.
	decoded, err := Decode(raw)
	require.NoError(t, err)
	want := bitmapOf(3, 1, 4, 5, 9, 2, 6)
	assert.True(t, want.Equals(decoded))

	length, err := DecodeCardinality(raw)
	require.NoError(t, err)
	assert.Equal(t, uint64(len(docids)), length)
}

func TestDecodeCardinalityEmpty(t *testing.T) {
	length, err := DecodeCardinality(nil)
	require.NoError(t, err)
	assert.Equal(t, uint64(0), length)
}

func TestDecodeCardinalityTruncatedErrors(t *testing.T) {
	encoded := Encode(bitmapOf(rangeValues(0, 100_000)...))
	_, err := DecodeCardinality(encoded[:len(encoded)-10])
	assert.Error(t, err)
}

func TestDecodeTruncatedCanonicalErrors(t *testing.T) {
	encoded := Encode(bitmapOf(rangeValues(0, 100_000)...))
	_, err := Decode(encoded[:len(encoded)-10])
	assert.Error(t, err)
}
