package rbitmap

import (
	"encoding/binary"
	"fmt"

	"github.com/RoaringBitmap/roaring/v2"
)

// The two magic cookies from the Roaring portable format spec: the plain
// cookie precedes a size_u32 and is followed by size container
// descriptors with no run containers possible; the run cookie packs
// size-1 into its upper 16 bits and is followed by a run-container
// bitmap before the descriptors.
const (
	serialCookieNoRunContainer = 12346
	serialCookie               = 12347
	noOffsetThreshold          = 4
	maxContainers              = 1 << 16
)

// Encode serializes a bitmap into the portable Roaring format.
func Encode(bm *roaring.Bitmap) []byte {
	if bm == nil {
		bm = roaring.New()
	}
	buf, err := bm.ToBytes()
	if err != nil {
		// ToBytes only fails on a write error from its internal buffer,
		// which never happens when writing into memory.
		panic(fmt.Sprintf("rbitmap: encode: %v", err))
	}
	return buf
}

// Decode parses a stored posting list back into a bitmap. It first tries
// the canonical Roaring format; if the leading cookie matches neither
// serial cookie, data is reinterpreted as a flat little-endian uint32
// docid array (see package doc).
//
// Decode aliases data's backing array via the library's zero-copy reader
// where possible; callers that retain the result past the lifetime of
// data (for example past the end of a read-only transaction) must call
// Clone on it first.
func Decode(data []byte) (*roaring.Bitmap, error) {
	bm := roaring.New()
	if len(data) == 0 {
		return bm, nil
	}
	if len(data) >= 4 {
		cookie := binary.LittleEndian.Uint32(data)
		if cookie == serialCookieNoRunContainer || uint16(cookie) == serialCookie {
			if _, err := bm.FromBuffer(data); err != nil {
				return nil, fmt.Errorf("rbitmap: decode: %w", err)
			}
			return bm, nil
		}
	}
	return decodeLegacyU32Array(data)
}

// decodeLegacyU32Array treats data as a raw sequence of little-endian
// uint32 docids, a legacy posting-list layout no writer in this module
// produces.
func decodeLegacyU32Array(data []byte) (*roaring.Bitmap, error) {
	if len(data)%4 != 0 {
		return nil, fmt.Errorf("rbitmap: decode: unrecognized cookie and length %d is not a multiple of 4", len(data))
	}
	bm := roaring.New()
	docids := make([]uint32, len(data)/4)
	for i := range docids {
		docids[i] = binary.LittleEndian.Uint32(data[i*4 : i*4+4])
	}
	bm.AddMany(docids)
	return bm, nil
}

// DecodeCardinality returns |b| for a stored posting list without
// materializing any container. It walks the same container descriptor
// table the full decoder would inflate, reading only the two-byte
// (key, length-1) header of each container and skipping its body. For a
// legacy flat uint32 array it returns the number of entries, which equals
// |b| only when the array lists no docid twice.
func DecodeCardinality(data []byte) (uint64, error) {
	if len(data) == 0 {
		return 0, nil
	}
	if len(data) < 4 {
		return 0, fmt.Errorf("rbitmap: cardinality: truncated header (%d bytes)", len(data))
	}
	cookie := binary.LittleEndian.Uint32(data)

	var (
		off        = 4
		size       int
		hasOffsets bool
		runBitmap  []byte
	)
	switch {
	case cookie == serialCookieNoRunContainer:
		if len(data) < off+4 {
			return 0, fmt.Errorf("rbitmap: cardinality: truncated size field")
		}
		size = int(binary.LittleEndian.Uint32(data[off : off+4]))
		off += 4
		hasOffsets = true

	case uint16(cookie) == serialCookie:
		size = int(cookie>>16) + 1
		runBitmapSize := (size + 7) / 8
		if len(data) < off+runBitmapSize {
			return 0, fmt.Errorf("rbitmap: cardinality: truncated run-container bitmap")
		}
		runBitmap = data[off : off+runBitmapSize]
		off += runBitmapSize
		hasOffsets = size >= noOffsetThreshold

	default:
		// Unrecognized cookie: data is a flat little-endian uint32 array,
		// as produced by decodeLegacyU32Array's inverse.
		if len(data)%4 != 0 {
			return 0, fmt.Errorf("rbitmap: cardinality: unrecognized cookie and length %d is not a multiple of 4", len(data))
		}
		return uint64(len(data) / 4), nil
	}

	if size > maxContainers {
		return 0, fmt.Errorf("rbitmap: cardinality: container count %d exceeds maximum", size)
	}

	descStart := off
	descEnd := descStart + size*4
	if len(data) < descEnd {
		return 0, fmt.Errorf("rbitmap: cardinality: truncated container descriptors")
	}
	desc := data[descStart:descEnd]
	off = descEnd

	if hasOffsets {
		// Per-container file offsets: present but unused, since the
		// descriptors already give us enough to walk sequentially.
		off += size * 4
		if off > len(data) {
			return 0, fmt.Errorf("rbitmap: cardinality: truncated offset table")
		}
	}

	var length uint64
	for i := 0; i < size; i++ {
		// desc entries are (key_u16, length_u16) pairs; the key is the
		// container's high 16 bits of its docids and isn't needed here.
		lenField := binary.LittleEndian.Uint16(desc[i*4+2 : i*4+4])
		containerLen := uint64(lenField) + 1
		length += containerLen

		isRun := false
		if runBitmap != nil {
			byteIdx, bit := i/8, uint(i%8)
			if byteIdx >= len(runBitmap) {
				return 0, fmt.Errorf("rbitmap: cardinality: run-container bitmap too short")
			}
			isRun = (runBitmap[byteIdx]>>bit)&1 != 0
		}

		switch {
		case isRun:
			if off+2 > len(data) {
				return 0, fmt.Errorf("rbitmap: cardinality: truncated run count")
			}
			numRuns := int(binary.LittleEndian.Uint16(data[off : off+2]))
			off += 2 + numRuns*2*2
		case containerLen <= 4096:
			off += int(containerLen) * 2
		default:
			off += 1024 * 8
		}
		if off > len(data) {
			return 0, fmt.Errorf("rbitmap: cardinality: truncated container body at index %d", i)
		}
	}

	return length, nil
}
