// Package rbitmap stores posting lists as Roaring bitmaps of internal
// docids. Encoding and decoding a full bitmap is delegated to
// github.com/RoaringBitmap/roaring/v2, which implements the portable
// format described by https://github.com/RoaringBitmap/RoaringFormatSpec.
//
// Two operations that format does not give us for free are implemented by
// hand on top of it:
//
//   - DecodeCardinality walks the serialized container descriptors to
//     recover |b| without inflating a single container, for callers that
//     only need a set's size. No package in this module calls it yet
//     outside its tests.
//
//   - Decode falls back to interpreting its input as a flat little-endian
//     uint32 docid array when the leading bytes don't match either of the
//     two Roaring serial cookies. No writer in this module produces that
//     layout (the indexing pipeline always stores Encode's output); rather
//     than let such a value hard-fail a read, it is decoded into the
//     bitmap of the docids it lists.
package rbitmap
