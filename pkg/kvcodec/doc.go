// Package kvcodec holds the bit-exact encoders/decoders for every
// sub-database named in spec §3, plus the bucket-name constants that route
// a key/value pair to its bbolt bucket. Codecs here are pure functions over
// []byte: no I/O, no locking, nothing but encode/decode so they can be
// property-tested in isolation (§8 properties 1-2).
//
// Multi-component keys are encoded as documented next to each constant,
// the way erigon-lib/kv/tables.go documents its table key/value shapes:
// a "key - ..." / "value - ..." comment above the bucket name.
package kvcodec
