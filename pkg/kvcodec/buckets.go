package kvcodec

// Bucket names, one per sub-database of spec §3. Every bucket lives
// top-level inside the environment's single bbolt file, with no nested
// buckets; where prefix scans by field id matter (the facet buckets), the
// field id leads the key.
var (
	// BucketMeta holds single-blob records keyed by a fixed string: the
	// FieldsIdsMap, the WordsFst, and Settings.
	//
	// key - "fields-ids-map" | "words-fst" | "settings"
	// value - serialized blob (see fields.Map.Encode/fields.Decode, the raw
	// FST bytes, settings.Settings.Encode/settings.Decode)
	BucketMeta = []byte("meta")

	// BucketWordDocids: key - word (UTF-8, no terminator, last component)
	// value - roaring bitmap of docids (pkg/rbitmap)
	BucketWordDocids = []byte("word-docids")

	// BucketWordPrefixDocids: key - prefix (UTF-8, length <= cap)
	// value - roaring bitmap of docids
	BucketWordPrefixDocids = []byte("word-prefix-docids")

	// BucketWordPositionDocids: key - word + 0x00 + position_u32_be
	// value - roaring bitmap of docids
	BucketWordPositionDocids = []byte("word-position-docids")

	// BucketWordFidDocids: key - word + 0x00 + field_id_u16_be
	// value - roaring bitmap of docids
	BucketWordFidDocids = []byte("word-fid-docids")

	// BucketWordPairProximityDocids: key - word_a + 0x00 + word_b + 0x00 + proximity_u8
	// value - roaring bitmap of docids
	BucketWordPairProximityDocids = []byte("word-pair-proximity-docids")

	// BucketFacetNumberDocids: key - field_id_u16_be + level_u8 + low_f64_ordered + high_f64_ordered
	// value - roaring bitmap of docids (low == high at level 0)
	BucketFacetNumberDocids = []byte("facet-number-docids")

	// BucketFacetStringDocids: key - field_id_u16_be + value (UTF-8, last component)
	// value - roaring bitmap of docids (level-0 only; strings have no
	// hierarchical levels, §4.G names numeric fields specifically)
	BucketFacetStringDocids = []byte("facet-string-docids")

	// BucketDocuments: key - internal_docid_u32_be
	// value - OBKV-encoded document (pkg/docstore)
	BucketDocuments = []byte("documents")

	// BucketExternalToInternal: key - "" (single record)
	// value - serialized vellum FST mapping external_id -> internal_docid
	BucketExternalToInternal = []byte("external-to-internal")

	// BucketInternalToExternal: key - internal_docid_u32_be
	// value - external_id (UTF-8 bytes)
	BucketInternalToExternal = []byte("internal-to-external")

	// BucketDocidFreelist: key - "" (single record)
	// value - next_never_assigned_docid_u32_be + roaring bitmap of internal
	// docids available for reuse (pkg/docstore's Allocator)
	BucketDocidFreelist = []byte("docid-freelist")
)

// Fixed keys within BucketMeta.
const (
	KeyFieldsIDsMap = "fields-ids-map"
	KeyWordsFst     = "words-fst"
	KeySettings     = "settings"
)

// AllBuckets lists every top-level bucket the environment must create on
// first open, in the order pkg/indexcore creates them.
func AllBuckets() [][]byte {
	return [][]byte{
		BucketMeta,
		BucketWordDocids,
		BucketWordPrefixDocids,
		BucketWordPositionDocids,
		BucketWordFidDocids,
		BucketWordPairProximityDocids,
		BucketFacetNumberDocids,
		BucketFacetStringDocids,
		BucketDocuments,
		BucketExternalToInternal,
		BucketInternalToExternal,
		BucketDocidFreelist,
	}
}
