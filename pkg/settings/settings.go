package settings

import (
	"encoding/json"
	"sort"

	"github.com/cuemby/milli-core/pkg/apperr"
)

// DefaultRankingRules is the order applied when Settings.RankingRules is
// empty, per §4.I.
var DefaultRankingRules = []string{"Words", "Typo", "Proximity", "Attribute", "Sort", "Exactness"}

const (
	DefaultMinWordLenOneTypo  = 5
	DefaultMinWordLenTwoTypos = 9
)

// Settings is the single versioned record of §3, persisted as one blob
// under BucketMeta's "settings" key.
type Settings struct {
	// SearchableFields lists fields to tokenize and index, in priority
	// order for the Attribute ranking rule. A nil slice means "all
	// fields are searchable" (§4.D's default before any settings update).
	SearchableFields []string `json:"searchable_fields"`
	// DisplayedFields lists fields returned in a search hit's
	// projection. A nil slice means "all fields".
	DisplayedFields []string `json:"displayed_fields"`
	FilterableFields []string `json:"filterable_fields"`
	SortableFields   []string `json:"sortable_fields"`

	// RankingRules is the ordered rule stack of §4.I. Empty means
	// DefaultRankingRules.
	RankingRules []string `json:"ranking_rules"`

	// StopWords maps a tokenizer language subtag to its stop-word list.
	// The empty-string key is the fallback used when a field has no
	// locale configured.
	StopWords map[string][]string `json:"stop_words"`

	// Synonyms maps a lemma to the list of expansions it should also
	// match; each expansion is itself a lemma sequence, since an
	// expansion may be multi-word (§4.H).
	Synonyms map[string][][]string `json:"synonyms"`

	MinWordLenOneTypo  int      `json:"min_word_len_one_typo"`
	MinWordLenTwoTypos int      `json:"min_word_len_two_typos"`
	ExactWords         []string `json:"exact_words"`

	DistinctAttribute string `json:"distinct_attribute"`
	PrimaryKey        string `json:"primary_key"`

	// LocaleRules maps a field name to its configured locale list, most
	// preferred first (§4.L).
	LocaleRules map[string][]string `json:"locale_rules"`
}

// Default returns the zero-configuration Settings: every field searchable
// and displayed, default typo thresholds, default ranking rule order.
func Default() Settings {
	return Settings{
		RankingRules:       append([]string(nil), DefaultRankingRules...),
		MinWordLenOneTypo:  DefaultMinWordLenOneTypo,
		MinWordLenTwoTypos: DefaultMinWordLenTwoTypos,
	}
}

// EffectiveRankingRules returns RankingRules, or DefaultRankingRules if
// unset.
func (s Settings) EffectiveRankingRules() []string {
	if len(s.RankingRules) == 0 {
		return append([]string(nil), DefaultRankingRules...)
	}
	return s.RankingRules
}

// IsSearchable reports whether field should be tokenized and indexed,
// honoring the nil-means-all convention.
func (s Settings) IsSearchable(field string) bool {
	return s.SearchableFields == nil || contains(s.SearchableFields, field)
}

// IsDisplayed reports whether field should appear in a hit's projection.
func (s Settings) IsDisplayed(field string) bool {
	return s.DisplayedFields == nil || contains(s.DisplayedFields, field)
}

func (s Settings) IsFilterable(field string) bool { return contains(s.FilterableFields, field) }
func (s Settings) IsSortable(field string) bool   { return contains(s.SortableFields, field) }

func contains(list []string, want string) bool {
	for _, f := range list {
		if f == want {
			return true
		}
	}
	return false
}

// Encode serializes s into the blob stored under BucketMeta's "settings"
// key.
func (s Settings) Encode() ([]byte, error) {
	data, err := json.Marshal(s)
	if err != nil {
		return nil, apperr.Internal(err, "settings: encode")
	}
	return data, nil
}

// Decode parses a blob previously produced by Encode. An empty blob
// decodes to Default(), matching an index that has never had settings
// written.
func Decode(data []byte) (Settings, error) {
	if len(data) == 0 {
		return Default(), nil
	}
	var s Settings
	if err := json.Unmarshal(data, &s); err != nil {
		return Settings{}, apperr.Corruption(err, "settings: decode")
	}
	return s, nil
}

// sortedCopy returns a sorted copy of list, for order-independent set
// comparisons in Diff.
func sortedCopy(list []string) []string {
	out := append([]string(nil), list...)
	sort.Strings(out)
	return out
}
