package tokenizer

// Kind classifies a token the way the indexing pipeline and query
// planner need to treat it differently: Word tokens are indexed and
// searched; Separator tokens are hard (e.g. a sentence boundary) or soft
// (e.g. a space); StopWord tokens keep their TokenIndex but are never
// written to a posting list. pkg/pipeline indexes neither separators nor
// stop words and measures word-pair proximity over Word tokens only, so
// neither kind changes a pair's proximity.
type Kind int

const (
	KindWord Kind = iota
	KindStopWord
	KindSeparatorSoft
	KindSeparatorHard
)

func (k Kind) String() string {
	switch k {
	case KindWord:
		return "word"
	case KindStopWord:
		return "stop_word"
	case KindSeparatorSoft:
		return "separator_soft"
	case KindSeparatorHard:
		return "separator_hard"
	default:
		return "unknown"
	}
}

// Token is one unit produced by Tokenize: Lemma is the word after
// normalization and stemming, CharStart/CharEnd are a rune-index range
// into the original (pre-normalization) text, and TokenIndex is this
// token's 0-based position among every token (including separators and
// stop words) produced from the same call, stored as the word's position
// in §4.A BucketWordPositionDocids.
type Token struct {
	Lemma      string
	Kind       Kind
	CharStart  int
	CharEnd    int
	TokenIndex int
}
