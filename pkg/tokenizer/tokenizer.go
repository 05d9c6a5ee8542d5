package tokenizer

import (
	"bytes"
	"unicode/utf8"

	"github.com/blevesearch/segment"
	"github.com/cuemby/milli-core/pkg/apperr"
)

// Tokenizer is the §6 external collaborator interface: deterministic for
// a given (text, locales) pair.
type Tokenizer interface {
	Tokenize(text string, locales []string) ([]Token, error)
}

// Default is the tokenizer the pipeline and query planner use unless a
// caller supplies its own implementation of Tokenizer.
type Default struct {
	// StopWords maps a language subtag to its stop-word set. A token
	// whose lemma is in the set for the active locale's language is
	// marked KindStopWord instead of KindWord.
	StopWords map[string]map[string]bool
}

// New builds a Default tokenizer from per-language stop-word lists.
func New(stopWords map[string][]string) *Default {
	d := &Default{StopWords: make(map[string]map[string]bool, len(stopWords))}
	for lang, words := range stopWords {
		set := make(map[string]bool, len(words))
		for _, w := range words {
			set[w] = true
		}
		d.StopWords[lang] = set
	}
	return d
}

// Tokenize implements Tokenizer. locales lists the field's configured
// locale rules in priority order; only the first is used to select a
// stemmer and stop-word set, matching §4.C's typo-policy precedent of a
// single active locale per field.
func (d *Default) Tokenize(text string, locales []string) ([]Token, error) {
	language := ""
	if len(locales) > 0 {
		language = languageOf(locales[0])
	}
	var stopWords map[string]bool
	if d != nil {
		stopWords = d.StopWords[language]
	}

	normalized, err := stripDiacritics(text)
	if err != nil {
		return nil, apperr.Internal(err, "tokenizer: normalize")
	}

	seg := segment.NewWordSegmenter(bytes.NewReader([]byte(normalized)))
	var tokens []Token
	charPos := 0
	tokenIndex := 0
	for seg.Segment() {
		raw := seg.Bytes()
		runeLen := utf8.RuneCount(raw)
		start, end := charPos, charPos+runeLen
		charPos = end

		kind, lemma := classify(seg.Type(), string(raw), language, stopWords)
		tokens = append(tokens, Token{
			Lemma:      lemma,
			Kind:       kind,
			CharStart:  start,
			CharEnd:    end,
			TokenIndex: tokenIndex,
		})
		tokenIndex++
	}
	if err := seg.Err(); err != nil {
		return nil, apperr.Internal(err, "tokenizer: segment")
	}
	return tokens, nil
}

// classify turns one segmenter output into a Token's Kind and Lemma.
// segment.None covers whitespace and punctuation runs; a run consisting
// solely of ASCII punctuation commonly used as a sentence terminator is
// treated as a hard separator, any
// other non-word run is a soft separator.
func classify(segType int, raw, language string, stopWords map[string]bool) (Kind, string) {
	switch segType {
	case segment.None:
		if isHardSeparator(raw) {
			return KindSeparatorHard, raw
		}
		return KindSeparatorSoft, raw
	default:
		lemma := stem(raw, language)
		if stopWords != nil && (stopWords[raw] || stopWords[lemma]) {
			return KindStopWord, lemma
		}
		return KindWord, lemma
	}
}

func isHardSeparator(raw string) bool {
	for _, r := range raw {
		switch r {
		case '.', '!', '?', '\n', ';', ':':
			return true
		}
	}
	return false
}
