package tokenizer

import (
	"strings"

	"github.com/blevesearch/snowballstem"
	"github.com/blevesearch/snowballstem/danish"
	"github.com/blevesearch/snowballstem/dutch"
	"github.com/blevesearch/snowballstem/english"
	"github.com/blevesearch/snowballstem/finnish"
	"github.com/blevesearch/snowballstem/french"
	"github.com/blevesearch/snowballstem/german"
	"github.com/blevesearch/snowballstem/italian"
	"github.com/blevesearch/snowballstem/norwegian"
	"github.com/blevesearch/snowballstem/portuguese"
	"github.com/blevesearch/snowballstem/russian"
	"github.com/blevesearch/snowballstem/spanish"
	"github.com/blevesearch/snowballstem/swedish"
)

// stemmers maps a locale's language subtag (the part of "en-US" before
// the hyphen) to its snowball stemmer. Locales with no entry here are
// left unstemmed, which is always safe: an unstemmed lemma still
// round-trips through exact and prefix lookup, it just won't merge
// inflected forms together.
var stemmers = map[string]func(*snowballstem.Env) bool{
	"en": english.Stem,
	"fr": french.Stem,
	"de": german.Stem,
	"es": spanish.Stem,
	"it": italian.Stem,
	"pt": portuguese.Stem,
	"ru": russian.Stem,
	"nl": dutch.Stem,
	"sv": swedish.Stem,
	"no": norwegian.Stem,
	"da": danish.Stem,
	"fi": finnish.Stem,
}

// stem reduces word to its stemmer-chosen lemma for language. Languages
// with no registered stemmer, and CJK scripts (which snowball does not
// cover and which §4.L segments rune-by-rune instead), are returned
// unchanged.
func stem(word, language string) string {
	fn, ok := stemmers[language]
	if !ok {
		return word
	}
	env := snowballstem.NewEnv(word)
	fn(env)
	return env.Current()
}

// languageOf extracts the language subtag from a BCP-47-ish locale tag
// ("en-US" -> "en"), lower-cased.
func languageOf(locale string) string {
	if i := strings.IndexByte(locale, '-'); i >= 0 {
		locale = locale[:i]
	}
	return strings.ToLower(locale)
}
