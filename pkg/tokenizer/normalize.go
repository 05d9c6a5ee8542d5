package tokenizer

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// stripDiacritics decomposes text to NFD form and drops combining marks,
// then lower-cases it. Decomposition plus mark removal is the standard
// x/text idiom for diacritic-insensitive matching ("café" and "cafe"
// tokenize to the same lemma); lower-casing afterward folds case the way
// every tokenizer in the example pack's search stacks does before
// stemming, since stemmers operate on lower-case input.
func stripDiacritics(text string) (string, error) {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	out, _, err := transform.String(t, text)
	if err != nil {
		return "", err
	}
	return strings.ToLower(out), nil
}
