package querygraph

import (
	"sort"
	"strings"

	"github.com/blevesearch/vellum"

	"github.com/cuemby/milli-core/pkg/termfst"
	"github.com/cuemby/milli-core/pkg/tokenizer"
)

// AutomatonCache resolves a pre-built Levenshtein automaton for
// (word, maxEdits), letting a caller avoid rebuilding the same automaton
// across repeated queries for common typo'd terms. Implemented by
// pkg/ranking's process-wide LRU cache; left nil, derive falls back to
// building one per call via Map.LevenshteinIter.
type AutomatonCache interface {
	Get(word string, maxEdits uint8) (vellum.Automaton, error)
}

// TypoPolicy selects the maximum edit distance for a word per §4.C.
type TypoPolicy struct {
	MinWordLenOneTypo  int
	MinWordLenTwoTypos int
	// ExactWords are forced to k=0 regardless of length.
	ExactWords map[string]bool
}

func (p TypoPolicy) maxEdits(word string) uint8 {
	if p.ExactWords != nil && p.ExactWords[word] {
		return 0
	}
	n := len([]rune(word))
	switch {
	case n < p.MinWordLenOneTypo:
		return 0
	case n < p.MinWordLenTwoTypos:
		return 1
	default:
		return 2
	}
}

// BuildParams configures one call to Build.
type BuildParams struct {
	Tokenizer tokenizer.Tokenizer
	Locales   []string
	Words     *termfst.Map
	// Synonyms maps a lemma to its expansions; each expansion is itself a
	// sequence of lemmas, since an expansion may be multi-token.
	Synonyms   map[string][][]string
	TypoPolicy TypoPolicy

	// MaxDerivationsPerToken caps candidate nodes generated per slot,
	// default 50 per §9.
	MaxDerivationsPerToken int
	// MaxTotalEdges caps the whole graph's edge count, default 10000.
	MaxTotalEdges int

	// AutomatonCache, if set, is consulted for every typo derivation
	// instead of building a fresh Levenshtein automaton per call.
	AutomatonCache AutomatonCache
}

func (p *BuildParams) withDefaults() {
	if p.MaxDerivationsPerToken <= 0 {
		p.MaxDerivationsPerToken = 50
	}
	if p.MaxTotalEdges <= 0 {
		p.MaxTotalEdges = 10_000
	}
	if p.TypoPolicy.MinWordLenOneTypo <= 0 {
		p.TypoPolicy.MinWordLenOneTypo = 5
	}
	if p.TypoPolicy.MinWordLenTwoTypos <= 0 {
		p.TypoPolicy.MinWordLenTwoTypos = 9
	}
}

// term is one query slot after phrase grouping: either a literal phrase
// (already delimited by quotes) or a single plain token.
type term struct {
	phrase     []string
	plain      string
	isStopWord bool
}

// Build parses query, tokenizes its unquoted portions, and expands every
// plain token into its candidate derivations, wiring the result into a
// single DAG from Start to End.
func Build(query string, params BuildParams) (*Graph, error) {
	params.withDefaults()
	terms, err := splitTerms(query, params.Tokenizer, params.Locales)
	if err != nil {
		return nil, err
	}

	g := newGraph()
	frontier := []int{g.Start}
	ends := map[int][]int{}

	for i := 0; i < len(terms); i++ {
		if extra, ok := ends[i]; ok {
			frontier = append(frontier, extra...)
			delete(ends, i)
		}
		t := terms[i]
		if t.isStopWord {
			continue // transparent: frontier carries through unchanged
		}

		var candidates []Node
		if t.phrase != nil {
			candidates = []Node{{Kind: NodePhrase, Phrase: t.phrase, StartPos: i, Span: 1}}
		} else {
			candidates = derive(t.plain, i, terms, params)
		}
		candidates = rankAndCap(candidates, params.MaxDerivationsPerToken)

		var nextFrontier []int
		for _, cand := range candidates {
			if len(g.Edges)+len(frontier) > params.MaxTotalEdges {
				g.Truncated = true
				break
			}
			id := g.addNode(cand)
			for _, f := range frontier {
				g.addEdge(f, id)
			}
			end := i + cand.Span
			if end == i+1 {
				nextFrontier = append(nextFrontier, id)
			} else {
				ends[end] = append(ends[end], id)
			}
		}
		if nextFrontier != nil || len(candidates) > 0 {
			frontier = nextFrontier
		}
	}

	if extra, ok := ends[len(terms)]; ok {
		frontier = append(frontier, extra...)
	}
	for _, f := range frontier {
		g.addEdge(f, g.End)
	}
	return g, nil
}

// splitTerms pulls out double-quoted phrases as atomic terms and
// tokenizes everything else with the ordinary tokenizer, preserving
// query order. A stop word is still tokenized (so it can appear inside a
// phrase) but produces a term with no candidate set of its own.
func splitTerms(query string, tok tokenizer.Tokenizer, locales []string) ([]term, error) {
	var terms []term
	i := 0
	for i < len(query) {
		if query[i] == '"' {
			end := strings.IndexByte(query[i+1:], '"')
			if end < 0 {
				// Unterminated quote: treat the rest of the string as plain text.
				plain, err := tokenizeWords(query[i:], tok, locales)
				if err != nil {
					return nil, err
				}
				terms = append(terms, plain...)
				break
			}
			inner := query[i+1 : i+1+end]
			words, err := tokenizeLemmas(inner, tok, locales)
			if err != nil {
				return nil, err
			}
			if len(words) > 0 {
				terms = append(terms, term{phrase: words})
			}
			i += end + 2
			continue
		}
		j := strings.IndexByte(query[i:], '"')
		var segment string
		if j < 0 {
			segment = query[i:]
			i = len(query)
		} else {
			segment = query[i : i+j]
			i += j
		}
		plain, err := tokenizeWords(segment, tok, locales)
		if err != nil {
			return nil, err
		}
		terms = append(terms, plain...)
	}
	return terms, nil
}

func tokenizeWords(text string, tok tokenizer.Tokenizer, locales []string) ([]term, error) {
	tokens, err := tok.Tokenize(text, locales)
	if err != nil {
		return nil, err
	}
	var out []term
	for _, tk := range tokens {
		switch tk.Kind {
		case tokenizer.KindWord:
			out = append(out, term{plain: tk.Lemma})
		case tokenizer.KindStopWord:
			out = append(out, term{plain: tk.Lemma, isStopWord: true})
		}
	}
	return out, nil
}

func tokenizeLemmas(text string, tok tokenizer.Tokenizer, locales []string) ([]string, error) {
	tokens, err := tok.Tokenize(text, locales)
	if err != nil {
		return nil, err
	}
	var out []string
	for _, tk := range tokens {
		if tk.Kind == tokenizer.KindWord || tk.Kind == tokenizer.KindStopWord {
			out = append(out, tk.Lemma)
		}
	}
	return out, nil
}

// derive generates every candidate derivation for the plain token at
// terms[pos].
func derive(word string, pos int, terms []term, params BuildParams) []Node {
	var out []Node

	if params.Words.Contains(word) {
		out = append(out, Node{Kind: NodeExact, Word: word, Span: 1})
	}

	if isLastPlainTerm(pos, terms) {
		_ = params.Words.PrefixIter(word, func(key string, _ uint64) bool {
			if key != word {
				out = append(out, Node{Kind: NodePrefix, Word: key, Span: 1})
			}
			return len(out) < params.MaxDerivationsPerToken
		})
	}

	if k := params.TypoPolicy.maxEdits(word); k > 0 {
		yield := func(key string, _ uint64, dist int) bool {
			if dist > 0 {
				out = append(out, Node{Kind: NodeTypo, Word: key, EditDistance: dist, Span: 1})
			}
			return len(out) < params.MaxDerivationsPerToken*2
		}
		if params.AutomatonCache != nil {
			if aut, err := params.AutomatonCache.Get(word, k); err == nil {
				_ = params.Words.SearchAutomaton(word, aut, yield)
			}
		} else {
			_ = params.Words.LevenshteinIter(word, k, yield)
		}
	}

	for _, expansion := range params.Synonyms[word] {
		if len(expansion) == 0 {
			continue
		}
		out = append(out, Node{Kind: NodeSynonym, Phrase: expansion, Span: 1})
	}

	out = append(out, splits(word, params.Words)...)
	out = append(out, ngrams(pos, terms, params.Words)...)

	return out
}

// splits finds every way to cut word into two non-empty parts that are
// both present in the FST.
func splits(word string, words *termfst.Map) []Node {
	runes := []rune(word)
	var out []Node
	for i := 1; i < len(runes); i++ {
		left, right := string(runes[:i]), string(runes[i:])
		if words.Contains(left) && words.Contains(right) {
			out = append(out, Node{Kind: NodeSplit, Phrase: []string{left, right}, Span: 1})
		}
	}
	return out
}

// ngrams concatenates the current plain token with the next one or two
// plain tokens (stopwords and phrases break the chain) and checks
// whether the concatenation is itself an indexed word.
func ngrams(pos int, terms []term, words *termfst.Map) []Node {
	var out []Node
	var concat strings.Builder
	concat.WriteString(terms[pos].plain)
	for span := 2; span <= 3; span++ {
		idx := pos + span - 1
		if idx >= len(terms) || terms[idx].phrase != nil || terms[idx].isStopWord || terms[idx].plain == "" {
			break
		}
		concat.WriteString(terms[idx].plain)
		word := concat.String()
		if words.Contains(word) {
			out = append(out, Node{Kind: NodeNgram, Word: word, StartPos: pos, Span: span})
		}
	}
	return out
}

func isLastPlainTerm(pos int, terms []term) bool {
	for i := pos + 1; i < len(terms); i++ {
		if terms[i].phrase == nil && !terms[i].isStopWord {
			return false
		}
	}
	return true
}

// rankAndCap sorts candidates by the §4.H tie-break (original word
// first, then edit distance, then lexicographically) and truncates to
// the per-token derivation cap, dropping lowest-priority entries first.
func rankAndCap(nodes []Node, cap int) []Node {
	sort.SliceStable(nodes, func(i, j int) bool {
		a, b := nodes[i], nodes[j]
		if (a.Kind == NodeExact) != (b.Kind == NodeExact) {
			return a.Kind == NodeExact
		}
		if a.EditDistance != b.EditDistance {
			return a.EditDistance < b.EditDistance
		}
		return a.Word < b.Word
	})
	if len(nodes) > cap {
		nodes = nodes[:cap]
	}
	return nodes
}
