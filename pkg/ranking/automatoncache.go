package ranking

import (
	"fmt"

	"github.com/blevesearch/vellum"
	lru "github.com/hashicorp/golang-lru"

	"github.com/cuemby/milli-core/pkg/metrics"
	"github.com/cuemby/milli-core/pkg/querygraph"
	"github.com/cuemby/milli-core/pkg/termfst"
)

// DefaultAutomatonCacheSize bounds the process-wide Levenshtein automaton
// cache. Each entry is a compiled automaton for one (word, maxEdits) pair;
// 4096 comfortably covers a working set of hot query terms without
// unbounded growth across the process lifetime.
const DefaultAutomatonCacheSize = 4096

// LevenshteinCache is the process-wide cache of compiled Levenshtein
// automata keyed by (word, maxEdits) that pkg/querygraph's typo derivation
// consults instead of rebuilding an automaton on every call. It satisfies
// querygraph.AutomatonCache structurally, without pkg/querygraph importing
// this package.
type LevenshteinCache struct {
	cache *lru.Cache
}

var _ querygraph.AutomatonCache = (*LevenshteinCache)(nil)

// NewLevenshteinCache creates a cache holding up to size compiled
// automata. size <= 0 uses DefaultAutomatonCacheSize.
func NewLevenshteinCache(size int) (*LevenshteinCache, error) {
	if size <= 0 {
		size = DefaultAutomatonCacheSize
	}
	c, err := lru.New(size)
	if err != nil {
		return nil, fmt.Errorf("ranking: new automaton cache: %w", err)
	}
	return &LevenshteinCache{cache: c}, nil
}

// Get returns the cached automaton for (word, maxEdits), building and
// caching one via termfst.NewLevenshteinAutomaton on a miss.
func (c *LevenshteinCache) Get(word string, maxEdits uint8) (vellum.Automaton, error) {
	key := automatonKey(word, maxEdits)
	if v, ok := c.cache.Get(key); ok {
		metrics.AutomatonCacheHitsTotal.Inc()
		return v.(vellum.Automaton), nil
	}
	metrics.AutomatonCacheMissesTotal.Inc()
	aut, err := termfst.NewLevenshteinAutomaton(word, maxEdits)
	if err != nil {
		return nil, err
	}
	c.cache.Add(key, aut)
	return aut, nil
}

func automatonKey(word string, maxEdits uint8) string {
	return fmt.Sprintf("%d:%s", maxEdits, word)
}
