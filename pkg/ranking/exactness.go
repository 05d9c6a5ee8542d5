package ranking

import "github.com/cuemby/milli-core/pkg/querygraph"

// Exactness prefers documents matched through exact-word nodes over
// documents that only matched via a prefix completion, typo, split,
// ngram, or synonym expansion.
type Exactness struct {
	levelRule
}

// NewExactness returns a ready Exactness rule.
func NewExactness() *Exactness {
	e := &Exactness{}
	e.name = "exactness"
	e.maxLevel = 1
	e.levelOf = func(n querygraph.Node) int {
		if n.Kind == querygraph.NodeExact {
			return 0
		}
		return 1
	}
	return e
}
