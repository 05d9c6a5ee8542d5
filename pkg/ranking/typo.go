package ranking

import "github.com/cuemby/milli-core/pkg/querygraph"

// Typo partitions its input universe by the largest edit distance among
// the derivations a document matched through: documents reachable through
// only zero-edit derivations rank above documents that needed a one-edit
// typo node, which rank above two-edit matches (§4.C's edit distance
// ceiling). Edit distances are not summed across slots, so two one-edit
// matches land in the same bucket as a single one-edit match.
type Typo struct {
	levelRule
}

// NewTypo returns a ready Typo rule.
func NewTypo() *Typo {
	t := &Typo{}
	t.name = "typo"
	t.maxLevel = 2
	t.levelOf = func(n querygraph.Node) int { return n.EditDistance }
	return t
}
