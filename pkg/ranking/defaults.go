package ranking

// DefaultRules returns the stack from §4.I's default ranking order:
// Words, Typo, Proximity, Attribute, Exactness. Sort/Asc/Desc and the
// geo/vector variants are configured per-index (they need a field id or
// an external collaborator) and inserted by the caller at the position
// Settings.RankingRules specifies.
func DefaultRules() []Rule {
	return []Rule{
		&Words{},
		NewTypo(),
		&Proximity{},
		&Attribute{},
		NewExactness(),
	}
}
