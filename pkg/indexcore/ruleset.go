package indexcore

import (
	"strings"

	bolt "go.etcd.io/bbolt"

	"github.com/cuemby/milli-core/pkg/apperr"
	"github.com/cuemby/milli-core/pkg/fields"
	"github.com/cuemby/milli-core/pkg/querygraph"
	"github.com/cuemby/milli-core/pkg/ranking"
)

// buildRuleStack translates Settings.EffectiveRankingRules() plus a
// request's per-query sort/geo/vector inputs into a concrete
// ranking.Rule stack, in RankingRules order (index 0 is the bottommost,
// first-applied rule). Words/Typo/Proximity/Attribute/Exactness are
// skipped entirely against a query with no real term nodes — the graph
// then holds nothing but its Start/End sentinels — since they are
// meaningless there and, for Words specifically, would otherwise empty
// the whole universe for a browse/filter-only query.
func buildRuleStack(tx *bolt.Tx, fm *fields.Map, g *querygraph.Graph, ruleNames []string, req SearchRequest) ([]ranking.Rule, error) {
	hasTerms := len(g.Nodes) > 2

	var rules []ranking.Rule
	for _, name := range ruleNames {
		switch name {
		case "Words":
			if hasTerms {
				rules = append(rules, &ranking.Words{Strategy: req.MatchingStrategy})
			}
		case "Typo":
			if hasTerms {
				rules = append(rules, ranking.NewTypo())
			}
		case "Proximity":
			if hasTerms {
				rules = append(rules, &ranking.Proximity{})
			}
		case "Attribute":
			if hasTerms {
				rules = append(rules, &ranking.Attribute{})
			}
		case "Exactness":
			if hasTerms {
				rules = append(rules, ranking.NewExactness())
			}
		case "Sort":
			sortRules, err := buildSortRules(tx, fm, req.Sort)
			if err != nil {
				return nil, err
			}
			rules = append(rules, sortRules...)
		case "Geo":
			if req.Geo != nil {
				rules = append(rules, ranking.NewGeoSort(req.Geo))
			}
		case "Vector":
			if req.Vector != nil {
				rules = append(rules, ranking.NewVectorSort(req.Vector))
			}
		default:
			// An unrecognized rule name degrades gracefully rather than
			// failing the whole search, so a settings blob written by a
			// newer engine version still serves queries.
		}
	}
	return rules, nil
}

func buildSortRules(tx *bolt.Tx, fm *fields.Map, clauses []string) ([]ranking.Rule, error) {
	var rules []ranking.Rule
	for _, clause := range clauses {
		field, dir, ok := splitSortClause(clause)
		if !ok {
			return nil, apperr.Validation("invalid sort clause %q: want \"field:asc\" or \"field:desc\"", clause)
		}
		id, ok := fm.ID(field)
		if !ok {
			return nil, apperr.Validation("sort field %q is unknown", field)
		}
		if !fm.Flags(id).Sortable {
			return nil, apperr.Validation("field %q is not sortable", field)
		}
		numeric := hasFacetNumberEntries(tx, id)
		switch dir {
		case "asc":
			rules = append(rules, ranking.NewAsc(id, numeric))
		case "desc":
			rules = append(rules, ranking.NewDesc(id, numeric))
		default:
			return nil, apperr.Validation("invalid sort direction %q in clause %q", dir, clause)
		}
	}
	return rules, nil
}

func splitSortClause(clause string) (field, dir string, ok bool) {
	i := strings.LastIndexByte(clause, ':')
	if i < 0 {
		return "", "", false
	}
	return clause[:i], clause[i+1:], true
}
