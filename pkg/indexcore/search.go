package indexcore

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/RoaringBitmap/roaring/v2"
	bolt "go.etcd.io/bbolt"

	"github.com/cuemby/milli-core/pkg/apperr"
	"github.com/cuemby/milli-core/pkg/budget"
	"github.com/cuemby/milli-core/pkg/docstore"
	"github.com/cuemby/milli-core/pkg/fields"
	"github.com/cuemby/milli-core/pkg/filterlang"
	"github.com/cuemby/milli-core/pkg/kvcodec"
	"github.com/cuemby/milli-core/pkg/metrics"
	"github.com/cuemby/milli-core/pkg/querygraph"
	"github.com/cuemby/milli-core/pkg/ranking"
	"github.com/cuemby/milli-core/pkg/settings"
	"github.com/cuemby/milli-core/pkg/termfst"
)

// defaultLimit is used when a SearchRequest leaves Limit unset.
const defaultLimit = 20

// SearchRequest is one query against an Index.
type SearchRequest struct {
	Query  string
	Filter string
	// Sort is a list of "field:asc"/"field:desc" clauses, applied where
	// Settings.RankingRules places the "Sort" placeholder.
	Sort []string

	Offset int
	Limit  int

	// Budget bounds how long Search may run before returning a degraded
	// (possibly incomplete) result. Zero means unlimited.
	Budget time.Duration

	// MatchingStrategy overrides how the bottommost Words rule degrades
	// when no document matches every query term.
	MatchingStrategy ranking.MatchingStrategy

	// Geo/Vector plug in an external ranking collaborator for the "Geo"
	// / "Vector" ranking-rule placeholders; nil skips them even if named
	// in Settings.RankingRules.
	Geo    ranking.GeoCollaborator
	Vector ranking.VectorCollaborator
}

// SearchHit is one ranked, hydrated result: the document's displayed
// fields, keyed by name.
type SearchHit struct {
	ExternalID string
	Document   map[string]any
}

// SearchResult is the outcome of one Search call.
type SearchResult struct {
	Hits               []SearchHit
	EstimatedTotalHits int
	// Degraded reports whether the configured Budget cut the search
	// short; Hits may then be an incomplete or unranked prefix.
	Degraded bool
}

// Search resolves req against the index's current settings and data:
// parses and applies the filter, builds the query term graph, drains the
// configured ranking pipeline, and hydrates the surviving ids into their
// displayed-field projection.
func (ix *Index) Search(req SearchRequest) (SearchResult, error) {
	timer := metrics.NewTimer()
	var result SearchResult
	err := ix.View(func(tx *bolt.Tx) error {
		fm, err := loadFieldsMap(tx)
		if err != nil {
			return err
		}
		s, err := loadSettings(tx)
		if err != nil {
			return err
		}

		universe, err := allDocids(tx)
		if err != nil {
			return err
		}

		if req.Filter != "" {
			cond, err := filterlang.Parse(req.Filter, &txFieldChecker{tx: tx, fm: fm})
			if err != nil {
				return err
			}
			if cond != nil {
				matched, err := evalFilter(tx, fm, universe, cond)
				if err != nil {
					return err
				}
				universe.And(matched)
			}
		}

		bud := budget.Unlimited()
		if req.Budget > 0 {
			bud = budget.New(req.Budget)
		}

		g, err := buildQueryGraph(tx, ix, s, req.Query)
		if err != nil {
			return err
		}

		rules, err := buildRuleStack(tx, fm, g, s.EffectiveRankingRules(), req)
		if err != nil {
			return err
		}

		rctx := &ranking.Context{Tx: tx, Graph: g, Fields: fm, Budget: bud}
		p, err := ranking.NewPipeline(rctx, universe, rules)
		if err != nil {
			return err
		}

		limit := req.Limit
		if limit <= 0 {
			limit = defaultLimit
		}

		ids, err := drainDistinct(tx, fm, p, s.DistinctAttribute, req.Offset, limit)
		if err != nil {
			return err
		}

		outcome := bud.Finish(!bud.Exceeded())
		result.Degraded = outcome.Degraded
		result.EstimatedTotalHits = int(universe.GetCardinality())

		hits := make([]SearchHit, 0, len(ids))
		for _, internalID := range ids {
			hit, ok, err := hydrate(tx, fm, s, internalID)
			if err != nil {
				return err
			}
			if ok {
				hits = append(hits, hit)
			}
		}
		result.Hits = hits
		return nil
	})
	timer.ObserveDuration(metrics.SearchDuration)
	if err != nil {
		metrics.SearchRequestsTotal.WithLabelValues("error").Inc()
		return result, err
	}
	if result.Degraded {
		metrics.SearchRequestsTotal.WithLabelValues("degraded").Inc()
		metrics.SearchDegradedTotal.Inc()
	} else {
		metrics.SearchRequestsTotal.WithLabelValues("success").Inc()
	}
	metrics.SearchResultsReturned.Observe(float64(len(result.Hits)))
	return result, err
}

func buildQueryGraph(tx *bolt.Tx, ix *Index, s settings.Settings, query string) (*querygraph.Graph, error) {
	wordsFst, err := loadWordsFst(tx)
	if err != nil {
		return nil, err
	}

	exactWords := make(map[string]bool, len(s.ExactWords))
	for _, w := range s.ExactWords {
		exactWords[w] = true
	}

	return querygraph.Build(query, querygraph.BuildParams{
		Tokenizer: ix.tokenizer,
		Words:     wordsFst,
		Synonyms:  s.Synonyms,
		TypoPolicy: querygraph.TypoPolicy{
			MinWordLenOneTypo:  s.MinWordLenOneTypo,
			MinWordLenTwoTypos: s.MinWordLenTwoTypos,
			ExactWords:         exactWords,
		},
		AutomatonCache: ix.automatonCache,
	})
}

func loadWordsFst(tx *bolt.Tx) (*termfst.Map, error) {
	b := tx.Bucket(kvcodec.BucketMeta)
	if b == nil {
		return nil, apperr.Internal(nil, "indexcore: meta bucket missing")
	}
	return termfst.Load(b.Get([]byte(kvcodec.KeyWordsFst)))
}

// allDocids returns the full live docid set, via the same
// internal-to-external cursor scan pkg/ranking's tests use to build a
// search universe.
func allDocids(tx *bolt.Tx) (*roaring.Bitmap, error) {
	b := tx.Bucket(kvcodec.BucketInternalToExternal)
	if b == nil {
		return nil, apperr.Internal(nil, "indexcore: internal-to-external bucket missing")
	}
	acc := roaring.New()
	c := b.Cursor()
	for k, _ := c.First(); k != nil; k, _ = c.Next() {
		id, err := kvcodec.DecodeU32(k)
		if err != nil {
			return nil, err
		}
		acc.Add(id)
	}
	return acc, nil
}

// drainDistinct pulls ranked ids from p, collapsing to one hit per
// distinct value of distinctField (keeping the first — highest-ranked —
// occurrence of each), until offset+limit distinct ids have been
// collected or the pipeline is exhausted. Repeated Pipeline.Drain calls
// on the same Pipeline each return a fresh, non-overlapping slice of
// NEW ranked ids (every rule's emitted-tracking persists across calls,
// only resetting when it pulls a new universe from the rule beneath
// it), so growing the requested chunk and calling Drain again is safe
// and never re-examines an id already collapsed or already kept.
func drainDistinct(tx *bolt.Tx, fm *fields.Map, p *ranking.Pipeline, distinctField string, offset, limit int) ([]uint32, error) {
	want := offset + limit

	fieldID, hasDistinct := fm.ID(distinctField)
	if distinctField == "" || !hasDistinct {
		ids, _, err := p.Drain(0, want)
		if err != nil {
			return nil, err
		}
		return page(ids, offset, want), nil
	}

	seen := map[string]bool{}
	var out []uint32
	chunk := want
	if chunk < 16 {
		chunk = 16
	}
	for {
		batch, _, err := p.Drain(0, chunk)
		if err != nil {
			return nil, err
		}
		for _, id := range batch {
			key, err := distinctKey(tx, fieldID, id)
			if err != nil {
				return nil, err
			}
			if seen[key] {
				continue
			}
			seen[key] = true
			out = append(out, id)
		}
		if len(out) >= want || len(batch) < chunk {
			break
		}
		chunk *= 2
	}
	return page(out, offset, want), nil
}

func page(ids []uint32, offset, want int) []uint32 {
	if offset >= len(ids) {
		return nil
	}
	end := len(ids)
	if end > want {
		end = want
	}
	return ids[offset:end]
}

func distinctKey(tx *bolt.Tx, fieldID uint16, docid uint32) (string, error) {
	wanted := map[uint16]bool{fieldID: true}
	var raw []byte
	found := false
	_, err := docstore.Project(tx, docid, wanted, func(_ uint16, r []byte) bool {
		raw = append([]byte(nil), r...)
		found = true
		return false
	})
	if err != nil {
		return "", err
	}
	if !found {
		return fmt.Sprintf("\x00missing:%d", docid), nil
	}
	return string(raw), nil
}

func hydrate(tx *bolt.Tx, fm *fields.Map, s settings.Settings, internalID uint32) (SearchHit, bool, error) {
	extID, ok, err := docstore.ExternalID(tx, internalID)
	if err != nil {
		return SearchHit{}, false, err
	}
	if !ok {
		return SearchHit{}, false, nil
	}

	doc := map[string]any{}
	_, err = docstore.Project(tx, internalID, nil, func(fieldID uint16, raw []byte) bool {
		name, ok := fm.Name(fieldID)
		if !ok || !s.IsDisplayed(name) {
			return true
		}
		var v any
		if err := json.Unmarshal(raw, &v); err != nil {
			return true
		}
		doc[name] = v
		return true
	})
	if err != nil {
		return SearchHit{}, false, err
	}
	return SearchHit{ExternalID: extID, Document: doc}, true, nil
}
