package pipeline

import (
	"encoding/json"
	"fmt"
	"sort"
	"sync"

	"github.com/cespare/xxhash/v2"
	"golang.org/x/sync/errgroup"

	"github.com/cuemby/milli-core/pkg/fields"
	"github.com/cuemby/milli-core/pkg/kvcodec"
	"github.com/cuemby/milli-core/pkg/tokenizer"
)

// maxPosition is §4.F's cap on a token's encoded position: tokens at or
// beyond it still index the word (so it is still found) and still form
// word pairs for proximity, but get no BucketWordPositionDocids entry, to
// bound that bucket's key space for pathologically long fields.
const maxPosition = 1000

// maxProximity / crossFieldProximity implement §4.F's word-pair-proximity
// rule: a window of up to 8 tokens within one field scores by actual
// distance; a pair spanning two different fields is always charged the
// maximum, since their true adjacency is meaningless.
const (
	maxProximity        = 8
	crossFieldProximity = 8
	proximityWindow     = 8
)

// wordOccurrence is one indexed token, in document order across every
// searchable field (fields are visited in ascending field-id order).
type wordOccurrence struct {
	word       string
	fieldID    uint16
	tokenIndex int
}

// WordExtractResult holds the three posting-list accumulators stage 4's
// word extractor contributes to.
type WordExtractResult struct {
	Docids         *PostingAccumulator
	PositionDocids *PostingAccumulator
	FidDocids      *PostingAccumulator
	PairProximity  *PostingAccumulator
}

func newWordExtractResult(dir string) *WordExtractResult {
	return &WordExtractResult{
		Docids:         newPostingAccumulator(dir),
		PositionDocids: newPostingAccumulator(dir),
		FidDocids:      newPostingAccumulator(dir),
		PairProximity:  newPostingAccumulator(dir),
	}
}

func (r *WordExtractResult) Close() {
	r.Docids.Close()
	r.PositionDocids.Close()
	r.FidDocids.Close()
	r.PairProximity.Close()
}

// ExtractWords runs the word extractor (stage 4) over every resolved
// operation that touches at least one searchable field, sharding the
// per-document work across workers by xxhash of the external id so the
// extraction is reproducible regardless of goroutine scheduling order
// (the accumulators themselves are keyed by word, not by shard, so
// sharding only distributes CPU work — it does not partition the key
// space). Workers tokenize in parallel and share one lock while writing
// into the accumulators.
func ExtractWords(ops []resolvedOp, fm *fields.Map, tok tokenizer.Tokenizer, localesOf func(fieldID uint16) []string, dir string, workers int) (*WordExtractResult, error) {
	if workers <= 0 {
		workers = 4
	}
	result := newWordExtractResult(dir)

	shards := make([][]resolvedOp, workers)
	for _, op := range ops {
		if op.kind != OpDelete && op.kind != OpUpsert && op.kind != OpReplace {
			continue
		}
		h := xxhash.Sum64String(op.externalID) % uint64(workers)
		shards[h] = append(shards[h], op)
	}

	var g errgroup.Group
	var mu sync.Mutex
	for _, shard := range shards {
		shard := shard
		g.Go(func() error {
			for _, op := range shard {
				if err := extractWordsForDoc(op, fm, tok, localesOf, &mu, result); err != nil {
					return err
				}
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		result.Close()
		return nil, err
	}
	return result, nil
}

func extractWordsForDoc(op resolvedOp, fm *fields.Map, tok tokenizer.Tokenizer, localesOf func(fieldID uint16) []string, mu *sync.Mutex, result *WordExtractResult) error {
	oldStream, err := tokenizeDocument(op.oldOBKV, fm, tok, localesOf)
	if err != nil {
		return err
	}
	var newStream []wordOccurrence
	if op.kind != OpDelete {
		newStream, err = tokenizeDocument(op.newOBKV, fm, tok, localesOf)
		if err != nil {
			return err
		}
	}
	if len(oldStream) == 0 && len(newStream) == 0 {
		return nil
	}

	mu.Lock()
	defer mu.Unlock()
	if err := applyOccurrences(oldStream, op.internalID, result, (*PostingAccumulator).delDoc); err != nil {
		return err
	}
	return applyOccurrences(newStream, op.internalID, result, (*PostingAccumulator).addDoc)
}

type postingOp func(*PostingAccumulator, []byte, uint32) error

func applyOccurrences(stream []wordOccurrence, docid uint32, result *WordExtractResult, op postingOp) error {
	seen := map[string]bool{}
	seenFid := map[string]bool{}
	for _, occ := range stream {
		if !seen[occ.word] {
			seen[occ.word] = true
			if err := op(result.Docids, []byte(occ.word), docid); err != nil {
				return err
			}
		}
		fidKey := fmt.Sprintf("%s\x00%d", occ.word, occ.fieldID)
		if !seenFid[fidKey] {
			seenFid[fidKey] = true
			if err := op(result.FidDocids, kvcodec.WordFidKey(occ.word, occ.fieldID), docid); err != nil {
				return err
			}
		}
		if occ.tokenIndex < maxPosition {
			pos := (uint32(occ.fieldID) << 16) | uint32(occ.tokenIndex)
			if err := op(result.PositionDocids, kvcodec.WordPositionKey(occ.word, pos), docid); err != nil {
				return err
			}
		}
	}

	for i := range stream {
		for j := i + 1; j < len(stream) && j-i <= proximityWindow; j++ {
			a, b := stream[i], stream[j]
			if a.word == b.word {
				continue
			}
			prox := uint8(j - i)
			if a.fieldID != b.fieldID {
				prox = crossFieldProximity
			}
			if prox > maxProximity {
				prox = maxProximity
			}
			wa, wb := a.word, b.word
			if wb < wa {
				wa, wb = wb, wa
			}
			if err := op(result.PairProximity, kvcodec.WordPairProximityKey(wa, wb, prox), docid); err != nil {
				return err
			}
		}
	}
	return nil
}

// tokenizeDocument decodes every searchable field of obkv and tokenizes
// it, returning one wordOccurrence per non-stop-word token, ordered by
// (field id, token index).
func tokenizeDocument(obkv kvcodec.OBKV, fm *fields.Map, tok tokenizer.Tokenizer, localesOf func(fieldID uint16) []string) ([]wordOccurrence, error) {
	if len(obkv) == 0 {
		return nil, nil
	}
	ids := make([]uint16, 0, len(obkv))
	for id := range obkv {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	var out []wordOccurrence
	for _, id := range ids {
		if !fm.Flags(id).Searchable {
			continue
		}
		text, ok := decodeSearchableText(obkv[id])
		if !ok {
			continue
		}
		tokens, err := tok.Tokenize(text, localesOf(id))
		if err != nil {
			return nil, err
		}
		for _, t := range tokens {
			if t.Kind != tokenizer.KindWord {
				continue
			}
			out = append(out, wordOccurrence{word: t.Lemma, fieldID: id, tokenIndex: t.TokenIndex})
		}
	}
	return out, nil
}

// decodeSearchableText extracts the text of a field's raw JSON value: a
// string is used directly, a number or boolean is formatted, and the
// text of each element of an array is joined with a space (matching how a
// faceted multi-value field like tags is still freely searchable). Objects
// and null are not indexed as text.
func decodeSearchableText(raw []byte) (string, bool) {
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return "", false
	}
	return textOf(v)
}

func textOf(v any) (string, bool) {
	switch t := v.(type) {
	case string:
		return t, true
	case float64:
		return fmt.Sprintf("%g", t), true
	case bool:
		return fmt.Sprintf("%t", t), true
	case []any:
		var out string
		for i, elem := range t {
			s, ok := textOf(elem)
			if !ok {
				continue
			}
			if i > 0 {
				out += " "
			}
			out += s
		}
		return out, out != ""
	default:
		return "", false
	}
}
