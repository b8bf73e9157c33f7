// Package executor selects candidate documents for a query plan and ranks
// them against an index snapshot.
package executor

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/RoaringBitmap/roaring/v2"

	"github.com/Adithya-Monish-Kumar-K/summary-search/internal/indexer/index"
	"github.com/Adithya-Monish-Kumar-K/summary-search/internal/searcher/parser"
	"github.com/Adithya-Monish-Kumar-K/summary-search/internal/searcher/phrase"
	"github.com/Adithya-Monish-Kumar-K/summary-search/internal/searcher/ranker"
)

// Outcome tags a query result. NoTermInIndex is only produced by one-word
// queries whose term is unindexed or that have no terms at all; phrase and
// free-text misses are Matches with no documents. EmptyQuery marks phrase and
// free-text queries left without terms after stop-word removal.
type Outcome int

const (
	OutcomeMatches Outcome = iota
	OutcomeNoTermInIndex
	OutcomeEmptyQuery
)

func (o Outcome) String() string {
	switch o {
	case OutcomeMatches:
		return "matches"
	case OutcomeNoTermInIndex:
		return "no_results"
	case OutcomeEmptyQuery:
		return "empty_query"
	default:
		return "unknown"
	}
}

func (o Outcome) MarshalText() ([]byte, error) {
	return []byte(o.String()), nil
}

func (o *Outcome) UnmarshalText(text []byte) error {
	switch string(text) {
	case "matches":
		*o = OutcomeMatches
	case "no_results":
		*o = OutcomeNoTermInIndex
	case "empty_query":
		*o = OutcomeEmptyQuery
	default:
		return fmt.Errorf("unknown outcome %q", text)
	}
	return nil
}

type SearchResult struct {
	Outcome    Outcome
	Plan       *parser.QueryPlan
	Candidates uint64
	Results    []ranker.ScoredDoc
}

type Executor struct {
	logger *slog.Logger
}

func New() *Executor {
	return &Executor{
		logger: slog.Default().With("component", "query-executor"),
	}
}

// Execute runs plan against snap and keeps at most k documents.
func (e *Executor) Execute(ctx context.Context, plan *parser.QueryPlan, snap *index.Snapshot, k int) *SearchResult {
	result := &SearchResult{Plan: plan, Results: []ranker.ScoredDoc{}}
	if plan.Empty() {
		result.Outcome = OutcomeEmptyQuery
		if plan.Type == parser.OneWord {
			result.Outcome = OutcomeNoTermInIndex
		}
		return result
	}
	candidates, found := Candidates(plan, snap)
	if !found {
		result.Outcome = OutcomeNoTermInIndex
		e.logger.DebugContext(ctx, "term not in index", "query", plan.RawQuery, "term", plan.Terms[0])
		return result
	}
	result.Outcome = OutcomeMatches
	result.Candidates = candidates.GetCardinality()
	result.Results = ranker.Rank(plan.Terms, candidates, snap, k)
	e.logger.DebugContext(ctx, "query executed",
		"query", plan.RawQuery,
		"type", plan.Type.String(),
		"terms", plan.Terms,
		"candidates", result.Candidates,
		"results", len(result.Results),
	)
	return result
}

// Candidates returns the documents eligible for ranking. found is false only
// for a one-word query whose first term is not indexed.
func Candidates(plan *parser.QueryPlan, snap *index.Snapshot) (candidates *roaring.Bitmap, found bool) {
	switch plan.Type {
	case parser.Phrase:
		return phrase.Match(plan.Terms, snap.Postings), true
	case parser.FreeText:
		return unionPostings(plan.Terms, snap), true
	default:
		pl, ok := snap.Postings(plan.Terms[0])
		if !ok {
			return nil, false
		}
		return docBitmap(pl), true
	}
}

func unionPostings(terms []string, snap *index.Snapshot) *roaring.Bitmap {
	result := roaring.New()
	for _, term := range terms {
		if pl, ok := snap.Postings(term); ok {
			result.Or(docBitmap(pl))
		}
	}
	return result
}

func docBitmap(pl index.PostingList) *roaring.Bitmap {
	bm := roaring.New()
	for _, p := range pl {
		bm.Add(uint32(p.DocID))
	}
	return bm
}
