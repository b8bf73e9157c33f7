// Package materializer turns ranked document ids into result records.
package materializer

import (
	"context"
	"fmt"

	"github.com/Adithya-Monish-Kumar-K/summary-search/internal/searcher/ranker"
	apperrors "github.com/Adithya-Monish-Kumar-K/summary-search/pkg/errors"
)

// Record is one search hit.
type Record struct {
	ID   int    `json:"id"`
	Text string `json:"summary"`
}

// Corpus resolves document ids to text. corpus.Store satisfies it.
type Corpus interface {
	Lookup(ctx context.Context, ids []int) (map[int]string, error)
}

// Materialize looks up every ranked id and returns records in rank order.
// An id the corpus does not know means the index and corpus are out of sync,
// which is a configuration error.
func Materialize(ctx context.Context, c Corpus, ranked []ranker.ScoredDoc) ([]Record, error) {
	records := make([]Record, 0, len(ranked))
	if len(ranked) == 0 {
		return records, nil
	}
	ids := make([]int, len(ranked))
	for i, d := range ranked {
		ids[i] = d.DocID
	}
	texts, err := c.Lookup(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("looking up summaries: %w", err)
	}
	for _, id := range ids {
		text, ok := texts[id]
		if !ok {
			return nil, apperrors.Configf("document %d is indexed but missing from the corpus", id)
		}
		records = append(records, Record{ID: id, Text: text})
	}
	return records, nil
}
