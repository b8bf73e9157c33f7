// Package ranker scores candidate documents against a query with an
// idf-weighted vector-space model and keeps the top k.
package ranker

import (
	"container/heap"

	"github.com/RoaringBitmap/roaring/v2"

	"github.com/Adithya-Monish-Kumar-K/summary-search/internal/indexer/index"
)

type ScoredDoc struct {
	DocID int     `json:"doc_id"`
	Score float64 `json:"score"`
}

// Index is the part of a snapshot the ranker reads.
type Index interface {
	Lookup(term string) (*index.TermEntry, bool)
}

// QueryVector holds idf(terms[i]) at slot i. When a term repeats, only the
// slot of its last occurrence is set; earlier duplicates stay zero.
func QueryVector(terms []string, idx Index) []float64 {
	vec := make([]float64, len(terms))
	for i, term := range terms {
		entry, ok := idx.Lookup(term)
		if !ok || !lastOccurrence(terms, i) {
			continue
		}
		vec[i] = entry.IDF
	}
	return vec
}

func lastOccurrence(terms []string, i int) bool {
	for j := i + 1; j < len(terms); j++ {
		if terms[j] == terms[i] {
			return false
		}
	}
	return true
}

// DocVectors returns, per candidate, tf(terms[i], doc) at slot i. Every
// candidate gets a vector even if it matches none of the terms.
func DocVectors(terms []string, candidates *roaring.Bitmap, idx Index) map[int][]float64 {
	vecs := make(map[int][]float64, candidates.GetCardinality())
	it := candidates.Iterator()
	for it.HasNext() {
		vecs[int(it.Next())] = make([]float64, len(terms))
	}
	for i, term := range terms {
		entry, ok := idx.Lookup(term)
		if !ok {
			continue
		}
		for j, p := range entry.Postings {
			if vec, ok := vecs[p.DocID]; ok {
				vec[i] = entry.TF[j]
			}
		}
	}
	return vecs
}

// Dot is the dot product of a and b, or 0 when their lengths differ.
func Dot(a, b []float64) float64 {
	if len(a) != len(b) {
		return 0
	}
	var sum float64
	for i := range a {
		sum += a[i] * b[i]
	}
	return sum
}

// Rank scores every candidate and returns at most k documents ordered by
// score descending, then doc id descending.
func Rank(terms []string, candidates *roaring.Bitmap, idx Index, k int) []ScoredDoc {
	if k <= 0 || candidates == nil || candidates.IsEmpty() {
		return []ScoredDoc{}
	}
	query := QueryVector(terms, idx)
	h := &scoredDocHeap{}
	for docID, vec := range DocVectors(terms, candidates, idx) {
		heap.Push(h, ScoredDoc{DocID: docID, Score: Dot(vec, query)})
		if h.Len() > k {
			heap.Pop(h)
		}
	}
	result := make([]ScoredDoc, h.Len())
	for i := len(result) - 1; i >= 0; i-- {
		result[i] = heap.Pop(h).(ScoredDoc)
	}
	return result
}

func better(a, b ScoredDoc) bool {
	if a.Score != b.Score {
		return a.Score > b.Score
	}
	return a.DocID > b.DocID
}

// scoredDocHeap keeps the worst of the retained documents on top.
type scoredDocHeap []ScoredDoc

func (h scoredDocHeap) Len() int { return len(h) }

func (h scoredDocHeap) Less(i, j int) bool { return better(h[j], h[i]) }

func (h scoredDocHeap) Swap(i, j int) { h[i], h[j] = h[j], h[i] }

func (h *scoredDocHeap) Push(x interface{}) {
	*h = append(*h, x.(ScoredDoc))
}

func (h *scoredDocHeap) Pop() interface{} {
	old := *h
	n := len(old)
	item := old[n-1]
	*h = old[:n-1]
	return item
}
