package index

import (
	"fmt"
	"math"

	"github.com/Adithya-Monish-Kumar-K/summary-search/internal/indexer/tokenizer"
	apperrors "github.com/Adithya-Monish-Kumar-K/summary-search/pkg/errors"
)

// Builder accumulates postings, tf weights and document frequencies one
// document at a time. Documents must be added in the order their postings
// should appear; the builder never re-sorts.
type Builder struct {
	tokenizer *tokenizer.Tokenizer
	entries   map[string]*TermEntry
	order     []string
	seen      map[int]struct{}
	docCount  int
	tokens    int
}

func NewBuilder(tok *tokenizer.Tokenizer) *Builder {
	return &Builder{
		tokenizer: tok,
		entries:   make(map[string]*TermEntry),
		seen:      make(map[int]struct{}),
	}
}

// AddDocument tokenizes text and merges the document into the index. A
// document whose text has no terms still counts towards NumDocs.
func (b *Builder) AddDocument(docID int, text string) error {
	if docID < 0 || int64(docID) > math.MaxUint32 {
		return fmt.Errorf("%w: document id %d out of range", apperrors.ErrInvalidInput, docID)
	}
	if _, dup := b.seen[docID]; dup {
		return fmt.Errorf("%w: duplicate document id %d", apperrors.ErrInvalidInput, docID)
	}
	b.seen[docID] = struct{}{}

	tokens := b.tokenizer.Tokenize(text)
	termData := make(map[string]*Posting)
	docTerms := make([]string, 0, len(tokens))
	for _, token := range tokens {
		p, exists := termData[token.Term]
		if !exists {
			p = &Posting{
				DocID:     docID,
				Positions: make([]int, 0, 4),
			}
			termData[token.Term] = p
			docTerms = append(docTerms, token.Term)
		}
		p.Positions = append(p.Positions, token.Position)
	}

	var sumSquares float64
	for _, term := range docTerms {
		count := float64(len(termData[term].Positions))
		sumSquares += count * count
	}
	norm := math.Sqrt(sumSquares)

	for _, term := range docTerms {
		posting := termData[term]
		entry, exists := b.entries[term]
		if !exists {
			entry = &TermEntry{Term: term}
			b.entries[term] = entry
			b.order = append(b.order, term)
		}
		entry.TF = append(entry.TF, float64(len(posting.Positions))/norm)
		entry.Postings = append(entry.Postings, *posting)
	}
	b.docCount++
	b.tokens += len(tokens)
	return nil
}

// Snapshot finalizes idf as NumDocs/DocFreq for every term and returns an
// immutable copy of the index. The builder can keep accepting documents.
func (b *Builder) Snapshot() *Snapshot {
	entries := make([]TermEntry, 0, len(b.order))
	for _, term := range b.order {
		src := b.entries[term]
		entry := TermEntry{
			Term:     term,
			Postings: append(PostingList(nil), src.Postings...),
			TF:       append([]float64(nil), src.TF...),
			IDF:      IDF(b.docCount, src.DocFreq()),
		}
		entries = append(entries, entry)
	}
	return NewSnapshot(b.docCount, entries)
}

// IDF is the unscaled inverse document frequency numDocs/docFreq.
func IDF(numDocs, docFreq int) float64 {
	if docFreq == 0 {
		return 0
	}
	return float64(numDocs) / float64(docFreq)
}

func (b *Builder) DocCount() int {
	return b.docCount
}

func (b *Builder) TokenCount() int {
	return b.tokens
}
