package index

import (
	"fmt"
	"sort"
)

// Posting records where a term occurs in one document. Positions are
// zero-based, strictly ascending and never empty.
type Posting struct {
	DocID     int
	Positions []int
}

// PostingList holds a term's postings in document processing order.
type PostingList []Posting

// DocIDs returns the document ids of the list in order.
func (pl PostingList) DocIDs() []int {
	ids := make([]int, len(pl))
	for i, p := range pl {
		ids[i] = p.DocID
	}
	return ids
}

// TermEntry is everything the index knows about one term. TF is
// index-aligned with Postings: TF[i] is the weight of the term in
// Postings[i].DocID.
type TermEntry struct {
	Term     string
	Postings PostingList
	TF       []float64
	IDF      float64
}

// DocFreq is the number of documents containing the term.
func (e *TermEntry) DocFreq() int {
	return len(e.Postings)
}

// Validate checks the alignment and ordering invariants of the entry.
func (e *TermEntry) Validate() error {
	if len(e.Postings) == 0 {
		return fmt.Errorf("term %q has no postings", e.Term)
	}
	if len(e.TF) != len(e.Postings) {
		return fmt.Errorf("term %q has %d postings but %d tf weights", e.Term, len(e.Postings), len(e.TF))
	}
	for _, p := range e.Postings {
		if len(p.Positions) == 0 {
			return fmt.Errorf("term %q doc %d has no positions", e.Term, p.DocID)
		}
		for i := 1; i < len(p.Positions); i++ {
			if p.Positions[i] <= p.Positions[i-1] {
				return fmt.Errorf("term %q doc %d positions not strictly ascending", e.Term, p.DocID)
			}
		}
	}
	return nil
}

// Snapshot is an immutable inverted index: per-term postings, tf vectors and
// idf plus the document count captured at build time.
type Snapshot struct {
	numDocs int
	terms   map[string]*TermEntry
}

// NewSnapshot wraps entries into a Snapshot. The caller must not modify the
// entries afterwards.
func NewSnapshot(numDocs int, entries []TermEntry) *Snapshot {
	terms := make(map[string]*TermEntry, len(entries))
	for i := range entries {
		terms[entries[i].Term] = &entries[i]
	}
	return &Snapshot{numDocs: numDocs, terms: terms}
}

func (s *Snapshot) NumDocs() int {
	return s.numDocs
}

func (s *Snapshot) TermCount() int {
	return len(s.terms)
}

// Lookup returns the entry for term. Absence is reported through ok, never
// through an error: callers decide whether a missing term matters.
func (s *Snapshot) Lookup(term string) (entry *TermEntry, ok bool) {
	entry, ok = s.terms[term]
	return entry, ok
}

// Postings is Lookup narrowed to the posting list.
func (s *Snapshot) Postings(term string) (PostingList, bool) {
	entry, ok := s.terms[term]
	if !ok {
		return nil, false
	}
	return entry.Postings, true
}

// Entries returns all term entries sorted by term, the stable order used by
// the index file.
func (s *Snapshot) Entries() []*TermEntry {
	entries := make([]*TermEntry, 0, len(s.terms))
	for _, e := range s.terms {
		entries = append(entries, e)
	}
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].Term < entries[j].Term
	})
	return entries
}
