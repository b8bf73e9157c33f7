package index

import (
	"errors"
	"math"
	"reflect"
	"testing"

	"github.com/Adithya-Monish-Kumar-K/summary-search/internal/indexer/tokenizer"
	apperrors "github.com/Adithya-Monish-Kumar-K/summary-search/pkg/errors"
)

func buildNawaz(t *testing.T) *Snapshot {
	t.Helper()
	b := NewBuilder(tokenizer.New([]string{"by", "on"}))
	if err := b.AddDocument(0, "Book by nawaz on literature"); err != nil {
		t.Fatal(err)
	}
	if err := b.AddDocument(1, "Book by nawaz on science"); err != nil {
		t.Fatal(err)
	}
	return b.Snapshot()
}

func round4(v float64) float64 {
	return math.Round(v*10000) / 10000
}

func TestBuilderNawazScenario(t *testing.T) {
	snap := buildNawaz(t)
	if snap.NumDocs() != 2 {
		t.Fatalf("NumDocs() = %d, want 2", snap.NumDocs())
	}
	wantPostings := map[string]PostingList{
		"book":       {{0, []int{0}}, {1, []int{0}}},
		"nawaz":      {{0, []int{1}}, {1, []int{1}}},
		"literature": {{0, []int{2}}},
		"science":    {{1, []int{2}}},
	}
	wantIDF := map[string]float64{"book": 1, "nawaz": 1, "literature": 2, "science": 2}
	if snap.TermCount() != len(wantPostings) {
		t.Fatalf("TermCount() = %d, want %d", snap.TermCount(), len(wantPostings))
	}
	for term, want := range wantPostings {
		entry, ok := snap.Lookup(term)
		if !ok {
			t.Fatalf("term %q missing", term)
		}
		if !reflect.DeepEqual(entry.Postings, want) {
			t.Errorf("postings(%q) = %v, want %v", term, entry.Postings, want)
		}
		for i, tf := range entry.TF {
			if round4(tf) != 0.5774 {
				t.Errorf("tf(%q)[%d] = %v, want 0.5774", term, i, tf)
			}
		}
		if entry.IDF != wantIDF[term] {
			t.Errorf("idf(%q) = %v, want %v", term, entry.IDF, wantIDF[term])
		}
		if err := entry.Validate(); err != nil {
			t.Errorf("Validate(%q): %v", term, err)
		}
	}
	if _, ok := snap.Lookup("by"); ok {
		t.Error("stopword must not be indexed")
	}
}

func TestBuilderTFIsL2Normalized(t *testing.T) {
	b := NewBuilder(tokenizer.New(nil))
	// counts: rose=3, red=1 -> norm = sqrt(10)
	if err := b.AddDocument(7, "rose red rose rose"); err != nil {
		t.Fatal(err)
	}
	snap := b.Snapshot()
	rose, _ := snap.Lookup("rose")
	red, _ := snap.Lookup("red")
	if got, want := rose.TF[0], 3/math.Sqrt(10); got != want {
		t.Errorf("tf(rose) = %v, want %v", got, want)
	}
	if got, want := red.TF[0], 1/math.Sqrt(10); got != want {
		t.Errorf("tf(red) = %v, want %v", got, want)
	}
	if !reflect.DeepEqual(rose.Postings[0].Positions, []int{0, 2, 3}) {
		t.Errorf("positions(rose) = %v", rose.Postings[0].Positions)
	}
}

func TestBuilderPreservesProcessingOrder(t *testing.T) {
	b := NewBuilder(tokenizer.New(nil))
	for _, id := range []int{5, 2, 9} {
		if err := b.AddDocument(id, "shared term"); err != nil {
			t.Fatal(err)
		}
	}
	pl, ok := b.Snapshot().Postings("shared")
	if !ok {
		t.Fatal("shared missing")
	}
	if got := pl.DocIDs(); !reflect.DeepEqual(got, []int{5, 2, 9}) {
		t.Errorf("DocIDs() = %v, want processing order [5 2 9]", got)
	}
}

func TestBuilderEmptyDocumentCounts(t *testing.T) {
	b := NewBuilder(tokenizer.New([]string{"the"}))
	if err := b.AddDocument(0, "the"); err != nil {
		t.Fatal(err)
	}
	if err := b.AddDocument(1, "alpha"); err != nil {
		t.Fatal(err)
	}
	snap := b.Snapshot()
	alpha, _ := snap.Lookup("alpha")
	if snap.NumDocs() != 2 || alpha.IDF != 2 {
		t.Errorf("NumDocs=%d idf(alpha)=%v, want 2 and 2", snap.NumDocs(), alpha.IDF)
	}
}

func TestBuilderRejectsBadIDs(t *testing.T) {
	b := NewBuilder(tokenizer.New(nil))
	if err := b.AddDocument(1, "a"); err != nil {
		t.Fatal(err)
	}
	for _, id := range []int{1, -3} {
		if err := b.AddDocument(id, "b"); !errors.Is(err, apperrors.ErrInvalidInput) {
			t.Errorf("AddDocument(%d) error = %v, want ErrInvalidInput", id, err)
		}
	}
}

func TestEntriesSortedByTerm(t *testing.T) {
	entries := buildNawaz(t).Entries()
	var terms []string
	for _, e := range entries {
		terms = append(terms, e.Term)
	}
	want := []string{"book", "literature", "nawaz", "science"}
	if !reflect.DeepEqual(terms, want) {
		t.Errorf("Entries() order = %v, want %v", terms, want)
	}
}

func TestValidateDetectsBrokenInvariants(t *testing.T) {
	tests := []struct {
		name  string
		entry TermEntry
	}{
		{"no postings", TermEntry{Term: "x"}},
		{"tf misaligned", TermEntry{Term: "x", Postings: PostingList{{0, []int{0}}}, TF: []float64{0.5, 0.5}}},
		{"empty positions", TermEntry{Term: "x", Postings: PostingList{{0, nil}}, TF: []float64{1}}},
		{"descending positions", TermEntry{Term: "x", Postings: PostingList{{0, []int{3, 1}}}, TF: []float64{1}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := tt.entry.Validate(); err == nil {
				t.Error("Validate() = nil, want error")
			}
		})
	}
}
