package parser

import (
	"reflect"
	"testing"

	"github.com/Adithya-Monish-Kumar-K/summary-search/internal/indexer/tokenizer"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		raw  string
		want QueryType
	}{
		{"book", OneWord},
		{"  book  ", OneWord},
		{"", OneWord},
		{"book on science", FreeText},
		{"book\ton", FreeText},
		{`"nawaz on science"`, Phrase},
		{`unbalanced "quote`, Phrase},
		{`"book"`, Phrase},
		{"by on", FreeText},
	}
	for _, tt := range tests {
		if got := Classify(tt.raw); got != tt.want {
			t.Errorf("Classify(%q) = %v, want %v", tt.raw, got, tt.want)
		}
	}
}

func TestParse(t *testing.T) {
	p := New(tokenizer.New([]string{"by", "on"}))
	tests := []struct {
		name     string
		raw      string
		typ      QueryType
		terms    []string
		fallback bool
	}{
		{"one word", "Book", OneWord, []string{"book"}, false},
		{"free text drops stopwords", "book on science", FreeText, []string{"book", "science"}, false},
		{"phrase", `"nawaz on science"`, Phrase, []string{"nawaz", "science"}, false},
		{"quoted single term falls over", `"science"`, OneWord, []string{"science"}, true},
		{"quoted stopwords stay phrase", `"by on"`, Phrase, []string{}, false},
		{"stopword only", "by", OneWord, []string{}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			plan := p.Parse(tt.raw)
			if plan.Type != tt.typ {
				t.Errorf("Type = %v, want %v", plan.Type, tt.typ)
			}
			if !reflect.DeepEqual(plan.Terms, tt.terms) {
				t.Errorf("Terms = %v, want %v", plan.Terms, tt.terms)
			}
			if plan.Fallback != tt.fallback {
				t.Errorf("Fallback = %v, want %v", plan.Fallback, tt.fallback)
			}
			if plan.RawQuery != tt.raw {
				t.Errorf("RawQuery = %q", plan.RawQuery)
			}
		})
	}
}

func TestEmpty(t *testing.T) {
	p := New(tokenizer.New([]string{"the"}))
	if !p.Parse("the").Empty() {
		t.Error("all-stopword query should be empty")
	}
	if p.Parse("rose").Empty() {
		t.Error("rose should not be empty")
	}
}
