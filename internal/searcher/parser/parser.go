// Package parser classifies raw queries and turns them into query plans.
package parser

import (
	"strings"

	"github.com/Adithya-Monish-Kumar-K/summary-search/internal/indexer/tokenizer"
)

type QueryType int

const (
	OneWord QueryType = iota
	FreeText
	Phrase
)

func (t QueryType) String() string {
	switch t {
	case OneWord:
		return "one_word"
	case FreeText:
		return "free_text"
	case Phrase:
		return "phrase"
	default:
		return "unknown"
	}
}

// QueryPlan is a classified, tokenized query. Fallback is set when a quoted
// query produced a single term and was routed to the one-word path.
type QueryPlan struct {
	Type     QueryType
	Terms    []string
	RawQuery string
	Fallback bool
}

// Empty reports whether the query has no terms after stop-word removal.
func (p *QueryPlan) Empty() bool {
	return len(p.Terms) == 0
}

// Classify routes on the raw text: any double quote makes a phrase query,
// otherwise more than one whitespace-separated word makes a free-text query.
// Quotes are a routing signal only; they are not checked for balance.
func Classify(raw string) QueryType {
	if strings.Contains(raw, `"`) {
		return Phrase
	}
	if len(strings.Fields(raw)) > 1 {
		return FreeText
	}
	return OneWord
}

type Parser struct {
	tokenizer *tokenizer.Tokenizer
}

func New(tok *tokenizer.Tokenizer) *Parser {
	return &Parser{tokenizer: tok}
}

func (p *Parser) Parse(raw string) *QueryPlan {
	plan := &QueryPlan{
		Type:     Classify(raw),
		Terms:    p.tokenizer.Terms(raw),
		RawQuery: raw,
	}
	if plan.Type == Phrase && len(plan.Terms) == 1 {
		plan.Type = OneWord
		plan.Fallback = true
	}
	return plan
}
