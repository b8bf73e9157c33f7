// Package tokenizer turns text into index terms. It lower-cases input, treats
// every character outside [a-z0-9] as a separator and removes stop-words.
// The same Tokenizer is used when building the index and when parsing
// queries, so both sides agree on term identity and positions.
package tokenizer

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"

	apperrors "github.com/Adithya-Monish-Kumar-K/summary-search/pkg/errors"
)

// Token represents a single normalised term and its position among the
// kept terms of the original text.
type Token struct {
	Term     string
	Position int
}

// Tokenizer holds an immutable stop-word set.
type Tokenizer struct {
	stopWords map[string]struct{}
}

// New creates a Tokenizer with the given stop-words. Entries are lower-cased.
func New(stopWords []string) *Tokenizer {
	set := make(map[string]struct{}, len(stopWords))
	for _, w := range stopWords {
		w = strings.ToLower(strings.TrimSpace(w))
		if w == "" {
			continue
		}
		set[w] = struct{}{}
	}
	return &Tokenizer{stopWords: set}
}

// LoadStopwords reads a newline-delimited stop-word file. A missing or
// unreadable file is a configuration error.
func LoadStopwords(path string) (*Tokenizer, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, apperrors.Configf("opening stopword file: %v", err)
	}
	defer f.Close()
	words, err := ReadStopwords(f)
	if err != nil {
		return nil, apperrors.Configf("reading stopword file %s: %v", path, err)
	}
	return New(words), nil
}

// ReadStopwords returns one stop-word per non-empty line of r.
func ReadStopwords(r io.Reader) ([]string, error) {
	var words []string
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		if w := strings.TrimSpace(scanner.Text()); w != "" {
			words = append(words, w)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("scanning stopwords: %w", err)
	}
	return words, nil
}

// Tokenize breaks text into Tokens with stop-words removed. Positions count
// kept tokens only, starting at zero.
func (t *Tokenizer) Tokenize(text string) []Token {
	words := strings.FieldsFunc(strings.ToLower(text), isSeparator)
	tokens := make([]Token, 0, len(words))
	pos := 0
	for _, word := range words {
		if t.IsStopWord(word) {
			continue
		}
		tokens = append(tokens, Token{
			Term:     word,
			Position: pos,
		})
		pos++
	}
	return tokens
}

// Terms is Tokenize without positions.
func (t *Tokenizer) Terms(text string) []string {
	tokens := t.Tokenize(text)
	terms := make([]string, len(tokens))
	for i, tok := range tokens {
		terms[i] = tok.Term
	}
	return terms
}

func (t *Tokenizer) IsStopWord(word string) bool {
	_, ok := t.stopWords[word]
	return ok
}

func (t *Tokenizer) StopWordCount() int {
	return len(t.stopWords)
}

func isSeparator(r rune) bool {
	return !(r >= 'a' && r <= 'z') && !(r >= '0' && r <= '9')
}
