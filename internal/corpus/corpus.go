// Package corpus owns the canonical id->summary mapping that the indexer
// builds from and the query service materializes results through. Raw scraped
// data is normalized by Transform into a Payload, which any Store backend
// (JSON file, SQLite, PostgreSQL) can serve.
package corpus

import (
	"context"
	"sort"
	"strconv"

	apperrors "github.com/Adithya-Monish-Kumar-K/summary-search/pkg/errors"
)

// Document is one summary with its integer id.
type Document struct {
	ID   int
	Text string
}

// Store serves the corpus to the indexer and the query service.
type Store interface {
	// Documents returns every document in ascending id order.
	Documents(ctx context.Context) ([]Document, error)
	// Lookup returns the text of each requested id that exists.
	Lookup(ctx context.Context, ids []int) (map[int]string, error)
	// Author returns the author recorded for a book id, if any.
	Author(ctx context.Context, id int) (string, bool, error)
	Close() error
}

// Payload is the transformed corpus. Keys are decimal document ids.
type Payload struct {
	Summaries map[string]string `json:"summaries"`
	Authors   map[string]string `json:"authors"`
	Titles    []string          `json:"titles"`
	Queries   []string          `json:"queries"`
}

// Documents converts the summary map into id-ordered documents. A key that is
// not an integer makes the payload unusable.
func (p *Payload) Documents() ([]Document, error) {
	docs := make([]Document, 0, len(p.Summaries))
	for key, text := range p.Summaries {
		id, err := parseID(key)
		if err != nil {
			return nil, err
		}
		docs = append(docs, Document{ID: id, Text: text})
	}
	sort.Slice(docs, func(i, j int) bool {
		return docs[i].ID < docs[j].ID
	})
	return docs, nil
}

func parseID(key string) (int, error) {
	id, err := strconv.Atoi(key)
	if err != nil {
		return 0, apperrors.Configf("corpus key %q is not an integer document id", key)
	}
	return id, nil
}
