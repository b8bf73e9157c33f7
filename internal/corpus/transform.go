package corpus

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"

	apperrors "github.com/Adithya-Monish-Kumar-K/summary-search/pkg/errors"
)

type rawSummary struct {
	ID      int    `json:"id"`
	Summary string `json:"summary"`
}

type rawAuthor struct {
	BookID int    `json:"book_id"`
	Author string `json:"author"`
}

type rawData struct {
	Summaries []rawSummary `json:"summaries"`
	Authors   []rawAuthor  `json:"authors"`
	Titles    []string     `json:"titles"`
	Queries   []string     `json:"queries"`
}

// Transform converts scraped data ({summaries:[{id,summary}],
// authors:[{book_id,author}], titles, queries}) into a Payload keyed by id.
func Transform(r io.Reader) (*Payload, error) {
	var raw rawData
	if err := json.NewDecoder(r).Decode(&raw); err != nil {
		return nil, fmt.Errorf("%w: decoding raw corpus: %v", apperrors.ErrInvalidInput, err)
	}
	p := &Payload{
		Summaries: make(map[string]string, len(raw.Summaries)),
		Authors:   make(map[string]string, len(raw.Authors)),
		Titles:    raw.Titles,
		Queries:   raw.Queries,
	}
	for _, s := range raw.Summaries {
		key := strconv.Itoa(s.ID)
		if _, dup := p.Summaries[key]; dup {
			return nil, fmt.Errorf("%w: duplicate summary id %d", apperrors.ErrInvalidInput, s.ID)
		}
		p.Summaries[key] = s.Summary
	}
	for _, a := range raw.Authors {
		p.Authors[strconv.Itoa(a.BookID)] = a.Author
	}
	return p, nil
}

// TransformFile reads raw data from src and publishes the payload to dst.
func TransformFile(src, dst string) (*Payload, error) {
	f, err := os.Open(src)
	if err != nil {
		return nil, apperrors.Configf("opening raw data file: %v", err)
	}
	defer f.Close()
	p, err := Transform(f)
	if err != nil {
		return nil, fmt.Errorf("transforming %s: %w", src, err)
	}
	if err := WritePayload(dst, p); err != nil {
		return nil, err
	}
	return p, nil
}

// WritePayload writes p as JSON to path via a temp file and rename.
func WritePayload(path string, p *Payload) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("creating corpus directory: %w", err)
	}
	data, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("marshaling corpus: %w", err)
	}
	tmpPath := path + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0644); err != nil {
		return fmt.Errorf("writing temp corpus file: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("renaming corpus file: %w", err)
	}
	return nil
}

// ReadPayload loads a transformed corpus file.
func ReadPayload(path string) (*Payload, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, apperrors.Configf("reading corpus file: %v", err)
	}
	var p Payload
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, apperrors.Configf("parsing corpus file %s: %v", path, err)
	}
	if p.Summaries == nil {
		p.Summaries = map[string]string{}
	}
	if p.Authors == nil {
		p.Authors = map[string]string{}
	}
	return &p, nil
}
