package segment

import (
	"bufio"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"strconv"
	"strings"

	"github.com/Adithya-Monish-Kumar-K/summary-search/internal/indexer/index"
	apperrors "github.com/Adithya-Monish-Kumar-K/summary-search/pkg/errors"
)

const maxLineSize = 64 << 20

// ParseError reports a malformed index line. Line is 1-based; the header is
// line 1.
type ParseError struct {
	Line   int
	Reason string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("index line %d: %s", e.Line, e.Reason)
}

func (e *ParseError) Unwrap() error {
	return apperrors.ErrParse
}

// ReadFile loads the index file at path. A missing or unreadable file is a
// configuration error; a malformed one is a *ParseError. No partial snapshot
// is ever returned.
func ReadFile(path string) (*index.Snapshot, error) {
	snap, _, err := ReadFileVersion(path)
	return snap, err
}

// Version describes the bytes a snapshot was decoded from. Info comes from the
// open descriptor, so it matches those bytes even if the path is replaced
// concurrently. Digest is the hex sha256 of the file content.
type Version struct {
	Info   os.FileInfo
	Digest string
}

// ReadFileVersion is ReadFile that also reports which version of the file it
// decoded.
func ReadFileVersion(path string) (*index.Snapshot, Version, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, Version{}, apperrors.Configf("opening index file: %v", err)
	}
	defer f.Close()
	info, err := f.Stat()
	if err != nil {
		return nil, Version{}, apperrors.Configf("stat index file %s: %v", path, err)
	}
	h := sha256.New()
	snap, err := Decode(io.TeeReader(f, h))
	if err != nil {
		var perr *ParseError
		if errors.As(err, &perr) {
			return nil, Version{}, fmt.Errorf("reading %s: %w", path, err)
		}
		return nil, Version{}, apperrors.Configf("reading index file %s: %v", path, err)
	}
	return snap, Version{Info: info, Digest: hex.EncodeToString(h.Sum(nil))}, nil
}

// Decode parses an index from r.
func Decode(r io.Reader) (*index.Snapshot, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineSize)

	if !scanner.Scan() {
		if err := scanner.Err(); err != nil {
			return nil, fmt.Errorf("reading header: %w", err)
		}
		return nil, &ParseError{Line: 1, Reason: "missing document count"}
	}
	numDocs, err := strconv.Atoi(strings.TrimSpace(scanner.Text()))
	if err != nil || numDocs < 0 {
		return nil, &ParseError{Line: 1, Reason: fmt.Sprintf("invalid document count %q", scanner.Text())}
	}

	var entries []index.TermEntry
	seen := make(map[string]struct{})
	lineNo := 1
	for scanner.Scan() {
		lineNo++
		entry, reason := parseLine(strings.TrimRight(scanner.Text(), "\r"))
		if reason != "" {
			return nil, &ParseError{Line: lineNo, Reason: reason}
		}
		if _, dup := seen[entry.Term]; dup {
			return nil, &ParseError{Line: lineNo, Reason: fmt.Sprintf("duplicate term %q", entry.Term)}
		}
		if entry.DocFreq() > numDocs {
			return nil, &ParseError{Line: lineNo, Reason: fmt.Sprintf("term %q occurs in %d documents, index has %d", entry.Term, entry.DocFreq(), numDocs)}
		}
		seen[entry.Term] = struct{}{}
		entries = append(entries, entry)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("reading line %d: %w", lineNo+1, err)
	}
	return index.NewSnapshot(numDocs, entries), nil
}

// parseLine returns a non-empty reason when the line is malformed.
func parseLine(line string) (index.TermEntry, string) {
	fields := strings.Split(line, fieldSep)
	if len(fields) != 4 {
		return index.TermEntry{}, fmt.Sprintf("expected 4 fields, got %d", len(fields))
	}
	term := fields[0]
	if term == "" {
		return index.TermEntry{}, "empty term"
	}
	entry := index.TermEntry{Term: term}

	docs := make(map[int]struct{})
	for _, raw := range strings.Split(fields[1], postingSep) {
		docAndPositions := strings.Split(raw, docSep)
		if len(docAndPositions) != 2 {
			return index.TermEntry{}, fmt.Sprintf("term %q: malformed posting %q", term, raw)
		}
		docID, err := strconv.Atoi(docAndPositions[0])
		if err != nil {
			return index.TermEntry{}, fmt.Sprintf("term %q: non-numeric document id %q", term, docAndPositions[0])
		}
		// Candidate sets hold document ids as uint32.
		if docID < 0 || int64(docID) > math.MaxUint32 {
			return index.TermEntry{}, fmt.Sprintf("term %q: document id %d out of range", term, docID)
		}
		if _, dup := docs[docID]; dup {
			return index.TermEntry{}, fmt.Sprintf("term %q: document %d listed twice", term, docID)
		}
		docs[docID] = struct{}{}
		var positions []int
		for _, p := range strings.Split(docAndPositions[1], listSep) {
			pos, err := strconv.Atoi(p)
			if err != nil {
				return index.TermEntry{}, fmt.Sprintf("term %q doc %d: non-numeric position %q", term, docID, p)
			}
			if pos < 0 {
				return index.TermEntry{}, fmt.Sprintf("term %q doc %d: negative position %d", term, docID, pos)
			}
			positions = append(positions, pos)
		}
		entry.Postings = append(entry.Postings, index.Posting{DocID: docID, Positions: positions})
	}

	for _, raw := range strings.Split(fields[2], listSep) {
		tf, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return index.TermEntry{}, fmt.Sprintf("term %q: invalid tf %q", term, raw)
		}
		entry.TF = append(entry.TF, tf)
	}

	idf, err := strconv.ParseFloat(fields[3], 64)
	if err != nil {
		return index.TermEntry{}, fmt.Sprintf("term %q: invalid idf %q", term, fields[3])
	}
	entry.IDF = idf

	if err := entry.Validate(); err != nil {
		return index.TermEntry{}, err.Error()
	}
	return entry, ""
}
