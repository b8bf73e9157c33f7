// Package segment reads and writes the line-oriented index file shared by the
// indexer and the query service:
//
//	<numDocuments>
//	<term>|<docId>:<p1>,<p2>;<docId>:<p1>|<tf1>,<tf2>|<idf>
//
// tf and idf are written with four decimals. Lines are ordered by term.
package segment

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/Adithya-Monish-Kumar-K/summary-search/internal/indexer/index"
)

// Field separators of the index file.
const (
	fieldSep    = "|"
	postingSep  = ";"
	docSep      = ":"
	listSep     = ","
	weightDigit = 4
)

// Writer publishes index snapshots to a fixed path.
type Writer struct {
	path string
}

// NewWriter creates a Writer for the index file at path.
func NewWriter(path string) *Writer {
	return &Writer{path: path}
}

func (w *Writer) Path() string {
	return w.path
}

// Write atomically replaces the index file with snap. It writes to a .tmp
// file first, syncs it and renames on success, so readers only ever see a
// complete index. It returns the number of bytes published.
func (w *Writer) Write(snap *index.Snapshot) (int64, error) {
	dir := filepath.Dir(w.path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return 0, fmt.Errorf("creating index directory: %w", err)
	}
	tmpPath := w.path + ".tmp"
	f, err := os.Create(tmpPath)
	if err != nil {
		return 0, fmt.Errorf("creating temp index file: %w", err)
	}
	published := false
	defer func() {
		if !published {
			f.Close()
			os.Remove(tmpPath)
		}
	}()

	cw := &countingWriter{w: f}
	if err := Encode(cw, snap); err != nil {
		return 0, err
	}
	if err := f.Sync(); err != nil {
		return 0, fmt.Errorf("syncing index file: %w", err)
	}
	if err := f.Close(); err != nil {
		return 0, fmt.Errorf("closing index file: %w", err)
	}
	if err := os.Rename(tmpPath, w.path); err != nil {
		return 0, fmt.Errorf("renaming index file: %w", err)
	}
	published = true
	return cw.n, nil
}

// Encode writes snap in index file format.
func Encode(w io.Writer, snap *index.Snapshot) error {
	bw := bufio.NewWriter(w)
	if _, err := fmt.Fprintf(bw, "%d\n", snap.NumDocs()); err != nil {
		return fmt.Errorf("writing header: %w", err)
	}
	for _, entry := range snap.Entries() {
		if _, err := bw.WriteString(encodeLine(entry)); err != nil {
			return fmt.Errorf("writing term %q: %w", entry.Term, err)
		}
		if err := bw.WriteByte('\n'); err != nil {
			return fmt.Errorf("writing term %q: %w", entry.Term, err)
		}
	}
	if err := bw.Flush(); err != nil {
		return fmt.Errorf("flushing index: %w", err)
	}
	return nil
}

func encodeLine(entry *index.TermEntry) string {
	postings := make([]string, len(entry.Postings))
	for i, p := range entry.Postings {
		positions := make([]string, len(p.Positions))
		for j, pos := range p.Positions {
			positions[j] = strconv.Itoa(pos)
		}
		postings[i] = strconv.Itoa(p.DocID) + docSep + strings.Join(positions, listSep)
	}
	tfs := make([]string, len(entry.TF))
	for i, tf := range entry.TF {
		tfs[i] = formatWeight(tf)
	}
	return strings.Join([]string{
		entry.Term,
		strings.Join(postings, postingSep),
		strings.Join(tfs, listSep),
		formatWeight(entry.IDF),
	}, fieldSep)
}

func formatWeight(v float64) string {
	return strconv.FormatFloat(v, 'f', weightDigit, 64)
}

type countingWriter struct {
	w io.Writer
	n int64
}

func (c *countingWriter) Write(p []byte) (int, error) {
	n, err := c.w.Write(p)
	c.n += int64(n)
	return n, err
}
