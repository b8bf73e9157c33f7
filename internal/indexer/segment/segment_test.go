package segment

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"math"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"

	"github.com/Adithya-Monish-Kumar-K/summary-search/internal/indexer/index"
	"github.com/Adithya-Monish-Kumar-K/summary-search/internal/indexer/tokenizer"
	apperrors "github.com/Adithya-Monish-Kumar-K/summary-search/pkg/errors"
)

const nawazIndex = `2
book|0:0;1:0|0.5774,0.5774|1.0000
literature|0:2|0.5774|2.0000
nawaz|0:1;1:1|0.5774,0.5774|1.0000
science|1:2|0.5774|2.0000
`

func nawazSnapshot(t *testing.T) *index.Snapshot {
	t.Helper()
	b := index.NewBuilder(tokenizer.New([]string{"by", "on"}))
	for id, text := range []string{"Book by nawaz on literature", "Book by nawaz on science"} {
		if err := b.AddDocument(id, text); err != nil {
			t.Fatal(err)
		}
	}
	return b.Snapshot()
}

func TestEncodeNawaz(t *testing.T) {
	var buf bytes.Buffer
	if err := Encode(&buf, nawazSnapshot(t)); err != nil {
		t.Fatalf("Encode: %v", err)
	}
	if buf.String() != nawazIndex {
		t.Errorf("Encode() =\n%s\nwant\n%s", buf.String(), nawazIndex)
	}
}

func TestRoundTrip(t *testing.T) {
	b := index.NewBuilder(tokenizer.New([]string{"the"}))
	docs := []string{
		"the rose is a rose is a rose",
		"red rose and white lily",
		"the the the",
		"lily of the valley, lily pad",
	}
	for id, text := range docs {
		if err := b.AddDocument(id*10, text); err != nil {
			t.Fatal(err)
		}
	}
	orig := b.Snapshot()

	var buf bytes.Buffer
	if err := Encode(&buf, orig); err != nil {
		t.Fatal(err)
	}
	got, err := Decode(&buf)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if got.NumDocs() != orig.NumDocs() || got.TermCount() != orig.TermCount() {
		t.Fatalf("got %d docs/%d terms, want %d/%d", got.NumDocs(), got.TermCount(), orig.NumDocs(), orig.TermCount())
	}
	for _, want := range orig.Entries() {
		entry, ok := got.Lookup(want.Term)
		if !ok {
			t.Fatalf("term %q lost", want.Term)
		}
		if !reflect.DeepEqual(entry.Postings, want.Postings) {
			t.Errorf("postings(%q) = %v, want %v", want.Term, entry.Postings, want.Postings)
		}
		if len(entry.TF) != len(want.TF) {
			t.Fatalf("tf(%q) length %d, want %d", want.Term, len(entry.TF), len(want.TF))
		}
		for i := range want.TF {
			if math.Abs(entry.TF[i]-want.TF[i]) > 0.00005 {
				t.Errorf("tf(%q)[%d] = %v, want ~%v", want.Term, i, entry.TF[i], want.TF[i])
			}
		}
		if math.Abs(entry.IDF-want.IDF) > 0.00005 {
			t.Errorf("idf(%q) = %v, want ~%v", want.Term, entry.IDF, want.IDF)
		}
	}
}

func TestDecodeMalformed(t *testing.T) {
	tests := []struct {
		name string
		in   string
		line int
	}{
		{"empty file", "", 1},
		{"bad header", "two\n", 1},
		{"negative header", "-1\n", 1},
		{"too few fields", "1\nbook|0:0|1.0000\n", 2},
		{"too many fields", "1\nbook|0:0|1.0000|1.0000|x\n", 2},
		{"non numeric doc", "1\nbook|a:0|1.0000|1.0000\n", 2},
		{"non numeric position", "1\nbook|0:x|1.0000|1.0000\n", 2},
		{"missing positions", "1\nbook|0:|1.0000|1.0000\n", 2},
		{"tf misaligned", "2\nbook|0:0;1:0|1.0000|1.0000\n", 2},
		{"bad idf", "1\nbook|0:0|1.0000|inf?\n", 2},
		{"unsorted positions", "1\nbook|0:3,1|1.0000|1.0000\n", 2},
		{"blank line", "1\nbook|0:0|1.0000|1.0000\n\nrose|0:1|1.0000|1.0000\n", 3},
		{"duplicate term", "1\nbook|0:0|1.0000|1.0000\nbook|0:1|1.0000|1.0000\n", 3},
		{"df above doc count", "1\nbook|0:0;1:0|1.0000,1.0000|0.5000\n", 2},
		{"negative doc id", "2\nbook|-1:0|1.0000|2.0000\n", 2},
		{"doc id above uint32", "2\nbook|4294967296:0|1.0000|2.0000\n", 2},
		{"wrapping doc ids", "2\nbook|-1:0;4294967296:0|0.5000,0.5000|1.0000\n", 2},
		{"negative position", "1\nbook|0:-1|1.0000|1.0000\n", 2},
		{"repeated doc", "2\nbook|0:0;0:1|1.0000,1.0000|1.0000\n", 2},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			snap, err := Decode(strings.NewReader(tt.in))
			if snap != nil {
				t.Error("malformed input must not yield a snapshot")
			}
			var perr *ParseError
			if !errors.As(err, &perr) {
				t.Fatalf("Decode() error = %v, want *ParseError", err)
			}
			if perr.Line != tt.line {
				t.Errorf("ParseError.Line = %d, want %d (%v)", perr.Line, tt.line, perr)
			}
			if !errors.Is(err, apperrors.ErrParse) {
				t.Error("ParseError must unwrap to ErrParse")
			}
		})
	}
}

func TestDecodeEmptyIndex(t *testing.T) {
	snap, err := Decode(strings.NewReader("0\n"))
	if err != nil {
		t.Fatal(err)
	}
	if snap.NumDocs() != 0 || snap.TermCount() != 0 {
		t.Errorf("got %d docs/%d terms", snap.NumDocs(), snap.TermCount())
	}
}

func TestWriterPublishesAtomically(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "index.txt")
	w := NewWriter(path)
	n, err := w.Write(nawazSnapshot(t))
	if err != nil {
		t.Fatalf("Write: %v", err)
	}
	if n != int64(len(nawazIndex)) {
		t.Errorf("Write() bytes = %d, want %d", n, len(nawazIndex))
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != nawazIndex {
		t.Errorf("file content mismatch:\n%s", data)
	}
	if _, err := os.Stat(path + ".tmp"); !os.IsNotExist(err) {
		t.Error("temp file must not survive a successful write")
	}

	snap, err := ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	if snap.TermCount() != 4 {
		t.Errorf("TermCount() = %d", snap.TermCount())
	}
}

func TestWriterFailureKeepsPreviousIndex(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "index.txt")
	if err := os.WriteFile(path, []byte(nawazIndex), 0o644); err != nil {
		t.Fatal(err)
	}
	// A directory squatting on the temp name makes the write fail up front.
	if err := os.Mkdir(path+".tmp", 0o755); err != nil {
		t.Fatal(err)
	}
	if _, err := NewWriter(path).Write(index.NewSnapshot(0, nil)); err == nil {
		t.Fatal("Write() = nil, want error")
	}
	data, _ := os.ReadFile(path)
	if string(data) != nawazIndex {
		t.Error("failed write must leave the published index untouched")
	}
}

func TestReadFileMissing(t *testing.T) {
	_, err := ReadFile(filepath.Join(t.TempDir(), "index.txt"))
	if !errors.Is(err, apperrors.ErrConfiguration) {
		t.Fatalf("ReadFile() error = %v, want ErrConfiguration", err)
	}
}

func TestReadFileVersion(t *testing.T) {
	path := filepath.Join(t.TempDir(), "index.txt")
	if err := os.WriteFile(path, []byte(nawazIndex), 0o644); err != nil {
		t.Fatal(err)
	}
	snap, v, err := ReadFileVersion(path)
	if err != nil {
		t.Fatal(err)
	}
	if snap.NumDocs() != 2 {
		t.Errorf("NumDocs() = %d", snap.NumDocs())
	}
	sum := sha256.Sum256([]byte(nawazIndex))
	if v.Digest != hex.EncodeToString(sum[:]) {
		t.Errorf("Digest = %s, want sha256 of the file", v.Digest)
	}
	if v.Info.Size() != int64(len(nawazIndex)) {
		t.Errorf("Info.Size() = %d", v.Info.Size())
	}
}
