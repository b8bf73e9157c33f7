package corpus

import (
	"context"
	"log/slog"
	"os"
	"strconv"
	"sync"
	"time"

	apperrors "github.com/Adithya-Monish-Kumar-K/summary-search/pkg/errors"
)

// FileStore serves a transformed corpus JSON file. It re-reads the file when
// its size or modification time changes, so a rebuilt corpus is picked up
// together with the rebuilt index.
type FileStore struct {
	path    string
	mu      sync.Mutex
	payload *Payload
	modTime time.Time
	size    int64
	logger  *slog.Logger
}

// OpenFileStore loads the corpus at path.
func OpenFileStore(path string) (*FileStore, error) {
	s := &FileStore{
		path:   path,
		logger: slog.Default().With("component", "corpus-file"),
	}
	if _, err := s.current(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *FileStore) current() (*Payload, error) {
	info, err := os.Stat(s.path)
	if err != nil {
		return nil, apperrors.Configf("stat corpus file: %v", err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.payload != nil && info.ModTime().Equal(s.modTime) && info.Size() == s.size {
		return s.payload, nil
	}
	p, err := ReadPayload(s.path)
	if err != nil {
		return nil, err
	}
	s.payload, s.modTime, s.size = p, info.ModTime(), info.Size()
	s.logger.Info("corpus loaded", "path", s.path, "summaries", len(p.Summaries), "authors", len(p.Authors))
	return p, nil
}

func (s *FileStore) Documents(ctx context.Context) ([]Document, error) {
	p, err := s.current()
	if err != nil {
		return nil, err
	}
	return p.Documents()
}

func (s *FileStore) Lookup(ctx context.Context, ids []int) (map[int]string, error) {
	p, err := s.current()
	if err != nil {
		return nil, err
	}
	out := make(map[int]string, len(ids))
	for _, id := range ids {
		if text, ok := p.Summaries[strconv.Itoa(id)]; ok {
			out[id] = text
		}
	}
	return out, nil
}

func (s *FileStore) Author(ctx context.Context, id int) (string, bool, error) {
	p, err := s.current()
	if err != nil {
		return "", false, err
	}
	author, ok := p.Authors[strconv.Itoa(id)]
	return author, ok, nil
}

// Payload returns the currently loaded payload.
func (s *FileStore) Payload() (*Payload, error) {
	return s.current()
}

func (s *FileStore) Close() error {
	return nil
}
