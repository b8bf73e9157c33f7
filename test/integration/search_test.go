// Package integration wires the build and query stack together behind an
// httptest server: real index files, corpus store, service, handler and
// middleware, with Redis and Kafka replaced by in-process fakes.
package integration

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"path"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"

	"github.com/Adithya-Monish-Kumar-K/summary-search/internal/corpus"
	"github.com/Adithya-Monish-Kumar-K/summary-search/internal/indexer"
	"github.com/Adithya-Monish-Kumar-K/summary-search/internal/indexer/events"
	"github.com/Adithya-Monish-Kumar-K/summary-search/internal/indexer/tokenizer"
	"github.com/Adithya-Monish-Kumar-K/summary-search/internal/searcher"
	"github.com/Adithya-Monish-Kumar-K/summary-search/internal/searcher/cache"
	"github.com/Adithya-Monish-Kumar-K/summary-search/internal/searcher/enrich"
	"github.com/Adithya-Monish-Kumar-K/summary-search/internal/searcher/handler"
	"github.com/Adithya-Monish-Kumar-K/summary-search/internal/searcher/loader"
	"github.com/Adithya-Monish-Kumar-K/summary-search/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/summary-search/pkg/kafka"
	"github.com/Adithya-Monish-Kumar-K/summary-search/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/summary-search/pkg/middleware"
)

// ---------------------------------------------------------------------------
// Fakes
// ---------------------------------------------------------------------------

type memRedis struct {
	mu   sync.Mutex
	data map[string]string
}

func (m *memRedis) Get(_ context.Context, key string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.data[key]
	if !ok {
		return "", redis.Nil
	}
	return v, nil
}

func (m *memRedis) Set(_ context.Context, key string, value interface{}, _ time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[key] = string(value.([]byte))
	return nil
}

func (m *memRedis) FlushByPattern(_ context.Context, pattern string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	for k := range m.data {
		if ok, _ := path.Match(pattern, k); ok {
			delete(m.data, k)
			n++
		}
	}
	return n, nil
}

func (m *memRedis) CountByPattern(_ context.Context, pattern string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	for k := range m.data {
		if ok, _ := path.Match(pattern, k); ok {
			n++
		}
	}
	return n, nil
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []kafka.Event
}

func (p *recordingPublisher) Publish(_ context.Context, ev kafka.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, ev)
	return nil
}

func (p *recordingPublisher) last(t *testing.T) kafka.Event {
	t.Helper()
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.events) == 0 {
		t.Fatal("no index events published")
	}
	return p.events[len(p.events)-1]
}

// ---------------------------------------------------------------------------
// Stack
// ---------------------------------------------------------------------------

type stack struct {
	server     *httptest.Server
	corpusPath string
	engine     *indexer.Engine
	store      *corpus.FileStore
	cache      *cache.QueryCache[*searcher.Response]
	published  *recordingPublisher
}

var library = &corpus.Payload{
	Summaries: map[string]string{
		"0": "A wizard at school",
		"1": "A dragon guards the island",
		"2": "The wizard fights the dragon",
	},
	Authors: map[string]string{"0": "Rowling", "1": "Tolkien", "2": "Le Guin"},
}

func newStack(t *testing.T) *stack {
	t.Helper()
	dir := t.TempDir()
	s := &stack{
		corpusPath: filepath.Join(dir, "transformed_data.json"),
		published:  &recordingPublisher{},
	}
	indexPath := filepath.Join(dir, "index.txt")
	tok := tokenizer.New([]string{"a", "at", "the"})
	m := metrics.New(prometheus.NewRegistry())

	if err := corpus.WritePayload(s.corpusPath, library); err != nil {
		t.Fatal(err)
	}
	store, err := corpus.OpenFileStore(s.corpusPath)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { store.Close() })
	s.store = store

	s.engine = indexer.NewEngine(tok, indexPath, m)
	s.engine.SetPublisher(s.published)
	s.rebuild(t, library)

	src, err := loader.New(config.PolicyFingerprint, indexPath, m)
	if err != nil {
		t.Fatal(err)
	}
	svc := searcher.NewService(tok, src, store, m)
	s.cache = cache.New[*searcher.Response](&memRedis{data: map[string]string{}}, time.Minute, m)
	svc.SetCache(s.cache)

	h := handler.New(svc, enrich.NewStoreAuthors(store), s.cache, 10, 50)
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/v1/search", h.Search)
	mux.HandleFunc("POST /api/v1/search", h.Batch)
	mux.HandleFunc("GET /api/v1/cache/stats", h.CacheStats)
	mux.HandleFunc("POST /api/v1/cache/invalidate", h.CacheInvalidate)

	var chain http.Handler = mux
	chain = middleware.Timeout(5 * time.Second)(chain)
	chain = middleware.Metrics(m)(chain)
	chain = middleware.RequestID(chain)

	s.server = httptest.NewServer(chain)
	t.Cleanup(s.server.Close)
	return s
}

func (s *stack) rebuild(t *testing.T, p *corpus.Payload) {
	t.Helper()
	if err := corpus.WritePayload(s.corpusPath, p); err != nil {
		t.Fatal(err)
	}
	docs, err := p.Documents()
	if err != nil {
		t.Fatal(err)
	}
	if _, err := s.engine.Build(context.Background(), docs); err != nil {
		t.Fatal(err)
	}
}

func (s *stack) search(t *testing.T, q string) (*http.Response, searcher.Response) {
	t.Helper()
	resp, err := http.Get(s.server.URL + "/api/v1/search?q=" + url.QueryEscape(q))
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	var body searcher.Response
	if resp.StatusCode == http.StatusOK {
		if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
			t.Fatal(err)
		}
	}
	return resp, body
}

func ids(resp searcher.Response) []int {
	out := make([]int, 0, len(resp.Matches))
	for _, m := range resp.Matches {
		out = append(out, m.ID)
	}
	return out
}

func equalInts(a, b []int) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// ---------------------------------------------------------------------------
// Tests
// ---------------------------------------------------------------------------

func TestSearchThroughHTTP(t *testing.T) {
	s := newStack(t)

	tests := []struct {
		query  string
		status string
		ids    []int
	}{
		{"wizard", "matches", []int{0, 2}},
		{"dragon island", "matches", []int{1, 2}},
		{`"wizard fights"`, "matches", []int{2}},
		{"spaceship", "no_results", []int{}},
		{"the", "no_results", []int{}},
		{"at the", "empty_query", []int{}},
	}
	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			resp, body := s.search(t, tt.query)
			if resp.StatusCode != http.StatusOK {
				t.Fatalf("status code = %d", resp.StatusCode)
			}
			if resp.Header.Get(middleware.RequestIDHeader) == "" {
				t.Error("missing request id header")
			}
			if body.Outcome.String() != tt.status {
				t.Errorf("status = %s, want %s", body.Outcome, tt.status)
			}
			if got := ids(body); !equalInts(got, tt.ids) {
				t.Errorf("ids = %v, want %v", got, tt.ids)
			}
		})
	}
}

func TestBatchEnrichesWithAuthors(t *testing.T) {
	s := newStack(t)

	body := `{"K": 2, "queries": ["wizard", "spaceship", "\"wizard fights\""]}`
	resp, err := http.Post(s.server.URL+"/api/v1/search", "application/json", strings.NewReader(body))
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status code = %d", resp.StatusCode)
	}

	var got [][]handler.BatchItem
	if err := json.NewDecoder(resp.Body).Decode(&got); err != nil {
		t.Fatal(err)
	}
	want := [][]handler.BatchItem{
		{
			{ID: 0, Summary: "A wizard at school", Query: "wizard", Author: "Rowling"},
			{ID: 2, Summary: "The wizard fights the dragon", Query: "wizard", Author: "Le Guin"},
		},
		{
			{ID: 2, Summary: "The wizard fights the dragon", Query: `"wizard fights"`, Author: "Le Guin"},
		},
	}
	if len(got) != len(want) {
		t.Fatalf("lists = %d, want %d: %+v", len(got), len(want), got)
	}
	for i := range want {
		if len(got[i]) != len(want[i]) {
			t.Fatalf("list %d = %+v", i, got[i])
		}
		for j := range want[i] {
			if got[i][j] != want[i][j] {
				t.Errorf("item %d/%d = %+v, want %+v", i, j, got[i][j], want[i][j])
			}
		}
	}
}

func TestRebuildInvalidatesCache(t *testing.T) {
	s := newStack(t)
	ctx := context.Background()

	s.search(t, "wizard")
	s.search(t, "wizard")
	stats, err := s.cache.Stats(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if stats.Hits != 1 || stats.Keys != 1 {
		t.Fatalf("stats = %+v, want one hit and one key", stats)
	}

	grown := &corpus.Payload{Summaries: map[string]string{}, Authors: library.Authors}
	for k, v := range library.Summaries {
		grown.Summaries[k] = v
	}
	grown.Summaries["3"] = "wizard wizard wizard"
	s.rebuild(t, grown)

	var invalidated int64
	consume := events.HandleIndexBuilt(func(ctx context.Context, ev events.IndexBuilt) error {
		if ev.NumDocs != 4 {
			return errors.New("unexpected document count")
		}
		n, err := s.cache.Invalidate(ctx)
		invalidated = n
		return err
	})
	ev := s.published.last(t)
	value, err := json.Marshal(ev.Value)
	if err != nil {
		t.Fatal(err)
	}
	if err := consume(ctx, []byte(ev.Key), value); err != nil {
		t.Fatal(err)
	}
	if invalidated != 1 {
		t.Errorf("invalidated = %d, want 1", invalidated)
	}

	_, body := s.search(t, "wizard")
	if got := ids(body); !equalInts(got, []int{3, 0, 2}) {
		t.Errorf("ids after rebuild = %v, want [3 0 2]", got)
	}
}
