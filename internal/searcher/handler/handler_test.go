package handler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/Adithya-Monish-Kumar-K/summary-search/internal/searcher"
	"github.com/Adithya-Monish-Kumar-K/summary-search/internal/searcher/cache"
	"github.com/Adithya-Monish-Kumar-K/summary-search/internal/searcher/executor"
	"github.com/Adithya-Monish-Kumar-K/summary-search/internal/searcher/materializer"
	apperrors "github.com/Adithya-Monish-Kumar-K/summary-search/pkg/errors"
)

type fakeService struct {
	responses map[string]*searcher.Response
	err       error
	lastK     int
}

func (f *fakeService) Query(_ context.Context, raw string, k int) (*searcher.Response, error) {
	f.lastK = k
	if f.err != nil {
		return nil, f.err
	}
	if resp, ok := f.responses[raw]; ok {
		return resp, nil
	}
	return &searcher.Response{Query: raw, Type: "free_text", Outcome: executor.OutcomeMatches, Matches: []materializer.Record{}}, nil
}

type fakeAuthors map[int]string

func (f fakeAuthors) Author(_ context.Context, id int) (string, error) {
	name, ok := f[id]
	if !ok {
		return "", fmt.Errorf("author service: %w", apperrors.ErrUnavailable)
	}
	return name, nil
}

type fakeCache struct {
	stats       cache.Stats
	invalidated int
}

func (f *fakeCache) Invalidate(context.Context) (int64, error) {
	f.invalidated++
	return f.stats.Keys, nil
}

func (f *fakeCache) Stats(context.Context) (cache.Stats, error) { return f.stats, nil }

func nawazService() *fakeService {
	return &fakeService{responses: map[string]*searcher.Response{
		"nawaz": {
			Query: "nawaz", Type: "one_word", Outcome: executor.OutcomeMatches,
			Matches: []materializer.Record{
				{ID: 1, Text: "Book by nawaz on science"},
				{ID: 0, Text: "Book by nawaz on literature"},
			},
		},
		"xyz": {Query: "xyz", Type: "one_word", Outcome: executor.OutcomeNoTermInIndex, Matches: []materializer.Record{}},
		"by":  {Query: "by", Type: "one_word", Outcome: executor.OutcomeNoTermInIndex, Matches: []materializer.Record{}},
	}}
}

func TestSearch(t *testing.T) {
	svc := nawazService()
	h := New(svc, nil, nil, 10, 50)

	tests := []struct {
		name   string
		url    string
		status int
		k      int
		out    string
	}{
		{"matches", "/api/v1/search?q=nawaz", http.StatusOK, 10, "matches"},
		{"no term", "/api/v1/search?q=xyz&k=3", http.StatusOK, 3, "no_results"},
		{"clamped", "/api/v1/search?q=nawaz&k=500", http.StatusOK, 50, "matches"},
		{"missing q", "/api/v1/search", http.StatusBadRequest, 0, ""},
		{"bad k", "/api/v1/search?q=nawaz&k=0", http.StatusBadRequest, 0, ""},
		{"non-numeric k", "/api/v1/search?q=nawaz&k=ten", http.StatusBadRequest, 0, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc.lastK = 0
			rec := httptest.NewRecorder()
			h.Search(rec, httptest.NewRequest(http.MethodGet, tt.url, nil))
			if rec.Code != tt.status {
				t.Fatalf("status = %d, want %d: %s", rec.Code, tt.status, rec.Body)
			}
			if tt.status != http.StatusOK {
				return
			}
			if svc.lastK != tt.k {
				t.Errorf("k = %d, want %d", svc.lastK, tt.k)
			}
			var body map[string]any
			if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
				t.Fatal(err)
			}
			if body["status"] != tt.out {
				t.Errorf("status field = %v, want %s", body["status"], tt.out)
			}
		})
	}
}

func TestSearchErrors(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
		leaks  bool
	}{
		{"configuration", apperrors.Configf("index file %q: missing", "/secret/index.txt"), http.StatusInternalServerError, false},
		{"unavailable", fmt.Errorf("corpus: %w", apperrors.ErrUnavailable), http.StatusServiceUnavailable, false},
		{"invalid", apperrors.New(apperrors.ErrInvalidInput, http.StatusBadRequest, "k must be positive"), http.StatusBadRequest, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := New(&fakeService{err: tt.err}, nil, nil, 10, 50)
			rec := httptest.NewRecorder()
			h.Search(rec, httptest.NewRequest(http.MethodGet, "/api/v1/search?q=a", nil))
			if rec.Code != tt.status {
				t.Fatalf("status = %d, want %d", rec.Code, tt.status)
			}
			if got := strings.Contains(rec.Body.String(), tt.err.Error()); got != tt.leaks {
				t.Errorf("body %q exposes error = %v, want %v", rec.Body, got, tt.leaks)
			}
		})
	}
}

func TestBatch(t *testing.T) {
	authors := fakeAuthors{0: "Nawaz", 1: "Nawaz"}
	h := New(nawazService(), authors, nil, 10, 50)

	body := `{"K": 3, "queries": ["nawaz", "xyz", "by", "nothing here"]}`
	rec := httptest.NewRecorder()
	h.Batch(rec, httptest.NewRequest(http.MethodPost, "/api/v1/search", strings.NewReader(body)))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", rec.Code, rec.Body)
	}

	var got [][]BatchItem
	if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
		t.Fatal(err)
	}
	if len(got) != 1 {
		t.Fatalf("answered queries = %d, want 1: %+v", len(got), got)
	}
	want := []BatchItem{
		{ID: 1, Summary: "Book by nawaz on science", Query: "nawaz", Author: "Nawaz"},
		{ID: 0, Summary: "Book by nawaz on literature", Query: "nawaz", Author: "Nawaz"},
	}
	if len(got[0]) != len(want) {
		t.Fatalf("items = %+v", got[0])
	}
	for i := range want {
		if got[0][i] != want[i] {
			t.Errorf("item %d = %+v, want %+v", i, got[0][i], want[i])
		}
	}
}

func TestBatchRejectsBadInput(t *testing.T) {
	h := New(nawazService(), nil, nil, 10, 50)
	for _, body := range []string{`not json`, `{"K": 0, "queries": ["a"]}`} {
		rec := httptest.NewRecorder()
		h.Batch(rec, httptest.NewRequest(http.MethodPost, "/api/v1/search", strings.NewReader(body)))
		if rec.Code != http.StatusBadRequest {
			t.Errorf("body %q: status = %d, want 400", body, rec.Code)
		}
	}
}

func TestBatchAuthorFailure(t *testing.T) {
	h := New(nawazService(), fakeAuthors{}, nil, 10, 50)
	rec := httptest.NewRecorder()
	h.Batch(rec, httptest.NewRequest(http.MethodPost, "/api/v1/search", strings.NewReader(`{"K": 1, "queries": ["nawaz"]}`)))
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d, want 503", rec.Code)
	}
}

func TestCacheEndpoints(t *testing.T) {
	disabled := New(nawazService(), nil, nil, 10, 50)
	rec := httptest.NewRecorder()
	disabled.CacheInvalidate(rec, httptest.NewRequest(http.MethodPost, "/api/v1/cache/invalidate", nil))
	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("invalidate without cache = %d, want 503", rec.Code)
	}
	rec = httptest.NewRecorder()
	disabled.CacheStats(rec, httptest.NewRequest(http.MethodGet, "/api/v1/cache/stats", nil))
	if !strings.Contains(rec.Body.String(), "disabled") {
		t.Errorf("stats without cache = %s", rec.Body)
	}

	fc := &fakeCache{stats: cache.Stats{Hits: 3, Misses: 1, Keys: 2}}
	h := New(nawazService(), nil, fc, 10, 50)

	rec = httptest.NewRecorder()
	h.CacheStats(rec, httptest.NewRequest(http.MethodGet, "/api/v1/cache/stats", nil))
	var stats map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &stats); err != nil {
		t.Fatal(err)
	}
	if stats["hit_rate"] != "75.0%" || stats["keys"] != float64(2) {
		t.Errorf("stats = %v", stats)
	}

	rec = httptest.NewRecorder()
	h.CacheInvalidate(rec, httptest.NewRequest(http.MethodPost, "/api/v1/cache/invalidate", nil))
	if rec.Code != http.StatusOK || fc.invalidated != 1 {
		t.Errorf("invalidate status = %d, calls = %d", rec.Code, fc.invalidated)
	}
}

func TestFailHidesInternalDetail(t *testing.T) {
	h := New(nil, nil, nil, 10, 50)
	rec := httptest.NewRecorder()
	h.fail(context.Background(), rec, "q", errors.New("disk on fire"))
	if rec.Code != http.StatusInternalServerError || strings.Contains(rec.Body.String(), "fire") {
		t.Errorf("status = %d body = %s", rec.Code, rec.Body)
	}
}
