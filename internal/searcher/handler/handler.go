package handler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/Adithya-Monish-Kumar-K/summary-search/internal/searcher"
	"github.com/Adithya-Monish-Kumar-K/summary-search/internal/searcher/cache"
	"github.com/Adithya-Monish-Kumar-K/summary-search/internal/searcher/enrich"
	"github.com/Adithya-Monish-Kumar-K/summary-search/internal/searcher/executor"
	apperrors "github.com/Adithya-Monish-Kumar-K/summary-search/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/summary-search/pkg/logger"
)

// maxBatchBody caps the size of a batch search request body.
const maxBatchBody = 1 << 20

type SearchService interface {
	Query(ctx context.Context, raw string, k int) (*searcher.Response, error)
}

type CacheAdmin interface {
	Invalidate(ctx context.Context) (int64, error)
	Stats(ctx context.Context) (cache.Stats, error)
}

type Handler struct {
	service      SearchService
	authors      enrich.AuthorLookup
	cache        CacheAdmin
	defaultLimit int
	maxResults   int
	logger       *slog.Logger
}

// New builds the HTTP handler. authors and queryCache may be nil.
func New(svc SearchService, authors enrich.AuthorLookup, queryCache CacheAdmin, defaultLimit, maxResults int) *Handler {
	return &Handler{
		service:      svc,
		authors:      authors,
		cache:        queryCache,
		defaultLimit: defaultLimit,
		maxResults:   maxResults,
		logger:       slog.Default().With("component", "search-handler"),
	}
}

// Search answers a single query: GET /api/v1/search?q=...&k=...
func (h *Handler) Search(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query().Get("q")
	if query == "" {
		h.writeError(w, http.StatusBadRequest, "query parameter 'q' is required")
		return
	}

	k := h.defaultLimit
	if raw := r.URL.Query().Get("k"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 {
			h.writeError(w, http.StatusBadRequest, "k must be a positive integer")
			return
		}
		k = h.clamp(parsed)
	}

	resp, err := h.service.Query(r.Context(), query, k)
	if err != nil {
		h.fail(r.Context(), w, query, err)
		return
	}
	h.writeJSON(w, http.StatusOK, resp)
}

type batchRequest struct {
	K       int      `json:"K"`
	Queries []string `json:"queries"`
}

// BatchItem is one enriched match in a batch response.
type BatchItem struct {
	ID      int    `json:"id"`
	Summary string `json:"summary"`
	Query   string `json:"query"`
	Author  string `json:"author"`
}

// Batch answers several queries at once: POST /api/v1/search with
// {"K": n, "queries": [...]}. The response holds one list per query that
// produced matches, in request order; queries without matches are omitted.
func (h *Handler) Batch(w http.ResponseWriter, r *http.Request) {
	var req batchRequest
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBatchBody))
	if err := dec.Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.K < 1 {
		h.writeError(w, http.StatusBadRequest, "K must be a positive integer")
		return
	}
	k := h.clamp(req.K)

	ctx := r.Context()
	out := make([][]BatchItem, 0, len(req.Queries))
	for _, q := range req.Queries {
		resp, err := h.service.Query(ctx, q, k)
		if err != nil {
			h.fail(ctx, w, q, err)
			return
		}
		if resp.Outcome != executor.OutcomeMatches || len(resp.Matches) == 0 {
			continue
		}
		items := make([]BatchItem, 0, len(resp.Matches))
		for _, m := range resp.Matches {
			author, err := h.author(ctx, m.ID)
			if err != nil {
				h.fail(ctx, w, q, err)
				return
			}
			items = append(items, BatchItem{ID: m.ID, Summary: m.Text, Query: q, Author: author})
		}
		out = append(out, items)
	}

	logger.FromContext(ctx).Info("batch search completed",
		"queries", len(req.Queries),
		"answered", len(out),
		"k", k,
	)
	h.writeJSON(w, http.StatusOK, out)
}

func (h *Handler) author(ctx context.Context, id int) (string, error) {
	if h.authors == nil {
		return "", nil
	}
	name, err := h.authors.Author(ctx, id)
	if err != nil {
		return "", fmt.Errorf("author of %d: %w", id, err)
	}
	return name, nil
}

func (h *Handler) clamp(k int) int {
	if h.maxResults > 0 && k > h.maxResults {
		return h.maxResults
	}
	return k
}

func (h *Handler) CacheStats(w http.ResponseWriter, r *http.Request) {
	if h.cache == nil {
		h.writeJSON(w, http.StatusOK, map[string]string{"status": "disabled"})
		return
	}

	stats, err := h.cache.Stats(r.Context())
	if err != nil {
		h.logger.Error("reading cache stats failed", "error", err)
		h.writeError(w, http.StatusServiceUnavailable, "cache unavailable")
		return
	}

	total := stats.Hits + stats.Misses
	var hitRate float64
	if total > 0 {
		hitRate = float64(stats.Hits) / float64(total) * 100
	}

	h.writeJSON(w, http.StatusOK, map[string]any{
		"hits":     stats.Hits,
		"misses":   stats.Misses,
		"total":    total,
		"keys":     stats.Keys,
		"hit_rate": fmt.Sprintf("%.1f%%", hitRate),
	})
}

func (h *Handler) CacheInvalidate(w http.ResponseWriter, r *http.Request) {
	if h.cache == nil {
		h.writeError(w, http.StatusServiceUnavailable, "caching is disabled")
		return
	}

	deleted, err := h.cache.Invalidate(r.Context())
	if err != nil {
		h.logger.Error("cache invalidation failed", "error", err)
		h.writeError(w, http.StatusInternalServerError, "cache invalidation failed")
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]any{"status": "invalidated", "keys_deleted": deleted})
}

// fail maps err onto an HTTP status. Client errors echo the message;
// server-side failures do not.
func (h *Handler) fail(ctx context.Context, w http.ResponseWriter, query string, err error) {
	status := apperrors.HTTPStatusCode(err)
	if status < http.StatusInternalServerError {
		h.writeError(w, status, err.Error())
		return
	}
	logger.FromContext(ctx).Error("search failed", "query", query, "error", err)
	msg := "search failed"
	if errors.Is(err, apperrors.ErrUnavailable) {
		msg = "dependency unavailable"
	}
	h.writeError(w, status, msg)
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error("failed to write response", "error", err)
	}
}

func (h *Handler) writeError(w http.ResponseWriter, status int, message string) {
	h.writeJSON(w, status, map[string]string{"error": message})
}
