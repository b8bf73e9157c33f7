// Package searcher answers queries against the published index: it loads a
// snapshot, classifies the query, selects and ranks candidates and resolves
// the winners through the corpus.
package searcher

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/Adithya-Monish-Kumar-K/summary-search/internal/indexer/tokenizer"
	"github.com/Adithya-Monish-Kumar-K/summary-search/internal/searcher/cache"
	"github.com/Adithya-Monish-Kumar-K/summary-search/internal/searcher/executor"
	"github.com/Adithya-Monish-Kumar-K/summary-search/internal/searcher/loader"
	"github.com/Adithya-Monish-Kumar-K/summary-search/internal/searcher/materializer"
	"github.com/Adithya-Monish-Kumar-K/summary-search/internal/searcher/parser"
	apperrors "github.com/Adithya-Monish-Kumar-K/summary-search/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/summary-search/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/summary-search/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/summary-search/pkg/tracing"
)

// Response is the tagged result of one query. Matches is empty unless
// Outcome is OutcomeMatches.
type Response struct {
	Query    string                `json:"query"`
	Type     string                `json:"type"`
	Outcome  executor.Outcome      `json:"status"`
	Fallback bool                  `json:"fallback,omitempty"`
	Matches  []materializer.Record `json:"matches"`
}

type Service struct {
	parser   *parser.Parser
	executor *executor.Executor
	source   loader.Source
	corpus   materializer.Corpus
	cache    *cache.QueryCache[*Response]
	metrics  *metrics.Metrics
	tracing  bool
	logger   *slog.Logger
}

// NewService wires a query service. m may be nil.
func NewService(tok *tokenizer.Tokenizer, source loader.Source, corpus materializer.Corpus, m *metrics.Metrics) *Service {
	return &Service{
		parser:   parser.New(tok),
		executor: executor.New(),
		source:   source,
		corpus:   corpus,
		metrics:  m,
		logger:   slog.Default().With("component", "search-service"),
	}
}

// SetCache enables response caching.
func (s *Service) SetCache(c *cache.QueryCache[*Response]) {
	s.cache = c
}

// SetTracing turns per-query span logging on or off.
func (s *Service) SetTracing(enabled bool) {
	s.tracing = enabled
}

// Query answers raw with at most k matches. k must be positive. Index and
// corpus failures are returned as errors; no partial response is produced.
func (s *Service) Query(ctx context.Context, raw string, k int) (*Response, error) {
	if k < 1 {
		return nil, fmt.Errorf("%w: k must be at least 1, got %d", apperrors.ErrInvalidInput, k)
	}
	start := time.Now()
	traceID := logger.RequestID(ctx)
	if traceID == "" {
		traceID = tracing.NewTraceID()
	}
	ctx, root := tracing.StartSpan(ctx, "search.query", traceID)
	root.SetAttr("query", raw)
	root.SetAttr("k", k)
	defer func() {
		root.End()
		if s.tracing {
			root.Log(s.logger)
		}
	}()

	_, loadSpan := tracing.StartChildSpan(ctx, "search.load")
	loaded, err := s.source.Load(ctx)
	loadSpan.End()
	if err != nil {
		logger.FromContext(ctx).Error("index snapshot unavailable", "error", err)
		return nil, fmt.Errorf("loading index: %w", err)
	}
	loadSpan.SetAttr("fingerprint", loaded.Fingerprint.String())

	plan := s.parser.Parse(raw)
	root.SetAttr("type", plan.Type.String())

	compute := func() (*Response, error) {
		return s.answer(ctx, plan, loaded, k)
	}
	var resp *Response
	if s.cache != nil {
		key := cache.Key{Fingerprint: loaded.Fingerprint.String(), Query: raw, K: k}
		var hit bool
		resp, hit, err = s.cache.GetOrCompute(ctx, key, compute)
		root.SetAttr("cache_hit", hit)
	} else {
		resp, err = compute()
	}
	if err != nil {
		return nil, err
	}

	if s.metrics != nil {
		s.metrics.SearchQueriesTotal.WithLabelValues(plan.Type.String(), resp.Outcome.String()).Inc()
		s.metrics.SearchLatency.WithLabelValues(plan.Type.String()).Observe(time.Since(start).Seconds())
	}
	logger.FromContext(ctx).Debug("query answered",
		"query", raw,
		"type", plan.Type.String(),
		"status", resp.Outcome.String(),
		"fallback", plan.Fallback,
		"matches", len(resp.Matches),
		"duration", time.Since(start),
	)
	return resp, nil
}

func (s *Service) answer(ctx context.Context, plan *parser.QueryPlan, loaded *loader.Loaded, k int) (*Response, error) {
	execCtx, execSpan := tracing.StartChildSpan(ctx, "search.execute")
	result := s.executor.Execute(execCtx, plan, loaded.Snapshot, k)
	execSpan.SetAttr("candidates", result.Candidates)
	execSpan.End()

	_, matSpan := tracing.StartChildSpan(ctx, "search.materialize")
	records, err := materializer.Materialize(ctx, s.corpus, result.Results)
	matSpan.End()
	if err != nil {
		return nil, fmt.Errorf("materializing results: %w", err)
	}
	return &Response{
		Query:    plan.RawQuery,
		Type:     plan.Type.String(),
		Outcome:  result.Outcome,
		Fallback: plan.Fallback,
		Matches:  records,
	}, nil
}
