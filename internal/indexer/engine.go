// Package indexer runs the offline build: it tokenizes the corpus, builds the
// inverted index in memory and publishes it as a single index file.
package indexer

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/Adithya-Monish-Kumar-K/summary-search/internal/corpus"
	"github.com/Adithya-Monish-Kumar-K/summary-search/internal/indexer/events"
	"github.com/Adithya-Monish-Kumar-K/summary-search/internal/indexer/index"
	"github.com/Adithya-Monish-Kumar-K/summary-search/internal/indexer/segment"
	"github.com/Adithya-Monish-Kumar-K/summary-search/internal/indexer/tokenizer"
	"github.com/Adithya-Monish-Kumar-K/summary-search/pkg/metrics"
)

// BuildReport summarizes one published index.
type BuildReport struct {
	Path     string
	NumDocs  int
	Terms    int
	Tokens   int
	Bytes    int64
	Duration time.Duration
}

type Engine struct {
	tokenizer *tokenizer.Tokenizer
	writer    *segment.Writer
	metrics   *metrics.Metrics
	publisher events.Publisher
	logger    *slog.Logger
}

// NewEngine creates an Engine that publishes to indexPath. m may be nil.
func NewEngine(tok *tokenizer.Tokenizer, indexPath string, m *metrics.Metrics) *Engine {
	return &Engine{
		tokenizer: tok,
		writer:    segment.NewWriter(indexPath),
		metrics:   m,
		logger:    slog.Default().With("component", "indexer"),
	}
}

// SetPublisher makes Build announce every published index. Publish failures
// are logged; the index file is already in place by then.
func (e *Engine) SetPublisher(p events.Publisher) {
	e.publisher = p
}

// Build indexes docs in the given order and atomically replaces the index
// file. On error the previously published index is left untouched.
func (e *Engine) Build(ctx context.Context, docs []corpus.Document) (*BuildReport, error) {
	start := time.Now()
	report, err := e.build(ctx, docs)
	if e.metrics != nil {
		status := "success"
		if err != nil {
			status = "error"
		}
		e.metrics.IndexBuildsTotal.WithLabelValues(status).Inc()
		e.metrics.IndexBuildDuration.Observe(time.Since(start).Seconds())
	}
	if err != nil {
		e.logger.Error("index build failed", "path", e.writer.Path(), "error", err)
		return nil, err
	}
	report.Duration = time.Since(start)

	if e.metrics != nil {
		e.metrics.DocsIndexedTotal.Add(float64(report.NumDocs))
		e.metrics.IndexTerms.Set(float64(report.Terms))
	}
	e.logger.Info("index published",
		"path", report.Path,
		"docs", report.NumDocs,
		"terms", report.Terms,
		"tokens", report.Tokens,
		"bytes", report.Bytes,
		"duration", report.Duration,
	)

	if e.publisher != nil {
		ev := events.IndexBuilt{
			Path:     report.Path,
			NumDocs:  report.NumDocs,
			Terms:    report.Terms,
			Bytes:    report.Bytes,
			BuiltAt:  time.Now().UTC(),
			Duration: report.Duration.String(),
		}
		if err := events.PublishIndexBuilt(ctx, e.publisher, ev); err != nil {
			e.logger.Warn("index built event not delivered", "error", err)
		}
	}
	return report, nil
}

func (e *Engine) build(ctx context.Context, docs []corpus.Document) (*BuildReport, error) {
	builder := index.NewBuilder(e.tokenizer)
	for i, doc := range docs {
		if i%1024 == 0 {
			if err := ctx.Err(); err != nil {
				return nil, fmt.Errorf("index build cancelled: %w", err)
			}
		}
		if err := builder.AddDocument(doc.ID, doc.Text); err != nil {
			return nil, fmt.Errorf("adding document %d: %w", doc.ID, err)
		}
		e.logger.Debug("document indexed", "doc_id", doc.ID)
	}
	snap := builder.Snapshot()
	n, err := e.writer.Write(snap)
	if err != nil {
		return nil, fmt.Errorf("publishing index: %w", err)
	}
	return &BuildReport{
		Path:    e.writer.Path(),
		NumDocs: snap.NumDocs(),
		Terms:   snap.TermCount(),
		Tokens:  builder.TokenCount(),
		Bytes:   n,
	}, nil
}
