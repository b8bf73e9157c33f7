package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/Adithya-Monish-Kumar-K/summary-search/internal/corpus"
	"github.com/Adithya-Monish-Kumar-K/summary-search/internal/indexer/tokenizer"
	"github.com/Adithya-Monish-Kumar-K/summary-search/internal/searcher"
	"github.com/Adithya-Monish-Kumar-K/summary-search/internal/searcher/loader"
	"github.com/Adithya-Monish-Kumar-K/summary-search/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/summary-search/pkg/logger"
)

func main() {
	configPath := flag.String("config", "configs/development.yaml", "path to config file")
	query := flag.String("q", "", "query to run; when empty the sample queries stored in the corpus file are run")
	k := flag.Int("k", 10, "maximum number of matches per query")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}
	// Logs go to stderr so stdout stays valid JSON.
	slog.SetDefault(logger.New(os.Stderr, cfg.Logging.Level, cfg.Logging.Format))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, *query, *k); err != nil {
		fmt.Fprintf(os.Stderr, "query failed: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, query string, k int) error {
	tok, err := tokenizer.LoadStopwords(cfg.Index.StopwordFile)
	if err != nil {
		return err
	}
	store, err := corpus.Open(ctx, cfg)
	if err != nil {
		return err
	}
	defer store.Close()

	// The CLI answers once per query, so the file is always read fresh.
	source, err := loader.New(config.PolicyReload, cfg.Index.IndexFile, nil)
	if err != nil {
		return err
	}
	svc := searcher.NewService(tok, source, store, nil)
	svc.SetTracing(cfg.Tracing.Enabled)

	queries := []string{query}
	if query == "" {
		payload, err := corpus.ReadPayload(cfg.Index.CorpusFile)
		if err != nil {
			return err
		}
		if len(payload.Queries) == 0 {
			return fmt.Errorf("no -q given and %s holds no sample queries", cfg.Index.CorpusFile)
		}
		queries = payload.Queries
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	for _, q := range queries {
		resp, err := svc.Query(ctx, q, k)
		if err != nil {
			return err
		}
		if err := enc.Encode(resp); err != nil {
			return err
		}
	}
	return nil
}
