package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/Adithya-Monish-Kumar-K/summary-search/internal/corpus"
	"github.com/Adithya-Monish-Kumar-K/summary-search/internal/indexer"
	"github.com/Adithya-Monish-Kumar-K/summary-search/internal/indexer/tokenizer"
	"github.com/Adithya-Monish-Kumar-K/summary-search/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/summary-search/pkg/kafka"
	"github.com/Adithya-Monish-Kumar-K/summary-search/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/summary-search/pkg/metrics"
)

type importer interface {
	Import(ctx context.Context, p *corpus.Payload) error
}

func main() {
	configPath := flag.String("config", "configs/development.yaml", "path to config file")
	transform := flag.Bool("transform", false, "transform the raw data file into the corpus before building")
	doImport := flag.Bool("import", false, "load the transformed corpus file into the sql backend before building")
	watch := flag.Duration("watch", 0, "rebuild at this interval instead of exiting after one build")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger.Setup(cfg.Logging.Level, cfg.Logging.Format)
	slog.Info("starting indexer",
		"backend", cfg.Corpus.Backend,
		"index_file", cfg.Index.IndexFile,
		"watch", *watch,
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, *transform, *doImport, *watch); err != nil {
		slog.Error("indexer failed", "error", err)
		os.Exit(1)
	}
	slog.Info("indexer stopped")
}

func run(ctx context.Context, cfg *config.Config, transform, doImport bool, watch time.Duration) error {
	var payload *corpus.Payload
	if transform {
		p, err := corpus.TransformFile(cfg.Index.RawDataFile, cfg.Index.CorpusFile)
		if err != nil {
			return err
		}
		payload = p
		slog.Info("corpus transformed", "src", cfg.Index.RawDataFile, "dst", cfg.Index.CorpusFile, "summaries", len(p.Summaries))
	}

	tok, err := tokenizer.LoadStopwords(cfg.Index.StopwordFile)
	if err != nil {
		return err
	}

	store, err := corpus.Open(ctx, cfg)
	if err != nil {
		return err
	}
	defer store.Close()

	if cfg.Corpus.Backend != config.BackendJSON && (transform || doImport) {
		if payload == nil {
			if payload, err = corpus.ReadPayload(cfg.Index.CorpusFile); err != nil {
				return err
			}
		}
		sqlStore, ok := store.(importer)
		if !ok {
			return fmt.Errorf("backend %q does not support import", cfg.Corpus.Backend)
		}
		if err := sqlStore.Import(ctx, payload); err != nil {
			return err
		}
		slog.Info("corpus imported", "backend", cfg.Corpus.Backend, "summaries", len(payload.Summaries))
	}

	var m *metrics.Metrics
	if watch > 0 && cfg.Metrics.Enabled {
		m = metrics.New(prometheus.DefaultRegisterer)
		shutdown := metrics.StartServer(cfg.Metrics.Port, prometheus.DefaultGatherer)
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
			defer cancel()
			if err := shutdown(shutdownCtx); err != nil {
				slog.Error("metrics server shutdown error", "error", err)
			}
		}()
	}

	engine := indexer.NewEngine(tok, cfg.Index.IndexFile, m)
	if cfg.Kafka.Enabled {
		producer := kafka.NewProducer(cfg.Kafka, cfg.Kafka.Topics.IndexComplete)
		defer producer.Close()
		engine.SetPublisher(producer)
	}

	build := func() error {
		docs, err := store.Documents(ctx)
		if err != nil {
			return err
		}
		_, err = engine.Build(ctx, docs)
		return err
	}

	if err := build(); err != nil {
		return err
	}
	if watch <= 0 {
		return nil
	}

	ticker := time.NewTicker(watch)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if err := build(); err != nil {
				if errors.Is(err, context.Canceled) {
					return nil
				}
				slog.Error("rebuild failed, keeping previous index", "error", err)
			}
		}
	}
}
