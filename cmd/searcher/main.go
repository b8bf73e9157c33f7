package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/sync/errgroup"

	"github.com/Adithya-Monish-Kumar-K/summary-search/internal/corpus"
	"github.com/Adithya-Monish-Kumar-K/summary-search/internal/indexer/events"
	"github.com/Adithya-Monish-Kumar-K/summary-search/internal/indexer/tokenizer"
	"github.com/Adithya-Monish-Kumar-K/summary-search/internal/searcher"
	"github.com/Adithya-Monish-Kumar-K/summary-search/internal/searcher/cache"
	"github.com/Adithya-Monish-Kumar-K/summary-search/internal/searcher/enrich"
	"github.com/Adithya-Monish-Kumar-K/summary-search/internal/searcher/handler"
	"github.com/Adithya-Monish-Kumar-K/summary-search/internal/searcher/loader"
	"github.com/Adithya-Monish-Kumar-K/summary-search/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/summary-search/pkg/health"
	"github.com/Adithya-Monish-Kumar-K/summary-search/pkg/kafka"
	"github.com/Adithya-Monish-Kumar-K/summary-search/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/summary-search/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/summary-search/pkg/middleware"
	pkgredis "github.com/Adithya-Monish-Kumar-K/summary-search/pkg/redis"
)

type pinger interface {
	Ping(ctx context.Context) error
}

func main() {
	configPath := flag.String("config", "configs/development.yaml", "path to config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger.Setup(cfg.Logging.Level, cfg.Logging.Format)
	slog.Info("starting search service",
		"port", cfg.Server.Port,
		"policy", cfg.Search.SnapshotPolicy,
		"backend", cfg.Corpus.Backend,
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg); err != nil {
		slog.Error("search service failed", "error", err)
		os.Exit(1)
	}
	slog.Info("search service stopped")
}

func run(ctx context.Context, cfg *config.Config) error {
	m := metrics.New(prometheus.DefaultRegisterer)
	if cfg.Metrics.Enabled {
		shutdown := metrics.StartServer(cfg.Metrics.Port, prometheus.DefaultGatherer)
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
			defer cancel()
			if err := shutdown(shutdownCtx); err != nil {
				slog.Error("metrics server shutdown error", "error", err)
			}
		}()
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

	source, err := loader.New(cfg.Search.SnapshotPolicy, cfg.Index.IndexFile, m)
	if err != nil {
		return err
	}
	svc := searcher.NewService(tok, source, store, m)
	svc.SetTracing(cfg.Tracing.Enabled)

	checker := health.NewChecker()
	checker.Register("index", health.FileCheck(cfg.Index.IndexFile))
	if p, ok := store.(pinger); ok {
		checker.Register("corpus", health.PingCheck(p.Ping, health.StatusDown))
	}

	var queryCache *cache.QueryCache[*searcher.Response]
	if cfg.Redis.Enabled {
		redisClient, err := pkgredis.NewClient(cfg.Redis)
		if err != nil {
			slog.Warn("redis unavailable, search caching disabled", "error", err)
		} else {
			defer redisClient.Close()
			queryCache = cache.New[*searcher.Response](redisClient, cfg.Redis.CacheTTL, m)
			svc.SetCache(queryCache)
			checker.Register("redis", health.PingCheck(redisClient.Ping, health.StatusDegraded))
			slog.Info("search cache enabled", "addr", cfg.Redis.Addr, "ttl", cfg.Redis.CacheTTL)
		}
	}

	var authors enrich.AuthorLookup = enrich.NewStoreAuthors(store)
	if cfg.Author.URL != "" {
		authors = enrich.NewHTTPAuthorClient(cfg.Author, m)
		slog.Info("author service enabled", "url", cfg.Author.URL)
	}

	var cacheAdmin handler.CacheAdmin
	if queryCache != nil {
		cacheAdmin = queryCache
	}
	h := handler.New(svc, authors, cacheAdmin, cfg.Search.DefaultLimit, cfg.Search.MaxResults)

	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/v1/search", h.Search)
	mux.HandleFunc("POST /api/v1/search", h.Batch)
	mux.HandleFunc("GET /api/v1/cache/stats", h.CacheStats)
	mux.HandleFunc("POST /api/v1/cache/invalidate", h.CacheInvalidate)
	mux.HandleFunc("GET /health/live", checker.LiveHandler())
	mux.HandleFunc("GET /health/ready", checker.ReadyHandler())

	var chain http.Handler = mux
	chain = middleware.Timeout(cfg.Server.WriteTimeout)(chain)
	chain = middleware.Metrics(m)(chain)
	chain = middleware.RequestID(chain)

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      chain,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		slog.Info("search service listening", "addr", server.Addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		slog.Info("shutting down http server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	if cfg.Kafka.Enabled && queryCache != nil {
		checker.Register("kafka", health.PingCheck(func(ctx context.Context) error {
			return kafka.Ping(ctx, cfg.Kafka.Brokers)
		}, health.StatusDegraded))

		consumer := kafka.NewConsumer(cfg.Kafka, cfg.Kafka.Topics.IndexComplete,
			events.HandleIndexBuilt(func(ctx context.Context, ev events.IndexBuilt) error {
				deleted, err := queryCache.Invalidate(ctx)
				if err != nil {
					return err
				}
				slog.Info("cache invalidated after rebuild",
					"path", ev.Path,
					"num_docs", ev.NumDocs,
					"keys_deleted", deleted,
				)
				return nil
			}),
		)
		defer consumer.Close()
		g.Go(func() error {
			return consumer.Start(gctx)
		})
		slog.Info("listening for index events", "topic", cfg.Kafka.Topics.IndexComplete)
	}

	return g.Wait()
}
