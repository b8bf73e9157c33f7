package corpus

import (
	"context"

	"github.com/Adithya-Monish-Kumar-K/summary-search/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/summary-search/pkg/postgres"
	apperrors "github.com/Adithya-Monish-Kumar-K/summary-search/pkg/errors"
)

// Open returns the store selected by cfg.Corpus.Backend.
func Open(ctx context.Context, cfg *config.Config) (Store, error) {
	switch cfg.Corpus.Backend {
	case config.BackendJSON:
		return OpenFileStore(cfg.Index.CorpusFile)
	case config.BackendSQLite:
		return OpenSQLite(cfg.Corpus.SQLitePath)
	case config.BackendPostgres:
		client, err := postgres.New(cfg.Postgres)
		if err != nil {
			return nil, err
		}
		store, err := NewPostgres(ctx, client)
		if err != nil {
			client.Close()
			return nil, err
		}
		return store, nil
	default:
		return nil, apperrors.Configf("unknown corpus backend %q", cfg.Corpus.Backend)
	}
}
