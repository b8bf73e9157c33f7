// Package events carries index lifecycle notifications over Kafka. The
// indexer announces every published index file; query services subscribe to
// drop results cached against the previous one.
package events

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/Adithya-Monish-Kumar-K/summary-search/pkg/kafka"
)

// IndexBuilt is published after an index file has been atomically replaced.
type IndexBuilt struct {
	Path     string    `json:"path"`
	NumDocs  int       `json:"num_docs"`
	Terms    int       `json:"terms"`
	Bytes    int64     `json:"bytes"`
	BuiltAt  time.Time `json:"built_at"`
	Duration string    `json:"duration"`
}

// Publisher is satisfied by *kafka.Producer.
type Publisher interface {
	Publish(ctx context.Context, event kafka.Event) error
}

// PublishIndexBuilt sends ev keyed by the index path so every build of the
// same file lands on one partition in order.
func PublishIndexBuilt(ctx context.Context, p Publisher, ev IndexBuilt) error {
	if err := p.Publish(ctx, kafka.Event{Key: ev.Path, Value: ev}); err != nil {
		return fmt.Errorf("publishing index built event: %w", err)
	}
	return nil
}

// HandleIndexBuilt returns a MessageHandler that decodes IndexBuilt events and
// passes them to fn. Undecodable messages are logged and skipped so they do
// not block the partition.
func HandleIndexBuilt(fn func(ctx context.Context, ev IndexBuilt) error) kafka.MessageHandler {
	logger := slog.Default().With("component", "index-events")
	return func(ctx context.Context, key []byte, value []byte) error {
		ev, err := kafka.DecodeJSON[IndexBuilt](value)
		if err != nil {
			logger.Error("failed to decode index built event",
				"error", err,
				"key", string(key),
			)
			return nil
		}
		logger.Debug("index built event received",
			"path", ev.Path,
			"num_docs", ev.NumDocs,
			"terms", ev.Terms,
		)
		if err := fn(ctx, ev); err != nil {
			return fmt.Errorf("handling index built event for %s: %w", ev.Path, err)
		}
		return nil
	}
}
