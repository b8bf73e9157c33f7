// Package postgres wraps a lib/pq connection pool and runs callers' work
// inside transactions.
package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/lib/pq"

	"github.com/Adithya-Monish-Kumar-K/summary-search/pkg/config"
	apperrors "github.com/Adithya-Monish-Kumar-K/summary-search/pkg/errors"
)

type Client struct {
	DB *sql.DB
}

// New opens a pool for cfg and verifies it with a ping.
func New(cfg config.PostgresConfig) (*Client, error) {
	c, err := Open(cfg.DSN())
	if err != nil {
		return nil, err
	}
	c.DB.SetMaxOpenConns(cfg.MaxOpenConns)
	c.DB.SetMaxIdleConns(cfg.MaxIdleConns)
	c.DB.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	return c, nil
}

// Open connects to dsn with driver defaults for pool sizing.
func Open(dsn string) (*Client, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, apperrors.Configf("opening postgres connection: %v", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, apperrors.Configf("pinging postgres: %v", err)
	}
	return &Client{DB: db}, nil
}

func (c *Client) Close() error {
	return c.DB.Close()
}

func (c *Client) Ping(ctx context.Context) error {
	return c.DB.PingContext(ctx)
}

// InTx runs fn inside a transaction, committing on nil and rolling back on
// error.
func (c *Client) InTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	return InTx(ctx, c.DB, fn)
}

// InTx is the transaction helper for any database/sql pool.
func InTx(ctx context.Context, db *sql.DB, fn func(tx *sql.Tx) error) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	if err := fn(tx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			return fmt.Errorf("rolling back transaction after error %v: %w", rbErr, err)
		}
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}

	return nil
}
