package corpus

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	_ "github.com/mattn/go-sqlite3"

	"github.com/Adithya-Monish-Kumar-K/summary-search/pkg/postgres"
	apperrors "github.com/Adithya-Monish-Kumar-K/summary-search/pkg/errors"
)

const schema = `
CREATE TABLE IF NOT EXISTS summaries (
	id      INTEGER PRIMARY KEY,
	summary TEXT    NOT NULL
);
CREATE TABLE IF NOT EXISTS authors (
	book_id INTEGER PRIMARY KEY,
	author  TEXT    NOT NULL
);
`

// SQLStore serves the corpus from a relational database. SQLite and
// PostgreSQL differ only in bind-parameter syntax.
type SQLStore struct {
	db          *sql.DB
	placeholder func(n int) string
	logger      *slog.Logger
}

// OpenSQLite opens (creating if needed) a SQLite corpus database at path.
func OpenSQLite(path string) (*SQLStore, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, apperrors.Configf("opening sqlite corpus %s: %v", path, err)
	}
	db.SetMaxOpenConns(1)
	s := &SQLStore{
		db:          db,
		placeholder: func(int) string { return "?" },
		logger:      slog.Default().With("component", "corpus-sqlite"),
	}
	if err := s.ensureSchema(context.Background()); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// NewPostgres serves the corpus from the database behind client. The store
// takes ownership of the client.
func NewPostgres(ctx context.Context, client *postgres.Client) (*SQLStore, error) {
	s := &SQLStore{
		db:          client.DB,
		placeholder: func(n int) string { return "$" + strconv.Itoa(n) },
		logger:      slog.Default().With("component", "corpus-postgres"),
	}
	if err := s.ensureSchema(ctx); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *SQLStore) ensureSchema(ctx context.Context) error {
	for _, stmt := range strings.Split(schema, ";") {
		if strings.TrimSpace(stmt) == "" {
			continue
		}
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return apperrors.Configf("creating corpus schema: %v", err)
		}
	}
	return nil
}

// Import replaces the stored corpus with p in a single transaction.
func (s *SQLStore) Import(ctx context.Context, p *Payload) error {
	docs, err := p.Documents()
	if err != nil {
		return err
	}
	authors := make([]Document, 0, len(p.Authors))
	for key, author := range p.Authors {
		id, err := parseID(key)
		if err != nil {
			return err
		}
		authors = append(authors, Document{ID: id, Text: author})
	}

	insertSummary := fmt.Sprintf("INSERT INTO summaries (id, summary) VALUES (%s, %s)", s.placeholder(1), s.placeholder(2))
	insertAuthor := fmt.Sprintf("INSERT INTO authors (book_id, author) VALUES (%s, %s)", s.placeholder(1), s.placeholder(2))

	err = postgres.InTx(ctx, s.db, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, "DELETE FROM summaries"); err != nil {
			return fmt.Errorf("clearing summaries: %w", err)
		}
		if _, err := tx.ExecContext(ctx, "DELETE FROM authors"); err != nil {
			return fmt.Errorf("clearing authors: %w", err)
		}
		if err := insertAll(ctx, tx, insertSummary, docs); err != nil {
			return fmt.Errorf("inserting summaries: %w", err)
		}
		if err := insertAll(ctx, tx, insertAuthor, authors); err != nil {
			return fmt.Errorf("inserting authors: %w", err)
		}
		return nil
	})
	if err != nil {
		return err
	}
	s.logger.Info("corpus imported", "summaries", len(docs), "authors", len(authors))
	return nil
}

func insertAll(ctx context.Context, tx *sql.Tx, query string, rows []Document) error {
	stmt, err := tx.PrepareContext(ctx, query)
	if err != nil {
		return err
	}
	defer stmt.Close()
	for _, row := range rows {
		if _, err := stmt.ExecContext(ctx, row.ID, row.Text); err != nil {
			return fmt.Errorf("row %d: %w", row.ID, err)
		}
	}
	return nil
}

func (s *SQLStore) Documents(ctx context.Context) ([]Document, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT id, summary FROM summaries ORDER BY id")
	if err != nil {
		return nil, apperrors.Configf("querying summaries: %v", err)
	}
	defer rows.Close()
	var docs []Document
	for rows.Next() {
		var d Document
		if err := rows.Scan(&d.ID, &d.Text); err != nil {
			return nil, apperrors.Configf("scanning summary: %v", err)
		}
		docs = append(docs, d)
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.Configf("iterating summaries: %v", err)
	}
	return docs, nil
}

func (s *SQLStore) Lookup(ctx context.Context, ids []int) (map[int]string, error) {
	out := make(map[int]string, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	marks := make([]string, len(ids))
	args := make([]any, len(ids))
	for i, id := range ids {
		marks[i] = s.placeholder(i + 1)
		args[i] = id
	}
	query := "SELECT id, summary FROM summaries WHERE id IN (" + strings.Join(marks, ", ") + ")"
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, apperrors.Configf("looking up summaries: %v", err)
	}
	defer rows.Close()
	for rows.Next() {
		var (
			id   int
			text string
		)
		if err := rows.Scan(&id, &text); err != nil {
			return nil, apperrors.Configf("scanning summary: %v", err)
		}
		out[id] = text
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.Configf("iterating summaries: %v", err)
	}
	return out, nil
}

func (s *SQLStore) Author(ctx context.Context, id int) (string, bool, error) {
	var author string
	query := "SELECT author FROM authors WHERE book_id = " + s.placeholder(1)
	err := s.db.QueryRowContext(ctx, query, id).Scan(&author)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("%w: author lookup for %d: %v", apperrors.ErrUnavailable, id, err)
	}
	return author, true, nil
}

func (s *SQLStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *SQLStore) Close() error {
	return s.db.Close()
}
