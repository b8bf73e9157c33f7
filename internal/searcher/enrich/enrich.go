// Package enrich attaches authors to search results, either from the corpus
// store or from a remote author service.
package enrich

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/Adithya-Monish-Kumar-K/summary-search/pkg/config"
	apperrors "github.com/Adithya-Monish-Kumar-K/summary-search/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/summary-search/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/summary-search/pkg/resilience"
)

// AuthorLookup resolves the author of a book id. An unknown author is "".
type AuthorLookup interface {
	Author(ctx context.Context, bookID int) (string, error)
}

// AuthorStore is the corpus side of author lookups. corpus.Store satisfies it.
type AuthorStore interface {
	Author(ctx context.Context, id int) (string, bool, error)
}

// StoreAuthors answers from the corpus store.
type StoreAuthors struct {
	store AuthorStore
}

func NewStoreAuthors(store AuthorStore) *StoreAuthors {
	return &StoreAuthors{store: store}
}

func (s *StoreAuthors) Author(ctx context.Context, bookID int) (string, error) {
	author, _, err := s.store.Author(ctx, bookID)
	return author, err
}

type authorRequest struct {
	BookID int `json:"book_id"`
}

type authorResponse struct {
	Author string `json:"author"`
}

// HTTPAuthorClient POSTs {"book_id": id} to the author service and reads
// {"author": name}. Transient failures are retried with backoff; repeated
// failures open a circuit breaker so a dead service does not stall searches.
type HTTPAuthorClient struct {
	url     string
	client  *http.Client
	timeout time.Duration
	retry   resilience.RetryConfig
	breaker *resilience.CircuitBreaker
	metrics *metrics.Metrics
	logger  *slog.Logger
}

// NewHTTPAuthorClient builds a client from cfg. m may be nil.
func NewHTTPAuthorClient(cfg config.AuthorConfig, m *metrics.Metrics) *HTTPAuthorClient {
	var onChange func(string, resilience.State, resilience.State)
	if m != nil {
		onChange = func(_ string, _, to resilience.State) {
			m.AuthorCircuitState.Set(float64(to))
		}
	}
	return &HTTPAuthorClient{
		url:     cfg.URL,
		client:  &http.Client{},
		timeout: cfg.Timeout,
		retry: resilience.RetryConfig{
			MaxAttempts: cfg.MaxAttempts,
			Retryable:   retryable,
		},
		breaker: resilience.NewCircuitBreaker("author-service", resilience.CircuitBreakerConfig{
			FailureThreshold: cfg.FailureThreshold,
			ResetTimeout:     cfg.ResetTimeout,
			OnStateChange:    onChange,
		}),
		metrics: m,
		logger:  slog.Default().With("component", "author-client"),
	}
}

func (c *HTTPAuthorClient) Author(ctx context.Context, bookID int) (string, error) {
	var author string
	err := c.breaker.Execute(func() error {
		return resilience.Retry(ctx, "author-lookup", c.retry, func() error {
			return resilience.WithTimeout(ctx, c.timeout, "author-lookup", func(ctx context.Context) error {
				name, err := c.fetch(ctx, bookID)
				if err != nil {
					return err
				}
				author = name
				return nil
			})
		})
	})
	status := "ok"
	if err != nil {
		status = "error"
	}
	if c.metrics != nil {
		c.metrics.AuthorLookupsTotal.WithLabelValues(status).Inc()
	}
	if err != nil {
		c.logger.WarnContext(ctx, "author lookup failed", "book_id", bookID, "error", err)
		return "", fmt.Errorf("%w: author lookup for %d: %v", apperrors.ErrUnavailable, bookID, err)
	}
	return author, nil
}

// BreakerState exposes the circuit state for health reporting.
func (c *HTTPAuthorClient) BreakerState() resilience.State {
	return c.breaker.GetState()
}

// statusError is a non-2xx answer from the author service.
type statusError struct {
	code int
}

func (e *statusError) Error() string {
	return fmt.Sprintf("author service returned %d", e.code)
}

// retryable keeps client errors (4xx) from being retried.
func retryable(err error) bool {
	var se *statusError
	if errors.As(err, &se) {
		return se.code >= 500 || se.code == http.StatusTooManyRequests
	}
	return true
}

func (c *HTTPAuthorClient) fetch(ctx context.Context, bookID int) (string, error) {
	body, err := json.Marshal(authorRequest{BookID: bookID})
	if err != nil {
		return "", fmt.Errorf("encoding author request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("building author request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := c.client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		io.Copy(io.Discard, resp.Body)
		return "", &statusError{code: resp.StatusCode}
	}
	var out authorResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("decoding author response: %w", err)
	}
	return out.Author, nil
}
