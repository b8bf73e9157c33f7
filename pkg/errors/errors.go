// Package errors defines the sentinel errors shared by the indexer and the
// query service, and maps them onto HTTP status codes.
package errors

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	// ErrConfiguration marks an unavailable or unreadable stopword, index or
	// corpus source. It is always fatal for the operation that hit it.
	ErrConfiguration = errors.New("configuration error")
	// ErrParse marks a malformed index file.
	ErrParse        = errors.New("index parse error")
	ErrInvalidInput = errors.New("invalid input")
	ErrUnavailable  = errors.New("dependency unavailable")
	ErrTimeout      = errors.New("operation timed out")
)

// statusBySentinel is consulted in order; the first sentinel in the chain
// decides the status.
var statusBySentinel = []struct {
	err    error
	status int
}{
	{ErrInvalidInput, http.StatusBadRequest},
	{ErrUnavailable, http.StatusServiceUnavailable},
	{ErrTimeout, http.StatusServiceUnavailable},
}

// AppError pairs a sentinel with a message and an explicit HTTP status.
type AppError struct {
	Err        error
	Message    string
	StatusCode int
}

func (e *AppError) Error() string {
	if e.Message == "" {
		return e.Err.Error()
	}
	return e.Err.Error() + ": " + e.Message
}

func (e *AppError) Unwrap() error { return e.Err }

func New(sentinel error, statusCode int, message string) *AppError {
	return &AppError{Err: sentinel, Message: message, StatusCode: statusCode}
}

// Configf wraps ErrConfiguration with a formatted message. Callers use it for
// missing files and unreachable corpus backends.
func Configf(format string, args ...any) *AppError {
	return New(ErrConfiguration, http.StatusInternalServerError, fmt.Sprintf(format, args...))
}

// HTTPStatusCode returns the status of the outermost AppError in err's chain,
// falling back to the sentinel table and then to 500.
func HTTPStatusCode(err error) int {
	var appErr *AppError
	if errors.As(err, &appErr) && appErr.StatusCode != 0 {
		return appErr.StatusCode
	}
	for _, s := range statusBySentinel {
		if errors.Is(err, s.err) {
			return s.status
		}
	}
	return http.StatusInternalServerError
}
