package resilience

import (
	"context"
	"errors"
	"fmt"
	"time"

	apperrors "github.com/Adithya-Monish-Kumar-K/summary-search/pkg/errors"
)

// WithTimeout runs fn under its own deadline. fn must honour ctx. When the
// deadline (not the caller's ctx) ends the call, the error wraps both
// ErrTimeout and fn's own error.
func WithTimeout(ctx context.Context, timeout time.Duration, name string, fn func(ctx context.Context) error) error {
	if timeout <= 0 {
		return fn(ctx)
	}
	callCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	err := fn(callCtx)
	if err == nil || ctx.Err() != nil {
		return err
	}
	if errors.Is(callCtx.Err(), context.DeadlineExceeded) {
		return fmt.Errorf("%s timed out after %v: %w (%w)", name, timeout, apperrors.ErrTimeout, err)
	}
	return err
}
