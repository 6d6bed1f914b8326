package resilience

import (
	"context"
	"errors"
	"fmt"
	"time"

	apperrors "github.com/Adithya-Monish-Kumar-K/Transaction-Ingestion-Pipeline/pkg/errors"
)

// WithTimeout runs fn under a derived context that expires after timeout.
// The operation name is woven into the error so publish and dead-letter
// attempts are distinguishable in logs. An expired attempt wraps both
// ErrTimeout and the context error, so retry classification still sees
// context.DeadlineExceeded. fn must honor context cancellation.
func WithTimeout(ctx context.Context, timeout time.Duration, name string, fn func(ctx context.Context) error) error {
	if timeout <= 0 {
		return fn(ctx)
	}
	timeoutCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	err := fn(timeoutCtx)
	if err != nil && errors.Is(err, context.DeadlineExceeded) && ctx.Err() == nil {
		return fmt.Errorf("%s timed out after %v: %w: %w", name, timeout, apperrors.ErrTimeout, err)
	}
	return err
}
