package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
)

const (
	DefaultMaxRetries   = 3
	DefaultRetryBackoff = 25 * time.Millisecond
)

// RetryPolicy bounds the automatic retries of a transaction that lost a
// serialization conflict. MaxRetries counts retries after the first attempt.
type RetryPolicy struct {
	MaxRetries int
	Backoff    time.Duration
}

// DefaultRetryPolicy returns three retries with a linear 25ms backoff.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{MaxRetries: DefaultMaxRetries, Backoff: DefaultRetryBackoff}
}

func (p RetryPolicy) delay(attempt int) time.Duration {
	return time.Duration(attempt) * p.Backoff
}

// RetryOnConflict runs attempt until it succeeds, fails with an error other
// than ErrSerializationConflict, or the policy is exhausted. The returned
// error still matches ErrSerializationConflict after exhaustion.
func RetryOnConflict(ctx context.Context, policy RetryPolicy, attempt func(ctx context.Context) error) error {
	if policy.MaxRetries < 0 {
		policy.MaxRetries = 0
	}

	var err error
	for i := 0; i <= policy.MaxRetries; i++ {
		if i > 0 {
			zap.L().Warn("Retrying after serialization conflict",
				zap.Int("attempt", i+1),
				zap.Int("max_attempts", policy.MaxRetries+1),
				zap.Error(err))

			select {
			case <-ctx.Done():
				return fmt.Errorf("retry aborted: %w", ctx.Err())
			case <-time.After(policy.delay(i)):
			}
		}

		err = attempt(ctx)
		if err == nil || !errors.Is(err, ErrSerializationConflict) {
			return err
		}
	}

	return fmt.Errorf("giving up after %d attempts: %w", policy.MaxRetries+1, err)
}
