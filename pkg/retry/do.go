package retry

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// Do executes op under the given policy.
//
// Fatal errors and context cancellation end the call immediately;
// retryable errors are re-attempted after a backoff sleep until the
// policy's attempt budget is spent, at which point the last error is
// returned unchanged. The backoff sleep is interrupted promptly when ctx
// is cancelled and no further attempt is made.
func Do[T any](ctx context.Context, policy Policy, logger *zap.Logger, operation string, op func(context.Context) (T, error)) (T, error) {
	var zero T

	if logger == nil {
		logger = zap.NewNop()
	}
	maxAttempts := policy.MaxAttempts
	if maxAttempts < 1 {
		maxAttempts = 1
	}

	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return zero, err
		}

		result, err := op(ctx)
		if err == nil {
			return result, nil
		}
		lastErr = err

		if Classify(err) == Fatal {
			logger.Debug("non-retryable error",
				zap.String("operation", operation),
				zap.Error(err))
			return zero, err
		}

		if attempt >= maxAttempts {
			logger.Warn("retry exhausted",
				zap.String("operation", operation),
				zap.Int("attempts", attempt),
				zap.Error(err))
			return zero, err
		}

		delay := policy.Delay(attempt + 1)
		logger.Info("retrying",
			zap.String("operation", operation),
			zap.Int("attempt", attempt),
			zap.Int("max_attempts", maxAttempts),
			zap.Duration("delay", delay),
			zap.Error(err))

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return zero, ctx.Err()
		case <-timer.C:
		}
	}

	return zero, lastErr
}
